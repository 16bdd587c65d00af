// Package genai talks to an OpenAI-compatible API for text and image
// generation. It uses the raw HTTP wire format rather than an SDK so the
// request shapes stay visible and testable.
package genai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"iamkolkata/internal/common/config"
	apperrors "iamkolkata/internal/common/errors"
	"iamkolkata/internal/common/httpx"
	"iamkolkata/internal/common/logger"
	"iamkolkata/internal/common/metrics"
)

const serviceName = "genai"

// Client calls the text and image generation endpoints.
type Client struct {
	baseURL    string
	apiKey     string
	textModel  string
	imageModel string
	httpClient *http.Client
	log        logger.Logger
}

// NewClient builds a Client from configuration.
func NewClient(cfg config.GenAIConfig, log logger.Logger) *Client {
	timeout := time.Duration(cfg.Timeout) * time.Millisecond
	if cfg.Timeout == 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		textModel:  cfg.TextModel,
		imageModel: cfg.ImageModel,
		httpClient: httpx.New(timeout),
		log:        log.With(map[string]interface{}{"client": serviceName}),
	}
}

// GenerateDescription produces a 40-50 word neighbourhood description.
func (c *Client) GenerateDescription(ctx context.Context, paraName string, tags []string, experiences string) (string, error) {
	req := chatRequest{
		Model: c.textModel,
		Messages: []chatMessage{
			{Role: "user", Content: descriptionPrompt(paraName, tags, experiences)},
		},
		Temperature: 0.8,
		MaxTokens:   100,
	}

	var resp chatResponse
	if err := c.post(ctx, "/v1/chat/completions", req, &resp); err != nil {
		return "", wrapErr(apperrors.ErrCodeDescriptionFailed, err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", apperrors.NewUpstreamError(apperrors.ErrCodeDescriptionFailed, serviceName, 0, "empty completion")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// GenerateSceneImage produces a 1024x1024 scene image for the area, shaped
// by the selected tags and experiences, and returns the raw decoded bytes.
// An empty image in an otherwise successful response counts as a failure:
// the pipeline has nothing to continue with.
func (c *Client) GenerateSceneImage(ctx context.Context, tags, experiences []string, area string) ([]byte, error) {
	req := imageRequest{
		Model:          c.imageModel,
		Prompt:         scenePrompt(tags, experiences, area),
		N:              1,
		Size:           "1024x1024",
		Quality:        "hd",
		Style:          "natural",
		ResponseFormat: "b64_json",
	}

	var resp imageResponse
	if err := c.post(ctx, "/v1/images/generations", req, &resp); err != nil {
		return nil, wrapErr(apperrors.ErrCodeSceneGenerationFailed, err)
	}
	if len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
		return nil, apperrors.NewUpstreamError(apperrors.ErrCodeSceneGenerationFailed, serviceName, 0, "no image data in response")
	}

	img, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		return nil, apperrors.NewUpstreamError(apperrors.ErrCodeSceneGenerationFailed, serviceName, 0,
			fmt.Sprintf("malformed base64 image: %v", err))
	}
	if len(img) == 0 {
		return nil, apperrors.NewUpstreamError(apperrors.ErrCodeSceneGenerationFailed, serviceName, 0, "empty image payload")
	}
	return img, nil
}

// SuggestTags asks the text model for up to 10 tags for a district. Hashtag
// tokens are filtered out.
func (c *Client) SuggestTags(ctx context.Context, district, state string) ([]string, error) {
	req := chatRequest{
		Model: c.textModel,
		Messages: []chatMessage{
			{Role: "user", Content: tagsPrompt(district, state)},
		},
		Temperature: 0.8,
		MaxTokens:   100,
	}

	var resp chatResponse
	if err := c.post(ctx, "/v1/chat/completions", req, &resp); err != nil {
		return nil, wrapErr(apperrors.ErrCodeTagSuggestionFailed, err)
	}
	if len(resp.Choices) == 0 {
		return nil, apperrors.NewUpstreamError(apperrors.ErrCodeTagSuggestionFailed, serviceName, 0, "empty completion")
	}

	tags := make([]string, 0, 10)
	for _, raw := range strings.Split(resp.Choices[0].Message.Content, ",") {
		tag := strings.TrimSpace(raw)
		if tag == "" || strings.Contains(tag, "#") {
			continue
		}
		tags = append(tags, tag)
		if len(tags) == 10 {
			break
		}
	}
	return tags, nil
}

func (c *Client) post(ctx context.Context, path string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return apperrors.NewInternalError(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.UpstreamRequestsTotal.WithLabelValues(serviceName, "error").Inc()
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return apperrors.NewTimeoutError(serviceName, err)
		}
		return apperrors.NewUpstreamError(apperrors.ErrCodeInternal, serviceName, 0, err.Error())
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperrors.NewUpstreamError(apperrors.ErrCodeInternal, serviceName, resp.StatusCode, err.Error())
	}

	metrics.UpstreamRequestsTotal.WithLabelValues(serviceName, fmt.Sprintf("%d", resp.StatusCode)).Inc()
	c.log.Debug("genai request finished", map[string]interface{}{
		"path":        path,
		"status":      resp.StatusCode,
		"duration_ms": time.Since(start).Milliseconds(),
	})

	if resp.StatusCode == http.StatusTooManyRequests {
		appErr := apperrors.NewUpstreamError(apperrors.ErrCodeRateLimited, serviceName, resp.StatusCode, string(raw))
		appErr.Retryable = true
		return appErr
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apperrors.NewUpstreamError(apperrors.ErrCodeInternal, serviceName, resp.StatusCode, string(raw))
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return apperrors.NewUpstreamError(apperrors.ErrCodeInternal, serviceName, resp.StatusCode,
			fmt.Sprintf("malformed response: %v", err))
	}
	return nil
}

// wrapErr rebrands a transport-level AppError with the operation's code while
// keeping timeout and rate-limit codes intact.
func wrapErr(code apperrors.ErrorCode, err error) error {
	appErr := apperrors.AsAppError(err)
	if appErr.Code == apperrors.ErrCodeUpstreamTimeout || appErr.Code == apperrors.ErrCodeRateLimited {
		return appErr
	}
	appErr.Code = code
	return appErr
}
