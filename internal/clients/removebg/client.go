// Package removebg strips the background from a subject photo using the
// remove.bg HTTP API.
package removebg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"iamkolkata/internal/common/config"
	apperrors "iamkolkata/internal/common/errors"
	"iamkolkata/internal/common/httpx"
	"iamkolkata/internal/common/logger"
	"iamkolkata/internal/common/metrics"
)

const serviceName = "removebg"

// Client calls the background removal endpoint.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	log        logger.Logger
}

// NewClient builds a Client from configuration.
func NewClient(cfg config.RemoveBGConfig, log logger.Logger) *Client {
	timeout := time.Duration(cfg.Timeout) * time.Millisecond
	if cfg.Timeout == 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: httpx.New(timeout),
		log:        log.With(map[string]interface{}{"client": serviceName}),
	}
}

// Remove uploads the image and returns the cutout bytes with the background
// removed. Output size matches the input ("size=auto").
func (c *Client) Remove(ctx context.Context, image []byte, filename string) ([]byte, error) {
	if len(image) == 0 {
		return nil, apperrors.NewStateError(apperrors.ErrCodeMissingPhotoUpload, "no photo provided for background removal")
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("image_file", filename)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	if _, err := part.Write(image); err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	if err := writer.WriteField("size", "auto"); err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	if err := writer.Close(); err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1.0/removebg", &body)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("X-Api-Key", c.apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.UpstreamRequestsTotal.WithLabelValues(serviceName, "error").Inc()
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, apperrors.NewTimeoutError(serviceName, err)
		}
		return nil, apperrors.NewUpstreamError(apperrors.ErrCodeBackgroundRemovalFailed, serviceName, 0, err.Error())
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.NewUpstreamError(apperrors.ErrCodeBackgroundRemovalFailed, serviceName, resp.StatusCode, err.Error())
	}

	metrics.UpstreamRequestsTotal.WithLabelValues(serviceName, fmt.Sprintf("%d", resp.StatusCode)).Inc()
	c.log.Debug("background removal finished", map[string]interface{}{
		"status":      resp.StatusCode,
		"bytes":       len(raw),
		"duration_ms": time.Since(start).Milliseconds(),
	})

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apperrors.NewUpstreamError(apperrors.ErrCodeBackgroundRemovalFailed, serviceName, resp.StatusCode, string(raw))
	}
	if len(raw) == 0 {
		return nil, apperrors.NewUpstreamError(apperrors.ErrCodeBackgroundRemovalFailed, serviceName, resp.StatusCode, "empty cutout")
	}
	return raw, nil
}
