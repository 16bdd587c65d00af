// Package renderer talks to the templated cloud render service. Assets are
// ingested first, then a template render is submitted referencing them via
// merge fields, then the render is polled until it reaches a terminal status.
package renderer

import (
	"bytes"
	"context"
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

const serviceName = "renderer"

// Client calls the render service.
type Client struct {
	baseURL    string
	apiKey     string
	templateID string
	httpClient *http.Client
	log        logger.Logger
}

// NewClient builds a Client from configuration.
func NewClient(cfg config.RendererConfig, log logger.Logger) *Client {
	timeout := time.Duration(cfg.Timeout) * time.Millisecond
	if cfg.Timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		templateID: cfg.TemplateID,
		httpClient: httpx.New(timeout),
		log:        log.With(map[string]interface{}{"client": serviceName}),
	}
}

// TemplateID returns the configured portrait template.
func (c *Client) TemplateID() string {
	return c.templateID
}

// IngestSource registers a public URL with the render service for import.
func (c *Client) IngestSource(ctx context.Context, url string) (*Source, error) {
	body, err := json.Marshal(ingestRequest{URL: url})
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	var envelope ingestEnvelope
	if err := c.do(ctx, http.MethodPost, "/ingest/sources", body, apperrors.ErrCodeIngestFailed, &envelope); err != nil {
		return nil, err
	}
	if envelope.Data.Attributes.ID == "" {
		return nil, apperrors.NewUpstreamError(apperrors.ErrCodeIngestFailed, serviceName, 0, "ingest response missing source id")
	}

	attrs := envelope.Data.Attributes
	return &Source{ID: attrs.ID, URL: attrs.URL, Status: attrs.Status, Error: attrs.Error}, nil
}

// GetSource fetches the current state of an ingested source.
func (c *Client) GetSource(ctx context.Context, id string) (*Source, error) {
	var envelope ingestEnvelope
	if err := c.do(ctx, http.MethodGet, "/ingest/sources/"+id, nil, apperrors.ErrCodeIngestFailed, &envelope); err != nil {
		return nil, err
	}

	attrs := envelope.Data.Attributes
	return &Source{ID: attrs.ID, URL: attrs.URL, Status: attrs.Status, Error: attrs.Error}, nil
}

// SubmitRender submits a template render with the given merge fields.
func (c *Client) SubmitRender(ctx context.Context, merge []MergeField) (*Render, error) {
	body, err := json.Marshal(renderRequest{ID: c.templateID, Merge: merge})
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	var envelope renderEnvelope
	if err := c.do(ctx, http.MethodPost, "/edit/templates/render", body, apperrors.ErrCodeRenderFailed, &envelope); err != nil {
		return nil, err
	}
	if !envelope.Success || envelope.Response.ID == "" {
		return nil, apperrors.NewUpstreamError(apperrors.ErrCodeRenderFailed, serviceName, 0,
			fmt.Sprintf("render not accepted: %s", envelope.Message))
	}

	resp := envelope.Response
	return &Render{ID: resp.ID, Status: resp.Status, URL: resp.URL, Error: resp.Error}, nil
}

// GetRenderStatus fetches the current state of a render job.
func (c *Client) GetRenderStatus(ctx context.Context, id string) (*Render, error) {
	var envelope renderEnvelope
	if err := c.do(ctx, http.MethodGet, "/edit/render/"+id, nil, apperrors.ErrCodeRenderFailed, &envelope); err != nil {
		return nil, err
	}

	resp := envelope.Response
	return &Render{ID: resp.ID, Status: resp.Status, URL: resp.URL, Error: resp.Error}, nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, code apperrors.ErrorCode, out interface{}) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.UpstreamRequestsTotal.WithLabelValues(serviceName, "error").Inc()
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return apperrors.NewTimeoutError(serviceName, err)
		}
		return apperrors.NewUpstreamError(code, serviceName, 0, err.Error())
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperrors.NewUpstreamError(code, serviceName, resp.StatusCode, err.Error())
	}

	metrics.UpstreamRequestsTotal.WithLabelValues(serviceName, fmt.Sprintf("%d", resp.StatusCode)).Inc()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apperrors.NewUpstreamError(code, serviceName, resp.StatusCode, string(raw))
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return apperrors.NewUpstreamError(code, serviceName, resp.StatusCode,
			fmt.Sprintf("malformed response: %v", err))
	}
	return nil
}
