// Package geocode resolves coordinates to a neighbourhood name and pincode,
// and pincodes to district information for tag suggestions.
package geocode

import (
	"context"
	"encoding/json"
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
	"iamkolkata/internal/common/retry"
	"iamkolkata/internal/models"
)

// District identifies the administrative area behind a pincode.
type District struct {
	District string
	State    string
}

// Client resolves locations against the reverse geocoder and the postal
// lookup service.
type Client struct {
	nominatimBase string
	postalBase    string
	httpClient    *http.Client
	policy        retry.Policy
	log           logger.Logger
}

// NewClient builds a Client from configuration.
func NewClient(cfg config.GeocodeConfig, log logger.Logger) *Client {
	timeout := time.Duration(cfg.Timeout) * time.Millisecond
	if cfg.Timeout == 0 {
		timeout = 10 * time.Second
	}

	policy := retry.Policy{
		BaseDelay:   2 * time.Second,
		Factor:      2,
		MaxDelay:    10 * time.Second,
		MaxAttempts: 3,
	}
	if cfg.MaxAttempts > 0 {
		policy.MaxAttempts = cfg.MaxAttempts
	}
	if cfg.BaseDelay > 0 {
		policy.BaseDelay = time.Duration(cfg.BaseDelay) * time.Millisecond
	}

	return &Client{
		nominatimBase: strings.TrimRight(cfg.NominatimBaseURL, "/"),
		postalBase:    strings.TrimRight(cfg.PostalBaseURL, "/"),
		httpClient:    httpx.New(timeout),
		policy:        policy,
		log:           log.With(map[string]interface{}{"client": "geocode"}),
	}
}

type nominatimResponse struct {
	Address struct {
		Suburb        string `json:"suburb"`
		Neighbourhood string `json:"neighbourhood"`
		CityDistrict  string `json:"city_district"`
		City          string `json:"city"`
		Postcode      string `json:"postcode"`
	} `json:"address"`
}

// Reverse resolves coordinates to an area name and pincode. Unresolvable
// fields come back as the Unknown sentinels rather than an error, so a flaky
// geocoder never blocks the flow.
func (c *Client) Reverse(ctx context.Context, lat, lng float64) (models.Location, error) {
	loc := models.Location{
		Latitude:  lat,
		Longitude: lng,
		Area:      models.UnknownArea,
		Pincode:   models.UnknownPincode,
	}

	url := fmt.Sprintf("%s/reverse?format=json&lat=%f&lon=%f&zoom=16", c.nominatimBase, lat, lng)

	var parsed nominatimResponse
	err := c.policy.Do(ctx, func(ctx context.Context) error {
		return c.getJSON(ctx, "nominatim", url, &parsed)
	})
	if err != nil {
		c.log.Warn("reverse geocode failed, using sentinels", map[string]interface{}{
			"lat":   lat,
			"lng":   lng,
			"error": err.Error(),
		})
		return loc, apperrors.NewUpstreamError(apperrors.ErrCodeGeocodeFailed, "nominatim", 0, err.Error())
	}

	addr := parsed.Address
	for _, candidate := range []string{addr.Suburb, addr.Neighbourhood, addr.CityDistrict, addr.City} {
		if candidate != "" {
			loc.Area = candidate
			break
		}
	}
	if addr.Postcode != "" {
		loc.Pincode = addr.Postcode
	}
	return loc, nil
}

type postalResponse []struct {
	Status     string `json:"Status"`
	PostOffice []struct {
		District string `json:"District"`
		State    string `json:"State"`
	} `json:"PostOffice"`
}

// LookupPincode resolves a pincode to its district and state.
func (c *Client) LookupPincode(ctx context.Context, pincode string) (*District, error) {
	if pincode == "" || pincode == models.UnknownPincode {
		return nil, apperrors.NewValidationError(apperrors.ErrCodeInvalidPayload, "a pincode is required", "")
	}

	url := fmt.Sprintf("%s/pincode/%s", c.postalBase, pincode)

	var parsed postalResponse
	err := c.policy.Do(ctx, func(ctx context.Context) error {
		return c.getJSON(ctx, "postal", url, &parsed)
	})
	if err != nil {
		return nil, apperrors.NewUpstreamError(apperrors.ErrCodeGeocodeFailed, "postal", 0, err.Error())
	}

	if len(parsed) == 0 || len(parsed[0].PostOffice) == 0 {
		return nil, apperrors.NewUpstreamError(apperrors.ErrCodeGeocodeFailed, "postal", 0,
			fmt.Sprintf("no post office found for pincode %s", pincode))
	}

	office := parsed[0].PostOffice[0]
	return &District{District: office.District, State: office.State}, nil
}

func (c *Client) getJSON(ctx context.Context, service, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return retry.Stop(err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "iamkolkata/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.UpstreamRequestsTotal.WithLabelValues(service, "error").Inc()
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	metrics.UpstreamRequestsTotal.WithLabelValues(service, fmt.Sprintf("%d", resp.StatusCode)).Inc()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		statusErr := fmt.Errorf("%s returned %d: %s", service, resp.StatusCode, string(raw))
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return statusErr
		}
		return retry.Stop(statusErr)
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return retry.Stop(fmt.Errorf("malformed %s response: %w", service, err))
	}
	return nil
}
