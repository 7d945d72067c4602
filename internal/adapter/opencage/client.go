package opencage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/couchcryptid/quake-insight-service/internal/domain"
	"github.com/couchcryptid/quake-insight-service/internal/observability"
)

const defaultBaseURL = "https://api.opencagedata.com/geocode/v1/json"

// Client implements domain.Geocoder using the OpenCage Geocoding API.
type Client struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

var _ domain.Geocoder = (*Client)(nil)

// NewClient creates an OpenCage geocoding client.
func NewClient(apiKey string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		apiKey: apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: defaultBaseURL,
		metrics: metrics,
		logger:  logger,
	}
}

// ReverseGeocode resolves coordinates to the closest named place. An empty
// result with a nil error means the provider found nothing.
func (c *Client) ReverseGeocode(ctx context.Context, lat, lon float64) (domain.GeocodingResult, error) {
	params := url.Values{
		"q":              {fmt.Sprintf("%g %g", lat, lon)},
		"key":            {c.apiKey},
		"limit":          {"1"},
		"no_annotations": {"1"},
	}

	result, err := c.doRequest(ctx, c.baseURL+"?"+params.Encode())
	switch {
	case err != nil:
		c.metrics.GeocodeRequests.WithLabelValues("error").Inc()
	case result.FormattedAddress == "":
		c.metrics.GeocodeRequests.WithLabelValues("empty").Inc()
	default:
		c.metrics.GeocodeRequests.WithLabelValues("success").Inc()
	}
	return result, err
}

func (c *Client) doRequest(ctx context.Context, fullURL string) (domain.GeocodingResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return domain.GeocodingResult{}, fmt.Errorf("create request: %w", err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.GeocodeAPIDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return domain.GeocodingResult{}, fmt.Errorf("reverse geocode request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.GeocodingResult{}, fmt.Errorf("opencage API error: status %d: %s", resp.StatusCode, body)
	}

	var ocResp response
	if err := json.NewDecoder(resp.Body).Decode(&ocResp); err != nil {
		return domain.GeocodingResult{}, fmt.Errorf("decode response: %w", err)
	}

	if len(ocResp.Results) == 0 {
		c.logger.Debug("opencage returned no results", "status", ocResp.Status.Message)
		return domain.GeocodingResult{}, nil
	}

	return domain.GeocodingResult{FormattedAddress: ocResp.Results[0].Formatted}, nil
}

// OpenCage API response types.

type response struct {
	Results []result `json:"results"`
	Status  struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"status"`
}

type result struct {
	Formatted string `json:"formatted"`
}
