package usgs

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/couchcryptid/quake-insight-service/internal/domain"
	"github.com/couchcryptid/quake-insight-service/internal/observability"
)

// DefaultFeedURL is the USGS summary feed of all earthquakes in the past hour.
const DefaultFeedURL = "https://earthquake.usgs.gov/earthquakes/feed/v1.0/summary/all_hour.geojson"

// Client reads the USGS GeoJSON summary feed.
type Client struct {
	feedURL    string
	httpClient *http.Client
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a feed client for feedURL.
func NewClient(feedURL string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		feedURL: feedURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		metrics: metrics,
		logger:  logger,
	}
}

// FetchRecent downloads the feed once and returns its records. It does not
// retry; callers decide how to degrade on failure.
func (c *Client) FetchRecent(ctx context.Context) (domain.FeedSnapshot, error) {
	records, err := c.fetch(ctx)
	if err != nil {
		c.metrics.FeedFetches.WithLabelValues("error").Inc()
		return domain.FeedSnapshot{}, err
	}
	c.metrics.FeedFetches.WithLabelValues("success").Inc()
	c.logger.Info("earthquake feed fetched", "source", c.feedURL, "records", len(records))
	return domain.NewFeedSnapshot(c.feedURL, records), nil
}

func (c *Client) fetch(ctx context.Context) ([]domain.EarthquakeRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %w", domain.ErrFeedFetch, err)
	}
	req.Header.Set("Accept", "application/geo+json, application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrFeedFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", domain.ErrFeedFetch, resp.StatusCode)
	}

	records, err := Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrFeedFetch, err)
	}
	return records, nil
}

// Parse decodes a GeoJSON feature collection into earthquake records in feed
// order. Features without a point geometry are skipped. A missing place
// decodes to "" and a missing magnitude to nil.
func Parse(r io.Reader) ([]domain.EarthquakeRecord, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read feed: %w", err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("decode feed: %w", err)
	}

	records := make([]domain.EarthquakeRecord, 0, len(fc.Features))
	for _, f := range fc.Features {
		p, ok := f.Geometry.(orb.Point)
		if !ok {
			continue
		}
		rec := domain.EarthquakeRecord{
			Place: f.Properties.MustString("place", ""),
			Lat:   p.Lat(),
			Lon:   p.Lon(),
		}
		if mag, ok := f.Properties["mag"].(float64); ok {
			rec.Magnitude = &mag
		}
		records = append(records, rec)
	}
	return records, nil
}
