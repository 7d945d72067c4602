package mlserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/couchcryptid/quake-insight-service/internal/domain"
)

// Client implements domain.Classifier against a remote model server that
// accepts {"instances": rows} on POST /predict.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

var _ domain.Classifier = (*Client)(nil)

// NewClient creates a model server client rooted at baseURL.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

type predictRequest struct {
	Instances [][]float64 `json:"instances"`
}

type predictResponse struct {
	Predictions []float64 `json:"predictions"`
}

// Predict sends the rows to the model server and returns one label per row.
func (c *Client) Predict(ctx context.Context, rows [][]float64) ([]int, error) {
	body, err := json.Marshal(predictRequest{Instances: rows})
	if err != nil {
		return nil, fmt.Errorf("marshal predict request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/predict", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("model server request: %w", err)
	}
	defer resp.Body.Close()

	c.logger.Debug("model server responded",
		"status", resp.StatusCode,
		"rows", len(rows),
		"duration", time.Since(start),
	)

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("model server error: status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	var out predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode predict response: %w", err)
	}
	if len(out.Predictions) != len(rows) {
		return nil, fmt.Errorf("model server returned %d predictions for %d rows", len(out.Predictions), len(rows))
	}

	// Servers built on numpy often serialise integer labels as floats.
	labels := make([]int, len(out.Predictions))
	for i, p := range out.Predictions {
		if p != float64(int(p)) {
			return nil, fmt.Errorf("prediction %d is not a class label: %g", i, p)
		}
		labels[i] = int(p)
	}
	return labels, nil
}
