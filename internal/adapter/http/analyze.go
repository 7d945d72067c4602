package http

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/gin-gonic/gin"

	"github.com/couchcryptid/quake-insight-service/internal/domain"
	"github.com/couchcryptid/quake-insight-service/internal/observability"
)

// AnalyzerBanner is served on GET / of the analysis service.
const AnalyzerBanner = "Earthquake Analysis API is running!"

// Analyzer answers proximity queries.
type Analyzer interface {
	sharedobs.ReadinessChecker
	Analyze(ctx context.Context, lat, lon float64) (domain.ProximityResult, error)
}

type analyzeHandler struct {
	analyzer Analyzer
	insights *insightEmitter
}

// NewAnalyzerServer creates the analysis service: GET / and GET /analyze.
func NewAnalyzerServer(addr string, a Analyzer, pub Publisher, metrics *observability.Metrics, logger *slog.Logger) *Server {
	insights := newInsightEmitter(pub, metrics, logger)
	h := &analyzeHandler{analyzer: a, insights: insights}

	r := newEngine(a, metrics, logger)
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, AnalyzerBanner) })
	r.GET("/analyze", h.handleAnalyze)
	return newServer(addr, r, insights, logger)
}

// handleAnalyze reports every failure, bad input included, as a 500.
func (h *analyzeHandler) handleAnalyze(c *gin.Context) {
	lat, err := floatQuery(c, "lat")
	if err != nil {
		writeError(c, http.StatusInternalServerError, err.Error())
		return
	}
	lon, err := floatQuery(c, "lon")
	if err != nil {
		writeError(c, http.StatusInternalServerError, err.Error())
		return
	}

	result, err := h.analyzer.Analyze(c.Request.Context(), lat, lon)
	if err != nil {
		writeError(c, http.StatusInternalServerError, err.Error())
		return
	}

	c.JSON(http.StatusOK, result)
	h.insights.emit(c, domain.NewAnalysisInsight(domain.GeoPoint{Lat: lat, Lon: lon}, result))
}

func floatQuery(c *gin.Context, key string) (float64, error) {
	s, ok := c.GetQuery(key)
	if !ok || s == "" {
		return 0, &domain.ValidationError{Reason: "missing required query parameter: " + key}
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, &domain.ValidationError{Reason: "invalid " + key + ": " + strconv.Quote(s) + " is not a number"}
	}
	return v, nil
}
