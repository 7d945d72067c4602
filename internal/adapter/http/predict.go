package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/gin-gonic/gin"

	"github.com/couchcryptid/quake-insight-service/internal/domain"
	"github.com/couchcryptid/quake-insight-service/internal/observability"
)

// PredictorBanner is served on GET / of the prediction service.
const PredictorBanner = "Earthquake Prediction API is running!"

// Predictor classifies a raw feature vector.
type Predictor interface {
	sharedobs.ReadinessChecker
	Predict(ctx context.Context, raw []float64) (int, error)
}

type predictHandler struct {
	predictor Predictor
	insights  *insightEmitter
}

// NewPredictorServer creates the prediction service: GET / and POST /predict.
func NewPredictorServer(addr string, p Predictor, pub Publisher, metrics *observability.Metrics, logger *slog.Logger) *Server {
	insights := newInsightEmitter(pub, metrics, logger)
	h := &predictHandler{predictor: p, insights: insights}

	r := newEngine(p, metrics, logger)
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, PredictorBanner) })
	r.POST("/predict", h.handlePredict)
	return newServer(addr, r, insights, logger)
}

func (h *predictHandler) handlePredict(c *gin.Context) {
	raw, err := decodeFeatures(c)
	if err == nil {
		var label int
		label, err = h.predictor.Predict(c.Request.Context(), raw)
		if err == nil {
			c.JSON(http.StatusOK, gin.H{"prediction": label})
			h.insights.emit(c, domain.NewPredictionInsight(raw, label))
			return
		}
	}

	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve):
		writeError(c, http.StatusBadRequest, ve.Reason)
	case errors.Is(err, domain.ErrTransform):
		writeError(c, http.StatusInternalServerError, "Box-Cox transformation failed: "+err.Error())
	default:
		writeError(c, http.StatusInternalServerError, "An unexpected error occurred: "+err.Error())
	}
}

// decodeFeatures reads {"features": [...]} from the body. A missing or null
// key yields a nil slice so validation reports it as absent.
func decodeFeatures(c *gin.Context) ([]float64, error) {
	var body map[string]json.RawMessage
	if err := json.NewDecoder(c.Request.Body).Decode(&body); err != nil {
		return nil, err
	}
	rawFeatures, ok := body["features"]
	if !ok || string(rawFeatures) == "null" {
		return nil, nil
	}
	var features []float64
	if err := json.Unmarshal(rawFeatures, &features); err != nil {
		return nil, err
	}
	if features == nil {
		features = []float64{}
	}
	return features, nil
}
