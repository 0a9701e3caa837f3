package handlers

import (
	"log"
	"net/http"

	"tariff-migration/internal/api/models"
	"tariff-migration/internal/config"

	"github.com/gin-gonic/gin"
)

var predictorDescriptions = map[string]string{
	config.PredictorServer:     "Customer choice model. Redistributes each customer with a logit over tariff utilities, using the customer's profile.",
	config.PredictorRegression: "Fits the customer's evaluation to subscriber curve (LWR or ridge) and reads the candidate's count off it, interpolating when there are too few points.",
	config.PredictorNoop:       "Keeps current subscriptions. Always succeeds and ends the chain.",
}

// PredictorHandler describes the configured predictor chain
type PredictorHandler struct {
	cfg *config.Config
}

// NewPredictorHandler creates a new predictor handler
func NewPredictorHandler(cfg *config.Config) *PredictorHandler {
	return &PredictorHandler{cfg: cfg}
}

// ListPredictors handles GET /api/v1/predictors
func (h *PredictorHandler) ListPredictors(c *gin.Context) {
	log.Printf("PredictorHandler: ListPredictors called")
	predictors := make([]models.PredictorInfo, 0, len(h.cfg.Predictor.Chain))
	for i, name := range h.cfg.Predictor.Chain {
		predictors = append(predictors, models.PredictorInfo{
			Name:        name,
			Position:    i,
			Description: predictorDescriptions[name],
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"predictors":   predictors,
		"engine":       h.cfg.Regression.Engine,
		"dummy_policy": h.cfg.Predictor.DummyPolicy,
	})
}
