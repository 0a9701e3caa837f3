package handlers

import (
	"errors"
	"log"
	"net/http"

	"tariff-migration/internal/api/models"
	"tariff-migration/internal/config"
	"tariff-migration/internal/migration"
	"tariff-migration/internal/model"
	"tariff-migration/internal/report"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// MigrationHandler handles migration prediction requests
type MigrationHandler struct {
	cfg *config.Config
}

// NewMigrationHandler creates a new migration handler
func NewMigrationHandler(cfg *config.Config) *MigrationHandler {
	return &MigrationHandler{cfg: cfg}
}

// Predict handles POST /api/v1/migration/predict
func (h *MigrationHandler) Predict(c *gin.Context) {
	h.run(c, migration.KindPublish)
}

// Revoke handles POST /api/v1/migration/revoke
func (h *MigrationHandler) Revoke(c *gin.Context) {
	h.run(c, migration.KindRevoke)
}

func (h *MigrationHandler) run(c *gin.Context, kind string) {
	var req models.PredictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error: models.ErrorDetail{
				Code:    "INVALID_REQUEST",
				Message: err.Error(),
			},
		})
		return
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error: models.ErrorDetail{
				Code:    "INVALID_SCENARIO",
				Message: err.Error(),
			},
		})
		return
	}
	if kind == migration.KindRevoke && req.Candidate == nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error: models.ErrorDetail{
				Code:    "MISSING_CANDIDATE",
				Message: "revoke predictions need the tariff being revoked as candidate",
			},
		})
		return
	}

	// Each request gets its own registry and orchestrator, so model caches
	// are never shared between callers.
	tariffs, customers, err := req.Build()
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error: models.ErrorDetail{
				Code:    "INVALID_SCENARIO",
				Message: err.Error(),
			},
		})
		return
	}
	orch, err := migration.New(h.cfg, tariffs, customers)
	if err != nil {
		log.Printf("MigrationHandler: failed to build orchestrator: %v", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error: models.ErrorDetail{
				Code:    "CONFIG_ERROR",
				Message: err.Error(),
			},
		})
		return
	}

	id := uuid.NewString()
	log.Printf("MigrationHandler: %s %s: %d customers, %d competitors, timeslot %d",
		id, kind, len(req.Customers), len(req.Competitors), req.Timeslot)

	mreq := req.Request()
	var predicted model.Predicted
	if kind == migration.KindRevoke {
		predicted, err = orch.PredictMigrationForRevoke(c.Request.Context(), mreq)
	} else {
		predicted, err = orch.PredictMigration(c.Request.Context(), mreq)
	}
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, migration.ErrUnknownCustomer) || errors.Is(err, migration.ErrNoEvaluations) {
			status = http.StatusBadRequest
		}
		c.JSON(status, models.ErrorResponse{
			Error: models.ErrorDetail{
				Code:    "PREDICTION_FAILED",
				Message: err.Error(),
				Details: map[string]interface{}{"id": id},
			},
		})
		return
	}

	var candidate model.TariffID
	resp := models.PredictResponse{
		ID:        id,
		Kind:      kind,
		Timeslot:  req.Timeslot,
		Predicted: predicted,
	}
	if req.Candidate != nil {
		candidate = req.Candidate.ID
		resp.Candidate = &candidate
	}
	rows := report.Rows(req.Subscriptions, predicted, candidate)
	for _, t := range report.Totals(rows) {
		resp.Totals = append(resp.Totals, models.TariffTotal{
			TariffID:  t.TariffID,
			Current:   t.Current,
			Predicted: t.Predicted,
		})
	}
	if req.IncludeRows {
		for _, r := range rows {
			resp.Rows = append(resp.Rows, models.PredictionRow{
				TariffID:  r.TariffID,
				Customer:  r.Customer,
				Candidate: r.Candidate,
				Current:   r.Current,
				Predicted: r.Predicted,
				Delta:     r.Delta,
			})
		}
	}

	log.Printf("MigrationHandler: %s done, %d tariffs predicted", id, len(predicted))
	c.JSON(http.StatusOK, resp)
}
