package handlers

import (
	"log"
	"net/http"

	"tariff-migration/internal/api/models"
	"tariff-migration/internal/config"

	"github.com/gin-gonic/gin"
)

// ProfileHandler lists the configured customer profiles
type ProfileHandler struct {
	cfg *config.Config
}

// NewProfileHandler creates a new profile handler
func NewProfileHandler(cfg *config.Config) *ProfileHandler {
	return &ProfileHandler{cfg: cfg}
}

// ListProfiles handles GET /api/v1/profiles
func (h *ProfileHandler) ListProfiles(c *gin.Context) {
	profiles := []models.ProfileInfo{}
	for _, name := range h.cfg.ProfileNames() {
		p, _ := h.cfg.Profile(name)
		profiles = append(profiles, models.ProfileInfo{
			Name:                name,
			Rationality:         p.Rationality,
			FullyRational:       p.FullyRational,
			InconvenienceWeight: p.InconvenienceWeight,
			TariffSwitchFactor:  p.TariffSwitchFactor,
			BrokerSwitchFactor:  p.BrokerSwitchFactor,
		})
	}

	log.Printf("ProfileHandler: Returning %d profiles", len(profiles))
	c.JSON(http.StatusOK, gin.H{"profiles": profiles})
}
