package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/codequest-edu/codequest-api/internal/models"
	"github.com/codequest-edu/codequest-api/internal/service"
	appErrors "github.com/codequest-edu/codequest-api/pkg/errors"
	"github.com/codequest-edu/codequest-api/pkg/response"
)

// AchievementHandler wires HTTP endpoints to the achievement service.
type AchievementHandler struct {
	service *service.AchievementService
}

// NewAchievementHandler creates a new handler.
func NewAchievementHandler(svc *service.AchievementService) *AchievementHandler {
	return &AchievementHandler{service: svc}
}

// List godoc
// @Summary List achievements
// @Description Returns the caller's achievement catalog with unlock state
// @Tags Achievements
// @Produce json
// @Param filter query string false "Filter (unlocked, locked)"
// @Success 200 {object} response.Envelope
// @Router /achievements [get]
func (h *AchievementHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	achievements, points, err := h.service.ListByUser(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	switch c.Query("filter") {
	case "unlocked":
		achievements = filterAchievements(achievements, true)
	case "locked":
		achievements = filterAchievements(achievements, false)
	}

	response.JSON(c, http.StatusOK, achievements, nil, map[string]interface{}{"total_points": points})
}

func filterAchievements(achievements []models.Achievement, unlocked bool) []models.Achievement {
	filtered := make([]models.Achievement, 0, len(achievements))
	for _, a := range achievements {
		if a.Unlocked == unlocked {
			filtered = append(filtered, a)
		}
	}
	return filtered
}

// Stats godoc
// @Summary Achievement progress stats
// @Description Returns the aggregate counters achievements are evaluated against
// @Tags Achievements
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /achievements/stats [get]
func (h *AchievementHandler) Stats(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	stats, err := h.service.UserStats(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build stats"))
		return
	}

	response.JSON(c, http.StatusOK, stats, nil)
}
