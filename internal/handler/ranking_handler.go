package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/codequest-edu/codequest-api/internal/service"
	appErrors "github.com/codequest-edu/codequest-api/pkg/errors"
	"github.com/codequest-edu/codequest-api/pkg/response"
)

// RankingHandler wires HTTP endpoints to the ranking service.
type RankingHandler struct {
	service *service.RankingService
}

// NewRankingHandler creates a new handler.
func NewRankingHandler(svc *service.RankingService) *RankingHandler {
	return &RankingHandler{service: svc}
}

// Top godoc
// @Summary Quality leaderboard
// @Description Returns the top users by average quality score
// @Tags Rankings
// @Produce json
// @Param limit query int false "Number of entries"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /rankings [get]
func (h *RankingHandler) Top(c *gin.Context) {
	entries, err := h.service.Top(c.Request.Context(), queryInt(c, "limit", 0))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, entries, nil)
}

// Me godoc
// @Summary Current user's rank
// @Tags Rankings
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /rankings/me [get]
func (h *RankingHandler) Me(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	rank, err := h.service.UserRank(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, rank, nil)
}

// Stats godoc
// @Summary Global leaderboard stats
// @Tags Rankings
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /rankings/stats [get]
func (h *RankingHandler) Stats(c *gin.Context) {
	stats, err := h.service.GlobalStats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, stats, nil)
}
