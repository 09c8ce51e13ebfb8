package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/codequest-edu/codequest-api/internal/models"
	"github.com/codequest-edu/codequest-api/internal/service"
	appErrors "github.com/codequest-edu/codequest-api/pkg/errors"
	"github.com/codequest-edu/codequest-api/pkg/response"
)

// MissionHandler wires HTTP endpoints to the mission service.
type MissionHandler struct {
	service *service.MissionService
}

// NewMissionHandler creates a new handler.
func NewMissionHandler(svc *service.MissionService) *MissionHandler {
	return &MissionHandler{service: svc}
}

// List godoc
// @Summary List missions
// @Description Returns the caller's missions, optionally filtered by run or status
// @Tags Missions
// @Produce json
// @Param run_id query string false "Run ID"
// @Param status query string false "Status filter (pending, fixed, skipped)"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /missions [get]
func (h *MissionHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	filter := models.MissionFilter{
		RunID:    c.Query("run_id"),
		Page:     queryInt(c, "page", 1),
		PageSize: queryInt(c, "page_size", 50),
	}
	if !isAdmin(claims) {
		filter.UserID = claims.UserID
	}
	if raw := c.Query("status"); raw != "" {
		status := models.MissionStatus(raw)
		filter.Status = &status
	}

	missions, total, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	pagination := &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}
	response.JSON(c, http.StatusOK, missions, pagination)
}

// Get godoc
// @Summary Get mission
// @Tags Missions
// @Produce json
// @Param id path string true "Mission ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /missions/{id} [get]
func (h *MissionHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	mission, err := h.service.Get(c.Request.Context(), c.Param("id"), claims.UserID, isAdmin(claims))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, mission, nil)
}

// MarkFixed godoc
// @Summary Mark mission as fixed
// @Description Closes a pending mission as fixed. Closed missions cannot transition again.
// @Tags Missions
// @Produce json
// @Param id path string true "Mission ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /missions/{id}/fix [post]
func (h *MissionHandler) MarkFixed(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	mission, err := h.service.MarkFixed(c.Request.Context(), c.Param("id"), claims.UserID, isAdmin(claims))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, mission, nil)
}

// MarkSkipped godoc
// @Summary Mark mission as skipped
// @Description Closes a pending mission as skipped. Closed missions cannot transition again.
// @Tags Missions
// @Produce json
// @Param id path string true "Mission ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /missions/{id}/skip [post]
func (h *MissionHandler) MarkSkipped(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	mission, err := h.service.MarkSkipped(c.Request.Context(), c.Param("id"), claims.UserID, isAdmin(claims))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, mission, nil)
}

// Summary godoc
// @Summary Mission summary per run
// @Tags Missions
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} response.Envelope
// @Router /analyses/{id}/missions/summary [get]
func (h *MissionHandler) Summary(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	summary, err := h.service.Summary(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, summary, nil)
}
