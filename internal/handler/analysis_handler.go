package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/codequest-edu/codequest-api/internal/models"
	"github.com/codequest-edu/codequest-api/internal/service"
	appErrors "github.com/codequest-edu/codequest-api/pkg/errors"
	"github.com/codequest-edu/codequest-api/pkg/response"
)

// AnalysisHandler wires HTTP endpoints to the analysis service.
type AnalysisHandler struct {
	service  *service.AnalysisService
	missions *service.MissionService
}

// NewAnalysisHandler creates a new handler.
func NewAnalysisHandler(svc *service.AnalysisService, missions *service.MissionService) *AnalysisHandler {
	return &AnalysisHandler{service: svc, missions: missions}
}

// Submit godoc
// @Summary Submit project for analysis
// @Description Upload a zip archive and run the static analysis pipeline
// @Tags Analysis
// @Accept multipart/form-data
// @Produce json
// @Param archive formData file true "Project zip archive"
// @Param project_name formData string false "Project name"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 413 {object} response.Envelope
// @Router /analyses [post]
func (h *AnalysisHandler) Submit(c *gin.Context) {
	claims := claimsFromContext(c)

	fileHeader, err := c.FormFile("archive")
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "archive file required"))
		return
	}

	projectName := strings.TrimSpace(c.PostForm("project_name"))
	if projectName == "" {
		projectName = strings.TrimSuffix(fileHeader.Filename, ".zip")
	}

	file, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read upload"))
		return
	}
	defer file.Close() //nolint:errcheck

	var userID *string
	if claims != nil {
		userID = &claims.UserID
	}

	run, err := h.service.Submit(c.Request.Context(), userID, projectName, fileHeader.Filename, file, fileHeader.Size)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, run)
}

// Get godoc
// @Summary Get analysis run
// @Description Returns one analysis run with findings and score; meta carries the finding→mission links
// @Tags Analysis
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /analyses/{id} [get]
func (h *AnalysisHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	run, err := h.service.Get(c.Request.Context(), c.Param("id"), claims.UserID, isAdmin(claims))
	if err != nil {
		response.Error(c, err)
		return
	}

	links, err := h.missions.FindingLinks(c.Request.Context(), run.ID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, run, nil, map[string]interface{}{"finding_links": links})
}

// List godoc
// @Summary List analysis runs
// @Description Returns the caller's runs, paginated. Admins see all runs.
// @Tags Analysis
// @Produce json
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Param status query string false "Status filter"
// @Success 200 {object} response.Envelope
// @Router /analyses [get]
func (h *AnalysisHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	filter := models.AnalysisFilter{
		Page:     queryInt(c, "page", 1),
		PageSize: queryInt(c, "page_size", 20),
	}
	if !isAdmin(claims) {
		filter.UserID = claims.UserID
	}
	if raw := c.Query("status"); raw != "" {
		status := models.AnalysisStatus(raw)
		filter.Status = &status
	}

	runs, total, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	pagination := &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}
	response.JSON(c, http.StatusOK, runs, pagination)
}

// Delete godoc
// @Summary Delete analysis run
// @Description Removes a run together with its missions
// @Tags Analysis
// @Produce json
// @Param id path string true "Run ID"
// @Success 204 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /analyses/{id} [delete]
func (h *AnalysisHandler) Delete(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.service.Delete(c.Request.Context(), c.Param("id"), claims.UserID, isAdmin(claims)); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

// Summary godoc
// @Summary Get analysis summary
// @Description Aggregates the caller's completed runs
// @Tags Analysis
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /analyses/summary [get]
func (h *AnalysisHandler) Summary(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	summary, err := h.service.UserSummary(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, summary, nil)
}
