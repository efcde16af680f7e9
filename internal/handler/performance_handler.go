package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dkv-labs/pps-api/internal/dto"
	"github.com/dkv-labs/pps-api/internal/service"
	appErrors "github.com/dkv-labs/pps-api/pkg/errors"
	"github.com/dkv-labs/pps-api/pkg/response"
)

// PerformanceHandler exposes the topic form endpoints: retrieval with
// recomputed values, save/submit, and content-aware navigation.
type PerformanceHandler struct {
	service *service.PerformanceService
}

func NewPerformanceHandler(svc *service.PerformanceService) *PerformanceHandler {
	return &PerformanceHandler{service: svc}
}

// GetForm godoc
// @Summary Retrieve a topic form
// @Description Returns the form shape with prior values, formula results and navigation flags
// @Tags Performance
// @Produce json
// @Param battalionId query int true "Battalion ID"
// @Param moduleId query int true "Module ID"
// @Param topicId query int true "Topic ID"
// @Param month query string true "Month (YYYY-MM)"
// @Param companyIds query []int false "Company selection"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /performance/form [get]
func (h *PerformanceHandler) GetForm(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.FormRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid form query"))
		return
	}
	resp, err := h.service.GetForm(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, resp, nil)
}

// Save godoc
// @Summary Save or submit a topic form
// @Description Applies field values, recomputes formulas and replaces the stored records
// @Tags Performance
// @Accept json
// @Produce json
// @Param payload body dto.SaveFormRequest true "Save payload"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /performance/form [post]
func (h *PerformanceHandler) Save(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.SaveFormRequest
	if !bindJSON(c, &req, "invalid save payload") {
		return
	}
	resp, err := h.service.Save(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, resp, nil)
}

// Navigate godoc
// @Summary Find the next or previous topic with content
// @Tags Performance
// @Accept json
// @Produce json
// @Param payload body dto.NavigateRequest true "Navigation payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /performance/navigate [post]
func (h *PerformanceHandler) Navigate(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.NavigateRequest
	if !bindJSON(c, &req, "invalid navigation payload") {
		return
	}
	resp, err := h.service.Navigate(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, resp, nil)
}
