package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dkv-labs/pps-api/internal/service"
	"github.com/dkv-labs/pps-api/pkg/response"
)

// DashboardHandler serves aggregate submission progress.
type DashboardHandler struct {
	service *service.DashboardService
}

func NewDashboardHandler(svc *service.DashboardService) *DashboardHandler {
	return &DashboardHandler{service: svc}
}

// Summary godoc
// @Summary Month-wide submission summary
// @Tags Dashboard
// @Produce json
// @Param month query string false "Month (YYYY-MM), defaults to current"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /dashboard/summary [get]
func (h *DashboardHandler) Summary(c *gin.Context) {
	month := c.Query("month")
	if month == "" {
		month = time.Now().UTC().Format("2006-01")
	}
	summary, err := h.service.Summary(c.Request.Context(), month)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}
