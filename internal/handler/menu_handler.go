package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dkv-labs/pps-api/internal/service"
	appErrors "github.com/dkv-labs/pps-api/pkg/errors"
	"github.com/dkv-labs/pps-api/pkg/response"
)

// MenuHandler serves the role-scoped navigation menu.
type MenuHandler struct {
	service *service.MenuService
}

func NewMenuHandler(svc *service.MenuService) *MenuHandler {
	return &MenuHandler{service: svc}
}

// List godoc
// @Summary List menus visible to the caller's role
// @Tags Menus
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /menus [get]
func (h *MenuHandler) List(c *gin.Context) {
	claims, ok := currentClaims(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	menus, err := h.service.MenusForRole(c.Request.Context(), claims.Role)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, menus, nil)
}
