package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dkv-labs/pps-api/internal/service"
	appErrors "github.com/dkv-labs/pps-api/pkg/errors"
	"github.com/dkv-labs/pps-api/pkg/response"
)

// GeographyHandler serves the state/range/district/battalion/company tree.
type GeographyHandler struct {
	service *service.GeographyService
}

func NewGeographyHandler(svc *service.GeographyService) *GeographyHandler {
	return &GeographyHandler{service: svc}
}

// States godoc
// @Summary List states
// @Tags Geography
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /geography/states [get]
func (h *GeographyHandler) States(c *gin.Context) {
	states, err := h.service.States(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, states, nil)
}

// Ranges godoc
// @Summary List ranges of a state
// @Tags Geography
// @Produce json
// @Param stateId path int true "State ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /geography/states/{stateId}/ranges [get]
func (h *GeographyHandler) Ranges(c *gin.Context) {
	stateID, err := paramInt64(c, "stateId")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "stateId must be an integer"))
		return
	}
	ranges, err := h.service.Ranges(c.Request.Context(), stateID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, ranges, nil)
}

// Districts godoc
// @Summary List districts of a range
// @Tags Geography
// @Produce json
// @Param rangeId path int true "Range ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /geography/ranges/{rangeId}/districts [get]
func (h *GeographyHandler) Districts(c *gin.Context) {
	rangeID, err := paramInt64(c, "rangeId")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "rangeId must be an integer"))
		return
	}
	districts, err := h.service.Districts(c.Request.Context(), rangeID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, districts, nil)
}

// Battalions godoc
// @Summary List battalions of a district
// @Tags Geography
// @Produce json
// @Param districtId path int true "District ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /geography/districts/{districtId}/battalions [get]
func (h *GeographyHandler) Battalions(c *gin.Context) {
	districtID, err := paramInt64(c, "districtId")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "districtId must be an integer"))
		return
	}
	battalions, err := h.service.Battalions(c.Request.Context(), districtID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, battalions, nil)
}

// Companies godoc
// @Summary List companies of a battalion
// @Tags Geography
// @Produce json
// @Param battalionId path int true "Battalion ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /geography/battalions/{battalionId}/companies [get]
func (h *GeographyHandler) Companies(c *gin.Context) {
	battalionID, err := paramInt64(c, "battalionId")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "battalionId must be an integer"))
		return
	}
	companies, err := h.service.Companies(c.Request.Context(), battalionID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, companies, nil)
}
