package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/saed-edu/saed-api/internal/models"
	"github.com/saed-edu/saed-api/internal/service"
	appErrors "github.com/saed-edu/saed-api/pkg/errors"
	"github.com/saed-edu/saed-api/pkg/response"
)

// UnitHandler exposes endpoints for units.
type UnitHandler struct {
	units *service.UnitService
}

// NewUnitHandler constructs UnitHandler.
func NewUnitHandler(units *service.UnitService) *UnitHandler {
	return &UnitHandler{units: units}
}

// List godoc
// @Summary List units
// @Tags Units
// @Produce json
// @Param search query string false "Search by name"
// @Param class_id query string false "Filter by class"
// @Param active query bool false "Filter by active state"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /units [get]
func (h *UnitHandler) List(c *gin.Context) {
	var filter models.UnitFilter
	filter.Search = strings.TrimSpace(c.Query("search"))
	filter.ClassID = c.Query("class_id")
	if active := c.Query("active"); active != "" {
		v := active == "true"
		filter.Active = &v
	}
	filter.Page, filter.PageSize = paginationFrom(c)
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	units, total, err := h.units.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, units, paginationMeta(filter.Page, filter.PageSize, total))
}

// Get godoc
// @Summary Get unit detail
// @Tags Units
// @Produce json
// @Param id path string true "Unit ID"
// @Success 200 {object} response.Envelope
// @Router /units/{id} [get]
func (h *UnitHandler) Get(c *gin.Context) {
	unit, err := h.units.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, unit, nil)
}

// Create godoc
// @Summary Create unit
// @Tags Units
// @Accept json
// @Produce json
// @Param payload body models.SaveUnitRequest true "Unit payload"
// @Success 201 {object} response.Envelope
// @Router /units [post]
func (h *UnitHandler) Create(c *gin.Context) {
	var req models.SaveUnitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	unit, err := h.units.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, unit)
}

// Update godoc
// @Summary Update unit
// @Tags Units
// @Accept json
// @Produce json
// @Param id path string true "Unit ID"
// @Param payload body models.SaveUnitRequest true "Unit payload"
// @Success 200 {object} response.Envelope
// @Router /units/{id} [put]
func (h *UnitHandler) Update(c *gin.Context) {
	var req models.SaveUnitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	unit, err := h.units.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, unit, nil)
}

// Delete godoc
// @Summary Delete unit
// @Tags Units
// @Produce json
// @Param id path string true "Unit ID"
// @Success 204
// @Router /units/{id} [delete]
func (h *UnitHandler) Delete(c *gin.Context) {
	if err := h.units.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
