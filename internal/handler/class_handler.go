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

// ClassHandler exposes endpoints for classes.
type ClassHandler struct {
	classes     *service.ClassService
	enrollments *service.EnrollmentService
}

// NewClassHandler constructs ClassHandler.
func NewClassHandler(classes *service.ClassService, enrollments *service.EnrollmentService) *ClassHandler {
	return &ClassHandler{classes: classes, enrollments: enrollments}
}

// List godoc
// @Summary List classes
// @Tags Classes
// @Produce json
// @Param search query string false "Search by name"
// @Param status query string false "Filter by status"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /classes [get]
func (h *ClassHandler) List(c *gin.Context) {
	var filter models.ClassFilter
	filter.Search = strings.TrimSpace(c.Query("search"))
	filter.Status = models.ClassStatus(c.Query("status"))
	filter.Page, filter.PageSize = paginationFrom(c)
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	classes, total, err := h.classes.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, classes, paginationMeta(filter.Page, filter.PageSize, total))
}

// Get godoc
// @Summary Get class detail
// @Tags Classes
// @Produce json
// @Param id path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Router /classes/{id} [get]
func (h *ClassHandler) Get(c *gin.Context) {
	class, err := h.classes.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, class, nil)
}

// Create godoc
// @Summary Create class
// @Tags Classes
// @Accept json
// @Produce json
// @Param payload body models.SaveClassRequest true "Class payload"
// @Success 201 {object} response.Envelope
// @Router /classes [post]
func (h *ClassHandler) Create(c *gin.Context) {
	var req models.SaveClassRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	class, err := h.classes.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, class)
}

// Update godoc
// @Summary Update class
// @Tags Classes
// @Accept json
// @Produce json
// @Param id path string true "Class ID"
// @Param payload body models.SaveClassRequest true "Class payload"
// @Success 200 {object} response.Envelope
// @Router /classes/{id} [put]
func (h *ClassHandler) Update(c *gin.Context) {
	var req models.SaveClassRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	class, err := h.classes.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, class, nil)
}

// Delete godoc
// @Summary Delete class
// @Tags Classes
// @Produce json
// @Param id path string true "Class ID"
// @Success 204
// @Failure 409 {object} response.Envelope
// @Router /classes/{id} [delete]
func (h *ClassHandler) Delete(c *gin.Context) {
	if err := h.classes.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ExportRoster godoc
// @Summary Export class roster
// @Tags Classes
// @Produce text/csv
// @Produce application/pdf
// @Param id path string true "Class ID"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} file
// @Router /classes/{id}/roster [get]
func (h *ClassHandler) ExportRoster(c *gin.Context) {
	format := service.RosterFormat(strings.ToLower(c.DefaultQuery("format", "csv")))
	export, err := h.enrollments.ExportRoster(c.Request.Context(), c.Param("id"), format)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+export.Filename+`"`)
	c.Data(http.StatusOK, export.ContentType, export.Payload)
}
