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

// PersonHandler exposes endpoints for people.
type PersonHandler struct {
	people *service.PersonService
}

// NewPersonHandler constructs PersonHandler.
func NewPersonHandler(people *service.PersonService) *PersonHandler {
	return &PersonHandler{people: people}
}

// List godoc
// @Summary List people
// @Tags People
// @Produce json
// @Param search query string false "Search by name, national id or registration number"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /people [get]
func (h *PersonHandler) List(c *gin.Context) {
	var filter models.PersonFilter
	filter.Search = strings.TrimSpace(c.Query("search"))
	filter.Page, filter.PageSize = paginationFrom(c)
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	people, total, err := h.people.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, people, paginationMeta(filter.Page, filter.PageSize, total))
}

// Get godoc
// @Summary Get person
// @Tags People
// @Produce json
// @Param id path string true "Person ID"
// @Success 200 {object} response.Envelope
// @Router /people/{id} [get]
func (h *PersonHandler) Get(c *gin.Context) {
	person, err := h.people.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, person, nil)
}

// Create godoc
// @Summary Create person
// @Tags People
// @Accept json
// @Produce json
// @Param payload body models.SavePersonRequest true "Person payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /people [post]
func (h *PersonHandler) Create(c *gin.Context) {
	var req models.SavePersonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	person, err := h.people.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, person)
}

// Update godoc
// @Summary Update person
// @Tags People
// @Accept json
// @Produce json
// @Param id path string true "Person ID"
// @Param payload body models.SavePersonRequest true "Person payload"
// @Success 200 {object} response.Envelope
// @Router /people/{id} [put]
func (h *PersonHandler) Update(c *gin.Context) {
	var req models.SavePersonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	person, err := h.people.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, person, nil)
}

// Delete godoc
// @Summary Delete person
// @Tags People
// @Produce json
// @Param id path string true "Person ID"
// @Success 204
// @Failure 409 {object} response.Envelope
// @Router /people/{id} [delete]
func (h *PersonHandler) Delete(c *gin.Context) {
	if err := h.people.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
