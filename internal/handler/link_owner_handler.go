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

// LinkOwnerHandler exposes endpoints for owners of exclusive class links.
// Courses and modalities get one instance each; the routes behave the same.
type LinkOwnerHandler struct {
	owners *service.LinkService
}

// NewLinkOwnerHandler constructs a LinkOwnerHandler.
func NewLinkOwnerHandler(owners *service.LinkService) *LinkOwnerHandler {
	return &LinkOwnerHandler{owners: owners}
}

// List returns owners with pagination.
func (h *LinkOwnerHandler) List(c *gin.Context) {
	var filter models.LinkOwnerFilter
	filter.Search = strings.TrimSpace(c.Query("search"))
	filter.Page, filter.PageSize = paginationFrom(c)
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	owners, total, err := h.owners.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, owners, paginationMeta(filter.Page, filter.PageSize, total))
}

// Get returns one owner with its linked classes.
func (h *LinkOwnerHandler) Get(c *gin.Context) {
	owner, err := h.owners.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, owner, nil)
}

// AvailableClasses lists classes that can still be linked to the owner. With
// no id query parameter it lists classes free for a new owner.
func (h *LinkOwnerHandler) AvailableClasses(c *gin.Context) {
	classes, err := h.owners.AvailableClasses(c.Request.Context(), c.Query("owner_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, classes, nil)
}

// Create stores a new owner with its class links. A 409 means at least one
// requested class already belongs to another owner and nothing was saved.
func (h *LinkOwnerHandler) Create(c *gin.Context) {
	var req models.SaveLinkOwnerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	owner, err := h.owners.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, owner)
}

// Update edits an owner and replaces its class links under the same
// all-or-nothing rule as Create.
func (h *LinkOwnerHandler) Update(c *gin.Context) {
	var req models.SaveLinkOwnerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	owner, err := h.owners.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, owner, nil)
}

// Delete removes an owner. Owners with linked classes are refused with 409.
func (h *LinkOwnerHandler) Delete(c *gin.Context) {
	if err := h.owners.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
