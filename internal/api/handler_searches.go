package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"court-watch-backend/internal/mw"
	"court-watch-backend/internal/watch"
)

// ListSearches handles GET /api/searches.
func (h *Handler) ListSearches(c *gin.Context) {
	searches, err := h.Searches.List(c.Request.Context(), mw.UserID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, searches)
}

// CreateSearch handles POST /api/searches.
func (h *Handler) CreateSearch(c *gin.Context) {
	var in watch.Input
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	search, err := h.Searches.Create(c.Request.Context(), mw.UserID(c), in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, search)
}

// GetSearch handles GET /api/searches/:id.
func (h *Handler) GetSearch(c *gin.Context) {
	id, ok := int64Param(c, "id")
	if !ok {
		return
	}
	search, err := h.Searches.Get(c.Request.Context(), mw.UserID(c), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, search)
}

// UpdateSearch handles PUT /api/searches/:id.
func (h *Handler) UpdateSearch(c *gin.Context) {
	id, ok := int64Param(c, "id")
	if !ok {
		return
	}
	var in watch.Input
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	search, err := h.Searches.Update(c.Request.Context(), mw.UserID(c), id, in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, search)
}

// DeleteSearch handles DELETE /api/searches/:id.
func (h *Handler) DeleteSearch(c *gin.Context) {
	id, ok := int64Param(c, "id")
	if !ok {
		return
	}
	if err := h.Searches.Delete(c.Request.Context(), mw.UserID(c), id); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
