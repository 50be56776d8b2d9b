package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"court-watch-backend/internal/errs"
	"court-watch-backend/internal/model"
	"court-watch-backend/internal/mw"
	"court-watch-backend/internal/store"
)

const locationsPath = "/api/locations"

// LocationResponse is a location together with its courts.
type LocationResponse struct {
	model.Location
	Courts []model.Court `json:"courts"`
}

// GetLocations handles the GET /api/locations request.
func (h *Handler) GetLocations(c *gin.Context) {
	ctx := c.Request.Context()
	locations, err := h.Store.ListLocations(ctx)
	if err != nil {
		h.respondError(c, err)
		return
	}

	responses := make([]LocationResponse, 0, len(locations))
	for _, loc := range locations {
		courts, err := h.Store.ListCourts(ctx, loc.ID)
		if err != nil {
			h.respondError(c, err)
			return
		}
		responses = append(responses, LocationResponse{Location: loc, Courts: courts})
	}
	c.JSON(http.StatusOK, responses)
}

type refreshLocationRequest struct {
	Provider string `json:"provider"`
	Slug     string `json:"slug" binding:"required"`
}

type refreshLocationResponse struct {
	Location *model.Location    `json:"location"`
	Courts   store.PromoteStats `json:"courts"`
}

// RefreshLocation handles POST /api/locations. It imports or refreshes a club
// by its public slug.
func (h *Handler) RefreshLocation(c *gin.Context) {
	var req refreshLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Provider == "" {
		names := h.Providers.Names()
		if len(names) != 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "provider is required"})
			return
		}
		req.Provider = names[0]
	}

	p, err := h.Providers.Get(req.Provider)
	if err != nil {
		h.respondError(c, errs.Invalidf("unknown provider %q", req.Provider))
		return
	}

	loc, stats, err := h.Refresher.RefreshLocation(c.Request.Context(), p, strings.TrimSpace(req.Slug))
	if err != nil {
		h.respondError(c, err)
		return
	}
	mw.Invalidate(h.responses, locationsPath)

	h.Log.Infow("location refreshed", "location_id", loc.ID, "slug", loc.Slug, "user_id", mw.UserID(c))
	c.JSON(http.StatusOK, refreshLocationResponse{Location: loc, Courts: stats})
}
