package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"court-watch-backend/internal/mw"
)

// PurgeCache handles DELETE /api/admin/cache. Without older_than_minutes every
// freshness entry is dropped, forcing live fetches everywhere.
func (h *Handler) PurgeCache(c *gin.Context) {
	var olderThan time.Duration
	if raw := c.Query("older_than_minutes"); raw != "" {
		minutes, err := strconv.Atoi(raw)
		if err != nil || minutes < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "older_than_minutes must be a non-negative integer"})
			return
		}
		olderThan = time.Duration(minutes) * time.Minute
	}

	deleted, err := h.Freshness.Purge(c.Request.Context(), olderThan)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.Log.Infow("freshness cache purged", "deleted", deleted, "older_than", olderThan, "user_id", mw.UserID(c))
	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}
