package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"court-watch-backend/internal/model"
	"court-watch-backend/internal/mw"
)

// SubmitTask handles POST /api/tasks. The search runs in the background; the
// caller polls GET /api/tasks/:id.
func (h *Handler) SubmitTask(c *gin.Context) {
	var params model.SearchParams
	if err := c.ShouldBindJSON(&params); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	t, err := h.Tasks.Submit(c.Request.Context(), mw.UserID(c), params)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"task_id": t.ID, "status": t.Status})
}

// GetTask handles GET /api/tasks/:id.
func (h *Handler) GetTask(c *gin.Context) {
	t, err := h.Tasks.GetStatus(c.Request.Context(), mw.UserID(c), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

// CancelTask handles POST /api/tasks/:id/cancel. A task that already reached
// a terminal state yields 409.
func (h *Handler) CancelTask(c *gin.Context) {
	id := c.Param("id")
	if err := h.Tasks.Cancel(c.Request.Context(), mw.UserID(c), id); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"task_id": id, "status": model.TaskCancelled})
}
