package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"court-watch-backend/internal/errs"
	"court-watch-backend/internal/model"
	"court-watch-backend/internal/provider"
	"court-watch-backend/internal/store"
	"court-watch-backend/internal/task"
	"court-watch-backend/internal/watch"
)

// TaskService is the task polling surface.
type TaskService interface {
	Submit(ctx context.Context, userID string, params model.SearchParams) (*model.SearchTask, error)
	GetStatus(ctx context.Context, userID, id string) (*model.SearchTask, error)
	Cancel(ctx context.Context, userID, id string) error
}

// LocationRefresher imports a club and its courts from a provider.
type LocationRefresher interface {
	RefreshLocation(ctx context.Context, p provider.Provider, slug string) (*model.Location, store.PromoteStats, error)
}

// CachePurger drops freshness entries older than the given age.
type CachePurger interface {
	Purge(ctx context.Context, olderThan time.Duration) (int64, error)
}

// Deps are the collaborators the handlers need.
type Deps struct {
	Store     store.Store
	Searches  *watch.Service
	Tasks     TaskService
	Providers *provider.Registry
	Refresher LocationRefresher
	Freshness CachePurger
	WebPush   *webpush.Options
	Log       *zap.SugaredLogger
}

// Handler holds shared dependencies for API handlers.
type Handler struct {
	Deps
	responses *cache.Cache
}

// NewHandler creates a new API handler. responses is the GET cache shared
// with the router so writes can invalidate it.
func NewHandler(deps Deps, responses *cache.Cache) *Handler {
	return &Handler{Deps: deps, responses: responses}
}

// respondError maps error kinds onto status codes. Anything unclassified is
// logged and reported as a 500 without details.
func (h *Handler) respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errs.Is(err, errs.ErrInvalid):
		status = http.StatusBadRequest
	case errs.Is(err, errs.ErrNotFound):
		status = http.StatusNotFound
	case errs.Is(err, errs.ErrForbidden):
		status = http.StatusForbidden
	case errs.Is(err, errs.ErrConflict):
		status = http.StatusConflict
	case errs.Is(err, task.ErrQueueFull):
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		h.Log.Errorw("request failed", "method", c.Request.Method, "path", c.FullPath(), "error", err)
		c.AbortWithStatusJSON(status, gin.H{"error": "internal error"})
		return
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

func int64Param(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}
