package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"court-watch-backend/config"
	"court-watch-backend/internal/mw"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(cfg config.ServerConfig, deps Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	ttl := time.Duration(cfg.CacheTTLSeconds) * time.Second
	responses := cache.New(ttl, 2*ttl)
	caching := mw.Cache(responses, ttl)
	handler := NewHandler(deps, responses)

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	api.Use(mw.RateLimiter(mw.NewIPRateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst)))
	{
		api.GET("/locations", caching, handler.GetLocations)
		api.GET("/vapid_public_key", handler.GetVAPIDPublicKey)

		user := api.Group("")
		user.Use(mw.User(cfg.UserHeader))

		user.POST("/locations", handler.RefreshLocation)

		user.GET("/searches", handler.ListSearches)
		user.POST("/searches", handler.CreateSearch)
		user.GET("/searches/:id", handler.GetSearch)
		user.PUT("/searches/:id", handler.UpdateSearch)
		user.DELETE("/searches/:id", handler.DeleteSearch)

		user.POST("/tasks", handler.SubmitTask)
		user.GET("/tasks/:id", handler.GetTask)
		user.POST("/tasks/:id/cancel", handler.CancelTask)

		user.GET("/subscriptions", handler.GetSubscription)
		user.PUT("/subscriptions", handler.PutSubscription)
		user.DELETE("/subscriptions", handler.DeleteSubscription)

		user.DELETE("/admin/cache", handler.PurgeCache)
	}

	return r
}
