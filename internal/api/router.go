package api

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"cagerack-backend/internal/mw"
)

// RouterConfig carries the HTTP tuning knobs from config.ServerConfig.
type RouterConfig struct {
	RateLimitPerSec float64
	RateLimitBurst  int
	CacheTTL        time.Duration
	DefaultActorID  int64
}

const (
	limiterSweepEvery = time.Minute
	limiterIdle       = 10 * time.Minute
)

// NewRouter creates and configures a new Gin router. Idle per-IP limiters are
// swept until ctx is cancelled.
func NewRouter(ctx context.Context, h *Handler, cfg RouterConfig, log *zap.Logger) *gin.Engine {
	if log == nil {
		log = zap.NewNop()
	}

	r := gin.New()
	r.Use(gin.Recovery(), mw.RequestLogger(log))

	r.GET("/health", h.Health)

	limiter := mw.NewIPRateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst)
	go limiter.Sweep(ctx, limiterSweepEvery, limiterIdle)

	// Entries expire after the TTL and are swept every two TTLs.
	responses := mw.NewResponseCache(cache.New(cfg.CacheTTL, 2*cfg.CacheTTL), cfg.CacheTTL)
	caching := responses.Cache()

	api := r.Group("/api")
	api.Use(limiter.Middleware(), mw.Actor(cfg.DefaultActorID), responses.InvalidateOnWrite())
	{
		api.GET("/racks", caching, h.ListRacks)
		api.POST("/racks", h.CreateRack)
		api.GET("/racks/:rack_id", caching, h.GetRack)
		api.PUT("/racks/:rack_id", h.UpdateRack)
		api.DELETE("/racks/:rack_id", h.DeleteRack)
		api.GET("/racks/:rack_id/cells", caching, h.GetRackCells)

		api.POST("/cells/:cell_id/assign", h.AssignCell)
		api.POST("/cells/:cell_id/release", h.ReleaseCell)

		api.GET("/professors", caching, h.ListProfessors)
		api.POST("/professors", h.CreateProfessor)
		api.GET("/professors/:professor_id", caching, h.GetProfessor)
		api.PUT("/professors/:professor_id", h.UpdateProfessor)
		api.DELETE("/professors/:professor_id", h.DeleteProfessor)

		api.GET("/occupancy", h.GetOccupancy)

		api.GET("/subscriptions", h.GetSubscription)
		api.PUT("/subscriptions", h.PutSubscription)
		api.DELETE("/subscriptions", h.DeleteSubscription)
		api.GET("/vapid_public_key", h.GetVAPIDPublicKey)
	}

	return r
}
