package api

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/provenonce/beats/internal/anchor"
	"github.com/provenonce/beats/internal/api/handlers"
	"github.com/provenonce/beats/internal/api/middleware"
	"github.com/provenonce/beats/internal/config"
	"github.com/provenonce/beats/internal/cron"
	"github.com/provenonce/beats/internal/keys"
	"github.com/provenonce/beats/internal/ledger"
	"github.com/provenonce/beats/internal/ratelimit"
)

// MaxVerifyBody caps verify and work-proof request bodies. A chain of
// 1000 beats with hex hashes fits comfortably.
const MaxVerifyBody = 512 * 1024

// Router wraps the Gin router with handlers
type Router struct {
	engine           *gin.Engine
	healthHandler    *handlers.HealthHandler
	anchorHandler    *handlers.AnchorHandler
	verifyHandler    *handlers.VerifyHandler
	workProofHandler *handlers.WorkProofHandler
	timestampHandler *handlers.TimestampHandler
	cronHandler      *handlers.CronHandler

	verifyLimiter *ratelimit.Limiter
	quotas        []*ratelimit.Limiter
}

// NewRouter creates a new Router with all handlers
func NewRouter(cfg *config.Config, lg ledger.Ledger, cache *anchor.Cache,
	signer *keys.Signer, advancer *cron.Advancer) *Router {
	gin.SetMode(gin.ReleaseMode)

	verifyLimiter := ratelimit.NewWithCap(cfg.Limits.VerifyPerMin, time.Minute, cfg.Limits.MaxKeys)
	free := handlers.TimestampQuota{
		PerMinute: ratelimit.NewWithCap(cfg.Limits.TimestampPerMin, time.Minute, cfg.Limits.MaxKeys),
		PerDay:    ratelimit.NewWithCap(cfg.Limits.TimestampPerDay, 24*time.Hour, cfg.Limits.MaxKeys),
	}
	pro := handlers.TimestampQuota{
		PerMinute: ratelimit.NewWithCap(cfg.Limits.ProPerMin, time.Minute, cfg.Limits.MaxKeys),
		PerDay:    ratelimit.NewWithCap(cfg.Limits.ProPerDay, 24*time.Hour, cfg.Limits.MaxKeys),
	}

	r := &Router{
		engine:           gin.New(),
		healthHandler:    handlers.NewHealthHandler(cache, lg),
		anchorHandler:    handlers.NewAnchorHandler(cache, signer),
		verifyHandler:    handlers.NewVerifyHandler(),
		workProofHandler: handlers.NewWorkProofHandler(cache, signer),
		timestampHandler: handlers.NewTimestampHandler(cache, lg, signer, cfg.RPC.URL,
			free, pro, cfg.Limits.TierHeader, cfg.ProTierToken),
		cronHandler:   handlers.NewCronHandler(advancer, cfg.CronSecret),
		verifyLimiter: verifyLimiter,
		quotas: []*ratelimit.Limiter{
			verifyLimiter, free.PerMinute, free.PerDay, pro.PerMinute, pro.PerDay,
		},
	}

	r.setupRoutes()
	return r
}

// Limiters returns every limiter the router owns, for background sweeping.
func (r *Router) Limiters() []*ratelimit.Limiter {
	return r.quotas
}

// setupRoutes configures API routes
func (r *Router) setupRoutes() {
	r.engine.Use(middleware.Recovery())
	r.engine.Use(middleware.Logger())
	// Global so preflights without a matching route still get headers;
	// cron paths are exempt inside the middleware.
	r.engine.Use(middleware.CORS())

	r.engine.GET("/api/cron/anchor", r.cronHandler.Get)

	r.engine.GET("/api/health", r.healthHandler.Get)

	v1 := r.engine.Group("/api/v1/beat")
	{
		v1.GET("/anchor", r.anchorHandler.GetAnchor)
		v1.GET("/key", r.anchorHandler.GetKeys)

		v1.GET("/verify", r.verifyHandler.GetMeta)
		v1.POST("/verify",
			middleware.RateLimit(r.verifyLimiter),
			middleware.RequireJSON(MaxVerifyBody),
			r.verifyHandler.Post)

		v1.POST("/work-proof",
			middleware.RateLimit(r.verifyLimiter),
			middleware.RequireJSON(MaxVerifyBody),
			r.workProofHandler.Post)

		// The timestamp handler applies its own tiered quotas.
		v1.POST("/timestamp",
			middleware.RequireJSON(handlers.MaxTimestampBody),
			r.timestampHandler.Post)
	}
}

// Engine returns the underlying Gin engine
func (r *Router) Engine() *gin.Engine {
	return r.engine
}

// Run starts the HTTP server
func (r *Router) Run(addr string) error {
	return r.engine.Run(addr)
}
