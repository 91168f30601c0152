// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// compression, CORS, security headers, idempotency, and rate limiting.
//
// Route map:
//
//	POST /webhooks/partner                             signed partner events (per-IP limit)
//	POST {base}/xp/award                               internal award (per-caller limit, Idempotency-Key)
//	GET  {base}/tenants/:tenantId/leaderboard
//	GET  {base}/tenants/:tenantId/members/:memberId
//	GET  {base}/tenants/:tenantId/members/:memberId/rewards
//	GET  {base}/tenants/:tenantId/xp-config             (PUT to replace)
//	GET  {base}/tenants/:tenantId/rewards               (PUT to replace)
//	GET  {base}/tenants/:tenantId/rewards/undelivered
//	GET  /health, /metrics, /swagger/*any (when enabled)
package httpapi

import (
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/text/language"
	"gorm.io/gorm"

	_ "github.com/tbourn/go-xp-engine/docs"
	"github.com/tbourn/go-xp-engine/internal/cache"
	"github.com/tbourn/go-xp-engine/internal/config"
	"github.com/tbourn/go-xp-engine/internal/http/handlers"
	"github.com/tbourn/go-xp-engine/internal/http/middleware"
	"github.com/tbourn/go-xp-engine/internal/services"
	"github.com/tbourn/go-xp-engine/internal/webhook"
)

// WebhookPath is where the partner delivers events.
const WebhookPath = "/webhooks/partner"

// Deps are the process-wide collaborators the routes need. Services are
// built from them here so the HTTP layer owns its wiring.
type Deps struct {
	DB      *gorm.DB
	Redis   *redis.Client
	Partner services.Partner
	IDs     *snowflake.Node
	// Tasks runs detached work (reward dispatch, push, activity log). The
	// caller drains it on shutdown.
	Tasks *services.Detached
}

// RegisterRoutes installs middleware and routes on r.
func RegisterRoutes(r *gin.Engine, d Deps, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{middleware.HeaderAPIKey, handlers.HeaderSignature},
	}))
	r.Use(middleware.Recovery())
	r.Use(limitBody(1 << 20))

	r.Use(middleware.Metrics("/metrics", "/health"))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics", WebhookPath})))

	useCORS(r, cfg.CORS)

	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS: cfg.Security.EnableHSTS,
		HSTSMaxAge: cfg.Security.HSTSMaxAge,
		NoStore:    true,
	}))

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// ---- services ----
	store := services.RepoStore{}
	boards := cache.NewLeaderboardCache(d.Redis, cfg.LeaderboardTTL)

	engine := services.NewXPEngine(d.DB, store, cache.NewCooldownStore(d.Redis, cfg.XP.Cooldown), boards, d.Tasks, d.IDs)
	rewards := services.NewRewardDispatcher(d.DB, store, d.Partner,
		cache.NewRewardClaims(d.Redis, cfg.Partner.TaskTimeout), d.Tasks)
	rewards.Locale = language.English

	ingress := &services.Ingress{
		Verifier: webhook.NewVerifier(cfg.Webhook.Secret, cfg.Webhook.Tolerance),
		Dedup:    cache.NewDeduper(d.Redis, "dedup:webhook:", cfg.Webhook.DedupTTL),
		Engine:   engine,
		Rewards:  rewards,
		Members:  services.NewMembership(d.DB, store),
		Tasks:    d.Tasks,
	}

	h := handlers.New(
		ingress,
		ingress,
		services.NewLeaderboard(d.DB, store, boards),
		services.NewQueries(d.DB, store, rewards),
		handlers.Options{WebhookBudget: cfg.Webhook.Budget},
	)

	// ---- routes ----
	webhookLimit := cache.NewFixedWindow(d.Redis, "rl:webhook:", cfg.Webhook.RatePerMin, time.Minute)
	r.POST(WebhookPath, middleware.RateLimit(webhookLimit, middleware.KeyByIP()), h.ReceiveWebhook)

	apiLimit := middleware.RateLimit(
		cache.NewFixedWindow(d.Redis, "rl:api:", cfg.APIRatePerMin, time.Minute),
		middleware.KeyByAPIKeyOrIP(),
	)
	awardKeys := cache.NewDeduper(d.Redis, "dedup:award:", cfg.XP.ActivityDedupTTL)

	api := groupWithPrefix(r, cfg.APIBasePath)
	{
		// Idempotency runs before the limiter so replays are answered
		// without spending the caller's budget.
		api.POST("/xp/award", middleware.Idempotency(awardKeys), apiLimit, h.AwardXP)

		t := api.Group("/tenants/:tenantId", apiLimit)
		t.GET("/leaderboard", h.GetLeaderboard)
		t.GET("/members/:memberId", h.GetMemberProgress)
		t.GET("/members/:memberId/rewards", h.ListMemberRewards)
		t.GET("/xp-config", h.GetXpConfig)
		t.PUT("/xp-config", h.PutXpConfig)
		t.GET("/rewards", h.GetRewardTable)
		t.PUT("/rewards", h.PutRewardTable)
		t.GET("/rewards/undelivered", h.ListUndeliveredRewards)
	}
}

// useCORS installs gin-contrib/cors. With no allowlist every origin is
// accepted without credentials.
func useCORS(r *gin.Engine, c config.CORSConfig) {
	conf := cors.Config{
		AllowMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders: []string{
			"Origin", "Content-Type", "Accept",
			middleware.HeaderAPIKey, middleware.HeaderIdempotencyKey,
		},
		ExposeHeaders: []string{
			"X-Request-ID", "Content-Length", "ETag", "Retry-After",
			"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset",
		},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}
	if len(c.AllowedOrigins) == 0 {
		conf.AllowAllOrigins = true
	} else {
		conf.AllowOrigins = c.AllowedOrigins
	}
	r.Use(cors.New(conf))
}

// limitBody caps request bodies; webhook payloads and admin updates are small.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix returns a route group for the given prefix, or the root
// group when prefix is empty or "/".
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
