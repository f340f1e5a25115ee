// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// CORS, security headers, authentication, idempotency, and rate limiting.
//
// Route groups:
//   - /health, /metrics, /swagger/*any       operational
//   - {base}/ebooks...                       public catalog (gzip)
//   - {base}/me, /purchases, /orders, ...    bearer token, per-user limits
//   - {base}/admin/...                       bearer token + stored admin role
//   - {base}/webhooks/razorpay               HMAC body signature, per-IP limits
//   - /files/*path, /covers/*path            signed or public file reads
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/text/language"
	"gorm.io/gorm"

	_ "github.com/tbourn/engibriefs-store/docs"
	"github.com/tbourn/engibriefs-store/internal/config"
	"github.com/tbourn/engibriefs-store/internal/events"
	"github.com/tbourn/engibriefs-store/internal/http/handlers"
	"github.com/tbourn/engibriefs-store/internal/http/middleware"
	"github.com/tbourn/engibriefs-store/internal/payment"
	"github.com/tbourn/engibriefs-store/internal/services"
	"github.com/tbourn/engibriefs-store/internal/storage"
)

// jsonBodyLimit caps every non-upload request body.
const jsonBodyLimit = 1 << 20

// Deps are the collaborators constructed at process start.
type Deps struct {
	DB       *gorm.DB
	Gateway  payment.Gateway
	Store    *storage.Store
	Events   events.Publisher
	Verifier middleware.TokenVerifier
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine and builds the application services from d and cfg.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. ContextLogger + RedactingLogger: scoped logger, PII-scrubbed access log
//  4. Recovery: capture panics after logger
//  5. Metrics
//  6. CORS and Security headers
//
// Per group, authentication runs before idempotency validation, which runs
// before the rate limiter so stored replays bypass it.
func RegisterRoutes(r *gin.Engine, d Deps, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Request-scoped logger, then access log with redaction
	r.Use(middleware.ContextLogger())
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskQueryParams: []string{"razorpay_signature"},
	}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 6) CORS posture and security headers
	r.Use(corsMiddleware(cfg.CORS.AllowedOrigins)...)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      false,
		EnablePolicy: true,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Dependency injection: services ← db/gateway/store/events
	catalog := services.NewCatalogService(d.DB)
	accounts := &services.AccountService{DB: d.DB}
	payments := &services.PaymentService{
		DB:            d.DB,
		KeySecret:     cfg.Payment.KeySecret,
		WebhookSecret: cfg.Payment.WebhookSecret,
		Events:        d.Events,
	}
	entitlements := &services.EntitlementService{DB: d.DB, Signer: d.Store}
	idem := &services.IdempotencyService{DB: d.DB, TTL: cfg.IdempotencyTTL}

	h := handlers.New(handlers.Deps{
		Catalog:  catalog,
		Accounts: accounts,
		Orders: &services.OrderService{
			DB:        d.DB,
			Gateway:   d.Gateway,
			MinAmount: cfg.Payment.MinAmount,
			Currency:  cfg.Payment.Currency,
		},
		Payments:     payments,
		Entitlements: entitlements,
		Checkout:     &services.CheckoutService{Payments: payments, Entitlements: entitlements},
		Admin: &services.AdminService{
			DB:          d.DB,
			Store:       d.Store,
			Accounts:    accounts,
			Catalog:     catalog,
			TitleLocale: language.English,
		},
		Blog:           &services.BlogService{DB: d.DB, Accounts: accounts, MaxPageSize: 50},
		Idempotency:    idem,
		Files:          d.Store,
		MaxUploadBytes: cfg.Storage.MaxUploadBytes,
	})

	perUser := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP())
	perIP := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByIP())

	// Signed and public file reads live outside the API base.
	files := r.Group("", perIP.Handler())
	{
		files.GET("/files/*path", h.ServeFile)
		files.GET("/covers/*path", h.ServeCover)
	}

	api := groupWithPrefix(r, cfg.APIBasePath)

	// Public catalog
	catalogGroup := api.Group("/ebooks", perIP.Handler(), gzip.Gzip(gzip.DefaultCompression))
	{
		catalogGroup.GET("", h.ListEbooks)
		catalogGroup.GET("/search", h.SearchEbooks)
		catalogGroup.GET("/:id", h.GetEbook)
	}

	// Public blog
	blogGroup := api.Group("/blogs", perIP.Handler(), gzip.Gzip(gzip.DefaultCompression))
	{
		blogGroup.GET("", h.ListBlogs)
		blogGroup.GET("/:slug", h.GetBlog)
		blogGroup.GET("/:slug/comments", h.ListComments)
	}

	// Gateway callbacks authenticate by body signature, not bearer token.
	api.POST("/webhooks/razorpay", limitBody(jsonBodyLimit), perIP.Handler(), h.RazorpayWebhook)

	authed := api.Group("",
		middleware.Authenticate(d.Verifier),
		middleware.IdempotencyValidator(middleware.IdempotencyOptions{MaxLen: 200}, idempotencyLookup(idem)),
		perUser.Handler(),
		middleware.SecurityHeaders(middleware.SecurityOptions{NoStore: true}),
	)

	user := authed.Group("", limitBody(jsonBodyLimit))
	{
		user.GET("/me", h.Me)
		user.GET("/purchases", h.ListPurchases)
		user.POST("/orders", h.CreateOrder)
		user.POST("/payments/verify", h.VerifyPayment)
		user.POST("/payments/complete", h.CompleteCheckout)
		user.POST("/downloads", h.CreateDownload)
		user.POST("/blogs/:slug/comments", h.CreateComment)
	}

	// Uploads are capped by the handler at cfg.Storage.MaxUploadBytes.
	admin := authed.Group("/admin", middleware.RequireAdmin(accounts.IsAdmin))
	{
		admin.POST("/ebooks", h.UploadEbook)
		admin.DELETE("/ebooks/:id", limitBody(jsonBodyLimit), h.DeleteEbook)
	}
	adminJSON := admin.Group("", limitBody(jsonBodyLimit))
	{
		adminJSON.GET("/blogs", h.AdminListBlogs)
		adminJSON.GET("/blogs/:id", h.AdminGetBlog)
		adminJSON.POST("/blogs", h.CreateBlog)
		adminJSON.PUT("/blogs/:id", h.UpdateBlog)
		adminJSON.PATCH("/blogs/:id/status", h.SetBlogStatus)
		adminJSON.DELETE("/blogs/:id", h.DeleteBlog)
		adminJSON.DELETE("/comments/:id", h.DeleteComment)
	}
}

// idempotencyLookup adapts the stored records to the middleware's replay shape.
func idempotencyLookup(s *services.IdempotencyService) middleware.IdempotencyLookup {
	return func(ctx context.Context, userID, scope, key string, now time.Time) (*middleware.StoredResponse, error) {
		rec, err := s.Lookup(ctx, userID, scope, key, now)
		if err != nil || rec == nil {
			return nil, err
		}
		return &middleware.StoredResponse{Status: rec.Status, Body: []byte(rec.Payload), RequestHash: rec.RequestHash}, nil
	}
}

// corsMiddleware returns the CORS posture: allow all origins when none are
// configured, otherwise echo allowlisted origins.
func corsMiddleware(origins []string) []gin.HandlerFunc {
	allowHeaders := []string{
		"Origin", "Content-Type", "Accept", "Authorization",
		middleware.HeaderIdempotencyKey, handlers.HeaderWebhookSignature,
	}
	exposeHeaders := []string{"X-Request-ID", "Content-Length", "ETag", middleware.HeaderIdempotencyReplayed}
	methods := []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}

	if len(origins) == 0 {
		return []gin.HandlerFunc{
			// Force ACAO: * even for requests without an Origin header.
			func(c *gin.Context) {
				c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
				c.Next()
			},
			cors.New(cors.Config{
				AllowAllOrigins:  true,
				AllowMethods:     methods,
				AllowHeaders:     allowHeaders,
				ExposeHeaders:    exposeHeaders,
				AllowCredentials: false, // must remain false with AllowAllOrigins
				MaxAge:           12 * time.Hour,
			}),
		}
	}

	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[o] = struct{}{}
	}
	return []gin.HandlerFunc{
		func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		},
		cors.New(cors.Config{
			AllowOrigins:     origins,
			AllowMethods:     methods,
			AllowHeaders:     allowHeaders,
			ExposeHeaders:    exposeHeaders,
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}),
	}
}

// limitBody returns a Gin middleware that caps the request body size to
// maxBytes using http.MaxBytesReader. Requests exceeding the cap will cause
// downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
