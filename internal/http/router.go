// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging, panic recovery, metrics, CORS,
// security headers, compression, and rate limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
//   - Production-ready CORS and security header posture
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/wishloop/go-market-backend/internal/chat"
	"github.com/wishloop/go-market-backend/internal/config"
	"github.com/wishloop/go-market-backend/internal/http/handlers"
	"github.com/wishloop/go-market-backend/internal/http/middleware"
	"github.com/wishloop/go-market-backend/internal/services"
)

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. It configures observability (tracing, metrics), rate limiting, CORS
// and security headers, health and metrics endpoints, and then mounts the
// versioned public API under cfg.APIBasePath.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. Logger: structured access logs
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. Rate limiter (per user/IP)
//  8. CORS and Security headers
//  9. Gzip (WebSocket and metrics excluded)
func RegisterRoutes(r *gin.Engine, db *gorm.DB, hub *chat.Hub, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured access logging
	r.Use(middleware.Logger())

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (1 MiB)
	r.Use(limitBody(1 << 20))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) Token-bucket rate limiter per user/IP
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP())
	r.Use(rl.Handler())

	// 8) CORS posture (safe defaults: allow all if none configured)
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header (helps tests and simple health checks).
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-User-ID"},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		// Echo ACAO with the request Origin when it is in the allowlist (in addition to gin-contrib/cors).
		allowed := make(map[string]struct{}, len(cfg.CORS.AllowedOrigins))
		for _, o := range cfg.CORS.AllowedOrigins {
			allowed[o] = struct{}{}
		}
		r.Use(func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-User-ID"},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Security headers (HSTS only when enabled and request is HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      false,
		EnablePolicy: true,
	}))

	// 9) Response compression; hijacked and streaming endpoints stay uncompressed.
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPathsRegexs([]string{`^/ws/.*`, `^/metrics$`})))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	// Dependency injection: services ← db/hub/config
	alloc := services.NewDirectoryAllocator(db)
	alloc.MaxCandidates = cfg.Market.AllocMaxAgents
	wishSvc := services.NewWishService(db, alloc, hub)
	wishSvc.SpeedKmh = cfg.Market.DeliverySpeedKmh
	dealSvc := services.NewDealService(db, hub)
	orderSvc := services.NewOrderService(db, hub)
	orderSvc.VendorShare = cfg.Market.VendorShare
	orderSvc.SpeedKmh = cfg.Market.DeliverySpeedKmh
	partnerSvc := services.NewPartnerService(db)
	earnSvc := services.NewEarningsService(db)
	chatSvc := services.NewChatService(db, hub)
	chatSvc.MaxContentRunes = cfg.Market.ChatMaxRunes

	h := handlers.New(wishSvc, dealSvc, orderSvc, partnerSvc, earnSvc, chatSvc)

	auth := middleware.Auth(db)
	agent := middleware.RequireAgent(db)
	vendor := middleware.RequireVendor(db)
	partner := middleware.RequirePartner(db)

	// Public API
	apiBase := cfg.APIBasePath // e.g. "/api/v1"
	api := groupWithPrefix(r, apiBase)
	api.Use(auth)
	{
		// Wishes (wisher side)
		api.POST("/wishes", h.CreateWish)
		api.GET("/wishes", h.ListWishes)
		api.GET("/wishes/:id", h.GetWish)
		api.GET("/wishes/:id/track", h.TrackWish)
		api.POST("/wishes/:id/cancel", h.CancelWish)

		// Wishes (partner side)
		api.GET("/wishes/available", agent, h.ListAvailableWishes)
		api.GET("/wishes/assigned", partner, h.ListAssignedWishes)
		api.POST("/wishes/:id/accept", partner, h.AcceptWish)
		api.POST("/wishes/:id/decline", partner, h.DeclineWish)
		api.POST("/wishes/:id/start", partner, h.StartWish)
		api.POST("/wishes/:id/complete", partner, h.CompleteWish)

		// Deals
		api.POST("/wishes/:id/deals", partner, h.ProposeDeal)
		api.GET("/deals", partner, h.ListDeals)
		api.GET("/deals/:id", h.GetDeal)
		api.POST("/deals/:id/counter", partner, h.CounterDeal)
		api.POST("/deals/:id/accept", h.AcceptDeal)
		api.POST("/deals/:id/reject", h.RejectDeal)
		api.POST("/deals/:id/start", partner, h.StartDeal)
		api.POST("/deals/:id/complete", partner, h.CompleteDeal)

		// Orders (customer side)
		api.POST("/orders", h.CreateOrder)
		api.GET("/orders", h.ListOrders)
		api.GET("/orders/:id", h.GetOrder)
		api.GET("/orders/:id/eta", h.OrderETA)
		api.POST("/orders/:id/cancel", h.CancelOrder)

		// Orders (vendor side)
		api.GET("/vendor/orders", vendor, h.ListVendorOrders)
		api.POST("/vendor/orders/:id/confirm", vendor, h.ConfirmOrder)
		api.POST("/vendor/orders/:id/prepare", vendor, h.PrepareOrder)
		api.POST("/vendor/orders/:id/ready", vendor, h.ReadyOrder)
		api.POST("/vendor/orders/:id/deliver", vendor, h.DeliverOrderByVendor)
		api.POST("/vendor/orders/:id/request-agent", vendor, h.RequestAgentDelivery)
		api.POST("/vendor/orders/:id/cancel", vendor, h.CancelOrderByVendor)

		// Orders (agent side)
		api.GET("/agent/orders/available", agent, h.ListAvailableOrders)
		api.GET("/agent/orders", agent, h.ListAgentOrders)
		api.POST("/agent/orders/:id/accept", agent, h.AcceptOrder)
		api.POST("/agent/orders/:id/pickup", agent, h.PickUpOrder)
		api.POST("/agent/orders/:id/on-the-way", agent, h.OrderOnTheWay)
		api.POST("/agent/orders/:id/nearby", agent, h.OrderNearby)
		api.POST("/agent/orders/:id/deliver", agent, h.DeliverOrder)
		api.PUT("/agent/orders/:id/location", agent, h.ReportDeliveryLocation)

		// Partner profile, availability, location, earnings
		api.GET("/partner/profile", partner, h.GetPartnerProfile)
		api.PUT("/partner/status", partner, h.UpdatePartnerStatus)
		api.GET("/partner/stats", partner, h.GetPartnerStats)
		api.PUT("/partner/location", partner, h.ReportLocation)
		api.GET("/partner/earnings", partner, h.GetEarningsSummary)
		api.GET("/partner/earnings/history", partner, h.ListEarnings)

		// Chat (REST)
		api.GET("/chat/rooms", h.ListRooms)
		api.GET("/chat/rooms/:id/messages", h.ListMessages)
		api.POST("/chat/rooms/:id/messages", h.SendMessage)
	}

	// Chat (WebSocket); token accepted as query param for browser clients.
	r.GET("/ws/chat/:id", auth, handlers.ChatSocket(hub, chatSvc))
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
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
