package router

import (
	"net/http"
	"os"
	"strconv"
	"strings"

	"moveregistry-backend/internal/config"
	"moveregistry-backend/internal/handlers"
	"moveregistry-backend/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// corsMiddleware applies the CORS policy.
// Priority: Environment Variable > YAML Config > Default (*)
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")

		var allowedOrigins []string
		allowCredentials := true
		maxAge := 3600

		if envOrigins := os.Getenv("CORS_ALLOWED_ORIGINS"); envOrigins != "" {
			for _, o := range strings.Split(envOrigins, ",") {
				if trimmed := strings.TrimSpace(o); trimmed != "" {
					allowedOrigins = append(allowedOrigins, trimmed)
				}
			}
		} else if config.AppConfig != nil && len(config.AppConfig.CORS.AllowedOrigins) > 0 {
			allowedOrigins = config.AppConfig.CORS.AllowedOrigins
			allowCredentials = config.AppConfig.CORS.AllowCredentials
			if config.AppConfig.CORS.MaxAge > 0 {
				maxAge = config.AppConfig.CORS.MaxAge
			}
		} else {
			allowedOrigins = []string{"*"}
		}

		if len(allowedOrigins) == 1 && allowedOrigins[0] == "*" {
			c.Header("Access-Control-Allow-Origin", "*")
		} else if origin != "" {
			allowed := false
			for _, allowedOrigin := range allowedOrigins {
				if strings.TrimSpace(allowedOrigin) == origin {
					allowed = true
					break
				}
			}
			if allowed {
				c.Header("Access-Control-Allow-Origin", origin)
			} else {
				logrus.WithFields(logrus.Fields{
					"request_origin":  origin,
					"allowed_origins": allowedOrigins,
					"path":            c.Request.URL.Path,
				}).Warn("🚫 CORS: Request blocked - Origin not in whitelist")
			}
		}

		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, Authorization, Cache-Control, Accept, PAYMENT-SIGNATURE, Payment-Signature")
		if allowCredentials {
			c.Header("Access-Control-Allow-Credentials", "true")
		}
		c.Header("Access-Control-Max-Age", strconv.Itoa(maxAge))

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Header("Access-Control-Expose-Headers", "Content-Length, Content-Type")
		c.Next()
	}
}

// Handlers bundles everything the router mounts.
type Handlers struct {
	Mint      *handlers.MintHandler
	Moves     *handlers.MovesHandler
	Royalty   *handlers.RoyaltyWebhookHandler
	WebSocket *handlers.WebSocketHandler
	AdminAuth *handlers.AdminAuthHandler
	AdminOps  *handlers.AdminOpsHandler
}

// SetupRouter builds the gin engine with all routes and middleware.
func SetupRouter(h *Handlers) *gin.Engine {
	r := gin.Default()
	r.Use(corsMiddleware())

	logger := logrus.New()
	var allowedIPs []string
	if config.AppConfig != nil && len(config.AppConfig.Admin.AllowedIPs) > 0 {
		allowedIPs = config.AppConfig.Admin.AllowedIPs
		logger.WithFields(logrus.Fields{
			"allowed_ips": allowedIPs,
			"count":       len(allowedIPs),
		}).Info("Admin API IP whitelist configured")
	}
	localhostOnly := middleware.NewLocalhostOnly(logger, allowedIPs)
	adminAuth := middleware.NewAdminAuthMiddleware(logger)

	// ============ Health & Metrics ============
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	r.GET("/health", handlers.HealthCheckHandler)
	r.GET("/api/health", handlers.HealthCheckHandler)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// ============ API Routes ============
	api := r.Group("/api/v1")
	{
		// Mint orchestration
		api.POST("/moves/mint", h.Mint.StartMint)
		api.POST("/moves/validate-expression", h.Mint.ValidateExpression)
		api.GET("/moves/attempts", h.Mint.ListAttempts)
		api.GET("/moves/attempts/:id", h.Mint.GetAttempt)
		api.POST("/moves/attempts/:id/retry-verification", h.Mint.RetryVerification)
		api.POST("/wallet/sign-response", h.Mint.SubmitSignature)

		// Minted move records
		api.GET("/moves", h.Moves.ListMoves)
		api.GET("/moves/:mint", h.Moves.GetMove)
		api.GET("/moves/:mint/royalties", h.Moves.GetMoveRoyalties)
		api.GET("/moves/creator/:creator", h.Moves.GetMovesByCreator)

		// Royalties
		api.POST("/webhooks/chain", h.Royalty.HandleWebhook)
		api.GET("/royalties", h.Royalty.GetRoyaltySummary)

		// Real-time status channel
		api.GET("/ws", h.WebSocket.HandleWebSocket)

		// Admin
		api.POST("/admin/login", h.AdminAuth.Login)
		api.POST("/admin/setup", localhostOnly.Restrict(), h.AdminAuth.Setup)

		admin := api.Group("/admin", adminAuth.RequireAdminAuth())
		{
			admin.GET("/attempts/unfinished", h.AdminOps.ListUnfinishedAttempts)
		}
	}

	// ============ NoRoute handler for 404 ============
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"message":    "Endpoint not found",
			"path":       c.Request.URL.Path,
			"suggestion": "Check /api/v1 endpoints for available APIs",
		})
	})

	return r
}
