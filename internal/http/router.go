// Package httpapi wires the Gin engine: middleware order, chat webhooks, the
// Google consent flow and the admin API.
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/tbourn/go-meeting-bot/docs"
	"github.com/tbourn/go-meeting-bot/internal/config"
	"github.com/tbourn/go-meeting-bot/internal/http/handlers"
	"github.com/tbourn/go-meeting-bot/internal/http/middleware"
)

// maxBodyBytes caps webhook and admin payloads. Cloud API batches stay well
// below it.
const maxBodyBytes = 1 << 20

var corsMethods = []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"}
var corsHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", "If-None-Match"}

// RegisterRoutes attaches middleware and endpoints to r.
//
// Middleware order:
//  1. OpenTelemetry
//  2. RequestID
//  3. RedactingLogger
//  4. Recovery
//  5. Body size limit
//  6. Metrics
//  7. Rate limiter
//  8. CORS and security headers
//
// Webhooks live at the root (/webhook, /webhook/telegram) because their URLs
// are registered with Meta and Telegram; the admin API is mounted under
// cfg.APIBasePath behind the optional bearer token.
func RegisterRoutes(r *gin.Engine, h *handlers.Handlers, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{"X-API-Key"},
	}))
	r.Use(middleware.Recovery())
	r.Use(limitBody(maxBodyBytes))

	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByRoute())
	r.Use(rl.Handler())

	if len(cfg.CORS.AllowedOrigins) == 0 {
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     corsMethods,
			AllowHeaders:     corsHeaders,
			ExposeHeaders:    []string{"X-Request-ID", "ETag"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	} else {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     corsMethods,
			AllowHeaders:     corsHeaders,
			ExposeHeaders:    []string{"X-Request-ID", "ETag"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		EnablePolicy: true,
	}))

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	// Chat transports; the disabled one answers 404.
	r.GET("/webhook", h.VerifyWhatsApp)
	r.POST("/webhook", h.ReceiveWhatsApp)
	r.POST("/webhook/telegram", h.ReceiveTelegram)

	auth := r.Group("/auth", middleware.SecurityHeaders(middleware.SecurityOptions{NoStore: true}))
	{
		auth.GET("/google", h.StartGoogleAuth)
		auth.GET("/google/callback", h.GoogleAuthCallback)
		auth.GET("/status", h.AuthStatus)
	}

	// Swagger UI stays outside the token check so a browser can load it.
	docs.SwaggerInfo.BasePath = cfg.APIBasePath
	groupWithPrefix(r, cfg.APIBasePath).GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	api := groupWithPrefix(r, cfg.APIBasePath)
	api.Use(middleware.RequireToken(cfg.Security.AdminToken), gzip.Gzip(gzip.DefaultCompression))
	{
		api.GET("/groups/:chat_id", h.GetGroup)
		api.PATCH("/groups/:chat_id", h.UpdateGroup)
		api.GET("/groups/:chat_id/meetings", h.ListMeetings)

		api.GET("/reminders", h.ListReminders)
		api.DELETE("/reminders/:id", h.CancelReminder)
	}
}

// limitBody caps the request body at maxBytes; reads beyond it fail.
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
