package handler

import (
	"chatroulette/backend/internal/auth"
	"chatroulette/backend/internal/log"
	"chatroulette/backend/internal/metrics"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// RouterOptions configures the HTTP edge.
type RouterOptions struct {
	Env     string
	Logger  zerolog.Logger
	Limiter *RateLimiter
}

// NewRouter mounts the public endpoints, the authenticated /api group and /ws.
func NewRouter(h *Handler, opts RouterOptions) *gin.Engine {
	h.upgrader = newUpgrader(opts.Env == "dev")

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(log.GinMiddleware(opts.Logger))
	r.Use(metrics.GinMiddleware())
	r.Use(CORS(opts.Env))
	if opts.Limiter != nil {
		r.Use(opts.Limiter.Middleware())
	}

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.POST("/anonid", h.GetAnonID)

	requireIdentity := auth.RequireIdentity(h.Auth)
	r.GET("/ws", requireIdentity, h.ServeWebSocket)

	api := r.Group("/api", requireIdentity)
	{
		api.POST("/queue/join", h.JoinQueue)
		api.GET("/queue/waiting", h.IsWaiting)

		api.GET("/sessions/current", h.CurrentSession)
		api.POST("/sessions/:id/leave", h.LeaveChat)
		api.POST("/sessions/:id/messages", h.SendMessage)
		api.GET("/sessions/:id/messages", h.GetMessages)
		api.POST("/sessions/:id/signals", h.SendSignal)
		api.GET("/sessions/:id/signals", h.GetSignals)

		api.GET("/debug", h.DebugState)
		api.GET("/ice-servers", h.GetICEServers)
	}
	return r
}
