package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	QueueJoins = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_queue_joins_total",
		Help: "Queue joins by outcome (matched, queued)",
	}, []string{"outcome"})
	Matches = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_matches_total",
		Help: "Sessions created by the matcher",
	}, []string{"video"})
	SessionsEnded = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_sessions_ended_total",
		Help: "Sessions ended by reason (leave, rejoin, admin)",
	}, []string{"reason"})
	WaitingPurged = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chat_waiting_purged_total",
		Help: "Stale waiting entries removed by the sweeper",
	})
	MessagesSent = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chat_messages_total",
		Help: "Total number of chat messages sent",
	})
	SignalsSent = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_signals_total",
		Help: "Signaling messages relayed by type",
	}, []string{"type"})
	RealtimeClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "chat_realtime_clients",
		Help: "Current number of connected realtime clients",
	})
	EventsDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chat_events_dropped_total",
		Help: "Realtime events that could not be delivered",
	})
	HttpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
	HttpRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})
)

func init() {
	prometheus.MustRegister(
		QueueJoins, Matches, SessionsEnded, WaitingPurged,
		MessagesSent, SignalsSent,
		RealtimeClients, EventsDropped,
		HttpRequestsTotal, HttpRequestDuration,
	)
}

// GinMiddleware records request count and latency labelled by route template.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		status := strconv.Itoa(c.Writer.Status())
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		labels := prometheus.Labels{"method": c.Request.Method, "path": path, "status": status}
		HttpRequestsTotal.With(labels).Inc()
		HttpRequestDuration.With(labels).Observe(time.Since(start).Seconds())
	}
}
