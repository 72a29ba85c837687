// Package metrics provides Prometheus instrumentation for the miniapp
// engine and its backend service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// CommandsSimulated counts simulated SDK commands by command and outcome.
	CommandsSimulated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "raffletime_commands_simulated_total",
		Help: "Simulated wallet/pay/verify commands",
	}, []string{"command", "status"})

	// MockInteractions counts mock-session actions (switch, error, pay...).
	MockInteractions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "raffletime_mock_interactions_total",
		Help: "Mock session interactions by action",
	}, []string{"action"})

	// ActiveGameSessions tracks running Diamond Hands sessions.
	ActiveGameSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "raffletime_active_game_sessions",
		Help: "Number of currently running game sessions",
	})

	// GameSessionsTotal counts finished game sessions by outcome.
	GameSessionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "raffletime_game_sessions_total",
		Help: "Finished game sessions by outcome",
	}, []string{"outcome"})

	// TicketsPurchased counts raffle ticket purchases.
	TicketsPurchased = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "raffletime_tickets_purchased_total",
		Help: "Raffle tickets purchased",
	}, []string{"raffle_id"})

	// PaymentsTotal counts payment confirmations by result.
	PaymentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "raffletime_payments_total",
		Help: "Payment confirmations by result",
	}, []string{"result"})

	// WebSocketClients tracks connected dev-feed WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "raffletime_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "raffletime_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "raffletime_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		// Raw path is fine here; the route surface is small enough that
		// cardinality stays bounded.
		path := r.URL.Path
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
