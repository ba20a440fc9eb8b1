package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/homesync/internal/handler"
	"github.com/dukerupert/homesync/internal/middleware"
	ws "github.com/dukerupert/homesync/internal/websocket"
)

// Dashboard is what the server exposes over HTTP and pushes over websocket.
type Dashboard interface {
	handler.Dashboard
	Watch(fn func(entity string)) (cancel func())
}

type Options struct {
	RateLimitPerMinute int
	// KioskPINHash gates every command route when set.
	KioskPINHash string
}

type Server struct {
	dash        Dashboard
	hub         *ws.Hub
	dashboardH  *handler.DashboardHandler
	rateLimiter *middleware.RateLimiter
	opts        Options
	logger      *slog.Logger
}

func New(dash Dashboard, opts Options, logger *slog.Logger) *Server {
	if opts.RateLimitPerMinute <= 0 {
		opts.RateLimitPerMinute = 30
	}
	return &Server{
		dash:        dash,
		hub:         ws.NewHub(logger.With("component", "websocket")),
		dashboardH:  handler.NewDashboardHandler(dash, logger.With("component", "dashboard_handler")),
		rateLimiter: middleware.NewRateLimiter(),
		opts:        opts,
		logger:      logger,
	}
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

// Hub returns the websocket hub.
func (s *Server) Hub() *ws.Hub {
	return s.hub
}

// StartBroadcast forwards every dashboard change to websocket clients until
// the returned stop is called.
func (s *Server) StartBroadcast() (stop func()) {
	return s.dash.Watch(s.hub.Notify)
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.healthHandler)
	mux.HandleFunc("GET /api/dashboard", s.dashboardH.View)
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, s.logger.With("component", "websocket")))

	mux.Handle("POST /api/devices/{id}/toggle", s.command(s.dashboardH.ToggleDevice))
	mux.Handle("POST /api/reminders", s.command(s.dashboardH.CreateReminder))
	mux.Handle("PUT /api/reminders/{id}/completed", s.command(s.dashboardH.SetReminderCompleted))
	mux.Handle("DELETE /api/reminders/{id}", s.command(s.dashboardH.DeleteReminder))
	mux.Handle("DELETE /api/action-log/{id}", s.command(s.dashboardH.DismissLogEntry))
	mux.Handle("PUT /api/settings/location", s.command(s.dashboardH.UpdateLocation))

	return middleware.RequestLogger(s.logger.With("component", "http"))(mux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":  "ok",
		"clients": s.hub.ClientCount(),
	})
}

// command wraps a state-changing handler with rate limiting and the kiosk PIN.
func (s *Server) command(h http.HandlerFunc) http.Handler {
	rl := middleware.RateLimit(s.rateLimiter, middleware.RealIP, s.opts.RateLimitPerMinute, time.Minute)
	pin := middleware.RequireKioskPIN(s.opts.KioskPINHash)
	return rl(pin(h))
}
