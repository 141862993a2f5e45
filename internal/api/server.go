package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/schengenwatch/visadash/internal/client"
	"github.com/schengenwatch/visadash/internal/config"
	"github.com/schengenwatch/visadash/internal/dashboard"
	"github.com/schengenwatch/visadash/internal/diag"
	"github.com/schengenwatch/visadash/internal/model"
)

// Backend answers the appointment endpoints
type Backend interface {
	FilteredAppointments(ctx context.Context, q model.FilterQuery) ([]model.Appointment, error)
	FilterOptions(ctx context.Context, column string) ([]string, error)
	AppointmentHistory(ctx context.Context, id int64) (*model.AppointmentHistory, error)
	RecentAppointments(ctx context.Context) ([]model.LogEntry, error)
	Responses(ctx context.Context) ([]model.ResponseChange, error)
	Logs(ctx context.Context) ([]model.LogEntry, error)
	Ping(ctx context.Context) error
}

// Options holds the optional collaborators of a Server. Without a Backend
// the appointment endpoints are not served; without a View the dashboard
// pages are not served.
type Options struct {
	Backend    Backend
	View       *dashboard.View
	LogBuffer  *diag.LogBuffer
	Connection func() client.ConnectionStatus
	Logger     zerolog.Logger
}

// Server represents the HTTP server
type Server struct {
	config  *config.Config
	backend Backend
	view    *dashboard.View
	logBuf  *diag.LogBuffer
	conn    func() client.ConnectionStatus
	log     zerolog.Logger
	mux     *http.ServeMux
	srv     *http.Server
	started time.Time
}

// NewServer creates a new HTTP server
func NewServer(cfg *config.Config, opts Options) *Server {
	s := &Server{
		config:  cfg,
		backend: opts.Backend,
		view:    opts.View,
		logBuf:  opts.LogBuffer,
		conn:    opts.Connection,
		log:     opts.Logger.With().Str("component", "api").Logger(),
		mux:     http.NewServeMux(),
		started: time.Now(),
	}
	s.setupRoutes()
	s.srv = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// setupRoutes configures the HTTP routes
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)

	if s.backend != nil {
		s.mux.HandleFunc("GET /get_filtered_appointments", s.handleFilteredAppointments)
		s.mux.HandleFunc("GET /get_filter_options", s.handleFilterOptions)
		s.mux.HandleFunc("GET /logs_modal", s.handleLogsModal)
		s.mux.HandleFunc("GET /get_recent_appointments", s.handleRecentAppointments)
		s.mux.HandleFunc("GET /get_responses", s.handleResponses)
		s.mux.HandleFunc("GET /get_logs", s.handleLogs)
	}

	if s.view != nil {
		s.mux.HandleFunc("GET /{$}", s.handleHome)
		s.mux.HandleFunc("GET /logs", s.handleLogsPage)
		s.mux.HandleFunc("GET /dashboard/search", s.handleSearch)
		s.mux.HandleFunc("POST "+dashboard.TableControlsPath, s.handleTable)
		s.mux.HandleFunc("GET /dashboard/appointments/{id}/logs", s.handleOpenDetail)
		s.mux.HandleFunc("POST /dashboard/modals/{id}/dismiss", s.handleDismissDetail)
		s.mux.HandleFunc("POST "+dashboard.LogsRefreshPath, s.handleLogRefresh)
	}

	s.mux.HandleFunc("GET /api/diagnostics", s.handleDiagnostics)
	s.mux.HandleFunc("POST /api/diagnostics/clear", s.handleClearDiagnostics)
	s.mux.HandleFunc("GET /diagnostics", s.handleDiagnosticsPage)
}

// Handler returns the routed handler with request logging
func (s *Server) Handler() http.Handler {
	return requestLogger(s.log, s.mux)
}

// Start starts the HTTP server and blocks until it stops
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.Addr())
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Addr returns the configured listen address
func (s *Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
}

// Serve serves requests on ln until Shutdown
func (s *Server) Serve(ln net.Listener) error {
	s.log.Info().Str("addr", ln.Addr().String()).Msg("http server listening")
	if err := s.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for active ones
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// handleHealth handles the health check endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.backend != nil {
		if err := s.backend.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "unhealthy",
				"error":  err.Error(),
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
