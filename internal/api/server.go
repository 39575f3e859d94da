package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/cfnotifier/cfnotifier/internal/logbuffer"
	"github.com/cfnotifier/cfnotifier/internal/poller"
	"github.com/cfnotifier/cfnotifier/internal/version"
)

// StatusSource provides the poller snapshot
type StatusSource interface {
	Status() poller.Status
}

// Server provides the HTTP status, log and metrics endpoints
type Server struct {
	status    StatusSource
	logBuffer *logbuffer.Buffer
	gatherer  prometheus.Gatherer
	logger    zerolog.Logger
	addr      string
	startTime time.Time
	channels  []string
}

// NewServer creates a new API server listening on addr
func NewServer(addr string, status StatusSource, gatherer prometheus.Gatherer, logger zerolog.Logger) *Server {
	return &Server{
		status:    status,
		gatherer:  gatherer,
		logger:    logger.With().Str("component", "api").Logger(),
		addr:      addr,
		startTime: time.Now(),
	}
}

// SetLogBuffer sets the buffer served at /api/logs
func (s *Server) SetLogBuffer(lb *logbuffer.Buffer) {
	s.logBuffer = lb
}

// SetChannels records the active notification channels for /status
func (s *Server) SetChannels(names []string) {
	s.channels = names
}

// Handler returns the routed handler
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handlePage)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/api/logs", s.handleLogs)
	mux.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	return mux
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("address", s.addr).Msg("Starting API server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	info := version.Get()
	resp := map[string]interface{}{
		"time":       time.Now().UTC().Format(time.RFC3339),
		"uptime":     time.Since(s.startTime).Round(time.Second).String(),
		"version":    info.Version,
		"commit":     info.Commit,
		"build_date": info.BuildDate,
		"channels":   s.channels,
	}
	if s.status != nil {
		resp["poller"] = s.status.Status()
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleLogs returns recent log entries. Query params: limit (default 200), zone.
func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	limit := 200
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	entries := []logbuffer.Entry{}
	if s.logBuffer != nil {
		entries = s.logBuffer.Recent(limit, r.URL.Query().Get("zone"))
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
		"count":   len(entries),
	})
}

// pageData feeds pageTemplate
type pageData struct {
	Version  string
	Commit   string
	Uptime   string
	Channels []string
	Poller   poller.Status
	Logs     []logbuffer.Entry
}

// handlePage renders the HTML status page
func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	info := version.Get()
	data := pageData{
		Version:  info.Version,
		Commit:   info.Commit,
		Uptime:   time.Since(s.startTime).Round(time.Second).String(),
		Channels: s.channels,
	}
	if s.status != nil {
		data.Poller = s.status.Status()
	}
	if s.logBuffer != nil {
		data.Logs = s.logBuffer.Recent(50, "")
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pageTemplate.Execute(w, data); err != nil {
		s.logger.Error().Err(err).Msg("Failed to render status page")
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
