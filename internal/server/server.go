package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/muurk/wifiportal/internal/events"
	"github.com/muurk/wifiportal/internal/logging"
	"github.com/muurk/wifiportal/internal/provision"
)

const shutdownTimeout = 5 * time.Second

// Config holds the status server configuration
type Config struct {
	Addr     string
	CertPath string // Serve TLS when both CertPath and KeyPath are set
	KeyPath  string
	Version  string
}

// StatusSource reports the orchestrator state. It is called from request
// goroutines and must be safe for concurrent use.
type StatusSource interface {
	Status() provision.Status
}

// Health is the /healthz response body
type Health struct {
	Mode          string  `json:"mode"`
	SSID          string  `json:"ssid"`
	Connected     bool    `json:"connected"`
	Address       string  `json:"address,omitempty"`
	PortalActive  bool    `json:"portal_active"`
	EventClients  int     `json:"event_clients"`
	Version       string  `json:"version,omitempty"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

// Server is the daemon's management surface: health, metrics and the event
// stream. It is unrelated to the captive portal, which has its own listener.
type Server struct {
	config    *Config
	source    StatusSource
	hub       *events.Hub
	tlsConfig *tls.Config
	startTime time.Time

	mu       sync.Mutex
	listener net.Listener
}

// New creates a status server. The hub may be nil, in which case /events is
// not routed.
func New(config *Config, source StatusSource, hub *events.Hub) (*Server, error) {
	s := &Server{
		config:    config,
		source:    source,
		hub:       hub,
		startTime: time.Now(),
	}

	if config.CertPath != "" && config.KeyPath != "" {
		tlsConfig, err := NewTLSConfig(config.CertPath, config.KeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create TLS config: %w", err)
		}
		s.tlsConfig = tlsConfig
	}

	return s, nil
}

// Handler returns the status router
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	if s.hub != nil {
		r.Get("/events", s.hub.ServeHTTP)
	}
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	st := s.source.Status()

	health := Health{
		Mode:          st.Mode.String(),
		SSID:          st.SSID,
		Connected:     st.Connected,
		Address:       st.Address,
		PortalActive:  st.PortalActive,
		Version:       s.config.Version,
		UptimeSeconds: time.Since(s.startTime).Seconds(),
	}
	if s.hub != nil {
		health.EventClients = s.hub.ClientCount()
	}

	status := http.StatusOK
	if st.Mode == provision.ModeHalted {
		status = http.StatusServiceUnavailable
	}

	body, err := json.Marshal(health)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// Serve implements suture.Service. It listens on the configured address and
// shuts down gracefully when ctx is done.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Addr, err)
	}
	if s.tlsConfig != nil {
		ln = tls.NewListener(ln, s.tlsConfig)
	}

	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logging.Info("Status server listening",
		zap.String("addr", ln.Addr().String()),
		zap.Bool("tls", s.tlsConfig != nil),
	)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("status server failed: %w", err)
		}
		return nil

	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		// Websocket connections are hijacked and not tracked by Shutdown;
		// the hub closes them when its own Serve returns.
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("status server shutdown failed: %w", err)
		}
		<-errCh
		return ctx.Err()
	}
}

// Addr returns the bound address once Serve is listening, or nil
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *Server) String() string { return "status-server" }
