package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"cameraled/internal/state"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Server provides the status API of the camera monitor
type Server struct {
	stateManager *state.Manager
	metrics      http.Handler
	logger       *zap.Logger
	server       *http.Server
	hub          *Hub

	stateSubscriptions []state.Subscription
}

// NewServer creates a new API server listening on addr. metricsHandler
// serves /metrics.
func NewServer(stateManager *state.Manager, metricsHandler http.Handler, logger *zap.Logger, addr string) *Server {
	s := &Server{
		stateManager: stateManager,
		metrics:      metricsHandler,
		logger:       logger.Named("api"),
	}
	s.hub = NewHub(s.logger)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Router builds the HTTP routes
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.loggingMiddleware)

	r.Get("/", s.handleSitemap)
	r.Get("/health", s.handleHealth)
	r.Get("/api/state", s.handleGetState)
	r.Get("/ws", s.handleWebSocket)
	r.Method(http.MethodGet, "/metrics", s.metrics)
	return r
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("HTTP request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("duration", time.Since(start)),
			zap.String("remote_addr", r.RemoteAddr))
	})
}

// StateResponse represents the JSON response for the state endpoint
type StateResponse struct {
	Booleans    map[string]bool      `json:"booleans"`
	Numbers     map[string]float64   `json:"numbers"`
	Strings     map[string]string    `json:"strings"`
	LastChanged map[string]time.Time `json:"last_changed"`
}

// handleGetState returns all status variables as JSON
func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	response := StateResponse{
		Booleans:    make(map[string]bool),
		Numbers:     make(map[string]float64),
		Strings:     make(map[string]string),
		LastChanged: make(map[string]time.Time),
	}

	snapshot := s.stateManager.Snapshot()
	for _, variable := range state.AllVariables {
		v, ok := snapshot[variable.Key]
		if !ok {
			continue
		}
		switch value := v.Value.(type) {
		case bool:
			response.Booleans[variable.Key] = value
		case float64:
			response.Numbers[variable.Key] = value
		case string:
			response.Strings[variable.Key] = value
		default:
			s.logger.Error("Unexpected variable value",
				zap.String("key", variable.Key),
				zap.Any("value", v.Value))
			continue
		}
		if !v.LastChanged.IsZero() {
			response.LastChanged[variable.Key] = v.LastChanged
		}
	}

	writeJSON(w, http.StatusOK, response)
}

// handleHealth returns a simple health check response
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Endpoint represents an API endpoint with its documentation
type Endpoint struct {
	Path        string `json:"path"`
	Method      string `json:"method"`
	Description string `json:"description"`
}

var endpoints = []Endpoint{
	{Path: "/", Method: "GET", Description: "This sitemap"},
	{Path: "/health", Method: "GET", Description: "Health check, returns {\"status\": \"ok\"}"},
	{Path: "/api/state", Method: "GET", Description: "Camera and indicator status variables"},
	{Path: "/metrics", Method: "GET", Description: "Prometheus metrics"},
	{Path: "/ws", Method: "GET", Description: "WebSocket stream of status changes"},
}

// handleSitemap lists the available endpoints as plain text
func (s *Server) handleSitemap(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintf(w, "Camera LED status API\n")
	fmt.Fprintf(w, "=====================\n\n")
	for _, ep := range endpoints {
		fmt.Fprintf(w, "  %-6s %-12s %s\n", ep.Method, ep.Path, ep.Description)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Start subscribes the websocket hub to status changes and begins serving
func (s *Server) Start() error {
	s.subscribe()

	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		s.unsubscribe()
		return fmt.Errorf("failed to listen on %s: %w", s.server.Addr, err)
	}

	s.logger.Info("Starting HTTP API server", zap.String("addr", ln.Addr().String()))

	go func() {
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP server error", zap.Error(err))
		}
	}()

	return nil
}

// Stop gracefully shuts down the HTTP server and disconnects websocket
// clients
func (s *Server) Stop() error {
	s.logger.Info("Stopping HTTP API server")
	s.unsubscribe()
	s.hub.CloseAll()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}
	return nil
}

func (s *Server) subscribe() {
	s.stateSubscriptions = s.stateManager.SubscribeAll(func(key string, oldValue, newValue interface{}) {
		s.hub.Broadcast(Event{Key: key, Old: oldValue, New: newValue})
	})
}

func (s *Server) unsubscribe() {
	for _, sub := range s.stateSubscriptions {
		sub.Unsubscribe()
	}
	s.stateSubscriptions = nil
}
