package api

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rmax-ai/alertgraph/pkg/catalog"
	"github.com/rmax-ai/alertgraph/pkg/graph"
	"github.com/rmax-ai/alertgraph/pkg/registry"
	"github.com/rmax-ai/alertgraph/pkg/store"
)

// Context keys
type contextKey string

const traceIDKey contextKey = "trace_id"

const (
	defaultAddr        = ":8090"
	defaultEventLimit  = 50
	defaultRecentLimit = 20
	maxBodyBytes       = 1 << 20
)

// RegistryInterface is the registry surface the API needs, to enable mocking.
type RegistryInterface interface {
	RegisterUser(ctx context.Context, name, region string) (store.User, error)
	CreateAlert(ctx context.Context, in registry.AlertInput) (store.Alert, error)
	AlertsByCategory(key string) ([]graph.Match, error)
	AlertsByRegion(region string) ([]graph.Match, error)
	AlertsByUser(userID string) ([]graph.Match, error)
	Stats() registry.Stats
	Graph() (graph.Export, error)
	Events(ctx context.Context, limit int) ([]*store.Event, error)
	Catalog() *catalog.Catalog
}

// RecentSource lists recently published alert ids, newest first.
type RecentSource interface {
	Recent(ctx context.Context, limit int64) ([]string, error)
}

// Server encapsulates the HTTP API server
type Server struct {
	registry RegistryInterface
	recent   RecentSource
	logger   *slog.Logger
	server   *http.Server

	// TLS Config
	tlsCertFile string
	tlsKeyFile  string
}

// NewServer creates a new API server instance
func NewServer(reg RegistryInterface, logger *slog.Logger, addr string) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		registry: reg,
		logger:   logger,
	}

	mux := http.NewServeMux()

	// Register routes
	mux.HandleFunc("/v1/health", handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/v1/users", s.handleUsers)
	mux.HandleFunc("/v1/alerts", s.handleAlerts)
	mux.HandleFunc("/v1/alerts/recent", s.handleRecent)
	mux.HandleFunc("/v1/stats", s.handleStats)
	mux.HandleFunc("/v1/graph", s.handleGraph)
	mux.HandleFunc("/v1/events", s.handleEvents)
	mux.HandleFunc("/v1/catalog", s.handleCatalog)

	// Middleware: Logging, Panic Recovery, Security Headers
	handler := s.withLogging(s.withRecovery(withSecureHeaders(mux)))

	// Use default port if addr is empty
	if addr == "" {
		addr = defaultAddr
	}

	s.server = &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  15 * time.Second,
	}

	return s
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// SetRecentSource enables GET /v1/alerts/recent
func (s *Server) SetRecentSource(src RecentSource) {
	s.recent = src
}

// SetTLS configures the server to use TLS
func (s *Server) SetTLS(certFile, keyFile string) {
	s.tlsCertFile = certFile
	s.tlsKeyFile = keyFile
}

// Start runs the HTTP server (blocking)
func (s *Server) Start() error {
	if s.tlsCertFile != "" && s.tlsKeyFile != "" {
		s.logger.Info("server_starting_tls", "addr", s.server.Addr)
		if err := s.server.ListenAndServeTLS(s.tlsCertFile, s.tlsKeyFile); err != http.ErrServerClosed {
			return err
		}
		return nil
	}
	s.logger.Info("server_starting", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop gracefully shuts down the server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("server_stopping")
	return s.server.Shutdown(ctx)
}

// handleUsers registers a user.
func (s *Server) handleUsers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, `{"error":"method_not_allowed"}`, http.StatusMethodNotAllowed)
		return
	}

	var req UserRegistration
	if err := decodeBody(w, r, &req); err != nil {
		http.Error(w, `{"error":"invalid_json_body"}`, http.StatusBadRequest)
		return
	}
	if err := req.Validate(); err != nil {
		http.Error(w, fmt.Sprintf(`{"error":%q}`, validationCode(err)), http.StatusBadRequest)
		return
	}

	user, err := s.registry.RegisterUser(r.Context(), req.Name, req.Region)
	if err != nil {
		s.writeError(w, r, "failed_to_register_user", err)
		return
	}

	s.writeJSON(w, r, http.StatusCreated, user)
}

// handleAlerts creates alerts (POST) and searches them (GET).
func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.createAlert(w, r)
	case http.MethodGet:
		s.searchAlerts(w, r)
	default:
		http.Error(w, `{"error":"method_not_allowed"}`, http.StatusMethodNotAllowed)
	}
}

func (s *Server) createAlert(w http.ResponseWriter, r *http.Request) {
	var req AlertRequest
	if err := decodeBody(w, r, &req); err != nil {
		http.Error(w, `{"error":"invalid_json_body"}`, http.StatusBadRequest)
		return
	}
	if err := req.Validate(); err != nil {
		http.Error(w, fmt.Sprintf(`{"error":%q}`, validationCode(err)), http.StatusBadRequest)
		return
	}

	alert, err := s.registry.CreateAlert(r.Context(), registry.AlertInput{
		UserID:      req.UserID,
		Category:    req.Category,
		Description: req.Description,
		Location:    req.Location,
		Region:      req.Region,
	})
	if err != nil {
		s.writeError(w, r, "failed_to_create_alert", err)
		return
	}

	s.writeJSON(w, r, http.StatusCreated, alert)
}

// searchAlerts runs exactly one of the category (DFS), region (BFS) or
// user (direct neighbors) searches.
func (s *Server) searchAlerts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var (
		kind, value string
		set         int
	)
	for _, key := range []string{"category", "region", "user_id"} {
		if v := q.Get(key); v != "" {
			kind, value = key, v
			set++
		}
	}
	if set == 0 {
		http.Error(w, `{"error":"missing_query","valid":["category","region","user_id"]}`, http.StatusBadRequest)
		return
	}
	if set > 1 {
		http.Error(w, `{"error":"ambiguous_query"}`, http.StatusBadRequest)
		return
	}

	var (
		matches []graph.Match
		err     error
	)
	switch kind {
	case "category":
		matches, err = s.registry.AlertsByCategory(value)
	case "region":
		matches, err = s.registry.AlertsByRegion(value)
	default:
		kind = "user"
		matches, err = s.registry.AlertsByUser(value)
	}
	if err != nil {
		s.writeError(w, r, "failed_to_search_alerts", err)
		return
	}

	s.writeJSON(w, r, http.StatusOK, AlertsResponse{
		Query:  kind,
		Value:  value,
		Count:  len(matches),
		Alerts: matches,
	})
}

// handleRecent returns the ids of recently published alerts.
func (s *Server) handleRecent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, `{"error":"method_not_allowed"}`, http.StatusMethodNotAllowed)
		return
	}
	if s.recent == nil {
		http.Error(w, `{"error":"recent_not_available"}`, http.StatusServiceUnavailable)
		return
	}

	ids, err := s.recent.Recent(r.Context(), int64(queryLimit(r, defaultRecentLimit)))
	if err != nil {
		s.logger.Error("failed_to_read_recent_alerts", "trace_id", getTraceID(r.Context()), "error", err)
		http.Error(w, `{"error":"internal_server_error"}`, http.StatusInternalServerError)
		return
	}
	if ids == nil {
		ids = []string{}
	}

	s.writeJSON(w, r, http.StatusOK, RecentResponse{AlertIDs: ids})
}

// handleStats returns graph and alert counters.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, `{"error":"method_not_allowed"}`, http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, r, http.StatusOK, s.registry.Stats())
}

// handleGraph returns the whole alert graph.
func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, `{"error":"method_not_allowed"}`, http.StatusMethodNotAllowed)
		return
	}

	g, err := s.registry.Graph()
	if err != nil {
		s.logger.Error("failed_to_export_graph", "trace_id", getTraceID(r.Context()), "error", err)
		http.Error(w, `{"error":"internal_server_error"}`, http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, r, http.StatusOK, g)
}

// handleEvents returns the most recent persisted events.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, `{"error":"method_not_allowed"}`, http.StatusMethodNotAllowed)
		return
	}

	events, err := s.registry.Events(r.Context(), queryLimit(r, defaultEventLimit))
	if err != nil {
		s.writeError(w, r, "failed_to_read_events", err)
		return
	}
	if events == nil {
		events = []*store.Event{}
	}
	s.writeJSON(w, r, http.StatusOK, events)
}

// handleCatalog returns the known categories and regions.
func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, `{"error":"method_not_allowed"}`, http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, r, http.StatusOK, s.registry.Catalog())
}

// handleHealth returns simple status
func handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, `{"error":"method_not_allowed"}`, http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func queryLimit(r *http.Request, fallback int) int {
	if l := r.URL.Query().Get("limit"); l != "" {
		if val, err := strconv.Atoi(l); err == nil && val > 0 {
			return val
		}
	}
	return fallback
}

// statusFor maps registry errors to an HTTP status and error code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, registry.ErrEmptyName):
		return http.StatusBadRequest, "empty_name"
	case errors.Is(err, registry.ErrEmptyDescription):
		return http.StatusBadRequest, "empty_description"
	case errors.Is(err, registry.ErrUnknownRegion):
		return http.StatusBadRequest, "unknown_region"
	case errors.Is(err, registry.ErrUnknownCategory):
		return http.StatusBadRequest, "unknown_category"
	case errors.Is(err, registry.ErrUnknownUser):
		return http.StatusNotFound, "unknown_user"
	case errors.Is(err, registry.ErrEventsUnsupported):
		return http.StatusNotImplemented, "events_not_supported"
	default:
		return http.StatusInternalServerError, "internal_server_error"
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	status, code := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(msg, "trace_id", getTraceID(r.Context()), "error", err)
	}
	http.Error(w, fmt.Sprintf(`{"error":%q}`, code), status)
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed_to_encode_response", "trace_id", getTraceID(r.Context()), "error", err)
	}
}

// Middleware: Panic Recovery
func (s *Server) withRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				s.logger.Error("panic_recovered", "error", fmt.Sprint(err), "path", r.URL.Path)
				http.Error(w, `{"error":"internal_server_error"}`, http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// Middleware: Request Logging
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		traceID := r.Header.Get("X-Trace-ID")
		if traceID == "" {
			traceID = generateTraceID()
		}

		ctx := context.WithValue(r.Context(), traceIDKey, traceID)
		r = r.WithContext(ctx)

		// Wrap writer to capture status code
		ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		w.Header().Set("X-Trace-ID", traceID)

		next.ServeHTTP(ww, r)

		s.logger.Info("http_request",
			"trace_id", traceID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

func generateTraceID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b)
}

func getTraceID(ctx context.Context) string {
	if v, ok := ctx.Value(traceIDKey).(string); ok {
		return v
	}
	return ""
}

// statusWriter captures HTTP status code
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Middleware: Secure Headers
func withSecureHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Security-Policy", "default-src 'none'")
		w.Header().Set("Strict-Transport-Security", "max-age=63072000; includeSubDomains")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "no-referrer")

		next.ServeHTTP(w, r)
	})
}
