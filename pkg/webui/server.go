// Package webui provides the HTTP API for browsing a team workspace. It
// exposes the aggregated roster, session logs, decisions, and skill catalog
// as JSON endpoints consumed by dashboards and editor integrations.
package webui

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/teamlens-dev/teamlens/pkg/logger"
	"github.com/teamlens-dev/teamlens/pkg/presenter"
	"github.com/teamlens-dev/teamlens/pkg/skills"
	"github.com/teamlens-dev/teamlens/pkg/team"
)

// ServerConfig holds the configuration for the web server
type ServerConfig struct {
	Host string
	Port int
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	if c.Host == "" {
		return errors.New("host cannot be empty")
	}
	if c.Port < 1 || c.Port > 65535 {
		return errors.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}
	return nil
}

// Server serves the team workspace API over HTTP
type Server struct {
	router     *mux.Router
	aggregator *team.Aggregator
	config     *ServerConfig
	server     *http.Server
}

// NewServer creates a new API server over the given aggregator
func NewServer(config *ServerConfig, aggregator *team.Aggregator) (*Server, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid server configuration")
	}
	if aggregator == nil {
		return nil, errors.New("aggregator cannot be nil")
	}

	s := &Server{
		router:     mux.NewRouter(),
		aggregator: aggregator,
		config:     config,
	}
	s.setupRoutes()
	return s, nil
}

// setupRoutes configures all the HTTP routes
func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/team", s.handleGetTeam).Methods("GET")
	api.HandleFunc("/roster", s.handleGetRoster).Methods("GET")
	api.HandleFunc("/logs", s.handleListLogs).Methods("GET")
	api.HandleFunc("/decisions", s.handleListDecisions).Methods("GET")
	api.HandleFunc("/skills", s.handleListInstalledSkills).Methods("GET")
	api.HandleFunc("/skills/catalog", s.handleCatalog).Methods("GET")
	api.HandleFunc("/skills/{slug}", s.handleInstallSkill).Methods("POST")
	api.HandleFunc("/skills/{slug}", s.handleRemoveSkill).Methods("DELETE")

	// Catch-all keeps the middleware chain in play for unmatched paths and
	// preflight requests.
	s.router.PathPrefix("/").HandlerFunc(s.handleNotFound)

	s.router.Use(s.loggingMiddleware)
	s.router.Use(s.corsMiddleware)
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rw := &responseWriter{ResponseWriter: w, statusCode: 200}

		next.ServeHTTP(rw, r)

		duration := time.Since(start)
		logger.G(r.Context()).WithFields(map[string]any{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      rw.statusCode,
			"duration":    duration,
			"remote_addr": r.RemoteAddr,
		}).Info("HTTP request")
	})
}

// corsMiddleware adds CORS headers
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// handleNotFound answers anything outside the API surface
func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	s.writeErrorResponse(w, http.StatusNotFound, "not found", nil)
}

// handleGetTeam handles GET /api/team
func (s *Server) handleGetTeam(w http.ResponseWriter, r *http.Request) {
	s.writeJSONResponse(w, s.aggregator.Snapshot(r.Context()))
}

// handleGetRoster handles GET /api/roster
func (s *Server) handleGetRoster(w http.ResponseWriter, r *http.Request) {
	s.writeJSONResponse(w, s.aggregator.GetRoster(r.Context()))
}

// handleListLogs handles GET /api/logs. Entries are returned oldest first;
// a limit query parameter keeps only the most recent entries.
func (s *Server) handleListLogs(w http.ResponseWriter, r *http.Request) {
	entries := s.aggregator.GetLogEntries(r.Context())

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil && limit >= 0 && limit < len(entries) {
			entries = entries[len(entries)-limit:]
		}
	}

	s.writeJSONResponse(w, map[string]any{
		"entries": entries,
		"total":   len(entries),
	})
}

// handleListDecisions handles GET /api/decisions
func (s *Server) handleListDecisions(w http.ResponseWriter, r *http.Request) {
	decs := s.aggregator.GetDecisions(r.Context())
	s.writeJSONResponse(w, map[string]any{
		"decisions": decs,
		"total":     len(decs),
	})
}

// handleListInstalledSkills handles GET /api/skills
func (s *Server) handleListInstalledSkills(w http.ResponseWriter, r *http.Request) {
	s.writeJSONResponse(w, map[string]any{
		"skills": s.aggregator.Snapshot(r.Context()).Installed,
	})
}

// handleCatalog handles GET /api/skills/catalog. An optional q parameter
// filters the listing; refresh=true bypasses the cache.
func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()
	refresh := query.Get("refresh") == "true"

	var (
		listing []skills.Skill
		err     error
	)
	if q := query.Get("q"); q != "" {
		listing, err = s.aggregator.SearchSkills(ctx, q)
	} else {
		listing, err = s.aggregator.ListSkills(ctx, refresh)
	}
	if err != nil {
		s.writeErrorResponse(w, http.StatusBadGateway, "failed to fetch skill catalog", err)
		return
	}

	s.writeJSONResponse(w, map[string]any{
		"skills": listing,
		"total":  len(listing),
	})
}

// handleInstallSkill handles POST /api/skills/{slug}
func (s *Server) handleInstallSkill(w http.ResponseWriter, r *http.Request) {
	slug := mux.Vars(r)["slug"]
	force := r.URL.Query().Get("force") == "true"

	dir, err := s.aggregator.InstallSkillBySlug(r.Context(), slug, force)
	if err != nil {
		switch {
		case errors.Is(err, skills.ErrAlreadyInstalled):
			s.writeErrorResponse(w, http.StatusConflict, "skill already installed", err)
		default:
			s.writeErrorResponse(w, http.StatusInternalServerError, "failed to install skill", err)
		}
		return
	}

	s.writeJSONResponse(w, map[string]any{"installed": slug, "directory": dir})
}

// handleRemoveSkill handles DELETE /api/skills/{slug}
func (s *Server) handleRemoveSkill(w http.ResponseWriter, r *http.Request) {
	slug := mux.Vars(r)["slug"]

	if err := s.aggregator.RemoveSkill(slug); err != nil {
		s.writeErrorResponse(w, http.StatusNotFound, "failed to remove skill", err)
		return
	}

	s.writeJSONResponse(w, map[string]any{"removed": slug})
}

// writeJSONResponse writes a JSON response
func (s *Server) writeJSONResponse(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.G(context.TODO()).WithError(err).Error("failed to encode JSON response")
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}

// writeErrorResponse writes an error response
func (s *Server) writeErrorResponse(w http.ResponseWriter, statusCode int, message string, err error) {
	if err != nil {
		logger.G(context.TODO()).WithError(err).Error(message)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := map[string]any{
		"error":   message,
		"status":  statusCode,
		"success": false,
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		logger.G(context.TODO()).WithError(err).Error("failed to encode error response")
	}
}

// Handler returns the routed handler wrapped with tracing instrumentation.
// Exposed for tests and for embedding in other servers.
func (s *Server) Handler() http.Handler {
	return otelhttp.NewHandler(s.router, "teamlens.api")
}

// Start starts the web server and blocks until the context is cancelled
func (s *Server) Start(ctx context.Context) error {
	address := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.server = &http.Server{
		Addr:    address,
		Handler: s.Handler(),
	}

	presenter.Info(fmt.Sprintf("Starting API server on http://%s", address))

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.G(ctx).WithError(err).Error("API server error")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return s.server.Shutdown(shutdownCtx)
}

// Stop stops the web server
func (s *Server) Stop() error {
	if s.server != nil {
		return s.server.Close()
	}
	return nil
}
