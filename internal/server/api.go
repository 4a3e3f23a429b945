package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/askpdf/askpdf/internal/observability"
	"github.com/askpdf/askpdf/internal/service"
)

// APIConfig holds HTTP API server configuration.
type APIConfig struct {
	ListenAddr  string // e.g. ":8200"
	MaxUploadMB int
}

// DefaultAPIConfig returns sensible defaults.
func DefaultAPIConfig() *APIConfig {
	return &APIConfig{ListenAddr: ":8200", MaxUploadMB: 32}
}

// APIServer is the askpdf HTTP server.
type APIServer struct {
	config *APIConfig
	svc    *service.Service
	server *http.Server
}

// NewAPIServer creates the API server. When health is non-nil its endpoints
// are mounted on the same listener.
func NewAPIServer(config *APIConfig, svc *service.Service, health *HealthServer) *APIServer {
	if config == nil {
		config = DefaultAPIConfig()
	}

	s := &APIServer{
		config: config,
		svc:    svc,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/upload/", s.handleUpload)
	mux.HandleFunc("/query/", s.handleQuery)
	mux.HandleFunc("/view_all/", s.handleViewAll)
	mux.HandleFunc("/delete_all/", s.handleDeleteAll)
	mux.Handle("/metrics", observability.Metrics().Handler())
	if health != nil {
		health.RegisterRoutes(mux)
	}

	// Wrap with CORS and logging middleware
	handler := corsMiddleware(loggingMiddleware(mux))

	s.server = &http.Server{
		Addr:        config.ListenAddr,
		Handler:     handler,
		ReadTimeout: 30 * time.Second,
		// Completions can take a while on slow local models.
		WriteTimeout: 180 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start begins serving requests. Blocks until Stop or a listener failure.
func (s *APIServer) Start() error {
	slog.Info("starting API server", "addr", s.config.ListenAddr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api server error: %w", err)
	}
	return nil
}

// Stop gracefully shuts down the server.
func (s *APIServer) Stop(ctx context.Context) error {
	slog.Info("stopping API server")
	return s.server.Shutdown(ctx)
}

// Handler exposes the configured handler, mainly for tests.
func (s *APIServer) Handler() http.Handler {
	return s.server.Handler
}

// handleUpload handles POST /upload/
func (s *APIServer) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	maxBytes := int64(s.config.MaxUploadMB) << 20
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	if err := r.ParseMultipartForm(maxBytes); err != nil {
		s.writeError(w, &service.Error{
			Kind: service.KindValidation,
			Op:   "upload",
			Err:  fmt.Errorf("parse multipart form: %w", err),
		})
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, &service.Error{
			Kind: service.KindValidation,
			Op:   "upload",
			Err:  errors.New("missing multipart field \"file\""),
		})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.writeError(w, &service.Error{
			Kind: service.KindValidation,
			Op:   "upload",
			Err:  fmt.Errorf("read upload: %w", err),
		})
		return
	}

	result, err := s.svc.Upload(r.Context(), header.Filename, data)
	if err != nil {
		s.writeError(w, err)
		return
	}
	respondJSON(w, result)
}

// handleQuery handles GET /query/?query=...
func (s *APIServer) handleQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	result, err := s.svc.Query(r.Context(), r.URL.Query().Get("query"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	respondJSON(w, result)
}

// handleViewAll handles GET /view_all/
func (s *APIServer) handleViewAll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	col, err := s.svc.ViewAll(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	if len(col.IDs) == 0 {
		respondJSON(w, map[string]string{"message": "No documents found."})
		return
	}
	respondJSON(w, col)
}

// handleDeleteAll handles DELETE /delete_all/
func (s *APIServer) handleDeleteAll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := s.svc.DeleteAll(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	respondJSON(w, map[string]string{"message": "All documents have been deleted."})
}

// errorPayload is the JSON body returned for failed operations.
type errorPayload struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func (s *APIServer) writeError(w http.ResponseWriter, err error) {
	kind := service.KindOf(err)
	status := http.StatusInternalServerError
	switch kind {
	case service.KindValidation:
		status = http.StatusBadRequest
	case service.KindExtraction:
		status = http.StatusUnprocessableEntity
	case service.KindModelUnavailable:
		status = http.StatusServiceUnavailable
	case service.KindIndex:
		status = http.StatusInternalServerError
	}

	if status >= 500 {
		slog.Error("request failed", "kind", kind, "error", err)
	} else {
		slog.Warn("request rejected", "kind", kind, "error", err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorPayload{Error: err.Error(), Kind: string(kind)})
}

// respondJSON writes a JSON response
func respondJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// corsMiddleware adds CORS headers for browser clients
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start),
		)
	})
}
