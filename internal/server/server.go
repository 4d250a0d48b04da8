// Package server provides the HTTP server for the Signa recognition service.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/signamoz/signa/internal/app"
	"github.com/signamoz/signa/internal/gesture"
	"github.com/signamoz/signa/internal/plugin"
	"github.com/signamoz/signa/internal/server/api"
	"github.com/signamoz/signa/internal/store"
)

// Config holds the server configuration.
type Config struct {
	App       *app.App
	Store     *store.Store
	Plugins   *plugin.Manager
	StaticDir string
	Log       logrus.FieldLogger
}

// Server represents the HTTP server for the Signa application.
type Server struct {
	config Config
	mux    *http.ServeMux
	start  time.Time
	log    logrus.FieldLogger
	srv    *http.Server
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	log := config.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		start:  time.Now(),
		log:    log.WithField("component", "server"),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)
	s.mux.HandleFunc("/api/languages", s.handleLanguages)

	if s.config.Store != nil {
		var lookup api.PluginLookup
		if s.config.Plugins != nil {
			lookup = s.config.Plugins
		}
		signs := api.NewSignHandler(s.config.Store)
		actions := api.NewActionHandler(s.config.Store, lookup)
		s.mux.Handle("/api/signs", signs)
		s.mux.Handle("/api/signs/", signs)
		s.mux.Handle("/api/actions", actions)
		s.mux.Handle("/api/actions/", actions)
		s.mux.Handle("/api/recognitions", api.NewRecognitionHandler(s.config.Store))
	}

	if s.config.Plugins != nil {
		s.mux.Handle("/api/plugins", api.NewPluginHandler(s.config.Plugins))
	}

	if a := s.config.App; a != nil {
		sessions := api.NewSessionHandler(a, s.log)
		s.mux.Handle("/api/sessions", sessions)
		s.mux.Handle("/api/sessions/", sessions)
		s.mux.Handle("/api/sessions/ws", NewSessionSocket(a, s.log))
		s.mux.Handle("/api/capture/", api.NewCaptureHandler(a))
		s.mux.Handle("/api/stream", NewStreamHandler(a))
		s.mux.Handle("/api/landmarks", NewLandmarksHandler(a, s.log))
		s.mux.Handle("/metrics", a.Metrics().Handler(a.Sessions().Len))
	}

	// Serve static files if StaticDir is configured
	if s.config.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.config.StaticDir))
		s.mux.Handle("/", fs)
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := map[string]any{
		"status": "ok",
		"uptime": time.Since(s.start).Round(time.Second).String(),
	}
	if a := s.config.App; a != nil {
		response["sessions"] = a.Sessions().Len()
		response["capturing"] = a.Capturing()
		response["detector"] = a.Detector() != nil
	}

	writeJSON(w, http.StatusOK, response)
}

type languageResponse struct {
	Code  gesture.Language `json:"code"`
	Label string           `json:"label"`
}

// handleLanguages handles /api/languages: GET lists the supported languages
// and PUT changes the preferred one.
func (s *Server) handleLanguages(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
	case http.MethodPut:
		if s.config.App == nil {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req struct {
			Language string `json:"language"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Language == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "language is required"})
			return
		}
		if err := s.config.App.SetDefaultLanguage(gesture.Language(req.Language)); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	langs := gesture.Languages()
	out := make([]languageResponse, len(langs))
	for i, l := range langs {
		out[i] = languageResponse{Code: l, Label: l.Label()}
	}
	def := gesture.Libras
	if a := s.config.App; a != nil {
		def = a.DefaultLanguage()
	}
	writeJSON(w, http.StatusOK, map[string]any{"languages": out, "default": def})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// ListenAndServe starts the HTTP server on the given address and blocks
// until Shutdown is called or the listener fails.
func (s *Server) ListenAndServe(addr string) error {
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.log.WithField("addr", addr).Info("listening")
	err := s.srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}
