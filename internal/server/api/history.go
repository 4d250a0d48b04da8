package api

import (
	"net/http"
	"strconv"

	"github.com/signamoz/signa/internal/plugin"
	"github.com/signamoz/signa/internal/store"
)

// RecognitionHandler serves recognition history at /api/recognitions.
type RecognitionHandler struct {
	store *store.Store
}

// NewRecognitionHandler creates a RecognitionHandler backed by s.
func NewRecognitionHandler(s *store.Store) *RecognitionHandler {
	return &RecognitionHandler{store: s}
}

type recognitionResponse struct {
	ID        int64  `json:"id"`
	SessionID string `json:"session_id"`
	Language  string `json:"language"`
	Word      string `json:"word"`
	Source    string `json:"source"`
	CreatedAt string `json:"created_at"`
}

type listRecognitionsResponse struct {
	Recognitions []recognitionResponse `json:"recognitions"`
}

func (h *RecognitionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")

	switch r.Method {
	case http.MethodGet:
		limit := 0
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				writeError(w, http.StatusBadRequest, "Invalid limit")
				return
			}
			limit = n
		}
		recs, err := h.store.Recognitions().List(sessionID, limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to list recognitions")
			return
		}
		response := listRecognitionsResponse{Recognitions: make([]recognitionResponse, 0, len(recs))}
		for _, rec := range recs {
			response.Recognitions = append(response.Recognitions, recognitionResponse{
				ID:        rec.ID,
				SessionID: rec.SessionID,
				Language:  rec.Language,
				Word:      rec.Word,
				Source:    rec.Source,
				CreatedAt: formatTime(rec.CreatedAt),
			})
		}
		writeJSON(w, http.StatusOK, response)

	case http.MethodDelete:
		if sessionID == "" {
			writeError(w, http.StatusBadRequest, "session_id is required")
			return
		}
		n, err := h.store.Recognitions().DeleteSession(sessionID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to delete recognitions")
			return
		}
		writeJSON(w, http.StatusOK, map[string]int64{"deleted": n})

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// PluginLister lists discovered plugins.
type PluginLister interface {
	List() []*plugin.Plugin
}

// PluginHandler serves GET /api/plugins.
type PluginHandler struct {
	plugins PluginLister
}

// NewPluginHandler creates a PluginHandler.
func NewPluginHandler(p PluginLister) *PluginHandler {
	return &PluginHandler{plugins: p}
}

type pluginResponse struct {
	plugin.Manifest
	Path string `json:"path"`
}

func (h *PluginHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	plugins := h.plugins.List()
	response := struct {
		Plugins []pluginResponse `json:"plugins"`
	}{Plugins: make([]pluginResponse, 0, len(plugins))}
	for _, p := range plugins {
		response.Plugins = append(response.Plugins, pluginResponse{Manifest: p.Manifest, Path: p.Path})
	}
	writeJSON(w, http.StatusOK, response)
}
