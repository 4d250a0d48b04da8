package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/signamoz/signa/internal/gesture"
	"github.com/signamoz/signa/internal/store"
)

// SignHandler serves the known-sign dictionary.
// Paths: /api/signs and /api/signs/{language}/{word}.
type SignHandler struct {
	store *store.Store
}

// NewSignHandler creates a SignHandler backed by s.
func NewSignHandler(s *store.Store) *SignHandler {
	return &SignHandler{store: s}
}

func (h *SignHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	parts := splitPath(r, "/api/signs")

	switch len(parts) {
	case 0:
		switch r.Method {
		case http.MethodGet:
			h.list(w, r)
		case http.MethodPost:
			h.upsert(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	case 2:
		switch r.Method {
		case http.MethodGet:
			h.get(w, parts[0], parts[1])
		case http.MethodDelete:
			h.delete(w, parts[0], parts[1])
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	default:
		writeError(w, http.StatusNotFound, "Not found")
	}
}

type signRequest struct {
	Language    string `json:"language"`
	Word        string `json:"word"`
	Description string `json:"description"`
}

type signResponse struct {
	Language    string `json:"language"`
	Word        string `json:"word"`
	Description string `json:"description"`
	Builtin     bool   `json:"builtin"`
	CreatedAt   string `json:"created_at"`
}

type listSignsResponse struct {
	Signs []signResponse `json:"signs"`
}

func toSignResponse(sg *store.Sign) signResponse {
	return signResponse{
		Language:    sg.Language,
		Word:        sg.Word,
		Description: sg.Description,
		Builtin:     sg.Builtin,
		CreatedAt:   formatTime(sg.CreatedAt),
	}
}

// list handles GET /api/signs?language=.
func (h *SignHandler) list(w http.ResponseWriter, r *http.Request) {
	language := r.URL.Query().Get("language")
	if language != "" && !gesture.Language(language).Valid() {
		writeError(w, http.StatusBadRequest, "Unsupported language")
		return
	}

	signs, err := h.store.Signs().List(language)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list signs")
		return
	}

	response := listSignsResponse{Signs: make([]signResponse, 0, len(signs))}
	for _, sg := range signs {
		response.Signs = append(response.Signs, toSignResponse(sg))
	}
	writeJSON(w, http.StatusOK, response)
}

// upsert handles POST /api/signs. User signs are never marked builtin.
func (h *SignHandler) upsert(w http.ResponseWriter, r *http.Request) {
	var req signRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if !gesture.Language(req.Language).Valid() {
		writeError(w, http.StatusBadRequest, "Unsupported language")
		return
	}
	if store.NormalizeWord(req.Word) == "" {
		writeError(w, http.StatusBadRequest, "word is required")
		return
	}

	sg := &store.Sign{Language: req.Language, Word: req.Word, Description: req.Description}
	if err := h.store.Signs().Upsert(sg); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save sign")
		return
	}
	if saved, err := h.store.Signs().Get(sg.Language, sg.Word); err == nil {
		sg = saved
	}
	writeJSON(w, http.StatusCreated, toSignResponse(sg))
}

// get handles GET /api/signs/{language}/{word}.
func (h *SignHandler) get(w http.ResponseWriter, language, word string) {
	sg, err := h.store.Signs().Get(language, word)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Sign not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get sign")
		return
	}
	writeJSON(w, http.StatusOK, toSignResponse(sg))
}

// delete handles DELETE /api/signs/{language}/{word}.
func (h *SignHandler) delete(w http.ResponseWriter, language, word string) {
	if err := h.store.Signs().Delete(language, word); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Sign not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete sign")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
