package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/signamoz/signa/internal/app"
	"github.com/signamoz/signa/internal/detector"
	"github.com/signamoz/signa/internal/gesture"
	"github.com/signamoz/signa/internal/session"
)

// Upload limits.
const (
	MaxImageBytes = 10 << 20
	MaxVideoBytes = 200 << 20
)

// SessionHandler serves /api/sessions and its sub-resources.
type SessionHandler struct {
	app *app.App
	log logrus.FieldLogger
}

// NewSessionHandler creates a SessionHandler.
func NewSessionHandler(a *app.App, log logrus.FieldLogger) *SessionHandler {
	return &SessionHandler{app: a, log: log}
}

func (h *SessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	parts := splitPath(r, "/api/sessions")

	if len(parts) == 0 {
		switch r.Method {
		case http.MethodGet:
			h.list(w)
		case http.MethodPost:
			h.create(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
		return
	}

	s, err := h.app.Sessions().Get(parts[0])
	if err != nil {
		writeError(w, http.StatusNotFound, "Session not found")
		return
	}

	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, http.StatusOK, s.State())
		case http.MethodDelete:
			h.app.Sessions().Stop(s.ID())
			w.WriteHeader(http.StatusNoContent)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
		return
	}
	if len(parts) != 2 {
		writeError(w, http.StatusNotFound, "Not found")
		return
	}

	type route struct {
		method string
		fn     func(http.ResponseWriter, *http.Request, *session.Session)
	}
	routes := map[string]route{
		"frames":   {http.MethodPost, h.frame},
		"phrase":   {http.MethodDelete, h.clear},
		"language": {http.MethodPut, h.language},
		"online":   {http.MethodPut, h.online},
		"image":    {http.MethodPost, h.image},
		"video":    {http.MethodPost, h.video},
	}
	rt, ok := routes[parts[1]]
	if !ok {
		writeError(w, http.StatusNotFound, "Not found")
		return
	}
	if r.Method != rt.method {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	rt.fn(w, r, s)
}

type createSessionRequest struct {
	Language string `json:"language"`
}

// FrameRequest carries landmarks estimated by the client.
type FrameRequest struct {
	Source  session.Source        `json:"source"`
	Results *detector.FrameResult `json:"results"`
}

type frameResponse struct {
	Outcome session.Outcome `json:"outcome"`
	State   session.State   `json:"state"`
}

func (h *SessionHandler) list(w http.ResponseWriter) {
	sessions := h.app.Sessions().List()
	states := make([]session.State, 0, len(sessions))
	for _, s := range sessions {
		states = append(states, s.State())
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": states})
}

// create handles POST /api/sessions. An empty body starts a Libras session.
func (h *SessionHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	lang, err := h.app.ParseLanguage(req.Language)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s := h.app.Sessions().Create(lang)
	writeJSON(w, http.StatusCreated, s.State())
}

// frame handles POST /api/sessions/{id}/frames.
func (h *SessionHandler) frame(w http.ResponseWriter, r *http.Request, s *session.Session) {
	var req FrameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.Results == nil {
		writeError(w, http.StatusBadRequest, "results is required")
		return
	}
	switch req.Source {
	case "":
		req.Source = session.SourceStream
	case session.SourceStream, session.SourceImage:
	default:
		writeError(w, http.StatusBadRequest, "source must be stream or image")
		return
	}

	outcome, err := h.app.Submit(s.ID(), req.Results, req.Source, time.Now())
	if err != nil {
		writeError(w, http.StatusNotFound, "Session not found")
		return
	}
	writeJSON(w, http.StatusOK, frameResponse{Outcome: outcome, State: s.State()})
}

func (h *SessionHandler) clear(w http.ResponseWriter, r *http.Request, s *session.Session) {
	s.ClearPhrase()
	writeJSON(w, http.StatusOK, s.State())
}

func (h *SessionHandler) language(w http.ResponseWriter, r *http.Request, s *session.Session) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if err := s.SetLanguage(gesture.Language(req.Language)); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.State())
}

func (h *SessionHandler) online(w http.ResponseWriter, r *http.Request, s *session.Session) {
	var req struct {
		Online *bool `json:"online"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.Online == nil {
		writeError(w, http.StatusBadRequest, "online is required")
		return
	}
	s.SetOnline(*req.Online)
	writeJSON(w, http.StatusOK, s.State())
}

// image handles POST /api/sessions/{id}/image with a multipart "image" field.
// ?vision=true sends the picture to the vision model instead of the
// landmark detector.
func (h *SessionHandler) image(w http.ResponseWriter, r *http.Request, s *session.Session) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxImageBytes)
	file, header, err := r.FormFile("image")
	if err != nil {
		writeError(w, http.StatusBadRequest, "image file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read image")
		return
	}
	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(data)
	}

	vision := r.URL.Query().Get("vision") == "true"
	state, outcome, err := h.app.RecognizeImage(r.Context(), s.ID(), data, mimeType, vision)
	if err != nil {
		status := http.StatusBadGateway
		switch {
		case errors.Is(err, app.ErrNoVision), errors.Is(err, app.ErrNoDetector):
			status = http.StatusServiceUnavailable
		case errors.Is(err, app.ErrBadImage):
			status = http.StatusBadRequest
		}
		writeJSON(w, status, map[string]any{"error": err.Error(), "state": state})
		return
	}
	writeJSON(w, http.StatusOK, frameResponse{Outcome: outcome, State: state})
}

// video handles POST /api/sessions/{id}/video with a multipart "video" field.
func (h *SessionHandler) video(w http.ResponseWriter, r *http.Request, s *session.Session) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxVideoBytes)
	file, header, err := r.FormFile("video")
	if err != nil {
		writeError(w, http.StatusBadRequest, "video file is required")
		return
	}
	defer file.Close()

	tmp, err := os.CreateTemp("", "signa-video-*"+filepath.Ext(header.Filename))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to store video")
		return
	}
	defer os.Remove(tmp.Name())
	_, err = io.Copy(tmp, file)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read video")
		return
	}

	res, err := h.app.RecognizeVideo(r.Context(), s.ID(), tmp.Name())
	if err != nil {
		h.log.WithError(err).WithField("session", s.ID()).Warn("video recognition failed")
		status := http.StatusBadRequest
		if errors.Is(err, app.ErrNoDetector) {
			status = http.StatusServiceUnavailable
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"result": res, "state": s.State()})
}
