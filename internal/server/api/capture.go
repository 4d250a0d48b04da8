package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/signamoz/signa/internal/app"
)

// CaptureHandler controls server-side camera capture at /api/capture/*.
type CaptureHandler struct {
	app *app.App
}

// NewCaptureHandler creates a CaptureHandler.
func NewCaptureHandler(a *app.App) *CaptureHandler {
	return &CaptureHandler{app: a}
}

func (h *CaptureHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	parts := splitPath(r, "/api/capture")
	if len(parts) != 1 {
		writeError(w, http.StatusNotFound, "Not found")
		return
	}

	method := http.MethodPost
	if parts[0] == "snapshot" {
		method = http.MethodGet
	}
	if r.Method != method {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	switch parts[0] {
	case "start":
		h.start(w, r)
	case "stop":
		h.app.StopCapture()
		w.WriteHeader(http.StatusNoContent)
	case "switch":
		device, err := h.app.SwitchCamera()
		if err != nil {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"device": device})
	case "snapshot":
		data, err := h.app.Snapshot()
		if err != nil {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write(data)
	default:
		writeError(w, http.StatusNotFound, "Not found")
	}
}

func (h *CaptureHandler) start(w http.ResponseWriter, r *http.Request) {
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

	s, err := h.app.StartCapture(lang)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, app.ErrNoCamera) {
			status = http.StatusServiceUnavailable
		}
		writeError(w, status, app.StatusCameraFailed+": "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.State())
}
