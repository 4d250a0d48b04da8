package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/signamoz/signa/internal/gesture"
	"github.com/signamoz/signa/internal/plugin"
	"github.com/signamoz/signa/internal/store"
)

// PluginLookup resolves plugins by name.
type PluginLookup interface {
	Get(name string) (*plugin.Plugin, error)
}

// ActionHandler handles HTTP requests for word-to-plugin bindings.
type ActionHandler struct {
	store   *store.Store
	plugins PluginLookup
}

// NewActionHandler creates a new ActionHandler. When plugins is nil, plugin
// and action names are not validated.
func NewActionHandler(s *store.Store, plugins PluginLookup) *ActionHandler {
	return &ActionHandler{store: s, plugins: plugins}
}

// ServeHTTP routes /api/actions, /api/actions/{id} and
// /api/actions/{id}/{enable,disable}.
func (h *ActionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	parts := splitPath(r, "/api/actions")

	switch len(parts) {
	case 0:
		switch r.Method {
		case http.MethodGet:
			h.list(w, r)
		case http.MethodPost:
			h.create(w, r)
		case http.MethodDelete:
			h.deletePlugin(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	case 1:
		id := parts[0]
		switch r.Method {
		case http.MethodGet:
			h.get(w, r, id)
		case http.MethodPut:
			h.update(w, r, id)
		case http.MethodDelete:
			h.delete(w, r, id)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	case 2:
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		switch parts[1] {
		case "enable":
			h.setEnabled(w, parts[0], true)
		case "disable":
			h.setEnabled(w, parts[0], false)
		default:
			writeError(w, http.StatusNotFound, "Not found")
		}
	default:
		writeError(w, http.StatusNotFound, "Not found")
	}
}

type createActionRequest struct {
	Word       string          `json:"word"`
	Language   string          `json:"language"`
	PluginName string          `json:"plugin_name"`
	ActionName string          `json:"action_name"`
	Config     json.RawMessage `json:"config"`
}

type updateActionRequest struct {
	Word       string          `json:"word"`
	Language   *string         `json:"language"`
	PluginName string          `json:"plugin_name"`
	ActionName string          `json:"action_name"`
	Config     json.RawMessage `json:"config"`
	Enabled    *bool           `json:"enabled"`
}

type actionResponse struct {
	ID         string          `json:"id"`
	Word       string          `json:"word"`
	Language   string          `json:"language"`
	PluginName string          `json:"plugin_name"`
	ActionName string          `json:"action_name"`
	Config     json.RawMessage `json:"config"`
	Enabled    bool            `json:"enabled"`
	CreatedAt  string          `json:"created_at"`
}

type listActionsResponse struct {
	Actions []actionResponse `json:"actions"`
}

func toActionResponse(a *store.Action) actionResponse {
	config := a.Config
	if config == nil {
		config = json.RawMessage("{}")
	}
	return actionResponse{
		ID:         a.ID,
		Word:       a.Word,
		Language:   a.Language,
		PluginName: a.PluginName,
		ActionName: a.ActionName,
		Config:     config,
		Enabled:    a.Enabled,
		CreatedAt:  formatTime(a.CreatedAt),
	}
}

// validate checks the language and that the plugin declares the action.
// It returns a client-facing message, or "" when the binding is valid.
func (h *ActionHandler) validate(a *store.Action) string {
	if a.Language != "" && !gesture.Language(a.Language).Valid() {
		return "Unsupported language"
	}
	if h.plugins == nil {
		return ""
	}
	p, err := h.plugins.Get(a.PluginName)
	if err != nil {
		return "Plugin not found"
	}
	if !p.Supports(a.ActionName) {
		return "Plugin does not support action " + a.ActionName
	}
	return ""
}

// writeActionError maps repository errors to responses.
func writeActionError(w http.ResponseWriter, err error, failure string) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Action not found")
		return
	}
	writeError(w, http.StatusInternalServerError, failure)
}

// list handles GET /api/actions?language=&word=&plugin=.
func (h *ActionHandler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	actions, err := h.store.Actions().List(store.ActionFilter{
		Language: q.Get("language"),
		Word:     q.Get("word"),
		Plugin:   q.Get("plugin"),
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list actions")
		return
	}

	response := listActionsResponse{
		Actions: make([]actionResponse, 0, len(actions)),
	}
	for _, a := range actions {
		response.Actions = append(response.Actions, toActionResponse(a))
	}
	writeJSON(w, http.StatusOK, response)
}

// get handles GET /api/actions/{id}.
func (h *ActionHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	action, err := h.store.Actions().GetByID(id)
	if err != nil {
		writeActionError(w, err, "Failed to get action")
		return
	}
	writeJSON(w, http.StatusOK, toActionResponse(action))
}

// create handles POST /api/actions. The word "*" binds every word.
func (h *ActionHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	switch {
	case req.Word != store.AnyWord && store.NormalizeWord(req.Word) == "":
		writeError(w, http.StatusBadRequest, "word is required")
		return
	case req.PluginName == "":
		writeError(w, http.StatusBadRequest, "plugin_name is required")
		return
	case req.ActionName == "":
		writeError(w, http.StatusBadRequest, "action_name is required")
		return
	}

	action := &store.Action{
		Word:       req.Word,
		Language:   req.Language,
		PluginName: req.PluginName,
		ActionName: req.ActionName,
		Config:     req.Config,
		Enabled:    true,
	}
	if msg := h.validate(action); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	if err := h.store.Actions().Create(action); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create action")
		return
	}
	writeJSON(w, http.StatusCreated, toActionResponse(action))
}

// update handles PUT /api/actions/{id}. Omitted fields keep their value.
func (h *ActionHandler) update(w http.ResponseWriter, r *http.Request, id string) {
	action, err := h.store.Actions().GetByID(id)
	if err != nil {
		writeActionError(w, err, "Failed to get action")
		return
	}

	var req updateActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if req.Word != "" {
		action.Word = req.Word
	}
	if req.Language != nil {
		action.Language = *req.Language
	}
	if req.PluginName != "" {
		action.PluginName = req.PluginName
	}
	if req.ActionName != "" {
		action.ActionName = req.ActionName
	}
	if req.Config != nil {
		action.Config = req.Config
	}
	if req.Enabled != nil {
		action.Enabled = *req.Enabled
	}
	if msg := h.validate(action); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	if err := h.store.Actions().Update(action); err != nil {
		writeActionError(w, err, "Failed to update action")
		return
	}
	writeJSON(w, http.StatusOK, toActionResponse(action))
}

// setEnabled handles POST /api/actions/{id}/enable and /disable.
func (h *ActionHandler) setEnabled(w http.ResponseWriter, id string, enabled bool) {
	actions := h.store.Actions()
	if err := actions.SetEnabled(id, enabled); err != nil {
		writeActionError(w, err, "Failed to update action")
		return
	}
	action, err := actions.GetByID(id)
	if err != nil {
		writeActionError(w, err, "Failed to get action")
		return
	}
	writeJSON(w, http.StatusOK, toActionResponse(action))
}

// delete handles DELETE /api/actions/{id}.
func (h *ActionHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.store.Actions().Delete(id); err != nil {
		writeActionError(w, err, "Failed to delete action")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// deletePlugin handles DELETE /api/actions?plugin=name, unbinding a plugin
// from every word.
func (h *ActionHandler) deletePlugin(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("plugin")
	if name == "" {
		writeError(w, http.StatusBadRequest, "plugin is required")
		return
	}
	n, err := h.store.Actions().DeletePlugin(name)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to delete actions")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}
