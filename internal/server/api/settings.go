// Package api provides HTTP API handlers for fingercount.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/ayusman/fingercount/internal/config"
	"github.com/ayusman/fingercount/internal/store"
)

// SettingsHandler handles HTTP requests for detection option overrides.
// Stored overrides take effect the next time the pipeline starts.
type SettingsHandler struct {
	store *store.Store
	base  config.Config
}

// NewSettingsHandler creates a new SettingsHandler. base is the configuration
// loaded from file, before stored overrides are applied.
func NewSettingsHandler(s *store.Store, base config.Config) *SettingsHandler {
	return &SettingsHandler{store: s, base: base}
}

// ServeHTTP implements the http.Handler interface and routes requests to appropriate methods.
func (h *SettingsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Expected paths: /api/settings or /api/settings/{key}
	path := strings.TrimPrefix(r.URL.Path, "/api/settings")
	path = strings.TrimPrefix(path, "/")

	if path == "" {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.list(w, r)
		return
	}

	key := path
	switch r.Method {
	case http.MethodGet:
		h.get(w, r, key)
	case http.MethodPut:
		h.set(w, r, key)
	case http.MethodDelete:
		h.delete(w, r, key)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// Request and response types

type setOptionRequest struct {
	Value string `json:"value"`
}

type optionResponse struct {
	Key        string `json:"key"`
	Value      string `json:"value"`
	Overridden bool   `json:"overridden"`
}

type listOptionsResponse struct {
	Options []optionResponse `json:"options"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// effective returns every option with stored overrides applied.
func (h *SettingsHandler) effective() ([]optionResponse, error) {
	overrides, err := h.store.Settings().Map()
	if err != nil {
		return nil, err
	}

	cfg := h.base
	if err := cfg.ApplyOverrides(overrides); err != nil {
		return nil, err
	}

	opts := cfg.Detection.Options()
	out := make([]optionResponse, 0, len(opts))
	for _, o := range opts {
		_, overridden := overrides[o.Key]
		out = append(out, optionResponse{Key: o.Key, Value: o.FormatValue(), Overridden: overridden})
	}
	return out, nil
}

// list handles GET /api/settings and returns every option.
func (h *SettingsHandler) list(w http.ResponseWriter, r *http.Request) {
	opts, err := h.effective()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load settings")
		return
	}

	writeJSON(w, http.StatusOK, listOptionsResponse{Options: opts})
}

// get handles GET /api/settings/{key} and returns a single option.
func (h *SettingsHandler) get(w http.ResponseWriter, r *http.Request, key string) {
	opts, err := h.effective()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load settings")
		return
	}

	for _, o := range opts {
		if o.Key == key {
			writeJSON(w, http.StatusOK, o)
			return
		}
	}
	writeError(w, http.StatusNotFound, "Unknown option")
}

// set handles PUT /api/settings/{key} and stores an override.
func (h *SettingsHandler) set(w http.ResponseWriter, r *http.Request, key string) {
	var req setOptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	overrides, err := h.store.Settings().Map()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load settings")
		return
	}
	overrides[key] = req.Value

	// Validate the full set so a value that conflicts with another override
	// (e.g. skin lower bound above upper bound) is rejected.
	cfg := h.base
	if err := cfg.ApplyOverrides(overrides); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.store.Settings().Set(key, strings.TrimSpace(req.Value)); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save setting")
		return
	}

	h.get(w, r, key)
}

// delete handles DELETE /api/settings/{key} and removes an override.
func (h *SettingsHandler) delete(w http.ResponseWriter, r *http.Request, key string) {
	if err := h.store.Settings().Delete(key); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "No override stored")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete setting")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
