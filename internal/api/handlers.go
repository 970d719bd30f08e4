package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mattjoyce/plugscan/internal/inspect"
)

// handleHealthz handles GET /healthz.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	roots := s.config.Roots
	if roots == nil {
		roots = []string{}
	}
	respondJSON(w, http.StatusOK, HealthzResponse{
		Status:        "ok",
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
		Roots:         roots,
	})
}

// handleListPlugins handles GET /plugins. Each request runs a fresh pipeline;
// ?mode=sync selects the sequential variant.
func (s *Server) handleListPlugins(w http.ResponseWriter, r *http.Request) {
	mode, ok := s.mode(w, r)
	if !ok {
		return
	}
	entries := s.collect(mode)
	respondJSON(w, http.StatusOK, PluginsResponse{Mode: mode, Count: len(entries), Plugins: entries})
}

// handleGetPlugin handles GET /plugins/{name}. Every plugin with that name is
// returned, highest priority first.
func (s *Server) handleGetPlugin(w http.ResponseWriter, r *http.Request) {
	mode, ok := s.mode(w, r)
	if !ok {
		return
	}
	name := chi.URLParam(r, "name")

	var all []inspect.Entry
	for _, e := range s.collect(mode) {
		if e.Name == name {
			all = append(all, e)
		}
	}
	if len(all) == 0 {
		s.writeError(w, http.StatusNotFound, "plugin not found")
		return
	}
	respondJSON(w, http.StatusOK, PluginsResponse{Mode: mode, Count: len(all), Plugins: all})
}

func (s *Server) mode(w http.ResponseWriter, r *http.Request) (string, bool) {
	switch mode := r.URL.Query().Get("mode"); mode {
	case "", "async":
		return "async", true
	case "sync":
		return "sync", true
	default:
		s.writeError(w, http.StatusBadRequest, "mode must be sync or async")
		return "", false
	}
}

// collect runs the pipeline in the given mode. Shadowing is computed over the
// full run so filtered results keep their notes.
func (s *Server) collect(mode string) []inspect.Entry {
	start := time.Now()
	var entries []inspect.Entry
	if mode == "sync" {
		entries = inspect.Build(s.loader.LoadAll())
	} else {
		var shadows inspect.Shadows
		entries = []inspect.Entry{}
		for lp := range s.loader.LoadAllAsync() {
			entries = append(entries, shadows.Entry(lp))
		}
	}
	s.config.Metrics.ObserveRun(mode, len(entries), time.Since(start))
	return entries
}

// respondJSON writes a JSON response with the given status code.
func respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response
func (s *Server) writeError(w http.ResponseWriter, statusCode int, message string) {
	respondJSON(w, statusCode, ErrorResponse{Error: message})
}
