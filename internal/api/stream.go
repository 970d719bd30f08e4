package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/mattjoyce/plugscan/internal/inspect"
)

// handleStreamPlugins handles GET /plugins/stream. Plugins are sent as
// server-sent events in pipeline order as the async pipeline yields them,
// followed by a single "done" event. A client disconnect abandons the run.
func (s *Server) handleStreamPlugins(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	// The server's WriteTimeout would cut a slow run off before "done".
	// Recorders and some wrappers cannot clear it; streaming still works.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	start := time.Now()
	var shadows inspect.Shadows
	var id int64
	for lp := range s.loader.LoadAllAsync() {
		if r.Context().Err() != nil {
			return
		}
		id++
		if err := writeSSE(w, id, "plugin", shadows.Entry(lp)); err != nil {
			return
		}
		flusher.Flush()
	}

	elapsed := time.Since(start)
	s.config.Metrics.ObserveRun("stream", int(id), elapsed)
	_ = writeSSE(w, id+1, "done", streamDone{
		Count:      int(id),
		DurationMS: elapsed.Milliseconds(),
	})
	flusher.Flush()
}

type streamDone struct {
	Count      int   `json:"count"`
	DurationMS int64 `json:"duration_ms"`
}

func writeSSE(w http.ResponseWriter, id int64, event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	// Single-line JSON, so one data: line per event.
	_, err = fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", id, event, payload)
	return err
}
