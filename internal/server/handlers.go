package server

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/aristath/spotengine/internal/botstate"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Load())
}

// controlRequest is the JSON body accepted by every /api/control/*
// route. Only the fields relevant to that command need be present.
type controlRequest struct {
	Symbol string         `json:"symbol,omitempty"`
	Reason string         `json:"reason,omitempty"`
	Config map[string]any `json:"config,omitempty"`
}

// handleControl builds a handler that decodes a controlRequest, enqueues
// the typed Command for the coordinator to process, and waits (bounded by
// a request timeout) for the structured Result (spec.md §6 "Each returns
// a structured result").
func (s *Server) handleControl(cmdType botstate.CommandType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req controlRequest
		if r.Body != nil {
			body, err := io.ReadAll(r.Body)
			if err != nil {
				writeJSON(w, http.StatusBadRequest, botstate.Result{OK: false, Message: "failed to read body"})
				return
			}
			if len(body) > 0 {
				if err := json.Unmarshal(body, &req); err != nil {
					writeJSON(w, http.StatusBadRequest, botstate.Result{OK: false, Message: "invalid JSON body"})
					return
				}
			}
		}

		cmd := botstate.Command{Type: cmdType, Symbol: req.Symbol, Reason: req.Reason, Config: req.Config}
		resultCh := s.queue.Enqueue(cmd)

		select {
		case result := <-resultCh:
			status := http.StatusOK
			if !result.OK {
				status = http.StatusConflict
			}
			writeJSON(w, status, result)
		case <-time.After(s.controlTimeout):
			writeJSON(w, http.StatusGatewayTimeout, botstate.Result{OK: false, Message: "coordinator did not respond in time"})
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
