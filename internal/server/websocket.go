package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"nhooyr.io/websocket"
)

// statePushInterval is how often the BotState snapshot is re-sent to a
// connected websocket client.
const statePushInterval = 2 * time.Second

// handleStateWS accepts a websocket connection and pushes the current
// BotState snapshot every statePushInterval until the client disconnects
// (spec.md §6 "GET /ws/state" supplemental surface). Grounded on the
// teacher's nhooyr.io/websocket usage (internal/clients/tradernet's
// dial/read/write pattern), adapted from client-dial to server-accept.
func (s *Server) handleStateWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket accept failed")
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	ctx := r.Context()
	ticker := time.NewTicker(statePushInterval)
	defer ticker.Stop()

	if err := s.writeState(ctx, conn); err != nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.writeState(ctx, conn); err != nil {
				s.log.Debug().Err(err).Msg("websocket write failed, closing")
				return
			}
		}
	}
}

func (s *Server) writeState(ctx context.Context, conn *websocket.Conn) error {
	data, err := json.Marshal(s.store.Load())
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}
