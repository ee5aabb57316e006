package web

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const writeWait = 10 * time.Second

// handleSignalReplay streams the signal table one event per message, in
// date order, then closes normally.
func (s *Server) handleSignalReplay(w http.ResponseWriter, r *http.Request) {
	events, err := s.signals(r)
	if err != nil {
		s.logger.Error("Failed to list signals", zap.Error(err))
		http.Error(w, "Failed to list signals", http.StatusInternalServerError)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("Websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	for _, e := range events {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(e); err != nil {
			s.logger.Warn("Replay aborted", zap.Error(err))
			return
		}
	}

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "replay complete")
	if err := conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait)); err != nil {
		s.logger.Warn("Failed to close replay", zap.Error(err))
	}
	s.logger.Debug("Signal replay sent", zap.Int("events", len(events)))
}
