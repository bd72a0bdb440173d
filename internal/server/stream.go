package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/p-n-ai/pai-courses/internal/auth"
)

const streamWriteTimeout = 5 * time.Second

// handleStream pushes the user's notifications over a websocket until the
// client goes away. Messages from the client are ignored.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserFrom(r.Context())

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		slog.Warn("websocket accept failed", "user_id", userID, "error", err)
		return
	}
	defer conn.CloseNow()

	notes, cancel := s.hub.Subscribe(userID)
	defer cancel()

	ctx := conn.CloseRead(r.Context())
	slog.Debug("notification stream opened", "user_id", userID)

	for {
		select {
		case <-ctx.Done():
			slog.Debug("notification stream closed", "user_id", userID)
			return
		case n, ok := <-notes:
			if !ok {
				conn.Close(websocket.StatusNormalClosure, "")
				return
			}
			writeCtx, done := context.WithTimeout(ctx, streamWriteTimeout)
			err := wsjson.Write(writeCtx, conn, n)
			done()
			if err != nil {
				slog.Warn("notification stream write failed", "user_id", userID, "error", err)
				return
			}
		}
	}
}
