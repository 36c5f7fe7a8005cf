package server

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/zalachat/zalachat/internal/app/relay"
	"github.com/zalachat/zalachat/pkg/logging"
	"go.uber.org/zap"
)

// serve runs the read loop of one upgraded connection until the client goes
// away or stops answering pings.
func (s *Server) serve(ws *websocket.Conn, userId string) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	conn := relay.NewConn(ws, userId, s.config.ConnOptions())
	s.hub.Register(conn)
	defer func() {
		s.hub.Unregister(conn)
		conn.Close()
	}()

	if s.config.MaxMessageSize > 0 {
		ws.SetReadLimit(s.config.MaxMessageSize)
	}
	ws.SetReadDeadline(time.Now().Add(s.config.IdleTimeout))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(s.config.IdleTimeout))
	})
	go s.ping(ctx, conn)

	for {
		_, message, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logging.Warn("connection lost",
					zap.String("user_id", userId),
					zap.String("conn_id", conn.Id()),
					zap.Error(err),
				)
			} else {
				logging.Info("connection closed",
					zap.String("user_id", userId),
					zap.String("conn_id", conn.Id()),
				)
			}
			return
		}
		ws.SetReadDeadline(time.Now().Add(s.config.IdleTimeout))

		var in relay.Inbound
		if err := json.Unmarshal(message, &in); err != nil || in.Type == "" {
			conn.Emit("error", relay.ErrorPayload{
				Code:    relay.KindInvalidInput,
				Message: "malformed frame",
			})
			continue
		}
		s.router.Dispatch(ctx, conn, in)
	}
}

func (s *Server) ping(ctx context.Context, conn *relay.Conn) {
	ticker := time.NewTicker(s.config.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deadline := time.Now().Add(s.config.WriteTimeout)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				logging.Debug("ping failed", zap.String("conn_id", conn.Id()), zap.Error(err))
				return
			}
		}
	}
}
