package uiserver

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"stationfleet/internal/controlbus"
)

const (
	closeProtocolError = 1002
	closeInvalidPayload = 1007

	writeWait = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	Subprotocols:    []string{"ui0.0.1"},
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// handleControlWS implements spec.md §4.6's WebSocket transport: validate
// the sub-protocol, then for each message validate the
// `[uuid, procedure, payload]` shape, dispatch through ControlBus, and
// push the correlated response back. Grounded on the teacher's
// ocpp-server/internal/ws/connection.go read-loop shape, generalized from
// one message type to the control-plane's typed request/response pair.
func (s *Server) handleControlWS(w http.ResponseWriter, r *http.Request) {
	if !wsAuthorized(s.cfg.Auth, r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("uiserver: ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	if conn.Subprotocol() != "ui0.0.1" {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(closeProtocolError, "unsupported sub-protocol"),
			time.Now().Add(writeWait))
		return
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var frame []json.RawMessage
		if unmarshalErr := json.Unmarshal(data, &frame); unmarshalErr != nil || len(frame) != 3 {
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(closeProtocolError, "malformed control frame"),
				time.Now().Add(writeWait))
			return
		}

		var msgUUID, procedure string
		var payload map[string]interface{}
		if err := json.Unmarshal(frame[0], &msgUUID); err != nil || msgUUID == "" {
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(closeInvalidPayload, "invalid uuid"),
				time.Now().Add(writeWait))
			return
		}
		if err := json.Unmarshal(frame[1], &procedure); err != nil || procedure == "" {
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(closeInvalidPayload, "invalid procedure"),
				time.Now().Add(writeWait))
			return
		}
		if len(frame[2]) > 0 {
			if err := json.Unmarshal(frame[2], &payload); err != nil {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(closeInvalidPayload, "invalid payload"),
					time.Now().Add(writeWait))
				return
			}
		}

		req := controlbus.Request{
			UUID:      msgUUID,
			Procedure: procedure,
			Payload:   payload,
			HashIds:   hashIdsFromPayload(payload),
		}

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		out := dispatch(ctx, s.bus, req)
		cancel()

		response, err := json.Marshal([2]interface{}{msgUUID, out})
		if err != nil {
			s.logger.Warn("uiserver: encode ws response failed", zap.Error(err))
			continue
		}
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, response); err != nil {
			return
		}
	}
}
