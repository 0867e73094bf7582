package station

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"stationfleet/internal/ocpp"
)

const writeWait = 10 * time.Second

// Call implements ocpp.Sender: encode and send a CALL, register it in the
// request cache, and block until its CALLRESULT/CALLERROR arrives or its
// deadline fires (spec.md §4.1/§8's request/response correlation).
func (e *Engine) Call(ctx context.Context, action string, payload interface{}) ([]byte, error) {
	if e.opts.StrictCompliance && action != "BootNotification" && !e.Accepted() {
		return nil, ocpp.NewStateError(action + " refused before BootNotification is accepted (strict compliance)")
	}

	id := ocpp.NewMessageID()
	frame, err := ocpp.BuildCall(id, action, payload)
	if err != nil {
		return nil, err
	}

	type result struct {
		payload []byte
		err     error
	}
	done := make(chan result, 1)
	e.reqCache.Register(id, action, payload, func() {
		done <- result{err: ocpp.NewTimeoutError(id, action)}
	})
	e.reqCache.SetCallbacks(id,
		func(p []byte) { done <- result{payload: p} },
		func(err error) { done <- result{err: err} },
	)

	// If the connection is currently down, the frame is buffered and sent
	// once it reopens; the cache entry stays armed and will either resolve
	// against the eventual response or expire on its own timeout.
	e.enqueue(frame, action)
	e.recordAudit(ctx, "out", "CALL", action, frame)

	select {
	case r := <-done:
		return r.payload, r.err
	case <-ctx.Done():
		e.reqCache.Reject(id, ctx.Err())
		return nil, ctx.Err()
	}
}

// Result implements ocpp.Sender: reply to a received CALL with a
// CALLRESULT.
func (e *Engine) Result(id string, payload interface{}) error {
	frame, err := ocpp.BuildCallResult(id, payload)
	if err != nil {
		return err
	}
	e.enqueue(frame, "")
	e.recordAudit(context.Background(), "out", "CALLRESULT", "", frame)
	return nil
}

// Error implements ocpp.Sender: reply to a received CALL with a
// CALLERROR.
func (e *Engine) Error(id, code, description string) error {
	frame, err := ocpp.BuildCallError(id, code, description, nil)
	if err != nil {
		return err
	}
	e.enqueue(frame, "")
	e.recordAudit(context.Background(), "out", "CALLERROR", code, frame)
	return nil
}

// enqueue hands frame to the write pump if the connection is open,
// otherwise buffers it for delivery once reconnected (spec.md §4.1's
// bufferable outgoing requests). Returns false when the frame was
// buffered rather than sent.
func (e *Engine) enqueue(frame []byte, action string) bool {
	e.connMu.Lock()
	ch := e.send
	e.connMu.Unlock()

	if ch == nil {
		e.bufferOutgoing(frame)
		return false
	}
	select {
	case ch <- frame:
		return true
	default:
		e.logger.Warn("station: send buffer full, dropping oldest", zap.String("station", e.ChargingStationID))
		e.bufferOutgoing(frame)
		return false
	}
}

func (e *Engine) bufferOutgoing(frame []byte) {
	e.bufferMu.Lock()
	defer e.bufferMu.Unlock()
	e.buffer = append(e.buffer, frame)
	e.wsConnectionRestarted = true
}

func (e *Engine) flushBuffer() {
	e.bufferMu.Lock()
	pending := e.buffer
	e.buffer = nil
	e.bufferMu.Unlock()

	for _, frame := range pending {
		e.enqueue(frame, "")
	}
}

func (e *Engine) recordAudit(ctx context.Context, direction, messageType, action string, payload []byte) {
	if e.audit == nil {
		return
	}
	e.audit.Record(ctx, e.HashID, direction, messageType, action, payload)
}

// writePump drains the send channel onto the socket until it closes.
// Grounded on the teacher's ws.Connection.writePump (one writer per
// connection, channel-fed to avoid concurrent WriteMessage calls).
func (e *Engine) writePump() {
	e.connMu.Lock()
	conn := e.conn
	ch := e.send
	e.connMu.Unlock()
	if conn == nil {
		return
	}

	for frame := range ch {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			e.logger.Warn("station: write failed", zap.String("station", e.ChargingStationID), zap.Error(err))
			e.handleDisconnect()
			return
		}
	}
}

// readPump reads inbound frames, parses and routes them, until the socket
// closes or errors, then triggers the reconnect policy.
func (e *Engine) readPump() {
	e.connMu.Lock()
	conn := e.conn
	e.connMu.Unlock()
	if conn == nil {
		return
	}

	conn.SetPongHandler(func(string) error { return nil })

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				e.logger.Info("station: connection closed normally", zap.String("station", e.ChargingStationID))
				e.handleNormalClose()
				return
			}
			e.logger.Info("station: connection closed", zap.String("station", e.ChargingStationID), zap.Error(err))
			e.handleDisconnect()
			return
		}
		e.dispatchInbound(data)
	}
}

// dispatchInbound routes one parsed frame: CALLRESULT/CALLERROR resolve
// or reject a cached request; CALL is handed to the active OCPP service.
func (e *Engine) dispatchInbound(data []byte) {
	frame, err := ocpp.Parse(data)
	if err != nil {
		e.logger.Warn("station: malformed inbound frame", zap.String("station", e.ChargingStationID), zap.Error(err))
		return
	}

	switch frame.Type {
	case ocpp.TypeCall:
		e.recordAudit(context.Background(), "in", "CALL", frame.Action, data)
		if err := e.activeService().HandleIncoming(context.Background(), e, frame.UniqueID, frame.Action, frame.Payload); err != nil {
			e.logger.Warn("station: incoming handler failed", zap.String("action", frame.Action), zap.Error(err))
		}
	case ocpp.TypeCallResult:
		e.recordAudit(context.Background(), "in", "CALLRESULT", "", data)
		e.reqCache.Resolve(frame.UniqueID, frame.Payload)
	case ocpp.TypeCallError:
		e.recordAudit(context.Background(), "in", "CALLERROR", frame.ErrorCode, data)
		e.reqCache.Reject(frame.UniqueID, &ocpp.CallError{Code: frame.ErrorCode, Description: frame.ErrorDesc, Details: frame.ErrorDetails})
	}
}
