package station

import (
	"context"
	"math"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// startHeartbeatTimer arms a ticker sending Heartbeat every
// HeartbeatIntervalSeconds, per spec.md §4.1's post-accept setup. A zero
// or negative interval disables the timer, matching a CSMS that never
// wants heartbeats.
func (e *Engine) startHeartbeatTimer() {
	e.stopHeartbeatTimer()
	if e.HeartbeatIntervalSeconds <= 0 {
		return
	}
	stop := make(chan struct{})
	e.stopHeartbeat = stop
	go func() {
		ticker := time.NewTicker(time.Duration(e.HeartbeatIntervalSeconds) * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if _, err := e.sendHeartbeat(context.Background()); err != nil {
					e.logger.Warn("station: heartbeat failed", zap.String("station", e.ChargingStationID), zap.Error(err))
				}
			case <-stop:
				return
			}
		}
	}()
}

func (e *Engine) stopHeartbeatTimer() {
	if e.stopHeartbeat != nil {
		close(e.stopHeartbeat)
		e.stopHeartbeat = nil
	}
}

// startPingTimer sends a WebSocket-level ping independent of the OCPP
// Heartbeat action, matching real charge point firmware that keeps the
// transport alive under NAT/load-balancer idle timeouts even when the
// OCPP heartbeat interval is long.
func (e *Engine) startPingTimer() {
	e.stopPingTimer()
	stop := make(chan struct{})
	e.stopPing = stop
	interval := time.Duration(e.opts.WebSocketPingIntervalSec) * time.Second
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				e.connMu.Lock()
				conn := e.conn
				e.connMu.Unlock()
				if conn == nil {
					continue
				}
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
					e.logger.Warn("station: ping failed", zap.String("station", e.ChargingStationID), zap.Error(err))
				}
			case <-stop:
				return
			}
		}
	}()
}

func (e *Engine) stopPingTimer() {
	if e.stopPing != nil {
		close(e.stopPing)
		e.stopPing = nil
	}
}

// handleNormalClose implements spec.md §4.1's close semantics: a normal
// close code (1000, 1005) resets the reconnect counter and ends the
// lifecycle cleanly, rather than scheduling a reconnect. The station
// stays stopped until Start is called again.
func (e *Engine) handleNormalClose() {
	e.reconnectRetryCount = 0

	e.lifecycleMu.Lock()
	started := e.Started && !e.Stopping
	e.lifecycleMu.Unlock()
	if !started {
		return
	}
	e.Stop("connection closed normally")
}

// handleDisconnect implements spec.md §4.1's automatic reconnect policy:
// exponential (or fixed) backoff up to AutoReconnectMaxRetries, or gives
// up and leaves the station stopped when the budget is exhausted.
func (e *Engine) handleDisconnect() {
	e.lifecycleMu.Lock()
	stopped := !e.Started || e.Stopping
	e.lifecycleMu.Unlock()
	if stopped {
		return
	}

	e.stopHeartbeatTimer()
	e.stopPingTimer()
	e.closeConnection()

	if e.opts.AutoReconnectMaxRetries == 0 {
		e.logger.Info("station: reconnect disabled, stopping", zap.String("station", e.ChargingStationID))
		e.Stop("connection lost, reconnect disabled")
		return
	}
	if e.opts.AutoReconnectMaxRetries > 0 && e.reconnectRetryCount >= e.opts.AutoReconnectMaxRetries {
		e.logger.Warn("station: reconnect attempts exhausted, stopping", zap.String("station", e.ChargingStationID))
		e.Stop("reconnect attempts exhausted")
		return
	}

	e.reconnectRetryCount++
	delay := e.reconnectDelay()
	e.wsConnectionRestarted = true

	go func() {
		time.Sleep(delay)
		e.lifecycleMu.Lock()
		stillStarted := e.Started && !e.Stopping
		e.lifecycleMu.Unlock()
		if !stillStarted {
			return
		}
		if err := e.openConnection(context.Background(), dialOptions{}); err != nil {
			e.logger.Warn("station: reconnect attempt failed", zap.String("station", e.ChargingStationID), zap.Int("attempt", e.reconnectRetryCount), zap.Error(err))
			e.handleDisconnect()
		}
	}()
}

// reconnectDelay implements the exponential-or-fixed choice named in
// spec.md §6: base 1s, doubling per attempt, capped at 60s.
func (e *Engine) reconnectDelay() time.Duration {
	if !e.opts.ReconnectExponentialDelay {
		return 5 * time.Second
	}
	seconds := math.Pow(2, float64(e.reconnectRetryCount-1))
	if seconds > 60 {
		seconds = 60
	}
	return time.Duration(seconds) * time.Second
}

func (e *Engine) stopAllMeterTimers() {
	e.meterTimersMu.Lock()
	defer e.meterTimersMu.Unlock()
	for id, stop := range e.meterStop {
		close(stop)
		delete(e.meterStop, id)
	}
}
