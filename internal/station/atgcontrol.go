package station

import (
	"context"
	"time"

	"stationfleet/internal/ocpp"
)

// StartATG implements spec.md §4.1's startATG(connectorIds?): starts the
// bound ATGController for the given connectors, or every connector if
// connectorIDs is empty.
func (e *Engine) StartATG(connectorIDs []int) error {
	if e.atg == nil {
		return ocpp.NewStateError("no automatic transaction generator configured")
	}
	e.atg.Start(connectorIDs)
	return nil
}

// StopATG implements spec.md §4.1's stopATG(connectorIds?).
func (e *Engine) StopATG(connectorIDs []int) error {
	if e.atg == nil {
		return ocpp.NewStateError("no automatic transaction generator configured")
	}
	e.atg.Stop(connectorIDs)
	return nil
}

// Heartbeat sends a Heartbeat request outside the automatic timer, used
// by control-plane-triggered heartbeats (spec.md §4.5's HEARTBEAT
// procedure).
func (e *Engine) Heartbeat(ctx context.Context) (time.Time, error) {
	return e.sendHeartbeat(ctx)
}
