package station

import (
	"time"

	"stationfleet/internal/ocpp"
)

// These methods back the ADD_RESERVATION/REMOVE_RESERVATION control-bus
// procedures of spec.md §4.1: the operator-facing counterpart of the
// CSMS-triggered OnReserveNow/OnCancelReservation handlers in incoming.go,
// letting a simulator run exercise the reservation lifecycle without a
// live CSMS driving it.

// AddReservation reserves connectorID for idTag until expiryDate,
// refusing a connector that is mid-transaction or Inoperative the same
// way OnReserveNow does.
func (e *Engine) AddReservation(connectorID, reservationID int, idTag, parentIdTag string, expiryDate time.Time) error {
	c, ok := e.ConnectorByID(connectorID)
	if !ok {
		return ocpp.NewStateError("unknown connector")
	}
	if c.TransactionStarted {
		return ocpp.NewStateError("connector has a running transaction")
	}
	if c.Availability == Inoperative {
		return ocpp.NewStateError("connector is inoperative")
	}

	e.applyReservation(c, Reservation{
		ID:          reservationID,
		ConnectorID: connectorID,
		IdTag:       idTag,
		ParentIdTag: parentIdTag,
		ExpiryDate:  expiryDate,
		Status:      "Accepted",
	})
	return nil
}

// RemoveReservation cancels the reservation identified by reservationID
// and returns its connector to its pre-reservation state, mirroring
// OnCancelReservation.
func (e *Engine) RemoveReservation(reservationID int) error {
	for _, c := range e.AllConnectors() {
		if c.Reservation != nil && c.Reservation.ID == reservationID {
			e.terminateReservation(c, ReservationCanceled)
			return nil
		}
	}
	return ocpp.NewStateError("no such reservation")
}
