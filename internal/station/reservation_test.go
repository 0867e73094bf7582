package station

import (
	"testing"
	"time"

	"go.uber.org/zap"
)

func newTestEngine() *Engine {
	st := &Station{
		ChargingStationID: "RES-1",
		OcppVersion:       "1.6",
		Connectors:        map[int]*Connector{1: NewConnector(1)},
	}
	// A short request timeout keeps Call()'s blocking wait for a
	// CALLRESULT bounded even though this engine never opens a
	// connection: every outbound frame here just buffers and times out.
	return New(st, zap.NewNop(), Options{RequestTimeout: 5 * time.Millisecond}, nil)
}

func TestAddReservationThenRemoveReturnsConnectorToPreState(t *testing.T) {
	e := newTestEngine()
	c, _ := e.ConnectorByID(1)
	before := c.Status

	expiry := time.Now().Add(time.Hour)
	if err := e.AddReservation(1, 42, "TAG1", "", expiry); err != nil {
		t.Fatalf("AddReservation: %v", err)
	}
	if c.Status != StatusReserved {
		t.Fatalf("expected Reserved after AddReservation, got %s", c.Status)
	}
	if c.Reservation == nil || c.Reservation.ID != 42 {
		t.Fatalf("expected reservation 42 to be recorded, got %+v", c.Reservation)
	}

	if err := e.RemoveReservation(42); err != nil {
		t.Fatalf("RemoveReservation: %v", err)
	}
	if c.Reservation != nil {
		t.Fatal("expected the reservation to be cleared")
	}
	if c.Status != before {
		t.Fatalf("expected the connector to return to its pre-reservation status %s, got %s", before, c.Status)
	}
}

func TestAddReservationRejectsUnknownConnector(t *testing.T) {
	e := newTestEngine()
	if err := e.AddReservation(99, 1, "TAG1", "", time.Now().Add(time.Hour)); err == nil {
		t.Fatal("expected an error reserving an unknown connector")
	}
}

func TestAddReservationRejectsInoperativeConnector(t *testing.T) {
	e := newTestEngine()
	c, _ := e.ConnectorByID(1)
	c.Availability = Inoperative

	if err := e.AddReservation(1, 1, "TAG1", "", time.Now().Add(time.Hour)); err == nil {
		t.Fatal("expected an error reserving an inoperative connector")
	}
}

func TestRemoveReservationRejectsUnknownID(t *testing.T) {
	e := newTestEngine()
	if err := e.RemoveReservation(999); err == nil {
		t.Fatal("expected an error removing a reservation that doesn't exist")
	}
}
