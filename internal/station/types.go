// Package station implements StationEngine: the per-station actor owning
// the WebSocket connection, protocol state, connectors/EVSEs and OCPP
// services (spec.md §2, §3, §4.1).
package station

import "time"

// Availability values, shared by both protocol versions.
type Availability string

const (
	Operative   Availability = "Operative"
	Inoperative Availability = "Inoperative"
)

// ConnectorStatus values. OCPP 1.6 uses the full set; OCPP 2.0.1 uses the
// reduced subset {Available, Occupied, Reserved, Unavailable, Faulted}
// (spec.md §3).
type ConnectorStatus string

const (
	StatusAvailable     ConnectorStatus = "Available"
	StatusPreparing     ConnectorStatus = "Preparing"
	StatusCharging      ConnectorStatus = "Charging"
	StatusSuspendedEVSE ConnectorStatus = "SuspendedEVSE"
	StatusSuspendedEV   ConnectorStatus = "SuspendedEV"
	StatusFinishing     ConnectorStatus = "Finishing"
	StatusReserved      ConnectorStatus = "Reserved"
	StatusUnavailable   ConnectorStatus = "Unavailable"
	StatusFaulted       ConnectorStatus = "Faulted"

	// OCPP 2.0.1 reduced set alias.
	StatusOccupied ConnectorStatus = "Occupied"
)

// CurrentOutType values.
type CurrentOutType string

const (
	CurrentAC CurrentOutType = "AC"
	CurrentDC CurrentOutType = "DC"
)

// ReservationTerminationReason values. Resolves SPEC_FULL.md Open Question
// #2: an explicit three-way switch, not the source's defective `||`
// chain.
type ReservationTerminationReason string

const (
	ReservationCanceled       ReservationTerminationReason = "RESERVATION_CANCELED"
	ReservationReplaced       ReservationTerminationReason = "REPLACE_EXISTING"
	ReservationExpired        ReservationTerminationReason = "EXPIRED"
	ReservationTransactionStarted ReservationTerminationReason = "TRANSACTION_STARTED"
)

// Reservation mirrors spec.md §3.
type Reservation struct {
	ID            int
	ConnectorID   int
	IdTag         string
	ParentIdTag   string
	ExpiryDate    time.Time
	Status        string
}

// ChargingProfile is opaque to the simulator beyond being stored and
// echoed back on GetCompositeSchedule/ClearChargingProfile.
type ChargingProfile map[string]interface{}

// Connector mirrors spec.md §3. Index 0 is the station-global pseudo
// connector.
type Connector struct {
	Index        int
	Availability Availability
	Status       ConnectorStatus

	TransactionStarted bool
	TransactionID      int
	TransactionIdTag   string
	TransactionStart   time.Time

	EnergyActiveImportRegisterValue            float64 // Wh, cumulative, never reset
	TransactionEnergyActiveImportRegisterValue float64 // Wh, reset per transaction

	LastMeterValueAt time.Time // strictCompliance's out-of-order guard

	AuthorizeIdTag        string
	IdTagAuthorized       bool
	LocalAuthorizeIdTag   string
	IdTagLocalAuthorized  bool

	Reservation      *Reservation
	ChargingProfiles []ChargingProfile
}

// NewConnector returns an Available, Operative connector at index i.
func NewConnector(index int) *Connector {
	return &Connector{
		Index:        index,
		Availability: Operative,
		Status:       StatusAvailable,
	}
}

// HasTransaction reports the invariant "transactionId set iff
// transactionStarted" (spec.md §3, §8) holding true.
func (c *Connector) HasTransaction() bool {
	return c.TransactionStarted
}

// EVSE groups connectors under the OCPP 2.0 topology (spec.md §3).
type EVSE struct {
	Index        int
	Availability Availability
	Connectors   map[int]*Connector
}
