package station

import (
	"sync"
	"time"

	"stationfleet/internal/ocppconfig"
)

// BootNotificationResult is the nullable registration gate named in
// spec.md §3: nil until a BootNotification response arrives.
type BootNotificationResult struct {
	Status      string
	Interval    int
	CurrentTime time.Time
}

// Accepted reports whether this boot result registers the station.
func (b *BootNotificationResult) Accepted() bool {
	return b != nil && b.Status == "Accepted"
}

// Station holds the identity, derived electrical values and mutable
// runtime state described in spec.md §3. It is embedded in Engine, which
// adds behavior; Station itself stays a plain data holder so tests can
// construct one without an engine.
type Station struct {
	mu sync.RWMutex

	HashID            string
	ChargingStationID string
	Index             int
	OcppVersion       string

	MaximumPowerW  float64
	MaximumAmperage float64
	VoltageOut     int
	NumberOfPhases int
	CurrentOutType CurrentOutType
	PowerDivider   int

	Started  bool
	Starting bool
	Stopping bool

	BootNotificationResponse *BootNotificationResult
	HeartbeatIntervalSeconds int
	FirmwareStatus           string

	Connectors map[int]*Connector
	Evses      map[int]*EVSE

	ConfigKeys *ocppconfig.KeyStore

	SupervisionURL string
}

// Accepted reports whether non-boot OCPP requests may be issued, per
// spec.md §3's invariant: "A station with bootNotificationResponse.status
// = Accepted is the only state in which non-boot OCPP requests may be
// issued".
func (s *Station) Accepted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.BootNotificationResponse.Accepted()
}

// HasEvses reports which topology this station uses; exactly one of
// {Connectors, Evses} is non-empty (spec.md §3).
func (s *Station) HasEvses() bool {
	return len(s.Evses) > 0
}

// ConnectorByID returns the connector for id, flattening the EVSE
// topology if present. id 0 is the station-global pseudo connector and is
// always looked up in Connectors even under the EVSE topology.
func (s *Station) ConnectorByID(id int) (*Connector, bool) {
	if s.HasEvses() && id != 0 {
		for _, evse := range s.Evses {
			if c, ok := evse.Connectors[id]; ok {
				return c, true
			}
		}
		return nil, false
	}
	c, ok := s.Connectors[id]
	return c, ok
}

// AllConnectors returns every connector, flattening EVSEs if present, in
// unspecified order (callers needing determinism should sort by Index).
func (s *Station) AllConnectors() []*Connector {
	var out []*Connector
	if s.HasEvses() {
		for _, evse := range s.Evses {
			for _, c := range evse.Connectors {
				out = append(out, c)
			}
		}
		return out
	}
	for _, c := range s.Connectors {
		out = append(out, c)
	}
	return out
}

// RunningTransactions counts connectors with an active transaction, used
// by the powerSharedByConnectors override of PowerDivider (spec.md
// §4.1 step 4).
func (s *Station) RunningTransactions() int {
	n := 0
	for _, c := range s.AllConnectors() {
		if c.TransactionStarted {
			n++
		}
	}
	return n
}

// NumberOfConnectors reports the connector count, flattening EVSEs.
func (s *Station) NumberOfConnectors() int {
	if s.HasEvses() {
		n := 0
		for _, evse := range s.Evses {
			n += len(evse.Connectors)
		}
		return n
	}
	return len(s.Connectors)
}
