// Package stationtemplate implements TemplateStore: loading, content
// hashing and caching of station template files, per spec.md §2 and §6.
package stationtemplate

import "encoding/json"

// ConnectorTemplate describes one physical connector in the template file.
type ConnectorTemplate struct {
	Status                string `json:"status,omitempty"`
	Availability          string `json:"availability,omitempty"`
	Bootstatus            string `json:"bootStatus,omitempty"`
	MeterValuesIntervalMs int    `json:"meterValueSampleInterval,omitempty"`
}

// EVSETemplate groups connectors when the template uses OCPP 2.0 topology.
type EVSETemplate struct {
	Availability string                       `json:"availability,omitempty"`
	Connectors   map[string]ConnectorTemplate `json:"connectors,omitempty"`
}

// AutomaticTransactionGeneratorTemplate is the ATG's template-supplied
// policy, see spec.md §4.3.
type AutomaticTransactionGeneratorTemplate struct {
	Enable                          bool    `json:"enable"`
	MinDelayBetweenTwoTransactions  int     `json:"minDelayBetweenTwoTransactions"`
	MaxDelayBetweenTwoTransactions  int     `json:"maxDelayBetweenTwoTransactions"`
	ProbabilityOfStart              float64 `json:"probabilityOfStart"`
	MinDurationMs                   int     `json:"minDuration"`
	MaxDurationMs                   int     `json:"maxDuration"`
	StopAfterHours                  float64 `json:"stopAfterHours"`
	RequireAuthorize                bool    `json:"requireAuthorize"`
	StopOnConnectionFailure         bool    `json:"stopOnConnectionFailure"`
}

// Template is the parsed shape of a station template file, per spec.md §6.
type Template struct {
	ChargePointModel               string                                 `json:"chargePointModel"`
	ChargePointVendor               string                                 `json:"chargePointVendor"`
	FirmwareVersion                 string                                 `json:"firmwareVersion,omitempty"`
	FirmwareVersionPattern           string                                 `json:"firmwareVersionPattern,omitempty"`
	Power                            json.RawMessage                        `json:"power"` // number or []number
	PowerUnit                        string                                 `json:"powerUnit"`
	NumberOfPhases                   int                                    `json:"numberOfPhases,omitempty"`
	CurrentOutType                   string                                 `json:"currentOutType,omitempty"`
	VoltageOut                       int                                    `json:"voltageOut,omitempty"`
	OcppVersion                      string                                 `json:"ocppVersion,omitempty"`
	SupervisionUrls                  json.RawMessage                        `json:"supervisionUrls,omitempty"`
	SupervisionUrlOcppConfiguration  bool                                   `json:"supervisionUrlOcppConfiguration,omitempty"`
	SupervisionUrlOcppKey            string                                 `json:"supervisionUrlOcppKey,omitempty"`
	UseConnectorId0                  *bool                                  `json:"useConnectorId0,omitempty"`
	RandomConnectors                 bool                                   `json:"randomConnectors,omitempty"`
	AutoRegister                     bool                                   `json:"autoRegister,omitempty"`
	AmperageLimitationOcppKey        string                                 `json:"amperageLimitationOcppKey,omitempty"`
	PowerSharedByConnectors          bool                                   `json:"powerSharedByConnectors,omitempty"`
	Connectors                       map[string]ConnectorTemplate           `json:"Connectors,omitempty"`
	Evses                            map[string]EVSETemplate                `json:"Evses,omitempty"`
	AutomaticTransactionGenerator    *AutomaticTransactionGeneratorTemplate `json:"AutomaticTransactionGenerator,omitempty"`
	Configuration                    map[string]interface{}                `json:"Configuration,omitempty"`

	// TemplateHash is not part of the wire format; it is computed by the
	// store and copied here for convenience once loaded.
	TemplateHash string `json:"-"`
	FilePath     string `json:"-"`
}

// HasEvses reports whether the template uses the 2.0 EVSE topology. Exactly
// one of {Connectors, Evses} is populated per spec.md §3's invariant.
func (t *Template) HasEvses() bool {
	return len(t.Evses) > 0
}

// NumberOfConnectors counts connectors, flattening the EVSE topology if
// present.
func (t *Template) NumberOfConnectors() int {
	if t.HasEvses() {
		n := 0
		for _, evse := range t.Evses {
			n += len(evse.Connectors)
		}
		return n
	}
	return len(t.Connectors)
}
