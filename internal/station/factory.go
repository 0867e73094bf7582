package station

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"

	"stationfleet/internal/ocppconfig"
	"stationfleet/internal/stationtemplate"
)

// FromTemplateOptions carries the per-instance values a WorkerHost knows
// that the shared Template does not: index, supervision URL and any
// persisted configuration to restore (spec.md §4.4/§6).
type FromTemplateOptions struct {
	Index           int
	SupervisionURL  string
	Persisted       *ocppconfig.PersistedConfiguration
}

// NewFromTemplate builds a Station from a parsed template and per-instance
// options, applying default OCPP configuration keys and restoring
// persisted ones, per spec.md §4.1 step 4-5 and §6.
func NewFromTemplate(tpl *stationtemplate.Template, opts FromTemplateOptions) (*Station, error) {
	chargingStationID := fmt.Sprintf("%s-%d", tpl.ChargePointModel, opts.Index)
	hashID := ContentHashID(tpl.TemplateHash, opts.Index)

	st := &Station{
		HashID:            hashID,
		ChargingStationID: chargingStationID,
		Index:             opts.Index,
		OcppVersion:       ocppVersionOrDefault(tpl.OcppVersion),
		NumberOfPhases:    orDefaultInt(tpl.NumberOfPhases, 3),
		CurrentOutType:    currentOutType(tpl.CurrentOutType),
		VoltageOut:        orDefaultInt(tpl.VoltageOut, 230),
		SupervisionURL:    opts.SupervisionURL,
		PowerDivider:      1,
		FirmwareStatus:    "Installed",
	}

	power, err := parsePower(tpl.Power, opts.Index)
	if err != nil {
		return nil, err
	}
	st.MaximumPowerW = power
	if st.VoltageOut > 0 {
		st.MaximumAmperage = power / float64(st.VoltageOut)
	}

	if tpl.HasEvses() {
		st.Evses = buildEvses(tpl.Evses)
	} else {
		st.Connectors = buildConnectors(tpl.Connectors)
	}
	if tpl.PowerSharedByConnectors {
		st.PowerDivider = st.NumberOfConnectors()
		if st.PowerDivider == 0 {
			st.PowerDivider = 1
		}
	}

	st.ConfigKeys = ocppconfig.NewKeyStore()
	ocppconfig.InstallDefaults(st.ConfigKeys, ocppconfig.DefaultsInput{
		NumberOfConnectors:   st.NumberOfConnectors(),
		SupervisionUrlOcppKey: tpl.SupervisionUrlOcppKey,
		SupervisionUrl:        opts.SupervisionURL,
	})
	for key, raw := range tpl.Configuration {
		st.ConfigKeys.Add(ocppconfig.Key{Key: key, Value: fmt.Sprint(raw), Visible: true}, false)
	}

	if opts.Persisted != nil {
		for _, k := range opts.Persisted.ConfigurationKey {
			st.ConfigKeys.Add(k, true)
		}
	}

	return st, nil
}

// ContentHashID derives a station's stable content-addressed identity
// from its template hash and instance index (spec.md's "hashId — stable
// content-addressed identity for a station").
func ContentHashID(templateHash string, index int) string {
	sum := sha256.Sum256([]byte(templateHash + "#" + strconv.Itoa(index)))
	return hex.EncodeToString(sum[:])[:16]
}

func ocppVersionOrDefault(v string) string {
	if v == "" {
		return "1.6"
	}
	return v
}

func orDefaultInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func currentOutType(v string) CurrentOutType {
	if v == "DC" {
		return CurrentDC
	}
	return CurrentAC
}

// parsePower decodes the template's power field, a JSON number or an
// array of numbers (spec.md §6), returning the array entry at the given
// 1-based index (the last entry when the index is out of range) or the
// scalar if the field is a single number. NewFromTemplate passes the
// station's instance index.
func parsePower(raw json.RawMessage, index int) (float64, error) {
	if len(raw) == 0 {
		return 0, nil
	}
	var scalar float64
	if err := json.Unmarshal(raw, &scalar); err == nil {
		return scalar, nil
	}
	var list []float64
	if err := json.Unmarshal(raw, &list); err != nil {
		return 0, fmt.Errorf("station: invalid power field: %w", err)
	}
	if len(list) == 0 {
		return 0, nil
	}
	i := index - 1
	if i < 0 || i >= len(list) {
		i = len(list) - 1
	}
	return list[i], nil
}

func buildConnectors(tplConnectors map[string]stationtemplate.ConnectorTemplate) map[int]*Connector {
	out := make(map[int]*Connector)
	if len(tplConnectors) == 0 {
		out[1] = NewConnector(1)
		return out
	}
	for key, ct := range tplConnectors {
		idx, err := strconv.Atoi(key)
		if err != nil {
			continue
		}
		c := NewConnector(idx)
		applyConnectorTemplate(c, ct)
		out[idx] = c
	}
	return out
}

func buildEvses(tplEvses map[string]stationtemplate.EVSETemplate) map[int]*EVSE {
	out := make(map[int]*EVSE)
	for key, et := range tplEvses {
		idx, err := strconv.Atoi(key)
		if err != nil {
			continue
		}
		evse := &EVSE{Index: idx, Availability: Operative, Connectors: make(map[int]*Connector)}
		if et.Availability == "Inoperative" {
			evse.Availability = Inoperative
		}
		for ckey, ct := range et.Connectors {
			cidx, err := strconv.Atoi(ckey)
			if err != nil {
				continue
			}
			c := NewConnector(cidx)
			applyConnectorTemplate(c, ct)
			evse.Connectors[cidx] = c
		}
		out[idx] = evse
	}
	return out
}

func applyConnectorTemplate(c *Connector, ct stationtemplate.ConnectorTemplate) {
	if ct.Availability == "Inoperative" {
		c.Availability = Inoperative
	}
	if ct.Status != "" {
		c.Status = ConnectorStatus(ct.Status)
	}
}
