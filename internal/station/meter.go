package station

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"stationfleet/internal/ocpp/v16"
)

// meterConfig carries the derived electrical values meter synthesis needs,
// computed once at initialization (spec.md §4.1 step 4).
type meterConfig struct {
	currentOutType          CurrentOutType
	numberOfPhases          int
	voltageOut              int
	maxPowerW               float64
	powerDivider            int
	fluctuationPercent      float64
	unitDivider             int // 1 or 1000, kW/kWh vs W/Wh
	includeSoC              bool
	includeVoltage          bool
	includePower            bool
	includeCurrent          bool
	includeLineToLine       bool
	customValueLimitation   bool
}

// fluctuate perturbs base by +/- pct percent, matching spec.md §4.1's
// "fluctuate(base, pct) rounded".
func fluctuate(base, pct float64) float64 {
	if pct <= 0 {
		return base
	}
	delta := base * (pct / 100)
	offset := (rand.Float64()*2 - 1) * delta
	return math.Round(base + offset)
}

// clampToCapacity implements customValueLimitationMeterValues: the
// per-connector capacity derived from maxPower/powerDivider.
func clampToCapacity(value, maxPowerW float64, powerDivider int) float64 {
	if powerDivider <= 0 {
		powerDivider = 1
	}
	capacity := maxPowerW / float64(powerDivider)
	if value > capacity {
		return capacity
	}
	return value
}

// buildMeterValue synthesizes one OCPP16MeterValue for connector c at the
// current tick, incrementing its cumulative and per-transaction energy
// registers (spec.md §4.1 "Meter value synthesis").
func buildMeterValue(c *Connector, cfg meterConfig, context string, energyDeltaWh float64, timestamp time.Time) v16.MeterValue {
	c.EnergyActiveImportRegisterValue += energyDeltaWh
	if c.TransactionStarted {
		c.TransactionEnergyActiveImportRegisterValue += energyDeltaWh
	}

	var samples []v16.SampledValue

	energyValue := c.EnergyActiveImportRegisterValue
	if cfg.customValueLimitation {
		energyValue = clampToCapacity(energyValue, cfg.maxPowerW, cfg.powerDivider)
	}
	samples = append(samples, v16.SampledValue{
		Value:     formatUnit(energyValue, cfg.unitDivider),
		Context:   context,
		Measurand: "Energy.Active.Import.Register",
		Unit:      energyUnit(cfg.unitDivider),
		Location:  "Outlet",
	})

	if cfg.includeSoC {
		soc := fluctuate(50, cfg.fluctuationPercent)
		samples = append(samples, v16.SampledValue{Value: fmt.Sprintf("%.0f", soc), Context: context, Measurand: "SoC", Unit: "Percent"})
	}

	if cfg.currentOutType == CurrentDC {
		if cfg.includeVoltage {
			v := fluctuate(float64(cfg.voltageOut), cfg.fluctuationPercent)
			samples = append(samples, v16.SampledValue{Value: fmt.Sprintf("%.0f", v), Context: context, Measurand: "Voltage", Phase: "allPhases", Unit: "V"})
		}
		if cfg.includePower {
			p := powerSample(cfg)
			samples = append(samples, v16.SampledValue{Value: formatUnit(p, cfg.unitDivider), Context: context, Measurand: "Power.Active.Import", Unit: powerUnit(cfg.unitDivider)})
		}
		if cfg.includeCurrent {
			amps := currentSample(cfg)
			samples = append(samples, v16.SampledValue{Value: fmt.Sprintf("%.1f", amps), Context: context, Measurand: "Current.Import", Phase: "allPhases", Unit: "A"})
		}
		return v16.MeterValue{Timestamp: timestamp, SampledValue: samples}
	}

	// AC: 3-phase expands into per-phase samples.
	if cfg.includeVoltage {
		phases := []string{"L1-N", "L2-N", "L3-N"}
		if cfg.numberOfPhases < 3 {
			phases = phases[:cfg.numberOfPhases]
		}
		for _, ph := range phases {
			v := fluctuate(float64(cfg.voltageOut), cfg.fluctuationPercent)
			samples = append(samples, v16.SampledValue{Value: fmt.Sprintf("%.0f", v), Context: context, Measurand: "Voltage", Phase: ph, Unit: "V"})
		}
		if cfg.includeLineToLine && cfg.numberOfPhases == 3 {
			for _, ph := range []string{"L1-L2", "L2-L3", "L3-L1"} {
				v := fluctuate(float64(cfg.voltageOut)*math.Sqrt(3), cfg.fluctuationPercent)
				samples = append(samples, v16.SampledValue{Value: fmt.Sprintf("%.0f", v), Context: context, Measurand: "Voltage", Phase: ph, Unit: "V"})
			}
		}
	}
	if cfg.includePower {
		total := powerSample(cfg)
		samples = append(samples, v16.SampledValue{Value: formatUnit(total, cfg.unitDivider), Context: context, Measurand: "Power.Active.Import", Unit: powerUnit(cfg.unitDivider)})
	}
	if cfg.includeCurrent {
		phases := []string{"L1", "L2", "L3"}
		if cfg.numberOfPhases < 3 {
			phases = phases[:cfg.numberOfPhases]
		}
		for _, ph := range phases {
			amps := currentSample(cfg) / float64(len(phases))
			samples = append(samples, v16.SampledValue{Value: fmt.Sprintf("%.1f", amps), Context: context, Measurand: "Current.Import", Phase: ph, Unit: "A"})
		}
	}

	return v16.MeterValue{Timestamp: timestamp, SampledValue: samples}
}

func powerSample(cfg meterConfig) float64 {
	base := cfg.maxPowerW
	if cfg.powerDivider > 0 {
		base = base / float64(cfg.powerDivider)
	}
	p := fluctuate(base, cfg.fluctuationPercent)
	if cfg.customValueLimitation {
		p = clampToCapacity(p, cfg.maxPowerW, cfg.powerDivider)
	}
	return p
}

func currentSample(cfg meterConfig) float64 {
	if cfg.voltageOut == 0 {
		return 0
	}
	p := powerSample(cfg)
	return p / float64(cfg.voltageOut)
}

func formatUnit(valueW float64, divider int) string {
	if divider <= 0 {
		divider = 1
	}
	return fmt.Sprintf("%.3f", valueW/float64(divider))
}

func energyUnit(divider int) string {
	if divider == 1000 {
		return "kWh"
	}
	return "Wh"
}

func powerUnit(divider int) string {
	if divider == 1000 {
		return "kW"
	}
	return "W"
}
