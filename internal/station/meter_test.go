package station

import (
	"testing"
	"time"
)

func TestFluctuateZeroPercentReturnsBaseUnchanged(t *testing.T) {
	if got := fluctuate(100, 0); got != 100 {
		t.Fatalf("expected zero fluctuation to return the base value, got %v", got)
	}
}

func TestFluctuateStaysWithinBand(t *testing.T) {
	base := 1000.0
	pct := 5.0
	for i := 0; i < 200; i++ {
		got := fluctuate(base, pct)
		delta := base * (pct / 100)
		if got < base-delta-1 || got > base+delta+1 {
			t.Fatalf("fluctuate(%v, %v) = %v, outside expected band", base, pct, got)
		}
	}
}

func TestClampToCapacityLimitsToDerivedCapacity(t *testing.T) {
	// maxPowerW=22000, powerDivider=1000 -> capacity 22
	if got := clampToCapacity(50, 22000, 1000); got != 22 {
		t.Fatalf("expected clamp to capacity 22, got %v", got)
	}
	if got := clampToCapacity(10, 22000, 1000); got != 10 {
		t.Fatalf("expected values under capacity to pass through unchanged, got %v", got)
	}
}

func TestClampToCapacityTreatsZeroDividerAsOne(t *testing.T) {
	if got := clampToCapacity(500, 1000, 0); got != 500 {
		t.Fatalf("expected a zero divider to fall back to 1, got %v", got)
	}
}

func TestBuildMeterValueAccumulatesEnergyRegisters(t *testing.T) {
	c := NewConnector(1)
	c.TransactionStarted = true
	cfg := meterConfig{unitDivider: 1}

	mv := buildMeterValue(c, cfg, "Sample.Periodic", 100, time.Now())

	if c.EnergyActiveImportRegisterValue != 100 {
		t.Fatalf("expected cumulative register to accumulate, got %v", c.EnergyActiveImportRegisterValue)
	}
	if c.TransactionEnergyActiveImportRegisterValue != 100 {
		t.Fatalf("expected transaction register to accumulate while a transaction is active, got %v", c.TransactionEnergyActiveImportRegisterValue)
	}
	if len(mv.SampledValue) != 1 {
		t.Fatalf("expected exactly one sample (energy only) with no optional measurands enabled, got %d", len(mv.SampledValue))
	}
	if mv.SampledValue[0].Measurand != "Energy.Active.Import.Register" {
		t.Fatalf("expected an energy sample, got %+v", mv.SampledValue[0])
	}
	if mv.SampledValue[0].Unit != "Wh" {
		t.Fatalf("expected Wh unit for a unit divider of 1, got %s", mv.SampledValue[0].Unit)
	}
}

func TestBuildMeterValueSkipsTransactionRegisterWithoutActiveTransaction(t *testing.T) {
	c := NewConnector(1)
	cfg := meterConfig{unitDivider: 1}

	buildMeterValue(c, cfg, "Sample.Periodic", 50, time.Now())

	if c.EnergyActiveImportRegisterValue != 50 {
		t.Fatalf("expected the cumulative register to always accumulate, got %v", c.EnergyActiveImportRegisterValue)
	}
	if c.TransactionEnergyActiveImportRegisterValue != 0 {
		t.Fatalf("expected the transaction register to stay zero without an active transaction, got %v", c.TransactionEnergyActiveImportRegisterValue)
	}
}

func TestBuildMeterValueDCIncludesVoltagePowerCurrent(t *testing.T) {
	c := NewConnector(1)
	cfg := meterConfig{
		unitDivider:    1,
		currentOutType: CurrentDC,
		voltageOut:     400,
		maxPowerW:      50000,
		includeVoltage: true,
		includePower:   true,
		includeCurrent: true,
	}

	mv := buildMeterValue(c, cfg, "Sample.Periodic", 0, time.Now())

	measurands := map[string]bool{}
	for _, s := range mv.SampledValue {
		measurands[s.Measurand] = true
	}
	for _, want := range []string{"Energy.Active.Import.Register", "Voltage", "Power.Active.Import", "Current.Import"} {
		if !measurands[want] {
			t.Fatalf("expected measurand %s to be present, got %+v", want, mv.SampledValue)
		}
	}
}

func TestBuildMeterValueACExpandsPerPhaseVoltage(t *testing.T) {
	c := NewConnector(1)
	cfg := meterConfig{
		unitDivider:    1,
		currentOutType: CurrentAC,
		numberOfPhases: 3,
		voltageOut:     230,
		maxPowerW:      11000,
		includeVoltage: true,
	}

	mv := buildMeterValue(c, cfg, "Sample.Periodic", 0, time.Now())

	phaseCount := 0
	for _, s := range mv.SampledValue {
		if s.Measurand == "Voltage" {
			phaseCount++
		}
	}
	if phaseCount != 3 {
		t.Fatalf("expected 3 per-phase voltage samples for a 3-phase AC connector, got %d", phaseCount)
	}
}

func TestEnergyDeltaForScalesWithIntervalAndDivider(t *testing.T) {
	cfg := meterConfig{maxPowerW: 3600000, powerDivider: 2} // 1800000 W after sharing
	got := energyDeltaFor(cfg, time.Hour)
	if got != 1800000 {
		t.Fatalf("expected 1 hour at 1800000W to deliver 1800000Wh, got %v", got)
	}
	if got := energyDeltaFor(cfg, 30*time.Minute); got != 900000 {
		t.Fatalf("expected half the interval to deliver half the energy, got %v", got)
	}
}

func TestEnergyUnitAndPowerUnitSwitchOnDivider(t *testing.T) {
	if energyUnit(1) != "Wh" || energyUnit(1000) != "kWh" {
		t.Fatal("unexpected energyUnit mapping")
	}
	if powerUnit(1) != "W" || powerUnit(1000) != "kW" {
		t.Fatal("unexpected powerUnit mapping")
	}
}
