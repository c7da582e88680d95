package model

import (
	"encoding/json"
	"testing"
)

func TestDefaultBatteryThresholds(t *testing.T) {
	b := DefaultBattery()
	if err := b.Validate(); err != nil {
		t.Fatalf("default battery invalid: %v", err)
	}
	if b.MinSocWh() != 380 {
		t.Fatalf("expected min soc 380Wh got %v", b.MinSocWh())
	}
	if b.MaintenanceSocWh() != 760 {
		t.Fatalf("expected maintenance soc 760Wh got %v", b.MaintenanceSocWh())
	}
	if got := b.MaxSocWh(); got != 7524 {
		t.Fatalf("expected max soc 7524Wh got %v", got)
	}
}

func TestBatteryValidateThresholdOrder(t *testing.T) {
	b := DefaultBattery()
	b.MaintenanceSoC = 0.04
	if err := b.Validate(); err == nil {
		t.Fatalf("expected error for maintenance below min")
	}
	b = DefaultBattery()
	b.MaxSoC = 1.2
	if err := b.Validate(); err == nil {
		t.Fatalf("expected error for max above 1")
	}
	b = DefaultBattery()
	b.RoundTripEfficiency = 0
	if err := b.Validate(); err == nil {
		t.Fatalf("expected error for zero efficiency")
	}
}

func TestBatterySetDefaultsKeepsValues(t *testing.T) {
	b := Battery{CapacityWh: 1900, MaxDischargeRateW: 800}
	b.SetDefaults()
	if b.CapacityWh != 1900 || b.MaxDischargeRateW != 800 {
		t.Fatalf("explicit values overwritten: %#v", b)
	}
	if b.MaxChargeRateW != 1200 || b.MaintenanceChargePowerW != 300 {
		t.Fatalf("defaults not applied: %#v", b)
	}
}

func TestBatterySocPercent(t *testing.T) {
	b := DefaultBattery()
	if got := b.SocPercent(3800); got != 50 {
		t.Fatalf("expected 50 got %v", got)
	}
	if got := b.SocPercent(-10); got != 0 {
		t.Fatalf("expected clamp to 0 got %v", got)
	}
	if got := b.PercentToWh(25); got != 1900 {
		t.Fatalf("expected 1900 got %v", got)
	}
}

func TestCommandFor(t *testing.T) {
	c := CommandFor(300)
	if c.ACMode != ACModeCharge || c.InputLimitW != 300 || c.OutputLimitW != 0 {
		t.Fatalf("unexpected charge command %#v", c)
	}
	c = CommandFor(-450)
	if c.ACMode != ACModeDischarge || c.InputLimitW != 0 || c.OutputLimitW != 450 {
		t.Fatalf("unexpected discharge command %#v", c)
	}
	c = CommandFor(0)
	if c.ACMode != ACModeUnchanged || c.InputLimitW != 0 || c.OutputLimitW != 0 {
		t.Fatalf("unexpected idle command %#v", c)
	}
}

func TestModeTextRoundTrip(t *testing.T) {
	res := DispatchResult{Mode: ModeOverflowDuringDischarge}
	b, err := json.Marshal(res)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out DispatchResult
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Mode != ModeOverflowDuringDischarge {
		t.Fatalf("expected %v got %v", ModeOverflowDuringDischarge, out.Mode)
	}
	if _, err := ParseMode("bogus"); err == nil {
		t.Fatalf("expected error for unknown label")
	}
}

func TestPlanEntryNumberDecoding(t *testing.T) {
	data := `{"index":3,"hour":0,"date":"2025-01-02","tibberTotal":"0.2512","solarProduction":"0.00","adjustedPrice":0.25}`
	var e PlanEntry
	if err := json.Unmarshal([]byte(data), &e); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if e.TibberTotal != 0.2512 || e.AdjustedPrice != 0.25 || e.SolarProduction != 0 {
		t.Fatalf("unexpected entry %#v", e)
	}
	if err := json.Unmarshal([]byte(`{"tibberTotal":"abc"}`), &e); err == nil {
		t.Fatalf("expected error for non numeric string")
	}
}
