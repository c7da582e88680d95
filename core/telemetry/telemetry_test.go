package telemetry

import (
	"errors"
	"strings"
	"testing"

	"github.com/kilianp07/homebattery/core/model"
)

func TestRequire(t *testing.T) {
	s := model.TickSnapshot{
		OverflowPowerW:        model.Some(0),
		HouseholdConsumptionW: model.Missing(),
		PVProductionW:         model.Missing(),
	}
	if err := Require(s, FieldOverflowPower); err != nil {
		t.Fatalf("overflow is a valid zero: %v", err)
	}
	err := Require(s, FieldOverflowPower, FieldHouseholdConsumption, FieldPVProduction)
	if !errors.Is(err, ErrTelemetryUnavailable) {
		t.Fatalf("expected ErrTelemetryUnavailable got %v", err)
	}
	if !strings.Contains(err.Error(), FieldHouseholdConsumption) || !strings.Contains(err.Error(), FieldPVProduction) {
		t.Fatalf("error should name missing fields: %v", err)
	}
}

func TestMissingFieldsSwitch(t *testing.T) {
	var s model.TickSnapshot
	got := MissingFields(s, FieldOverrideEnabled, FieldSoc)
	if len(got) != 1 || got[0] != FieldOverrideEnabled {
		t.Fatalf("unexpected missing fields %v", got)
	}
}
