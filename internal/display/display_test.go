package display

import (
	"bytes"
	"strings"
	"testing"

	"github.com/resident-x/go-vmeter/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestShowRendersValues(t *testing.T) {
	snap := domain.NewSnapshot()
	snap.Set(domain.FieldTotalPower, domain.NewReading(-500))
	snap.Set(domain.FieldTotalEnergyForward, domain.NewReading(5000))
	snap.Set(domain.FieldTotalEnergyReverse, domain.NewReading(12.34))
	snap.Set(domain.FieldFrequency, domain.NewReading(50))
	snap.Set(domain.FieldPENVoltage, domain.NewReading(0.52))
	snap.Set(domain.FieldVoltage("L1"), domain.NewReading(230))
	snap.Set(domain.FieldCurrent("L1"), domain.NewReading(4.5))
	snap.Set(domain.FieldPower("L1"), domain.NewReading(1000))
	snap.Set(domain.FieldPowerFactor("L1"), domain.NewReading(0.9662))
	snap.Set(domain.FieldTotalPowerFactor, domain.NewReading(0.9662))

	var buf bytes.Buffer
	New(&buf).Show(snap)
	out := buf.String()

	assert.Contains(t, out, "----- VM-3P75CT (Modbus/UDP live data) -----")
	assert.Contains(t, out, "Total active power:        -500.0 W")
	assert.Contains(t, out, "Total energy forward:      5000.00 kWh, reverse: 12.34 kWh")
	assert.Contains(t, out, "Frequency:                 50.00 Hz")
	assert.Contains(t, out, "PEN voltage:               0.5 V")
	assert.Contains(t, out, "L1: U=230.0 V, I=4.500 A, P=1000.0 W, cos φ=0.966")
	assert.Contains(t, out, "Total power factor:        0.966")
}

func TestShowRendersAbsentAsNA(t *testing.T) {
	snap := domain.NewSnapshot()
	snap.Set(domain.FieldTotalPower, domain.NewReading(1000))
	// Everything else absent.

	var buf bytes.Buffer
	New(&buf).Show(snap)
	out := buf.String()

	assert.Contains(t, out, "Frequency:                 NA Hz")
	assert.Contains(t, out, "L2: U=NA V, I=NA A, P=NA W, cos φ=NA")
	assert.Contains(t, out, "Total power factor:        NA")
	assert.NotContains(t, out, "0.00 Hz")
}

func TestShowRendersEveryPhase(t *testing.T) {
	snap := domain.NewSnapshot()
	var buf bytes.Buffer
	New(&buf).Show(snap)
	out := buf.String()

	for _, phase := range domain.Phases {
		assert.Contains(t, out, phase+": U=")
		assert.Contains(t, out, "Energy "+phase+" forward:")
	}
	assert.Equal(t, 1, strings.Count(out, "Total power factor:"))
}

func TestShowReadFailure(t *testing.T) {
	var buf bytes.Buffer
	New(&buf).ShowReadFailure()

	assert.Contains(t, buf.String(), "could not read basic registers")
	assert.Contains(t, buf.String(), "no other Modbus master")
}
