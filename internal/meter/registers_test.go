package meter

import (
	"testing"

	"github.com/resident-x/go-vmeter/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterTableShape(t *testing.T) {
	// 5 system-wide entries plus 5 per phase.
	require.Len(t, Registers, 20)

	seen := make(map[string]bool)
	for _, spec := range Registers {
		assert.NotEmpty(t, spec.Field)
		assert.False(t, seen[spec.Field], "duplicate field %s", spec.Field)
		seen[spec.Field] = true

		assert.Contains(t, []uint16{1, 2}, spec.Words, "field %s", spec.Field)
		assert.NotZero(t, spec.Scale, "field %s", spec.Field)
	}
}

func TestRegisterTableAddressMap(t *testing.T) {
	byField := make(map[string]RegisterSpec)
	for _, spec := range Registers {
		byField[spec.Field] = spec
	}

	tests := []struct {
		field  string
		addr   uint16
		words  uint16
		signed bool
		scale  float64
	}{
		{domain.FieldTotalPower, 0x3080, 2, true, 1.0},
		{domain.FieldTotalEnergyForward, 0x3034, 2, false, 0.01},
		{domain.FieldTotalEnergyReverse, 0x3036, 2, false, 0.01},
		{domain.FieldPENVoltage, 0x3033, 1, true, 0.01},
		{domain.FieldFrequency, 0x3032, 1, false, 0.01},
		{domain.FieldVoltage("L1"), 0x3040, 1, true, 0.01},
		{domain.FieldCurrent("L1"), 0x3041, 1, true, 0.01},
		{domain.FieldPower("L1"), 0x3082, 2, true, 1.0},
		{domain.FieldEnergyForward("L1"), 0x3042, 2, false, 0.01},
		{domain.FieldEnergyReverse("L1"), 0x3044, 2, false, 0.01},
		{domain.FieldVoltage("L2"), 0x3048, 1, true, 0.01},
		{domain.FieldCurrent("L2"), 0x3049, 1, true, 0.01},
		{domain.FieldPower("L2"), 0x3086, 2, true, 1.0},
		{domain.FieldEnergyForward("L2"), 0x304A, 2, false, 0.01},
		{domain.FieldEnergyReverse("L2"), 0x304C, 2, false, 0.01},
		{domain.FieldVoltage("L3"), 0x3050, 1, true, 0.01},
		{domain.FieldCurrent("L3"), 0x3051, 1, true, 0.01},
		{domain.FieldPower("L3"), 0x308A, 2, true, 1.0},
		{domain.FieldEnergyForward("L3"), 0x3052, 2, false, 0.01},
		{domain.FieldEnergyReverse("L3"), 0x3054, 2, false, 0.01},
	}

	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			spec, ok := byField[tt.field]
			require.True(t, ok, "missing register for %s", tt.field)
			assert.Equal(t, tt.addr, spec.Addr)
			assert.Equal(t, tt.words, spec.Words)
			assert.Equal(t, tt.signed, spec.Signed)
			assert.Equal(t, tt.scale, spec.Scale)
		})
	}
}

func TestCurrentRegistersFollowVoltage(t *testing.T) {
	byField := make(map[string]RegisterSpec)
	for _, spec := range Registers {
		byField[spec.Field] = spec
	}
	for _, phase := range domain.Phases {
		u := byField[domain.FieldVoltage(phase)]
		i := byField[domain.FieldCurrent(phase)]
		assert.Equal(t, u.Addr+1, i.Addr, "phase %s", phase)
	}
}
