package meter

import (
	"github.com/resident-x/go-vmeter/internal/domain"
)

// RegisterSpec describes one measurement exposed by the meter: where it
// lives, how wide it is, whether it is signed, and the factor that turns the
// raw integer into a physical value.
type RegisterSpec struct {
	Field  string  `yaml:"field"`
	Addr   uint16  `yaml:"address"`
	Words  uint16  `yaml:"words"`
	Signed bool    `yaml:"signed"`
	Scale  float64 `yaml:"scale"`
}

// Registers is the VM-3P75CT address map. There is no official public Modbus
// map for this meter; the addresses below follow the community map
// established by the Home Assistant and Victron forums. The table is fixed
// for the life of the process: adding a measurement is a data change here,
// not a code change in the poller.
var Registers = []RegisterSpec{
	// System-wide values.
	{Field: domain.FieldTotalPower, Addr: 0x3080, Words: 2, Signed: true, Scale: 1.0},
	{Field: domain.FieldTotalEnergyForward, Addr: 0x3034, Words: 2, Signed: false, Scale: 0.01},
	{Field: domain.FieldTotalEnergyReverse, Addr: 0x3036, Words: 2, Signed: false, Scale: 0.01},
	{Field: domain.FieldPENVoltage, Addr: 0x3033, Words: 1, Signed: true, Scale: 0.01},
	{Field: domain.FieldFrequency, Addr: 0x3032, Words: 1, Signed: false, Scale: 0.01},

	// Phase L1.
	{Field: domain.FieldVoltage("L1"), Addr: 0x3040, Words: 1, Signed: true, Scale: 0.01},
	{Field: domain.FieldCurrent("L1"), Addr: 0x3041, Words: 1, Signed: true, Scale: 0.01},
	{Field: domain.FieldPower("L1"), Addr: 0x3082, Words: 2, Signed: true, Scale: 1.0},
	{Field: domain.FieldEnergyForward("L1"), Addr: 0x3042, Words: 2, Signed: false, Scale: 0.01},
	{Field: domain.FieldEnergyReverse("L1"), Addr: 0x3044, Words: 2, Signed: false, Scale: 0.01},

	// Phase L2.
	{Field: domain.FieldVoltage("L2"), Addr: 0x3048, Words: 1, Signed: true, Scale: 0.01},
	{Field: domain.FieldCurrent("L2"), Addr: 0x3049, Words: 1, Signed: true, Scale: 0.01},
	{Field: domain.FieldPower("L2"), Addr: 0x3086, Words: 2, Signed: true, Scale: 1.0},
	{Field: domain.FieldEnergyForward("L2"), Addr: 0x304A, Words: 2, Signed: false, Scale: 0.01},
	{Field: domain.FieldEnergyReverse("L2"), Addr: 0x304C, Words: 2, Signed: false, Scale: 0.01},

	// Phase L3.
	{Field: domain.FieldVoltage("L3"), Addr: 0x3050, Words: 1, Signed: true, Scale: 0.01},
	{Field: domain.FieldCurrent("L3"), Addr: 0x3051, Words: 1, Signed: true, Scale: 0.01},
	{Field: domain.FieldPower("L3"), Addr: 0x308A, Words: 2, Signed: true, Scale: 1.0},
	{Field: domain.FieldEnergyForward("L3"), Addr: 0x3052, Words: 2, Signed: false, Scale: 0.01},
	{Field: domain.FieldEnergyReverse("L3"), Addr: 0x3054, Words: 2, Signed: false, Scale: 0.01},
}
