// Package display renders live meter snapshots for the console.
package display

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/resident-x/go-vmeter/internal/domain"
)

// Writer renders one formatted block per completed snapshot. All formatting
// decisions live here; the poller hands over snapshots and nothing else.
type Writer struct {
	out io.Writer
}

// New creates a display writer rendering to out.
func New(out io.Writer) *Writer {
	return &Writer{out: out}
}

// fmtReading formats a reading with the given number of decimals. Absent
// readings render as an explicit NA marker, never as a zero.
func fmtReading(r domain.Reading, decimals int) string {
	if !r.Valid {
		return "NA"
	}
	return strconv.FormatFloat(r.Value, 'f', decimals, 64)
}

// ShowReadFailure prints the single diagnostic line used when the basic
// registers could not be read at all.
func (w *Writer) ShowReadFailure() {
	fmt.Fprintln(w.out, "Read error: could not read basic registers. "+
		"Check Modbus settings, device ID, and that no other Modbus master is using the meter.")
}

// Show renders a full snapshot as a live-data block.
func (w *Writer) Show(snap *domain.Snapshot) {
	var b strings.Builder

	b.WriteString("----- VM-3P75CT (Modbus/UDP live data) -----\n")
	fmt.Fprintf(&b, "Total active power:        %s W\n",
		fmtReading(snap.Get(domain.FieldTotalPower), 1))
	fmt.Fprintf(&b, "Total energy forward:      %s kWh, reverse: %s kWh\n",
		fmtReading(snap.Get(domain.FieldTotalEnergyForward), 2),
		fmtReading(snap.Get(domain.FieldTotalEnergyReverse), 2))
	fmt.Fprintf(&b, "Frequency:                 %s Hz\n",
		fmtReading(snap.Get(domain.FieldFrequency), 2))
	fmt.Fprintf(&b, "PEN voltage:               %s V\n",
		fmtReading(snap.Get(domain.FieldPENVoltage), 1))

	for _, phase := range domain.Phases {
		fmt.Fprintf(&b, "%s: U=%s V, I=%s A, P=%s W, cos φ=%s\n",
			phase,
			fmtReading(snap.Get(domain.FieldVoltage(phase)), 1),
			fmtReading(snap.Get(domain.FieldCurrent(phase)), 3),
			fmtReading(snap.Get(domain.FieldPower(phase)), 1),
			fmtReading(snap.Get(domain.FieldPowerFactor(phase)), 3))
		fmt.Fprintf(&b, "    Energy %s forward:     %s kWh, reverse: %s kWh\n",
			phase,
			fmtReading(snap.Get(domain.FieldEnergyForward(phase)), 2),
			fmtReading(snap.Get(domain.FieldEnergyReverse(phase)), 2))
	}

	fmt.Fprintf(&b, "Total power factor:        %s\n\n",
		fmtReading(snap.Get(domain.FieldTotalPowerFactor), 3))

	fmt.Fprint(w.out, b.String())
}
