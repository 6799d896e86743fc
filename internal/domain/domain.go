// Package domain provides core domain models and interfaces for the go-vmeter application.
package domain

import (
	"context"
	"encoding/json"
	"time"
)

// Phases lists the phase labels of the three-phase meter.
var Phases = []string{"L1", "L2", "L3"}

// System-wide measurement field names. These names are the external contract:
// they appear verbatim in published MQTT payloads and API responses.
const (
	FieldTotalPower         = "P_total_W"
	FieldTotalEnergyForward = "E_total_forward_kWh"
	FieldTotalEnergyReverse = "E_total_reverse_kWh"
	FieldPENVoltage         = "U_PEN_V"
	FieldFrequency          = "freq_Hz"
	FieldTotalPowerFactor   = "PF_total"
)

// FieldVoltage returns the voltage field name for a phase, e.g. "U_L1_V".
func FieldVoltage(phase string) string { return "U_" + phase + "_V" }

// FieldCurrent returns the current field name for a phase, e.g. "I_L1_A".
func FieldCurrent(phase string) string { return "I_" + phase + "_A" }

// FieldPower returns the active power field name for a phase, e.g. "P_L1_W".
func FieldPower(phase string) string { return "P_" + phase + "_W" }

// FieldEnergyForward returns the forward energy field name for a phase.
func FieldEnergyForward(phase string) string { return "E_" + phase + "_forward_kWh" }

// FieldEnergyReverse returns the reverse energy field name for a phase.
func FieldEnergyReverse(phase string) string { return "E_" + phase + "_reverse_kWh" }

// FieldPowerFactor returns the power factor field name for a phase, e.g. "PF_L1".
func FieldPowerFactor(phase string) string { return "PF_" + phase }

// Reading is a single decoded measurement. It is either a finite value or
// explicitly absent, never a partial or garbage value. A failed register
// read produces an absent reading rather than an error so that one bad
// register cannot take down a whole poll cycle.
type Reading struct {
	Value float64
	Valid bool
}

// NewReading returns a present reading carrying the given value.
func NewReading(v float64) Reading {
	return Reading{Value: v, Valid: true}
}

// Absent returns the absent reading.
func Absent() Reading {
	return Reading{}
}

// MarshalJSON encodes an absent reading as JSON null.
func (r Reading) MarshalJSON() ([]byte, error) {
	if !r.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(r.Value)
}

// Snapshot is one complete set of decoded and derived measurements from a
// single poll cycle. It is built fresh every cycle, handed to the sinks once
// complete, and then discarded; no history is retained.
type Snapshot struct {
	Timestamp time.Time
	fields    map[string]Reading
}

// NewSnapshot creates an empty snapshot stamped with the current time.
func NewSnapshot() *Snapshot {
	return &Snapshot{
		Timestamp: time.Now(),
		fields:    make(map[string]Reading),
	}
}

// Set stores a reading under the given field name.
func (s *Snapshot) Set(field string, r Reading) {
	s.fields[field] = r
}

// Get returns the reading for a field. Unknown fields read as absent.
func (s *Snapshot) Get(field string) Reading {
	return s.fields[field]
}

// Fields returns a copy of all readings keyed by field name.
func (s *Snapshot) Fields() map[string]Reading {
	out := make(map[string]Reading, len(s.fields))
	for k, v := range s.fields {
		out[k] = v
	}
	return out
}

// MarshalJSON encodes the snapshot as a flat JSON object with one key per
// field plus a timestamp. Absent readings encode as null.
func (s *Snapshot) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(s.fields)+1)
	out["timestamp"] = s.Timestamp
	for k, v := range s.fields {
		if v.Valid {
			out[k] = v.Value
		} else {
			out[k] = nil
		}
	}
	return json.Marshal(out)
}

// MessagePublisher defines the interface for publishing completed snapshots.
type MessagePublisher interface {
	// Connect establishes a connection to the messaging system
	Connect(ctx context.Context) error

	// Publish sends data to the specified topic
	Publish(ctx context.Context, topic string, data interface{}) error

	// Close terminates the connection to the messaging system
	Close() error
}

// SnapshotSource provides access to the most recent completed snapshot.
type SnapshotSource interface {
	// LatestSnapshot returns the latest snapshot, or false if no poll cycle
	// has completed yet.
	LatestSnapshot() (*Snapshot, bool)
}
