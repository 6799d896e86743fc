package meter

import (
	"context"
	"fmt"

	"github.com/resident-x/go-vmeter/internal/domain"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// RegisterSpace identifies which Modbus register space a read targets. The
// VM-3P75CT exposes the same data through both input registers (function
// code 4) and holding registers (function code 3) depending on firmware, so
// reads try both.
type RegisterSpace int

const (
	InputRegisters RegisterSpace = iota
	HoldingRegisters
)

// String returns the Modbus name of the register space.
func (s RegisterSpace) String() string {
	switch s {
	case InputRegisters:
		return "input"
	case HoldingRegisters:
		return "holding"
	default:
		return "unknown"
	}
}

// readOrder is the fallback sequence for register reads. Adding a third
// variant is a data change, not a control-flow change.
var readOrder = []RegisterSpace{InputRegisters, HoldingRegisters}

// RegisterReader is the transport capability the snapshot builder needs:
// read count consecutive 16-bit registers starting at addr from the given
// register space.
type RegisterReader interface {
	ReadRegisters(addr, count uint16, space RegisterSpace) ([]uint16, error)
}

// Builder assembles measurement snapshots from the fixed register table.
// Reads are issued strictly sequentially: the meter is a single device on a
// single connection and does not tolerate overlapping requests.
type Builder struct {
	reader RegisterReader
	logger zerolog.Logger
}

// NewBuilder creates a snapshot builder on top of the given transport.
func NewBuilder(reader RegisterReader) *Builder {
	return &Builder{
		reader: reader,
		logger: log.With().Str("component", "meter").Logger(),
	}
}

// readBlock fetches one register block, trying each register space in order.
// A read that fails in every space yields ok=false: a failed read is
// data-level "unknown", not a fatal condition, because the polling loop must
// keep running across transient failures.
func (b *Builder) readBlock(addr, count uint16) ([]uint16, bool) {
	for _, space := range readOrder {
		words, err := b.reader.ReadRegisters(addr, count, space)
		if err != nil {
			b.logger.Debug().
				Err(err).
				Uint16("address", addr).
				Stringer("space", space).
				Msg("Register read failed")
			continue
		}
		return words, true
	}
	return nil, false
}

// readScaled reads, decodes and scales a single table entry.
func (b *Builder) readScaled(spec RegisterSpec) domain.Reading {
	words, ok := b.readBlock(spec.Addr, spec.Words)
	if !ok {
		return domain.Absent()
	}

	var raw int64
	var err error
	switch spec.Words {
	case 1:
		raw, err = DecodeInt16(words, spec.Signed)
	case 2:
		raw, err = DecodeInt32(words, spec.Signed)
	default:
		panic(fmt.Sprintf("meter: register %s has invalid word count %d", spec.Field, spec.Words))
	}
	if err != nil {
		// The device answered with the wrong number of words.
		b.logger.Warn().
			Err(err).
			Str("field", spec.Field).
			Msg("Register decode failed")
		return domain.Absent()
	}

	return domain.NewReading(float64(raw) * spec.Scale)
}

// ReadAll performs one full poll cycle over the register table and derives
// the power-factor fields into the same snapshot. Fields are independent: a
// failed read leaves that field absent and the rest of the snapshot intact.
func (b *Builder) ReadAll(ctx context.Context) *domain.Snapshot {
	snap := domain.NewSnapshot()
	for _, spec := range Registers {
		select {
		case <-ctx.Done():
			// Shutdown mid-cycle: the remaining fields stay absent.
			DerivePowerFactors(snap)
			return snap
		default:
		}
		snap.Set(spec.Field, b.readScaled(spec))
	}
	DerivePowerFactors(snap)
	return snap
}
