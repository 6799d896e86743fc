// Package metersim emulates a VM-3P75CT energy meter for development and
// testing. It serves the same register map the poller reads, from both the
// input and holding register spaces, the way the real meter does.
package metersim

import (
	"math"
	"sync"

	"github.com/resident-x/go-vmeter/internal/meter"
	"github.com/simonvetter/modbus"
)

// Handler is a modbus request handler backed by a sparse register bank.
// Values are served identically from both register spaces. Safe for
// concurrent use: the modbus server reads while a simulator goroutine
// updates the bank.
type Handler struct {
	unitID uint8

	mu   sync.RWMutex
	regs map[uint16]uint16
}

// NewHandler creates an empty register bank answering as the given unit.
func NewHandler(unitID uint8) *Handler {
	return &Handler{
		unitID: unitID,
		regs:   make(map[uint16]uint16),
	}
}

// SetUint16 stores one register word.
func (h *Handler) SetUint16(addr uint16, v uint16) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.regs[addr] = v
}

// SetUint32 stores a 32-bit value as two register words, high word first.
func (h *Handler) SetUint32(addr uint16, v uint32) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.regs[addr] = uint16(v >> 16)
	h.regs[addr+1] = uint16(v)
}

// Clear removes words registers starting at addr, making reads of that block
// fail with an illegal data address exception.
func (h *Handler) Clear(addr uint16, words uint16) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i := uint16(0); i < words; i++ {
		delete(h.regs, addr+i)
	}
}

// Seed encodes physical values into the register bank using the meter's
// register table, so simulated data round-trips through the exact map the
// poller reads. Map keys are field names, values engineering units.
func (h *Handler) Seed(values map[string]float64) {
	for _, spec := range meter.Registers {
		v, ok := values[spec.Field]
		if !ok {
			continue
		}
		raw := int64(math.Round(v / spec.Scale))
		switch spec.Words {
		case 1:
			h.SetUint16(spec.Addr, uint16(raw))
		case 2:
			h.SetUint32(spec.Addr, uint32(raw))
		}
	}
}

// read serves a block from the bank; any gap fails the whole read.
func (h *Handler) read(addr, quantity uint16) ([]uint16, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]uint16, quantity)
	for i := range out {
		v, ok := h.regs[addr+uint16(i)]
		if !ok {
			return nil, modbus.ErrIllegalDataAddress
		}
		out[i] = v
	}
	return out, nil
}

// HandleInputRegisters serves function code 4 reads.
func (h *Handler) HandleInputRegisters(req *modbus.InputRegistersRequest) ([]uint16, error) {
	if req.UnitId != h.unitID {
		return nil, modbus.ErrIllegalFunction
	}
	return h.read(req.Addr, req.Quantity)
}

// HandleHoldingRegisters serves function code 3 reads. The meter is
// read-only; writes are rejected.
func (h *Handler) HandleHoldingRegisters(req *modbus.HoldingRegistersRequest) ([]uint16, error) {
	if req.UnitId != h.unitID || req.IsWrite {
		return nil, modbus.ErrIllegalFunction
	}
	return h.read(req.Addr, req.Quantity)
}

// HandleCoils rejects coil access; the meter exposes none.
func (h *Handler) HandleCoils(_ *modbus.CoilsRequest) ([]bool, error) {
	return nil, modbus.ErrIllegalFunction
}

// HandleDiscreteInputs rejects discrete input access; the meter exposes none.
func (h *Handler) HandleDiscreteInputs(_ *modbus.DiscreteInputsRequest) ([]bool, error) {
	return nil, modbus.ErrIllegalFunction
}
