// Package meter implements the VM-3P75CT register map, the decoding of raw
// register words into physical values, and the derived power-factor
// computation. This is the numeric core of the application; everything in
// this package is deterministic and transport-free.
package meter

import (
	"errors"
	"fmt"
)

// ErrWordCount is returned when a decoder is handed the wrong number of
// register words. A device can legitimately fail to answer a read, but a
// wrong word count reaching a decoder means the register table or the
// transport response is malformed.
var ErrWordCount = errors.New("meter: unexpected register word count")

// twosComplement reinterprets v as a signed integer of the given bit width.
// Only 16 and 32 bit widths occur in the register map.
func twosComplement(v uint64, bits uint) int64 {
	if bits != 16 && bits != 32 {
		panic(fmt.Sprintf("meter: unsupported bit width %d", bits))
	}
	if v&(1<<(bits-1)) != 0 {
		return int64(v) - (1 << bits)
	}
	return int64(v)
}

// DecodeInt16 decodes a single 16-bit register word. When signed, the word
// is interpreted using two's complement; otherwise its unsigned value
// (0-65535) is returned.
func DecodeInt16(words []uint16, signed bool) (int64, error) {
	if len(words) != 1 {
		return 0, fmt.Errorf("%w: want 1, got %d", ErrWordCount, len(words))
	}
	raw := uint64(words[0])
	if signed {
		return twosComplement(raw, 16), nil
	}
	return int64(raw), nil
}

// DecodeInt32 decodes two 16-bit register words into a 32-bit value, high
// word first. When signed, the combined value is interpreted using two's
// complement.
func DecodeInt32(words []uint16, signed bool) (int64, error) {
	if len(words) != 2 {
		return 0, fmt.Errorf("%w: want 2, got %d", ErrWordCount, len(words))
	}
	raw := uint64(words[0])<<16 | uint64(words[1])
	if signed {
		return twosComplement(raw, 32), nil
	}
	return int64(raw), nil
}
