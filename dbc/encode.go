package dbc

import (
	"math"

	"go.einride.tech/can"
)

// Encode converts a physical value to the signal's raw integer and ORs its
// bits into the payload. The payload region owned by other signals is
// never read or modified.
//
// A zero scale returns a DivisionByZero EncodeError and leaves the payload
// untouched. A raw value outside the representable range of the signal is
// clamped to the nearest bound, encoded, and reported as a RangeClamped
// EncodeError. Both are diagnostics, not failures of the batch.
func Encode(s *SignalDef, physical float64, data *can.Data) error {
	u, clamped, err := physicalToRaw(s, physical)
	if err != nil {
		return err
	}
	if s.ByteOrder == LittleEndian {
		packLittleEndian(data, s.StartBit, s.Length, u)
	} else {
		packBigEndian(data, s.StartBit, s.Length, u)
	}
	if clamped {
		return &EncodeError{Kind: RangeClamped, Signal: s.Name, Value: physical}
	}
	return nil
}

// Decode extracts the signal's raw bits from the payload and applies the
// linear transform back to a physical value. Inverse of Encode for values
// inside [Min, Max], up to one quantization step.
func Decode(s *SignalDef, data *can.Data) float64 {
	var u uint64
	if s.ByteOrder == LittleEndian {
		u = unpackLittleEndian(data, s.StartBit, s.Length)
	} else {
		u = unpackBigEndian(data, s.StartBit, s.Length)
	}
	if s.Signed {
		return float64(signExtend(u, s.Length))*s.Scale + s.Offset
	}
	return float64(u)*s.Scale + s.Offset
}

// physicalToRaw returns the length-bit two's complement pattern for the
// physical value, reporting whether clamping was applied.
func physicalToRaw(s *SignalDef, physical float64) (u uint64, clamped bool, err error) {
	if s.Scale == 0 {
		return 0, false, &EncodeError{Kind: DivisionByZero, Signal: s.Name, Value: physical}
	}
	raw := math.Round((physical - s.Offset) / s.Scale)

	mask := ^uint64(0)
	if s.Length < 64 {
		mask = 1<<s.Length - 1
	}
	lo, hi := rawBounds(s.Length, s.Signed)

	switch {
	case math.IsNaN(raw) || raw <= lo:
		clamped = raw != lo
		if s.Signed {
			u = 1 << (s.Length - 1) // two's complement minimum
		}
	case raw >= hi:
		clamped = raw != hi
		if s.Signed {
			u = 1<<(s.Length-1) - 1
		} else {
			u = mask
		}
	case raw < 0:
		u = uint64(int64(raw)) & mask
	default:
		u = uint64(raw)
	}
	return u, clamped, nil
}

// rawBounds returns the representable raw range of a length-bit field as
// floats, so comparison happens before any integer conversion can
// overflow.
func rawBounds(length uint8, signed bool) (lo, hi float64) {
	if signed {
		half := math.Ldexp(1, int(length)-1)
		return -half, half - 1
	}
	return 0, math.Ldexp(1, int(length)) - 1
}
