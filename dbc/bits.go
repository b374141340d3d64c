package dbc

import "go.einride.tech/can"

// Pure bit-placement helpers. Both packers only OR bits into the payload,
// so packing the signals of one message is commutative as long as their
// bit ranges are disjoint (guaranteed by checkOverlap at load time).

// packLittleEndian places the low `length` bits of raw into the payload
// starting at startBit, counted from byte 0 bit 0 (LSB) upward and
// spanning into subsequent bytes as needed (Intel layout).
func packLittleEndian(data *can.Data, startBit, length uint8, raw uint64) {
	idx := int(startBit) / 8
	bit := int(startBit) % 8
	remaining := int(length)
	for remaining > 0 && idx < len(data) {
		n := 8 - bit
		if n > remaining {
			n = remaining
		}
		chunk := byte(raw&(1<<n-1)) << bit
		data[idx] |= chunk
		raw >>= uint(n)
		remaining -= n
		idx++
		bit = 0
	}
}

// packBigEndian places the `length`-bit field with its most significant
// bit at startBit in MSB-first numbering across the payload (bit 0 is the
// MSB of byte 0), laying the remaining bits out toward lower significance
// (Motorola layout).
func packBigEndian(data *can.Data, startBit, length uint8, raw uint64) {
	idx := int(startBit) / 8
	msb := 7 - int(startBit)%8
	remaining := int(length)
	for remaining > 0 && idx < len(data) {
		n := msb + 1
		if n > remaining {
			n = remaining
		}
		shift := msb - n + 1
		chunk := byte((raw>>uint(remaining-n))&(1<<n-1)) << shift
		data[idx] |= chunk
		remaining -= n
		idx++
		msb = 7
	}
}

// unpackLittleEndian is the exact inverse of packLittleEndian.
func unpackLittleEndian(data *can.Data, startBit, length uint8) uint64 {
	var raw uint64
	idx := int(startBit) / 8
	bit := int(startBit) % 8
	remaining := int(length)
	taken := 0
	for remaining > 0 && idx < len(data) {
		n := 8 - bit
		if n > remaining {
			n = remaining
		}
		chunk := uint64(data[idx]>>bit) & (1<<n - 1)
		raw |= chunk << uint(taken)
		taken += n
		remaining -= n
		idx++
		bit = 0
	}
	return raw
}

// unpackBigEndian is the exact inverse of packBigEndian.
func unpackBigEndian(data *can.Data, startBit, length uint8) uint64 {
	var raw uint64
	idx := int(startBit) / 8
	msb := 7 - int(startBit)%8
	remaining := int(length)
	for remaining > 0 && idx < len(data) {
		n := msb + 1
		if n > remaining {
			n = remaining
		}
		shift := msb - n + 1
		chunk := uint64(data[idx]>>shift) & (1<<n - 1)
		raw |= chunk << uint(remaining-n)
		remaining -= n
		idx++
		msb = 7
	}
	return raw
}

// signExtend interprets the low `length` bits of u as a two's complement
// value.
func signExtend(u uint64, length uint8) int64 {
	if length == 64 {
		return int64(u)
	}
	signBit := uint64(1) << (length - 1)
	if u&signBit == 0 {
		return int64(u)
	}
	return int64(u | ^(signBit<<1 - 1))
}
