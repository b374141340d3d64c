package dbc

import (
	"errors"
	"math"
	"testing"

	"go.einride.tech/can"
)

func TestEncodeRPMVector(t *testing.T) {
	// BO_ 100 Engine: 8 ECU / SG_ RPM : 0|16@1+ (0.25,0) [0|16000] "rpm" Dash
	rpm := &SignalDef{Name: "RPM", StartBit: 0, Length: 16, ByteOrder: LittleEndian, Scale: 0.25, Max: 16000, Unit: "rpm"}

	var data can.Data
	if err := Encode(rpm, 4000, &data); err != nil {
		t.Fatalf("encode: %v", err)
	}
	// raw = 4000/0.25 = 16000 = 0x3E80, little endian
	if data[0] != 0x80 || data[1] != 0x3E {
		t.Fatalf("payload = % X, want 80 3E ...", data[:2])
	}
	for i := 2; i < 8; i++ {
		if data[i] != 0 {
			t.Fatalf("byte %d dirty: %02X", i, data[i])
		}
	}
}

func TestPackLittleEndianMatchesVendorAccessors(t *testing.T) {
	// Cross-check the hand-rolled Intel packer against einride's payload
	// accessors on the same vectors.
	cases := []struct {
		start, length uint8
		raw           uint64
	}{
		{0, 8, 0xA5},
		{0, 16, 0x3E80},
		{4, 8, 0xFF},
		{3, 13, 0x1234},
		{16, 32, 0xDEADBEEF},
		{0, 64, 0x0123456789ABCDEF},
		{7, 1, 1},
	}
	for _, c := range cases {
		var mine, vendor can.Data
		packLittleEndian(&mine, c.start, c.length, c.raw)
		vendor.SetUnsignedBitsLittleEndian(c.start, c.length, c.raw)
		if mine != vendor {
			t.Errorf("start %d len %d raw %#x: mine % X, vendor % X",
				c.start, c.length, c.raw, mine[:], vendor[:])
		}
		if got := unpackLittleEndian(&mine, c.start, c.length); got != c.raw {
			t.Errorf("unpack start %d len %d: got %#x want %#x", c.start, c.length, got, c.raw)
		}
	}
}

func TestPackBigEndianVectors(t *testing.T) {
	cases := []struct {
		name          string
		start, length uint8
		raw           uint64
		want          [8]byte
	}{
		{"byte aligned word", 0, 16, 0x3E80, [8]byte{0x3E, 0x80}},
		{"single byte", 8, 8, 0xA5, [8]byte{0, 0xA5}},
		{"nibble offset", 4, 8, 0xAB, [8]byte{0x0A, 0xB0}},
		{"three bits mid byte", 2, 3, 0b101, [8]byte{0x28}},
		{"spans three bytes", 6, 12, 0xFFF, [8]byte{0x03, 0xFF, 0xC0}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			var data can.Data
			packBigEndian(&data, c.start, c.length, c.raw)
			if data != can.Data(c.want) {
				t.Fatalf("payload % X, want % X", data[:], c.want[:])
			}
			if got := unpackBigEndian(&data, c.start, c.length); got != c.raw {
				t.Fatalf("unpack got %#x want %#x", got, c.raw)
			}
		})
	}
}

func TestEncodeCommutative(t *testing.T) {
	a := &SignalDef{Name: "A", StartBit: 0, Length: 12, ByteOrder: LittleEndian, Scale: 1, Max: 4095}
	b := &SignalDef{Name: "B", StartBit: 16, Length: 16, ByteOrder: BigEndian, Scale: 1, Max: 65535}

	var ab, ba can.Data
	if err := Encode(a, 1234, &ab); err != nil {
		t.Fatal(err)
	}
	if err := Encode(b, 4321, &ab); err != nil {
		t.Fatal(err)
	}
	if err := Encode(b, 4321, &ba); err != nil {
		t.Fatal(err)
	}
	if err := Encode(a, 1234, &ba); err != nil {
		t.Fatal(err)
	}
	if ab != ba {
		t.Fatalf("order dependent: % X vs % X", ab[:], ba[:])
	}
}

func TestEncodeClamping(t *testing.T) {
	cases := []struct {
		name    string
		sig     SignalDef
		value   float64
		want    byte
		clamped bool
	}{
		{"unsigned high", SignalDef{Name: "u", Length: 8, ByteOrder: LittleEndian, Scale: 1}, 300, 0xFF, true},
		{"unsigned low", SignalDef{Name: "u", Length: 8, ByteOrder: LittleEndian, Scale: 1}, -5, 0x00, true},
		{"signed high", SignalDef{Name: "s", Length: 8, ByteOrder: LittleEndian, Scale: 1, Signed: true}, 200, 0x7F, true},
		{"signed low", SignalDef{Name: "s", Length: 8, ByteOrder: LittleEndian, Scale: 1, Signed: true}, -200, 0x80, true},
		{"in range", SignalDef{Name: "u", Length: 8, ByteOrder: LittleEndian, Scale: 1}, 42, 42, false},
		{"negative in range", SignalDef{Name: "s", Length: 8, ByteOrder: LittleEndian, Scale: 1, Signed: true}, -2, 0xFE, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			var data can.Data
			err := Encode(&c.sig, c.value, &data)
			if c.clamped {
				var encErr *EncodeError
				if !errors.As(err, &encErr) || encErr.Kind != RangeClamped {
					t.Fatalf("expected RangeClamped, got %v", err)
				}
			} else if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if data[0] != c.want {
				t.Fatalf("byte 0 = %02X, want %02X", data[0], c.want)
			}
		})
	}
}

func TestEncodeDivisionByZero(t *testing.T) {
	sig := &SignalDef{Name: "Z", Length: 8, ByteOrder: LittleEndian, Scale: 0}
	var data can.Data
	err := Encode(sig, 10, &data)
	var encErr *EncodeError
	if !errors.As(err, &encErr) || encErr.Kind != DivisionByZero {
		t.Fatalf("expected DivisionByZero, got %v", err)
	}
	if data != (can.Data{}) {
		t.Fatalf("payload mutated on skipped signal: % X", data[:])
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	signals := []SignalDef{
		{Name: "RPM", StartBit: 0, Length: 16, ByteOrder: LittleEndian, Scale: 0.25, Min: 0, Max: 16000},
		{Name: "Temp", StartBit: 16, Length: 8, ByteOrder: LittleEndian, Scale: 1, Offset: -40, Min: -40, Max: 215},
		{Name: "Pressure", StartBit: 24, Length: 12, ByteOrder: BigEndian, Scale: 0.1, Min: 0, Max: 409.5},
		{Name: "Torque", StartBit: 40, Length: 14, ByteOrder: BigEndian, Signed: true, Scale: 0.5, Offset: 0, Min: -4096, Max: 4095},
	}
	values := map[string][]float64{
		"RPM":      {0, 812.25, 4000, 15999.75},
		"Temp":     {-40, -1, 0, 90, 215},
		"Pressure": {0, 101.3, 409.5},
		"Torque":   {-4096, -12.5, 0, 250, 4095},
	}
	for i := range signals {
		s := &signals[i]
		for _, v := range values[s.Name] {
			var data can.Data
			if err := Encode(s, v, &data); err != nil {
				t.Fatalf("%s(%g): %v", s.Name, v, err)
			}
			got := Decode(s, &data)
			if math.Abs(got-v) > s.Scale/2+1e-9 {
				t.Errorf("%s: encode(%g) decoded to %g (quantum %g)", s.Name, v, got, s.Scale)
			}
		}
	}
}

func TestEncodeDoesNotDisturbNeighbours(t *testing.T) {
	// Pre-filled neighbour bytes must survive encoding untouched.
	sig := &SignalDef{Name: "Mid", StartBit: 24, Length: 8, ByteOrder: LittleEndian, Scale: 1}
	data := can.Data{0x11, 0x22, 0x33, 0x00, 0x55, 0x66, 0x77, 0x88}
	if err := Encode(sig, 0x44, &data); err != nil {
		t.Fatal(err)
	}
	want := can.Data{0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77, 0x88}
	if data != want {
		t.Fatalf("payload % X, want % X", data[:], want[:])
	}
}
