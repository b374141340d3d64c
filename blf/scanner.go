package blf

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	"go.einride.tech/can"
)

// Header is the decoded file header of a trace container.
type Header struct {
	VersionMajor  uint16
	VersionMinor  uint16
	ObjectCount   uint32
	ObjectBytes   uint64
	ApplicationID string
}

// Object is one record of the object stream. Payload excludes the
// 14-byte object header.
type Object struct {
	Type            uint16
	TimestampMicros uint64
	Payload         []byte
}

// CanFrame is the decoded payload of an ObjectTypeCanMessage record.
type CanFrame struct {
	Channel uint16
	FrameID uint32
	DLC     uint8
	Data    can.Data
}

// NumericSample is the decoded payload of an ObjectTypeNumericSample
// record.
type NumericSample struct {
	Name  string
	Value float64
}

// Scanner walks a trace container strictly by the declared record
// lengths, the same way the downstream analysis tools do.
type Scanner struct {
	r      io.Reader
	header Header
	obj    Object
	err    error
	done   bool
}

// NewScanner reads and validates the file header and positions the
// scanner on the first object record.
func NewScanner(r io.Reader) (*Scanner, error) {
	hdr := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, hdr); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if string(hdr[0:4]) != Magic {
		return nil, fmt.Errorf("bad magic %q", hdr[0:4])
	}
	if got := binary.LittleEndian.Uint32(hdr[4:]); got != HeaderSize {
		return nil, fmt.Errorf("unexpected header size %d", got)
	}
	return &Scanner{
		r: r,
		header: Header{
			VersionMajor:  binary.LittleEndian.Uint16(hdr[8:]),
			VersionMinor:  binary.LittleEndian.Uint16(hdr[10:]),
			ObjectCount:   binary.LittleEndian.Uint32(hdr[12:]),
			ObjectBytes:   binary.LittleEndian.Uint64(hdr[16:]),
			ApplicationID: strings.TrimRight(string(hdr[24:56]), "\x00"),
		},
	}, nil
}

// Header returns the decoded file header.
func (s *Scanner) Header() Header { return s.header }

// Scan advances to the next object record. It returns false at a clean
// end of stream or on error; Err distinguishes the two.
func (s *Scanner) Scan() bool {
	if s.done || s.err != nil {
		return false
	}
	var objHdr [objectHeaderSize]byte
	if _, err := io.ReadFull(s.r, objHdr[:]); err != nil {
		if errors.Is(err, io.EOF) {
			s.done = true
		} else {
			s.err = fmt.Errorf("read object header: %w", err)
		}
		return false
	}
	length := binary.LittleEndian.Uint32(objHdr[0:])
	if length < objectHeaderSize {
		s.err = fmt.Errorf("declared object length %d shorter than its header", length)
		return false
	}
	payload := make([]byte, length-objectHeaderSize)
	if _, err := io.ReadFull(s.r, payload); err != nil {
		s.err = fmt.Errorf("read object payload (%d bytes): %w", len(payload), err)
		return false
	}
	s.obj = Object{
		Type:            binary.LittleEndian.Uint16(objHdr[4:]),
		TimestampMicros: binary.LittleEndian.Uint64(objHdr[6:]),
		Payload:         payload,
	}
	return true
}

// Object returns the record read by the last successful Scan.
func (s *Scanner) Object() Object { return s.obj }

// Err returns the first error encountered while scanning.
func (s *Scanner) Err() error { return s.err }

// DecodeCanFrame interprets an object payload as a raw CAN frame record.
func DecodeCanFrame(o Object) (CanFrame, error) {
	if o.Type != ObjectTypeCanMessage {
		return CanFrame{}, fmt.Errorf("object type %d is not a CAN frame", o.Type)
	}
	if len(o.Payload) != canPayloadSize {
		return CanFrame{}, fmt.Errorf("CAN frame payload is %d bytes, want %d", len(o.Payload), canPayloadSize)
	}
	f := CanFrame{
		Channel: binary.LittleEndian.Uint16(o.Payload[0:]),
		FrameID: binary.LittleEndian.Uint32(o.Payload[2:]),
		DLC:     o.Payload[6],
	}
	copy(f.Data[:], o.Payload[7:])
	return f, nil
}

// DecodeNumericSample interprets an object payload as a numeric sample
// record.
func DecodeNumericSample(o Object) (NumericSample, error) {
	if o.Type != ObjectTypeNumericSample {
		return NumericSample{}, fmt.Errorf("object type %d is not a numeric sample", o.Type)
	}
	if len(o.Payload) < 2 {
		return NumericSample{}, fmt.Errorf("numeric sample payload truncated")
	}
	nameLen := int(binary.LittleEndian.Uint16(o.Payload[0:]))
	if len(o.Payload) != 2+nameLen+8 {
		return NumericSample{}, fmt.Errorf("numeric sample payload is %d bytes, want %d", len(o.Payload), 2+nameLen+8)
	}
	return NumericSample{
		Name:  string(o.Payload[2 : 2+nameLen]),
		Value: math.Float64frombits(binary.LittleEndian.Uint64(o.Payload[2+nameLen:])),
	}, nil
}
