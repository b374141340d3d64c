// Package blf serializes the binary trace container consumed by CAN
// analysis tooling: a fixed 144-byte file header followed by a stream of
// typed, timestamped object records. Records carry no delimiters; readers
// walk the stream purely by each record's declared length, so the length
// field equaling the serialized size exactly is the load-bearing property
// of this package.
package blf

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"time"

	"go.einride.tech/can"
)

// Container constants. The header mirrors the layout understood by the
// downstream trace viewers: magic, header size, format version, object
// count and uncompressed object-stream size (both back-patched on close),
// a 32-byte application id, application version and measurement start/end
// wall-clock times, zero-padded to HeaderSize.
const (
	Magic        = "LOGG"
	HeaderSize   = 144
	VersionMajor = 2
	VersionMinor = 0

	// Object type tags.
	ObjectTypeCanMessage    uint16 = 86
	ObjectTypeNumericSample uint16 = 7

	// objectLength(4) + objectType(2) + timestamp(8)
	objectHeaderSize = 14
	canPayloadSize   = 2 + 4 + 1 + 8 // channel, frame id, dlc, data
)

type writerState uint8

const (
	stateUnopened writerState = iota
	stateHeaderWritten
	stateFinalized
)

func (s writerState) String() string {
	switch s {
	case stateUnopened:
		return "unopened"
	case stateHeaderWritten:
		return "header_written"
	case stateFinalized:
		return "finalized"
	default:
		return "invalid"
	}
}

// SequenceError reports a Writer call that is illegal in the current
// state. It is a programming error and aborts the conversion.
type SequenceError struct {
	Op    string
	State string
}

func (e *SequenceError) Error() string {
	return fmt.Sprintf("blf: %s not allowed in state %s", e.Op, e.State)
}

// Writer emits one trace container onto an exclusive, unshared sink.
// Lifecycle: NewWriter -> Open -> WriteCanFrame/WriteNumericSample* ->
// Close. Any other ordering fails with SequenceError. A Writer abandoned
// before Close leaves the sink truncated and unusable.
type Writer struct {
	w     io.WriteSeeker
	appID string
	state writerState

	objectCount uint32
	objectBytes uint64
	started     time.Time
}

// NewWriter wraps the sink. Nothing is written until Open.
func NewWriter(w io.WriteSeeker, applicationID string) *Writer {
	return &Writer{w: w, appID: applicationID}
}

// Open writes the file header with zeroed object-count and size fields and
// records the measurement start time.
func (w *Writer) Open() error {
	if w.state != stateUnopened {
		return &SequenceError{Op: "open", State: w.state.String()}
	}
	w.started = time.Now()
	if err := w.writeHeader(w.started); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	w.state = stateHeaderWritten
	return nil
}

// WriteCanFrame appends one raw CAN frame object record.
func (w *Writer) WriteCanFrame(channel uint16, frameID uint32, dlc uint8, data can.Data, timestampMicros uint64) error {
	if w.state != stateHeaderWritten {
		return &SequenceError{Op: "write_can_frame", State: w.state.String()}
	}
	record := make([]byte, objectHeaderSize+canPayloadSize)
	putObjectHeader(record, uint32(len(record)), ObjectTypeCanMessage, timestampMicros)
	binary.LittleEndian.PutUint16(record[14:], channel)
	binary.LittleEndian.PutUint32(record[16:], frameID)
	record[20] = dlc
	copy(record[21:], data[:])
	return w.append(record)
}

// WriteNumericSample appends one numeric-environment object record so the
// channel's values stay visible even when no database maps it.
func (w *Writer) WriteNumericSample(name string, timestampMicros uint64, value float64) error {
	if w.state != stateHeaderWritten {
		return &SequenceError{Op: "write_numeric_sample", State: w.state.String()}
	}
	if len(name) > 0xFFFF {
		return fmt.Errorf("channel name %d bytes exceeds record limit", len(name))
	}
	record := make([]byte, objectHeaderSize+2+len(name)+8)
	putObjectHeader(record, uint32(len(record)), ObjectTypeNumericSample, timestampMicros)
	binary.LittleEndian.PutUint16(record[14:], uint16(len(name)))
	copy(record[16:], name)
	binary.LittleEndian.PutUint64(record[16+len(name):], math.Float64bits(value))
	return w.append(record)
}

// Close back-patches the header's object count, object-stream size and
// measurement end time, then finalizes the writer. A second Close is a
// SequenceError and does not disturb what has been written.
func (w *Writer) Close() error {
	if w.state != stateHeaderWritten {
		return &SequenceError{Op: "close", State: w.state.String()}
	}
	if _, err := w.w.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("seek header: %w", err)
	}
	if err := w.writeHeader(time.Now()); err != nil {
		return fmt.Errorf("patch header: %w", err)
	}
	w.state = stateFinalized
	return nil
}

// ObjectCount reports how many object records have been appended.
func (w *Writer) ObjectCount() uint32 { return w.objectCount }

// ObjectBytes reports the serialized size of the object stream so far,
// excluding the file header.
func (w *Writer) ObjectBytes() uint64 { return w.objectBytes }

func (w *Writer) append(record []byte) error {
	if _, err := w.w.Write(record); err != nil {
		return fmt.Errorf("write object: %w", err)
	}
	w.objectCount++
	w.objectBytes += uint64(len(record))
	return nil
}

func (w *Writer) writeHeader(end time.Time) error {
	hdr := make([]byte, HeaderSize)
	copy(hdr[0:4], Magic)
	binary.LittleEndian.PutUint32(hdr[4:], HeaderSize)
	binary.LittleEndian.PutUint16(hdr[8:], VersionMajor)
	binary.LittleEndian.PutUint16(hdr[10:], VersionMinor)
	binary.LittleEndian.PutUint32(hdr[12:], w.objectCount)
	binary.LittleEndian.PutUint64(hdr[16:], w.objectBytes)

	appID := w.appID
	if len(appID) > 32 {
		appID = appID[:32]
	}
	copy(hdr[24:56], appID)
	hdr[56] = 1 // application version 1.0.0.0

	putSystemTime(hdr[60:76], w.started)
	putSystemTime(hdr[76:92], end)
	// remainder stays zero
	_, err := w.w.Write(hdr)
	return err
}

func putObjectHeader(record []byte, length uint32, objectType uint16, timestampMicros uint64) {
	binary.LittleEndian.PutUint32(record[0:], length)
	binary.LittleEndian.PutUint16(record[4:], objectType)
	binary.LittleEndian.PutUint64(record[6:], timestampMicros)
}

// putSystemTime encodes a wall-clock time in the 8x uint16 layout used by
// the header: year, month, weekday, day, hour, minute, second,
// milliseconds.
func putSystemTime(dst []byte, t time.Time) {
	fields := []uint16{
		uint16(t.Year()),
		uint16(t.Month()),
		uint16(t.Weekday()),
		uint16(t.Day()),
		uint16(t.Hour()),
		uint16(t.Minute()),
		uint16(t.Second()),
		uint16(t.Nanosecond() / 1e6),
	}
	for i, f := range fields {
		binary.LittleEndian.PutUint16(dst[i*2:], f)
	}
}
