package dbc

import "fmt"

// ParseError reports database source text that could not be read, with the
// file, line number and offending text. It aborts loading of that file
// only; other files still load.
type ParseError struct {
	File string
	Line int
	Text string
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s:%d: %s: %q", e.File, e.Line, e.Msg, e.Text)
}

// DatabaseError reports a structural inconsistency in an otherwise
// readable database file: orphan signal, duplicate signal name within a
// message, overlapping bit ranges, or a field outside its valid domain.
type DatabaseError struct {
	File string
	Line int
	Msg  string
}

func (e *DatabaseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Msg)
	}
	return fmt.Sprintf("%s: %s", e.File, e.Msg)
}

// EncodeErrorKind distinguishes the non-fatal encode diagnostics.
type EncodeErrorKind uint8

const (
	// DivisionByZero means the signal's scale is zero; the sample is
	// skipped for that signal.
	DivisionByZero EncodeErrorKind = iota
	// RangeClamped means the raw value fell outside the representable
	// range of the signal and was clamped to the nearest bound. The
	// clamped value is still encoded.
	RangeClamped
)

func (k EncodeErrorKind) String() string {
	switch k {
	case DivisionByZero:
		return "division_by_zero"
	case RangeClamped:
		return "range_clamped"
	default:
		return "unknown"
	}
}

// EncodeError is a per-sample encode diagnostic. It never aborts a
// conversion; callers count occurrences for the end-of-run summary.
type EncodeError struct {
	Kind   EncodeErrorKind
	Signal string
	Value  float64
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("encode %s: %s (value %g)", e.Signal, e.Kind, e.Value)
}
