package dbc

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
)

// The parser recognizes the message/signal subset of the DBC grammar:
//
//	BO_ <id> <name>: <dlc> <sender>
//	 SG_ <name> : <startBit>|<length>@<byteOrder><sign> (<scale>,<offset>) [<min>|<max>] "<unit>" <receiver>
//
// Every other line kind (VERSION, BU_, CM_, BA_, VAL_, comments, blanks) is
// skipped. A BO_ or SG_ line that does not parse is an error, not a skip.

var (
	messageLine = regexp.MustCompile(`^BO_\s+(\S+)\s+(\w+)\s*:\s*(\S+)\s+(\S+)`)
	signalLine  = regexp.MustCompile(`^SG_\s+(\w+)\s*(?:m\d+\s*|M\s*)?:\s*(\S+)\|(\S+)@([01])([+-])\s*\(([^,]+),([^)]+)\)\s*\[([^|]+)\|([^\]]+)\]\s*"([^"]*)"\s*(\S+)`)
)

// LoadFile parses one DBC file and merges it into the database. On error
// nothing from the file is merged; previously loaded files are unaffected.
func (d *Database) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open dbc: %w", err)
	}
	defer f.Close()
	return d.Load(f, path)
}

// Load parses DBC source text from r, naming it source in diagnostics.
func (d *Database) Load(r io.Reader, source string) error {
	msgs, err := parse(r, source)
	if err != nil {
		return err
	}
	d.merge(source, msgs)
	return nil
}

func parse(r io.Reader, source string) ([]*MessageDef, error) {
	var (
		msgs    []*MessageDef
		current *MessageDef
	)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())

		switch {
		case strings.HasPrefix(line, "BO_ "):
			m, err := parseMessage(line, source, lineNo)
			if err != nil {
				return nil, err
			}
			msgs = append(msgs, m)
			current = m

		case strings.HasPrefix(line, "SG_ "):
			if current == nil {
				return nil, &DatabaseError{File: source, Line: lineNo,
					Msg: "signal definition before any message (orphan signal)"}
			}
			s, err := parseSignal(line, source, lineNo)
			if err != nil {
				return nil, err
			}
			if current.SignalByName(s.Name) != nil {
				return nil, &DatabaseError{File: source, Line: lineNo,
					Msg: fmt.Sprintf("duplicate signal %q in message %s (ambiguous signal)", s.Name, current.Name)}
			}
			if err := validateSignal(current, s, source, lineNo); err != nil {
				return nil, err
			}
			current.Signals = append(current.Signals, *s)

		default:
			// version headers, node lists, comments, attributes
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", source, err)
	}

	for _, m := range msgs {
		if err := checkOverlap(m, source); err != nil {
			return nil, err
		}
	}
	return msgs, nil
}

func parseMessage(line, source string, lineNo int) (*MessageDef, error) {
	groups := messageLine.FindStringSubmatch(line)
	if groups == nil {
		return nil, &ParseError{File: source, Line: lineNo, Text: line,
			Msg: "malformed message definition"}
	}
	id, err := strconv.ParseUint(groups[1], 10, 32)
	if err != nil {
		return nil, &ParseError{File: source, Line: lineNo, Text: groups[1],
			Msg: "invalid message id"}
	}
	dlc, err := strconv.ParseUint(groups[3], 10, 8)
	if err != nil {
		return nil, &ParseError{File: source, Line: lineNo, Text: groups[3],
			Msg: "invalid message length"}
	}
	if dlc > 8 {
		return nil, &DatabaseError{File: source, Line: lineNo,
			Msg: fmt.Sprintf("message %s: DLC %d exceeds classic CAN limit of 8", groups[2], dlc)}
	}
	return &MessageDef{
		ID:     uint32(id),
		Name:   groups[2],
		DLC:    uint8(dlc),
		Sender: groups[4],
	}, nil
}

func parseSignal(line, source string, lineNo int) (*SignalDef, error) {
	groups := signalLine.FindStringSubmatch(line)
	if groups == nil {
		return nil, &ParseError{File: source, Line: lineNo, Text: line,
			Msg: "malformed signal definition"}
	}

	bad := func(what, text string) error {
		return &ParseError{File: source, Line: lineNo, Text: text,
			Msg: "invalid " + what}
	}

	startBit, err := strconv.ParseUint(groups[2], 10, 8)
	if err != nil {
		return nil, bad("start bit", groups[2])
	}
	length, err := strconv.ParseUint(groups[3], 10, 8)
	if err != nil {
		return nil, bad("bit length", groups[3])
	}
	scale, err := strconv.ParseFloat(strings.TrimSpace(groups[6]), 64)
	if err != nil {
		return nil, bad("scale", groups[6])
	}
	offset, err := strconv.ParseFloat(strings.TrimSpace(groups[7]), 64)
	if err != nil {
		return nil, bad("offset", groups[7])
	}
	min, err := strconv.ParseFloat(strings.TrimSpace(groups[8]), 64)
	if err != nil {
		return nil, bad("minimum", groups[8])
	}
	max, err := strconv.ParseFloat(strings.TrimSpace(groups[9]), 64)
	if err != nil {
		return nil, bad("maximum", groups[9])
	}

	order := BigEndian
	if groups[4] == "1" {
		order = LittleEndian
	}
	return &SignalDef{
		Name:      groups[1],
		StartBit:  uint8(startBit),
		Length:    uint8(length),
		ByteOrder: order,
		Signed:    groups[5] == "-",
		Scale:     scale,
		Offset:    offset,
		Min:       min,
		Max:       max,
		Unit:      groups[10],
		Receiver:  groups[11],
	}, nil
}

func validateSignal(m *MessageDef, s *SignalDef, source string, lineNo int) error {
	if s.Length < 1 || s.Length > 64 {
		return &DatabaseError{File: source, Line: lineNo,
			Msg: fmt.Sprintf("signal %s: bit length %d outside 1..64", s.Name, s.Length)}
	}
	if int(s.StartBit)+int(s.Length) > int(m.DLC)*8 {
		return &DatabaseError{File: source, Line: lineNo,
			Msg: fmt.Sprintf("signal %s: bits %d..%d do not fit message %s (%d bytes)",
				s.Name, s.StartBit, int(s.StartBit)+int(s.Length)-1, m.Name, m.DLC)}
	}
	return nil
}

// checkOverlap rejects messages whose signals claim the same payload bit.
// Encoding relies on signals OR-ing into disjoint regions, so overlap is a
// database-consistency error rather than something resolved at encode time.
func checkOverlap(m *MessageDef, source string) error {
	var occupied uint64
	for i := range m.Signals {
		s := &m.Signals[i]
		mask := footprint(s)
		if occupied&mask != 0 {
			return &DatabaseError{File: source,
				Msg: fmt.Sprintf("message %s: signal %s overlaps a previously defined signal", m.Name, s.Name)}
		}
		occupied |= mask
	}
	return nil
}

// footprint maps a signal's bit range onto physical payload bit positions
// (byte*8 + bit-within-byte, LSB numbering) regardless of byte order.
func footprint(s *SignalDef) uint64 {
	var mask uint64
	for i := 0; i < int(s.Length); i++ {
		pos := int(s.StartBit) + i
		phys := pos
		if s.ByteOrder == BigEndian {
			phys = (pos/8)*8 + 7 - pos%8
		}
		mask |= 1 << phys
	}
	return mask
}
