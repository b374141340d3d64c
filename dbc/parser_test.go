package dbc

import (
	"errors"
	"strings"
	"testing"
)

const engineDBC = `VERSION "1.0"

BU_ ECU Dash Gateway

BO_ 100 Engine: 8 ECU
 SG_ RPM : 0|16@1+ (0.25,0) [0|16000] "rpm" Dash
 SG_ CoolantTemp : 16|8@1- (1,-40) [-40|215] "degC" Dash

CM_ SG_ 100 RPM "engine speed";
`

func loadString(t *testing.T, db *Database, src, name string) {
	t.Helper()
	if err := db.Load(strings.NewReader(src), name); err != nil {
		t.Fatalf("load %s: %v", name, err)
	}
}

func TestParseEngineMessage(t *testing.T) {
	db := NewDatabase()
	loadString(t, db, engineDBC, "engine.dbc")

	m, ok := db.Message(100)
	if !ok {
		t.Fatal("message 100 not found")
	}
	if m.Name != "Engine" || m.DLC != 8 || m.Sender != "ECU" {
		t.Fatalf("unexpected message: %+v", m)
	}
	if len(m.Signals) != 2 {
		t.Fatalf("expected 2 signals, got %d", len(m.Signals))
	}

	rpm := m.SignalByName("RPM")
	if rpm == nil {
		t.Fatal("RPM signal not found")
	}
	if rpm.StartBit != 0 || rpm.Length != 16 || rpm.ByteOrder != LittleEndian || rpm.Signed {
		t.Fatalf("unexpected RPM layout: %+v", rpm)
	}
	if rpm.Scale != 0.25 || rpm.Offset != 0 || rpm.Min != 0 || rpm.Max != 16000 || rpm.Unit != "rpm" {
		t.Fatalf("unexpected RPM transform: %+v", rpm)
	}

	temp := m.SignalByName("CoolantTemp")
	if temp == nil || !temp.Signed || temp.Offset != -40 {
		t.Fatalf("unexpected CoolantTemp: %+v", temp)
	}

	ref, ok := db.Lookup("RPM")
	if !ok || ref.Message.ID != 100 {
		t.Fatalf("signal index lookup failed: %+v", ref)
	}
}

func TestParseIgnoresUnknownLines(t *testing.T) {
	src := `VERSION "x"
NS_ :
BS_:
BU_ A B
BO_ 1 M: 2 A
 SG_ S : 0|8@1+ (1,0) [0|255] "" B
VAL_ 1 S 0 "off" 1 "on" ;
BA_DEF_ "GenMsgCycleTime" INT 0 10000;
`
	db := NewDatabase()
	loadString(t, db, src, "x.dbc")
	if len(db.SignalRefs()) != 1 {
		t.Fatalf("expected 1 signal, got %d", len(db.SignalRefs()))
	}
}

func TestParseOrphanSignal(t *testing.T) {
	src := ` SG_ Lost : 0|8@1+ (1,0) [0|255] "" ECU
BO_ 1 M: 8 A
`
	db := NewDatabase()
	err := db.Load(strings.NewReader(src), "orphan.dbc")
	var dbErr *DatabaseError
	if !errors.As(err, &dbErr) {
		t.Fatalf("expected DatabaseError, got %v", err)
	}
	if dbErr.Line != 1 {
		t.Errorf("expected line 1, got %d", dbErr.Line)
	}
}

func TestParseDuplicateSignalName(t *testing.T) {
	src := `BO_ 1 M: 8 A
 SG_ S : 0|8@1+ (1,0) [0|255] "" B
 SG_ S : 8|8@1+ (1,0) [0|255] "" B
`
	db := NewDatabase()
	err := db.Load(strings.NewReader(src), "dup.dbc")
	var dbErr *DatabaseError
	if !errors.As(err, &dbErr) {
		t.Fatalf("expected DatabaseError, got %v", err)
	}
}

func TestParseMalformedNumeric(t *testing.T) {
	cases := []struct {
		name string
		src  string
	}{
		{"bad scale", "BO_ 1 M: 8 A\n SG_ S : 0|8@1+ (abc,0) [0|255] \"\" B\n"},
		{"bad start bit", "BO_ 1 M: 8 A\n SG_ S : x|8@1+ (1,0) [0|255] \"\" B\n"},
		{"bad message id", "BO_ zz M: 8 A\n"},
		{"bad dlc", "BO_ 1 M: eight A\n"},
		{"mangled signal", "BO_ 1 M: 8 A\n SG_ S : garbage\n"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			db := NewDatabase()
			err := db.Load(strings.NewReader(c.src), "bad.dbc")
			var parseErr *ParseError
			if !errors.As(err, &parseErr) {
				t.Fatalf("expected ParseError, got %v", err)
			}
			if parseErr.Line == 0 || parseErr.Text == "" {
				t.Errorf("diagnostic missing context: %+v", parseErr)
			}
		})
	}
}

func TestParseOverlappingSignals(t *testing.T) {
	src := `BO_ 1 M: 8 A
 SG_ A : 0|12@1+ (1,0) [0|4095] "" B
 SG_ B : 8|8@1+ (1,0) [0|255] "" B
`
	db := NewDatabase()
	err := db.Load(strings.NewReader(src), "overlap.dbc")
	var dbErr *DatabaseError
	if !errors.As(err, &dbErr) {
		t.Fatalf("expected DatabaseError, got %v", err)
	}
}

func TestParseMixedOrderOverlap(t *testing.T) {
	// Big-endian footprint must be compared in physical bit positions, so
	// a Motorola signal can collide with an Intel one.
	src := `BO_ 1 M: 8 A
 SG_ A : 0|8@0+ (1,0) [0|255] "" B
 SG_ B : 4|8@1+ (1,0) [0|255] "" B
`
	db := NewDatabase()
	if err := db.Load(strings.NewReader(src), "mixed.dbc"); err == nil {
		t.Fatal("expected overlap error")
	}
}

func TestParseSignalOutsidePayload(t *testing.T) {
	src := `BO_ 1 M: 2 A
 SG_ S : 8|16@1+ (1,0) [0|65535] "" B
`
	db := NewDatabase()
	var dbErr *DatabaseError
	if err := db.Load(strings.NewReader(src), "wide.dbc"); !errors.As(err, &dbErr) {
		t.Fatalf("expected DatabaseError, got %v", err)
	}
}

func TestLoadOrderPrecedence(t *testing.T) {
	first := `BO_ 100 Engine: 8 ECU
 SG_ RPM : 0|16@1+ (0.25,0) [0|16000] "rpm" Dash
`
	second := `BO_ 100 EngineV2: 8 ECU2
 SG_ RPM2 : 0|16@1+ (0.5,0) [0|32000] "rpm" Dash
`
	db := NewDatabase()
	loadString(t, db, first, "a.dbc")
	loadString(t, db, second, "b.dbc")

	m, ok := db.Message(100)
	if !ok || m.Name != "EngineV2" {
		t.Fatalf("later file should shadow message 100, got %+v", m)
	}
	if _, ok := db.Lookup("RPM"); ok {
		t.Error("shadowed message's signal still resolvable")
	}
	if ref, ok := db.Lookup("RPM2"); !ok || ref.Message.Name != "EngineV2" {
		t.Errorf("replacement signal not indexed: %+v", ref)
	}
}

func TestFirstSignalNameWinsAcrossFiles(t *testing.T) {
	first := `BO_ 1 A: 8 N
 SG_ Pressure : 0|16@1+ (1,0) [0|65535] "kPa" N
`
	second := `BO_ 2 B: 8 N
 SG_ Pressure : 0|16@1+ (0.1,0) [0|6553] "bar" N
`
	db := NewDatabase()
	loadString(t, db, first, "a.dbc")
	loadString(t, db, second, "b.dbc")

	ref, ok := db.Lookup("Pressure")
	if !ok || ref.Message.ID != 1 {
		t.Fatalf("expected first-loaded Pressure to win, got message %+v", ref.Message)
	}
}

func TestLoadFailureLeavesDatabaseIntact(t *testing.T) {
	db := NewDatabase()
	loadString(t, db, engineDBC, "engine.dbc")
	before := len(db.SignalRefs())

	bad := "BO_ 7 Bad: 8 A\n SG_ X : 0|8@1+ (oops,0) [0|255] \"\" B\n"
	if err := db.Load(strings.NewReader(bad), "bad.dbc"); err == nil {
		t.Fatal("expected parse error")
	}
	if len(db.SignalRefs()) != before {
		t.Error("failed load mutated the database")
	}
	if _, ok := db.Message(7); ok {
		t.Error("message from failed load is visible")
	}
	if len(db.Sources()) != 1 {
		t.Errorf("sources = %v", db.Sources())
	}
}
