package dbc

import (
	"fmt"
)

// ByteOrder is the bit layout of a signal inside the frame payload.
// DBC encodes it as @0 (Motorola) or @1 (Intel).
type ByteOrder uint8

const (
	BigEndian    ByteOrder = 0 // Motorola
	LittleEndian ByteOrder = 1 // Intel
)

func (o ByteOrder) String() string {
	if o == LittleEndian {
		return "little_endian"
	}
	return "big_endian"
}

// SignalDef is one encodable quantity within a message.
type SignalDef struct {
	Name      string
	StartBit  uint8
	Length    uint8
	ByteOrder ByteOrder
	Signed    bool
	Scale     float64
	Offset    float64
	Min       float64
	Max       float64
	Unit      string
	Receiver  string
}

// MessageDef is one CAN frame template. Signals keep their order of
// appearance in the database source.
type MessageDef struct {
	ID      uint32
	Name    string
	DLC     uint8
	Sender  string
	Signals []SignalDef
}

// SignalByName returns the signal with the given name, or nil.
func (m *MessageDef) SignalByName(name string) *SignalDef {
	for i := range m.Signals {
		if m.Signals[i].Name == name {
			return &m.Signals[i]
		}
	}
	return nil
}

// SignalRef points at one signal together with its owning message.
type SignalRef struct {
	Message *MessageDef
	Signal  *SignalDef
}

// Database holds the merged message set of one or more DBC files.
//
// Merge rules: a message id defined again by a later file replaces the
// earlier definition (load-order precedence), while a signal name already
// claimed by an earlier-loaded message keeps its first owner. The database
// is immutable once the caller stops loading files.
type Database struct {
	messages map[uint32]*MessageDef
	order    []uint32 // message ids in first-seen order

	index   []SignalRef
	byName  map[string]int
	sources []string
}

// NewDatabase returns an empty database ready for LoadFile calls.
func NewDatabase() *Database {
	return &Database{
		messages: make(map[uint32]*MessageDef),
		byName:   make(map[string]int),
	}
}

// Message returns the definition for an arbitration id.
func (d *Database) Message(id uint32) (*MessageDef, bool) {
	m, ok := d.messages[id]
	return m, ok
}

// Messages returns all message definitions in load order.
func (d *Database) Messages() []*MessageDef {
	out := make([]*MessageDef, 0, len(d.order))
	for _, id := range d.order {
		out = append(out, d.messages[id])
	}
	return out
}

// Lookup resolves a signal name to its owning message. Names are unique
// across the merged database; on cross-file collisions the first-loaded
// signal wins.
func (d *Database) Lookup(name string) (SignalRef, bool) {
	i, ok := d.byName[name]
	if !ok {
		return SignalRef{}, false
	}
	return d.index[i], true
}

// SignalRefs returns every signal of the merged database in deterministic
// load order. Fuzzy matching iterates this slice so that ties always
// resolve to the earliest-loaded signal.
func (d *Database) SignalRefs() []SignalRef {
	return d.index
}

// Sources lists the files merged into this database, in load order.
func (d *Database) Sources() []string {
	return d.sources
}

func (d *Database) String() string {
	return fmt.Sprintf("dbc.Database{files: %d, messages: %d, signals: %d}",
		len(d.sources), len(d.messages), len(d.index))
}

// merge folds one parsed file into the database and rebuilds the signal
// index. Called only after the file parsed and validated completely, so a
// broken file never leaves partial state behind.
func (d *Database) merge(source string, msgs []*MessageDef) {
	for _, m := range msgs {
		if _, seen := d.messages[m.ID]; !seen {
			d.order = append(d.order, m.ID)
		}
		d.messages[m.ID] = m
	}
	d.sources = append(d.sources, source)
	d.rebuildIndex()
}

func (d *Database) rebuildIndex() {
	d.index = d.index[:0]
	d.byName = make(map[string]int)
	for _, id := range d.order {
		m := d.messages[id]
		for i := range m.Signals {
			s := &m.Signals[i]
			if _, taken := d.byName[s.Name]; taken {
				continue
			}
			d.byName[s.Name] = len(d.index)
			d.index = append(d.index, SignalRef{Message: m, Signal: s})
		}
	}
}
