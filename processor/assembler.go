package processor

import (
	"errors"
	"fmt"
	"sort"

	"go.einride.tech/can"

	"github.com/ontoloji/Sif-to-blf/dbc"
	"github.com/ontoloji/Sif-to-blf/logger"
	"github.com/ontoloji/Sif-to-blf/models"
)

// ObjectSink receives completed trace objects. blf.Writer satisfies it
// directly; the writer stage wraps it with counters.
type ObjectSink interface {
	WriteCanFrame(channel uint16, frameID uint32, dlc uint8, data can.Data, timestampMicros uint64) error
	WriteNumericSample(name string, timestampMicros uint64, value float64) error
}

// EncodeStats counts the non-fatal encode diagnostics of a run.
type EncodeStats struct {
	RangeClamped   int64
	DivisionByZero int64
}

// Assembler groups mapped samples into CAN frames. Samples sharing a
// timestamp and destination message accumulate into one frame; the frame
// is emitted when a sample for the same message arrives with a different
// timestamp, or at end of stream via Flush. Unmapped channels bypass the
// frame path and are forwarded as numeric samples so their values stay
// visible without a database.
type Assembler struct {
	bindings     map[string]ChannelBinding
	names        map[string]string // channel -> display name for numeric objects
	sink         ObjectSink
	channelIndex uint16
	numericAll   bool

	buckets map[uint32]*frameBucket
	stats   EncodeStats
	frames  int64
	numeric int64
	log     *logger.Log
}

type frameBucket struct {
	msg  *dbc.MessageDef
	ts   uint64
	data can.Data
}

// AssemblerOptions tune an Assembler beyond its mapping result.
type AssemblerOptions struct {
	// ChannelIndex is the 1-based trace channel of the source CAN
	// interface. Zero means interface 1.
	ChannelIndex uint16
	// NumericAll forwards every sample as a numeric object, mapped or
	// not, so signal graphs work without CAN decoding. Unmapped channels
	// are forwarded regardless of this flag.
	NumericAll bool
	// DisplayNames overrides the name written to numeric objects, keyed
	// by channel name. Missing channels fall back to the channel name.
	DisplayNames map[string]string
}

func NewAssembler(mapping MappingResult, sink ObjectSink, opts AssemblerOptions) *Assembler {
	idx := opts.ChannelIndex
	if idx == 0 {
		idx = 1
	}
	return &Assembler{
		bindings:     mapping.Bindings,
		names:        opts.DisplayNames,
		sink:         sink,
		channelIndex: idx,
		numericAll:   opts.NumericAll,
		buckets:      make(map[uint32]*frameBucket),
		log:          logger.GetLogger(),
	}
}

// Add processes one sample. Only sink failures are returned; encode
// diagnostics are counted and the run continues.
func (a *Assembler) Add(s models.Sample) error {
	binding, known := a.bindings[s.Channel]
	if !known {
		return fmt.Errorf("sample for unknown channel %q", s.Channel)
	}

	if !binding.Matched || a.numericAll {
		if err := a.sink.WriteNumericSample(a.displayName(s.Channel), s.TimestampMicros, s.Value); err != nil {
			return fmt.Errorf("numeric sample %s: %w", s.Channel, err)
		}
		a.numeric++
	}
	if !binding.Matched {
		return nil
	}

	msg := binding.Ref.Message
	bucket, ok := a.buckets[msg.ID]
	if ok && bucket.ts != s.TimestampMicros {
		if err := a.emit(bucket); err != nil {
			return err
		}
		ok = false
	}
	if !ok {
		bucket = &frameBucket{msg: msg, ts: s.TimestampMicros}
		a.buckets[msg.ID] = bucket
	}

	if err := dbc.Encode(binding.Ref.Signal, s.Value, &bucket.data); err != nil {
		var encErr *dbc.EncodeError
		if !errors.As(err, &encErr) {
			return err
		}
		switch encErr.Kind {
		case dbc.DivisionByZero:
			a.stats.DivisionByZero++
		case dbc.RangeClamped:
			a.stats.RangeClamped++
		}
		a.log.WithComponent("assembler").WithFields(logger.Fields{
			"channel": s.Channel,
			"signal":  encErr.Signal,
			"value":   encErr.Value,
			"kind":    encErr.Kind.String(),
		}).Warn("encode diagnostic")
	}
	return nil
}

// Flush emits every open frame bucket. Call once at end of stream.
func (a *Assembler) Flush() error {
	ids := make([]uint32, 0, len(a.buckets))
	for id := range a.buckets {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		if err := a.emit(a.buckets[id]); err != nil {
			return err
		}
	}
	return nil
}

// Stats returns the encode diagnostics counted so far.
func (a *Assembler) Stats() EncodeStats { return a.stats }

// FramesEmitted returns how many CAN frames reached the sink.
func (a *Assembler) FramesEmitted() int64 { return a.frames }

// NumericEmitted returns how many numeric samples reached the sink.
func (a *Assembler) NumericEmitted() int64 { return a.numeric }

func (a *Assembler) emit(b *frameBucket) error {
	if err := a.sink.WriteCanFrame(a.channelIndex, b.msg.ID, b.msg.DLC, b.data, b.ts); err != nil {
		return fmt.Errorf("frame 0x%X: %w", b.msg.ID, err)
	}
	a.frames++
	delete(a.buckets, b.msg.ID)
	return nil
}

func (a *Assembler) displayName(channel string) string {
	if n, ok := a.names[channel]; ok && n != "" {
		return n
	}
	return channel
}
