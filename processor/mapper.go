package processor

import (
	"strings"

	"github.com/ontoloji/Sif-to-blf/dbc"
	"github.com/ontoloji/Sif-to-blf/logger"
)

// ChannelBinding links one external channel name to a resolved database
// signal, or records that no signal matched. Bindings are computed once
// per conversion run and consumed for every sample of that channel.
type ChannelBinding struct {
	Channel  string
	Ref      dbc.SignalRef
	Matched  bool
	Strategy string
}

// MappingResult is the outcome of mapping a channel set against the
// merged database.
type MappingResult struct {
	Bindings map[string]ChannelBinding
	Total    int
	Matched  int
}

// matchFunc is one tier of the mapping strategy chain. Each tier is a
// pure function over the database and can be unit-tested on its own.
type matchFunc func(db *dbc.Database, channel string) (dbc.SignalRef, bool)

// strategies are tried in order until one resolves the channel.
var strategies = []struct {
	name string
	fn   matchFunc
}{
	{"exact", matchExact},
	{"fuzzy", matchFuzzy},
	{"prefix", matchPrefixStripped},
}

// Mapper resolves channel names to database signals.
type Mapper struct {
	db  *dbc.Database
	log *logger.Log
}

func NewMapper(db *dbc.Database) *Mapper {
	return &Mapper{db: db, log: logger.GetLogger()}
}

// MapChannels resolves each channel name through the strategy chain.
// Unmapped channels stay in the result with Matched false; they are never
// dropped, only excluded from frame encoding.
func (m *Mapper) MapChannels(channels []string) MappingResult {
	res := MappingResult{
		Bindings: make(map[string]ChannelBinding, len(channels)),
		Total:    len(channels),
	}
	log := m.log.WithComponent("mapper")

	for _, ch := range channels {
		binding := ChannelBinding{Channel: ch}
		for _, s := range strategies {
			if ref, ok := s.fn(m.db, ch); ok {
				binding.Ref = ref
				binding.Matched = true
				binding.Strategy = s.name
				break
			}
		}
		res.Bindings[ch] = binding

		if binding.Matched {
			res.Matched++
			log.WithFields(logger.Fields{
				"channel":  ch,
				"signal":   binding.Ref.Signal.Name,
				"message":  binding.Ref.Message.Name,
				"strategy": binding.Strategy,
			}).Debug("channel mapped")
		} else {
			log.WithFields(logger.Fields{"channel": ch}).Warn("channel has no matching signal, numeric fallback")
		}
	}

	log.WithFields(logger.Fields{
		"total":   res.Total,
		"matched": res.Matched,
	}).Info("channel mapping complete")
	return res
}

// matchExact is tier 1: the channel name equals a signal name,
// case-sensitively.
func matchExact(db *dbc.Database, channel string) (dbc.SignalRef, bool) {
	return db.Lookup(channel)
}

// matchFuzzy is tier 2: case-insensitive comparison with `_` and `.`
// stripped from both sides. Ties resolve to the earliest-loaded signal
// because SignalRefs iterates in load order.
func matchFuzzy(db *dbc.Database, channel string) (dbc.SignalRef, bool) {
	want := normalize(channel)
	if want == "" {
		return dbc.SignalRef{}, false
	}
	for _, ref := range db.SignalRefs() {
		if normalize(ref.Signal.Name) == want {
			return ref, true
		}
	}
	return dbc.SignalRef{}, false
}

// matchPrefixStripped is tier 3: drop everything up to the last separator
// and retry tiers 1 and 2 on the suffix. Acquisition systems commonly
// qualify channel names with a connector or subsystem prefix that the
// database does not know about.
func matchPrefixStripped(db *dbc.Database, channel string) (dbc.SignalRef, bool) {
	suffix := stripPrefix(channel)
	if suffix == "" || suffix == channel {
		return dbc.SignalRef{}, false
	}
	if ref, ok := matchExact(db, suffix); ok {
		return ref, true
	}
	return matchFuzzy(db, suffix)
}

func normalize(name string) string {
	name = strings.ToLower(name)
	name = strings.ReplaceAll(name, "_", "")
	name = strings.ReplaceAll(name, ".", "")
	return name
}

func stripPrefix(name string) string {
	if i := strings.LastIndexAny(name, "./:"); i >= 0 && i+1 < len(name) {
		return name[i+1:]
	}
	return name
}
