package sif

import (
	"bytes"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/ontoloji/Sif-to-blf/logger"
	"github.com/ontoloji/Sif-to-blf/models"
)

// Options controls how the boundary between the text metadata block and
// the binary data region is located.
type Options struct {
	// BoundaryWindow is the scan window size in bytes.
	BoundaryWindow int
	// BoundaryThreshold is the fraction of null bytes within a window
	// that marks the start of binary data.
	BoundaryThreshold float64
}

// DefaultOptions returns the scan parameters used when none are given.
func DefaultOptions() Options {
	return Options{
		BoundaryWindow:    1024,
		BoundaryThreshold: 0.5,
	}
}

// Recording holds the parsed metadata of one SIF recording plus the raw
// bytes so the binary data region stays accessible.
type Recording struct {
	TCEVersion       string
	FileVersion      string
	MasterSampleRate int
	Interfaces       []models.CanInterface
	Channels         []models.ChannelMeta
	DataOffset       int

	raw []byte
}

// BinaryData returns the binary measurement region that follows the text
// metadata block.
func (r *Recording) BinaryData() []byte {
	return r.raw[r.DataOffset:]
}

// ParseFile reads and parses a SIF recording from disk.
func ParseFile(path string, opts Options) (*Recording, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read recording: %w", err)
	}
	return Parse(data, opts)
}

// Parse parses a SIF recording held in memory.
func Parse(data []byte, opts Options) (*Recording, error) {
	if opts.BoundaryWindow <= 0 {
		opts = DefaultOptions()
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty recording")
	}

	offset := findTextEnd(data, opts)
	text := string(data[:offset])

	rec := &Recording{
		TCEVersion:       "unknown",
		FileVersion:      "unknown",
		MasterSampleRate: 100000,
		DataOffset:       offset,
		raw:              data,
	}

	sections := splitSections(text)
	for _, sec := range sections {
		switch {
		case sec.name == "":
			rec.parseHeader(sec)
		case strings.HasPrefix(sec.name, "HardItem_"):
			if iface, ok := parseInterface(sec); ok {
				rec.Interfaces = append(rec.Interfaces, iface)
			}
		case strings.HasPrefix(sec.name, "ChanItem_"):
			if ch, ok := parseChannel(sec); ok {
				rec.Channels = append(rec.Channels, ch)
			}
		}
	}

	return rec, nil
}

// findTextEnd locates the boundary between the text metadata block and the
// binary data that follows it. The scan looks for the first window with a
// high null-byte density, then backtracks to the last blank line so the
// metadata block ends on a section boundary.
func findTextEnd(data []byte, opts Options) int {
	window := opts.BoundaryWindow
	for i := 0; i+window <= len(data); i += 256 {
		nulls := bytes.Count(data[i:i+window], []byte{0})
		if float64(nulls)/float64(window) > opts.BoundaryThreshold {
			low := i - 4096
			if low < 0 {
				low = 0
			}
			for j := i; j > low; j-- {
				if j+2 <= len(data) && data[j] == '\n' && data[j+1] == '\n' {
					return j + 2
				}
			}
			return i
		}
	}
	// No binary region found; assume the bulk of the file is metadata.
	return len(data) * 8 / 10
}

type section struct {
	name   string
	fields map[string]string
	// multi keeps every value for keys that repeat with a numeric
	// suffix, such as the database list of a CAN interface.
	multi map[string][]string
	order []string
}

var sectionHeader = regexp.MustCompile(`^\[(\w+)\]\s*$`)

// splitSections cuts the metadata text into its INI-like sections. Keys
// seen before the first section header land in an unnamed section.
func splitSections(text string) []section {
	current := section{fields: map[string]string{}, multi: map[string][]string{}}
	out := []section{}

	flush := func() {
		if current.name != "" || len(current.fields) > 0 {
			out = append(out, current)
		}
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		if m := sectionHeader.FindStringSubmatch(line); m != nil {
			flush()
			current = section{name: m[1], fields: map[string]string{}, multi: map[string][]string{}}
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if key == "" {
			continue
		}
		if _, seen := current.fields[key]; !seen {
			current.fields[key] = value
			current.order = append(current.order, key)
		}
		current.multi[key] = append(current.multi[key], value)
	}
	flush()
	return out
}

func (s section) str(key, fallback string) string {
	if v, ok := s.fields[key]; ok && v != "" {
		return v
	}
	return fallback
}

func (s section) integer(key string, fallback int) int {
	v, ok := s.fields[key]
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		logger.GetLogger().WithComponent("sif").WithFields(logger.Fields{
			"section": s.name,
			"key":     key,
			"value":   v,
		}).Warn("non-integer metadata field, using default")
		return fallback
	}
	return n
}

func (s section) float(key string, fallback float64) float64 {
	v, ok := s.fields[key]
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		logger.GetLogger().WithComponent("sif").WithFields(logger.Fields{
			"section": s.name,
			"key":     key,
			"value":   v,
		}).Warn("non-numeric metadata field, using default")
		return fallback
	}
	return f
}

func (r *Recording) parseHeader(sec section) {
	r.TCEVersion = sec.str("TCEVersion", r.TCEVersion)
	r.FileVersion = sec.str("FileVersion", r.FileVersion)
	r.MasterSampleRate = sec.integer("MasterSampleRate", r.MasterSampleRate)
}

// parseInterface extracts a CAN interface from a HardItem section. Items
// for other bus types are skipped.
func parseInterface(sec section) (models.CanInterface, bool) {
	if sec.str("VBM_HardInterface", "") != "CAN" && sec.str("HardInterface_1", "") != "CAN" {
		return models.CanInterface{}, false
	}
	name := sec.str("ID", "")
	if name == "" {
		return models.CanInterface{}, false
	}

	var databases []string
	for _, key := range sec.order {
		if strings.HasPrefix(key, "DataBase_") {
			databases = append(databases, sec.multi[key]...)
		}
	}

	passive := true
	if v, ok := sec.fields["PassiveMode_1"]; ok {
		passive = v != "0"
	}

	return models.CanInterface{
		Name:        name,
		BaudRate:    sec.integer("BaudRate_1", 0),
		Databases:   databases,
		NodeName:    sec.str("NodeName", "unknown"),
		PassiveMode: passive,
	}, true
}

// parseChannel extracts a measurement channel from a ChanItem section.
// Sections without an ID are skipped.
func parseChannel(sec section) (models.ChannelMeta, bool) {
	name := sec.str("ID_1", "")
	if name == "" {
		return models.ChannelMeta{}, false
	}
	return models.ChannelMeta{
		Name:         name,
		Prefix:       sec.str("Prefix", ""),
		Type:         sec.str("Type_1", "Unknown"),
		Unit:         sec.str("Units_1", ""),
		SampleRateHz: sec.integer("SampleRate", 1),
		FSMin:        sec.float("FS_Min_1", 0),
		FSMax:        sec.float("FS_Max_1", 1),
		CalSlope:     sec.float("CalSlope", 1),
		CalIntercept: sec.float("CalIntercept", 0),
		Connector:    sec.str("Connector", ""),
	}, true
}
