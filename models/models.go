package models

// ChannelMeta describes one measurement channel declared in the recording's
// metadata block.
type ChannelMeta struct {
	Name         string
	Prefix       string
	Type         string
	Unit         string
	SampleRateHz int
	FSMin        float64
	FSMax        float64
	CalSlope     float64
	CalIntercept float64
	Connector    string
}

// QualifiedName is the channel name as it should appear in the trace:
// prefixed when the recording declares a prefix, bare otherwise.
func (c ChannelMeta) QualifiedName() string {
	if c.Prefix == "" {
		return c.Name
	}
	return c.Prefix + "." + c.Name
}

// CanInterface describes one CAN bus declared in the recording's metadata
// block, including the database names it expects.
type CanInterface struct {
	Name        string
	BaudRate    int
	Databases   []string
	NodeName    string
	PassiveMode bool
}

// Sample is one timestamped measurement of a channel.
type Sample struct {
	Channel         string
	TimestampMicros uint64
	Value           float64
}

// ConversionSummary aggregates the outcome of one conversion run for the
// end-of-run report.
type ConversionSummary struct {
	RunID           string
	Input           string
	Output          string
	ChannelsTotal   int
	ChannelsMatched int
	FramesWritten   int64
	NumericWritten  int64
	ObjectsWritten  uint32
	ObjectBytes     uint64
	RangeClamped    int64
	DivisionByZero  int64
}
