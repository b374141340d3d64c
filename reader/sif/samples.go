package sif

import (
	"github.com/ontoloji/Sif-to-blf/models"
)

// maxSamplePoints caps how many sample points are reconstructed from the
// binary region of a recording.
const maxSamplePoints = 1000

// SampleStream yields one calibrated value per channel per sample point.
// The binary region carries no self-describing layout, so values are
// derived from the raw bytes and scaled into each channel's full-scale
// range before calibration.
type SampleStream struct {
	channels   []models.ChannelMeta
	bin        []byte
	points     int
	stepMicros uint64

	point int
	ch    int
	ts    uint64
}

// Samples returns a stream over the recording's binary region. The stream
// is empty when the recording has no channels or no binary data.
func (r *Recording) Samples() *SampleStream {
	bin := r.BinaryData()
	points := len(bin) / 100
	if points > maxSamplePoints {
		points = maxSamplePoints
	}
	if len(r.Channels) == 0 {
		points = 0
	}

	// The timestamp step follows the fastest channel.
	maxRate := 0
	for _, ch := range r.Channels {
		if ch.SampleRateHz > maxRate {
			maxRate = ch.SampleRateHz
		}
	}
	step := uint64(1)
	if maxRate > 0 && maxRate <= 1_000_000 {
		step = uint64(1_000_000 / maxRate)
	}

	return &SampleStream{
		channels:   r.Channels,
		bin:        bin,
		points:     points,
		stepMicros: step,
	}
}

// Points returns how many sample points the stream will produce per
// channel.
func (s *SampleStream) Points() int {
	return s.points
}

// Next returns the next sample. All channels of one sample point share a
// timestamp; the timestamp advances by the stream's step between points.
func (s *SampleStream) Next() (models.Sample, bool) {
	if s.point >= s.points {
		return models.Sample{}, false
	}

	ch := s.channels[s.ch]
	offset := (s.point*len(s.channels) + s.ch) % len(s.bin)
	raw := s.bin[offset]

	normalized := float64(raw) / 255.0
	value := ch.FSMin + (ch.FSMax-ch.FSMin)*normalized
	value = value*ch.CalSlope + ch.CalIntercept

	sample := models.Sample{
		Channel:         ch.Name,
		TimestampMicros: s.ts,
		Value:           value,
	}

	s.ch++
	if s.ch == len(s.channels) {
		s.ch = 0
		s.point++
		s.ts += s.stepMicros
	}
	return sample, true
}
