package writer

import (
	"fmt"
	"os"

	"go.einride.tech/can"

	"github.com/ontoloji/Sif-to-blf/blf"
	"github.com/ontoloji/Sif-to-blf/logger"
)

// TraceWriter owns the output file of a conversion run. It drives the
// container writer and keeps per-kind object counters for the summary.
type TraceWriter struct {
	path  string
	file  *os.File
	trace *blf.Writer
	log   *logger.Log

	frames  int64
	numeric int64
}

// NewTraceWriter creates the output file and writes the container header.
func NewTraceWriter(path, applicationID string) (*TraceWriter, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}

	trace := blf.NewWriter(file, applicationID)
	if err := trace.Open(); err != nil {
		file.Close()
		os.Remove(path)
		return nil, fmt.Errorf("failed to write trace header: %w", err)
	}

	w := &TraceWriter{
		path:  path,
		file:  file,
		trace: trace,
		log:   logger.GetLogger(),
	}
	w.log.WithComponent("trace_writer").WithFields(logger.Fields{
		"path":   path,
		"app_id": applicationID,
	}).Debug("trace output opened")
	return w, nil
}

func (w *TraceWriter) WriteCanFrame(channel uint16, frameID uint32, dlc uint8, data can.Data, timestampMicros uint64) error {
	if err := w.trace.WriteCanFrame(channel, frameID, dlc, data, timestampMicros); err != nil {
		return err
	}
	w.frames++
	return nil
}

func (w *TraceWriter) WriteNumericSample(name string, timestampMicros uint64, value float64) error {
	if err := w.trace.WriteNumericSample(name, timestampMicros, value); err != nil {
		return err
	}
	w.numeric++
	return nil
}

// Close finalizes the container trailer and closes the file.
func (w *TraceWriter) Close() error {
	traceErr := w.trace.Close()
	fileErr := w.file.Close()
	if traceErr != nil {
		return fmt.Errorf("failed to finalize trace: %w", traceErr)
	}
	if fileErr != nil {
		return fmt.Errorf("failed to close output file: %w", fileErr)
	}
	w.log.WithComponent("trace_writer").WithFields(logger.Fields{
		"path":    w.path,
		"objects": w.trace.ObjectCount(),
		"bytes":   w.trace.ObjectBytes(),
	}).Debug("trace output finalized")
	return nil
}

// Discard closes and removes the output file. Used when a run aborts so
// no partial trace is left behind.
func (w *TraceWriter) Discard() {
	w.file.Close()
	if err := os.Remove(w.path); err != nil && !os.IsNotExist(err) {
		w.log.WithComponent("trace_writer").WithError(err).Warn("failed to remove partial output")
	}
}

// Path returns the output file path.
func (w *TraceWriter) Path() string { return w.path }

// Frames returns how many CAN frame objects were written.
func (w *TraceWriter) Frames() int64 { return w.frames }

// Numeric returns how many numeric sample objects were written.
func (w *TraceWriter) Numeric() int64 { return w.numeric }

// ObjectCount returns the total object count of the container.
func (w *TraceWriter) ObjectCount() uint32 { return w.trace.ObjectCount() }

// ObjectBytes returns the serialized object bytes of the container.
func (w *TraceWriter) ObjectBytes() uint64 { return w.trace.ObjectBytes() }
