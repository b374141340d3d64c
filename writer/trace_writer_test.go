package writer

import (
	"os"
	"path/filepath"
	"testing"

	"go.einride.tech/can"

	"github.com/ontoloji/Sif-to-blf/blf"
)

func TestTraceWriterRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.blf")
	w, err := NewTraceWriter(path, "sif2blf-test")
	if err != nil {
		t.Fatalf("NewTraceWriter: %v", err)
	}

	data := can.Data{0x12, 0x34}
	if err := w.WriteCanFrame(1, 0x100, 8, data, 5000); err != nil {
		t.Fatalf("WriteCanFrame: %v", err)
	}
	if err := w.WriteNumericSample("ESS.CompIn_P", 5000, 3.25); err != nil {
		t.Fatalf("WriteNumericSample: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if w.Frames() != 1 || w.Numeric() != 1 {
		t.Errorf("counters = %d frames, %d numeric", w.Frames(), w.Numeric())
	}
	if w.ObjectCount() != 2 {
		t.Errorf("object count = %d", w.ObjectCount())
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open output: %v", err)
	}
	defer file.Close()

	scanner, err := blf.NewScanner(file)
	if err != nil {
		t.Fatalf("NewScanner: %v", err)
	}
	seen := 0
	for scanner.Scan() {
		seen++
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if seen != 2 {
		t.Errorf("scanned %d objects, want 2", seen)
	}
}

func TestTraceWriterDiscard(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.blf")
	w, err := NewTraceWriter(path, "sif2blf-test")
	if err != nil {
		t.Fatalf("NewTraceWriter: %v", err)
	}
	if err := w.WriteNumericSample("x", 0, 1); err != nil {
		t.Fatalf("WriteNumericSample: %v", err)
	}

	w.Discard()
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("partial output still present: %v", err)
	}
}

func TestTraceWriterBadPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "out.blf")
	if _, err := NewTraceWriter(path, "sif2blf-test"); err == nil {
		t.Fatal("expected error for unwritable path")
	}
}
