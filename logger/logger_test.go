package logger

import (
	"io"
	"os"
	"testing"
)

func TestWithComponent(t *testing.T) {
	log := Logger()
	entry := log.WithComponent("test")
	if v, ok := entry.Entry.Data["component"]; !ok || v != "test" {
		t.Fatalf("component field missing: %v", entry.Entry.Data)
	}
}

func TestConfigureInvalidLevel(t *testing.T) {
	// Ensure environment variables do not override the provided level
	t.Setenv("LOG_LEVEL", "")

	log := Logger()
	if err := log.Configure("invalid", "json", "stdout", 0); err == nil {
		t.Fatalf("expected error for invalid level")
	}
}

func TestWithEnv(t *testing.T) {
	os.Setenv("FOO", "bar")
	log := Logger()
	entry := log.WithEnv("FOO")
	if v, ok := entry.Entry.Data["FOO"]; !ok || v != "bar" {
		t.Fatalf("env field not set: %v", entry.Entry.Data)
	}
}

func TestCountsTrackWarnsAndErrors(t *testing.T) {
	ResetCounts()

	log := Logger()
	log.SetOutput(io.Discard)
	defer log.SetOutput(os.Stdout)

	entry := log.WithComponent("mapper")
	entry.Warn("channel without signal")
	entry.Warn("channel without signal")
	entry.Error("bad database")

	counts := Counts()
	got, ok := counts["mapper"]
	if !ok {
		t.Fatalf("mapper counts missing: %v", counts)
	}
	if got.Warns != 2 || got.Errors != 1 {
		t.Fatalf("unexpected counts: %+v", got)
	}

	ResetCounts()
	if len(Counts()) != 0 {
		t.Fatalf("counters not cleared")
	}
}
