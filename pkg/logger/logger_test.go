package logger

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestLogger_BasicLevelsAndFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "debug", Format: "text", Output: &buf})

	log.Debug("dbg", String("k", "v"))
	log.Info("info", Int("n", 42))
	log.Warn("warn", Bool("ok", true))
	log.Error("err", Error(nil))

	out := buf.String()
	// Expect all levels present (debug is the lowest configured)
	for _, s := range []string{"[DEBUG] dbg k=v", "[INFO] info n=42", "[WARN] warn ok=true", "[ERROR] err error=nil"} {
		if !strings.Contains(out, s) {
			t.Fatalf("expected output to contain %q, got: %s", s, out)
		}
	}
}

func TestLogger_WithComponentPrefix(t *testing.T) {
	var buf bytes.Buffer
	base := New(Config{Level: "info", Output: &buf})
	comp := base.WithComponent("network.server")

	comp.Info("started")

	out := buf.String()
	if !strings.Contains(out, "[network.server]") {
		t.Fatalf("expected component prefix in output, got: %s", out)
	}
	if !strings.Contains(out, "[INFO] started") {
		t.Fatalf("expected info message in output, got: %s", out)
	}
}

func TestLogger_SyncRunsShutdownHooks(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "info", Output: &buf})

	var flushed int
	log.OnShutdown(func() error {
		flushed++
		return nil
	})
	log.OnShutdown(func() error {
		flushed++
		return nil
	})

	if err := log.Sync(); err != nil {
		t.Fatalf("unexpected error from Sync: %v", err)
	}
	if flushed != 2 {
		t.Fatalf("expected 2 shutdown hooks to run, got %d", flushed)
	}
}

func TestLogger_SyncReturnsFirstError(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "info", Output: &buf})

	wantErr := errors.New("flush failed")
	log.OnShutdown(func() error { return wantErr })
	log.OnShutdown(func() error { return errors.New("second failure") })

	if err := log.Sync(); err != wantErr {
		t.Fatalf("expected first registered error, got: %v", err)
	}
}
