package scheduler

import (
	"testing"
	"time"

	"github.com/dstargw/core/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Level: "error"})
}

func TestEveryIntervalReplacesExistingJob(t *testing.T) {
	s, err := New(testLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Stop()

	if err := s.EveryInterval("refresh-hosts", time.Hour, func() {}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := s.EveryInterval("refresh-hosts", time.Hour, func() {}); err != nil {
		t.Fatalf("re-register: %v", err)
	}
	if len(s.jobs) != 1 {
		t.Fatalf("want exactly one job after replace, got %d", len(s.jobs))
	}
}

func TestCancelRemovesJob(t *testing.T) {
	s, err := New(testLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Stop()

	if err := s.EveryInterval("standby-publish", time.Minute, func() {}); err != nil {
		t.Fatalf("register: %v", err)
	}
	s.Cancel("standby-publish")
	if _, ok := s.jobs["standby-publish"]; ok {
		t.Fatal("expected job to be removed")
	}
}
