package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/rboeg/wx-info/internal/pipeline"
)

type noopRunner struct{}

func (noopRunner) Run(context.Context, []string) pipeline.Report { return pipeline.Report{} }

func TestStartWithoutStationsIsNoop(t *testing.T) {
	s := New(nil, time.Hour, noopRunner{}, nil)
	if err := s.Start(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s.Stop()
}

func TestStartWithoutIntervalIsNoop(t *testing.T) {
	s := New([]string{"KATL"}, 0, noopRunner{}, nil)
	if err := s.Start(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s.Stop()
}

func TestStartAndStop(t *testing.T) {
	s := New([]string{"KATL"}, time.Hour, noopRunner{}, nil)
	if err := s.Start(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s.Stop()
}
