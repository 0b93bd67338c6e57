package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type gauge struct{ values []bool }

func (g *gauge) SetBackendUp(up bool) { g.values = append(g.values, up) }

func TestHealthProbeRecordsState(t *testing.T) {
	g := &gauge{}
	fail := true
	probe := HealthProbe(func(context.Context) error {
		if fail {
			return errors.New("connection refused")
		}
		return nil
	}, g, zerolog.Nop())

	_ = probe(context.Background())
	fail = false
	_ = probe(context.Background())

	if len(g.values) != 2 || g.values[0] || !g.values[1] {
		t.Fatalf("unexpected gauge values %v", g.values)
	}
}

func TestAddRejectsBadSpec(t *testing.T) {
	s := NewScheduler(zerolog.Nop())
	if err := s.Add("bad", "every minute", func(context.Context) error { return nil }); err == nil {
		t.Fatalf("expected error for invalid spec")
	}
}

func TestSchedulerRunsAndStops(t *testing.T) {
	s := NewScheduler(zerolog.Nop())
	var runs atomic.Int32
	if err := s.Add("tick", "* * * * * *", func(context.Context) error {
		runs.Add(1)
		return nil
	}); err != nil {
		t.Fatalf("add: %v", err)
	}
	s.Start()

	deadline := time.Now().Add(3 * time.Second)
	for runs.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if runs.Load() == 0 {
		t.Fatalf("job never ran")
	}
}
