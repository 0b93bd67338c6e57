package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// JobFunc is one scheduled unit of work. The context is cancelled when the
// scheduler stops.
type JobFunc func(ctx context.Context) error

type Scheduler struct {
	cron   *cron.Cron
	log    zerolog.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

func NewScheduler(log zerolog.Logger) *Scheduler {
	cl := cronLogger{log: log}
	c := cron.New(
		cron.WithSeconds(),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{cron: c, log: log, ctx: ctx, cancel: cancel}
}

// Add registers fn under a six-field cron spec (seconds first).
func (s *Scheduler) Add(name, spec string, fn JobFunc) error {
	_, err := s.cron.AddFunc(spec, func() {
		started := time.Now()
		if err := fn(s.ctx); err != nil {
			s.log.Error().Err(err).Str("job", name).Msg("job failed")
			return
		}
		s.log.Debug().Str("job", name).Dur("took", time.Since(started)).Msg("job finished")
	})
	if err != nil {
		return fmt.Errorf("schedule %s: %w", name, err)
	}
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts scheduling and waits for running jobs until ctx expires.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	s.cancel()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
