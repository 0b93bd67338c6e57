package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"submita/internal/ids"
	"submita/internal/metrics"
)

// streamMaxLen caps the stream when the worker is down for long.
const streamMaxLen = 100_000

type Publisher struct {
	rdb     *redis.Client
	stream  string
	log     zerolog.Logger
	metrics *metrics.Registry
	now     func() time.Time
}

func NewPublisher(rdb *redis.Client, stream string, log zerolog.Logger, m *metrics.Registry) *Publisher {
	return &Publisher{
		rdb:     rdb,
		stream:  stream,
		log:     log.With().Str("component", "audit").Logger(),
		metrics: m,
		now:     time.Now,
	}
}

func (p *Publisher) Publish(ctx context.Context, e Event) error {
	if e.ID == "" {
		e.ID = ids.New()
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = p.now()
	}
	err := p.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: streamMaxLen,
		Approx: true,
		Values: e.Values(),
	}).Err()
	p.metrics.ObserveAudit("published", err)
	if err != nil {
		return fmt.Errorf("publish audit event: %w", err)
	}
	return nil
}

// Record publishes without failing the caller; audit loss is logged.
func (p *Publisher) Record(ctx context.Context, e Event) {
	if p == nil || p.rdb == nil {
		return
	}
	if err := p.Publish(ctx, e); err != nil {
		p.log.Warn().Err(err).Str("kind", string(e.Kind)).Msg("audit event dropped")
	}
}
