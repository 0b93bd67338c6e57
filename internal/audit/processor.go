package audit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"submita/internal/metrics"
)

// Store is the persistence the processor writes to.
type Store interface {
	Insert(ctx context.Context, e Event) error
}

// Processor turns stream messages into stored audit rows.
type Processor struct {
	store   Store
	logger  zerolog.Logger
	metrics *metrics.Registry
}

func NewProcessor(store Store, logger zerolog.Logger, m *metrics.Registry) *Processor {
	return &Processor{store: store, logger: logger, metrics: m}
}

// Handle stores one message. Malformed messages are logged and acknowledged
// so they do not block the group.
func (p *Processor) Handle(ctx context.Context, msg redis.XMessage) error {
	event, err := FromValues(msg.Values)
	if err != nil {
		if errors.Is(err, ErrInvalidEvent) {
			p.logger.Warn().Err(err).Str("message_id", msg.ID).Msg("discarding malformed audit message")
			return nil
		}
		return err
	}

	err = p.store.Insert(ctx, event)
	p.metrics.ObserveAudit("stored", err)
	if err != nil {
		return fmt.Errorf("store audit event %s: %w", event.ID, err)
	}

	p.logger.Debug().
		Str("event_id", event.ID).
		Str("kind", string(event.Kind)).
		Str("subject", event.Subject).
		Msg("audit event stored")
	return nil
}

// Pruner is the retention side of the repository.
type Pruner interface {
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// RetentionJob deletes rows older than retention.
func RetentionJob(repo Pruner, retention time.Duration, logger zerolog.Logger) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		cutoff := time.Now().Add(-retention)
		n, err := repo.DeleteBefore(ctx, cutoff)
		if err != nil {
			return fmt.Errorf("audit retention: %w", err)
		}
		logger.Info().Int64("deleted", n).Time("cutoff", cutoff).Msg("audit retention done")
		return nil
	}
}
