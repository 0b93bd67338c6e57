package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

type BackendGauge interface {
	SetBackendUp(up bool)
}

// HealthProbe returns a job that pings the backend and records whether it
// answered. Failures are logged only on state changes.
func HealthProbe(check func(ctx context.Context) error, gauge BackendGauge, log zerolog.Logger) JobFunc {
	var last *bool
	return func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		err := check(ctx)
		up := err == nil
		if gauge != nil {
			gauge.SetBackendUp(up)
		}
		if last == nil || *last != up {
			if up {
				log.Info().Msg("backend reachable")
			} else {
				log.Warn().Err(err).Msg("backend unreachable")
			}
		}
		last = &up
		return nil
	}
}
