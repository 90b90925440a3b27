package ledger

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tradegate/signal-gateway/internal/types"
)

// Reaper is the background maintenance loop for the ledger: it purges
// records past retention and converts abandoned reservations to Failed so a
// dropped connection or hung upstream call cannot block a key forever.
type Reaper struct {
	ledger   *Ledger
	interval time.Duration
}

func NewReaper(ledger *Ledger, interval time.Duration) *Reaper {
	return &Reaper{ledger: ledger, interval: interval}
}

// Start begins the reaper loop and blocks until ctx is cancelled.
func (r *Reaper) Start(ctx context.Context) {
	logger := log.With().Str("component", "ledger_reaper").Logger()
	logger.Info().Msg("starting ledger reaper")

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("shutting down ledger reaper")
			return
		case <-ticker.C:
			r.sweep(logger.WithContext(ctx))
		}
	}
}

func (r *Reaper) sweep(ctx context.Context) {
	logger := log.Ctx(ctx)
	now := r.ledger.now()

	purged, err := r.ledger.db.PurgeExpired(now)
	if err != nil {
		logger.Error().Err(err).Msg("failed to purge expired ledger records")
	} else if purged > 0 {
		logger.Info().Int64("purged", purged).Msg("expired ledger records removed")
	}

	abandoned, err := r.ledger.db.FailAbandoned(
		now.Add(-r.ledger.liveness),
		string(types.KindExecutionTimeout),
		"reservation abandoned before commit",
	)
	if err != nil {
		logger.Error().Err(err).Msg("failed to fail abandoned reservations")
	} else if abandoned > 0 {
		logger.Warn().Int64("abandoned", abandoned).
			Msg("abandoned reservations converted to failed")
	}
}
