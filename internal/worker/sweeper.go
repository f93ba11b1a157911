package worker

import (
	"context"
	"time"

	"bookline/internal/service"

	"github.com/rs/zerolog"
)

// Sweeper periodically deletes chat sessions whose TTL has lapsed. Reads
// already treat stale sessions as absent, so the sweep is pure housekeeping
// and its cadence is not correctness sensitive.
type Sweeper struct {
	sessions *service.SessionService
	interval time.Duration
	logger   *zerolog.Logger
}

func NewSweeper(sessions *service.SessionService, interval time.Duration, logger *zerolog.Logger) *Sweeper {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &Sweeper{sessions: sessions, interval: interval, logger: logger}
}

// Start runs the sweep loop until ctx is done.
func (s *Sweeper) Start(ctx context.Context) {
	s.logger.Info().Dur("interval", s.interval).Msg("session sweeper started")
	defer s.logger.Info().Msg("session sweeper stopped")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	removed, err := s.sessions.SweepExpired(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("session sweep failed")
		return
	}
	if removed > 0 {
		s.logger.Info().Int("removed", removed).Msg("expired sessions swept")
	}
}
