package jobs

import (
	"context"
	"log/slog"
	"time"

	"accountd/internal/logging"

	"github.com/robfig/cron/v3"
	"github.com/samber/oops"
)

const DefaultCleanupSchedule = "0 0 * * * *"

type ResetTokenPurger interface {
	PurgeResetTokens(ctx context.Context, cutoff time.Time) (int64, error)
}

// Scheduler periodically deletes reset tokens that expired or were used more
// than Retention ago.
type Scheduler struct {
	cron      *cron.Cron
	purger    ResetTokenPurger
	retention time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

func NewScheduler(purger ResetTokenPurger, retention time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		cron:      cron.New(cron.WithSeconds()),
		purger:    purger,
		retention: retention,
		logger:    logger,
		now:       time.Now,
	}
}

// Start registers the purge under schedule (six-field cron spec, seconds first)
// and starts the scheduler goroutine.
func (s *Scheduler) Start(schedule string) error {
	if schedule == "" {
		schedule = DefaultCleanupSchedule
	}
	if _, err := s.cron.AddFunc(schedule, s.runPurge); err != nil {
		return oops.Code("CLEANUP_SCHEDULE_INVALID").With("schedule", schedule).Wrap(err)
	}
	s.cron.Start()
	s.logger.Info("reset token cleanup scheduled", "schedule", schedule, "retention", s.retention)
	return nil
}

// Stop waits for a running purge to finish or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}

func (s *Scheduler) runPurge() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if _, err := s.PurgeOnce(ctx); err != nil {
		logging.LogError(ctx, s.logger, "reset token purge failed", err)
	}
}

func (s *Scheduler) PurgeOnce(ctx context.Context) (int64, error) {
	cutoff := s.now().Add(-s.retention)
	n, err := s.purger.PurgeResetTokens(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.InfoContext(ctx, "purged reset tokens", "count", n, "cutoff", cutoff)
	}
	return n, nil
}
