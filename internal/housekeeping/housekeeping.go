// Package housekeeping runs periodic maintenance: pruning the sent
// notification log, reconciling reminder registrations and dropping idle
// rate limiter entries.
package housekeeping

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukerupert/smartassist/internal/reminder"

	"github.com/go-co-op/gocron"
)

const (
	cleanupAt      = "03:00"
	limiterIdle    = 10 * time.Minute
	reconcileLimit = 5 * time.Minute
)

type SentCleaner interface {
	CleanupSent(ctx context.Context, before time.Time) (int64, error)
}

type UserLister interface {
	ListUserIDs(ctx context.Context) ([]string, error)
}

type Reconciler interface {
	Reconcile(ctx context.Context, userID string) (reminder.ReconcileReport, error)
}

// Pruner drops state not touched within idle.
type Pruner interface {
	Cleanup(idle time.Duration)
}

type Config struct {
	SentRetention     time.Duration
	ReconcileInterval time.Duration
	Location          *time.Location
}

type Scheduler struct {
	scheduler  *gocron.Scheduler
	cfg        Config
	sent       SentCleaner
	users      UserLister
	reconciler Reconciler
	pruner     Pruner
	now        func() time.Time
	logger     *slog.Logger
}

// New creates the scheduler. pruner may be nil.
func New(cfg Config, sent SentCleaner, users UserLister, reconciler Reconciler, pruner Pruner, logger *slog.Logger) *Scheduler {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	return &Scheduler{
		scheduler:  gocron.NewScheduler(cfg.Location),
		cfg:        cfg,
		sent:       sent,
		users:      users,
		reconciler: reconciler,
		pruner:     pruner,
		now:        time.Now,
		logger:     logger,
	}
}

func (s *Scheduler) Start() error {
	if _, err := s.scheduler.Every(1).Day().At(cleanupAt).Do(func() {
		if _, err := s.CleanupSent(context.Background()); err != nil {
			s.logger.Error("cleanup sent notifications", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("schedule sent cleanup: %w", err)
	}

	// Runs once at startup, then every interval.
	if _, err := s.scheduler.Every(s.cfg.ReconcileInterval).SingletonMode().Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), reconcileLimit)
		defer cancel()
		if err := s.ReconcileAll(ctx); err != nil {
			s.logger.Error("reconcile reminders", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("schedule reconcile: %w", err)
	}

	if s.pruner != nil {
		if _, err := s.scheduler.Every(limiterIdle).Do(func() {
			s.pruner.Cleanup(limiterIdle)
		}); err != nil {
			return fmt.Errorf("schedule limiter cleanup: %w", err)
		}
	}

	s.scheduler.StartAsync()
	s.logger.Info("housekeeping started", "reconcile_interval", s.cfg.ReconcileInterval, "sent_retention", s.cfg.SentRetention)
	return nil
}

func (s *Scheduler) Stop() {
	s.scheduler.Stop()
	s.logger.Info("housekeeping stopped")
}

// CleanupSent deletes sent notification records older than the retention.
func (s *Scheduler) CleanupSent(ctx context.Context) (int64, error) {
	n, err := s.sent.CleanupSent(ctx, s.now().Add(-s.cfg.SentRetention))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info("pruned sent notifications", "count", n)
	}
	return n, nil
}

// ReconcileAll runs the reconciliation sweep for every user. A failing user
// does not stop the sweep; all failures are returned together.
func (s *Scheduler) ReconcileAll(ctx context.Context) error {
	ids, err := s.users.ListUserIDs(ctx)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}

	var errs []error
	for _, id := range ids {
		report, err := s.reconciler.Reconcile(ctx, id)
		if err != nil {
			errs = append(errs, fmt.Errorf("user %s: %w", id, err))
			continue
		}
		if report != (reminder.ReconcileReport{}) {
			s.logger.Info("reconciled reminders", "user_id", id,
				"reregistered", report.Reregistered, "cleared", report.Cleared, "orphans", report.Orphans)
		}
	}
	return errors.Join(errs...)
}
