package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/yaadak/yaadak/internal/calendar"
	"github.com/yaadak/yaadak/internal/config"
	"github.com/yaadak/yaadak/internal/domain/entities"
	"github.com/yaadak/yaadak/internal/notify"
)

// maxAdvanceSteps bounds the catch-up loop for a row that fell far behind;
// beyond it the row is cancelled rather than spun on.
const maxAdvanceSteps = 1000

// maxInstallmentRetries caps the daily nag chain spawned by an unpaid
// installment.
const maxInstallmentRetries = 3

// Scheduler is the polling fire loop: every tick it pulls a batch of due
// rows, dispatches them with bounded concurrency and transitions each row
// so it is never due twice.
type Scheduler struct {
	repo         ReminderRepository
	settingsRepo SettingsRepository
	notifier     Notifier
	cfg          config.Scheduler
	defaultLang  string
	logger       *zap.Logger
	now          func() time.Time
}

// NewScheduler creates a new scheduler.
func NewScheduler(
	repo ReminderRepository,
	settingsRepo SettingsRepository,
	notifier Notifier,
	cfg config.Scheduler,
	defaultLang string,
	logger *zap.Logger,
) *Scheduler {
	return &Scheduler{
		repo:         repo,
		settingsRepo: settingsRepo,
		notifier:     notifier,
		cfg:          cfg,
		defaultLang:  defaultLang,
		logger:       logger,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Start runs the tick and cleanup loops until the context is cancelled.
// In-flight dispatches get a short grace period on shutdown.
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("scheduler started",
		zap.Duration("tick", s.cfg.Tick()),
		zap.Int("batch_limit", s.cfg.BatchLimit),
		zap.Int("concurrency", s.cfg.Concurrency),
	)

	c := cron.New(cron.WithLocation(time.UTC))

	_, err := c.AddFunc(fmt.Sprintf("@every %ds", s.cfg.TickSeconds), func() {
		if err := s.Tick(ctx); err != nil {
			s.logger.Error("tick failed", zap.Error(err))
		}
	})
	if err != nil {
		s.logger.Error("failed to add tick job", zap.Error(err))
		return
	}

	_, err = c.AddFunc("@every 1h", func() {
		s.cleanup(ctx)
	})
	if err != nil {
		s.logger.Error("failed to add cleanup job", zap.Error(err))
		return
	}

	c.Start()

	<-ctx.Done()

	stopCtx := c.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(s.cfg.ShutdownGrace()):
		s.logger.Warn("shutdown grace expired, abandoning in-flight dispatches")
	}
	s.logger.Info("scheduler stopped")
}

// Tick processes one batch of due reminders.
func (s *Scheduler) Tick(ctx context.Context) error {
	now := s.now()

	due, err := s.repo.Due(ctx, now, s.cfg.BatchLimit)
	if err != nil {
		return fmt.Errorf("fetch due reminders: %w", err)
	}
	if len(due) == 0 {
		return nil
	}

	sem := make(chan struct{}, s.cfg.Concurrency)
	var wg sync.WaitGroup

	for _, rem := range due {
		wg.Add(1)
		sem <- struct{}{}

		go func(rem *entities.Reminder) {
			defer wg.Done()
			defer func() { <-sem }()

			if err := s.processReminder(ctx, rem, now); err != nil {
				s.logger.Error("failed to process reminder",
					zap.Int64("reminder_id", rem.ID),
					zap.Int64("user_id", rem.UserID),
					zap.Error(err))
			}
		}(rem)
	}

	wg.Wait()
	s.logger.Info("tick processed", zap.Int("due", len(due)))
	return nil
}

// processReminder dispatches one due row and commits its transition. A
// failed dispatch leaves the row due so the next tick retries it; a
// blocked user cancels the row for good.
func (s *Scheduler) processReminder(ctx context.Context, rem *entities.Reminder, now time.Time) error {
	lang := s.language(ctx, rem.UserID)

	if err := s.notifier.Send(ctx, rem.UserID, rem, lang); err != nil {
		if errors.Is(err, notify.ErrBlocked) {
			s.logger.Info("user blocked the bot, cancelling reminder",
				zap.Int64("reminder_id", rem.ID), zap.Int64("user_id", rem.UserID))
			return s.repo.UpdateStatus(ctx, rem.ID, entities.StatusCancelled)
		}
		return fmt.Errorf("dispatch: %w", err)
	}

	switch rem.Category {
	case entities.CategoryInstallment, entities.CategoryBill:
		return s.installmentFired(ctx, rem, now)
	case entities.CategoryInstallmentRetry:
		return s.retryFired(ctx, rem, now)
	}

	if !rem.Repeat.IsRecurring() {
		return s.repo.UpdateStatus(ctx, rem.ID, entities.StatusCompleted)
	}
	return s.advance(ctx, rem, now)
}

// advance moves a recurring row to its smallest strictly-future occurrence
// in the row's own calendar and timezone.
func (s *Scheduler) advance(ctx context.Context, rem *entities.Reminder, now time.Time) error {
	local := rem.LocalFireTime()
	nowLocal := calendar.UTCToLocal(now, rem.Offset())

	for i := 0; i < maxAdvanceSteps; i++ {
		next, ok := rem.Repeat.NextAfter(local, rem.Calendar)
		if !ok {
			return s.repo.UpdateStatus(ctx, rem.ID, entities.StatusCompleted)
		}
		local = next
		if local.After(nowLocal) {
			return s.repo.UpdateFireTimeUTC(ctx, rem.ID, calendar.LocalToUTC(local, rem.Offset()))
		}
	}

	s.logger.Error("advance did not converge, cancelling",
		zap.Int64("reminder_id", rem.ID))
	return s.repo.UpdateStatus(ctx, rem.ID, entities.StatusCancelled)
}

// installmentFired starts the daily nag chain for an unpaid installment
// and parks the base row on its next natural cycle. A chain already running
// for this base is not duplicated.
func (s *Scheduler) installmentFired(ctx context.Context, rem *entities.Reminder, now time.Time) error {
	live, err := s.repo.CountInstallmentRetries(ctx, rem.ID)
	if err != nil {
		return fmt.Errorf("count installment retries: %w", err)
	}
	if live == 0 {
		if err := s.createRetry(ctx, rem, rem.ID, 1); err != nil {
			return err
		}
	}

	if !rem.Repeat.IsRecurring() {
		return s.repo.UpdateStatus(ctx, rem.ID, entities.StatusCompleted)
	}
	return s.advance(ctx, rem, now)
}

// retryFired continues or ends the nag chain. Each retry row is one-shot
// and completes itself after dispatch.
func (s *Scheduler) retryFired(ctx context.Context, rem *entities.Reminder, _ time.Time) error {
	baseID := rem.Meta.BaseID
	if baseID != 0 && rem.Meta.Retry < maxInstallmentRetries {
		// The fired row still counts as live, so any second live row
		// means another chain link already exists.
		live, err := s.repo.CountInstallmentRetries(ctx, baseID)
		if err != nil {
			return fmt.Errorf("count installment retries: %w", err)
		}
		if live <= 1 {
			if err := s.createRetry(ctx, rem, baseID, rem.Meta.Retry+1); err != nil {
				return err
			}
		}
	}
	return s.repo.UpdateStatus(ctx, rem.ID, entities.StatusCompleted)
}

func (s *Scheduler) createRetry(ctx context.Context, fired *entities.Reminder, baseID int64, attempt int) error {
	local := fired.LocalFireTime().AddDate(0, 0, 1)

	retry := &entities.Reminder{
		UserID:      fired.UserID,
		Category:    entities.CategoryInstallmentRetry,
		Content:     fired.Content,
		FireTimeUTC: calendar.LocalToUTC(local, fired.Offset()),
		Timezone:    fired.Timezone,
		Repeat:      entities.NoRepeat(),
		Calendar:    fired.Calendar,
		Status:      entities.StatusActive,
		Meta:        entities.Meta{BaseID: baseID, Retry: attempt},
	}

	if _, err := s.repo.Create(ctx, retry); err != nil {
		return fmt.Errorf("create installment retry: %w", err)
	}

	s.logger.Info("installment retry scheduled",
		zap.Int64("base_id", baseID),
		zap.Int("attempt", attempt))
	return nil
}

func (s *Scheduler) cleanup(ctx context.Context) {
	deleted, err := s.repo.CleanupOld(ctx, s.now(), s.cfg.CleanupDaysOld)
	if err != nil {
		s.logger.Error("cleanup failed", zap.Error(err))
		return
	}
	if deleted > 0 {
		s.logger.Info("cleaned up old reminders", zap.Int64("deleted", deleted))
	}

	stats, err := s.repo.GetStats(ctx, 0)
	if err != nil {
		s.logger.Error("failed to collect stats", zap.Error(err))
		return
	}
	s.logger.Info("reminder totals",
		zap.Int64("active", stats.Active),
		zap.Int64("completed", stats.Completed),
		zap.Int64("cancelled", stats.Cancelled))
}

func (s *Scheduler) language(ctx context.Context, userID int64) string {
	settings, err := s.settingsRepo.Get(ctx, userID)
	if err != nil || settings.Language == "" {
		return s.defaultLang
	}
	return settings.Language
}
