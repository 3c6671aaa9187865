package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/yaadak/yaadak/internal/calendar"
	"github.com/yaadak/yaadak/internal/domain/entities"
)

// Reconciler repairs the schedule after downtime: every active row already
// past its fire time is either cancelled (one-shot) or moved to its next
// future occurrence before the scheduler starts ticking.
type Reconciler struct {
	repo   ReminderRepository
	logger *zap.Logger
	now    func() time.Time
}

// NewReconciler creates a new startup reconciler.
func NewReconciler(repo ReminderRepository, logger *zap.Logger) *Reconciler {
	return &Reconciler{
		repo:   repo,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Run performs one reconciliation pass and returns how many rows changed.
func (r *Reconciler) Run(ctx context.Context) (int, error) {
	now := r.now()

	overdue, err := r.repo.ListOverdue(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("list overdue: %w", err)
	}

	fixed := 0
	for _, rem := range overdue {
		if err := r.reconcile(ctx, rem, now); err != nil {
			r.logger.Error("failed to reconcile reminder",
				zap.Int64("reminder_id", rem.ID), zap.Error(err))
			continue
		}
		fixed++
	}

	r.logger.Info("startup reconciliation done",
		zap.Int("overdue", len(overdue)),
		zap.Int("fixed", fixed))
	return fixed, nil
}

func (r *Reconciler) reconcile(ctx context.Context, rem *entities.Reminder, now time.Time) error {
	if !rem.Repeat.IsRecurring() {
		return r.repo.UpdateStatus(ctx, rem.ID, entities.StatusCancelled)
	}

	next, ok := r.nextFuture(rem, now)
	if !ok {
		return r.repo.UpdateStatus(ctx, rem.ID, entities.StatusCancelled)
	}

	return r.repo.UpdateFireTimeUTC(ctx, rem.ID, next)
}

// nextFuture computes the smallest future occurrence. Interval patterns
// skip all missed periods in closed form; calendar patterns step.
func (r *Reconciler) nextFuture(rem *entities.Reminder, now time.Time) (time.Time, bool) {
	offset := rem.Offset()
	nowLocal := calendar.UTCToLocal(now, offset)
	local := rem.LocalFireTime()

	if rem.Repeat.Type == entities.RepeatInterval {
		period := rem.Repeat.Period()
		if period <= 0 {
			return time.Time{}, false
		}
		missed := int64(nowLocal.Sub(local) / period)
		local = local.Add(time.Duration(missed+1) * period)
		return calendar.LocalToUTC(local, offset), true
	}

	for i := 0; i < maxAdvanceSteps; i++ {
		next, ok := rem.Repeat.NextAfter(local, rem.Calendar)
		if !ok {
			return time.Time{}, false
		}
		local = next
		if local.After(nowLocal) {
			return calendar.LocalToUTC(local, offset), true
		}
	}

	return time.Time{}, false
}
