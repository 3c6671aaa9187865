package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/yaadak/yaadak/internal/calendar"
	"github.com/yaadak/yaadak/internal/domain/entities"
	"github.com/yaadak/yaadak/internal/infra/postgres/repository"
)

// ReminderService owns the reminder lifecycle: creation (including the
// birthday pre-notice group), listing, edits and the user-driven status
// transitions wired to notification buttons.
type ReminderService struct {
	repo   ReminderRepository
	tx     Transactor
	txRepo TxRepoFactory
	logger *zap.Logger
	now    func() time.Time
}

// NewReminderService creates a new reminder service.
func NewReminderService(repo ReminderRepository, tx Transactor, txRepo TxRepoFactory, logger *zap.Logger) *ReminderService {
	return &ReminderService{
		repo:   repo,
		tx:     tx,
		txRepo: txRepo,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Create persists a draft. A yearly birthday becomes an atomic group of
// three rows: the birthday itself snapped to 08:00 local plus two
// pre-notices a week and three days ahead at 00:01 local.
func (s *ReminderService) Create(ctx context.Context, draft *entities.Reminder) ([]*entities.Reminder, error) {
	if draft.Category == entities.CategoryBirthday && draft.Repeat.Type == entities.RepeatYearly {
		return s.createBirthdayGroup(ctx, draft)
	}

	if _, err := s.repo.Create(ctx, draft); err != nil {
		return nil, err
	}
	return []*entities.Reminder{draft}, nil
}

func (s *ReminderService) createBirthdayGroup(ctx context.Context, draft *entities.Reminder) ([]*entities.Reminder, error) {
	offset := draft.Offset()
	nowLocal := calendar.UTCToLocal(s.now(), offset)

	anchor := calendar.UTCToLocal(draft.FireTimeUTC, offset)
	anchor = time.Date(anchor.Year(), anchor.Month(), anchor.Day(), 8, 0, 0, 0, anchor.Location())
	draft.FireTimeUTC = calendar.LocalToUTC(anchor, offset)

	var rows []*entities.Reminder
	err := s.tx.WithinTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		txRepo := s.txRepo(tx)

		baseID, err := txRepo.Create(ctx, draft)
		if err != nil {
			return err
		}
		rows = append(rows, draft)

		pre := []struct {
			category entities.Category
			daysBack int
		}{
			{entities.CategoryBirthdayPreWeek, 7},
			{entities.CategoryBirthdayPreThree, 3},
		}

		for _, p := range pre {
			day := anchor.AddDate(0, 0, -p.daysBack)
			local := time.Date(day.Year(), day.Month(), day.Day(), 0, 1, 0, 0, day.Location())
			// A birthday closer than the lead time gets its first
			// pre-notice next year, keeping all active rows future.
			for !local.After(nowLocal) {
				local = calendar.AddYears(local, 1, draft.Calendar)
			}

			row := &entities.Reminder{
				UserID:      draft.UserID,
				Category:    p.category,
				Content:     draft.Content,
				FireTimeUTC: calendar.LocalToUTC(local, offset),
				Timezone:    draft.Timezone,
				Repeat:      entities.Repeat{Type: entities.RepeatYearly},
				Calendar:    draft.Calendar,
				Status:      entities.StatusActive,
				Meta:        entities.Meta{BaseID: baseID, BirthdayOf: draft.Content},
			}
			if _, err := txRepo.Create(ctx, row); err != nil {
				return err
			}
			rows = append(rows, row)
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create birthday group: %w", err)
	}

	s.logger.Info("birthday group created",
		zap.Int64("user_id", draft.UserID),
		zap.Int64("base_id", draft.ID),
	)

	return rows, nil
}

// List returns the user's reminders with the given status.
func (s *ReminderService) List(ctx context.Context, userID int64, status entities.Status) ([]*entities.Reminder, error) {
	return s.repo.List(ctx, userID, status)
}

// GetByID returns one reminder.
func (s *ReminderService) GetByID(ctx context.Context, id int64) (*entities.Reminder, error) {
	return s.repo.GetByID(ctx, id)
}

// Stats returns per-user or global reminder counts.
func (s *ReminderService) Stats(ctx context.Context, userID int64) (*repository.Stats, error) {
	return s.repo.GetStats(ctx, userID)
}

// ApplyEdit rewrites the editable fields of a reminder. An edit that only
// moves the time keeps the rest of the row untouched.
func (s *ReminderService) ApplyEdit(ctx context.Context, id int64, category entities.Category, content string, local time.Time, repeat entities.Repeat) error {
	rem, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if category == rem.Category && content == rem.Content && repeat == rem.Repeat {
		return s.repo.UpdateFireTimeLocal(ctx, id, local)
	}
	return s.repo.UpdateFull(ctx, id, category, content, local, repeat)
}

// MarkTaken acknowledges a medicine occurrence. One-shot rows complete;
// recurring rows keep running (the scheduler already advanced them).
func (s *ReminderService) MarkTaken(ctx context.Context, id int64) error {
	rem, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if rem.Repeat.IsRecurring() {
		return nil
	}

	if err := s.repo.UpdateStatus(ctx, id, entities.StatusCompleted); err != nil && !errors.Is(err, repository.ErrReminderNotFound) {
		return err
	}
	return nil
}

// MarkPaid completes an installment and cancels its outstanding retries in
// one transaction. Clicking the button on a retry row resolves its base.
func (s *ReminderService) MarkPaid(ctx context.Context, id int64) error {
	return s.resolveInstallment(ctx, id, entities.StatusCompleted)
}

// Stop cancels a reminder; for installments the retry rows go with it.
func (s *ReminderService) Stop(ctx context.Context, id int64) error {
	rem, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	switch rem.Category {
	case entities.CategoryInstallment, entities.CategoryInstallmentRetry, entities.CategoryBill:
		return s.resolveInstallment(ctx, id, entities.StatusCancelled)
	}

	if err := s.repo.UpdateStatus(ctx, id, entities.StatusCancelled); err != nil && !errors.Is(err, repository.ErrReminderNotFound) {
		return err
	}
	return nil
}

func (s *ReminderService) resolveInstallment(ctx context.Context, id int64, terminal entities.Status) error {
	rem, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	baseID := rem.ID
	if rem.Category == entities.CategoryInstallmentRetry && rem.Meta.BaseID != 0 {
		baseID = rem.Meta.BaseID
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		txRepo := s.txRepo(tx)

		if err := txRepo.UpdateStatus(ctx, baseID, terminal); err != nil && !errors.Is(err, repository.ErrReminderNotFound) {
			return err
		}
		return txRepo.CancelInstallmentRetries(ctx, baseID)
	})
	if err != nil {
		return fmt.Errorf("resolve installment %d: %w", baseID, err)
	}

	s.logger.Info("installment resolved",
		zap.Int64("base_id", baseID),
		zap.String("status", string(terminal)),
	)
	return nil
}
