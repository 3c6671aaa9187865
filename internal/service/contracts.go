package service

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/yaadak/yaadak/internal/domain/entities"
	"github.com/yaadak/yaadak/internal/infra/postgres/repository"
)

// ReminderRepository is the persistence surface the services depend on.
type ReminderRepository interface {
	Create(ctx context.Context, rem *entities.Reminder) (int64, error)
	GetByID(ctx context.Context, id int64) (*entities.Reminder, error)
	List(ctx context.Context, userID int64, status entities.Status) ([]*entities.Reminder, error)
	Due(ctx context.Context, nowUTC time.Time, limit int) ([]*entities.Reminder, error)
	ListOverdue(ctx context.Context, nowUTC time.Time) ([]*entities.Reminder, error)
	UpdateStatus(ctx context.Context, id int64, status entities.Status) error
	UpdateFireTimeUTC(ctx context.Context, id int64, fireUTC time.Time) error
	UpdateFireTimeLocal(ctx context.Context, id int64, local time.Time) error
	UpdateFull(ctx context.Context, id int64, category entities.Category, content string, local time.Time, repeat entities.Repeat) error
	CleanupOld(ctx context.Context, nowUTC time.Time, daysOld int) (int64, error)
	CountInstallmentRetries(ctx context.Context, baseID int64) (int, error)
	CancelInstallmentRetries(ctx context.Context, baseID int64) error
	GetStats(ctx context.Context, userID int64) (*repository.Stats, error)
}

// SettingsRepository stores per-user settings documents.
type SettingsRepository interface {
	Get(ctx context.Context, userID int64) (*entities.UserSettings, error)
	Upsert(ctx context.Context, s *entities.UserSettings) error
	CountUsers(ctx context.Context) (int64, error)
}

// Notifier delivers a due reminder to its user.
type Notifier interface {
	Send(ctx context.Context, userID int64, rem *entities.Reminder, lang string) error
}

// Transactor runs a function inside one database transaction.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error
}

// TxRepoFactory binds a ReminderRepository to an open transaction so a
// group of writes commits or rolls back together.
type TxRepoFactory func(tx pgx.Tx) ReminderRepository
