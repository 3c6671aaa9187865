package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/yaadak/yaadak/internal/calendar"
	"github.com/yaadak/yaadak/internal/domain/entities"
	"github.com/yaadak/yaadak/internal/infra/postgres"
)

var ErrReminderNotFound = errors.New("reminder not found")

// ReminderRepository provides access to reminder rows in the database.
// fire_time_utc is stored as the literal string "YYYY-MM-DD HH:MM"; in this
// format lexicographic order equals chronological order, so the due query is
// a plain string comparison over the partial index.
type ReminderRepository struct {
	db     postgres.DBTX
	logger *zap.Logger
}

// NewRemindersRepository creates a new ReminderRepository with the provided
// database handle (pool or transaction).
func NewRemindersRepository(db postgres.DBTX, logger *zap.Logger) *ReminderRepository {
	return &ReminderRepository{db: db, logger: logger}
}

const reminderColumns = "id, user_id, category, content, fire_time_utc, timezone, repeat, calendar, status, meta, created_at"

func metaParam(m entities.Meta) any {
	if m.IsZero() {
		return nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil
	}
	return b
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReminder(row rowScanner) (*entities.Reminder, error) {
	var (
		r        entities.Reminder
		category string
		fireTime string
		repeat   string
		cal      string
		status   string
		meta     []byte
	)

	if err := row.Scan(
		&r.ID,
		&r.UserID,
		&category,
		&r.Content,
		&fireTime,
		&r.Timezone,
		&repeat,
		&cal,
		&status,
		&meta,
		&r.CreatedAt,
	); err != nil {
		return nil, err
	}

	t, err := calendar.ParseTime(fireTime)
	if err != nil {
		return nil, fmt.Errorf("reminder %d: %w", r.ID, err)
	}
	r.FireTimeUTC = t
	r.Category = entities.ParseCategory(category)
	r.Repeat = entities.ParseRepeat(repeat)
	r.Calendar = calendar.ParseCalendar(cal)
	r.Status = entities.Status(status)

	if len(meta) > 0 {
		// Meta is best-effort metadata; a corrupt blob must not sink the row.
		_ = json.Unmarshal(meta, &r.Meta)
	}

	return &r, nil
}

// Create inserts a reminder row and returns its id. Content is sanitized
// and the fire time normalized to minute precision.
func (r *ReminderRepository) Create(ctx context.Context, rem *entities.Reminder) (int64, error) {
	query := `
		INSERT INTO reminders (user_id, category, content, fire_time_utc, timezone, repeat, calendar, status, meta, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		RETURNING id
	`

	status := rem.Status
	if status == "" {
		status = entities.StatusActive
	}

	var id int64
	err := r.db.QueryRow(ctx, query,
		rem.UserID,
		string(rem.Category),
		entities.SanitizeContent(rem.Content),
		calendar.FormatTime(rem.FireTimeUTC),
		rem.Timezone,
		rem.Repeat.Serialize(),
		string(rem.Calendar),
		string(status),
		metaParam(rem.Meta),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create reminder: %w", err)
	}

	rem.ID = id
	return id, nil
}

// GetByID retrieves a single reminder row.
func (r *ReminderRepository) GetByID(ctx context.Context, id int64) (*entities.Reminder, error) {
	query := "SELECT " + reminderColumns + " FROM reminders WHERE id = $1"

	rem, err := scanReminder(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrReminderNotFound
		}
		return nil, fmt.Errorf("get reminder: %w", err)
	}

	return rem, nil
}

// List returns a user's reminders with the given status, soonest first.
func (r *ReminderRepository) List(ctx context.Context, userID int64, status entities.Status) ([]*entities.Reminder, error) {
	query := "SELECT " + reminderColumns + ` FROM reminders
		WHERE user_id = $1 AND status = $2
		ORDER BY fire_time_utc ASC`

	rows, err := r.db.Query(ctx, query, userID, string(status))
	if err != nil {
		return nil, fmt.Errorf("list reminders: %w", err)
	}
	defer rows.Close()

	var out []*entities.Reminder
	for rows.Next() {
		rem, err := scanReminder(rows)
		if err != nil {
			r.logger.Warn("skipping malformed reminder row", zap.Error(err))
			continue
		}
		out = append(out, rem)
	}

	return out, rows.Err()
}

// Due returns up to limit active rows with fire_time_utc <= now, ascending.
// Rows that fail structural validation are skipped and logged, never
// surfaced to the scheduler.
func (r *ReminderRepository) Due(ctx context.Context, nowUTC time.Time, limit int) ([]*entities.Reminder, error) {
	query := "SELECT " + reminderColumns + ` FROM reminders
		WHERE status = 'active' AND fire_time_utc <= $1
		ORDER BY fire_time_utc ASC
		LIMIT $2`

	rows, err := r.db.Query(ctx, query, calendar.FormatTime(nowUTC), limit)
	if err != nil {
		return nil, fmt.Errorf("due reminders: %w", err)
	}
	defer rows.Close()

	var out []*entities.Reminder
	for rows.Next() {
		rem, err := scanReminder(rows)
		if err != nil {
			r.logger.Warn("skipping malformed due row", zap.Error(err))
			continue
		}
		out = append(out, rem)
	}

	return out, rows.Err()
}

// ListOverdue returns every active row already at or past its fire time.
// Used by the startup reconciler, so no limit applies.
func (r *ReminderRepository) ListOverdue(ctx context.Context, nowUTC time.Time) ([]*entities.Reminder, error) {
	query := "SELECT " + reminderColumns + ` FROM reminders
		WHERE status = 'active' AND fire_time_utc <= $1
		ORDER BY fire_time_utc ASC`

	rows, err := r.db.Query(ctx, query, calendar.FormatTime(nowUTC))
	if err != nil {
		return nil, fmt.Errorf("list overdue: %w", err)
	}
	defer rows.Close()

	var out []*entities.Reminder
	for rows.Next() {
		rem, err := scanReminder(rows)
		if err != nil {
			r.logger.Warn("skipping malformed overdue row", zap.Error(err))
			continue
		}
		out = append(out, rem)
	}

	return out, rows.Err()
}

// UpdateStatus moves an active row into a terminal status. Transitions are
// monotonic; a row already completed or cancelled is left untouched.
func (r *ReminderRepository) UpdateStatus(ctx context.Context, id int64, status entities.Status) error {
	if status != entities.StatusCompleted && status != entities.StatusCancelled {
		return fmt.Errorf("illegal status transition to %q", status)
	}

	query := "UPDATE reminders SET status = $1 WHERE id = $2 AND status = 'active'"

	tag, err := r.db.Exec(ctx, query, string(status), id)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrReminderNotFound
	}

	return nil
}

// UpdateFireTimeUTC rewrites the canonical schedule moment of a row.
func (r *ReminderRepository) UpdateFireTimeUTC(ctx context.Context, id int64, fireUTC time.Time) error {
	query := "UPDATE reminders SET fire_time_utc = $1 WHERE id = $2"

	tag, err := r.db.Exec(ctx, query, calendar.FormatTime(fireUTC), id)
	if err != nil {
		return fmt.Errorf("update fire time: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrReminderNotFound
	}

	return nil
}

// UpdateFireTimeLocal accepts a wall-clock moment in the row's own zone and
// converts it to UTC before writing.
func (r *ReminderRepository) UpdateFireTimeLocal(ctx context.Context, id int64, local time.Time) error {
	rem, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	return r.UpdateFireTimeUTC(ctx, id, calendar.LocalToUTC(local, rem.Offset()))
}

// UpdateFull rewrites the editable fields of a row. The fire time is given
// on the row's local wall clock; the timezone itself is immutable.
func (r *ReminderRepository) UpdateFull(ctx context.Context, id int64, category entities.Category, content string, local time.Time, repeat entities.Repeat) error {
	rem, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}

	query := `
		UPDATE reminders
		SET category = $1, content = $2, fire_time_utc = $3, repeat = $4
		WHERE id = $5
	`

	fireUTC := calendar.LocalToUTC(local, rem.Offset())
	tag, err := r.db.Exec(ctx, query,
		string(category),
		entities.SanitizeContent(content),
		calendar.FormatTime(fireUTC),
		repeat.Serialize(),
		id,
	)
	if err != nil {
		return fmt.Errorf("update reminder: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrReminderNotFound
	}

	return nil
}

// CleanupOld deletes terminal rows whose fire time is older than the cutoff.
func (r *ReminderRepository) CleanupOld(ctx context.Context, nowUTC time.Time, daysOld int) (int64, error) {
	cutoff := nowUTC.AddDate(0, 0, -daysOld)
	query := `
		DELETE FROM reminders
		WHERE status IN ('completed', 'cancelled') AND fire_time_utc < $1
	`

	tag, err := r.db.Exec(ctx, query, calendar.FormatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("cleanup old reminders: %w", err)
	}

	return tag.RowsAffected(), nil
}

// CountInstallmentRetries counts live retry rows spawned by an installment.
func (r *ReminderRepository) CountInstallmentRetries(ctx context.Context, baseID int64) (int, error) {
	query := `
		SELECT COUNT(*) FROM reminders
		WHERE category = 'installment_retry'
		  AND status = 'active'
		  AND (meta->>'base_id')::bigint = $1
	`

	var n int
	if err := r.db.QueryRow(ctx, query, baseID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count installment retries: %w", err)
	}

	return n, nil
}

// CancelInstallmentRetries cancels every live retry row of an installment.
func (r *ReminderRepository) CancelInstallmentRetries(ctx context.Context, baseID int64) error {
	query := `
		UPDATE reminders SET status = 'cancelled'
		WHERE category = 'installment_retry'
		  AND status = 'active'
		  AND (meta->>'base_id')::bigint = $1
	`

	if _, err := r.db.Exec(ctx, query, baseID); err != nil {
		return fmt.Errorf("cancel installment retries: %w", err)
	}

	return nil
}

// Stats summarizes reminder rows, globally or for one user.
type Stats struct {
	Total       int64
	Active      int64
	Completed   int64
	Cancelled   int64
	UniqueUsers int64
	Categories  map[string]int64
}

// GetStats returns counts by status plus a category histogram. With
// userID == 0 the stats are global.
func (r *ReminderRepository) GetStats(ctx context.Context, userID int64) (*Stats, error) {
	query := `
		SELECT
			COUNT(*) AS total,
			COUNT(*) FILTER (WHERE status = 'active') AS active,
			COUNT(*) FILTER (WHERE status = 'completed') AS completed,
			COUNT(*) FILTER (WHERE status = 'cancelled') AS cancelled,
			COUNT(DISTINCT user_id) AS unique_users
		FROM reminders
		WHERE ($1 = 0 OR user_id = $1)
	`

	var s Stats
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&s.Total, &s.Active, &s.Completed, &s.Cancelled, &s.UniqueUsers,
	)
	if err != nil {
		return nil, fmt.Errorf("get stats: %w", err)
	}

	histQuery := `
		SELECT category, COUNT(*) FROM reminders
		WHERE ($1 = 0 OR user_id = $1) AND status != 'cancelled'
		GROUP BY category
	`

	rows, err := r.db.Query(ctx, histQuery, userID)
	if err != nil {
		return nil, fmt.Errorf("get category stats: %w", err)
	}
	defer rows.Close()

	s.Categories = make(map[string]int64)
	for rows.Next() {
		var cat string
		var n int64
		if err := rows.Scan(&cat, &n); err != nil {
			return nil, fmt.Errorf("scan category stats: %w", err)
		}
		s.Categories[cat] = n
	}

	return &s, rows.Err()
}
