package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/yaadak/yaadak/internal/domain/entities"
	"github.com/yaadak/yaadak/internal/infra/postgres"
)

var (
	ErrSettingsNotFound = errors.New("user settings not found")
	ErrSettingsCorrupt  = errors.New("corrupt user settings document")
)

// SettingsRepository stores per-user settings as a JSONB document keyed by
// user id. The whole document is replaced on every write, so the last
// writer wins and partial states never persist.
type SettingsRepository struct {
	db     postgres.DBTX
	logger *zap.Logger
}

// NewSettingsRepository creates a new SettingsRepository.
func NewSettingsRepository(db postgres.DBTX, logger *zap.Logger) *SettingsRepository {
	return &SettingsRepository{db: db, logger: logger}
}

// Get returns the settings document of a user. A missing row yields
// ErrSettingsNotFound; a document that no longer unmarshals yields
// ErrSettingsCorrupt so the service layer can reset it with the same
// defaults a first contact gets.
func (r *SettingsRepository) Get(ctx context.Context, userID int64) (*entities.UserSettings, error) {
	query := "SELECT settings FROM user_settings WHERE user_id = $1"

	var doc []byte
	if err := r.db.QueryRow(ctx, query, userID).Scan(&doc); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSettingsNotFound
		}
		return nil, fmt.Errorf("get settings: %w", err)
	}

	var s entities.UserSettings
	if err := json.Unmarshal(doc, &s); err != nil {
		r.logger.Warn("corrupt settings document",
			zap.Int64("user_id", userID), zap.Error(err))
		return nil, ErrSettingsCorrupt
	}

	s.UserID = userID
	return &s, nil
}

// Upsert writes the full settings document for a user, creating the row on
// first contact.
func (r *SettingsRepository) Upsert(ctx context.Context, s *entities.UserSettings) error {
	doc, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	query := `
		INSERT INTO user_settings (user_id, settings, created_at, updated_at)
		VALUES ($1, $2, NOW(), NOW())
		ON CONFLICT (user_id)
		DO UPDATE SET settings = EXCLUDED.settings, updated_at = NOW()
	`

	if _, err := r.db.Exec(ctx, query, s.UserID, doc); err != nil {
		return fmt.Errorf("upsert settings: %w", err)
	}

	return nil
}

// CountUsers returns how many users have a settings document.
func (r *SettingsRepository) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM user_settings").Scan(&n); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}
