package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/yaadak/yaadak/internal/domain/entities"
	"github.com/yaadak/yaadak/internal/infra/postgres/repository"
)

// SettingsService manages per-user settings and the onboarding flow.
type SettingsService struct {
	repo            SettingsRepository
	defaultLanguage string
	defaultTimezone string
	logger          *zap.Logger
}

// NewSettingsService creates a new settings service.
func NewSettingsService(repo SettingsRepository, defaultLanguage, defaultTimezone string, logger *zap.Logger) *SettingsService {
	return &SettingsService{
		repo:            repo,
		defaultLanguage: defaultLanguage,
		defaultTimezone: defaultTimezone,
		logger:          logger,
	}
}

// GetOrCreate returns the user's settings, creating a default document on
// first contact. languageCode is the Telegram client language, used as the
// initial guess until onboarding finishes.
func (s *SettingsService) GetOrCreate(ctx context.Context, userID int64, languageCode string) (*entities.UserSettings, error) {
	settings, err := s.repo.Get(ctx, userID)
	if err == nil {
		return settings, nil
	}
	corrupt := errors.Is(err, repository.ErrSettingsCorrupt)
	if !corrupt && !errors.Is(err, repository.ErrSettingsNotFound) {
		return nil, fmt.Errorf("get settings: %w", err)
	}

	lang := s.defaultLanguage
	if languageCode == "en" || languageCode == "fa" {
		lang = languageCode
	}

	// A corrupt document is replaced the same way a missing one is created,
	// so one bad row cannot lock a user out.
	settings = entities.DefaultSettings(userID, lang, s.defaultTimezone)
	if err := s.repo.Upsert(ctx, settings); err != nil {
		return nil, fmt.Errorf("create settings: %w", err)
	}

	if corrupt {
		s.logger.Warn("settings reset to defaults", zap.Int64("user_id", userID))
	} else {
		s.logger.Info("settings created", zap.Int64("user_id", userID), zap.String("language", lang))
	}
	return settings, nil
}

// SetLanguage stores the chosen interface language.
func (s *SettingsService) SetLanguage(ctx context.Context, userID int64, lang string) (*entities.UserSettings, error) {
	return s.update(ctx, userID, func(st *entities.UserSettings) {
		st.Language = lang
	})
}

// SetTimezone stores a validated UTC offset.
func (s *SettingsService) SetTimezone(ctx context.Context, userID int64, offset string) (*entities.UserSettings, error) {
	normalized, err := entities.NormalizeOffset(offset)
	if err != nil {
		return nil, err
	}
	return s.update(ctx, userID, func(st *entities.UserSettings) {
		st.Timezone = normalized
	})
}

// SetCalendar stores the user's calendar; it becomes the anchor calendar of
// every reminder created afterwards.
func (s *SettingsService) SetCalendar(ctx context.Context, userID int64, cal string) (*entities.UserSettings, error) {
	return s.update(ctx, userID, func(st *entities.UserSettings) {
		st.Calendar = cal
	})
}

// CompleteSetup marks onboarding as finished.
func (s *SettingsService) CompleteSetup(ctx context.Context, userID int64) (*entities.UserSettings, error) {
	return s.update(ctx, userID, func(st *entities.UserSettings) {
		st.SetupComplete = true
	})
}

// CountUsers returns the number of known users.
func (s *SettingsService) CountUsers(ctx context.Context) (int64, error) {
	return s.repo.CountUsers(ctx)
}

func (s *SettingsService) update(ctx context.Context, userID int64, apply func(*entities.UserSettings)) (*entities.UserSettings, error) {
	settings, err := s.GetOrCreate(ctx, userID, "")
	if err != nil {
		return nil, err
	}

	apply(settings)
	if err := s.repo.Upsert(ctx, settings); err != nil {
		return nil, fmt.Errorf("update settings: %w", err)
	}
	return settings, nil
}
