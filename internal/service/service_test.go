package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/yaadak/yaadak/internal/domain/entities"
	"github.com/yaadak/yaadak/internal/infra/postgres/repository"
)

// fakeRepo is an in-memory ReminderRepository for the service tests.
type fakeRepo struct {
	mu           sync.Mutex
	nextID       int64
	rows         map[int64]*entities.Reminder
	localUpdates int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{rows: make(map[int64]*entities.Reminder)}
}

func (f *fakeRepo) add(rem *entities.Reminder) *entities.Reminder {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	rem.ID = f.nextID
	cp := *rem
	f.rows[rem.ID] = &cp
	return rem
}

func (f *fakeRepo) get(id int64) *entities.Reminder {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *f.rows[id]
	return &cp
}

func (f *fakeRepo) Create(_ context.Context, rem *entities.Reminder) (int64, error) {
	f.add(rem)
	return rem.ID, nil
}

func (f *fakeRepo) GetByID(_ context.Context, id int64) (*entities.Reminder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rows[id]
	if !ok {
		return nil, repository.ErrReminderNotFound
	}
	cp := *r
	return &cp, nil
}

func (f *fakeRepo) List(_ context.Context, userID int64, status entities.Status) ([]*entities.Reminder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*entities.Reminder
	for _, r := range f.rows {
		if r.UserID == userID && r.Status == status {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeRepo) Due(_ context.Context, nowUTC time.Time, limit int) ([]*entities.Reminder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*entities.Reminder
	for _, r := range f.rows {
		if r.Status == entities.StatusActive && !r.FireTimeUTC.After(nowUTC) {
			cp := *r
			out = append(out, &cp)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (f *fakeRepo) ListOverdue(ctx context.Context, nowUTC time.Time) ([]*entities.Reminder, error) {
	return f.Due(ctx, nowUTC, 1<<30)
}

func (f *fakeRepo) UpdateStatus(_ context.Context, id int64, status entities.Status) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rows[id]
	if !ok || r.Status != entities.StatusActive {
		return repository.ErrReminderNotFound
	}
	r.Status = status
	return nil
}

func (f *fakeRepo) UpdateFireTimeUTC(_ context.Context, id int64, fireUTC time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rows[id]
	if !ok {
		return repository.ErrReminderNotFound
	}
	r.FireTimeUTC = fireUTC
	return nil
}

func (f *fakeRepo) UpdateFireTimeLocal(_ context.Context, id int64, local time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rows[id]
	if !ok {
		return repository.ErrReminderNotFound
	}
	r.FireTimeUTC = local.Add(-mustOffset(r.Timezone))
	f.localUpdates++
	return nil
}

func (f *fakeRepo) UpdateFull(_ context.Context, id int64, category entities.Category, content string, local time.Time, repeat entities.Repeat) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rows[id]
	if !ok {
		return repository.ErrReminderNotFound
	}
	utc := local.Add(-mustOffset(r.Timezone))
	r.Category = category
	r.Content = content
	r.FireTimeUTC = utc
	r.Repeat = repeat
	return nil
}

func (f *fakeRepo) CleanupOld(_ context.Context, nowUTC time.Time, daysOld int) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cutoff := nowUTC.AddDate(0, 0, -daysOld)
	var n int64
	for id, r := range f.rows {
		if r.Status != entities.StatusActive && r.FireTimeUTC.Before(cutoff) {
			delete(f.rows, id)
			n++
		}
	}
	return n, nil
}

func (f *fakeRepo) CountInstallmentRetries(_ context.Context, baseID int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.rows {
		if r.Category == entities.CategoryInstallmentRetry && r.Status == entities.StatusActive && r.Meta.BaseID == baseID {
			n++
		}
	}
	return n, nil
}

func (f *fakeRepo) CancelInstallmentRetries(_ context.Context, baseID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.Category == entities.CategoryInstallmentRetry && r.Status == entities.StatusActive && r.Meta.BaseID == baseID {
			r.Status = entities.StatusCancelled
		}
	}
	return nil
}

func (f *fakeRepo) GetStats(_ context.Context, userID int64) (*repository.Stats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := &repository.Stats{Categories: make(map[string]int64)}
	for _, r := range f.rows {
		if userID != 0 && r.UserID != userID {
			continue
		}
		s.Total++
		switch r.Status {
		case entities.StatusActive:
			s.Active++
		case entities.StatusCompleted:
			s.Completed++
		case entities.StatusCancelled:
			s.Cancelled++
		}
		s.Categories[string(r.Category)]++
	}
	return s, nil
}

func (f *fakeRepo) retriesOf(baseID int64) []*entities.Reminder {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*entities.Reminder
	for _, r := range f.rows {
		if r.Category == entities.CategoryInstallmentRetry && r.Meta.BaseID == baseID {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out
}

func mustOffset(tz string) time.Duration {
	sign := time.Duration(1)
	if len(tz) == 6 && tz[0] == '-' {
		sign = -1
	}
	if len(tz) != 6 {
		return 0
	}
	h := time.Duration(tz[1]-'0')*10 + time.Duration(tz[2]-'0')
	m := time.Duration(tz[4]-'0')*10 + time.Duration(tz[5]-'0')
	return sign * (h*time.Hour + m*time.Minute)
}

// fakeSettings serves fixed settings for every user.
type fakeSettings struct {
	lang string
}

func (f *fakeSettings) Get(_ context.Context, userID int64) (*entities.UserSettings, error) {
	if f.lang == "" {
		return nil, repository.ErrSettingsNotFound
	}
	return &entities.UserSettings{UserID: userID, Language: f.lang, Timezone: "+00:00", Calendar: "gregorian"}, nil
}

func (f *fakeSettings) Upsert(context.Context, *entities.UserSettings) error { return nil }

func (f *fakeSettings) CountUsers(context.Context) (int64, error) { return 1, nil }

// fakeNotifier records sends and can fail on demand.
type fakeNotifier struct {
	mu   sync.Mutex
	sent []int64
	err  error
}

func (f *fakeNotifier) Send(_ context.Context, _ int64, rem *entities.Reminder, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, rem.ID)
	return nil
}

var errTransport = errors.New("transport down")

// fakeTx runs the function without a real transaction.
type fakeTx struct{}

func (fakeTx) WithinTx(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	return fn(ctx, nil)
}
