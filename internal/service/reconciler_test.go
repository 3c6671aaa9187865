package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yaadak/yaadak/internal/calendar"
	"github.com/yaadak/yaadak/internal/domain/entities"
)

func newTestReconciler(repo *fakeRepo, now time.Time) *Reconciler {
	r := NewReconciler(repo, zap.NewNop())
	r.now = func() time.Time { return now }
	return r
}

func TestReconcileCancelsOverdueOneShot(t *testing.T) {
	now := time.Date(2025, 6, 4, 10, 0, 0, 0, time.UTC)
	repo := newFakeRepo()
	rem := activeRow(repo, entities.CategoryGeneral, entities.NoRepeat(), now.AddDate(0, 0, -2))

	fixed, err := newTestReconciler(repo, now).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, fixed)
	assert.Equal(t, entities.StatusCancelled, repo.get(rem.ID).Status)
}

func TestReconcileIntervalSkipsMissedPeriods(t *testing.T) {
	// An hourly reminder last due 72 h ago resumes on its original grid,
	// exactly one period past now.
	base := time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)
	now := base.Add(72 * time.Hour)
	repo := newFakeRepo()
	rem := activeRow(repo, entities.CategoryGeneral,
		entities.Repeat{Type: entities.RepeatInterval, Value: 1, Unit: entities.UnitHours}, base)

	_, err := newTestReconciler(repo, now).Run(context.Background())
	require.NoError(t, err)

	got := repo.get(rem.ID)
	assert.Equal(t, entities.StatusActive, got.Status)
	assert.Equal(t, base.Add(73*time.Hour), got.FireTimeUTC)
}

func TestReconcileIntervalMidPeriod(t *testing.T) {
	// Now falling between grid points still lands on the next grid point.
	base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	now := base.Add(150 * time.Minute)
	repo := newFakeRepo()
	rem := activeRow(repo, entities.CategoryGeneral,
		entities.Repeat{Type: entities.RepeatInterval, Value: 1, Unit: entities.UnitHours}, base)

	_, err := newTestReconciler(repo, now).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, base.Add(3*time.Hour), repo.get(rem.ID).FireTimeUTC)
}

func TestReconcileDailySteps(t *testing.T) {
	now := time.Date(2025, 6, 10, 10, 0, 0, 0, time.UTC)
	repo := newFakeRepo()
	rem := activeRow(repo, entities.CategoryMedicine, entities.Repeat{Type: entities.RepeatDaily},
		time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC))

	_, err := newTestReconciler(repo, now).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2025-06-11 08:00", calendar.FormatTime(repo.get(rem.ID).FireTimeUTC))
}

func TestReconcileLeavesFutureRowsAlone(t *testing.T) {
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	repo := newFakeRepo()
	fire := now.Add(time.Hour)
	rem := activeRow(repo, entities.CategoryGeneral, entities.NoRepeat(), fire)

	fixed, err := newTestReconciler(repo, now).Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, fixed)
	assert.Equal(t, fire, repo.get(rem.ID).FireTimeUTC)
	assert.Equal(t, entities.StatusActive, repo.get(rem.ID).Status)
}

func TestReconcileRespectsRowTimezone(t *testing.T) {
	// A +03:30 daily row keeps its local wall-clock time after repair.
	now := time.Date(2025, 6, 10, 10, 0, 0, 0, time.UTC)
	repo := newFakeRepo()
	rem := repo.add(&entities.Reminder{
		UserID:      7,
		Category:    entities.CategoryMedicine,
		Content:     "x",
		FireTimeUTC: time.Date(2025, 6, 1, 4, 30, 0, 0, time.UTC), // 08:00 local
		Timezone:    "+03:30",
		Repeat:      entities.Repeat{Type: entities.RepeatDaily},
		Calendar:    calendar.Shamsi,
		Status:      entities.StatusActive,
	})

	_, err := newTestReconciler(repo, now).Run(context.Background())
	require.NoError(t, err)

	got := repo.get(rem.ID)
	assert.True(t, got.FireTimeUTC.After(now))
	local := calendar.UTCToLocal(got.FireTimeUTC, got.Offset())
	assert.Equal(t, 8, local.Hour())
	assert.Equal(t, 0, local.Minute())
}
