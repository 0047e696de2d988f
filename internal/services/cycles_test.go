package services

import (
	"context"
	"testing"
	"time"

	"evidence-portal/internal/models"
	"evidence-portal/internal/repositories"
	"evidence-portal/internal/testdb"
	"evidence-portal/pkg/portalErrors"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newCycleService(t *testing.T) (*CycleService, *repositories.CycleRepository, *gorm.DB) {
	t.Helper()
	db := testdb.Open(t)
	repo := repositories.NewCycleRepository(db)
	return NewCycleService(repo), repo, db
}

func draftFor(org string, year int) models.NewCycle {
	return models.NewCycle{
		OrgID:     org,
		Year:      year,
		Name:      "Self assessment",
		StartDate: time.Date(year, 2, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(year, 11, 30, 0, 0, 0, 0, time.UTC),
	}
}

// allowSeveralActive drops the one-active-cycle index to reproduce data
// written before it existed.
func allowSeveralActive(t *testing.T, db *gorm.DB) {
	t.Helper()
	require.NoError(t, db.Migrator().DropIndex(&models.AssessmentCycle{}, "idx_cycle_one_active"))
}

// insertActive bypasses the service to reproduce legacy data with several
// active cycles.
func insertActive(t *testing.T, repo *repositories.CycleRepository, org string, year int) *models.AssessmentCycle {
	t.Helper()
	c := &models.AssessmentCycle{
		ID:        uuid.NewString(),
		OrgID:     org,
		Year:      year,
		Name:      "legacy",
		StartDate: time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(year, 12, 31, 0, 0, 0, 0, time.UTC),
		Status:    models.CycleActive,
		IsActive:  true,
	}
	require.NoError(t, repo.Create(context.Background(), c))
	return c
}

func activeIDs(t *testing.T, repo *repositories.CycleRepository, org string) []string {
	t.Helper()
	active, err := repo.ActiveByOrg(context.Background(), org)
	require.NoError(t, err)
	ids := make([]string, 0, len(active))
	for _, c := range active {
		ids = append(ids, c.ID)
	}
	return ids
}

func TestCreateIgnoresIsActive(t *testing.T) {
	svc, _, _ := newCycleService(t)
	draft := draftFor("org-1", 2026)
	draft.IsActive = true

	c, err := svc.Create(context.Background(), draft)
	require.NoError(t, err)
	assert.False(t, c.IsActive)
	assert.Equal(t, models.CycleDraft, c.Status)

	active, err := svc.GetActive(context.Background(), "org-1")
	require.NoError(t, err)
	assert.Nil(t, active)
}

func TestCreateValidates(t *testing.T) {
	svc, _, _ := newCycleService(t)
	draft := draftFor("org-1", 2026)
	draft.EndDate = draft.StartDate.AddDate(0, 0, -1)

	_, err := svc.Create(context.Background(), draft)
	assert.ErrorIs(t, err, portalErrors.ErrValidationFailed)
}

func TestActivateSwitchesActiveCycle(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := newCycleService(t)
	a, err := svc.Create(ctx, draftFor("org-1", 2025))
	require.NoError(t, err)
	b, err := svc.Create(ctx, draftFor("org-1", 2026))
	require.NoError(t, err)

	require.True(t, svc.Activate(ctx, "org-1", a.ID))
	assert.Equal(t, []string{a.ID}, activeIDs(t, repo, "org-1"))

	require.True(t, svc.Activate(ctx, "org-1", b.ID))
	assert.Equal(t, []string{b.ID}, activeIDs(t, repo, "org-1"))

	got, err := svc.GetActive(ctx, "org-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, b.ID, got.ID)
	assert.Equal(t, models.CycleActive, got.Status)

	// switching away clears the flag but keeps the lifecycle status
	old, err := repo.ByID(ctx, a.ID)
	require.NoError(t, err)
	assert.False(t, old.IsActive)
	assert.Equal(t, models.CycleActive, old.Status)
}

func TestActivateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := newCycleService(t)
	c, err := svc.Create(ctx, draftFor("org-1", 2026))
	require.NoError(t, err)

	assert.True(t, svc.Activate(ctx, "org-1", c.ID))
	assert.True(t, svc.Activate(ctx, "org-1", c.ID))
	assert.Equal(t, []string{c.ID}, activeIDs(t, repo, "org-1"))
}

func TestActivateLeavesOtherOrganizations(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := newCycleService(t)
	mine, err := svc.Create(ctx, draftFor("org-1", 2026))
	require.NoError(t, err)
	theirs, err := svc.Create(ctx, draftFor("org-2", 2026))
	require.NoError(t, err)

	require.True(t, svc.Activate(ctx, "org-2", theirs.ID))
	require.True(t, svc.Activate(ctx, "org-1", mine.ID))

	assert.Equal(t, []string{theirs.ID}, activeIDs(t, repo, "org-2"))
	assert.Equal(t, []string{mine.ID}, activeIDs(t, repo, "org-1"))
}

func TestActivateRejectsForeignOrMissingCycle(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := newCycleService(t)
	theirs, err := svc.Create(ctx, draftFor("org-2", 2026))
	require.NoError(t, err)

	assert.False(t, svc.Activate(ctx, "org-1", theirs.ID))
	assert.False(t, svc.Activate(ctx, "org-1", "missing"))
	assert.Empty(t, activeIDs(t, repo, "org-2"))
}

func TestActivateRepairsSeveralActiveCycles(t *testing.T) {
	ctx := context.Background()
	hook := test.NewGlobal()
	defer hook.Reset()

	svc, repo, db := newCycleService(t)
	allowSeveralActive(t, db)
	insertActive(t, repo, "org-1", 2023)
	insertActive(t, repo, "org-1", 2024)
	target, err := svc.Create(ctx, draftFor("org-1", 2026))
	require.NoError(t, err)

	require.True(t, svc.Activate(ctx, "org-1", target.ID))
	assert.Equal(t, []string{target.ID}, activeIDs(t, repo, "org-1"))

	warned := false
	for _, e := range hook.AllEntries() {
		if e.Level == log.WarnLevel {
			warned = true
		}
	}
	assert.True(t, warned)
}

func TestGetActiveWarnsOnDuplicates(t *testing.T) {
	ctx := context.Background()
	hook := test.NewGlobal()
	defer hook.Reset()

	svc, repo, db := newCycleService(t)
	allowSeveralActive(t, db)
	insertActive(t, repo, "org-1", 2024)
	newest := insertActive(t, repo, "org-1", 2025)

	got, err := svc.GetActive(ctx, "org-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, newest.ID, got.ID)

	last := hook.LastEntry()
	require.NotNil(t, last)
	assert.Equal(t, log.WarnLevel, last.Level)
}

func TestActivateFailureChangesNothing(t *testing.T) {
	ctx := context.Background()
	svc, _, db := newCycleService(t)
	c, err := svc.Create(ctx, draftFor("org-1", 2026))
	require.NoError(t, err)

	testdb.Break(t, db)
	assert.False(t, svc.Activate(ctx, "org-1", c.ID))
}

func TestUpdateIgnoresIsActive(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := newCycleService(t)
	c, err := svc.Create(ctx, draftFor("org-1", 2026))
	require.NoError(t, err)

	on := true
	name := "Renamed"
	got, err := svc.Update(ctx, c.ID, models.CyclePatch{Name: &name, IsActive: &on})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Name)
	assert.False(t, got.IsActive)
	assert.Empty(t, activeIDs(t, repo, "org-1"))
}

func TestUpdateValidation(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newCycleService(t)
	c, err := svc.Create(ctx, draftFor("org-1", 2026))
	require.NoError(t, err)

	active := models.CycleActive
	_, err = svc.Update(ctx, c.ID, models.CyclePatch{Status: &active})
	assert.ErrorIs(t, err, portalErrors.ErrValidationFailed)

	early := c.StartDate.AddDate(0, 0, -1)
	_, err = svc.Update(ctx, c.ID, models.CyclePatch{EndDate: &early})
	assert.ErrorIs(t, err, portalErrors.ErrValidationFailed)

	year := 1999
	_, err = svc.Update(ctx, c.ID, models.CyclePatch{Year: &year})
	assert.ErrorIs(t, err, portalErrors.ErrValidationFailed)

	empty, name := "", "ghost"
	_, err = svc.Update(ctx, c.ID, models.CyclePatch{Name: &empty})
	assert.ErrorIs(t, err, portalErrors.ErrValidationFailed)

	completed := models.CycleCompleted
	got, err := svc.Update(ctx, c.ID, models.CyclePatch{Status: &completed})
	require.NoError(t, err)
	assert.Equal(t, models.CycleCompleted, got.Status)

	_, err = svc.Update(ctx, "missing", models.CyclePatch{Name: &name})
	assert.ErrorIs(t, err, portalErrors.ErrNotFound)
}

func TestListCyclesNewestFirst(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newCycleService(t)
	for _, y := range []int{2024, 2026, 2025} {
		_, err := svc.Create(ctx, draftFor("org-1", y))
		require.NoError(t, err)
	}

	cycles, err := svc.ListCycles(ctx, "org-1")
	require.NoError(t, err)
	require.Len(t, cycles, 3)
	assert.Equal(t, 2026, cycles[0].Year)
	assert.Equal(t, 2024, cycles[2].Year)
}

func TestSecondActiveCycleIsRejectedByStore(t *testing.T) {
	_, repo, db := newCycleService(t)
	a := insertActive(t, repo, "org-1", 2025)

	// a concurrent activation that did not see a's flag cannot add a second
	err := db.Create(&models.AssessmentCycle{ID: uuid.NewString(), OrgID: "org-1", Name: "b", IsActive: true}).Error
	assert.Error(t, err)
	assert.Equal(t, []string{a.ID}, activeIDs(t, repo, "org-1"))
}
