package taskdef

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"reportplane/pkg/errutil"
	"reportplane/services/schedule"
	"reportplane/services/testutil"
)

func newTestService(t *testing.T) (*Service, Repository) {
	t.Helper()

	db := testutil.NewTestDB(t, &TaskDefinition{})
	repo := NewRepository(db)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	return NewService(ServiceParams{Repository: repo, Node: node}), repo
}

func TestCreateFromIntent(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	def, err := svc.CreateFromIntent(ctx, CreateInput{
		Name:      "daily revenue",
		RawSQL:    "SELECT SUM(total) FROM orders",
		Recipient: "ops@example.com",
		Schedule:  schedule.Intent{Kind: schedule.Daily, TimeStr: "14:00"},
	})
	require.NoError(t, err)
	require.Equal(t, "0 14 * * *", def.CronExpr)
	require.True(t, def.IsActive)

	got, err := repo.GetByID(ctx, def.ID)
	require.NoError(t, err)
	require.Equal(t, "daily revenue", got.Name)
}

func TestCreateFromIntent_ValidationDoesNotPersist(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateFromIntent(ctx, CreateInput{
		Name:     "broken",
		RawSQL:   "SELECT 1",
		Schedule: schedule.Intent{Kind: schedule.Daily, TimeStr: "25:00"},
	})
	require.Error(t, err)
	require.Equal(t, errutil.StatusValidation, errutil.CodeOf(err))

	defs, err := repo.List(ctx)
	require.NoError(t, err)
	require.Empty(t, defs)

	_, err = svc.CreateFromIntent(ctx, CreateInput{
		Name:     "no query",
		Schedule: schedule.Intent{Kind: schedule.Every5Minutes},
	})
	require.Equal(t, errutil.StatusValidation, errutil.CodeOf(err))
}

func TestReschedule(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	def, err := svc.CreateFromIntent(ctx, CreateInput{
		Name:     "weekly digest",
		RawSQL:   "SELECT 1",
		Schedule: schedule.Intent{Kind: schedule.Weekly, TimeStr: "09:30", DayOfWeek: "po"},
	})
	require.NoError(t, err)
	require.Equal(t, "30 9 * * 1", def.CronExpr)

	updated, err := svc.Reschedule(ctx, def.ID, schedule.Intent{Kind: schedule.Monthly, TimeStr: "08:00", DayOfMonth: 1})
	require.NoError(t, err)
	require.Equal(t, "0 8 1 * *", updated.CronExpr)
}

func TestRepository_ListEnabled(t *testing.T) {
	_, repo := newTestService(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &TaskDefinition{ID: "1", Name: "a", CronExpr: "* * * * *", IsActive: true}))
	require.NoError(t, repo.Create(ctx, &TaskDefinition{ID: "2", Name: "b", CronExpr: "* * * * *", IsActive: true}))
	require.NoError(t, repo.SetActive(ctx, "2", false))

	enabled, err := repo.ListEnabled(ctx)
	require.NoError(t, err)
	require.Len(t, enabled, 1)
	require.Equal(t, "a", enabled[0].Name)

	require.NoError(t, repo.SetActive(ctx, "2", true))
	enabled, err = repo.ListEnabled(ctx)
	require.NoError(t, err)
	require.Len(t, enabled, 2)

	require.NoError(t, repo.Delete(ctx, "1"))
	require.ErrorIs(t, repo.Delete(ctx, "1"), gorm.ErrRecordNotFound)
}
