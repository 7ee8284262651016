package service

import (
	"alcyxob/gym-sessions/internal/domain"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type statsFixture struct {
	*testEnv
	stats  *statsService
	mina   domain.Actor // PT, trained by env.trainer
	joon   domain.Actor // OT, trained by env.trainer
	solo   domain.Actor // OT, no trainer
	coach2 domain.Actor
}

func newStatsFixture(t *testing.T) *statsFixture {
	t.Helper()
	env := newTestEnv(t, DefaultLedgerPolicy())
	f := &statsFixture{
		testEnv: env,
		stats:   NewStatsService(env.repos, env.engine).(*statsService),
		mina:    env.trainee(t, "Mina"),
		joon:    env.trainee(t, "Joon"),
		solo:    env.addMember(t, "Solo", domain.RoleOT, nil),
		coach2:  env.addMember(t, "Idle Coach", domain.RoleTrainer, nil),
	}
	env.register(t, f.mina.ID, 3)

	for _, entry := range []domain.ActivityLog{
		{Kind: domain.LogDiet, MemberID: f.mina.ID, AuthorID: env.trainer.ID, Title: "Breakfast"},
		{Kind: domain.LogDiet, MemberID: f.mina.ID, AuthorID: f.mina.ID, Title: "Lunch", MediaKey: "diet/lunch.jpg", MediaType: "image/jpeg"},
		{Kind: domain.LogWorkout, MemberID: f.mina.ID, AuthorID: env.trainer.ID, Title: "Legs"},
	} {
		_, err := env.repos.Logs.Create(env.ctx, &entry)
		require.NoError(t, err)
	}
	_, err := env.repos.Sessions.Create(env.ctx, &domain.SessionRecord{
		MemberID:        f.mina.ID,
		TrainerID:       env.trainer.ID,
		OccurredAt:      time.Now().UTC(),
		DurationMinutes: 50,
	})
	require.NoError(t, err)
	return f
}

func TestStats_MemberLogStats(t *testing.T) {
	f := newStatsFixture(t)

	stats, err := f.stats.MemberLogStats(f.ctx, f.mina, f.mina.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Diet.Count)
	assert.Equal(t, map[string]int64{"image/jpeg": 1, domain.NoMediaType: 1}, stats.Diet.MediaCounts)
	assert.NotNil(t, stats.Diet.LastCreatedAt)
	assert.Equal(t, int64(1), stats.Workout.Count)
	assert.Equal(t, map[string]int64{domain.NoMediaType: 1}, stats.Workout.MediaCounts)

	// No logs yet still yields zeroed summaries.
	empty, err := f.stats.MemberLogStats(f.ctx, f.trainer, f.joon.ID)
	require.NoError(t, err)
	assert.Equal(t, f.joon.ID, empty.Diet.MemberID)
	assert.Zero(t, empty.Diet.Count)
	assert.Nil(t, empty.Diet.LastCreatedAt)
	assert.NotNil(t, empty.Workout.MediaCounts)

	_, err = f.stats.MemberLogStats(f.ctx, f.coach2, f.mina.ID)
	assert.True(t, domain.IsAccessDenied(err), "got %v", err)
	_, err = f.stats.MemberLogStats(f.ctx, f.joon, f.mina.ID)
	assert.True(t, domain.IsAccessDenied(err), "got %v", err)
}

func TestStats_AdminOnlyReports(t *testing.T) {
	f := newStatsFixture(t)

	for _, actor := range []domain.Actor{f.trainer, f.mina} {
		_, err := f.stats.Summary(f.ctx, actor)
		assert.True(t, domain.IsAccessDenied(err), "summary as %s", actor.Role)
		_, err = f.stats.MemberActivity(f.ctx, actor)
		assert.True(t, domain.IsAccessDenied(err), "activity as %s", actor.Role)
		_, err = f.stats.TrainerLoads(f.ctx, actor)
		assert.True(t, domain.IsAccessDenied(err), "trainers as %s", actor.Role)
	}
}

func TestStats_Summary(t *testing.T) {
	f := newStatsFixture(t)

	summary, err := f.stats.Summary(f.ctx, f.admin)
	require.NoError(t, err)

	assert.Equal(t, int64(6), summary.TotalMembers)
	assert.Equal(t, map[domain.Role]int64{
		domain.RoleOT:      2,
		domain.RolePT:      1,
		domain.RoleTrainer: 2,
		domain.RoleAdmin:   1,
	}, summary.RoleDistribution)
	assert.Equal(t, int64(6), summary.RecentJoined)
	assert.Equal(t, int64(6), summary.ThisMonthJoined)

	assert.Equal(t, int64(2), summary.TotalDietLogs)
	assert.Equal(t, int64(1), summary.TotalWorkoutLogs)
	assert.Equal(t, int64(1), summary.TotalSessions)
	assert.InDelta(t, 2.0/6.0, summary.AvgDietPerMember, 1e-9)
	assert.InDelta(t, 1.0/6.0, summary.AvgWorkoutPerMember, 1e-9)
	assert.InDelta(t, 1.0, summary.AvgSessionsPerPT, 1e-9)
	assert.InDelta(t, 100.0/6.0, summary.PTConversionRate, 1e-9)
	assert.InDelta(t, 1.0, summary.AvgTraineesPerTrainer, 1e-9)

	require.Len(t, summary.Trainers, 2)
	assert.Equal(t, f.trainer.ID, summary.Trainers[0].TrainerID, "busiest first")
	assert.Equal(t, 2, summary.Trainers[0].TraineeCount)
	assert.Equal(t, 0, summary.Trainers[1].TraineeCount)

	require.Len(t, summary.MonthlyJoined, monthsOfJoinHistory)
	last := summary.MonthlyJoined[monthsOfJoinHistory-1]
	assert.Equal(t, int64(6), last.Count, "everyone joined this month")
}

func TestStats_SummaryMonthBuckets(t *testing.T) {
	f := newStatsFixture(t)
	joined := time.Now().UTC()
	// GIVEN the report is taken well after everyone joined
	f.stats.now = func() time.Time { return joined.AddDate(0, 0, 40) }

	summary, err := f.stats.Summary(f.ctx, f.admin)
	require.NoError(t, err)

	// THEN nobody is recent and the join month keeps its count
	assert.Zero(t, summary.RecentJoined)
	assert.Zero(t, summary.ThisMonthJoined)
	var total int64
	var found bool
	for _, m := range summary.MonthlyJoined {
		total += m.Count
		if m.Year == joined.Year() && m.Month == int(joined.Month()) {
			found = true
			assert.Equal(t, int64(6), m.Count)
		}
	}
	assert.True(t, found, "join month within the reported window")
	assert.Equal(t, int64(6), total)

	// Buckets run oldest to newest, one calendar month apart.
	for i := 1; i < len(summary.MonthlyJoined); i++ {
		prev, cur := summary.MonthlyJoined[i-1], summary.MonthlyJoined[i]
		assert.Equal(t, (prev.Year*12+prev.Month)+1, cur.Year*12+cur.Month)
	}
}

func TestStats_MemberActivityAndTrainerLoads(t *testing.T) {
	f := newStatsFixture(t)

	rows, err := f.stats.MemberActivity(f.ctx, f.admin)
	require.NoError(t, err)
	require.Len(t, rows, 6)
	byID := make(map[primitive.ObjectID]MemberActivity, len(rows))
	for _, r := range rows {
		byID[r.MemberID] = r
	}
	mina := byID[f.mina.ID]
	assert.Equal(t, "Mina", mina.Name)
	assert.Equal(t, domain.RolePT, mina.Role)
	assert.Equal(t, int64(2), mina.DietCount)
	assert.Equal(t, int64(1), mina.WorkoutCount)
	assert.Equal(t, int64(3), mina.TotalLogs)
	assert.NotNil(t, mina.LastLogAt)
	assert.Zero(t, byID[f.solo.ID].TotalLogs)
	assert.Nil(t, byID[f.solo.ID].LastLogAt)

	// Soft-deleted trainees stop counting toward their trainer.
	require.NoError(t, f.directory.Remove(f.ctx, f.admin, f.joon.ID))
	loads, err := f.stats.TrainerLoads(f.ctx, f.admin)
	require.NoError(t, err)
	require.Len(t, loads, 2)
	assert.Equal(t, f.trainer.ID, loads[0].TrainerID)
	assert.Equal(t, 1, loads[0].TraineeCount)
	assert.Equal(t, "Idle Coach", loads[1].Name)
}
