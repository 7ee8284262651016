package service

import (
	"alcyxob/gym-sessions/internal/authz"
	"alcyxob/gym-sessions/internal/domain"
	"alcyxob/gym-sessions/internal/repository"
	"context"
	"fmt"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// monthsOfJoinHistory is how many calendar months the admin summary reports.
const monthsOfJoinHistory = 6

// MemberLogStats is the per-member view of diet and workout activity.
type MemberLogStats struct {
	MemberID primitive.ObjectID `json:"memberId"`
	Diet     domain.LogSummary  `json:"diet"`
	Workout  domain.LogSummary  `json:"workout"`
}

// MemberActivity is one row of the admin activity report.
type MemberActivity struct {
	MemberID     primitive.ObjectID `json:"memberId"`
	Name         string             `json:"name"`
	Role         domain.Role        `json:"role"`
	DietCount    int64              `json:"dietCount"`
	WorkoutCount int64              `json:"workoutCount"`
	TotalLogs    int64              `json:"totalLogs"`
	LastLogAt    *time.Time         `json:"lastLogAt,omitempty"`
}

// TrainerLoad is how many members a trainer coaches.
type TrainerLoad struct {
	TrainerID    primitive.ObjectID `json:"trainerId"`
	Name         string             `json:"name"`
	TraineeCount int                `json:"traineeCount"`
}

// MonthlyJoined counts members created in one calendar month.
type MonthlyJoined struct {
	Year  int   `json:"year"`
	Month int   `json:"month"`
	Count int64 `json:"count"`
}

// GymSummary is the admin dashboard.
type GymSummary struct {
	TotalMembers          int64                 `json:"totalMembers"`
	RecentJoined          int64                 `json:"recentJoined"` // Last seven days
	ThisMonthJoined       int64                 `json:"thisMonthJoined"`
	RoleDistribution      map[domain.Role]int64 `json:"roleDistribution"`
	MonthlyJoined         []MonthlyJoined       `json:"monthlyJoined"`
	Trainers              []TrainerLoad         `json:"trainers"`
	TotalDietLogs         int64                 `json:"totalDietLogs"`
	TotalWorkoutLogs      int64                 `json:"totalWorkoutLogs"`
	TotalSessions         int64                 `json:"totalSessions"`
	AvgDietPerMember      float64               `json:"avgDietPerMember"`
	AvgWorkoutPerMember   float64               `json:"avgWorkoutPerMember"`
	AvgSessionsPerPT      float64               `json:"avgSessionsPerPt"`
	PTConversionRate      float64               `json:"ptConversionRate"` // Percent of all members
	AvgTraineesPerTrainer float64               `json:"avgTraineesPerTrainer"`
}

// --- Service Interface ---
type StatsService interface {
	// MemberLogStats follows the read rule of the member.
	MemberLogStats(ctx context.Context, actor domain.Actor, memberID primitive.ObjectID) (*MemberLogStats, error)
	// Summary, MemberActivity and TrainerLoads are admin-only.
	Summary(ctx context.Context, actor domain.Actor) (*GymSummary, error)
	MemberActivity(ctx context.Context, actor domain.Actor) ([]MemberActivity, error)
	TrainerLoads(ctx context.Context, actor domain.Actor) ([]TrainerLoad, error)
}

// --- Service Implementation ---

type statsService struct {
	members  repository.MemberRepository
	logs     repository.ActivityLogRepository
	sessions repository.SessionRecordRepository
	authz    *authz.Engine
	now      func() time.Time
}

func NewStatsService(repos repository.Set, engine *authz.Engine) StatsService {
	return &statsService{
		members:  repos.Members,
		logs:     repos.Logs,
		sessions: repos.Sessions,
		authz:    engine,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func emptySummary(memberID primitive.ObjectID) domain.LogSummary {
	return domain.LogSummary{MemberID: memberID, MediaCounts: map[string]int64{}}
}

func (s *statsService) MemberLogStats(ctx context.Context, actor domain.Actor, memberID primitive.ObjectID) (*MemberLogStats, error) {
	if _, err := s.authz.Require(ctx, actor, memberID, domain.IntentRead); err != nil {
		return nil, err
	}

	out := &MemberLogStats{MemberID: memberID, Diet: emptySummary(memberID), Workout: emptySummary(memberID)}
	for kind, dst := range map[domain.LogKind]*domain.LogSummary{domain.LogDiet: &out.Diet, domain.LogWorkout: &out.Workout} {
		summaries, err := s.logs.Summarize(ctx, kind, &memberID)
		if err != nil {
			return nil, fmt.Errorf("summarize %s logs: %w", kind, err)
		}
		for _, sum := range summaries {
			dst.Merge(sum)
		}
	}
	return out, nil
}

// logTotals summarizes one kind across every member, keyed by member.
func (s *statsService) logTotals(ctx context.Context, kind domain.LogKind) (map[primitive.ObjectID]domain.LogSummary, int64, error) {
	summaries, err := s.logs.Summarize(ctx, kind, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("summarize %s logs: %w", kind, err)
	}
	byMember := make(map[primitive.ObjectID]domain.LogSummary, len(summaries))
	var total int64
	for _, sum := range summaries {
		byMember[sum.MemberID] = sum
		total += sum.Count
	}
	return byMember, total, nil
}

func (s *statsService) MemberActivity(ctx context.Context, actor domain.Actor) ([]MemberActivity, error) {
	if err := s.authz.RequireAdmin(actor, actor.ID); err != nil {
		return nil, err
	}
	members, err := s.members.List(ctx, nil)
	if err != nil {
		return nil, err
	}
	diet, _, err := s.logTotals(ctx, domain.LogDiet)
	if err != nil {
		return nil, err
	}
	workout, _, err := s.logTotals(ctx, domain.LogWorkout)
	if err != nil {
		return nil, err
	}

	rows := make([]MemberActivity, 0, len(members))
	for _, m := range members {
		combined := emptySummary(m.ID)
		combined.Merge(diet[m.ID])
		combined.Merge(workout[m.ID])
		rows = append(rows, MemberActivity{
			MemberID:     m.ID,
			Name:         m.Name,
			Role:         m.Role,
			DietCount:    diet[m.ID].Count,
			WorkoutCount: workout[m.ID].Count,
			TotalLogs:    combined.Count,
			LastLogAt:    combined.LastCreatedAt,
		})
	}
	return rows, nil
}

func (s *statsService) TrainerLoads(ctx context.Context, actor domain.Actor) ([]TrainerLoad, error) {
	if err := s.authz.RequireAdmin(actor, actor.ID); err != nil {
		return nil, err
	}
	members, err := s.members.List(ctx, nil)
	if err != nil {
		return nil, err
	}
	return trainerLoads(members), nil
}

// trainerLoads counts trainees per trainer-role member, busiest first.
func trainerLoads(members []domain.Member) []TrainerLoad {
	counts := make(map[primitive.ObjectID]int)
	for _, m := range members {
		if m.TrainerID != nil {
			counts[*m.TrainerID]++
		}
	}
	loads := []TrainerLoad{}
	for _, m := range members {
		if m.Role == domain.RoleTrainer {
			loads = append(loads, TrainerLoad{TrainerID: m.ID, Name: m.Name, TraineeCount: counts[m.ID]})
		}
	}
	sort.SliceStable(loads, func(i, j int) bool { return loads[i].TraineeCount > loads[j].TraineeCount })
	return loads
}

func ratio(n, d int64) float64 {
	if d == 0 {
		return 0
	}
	return float64(n) / float64(d)
}

func (s *statsService) Summary(ctx context.Context, actor domain.Actor) (out *GymSummary, err error) {
	ctx, span := tracer.Start(ctx, "stats.summary", trace.WithAttributes(
		attribute.String("actor.id", actor.ID.Hex()),
	))
	defer func() { endSpan(span, err) }()

	if err := s.authz.RequireAdmin(actor, actor.ID); err != nil {
		return nil, err
	}

	// 1. Directory
	members, err := s.members.List(ctx, nil)
	if err != nil {
		return nil, err
	}
	now := s.now()
	thisMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	weekAgo := now.AddDate(0, 0, -7)

	out = &GymSummary{
		TotalMembers:     int64(len(members)),
		RoleDistribution: map[domain.Role]int64{domain.RoleOT: 0, domain.RolePT: 0, domain.RoleTrainer: 0, domain.RoleAdmin: 0},
		Trainers:         trainerLoads(members),
	}
	months := make([]MonthlyJoined, monthsOfJoinHistory)
	for i := range months {
		start := thisMonth.AddDate(0, i-monthsOfJoinHistory+1, 0)
		months[i] = MonthlyJoined{Year: start.Year(), Month: int(start.Month())}
	}
	var assigned int64
	for _, m := range members {
		out.RoleDistribution[m.Role]++
		if m.TrainerID != nil {
			assigned++
		}
		if m.CreatedAt.After(weekAgo) {
			out.RecentJoined++
		}
		if !m.CreatedAt.Before(thisMonth) {
			out.ThisMonthJoined++
		}
		for i := range months {
			if m.CreatedAt.Year() == months[i].Year && int(m.CreatedAt.Month()) == months[i].Month {
				months[i].Count++
			}
		}
	}
	out.MonthlyJoined = months

	// 2. Activity
	if _, out.TotalDietLogs, err = s.logTotals(ctx, domain.LogDiet); err != nil {
		return nil, err
	}
	if _, out.TotalWorkoutLogs, err = s.logTotals(ctx, domain.LogWorkout); err != nil {
		return nil, err
	}
	if out.TotalSessions, err = s.sessions.Count(ctx); err != nil {
		return nil, fmt.Errorf("count sessions: %w", err)
	}

	// 3. Ratios
	pt := out.RoleDistribution[domain.RolePT]
	out.AvgDietPerMember = ratio(out.TotalDietLogs, out.TotalMembers)
	out.AvgWorkoutPerMember = ratio(out.TotalWorkoutLogs, out.TotalMembers)
	out.AvgSessionsPerPT = ratio(out.TotalSessions, pt)
	out.PTConversionRate = ratio(pt*100, out.TotalMembers)
	out.AvgTraineesPerTrainer = ratio(assigned, out.RoleDistribution[domain.RoleTrainer])
	return out, nil
}
