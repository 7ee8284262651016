package service

import (
	"alcyxob/gym-sessions/internal/domain"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// commentFixture is a PT member with one diet log written by their trainer.
type commentFixture struct {
	*testEnv
	comments CommentService
	logs     LogService
	notes    *recordingNotifier
	member   domain.Actor
	dietLog  *domain.ActivityLog
}

func newCommentFixture(t *testing.T) *commentFixture {
	t.Helper()
	env := newTestEnv(t, DefaultLedgerPolicy())
	notes := &recordingNotifier{}
	f := &commentFixture{
		testEnv:  env,
		comments: NewCommentService(env.repos, env.engine, notes),
		logs:     newLogService(env, nil),
		notes:    notes,
		member:   env.trainee(t, "Mina"),
	}
	env.register(t, f.member.ID, 3)
	entry, err := f.logs.Create(env.ctx, env.trainer, domain.LogDiet, f.member.ID, LogInput{Title: "Breakfast"})
	require.NoError(t, err)
	f.dietLog = entry
	return f
}

func TestComment_CreateAndList(t *testing.T) {
	f := newCommentFixture(t)

	first, err := f.comments.Create(f.ctx, f.trainer, f.dietLog.ID, "  More protein please ")
	require.NoError(t, err)
	assert.Equal(t, "More protein please", first.Content)
	assert.Equal(t, f.member.ID, first.MemberID)
	assert.Equal(t, f.trainer.ID, first.AuthorID)

	// The PT member may answer on their own log without notifying themself.
	_, err = f.comments.Create(f.ctx, f.member, f.dietLog.ID, "Will do")
	require.NoError(t, err)

	listed, err := f.comments.List(f.ctx, f.member, f.dietLog.ID)
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, "More protein please", listed[0].Content, "oldest first")
	assert.Equal(t, "Will do", listed[1].Content)

	sent := f.notes.all()
	require.Len(t, sent, 1)
	assert.Equal(t, f.member.ID, sent[0].MemberID)
	assert.Equal(t, "New comment on diet log: Breakfast", sent[0].Message)
}

func TestComment_CreateValidation(t *testing.T) {
	f := newCommentFixture(t)

	_, err := f.comments.Create(f.ctx, f.trainer, f.dietLog.ID, "   ")
	assert.ErrorIs(t, err, ErrEmptyComment)

	_, err = f.comments.Create(f.ctx, f.trainer, f.dietLog.ID, strings.Repeat("가", domain.MaxCommentLength+1))
	assert.ErrorIs(t, err, ErrCommentTooLong)

	// Multi-byte runes count once each.
	_, err = f.comments.Create(f.ctx, f.trainer, f.dietLog.ID, strings.Repeat("가", domain.MaxCommentLength))
	assert.NoError(t, err)

	_, err = f.comments.Create(f.ctx, f.trainer, primitive.NewObjectID(), "hello")
	assert.True(t, domain.IsNotFound(err), "got %v", err)

	workout, err := f.logs.Create(f.ctx, f.trainer, domain.LogWorkout, f.member.ID, LogInput{Title: "Legs"})
	require.NoError(t, err)
	_, err = f.comments.Create(f.ctx, f.trainer, workout.ID, "nice")
	assert.True(t, domain.IsNotFound(err), "workout logs take no comments")
}

func TestComment_AccessFollowsLogOwner(t *testing.T) {
	f := newCommentFixture(t)
	stranger := f.addMember(t, "Stranger", domain.RolePT, nil)
	otherCoach := f.addMember(t, "Other Coach", domain.RoleTrainer, nil)

	for _, actor := range []domain.Actor{stranger, otherCoach} {
		_, err := f.comments.Create(f.ctx, actor, f.dietLog.ID, "hi")
		assert.True(t, domain.IsAccessDenied(err), "%s create: got %v", actor.Role, err)
		_, err = f.comments.List(f.ctx, actor, f.dietLog.ID)
		assert.True(t, domain.IsAccessDenied(err), "%s list: got %v", actor.Role, err)
	}

	// Once the balance is gone the member is OT again and may only read.
	for i := 0; i < 3; i++ {
		_, err := f.ledger.Decrement(f.ctx, f.trainer, f.member.ID, domain.SessionRegular)
		require.NoError(t, err)
	}
	require.Equal(t, domain.RoleOT, f.role(t, f.member.ID))

	_, err := f.comments.Create(f.ctx, f.member, f.dietLog.ID, "hi")
	assert.True(t, domain.IsAccessDenied(err), "got %v", err)
	_, err = f.comments.List(f.ctx, f.member, f.dietLog.ID)
	assert.NoError(t, err)
}

func TestComment_Delete(t *testing.T) {
	f := newCommentFixture(t)
	otherCoach := f.addMember(t, "Other Coach", domain.RoleTrainer, nil)

	byMember, err := f.comments.Create(f.ctx, f.member, f.dietLog.ID, "Skipped lunch")
	require.NoError(t, err)
	byTrainer, err := f.comments.Create(f.ctx, f.trainer, f.dietLog.ID, "Don't")
	require.NoError(t, err)
	byAdmin, err := f.comments.Create(f.ctx, f.admin, f.dietLog.ID, "Noted")
	require.NoError(t, err)

	tests := []struct {
		name    string
		actor   domain.Actor
		comment *domain.LogComment
		allowed bool
	}{
		{"owner cannot delete the trainer's comment", f.member, byTrainer, false},
		{"unrelated trainer", otherCoach, byMember, false},
		{"wrong log id", f.trainer, byMember, false},
		{"assigned trainer deletes the member's comment", f.trainer, byMember, true},
		{"author deletes own comment", f.trainer, byTrainer, true},
		{"admin deletes anything", f.admin, byAdmin, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logID := f.dietLog.ID
			if tt.name == "wrong log id" {
				logID = primitive.NewObjectID()
			}
			err := f.comments.Delete(f.ctx, tt.actor, logID, tt.comment.ID)
			if tt.allowed {
				require.NoError(t, err)
				_, err = f.repos.Comments.GetByID(f.ctx, tt.comment.ID)
				assert.Error(t, err)
				return
			}
			assert.Error(t, err)
			_, err = f.repos.Comments.GetByID(f.ctx, tt.comment.ID)
			assert.NoError(t, err, "comment must survive a rejected delete")
		})
	}

	err = f.comments.Delete(f.ctx, f.admin, f.dietLog.ID, byAdmin.ID)
	assert.True(t, domain.IsNotFound(err), "got %v", err)
}

func TestComment_DeletedWithTheirLog(t *testing.T) {
	f := newCommentFixture(t)
	_, err := f.comments.Create(f.ctx, f.trainer, f.dietLog.ID, "one")
	require.NoError(t, err)
	_, err = f.comments.Create(f.ctx, f.member, f.dietLog.ID, "two")
	require.NoError(t, err)

	require.NoError(t, f.logs.Delete(f.ctx, f.trainer, domain.LogDiet, f.dietLog.ID))

	left, err := f.repos.Comments.ListByLogID(f.ctx, f.dietLog.ID)
	require.NoError(t, err)
	assert.Empty(t, left)

	_, err = f.comments.List(f.ctx, f.trainer, f.dietLog.ID)
	assert.True(t, domain.IsNotFound(err))
}
