package service

import (
	"alcyxob/gym-sessions/internal/domain"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStorage struct {
	mu      sync.Mutex
	deleted []string
	failURL bool
}

func (f *fakeStorage) GeneratePresignedUploadURL(_ context.Context, key, _ string, _ time.Duration) (string, error) {
	if f.failURL {
		return "", errors.New("signer down")
	}
	return "https://media.test/put/" + key, nil
}

func (f *fakeStorage) GeneratePresignedDownloadURL(_ context.Context, key string, _ time.Duration) (string, error) {
	if f.failURL {
		return "", errors.New("signer down")
	}
	return "https://media.test/get/" + key, nil
}

func (f *fakeStorage) DeleteObject(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, key)
	return nil
}

func newLogService(env *testEnv, files *fakeStorage) LogService {
	if files == nil {
		return NewLogService(env.repos, env.engine, nil, env.notifier, time.Minute)
	}
	return NewLogService(env.repos, env.engine, files, env.notifier, time.Minute)
}

func TestLog_SelfWriteRequiresPT(t *testing.T) {
	env := newTestEnv(t, DefaultLedgerPolicy())
	logs := newLogService(env, nil)
	member := env.trainee(t, "Mina")
	cal := 450

	// GIVEN an OT member
	_, err := logs.Create(env.ctx, member, domain.LogDiet, member.ID, LogInput{Title: "Lunch", Calories: &cal})
	// THEN writing their own log is denied
	assert.True(t, domain.IsAccessDenied(err), "got %v", err)

	// WHEN they become PT
	env.register(t, member.ID, 2)
	entry, err := logs.Create(env.ctx, member, domain.LogDiet, member.ID, LogInput{Title: "Lunch", Calories: &cal})
	require.NoError(t, err)
	assert.Equal(t, member.ID, entry.AuthorID)
	require.NotNil(t, entry.Calories)
	assert.Equal(t, 450, *entry.Calories)

	// The trainer may always write.
	_, err = logs.Create(env.ctx, env.trainer, domain.LogWorkout, member.ID, LogInput{Title: "Leg day", Calories: &cal})
	require.NoError(t, err)

	workouts, err := logs.List(env.ctx, member, domain.LogWorkout, member.ID)
	require.NoError(t, err)
	require.Len(t, workouts, 1)
	assert.Nil(t, workouts[0].Calories, "calories are diet-only")

	sent := env.notifier.all()
	require.Len(t, sent, 2)
	assert.Equal(t, "Diet log saved: Lunch", sent[0].Message)
	assert.Equal(t, "Workout log saved: Leg day", sent[1].Message)
}

func TestLog_UpdateAndDelete(t *testing.T) {
	env := newTestEnv(t, DefaultLedgerPolicy())
	files := &fakeStorage{}
	logs := newLogService(env, files)
	member := env.trainee(t, "Mina")

	entry, err := logs.Create(env.ctx, env.trainer, domain.LogWorkout, member.ID, LogInput{Title: "Push"})
	require.NoError(t, err)

	title := "Push and pull"
	updated, err := logs.Update(env.ctx, env.trainer, domain.LogWorkout, entry.ID, LogUpdate{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, title, updated.Title)

	blank := "  "
	_, err = logs.Update(env.ctx, env.trainer, domain.LogWorkout, entry.ID, LogUpdate{Title: &blank})
	assert.ErrorIs(t, err, ErrMissingTitle)

	// OT member can read but not edit.
	_, err = logs.Get(env.ctx, member, domain.LogWorkout, entry.ID)
	require.NoError(t, err)
	err = logs.Delete(env.ctx, member, domain.LogWorkout, entry.ID)
	assert.True(t, domain.IsAccessDenied(err))

	// Attach media, then delete the log: the object goes too.
	upload, err := logs.RequestMediaUpload(env.ctx, env.trainer, domain.LogWorkout, entry.ID, "image/png")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(upload.ObjectKey, "workout/"+member.ID.Hex()+"/"))
	assert.Equal(t, 60, upload.ExpiresIn)

	require.NoError(t, logs.Delete(env.ctx, env.trainer, domain.LogWorkout, entry.ID))
	assert.Equal(t, []string{upload.ObjectKey}, files.deleted)

	_, err = logs.Get(env.ctx, env.trainer, domain.LogWorkout, entry.ID)
	assert.True(t, domain.IsNotFound(err))

	sent := env.notifier.all()
	last := sent[len(sent)-1]
	assert.Equal(t, domain.SeverityWarning, last.Severity)
	assert.Equal(t, "Workout log deleted: Push and pull", last.Message)
}

func TestLog_Media(t *testing.T) {
	env := newTestEnv(t, DefaultLedgerPolicy())
	member := env.trainee(t, "Mina")

	noMedia := newLogService(env, nil)
	entry, err := noMedia.Create(env.ctx, env.trainer, domain.LogDiet, member.ID, LogInput{Title: "Breakfast"})
	require.NoError(t, err)
	_, err = noMedia.RequestMediaUpload(env.ctx, env.trainer, domain.LogDiet, entry.ID, "image/jpeg")
	assert.ErrorIs(t, err, ErrMediaUnavailable)

	files := &fakeStorage{}
	logs := newLogService(env, files)

	_, err = logs.MediaURL(env.ctx, member, domain.LogDiet, entry.ID)
	assert.ErrorIs(t, err, ErrNoMedia)
	_, err = logs.RequestMediaUpload(env.ctx, env.trainer, domain.LogDiet, entry.ID, "application/pdf")
	assert.ErrorIs(t, err, ErrUnsupportedMedia)

	first, err := logs.RequestMediaUpload(env.ctx, env.trainer, domain.LogDiet, entry.ID, "image/jpeg")
	require.NoError(t, err)
	second, err := logs.RequestMediaUpload(env.ctx, env.trainer, domain.LogDiet, entry.ID, "image/jpeg")
	require.NoError(t, err)
	assert.NotEqual(t, first.ObjectKey, second.ObjectKey)
	assert.Equal(t, []string{first.ObjectKey}, files.deleted, "replaced media is removed")

	got, err := logs.Get(env.ctx, member, domain.LogDiet, entry.ID)
	require.NoError(t, err)
	assert.True(t, got.HasMedia)

	url, err := logs.MediaURL(env.ctx, member, domain.LogDiet, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://media.test/get/"+second.ObjectKey, url)

	files.failURL = true
	_, err = logs.MediaURL(env.ctx, member, domain.LogDiet, entry.ID)
	assert.ErrorIs(t, err, ErrMediaURL)
}

func TestLog_Validation(t *testing.T) {
	env := newTestEnv(t, DefaultLedgerPolicy())
	logs := newLogService(env, nil)
	member := env.trainee(t, "Mina")
	negative := -10

	_, err := logs.Create(env.ctx, env.trainer, domain.LogKind("sleep"), member.ID, LogInput{Title: "x"})
	assert.True(t, domain.IsValidation(err))
	_, err = logs.Create(env.ctx, env.trainer, domain.LogDiet, member.ID, LogInput{Title: " "})
	assert.ErrorIs(t, err, ErrMissingTitle)
	_, err = logs.Create(env.ctx, env.trainer, domain.LogDiet, member.ID, LogInput{Title: "x", Calories: &negative})
	assert.ErrorIs(t, err, ErrNegativeCalories)
}
