package service

import (
	"context"
	"testing"

	"rezoning/internal/database"
	"rezoning/internal/model"
	"rezoning/internal/queue"
	"rezoning/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *repository.Store {
	t.Helper()
	db, err := database.OpenSQLite(context.Background(), database.MemoryPath)
	require.NoError(t, err)
	store := repository.NewSQLiteStore(db)
	t.Cleanup(store.Close)
	return store
}

func TestQueueServiceStatsAndTooling(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	posts, err := queue.NewFromStore[model.Post]("publish_webhook", store)
	require.NoError(t, err)

	liveID, err := posts.Push(ctx, model.Post{ProjectID: "live"})
	require.NoError(t, err)
	_, err = posts.PushToDeadLetter(ctx, queue.Message[model.Post]{Payload: model.Post{ProjectID: "dead"}}, "410 gone")
	require.NoError(t, err)

	svc, err := NewQueueService(store, "summarize", "publish_webhook")
	require.NoError(t, err)
	assert.Equal(t, []string{"publish_webhook", "summarize"}, svc.Names())

	stats, err := svc.Stats(ctx, "publish_webhook")
	require.NoError(t, err)
	assert.Equal(t, QueueStats{Name: "publish_webhook", Depth: 1, DeadLetters: 1}, stats)

	letters, err := svc.ListDeadLetters(ctx, "publish_webhook", 10)
	require.NoError(t, err)
	require.Len(t, letters, 1)
	assert.JSONEq(t, `{"project_id":"dead","text":"","link":""}`, string(letters[0].Payload))
	assert.Equal(t, "410 gone", letters[0].ErrorText)

	require.NoError(t, svc.Remove(ctx, "publish_webhook", liveID))
	moved, err := svc.Redrive(ctx, "publish_webhook", 0)
	require.NoError(t, err)
	assert.Equal(t, 1, moved)

	msg, ok, err := posts.Pop(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "dead", msg.Payload.ProjectID)

	purged, err := svc.PurgeDeadLetters(ctx, "publish_webhook")
	require.NoError(t, err)
	assert.Zero(t, purged)
}

func TestQueueServiceUnknownQueue(t *testing.T) {
	ctx := context.Background()
	svc, err := NewQueueService(newTestStore(t), "summarize")
	require.NoError(t, err)

	_, err = svc.Stats(ctx, "nope")
	assert.ErrorIs(t, err, ErrUnknownQueue)
	_, err = svc.ListDeadLetters(ctx, "nope", 1)
	assert.ErrorIs(t, err, ErrUnknownQueue)
	_, err = svc.Redrive(ctx, "nope", 0)
	assert.ErrorIs(t, err, ErrUnknownQueue)
	_, err = svc.PurgeDeadLetters(ctx, "nope")
	assert.ErrorIs(t, err, ErrUnknownQueue)
	assert.ErrorIs(t, svc.Remove(ctx, "nope", 1), ErrUnknownQueue)
}

func TestProjectServiceEnqueue(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	q, err := queue.NewFromStore[model.Project]("summarize", store)
	require.NoError(t, err)

	svc := NewProjectService(q, store.Projects)
	project := model.Project{ID: "p-1", Name: "Elm", Link: "https://example.org"}

	res, err := svc.Enqueue(ctx, project)
	require.NoError(t, err)
	assert.True(t, res.Queued)
	assert.Positive(t, res.MessageID)

	again, err := svc.Enqueue(ctx, project)
	require.NoError(t, err)
	assert.False(t, again.Queued, "an unchanged project is not queued twice")
	assert.Zero(t, again.MessageID)

	project.State = "closed"
	changed, err := svc.Enqueue(ctx, project)
	require.NoError(t, err)
	assert.True(t, changed.Queued)
	assert.Greater(t, changed.MessageID, res.MessageID)

	for _, want := range []struct {
		id    int64
		state string
	}{{res.MessageID, ""}, {changed.MessageID, "closed"}} {
		msg, ok, err := q.Pop(ctx)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, want.id, msg.ID)
		assert.Equal(t, want.state, msg.Payload.State)
	}
	_, ok, err := q.Pop(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	stored, ok, err := store.Projects.Get(ctx, "p-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"id":"p-1","name":"Elm","permalink":"","state":"closed","description":"","link":"https://example.org"}`, string(stored.Payload))
}
