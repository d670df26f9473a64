package queue

import (
	"context"
	"errors"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"rezoning/internal/database"
	"rezoning/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type job struct {
	ID   string `json:"id"`
	Body string `json:"body"`
}

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) *repository.Store {
	t.Helper()
	db, err := database.OpenSQLite(context.Background(), database.MemoryPath)
	require.NoError(t, err)
	store := repository.NewSQLiteStore(db)
	t.Cleanup(store.Close)
	return store
}

func newTestQueue[T any](t *testing.T, store *repository.Store, name string, opts ...Option[T]) *Queue[T] {
	t.Helper()
	opts = append([]Option[T]{WithClock[T](func() time.Time { return epoch })}, opts...)
	q, err := NewFromStore[T](name, store, opts...)
	require.NoError(t, err)
	return q
}

func TestNewRejectsEmptyName(t *testing.T) {
	store := newTestStore(t)
	_, err := NewFromStore[job]("", store)
	require.ErrorIs(t, err, ErrInvalidName)
}

func TestPushPopFIFO(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue[job](t, newTestStore(t), "summarize")

	for _, id := range []string{"m1", "m2", "m3"} {
		_, err := q.Push(ctx, job{ID: id})
		require.NoError(t, err)
	}

	for _, want := range []string{"m1", "m2", "m3"} {
		msg, ok, err := q.Pop(ctx)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, want, msg.Payload.ID)
		assert.Equal(t, "summarize", msg.QueueName)
		assert.Equal(t, 0, msg.Attempts)
		assert.Equal(t, epoch, msg.CreatedAt)
		assert.Nil(t, msg.LastAttempt)
	}

	_, ok, err := q.Pop(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPopEmptyQueue(t *testing.T) {
	q := newTestQueue[job](t, newTestStore(t), "empty")
	_, ok, err := q.Pop(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPushReturnsIncreasingIDs(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue[job](t, newTestStore(t), "ids")

	first, err := q.Push(ctx, job{ID: "a"})
	require.NoError(t, err)
	_, _, err = q.Pop(ctx)
	require.NoError(t, err)

	// Ids are never reused, even after the table is emptied.
	second, err := q.Push(ctx, job{ID: "b"})
	require.NoError(t, err)
	assert.Greater(t, second, first)
}

func TestQueuesAreIsolatedByName(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	a := newTestQueue[job](t, store, "a")
	b := newTestQueue[job](t, store, "b")

	_, err := a.Push(ctx, job{ID: "a1"})
	require.NoError(t, err)
	_, err = b.Push(ctx, job{ID: "b1"})
	require.NoError(t, err)
	_, err = a.Push(ctx, job{ID: "a2"})
	require.NoError(t, err)

	depthA, err := a.Depth(ctx)
	require.NoError(t, err)
	depthB, err := b.Depth(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), depthA)
	assert.Equal(t, int64(1), depthB)

	msg, ok, err := b.Pop(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "b1", msg.Payload.ID)

	_, ok, err = b.Pop(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	msg, ok, err = a.Pop(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "a1", msg.Payload.ID)
}

func TestPushAll(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	a := newTestQueue[job](t, store, "a")
	b := newTestQueue[job](t, store, "b")

	ids, err := PushAll(ctx, job{ID: "fan"}, a, b)
	require.NoError(t, err)
	require.Len(t, ids, 2)
	assert.Greater(t, ids[1], ids[0])

	for _, q := range []*Queue[job]{a, b} {
		msg, ok, err := q.Pop(ctx)
		require.NoError(t, err)
		require.True(t, ok, q.Name())
		assert.Equal(t, "fan", msg.Payload.ID)
		assert.Equal(t, epoch, msg.CreatedAt)
	}

	ids, err = PushAll[job](ctx, job{ID: "none"})
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestPushAllIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	good := newTestQueue[job](t, store, "good")
	broken := newTestQueue[job](t, store, "broken", WithCodec[job](CodecFuncs[job]{
		EncodeFunc: func(job) ([]byte, error) { return nil, errors.New("cannot encode") },
		DecodeFunc: JSONCodec[job]{}.Decode,
	}))

	_, err := PushAll(ctx, job{ID: "x"}, good, broken)
	require.ErrorIs(t, err, ErrSerialization)

	depth, err := good.Depth(ctx)
	require.NoError(t, err)
	assert.Zero(t, depth)

	other := newTestQueue[job](t, newTestStore(t), "elsewhere")
	_, err = PushAll(ctx, job{ID: "x"}, good, other)
	require.ErrorIs(t, err, ErrMixedStores)
}

func TestRetryGoesToTail(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue[job](t, newTestStore(t), "retry")

	_, err := q.Push(ctx, job{ID: "m1"})
	require.NoError(t, err)
	_, err = q.Push(ctx, job{ID: "m2"})
	require.NoError(t, err)

	msg, ok, err := q.Pop(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	retried := msg.Retry(q.Now())
	_, err = q.PushMessage(ctx, retried)
	require.NoError(t, err)

	next, _, err := q.Pop(ctx)
	require.NoError(t, err)
	assert.Equal(t, "m2", next.Payload.ID)

	last, ok, err := q.Pop(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "m1", last.Payload.ID)
	assert.Equal(t, 1, last.Attempts)
	assert.Equal(t, msg.CreatedAt, last.CreatedAt)
	require.NotNil(t, last.LastAttempt)
	assert.Equal(t, epoch, *last.LastAttempt)
}

func TestPushMessageStampsMissingCreatedAt(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue[job](t, newTestStore(t), "stamp")

	_, err := q.PushMessage(ctx, Message[job]{Payload: job{ID: "x"}, Attempts: 2})
	require.NoError(t, err)

	msg, ok, err := q.Pop(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, epoch, msg.CreatedAt)
	assert.Equal(t, 2, msg.Attempts)
}

func TestDeadLetterRoundTrip(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue[job](t, newTestStore(t), "summarize")

	_, err := q.Push(ctx, job{ID: "m1", Body: "hello"})
	require.NoError(t, err)
	msg, ok, err := q.Pop(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = q.PushToDeadLetter(ctx, msg, "boom")
	require.NoError(t, err)

	depth, err := q.Depth(ctx)
	require.NoError(t, err)
	assert.Zero(t, depth)
	dead, err := q.DeadLetterDepth(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), dead)

	dl, ok, err := q.PopFromDeadLetter(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, job{ID: "m1", Body: "hello"}, dl.Payload)
	assert.Equal(t, "boom", dl.ErrorText)
	assert.Equal(t, epoch, dl.MovedAt)
	assert.Equal(t, "summarize", dl.QueueName)

	_, ok, err = q.PopFromDeadLetter(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDeadLettersAreIsolatedByName(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	a := newTestQueue[job](t, store, "a")
	b := newTestQueue[job](t, store, "b")

	_, err := a.PushToDeadLetter(ctx, Message[job]{Payload: job{ID: "a1"}}, "failed")
	require.NoError(t, err)

	_, ok, err := b.PopFromDeadLetter(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	dl, ok, err := a.PopFromDeadLetter(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "a1", dl.Payload.ID)
}

func TestPopQuarantinesUndecodablePayload(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	raw := newTestQueue[[]byte](t, store, "summarize", WithCodec[[]byte](RawCodec{}))
	typed := newTestQueue[job](t, store, "summarize")

	_, err := raw.Push(ctx, []byte("not json"))
	require.NoError(t, err)
	_, err = typed.Push(ctx, job{ID: "good"})
	require.NoError(t, err)

	_, ok, err := typed.Pop(ctx)
	require.ErrorIs(t, err, ErrSerialization)
	assert.False(t, ok)

	// The poison message no longer blocks the head.
	msg, ok, err := typed.Pop(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "good", msg.Payload.ID)

	letters, err := raw.ListDeadLetters(ctx, 0)
	require.NoError(t, err)
	require.Len(t, letters, 1)
	assert.Equal(t, []byte("not json"), letters[0].Payload)
	assert.Contains(t, letters[0].ErrorText, "payload decode")
	assert.Equal(t, epoch, letters[0].MovedAt)
}

func TestPopFromDeadLetterKeepsUndecodablePayload(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	raw := newTestQueue[[]byte](t, store, "q", WithCodec[[]byte](RawCodec{}))
	typed := newTestQueue[job](t, store, "q")

	_, err := raw.PushToDeadLetter(ctx, Message[[]byte]{Payload: []byte("{broken")}, "boom")
	require.NoError(t, err)

	_, ok, err := typed.PopFromDeadLetter(ctx)
	require.ErrorIs(t, err, ErrSerialization)
	assert.False(t, ok)

	dead, err := typed.DeadLetterDepth(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), dead)
}

func TestPushEncodeFailure(t *testing.T) {
	ctx := context.Background()
	codec := CodecFuncs[job]{
		EncodeFunc: func(job) ([]byte, error) { return nil, errors.New("cannot encode") },
		DecodeFunc: JSONCodec[job]{}.Decode,
	}
	q := newTestQueue[job](t, newTestStore(t), "q", WithCodec[job](codec))

	_, err := q.Push(ctx, job{ID: "x"})
	require.ErrorIs(t, err, ErrSerialization)

	depth, err := q.Depth(ctx)
	require.NoError(t, err)
	assert.Zero(t, depth)
}

func TestCodecFuncs(t *testing.T) {
	ctx := context.Background()
	codec := CodecFuncs[int]{
		EncodeFunc: func(v int) ([]byte, error) { return []byte(strconv.Itoa(v)), nil },
		DecodeFunc: func(b []byte) (int, error) { return strconv.Atoi(string(b)) },
	}
	store := newTestStore(t)
	q := newTestQueue[int](t, store, "ints", WithCodec[int](codec))

	_, err := q.Push(ctx, 42)
	require.NoError(t, err)

	msg, ok, err := q.Pop(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 42, msg.Payload)
}

func TestRemove(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue[job](t, newTestStore(t), "q")

	id, err := q.Push(ctx, job{ID: "gone"})
	require.NoError(t, err)
	_, err = q.Push(ctx, job{ID: "kept"})
	require.NoError(t, err)

	require.NoError(t, q.Remove(ctx, id))
	require.NoError(t, q.Remove(ctx, id), "removing a missing id is not an error")

	msg, ok, err := q.Pop(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "kept", msg.Payload.ID)
}

func TestRemoveIgnoresOtherQueues(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	a := newTestQueue[job](t, store, "a")
	b := newTestQueue[job](t, store, "b")

	id, err := a.Push(ctx, job{ID: "a1"})
	require.NoError(t, err)
	require.NoError(t, b.Remove(ctx, id))

	depth, err := a.Depth(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), depth)
}

func TestRedrive(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue[job](t, newTestStore(t), "q")

	_, err := q.Push(ctx, job{ID: "live"})
	require.NoError(t, err)
	for _, id := range []string{"d1", "d2", "d3"} {
		_, err := q.PushToDeadLetter(ctx, Message[job]{Payload: job{ID: id}, Attempts: 3, CreatedAt: epoch.Add(-time.Hour)}, "boom")
		require.NoError(t, err)
	}

	moved, err := q.Redrive(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, moved)

	dead, err := q.DeadLetterDepth(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), dead)

	var got []string
	for {
		msg, ok, err := q.Pop(ctx)
		require.NoError(t, err)
		if !ok {
			break
		}
		got = append(got, msg.Payload.ID)
		if msg.Payload.ID != "live" {
			assert.Zero(t, msg.Attempts)
			assert.Equal(t, epoch.Add(-time.Hour), msg.CreatedAt)
			require.NotNil(t, msg.LastAttempt)
			assert.Equal(t, epoch, *msg.LastAttempt)
		}
	}
	assert.Equal(t, []string{"live", "d1", "d2"}, got)

	moved, err = q.Redrive(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, moved)
}

func TestListAndPurgeDeadLetters(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	q := newTestQueue[job](t, store, "q")
	other := newTestQueue[job](t, store, "other")

	for i := 0; i < 3; i++ {
		_, err := q.PushToDeadLetter(ctx, Message[job]{Payload: job{ID: strconv.Itoa(i)}}, "boom")
		require.NoError(t, err)
	}
	_, err := other.PushToDeadLetter(ctx, Message[job]{Payload: job{ID: "x"}}, "boom")
	require.NoError(t, err)

	letters, err := q.ListDeadLetters(ctx, 2)
	require.NoError(t, err)
	require.Len(t, letters, 2)
	assert.Equal(t, "0", letters[0].Payload.ID)
	assert.Equal(t, "1", letters[1].Payload.ID)

	dead, err := q.DeadLetterDepth(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), dead, "listing does not remove")

	purged, err := q.PurgeDeadLetters(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), purged)

	dead, err = other.DeadLetterDepth(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), dead)
}

func TestConcurrentPopsDeliverEachMessageOnce(t *testing.T) {
	t.Run("memory", func(t *testing.T) {
		assertPopsDeliverOnce(t, newTestStore(t))
	})
	t.Run("file", func(t *testing.T) {
		db, err := database.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "queue.db"))
		require.NoError(t, err)
		store := repository.NewSQLiteStore(db)
		t.Cleanup(store.Close)
		assertPopsDeliverOnce(t, store)
	})
}

func assertPopsDeliverOnce(t *testing.T, store *repository.Store) {
	t.Helper()
	ctx := context.Background()
	q := newTestQueue[job](t, store, "q")

	const total = 100
	for i := 0; i < total; i++ {
		_, err := q.Push(ctx, job{ID: strconv.Itoa(i)})
		require.NoError(t, err)
	}

	var (
		mu   sync.Mutex
		seen = make(map[string]int)
		wg   sync.WaitGroup
	)
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				msg, ok, err := q.Pop(ctx)
				if err != nil {
					t.Error(err)
					return
				}
				if !ok {
					return
				}
				mu.Lock()
				seen[msg.Payload.ID]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Len(t, seen, total)
	for id, n := range seen {
		assert.Equal(t, 1, n, "message %s delivered %d times", id, n)
	}
}
