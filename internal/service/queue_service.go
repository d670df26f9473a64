package service

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"rezoning/internal/queue"
	"rezoning/internal/repository"
)

// ErrUnknownQueue is returned for queue names the service was not configured with.
var ErrUnknownQueue = errors.New("unknown queue")

type QueueStats struct {
	Name        string `json:"name"`
	Depth       int64  `json:"depth"`
	DeadLetters int64  `json:"dead_letters"`
}

// QueueService exposes operator tooling over the configured queues without
// knowing their payload types.
type QueueService interface {
	Names() []string
	Stats(ctx context.Context, name string) (QueueStats, error)
	ListDeadLetters(ctx context.Context, name string, limit int) ([]queue.DeadLetter[[]byte], error)
	Redrive(ctx context.Context, name string, limit int) (int, error)
	PurgeDeadLetters(ctx context.Context, name string) (int64, error)
	Remove(ctx context.Context, name string, id int64) error
}

type queueService struct {
	queues map[string]*queue.Queue[[]byte]
}

func NewQueueService(store *repository.Store, names ...string) (QueueService, error) {
	queues := make(map[string]*queue.Queue[[]byte], len(names))
	for _, name := range names {
		q, err := queue.NewFromStore(name, store, queue.WithCodec[[]byte](queue.RawCodec{}))
		if err != nil {
			return nil, err
		}
		queues[name] = q
	}
	return &queueService{queues: queues}, nil
}

func (s *queueService) Names() []string {
	names := make([]string, 0, len(s.queues))
	for name := range s.queues {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *queueService) lookup(name string) (*queue.Queue[[]byte], error) {
	q, ok := s.queues[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownQueue, name)
	}
	return q, nil
}

func (s *queueService) Stats(ctx context.Context, name string) (QueueStats, error) {
	q, err := s.lookup(name)
	if err != nil {
		return QueueStats{}, err
	}
	depth, err := q.Depth(ctx)
	if err != nil {
		return QueueStats{}, err
	}
	dead, err := q.DeadLetterDepth(ctx)
	if err != nil {
		return QueueStats{}, err
	}
	return QueueStats{Name: name, Depth: depth, DeadLetters: dead}, nil
}

func (s *queueService) ListDeadLetters(ctx context.Context, name string, limit int) ([]queue.DeadLetter[[]byte], error) {
	q, err := s.lookup(name)
	if err != nil {
		return nil, err
	}
	return q.ListDeadLetters(ctx, limit)
}

func (s *queueService) Redrive(ctx context.Context, name string, limit int) (int, error) {
	q, err := s.lookup(name)
	if err != nil {
		return 0, err
	}
	return q.Redrive(ctx, limit)
}

func (s *queueService) PurgeDeadLetters(ctx context.Context, name string) (int64, error) {
	q, err := s.lookup(name)
	if err != nil {
		return 0, err
	}
	return q.PurgeDeadLetters(ctx)
}

func (s *queueService) Remove(ctx context.Context, name string, id int64) error {
	q, err := s.lookup(name)
	if err != nil {
		return err
	}
	return q.Remove(ctx, id)
}
