package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"rezoning/internal/model"
	"rezoning/internal/queue"
	"rezoning/internal/repository"
)

// EnqueueResult reports what Enqueue did with a project. MessageID is zero
// when the project matched the stored copy and nothing was queued.
type EnqueueResult struct {
	MessageID int64
	Queued    bool
}

// ProjectService is the entry point of the relay: the scraper hands projects
// to it and the new or changed ones are queued for summarizing.
type ProjectService interface {
	Enqueue(ctx context.Context, project model.Project) (EnqueueResult, error)
}

type projectService struct {
	summarize *queue.Queue[model.Project]
	projects  repository.ProjectRepository
	now       func() time.Time
}

func NewProjectService(summarize *queue.Queue[model.Project], projects repository.ProjectRepository) ProjectService {
	return &projectService{summarize: summarize, projects: projects, now: time.Now}
}

// Enqueue pushes project unless its JSON form equals the stored copy. The
// stored copy is only updated after the push, so a failed save at worst
// queues the same version again on the next submission.
func (s *projectService) Enqueue(ctx context.Context, project model.Project) (EnqueueResult, error) {
	payload, err := json.Marshal(project)
	if err != nil {
		return EnqueueResult{}, fmt.Errorf("encoding project %s: %w", project.ID, err)
	}

	prev, ok, err := s.projects.Get(ctx, project.ID)
	if err != nil {
		return EnqueueResult{}, err
	}
	if ok && bytes.Equal(prev.Payload, payload) {
		return EnqueueResult{}, nil
	}

	id, err := s.summarize.Push(ctx, project)
	if err != nil {
		return EnqueueResult{}, err
	}
	rec := &model.ProjectRecord{ID: project.ID, Payload: payload, UpdatedAt: s.now()}
	return EnqueueResult{MessageID: id, Queued: true}, s.projects.Upsert(ctx, rec)
}
