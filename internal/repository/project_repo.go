package repository

import (
	"context"

	"rezoning/internal/model"
)

// ProjectRepository remembers the last payload seen for each project so
// unchanged re-submissions can be skipped.
type ProjectRepository interface {
	Get(ctx context.Context, id string) (rec model.ProjectRecord, ok bool, err error)
	Upsert(ctx context.Context, rec *model.ProjectRecord) error
}
