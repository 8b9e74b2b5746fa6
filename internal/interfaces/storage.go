package interfaces

import (
	"context"

	"github.com/bobmcallan/keel/internal/models"
)

// RunStore persists pipeline run records for history queries.
type RunStore interface {
	SaveRun(ctx context.Context, record *models.RunRecord) error
	GetRun(ctx context.Context, id string) (*models.RunRecord, error)
	ListRuns(ctx context.Context, limit int) ([]*models.RunRecord, error)
	Close() error
}
