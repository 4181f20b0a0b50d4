// backend/services/interfaces.go
package services

import (
	"context"
	"time"

	"github.com/gewnthar/feargreed/backend/models"
)

// IndexStore is the subset of *database.Store the services depend on.
type IndexStore interface {
	FindByDate(ctx context.Context, date time.Time) (*models.IndexRecord, error)
	FindSince(ctx context.Context, start time.Time) ([]models.IndexRecord, error)
	FindByMonth(ctx context.Context, year int, month time.Month) ([]models.IndexRecord, error)
	Insert(ctx context.Context, tuple models.IndexTuple) (*models.IndexRecord, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
	CountRecords(ctx context.Context) (int64, error)
}

// RunLog persists the last attempt/success of each job.
type RunLog interface {
	LogIngestRun(ctx context.Context, run models.IngestRun) error
	GetIngestRuns(ctx context.Context) ([]models.IngestRun, error)
}

// Store combines record and run persistence.
type Store interface {
	IndexStore
	RunLog
}

// SourceClient fetches raw payloads from the index provider.
type SourceClient interface {
	FetchDaily(ctx context.Context, date time.Time) (*models.RawSourceResponse, error)
	FetchHistory(ctx context.Context) (*models.RawSourceResponse, error)
}
