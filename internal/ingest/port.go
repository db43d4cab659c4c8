package ingest

import (
	"context"

	"bim-index-api/internal/eav"
)

type IngestServiceAPI interface {
	Ingest(ctx context.Context, req IngestRequest) (*Result, error)
	Revert(ctx context.Context, modelName string, userID uint) (*Result, error)
	Reload(ctx context.Context, modelName string) (*Result, error)
	Diff(ctx context.Context, modelName string, from, to int) ([]eav.PropertyChange, error)
}

type JobRunnerAPI interface {
	Start(modelName, kind string, userID uint, fn JobFunc) (*IngestJob, error)
	Get(id uint) (*IngestJob, error)
}
