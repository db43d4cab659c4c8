package query

import (
	"context"
	"io"
)

type QueryEngineAPI interface {
	Query(ctx context.Context, req QueryRequest) (*ObjectPage, error)
	Advanced(ctx context.Context, req AdvancedRequest) (*AdvancedPage, error)
	Export(ctx context.Context, req QueryRequest, format string, w io.Writer) error
	GetObject(ctx context.Context, modelName string, dbid int64) (*ObjectDetail, error)
}
