package materialize

import (
	"context"

	"bim-index-api/internal/eav"
	"bim-index-api/internal/util"

	"gorm.io/gorm"
)

const DefaultBatchSize = 10000

type Materializer struct {
	DB        *gorm.DB
	BatchSize int
}

// Build projects extracted rows onto object records. Roots and parents are
// looked up by entity id; missing entries stay nil.
func Build(modelID uint, rows []eav.Row, roots map[int64]*int64, parents map[int64]int64) []ObjectRecord {
	out := make([]ObjectRecord, 0, len(rows))
	for _, r := range rows {
		rec := ObjectRecord{
			ModelID:      modelID,
			Dbid:         r.EntityID,
			DisplayName:  r.DisplayName,
			Value:        r.Value,
			NumericValue: util.ParseNumberPtr(r.Value),
			RootDbid:     roots[r.EntityID],
		}
		if p, ok := parents[r.EntityID]; ok {
			parent := p
			rec.ParentID = &parent
		}
		out = append(out, rec)
	}
	return out
}

// Materialize deletes the model's previous records in one transaction, then
// inserts the new ones with one transaction per batch. A failing batch stops
// the run with a *PartialError.
func (m *Materializer) Materialize(ctx context.Context, modelID uint, rows []eav.Row, roots map[int64]*int64, parents map[int64]int64, publish func(Progress)) (int, error) {
	size := m.BatchSize
	if size <= 0 {
		size = DefaultBatchSize
	}
	records := Build(modelID, rows, roots, parents)

	db := m.DB.WithContext(ctx)
	err := db.Transaction(func(tx *gorm.DB) error {
		return tx.Where("model_id = ?", modelID).Delete(&ObjectRecord{}).Error
	})
	if err != nil {
		return 0, err
	}

	batches := (len(records) + size - 1) / size
	written := 0
	for b := 0; b < batches; b++ {
		if err := ctx.Err(); err != nil {
			return written, &PartialError{BatchesDone: b, RowsWritten: written, Err: err}
		}

		end := min((b+1)*size, len(records))
		chunk := records[b*size : end]
		err := db.Transaction(func(tx *gorm.DB) error {
			return tx.CreateInBatches(chunk, 1000).Error
		})
		if err != nil {
			return written, &PartialError{BatchesDone: b, RowsWritten: written, Err: err}
		}
		written += len(chunk)

		if publish != nil {
			publish(Progress{Batch: b + 1, Batches: batches, Rows: written, Total: len(records)})
		}
	}
	return written, nil
}
