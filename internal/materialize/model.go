package materialize

import (
	"fmt"
	"time"
)

// ObjectRecord is one surviving (entity, attribute) row of a model.
type ObjectRecord struct {
	ID           uint64    `gorm:"primaryKey" json:"id"`
	ModelID      uint      `gorm:"not null;index:idx_object_model_dbid,priority:1;index:idx_object_model_root,priority:1" json:"model_id"`
	Dbid         int64     `gorm:"not null;index:idx_object_model_dbid,priority:2" json:"dbid"`
	DisplayName  string    `gorm:"type:text;index:idx_object_display_value,priority:1" json:"display_name"`
	Value        string    `gorm:"type:text;index:idx_object_display_value,priority:2" json:"value"`
	NumericValue *float64  `gorm:"index" json:"numeric_value"`
	RootDbid     *int64    `gorm:"index:idx_object_model_root,priority:2" json:"root_dbid"`
	ParentID     *int64    `json:"parent_id"`
	CreatedAt    time.Time `json:"created_at"`
}

func (ObjectRecord) TableName() string { return "bim_objects" }

// Progress is reported after each committed batch.
type Progress struct {
	Batch   int
	Batches int
	Rows    int
	Total   int
}

// PartialError reports how far materialization got before a batch failed.
type PartialError struct {
	BatchesDone int
	RowsWritten int
	Err         error
}

func (e *PartialError) Error() string {
	return fmt.Sprintf("materialize stopped after %d batches (%d rows): %v", e.BatchesDone, e.RowsWritten, e.Err)
}

func (e *PartialError) Unwrap() error { return e.Err }
