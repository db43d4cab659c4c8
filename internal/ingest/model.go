package ingest

import (
	"io"
	"time"

	"bim-index-api/internal/apperror"

	"gorm.io/datatypes"
)

const (
	KindIngest = "ingest"
	KindRevert = "revert"
	KindReload = "reload"
)

const (
	JobQueued   = "queued"
	JobRunning  = "running"
	JobComplete = "complete"
	JobFailed   = "error"
)

// IngestJob is the persisted record of one background run.
type IngestJob struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	ModelName  string         `gorm:"size:255;index;not null" json:"model_name"`
	Kind       string         `gorm:"size:20;not null" json:"kind"`
	Status     string         `gorm:"size:20;not null;index" json:"status"`
	Version    int            `json:"version"`
	Message    string         `gorm:"type:text" json:"message"`
	Warnings   datatypes.JSON `json:"warnings"`
	Stats      datatypes.JSON `json:"stats"`
	UserID     uint           `gorm:"not null;default:0" json:"user_id"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt *time.Time     `json:"finished_at,omitempty"`
}

func (IngestJob) TableName() string { return "ingest_jobs" }

// RunRequest selects the model version the pipeline processes. Version 0
// means the model's current version.
type RunRequest struct {
	ModelName string
	Version   int
	Prune     bool
}

// Result summarizes a completed pipeline run.
type Result struct {
	ModelID       uint               `json:"model_id"`
	ModelName     string             `json:"model_name"`
	Version       int                `json:"version"`
	Categories    int                `json:"categories"`
	Regions       int                `json:"regions"`
	Objects       int                `json:"objects"`
	Anchored      int                `json:"anchored"`
	Orphans       int                `json:"orphans"`
	Cycles        int                `json:"cycles"`
	PruneFailures int                `json:"prune_failures"`
	Warnings      []apperror.Warning `json:"warnings"`
}

// IngestRequest is a new version of a model. Database, when set, is the
// exported sqlite file; otherwise it is fetched from the translation service
// by Urn.
type IngestRequest struct {
	ModelName string
	FileName  string
	Urn       string
	UserID    uint
	Upload    io.Reader
	Database  io.Reader
}
