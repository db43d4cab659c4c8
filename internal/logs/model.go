package logs

import (
	"time"

	"github.com/lib/pq"
)

const (
	LevelInfo    = "info"
	LevelWarning = "warning"
	LevelError   = "error"
)

type SystemLog struct {
	ID        uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	Level     string         `gorm:"size:20;not null" json:"level"`
	Service   string         `gorm:"size:100;not null" json:"service"`
	UserID    *uint          `gorm:"index" json:"user_id,omitempty"`
	Action    string         `gorm:"size:255;not null" json:"action"`
	Message   string         `gorm:"type:text;not null" json:"message"`
	Model     *string        `gorm:"size:512;index" json:"model,omitempty"`
	Stage     *string        `gorm:"size:100" json:"stage,omitempty"`
	Tags      pq.StringArray `gorm:"type:text[];column:tags" json:"tags"`
	Metadata  *string        `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
}

type LogFilterInput struct {
	UserID  *uint    `json:"user_id"`
	Level   *string  `json:"level"`
	Service *string  `json:"service"`
	Action  *string  `json:"action"`
	Model   *string  `json:"model"`
	Tags    []string `json:"tags"`

	StartDate *string `json:"start_date"` // "YYYY-MM-DD" or RFC3339
	EndDate   *string `json:"end_date"`

	Search   *string `json:"search"`
	Page     int     `json:"page"`
	PageSize int     `json:"page_size"`
}

type AggItem struct {
	Label string `json:"label"`
	Count int64  `json:"count"`
}

type LogAggregates struct {
	ByLevel []AggItem `json:"by_level"`
	ByModel []AggItem `json:"by_model"`
	ByTag   []AggItem `json:"by_tag"`
}

type LogPage struct {
	Rows       []SystemLog   `json:"data"`
	Aggregates LogAggregates `json:"aggregates"`
	Total      int64         `json:"total"`
	TotalPages int           `json:"total_pages"`
	Page       int           `json:"page"`
	PageSize   int           `json:"page_size"`
}

func (SystemLog) TableName() string {
	return "logs"
}
