package logs

import (
	"encoding/json"
	"math"
	"strings"
	"time"

	"bim-index-api/internal/apperror"
	"bim-index-api/internal/util"

	"github.com/lib/pq"
	"gorm.io/gorm"
)

const aggregateLimit = 12

type LogService struct {
	DB *gorm.DB
}

func (ls *LogService) Log(entry SystemLog, metadata interface{}) error {
	var metaStr *string

	// Metadata that cannot be marshalled is dropped, the entry still lands.
	if metadata != nil {
		if b, err := json.Marshal(metadata); err == nil {
			str := string(b)
			metaStr = &str
		}
	}

	newLog := SystemLog{
		Level:     entry.Level,
		Service:   entry.Service,
		UserID:    entry.UserID,
		Action:    entry.Action,
		Message:   entry.Message,
		Model:     entry.Model,
		Stage:     entry.Stage,
		Tags:      entry.Tags,
		Metadata:  metaStr,
		CreatedAt: time.Now(),
	}
	if newLog.Level == "" {
		newLog.Level = LevelInfo
	}

	return ls.DB.Create(&newLog).Error
}

func trimmed(p *string) (string, bool) {
	if p == nil {
		return "", false
	}
	s := strings.TrimSpace(*p)
	return s, s != ""
}

func (ls *LogService) GetLogs(input LogFilterInput) (*LogPage, error) {
	if input.Page <= 0 {
		input.Page = 1
	}
	if input.PageSize <= 0 || input.PageSize > 100 {
		input.PageSize = 20
	}

	window, err := util.ParseTimeWindow(input.StartDate, input.EndDate)
	if err != nil {
		return nil, err
	}

	base := ls.DB.Table("logs")

	// Default: last 30 days if no dates
	if !window.HasFrom && !window.HasTo {
		base = base.Where("logs.created_at >= ?", time.Now().AddDate(0, 0, -30))
	}
	if window.HasFrom {
		base = base.Where("logs.created_at >= ?", window.From)
	}
	if window.HasTo {
		base = base.Where("logs.created_at < ?", window.To)
	}

	if input.UserID != nil {
		base = base.Where("logs.user_id = ?", *input.UserID)
	}
	if v, ok := trimmed(input.Level); ok {
		base = base.Where("logs.level = ?", v)
	}
	if v, ok := trimmed(input.Service); ok {
		base = base.Where("logs.service = ?", v)
	}
	if v, ok := trimmed(input.Action); ok {
		base = base.Where("logs.action = ?", v)
	}
	if v, ok := trimmed(input.Model); ok {
		base = base.Where("COALESCE(logs.model,'') ILIKE ?", "%"+v+"%")
	}
	if len(input.Tags) > 0 {
		base = base.Where("logs.tags && ?", pq.Array(input.Tags))
	}

	if v, ok := trimmed(input.Search); ok {
		like := "%" + v + "%"
		base = base.Where(
			`CAST(logs.id AS TEXT) ILIKE ?
			 OR logs.level ILIKE ?
			 OR logs.service ILIKE ?
			 OR logs.action ILIKE ?
			 OR logs.message ILIKE ?
			 OR COALESCE(logs.model,'') ILIKE ?
			 OR COALESCE(logs.stage,'') ILIKE ?
			 OR COALESCE(array_to_string(logs.tags, ','),'') ILIKE ?`,
			like, like, like, like, like, like, like, like,
		)
	}

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, apperror.Internal("count logs", err)
	}

	totalPages := int(math.Ceil(float64(total) / float64(input.PageSize)))
	if totalPages == 0 {
		totalPages = 1
	}

	rows := []SystemLog{}
	if err := base.
		Session(&gorm.Session{}).
		Order("logs.created_at DESC").
		Limit(input.PageSize).
		Offset((input.Page - 1) * input.PageSize).
		Scan(&rows).Error; err != nil {
		return nil, apperror.Internal("list logs", err)
	}

	aggs, err := ls.aggregatesFromBase(base)
	if err != nil {
		return nil, apperror.Internal("aggregate logs", err)
	}

	return &LogPage{
		Rows:       rows,
		Aggregates: aggs,
		Total:      total,
		TotalPages: totalPages,
		Page:       input.Page,
		PageSize:   input.PageSize,
	}, nil
}

func (ls *LogService) aggregatesFromBase(base *gorm.DB) (LogAggregates, error) {
	sub := base.Session(&gorm.Session{}).Select("logs.level, logs.model, logs.tags")
	derived := ls.DB.Table("(?) as x", sub)

	count := func(selectExpr, group string, joins ...string) ([]AggItem, error) {
		q := derived.Session(&gorm.Session{}).Select(selectExpr)
		for _, j := range joins {
			q = q.Joins(j)
		}
		out := []AggItem{}
		err := q.Group(group).Order("count DESC").Limit(aggregateLimit).Scan(&out).Error
		return out, err
	}

	var aggs LogAggregates
	var err error
	if aggs.ByLevel, err = count("x.level AS label, COUNT(*) AS count", "x.level"); err != nil {
		return LogAggregates{}, err
	}
	if aggs.ByModel, err = count("COALESCE(NULLIF(TRIM(x.model), ''), 'No model') AS label, COUNT(*) AS count", "label"); err != nil {
		return LogAggregates{}, err
	}
	if aggs.ByTag, err = count("t AS label, COUNT(*) AS count", "t", "JOIN LATERAL unnest(x.tags) AS t ON TRUE"); err != nil {
		return LogAggregates{}, err
	}
	return aggs, nil
}
