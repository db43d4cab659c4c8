package progress

import (
	"fmt"
	"sync"

	"bim-index-api/internal/logger"
	"bim-index-api/internal/logs"

	"go.uber.org/zap"
)

type AuditLogger interface {
	Log(entry logs.SystemLog, metadata interface{}) error
}

// Fanout forwards every event to the broker and persists warnings, errors
// and completions to the audit log in the background.
type Fanout struct {
	Broker  Publisher
	Audit   AuditLogger
	Service string
	Log     *zap.Logger

	wg sync.WaitGroup
}

func NewFanout(broker Publisher, audit AuditLogger, log *zap.Logger) *Fanout {
	return &Fanout{Broker: broker, Audit: audit, Service: "ingest", Log: logger.OrNop(log)}
}

func (f *Fanout) Publish(e Event) {
	if f.Broker != nil {
		f.Broker.Publish(e)
	}
	if f.Audit == nil || !persisted(e.Status) {
		return
	}

	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		f.persist(e)
	}()
}

// Wait blocks until queued audit writes are done.
func (f *Fanout) Wait() {
	f.wg.Wait()
}

func persisted(status string) bool {
	switch status {
	case StatusWarning, StatusError, StatusComplete:
		return true
	}
	return false
}

func (f *Fanout) persist(e Event) {
	log := logger.OrNop(f.Log)
	defer func() {
		if r := recover(); r != nil {
			log.Error("audit log panic", zap.String("topic", e.Topic), zap.String("panic", fmt.Sprint(r)))
		}
	}()

	level := logs.LevelInfo
	switch e.Status {
	case StatusWarning:
		level = logs.LevelWarning
	case StatusError:
		level = logs.LevelError
	}

	topic := e.Topic
	entry := logs.SystemLog{
		Level:   level,
		Service: f.Service,
		Action:  e.Status,
		Message: e.Message,
		Model:   &topic,
		Tags:    []string{topic},
	}
	if err := f.Audit.Log(entry, map[string]any{"at": e.At, "percent": e.Percent}); err != nil {
		log.Warn("audit log write failed", zap.String("topic", e.Topic), zap.Error(err))
	}
}
