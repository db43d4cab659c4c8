package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"bim-index-api/internal/apperror"
	"bim-index-api/internal/logger"
	"bim-index-api/internal/materialize"
	"bim-index-api/internal/metrics"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type JobFunc func(ctx context.Context) (*Result, error)

// JobRunner runs pipeline jobs in the background. At most one job per model
// runs at a time; a second start for the same model is a Conflict.
type JobRunner struct {
	DB      *gorm.DB
	Log     *zap.Logger
	Metrics *metrics.Metrics

	mu     sync.Mutex
	active map[string]uint
	wg     sync.WaitGroup
}

func NewJobRunner(db *gorm.DB, log *zap.Logger, m *metrics.Metrics) *JobRunner {
	return &JobRunner{DB: db, Log: logger.OrNop(log), Metrics: m, active: map[string]uint{}}
}

func (jr *JobRunner) acquire(model string) error {
	jr.mu.Lock()
	defer jr.mu.Unlock()
	if jr.active == nil {
		jr.active = map[string]uint{}
	}
	if id, busy := jr.active[model]; busy {
		return apperror.Conflict(fmt.Sprintf("model %q already has job %d running", model, id))
	}
	jr.active[model] = 0
	return nil
}

func (jr *JobRunner) release(model string) {
	jr.mu.Lock()
	defer jr.mu.Unlock()
	delete(jr.active, model)
}

// Running reports whether a job currently holds the model.
func (jr *JobRunner) Running(model string) bool {
	jr.mu.Lock()
	defer jr.mu.Unlock()
	_, ok := jr.active[strings.TrimSpace(model)]
	return ok
}

// Start persists a job and runs fn in a goroutine detached from the caller's
// request context.
func (jr *JobRunner) Start(modelName, kind string, userID uint, fn JobFunc) (*IngestJob, error) {
	name := strings.TrimSpace(modelName)
	if name == "" {
		return nil, apperror.Validation("model name is required", map[string]any{"field": "model"})
	}
	if err := jr.acquire(name); err != nil {
		return nil, err
	}

	job := IngestJob{
		ModelName: name,
		Kind:      kind,
		Status:    JobRunning,
		UserID:    userID,
		StartedAt: time.Now(),
	}
	if err := jr.DB.Create(&job).Error; err != nil {
		jr.release(name)
		return nil, err
	}

	jr.mu.Lock()
	jr.active[name] = job.ID
	jr.mu.Unlock()

	jr.wg.Add(1)
	go jr.run(job, fn)
	return &job, nil
}

func (jr *JobRunner) run(job IngestJob, fn JobFunc) {
	defer jr.wg.Done()
	defer jr.release(job.ModelName)
	log := logger.OrNop(jr.Log).With(zap.Uint("job_id", job.ID), zap.String("model", job.ModelName), zap.String("kind", job.Kind))

	res, err := func() (res *Result, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = apperror.Internal("job panicked", fmt.Errorf("%v", r))
			}
		}()
		return fn(context.Background())
	}()

	now := time.Now()
	updates := map[string]any{"finished_at": &now, "status": JobComplete, "message": "complete"}
	if err != nil {
		updates["status"] = JobFailed
		updates["message"] = jobMessage(err)
		log.Warn("job failed", zap.Error(err))
	} else {
		log.Info("job complete", zap.Int("version", res.Version), zap.Int("objects", res.Objects))
	}
	if res != nil {
		updates["version"] = res.Version
		if b, mErr := json.Marshal(res.Warnings); mErr == nil {
			updates["warnings"] = datatypes.JSON(b)
		}
		stats := *res
		stats.Warnings = nil
		if b, mErr := json.Marshal(stats); mErr == nil {
			updates["stats"] = datatypes.JSON(b)
		}
	}

	if uErr := jr.DB.Model(&IngestJob{}).Where("id = ?", job.ID).Updates(updates).Error; uErr != nil {
		log.Error("job status update failed", zap.Error(uErr))
	}
	jr.Metrics.IngestRun(job.Kind, updates["status"].(string))
}

// jobMessage is the user-facing part of err; internal causes stay in the logs.
func jobMessage(err error) string {
	var appErr *apperror.Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	var partial *materialize.PartialError
	if errors.As(err, &partial) {
		return fmt.Sprintf("materialization stopped after %d batches (%d rows written)", partial.BatchesDone, partial.RowsWritten)
	}
	return apperror.ErrInternal.Message
}

func (jr *JobRunner) Get(id uint) (*IngestJob, error) {
	var job IngestJob
	if err := jr.DB.First(&job, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound(fmt.Sprintf("job %d not found", id))
		}
		return nil, err
	}
	return &job, nil
}

// Wait blocks until every started job has finished.
func (jr *JobRunner) Wait() {
	jr.wg.Wait()
}
