package materialize

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"bim-index-api/internal/eav"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var testDBSeq uint64

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	id := atomic.AddUint64(&testDBSeq, 1)
	dsn := fmt.Sprintf("file:materialize_test_%d?mode=memory&cache=shared", id)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&ObjectRecord{}); err != nil {
		t.Fatalf("migrate db: %v", err)
	}

	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func i64(v int64) *int64 { return &v }

func sampleRows() []eav.Row {
	return []eav.Row{
		{EntityID: 1, DisplayName: "Name", Value: "P01-T02-Z1-1F-A-RM-ARC-001"},
		{EntityID: 2, DisplayName: "Name", Value: "Wall"},
		{EntityID: 2, DisplayName: "Width", Value: "1,200 mm"},
		{EntityID: 3, DisplayName: "Area", Value: "12.5 m²"},
		{EntityID: 3, DisplayName: "Comments", Value: "n/a"},
	}
}

func TestBuild_ProjectsRootsParentsAndNumbers(t *testing.T) {
	recs := Build(9, sampleRows(), map[int64]*int64{1: i64(1), 2: i64(1), 3: nil}, map[int64]int64{2: 1, 3: 2})

	if len(recs) != 5 {
		t.Fatalf("len=%d", len(recs))
	}
	if recs[0].ParentID != nil || *recs[0].RootDbid != 1 {
		t.Fatalf("anchor record=%+v", recs[0])
	}
	if recs[2].NumericValue == nil || *recs[2].NumericValue != 1200 {
		t.Fatalf("width numeric=%v", recs[2].NumericValue)
	}
	if recs[3].NumericValue == nil || *recs[3].NumericValue != 12.5 || recs[3].RootDbid != nil || *recs[3].ParentID != 2 {
		t.Fatalf("area record=%+v", recs[3])
	}
	if recs[4].NumericValue != nil {
		t.Fatalf("comments numeric=%v", *recs[4].NumericValue)
	}
}

func TestMaterialize_BatchesAndReplaces(t *testing.T) {
	db := newTestDB(t)
	m := &Materializer{DB: db, BatchSize: 2}
	ctx := context.Background()

	// another model's rows survive
	if _, err := m.Materialize(ctx, 2, sampleRows()[:1], nil, nil, nil); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := m.Materialize(ctx, 1, sampleRows(), nil, nil, nil); err != nil {
		t.Fatalf("first run: %v", err)
	}

	var progress []Progress
	n, err := m.Materialize(ctx, 1, sampleRows(), nil, nil, func(p Progress) { progress = append(progress, p) })
	if err != nil {
		t.Fatalf("Materialize: %v", err)
	}
	if n != 5 {
		t.Fatalf("written=%d", n)
	}
	if len(progress) != 3 || progress[2].Rows != 5 || progress[2].Batches != 3 {
		t.Fatalf("progress=%+v", progress)
	}

	var count int64
	db.Model(&ObjectRecord{}).Where("model_id = ?", 1).Count(&count)
	if count != 5 {
		t.Fatalf("model 1 rows=%d want 5", count)
	}
	db.Model(&ObjectRecord{}).Where("model_id = ?", 2).Count(&count)
	if count != 1 {
		t.Fatalf("model 2 rows=%d want 1", count)
	}
}

func TestMaterialize_PartialErrorOnBatchFailure(t *testing.T) {
	db := newTestDB(t)

	creates := 0
	err := db.Callback().Create().Before("gorm:create").Register("test:fail_second_batch", func(tx *gorm.DB) {
		creates++
		if creates == 2 {
			tx.AddError(errors.New("disk full"))
		}
	})
	if err != nil {
		t.Fatalf("register callback: %v", err)
	}

	m := &Materializer{DB: db, BatchSize: 2}
	n, err := m.Materialize(context.Background(), 1, sampleRows(), nil, nil, nil)

	var pe *PartialError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *PartialError, got %v", err)
	}
	if pe.BatchesDone != 1 || pe.RowsWritten != 2 || n != 2 {
		t.Fatalf("partial=%+v n=%d", pe, n)
	}

	var count int64
	db.Model(&ObjectRecord{}).Count(&count)
	if count != 2 {
		t.Fatalf("rows=%d want only the committed batch", count)
	}
}

func TestMaterialize_CancelledContext(t *testing.T) {
	db := newTestDB(t)
	ctx, cancel := context.WithCancel(context.Background())

	m := &Materializer{DB: db, BatchSize: 2}
	_, err := m.Materialize(ctx, 1, sampleRows(), nil, nil, func(p Progress) {
		if p.Batch == 1 {
			cancel()
		}
	})

	var pe *PartialError
	if !errors.As(err, &pe) || !errors.Is(err, context.Canceled) || pe.BatchesDone != 1 {
		t.Fatalf("err=%v", err)
	}
}
