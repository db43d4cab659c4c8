package query

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"bim-index-api/internal/apperror"
	"bim-index-api/internal/materialize"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ExportFormat struct {
	Name        string
	ContentType string
	Extension   string
}

var exportFormats = map[string]ExportFormat{
	"csv":  {Name: "csv", ContentType: "text/csv; charset=utf-8", Extension: "csv"},
	"txt":  {Name: "txt", ContentType: "text/plain; charset=utf-8", Extension: "txt"},
	"xlsx": {Name: "xlsx", ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", Extension: "xlsx"},
}

// LookupFormat accepts csv, txt and xlsx (and "excel" for xlsx).
func LookupFormat(name string) (ExportFormat, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	if n == "" {
		n = "csv"
	}
	if n == "excel" {
		n = "xlsx"
	}
	f, ok := exportFormats[n]
	if !ok {
		return ExportFormat{}, apperror.Validation(fmt.Sprintf("unsupported export format %q", name), map[string]any{"field": "format"})
	}
	return f, nil
}

var exportHeader = []string{"dbid", "value", "display_name", "root_dbid", "model_name", "model_version"}

func exportRecord(r ObjectRow) []string {
	root := ""
	if r.RootDbid != nil {
		root = strconv.FormatInt(*r.RootDbid, 10)
	}
	return []string{
		strconv.FormatInt(r.Dbid, 10),
		r.Value,
		r.DisplayName,
		root,
		r.ModelName,
		strconv.Itoa(r.ModelVersion),
	}
}

// rowWriter is finished with Close. Release frees its resources without
// writing and is a no-op after Close.
type rowWriter interface {
	WriteRow(fields []string) error
	Close() error
	Release()
}

type delimitedWriter struct {
	w *csv.Writer
}

func newDelimitedWriter(w io.Writer, comma rune, bom bool) (*delimitedWriter, error) {
	if bom {
		if _, err := w.Write([]byte("\xEF\xBB\xBF")); err != nil {
			return nil, err
		}
	}
	cw := csv.NewWriter(w)
	cw.Comma = comma
	return &delimitedWriter{w: cw}, nil
}

func (d *delimitedWriter) WriteRow(fields []string) error {
	return d.w.Write(fields)
}

func (d *delimitedWriter) Close() error {
	d.w.Flush()
	return d.w.Error()
}

func (d *delimitedWriter) Release() {}

type xlsxWriter struct {
	out io.Writer
	f   *excelize.File
	sw  *excelize.StreamWriter
	row int

	released bool
}

const exportSheet = "Objects"

func newXLSXWriter(out io.Writer) (*xlsxWriter, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName(f.GetSheetName(0), exportSheet); err != nil {
		_ = f.Close()
		return nil, err
	}
	sw, err := f.NewStreamWriter(exportSheet)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &xlsxWriter{out: out, f: f, sw: sw}, nil
}

func (x *xlsxWriter) writeHeader(fields []string) error {
	bold, err := x.f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#E2E8F0"}},
	})
	if err != nil {
		return err
	}
	cells := make([]interface{}, len(fields))
	for i, h := range fields {
		cells[i] = excelize.Cell{Value: h, StyleID: bold}
	}
	x.row = 1
	return x.sw.SetRow("A1", cells)
}

func (x *xlsxWriter) WriteRow(fields []string) error {
	if x.row == 0 {
		return x.writeHeader(fields)
	}
	x.row++
	cells := make([]interface{}, len(fields))
	for i, v := range fields {
		cells[i] = v
	}
	cell, err := excelize.CoordinatesToCellName(1, x.row)
	if err != nil {
		return err
	}
	return x.sw.SetRow(cell, cells)
}

func (x *xlsxWriter) Release() {
	if x.released {
		return
	}
	x.released = true
	_ = x.f.Close()
}

func (x *xlsxWriter) Close() error {
	defer x.Release()
	if err := x.sw.Flush(); err != nil {
		return err
	}
	return x.f.Write(x.out)
}

var newRowWriterHook = newRowWriter

func newRowWriter(format ExportFormat, w io.Writer) (rowWriter, error) {
	switch format.Name {
	case "txt":
		return newDelimitedWriter(w, '\t', false)
	case "xlsx":
		return newXLSXWriter(w)
	default:
		return newDelimitedWriter(w, ',', true)
	}
}

// Export writes every record matching req to w. Records are read in
// ExportChunkSize chunks keyed on id so memory stays bounded. Nothing is
// written to w when the request fails to resolve.
func (e *Engine) Export(ctx context.Context, req QueryRequest, format string, w io.Writer) error {
	started := time.Now()
	defer func() { e.Metrics.ObserveQuery("export", time.Since(started)) }()

	f, err := LookupFormat(format)
	if err != nil {
		return err
	}
	if err := validateCategories(req.Categories); err != nil {
		return err
	}
	q, models, err := e.scope(ctx, req)
	if err != nil {
		return err
	}

	chunk := e.ExportChunkSize
	if chunk <= 0 {
		chunk = DefaultExportChunkSize
	}

	rw, err := newRowWriterHook(f, w)
	if err != nil {
		return apperror.Internal("start export", err)
	}
	defer rw.Release()
	if err := rw.WriteRow(exportHeader); err != nil {
		return err
	}

	base := q.Session(&gorm.Session{})
	var lastID uint64
	total := 0
	for {
		var records []materialize.ObjectRecord
		if err := base.Where("id > ?", lastID).Order("id ASC").Limit(chunk).Find(&records).Error; err != nil {
			return apperror.Internal("export objects", err)
		}
		for _, r := range records {
			if err := rw.WriteRow(exportRecord(render(r, models))); err != nil {
				return err
			}
		}
		total += len(records)
		if len(records) < chunk {
			break
		}
		lastID = records[len(records)-1].ID
	}

	if err := rw.Close(); err != nil {
		return err
	}
	e.logger().Info("export written", zap.String("format", f.Name), zap.Int("rows", total))
	return nil
}
