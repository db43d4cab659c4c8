package query

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"io"
	"strings"
	"testing"

	"bim-index-api/internal/apperror"
	"bim-index-api/internal/materialize"
	"bim-index-api/internal/region"

	"github.com/xuri/excelize/v2"
)

func doorsRequest() QueryRequest {
	return QueryRequest{
		Regions:      []region.Selector{{ZoneID: uptr(11)}},
		FuzzyKeyword: &FuzzyFilter{Label: "o"},
	}
}

func TestExport_CSVHasBOMAndAllChunks(t *testing.T) {
	f := newFixture(t)
	f.engine.ExportChunkSize = 1

	var buf bytes.Buffer
	if err := f.engine.Export(context.Background(), doorsRequest(), "csv", &buf); err != nil {
		t.Fatalf("Export: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("\xEF\xBB\xBF")) {
		t.Fatalf("missing BOM")
	}

	records, err := csv.NewReader(bytes.NewReader(buf.Bytes()[3:])).ReadAll()
	if err != nil {
		t.Fatalf("csv: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("records=%v", records)
	}
	if strings.Join(records[0], ",") != strings.Join(exportHeader, ",") {
		t.Fatalf("header=%v", records[0])
	}
	if records[1][0] != "3" || records[1][1] != "Door 900" || records[1][3] != "1" || records[1][4] != "P01-T02-ARC" || records[1][5] != "2" {
		t.Fatalf("row=%v", records[1])
	}
}

func TestExport_TXTIsTabSeparated(t *testing.T) {
	f := newFixture(t)

	var buf bytes.Buffer
	if err := f.engine.Export(context.Background(), doorsRequest(), "TXT", &buf); err != nil {
		t.Fatalf("Export: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("lines=%q", lines)
	}
	if lines[0] != strings.Join(exportHeader, "\t") {
		t.Fatalf("header=%q", lines[0])
	}
	if bytes.HasPrefix(buf.Bytes(), []byte("\xEF\xBB\xBF")) {
		t.Fatalf("txt must not carry a BOM")
	}
}

func TestExport_XLSX(t *testing.T) {
	f := newFixture(t)

	var buf bytes.Buffer
	if err := f.engine.Export(context.Background(), doorsRequest(), "xlsx", &buf); err != nil {
		t.Fatalf("Export: %v", err)
	}

	x, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("open xlsx: %v", err)
	}
	defer x.Close()

	rows, err := x.GetRows(exportSheet)
	if err != nil {
		t.Fatalf("rows: %v", err)
	}
	if len(rows) != 3 || rows[0][0] != "dbid" || rows[2][2] != "Category" {
		t.Fatalf("rows=%v", rows)
	}
}

func TestExport_FailuresWriteNothing(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name   string
		req    QueryRequest
		format string
	}{
		{"unsupported format", doorsRequest(), "pdf"},
		{"no region match", QueryRequest{Regions: []region.Selector{{ZoneID: uptr(99)}}}, "csv"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			err := f.engine.Export(context.Background(), tt.req, tt.format, &buf)
			if !errors.Is(err, apperror.ErrValidation) {
				t.Fatalf("err=%v", err)
			}
			if buf.Len() != 0 {
				t.Fatalf("wrote %d bytes", buf.Len())
			}
		})
	}
}

type trackingWriter struct {
	rowWriter
	released int
	closed   int
}

func (w *trackingWriter) Close() error {
	w.closed++
	return w.rowWriter.Close()
}

func (w *trackingWriter) Release() {
	w.released++
	w.rowWriter.Release()
}

func TestExport_QueryFailureReleasesWriter(t *testing.T) {
	f := newFixture(t)

	var opened []*trackingWriter
	orig := newRowWriterHook
	newRowWriterHook = func(format ExportFormat, w io.Writer) (rowWriter, error) {
		rw, err := orig(format, w)
		if err != nil {
			return nil, err
		}
		tw := &trackingWriter{rowWriter: rw}
		opened = append(opened, tw)
		return tw, nil
	}
	t.Cleanup(func() { newRowWriterHook = orig })

	if err := f.engine.Export(context.Background(), doorsRequest(), "xlsx", io.Discard); err != nil {
		t.Fatalf("Export: %v", err)
	}

	// scope resolves from regions and models; the object read fails
	if err := f.db.Migrator().DropTable(&materialize.ObjectRecord{}); err != nil {
		t.Fatalf("drop: %v", err)
	}
	err := f.engine.Export(context.Background(), doorsRequest(), "xlsx", io.Discard)
	if !errors.Is(err, apperror.ErrInternal) {
		t.Fatalf("err=%v", err)
	}

	if len(opened) != 2 {
		t.Fatalf("opened=%d", len(opened))
	}
	if opened[0].closed != 1 || opened[0].released != 1 {
		t.Fatalf("ok export: %+v", *opened[0])
	}
	if opened[1].closed != 0 || opened[1].released != 1 {
		t.Fatalf("failed export: closed=%d released=%d", opened[1].closed, opened[1].released)
	}
	x := opened[1].rowWriter.(*xlsxWriter)
	if !x.released {
		t.Fatalf("xlsx file not closed")
	}
}

func TestLookupFormat(t *testing.T) {
	for in, want := range map[string]string{"": "csv", "Excel": "xlsx", " txt ": "txt"} {
		f, err := LookupFormat(in)
		if err != nil || f.Name != want {
			t.Fatalf("LookupFormat(%q)=%+v, %v", in, f, err)
		}
	}
}
