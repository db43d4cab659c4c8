package report

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

type Sheet struct {
	Name   string
	Header []string
	Rows   [][]interface{}
}

// Tabular is a report that renders as spreadsheet sheets.
type Tabular interface {
	Sheets() []Sheet
}

func percent(r float64) string {
	return fmt.Sprintf("%.1f%%", r)
}

func (r ComplianceReport) Sheets() []Sheet {
	summary := Sheet{Name: "Summary", Header: []string{"field", "total", "errors", "compliance"}}
	for _, s := range r.Summary {
		summary.Rows = append(summary.Rows, []interface{}{s.Field, s.Total, s.Errors, percent(s.Rate)})
	}
	summary.Rows = append(summary.Rows, []interface{}{"all files", r.TotalFiles, r.FilesWithErrors, percent(r.ComplianceRate)})

	details := Sheet{Name: "Details", Header: []string{"model", "file", "field", "actual", "reason"}}
	for _, d := range r.Details {
		details.Rows = append(details.Rows, []interface{}{d.Model, d.File, d.Field, d.Actual, d.Reason})
	}
	if len(details.Rows) == 0 {
		details.Rows = append(details.Rows, []interface{}{"no naming errors"})
	}
	return []Sheet{summary, details}
}

func (r FillRateReport) Sheets() []Sheet {
	summary := Sheet{Name: "Summary", Header: []string{"table", "field", "display_name", "filled", "empty", "fill_rate"}}
	for _, row := range r.Rows {
		summary.Rows = append(summary.Rows, []interface{}{row.Table, row.Field, row.DisplayName, row.Filled, row.Empty, percent(row.Rate)})
	}

	details := Sheet{Name: "Details", Header: []string{"model", "component", "missing_field", "dbid"}}
	for _, m := range r.Missing {
		details.Rows = append(details.Rows, []interface{}{r.Model, m.Component, m.DisplayName, m.Dbid})
	}
	if len(details.Rows) == 0 {
		details.Rows = append(details.Rows, []interface{}{"no missing values"})
	}
	return []Sheet{summary, details}
}

// WriteXLSX writes one worksheet per sheet of report with a bold header row.
func WriteXLSX(report Tabular, w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	bold, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#E2E8F0"}},
	})
	if err != nil {
		return err
	}

	defaultSheet := f.GetSheetName(0)
	for _, s := range report.Sheets() {
		if _, err := f.NewSheet(s.Name); err != nil {
			return err
		}
		sw, err := f.NewStreamWriter(s.Name)
		if err != nil {
			return err
		}

		header := make([]interface{}, len(s.Header))
		for i, h := range s.Header {
			header[i] = excelize.Cell{Value: h, StyleID: bold}
		}
		if err := sw.SetRow("A1", header); err != nil {
			return err
		}
		for i, row := range s.Rows {
			cell, _ := excelize.CoordinatesToCellName(1, i+2)
			if err := sw.SetRow(cell, row); err != nil {
				return err
			}
		}
		if err := sw.Flush(); err != nil {
			return err
		}
	}
	if defaultSheet != "" {
		if err := f.DeleteSheet(defaultSheet); err != nil {
			return err
		}
	}
	return f.Write(w)
}
