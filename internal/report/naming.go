package report

import (
	"fmt"
	"math"
	"path"
	"strings"

	"bim-index-api/internal/catalog"
)

// baseName strips any directory and the extension: "a/b/X-Y.rvt" -> "X-Y".
// Blank input, or a path with no final element, gives "".
func baseName(file string) string {
	file = strings.TrimSpace(file)
	if file == "" {
		return ""
	}
	name := path.Base(strings.ReplaceAll(file, `\`, "/"))
	if name == "." || name == "/" {
		return ""
	}
	if i := strings.LastIndex(name, "."); i > 0 {
		name = name[:i]
	}
	return name
}

func rate(total, errors int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(total-errors)/float64(total)*1000) / 10
}

// NamingCompliance checks each file name against the nine-part convention
// and the active zone, level, type and role codes.
func NamingCompliance(files []string, refs catalog.ReferenceSet) ComplianceReport {
	counts := map[string]*FieldSummary{}
	for _, f := range namingFields {
		counts[f] = &FieldSummary{Field: f}
	}
	out := ComplianceReport{Details: []NamingIssue{}}

	for _, file := range files {
		name := baseName(file)
		if name == "" {
			continue
		}
		out.TotalFiles++

		parts := strings.Split(name, "-")
		counts[FieldFormat].Total++
		if len(parts) != NameParts {
			counts[FieldFormat].Errors++
			out.FilesWithErrors++
			out.Details = append(out.Details, NamingIssue{
				File:   name,
				Field:  FieldFormat,
				Actual: fmt.Sprintf("%d parts", len(parts)),
				Reason: fmt.Sprintf("expected %d parts", NameParts),
			})
			continue
		}

		checks := []struct {
			field string
			kind  catalog.CodeKind
			value string
		}{
			{FieldZone, catalog.KindZone, parts[2]},
			{FieldLevel, catalog.KindLevel, parts[3]},
			{FieldType, catalog.KindFileType, parts[5]},
			{FieldRole, catalog.KindRole, parts[6]},
		}
		failed := false
		for _, c := range checks {
			counts[c.field].Total++
			if refs.Lookup(c.kind, c.value) != nil {
				continue
			}
			counts[c.field].Errors++
			failed = true
			out.Details = append(out.Details, NamingIssue{
				File:   name,
				Field:  c.field,
				Actual: c.value,
				Reason: "undefined code",
			})
		}
		if failed {
			out.FilesWithErrors++
		}
	}

	for _, f := range namingFields {
		s := counts[f]
		s.Rate = rate(s.Total, s.Errors)
		out.Summary = append(out.Summary, *s)
	}
	out.ComplianceRate = rate(out.TotalFiles, out.FilesWithErrors)
	return out
}

// merge appends other into r, tagging its issues with model.
func (r *ComplianceReport) merge(model string, other ComplianceReport) {
	r.TotalFiles += other.TotalFiles
	r.FilesWithErrors += other.FilesWithErrors
	for _, d := range other.Details {
		d.Model = model
		r.Details = append(r.Details, d)
	}
	if len(r.Summary) == 0 {
		r.Summary = make([]FieldSummary, len(other.Summary))
		copy(r.Summary, other.Summary)
	} else {
		for i := range r.Summary {
			r.Summary[i].Total += other.Summary[i].Total
			r.Summary[i].Errors += other.Summary[i].Errors
		}
	}
	for i := range r.Summary {
		r.Summary[i].Rate = rate(r.Summary[i].Total, r.Summary[i].Errors)
	}
	r.ComplianceRate = rate(r.TotalFiles, r.FilesWithErrors)
}
