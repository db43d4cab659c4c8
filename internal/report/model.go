package report

const (
	FieldFormat = "filename format"
	FieldZone   = "zone"
	FieldLevel  = "level"
	FieldType   = "type"
	FieldRole   = "role"

	// NameParts is Project-Tender-Zone-Level-Location-Type-Role-Number-Revision.
	NameParts = 9

	// MaxMissingDetails caps the per-record rows of a fill-rate report.
	MaxMissingDetails = 1000
)

var namingFields = []string{FieldFormat, FieldZone, FieldLevel, FieldType, FieldRole}

type FieldSummary struct {
	Field  string  `json:"field"`
	Total  int     `json:"total"`
	Errors int     `json:"errors"`
	Rate   float64 `json:"rate"`
}

type NamingIssue struct {
	Model  string `json:"model,omitempty"`
	File   string `json:"file"`
	Field  string `json:"field"`
	Actual string `json:"actual"`
	Reason string `json:"reason"`
}

type ComplianceReport struct {
	TotalFiles      int            `json:"total_files"`
	FilesWithErrors int            `json:"files_with_errors"`
	ComplianceRate  float64        `json:"compliance_rate"`
	Summary         []FieldSummary `json:"summary"`
	Details         []NamingIssue  `json:"details"`
}

type FillRateRow struct {
	DisplayName string  `json:"display_name"`
	Table       string  `json:"table"`
	Field       string  `json:"field"`
	Filled      int     `json:"filled"`
	Empty       int     `json:"empty"`
	Rate        float64 `json:"rate"`
}

type MissingValue struct {
	Dbid        int64  `json:"dbid"`
	Component   string `json:"component"`
	DisplayName string `json:"display_name"`
}

type FillRateReport struct {
	Model     string         `json:"model"`
	Version   int            `json:"version"`
	Rows      []FillRateRow  `json:"rows"`
	Missing   []MissingValue `json:"missing"`
	Truncated bool           `json:"truncated"`
}

// NamingRequest selects file names directly, or the anchors of the named
// models. All picks every model.
type NamingRequest struct {
	Files  []string `json:"files"`
	Models []string `json:"models"`
	All    bool     `json:"all"`
}
