package query

import (
	"bim-index-api/internal/region"

	"github.com/iancoleman/orderedmap"
)

type Operation string

const (
	OpEQ       Operation = "EQ"
	OpNEQ      Operation = "NEQ"
	OpCONTAINS Operation = "CONTAINS"
	OpIN       Operation = "IN"
	OpGT       Operation = "GT"
	OpGTE      Operation = "GTE"
	OpLT       Operation = "LT"
	OpLTE      Operation = "LTE"
	OpBETWEEN  Operation = "BETWEEN"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 200

	// MaxAncestorHops bounds parent expansion in advanced queries.
	MaxAncestorHops = 5

	DefaultExportChunkSize = 2000

	nameAttribute = "Name"
)

type CategoryFilter struct {
	DisplayName string `json:"displayName"`
	Value       string `json:"value"`
}

type FuzzyFilter struct {
	Label       string  `json:"label"`
	DisplayName *string `json:"displayName"`
}

type QueryRequest struct {
	Regions      []region.Selector `json:"regions"`
	Categories   []CategoryFilter  `json:"categories"`
	FuzzyKeyword *FuzzyFilter      `json:"fuzzyKeyword"`
	Page         int               `json:"page"`
	Size         int               `json:"size"`
}

type ObjectRow struct {
	Dbid         int64  `json:"dbid"`
	Value        string `json:"value"`
	DisplayName  string `json:"displayName"`
	RootDbid     *int64 `json:"rootDbid"`
	ModelName    string `json:"modelName"`
	ModelVersion int    `json:"modelVersion"`
}

type ObjectPage struct {
	Data       []ObjectRow `json:"data"`
	Page       int         `json:"page"`
	Size       int         `json:"size"`
	Total      int         `json:"total"`
	TotalPages int         `json:"total_pages"`
}

// Condition is one typed predicate of an advanced query. Numeric operations
// compare against the record's numeric projection.
type Condition struct {
	DisplayName string    `json:"displayName"`
	Op          Operation `json:"op"`
	Value       *string   `json:"value"`
	Values      []string  `json:"values"`
	Min         *float64  `json:"min"`
	Max         *float64  `json:"max"`
}

type AdvancedRequest struct {
	Conditions       []Condition `json:"conditions"`
	ModelIDs         []uint      `json:"modelIds"`
	IncludeAncestors bool        `json:"includeAncestors"`
	WithAttributes   bool        `json:"withAttributes"`
	Page             int         `json:"page"`
	Size             int         `json:"size"`
}

type Ancestor struct {
	Dbid  int64  `json:"dbid"`
	Name  string `json:"name"`
	Depth int    `json:"depth"`
}

type AdvancedRow struct {
	Dbid         int64                  `json:"dbid"`
	Name         string                 `json:"name"`
	RootDbid     *int64                 `json:"rootDbid"`
	ParentID     *int64                 `json:"parentId"`
	ModelID      uint                   `json:"modelId"`
	ModelName    string                 `json:"modelName"`
	ModelVersion int                    `json:"modelVersion"`
	Ancestors    []Ancestor             `json:"ancestors,omitempty"`
	Attributes   *orderedmap.OrderedMap `json:"attributes,omitempty"`
}

type AdvancedPage struct {
	Data       []AdvancedRow `json:"data"`
	Page       int           `json:"page"`
	Size       int           `json:"size"`
	Total      int           `json:"total"`
	TotalPages int           `json:"total_pages"`
}

// ObjectDetail is every attribute of one entity in materialized order.
type ObjectDetail struct {
	Dbid         int64                  `json:"dbid"`
	Name         string                 `json:"name"`
	RootDbid     *int64                 `json:"rootDbid"`
	ParentID     *int64                 `json:"parentId"`
	ModelName    string                 `json:"modelName"`
	ModelVersion int                    `json:"modelVersion"`
	Attributes   *orderedmap.OrderedMap `json:"attributes"`
}
