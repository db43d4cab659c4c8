package catalog

import (
	"time"

	"gorm.io/datatypes"
)

// Condition is one classification rule of the catalog tree. A row matches when
// (display_name, value) both equal when both are set, or the single set field
// equals when the other is null.
type Condition struct {
	ID          uint                        `gorm:"primaryKey" json:"id"`
	ParentID    *uint                       `gorm:"index" json:"parent_id"`
	GroupName   string                      `gorm:"size:255;index" json:"group_name"`
	DisplayName *string                     `gorm:"type:text" json:"display_name"`
	Value       *string                     `gorm:"type:text" json:"value"`
	IsActive    bool                        `gorm:"not null" json:"is_active"`
	Priority    int                         `gorm:"not null;default:0" json:"priority"`
	Order       int                         `gorm:"column:sort_order;not null" json:"order"`
	Types       datatypes.JSONSlice[string] `json:"types"`
	Description *string                     `gorm:"type:text" json:"description"`
	CreatedAt   time.Time                   `json:"created_at"`
	UpdatedAt   time.Time                   `gorm:"autoUpdateTime" json:"updated_at"`

	Children []Condition `gorm:"-" json:"children,omitempty"`
}

func (Condition) TableName() string { return "conditions" }

// Usable reports whether the condition constrains at least one field.
func (c Condition) Usable() bool {
	return (c.DisplayName != nil && *c.DisplayName != "") || (c.Value != nil && *c.Value != "")
}

type ConditionInput struct {
	ParentID    *uint    `json:"parent_id"`
	GroupName   string   `json:"group_name"`
	DisplayName *string  `json:"display_name"`
	Value       *string  `json:"value"`
	IsActive    *bool    `json:"is_active"`
	Priority    int      `json:"priority"`
	Order       int      `json:"order"`
	Types       []string `json:"types"`
	Description *string  `json:"description"`
}

type ConditionsResult struct {
	NotModified  bool        `json:"not_modified"`
	LastModified time.Time   `json:"last_modified"`
	Conditions   []Condition `json:"conditions,omitempty"`
}

// ReferenceCode is the shared shape of the zone/role/level/file-type code tables.
type ReferenceCode struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Code        string    `gorm:"size:32;uniqueIndex;not null" json:"code"`
	Description string    `gorm:"type:text" json:"description"`
	IsActive    bool      `gorm:"not null" json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type ZoneCode struct{ ReferenceCode }

func (ZoneCode) TableName() string { return "zone_codes" }

type RoleCode struct{ ReferenceCode }

func (RoleCode) TableName() string { return "role_codes" }

type LevelCode struct{ ReferenceCode }

func (LevelCode) TableName() string { return "level_codes" }

type FileTypeCode struct{ ReferenceCode }

func (FileTypeCode) TableName() string { return "file_type_codes" }

type CodeKind string

const (
	KindZone     CodeKind = "zone"
	KindRole     CodeKind = "role"
	KindLevel    CodeKind = "level"
	KindFileType CodeKind = "file_type"
)

// ReferenceSet holds the active codes of every table keyed by code.
type ReferenceSet struct {
	Zones     map[string]uint
	Roles     map[string]uint
	Levels    map[string]uint
	FileTypes map[string]uint
}

func NewReferenceSet() ReferenceSet {
	return ReferenceSet{
		Zones:     map[string]uint{},
		Roles:     map[string]uint{},
		Levels:    map[string]uint{},
		FileTypes: map[string]uint{},
	}
}

// Lookup returns the id of an active code, or nil when unknown or inactive.
func (rs ReferenceSet) Lookup(kind CodeKind, code string) *uint {
	var m map[string]uint
	switch kind {
	case KindZone:
		m = rs.Zones
	case KindRole:
		m = rs.Roles
	case KindLevel:
		m = rs.Levels
	case KindFileType:
		m = rs.FileTypes
	}
	id, ok := m[code]
	if !ok {
		return nil
	}
	return &id
}

type CodeTables struct {
	Zones     []ZoneCode     `json:"zones"`
	Roles     []RoleCode     `json:"roles"`
	Levels    []LevelCode    `json:"levels"`
	FileTypes []FileTypeCode `json:"file_types"`
}

var defaultLevelCodes = []struct {
	Code        string
	Description string
}{
	{"RF", "Roof"},
	{"4F", "Arrivals"},
	{"3F", "Departures / MFB"},
	{"2F", "Code C contact / MFB Link / Offices / MBE"},
	{"1M", "P4"},
	{"1F", "Apron / Baggage / Reclaim / MBE"},
	{"BM", "Baggage RoW"},
	{"B1", "Parking"},
	{"B2", "MRT ticketing / Parking / BHS"},
	{"B3", "MRT platform / MRT Back of House"},
	{"XX", "Undefined"},
}
