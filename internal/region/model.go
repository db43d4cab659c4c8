package region

import "time"

// Region is a spatial anchor entity of a model. Code references are nil when
// the token was unknown or inactive.
type Region struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ModelID   uint      `gorm:"not null;index:idx_region_model_dbid" json:"model_id"`
	Value     string    `gorm:"type:text;not null" json:"value"`
	Dbid      int64     `gorm:"not null;index:idx_region_model_dbid" json:"dbid"`
	Zone      string    `gorm:"size:32" json:"zone"`
	Level     string    `gorm:"size:32;index" json:"level"`
	Role      string    `gorm:"size:32" json:"role"`
	ZoneID    *uint     `gorm:"index" json:"zone_id"`
	RoleID    *uint     `gorm:"index" json:"role_id"`
	LevelID   *uint     `gorm:"index" json:"level_id"`
	CreatedAt time.Time `json:"created_at"`
}

func (Region) TableName() string { return "regions" }

// Selector picks regions by any combination of zone, role and level code.
type Selector struct {
	ZoneID *uint   `json:"zoneId"`
	RoleID *uint   `json:"roleId"`
	Level  *string `json:"level"`
}

func (s Selector) empty() bool {
	return s.ZoneID == nil && s.RoleID == nil && (s.Level == nil || *s.Level == "")
}

// Anchor is a resolved region used as a query root.
type Anchor struct {
	ModelID uint   `json:"model_id"`
	Dbid    int64  `json:"dbid"`
	Value   string `json:"value"`
}
