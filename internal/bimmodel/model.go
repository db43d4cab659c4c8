package bimmodel

import "time"

// BimModel is one logical model with pointers to its current artifacts.
// Version never decreases.
type BimModel struct {
	ID                   uint      `gorm:"primaryKey" json:"id"`
	Name                 string    `gorm:"size:255;uniqueIndex;not null" json:"name"`
	Tender               string    `gorm:"size:255;index" json:"tender"`
	Version              int       `gorm:"not null;default:0" json:"version"`
	Urn                  string    `gorm:"type:text" json:"urn"`
	UploadPath           string    `gorm:"type:text" json:"upload_path"`
	PackagePath          string    `gorm:"type:text" json:"package_path"`
	DatabasePath         string    `gorm:"type:text" json:"database_path"`
	LastProcessedVersion int       `gorm:"not null;default:0" json:"last_processed_version"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

func (BimModel) TableName() string { return "bim_models" }

type BimModelVersion struct {
	ID           uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	ModelID      uint      `gorm:"not null;uniqueIndex:idx_model_version" json:"model_id"`
	Version      int       `gorm:"not null;uniqueIndex:idx_model_version" json:"version"`
	Urn          string    `gorm:"type:text" json:"urn"`
	UploadPath   string    `gorm:"type:text" json:"upload_path"`
	PackagePath  string    `gorm:"type:text" json:"package_path"`
	DatabasePath string    `gorm:"type:text" json:"database_path"`
	RevertedFrom *int      `json:"reverted_from,omitempty"`
	InsertedBy   uint      `gorm:"not null;default:0" json:"inserted_by"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (BimModelVersion) TableName() string { return "bim_model_versions" }

// ArtifactPaths points at the three artifact families of one version.
type ArtifactPaths struct {
	Upload   string `json:"upload"`
	Package  string `json:"package"`
	Database string `json:"database"`
}

type VersionRecord struct {
	Version      int
	Urn          string
	Paths        ArtifactPaths
	RevertedFrom *int
	UserID       uint
}
