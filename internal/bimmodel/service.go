package bimmodel

import (
	"errors"
	"fmt"
	"strings"

	"bim-index-api/internal/apperror"
	"bim-index-api/internal/util"

	"gorm.io/gorm"
)

type ModelService struct {
	DB *gorm.DB
}

func (ms *ModelService) GetByName(name string) (*BimModel, error) {
	var m BimModel
	if err := ms.DB.Where("name = ?", strings.TrimSpace(name)).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound(fmt.Sprintf("model %q not found", name))
		}
		return nil, err
	}
	return &m, nil
}

func (ms *ModelService) GetOrCreate(name string) (*BimModel, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperror.Validation("model name is required", map[string]any{"field": "model"})
	}

	m := BimModel{Name: name, Tender: util.TenderName(name)}
	if err := ms.DB.Where(BimModel{Name: name}).FirstOrCreate(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// RecordVersion stores the artifact paths of a new version and moves the
// model pointers to it. Versions not newer than the current one are rejected.
func (ms *ModelService) RecordVersion(name string, rec VersionRecord) error {
	return ms.DB.Transaction(func(tx *gorm.DB) error {
		var m BimModel
		if err := tx.Where("name = ?", name).First(&m).Error; err != nil {
			return err
		}
		if rec.Version <= m.Version {
			return apperror.Validation(
				fmt.Sprintf("version %d is not newer than current version %d", rec.Version, m.Version),
				map[string]any{"field": "version"},
			)
		}

		if err := tx.Model(&m).Updates(map[string]any{
			"version":       rec.Version,
			"urn":           rec.Urn,
			"upload_path":   rec.Paths.Upload,
			"package_path":  rec.Paths.Package,
			"database_path": rec.Paths.Database,
		}).Error; err != nil {
			return err
		}

		v := BimModelVersion{
			ModelID:      m.ID,
			Version:      rec.Version,
			Urn:          rec.Urn,
			UploadPath:   rec.Paths.Upload,
			PackagePath:  rec.Paths.Package,
			DatabasePath: rec.Paths.Database,
			RevertedFrom: rec.RevertedFrom,
			InsertedBy:   rec.UserID,
		}
		return tx.Create(&v).Error
	})
}

func (ms *ModelService) MarkProcessed(modelID uint, version int) error {
	return ms.DB.Model(&BimModel{}).
		Where("id = ?", modelID).
		Update("last_processed_version", version).Error
}

func (ms *ModelService) History(name string) ([]BimModelVersion, error) {
	m, err := ms.GetByName(name)
	if err != nil {
		return nil, err
	}
	var out []BimModelVersion
	if err := ms.DB.Where("model_id = ?", m.ID).Order("version DESC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (ms *ModelService) List(tender string) ([]BimModel, error) {
	q := ms.DB.Order("name ASC")
	if t := strings.TrimSpace(tender); t != "" {
		q = q.Where("tender = ?", t)
	}
	var out []BimModel
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// ModelsByID loads models for rendering query results.
func (ms *ModelService) ModelsByID(ids []uint) (map[uint]BimModel, error) {
	out := make(map[uint]BimModel, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []BimModel
	if err := ms.DB.Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, m := range rows {
		out[m.ID] = m
	}
	return out, nil
}
