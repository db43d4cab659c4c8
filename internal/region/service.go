package region

import (
	"fmt"
	"strings"

	"bim-index-api/internal/apperror"

	"gorm.io/gorm"
)

type RegionService struct {
	DB *gorm.DB
}

// ReplaceForModel swaps the model's regions in one transaction.
func (rs *RegionService) ReplaceForModel(modelID uint, regions []Region) (int, error) {
	rows := make([]Region, len(regions))
	for i, r := range regions {
		r.ID = 0
		r.ModelID = modelID
		rows[i] = r
	}

	err := rs.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("model_id = ?", modelID).Delete(&Region{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.CreateInBatches(rows, 1000).Error
	})
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

func (rs *RegionService) ListForModel(modelName string) ([]Region, error) {
	out := []Region{}
	err := rs.DB.Model(&Region{}).
		Joins("JOIN bim_models ON bim_models.id = regions.model_id").
		Where("bim_models.name = ?", strings.TrimSpace(modelName)).
		Order("regions.value ASC, regions.dbid ASC").
		Find(&out).Error
	return out, err
}

// Resolve maps each selector to its anchors. Every selector must match at
// least one region; the offending indexes are reported otherwise.
func (rs *RegionService) Resolve(selectors []Selector) ([]Anchor, error) {
	if len(selectors) == 0 {
		return nil, apperror.Validation("at least one region selector is required", map[string]any{"field": "regions"})
	}

	type key struct {
		model uint
		dbid  int64
	}
	seen := map[key]bool{}
	anchors := []Anchor{}
	var invalid []string

	for i, s := range selectors {
		field := fmt.Sprintf("regions[%d]", i)
		if s.empty() {
			invalid = append(invalid, field)
			continue
		}

		q := rs.DB.Model(&Region{}).Select("model_id, dbid, value")
		if s.ZoneID != nil {
			q = q.Where("zone_id = ?", *s.ZoneID)
		}
		if s.RoleID != nil {
			q = q.Where("role_id = ?", *s.RoleID)
		}
		if s.Level != nil && *s.Level != "" {
			q = q.Where("level = ?", strings.TrimSpace(*s.Level))
		}

		var found []Anchor
		if err := q.Order("model_id ASC, dbid ASC").Scan(&found).Error; err != nil {
			return nil, err
		}
		if len(found) == 0 {
			invalid = append(invalid, field)
			continue
		}
		for _, a := range found {
			k := key{a.ModelID, a.Dbid}
			if seen[k] {
				continue
			}
			seen[k] = true
			anchors = append(anchors, a)
		}
	}

	if len(invalid) > 0 {
		return nil, apperror.Validation("region selectors matched no anchors", map[string]any{"fields": invalid})
	}
	return anchors, nil
}
