package categorize

import (
	"gorm.io/gorm"
)

type CategoryService struct {
	DB *gorm.DB
}

// ReplaceForModel swaps the model's categories in one transaction.
func (cs *CategoryService) ReplaceForModel(modelID uint, candidates []Candidate) (int, error) {
	rows := make([]Category, 0, len(candidates))
	for _, c := range candidates {
		rows = append(rows, Category{
			ModelID:     modelID,
			ConditionID: c.ConditionID,
			DisplayName: c.DisplayName,
			Value:       c.Value,
			IsActive:    true,
		})
	}

	err := cs.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("model_id = ?", modelID).Delete(&Category{}).Error; err != nil {
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

func (cs *CategoryService) ListForModel(modelID uint) ([]Category, error) {
	out := []Category{}
	err := cs.DB.Where("model_id = ? AND is_active = ?", modelID, true).
		Order("display_name ASC, value ASC").
		Find(&out).Error
	return out, err
}

// Distinct lists active (display name, value) pairs with the number of models carrying each.
func (cs *CategoryService) Distinct() ([]CategoryOption, error) {
	out := []CategoryOption{}
	err := cs.DB.Model(&Category{}).
		Select("display_name, value, COUNT(DISTINCT model_id) AS models").
		Where("is_active = ?", true).
		Group("display_name, value").
		Order("display_name ASC, value ASC").
		Scan(&out).Error
	return out, err
}
