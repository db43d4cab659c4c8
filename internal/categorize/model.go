package categorize

import "time"

// Category is a classified value of one model, replaced on every ingestion.
type Category struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	ModelID     uint      `gorm:"not null;index;uniqueIndex:idx_category_model_condition_value" json:"model_id"`
	ConditionID uint      `gorm:"not null;uniqueIndex:idx_category_model_condition_value" json:"condition_id"`
	DisplayName string    `gorm:"type:text" json:"display_name"`
	Value       string    `gorm:"type:text;uniqueIndex:idx_category_model_condition_value" json:"value"`
	IsActive    bool      `gorm:"not null" json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}

func (Category) TableName() string { return "categories" }

// CategoryOption is one distinct (display name, value) across models.
type CategoryOption struct {
	DisplayName string `json:"display_name"`
	Value       string `json:"value"`
	Models      int64  `json:"models"`
}
