package catalog

import "time"

type CatalogServiceAPI interface {
	ActiveConditions() ([]Condition, error)
	ConditionTree() ([]Condition, error)
	CreateCondition(in ConditionInput) (*Condition, error)
	GetConditionsIfModified(since *time.Time) (*ConditionsResult, error)
	ReferenceCodes() (ReferenceSet, error)
	ListCodes() (CodeTables, error)
	SeedLevelCodes() (int, error)
}
