package catalog

import (
	"errors"
	"strings"
	"time"

	"bim-index-api/internal/apperror"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CatalogService struct {
	DB *gorm.DB
}

// ActiveConditions returns active conditions in catalog order. Classification
// ties are broken by this order, so it must stay stable.
func (cs *CatalogService) ActiveConditions() ([]Condition, error) {
	var out []Condition
	err := cs.DB.
		Where("is_active = ?", true).
		Order("priority DESC").
		Order("sort_order ASC").
		Order("id ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []Condition{}
	}
	return out, nil
}

// ConditionTree nests active conditions under their parents. Nodes whose
// parent is missing or inactive are returned as roots.
func (cs *CatalogService) ConditionTree() ([]Condition, error) {
	flat, err := cs.ActiveConditions()
	if err != nil {
		return nil, err
	}
	return buildTree(flat), nil
}

func buildTree(flat []Condition) []Condition {
	present := make(map[uint]bool, len(flat))
	for _, c := range flat {
		present[c.ID] = true
	}

	children := map[uint][]int{}
	var roots []int
	for i, c := range flat {
		if c.ParentID != nil && present[*c.ParentID] && *c.ParentID != c.ID {
			children[*c.ParentID] = append(children[*c.ParentID], i)
			continue
		}
		roots = append(roots, i)
	}

	visited := map[uint]bool{}
	var attach func(idx int) Condition
	attach = func(idx int) Condition {
		node := flat[idx]
		visited[node.ID] = true
		for _, ci := range children[node.ID] {
			if visited[flat[ci].ID] {
				continue
			}
			node.Children = append(node.Children, attach(ci))
		}
		return node
	}

	out := make([]Condition, 0, len(roots))
	for _, ri := range roots {
		out = append(out, attach(ri))
	}
	return out
}

func (cs *CatalogService) CreateCondition(in ConditionInput) (*Condition, error) {
	dn := trimPtr(in.DisplayName)
	val := trimPtr(in.Value)
	if dn == nil && val == nil {
		return nil, apperror.Validation("display_name or value is required", map[string]any{"field": "display_name"})
	}

	if in.ParentID != nil {
		var parent Condition
		if err := cs.DB.First(&parent, *in.ParentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, apperror.Validation("parent condition not found", map[string]any{"field": "parent_id"})
			}
			return nil, err
		}
	}

	active := true
	if in.IsActive != nil {
		active = *in.IsActive
	}
	order := in.Order
	if order <= 0 {
		order = 1
	}

	cond := Condition{
		ParentID:    in.ParentID,
		GroupName:   strings.TrimSpace(in.GroupName),
		DisplayName: dn,
		Value:       val,
		IsActive:    active,
		Priority:    in.Priority,
		Order:       order,
		Types:       datatypes.JSONSlice[string](in.Types),
		Description: in.Description,
	}
	if err := cs.DB.Create(&cond).Error; err != nil {
		return nil, err
	}
	return &cond, nil
}

// GetConditionsIfModified returns the active catalog unless nothing changed
// after since.
func (cs *CatalogService) GetConditionsIfModified(since *time.Time) (*ConditionsResult, error) {
	var latest Condition
	err := cs.DB.Order("updated_at DESC").First(&latest).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	lastModified := latest.UpdatedAt

	if since != nil && !lastModified.After(*since) {
		return &ConditionsResult{NotModified: true, LastModified: lastModified}, nil
	}

	conds, err := cs.ActiveConditions()
	if err != nil {
		return nil, err
	}
	return &ConditionsResult{LastModified: lastModified, Conditions: conds}, nil
}

func (cs *CatalogService) ReferenceCodes() (ReferenceSet, error) {
	rs := NewReferenceSet()

	load := func(table string, into map[string]uint) error {
		var rows []ReferenceCode
		if err := cs.DB.Table(table).Where("is_active = ?", true).Find(&rows).Error; err != nil {
			return err
		}
		for _, r := range rows {
			into[strings.TrimSpace(r.Code)] = r.ID
		}
		return nil
	}

	if err := load(ZoneCode{}.TableName(), rs.Zones); err != nil {
		return rs, err
	}
	if err := load(RoleCode{}.TableName(), rs.Roles); err != nil {
		return rs, err
	}
	if err := load(LevelCode{}.TableName(), rs.Levels); err != nil {
		return rs, err
	}
	if err := load(FileTypeCode{}.TableName(), rs.FileTypes); err != nil {
		return rs, err
	}
	return rs, nil
}

func (cs *CatalogService) ListCodes() (CodeTables, error) {
	var out CodeTables
	if err := cs.DB.Order("code ASC").Find(&out.Zones).Error; err != nil {
		return out, err
	}
	if err := cs.DB.Order("code ASC").Find(&out.Roles).Error; err != nil {
		return out, err
	}
	if err := cs.DB.Order("code ASC").Find(&out.Levels).Error; err != nil {
		return out, err
	}
	if err := cs.DB.Order("code ASC").Find(&out.FileTypes).Error; err != nil {
		return out, err
	}
	return out, nil
}

// SeedLevelCodes upserts the default level codes and returns how many were written.
func (cs *CatalogService) SeedLevelCodes() (int, error) {
	rows := make([]LevelCode, 0, len(defaultLevelCodes))
	for _, lc := range defaultLevelCodes {
		rows = append(rows, LevelCode{ReferenceCode{Code: lc.Code, Description: lc.Description, IsActive: true}})
	}

	err := cs.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "code"}},
		DoUpdates: clause.AssignmentColumns([]string{"description", "updated_at"}),
	}).Create(&rows).Error
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

func trimPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
