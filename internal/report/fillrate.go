package report

import (
	"strings"

	"bim-index-api/internal/materialize"

	"gorm.io/gorm"
)

const (
	cobiePrefix      = "COBie"
	unknownComponent = "unknown component"
)

// cobieField splits "COBie.Type.Category" into its table and field.
func cobieField(displayName string) (table, field string, ok bool) {
	parts := strings.Split(displayName, ".")
	if len(parts) != 3 || parts[0] != cobiePrefix || parts[1] == "" || parts[2] == "" {
		return "", "", false
	}
	return parts[1], parts[2], true
}

const blankValue = "TRIM(COALESCE(value, '')) = ''"

type fillCount struct {
	DisplayName string
	Total       int
	Filled      int
}

// fillRate counts filled and empty records per COBie display name of a model.
// Whitespace-only values count as empty.
func fillRate(db *gorm.DB, modelID uint) ([]FillRateRow, error) {
	var counts []fillCount
	err := db.Model(&materialize.ObjectRecord{}).
		Select("display_name, COUNT(*) AS total, SUM(CASE WHEN "+blankValue+" THEN 0 ELSE 1 END) AS filled").
		Where("model_id = ? AND display_name LIKE ?", modelID, cobiePrefix+".%").
		Group("display_name").
		Order("display_name ASC").
		Scan(&counts).Error
	if err != nil {
		return nil, err
	}

	out := []FillRateRow{}
	for _, c := range counts {
		table, field, ok := cobieField(c.DisplayName)
		if !ok {
			continue
		}
		out = append(out, FillRateRow{
			DisplayName: c.DisplayName,
			Table:       table,
			Field:       field,
			Filled:      c.Filled,
			Empty:       c.Total - c.Filled,
			Rate:        rate(c.Total, c.Total-c.Filled),
		})
	}
	return out, nil
}

// missingValues lists empty COBie records with the name of the component they
// belong to, taken from COBie.<Table>.Name or else the entity's Name row.
func missingValues(db *gorm.DB, modelID uint) ([]MissingValue, bool, error) {
	var empties []materialize.ObjectRecord
	err := db.Where("model_id = ? AND display_name LIKE ? AND "+blankValue, modelID, cobiePrefix+".%").
		Order("display_name ASC, dbid ASC").
		Limit(MaxMissingDetails + 1).
		Find(&empties).Error
	if err != nil {
		return nil, false, err
	}
	truncated := len(empties) > MaxMissingDetails
	if truncated {
		empties = empties[:MaxMissingDetails]
	}

	dbids := []int64{}
	seen := map[int64]bool{}
	for _, r := range empties {
		if !seen[r.Dbid] {
			seen[r.Dbid] = true
			dbids = append(dbids, r.Dbid)
		}
	}

	names := map[int64]map[string]string{}
	if len(dbids) > 0 {
		var rows []materialize.ObjectRecord
		err := db.Where("model_id = ? AND dbid IN ?", modelID, dbids).
			Where("(display_name = ? OR display_name LIKE ?)", "Name", cobiePrefix+".%.Name").
			Find(&rows).Error
		if err != nil {
			return nil, false, err
		}
		for _, r := range rows {
			if names[r.Dbid] == nil {
				names[r.Dbid] = map[string]string{}
			}
			names[r.Dbid][r.DisplayName] = r.Value
		}
	}

	out := make([]MissingValue, 0, len(empties))
	for _, r := range empties {
		component := unknownComponent
		table, _, _ := cobieField(r.DisplayName)
		if v := strings.TrimSpace(names[r.Dbid][cobiePrefix+"."+table+".Name"]); v != "" {
			component = v
		} else if v := strings.TrimSpace(names[r.Dbid]["Name"]); v != "" {
			component = v
		}
		out = append(out, MissingValue{Dbid: r.Dbid, Component: component, DisplayName: r.DisplayName})
	}
	return out, truncated, nil
}
