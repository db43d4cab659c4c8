package region

import (
	"fmt"

	"bim-index-api/internal/apperror"
	"bim-index-api/internal/catalog"
	"bim-index-api/internal/eav"
	"bim-index-api/internal/util"
)

// Token positions in Project-Tender-Zone-Level-Location-Type-Role-Number.
const (
	zoneToken  = 2
	levelToken = 3
	roleToken  = 6
	minTokens  = 7
)

// ResolveRegions turns anchor Name rows into regions. Values with too few
// tokens are skipped; unknown codes leave a nil reference. Both produce a warning.
func ResolveRegions(anchors []eav.Row, refs catalog.ReferenceSet) ([]Region, []apperror.Warning) {
	regions := make([]Region, 0, len(anchors))
	var warnings []apperror.Warning

	warn := func(value, msg string) {
		warnings = append(warnings, apperror.Warning{Stage: "region", Subject: value, Message: msg})
	}

	for _, a := range anchors {
		parts := util.SplitName(a.Value)
		if len(parts) < minTokens {
			warn(a.Value, fmt.Sprintf("expected at least %d name tokens, got %d", minTokens, len(parts)))
			continue
		}

		r := Region{
			Value: a.Value,
			Dbid:  a.EntityID,
			Zone:  parts[zoneToken],
			Level: parts[levelToken],
			Role:  parts[roleToken],
		}
		if r.ZoneID = refs.Lookup(catalog.KindZone, r.Zone); r.ZoneID == nil {
			warn(a.Value, fmt.Sprintf("unknown zone code %q", r.Zone))
		}
		if r.LevelID = refs.Lookup(catalog.KindLevel, r.Level); r.LevelID == nil {
			warn(a.Value, fmt.Sprintf("unknown level code %q", r.Level))
		}
		if r.RoleID = refs.Lookup(catalog.KindRole, r.Role); r.RoleID == nil {
			warn(a.Value, fmt.Sprintf("unknown role code %q", r.Role))
		}
		regions = append(regions, r)
	}
	return regions, warnings
}
