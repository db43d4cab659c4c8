package eav

import (
	"sort"
	"strconv"
	"strings"

	"bim-index-api/internal/apperror"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	// NameAttribute is the display name of an entity's name property.
	NameAttribute = "Name"
	// ParentCategory tags attributes whose value is the parent entity id.
	ParentCategory = "__parent__"
)

var requiredTables = []string{"_objects_id", "_objects_eav", "_objects_attr", "_objects_val"}

// Row is one entity/attribute/value triple.
type Row struct {
	EntityID    int64  `json:"entity_id"`
	Category    string `json:"category"`
	DisplayName string `json:"display_name"`
	Value       string `json:"value"`
}

// Filter narrows a query on the attribute display name and value columns.
type Filter interface {
	Apply(db *gorm.DB, displayCol, valueCol string) *gorm.DB
}

// Extractor reads a derivative property database.
type Extractor struct {
	db *gorm.DB
}

// Open opens a derivative database read-only and checks its schema.
func Open(path string) (*Extractor, error) {
	db, err := gorm.Open(sqlite.Open("file:"+path+"?mode=ro"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, apperror.Extraction("failed to open derivative database", err)
	}
	e := &Extractor{db: db}

	for _, tbl := range requiredTables {
		var n int64
		err := db.Table("sqlite_master").Where("type = ? AND name = ?", "table", tbl).Count(&n).Error
		if err != nil {
			_ = e.Close()
			return nil, apperror.Extraction("failed to read derivative database", err)
		}
		if n == 0 {
			_ = e.Close()
			return nil, apperror.Extraction("derivative database is missing table "+tbl, nil)
		}
	}
	return e, nil
}

func (e *Extractor) Close() error {
	sqlDB, err := e.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ValueExpr is the text rendering of a property value. The value column has
// no declared type and stores numbers as INTEGER or REAL, so filters compare
// against this expression rather than the raw column.
const ValueExpr = "COALESCE(CAST(val.value AS TEXT), '')"

func (e *Extractor) triples() *gorm.DB {
	return e.db.Table("_objects_eav AS eav").
		Select("eav.entity_id AS entity_id, " +
			"COALESCE(attr.category, '') AS category, " +
			"COALESCE(attr.display_name, '') AS display_name, " +
			ValueExpr+" AS value").
		Joins("JOIN _objects_attr AS attr ON eav.attribute_id = attr.id").
		Joins("JOIN _objects_val AS val ON eav.value_id = val.id")
}

func (e *Extractor) scan(q *gorm.DB, what string) ([]Row, error) {
	rows := []Row{}
	if err := q.Order("eav.entity_id ASC, attr.id ASC").Scan(&rows).Error; err != nil {
		return nil, apperror.Extraction("failed to extract "+what, err)
	}
	return rows, nil
}

// ExtractCategorizable returns the triples whose (display name, value) pair
// satisfies f.
func (e *Extractor) ExtractCategorizable(f Filter) ([]Row, error) {
	return e.scan(f.Apply(e.triples(), "attr.display_name", ValueExpr), "categorizable rows")
}

// ExtractAnchors returns Name rows whose value starts with prefix.
func (e *Extractor) ExtractAnchors(prefix string) ([]Row, error) {
	q := e.triples().
		Where("attr.display_name = ?", NameAttribute).
		Where(ValueExpr+` LIKE ? ESCAPE '\'`, escapeLike(prefix)+"%")
	return e.scan(q, "anchors")
}

// ExtractParentEdges maps each entity to its parent. When an entity carries
// several parent rows, the first one wins.
func (e *Extractor) ExtractParentEdges() (map[int64]int64, error) {
	type edge struct {
		EntityID int64
		Value    string
	}
	var edges []edge
	err := e.db.Raw(`SELECT DISTINCT eav.entity_id AS entity_id, COALESCE(CAST(val.value AS TEXT), '') AS value
		FROM _objects_eav AS eav
		JOIN _objects_attr AS attr ON eav.attribute_id = attr.id
		JOIN _objects_val AS val ON eav.value_id = val.id
		WHERE attr.category = ?
		ORDER BY eav.entity_id ASC, value ASC`, ParentCategory).Scan(&edges).Error
	if err != nil {
		return nil, apperror.Extraction("failed to extract parent edges", err)
	}

	out := make(map[int64]int64, len(edges))
	for _, ed := range edges {
		parent, err := strconv.ParseInt(strings.TrimSpace(ed.Value), 10, 64)
		if err != nil {
			continue
		}
		if _, ok := out[ed.EntityID]; !ok {
			out[ed.EntityID] = parent
		}
	}
	return out, nil
}

// ExtractWhitelistedValues returns every non-empty value whose display name is
// in whitelist or not in exclude.
func (e *Extractor) ExtractWhitelistedValues(whitelist, exclude []string) ([]Row, error) {
	q := e.triples().Where("val.value IS NOT NULL AND val.value <> ''")
	switch {
	case len(exclude) == 0:
	case len(whitelist) == 0:
		q = q.Where("attr.display_name NOT IN ?", exclude)
	default:
		q = q.Where("(attr.display_name IN ? OR attr.display_name NOT IN ?)", whitelist, exclude)
	}
	return e.scan(q, "whitelisted values")
}

// ExtractEntityIDs returns every distinct entity id, ascending.
func (e *Extractor) ExtractEntityIDs() ([]int64, error) {
	ids := []int64{}
	err := e.db.Raw("SELECT DISTINCT entity_id FROM _objects_eav ORDER BY entity_id ASC").Scan(&ids).Error
	if err != nil {
		return nil, apperror.Extraction("failed to extract entity ids", err)
	}
	return ids, nil
}

// PropertyChange is one property that differs between two databases. A nil
// side means the property is absent there.
type PropertyChange struct {
	EntityID    int64   `json:"entity_id"`
	Category    string  `json:"category"`
	DisplayName string  `json:"display_name"`
	From        *string `json:"from"`
	To          *string `json:"to"`
}

type propertyKey struct {
	entity      int64
	category    string
	displayName string
}

func (e *Extractor) properties() (map[propertyKey]string, error) {
	var rows []Row
	if err := e.triples().Scan(&rows).Error; err != nil {
		return nil, apperror.Extraction("failed to read properties", err)
	}
	out := make(map[propertyKey]string, len(rows))
	for _, r := range rows {
		out[propertyKey{r.EntityID, r.Category, r.DisplayName}] = r.Value
	}
	return out, nil
}

// Diff compares two databases of the same model property by property.
func Diff(from, to *Extractor) ([]PropertyChange, error) {
	a, err := from.properties()
	if err != nil {
		return nil, err
	}
	b, err := to.properties()
	if err != nil {
		return nil, err
	}

	changes := []PropertyChange{}
	for k, av := range a {
		bv, ok := b[k]
		switch {
		case !ok:
			changes = append(changes, PropertyChange{EntityID: k.entity, Category: k.category, DisplayName: k.displayName, From: ptr(av)})
		case av != bv:
			changes = append(changes, PropertyChange{EntityID: k.entity, Category: k.category, DisplayName: k.displayName, From: ptr(av), To: ptr(bv)})
		}
	}
	for k, bv := range b {
		if _, ok := a[k]; !ok {
			changes = append(changes, PropertyChange{EntityID: k.entity, Category: k.category, DisplayName: k.displayName, To: ptr(bv)})
		}
	}

	sort.Slice(changes, func(i, j int) bool {
		x, y := changes[i], changes[j]
		if x.EntityID != y.EntityID {
			return x.EntityID < y.EntityID
		}
		if x.Category != y.Category {
			return x.Category < y.Category
		}
		return x.DisplayName < y.DisplayName
	})
	return changes, nil
}

func ptr(s string) *string { return &s }

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
