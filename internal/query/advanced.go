package query

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"bim-index-api/internal/apperror"
	"bim-index-api/internal/materialize"
	"bim-index-api/internal/util"

	"github.com/iancoleman/orderedmap"
	"gorm.io/gorm"
)

// lookupChunk bounds the size of IN lists sent to the database.
const lookupChunk = 500

type entityKey struct {
	ModelID uint
	Dbid    int64
}

type predicate struct {
	displayName string
	clause      string
	args        []any
}

func compileCondition(i int, c Condition) (predicate, error) {
	field := fmt.Sprintf("conditions[%d]", i)
	invalid := func(msg string) error {
		return apperror.Validation(msg, map[string]any{"field": field})
	}

	p := predicate{displayName: strings.TrimSpace(c.DisplayName)}
	if p.displayName == "" {
		return p, invalid("condition needs a display name")
	}

	value := ""
	if c.Value != nil {
		value = strings.TrimSpace(*c.Value)
	}
	number := func() (float64, error) {
		f, ok := util.ParseNumber(value)
		if !ok {
			return 0, invalid(fmt.Sprintf("%s needs a numeric value", c.Op))
		}
		return f, nil
	}

	switch Operation(strings.ToUpper(string(c.Op))) {
	case OpEQ:
		if value == "" {
			return p, invalid("EQ needs a value")
		}
		// A plain number compares numerically; anything else is a string match.
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			p.clause, p.args = "numeric_value = ?", []any{f}
		} else {
			p.clause, p.args = "value = ?", []any{value}
		}
	case OpNEQ:
		if value == "" {
			return p, invalid("NEQ needs a value")
		}
		p.clause, p.args = "value <> ?", []any{value}
	case OpCONTAINS:
		if value == "" {
			return p, invalid("CONTAINS needs a value")
		}
		p.clause, p.args = likeClause, []any{containsPattern(value)}
	case OpIN:
		vals := make([]string, 0, len(c.Values))
		for _, v := range c.Values {
			if v = strings.TrimSpace(v); v != "" {
				vals = append(vals, v)
			}
		}
		if len(vals) == 0 {
			return p, invalid("IN needs values")
		}
		p.clause, p.args = "value IN ?", []any{vals}
	case OpGT, OpGTE, OpLT, OpLTE:
		f, err := number()
		if err != nil {
			return p, err
		}
		ops := map[Operation]string{OpGT: ">", OpGTE: ">=", OpLT: "<", OpLTE: "<="}
		p.clause, p.args = "numeric_value "+ops[Operation(strings.ToUpper(string(c.Op)))]+" ?", []any{f}
	case OpBETWEEN:
		if c.Min == nil || c.Max == nil {
			return p, invalid("BETWEEN needs min and max")
		}
		if *c.Min > *c.Max {
			return p, invalid("BETWEEN min is greater than max")
		}
		p.clause, p.args = "numeric_value BETWEEN ? AND ?", []any{*c.Min, *c.Max}
	default:
		return p, invalid(fmt.Sprintf("unsupported operation %q", c.Op))
	}
	return p, nil
}

// Advanced intersects the entity sets matched by each condition, joins the
// survivors to their Name rows and returns one page of them.
func (e *Engine) Advanced(ctx context.Context, req AdvancedRequest) (*AdvancedPage, error) {
	started := time.Now()
	defer func() { e.Metrics.ObserveQuery("advanced", time.Since(started)) }()

	if len(req.Conditions) == 0 {
		return nil, apperror.Validation("at least one condition is required", map[string]any{"field": "conditions"})
	}
	preds := make([]predicate, 0, len(req.Conditions))
	for i, c := range req.Conditions {
		p, err := compileCondition(i, c)
		if err != nil {
			return nil, err
		}
		preds = append(preds, p)
	}
	page, size := normalizePage(req.Page, req.Size)

	db := e.DB.WithContext(ctx)
	var survivors map[entityKey]struct{}
	for _, p := range preds {
		q := db.Model(&materialize.ObjectRecord{}).
			Distinct("model_id", "dbid").
			Where("display_name = ?", p.displayName).
			Where(p.clause, p.args...)
		if len(req.ModelIDs) > 0 {
			q = q.Where("model_id IN ?", req.ModelIDs)
		}

		var keys []entityKey
		if err := q.Scan(&keys).Error; err != nil {
			return nil, apperror.Internal("advanced query", err)
		}
		matched := make(map[entityKey]struct{}, len(keys))
		for _, k := range keys {
			if survivors == nil {
				matched[k] = struct{}{}
				continue
			}
			if _, ok := survivors[k]; ok {
				matched[k] = struct{}{}
			}
		}
		survivors = matched
		if len(survivors) == 0 {
			break
		}
	}

	named, err := e.nameRows(db, survivors)
	if err != nil {
		return nil, apperror.Internal("advanced query", err)
	}
	rows := make([]AdvancedRow, 0, len(named))
	for _, r := range named {
		rows = append(rows, AdvancedRow{Dbid: r.Dbid, Name: r.Value, RootDbid: r.RootDbid, ParentID: r.ParentID, ModelID: r.ModelID})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].ModelID != rows[j].ModelID {
			return rows[i].ModelID < rows[j].ModelID
		}
		return rows[i].Dbid < rows[j].Dbid
	})

	start, end, totalPages := pageWindow(len(rows), page, size)
	out := &AdvancedPage{Data: rows[start:end], Page: page, Size: size, Total: len(rows), TotalPages: totalPages}

	if req.IncludeAncestors {
		if err := e.expandAncestors(db, out.Data); err != nil {
			return nil, apperror.Internal("expand ancestors", err)
		}
	}
	if req.WithAttributes {
		if err := e.attachAttributes(db, out.Data); err != nil {
			return nil, apperror.Internal("load attributes", err)
		}
	}

	ids := []uint{}
	seen := map[uint]bool{}
	for _, r := range out.Data {
		if !seen[r.ModelID] {
			seen[r.ModelID] = true
			ids = append(ids, r.ModelID)
		}
	}
	models, err := e.Models.ModelsByID(ids)
	if err != nil {
		return nil, apperror.Internal("load models", err)
	}
	for i := range out.Data {
		m := models[out.Data[i].ModelID]
		out.Data[i].ModelName = m.Name
		out.Data[i].ModelVersion = m.Version
	}
	return out, nil
}

func groupByModel(keys map[entityKey]struct{}) map[uint][]int64 {
	out := map[uint][]int64{}
	for k := range keys {
		out[k.ModelID] = append(out[k.ModelID], k.Dbid)
	}
	for _, dbids := range out {
		sort.Slice(dbids, func(i, j int) bool { return dbids[i] < dbids[j] })
	}
	return out
}

// inChunks calls fn for each model with at most lookupChunk dbids at a time.
func inChunks(keys map[entityKey]struct{}, fn func(modelID uint, dbids []int64) error) error {
	for modelID, dbids := range groupByModel(keys) {
		for start := 0; start < len(dbids); start += lookupChunk {
			end := min(start+lookupChunk, len(dbids))
			if err := fn(modelID, dbids[start:end]); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *Engine) nameRows(db *gorm.DB, keys map[entityKey]struct{}) ([]materialize.ObjectRecord, error) {
	out := []materialize.ObjectRecord{}
	err := inChunks(keys, func(modelID uint, dbids []int64) error {
		var chunk []materialize.ObjectRecord
		if err := db.Where("model_id = ? AND display_name = ? AND dbid IN ?", modelID, nameAttribute, dbids).
			Order("id ASC").
			Find(&chunk).Error; err != nil {
			return err
		}
		seen := map[int64]bool{}
		for _, r := range chunk {
			if seen[r.Dbid] {
				continue
			}
			seen[r.Dbid] = true
			out = append(out, r)
		}
		return nil
	})
	return out, err
}

type ancestorNode struct {
	name   string
	parent *int64
}

// expandAncestors attaches each row's parent chain, nearest first, bounded to
// MaxAncestorHops. Cycles end the chain.
func (e *Engine) expandAncestors(db *gorm.DB, rows []AdvancedRow) error {
	known := map[entityKey]ancestorNode{}
	for _, r := range rows {
		known[entityKey{r.ModelID, r.Dbid}] = ancestorNode{name: r.Name, parent: r.ParentID}
	}
	tried := map[entityKey]bool{}

	for hop := 0; hop < MaxAncestorHops; hop++ {
		missing := map[entityKey]struct{}{}
		for k, n := range known {
			if n.parent == nil {
				continue
			}
			pk := entityKey{k.ModelID, *n.parent}
			if _, ok := known[pk]; ok || tried[pk] {
				continue
			}
			missing[pk] = struct{}{}
			tried[pk] = true
		}
		if len(missing) == 0 {
			break
		}

		found, err := e.nameRows(db, missing)
		if err != nil {
			return err
		}
		for _, r := range found {
			known[entityKey{r.ModelID, r.Dbid}] = ancestorNode{name: r.Value, parent: r.ParentID}
		}
	}

	for i := range rows {
		visited := map[int64]bool{rows[i].Dbid: true}
		parent := rows[i].ParentID
		for depth := 1; depth <= MaxAncestorHops && parent != nil; depth++ {
			if visited[*parent] {
				break
			}
			visited[*parent] = true
			n, ok := known[entityKey{rows[i].ModelID, *parent}]
			if !ok {
				break
			}
			rows[i].Ancestors = append(rows[i].Ancestors, Ancestor{Dbid: *parent, Name: n.name, Depth: depth})
			parent = n.parent
		}
	}
	return nil
}

func (e *Engine) attachAttributes(db *gorm.DB, rows []AdvancedRow) error {
	keys := make(map[entityKey]struct{}, len(rows))
	for _, r := range rows {
		keys[entityKey{r.ModelID, r.Dbid}] = struct{}{}
	}

	attrs := map[entityKey]*orderedmap.OrderedMap{}
	err := inChunks(keys, func(modelID uint, dbids []int64) error {
		var chunk []materialize.ObjectRecord
		if err := db.Where("model_id = ? AND dbid IN ?", modelID, dbids).
			Order("id ASC").
			Find(&chunk).Error; err != nil {
			return err
		}
		for _, r := range chunk {
			k := entityKey{r.ModelID, r.Dbid}
			om, ok := attrs[k]
			if !ok {
				om = orderedmap.New()
				attrs[k] = om
			}
			if _, exists := om.Get(r.DisplayName); !exists {
				om.Set(r.DisplayName, r.Value)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	for i := range rows {
		if om, ok := attrs[entityKey{rows[i].ModelID, rows[i].Dbid}]; ok {
			rows[i].Attributes = om
		} else {
			rows[i].Attributes = orderedmap.New()
		}
	}
	return nil
}
