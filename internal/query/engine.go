package query

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"bim-index-api/internal/apperror"
	"bim-index-api/internal/bimmodel"
	"bim-index-api/internal/logger"
	"bim-index-api/internal/materialize"
	"bim-index-api/internal/metrics"
	"bim-index-api/internal/region"

	"github.com/iancoleman/orderedmap"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Engine serves read-only queries over materialized objects. It is safe for
// concurrent use.
type Engine struct {
	DB              *gorm.DB
	Regions         region.RegionServiceAPI
	Models          bimmodel.ModelServiceAPI
	Cache           Cache
	Metrics         *metrics.Metrics
	Log             *zap.Logger
	ExportChunkSize int
}

func normalizePage(page, size int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	return page, size
}

func pageWindow(total, page, size int) (start, end, totalPages int) {
	totalPages = (total + size - 1) / size
	start = (page - 1) * size
	if start > total {
		start = total
	}
	end = min(start+size, total)
	return start, end, totalPages
}

func paginate(rows []ObjectRow, page, size int) *ObjectPage {
	start, end, totalPages := pageWindow(len(rows), page, size)
	data := make([]ObjectRow, end-start)
	copy(data, rows[start:end])
	return &ObjectPage{Data: data, Page: page, Size: size, Total: len(rows), TotalPages: totalPages}
}

type cacheKeyInput struct {
	Regions    []region.Selector `json:"regions"`
	Categories []CategoryFilter  `json:"categories"`
	Fuzzy      *FuzzyFilter      `json:"fuzzy"`
}

// CacheKey identifies the full result set of req. Paging is not part of it.
func CacheKey(req QueryRequest) string {
	in := cacheKeyInput{
		Regions:    make([]region.Selector, 0, len(req.Regions)),
		Categories: normalizeCategories(req.Categories),
		Fuzzy:      normalizeFuzzy(req.FuzzyKeyword),
	}
	for _, s := range req.Regions {
		if s.Level != nil {
			lvl := strings.TrimSpace(*s.Level)
			s.Level = &lvl
		}
		in.Regions = append(in.Regions, s)
	}
	sort.SliceStable(in.Regions, func(i, j int) bool {
		a, _ := json.Marshal(in.Regions[i])
		b, _ := json.Marshal(in.Regions[j])
		return string(a) < string(b)
	})

	b, _ := json.Marshal(in)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func normalizeCategories(in []CategoryFilter) []CategoryFilter {
	seen := map[CategoryFilter]bool{}
	out := make([]CategoryFilter, 0, len(in))
	for _, c := range in {
		c.DisplayName = strings.TrimSpace(c.DisplayName)
		c.Value = strings.TrimSpace(c.Value)
		if seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DisplayName != out[j].DisplayName {
			return out[i].DisplayName < out[j].DisplayName
		}
		return out[i].Value < out[j].Value
	})
	return out
}

// normalizeFuzzy treats a blank label as no fuzzy filter.
func normalizeFuzzy(f *FuzzyFilter) *FuzzyFilter {
	if f == nil || strings.TrimSpace(f.Label) == "" {
		return nil
	}
	out := FuzzyFilter{Label: strings.TrimSpace(f.Label)}
	if f.DisplayName != nil {
		if dn := strings.TrimSpace(*f.DisplayName); dn != "" {
			out.DisplayName = &dn
		}
	}
	return &out
}

func validateCategories(cats []CategoryFilter) error {
	var invalid []string
	for i, c := range cats {
		if strings.TrimSpace(c.DisplayName) == "" {
			invalid = append(invalid, fmt.Sprintf("categories[%d]", i))
		}
	}
	if len(invalid) > 0 {
		return apperror.Validation("category filters need a display name", map[string]any{"fields": invalid})
	}
	return nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func containsPattern(s string) string {
	return "%" + escapeLike(strings.ToLower(s)) + "%"
}

const likeClause = `LOWER(value) LIKE ? ESCAPE '\'`

// Query resolves the region selectors to anchors and returns one page of the
// matching records. Full result sets are cached; paging is applied after.
func (e *Engine) Query(ctx context.Context, req QueryRequest) (*ObjectPage, error) {
	started := time.Now()
	defer func() { e.Metrics.ObserveQuery("query", time.Since(started)) }()

	page, size := normalizePage(req.Page, req.Size)
	if err := validateCategories(req.Categories); err != nil {
		return nil, err
	}

	key := CacheKey(req)
	if e.Cache != nil {
		if rows, ok := e.Cache.Get(key); ok {
			e.Metrics.CacheResult(true)
			return paginate(rows, page, size), nil
		}
		e.Metrics.CacheResult(false)
	}

	q, models, err := e.scope(ctx, req)
	if err != nil {
		return nil, err
	}

	var records []materialize.ObjectRecord
	if err := q.Order("model_id ASC, dbid ASC, id ASC").Find(&records).Error; err != nil {
		return nil, apperror.Internal("query objects", err)
	}
	rows := make([]ObjectRow, 0, len(records))
	for _, r := range records {
		rows = append(rows, render(r, models))
	}

	if e.Cache != nil {
		e.Cache.Set(key, rows)
	}
	return paginate(rows, page, size), nil
}

// scope builds the filtered record query for req. With no category or fuzzy
// filter it matches the anchors' own Name rows; otherwise it matches
// records rooted at an anchor.
func (e *Engine) scope(ctx context.Context, req QueryRequest) (*gorm.DB, map[uint]bimmodel.BimModel, error) {
	anchors, err := e.Regions.Resolve(req.Regions)
	if err != nil {
		var appErr *apperror.Error
		if errors.As(err, &appErr) {
			return nil, nil, err
		}
		return nil, nil, apperror.Internal("resolve regions", err)
	}

	modelIDs := []uint{}
	seenModel := map[uint]bool{}
	dbids := make([]int64, 0, len(anchors))
	values := make([]string, 0, len(anchors))
	for _, a := range anchors {
		if !seenModel[a.ModelID] {
			seenModel[a.ModelID] = true
			modelIDs = append(modelIDs, a.ModelID)
		}
		dbids = append(dbids, a.Dbid)
		values = append(values, a.Value)
	}

	models, err := e.Models.ModelsByID(modelIDs)
	if err != nil {
		return nil, nil, apperror.Internal("load models", err)
	}

	q := e.DB.WithContext(ctx).Model(&materialize.ObjectRecord{}).Where("model_id IN ?", modelIDs)

	cats := normalizeCategories(req.Categories)
	fuzzy := normalizeFuzzy(req.FuzzyKeyword)
	if len(cats) == 0 && fuzzy == nil {
		q = q.Where("display_name = ?", nameAttribute).
			Where("value IN ?", values).
			Where("dbid IN ?", dbids)
		return q, models, nil
	}

	var group *gorm.DB
	or := func(clause string, args ...any) {
		if group == nil {
			group = e.DB.Where(clause, args...)
			return
		}
		group = group.Or(clause, args...)
	}
	for _, c := range cats {
		or("display_name = ? AND value = ?", c.DisplayName, c.Value)
	}
	if fuzzy != nil {
		if fuzzy.DisplayName != nil {
			or("display_name = ? AND "+likeClause, *fuzzy.DisplayName, containsPattern(fuzzy.Label))
		} else {
			or(likeClause, containsPattern(fuzzy.Label))
		}
	}

	q = q.Where("root_dbid IN ?", dbids).Where(group)
	return q, models, nil
}

func render(r materialize.ObjectRecord, models map[uint]bimmodel.BimModel) ObjectRow {
	m := models[r.ModelID]
	return ObjectRow{
		Dbid:         r.Dbid,
		Value:        r.Value,
		DisplayName:  r.DisplayName,
		RootDbid:     r.RootDbid,
		ModelName:    m.Name,
		ModelVersion: m.Version,
	}
}

// GetObject returns every attribute of one entity of a model.
func (e *Engine) GetObject(ctx context.Context, modelName string, dbid int64) (*ObjectDetail, error) {
	m, err := e.Models.GetByName(modelName)
	if err != nil {
		return nil, err
	}

	var records []materialize.ObjectRecord
	err = e.DB.WithContext(ctx).
		Where("model_id = ? AND dbid = ?", m.ID, dbid).
		Order("id ASC").
		Find(&records).Error
	if err != nil {
		return nil, apperror.Internal("load object", err)
	}
	if len(records) == 0 {
		return nil, apperror.NotFound(fmt.Sprintf("object %d not found in model %q", dbid, m.Name))
	}

	out := &ObjectDetail{
		Dbid:         dbid,
		ModelName:    m.Name,
		ModelVersion: m.Version,
		Attributes:   orderedmap.New(),
	}
	for _, r := range records {
		if out.RootDbid == nil {
			out.RootDbid = r.RootDbid
		}
		if out.ParentID == nil {
			out.ParentID = r.ParentID
		}
		if r.DisplayName == nameAttribute && out.Name == "" {
			out.Name = r.Value
		}
		if _, exists := out.Attributes.Get(r.DisplayName); !exists {
			out.Attributes.Set(r.DisplayName, r.Value)
		}
	}
	e.logger().Debug("object loaded", zap.String("model", m.Name), zap.Int64("dbid", dbid), zap.Int("attributes", len(records)))
	return out, nil
}

func (e *Engine) logger() *zap.Logger {
	return logger.OrNop(e.Log)
}
