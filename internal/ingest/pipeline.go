package ingest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"bim-index-api/internal/apperror"
	"bim-index-api/internal/bimmodel"
	"bim-index-api/internal/catalog"
	"bim-index-api/internal/categorize"
	"bim-index-api/internal/derivative"
	"bim-index-api/internal/eav"
	"bim-index-api/internal/hierarchy"
	"bim-index-api/internal/logger"
	"bim-index-api/internal/materialize"
	"bim-index-api/internal/metrics"
	"bim-index-api/internal/progress"
	"bim-index-api/internal/region"
	"bim-index-api/internal/util"

	"go.uber.org/zap"
)

// DefaultExcludedAttributes are structural property-database attributes that
// are never materialized.
var DefaultExcludedAttributes = []string{"parent", "child", "instanceof_objid", "viewable_in", "externalId"}

const maxPublishedWarnings = 50

type ObjectWriter interface {
	Materialize(ctx context.Context, modelID uint, rows []eav.Row, roots map[int64]*int64, parents map[int64]int64, publish func(materialize.Progress)) (int, error)
}

type Pipeline struct {
	Models     bimmodel.ModelServiceAPI
	Catalog    catalog.CatalogServiceAPI
	Categories categorize.CategoryServiceAPI
	Regions    region.RegionServiceAPI
	Objects    ObjectWriter
	Store      *derivative.Store
	Publisher  progress.Publisher
	Metrics    *metrics.Metrics
	Log        *zap.Logger

	// Exclude overrides DefaultExcludedAttributes when non-nil.
	Exclude []string
}

type run struct {
	p      *Pipeline
	ctx    context.Context
	topic  string
	log    *zap.Logger
	result *Result
}

func (r *run) publish(status, message string, percent *int) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("progress publish panic", zap.String("panic", fmt.Sprint(rec)))
		}
	}()
	if r.p.Publisher == nil {
		return
	}
	r.p.Publisher.Publish(progress.Event{Topic: r.topic, Status: status, Message: message, Percent: percent})
}

func (r *run) warn(ws ...apperror.Warning) {
	for _, w := range ws {
		r.result.Warnings = append(r.result.Warnings, w)
		if n := len(r.result.Warnings); n <= maxPublishedWarnings {
			r.publish(progress.StatusWarning, w.String(), nil)
		} else if n == maxPublishedWarnings+1 {
			r.publish(progress.StatusWarning, "further warnings are recorded on the job only", nil)
		}
	}
}

// stage times fn and reports it under name.
func (r *run) stage(name string, fn func() error) error {
	start := time.Now()
	r.publish(name+"-start", name, nil)
	err := fn()
	r.p.Metrics.ObserveStage(name, time.Since(start))
	if err != nil {
		r.log.Warn("pipeline stage failed", zap.String("stage", name), zap.Error(err))
		return fmt.Errorf("%s: %w", name, err)
	}
	r.publish(name+"-done", name, nil)
	return nil
}

func (p *Pipeline) excluded() []string {
	if p.Exclude != nil {
		return p.Exclude
	}
	return DefaultExcludedAttributes
}

// Run processes one stored version of a model: extract, classify, resolve
// regions and roots, then materialize. Each stage replaces its own rows in
// its own transaction.
func (p *Pipeline) Run(ctx context.Context, req RunRequest) (*Result, error) {
	name := strings.TrimSpace(req.ModelName)
	r := &run{
		p:      p,
		ctx:    ctx,
		topic:  name,
		log:    logger.OrNop(p.Log).With(zap.String("model", name)),
		result: &Result{ModelName: name, Warnings: []apperror.Warning{}},
	}

	res, err := r.execute(req)
	if err != nil {
		r.publish(progress.StatusError, err.Error(), nil)
		return res, err
	}
	done := 100
	r.publish(progress.StatusComplete, fmt.Sprintf("%d objects indexed for version %d", res.Objects, res.Version), &done)
	return res, nil
}

func (r *run) execute(req RunRequest) (*Result, error) {
	p := r.p
	r.publish(progress.StatusStarting, "starting", nil)

	model, err := p.Models.GetByName(r.topic)
	if err != nil {
		return r.result, err
	}
	version := req.Version
	if version <= 0 {
		version = model.Version
	}
	if version <= 0 {
		return r.result, apperror.NotFound(fmt.Sprintf("model %q has no stored version", model.Name))
	}
	r.result.ModelID = model.ID
	r.result.Version = version
	r.log = r.log.With(zap.Int("version", version))

	path, cleanup, err := p.Store.LocalDatabase(r.ctx, model.Name, version)
	if err != nil {
		return r.result, err
	}
	defer cleanup()

	ext, err := eav.Open(path)
	if err != nil {
		return r.result, err
	}
	defer ext.Close()

	r.publish(progress.StatusRunning, "reading catalog", nil)
	conditions, err := p.Catalog.ActiveConditions()
	if err != nil {
		return r.result, err
	}
	refs, err := p.Catalog.ReferenceCodes()
	if err != nil {
		return r.result, err
	}

	var (
		categorizable []eav.Row
		anchorRows    []eav.Row
		parents       map[int64]int64
		entityIDs     []int64
		values        []eav.Row
	)
	err = r.stage("extract", func() error {
		var err error
		if categorizable, err = ext.ExtractCategorizable(categorize.CompilePredicate(conditions)); err != nil {
			return err
		}
		if anchorRows, err = ext.ExtractAnchors(anchorPrefix(model)); err != nil {
			return err
		}
		if parents, err = ext.ExtractParentEdges(); err != nil {
			return err
		}
		if entityIDs, err = ext.ExtractEntityIDs(); err != nil {
			return err
		}
		values, err = ext.ExtractWhitelistedValues(whitelist(conditions), p.excluded())
		return err
	})
	if err != nil {
		return r.result, err
	}

	err = r.stage("process-categories", func() error {
		n, err := p.Categories.ReplaceForModel(model.ID, categorize.Classify(categorizable, conditions))
		r.result.Categories = n
		return err
	})
	if err != nil {
		return r.result, err
	}

	var regions []region.Region
	err = r.stage("process-regions", func() error {
		var ws []apperror.Warning
		regions, ws = region.ResolveRegions(anchorRows, refs)
		r.warn(ws...)
		n, err := p.Regions.ReplaceForModel(model.ID, regions)
		r.result.Regions = n
		return err
	})
	if err != nil {
		return r.result, err
	}

	var roots map[int64]*int64
	_ = r.stage("process-hierarchy", func() error {
		anchors := make(map[int64]bool, len(regions))
		for _, reg := range regions {
			anchors[reg.Dbid] = true
		}
		res := hierarchy.Resolve(entityIDs, parents, anchors)
		counts := hierarchy.Counts(res)
		r.result.Anchored = counts[hierarchy.Anchored]
		r.result.Orphans = counts[hierarchy.Orphan]
		r.result.Cycles = counts[hierarchy.Cycle]
		if r.result.Orphans > 0 {
			r.warn(apperror.Warning{Stage: "hierarchy", Subject: model.Name, Message: fmt.Sprintf("%d entities have no anchored root", r.result.Orphans)})
		}
		if r.result.Cycles > 0 {
			r.warn(apperror.Warning{Stage: "hierarchy", Subject: model.Name, Message: fmt.Sprintf("%d entities sit on a parent cycle", r.result.Cycles)})
		}
		roots = hierarchy.Roots(res)
		return nil
	})

	err = r.stage("process-objects", func() error {
		n, err := p.Objects.Materialize(r.ctx, model.ID, values, roots, parents, func(pr materialize.Progress) {
			pct := 0
			if pr.Total > 0 {
				pct = pr.Rows * 100 / pr.Total
			}
			r.publish(progress.StatusRunning, fmt.Sprintf("batch %d/%d written", pr.Batch, pr.Batches), &pct)
		})
		r.result.Objects = n
		p.Metrics.AddRows(n)
		return err
	})
	if err != nil {
		return r.result, err
	}

	if err := p.Models.MarkProcessed(model.ID, version); err != nil {
		return r.result, err
	}

	if req.Prune {
		_ = r.stage("cleanup", func() error {
			if failures := p.Store.Prune(r.ctx, model.Name, version); failures > 0 {
				r.result.PruneFailures = failures
				r.warn(apperror.Warning{Stage: "cleanup", Subject: model.Name, Message: fmt.Sprintf("%d old artifact directories could not be removed", failures)})
			}
			return nil
		})
	}

	return r.result, nil
}

// anchorPrefix is the tender prefix anchors must start with.
func anchorPrefix(m *bimmodel.BimModel) string {
	if m.Tender != "" && m.Tender != util.UncategorizedName {
		return m.Tender + util.NameDelimiter
	}
	return util.TenderName(m.Name) + util.NameDelimiter
}

// whitelist is the Name attribute plus every display name the catalog curates.
func whitelist(conditions []catalog.Condition) []string {
	seen := map[string]bool{eav.NameAttribute: true}
	out := []string{eav.NameAttribute}
	for _, c := range conditions {
		if c.DisplayName == nil {
			continue
		}
		dn := strings.TrimSpace(*c.DisplayName)
		if dn == "" || seen[dn] {
			continue
		}
		seen[dn] = true
		out = append(out, dn)
	}
	return out
}
