package report

import (
	"strings"

	"bim-index-api/internal/apperror"
	"bim-index-api/internal/bimmodel"
	"bim-index-api/internal/catalog"
	"bim-index-api/internal/logger"
	"bim-index-api/internal/region"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ReportService struct {
	DB      *gorm.DB
	Catalog catalog.CatalogServiceAPI
	Models  bimmodel.ModelServiceAPI
	Regions region.RegionServiceAPI
	Log     *zap.Logger
}

// Naming checks explicit file names, or the anchor values of the selected
// models.
func (rs *ReportService) Naming(req NamingRequest) (*ComplianceReport, error) {
	files := make([]string, 0, len(req.Files))
	for _, f := range req.Files {
		if f = strings.TrimSpace(f); f != "" {
			files = append(files, f)
		}
	}
	if len(files) == 0 && len(req.Models) == 0 && !req.All {
		return nil, apperror.Validation("files or models are required", map[string]any{"field": "files"})
	}

	refs, err := rs.Catalog.ReferenceCodes()
	if err != nil {
		return nil, apperror.Internal("load reference codes", err)
	}

	if len(files) > 0 {
		out := NamingCompliance(files, refs)
		return &out, nil
	}

	names := req.Models
	if req.All {
		models, err := rs.Models.List("")
		if err != nil {
			return nil, apperror.Internal("list models", err)
		}
		names = make([]string, 0, len(models))
		for _, m := range models {
			names = append(names, m.Name)
		}
	}

	out := ComplianceReport{Details: []NamingIssue{}}
	for _, name := range names {
		if _, err := rs.Models.GetByName(name); err != nil {
			return nil, err
		}
		regions, err := rs.Regions.ListForModel(name)
		if err != nil {
			return nil, apperror.Internal("list regions", err)
		}
		values := make([]string, 0, len(regions))
		for _, r := range regions {
			values = append(values, r.Value)
		}
		out.merge(strings.TrimSpace(name), NamingCompliance(values, refs))
	}
	if len(out.Summary) == 0 {
		out = NamingCompliance(nil, refs)
	}

	logger.OrNop(rs.Log).Info("naming report",
		zap.Int("models", len(names)),
		zap.Int("files", out.TotalFiles),
		zap.Int("files_with_errors", out.FilesWithErrors),
	)
	return &out, nil
}

// FillRate counts filled and empty records per COBie.* display name.
func (rs *ReportService) FillRate(modelID uint) ([]FillRateRow, error) {
	rows, err := fillRate(rs.DB, modelID)
	if err != nil {
		return nil, apperror.Internal("compute fill rate", err)
	}
	return rows, nil
}

func (rs *ReportService) Cobie(modelName string) (*FillRateReport, error) {
	m, err := rs.Models.GetByName(modelName)
	if err != nil {
		return nil, err
	}

	rows, err := rs.FillRate(m.ID)
	if err != nil {
		return nil, err
	}
	missing, truncated, err := missingValues(rs.DB, m.ID)
	if err != nil {
		return nil, apperror.Internal("list missing values", err)
	}
	return &FillRateReport{Model: m.Name, Version: m.Version, Rows: rows, Missing: missing, Truncated: truncated}, nil
}
