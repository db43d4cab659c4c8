package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"bim-index-api/internal/apperror"
	"bim-index-api/internal/aps"
	"bim-index-api/internal/bimmodel"
	"bim-index-api/internal/derivative"
	"bim-index-api/internal/eav"
	"bim-index-api/internal/logger"
	"bim-index-api/internal/progress"
	"bim-index-api/internal/util"

	"go.uber.org/zap"
)

// DerivativeSource is the translation service the exported database is
// fetched from.
type DerivativeSource interface {
	Manifest(ctx context.Context, urn string) (*aps.Manifest, []byte, error)
	FetchDatabase(ctx context.Context, urn string, dst io.Writer, onProgress func(pct int)) (int64, error)
}

type IngestService struct {
	Pipeline  *Pipeline
	Models    bimmodel.ModelServiceAPI
	Store     *derivative.Store
	Source    DerivativeSource
	Publisher progress.Publisher
	Log       *zap.Logger
}

func (s *IngestService) publish(topic, status, message string, percent *int) {
	if s.Publisher == nil {
		return
	}
	s.Publisher.Publish(progress.Event{Topic: topic, Status: status, Message: message, Percent: percent})
}

// Ingest stores a new version of a model and runs the pipeline on it. The
// version is the model's current version plus one.
func (s *IngestService) Ingest(ctx context.Context, req IngestRequest) (*Result, error) {
	name := strings.TrimSpace(req.ModelName)
	if name == "" {
		name = util.ModelName(req.FileName)
	}
	if name == "" {
		return nil, apperror.Validation("model name or file name is required", map[string]any{"field": "model"})
	}
	urn := strings.TrimSpace(req.Urn)
	if req.Database == nil && urn == "" {
		return nil, apperror.Validation("urn is required when no database is uploaded", map[string]any{"field": "urn"})
	}
	if req.Database == nil && s.Source == nil {
		return nil, apperror.Validation("translation service is not configured; upload the database", map[string]any{"field": "database"})
	}

	model, err := s.Models.GetOrCreate(name)
	if err != nil {
		return nil, err
	}
	version := model.Version + 1
	log := logger.OrNop(s.Log).With(zap.String("model", name), zap.Int("version", version))

	paths, err := s.storeArtifacts(ctx, name, version, urn, req)
	if err != nil {
		s.Store.Discard(ctx, name, version)
		return nil, err
	}

	if err := s.Models.RecordVersion(name, bimmodel.VersionRecord{
		Version: version,
		Urn:     urn,
		Paths:   paths,
		UserID:  req.UserID,
	}); err != nil {
		s.Store.Discard(ctx, name, version)
		return nil, err
	}
	log.Info("version recorded", zap.String("database", paths.Database))

	return s.Pipeline.Run(ctx, RunRequest{ModelName: name, Version: version, Prune: true})
}

func (s *IngestService) storeArtifacts(ctx context.Context, name string, version int, urn string, req IngestRequest) (bimmodel.ArtifactPaths, error) {
	var paths bimmodel.ArtifactPaths
	var err error

	fileName := strings.TrimSpace(req.FileName)
	upload := req.Upload
	if upload == nil {
		// Source file lives in the translation service; keep a reference.
		ref, _ := json.Marshal(map[string]string{"file_name": fileName, "urn": urn})
		upload = bytes.NewReader(ref)
		fileName = "source.json"
	}
	if fileName == "" {
		fileName = name
	}
	if paths.Upload, err = s.Store.Save(ctx, name, version, derivative.KindUpload, fileName, upload); err != nil {
		return paths, err
	}

	var manifest []byte
	if req.Database != nil {
		manifest, _ = json.Marshal(map[string]string{"urn": urn, "status": "uploaded"})
	} else {
		if _, manifest, err = s.Source.Manifest(ctx, urn); err != nil {
			return paths, err
		}
	}
	if paths.Package, err = s.Store.Save(ctx, name, version, derivative.KindPackage, "manifest.json", bytes.NewReader(manifest)); err != nil {
		return paths, err
	}

	db := req.Database
	if db == nil {
		tmp, cleanup, err := s.download(ctx, name, urn)
		if err != nil {
			return paths, err
		}
		defer cleanup()
		db = tmp
	}
	paths.Database, err = s.Store.Save(ctx, name, version, derivative.KindDatabase, "", db)
	return paths, err
}

// download fetches the exported database into a staging file.
func (s *IngestService) download(ctx context.Context, name, urn string) (*os.File, func(), error) {
	f, err := os.CreateTemp(s.Store.StagingDir, "aps-*.db")
	if err != nil {
		return nil, nil, apperror.Storage("failed to create staging file", err)
	}
	cleanup := func() {
		_ = f.Close()
		_ = os.Remove(f.Name())
	}

	s.publish(name, progress.StatusRunning, "downloading derivative database", nil)
	_, err = s.Source.FetchDatabase(ctx, urn, f, func(pct int) {
		p := pct
		s.publish(name, "extract-download", fmt.Sprintf("downloaded %d%%", pct), &p)
	})
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		cleanup()
		return nil, nil, apperror.Storage("failed to rewind staging file", err)
	}
	return f, cleanup, nil
}

// Revert copies version current-1 to current+1 and re-runs the pipeline on
// the copy. Old versions are not pruned.
func (s *IngestService) Revert(ctx context.Context, modelName string, userID uint) (*Result, error) {
	model, err := s.Models.GetByName(modelName)
	if err != nil {
		return nil, err
	}

	newVersion, err := s.Store.Revert(ctx, model.Name, model.Version)
	if err != nil {
		return nil, err
	}
	prior := model.Version - 1

	paths, err := s.versionPaths(ctx, model.Name, newVersion)
	if err != nil {
		s.Store.Discard(ctx, model.Name, newVersion)
		return nil, err
	}

	if err := s.Models.RecordVersion(model.Name, bimmodel.VersionRecord{
		Version:      newVersion,
		Urn:          s.urnOf(model, prior),
		Paths:        paths,
		RevertedFrom: &prior,
		UserID:       userID,
	}); err != nil {
		s.Store.Discard(ctx, model.Name, newVersion)
		return nil, err
	}
	logger.OrNop(s.Log).Info("model reverted",
		zap.String("model", model.Name),
		zap.Int("from", prior),
		zap.Int("version", newVersion),
	)

	return s.Pipeline.Run(ctx, RunRequest{ModelName: model.Name, Version: newVersion})
}

func (s *IngestService) versionPaths(ctx context.Context, name string, version int) (bimmodel.ArtifactPaths, error) {
	var paths bimmodel.ArtifactPaths
	var err error
	if paths.Upload, err = s.Store.FirstKey(ctx, derivative.KindUpload, name, version); err != nil {
		return paths, err
	}
	if paths.Package, err = s.Store.FirstKey(ctx, derivative.KindPackage, name, version); err != nil {
		return paths, err
	}
	paths.Database = derivative.DatabaseKey(name, version)
	return paths, nil
}

func (s *IngestService) urnOf(model *bimmodel.BimModel, version int) string {
	history, err := s.Models.History(model.Name)
	if err == nil {
		for _, v := range history {
			if v.Version == version {
				return v.Urn
			}
		}
	}
	return model.Urn
}

// Reload re-runs the pipeline on the current version, picking up catalog
// and reference-code changes.
func (s *IngestService) Reload(ctx context.Context, modelName string) (*Result, error) {
	model, err := s.Models.GetByName(modelName)
	if err != nil {
		return nil, err
	}
	return s.Pipeline.Run(ctx, RunRequest{ModelName: model.Name, Version: model.Version})
}

// Diff compares the derivative databases of two stored versions.
func (s *IngestService) Diff(ctx context.Context, modelName string, from, to int) ([]eav.PropertyChange, error) {
	if from <= 0 || to <= 0 || from == to {
		return nil, apperror.Validation("from and to must be two different positive versions", map[string]any{"fields": []string{"from", "to"}})
	}
	model, err := s.Models.GetByName(modelName)
	if err != nil {
		return nil, err
	}

	open := func(version int) (*eav.Extractor, func(), error) {
		path, cleanup, err := s.Store.LocalDatabase(ctx, model.Name, version)
		if err != nil {
			return nil, nil, err
		}
		ext, err := eav.Open(path)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		return ext, func() { _ = ext.Close(); cleanup() }, nil
	}

	a, closeA, err := open(from)
	if err != nil {
		return nil, err
	}
	defer closeA()
	b, closeB, err := open(to)
	if err != nil {
		return nil, err
	}
	defer closeB()

	return eav.Diff(a, b)
}
