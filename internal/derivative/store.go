package derivative

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"sort"
	"strconv"
	"strings"

	"bim-index-api/config"
	"bim-index-api/internal/apperror"
	"bim-index-api/internal/logger"
	"bim-index-api/internal/util"

	"go.uber.org/zap"
)

// Kind names an artifact family.
type Kind string

const (
	KindUpload   Kind = "uploads"
	KindPackage  Kind = "svf"
	KindDatabase Kind = "sqlite"
)

// Families lists every artifact family a version is made of.
var Families = []Kind{KindUpload, KindPackage, KindDatabase}

func ParseKind(s string) (Kind, bool) {
	for _, k := range Families {
		if string(k) == s {
			return k, true
		}
	}
	return "", false
}

// Store lays versioned artifacts out as {kind}/{model}/ver_{n}/ on a Backend.
type Store struct {
	Backend    Backend
	StagingDir string
	Log        *zap.Logger
}

func NewStore(ctx context.Context, cfg config.StorageConfig, log *zap.Logger) (*Store, error) {
	var (
		b   Backend
		err error
	)
	switch cfg.Driver {
	case "", "fs":
		b, err = NewFSBackend(cfg.Root)
	case "gcs":
		b, err = NewGCSBackend(ctx, cfg.GCSBucket)
	case "s3":
		b, err = NewS3Backend(ctx, S3Config{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			PathStyle: cfg.S3PathStyle,
		})
	default:
		err = fmt.Errorf("unsupported storage driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	return &Store{Backend: b, StagingDir: cfg.StagingDir, Log: logger.OrNop(log)}, nil
}

// VersionDir is the prefix holding one family of one version, with a trailing slash.
func VersionDir(kind Kind, model string, version int) string {
	return path.Join(string(kind), util.SanitizePart(model), fmt.Sprintf("ver_%d", version)) + "/"
}

// DatabaseKey is the sqlite family object of a version.
func DatabaseKey(model string, version int) string {
	return VersionDir(KindDatabase, model, version) + util.SanitizePart(model) + ".db"
}

// Save writes one artifact and returns its key.
func (s *Store) Save(ctx context.Context, model string, version int, kind Kind, name string, r io.Reader) (string, error) {
	if version < 1 {
		return "", apperror.Validation("version must be positive", map[string]any{"field": "version"})
	}
	key := VersionDir(kind, model, version) + util.SanitizePart(name)
	if kind == KindDatabase {
		key = DatabaseKey(model, version)
	}
	if err := s.Backend.Put(ctx, key, r); err != nil {
		return "", apperror.Storage("failed to save artifact", err)
	}
	return key, nil
}

// ListVersions returns the versions present for one family, ascending.
func (s *Store) ListVersions(ctx context.Context, model string, kind Kind) ([]int, error) {
	prefix := string(kind) + "/" + util.SanitizePart(model) + "/"
	keys, err := s.Backend.List(ctx, prefix)
	if err != nil {
		return nil, apperror.Storage("failed to list artifacts", err)
	}

	seen := map[int]bool{}
	for _, k := range keys {
		dir, _, _ := strings.Cut(strings.TrimPrefix(k, prefix), "/")
		n, err := strconv.Atoi(strings.TrimPrefix(dir, "ver_"))
		if err != nil || !strings.HasPrefix(dir, "ver_") {
			continue
		}
		seen[n] = true
	}

	out := make([]int, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Ints(out)
	return out, nil
}

// Prune removes every version below version-1 in every family. Failures are
// logged and counted, never returned.
func (s *Store) Prune(ctx context.Context, model string, version int) int {
	log := logger.OrNop(s.Log)
	failures := 0
	for _, kind := range Families {
		versions, err := s.ListVersions(ctx, model, kind)
		if err != nil {
			log.Warn("prune: list failed", zap.String("model", model), zap.String("kind", string(kind)), zap.Error(err))
			failures++
			continue
		}
		for _, v := range versions {
			if v >= version-1 {
				continue
			}
			if err := s.Backend.DeletePrefix(ctx, VersionDir(kind, model, v)); err != nil {
				log.Warn("prune: delete failed",
					zap.String("model", model),
					zap.String("kind", string(kind)),
					zap.Int("version", v),
					zap.Error(err),
				)
				failures++
			}
		}
	}
	return failures
}

// Revert copies every family of currentVersion-1 to currentVersion+1 and
// returns the new version. Nothing is written when a family is missing.
func (s *Store) Revert(ctx context.Context, model string, currentVersion int) (int, error) {
	if currentVersion <= 1 {
		return 0, apperror.Validation("no prior version to revert to", map[string]any{"version": currentVersion})
	}
	prior, target := currentVersion-1, currentVersion+1

	sources := map[Kind][]string{}
	for _, kind := range Families {
		keys, err := s.Backend.List(ctx, VersionDir(kind, model, prior))
		if err != nil {
			return 0, apperror.Storage("failed to list prior version", err)
		}
		if len(keys) == 0 {
			return 0, apperror.NotFound(fmt.Sprintf("%s artifacts for %s version %d not found", kind, model, prior))
		}
		sources[kind] = keys
	}

	for _, kind := range Families {
		from, to := VersionDir(kind, model, prior), VersionDir(kind, model, target)
		for _, key := range sources[kind] {
			if err := s.Backend.Copy(ctx, key, to+strings.TrimPrefix(key, from)); err != nil {
				s.Discard(ctx, model, target)
				return 0, apperror.Storage("failed to copy prior version", err)
			}
		}
	}
	return target, nil
}

// Discard removes every family of one version. Failures are logged only.
func (s *Store) Discard(ctx context.Context, model string, version int) {
	for _, kind := range Families {
		if err := s.Backend.DeletePrefix(ctx, VersionDir(kind, model, version)); err != nil {
			logger.OrNop(s.Log).Warn("discard version failed",
				zap.String("model", model),
				zap.Int("version", version),
				zap.Error(err),
			)
		}
	}
}

// FirstKey returns the first object of a family at a version, or "" when empty.
func (s *Store) FirstKey(ctx context.Context, kind Kind, model string, version int) (string, error) {
	keys, err := s.Backend.List(ctx, VersionDir(kind, model, version))
	if err != nil {
		return "", apperror.Storage("failed to list artifacts", err)
	}
	if len(keys) == 0 {
		return "", nil
	}
	return keys[0], nil
}

// LocalDatabase returns a path to the version's sqlite file on local disk.
// The caller must run cleanup when done.
func (s *Store) LocalDatabase(ctx context.Context, model string, version int) (string, func(), error) {
	key := DatabaseKey(model, version)

	if lb, ok := s.Backend.(localBackend); ok {
		p := lb.LocalPath(key)
		if _, err := os.Stat(p); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return "", nil, apperror.NotFound(fmt.Sprintf("database for %s version %d not found", model, version))
			}
			return "", nil, apperror.Storage("failed to stat database", err)
		}
		return p, func() {}, nil
	}

	rc, err := s.Backend.Open(ctx, key)
	if err != nil {
		if errors.Is(err, ErrObjectNotFound) {
			return "", nil, apperror.NotFound(fmt.Sprintf("database for %s version %d not found", model, version))
		}
		return "", nil, apperror.Storage("failed to open database", err)
	}
	defer rc.Close()

	f, err := os.CreateTemp(s.StagingDir, "bim-*.db")
	if err != nil {
		return "", nil, apperror.Storage("failed to create staging file", err)
	}
	cleanup := func() { _ = os.Remove(f.Name()) }

	if _, err := io.Copy(f, rc); err != nil {
		_ = f.Close()
		cleanup()
		return "", nil, apperror.Storage("failed to download database", err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, apperror.Storage("failed to download database", err)
	}
	return f.Name(), cleanup, nil
}
