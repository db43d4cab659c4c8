package derivative

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FSBackend stores objects as files under Root.
type FSBackend struct {
	Root string
}

func NewFSBackend(root string) (*FSBackend, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &FSBackend{Root: root}, nil
}

func (b *FSBackend) LocalPath(key string) string {
	return filepath.Join(b.Root, filepath.FromSlash(strings.TrimPrefix(key, "/")))
}

func (b *FSBackend) Put(ctx context.Context, key string, r io.Reader) error {
	full := b.LocalPath(key)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(full), ".put-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), full)
}

func (b *FSBackend) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	f, err := os.Open(b.LocalPath(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrObjectNotFound
	}
	return f, err
}

func (b *FSBackend) List(ctx context.Context, prefix string) ([]string, error) {
	dir := b.LocalPath(prefix)
	var keys []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return fs.SkipAll
			}
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".put-") {
			return nil
		}
		rel, err := filepath.Rel(b.Root, p)
		if err != nil {
			return err
		}
		keys = append(keys, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(keys)
	return keys, nil
}

func (b *FSBackend) Copy(ctx context.Context, src, dst string) error {
	rc, err := b.Open(ctx, src)
	if err != nil {
		return err
	}
	defer rc.Close()
	return b.Put(ctx, dst, rc)
}

func (b *FSBackend) DeletePrefix(ctx context.Context, prefix string) error {
	return os.RemoveAll(b.LocalPath(prefix))
}
