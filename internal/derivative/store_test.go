package derivative

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"testing"

	"bim-index-api/internal/apperror"
)

func newFSStore(t *testing.T) *Store {
	t.Helper()
	b, err := NewFSBackend(t.TempDir())
	if err != nil {
		t.Fatalf("NewFSBackend: %v", err)
	}
	return &Store{Backend: b, StagingDir: t.TempDir()}
}

func saveVersion(t *testing.T, s *Store, model string, v int) {
	t.Helper()
	ctx := context.Background()
	if _, err := s.Save(ctx, model, v, KindUpload, "model.rvt", strings.NewReader("rvt")); err != nil {
		t.Fatalf("save upload: %v", err)
	}
	if _, err := s.Save(ctx, model, v, KindPackage, "manifest.json", strings.NewReader("{}")); err != nil {
		t.Fatalf("save package: %v", err)
	}
	if _, err := s.Save(ctx, model, v, KindDatabase, "ignored.sdb", strings.NewReader("db-"+string(rune('0'+v)))); err != nil {
		t.Fatalf("save database: %v", err)
	}
}

func TestSave_Layout(t *testing.T) {
	s := newFSStore(t)

	key, err := s.Save(context.Background(), "TerminalA", 3, KindDatabase, "whatever.sdb", strings.NewReader("x"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if key != "sqlite/TerminalA/ver_3/TerminalA.db" {
		t.Fatalf("key=%q", key)
	}

	key, err = s.Save(context.Background(), "TerminalA", 3, KindUpload, "A B.rvt", strings.NewReader("x"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !strings.HasPrefix(key, "uploads/TerminalA/ver_3/") {
		t.Fatalf("key=%q", key)
	}

	if _, err := s.Save(context.Background(), "TerminalA", 0, KindUpload, "a", strings.NewReader("x")); !errors.Is(err, apperror.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestPrune_KeepsCurrentAndPrior(t *testing.T) {
	s := newFSStore(t)
	ctx := context.Background()

	for v := 1; v <= 3; v++ {
		saveVersion(t, s, "M", v)
		if failures := s.Prune(ctx, "M", v); failures != 0 {
			t.Fatalf("prune failures=%d", failures)
		}
	}

	for _, kind := range Families {
		got, err := s.ListVersions(ctx, "M", kind)
		if err != nil {
			t.Fatalf("ListVersions: %v", err)
		}
		if len(got) != 2 || got[0] != 2 || got[1] != 3 {
			t.Fatalf("%s versions=%v want [2 3]", kind, got)
		}
	}
}

func TestRevert_CopiesPriorToNext(t *testing.T) {
	s := newFSStore(t)
	ctx := context.Background()
	saveVersion(t, s, "M", 1)
	saveVersion(t, s, "M", 2)

	v, err := s.Revert(ctx, "M", 2)
	if err != nil {
		t.Fatalf("Revert: %v", err)
	}
	if v != 3 {
		t.Fatalf("new version=%d", v)
	}

	p, cleanup, err := s.LocalDatabase(ctx, "M", 3)
	if err != nil {
		t.Fatalf("LocalDatabase: %v", err)
	}
	defer cleanup()
	b, _ := os.ReadFile(p)
	if string(b) != "db-1" {
		t.Fatalf("reverted db content=%q", b)
	}

	// revert never prunes
	got, _ := s.ListVersions(ctx, "M", KindDatabase)
	if len(got) != 3 {
		t.Fatalf("versions=%v", got)
	}
}

func TestRevert_Errors(t *testing.T) {
	s := newFSStore(t)
	ctx := context.Background()

	if _, err := s.Revert(ctx, "M", 1); !errors.Is(err, apperror.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	saveVersion(t, s, "M", 2)
	if _, err := s.Save(ctx, "M", 1, KindDatabase, "", strings.NewReader("db")); err != nil {
		t.Fatalf("save: %v", err)
	}

	_, err := s.Revert(ctx, "M", 2)
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	for _, kind := range Families {
		got, _ := s.ListVersions(ctx, "M", kind)
		for _, v := range got {
			if v == 3 {
				t.Fatalf("%s: revert wrote version 3", kind)
			}
		}
	}
}

type failingCopyBackend struct {
	Backend
	failOn string
}

func (f failingCopyBackend) Copy(ctx context.Context, src, dst string) error {
	if strings.HasPrefix(src, f.failOn) {
		return errors.New("copy failed")
	}
	return f.Backend.Copy(ctx, src, dst)
}

func TestRevert_CopyFailureRemovesPartialOutput(t *testing.T) {
	s := newFSStore(t)
	ctx := context.Background()
	saveVersion(t, s, "M", 1)
	saveVersion(t, s, "M", 2)

	s.Backend = failingCopyBackend{Backend: s.Backend, failOn: "sqlite/"}

	if _, err := s.Revert(ctx, "M", 2); !errors.Is(err, apperror.ErrStorage) {
		t.Fatalf("expected storage error, got %v", err)
	}
	for _, kind := range Families {
		got, _ := s.ListVersions(ctx, "M", kind)
		if len(got) != 2 {
			t.Fatalf("%s versions=%v want [1 2]", kind, got)
		}
	}
}

type failingDeleteBackend struct {
	Backend
}

func (failingDeleteBackend) DeletePrefix(ctx context.Context, prefix string) error {
	return errors.New("permission denied")
}

func TestPrune_CountsFailures(t *testing.T) {
	s := newFSStore(t)
	ctx := context.Background()
	for v := 1; v <= 3; v++ {
		saveVersion(t, s, "M", v)
	}
	s.Backend = failingDeleteBackend{Backend: s.Backend}

	if failures := s.Prune(ctx, "M", 3); failures != len(Families) {
		t.Fatalf("failures=%d want %d", failures, len(Families))
	}
}

// memBackend has no local paths, so LocalDatabase must stage a copy.
type memBackend struct {
	objects map[string][]byte
}

func (m *memBackend) Put(ctx context.Context, key string, r io.Reader) error {
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.objects[key] = b
	return nil
}

func (m *memBackend) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	b, ok := m.objects[key]
	if !ok {
		return nil, ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (m *memBackend) List(ctx context.Context, prefix string) ([]string, error) {
	var out []string
	for k := range m.objects {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	return out, nil
}

func (m *memBackend) Copy(ctx context.Context, src, dst string) error {
	b, ok := m.objects[src]
	if !ok {
		return ErrObjectNotFound
	}
	m.objects[dst] = b
	return nil
}

func (m *memBackend) DeletePrefix(ctx context.Context, prefix string) error {
	for k := range m.objects {
		if strings.HasPrefix(k, prefix) {
			delete(m.objects, k)
		}
	}
	return nil
}

func TestLocalDatabase_StagesRemoteCopy(t *testing.T) {
	staging := t.TempDir()
	s := &Store{Backend: &memBackend{objects: map[string][]byte{}}, StagingDir: staging}
	ctx := context.Background()

	if _, err := s.Save(ctx, "M", 1, KindDatabase, "", strings.NewReader("sqlite-bytes")); err != nil {
		t.Fatalf("Save: %v", err)
	}

	p, cleanup, err := s.LocalDatabase(ctx, "M", 1)
	if err != nil {
		t.Fatalf("LocalDatabase: %v", err)
	}
	if !strings.HasPrefix(p, staging) {
		t.Fatalf("expected staged path under %s, got %s", staging, p)
	}
	b, _ := os.ReadFile(p)
	if string(b) != "sqlite-bytes" {
		t.Fatalf("content=%q", b)
	}
	cleanup()
	if _, err := os.Stat(p); !os.IsNotExist(err) {
		t.Fatalf("expected staged file removed")
	}

	if _, _, err := s.LocalDatabase(ctx, "M", 9); !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestParseKind(t *testing.T) {
	if k, ok := ParseKind("svf"); !ok || k != KindPackage {
		t.Fatalf("ParseKind(svf)=%v,%v", k, ok)
	}
	if _, ok := ParseKind("bogus"); ok {
		t.Fatalf("expected bogus to be rejected")
	}
}
