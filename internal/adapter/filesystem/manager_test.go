package filesystem

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/remakesof/launcher/internal/domain"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(filepath.Join(t.TempDir(), "games"))
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	return m
}

func TestNewManager_CreatesDir(t *testing.T) {
	m := newTestManager(t)
	info, err := os.Stat(m.InstallDir())
	if err != nil || !info.IsDir() {
		t.Fatalf("install dir not created: %v", err)
	}
	if _, err := NewManager(""); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("empty dir: error = %v, want ErrInvalidInput", err)
	}
}

func TestPaths(t *testing.T) {
	m := newTestManager(t)

	if got, want := m.ArchivePath(), filepath.Join(m.InstallDir(), "game.zip"); got != want {
		t.Errorf("ArchivePath() = %s, want %s", got, want)
	}
	if got, want := m.PartPath("1.2.0"), filepath.Join(m.InstallDir(), "game-1.2.0.zip.part"); got != want {
		t.Errorf("PartPath() = %s, want %s", got, want)
	}
	if got := m.PartPath("../../etc/passwd"); filepath.Dir(got) != m.InstallDir() {
		t.Errorf("PartPath escaped install dir: %s", got)
	}
}

func TestPartialSize(t *testing.T) {
	m := newTestManager(t)
	part := m.PartPath("1.0.0")

	size, err := m.PartialSize(part)
	if err != nil || size != 0 {
		t.Fatalf("PartialSize(missing) = %d, %v", size, err)
	}

	if err := os.WriteFile(part, make([]byte, 123), 0644); err != nil {
		t.Fatal(err)
	}
	size, err = m.PartialSize(part)
	if err != nil || size != 123 {
		t.Errorf("PartialSize() = %d, %v; want 123", size, err)
	}

	if _, err := m.PartialSize(m.InstallDir()); !errors.Is(err, domain.ErrFilesystem) {
		t.Errorf("directory: error = %v, want ErrFilesystem", err)
	}
}

func TestCommit(t *testing.T) {
	m := newTestManager(t)
	part := m.PartPath("1.0.0")
	if err := os.WriteFile(part, []byte("new"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(m.ArchivePath(), []byte("old archive"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := m.Commit(part, m.ArchivePath()); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	if m.FileExists(part) {
		t.Error("partial file should be gone after commit")
	}
	b, err := os.ReadFile(m.ArchivePath())
	if err != nil || string(b) != "new" {
		t.Errorf("archive content = %q, %v", b, err)
	}

	if err := m.Commit(part, m.ArchivePath()); !errors.Is(err, domain.ErrFilesystem) {
		t.Errorf("missing part: error = %v, want ErrFilesystem", err)
	}
}

func TestDeleteFile(t *testing.T) {
	m := newTestManager(t)
	path := filepath.Join(m.InstallDir(), "x")
	if err := os.WriteFile(path, nil, 0644); err != nil {
		t.Fatal(err)
	}
	if err := m.DeleteFile(path); err != nil {
		t.Fatalf("DeleteFile() error = %v", err)
	}
	if err := m.DeleteFile(path); err != nil {
		t.Errorf("deleting a missing file should succeed, got %v", err)
	}
}

func TestCleanOldPartFiles(t *testing.T) {
	m := newTestManager(t)
	old := m.PartPath("0.9.0")
	kept := m.PartPath("1.0.0")
	fresh := m.PartPath("1.1.0")
	archive := m.ArchivePath()

	for _, p := range []string{old, kept, fresh, archive} {
		if err := os.WriteFile(p, []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	past := time.Now().Add(-48 * time.Hour)
	for _, p := range []string{old, kept, archive} {
		if err := os.Chtimes(p, past, past); err != nil {
			t.Fatal(err)
		}
	}

	n, err := m.CleanOldPartFiles(24*time.Hour, map[string]bool{kept: true})
	if err != nil {
		t.Fatalf("CleanOldPartFiles() error = %v", err)
	}
	if n != 1 {
		t.Errorf("deleted %d files, want 1", n)
	}
	if m.FileExists(old) {
		t.Error("old partial file should be deleted")
	}
	for _, p := range []string{kept, fresh, archive} {
		if !m.FileExists(p) {
			t.Errorf("%s should be kept", filepath.Base(p))
		}
	}
}

func TestGetDiskUsage(t *testing.T) {
	m := newTestManager(t)
	usage, err := m.GetDiskUsage()
	if err != nil {
		t.Fatalf("GetDiskUsage() error = %v", err)
	}
	if usage.Total == 0 || usage.Free > usage.Total {
		t.Errorf("unexpected usage %+v", usage)
	}
}

func TestTokenFile(t *testing.T) {
	store := NewTokenFile(filepath.Join(t.TempDir(), "data"))

	if _, err := store.LoadToken(); !errors.Is(err, domain.ErrNotLoggedIn) {
		t.Fatalf("LoadToken() before save: error = %v, want ErrNotLoggedIn", err)
	}

	if err := store.SaveToken("abc.def.ghi"); err != nil {
		t.Fatalf("SaveToken() error = %v", err)
	}
	got, err := store.LoadToken()
	if err != nil || got != "abc.def.ghi" {
		t.Errorf("LoadToken() = %q, %v", got, err)
	}

	if runtime.GOOS != "windows" {
		info, err := os.Stat(store.Path())
		if err != nil {
			t.Fatal(err)
		}
		if perm := info.Mode().Perm(); perm != 0600 {
			t.Errorf("token file mode = %o, want 600", perm)
		}
	}

	if err := store.ClearToken(); err != nil {
		t.Fatalf("ClearToken() error = %v", err)
	}
	if err := store.ClearToken(); err != nil {
		t.Errorf("second ClearToken() error = %v", err)
	}
	if _, err := store.LoadToken(); !errors.Is(err, domain.ErrNotLoggedIn) {
		t.Errorf("LoadToken() after clear: error = %v", err)
	}

	if err := store.SaveToken(""); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("empty token: error = %v, want ErrInvalidInput", err)
	}
}
