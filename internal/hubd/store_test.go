package hubd

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestStoreCreateDelete(t *testing.T) {
	t.Parallel()

	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	if err := s.CreateRepo("ns/model", false); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.CreateRepo("ns/model", false); !errors.Is(err, ErrRepoExists) {
		t.Fatalf("duplicate create: got %v, want ErrRepoExists", err)
	}
	if err := s.DeleteRepo("ns/model"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.DeleteRepo("ns/model"); !errors.Is(err, ErrRepoNotFound) {
		t.Fatalf("second delete: got %v, want ErrRepoNotFound", err)
	}
}

func TestStorePutAndResolve(t *testing.T) {
	t.Parallel()

	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if err := s.CreateRepo("ns/model", false); err != nil {
		t.Fatalf("create: %v", err)
	}

	n, commit, err := s.Put("ns/model", "", "sub/weights.bin", strings.NewReader("payload"))
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if n != int64(len("payload")) {
		t.Fatalf("put size = %d", n)
	}
	if commit == "" {
		t.Fatalf("put returned empty commit")
	}

	p, err := s.Resolve("ns/model", DefaultRevision, "sub/weights.bin")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	data, err := os.ReadFile(p)
	if err != nil {
		t.Fatalf("read resolved file: %v", err)
	}
	if string(data) != "payload" {
		t.Fatalf("resolved content = %q", data)
	}

	if _, err := s.Resolve("ns/model", DefaultRevision, "missing.bin"); !errors.Is(err, ErrFileNotFound) {
		t.Fatalf("missing file: got %v, want ErrFileNotFound", err)
	}
	if _, _, err := s.Put("nobody/here", "", "f", strings.NewReader("x")); !errors.Is(err, ErrRepoNotFound) {
		t.Fatalf("put to missing repo: got %v, want ErrRepoNotFound", err)
	}
}

func TestStorePutOverwrites(t *testing.T) {
	t.Parallel()

	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if err := s.CreateRepo("ns/model", false); err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, _, err := s.Put("ns/model", "main", "f.txt", strings.NewReader("one")); err != nil {
		t.Fatalf("first put: %v", err)
	}
	if _, _, err := s.Put("ns/model", "main", "f.txt", strings.NewReader("two")); err != nil {
		t.Fatalf("second put: %v", err)
	}
	p, err := s.Resolve("ns/model", "main", "f.txt")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	data, _ := os.ReadFile(p)
	if string(data) != "two" {
		t.Fatalf("content after overwrite = %q", data)
	}
}

func TestStoreRepoInfo(t *testing.T) {
	t.Parallel()

	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if err := s.CreateRepo("ns/model", true); err != nil {
		t.Fatalf("create: %v", err)
	}

	rec, err := s.RepoInfo("ns/model", "")
	if err != nil {
		t.Fatalf("info on empty repo: %v", err)
	}
	if len(rec.Files) != 0 {
		t.Fatalf("empty repo has files: %v", rec.Files)
	}
	if !rec.Private {
		t.Fatalf("private flag lost")
	}
	if rec.Commit != "" {
		t.Fatalf("empty revision has commit %q", rec.Commit)
	}

	if _, _, err := s.Put("ns/model", "main", "a.bin", strings.NewReader("aaaa")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, _, err := s.Put("ns/model", "main", "sub/b.txt", strings.NewReader("bb")); err != nil {
		t.Fatalf("put: %v", err)
	}

	rec, err = s.RepoInfo("ns/model", "main")
	if err != nil {
		t.Fatalf("info: %v", err)
	}
	if rec.Commit == "" {
		t.Fatalf("revision with uploads has no commit")
	}
	if len(rec.Files) != 2 {
		t.Fatalf("files = %v", rec.Files)
	}
	if rec.Files[0].Path != "a.bin" || rec.Files[0].Size != 4 {
		t.Fatalf("first file = %+v", rec.Files[0])
	}
	if rec.Files[1].Path != "sub/b.txt" || rec.Files[1].Size != 2 {
		t.Fatalf("second file = %+v", rec.Files[1])
	}

	if _, err := s.RepoInfo("nobody/here", ""); !errors.Is(err, ErrRepoNotFound) {
		t.Fatalf("missing repo: got %v, want ErrRepoNotFound", err)
	}
}

func TestStoreRejectsEscapingPaths(t *testing.T) {
	t.Parallel()

	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if err := s.CreateRepo("ns/model", false); err != nil {
		t.Fatalf("create: %v", err)
	}

	bad := []struct {
		repoID, revision, path string
	}{
		{"ns/model", "main", ".."},
		{"ns/model", "main", "../../etc/passwd"},
		{"ns/model", "main", "a/../../../b"},
		{"ns/model", "main", ""},
		{"ns/model", "..", "f.txt"},
		{"ns/model", "a/b", "f.txt"},
		{"../ns/model", "main", "f.txt"},
		{"bare", "main", "f.txt"},
	}
	for _, tt := range bad {
		if _, _, err := s.Put(tt.repoID, tt.revision, tt.path, strings.NewReader("x")); !errors.Is(err, ErrBadPath) {
			t.Fatalf("Put(%q, %q, %q): got %v, want ErrBadPath", tt.repoID, tt.revision, tt.path, err)
		}
		if _, err := s.Resolve(tt.repoID, tt.revision, tt.path); !errors.Is(err, ErrBadPath) {
			t.Fatalf("Resolve(%q, %q, %q): got %v, want ErrBadPath", tt.repoID, tt.revision, tt.path, err)
		}
	}
}

func TestStoreScanRebuildsIndex(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	s, err := NewStore(root)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if err := s.CreateRepo("ns/model", false); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, _, err := s.Put("ns/model", "dev", "f.txt", strings.NewReader("x")); err != nil {
		t.Fatalf("put: %v", err)
	}

	reopened, err := NewStore(root)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	rec, err := reopened.RepoInfo("ns/model", "dev")
	if err != nil {
		t.Fatalf("info after reopen: %v", err)
	}
	if len(rec.Files) != 1 || rec.Files[0].Path != "f.txt" {
		t.Fatalf("files after reopen = %v", rec.Files)
	}
	if rec.Commit == "" {
		t.Fatalf("rescanned revision has no commit")
	}
	if err := reopened.CreateRepo("ns/model", false); !errors.Is(err, ErrRepoExists) {
		t.Fatalf("create after reopen: got %v, want ErrRepoExists", err)
	}
}

func TestStoreRoot(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	s, err := NewStore(filepath.Join(root, "store"))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if s.Root() != filepath.Join(root, "store") {
		t.Fatalf("root = %q", s.Root())
	}
}
