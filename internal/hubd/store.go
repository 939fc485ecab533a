package hubd

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const DefaultRevision = "main"

// FileRecord is one stored file inside a revision.
type FileRecord struct {
	Path string
	Size int64
}

// RepoRecord is a repository's metadata at one revision.
type RepoRecord struct {
	ID        string
	Commit    string
	Private   bool
	CreatedAt time.Time
	Files     []FileRecord
}

type repoMeta struct {
	private   bool
	createdAt time.Time
	commits   map[string]string
}

// Store keeps repositories on disk under
// <root>/<namespace>/<name>/<revision>/<files...> with an in-memory
// metadata index rebuilt from the tree on startup.
type Store struct {
	root string

	mu    sync.RWMutex
	repos map[string]*repoMeta
}

func NewStore(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("hubd: create store root: %w", err)
	}
	s := &Store{root: root, repos: make(map[string]*repoMeta)}
	if err := s.scan(); err != nil {
		return nil, err
	}
	return s, nil
}

// Root returns the directory the store serves from.
func (s *Store) Root() string { return s.root }

// scan rebuilds the index from repositories already on disk. The private
// flag is not persisted, so rescanned repositories come back public.
func (s *Store) scan() error {
	namespaces, err := os.ReadDir(s.root)
	if err != nil {
		return fmt.Errorf("hubd: scan store: %w", err)
	}
	for _, ns := range namespaces {
		if !ns.IsDir() {
			continue
		}
		names, err := os.ReadDir(filepath.Join(s.root, ns.Name()))
		if err != nil {
			return fmt.Errorf("hubd: scan namespace %s: %w", ns.Name(), err)
		}
		for _, name := range names {
			if !name.IsDir() {
				continue
			}
			meta := &repoMeta{commits: make(map[string]string)}
			if info, err := name.Info(); err == nil {
				meta.createdAt = info.ModTime()
			}
			revs, err := os.ReadDir(filepath.Join(s.root, ns.Name(), name.Name()))
			if err != nil {
				return fmt.Errorf("hubd: scan repo %s/%s: %w", ns.Name(), name.Name(), err)
			}
			for _, rev := range revs {
				if rev.IsDir() {
					meta.commits[rev.Name()] = uuid.NewString()
				}
			}
			s.repos[ns.Name()+"/"+name.Name()] = meta
		}
	}
	return nil
}

func (s *Store) CreateRepo(repoID string, private bool) error {
	if err := checkRepoID(repoID); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.repos[repoID]; ok {
		return ErrRepoExists
	}
	if err := os.MkdirAll(s.repoDir(repoID), 0o755); err != nil {
		return fmt.Errorf("hubd: create repo: %w", err)
	}
	s.repos[repoID] = &repoMeta{private: private, createdAt: time.Now(), commits: make(map[string]string)}
	return nil
}

func (s *Store) DeleteRepo(repoID string) error {
	if err := checkRepoID(repoID); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.repos[repoID]; !ok {
		return ErrRepoNotFound
	}
	if err := os.RemoveAll(s.repoDir(repoID)); err != nil {
		return fmt.Errorf("hubd: delete repo: %w", err)
	}
	delete(s.repos, repoID)
	return nil
}

// RepoInfo lists a repository's files at a revision. A revision with no
// uploads yet yields a record with no files, not an error.
func (s *Store) RepoInfo(repoID, revision string) (*RepoRecord, error) {
	if err := checkRepoID(repoID); err != nil {
		return nil, err
	}
	revision = orMain(revision)
	if !validSegment(revision) {
		return nil, ErrBadPath
	}

	s.mu.RLock()
	meta, ok := s.repos[repoID]
	if !ok {
		s.mu.RUnlock()
		return nil, ErrRepoNotFound
	}
	rec := &RepoRecord{
		ID:        repoID,
		Commit:    meta.commits[revision],
		Private:   meta.private,
		CreatedAt: meta.createdAt,
	}
	s.mu.RUnlock()

	revDir := filepath.Join(s.repoDir(repoID), revision)
	err := filepath.WalkDir(revDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(revDir, p)
		if err != nil {
			return err
		}
		rec.Files = append(rec.Files, FileRecord{Path: filepath.ToSlash(rel), Size: info.Size()})
		return nil
	})
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("hubd: walk revision: %w", err)
	}
	return rec, nil
}

// Put stores one file atomically and stamps the revision with a fresh
// commit id.
func (s *Store) Put(repoID, revision, pathInRepo string, r io.Reader) (int64, string, error) {
	revision = orMain(revision)
	dst, err := s.filePath(repoID, revision, pathInRepo)
	if err != nil {
		return 0, "", err
	}
	s.mu.RLock()
	_, ok := s.repos[repoID]
	s.mu.RUnlock()
	if !ok {
		return 0, "", ErrRepoNotFound
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return 0, "", fmt.Errorf("hubd: create revision dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return 0, "", fmt.Errorf("hubd: stage upload: %w", err)
	}
	n, err := io.Copy(tmp, r)
	if err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return 0, "", fmt.Errorf("hubd: write upload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return 0, "", fmt.Errorf("hubd: close upload: %w", err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		os.Remove(tmp.Name())
		return 0, "", fmt.Errorf("hubd: commit upload: %w", err)
	}

	commit := uuid.NewString()
	s.mu.Lock()
	if meta, ok := s.repos[repoID]; ok {
		meta.commits[revision] = commit
	}
	s.mu.Unlock()
	return n, commit, nil
}

// Resolve maps a repository file reference to its path on disk.
func (s *Store) Resolve(repoID, revision, pathInRepo string) (string, error) {
	p, err := s.filePath(repoID, orMain(revision), pathInRepo)
	if err != nil {
		return "", err
	}
	s.mu.RLock()
	_, ok := s.repos[repoID]
	s.mu.RUnlock()
	if !ok {
		return "", ErrRepoNotFound
	}
	info, err := os.Stat(p)
	if err != nil || info.IsDir() {
		return "", ErrFileNotFound
	}
	return p, nil
}

func (s *Store) repoDir(repoID string) string {
	return filepath.Join(s.root, filepath.FromSlash(repoID))
}

// filePath validates every path component before touching the tree so a
// crafted reference cannot escape the store root.
func (s *Store) filePath(repoID, revision, pathInRepo string) (string, error) {
	if err := checkRepoID(repoID); err != nil {
		return "", err
	}
	if !validSegment(revision) {
		return "", ErrBadPath
	}
	clean := path.Clean(strings.TrimPrefix(pathInRepo, "/"))
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", ErrBadPath
	}
	return filepath.Join(s.repoDir(repoID), revision, filepath.FromSlash(clean)), nil
}

func checkRepoID(repoID string) error {
	ns, name, ok := strings.Cut(repoID, "/")
	if !ok || !validSegment(ns) || !validSegment(name) {
		return ErrBadPath
	}
	return nil
}

func validSegment(seg string) bool {
	if seg == "" || seg == "." || seg == ".." {
		return false
	}
	return !strings.ContainsAny(seg, "/\\")
}

func orMain(revision string) string {
	if revision == "" {
		return DefaultRevision
	}
	return revision
}
