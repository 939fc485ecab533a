package hub

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Environment variables shared with the Python hub tooling.
const (
	EnvEndpoint = "HF_ENDPOINT"
	EnvToken    = "HF_TOKEN"
	EnvHome     = "HF_HOME"
	EnvHubCache = "HF_HUB_CACHE"
)

// CacheRoot resolves the snapshot cache root: HF_HUB_CACHE, then
// HF_HOME/hub, then the user cache directory under huggingface/hub. The
// layout below the root matches the Python huggingface_hub cache, so the
// two tools can share it.
func CacheRoot() (string, error) {
	if dir := os.Getenv(EnvHubCache); dir != "" {
		return dir, nil
	}
	if dir := os.Getenv(EnvHome); dir != "" {
		return filepath.Join(dir, "hub"), nil
	}
	base, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("hub: resolve cache root: %w", err)
	}
	return filepath.Join(base, "huggingface", "hub"), nil
}

// repoCacheDir maps ns/name to the models--ns--name cache entry.
func repoCacheDir(repoID string) string {
	return "models--" + strings.ReplaceAll(repoID, "/", "--")
}

func repoIDFromCacheDir(name string) (string, bool) {
	rest, ok := strings.CutPrefix(name, "models--")
	if !ok {
		return "", false
	}
	parts := strings.Split(rest, "--")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", false
	}
	return parts[0] + "/" + parts[1], true
}

// SnapshotDir returns the directory snapshot files of repoID at revision
// live in under root.
func SnapshotDir(root, repoID, revision string) string {
	return filepath.Join(root, repoCacheDir(repoID), "snapshots", revision)
}

// CachedModel summarizes one cached repository.
type CachedModel struct {
	RepoID    string
	Revisions []string
	Files     int
	Size      int64
}

// ListCached scans root and reports every cached repository. A missing root
// is an empty cache, not an error.
func ListCached(root string) ([]CachedModel, error) {
	entries, err := os.ReadDir(root)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("hub: list cache: %w", err)
	}

	var models []CachedModel
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		repoID, ok := repoIDFromCacheDir(e.Name())
		if !ok {
			continue
		}
		m := CachedModel{RepoID: repoID}
		snaps := filepath.Join(root, e.Name(), "snapshots")
		revs, err := os.ReadDir(snaps)
		if err != nil {
			continue
		}
		for _, rev := range revs {
			if !rev.IsDir() {
				continue
			}
			m.Revisions = append(m.Revisions, rev.Name())
			files, size, err := dirStats(filepath.Join(snaps, rev.Name()))
			if err != nil {
				return nil, err
			}
			m.Files += files
			m.Size += size
		}
		sort.Strings(m.Revisions)
		models = append(models, m)
	}
	sort.Slice(models, func(i, j int) bool { return models[i].RepoID < models[j].RepoID })
	return models, nil
}

// RemoveCached deletes every cached revision of repoID under root.
func RemoveCached(root, repoID string) error {
	if err := ValidateRepoID(repoID); err != nil {
		return err
	}
	dir := filepath.Join(root, repoCacheDir(repoID))
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return fmt.Errorf("%w: %s has no cache entry", ErrFileNotFound, repoID)
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("hub: remove cache entry: %w", err)
	}
	return nil
}

func dirStats(dir string) (int, int64, error) {
	var files int
	var size int64
	err := filepath.WalkDir(dir, func(name string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		files++
		size += info.Size()
		return nil
	})
	if err != nil {
		return 0, 0, fmt.Errorf("hub: scan cache: %w", err)
	}
	return files, size, nil
}
