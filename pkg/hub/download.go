package hub

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/samcharles93/hubkit/pkg/pretrained"
)

const (
	defaultParallelism = 4
	progressInterval   = 100 * time.Millisecond
)

// Progress reports transfer state for one file.
type Progress struct {
	Filename  string
	Total     int64
	Completed int64
	// Done marks the last update for a file; throttled transfer updates
	// leave it unset.
	Done bool
}

// DownloadOptions control a snapshot download.
type DownloadOptions struct {
	// Revision selects a branch, tag or commit; empty means main.
	Revision string
	// CacheDir overrides the cache root for this call.
	CacheDir string
	// Files restricts the download to exactly these paths. When set,
	// Include and Exclude are ignored.
	Files []string
	// Include and Exclude filter by path.Match glob, exclude winning.
	Include []string
	Exclude []string
	// Parallelism bounds concurrent transfers; 0 means 4.
	Parallelism int
	Force       bool
	Resume      bool
	Token       string
	// Progress, when set, receives throttled per-file updates.
	Progress func(Progress)
}

// DownloadFile fetches one file of repoID at the requested revision and
// returns its path inside the snapshot cache. Cached files are served
// without touching the network unless ForceDownload is set; LocalFilesOnly
// never dials and fails with ErrOffline on a cache miss. The options arrive
// verbatim from the loader.
func (c *Client) DownloadFile(ctx context.Context, repoID, filename string, opts pretrained.LoadOptions) (string, error) {
	return c.downloadFile(ctx, repoID, filename, opts, 0, nil)
}

func (c *Client) downloadFile(ctx context.Context, repoID, filename string, opts pretrained.LoadOptions, size int64, report func(Progress)) (string, error) {
	if err := ValidateRepoID(repoID); err != nil {
		return "", err
	}
	// Filenames can come from a repository listing; never let one place a
	// file outside the snapshot directory.
	clean := path.Clean(filename)
	if clean == "" || clean == "." || clean == ".." || strings.HasPrefix(clean, "../") || strings.HasPrefix(clean, "/") {
		return "", fmt.Errorf("hub: invalid filename %q", filename)
	}
	filename = clean
	root, err := c.cacheRoot(opts.CacheDir)
	if err != nil {
		return "", err
	}
	rev := orDefault(opts.Revision)
	dst := filepath.Join(SnapshotDir(root, repoID, rev), filepath.FromSlash(filename))

	if !opts.ForceDownload {
		if info, err := os.Stat(dst); err == nil && info.Mode().IsRegular() {
			if size == 0 || info.Size() == size {
				c.log.Debug("cache hit", "repo", repoID, "file", filename, "revision", rev)
				return dst, nil
			}
		}
	}
	if opts.LocalFilesOnly {
		return "", fmt.Errorf("%w: %s/%s@%s", ErrOffline, repoID, filename, rev)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", fmt.Errorf("hub: create snapshot dir: %w", err)
	}

	part := dst + ".incomplete"
	u := c.resolveURL(repoID, rev, filename)

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			c.log.Debug("retrying download", "url", u, "attempt", attempt, "error", lastErr)
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(retryDelay):
			}
		}
		retry, err := c.fetchPart(ctx, u, part, filename, opts, size, report)
		if err == nil {
			if err := os.Rename(part, dst); err != nil {
				return "", fmt.Errorf("hub: finalize %s: %w", filename, err)
			}
			return dst, nil
		}
		if !retry {
			return "", err
		}
		lastErr = err
	}
	return "", lastErr
}

// fetchPart runs one GET of u into the partial file, resuming from its
// current size when the options ask for that. The boolean reports whether
// the failure is worth another attempt: transport errors and 5xx responses
// are, anything local or a 4xx is not.
func (c *Client) fetchPart(ctx context.Context, u, part, filename string, opts pretrained.LoadOptions, size int64, report func(Progress)) (bool, error) {
	var offset int64
	if opts.ResumeDownload {
		if info, err := os.Stat(part); err == nil {
			offset = info.Size()
		}
	}
	c.log.Debug("downloading", "url", u, "offset", offset)
	req, err := c.newRequest(ctx, http.MethodGet, u, nil, opts.Token)
	if err != nil {
		return false, err
	}
	if offset > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", offset))
	}
	resp, err := c.send(req, opts.Proxies)
	if err != nil {
		return true, fmt.Errorf("hub: download %s: %w", filename, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		// Full body; a stale partial file starts over.
		offset = 0
	case resp.StatusCode == http.StatusPartialContent:
	case resp.StatusCode >= http.StatusInternalServerError:
		return true, responseError(resp, ErrFileNotFound)
	default:
		return false, responseError(resp, ErrFileNotFound)
	}

	flags := os.O_CREATE | os.O_WRONLY
	if offset > 0 {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	f, err := os.OpenFile(part, flags, 0o644)
	if err != nil {
		return false, fmt.Errorf("hub: open partial file: %w", err)
	}

	var w io.Writer = f
	if report != nil {
		total := size
		if total == 0 && resp.ContentLength > 0 {
			total = offset + resp.ContentLength
		}
		w = io.MultiWriter(f, &progressWriter{
			filename:  filename,
			total:     total,
			completed: offset,
			report:    report,
		})
	}
	if _, err := io.Copy(w, resp.Body); err != nil {
		f.Close()
		return true, fmt.Errorf("hub: download %s: %w", filename, err)
	}
	if err := f.Close(); err != nil {
		return false, fmt.Errorf("hub: close partial file: %w", err)
	}
	return false, nil
}

// DownloadSnapshot fetches a repository's files at one revision into the
// snapshot cache and returns the snapshot directory.
func (c *Client) DownloadSnapshot(ctx context.Context, repoID string, opts DownloadOptions) (string, error) {
	info, err := c.RepoInfo(ctx, repoID, opts.Revision)
	if err != nil {
		return "", err
	}
	files := filterFiles(info.Siblings, opts)
	if len(files) == 0 {
		return "", fmt.Errorf("%w: no files match in %s", ErrFileNotFound, repoID)
	}

	root, err := c.cacheRoot(opts.CacheDir)
	if err != nil {
		return "", err
	}
	loadOpts := pretrained.LoadOptions{
		Revision:       opts.Revision,
		CacheDir:       opts.CacheDir,
		ForceDownload:  opts.Force,
		ResumeDownload: opts.Resume,
		Token:          opts.Token,
	}

	par := opts.Parallelism
	if par <= 0 {
		par = defaultParallelism
	}
	sem := semaphore.NewWeighted(int64(par))
	g, ctx := errgroup.WithContext(ctx)
	for _, file := range files {
		g.Go(func() error {
			if err := sem.Acquire(ctx, 1); err != nil {
				return err
			}
			defer sem.Release(1)

			_, err := c.downloadFile(ctx, repoID, file.Rfilename, loadOpts, file.Size, opts.Progress)
			if err != nil {
				return err
			}
			if opts.Progress != nil {
				opts.Progress(Progress{Filename: file.Rfilename, Total: file.Size, Completed: file.Size, Done: true})
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}
	return SnapshotDir(root, repoID, orDefault(opts.Revision)), nil
}

// filterFiles applies the explicit file set, or the include/exclude globs,
// to a repository listing.
func filterFiles(siblings []RepoFile, opts DownloadOptions) []RepoFile {
	if len(opts.Files) > 0 {
		wanted := make(map[string]bool, len(opts.Files))
		for _, f := range opts.Files {
			wanted[f] = true
		}
		var out []RepoFile
		for _, s := range siblings {
			if wanted[s.Rfilename] {
				out = append(out, s)
			}
		}
		return out
	}

	var out []RepoFile
	for _, s := range siblings {
		if len(opts.Include) > 0 && !matchAny(opts.Include, s.Rfilename) {
			continue
		}
		if matchAny(opts.Exclude, s.Rfilename) {
			continue
		}
		out = append(out, s)
	}
	return out
}

func matchAny(patterns []string, name string) bool {
	for _, p := range patterns {
		if ok, err := path.Match(p, name); err == nil && ok {
			return true
		}
		// Globs usually target basenames; try that too.
		if ok, err := path.Match(p, path.Base(name)); err == nil && ok {
			return true
		}
	}
	return false
}

func (c *Client) cacheRoot(override string) (string, error) {
	if override != "" {
		return override, nil
	}
	if c.cacheDir != "" {
		return c.cacheDir, nil
	}
	return CacheRoot()
}

// progressWriter forwards byte counts to a callback, throttled so callers
// can render without being flooded.
type progressWriter struct {
	filename  string
	total     int64
	completed int64
	report    func(Progress)
	last      time.Time
}

func (w *progressWriter) Write(p []byte) (int, error) {
	w.completed += int64(len(p))
	if time.Since(w.last) >= progressInterval || w.completed == w.total {
		w.report(Progress{Filename: w.filename, Total: w.total, Completed: w.completed})
		w.last = time.Now()
	}
	return len(p), nil
}
