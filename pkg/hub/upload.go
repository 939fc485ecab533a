package hub

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"

	json "github.com/goccy/go-json"

	"github.com/samcharles93/hubkit/pkg/pretrained"
)

// RepoInfo fetches repository metadata at a revision; empty means main.
func (c *Client) RepoInfo(ctx context.Context, repoID, revision string) (*RepoInfo, error) {
	if err := ValidateRepoID(repoID); err != nil {
		return nil, err
	}
	u := c.apiURL("models", repoID)
	if revision != "" {
		u = c.apiURL("models", repoID, "revision", url.PathEscape(revision))
	}
	resp, err := c.get(ctx, u, "", nil, ErrRepoNotFound)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var info RepoInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("hub: decode repo info: %w", err)
	}
	return &info, nil
}

// CreateRepo creates a model repository. With ExistOK an already existing
// repository is success.
func (c *Client) CreateRepo(ctx context.Context, repoID string, opts pretrained.CreateRepoOptions) error {
	if err := ValidateRepoID(repoID); err != nil {
		return err
	}
	body, err := json.Marshal(createRepoRequest{Type: "model", Name: repoID, Private: opts.Private})
	if err != nil {
		return fmt.Errorf("hub: encode create request: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, c.apiURL("repos", "create"), bytes.NewReader(body), opts.Token)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.send(req, nil)
	if err != nil {
		return fmt.Errorf("hub: create repo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusConflict && opts.ExistOK {
		return nil
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return responseError(resp, ErrRepoNotFound)
	}
	c.log.Debug("created repo", "repo", repoID, "private", opts.Private)
	return nil
}

// DeleteRepo removes a repository and everything in it.
func (c *Client) DeleteRepo(ctx context.Context, repoID string) error {
	if err := ValidateRepoID(repoID); err != nil {
		return err
	}
	body, err := json.Marshal(deleteRepoRequest{Name: repoID})
	if err != nil {
		return fmt.Errorf("hub: encode delete request: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodDelete, c.apiURL("repos", "delete"), bytes.NewReader(body), "")
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.send(req, nil)
	if err != nil {
		return fmt.Errorf("hub: delete repo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return responseError(resp, ErrRepoNotFound)
	}
	return nil
}

// UploadFile stores a local file at pathInRepo inside the repository. The
// revision is created implicitly on first write.
func (c *Client) UploadFile(ctx context.Context, localPath, repoID, pathInRepo string, opts pretrained.UploadOptions) error {
	if err := ValidateRepoID(repoID); err != nil {
		return err
	}
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("hub: open %s: %w", localPath, err)
	}
	defer f.Close()

	u := c.apiURL("models", repoID, "upload", url.PathEscape(orDefault(opts.Revision)), escapePath(pathInRepo))
	if opts.CommitMessage != "" {
		u += "?message=" + url.QueryEscape(opts.CommitMessage)
	}
	req, err := c.newRequest(ctx, http.MethodPost, u, f, opts.Token)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	if info, err := f.Stat(); err == nil {
		req.ContentLength = info.Size()
	}
	resp, err := c.send(req, nil)
	if err != nil {
		return fmt.Errorf("hub: upload %s: %w", pathInRepo, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return responseError(resp, ErrRepoNotFound)
	}
	c.log.Debug("uploaded file", "repo", repoID, "path", pathInRepo)
	return nil
}

// interface guards: the client must keep satisfying the loader-side and
// pusher-side contracts.
var (
	_ pretrained.FileDownloader   = (*Client)(nil)
	_ pretrained.RepositoryClient = (*Client)(nil)
)
