package pretrained

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// PushOptions are transport options forwarded to the pusher untouched.
type PushOptions struct {
	Revision      string
	CommitMessage string
	Private       bool
	Token         string
}

// PushRequest is the push operation surface: the target repository, the
// local tree to upload, and the config as a canonical mapping. The mapping
// is nil when the model has none and is never the structured-record form,
// so push transport stays decoupled from the model's in-memory
// representation.
type PushRequest struct {
	RepoID  string
	Dir     string
	Config  map[string]any
	Options PushOptions
}

// Pusher uploads a saved model tree to a remote repository and returns an
// identifier for where it landed.
type Pusher interface {
	PushToHub(ctx context.Context, req PushRequest) (string, error)
}

// NewPusher returns a Pusher that creates the repository when missing and
// uploads every regular file under the tree, preserving relative paths.
func NewPusher(client RepositoryClient) Pusher {
	return &repoPusher{client: client}
}

type repoPusher struct {
	client RepositoryClient
}

func (p *repoPusher) PushToHub(ctx context.Context, req PushRequest) (string, error) {
	err := p.client.CreateRepo(ctx, req.RepoID, CreateRepoOptions{
		Private: req.Options.Private,
		ExistOK: true,
		Token:   req.Options.Token,
	})
	if err != nil {
		return "", err
	}

	up := UploadOptions{
		Revision:      req.Options.Revision,
		CommitMessage: req.Options.CommitMessage,
		Token:         req.Options.Token,
	}
	err = filepath.WalkDir(req.Dir, func(name string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(req.Dir, name)
		if err != nil {
			return err
		}
		return p.client.UploadFile(ctx, name, req.RepoID, filepath.ToSlash(rel), up)
	})
	if err != nil {
		return "", err
	}
	return req.RepoID, nil
}

// PushToHub saves the model into a temporary directory and uploads it
// through p. The effective config follows the same resolution as
// SavePretrained: WithConfig override first, then the model's own, then
// none.
func PushToHub(ctx context.Context, model Saver, p Pusher, repoID string, opts ...SaveOption) (string, error) {
	var s saveSettings
	for _, opt := range opts {
		opt(&s)
	}
	if repoID == "" {
		return "", errors.New("pretrained: push needs a repository id")
	}

	dir, err := os.MkdirTemp("", "hubkit-push-*")
	if err != nil {
		return "", fmt.Errorf("pretrained: temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	cfg := effectiveConfig(model, s.override)
	if err := model.SaveArtifacts(dir); err != nil {
		return "", err
	}
	if err := WriteConfig(dir, cfg); err != nil {
		return "", err
	}
	mapping, err := cfg.Canonical()
	if err != nil {
		return "", err
	}
	return p.PushToHub(ctx, PushRequest{
		RepoID:  repoID,
		Dir:     dir,
		Config:  mapping,
		Options: s.push,
	})
}
