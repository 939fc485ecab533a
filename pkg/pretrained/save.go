package pretrained

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// SaveOption adjusts a single SavePretrained or PushToHub call.
type SaveOption func(*saveSettings)

type saveSettings struct {
	override *Config
	pusher   Pusher
	repoID   string
	push     PushOptions
}

// WithConfig overrides the model's attached config for this call only. The
// model keeps its own config afterwards; passing the zero Config suppresses
// writing config.json even for a ConfigHolder.
func WithConfig(c Config) SaveOption {
	return func(s *saveSettings) { s.override = &c }
}

// WithPush uploads the saved tree through p after a successful save.
func WithPush(p Pusher) SaveOption {
	return func(s *saveSettings) { s.pusher = p }
}

// WithRepoID names the target repository for a push. When unset the id
// defaults to the final path element of the save directory.
func WithRepoID(id string) SaveOption {
	return func(s *saveSettings) { s.repoID = id }
}

// WithPushOptions forwards transport options to the pusher untouched.
func WithPushOptions(o PushOptions) SaveOption {
	return func(s *saveSettings) { s.push = o }
}

// SavePretrained writes the model's artifacts and its config to dir and
// optionally pushes the result to a remote repository.
//
// The effective config is the WithConfig override when given, else the
// model's own via ConfigHolder, else none. The save hook and the config
// write always run; a push is strictly an additional side effect gated by
// WithPush. Hook and pusher failures propagate unwrapped.
func SavePretrained(ctx context.Context, model Saver, dir string, opts ...SaveOption) error {
	var s saveSettings
	for _, opt := range opts {
		opt(&s)
	}

	cfg := effectiveConfig(model, s.override)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("pretrained: create %s: %w", dir, err)
	}
	if err := model.SaveArtifacts(dir); err != nil {
		return err
	}
	if err := WriteConfig(dir, cfg); err != nil {
		return err
	}
	if s.pusher == nil {
		return nil
	}

	repoID := s.repoID
	if repoID == "" {
		repoID = filepath.Base(filepath.Clean(dir))
	}
	mapping, err := cfg.Canonical()
	if err != nil {
		return err
	}
	_, err = s.pusher.PushToHub(ctx, PushRequest{
		RepoID:  repoID,
		Dir:     dir,
		Config:  mapping,
		Options: s.push,
	})
	return err
}

func effectiveConfig(model Saver, override *Config) Config {
	if override != nil {
		return *override
	}
	if h, ok := model.(ConfigHolder); ok {
		return h.PretrainedConfig()
	}
	return Config{}
}
