package pretrained

import (
	"context"
	"errors"
	"fmt"
	"os"
)

// LoadOptions is the fixed network and caching parameter surface forwarded
// from FromPretrained to the load hook and the repository client. Fields are
// passed verbatim, never renamed or reinterpreted on the way through; their
// zero values are the documented defaults.
type LoadOptions struct {
	// Revision selects a branch, tag or commit; empty means the client's
	// default branch.
	Revision string
	// CacheDir overrides the client's snapshot cache root.
	CacheDir string
	// ForceDownload refetches files that are already cached.
	ForceDownload bool
	// Proxies maps URL scheme to proxy URL. Opaque to this package.
	Proxies map[string]string
	// ResumeDownload continues partially downloaded files.
	ResumeDownload bool
	// LocalFilesOnly forbids network access; only cached files are used.
	LocalFilesOnly bool
	// Token overrides the client's credential for this call.
	Token string
}

// LoadCall is what a load hook receives: the resolved source (a local
// directory path or a remote repo id, exactly as resolved), the forwarded
// options, and the resolved config, which is the zero Config when none was
// stored or the type declares ConfigNone.
type LoadCall struct {
	ModelID string
	Options LoadOptions
	Config  Config
}

// Architecture describes one reconstructable model type.
type Architecture[M any] struct {
	// Name identifies the type in errors.
	Name string
	// Config declares whether and how Load receives a stored config.
	Config Capability
	// Load rebuilds the model from the call's source. FromPretrained
	// returns its result unchanged.
	Load func(ctx context.Context, call LoadCall) (M, error)
}

// LoadOption adjusts a single FromPretrained call.
type LoadOption func(*loadSettings)

type loadSettings struct {
	opts     LoadOptions
	client   FileDownloader
	override *Config
}

// WithRevision selects the repository revision to load from.
func WithRevision(rev string) LoadOption {
	return func(s *loadSettings) { s.opts.Revision = rev }
}

// WithCacheDir overrides the snapshot cache root for this call.
func WithCacheDir(dir string) LoadOption {
	return func(s *loadSettings) { s.opts.CacheDir = dir }
}

// WithForceDownload refetches files even when they are cached.
func WithForceDownload(force bool) LoadOption {
	return func(s *loadSettings) { s.opts.ForceDownload = force }
}

// WithProxies forwards a scheme→proxy-URL mapping to the client.
func WithProxies(p map[string]string) LoadOption {
	return func(s *loadSettings) { s.opts.Proxies = p }
}

// WithResumeDownload continues partial downloads instead of restarting.
func WithResumeDownload(resume bool) LoadOption {
	return func(s *loadSettings) { s.opts.ResumeDownload = resume }
}

// WithLocalFilesOnly forbids network access for this call.
func WithLocalFilesOnly(only bool) LoadOption {
	return func(s *loadSettings) { s.opts.LocalFilesOnly = only }
}

// WithToken overrides the client credential for this call.
func WithToken(token string) LoadOption {
	return func(s *loadSettings) { s.opts.Token = token }
}

// WithLoadOptions replaces the whole forwarded option set at once.
func WithLoadOptions(o LoadOptions) LoadOption {
	return func(s *loadSettings) { s.opts = o }
}

// WithClient supplies the repository client used to probe remote configs.
// Load hooks that fetch artifacts themselves receive the same options and
// typically share the same client.
func WithClient(c FileDownloader) LoadOption {
	return func(s *loadSettings) { s.client = c }
}

// WithConfigOverride replaces whatever config was stored at the source.
// The override bypasses materialization; the caller owns its shape.
func WithConfigOverride(c Config) LoadOption {
	return func(s *loadSettings) { s.override = &c }
}

// FromPretrained reconstructs a model from a local directory or a remote
// repository. A ref that exists on disk, whether absolute or relative to
// the working directory, wins over remote resolution and never touches the
// network. The reconstructed value is the hook's return value, unwrapped,
// and no step retries.
func FromPretrained[M any](ctx context.Context, arch Architecture[M], ref string, opts ...LoadOption) (M, error) {
	var zero M
	var s loadSettings
	for _, opt := range opts {
		opt(&s)
	}

	if arch.Load == nil {
		return zero, fmt.Errorf("pretrained: architecture %s has no load hook", archName(arch.Name))
	}

	mapping, err := resolveConfig(ctx, ref, s)
	if err != nil {
		return zero, err
	}

	var cfg Config
	if s.override != nil {
		// An explicit override wins outright; the stored mapping is not
		// materialized, so a shape mismatch on disk cannot fail the call.
		cfg = *s.override
	} else {
		cfg, err = arch.Config.resolve(mapping)
		if err != nil {
			return zero, fmt.Errorf("%s: %w", archName(arch.Name), err)
		}
	}

	return arch.Load(ctx, LoadCall{ModelID: ref, Options: s.opts, Config: cfg})
}

// resolveConfig reads the stored config mapping for ref. Locally that is a
// direct file read; remotely the config is probed through the client with
// the options forwarded verbatim. An entry missing at the source is the
// no-config state; every other failure surfaces.
func resolveConfig(ctx context.Context, ref string, s loadSettings) (map[string]any, error) {
	if info, err := os.Stat(ref); err == nil && info.IsDir() {
		return ReadConfig(ref)
	}
	if s.client == nil {
		return nil, fmt.Errorf("%w: cannot resolve %q", ErrNoClient, ref)
	}
	name, err := s.client.DownloadFile(ctx, ref, ConfigFileName, s.opts)
	if errors.Is(err, ErrEntryNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return readConfigFile(name)
}

func archName(name string) string {
	if name == "" {
		return "model"
	}
	return name
}
