package pretrained

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	json "github.com/goccy/go-json"
)

// weightsModel is the minimal Saver: artifacts, no config.
type weightsModel struct {
	savedTo []string
}

func (m *weightsModel) SaveArtifacts(dir string) error {
	m.savedTo = append(m.savedTo, dir)
	return os.WriteFile(filepath.Join(dir, "weights.bin"), []byte("weights"), 0o644)
}

// configModel additionally carries a config.
type configModel struct {
	weightsModel
	cfg Config
}

func (m *configModel) PretrainedConfig() Config { return m.cfg }

// spyPusher records every push request.
type spyPusher struct {
	reqs []PushRequest
	// files seen under req.Dir at push time, keyed by relative path.
	files map[string]bool
}

func (p *spyPusher) PushToHub(_ context.Context, req PushRequest) (string, error) {
	p.reqs = append(p.reqs, req)
	p.files = map[string]bool{}
	entries, err := os.ReadDir(req.Dir)
	if err != nil {
		return "", err
	}
	for _, e := range entries {
		p.files[e.Name()] = true
	}
	return req.RepoID, nil
}

// spyDownloader serves config.json fixtures for remote refs and records the
// options it was called with.
type spyDownloader struct {
	calls    []LoadOptions
	filename string
	body     []byte
	err      error
	dir      string
}

func (d *spyDownloader) DownloadFile(_ context.Context, repoID, filename string, opts LoadOptions) (string, error) {
	d.calls = append(d.calls, opts)
	d.filename = filename
	if d.err != nil {
		return "", d.err
	}
	name := filepath.Join(d.dir, filename)
	if err := os.WriteFile(name, d.body, 0o644); err != nil {
		return "", err
	}
	return name, nil
}

func openArch() Architecture[*configModel] {
	return Architecture[*configModel]{
		Name:   "config-model",
		Config: Capability{Form: ConfigOpen},
		Load: func(_ context.Context, call LoadCall) (*configModel, error) {
			return &configModel{cfg: call.Config}, nil
		},
	}
}

func TestSaveWithoutConfigWritesNoFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if err := SavePretrained(context.Background(), &weightsModel{}, dir); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, ConfigFileName)); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("config.json stat = %v, want not-exist", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "weights.bin")); err != nil {
		t.Fatalf("weights missing: %v", err)
	}
}

func TestRoundTripStructured(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	saved := &trainConfig{Foo: 20, Bar: "qux"}
	model := &configModel{cfg: Structured(saved)}
	if err := SavePretrained(context.Background(), model, dir); err != nil {
		t.Fatalf("save: %v", err)
	}

	arch := Architecture[*configModel]{
		Name:   "config-model",
		Config: Capability{Form: ConfigStructured, Prototype: &trainConfig{}},
		Load: func(_ context.Context, call LoadCall) (*configModel, error) {
			return &configModel{cfg: call.Config}, nil
		},
	}
	got, err := FromPretrained(context.Background(), arch, dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	rec, ok := got.cfg.Record().(*trainConfig)
	if !ok {
		t.Fatalf("record type = %T", got.cfg.Record())
	}
	if *rec != *saved {
		t.Fatalf("round trip = %+v, want %+v", *rec, *saved)
	}
}

func TestRoundTripOpen(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	model := &configModel{cfg: Open(map[string]any{"foo": 20, "bar": "qux"})}
	if err := SavePretrained(context.Background(), model, dir); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := FromPretrained(context.Background(), openArch(), dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	want := map[string]any{"foo": float64(20), "bar": "qux"}
	if !reflect.DeepEqual(got.cfg.Mapping(), want) {
		t.Fatalf("mapping = %v, want %v", got.cfg.Mapping(), want)
	}
}

func TestExplicitConfigOverridesInstance(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	instance := Open(map[string]any{"foo": 1})
	model := &configModel{cfg: instance}
	override := map[string]any{"foo": 20, "bar": "qux"}
	if err := SavePretrained(context.Background(), model, dir, WithConfig(Open(override))); err != nil {
		t.Fatalf("save: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, ConfigFileName))
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	var onDisk map[string]any
	if err := json.Unmarshal(data, &onDisk); err != nil {
		t.Fatalf("parse config: %v", err)
	}
	want := map[string]any{"foo": float64(20), "bar": "qux"}
	if !reflect.DeepEqual(onDisk, want) {
		t.Fatalf("on disk = %v, want %v", onDisk, want)
	}

	// One-shot: the instance keeps its own config.
	if !reflect.DeepEqual(model.PretrainedConfig(), instance) {
		t.Fatalf("instance config changed by override")
	}
}

func TestPushOnlyWhenRequested(t *testing.T) {
	t.Parallel()

	spy := &spyPusher{}
	model := &configModel{cfg: Open(map[string]any{"foo": 20, "bar": "qux"})}

	dir := filepath.Join(t.TempDir(), "my-model")
	if err := SavePretrained(context.Background(), model, dir); err != nil {
		t.Fatalf("save: %v", err)
	}
	if len(spy.reqs) != 0 {
		t.Fatalf("push happened without WithPush")
	}

	if err := SavePretrained(context.Background(), model, dir, WithPush(spy)); err != nil {
		t.Fatalf("save with push: %v", err)
	}
	if len(spy.reqs) != 1 {
		t.Fatalf("push count = %d, want 1", len(spy.reqs))
	}
	req := spy.reqs[0]
	if req.RepoID != "my-model" {
		t.Fatalf("repo id = %q, want directory basename", req.RepoID)
	}
	want := map[string]any{"foo": 20, "bar": "qux"}
	if !reflect.DeepEqual(req.Config, want) {
		t.Fatalf("pushed config = %v, want %v", req.Config, want)
	}
}

func TestPushExplicitRepoID(t *testing.T) {
	t.Parallel()

	spy := &spyPusher{}
	model := &weightsModel{}
	dir := filepath.Join(t.TempDir(), "local-name")
	err := SavePretrained(context.Background(), model, dir,
		WithPush(spy),
		WithRepoID("ns/other"),
		WithPushOptions(PushOptions{CommitMessage: "initial"}),
	)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	req := spy.reqs[0]
	if req.RepoID != "ns/other" {
		t.Fatalf("repo id = %q", req.RepoID)
	}
	if req.Config != nil {
		t.Fatalf("config = %v, want nil for config-less model", req.Config)
	}
	if req.Options.CommitMessage != "initial" {
		t.Fatalf("push options not forwarded: %+v", req.Options)
	}
}

func TestFromPretrainedForwardsOptions(t *testing.T) {
	t.Parallel()

	var got *LoadCall
	arch := Architecture[*weightsModel]{
		Name:   "weights",
		Config: Capability{Form: ConfigNone},
		Load: func(_ context.Context, call LoadCall) (*weightsModel, error) {
			got = &call
			return &weightsModel{}, nil
		},
	}
	dl := &spyDownloader{err: ErrEntryNotFound}

	_, err := FromPretrained(context.Background(), arch, "ns/repo",
		WithClient(dl), WithRevision("R"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	want := LoadOptions{Revision: "R"}
	if got == nil {
		t.Fatalf("load hook not called")
	}
	if got.ModelID != "ns/repo" {
		t.Fatalf("model id = %q", got.ModelID)
	}
	if !reflect.DeepEqual(got.Options, want) {
		t.Fatalf("hook options = %+v, want %+v", got.Options, want)
	}
	if len(dl.calls) != 1 || !reflect.DeepEqual(dl.calls[0], want) {
		t.Fatalf("client options = %+v, want %+v", dl.calls, want)
	}
	if dl.filename != ConfigFileName {
		t.Fatalf("probed %q, want %q", dl.filename, ConfigFileName)
	}
}

func TestFromPretrainedRemoteConfig(t *testing.T) {
	t.Parallel()

	dl := &spyDownloader{dir: t.TempDir(), body: []byte(`{"foo": 20, "bar": "qux"}`)}
	got, err := FromPretrained(context.Background(), openArch(), "ns/repo", WithClient(dl))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	want := map[string]any{"foo": float64(20), "bar": "qux"}
	if !reflect.DeepEqual(got.cfg.Mapping(), want) {
		t.Fatalf("mapping = %v, want %v", got.cfg.Mapping(), want)
	}
}

func TestFromPretrainedRemoteNeedsClient(t *testing.T) {
	t.Parallel()

	_, err := FromPretrained(context.Background(), openArch(), "ns/missing")
	if !errors.Is(err, ErrNoClient) {
		t.Fatalf("err = %v, want ErrNoClient", err)
	}
}

func TestFromPretrainedRelativeAndAbsolute(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "saved-model")
	model := &configModel{cfg: Open(map[string]any{"foo": 20, "bar": "qux"})}
	if err := SavePretrained(context.Background(), model, dir); err != nil {
		t.Fatalf("save: %v", err)
	}

	t.Chdir(root)

	want := map[string]any{"foo": float64(20), "bar": "qux"}
	for _, ref := range []string{"saved-model", dir} {
		got, err := FromPretrained(context.Background(), openArch(), ref)
		if err != nil {
			t.Fatalf("load %q: %v", ref, err)
		}
		if !reflect.DeepEqual(got.cfg.Mapping(), want) {
			t.Fatalf("load %q mapping = %v", ref, got.cfg.Mapping())
		}
	}
}

func TestConfigNoneIgnoresStoredConfig(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if err := WriteConfig(dir, Open(map[string]any{"foo": 1})); err != nil {
		t.Fatalf("write config: %v", err)
	}

	arch := Architecture[*weightsModel]{
		Name:   "weights",
		Config: Capability{Form: ConfigNone},
		Load: func(_ context.Context, call LoadCall) (*weightsModel, error) {
			if !call.Config.IsZero() {
				t.Fatalf("hook received config %v for a ConfigNone type", call.Config)
			}
			return &weightsModel{}, nil
		},
	}
	if _, err := FromPretrained(context.Background(), arch, dir); err != nil {
		t.Fatalf("load: %v", err)
	}
}

func TestConfigOverrideBeatsStored(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if err := WriteConfig(dir, Open(map[string]any{"foo": 1})); err != nil {
		t.Fatalf("write config: %v", err)
	}

	override := Open(map[string]any{"foo": 99})
	got, err := FromPretrained(context.Background(), openArch(), dir, WithConfigOverride(override))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.cfg.Mapping()["foo"] != 99 {
		t.Fatalf("override lost: %v", got.cfg.Mapping())
	}
}

func TestFromPretrainedReturnsHookValue(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if err := SavePretrained(context.Background(), &weightsModel{}, dir); err != nil {
		t.Fatalf("save: %v", err)
	}

	instance := &weightsModel{}
	arch := Architecture[*weightsModel]{
		Config: Capability{Form: ConfigNone},
		Load: func(_ context.Context, _ LoadCall) (*weightsModel, error) {
			return instance, nil
		},
	}
	got, err := FromPretrained(context.Background(), arch, dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got != instance {
		t.Fatalf("result is not the hook's return value")
	}
}

func TestFromPretrainedHookErrorPropagates(t *testing.T) {
	t.Parallel()

	hookErr := errors.New("corrupt weights")
	arch := Architecture[*weightsModel]{
		Config: Capability{Form: ConfigNone},
		Load: func(_ context.Context, _ LoadCall) (*weightsModel, error) {
			return nil, hookErr
		},
	}
	_, err := FromPretrained(context.Background(), arch, t.TempDir())
	if !errors.Is(err, hookErr) {
		t.Fatalf("err = %v, want hook error unwrapped", err)
	}
}

func TestFromPretrainedMismatchSurfaces(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if err := WriteConfig(dir, Open(map[string]any{"foo": 20, "stray": true})); err != nil {
		t.Fatalf("write config: %v", err)
	}

	arch := Architecture[*configModel]{
		Name:   "config-model",
		Config: Capability{Form: ConfigStructured, Prototype: &trainConfig{}},
		Load: func(_ context.Context, call LoadCall) (*configModel, error) {
			return &configModel{cfg: call.Config}, nil
		},
	}
	_, err := FromPretrained(context.Background(), arch, dir)
	if !errors.Is(err, ErrConfigMismatch) {
		t.Fatalf("err = %v, want ErrConfigMismatch", err)
	}
}

func TestEndToEnd(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "e2e-model")
	model := &configModel{cfg: Open(map[string]any{"foo": 20, "bar": "qux"})}
	if err := SavePretrained(context.Background(), model, dir); err != nil {
		t.Fatalf("save: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, ConfigFileName))
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	var onDisk map[string]any
	if err := json.Unmarshal(data, &onDisk); err != nil {
		t.Fatalf("parse config: %v", err)
	}
	want := map[string]any{"foo": float64(20), "bar": "qux"}
	if !reflect.DeepEqual(onDisk, want) {
		t.Fatalf("on disk = %v, want %v", onDisk, want)
	}

	got, err := FromPretrained(context.Background(), openArch(), dir)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !reflect.DeepEqual(got.cfg.Mapping(), want) {
		t.Fatalf("reloaded = %v, want %v", got.cfg.Mapping(), want)
	}
}
