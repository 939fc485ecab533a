// Package pretrained gives model types a uniform save/load/push contract
// over a single canonical artifact, config.json.
//
// A model participates through small interfaces rather than inheritance:
// Saver writes the model's own artifacts, ConfigHolder exposes an attached
// config, and an Architecture value declares how the type is rebuilt and in
// which form its loader receives a stored config. Remote repositories are
// reached only through the narrow client interfaces in this package; package
// hub provides the HTTP implementation.
package pretrained

import "context"

// ConfigFileName is the single artifact this package owns inside a model
// directory. Its absence is the sole signal that a model has no config.
const ConfigFileName = "config.json"

// Saver is the framework-specific save hook. It writes every model artifact
// except config.json into dir, which exists by the time it is called.
type Saver interface {
	SaveArtifacts(dir string) error
}

// ConfigHolder is implemented by models that carry a config. Models without
// one simply don't implement it, and saving them writes no config.json.
type ConfigHolder interface {
	PretrainedConfig() Config
}

// FileDownloader fetches a single file from a remote repository and returns
// its local path. Implementations receive the LoadOptions verbatim as they
// were passed to FromPretrained.
type FileDownloader interface {
	DownloadFile(ctx context.Context, repoID, filename string, opts LoadOptions) (string, error)
}

// CreateRepoOptions control repository creation.
type CreateRepoOptions struct {
	Private bool
	// ExistOK treats an already existing repository as success.
	ExistOK bool
	Token   string
}

// RepoCreator creates remote repositories.
type RepoCreator interface {
	CreateRepo(ctx context.Context, repoID string, opts CreateRepoOptions) error
}

// UploadOptions control a single file upload.
type UploadOptions struct {
	Revision      string
	CommitMessage string
	Token         string
}

// FileUploader stores a local file at pathInRepo inside a remote repository.
type FileUploader interface {
	UploadFile(ctx context.Context, localPath, repoID, pathInRepo string, opts UploadOptions) error
}

// RepositoryClient is the remote surface the built-in pusher needs.
type RepositoryClient interface {
	RepoCreator
	FileUploader
}
