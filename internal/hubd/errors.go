package hubd

import "errors"

var (
	ErrRepoExists   = errors.New("hubd: repository already exists")
	ErrRepoNotFound = errors.New("hubd: repository not found")
	ErrFileNotFound = errors.New("hubd: file not found")
	ErrBadPath      = errors.New("hubd: invalid repository or file path")
)
