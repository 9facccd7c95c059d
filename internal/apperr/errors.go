// Package apperr holds the sentinel errors shared across layers.
package apperr

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrNoWorkspace      = errors.New("no workspace folder available")
	ErrNoCandidates     = errors.New("no files matched")
	ErrOutsideWorkspace = errors.New("path escapes workspace root")
)
