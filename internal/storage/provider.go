// Package storage defines the workspace file-system abstraction used by the
// search engine: enumeration by glob, size lookup and content reads.
package storage

import (
	"context"

	"github.com/akimixu/mksearch/internal/models"
)

// Provider is the interface for workspace file operations.
type Provider interface {
	// Root returns the absolute workspace root.
	Root() string
	// Find returns every file matching include and not matching exclude,
	// in walk order. An empty exclude excludes nothing.
	Find(ctx context.Context, include, exclude string) ([]models.FileRef, error)
	// Stat returns the size in bytes of the file at path (relative to root).
	Stat(path string) (int64, error)
	// Read returns the raw bytes of the file at path (relative to root).
	Read(path string) ([]byte, error)
	// Resolve maps an absolute or root-relative path to a FileRef inside the workspace.
	Resolve(path string) (models.FileRef, error)
}
