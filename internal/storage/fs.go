package storage

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/akimixu/mksearch/internal/apperr"
	"github.com/akimixu/mksearch/internal/models"
)

// FS implements Provider backed by the local file system.
type FS struct {
	root string // absolute path to workspace directory
}

// NewFS creates a new FS provider rooted at the given directory.
// The directory must already exist.
func NewFS(root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	return &FS{root: abs}, nil
}

// Root returns the absolute workspace root.
func (f *FS) Root() string { return f.root }

// safePath resolves a path against the workspace root and rejects any
// result that escapes it (directory traversal). Absolute paths are accepted
// when they lie under the root.
func (f *FS) safePath(p string) (string, error) {
	if p == "" {
		return f.root, nil
	}
	cleaned := filepath.Clean(filepath.FromSlash(p))
	joined := cleaned
	if !filepath.IsAbs(cleaned) {
		joined = filepath.Join(f.root, cleaned)
	}
	abs, err := filepath.Abs(joined)
	if err != nil {
		return "", fmt.Errorf("storage: resolve path: %w", err)
	}
	if !strings.HasPrefix(abs, f.root+string(os.PathSeparator)) && abs != f.root {
		return "", fmt.Errorf("storage: %s: %w", p, apperr.ErrOutsideWorkspace)
	}
	return abs, nil
}

func (f *FS) ref(abs string) models.FileRef {
	rel, _ := filepath.Rel(f.root, abs)
	return models.FileRef{Path: abs, RelPath: filepath.ToSlash(rel)}
}

// Resolve maps an absolute or root-relative path to a FileRef.
func (f *FS) Resolve(p string) (models.FileRef, error) {
	abs, err := f.safePath(p)
	if err != nil {
		return models.FileRef{}, err
	}
	return f.ref(abs), nil
}

// Find walks the workspace and returns files matching the globs.
// Directories named by a "**/name/**" exclude entry are not descended into.
func (f *FS) Find(ctx context.Context, include, exclude string) ([]models.FileRef, error) {
	if include == "" {
		include = models.DefaultInclude
	}
	if !doublestar.ValidatePattern(include) {
		return nil, fmt.Errorf("storage: invalid include pattern %q", include)
	}
	if exclude != "" && !doublestar.ValidatePattern(exclude) {
		return nil, fmt.Errorf("storage: invalid exclude pattern %q", exclude)
	}
	pruned := prunableDirs(exclude)

	var out []models.FileRef
	err := filepath.WalkDir(f.root, func(p string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if walkErr != nil {
			// Unreadable directories are skipped, not fatal.
			if d != nil && d.IsDir() && p != f.root {
				return fs.SkipDir
			}
			return nil
		}
		ref := f.ref(p)
		if d.IsDir() {
			if p != f.root && dirExcluded(ref.RelPath, pruned) {
				return fs.SkipDir
			}
			return nil
		}
		if !isFile(p, d) {
			return nil
		}
		if ok, _ := doublestar.Match(include, ref.RelPath); !ok {
			return nil
		}
		if exclude != "" {
			if ok, _ := doublestar.Match(exclude, ref.RelPath); ok {
				return nil
			}
		}
		out = append(out, ref)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("storage: find: %w", err)
	}
	return out, nil
}

// Stat returns the size of a workspace file.
func (f *FS) Stat(path string) (int64, error) {
	abs, err := f.safePath(path)
	if err != nil {
		return 0, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return 0, fmt.Errorf("storage: stat %s: %w", path, err)
	}
	return info.Size(), nil
}

// Read returns the raw bytes of a workspace file.
func (f *FS) Read(path string) ([]byte, error) {
	abs, err := f.safePath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", path, err)
	}
	return data, nil
}

func isFile(p string, d fs.DirEntry) bool {
	if d.Type().IsRegular() {
		return true
	}
	if d.Type()&fs.ModeSymlink == 0 {
		return false
	}
	info, err := os.Stat(p)
	return err == nil && info.Mode().IsRegular()
}

// prunableDirs extracts the literal folder paths from "**/<name>/**" members
// of a top-level exclude alternation.
func prunableDirs(exclude string) []string {
	if exclude == "" {
		return nil
	}
	members := []string{exclude}
	if strings.HasPrefix(exclude, "{") && strings.HasSuffix(exclude, "}") {
		members = splitTopLevel(exclude[1 : len(exclude)-1])
	}
	var out []string
	for _, m := range members {
		if !strings.HasPrefix(m, "**/") || !strings.HasSuffix(m, "/**") || len(m) <= len("**//**") {
			continue
		}
		name := m[len("**/") : len(m)-len("/**")]
		if strings.ContainsAny(name, `*?[]{}\`) {
			continue
		}
		out = append(out, name)
	}
	return out
}

func splitTopLevel(s string) []string {
	var out []string
	depth, start := 0, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
		case ',':
			if depth == 0 {
				out = append(out, s[start:i])
				start = i + 1
			}
		}
	}
	return append(out, s[start:])
}

func dirExcluded(rel string, names []string) bool {
	for _, n := range names {
		if rel == n || strings.HasSuffix(rel, "/"+n) {
			return true
		}
	}
	return false
}
