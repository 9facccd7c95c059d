package search

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/akimixu/mksearch/internal/apperr"
	"github.com/akimixu/mksearch/internal/models"
	"github.com/akimixu/mksearch/internal/storage"
)

// Enumerator resolves include/exclude globs into size-ordered candidates.
type Enumerator struct {
	store  storage.Provider
	logger *slog.Logger
}

// NewEnumerator creates an Enumerator over store.
func NewEnumerator(store storage.Provider, logger *slog.Logger) *Enumerator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Enumerator{store: store, logger: logger}
}

// Enumerate lists the candidate files in ascending size order, ties kept in
// walk order. It returns apperr.ErrNoCandidates when nothing matched.
func (e *Enumerator) Enumerate(ctx context.Context, opts models.SearchOptions) ([]models.Candidate, error) {
	include := strings.TrimSpace(opts.IncludePattern)
	if include == "" {
		include = models.DefaultInclude
	}
	refs, err := e.store.Find(ctx, include, strings.TrimSpace(opts.ExcludePattern))
	if err != nil {
		return nil, fmt.Errorf("search: enumerate: %w", err)
	}
	if len(refs) == 0 {
		return nil, fmt.Errorf("search: enumerate %q: %w", include, apperr.ErrNoCandidates)
	}

	out := make([]models.Candidate, len(refs))
	for i, ref := range refs {
		size, err := e.store.Stat(ref.RelPath)
		if err != nil {
			e.logger.Debug("stat failed, treating as empty",
				slog.String("path", ref.RelPath), slog.String("error", err.Error()))
			size = 0
		}
		out[i] = models.Candidate{FileRef: ref, Size: size}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Size < out[j].Size })
	return out, nil
}
