// Package parser turns raw search-panel input into keywords and glob patterns.
package parser

import (
	"fmt"
	"strings"

	"golang.org/x/text/width"

	"github.com/akimixu/mksearch/internal/apperr"
	"github.com/akimixu/mksearch/internal/models"
)

// isSeparator reports whether r separates list items. Both the ASCII comma
// and its full-width form are accepted.
func isSeparator(r rune) bool {
	if r == ',' {
		return true
	}
	return width.LookupRune(r).Narrow() == ','
}

// SplitList splits s on commas, trims every item and drops empty ones.
func SplitList(s string) []string {
	fields := strings.FieldsFunc(s, isSeparator)
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// Keywords parses the comma-separated keyword input.
func Keywords(raw string) ([]string, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("%w: enter search keywords", apperr.ErrInvalidInput)
	}
	kws := SplitList(raw)
	if len(kws) == 0 {
		return nil, fmt.Errorf("%w: enter at least one keyword", apperr.ErrInvalidInput)
	}
	return kws, nil
}

// CleanKeywords trims a pre-split keyword list and drops empty entries.
func CleanKeywords(in []string) ([]string, error) {
	out := make([]string, 0, len(in))
	for _, k := range in {
		if k = strings.TrimSpace(k); k != "" {
			out = append(out, k)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: enter at least one keyword", apperr.ErrInvalidInput)
	}
	return out, nil
}

// IncludeGlob returns the trimmed include pattern, or the match-all glob when blank.
func IncludeGlob(raw string) string {
	if p := strings.TrimSpace(raw); p != "" {
		return p
	}
	return models.DefaultInclude
}

// ExcludeGlob converts a folder-name list such as "node_modules, dist" into
// "{**/node_modules/**,**/dist/**}". It returns "" when no folder remains,
// meaning nothing is excluded.
func ExcludeGlob(folders string) string {
	names := SplitList(folders)
	parts := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.Trim(n, "/")
		if n == "" {
			continue
		}
		parts = append(parts, "**/"+n+"/**")
	}
	if len(parts) == 0 {
		return ""
	}
	return "{" + strings.Join(parts, ",") + "}"
}
