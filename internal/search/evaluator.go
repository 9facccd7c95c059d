// Package search implements the conjunctive multi-keyword search: candidate
// enumeration, single-file evaluation and the streaming batch orchestrator.
package search

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/akimixu/mksearch/internal/models"
	"github.com/akimixu/mksearch/internal/scan"
	"github.com/akimixu/mksearch/internal/storage"
)

// binarySniffLen is how many leading bytes are inspected for NUL.
const binarySniffLen = 8000

var (
	// ErrBinary marks a file skipped because it looks binary.
	ErrBinary = errors.New("search: binary file")
	// ErrTooLarge marks a file skipped because it exceeds the size limit.
	ErrTooLarge = errors.New("search: file too large")
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Evaluator decides whether one file contains every keyword.
type Evaluator struct {
	store       storage.Provider
	keywords    []string
	matchers    []*scan.Matcher
	maxFileSize int64
}

// NewEvaluator compiles the keyword set once for use across many files.
// maxFileSize <= 0 disables the size limit.
func NewEvaluator(store storage.Provider, spec models.KeywordSpec, opts scan.Options, maxFileSize int64) *Evaluator {
	opts.CaseSensitive = spec.CaseSensitive
	opts.WholeWord = spec.WholeWord
	matchers := make([]*scan.Matcher, len(spec.Keywords))
	for i, k := range spec.Keywords {
		matchers[i] = scan.NewMatcher(k, opts)
	}
	return &Evaluator{
		store:       store,
		keywords:    spec.Keywords,
		matchers:    matchers,
		maxFileSize: maxFileSize,
	}
}

// Evaluate returns the file's MatchResult, or nil when some keyword is
// missing. A non-nil error means the file could not be read and should be
// treated as absent.
func (e *Evaluator) Evaluate(c models.Candidate) (*models.MatchResult, error) {
	if e.maxFileSize > 0 && c.Size > e.maxFileSize {
		return nil, fmt.Errorf("%s: %w", c.RelPath, ErrTooLarge)
	}
	data, err := e.store.Read(c.RelPath)
	if err != nil {
		return nil, err
	}
	if e.maxFileSize > 0 && int64(len(data)) > e.maxFileSize {
		return nil, fmt.Errorf("%s: %w", c.RelPath, ErrTooLarge)
	}
	if bytes.IndexByte(data[:min(len(data), binarySniffLen)], 0) >= 0 {
		return nil, fmt.Errorf("%s: %w", c.RelPath, ErrBinary)
	}
	doc := scan.NewDocument(string(bytes.TrimPrefix(data, utf8BOM)))
	return e.match(c.FileRef, doc), nil
}

func (e *Evaluator) match(ref models.FileRef, doc *scan.Document) *models.MatchResult {
	if len(e.matchers) == 0 {
		return nil
	}
	for _, m := range e.matchers {
		if !m.Exists(doc) {
			return nil
		}
	}

	res := &models.MatchResult{
		FilePath:         ref.Path,
		FileName:         filepath.Base(ref.Path),
		RelativePath:     ref.RelPath,
		MatchedKeywords:  make([]string, 0, len(e.matchers)),
		KeywordPositions: make(map[string][]models.MatchPosition, len(e.matchers)),
	}
	for _, m := range e.matchers {
		kw := m.Keyword()
		positions, seen := res.KeywordPositions[kw]
		if !seen {
			positions = m.Find(doc)
			// Whole-word mode can reject what the substring pre-check accepted.
			if len(positions) == 0 {
				return nil
			}
			res.KeywordPositions[kw] = positions
			res.TotalMatches += len(positions)
		}
		res.MatchedKeywords = append(res.MatchedKeywords, kw)
	}
	return res
}
