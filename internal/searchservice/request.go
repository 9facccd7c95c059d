package searchservice

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/akimixu/mksearch/internal/apperr"
	"github.com/akimixu/mksearch/internal/models"
	"github.com/akimixu/mksearch/internal/parser"
)

// Request is the search payload sent by a client panel. Keywords and
// ExcludePattern are comma-separated lists; ExcludePattern holds folder names.
type Request struct {
	Keywords       string `json:"keywords"`
	IncludePattern string `json:"includePattern"`
	ExcludePattern string `json:"excludePattern"`
	CaseSensitive  bool   `json:"caseSensitive"`
	WholeWord      bool   `json:"wholeWord"`
	MaxResults     int    `json:"maxResults,omitempty"`
}

// Options validates r and converts it into engine options.
func (r Request) Options() (models.SearchOptions, error) {
	kws, err := parser.Keywords(r.Keywords)
	if err != nil {
		return models.SearchOptions{}, err
	}
	return models.SearchOptions{
		KeywordSpec: models.KeywordSpec{
			Keywords:      kws,
			CaseSensitive: r.CaseSensitive,
			WholeWord:     r.WholeWord,
		},
		IncludePattern: parser.IncludeGlob(r.IncludePattern),
		ExcludePattern: parser.ExcludeGlob(r.ExcludePattern),
		MaxResults:     max(r.MaxResults, 0),
	}, nil
}

// OpenRequest asks for a file location. Line is 1-based, Character 0-based.
type OpenRequest struct {
	FilePath  string `json:"filePath"`
	Line      *int   `json:"line,omitempty"`
	Character *int   `json:"character,omitempty"`
}

// Location is a resolved position inside the workspace.
type Location struct {
	FilePath     string `json:"filePath"`
	RelativePath string `json:"relativePath"`
	Line         int    `json:"line"`
	Character    int    `json:"character"`
	Text         string `json:"text"`
}

// Ticket identifies an accepted asynchronous search.
type Ticket struct {
	RunID string `json:"runId"`
	Epoch uint64 `json:"epoch"`
}

// userMessage renders an input error the way a panel shows it.
func userMessage(err error) string {
	msg := strings.TrimPrefix(err.Error(), apperr.ErrInvalidInput.Error()+": ")
	r, size := utf8.DecodeRuneInString(msg)
	if r == utf8.RuneError {
		return msg
	}
	return string(unicode.ToUpper(r)) + msg[size:]
}
