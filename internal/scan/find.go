package scan

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/akimixu/mksearch/internal/models"
)

const (
	// DefaultMaxPositions bounds the positions reported per keyword and file.
	DefaultMaxPositions = 50
	// DefaultContextWidth is the rune length of a context line before truncation.
	DefaultContextWidth = 100

	ellipsis = "..."
)

// Options controls how a keyword is matched.
type Options struct {
	CaseSensitive bool
	WholeWord     bool
	MaxPositions  int
	ContextWidth  int
}

func (o Options) withDefaults() Options {
	if o.MaxPositions <= 0 {
		o.MaxPositions = DefaultMaxPositions
	}
	if o.ContextWidth <= 0 {
		o.ContextWidth = DefaultContextWidth
	}
	return o
}

// Matcher finds one keyword. It is safe for concurrent use across documents.
type Matcher struct {
	keyword string
	needle  string
	re      *regexp.Regexp
	opts    Options
}

// NewMatcher prepares keyword for repeated matching.
func NewMatcher(keyword string, opts Options) *Matcher {
	opts = opts.withDefaults()
	m := &Matcher{keyword: keyword, needle: keyword, opts: opts}
	if !opts.CaseSensitive {
		m.needle = Fold(keyword)
	}
	if opts.WholeWord && m.needle != "" {
		m.re = regexp.MustCompile(`\b` + regexp.QuoteMeta(m.needle) + `\b`)
	}
	return m
}

// Keyword returns the keyword in its original casing.
func (m *Matcher) Keyword() string { return m.keyword }

// Exists is the cheap pre-check: a plain substring test that ignores the
// whole-word setting.
func (m *Matcher) Exists(d *Document) bool {
	if m.needle == "" {
		return false
	}
	hay, _ := d.haystack(m.opts.CaseSensitive)
	return strings.Contains(hay, m.needle)
}

// Find returns up to MaxPositions occurrences in document order.
func (m *Matcher) Find(d *Document) []models.MatchPosition {
	if m.needle == "" {
		return nil
	}
	hay, offsets := d.haystack(m.opts.CaseSensitive)

	var hits []int
	if m.re != nil {
		// FindAll steps over empty matches itself.
		for _, loc := range m.re.FindAllStringIndex(hay, m.opts.MaxPositions) {
			hits = append(hits, loc[0])
		}
	} else {
		cursor := 0
		for len(hits) < m.opts.MaxPositions {
			idx := strings.Index(hay[cursor:], m.needle)
			if idx < 0 {
				break
			}
			hits = append(hits, cursor+idx)
			cursor += idx + len(m.needle)
		}
	}

	out := make([]models.MatchPosition, 0, len(hits))
	for _, h := range hits {
		if offsets != nil {
			h = offsets[h]
		}
		line, char := d.PositionAt(h)
		out = append(out, models.MatchPosition{
			Line:      line + 1,
			Character: char,
			Text:      contextText(d.LineText(line), m.opts.ContextWidth),
		})
	}
	return out
}

// Scan finds keyword in text.
func Scan(text, keyword string, opts Options) []models.MatchPosition {
	return NewMatcher(keyword, opts).Find(NewDocument(text))
}

func contextText(line string, width int) string {
	line = strings.TrimSpace(line)
	if utf8.RuneCountInString(line) <= width {
		return line
	}
	n := 0
	for i := range line {
		if n == width {
			return line[:i] + ellipsis
		}
		n++
	}
	return line
}
