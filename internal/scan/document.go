// Package scan locates keyword occurrences inside a text document and maps
// byte offsets to editor positions.
package scan

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Document is an immutable text with a precomputed line-break table.
// Lines end at "\n", "\r\n" or a lone "\r".
type Document struct {
	text       string
	lineStarts []int

	folded *foldedText
}

// foldedText is the lower-cased form of a text. offsets maps every byte of
// text back to the original byte offset; it is nil when folding kept the byte
// layout intact.
type foldedText struct {
	text    string
	offsets []int
}

// NewDocument builds the line table for text.
func NewDocument(text string) *Document {
	starts := make([]int, 1, 64)
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '\r':
			if i+1 < len(text) && text[i+1] == '\n' {
				i++
			}
			starts = append(starts, i+1)
		case '\n':
			starts = append(starts, i+1)
		}
	}
	return &Document{text: text, lineStarts: starts}
}

// Text returns the document content.
func (d *Document) Text() string { return d.text }

// LineCount returns the number of lines, counting a trailing empty line.
func (d *Document) LineCount() int { return len(d.lineStarts) }

// PositionAt converts a byte offset into a 0-based line and a 0-based
// character counted in UTF-16 code units.
func (d *Document) PositionAt(offset int) (line, character int) {
	offset = max(0, min(offset, len(d.text)))
	line = sort.Search(len(d.lineStarts), func(i int) bool {
		return d.lineStarts[i] > offset
	}) - 1
	for _, r := range d.text[d.lineStarts[line]:offset] {
		character++
		if r >= 0x10000 {
			character++
		}
	}
	return line, character
}

// LineText returns the content of a 0-based line without its terminator.
func (d *Document) LineText(line int) string {
	if line < 0 || line >= len(d.lineStarts) {
		return ""
	}
	end := len(d.text)
	if line+1 < len(d.lineStarts) {
		end = d.lineStarts[line+1]
	}
	s := d.text[d.lineStarts[line]:end]
	s = strings.TrimSuffix(s, "\n")
	return strings.TrimSuffix(s, "\r")
}

// haystack returns the text that keywords are matched against and the
// offset map back to the original bytes.
func (d *Document) haystack(caseSensitive bool) (string, []int) {
	if caseSensitive {
		return d.text, nil
	}
	if d.folded == nil {
		f := fold(d.text)
		d.folded = &f
	}
	return d.folded.text, d.folded.offsets
}

// Fold lower-cases s rune by rune. It is the folding used for
// case-insensitive matching of both keywords and text.
func Fold(s string) string {
	return fold(s).text
}

func fold(s string) foldedText {
	var b strings.Builder
	b.Grow(len(s))
	var offsets []int
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size <= 1 {
			// Invalid byte: keep it as is.
			if offsets != nil {
				offsets = append(offsets, i)
			}
			b.WriteByte(s[i])
			i++
			continue
		}
		lr := unicode.ToLower(r)
		n := utf8.RuneLen(lr)
		if n != size && offsets == nil {
			offsets = make([]int, b.Len(), len(s)+16)
			for j := range offsets {
				offsets[j] = j
			}
		}
		if offsets != nil {
			for k := 0; k < n; k++ {
				offsets = append(offsets, i)
			}
		}
		b.WriteRune(lr)
		i += size
	}
	if offsets != nil {
		offsets = append(offsets, len(s))
	}
	return foldedText{text: b.String(), offsets: offsets}
}
