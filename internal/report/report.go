// Package report renders search events for terminals and pipes.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/fatih/color"

	"github.com/akimixu/mksearch/internal/events"
	"github.com/akimixu/mksearch/internal/history"
	"github.com/akimixu/mksearch/internal/models"
)

var (
	colorHeader  = color.New(color.FgHiMagenta, color.Bold)
	colorBold    = color.New(color.Bold)
	colorCyan    = color.New(color.FgCyan)
	colorDim     = color.New(color.Faint)
	colorWarning = color.New(color.FgYellow)
	colorError   = color.New(color.FgRed, color.Bold)
)

// Text prints events as human-readable lines. It implements events.Sink.
type Text struct {
	mu  sync.Mutex
	w   io.Writer
	err io.Writer
	// Positions is the number of positions shown per keyword (0 = all).
	Positions int
}

// NewText writes results to w and diagnostics to errw.
func NewText(w, errw io.Writer) *Text {
	return &Text{w: w, err: errw, Positions: 3}
}

// Emit implements events.Sink.
func (t *Text) Emit(e events.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch e.Type {
	case events.TypeStart:
		colorHeader.Fprintln(t.err, e.Message)
	case events.TypeProgress:
		if p, ok := e.Progress.(events.BatchProgress); ok && p.Processed > 0 {
			colorDim.Fprintf(t.err, "  %d/%d files, %d found\n", p.Processed, p.Total, p.Found)
		} else if e.Message != "" {
			colorDim.Fprintln(t.err, e.Message)
		}
	case events.TypeResultItem:
		if e.Data != nil {
			WriteResult(t.w, e.Data, t.Positions)
		}
	case events.TypeComplete:
		colorBold.Fprintln(t.err, e.Message)
	case events.TypeStopped:
		colorWarning.Fprintln(t.err, e.Message)
	case events.TypeError:
		colorError.Fprintln(t.err, "error: "+e.Message)
	}
}

// WriteResult prints one file with up to limit positions per keyword.
func WriteResult(w io.Writer, r *models.MatchResult, limit int) {
	colorBold.Fprintf(w, "%s", r.RelativePath)
	fmt.Fprintf(w, "  (%d matches)\n", r.TotalMatches)
	for _, kw := range uniqueKeywords(r.MatchedKeywords) {
		positions := r.KeywordPositions[kw]
		colorCyan.Fprintf(w, "  %s", kw)
		fmt.Fprintf(w, " ×%d\n", len(positions))
		n := len(positions)
		if limit > 0 && n > limit {
			n = limit
		}
		for _, p := range positions[:n] {
			fmt.Fprintf(w, "    %d:%d  %s\n", p.Line, p.Character, p.Text)
		}
		if n < len(positions) {
			colorDim.Fprintf(w, "    ... %d more\n", len(positions)-n)
		}
	}
}

// NDJSON writes every event as one JSON object per line. It implements
// events.Sink.
type NDJSON struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewNDJSON creates an NDJSON sink writing to w.
func NewNDJSON(w io.Writer) *NDJSON {
	return &NDJSON{enc: json.NewEncoder(w)}
}

// Emit implements events.Sink.
func (n *NDJSON) Emit(e events.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	_ = n.enc.Encode(e)
}

// KeywordCounts sums positions per keyword across results, in the order
// keywords were given.
func KeywordCounts(keywords []string, results []*models.MatchResult) []string {
	totals := make(map[string]int, len(keywords))
	for _, r := range results {
		for kw, ps := range r.KeywordPositions {
			totals[kw] += len(ps)
		}
	}
	out := make([]string, 0, len(keywords))
	for _, kw := range uniqueKeywords(keywords) {
		out = append(out, fmt.Sprintf("%s: %d matches", kw, totals[kw]))
	}
	return out
}

// Summary renders a finished quick search.
func Summary(keywords []string, results []*models.MatchResult, s models.Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d of %d files contain all keywords (%s)\n", len(results), s.Total, s.Outcome)
	for _, line := range KeywordCounts(keywords, results) {
		b.WriteString("  " + line + "\n")
	}
	paths := make([]string, len(results))
	for i, r := range results {
		paths[i] = r.RelativePath
	}
	sort.Strings(paths)
	for _, p := range paths {
		b.WriteString(p + "\n")
	}
	return b.String()
}

// WriteHistory prints recorded searches, one per line.
func WriteHistory(w io.Writer, entries []history.Entry) {
	if len(entries) == 0 {
		colorDim.Fprintln(w, "no searches recorded")
		return
	}
	for _, e := range entries {
		outcome := colorBold
		switch e.Outcome {
		case models.OutcomeStopped:
			outcome = colorWarning
		case models.OutcomeErrored:
			outcome = colorError
		}
		colorDim.Fprint(w, e.StartedAt.Local().Format("2006-01-02 15:04:05")+"  ")
		outcome.Fprintf(w, "%-9s", e.Outcome)
		fmt.Fprintf(w, "  %d/%d  ", e.Found, e.Total)
		colorCyan.Fprint(w, strings.Join(e.Keywords, ", "))
		filters := e.IncludePattern
		if e.ExcludePattern != "" {
			filters += " !" + e.ExcludePattern
		}
		colorDim.Fprintf(w, "  [%s]\n", filters)
	}
}

func uniqueKeywords(kws []string) []string {
	seen := make(map[string]bool, len(kws))
	out := make([]string, 0, len(kws))
	for _, k := range kws {
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	return out
}
