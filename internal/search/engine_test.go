package search

import (
	"context"
	"fmt"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akimixu/mksearch/internal/events"
	"github.com/akimixu/mksearch/internal/models"
	"github.com/akimixu/mksearch/internal/testutil"
)

func newEngine(t *testing.T, files map[string]string, opts ...Option) *Engine {
	t.Helper()
	_, store := testutil.TestWorkspace(t, files)
	e, err := New(store, opts...)
	require.NoError(t, err)
	return e
}

func keywords(kw ...string) models.SearchOptions {
	return models.SearchOptions{KeywordSpec: models.KeywordSpec{Keywords: kw}}
}

func resultNames(rec *events.Recorder) []string {
	var out []string
	for _, r := range rec.Results() {
		out = append(out, r.RelativePath)
	}
	sort.Strings(out)
	return out
}

// assertProtocol checks the run framing: one searchStart first, one terminal
// event last and monotone batch progress.
func assertProtocol(t *testing.T, rec *events.Recorder) {
	t.Helper()
	evs := rec.Events()
	require.NotEmpty(t, evs)
	assert.Equal(t, events.TypeStart, evs[0].Type)
	assert.Equal(t, 1, count(rec.Types(), events.TypeStart))
	assert.True(t, evs[len(evs)-1].Type.Terminal(), "last event %s", evs[len(evs)-1].Type)
	last := -1
	for _, e := range evs[:len(evs)-1] {
		assert.False(t, e.Type.Terminal(), "terminal %s before end", e.Type)
		if p, ok := e.Progress.(events.BatchProgress); ok {
			assert.Greater(t, p.Processed, last)
			last = p.Processed
		}
	}
}

func TestRun_EndToEnd(t *testing.T) {
	e := newEngine(t, map[string]string{
		"A.txt": "hello world",
		"B.txt": "hello there world",
		"C.txt": "nothing here",
	})
	var rec events.Recorder
	s := e.Run(context.Background(), keywords("hello", "world"), &rec)

	assertProtocol(t, &rec)
	assert.Equal(t, events.TypeComplete, rec.Types()[len(rec.Types())-1])
	assert.Equal(t, []string{"A.txt", "B.txt"}, resultNames(&rec))
	for _, r := range rec.Results() {
		assert.Len(t, r.KeywordPositions["hello"], 1)
		assert.Len(t, r.KeywordPositions["world"], 1)
	}
	assert.Equal(t, models.Summary{Outcome: models.OutcomeCompleted, Total: 3, Processed: 3, Found: 2}, s)
}

func TestRun_ResultProgressSnapshots(t *testing.T) {
	files := map[string]string{}
	for i := 0; i < 25; i++ {
		files[fmt.Sprintf("f%02d.txt", i)] = "needle"
	}
	e := newEngine(t, files)
	var rec events.Recorder
	e.Run(context.Background(), keywords("needle"), &rec)

	assertProtocol(t, &rec)
	var currents []int
	batches := 0
	for _, ev := range rec.Events() {
		switch p := ev.Progress.(type) {
		case events.ResultProgress:
			currents = append(currents, p.Current)
			assert.Equal(t, 25, p.TotalFiles)
			assert.LessOrEqual(t, p.Processed, 25)
		case events.BatchProgress:
			batches++
			assert.Equal(t, 25, p.Total)
			assert.Equal(t, p.Processed, p.Found)
		}
	}
	require.Len(t, currents, 25)
	for i, c := range currents {
		assert.Equal(t, i+1, c)
	}
	assert.Equal(t, 4, batches, "announcement plus three batches")
}

func TestRun_ResultsStayInsideTheirBatch(t *testing.T) {
	files := map[string]string{}
	for i := 0; i < 12; i++ {
		files[fmt.Sprintf("f%02d.txt", i)] = "k"
	}
	e := newEngine(t, files, WithBatchSize(4))
	var rec events.Recorder
	e.Run(context.Background(), keywords("k"), &rec)

	sinceProgress := 0
	for _, ev := range rec.Events() {
		switch p := ev.Progress.(type) {
		case events.ResultProgress:
			sinceProgress++
		case events.BatchProgress:
			if p.Processed > 0 {
				assert.Equal(t, 4, sinceProgress)
			}
			sinceProgress = 0
		}
	}
}

func TestRun_NoCandidates(t *testing.T) {
	e := newEngine(t, map[string]string{"a.txt": "hello"})
	var rec events.Recorder
	opts := keywords("hello")
	opts.IncludePattern = "**/*.none"
	s := e.Run(context.Background(), opts, &rec)

	assert.Equal(t, models.OutcomeErrored, s.Outcome)
	assert.Empty(t, rec.Results())
	types := rec.Types()
	assert.Equal(t, events.TypeError, types[len(types)-1])
	assert.Equal(t, 1, count(types, events.TypeError))
}

func TestRun_ExcludePatternAnnounced(t *testing.T) {
	e := newEngine(t, map[string]string{"a.txt": "hello", "node_modules/b.txt": "hello"})
	var rec events.Recorder
	opts := keywords("hello")
	opts.ExcludePattern = "{**/node_modules/**}"
	e.Run(context.Background(), opts, &rec)

	evs := rec.Events()
	assert.Equal(t, events.TypeProgress, evs[1].Type)
	assert.Contains(t, evs[1].Message, "{**/node_modules/**}")
	assert.Equal(t, []string{"a.txt"}, resultNames(&rec))
}

func TestRun_CancelledBeforeStart(t *testing.T) {
	e := newEngine(t, map[string]string{"a.txt": "hello"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var rec events.Recorder
	s := e.Run(ctx, keywords("hello"), &rec)

	assert.Equal(t, models.OutcomeStopped, s.Outcome)
	assert.Empty(t, rec.Results())
	assert.Equal(t, []events.Type{events.TypeStart, events.TypeStopped}, rec.Types())
}

func TestRun_StopMidSearch(t *testing.T) {
	files := map[string]string{}
	for i := 0; i < 20; i++ {
		files[fmt.Sprintf("f%02d.txt", i)] = "hit"
	}
	e := newEngine(t, files, WithBatchSize(1))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var rec events.Recorder
	sink := events.SinkFunc(func(ev events.Event) {
		rec.Emit(ev)
		if ev.Type == events.TypeResultItem {
			cancel()
		}
	})
	s := e.Run(ctx, keywords("hit"), sink)

	assert.Equal(t, models.OutcomeStopped, s.Outcome)
	assert.Len(t, rec.Results(), 1)
	types := rec.Types()
	assert.Equal(t, events.TypeStopped, types[len(types)-1])
	assert.Equal(t, 1, count(types, events.TypeStopped))
	assert.Zero(t, count(types, events.TypeComplete))
	for _, ev := range rec.Events() {
		if p, ok := ev.Progress.(events.BatchProgress); ok {
			assert.Zero(t, p.Processed, "no batch progress after stop")
		}
	}
}

func TestRun_MaxResults(t *testing.T) {
	files := map[string]string{}
	for i := 0; i < 30; i++ {
		files[fmt.Sprintf("f%02d.txt", i)] = "hit"
	}
	e := newEngine(t, files)
	opts := keywords("hit")
	opts.MaxResults = 5
	var rec events.Recorder
	s := e.Run(context.Background(), opts, &rec)

	assertProtocol(t, &rec)
	assert.Equal(t, models.OutcomeCompleted, s.Outcome)
	assert.Len(t, rec.Results(), 5)
	assert.Equal(t, 10, s.Processed)
}

func TestRun_Idempotent(t *testing.T) {
	files := map[string]string{}
	for i := 0; i < 40; i++ {
		body := "alpha"
		if i%3 == 0 {
			body = "alpha beta"
		}
		files[fmt.Sprintf("d%d/f%02d.txt", i%4, i)] = body
	}
	e := newEngine(t, files)
	var first, second events.Recorder
	e.Run(context.Background(), keywords("alpha", "beta"), &first)
	e.Run(context.Background(), keywords("alpha", "beta"), &second)

	assert.Len(t, resultNames(&first), 14)
	assert.Equal(t, resultNames(&first), resultNames(&second))
}

func TestRun_NoKeywords(t *testing.T) {
	e := newEngine(t, map[string]string{"a.txt": "a"})
	var rec events.Recorder
	s := e.Run(context.Background(), models.SearchOptions{}, &rec)
	assert.Equal(t, models.OutcomeErrored, s.Outcome)
	assert.Equal(t, []events.Type{events.TypeError}, rec.Types())
}

func TestNew_RejectsBadBatchSize(t *testing.T) {
	_, store := testutil.TestWorkspace(t, nil)
	_, err := New(store, WithBatchSize(0))
	assert.Error(t, err)
}

func count(types []events.Type, want events.Type) int {
	n := 0
	for _, t := range types {
		if t == want {
			n++
		}
	}
	return n
}
