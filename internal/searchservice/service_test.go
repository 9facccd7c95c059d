package searchservice

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akimixu/mksearch/internal/apperr"
	"github.com/akimixu/mksearch/internal/events"
	"github.com/akimixu/mksearch/internal/models"
	"github.com/akimixu/mksearch/internal/storage"
	"github.com/akimixu/mksearch/internal/testutil"
)

func newService(t *testing.T, files map[string]string, opts ...Option) (*Service, *events.Recorder) {
	t.Helper()
	_, store := testutil.TestWorkspace(t, files)
	rec := &events.Recorder{}
	svc, err := New(store, rec, opts...)
	require.NoError(t, err)
	t.Cleanup(svc.Close)
	return svc, rec
}

// waitTerminal blocks until the recorder saw a terminal event for epoch.
func waitTerminal(t *testing.T, rec *events.Recorder, epoch uint64) events.Event {
	t.Helper()
	var last events.Event
	require.Eventually(t, func() bool {
		for _, e := range rec.Events() {
			if e.Epoch == epoch && e.Type.Terminal() {
				last = e
				return true
			}
		}
		return false
	}, 5*time.Second, 5*time.Millisecond)
	return last
}

func TestRequestOptions(t *testing.T) {
	opts, err := Request{
		Keywords:       " hello，world ,, ",
		ExcludePattern: "node_modules, dist",
		WholeWord:      true,
	}.Options()
	require.NoError(t, err)
	assert.Equal(t, []string{"hello", "world"}, opts.Keywords)
	assert.Equal(t, models.DefaultInclude, opts.IncludePattern)
	assert.Equal(t, "{**/node_modules/**,**/dist/**}", opts.ExcludePattern)
	assert.True(t, opts.WholeWord)

	_, err = Request{Keywords: " , ，"}.Options()
	assert.True(t, errors.Is(err, apperr.ErrInvalidInput))
}

func TestSearchStreamsResults(t *testing.T) {
	svc, rec := newService(t, map[string]string{
		"A.txt": "hello world",
		"B.txt": "hello there world",
		"C.txt": "hello",
	})
	ticket, err := svc.Search(Request{Keywords: "hello, world"})
	require.NoError(t, err)
	assert.NotEmpty(t, ticket.RunID)
	assert.Equal(t, uint64(1), ticket.Epoch)

	last := waitTerminal(t, rec, ticket.Epoch)
	assert.Equal(t, events.TypeComplete, last.Type)

	var names []string
	for _, r := range rec.Results() {
		names = append(names, r.FileName)
	}
	sort.Strings(names)
	assert.Equal(t, []string{"A.txt", "B.txt"}, names)
	assert.Eventually(t, func() bool { return !svc.State().IsSearching }, time.Second, 5*time.Millisecond)
}

func TestSearchRejectsEmptyKeywords(t *testing.T) {
	svc, rec := newService(t, map[string]string{"a.txt": "a"})
	_, err := svc.Search(Request{Keywords: "   "})
	assert.True(t, errors.Is(err, apperr.ErrInvalidInput))
	require.Len(t, rec.Events(), 1)
	assert.Equal(t, events.TypeError, rec.Events()[0].Type)
	assert.Equal(t, "Enter search keywords", rec.Events()[0].Message)
	assert.Equal(t, uint64(0), svc.State().Epoch)
}

func TestSearchWithoutWorkspace(t *testing.T) {
	rec := &events.Recorder{}
	svc, err := New(nil, rec)
	require.NoError(t, err)
	defer svc.Close()

	_, err = svc.Search(Request{Keywords: "x"})
	assert.True(t, errors.Is(err, apperr.ErrNoWorkspace))
	assert.Equal(t, []events.Type{events.TypeError}, rec.Types())

	_, err = svc.Open(OpenRequest{FilePath: "a.txt"})
	assert.True(t, errors.Is(err, apperr.ErrNoWorkspace))
}

func TestSearchNoCandidates(t *testing.T) {
	svc, rec := newService(t, map[string]string{"a.txt": "a"})
	ticket, err := svc.Search(Request{Keywords: "a", IncludePattern: "**/*.none"})
	require.NoError(t, err)
	last := waitTerminal(t, rec, ticket.Epoch)
	assert.Equal(t, events.TypeError, last.Type)
	assert.Empty(t, rec.Results())
}

func TestStopEmitsOnce(t *testing.T) {
	svc, rec := newService(t, map[string]string{"a.txt": "a"})
	assert.False(t, svc.Stop())

	run := svc.session.Start(context.Background())
	assert.True(t, svc.Stop())
	assert.False(t, svc.Stop())
	run.Emit(events.Stopped("late"))
	run.Finish()

	assert.Equal(t, []events.Type{events.TypeStopped}, rec.Types())
	assert.True(t, svc.State().ShouldStop)
}

func TestRunSynchronous(t *testing.T) {
	svc, rec := newService(t, map[string]string{"a.txt": "alpha beta", "b.txt": "alpha"},
		WithHistory(testutil.TestDB(t)))
	s, err := svc.Run(context.Background(), Request{Keywords: "alpha,beta"})
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeCompleted, s.Outcome)
	assert.Equal(t, 1, s.Found)
	assert.Len(t, rec.Results(), 1)

	hist, err := svc.History(10)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, []string{"alpha", "beta"}, hist[0].Keywords)
	assert.Equal(t, 1, hist[0].Found)
}

func TestQuick(t *testing.T) {
	files := map[string]string{}
	for _, n := range []string{"a", "b", "c", "d"} {
		files[n+".go"] = "package " + n + " // marker"
	}
	files["skip.txt"] = "marker"
	svc, rec := newService(t, files)

	res, err := svc.Quick(context.Background(), Request{Keywords: "marker", IncludePattern: "**/*.go", MaxResults: 2})
	require.NoError(t, err)
	assert.Len(t, res.Results, 2)
	assert.Equal(t, models.OutcomeCompleted, res.Summary.Outcome)
	assert.Empty(t, rec.Events(), "quick search bypasses the session sink")

	_, err = svc.Quick(context.Background(), Request{Keywords: "marker", IncludePattern: "**/*.rs"})
	assert.True(t, errors.Is(err, apperr.ErrNoCandidates))
}

func TestOpen(t *testing.T) {
	svc, _ := newService(t, map[string]string{"src/a.go": "package a\n\n  func A() {}\n"})
	line, char := 3, 2
	loc, err := svc.Open(OpenRequest{FilePath: "src/a.go", Line: &line, Character: &char})
	require.NoError(t, err)
	assert.Equal(t, "src/a.go", loc.RelativePath)
	assert.Equal(t, 3, loc.Line)
	assert.Equal(t, 2, loc.Character)
	assert.Equal(t, "  func A() {}", loc.Text)

	far := 99
	loc, err = svc.Open(OpenRequest{FilePath: loc.FilePath, Line: &far})
	require.NoError(t, err)
	assert.Equal(t, 4, loc.Line)

	_, err = svc.Open(OpenRequest{FilePath: "missing.go"})
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
	_, err = svc.Open(OpenRequest{FilePath: "../outside.go"})
	assert.True(t, errors.Is(err, apperr.ErrOutsideWorkspace))
	_, err = svc.Open(OpenRequest{})
	assert.True(t, errors.Is(err, apperr.ErrInvalidInput))
}

func TestNewSearchSupersedesRunning(t *testing.T) {
	files := map[string]string{}
	for i := 0; i < 200; i++ {
		files[fmt.Sprintf("d%02d/f%03d.txt", i%10, i)] = "needle"
	}
	svc, rec := newService(t, files, WithGrace(50*time.Millisecond))

	first, err := svc.Search(Request{Keywords: "needle"})
	require.NoError(t, err)
	second, err := svc.Search(Request{Keywords: "needle"})
	require.NoError(t, err)
	assert.Greater(t, second.Epoch, first.Epoch)

	waitTerminal(t, rec, second.Epoch)
	terminals := map[uint64]int{}
	seenSecond := false
	for _, e := range rec.Events() {
		if e.Epoch == second.Epoch {
			seenSecond = true
		}
		if e.Epoch == first.Epoch {
			assert.False(t, seenSecond, "first run emitted after the second started")
		}
		if e.Type.Terminal() {
			terminals[e.Epoch]++
		}
	}
	assert.Equal(t, 1, terminals[first.Epoch])
	assert.Equal(t, 1, terminals[second.Epoch])
}

func TestRejectedSearchKeepsRunningStreamClean(t *testing.T) {
	_, store := testutil.TestWorkspace(t, map[string]string{"a.txt": "alpha"})
	rec := &events.Recorder{}
	held := make(chan struct{})
	release := make(chan struct{})
	var once bool
	gate := events.SinkFunc(func(e events.Event) {
		if e.Type == events.TypeStart && !once {
			once = true
			close(held)
			<-release
		}
	})
	svc, err := New(store, events.Multi(gate, rec))
	require.NoError(t, err)
	defer svc.Close()

	started := make(chan Ticket, 1)
	go func() {
		ticket, err := svc.Search(Request{Keywords: "alpha"})
		assert.NoError(t, err)
		started <- ticket
	}()
	<-held

	_, err = svc.Search(Request{Keywords: " , "})
	assert.True(t, errors.Is(err, apperr.ErrInvalidInput))
	assert.True(t, svc.State().IsSearching)

	close(release)
	ticket := <-started
	last := waitTerminal(t, rec, ticket.Epoch)
	assert.Equal(t, events.TypeComplete, last.Type)
	for _, e := range rec.Events() {
		assert.NotEqual(t, uint64(0), e.Epoch, "unexpected %s event %q", e.Type, e.Message)
	}
}

type panickingStore struct {
	storage.Provider
}

func (panickingStore) Find(context.Context, string, string) ([]models.FileRef, error) {
	panic("walk failed")
}

func TestQuickRecoversPanic(t *testing.T) {
	_, store := testutil.TestWorkspace(t, map[string]string{"a.txt": "alpha"})
	db := testutil.TestDB(t)
	svc, err := New(panickingStore{store}, events.Discard, WithHistory(db))
	require.NoError(t, err)
	defer svc.Close()

	var res *QuickResult
	require.NotPanics(t, func() {
		res, err = svc.Quick(context.Background(), Request{Keywords: "alpha"})
	})
	assert.Nil(t, res)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic: walk failed")

	entries, err := db.Recent(10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, models.OutcomeErrored, entries[0].Outcome)
}
