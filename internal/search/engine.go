package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/akimixu/mksearch/internal/apperr"
	"github.com/akimixu/mksearch/internal/events"
	"github.com/akimixu/mksearch/internal/models"
	"github.com/akimixu/mksearch/internal/scan"
	"github.com/akimixu/mksearch/internal/storage"
)

// DefaultBatchSize is the number of files evaluated concurrently per batch.
const DefaultBatchSize = 10

// Engine runs searches against one workspace.
type Engine struct {
	store       storage.Provider
	enumerator  *Enumerator
	batchSize   int
	scanOpts    scan.Options
	maxFileSize int64
	logger      *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine) error

// WithBatchSize sets the batch width. Default is DefaultBatchSize.
func WithBatchSize(n int) Option {
	return func(e *Engine) error {
		if n < 1 {
			return fmt.Errorf("search: batch size must be positive, got %d", n)
		}
		e.batchSize = n
		return nil
	}
}

// WithMaxPositions caps the positions reported per keyword and file.
func WithMaxPositions(n int) Option {
	return func(e *Engine) error {
		e.scanOpts.MaxPositions = n
		return nil
	}
}

// WithContextWidth sets the context line truncation width in runes.
func WithContextWidth(n int) Option {
	return func(e *Engine) error {
		e.scanOpts.ContextWidth = n
		return nil
	}
}

// WithMaxFileSize skips files larger than n bytes. Zero means no limit.
func WithMaxFileSize(n int64) Option {
	return func(e *Engine) error {
		e.maxFileSize = n
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) error {
		if logger == nil {
			logger = slog.Default()
		}
		e.logger = logger
		return nil
	}
}

// New creates an Engine over store.
func New(store storage.Provider, opts ...Option) (*Engine, error) {
	if store == nil {
		return nil, apperr.ErrNoWorkspace
	}
	e := &Engine{
		store:     store,
		batchSize: DefaultBatchSize,
		scanOpts: scan.Options{
			MaxPositions: scan.DefaultMaxPositions,
			ContextWidth: scan.DefaultContextWidth,
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	e.enumerator = NewEnumerator(store, e.logger)
	return e, nil
}

// BatchSize reports the configured batch width.
func (e *Engine) BatchSize() int { return e.batchSize }

// Run executes one search, streaming events into sink. Cancelling ctx is the
// stop signal. Exactly one terminal event is emitted before Run returns.
func (e *Engine) Run(ctx context.Context, opts models.SearchOptions, sink events.Sink) models.Summary {
	r := &run{
		engine: e,
		opts:   opts,
		sink:   sink,
		log:    e.logger.With(slog.String("keywords", strings.Join(opts.Keywords, ","))),
	}
	return r.execute(ctx)
}

type run struct {
	engine *Engine
	opts   models.SearchOptions
	sink   events.Sink
	log    *slog.Logger

	mu        sync.Mutex // guards found, processed and result emission
	total     int
	processed int
	found     int
}

func (r *run) summary(outcome models.Outcome, err error) models.Summary {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := models.Summary{Outcome: outcome, Total: r.total, Processed: r.processed, Found: r.found}
	if err != nil {
		s.Err = err.Error()
		s.Cause = err
	}
	return s
}

func (r *run) stopped() models.Summary {
	r.sink.Emit(events.Stopped("Search stopped by user"))
	return r.summary(models.OutcomeStopped, nil)
}

func (r *run) fail(message string, err error) models.Summary {
	r.sink.Emit(events.Error(message))
	return r.summary(models.OutcomeErrored, err)
}

func (r *run) execute(ctx context.Context) models.Summary {
	if len(r.opts.Keywords) == 0 {
		return r.fail("Enter at least one keyword", apperr.ErrInvalidInput)
	}

	r.sink.Emit(events.Start("Searching for files containing: " + strings.Join(r.opts.Keywords, ", ")))
	if r.opts.ExcludePattern != "" {
		r.sink.Emit(events.Event{Type: events.TypeProgress, Message: "Exclude pattern: " + r.opts.ExcludePattern})
	}

	candidates, err := r.engine.enumerator.Enumerate(ctx, r.opts)
	switch {
	case ctx.Err() != nil:
		return r.stopped()
	case errors.Is(err, apperr.ErrNoCandidates):
		return r.fail("No matching files found, check the file patterns", err)
	case err != nil:
		r.log.Error("enumeration failed", slog.String("error", err.Error()))
		return r.fail("Search failed: "+err.Error(), err)
	}
	r.total = len(candidates)
	r.sink.Emit(events.Progress(fmt.Sprintf("Searching %d files...", r.total),
		events.BatchProgress{Total: r.total}))

	size := r.engine.batchSize
	pool, err := ants.NewPool(size, ants.WithPanicHandler(func(p any) {
		r.log.Error("file evaluation panicked", slog.Any("panic", p))
	}))
	if err != nil {
		return r.fail("Search failed: "+err.Error(), err)
	}
	defer pool.Release()

	eval := NewEvaluator(r.engine.store, r.opts.KeywordSpec, r.engine.scanOpts, r.engine.maxFileSize)
	for start := 0; start < len(candidates); start += size {
		if ctx.Err() != nil {
			return r.stopped()
		}
		r.runBatch(ctx, pool, eval, candidates[start:min(start+size, len(candidates))])
		if ctx.Err() != nil {
			return r.stopped()
		}

		r.mu.Lock()
		progress := events.BatchProgress{Processed: r.processed, Total: r.total, Found: r.found}
		r.mu.Unlock()
		r.sink.Emit(events.Progress(fmt.Sprintf("Searched %d / %d files, %d matches found...",
			progress.Processed, progress.Total, progress.Found), progress))

		if r.limitReached() {
			r.sink.Emit(events.Complete(fmt.Sprintf("Reached the limit of %d results", r.opts.MaxResults)))
			return r.summary(models.OutcomeCompleted, nil)
		}
	}

	s := r.summary(models.OutcomeCompleted, nil)
	r.sink.Emit(events.Complete(fmt.Sprintf("Search finished: %d of %d files matched", s.Found, s.Total)))
	return s
}

func (r *run) limitReached() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.opts.MaxResults > 0 && r.found >= r.opts.MaxResults
}

// runBatch evaluates batch concurrently and returns once every file settled.
func (r *run) runBatch(ctx context.Context, pool *ants.Pool, eval *Evaluator, batch []models.Candidate) {
	var wg sync.WaitGroup
	for _, c := range batch {
		wg.Add(1)
		task := func() {
			defer wg.Done()
			r.evaluate(ctx, eval, c)
		}
		if err := pool.Submit(task); err != nil {
			r.log.Warn("submit failed, evaluating inline", slog.String("error", err.Error()))
			task()
		}
	}
	wg.Wait()
}

func (r *run) evaluate(ctx context.Context, eval *Evaluator, c models.Candidate) {
	if ctx.Err() != nil {
		return
	}
	res, err := eval.Evaluate(c)
	if err != nil {
		r.log.Debug("file skipped", slog.String("path", c.RelPath), slog.String("error", err.Error()))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.processed++
	if res == nil || ctx.Err() != nil {
		return
	}
	if r.opts.MaxResults > 0 && r.found >= r.opts.MaxResults {
		return
	}
	r.found++
	r.sink.Emit(events.Result(res, events.ResultProgress{
		Current:    r.found,
		Processed:  r.processed,
		TotalFiles: r.total,
	}))
}
