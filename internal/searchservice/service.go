// Package searchservice is the command surface shared by the HTTP API, the
// CLI and the MCP server: search, stopSearch and openFile.
package searchservice

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/akimixu/mksearch/internal/apperr"
	"github.com/akimixu/mksearch/internal/events"
	"github.com/akimixu/mksearch/internal/history"
	"github.com/akimixu/mksearch/internal/models"
	"github.com/akimixu/mksearch/internal/scan"
	"github.com/akimixu/mksearch/internal/search"
	"github.com/akimixu/mksearch/internal/session"
	"github.com/akimixu/mksearch/internal/storage"
)

const noWorkspaceMessage = "Open a workspace folder first"

// Service coordinates the engine, the session and search history.
type Service struct {
	store   storage.Provider
	engine  *search.Engine
	session *session.Session
	sink    events.Sink
	history *history.DB
	logger  *slog.Logger

	base    context.Context
	cancel  context.CancelFunc
	running sync.WaitGroup
}

// Option configures a Service.
type Option func(*config)

type config struct {
	engineOpts  []search.Option
	sessionOpts []session.Option
	history     *history.DB
	logger      *slog.Logger
}

// WithEngineOptions passes options to the search engine.
func WithEngineOptions(opts ...search.Option) Option {
	return func(c *config) { c.engineOpts = append(c.engineOpts, opts...) }
}

// WithGrace sets how long a new search waits for the one it supersedes.
func WithGrace(d time.Duration) Option {
	return func(c *config) { c.sessionOpts = append(c.sessionOpts, session.WithGrace(d)) }
}

// WithHistory records finished runs in db.
func WithHistory(db *history.DB) Option {
	return func(c *config) { c.history = db }
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a Service. store may be nil, in which case every search
// fails with apperr.ErrNoWorkspace.
func New(store storage.Provider, sink events.Sink, opts ...Option) (*Service, error) {
	cfg := config{logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}
	if sink == nil {
		sink = events.Discard
	}
	s := &Service{
		store:   store,
		sink:    sink,
		history: cfg.history,
		logger:  cfg.logger,
		session: session.New(sink, append(cfg.sessionOpts, session.WithLogger(cfg.logger))...),
	}
	if store != nil {
		engine, err := search.New(store, append(cfg.engineOpts, search.WithLogger(cfg.logger))...)
		if err != nil {
			return nil, fmt.Errorf("searchservice: %w", err)
		}
		s.engine = engine
	}
	s.base, s.cancel = context.WithCancel(context.Background())
	return s, nil
}

// prepare validates req. Problems are also reported to the sink as error
// events, but only while no search is streaming: the event carries no epoch
// and would read as the end of the running search.
func (s *Service) prepare(req Request) (models.SearchOptions, error) {
	opts, err := req.Options()
	if err != nil {
		s.reject(userMessage(err))
		return opts, err
	}
	if s.engine == nil {
		s.reject(noWorkspaceMessage)
		return opts, apperr.ErrNoWorkspace
	}
	return opts, nil
}

func (s *Service) reject(message string) {
	if s.session.State().IsSearching {
		s.logger.Debug("search rejected during a running search", slog.String("reason", message))
		return
	}
	s.sink.Emit(events.Error(message))
}

// Search starts an asynchronous search. Any running search is stopped
// first. Invalid input is rejected before touching the running search.
func (s *Service) Search(req Request) (Ticket, error) {
	opts, err := s.prepare(req)
	if err != nil {
		return Ticket{}, err
	}
	run := s.session.Start(s.base)
	t := Ticket{RunID: uuid.NewString(), Epoch: run.Epoch()}
	s.logger.Info("search started",
		slog.String("run_id", t.RunID),
		slog.Uint64("epoch", t.Epoch),
		slog.String("keywords", strings.Join(opts.Keywords, ",")))

	s.running.Add(1)
	go func() {
		defer s.running.Done()
		s.execute(run, t.RunID, opts)
	}()
	return t, nil
}

// Run is the synchronous form of Search. Cancelling ctx stops the run.
func (s *Service) Run(ctx context.Context, req Request) (models.Summary, error) {
	opts, err := s.prepare(req)
	if err != nil {
		return models.Summary{Outcome: models.OutcomeErrored, Err: err.Error(), Cause: err}, err
	}
	run := s.session.Start(ctx)
	return s.execute(run, uuid.NewString(), opts), nil
}

func (s *Service) execute(run *session.Run, runID string, opts models.SearchOptions) (summary models.Summary) {
	started := time.Now()
	defer run.Finish()
	defer func() {
		if p := recover(); p != nil {
			s.logger.Error("search panicked", slog.String("run_id", runID), slog.Any("panic", p))
			run.Emit(events.Error(fmt.Sprintf("Search failed: %v", p)))
			err := fmt.Errorf("searchservice: panic: %v", p)
			summary = models.Summary{Outcome: models.OutcomeErrored, Err: err.Error(), Cause: err}
		}
		s.record(opts, summary, started)
	}()

	summary = s.engine.Run(run.Context(), opts, run)
	s.logger.Info("search finished",
		slog.String("run_id", runID),
		slog.String("outcome", string(summary.Outcome)),
		slog.Int("found", summary.Found),
		slog.Int("processed", summary.Processed),
		slog.Int("total", summary.Total),
		slog.Duration("took", time.Since(started)))
	return summary
}

func (s *Service) record(opts models.SearchOptions, summary models.Summary, started time.Time) {
	if s.history == nil {
		return
	}
	if _, err := s.history.Record(history.NewEntry(opts, summary, started, time.Since(started))); err != nil {
		s.logger.Warn("history record failed", slog.String("error", err.Error()))
	}
}

// QuickResult is the outcome of a collected search.
type QuickResult struct {
	Results []*models.MatchResult `json:"results"`
	Summary models.Summary        `json:"summary"`
}

// Quick runs a search outside the session and collects its results. It
// does not affect or wait for a session search.
func (s *Service) Quick(ctx context.Context, req Request) (_ *QuickResult, err error) {
	opts, err := req.Options()
	if err != nil {
		return nil, err
	}
	if s.engine == nil {
		return nil, apperr.ErrNoWorkspace
	}
	started := time.Now()
	defer func() {
		if p := recover(); p != nil {
			s.logger.Error("quick search panicked", slog.Any("panic", p))
			err = fmt.Errorf("searchservice: panic: %v", p)
			s.record(opts, models.Summary{Outcome: models.OutcomeErrored, Err: err.Error(), Cause: err}, started)
		}
	}()

	var rec events.Recorder
	summary := s.engine.Run(ctx, opts, &rec)
	s.record(opts, summary, started)
	if summary.Outcome == models.OutcomeErrored {
		return nil, fmt.Errorf("searchservice: %w", summary.Cause)
	}
	return &QuickResult{Results: rec.Results(), Summary: summary}, nil
}

// Stop stops the session search and reports whether one was running.
func (s *Service) Stop() bool {
	stopped := s.session.Stop()
	if stopped {
		s.logger.Info("search stop requested", slog.Uint64("epoch", s.session.Epoch()))
	}
	return stopped
}

// State reports the session flags.
func (s *Service) State() session.State { return s.session.State() }

// Open resolves a file position inside the workspace. Line is clamped to
// the file; a missing line means the first.
func (s *Service) Open(req OpenRequest) (*Location, error) {
	if s.store == nil {
		return nil, apperr.ErrNoWorkspace
	}
	if strings.TrimSpace(req.FilePath) == "" {
		return nil, fmt.Errorf("%w: filePath is required", apperr.ErrInvalidInput)
	}
	ref, err := s.store.Resolve(req.FilePath)
	if err != nil {
		return nil, err
	}
	data, err := s.store.Read(ref.RelPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("searchservice: %s: %w", ref.RelPath, apperr.ErrNotFound)
		}
		return nil, err
	}

	doc := scan.NewDocument(string(data))
	line := 1
	if req.Line != nil {
		line = min(max(*req.Line, 1), doc.LineCount())
	}
	char := 0
	if req.Character != nil && *req.Character > 0 {
		char = *req.Character
	}
	return &Location{
		FilePath:     ref.Path,
		RelativePath: ref.RelPath,
		Line:         line,
		Character:    char,
		Text:         doc.LineText(line - 1),
	}, nil
}

// History returns recent distinct searches. It returns nil when history is disabled.
func (s *Service) History(limit int) ([]history.Entry, error) {
	if s.history == nil {
		return nil, nil
	}
	return s.history.Recent(limit)
}

// ClearHistory deletes recorded searches.
func (s *Service) ClearHistory() error {
	if s.history == nil {
		return nil
	}
	return s.history.Clear()
}

// Close stops any running search and waits for it to return.
func (s *Service) Close() {
	s.session.Stop()
	s.cancel()
	s.running.Wait()
}
