// Package examparse turns exam question PDFs into structured question
// records and keeps them in named exams.
package examparse

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/brunobiangulo/examparse/classify"
	"github.com/brunobiangulo/examparse/exam"
	"github.com/brunobiangulo/examparse/fields"
	"github.com/brunobiangulo/examparse/images"
	"github.com/brunobiangulo/examparse/merge"
	"github.com/brunobiangulo/examparse/pipeline"
	"github.com/brunobiangulo/examparse/review"
	"github.com/brunobiangulo/examparse/segment"
	"github.com/brunobiangulo/examparse/source"
	"github.com/brunobiangulo/examparse/store"
)

// Engine is the main interface for building exams from documents.
type Engine interface {
	// Parse runs documents through the pipeline without storing anything.
	// Images inform classification but are not written.
	Parse(ctx context.Context, paths []string) ([]pipeline.Result, error)

	// Create builds a new exam from documents. It fails with ErrExamExists
	// when the exam is already stored.
	Create(ctx context.Context, name string, paths []string) (*merge.Report, error)

	// Append adds the questions of documents to an exam, creating it when
	// missing. New ids continue after the highest stored id.
	Append(ctx context.Context, name string, paths []string) (*merge.Report, error)

	// Exam loads a stored exam.
	Exam(ctx context.Context, name string) (exam.Exam, error)

	// ListExams returns every stored exam with its statistics.
	ListExams(ctx context.Context) ([]ExamInfo, error)

	// DeleteExam removes an exam and its images.
	DeleteExam(ctx context.Context, name string) error

	// ExportReview writes a review workbook for a stored exam. report may
	// be nil.
	ExportReview(ctx context.Context, name string, report *merge.Report, path string) error

	// Close releases the store.
	Close() error
}

// ExamInfo describes a stored exam.
type ExamInfo struct {
	Name  string     `json:"name"`
	Stats exam.Stats `json:"stats"`
}

// Option configures the engine.
type Option func(*engineOptions)

type engineOptions struct {
	store    store.ExamStore
	writer   images.Writer
	registry *source.Registry
}

// WithStore replaces the store selected by Config.Store. The engine closes
// it on Close.
func WithStore(s store.ExamStore) Option {
	return func(o *engineOptions) { o.store = s }
}

// WithImageWriter sends the images of every exam to w instead of
// <DataDir>/<exam>/images.
func WithImageWriter(w images.Writer) Option {
	return func(o *engineOptions) { o.writer = w }
}

// WithRegistry replaces the built-in page sources.
func WithRegistry(r *source.Registry) Option {
	return func(o *engineOptions) { o.registry = r }
}

// engine is the concrete implementation of Engine.
type engine struct {
	cfg        Config
	store      store.ExamStore
	writer     images.Writer
	registry   *source.Registry
	segmenter  *segment.Segmenter
	parser     *fields.Parser
	classifier *classify.Classifier

	mu     sync.Mutex
	locks  map[string]*sync.Mutex
	closed atomic.Bool
}

// New creates an engine with the given configuration.
func New(cfg Config, opts ...Option) (Engine, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	options := &engineOptions{}
	for _, o := range opts {
		o(options)
	}

	segOpts := []segment.Option{}
	if cfg.AnchorPattern != "" {
		segOpts = append(segOpts, segment.WithAnchor(regexp.MustCompile(cfg.AnchorPattern)))
	}
	if *cfg.NoiseFilter {
		f, err := segment.NewNoiseFilter(cfg.ExtraNoisePatterns, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		segOpts = append(segOpts, segment.WithNoiseFilter(f))
	} else {
		segOpts = append(segOpts, segment.WithNoiseFilter(nil))
	}

	parser := fields.New()
	parser.ContinuationGap = *cfg.ContinuationGap

	s := options.store
	if s == nil {
		var err error
		if s, err = openStore(&cfg); err != nil {
			return nil, fmt.Errorf("opening store: %w", err)
		}
	}

	reg := options.registry
	if reg == nil {
		reg = source.NewRegistry()
	}

	return &engine{
		cfg:       cfg,
		store:     s,
		writer:    options.writer,
		registry:  reg,
		segmenter: segment.New(segOpts...),
		parser:    parser,
		classifier: classify.New(classify.Options{
			MaxImageChoices:  cfg.MaxImageChoices,
			ShortChoiceWords: cfg.ShortChoiceWords,
		}),
		locks: make(map[string]*sync.Mutex),
	}, nil
}

func openStore(cfg *Config) (store.ExamStore, error) {
	switch cfg.Store {
	case StoreSQLite:
		return store.NewSQLite(cfg.resolveDBPath(), cfg.StemVectorDim)
	default:
		return store.NewJSONL(cfg.DataDir)
	}
}

func (e *engine) Parse(ctx context.Context, paths []string) ([]pipeline.Result, error) {
	if e.closed.Load() {
		return nil, ErrEngineClosed
	}
	return e.process(ctx, paths, nil)
}

func (e *engine) Create(ctx context.Context, name string, paths []string) (*merge.Report, error) {
	if err := e.check(name); err != nil {
		return nil, err
	}
	if ok, err := e.store.Exists(ctx, name); err != nil {
		return nil, fmt.Errorf("checking exam: %w", err)
	} else if ok {
		return nil, fmt.Errorf("%w: %s", ErrExamExists, name)
	}
	return e.run(ctx, name, paths, true)
}

func (e *engine) Append(ctx context.Context, name string, paths []string) (*merge.Report, error) {
	if err := e.check(name); err != nil {
		return nil, err
	}
	return e.run(ctx, name, paths, false)
}

// run processes documents concurrently, then loads, merges and saves the
// exam while holding its lock.
func (e *engine) run(ctx context.Context, name string, paths []string, create bool) (*merge.Report, error) {
	start := time.Now()
	w, err := e.imageWriter(name)
	if err != nil {
		return nil, err
	}
	results, err := e.process(ctx, paths, w)
	if err != nil {
		return nil, err
	}

	unlock := e.lock(name)
	defer unlock()

	existing, err := e.store.Load(ctx, name)
	switch {
	case err == nil && create:
		return nil, fmt.Errorf("%w: %s", ErrExamExists, name)
	case errors.Is(err, store.ErrNotFound):
		existing = exam.Exam{Name: name, Questions: []exam.Record{}}
	case err != nil:
		return nil, fmt.Errorf("loading exam: %w", err)
	}

	merged, report := merge.Merge(existing, results)
	if err := e.flagNearDuplicates(ctx, existing, merged, &report); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := e.store.Save(ctx, merged); err != nil {
		return nil, fmt.Errorf("saving exam: %w", err)
	}

	slog.Info("examparse: exam saved",
		"exam", name,
		"run", report.RunID,
		"documents", len(paths),
		"added", report.Questions(),
		"total", len(merged.Questions),
		"warnings", len(report.Warnings()),
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return &report, nil
}

// process runs every path through the pipeline with at most Workers
// documents in flight. Results keep the order of paths. A document that
// cannot be opened yields a failed result; only ctx ends the run early.
func (e *engine) process(ctx context.Context, paths []string, w images.Writer) ([]pipeline.Result, error) {
	opts := []pipeline.Option{
		pipeline.WithSegmenter(e.segmenter),
		pipeline.WithParser(e.parser),
		pipeline.WithClassifier(e.classifier),
	}
	if w != nil {
		opts = append(opts, pipeline.WithImageWriter(w))
	}
	p := pipeline.New(opts...)

	results := make([]pipeline.Result, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Workers)
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			doc, err := e.open(gctx, path)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				slog.Warn("examparse: document failed", "file", path, "error", err)
				results[i] = pipeline.Failed(filepath.Base(path), err)
				return nil
			}
			res, err := p.Process(gctx, doc)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (e *engine) open(ctx context.Context, path string) (source.Document, error) {
	if _, err := e.registry.Get(source.FormatOf(path)); err != nil {
		return source.Document{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Base(path))
	}
	doc, err := e.registry.Open(ctx, path)
	if err != nil {
		return source.Document{}, fmt.Errorf("%w: %v", ErrDecoderFailure, err)
	}
	return doc, nil
}

// flagNearDuplicates reports new questions whose stem is close to a stored
// one, when the store can search stems. Exact repeats are already flagged
// by the merge.
func (e *engine) flagNearDuplicates(ctx context.Context, existing, merged exam.Exam, report *merge.Report) error {
	idx, ok := e.store.(store.SimilarityIndex)
	if !ok || *e.cfg.DuplicateThreshold <= 0 || len(existing.Questions) == 0 {
		return nil
	}
	flagged := make(map[int]bool)
	for _, w := range report.Warnings() {
		if w.Kind == exam.DuplicateStemOnAppend {
			flagged[w.QuestionID] = true
		}
	}

	maxID := existing.MaxID()
	for _, q := range merged.Questions {
		if q.QuestionID <= maxID || flagged[q.QuestionID] || strings.TrimSpace(q.Question) == "" {
			continue
		}
		matches, err := idx.SimilarStems(ctx, existing.Name, q.Question, 1)
		if err != nil {
			return fmt.Errorf("searching similar stems: %w", err)
		}
		if len(matches) == 0 || matches[0].Score < *e.cfg.DuplicateThreshold {
			continue
		}
		m := matches[0]
		report.AddWarning(exam.Warning{
			Kind:       exam.DuplicateStemOnAppend,
			Document:   q.SourcePDF,
			QuestionID: q.QuestionID,
			Page:       q.PageNumber,
			Message:    fmt.Sprintf("stem is %.0f%% similar to question %d from %s", m.Score*100, m.QuestionID, m.SourcePDF),
		})
	}
	return nil
}

func (e *engine) imageWriter(name string) (images.Writer, error) {
	if e.writer != nil {
		return e.writer, nil
	}
	w, err := images.NewFSWriter(e.imageDir(name))
	if err != nil {
		return nil, err
	}
	return w, nil
}

func (e *engine) imageDir(name string) string {
	return filepath.Join(e.cfg.DataDir, name, "images")
}

func (e *engine) Exam(ctx context.Context, name string) (exam.Exam, error) {
	if err := e.check(name); err != nil {
		return exam.Exam{}, err
	}
	ex, err := e.store.Load(ctx, name)
	if errors.Is(err, store.ErrNotFound) {
		return exam.Exam{}, fmt.Errorf("%w: %s", ErrExamNotFound, name)
	}
	return ex, err
}

func (e *engine) ListExams(ctx context.Context) ([]ExamInfo, error) {
	if e.closed.Load() {
		return nil, ErrEngineClosed
	}
	names, err := e.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing exams: %w", err)
	}
	out := make([]ExamInfo, 0, len(names))
	for _, n := range names {
		ex, err := e.store.Load(ctx, n)
		if errors.Is(err, store.ErrNotFound) {
			continue // deleted meanwhile
		}
		if err != nil {
			return nil, fmt.Errorf("loading exam %s: %w", n, err)
		}
		out = append(out, ExamInfo{Name: n, Stats: ex.Stats()})
	}
	return out, nil
}

func (e *engine) DeleteExam(ctx context.Context, name string) error {
	if err := e.check(name); err != nil {
		return err
	}
	unlock := e.lock(name)
	defer unlock()

	if err := e.store.Delete(ctx, name); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrExamNotFound, name)
		}
		return err
	}
	if e.writer == nil {
		if err := os.RemoveAll(e.imageDir(name)); err != nil {
			slog.Warn("examparse: removing images failed", "exam", name, "error", err)
		}
	}
	slog.Info("examparse: exam deleted", "exam", name)
	return nil
}

func (e *engine) ExportReview(ctx context.Context, name string, report *merge.Report, path string) error {
	ex, err := e.Exam(ctx, name)
	if err != nil {
		return err
	}
	if err := review.WriteWorkbook(path, ex, report); err != nil {
		return fmt.Errorf("exporting review: %w", err)
	}
	slog.Info("examparse: review exported", "exam", name, "path", path)
	return nil
}

// Close releases the store. Further calls return ErrEngineClosed.
func (e *engine) Close() error {
	if e.closed.Swap(true) {
		return nil
	}
	return e.store.Close()
}

func (e *engine) check(name string) error {
	if e.closed.Load() {
		return ErrEngineClosed
	}
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidExamName, name)
	}
	return nil
}

// lock serializes load, merge and save per exam.
func (e *engine) lock(name string) func() {
	e.mu.Lock()
	l, ok := e.locks[name]
	if !ok {
		l = &sync.Mutex{}
		e.locks[name] = l
	}
	e.mu.Unlock()
	l.Lock()
	return l.Unlock
}
