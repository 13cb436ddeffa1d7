// Package pipeline runs one document through segmentation, field parsing,
// classification, image association and record assembly.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/brunobiangulo/examparse/classify"
	"github.com/brunobiangulo/examparse/exam"
	"github.com/brunobiangulo/examparse/fields"
	"github.com/brunobiangulo/examparse/images"
	"github.com/brunobiangulo/examparse/segment"
	"github.com/brunobiangulo/examparse/source"
)

// Result is the output for one document. Record ids are local to the
// document, starting at 1; the merger renumbers them. Err is set when the
// document could not be decoded, in which case Records is empty.
type Result struct {
	Document string
	Records  []exam.Record
	Warnings []exam.Warning
	Images   int
	Err      error
}

// Failed returns the result for a document whose page source failed.
func Failed(document string, err error) Result {
	return Result{
		Document: document,
		Err:      err,
		Warnings: []exam.Warning{{
			Kind:     exam.DecoderFailure,
			Document: document,
			Message:  err.Error(),
		}},
	}
}

// Pipeline holds the stages. It keeps no state between documents and is
// safe for concurrent use when its Writer is.
type Pipeline struct {
	segmenter  *segment.Segmenter
	parser     *fields.Parser
	classifier *classify.Classifier
	associator *images.Associator
	writer     images.Writer
}

// Option configures a Pipeline.
type Option func(*Pipeline)

func WithSegmenter(s *segment.Segmenter) Option    { return func(p *Pipeline) { p.segmenter = s } }
func WithParser(fp *fields.Parser) Option          { return func(p *Pipeline) { p.parser = fp } }
func WithClassifier(c *classify.Classifier) Option { return func(p *Pipeline) { p.classifier = c } }

// WithImageWriter sets where images are committed. Without a writer,
// images still inform classification but no record references them.
func WithImageWriter(w images.Writer) Option { return func(p *Pipeline) { p.writer = w } }

// New returns a Pipeline with default stages.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		segmenter:  segment.New(),
		parser:     fields.New(),
		classifier: classify.New(classify.DefaultOptions()),
		associator: &images.Associator{},
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Process converts one document. It returns an error only when ctx is
// done; every other condition is reported as a warning in the Result.
func (p *Pipeline) Process(ctx context.Context, doc source.Document) (Result, error) {
	start := time.Now()
	res := Result{Document: doc.Name, Records: []exam.Record{}}

	blocks, err := p.segmenter.Segment(doc)
	if errors.Is(err, segment.ErrNoQuestionsDetected) {
		res.Warnings = append(res.Warnings, exam.Warning{
			Kind:     exam.NoQuestionsDetected,
			Document: doc.Name,
			Message:  fmt.Sprintf("no question anchors in %d pages", len(doc.Pages)),
		})
		slog.Warn("pipeline: no questions detected", "file", doc.Name, "pages", len(doc.Pages))
		return res, nil
	}

	assignments, assocWarnings := p.associator.Associate(doc, blocks)
	hasImages := make([]bool, len(blocks))
	written := make([][]string, len(blocks))
	var writeWarnings []exam.Warning
	for _, a := range assignments {
		hasImages[a.Block] = true
		if p.writer == nil {
			continue
		}
		if err := p.writer.Write(ctx, a.Name, a.Image.Data); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return Result{}, ctxErr
			}
			writeWarnings = append(writeWarnings, exam.Warning{
				Kind:       exam.ImageWriteFailed,
				Document:   doc.Name,
				QuestionID: blocks[a.Block].Index,
				Page:       a.Page,
				Message:    fmt.Sprintf("%s: %v", a.Name, err),
			})
			continue
		}
		written[a.Block] = append(written[a.Block], a.Name)
		res.Images++
	}

	asm := NewAssembler(1)
	for i, b := range blocks {
		parsed := p.parser.Parse(b)
		t, rule := p.classifier.ClassifyExplain(classify.Input{
			Fields:    parsed.Fields,
			RawText:   b.RawText(),
			HasImages: hasImages[i],
		})
		rec := asm.Assemble(doc.Name, b, parsed.Fields, t, written[i])
		for _, w := range parsed.Warnings {
			w.QuestionID = rec.QuestionID
			res.Warnings = append(res.Warnings, w)
		}
		slog.Debug("pipeline: question classified", "file", doc.Name, "question", rec.QuestionID, "type", t, "rule", rule)
		res.Records = append(res.Records, rec)
	}
	res.Warnings = append(res.Warnings, assocWarnings...)
	res.Warnings = append(res.Warnings, writeWarnings...)

	slog.Info("pipeline: document processed",
		"file", doc.Name,
		"questions", len(res.Records),
		"images", res.Images,
		"warnings", len(res.Warnings),
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return res, nil
}
