// Package segment splits the page text of one document into per-question
// blocks anchored on a question marker line.
package segment

import (
	"errors"
	"regexp"
	"sort"
	"strings"

	"github.com/brunobiangulo/examparse/source"
)

// ErrNoQuestionsDetected is returned, with an empty block slice, when a
// document contains no anchor line.
var ErrNoQuestionsDetected = errors.New("segment: no questions detected")

// DefaultAnchor matches "Question", "Question 12", "QUESTION #12" and
// "Question #12 Topic 1" on a line of their own. Group 1 is the numeral.
var DefaultAnchor = regexp.MustCompile(`(?i)^\s*question\s*#?\s*(\d*)(?:\s+topic\s+\d+)?\s*:?\s*$`)

// Line is one line of block text with its page coordinates.
type Line struct {
	Page   int
	Offset int // byte offset of the line start within the page text
	Text   string
}

// Block is the raw text of one question: every line after its anchor up
// to the next anchor, possibly spanning several pages.
type Block struct {
	SourceDocument string
	Index          int    // 1-based position in the document
	PageNumber     int    // page of the anchor line
	Number         string // numeral printed after the marker, may be empty
	Offset         int    // anchor offset within its page
	Lines          []Line
}

// RawText returns the untouched block text, one line per source line.
func (b Block) RawText() string {
	parts := make([]string, len(b.Lines))
	for i, l := range b.Lines {
		parts[i] = l.Text
	}
	return strings.Join(parts, "\n")
}

// Pages returns every page the block touches in ascending order.
func (b Block) Pages() []int {
	seen := map[int]bool{b.PageNumber: true}
	out := []int{b.PageNumber}
	for _, l := range b.Lines {
		if !seen[l.Page] {
			seen[l.Page] = true
			out = append(out, l.Page)
		}
	}
	sort.Ints(out)
	return out
}

// StartOn returns where the block begins on page: the anchor offset on the
// anchor page, 0 on later pages it continues onto.
func (b Block) StartOn(page int) (int, bool) {
	if page == b.PageNumber {
		return b.Offset, true
	}
	for _, l := range b.Lines {
		if l.Page == page {
			return 0, true
		}
	}
	return 0, false
}

// Segmenter finds question anchors.
type Segmenter struct {
	anchor *regexp.Regexp
	filter *NoiseFilter
}

// Option configures a Segmenter.
type Option func(*Segmenter)

// WithAnchor replaces the anchor pattern. Its first capture group, if any,
// is taken as the question numeral.
func WithAnchor(re *regexp.Regexp) Option {
	return func(s *Segmenter) { s.anchor = re }
}

// WithNoiseFilter sets the line filter applied before anchoring; nil
// disables filtering.
func WithNoiseFilter(f *NoiseFilter) Option {
	return func(s *Segmenter) { s.filter = f }
}

// New returns a Segmenter using DefaultAnchor and DefaultNoiseFilter.
func New(opts ...Option) *Segmenter {
	s := &Segmenter{anchor: DefaultAnchor, filter: DefaultNoiseFilter()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Segment returns one block per anchor in page order. Text before the
// first anchor is dropped. An anchor followed directly by another anchor
// still yields a block, with no lines.
func (s *Segmenter) Segment(doc source.Document) ([]Block, error) {
	var blocks []Block
	var cur *Block

	for _, p := range doc.Pages {
		offset := 0
		for _, raw := range strings.SplitAfter(p.Text, "\n") {
			start := offset
			offset += len(raw)
			text := strings.TrimRight(raw, "\r\n")

			if s.filter != nil {
				if !s.filter.Keep(text) {
					continue
				}
				text = s.filter.Clean(text)
			}

			if m := s.anchor.FindStringSubmatch(text); m != nil {
				if cur != nil {
					blocks = append(blocks, *cur)
				}
				num := ""
				if len(m) > 1 {
					num = m[1]
				}
				cur = &Block{
					SourceDocument: doc.Name,
					Index:          len(blocks) + 1,
					PageNumber:     p.Number,
					Number:         num,
					Offset:         start,
				}
				continue
			}

			if cur == nil {
				continue
			}
			cur.Lines = append(cur.Lines, Line{Page: p.Number, Offset: start, Text: text})
		}
	}
	if cur != nil {
		blocks = append(blocks, *cur)
	}

	if len(blocks) == 0 {
		return []Block{}, ErrNoQuestionsDetected
	}
	return blocks, nil
}
