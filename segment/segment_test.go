package segment

import (
	"errors"
	"regexp"
	"strings"
	"testing"

	"github.com/brunobiangulo/examparse/source"
)

func doc(pages ...string) source.Document {
	d := source.Document{Name: "Part1.pdf"}
	for i, p := range pages {
		d.Pages = append(d.Pages, source.Page{Number: i + 1, Text: p})
	}
	return d
}

func TestSegmentAnchors(t *testing.T) {
	tests := []struct {
		name    string
		pages   []string
		numbers []string
		pageNos []int
	}{
		{
			name:    "numbered",
			pages:   []string{"Question 1\nstem one\nQuestion 2\nstem two\n"},
			numbers: []string{"1", "2"},
			pageNos: []int{1, 1},
		},
		{
			name:    "bare and hash forms",
			pages:   []string{"QUESTION\nfirst\nQuestion #7 Topic 2\nsecond\n"},
			numbers: []string{"", "7"},
			pageNos: []int{1, 1},
		},
		{
			name:    "across pages",
			pages:   []string{"Question 1\nstem\n", "more stem\nQuestion 2\nx\n"},
			numbers: []string{"1", "2"},
			pageNos: []int{1, 2},
		},
	}

	s := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blocks, err := s.Segment(doc(tt.pages...))
			if err != nil {
				t.Fatalf("Segment: %v", err)
			}
			if len(blocks) != len(tt.numbers) {
				t.Fatalf("got %d blocks, want %d", len(blocks), len(tt.numbers))
			}
			for i, b := range blocks {
				if b.Number != tt.numbers[i] {
					t.Errorf("block %d number = %q, want %q", i, b.Number, tt.numbers[i])
				}
				if b.PageNumber != tt.pageNos[i] {
					t.Errorf("block %d page = %d, want %d", i, b.PageNumber, tt.pageNos[i])
				}
				if b.Index != i+1 {
					t.Errorf("block %d index = %d", i, b.Index)
				}
				if b.SourceDocument != "Part1.pdf" {
					t.Errorf("block %d document = %q", i, b.SourceDocument)
				}
			}
		})
	}
}

func TestSegmentAnchorMustStandAlone(t *testing.T) {
	blocks, err := New().Segment(doc("Question 1\nThis question asks about X.\nQuestion 12 is harder\n"))
	if err != nil {
		t.Fatalf("Segment: %v", err)
	}
	if len(blocks) != 1 {
		t.Fatalf("inline mentions of 'question' must not anchor; got %d blocks", len(blocks))
	}
}

func TestSegmentSpanningBlock(t *testing.T) {
	blocks, err := New().Segment(doc("intro\nQuestion 1\nstem\n", "A. one\nB. two\n"))
	if err != nil {
		t.Fatalf("Segment: %v", err)
	}
	if len(blocks) != 1 {
		t.Fatalf("got %d blocks", len(blocks))
	}
	b := blocks[0]
	if strings.Contains(b.RawText(), "intro") {
		t.Error("text before the first anchor must be dropped")
	}
	if !strings.Contains(b.RawText(), "B. two") {
		t.Errorf("block should continue onto page 2: %q", b.RawText())
	}
	if got := b.Pages(); len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Errorf("Pages() = %v", got)
	}
	if off, ok := b.StartOn(1); !ok || off != len("intro\n") {
		t.Errorf("StartOn(1) = %d, %v", off, ok)
	}
	if off, ok := b.StartOn(2); !ok || off != 0 {
		t.Errorf("StartOn(2) = %d, %v", off, ok)
	}
	if _, ok := b.StartOn(3); ok {
		t.Error("StartOn(3) should be false")
	}
}

func TestSegmentEmptyStemKept(t *testing.T) {
	blocks, err := New().Segment(doc("Question 1\nQuestion 2\nstem\n"))
	if err != nil {
		t.Fatalf("Segment: %v", err)
	}
	if len(blocks) != 2 {
		t.Fatalf("got %d blocks, want 2", len(blocks))
	}
	if strings.TrimSpace(blocks[0].RawText()) != "" {
		t.Errorf("first block should be empty, got %q", blocks[0].RawText())
	}
}

func TestSegmentNoQuestions(t *testing.T) {
	blocks, err := New().Segment(doc("just a cover page\n", "table of contents\n"))
	if !errors.Is(err, ErrNoQuestionsDetected) {
		t.Fatalf("err = %v, want ErrNoQuestionsDetected", err)
	}
	if blocks == nil || len(blocks) != 0 {
		t.Errorf("blocks = %v, want empty non-nil slice", blocks)
	}

	if _, err := New().Segment(source.Document{Name: "empty.pdf"}); !errors.Is(err, ErrNoQuestionsDetected) {
		t.Errorf("document without pages: err = %v", err)
	}
}

func TestSegmentCustomAnchor(t *testing.T) {
	s := New(WithAnchor(regexp.MustCompile(`^Q(\d+)\.$`)))
	blocks, err := s.Segment(doc("Q1.\nfirst\nQ2.\nsecond\n"))
	if err != nil {
		t.Fatalf("Segment: %v", err)
	}
	if len(blocks) != 2 || blocks[1].Number != "2" {
		t.Fatalf("unexpected blocks: %+v", blocks)
	}
}

// ---------------------------------------------------------------------------
// Noise filter
// ---------------------------------------------------------------------------

func TestNoiseFilterDropsFurniture(t *testing.T) {
	text := "Question 1\nwww.examtopics.com\nWhat is X?\nPage 3 of 40\nTopic 1\nA. one\n"
	blocks, err := New().Segment(doc(text))
	if err != nil {
		t.Fatalf("Segment: %v", err)
	}
	raw := blocks[0].RawText()
	for _, noise := range []string{"examtopics", "Page 3 of 40", "Topic 1"} {
		if strings.Contains(raw, noise) {
			t.Errorf("noise %q survived: %q", noise, raw)
		}
	}
	if !strings.Contains(raw, "What is X?") || !strings.Contains(raw, "A. one") {
		t.Errorf("content lost: %q", raw)
	}
}

func TestNoiseFilterDropsVendorFooters(t *testing.T) {
	f := DefaultNoiseFilter()
	tests := []struct {
		line string
		keep bool
	}{
		{"Microsoft Certified: Azure Administrator Associate - Question Bank (2 of 5)", false},
		{"Microsoft Certified: Azure Fundamentals Study Materials", false},
		{"Question Bank - AZ-104", false},
		{"Exam AZ-104", false},
		{"exam az-900", false},
		{"Which exam AZ-104 skill does this cover?", true},
		{"Microsoft Certified engineers manage the tenant.", true},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			if got := f.Keep(tt.line); got != tt.keep {
				t.Errorf("Keep(%q) = %v, want %v", tt.line, got, tt.keep)
			}
		})
	}
}

func TestNoiseFilterClean(t *testing.T) {
	f := DefaultNoiseFilter()
	tests := []struct{ in, want string }{
		{"A. alpha\x00\x07 beta", "A. alpha beta"},
		{"see www.examtopics.com for more", "see for more"},
		{"tab\tkept", "tab\tkept"},
		{"Configure the firewall", "Configure the firewall"},
		{"D. Azure Table Microsoft Certified: Azure Administrator Associate - Question Bank (2 of 5)", "D. Azure Table"},
		{"Certified by Microsoft", "Certified by Microsoft"},
	}
	for _, tt := range tests {
		if got := f.Clean(tt.in); got != tt.want {
			t.Errorf("Clean(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNoiseFilterExtraPatterns(t *testing.T) {
	f, err := NewNoiseFilter([]string{`^CONFIDENTIAL$`}, nil)
	if err != nil {
		t.Fatalf("NewNoiseFilter: %v", err)
	}
	if f.Keep("CONFIDENTIAL") {
		t.Error("extra drop pattern not applied")
	}
	if _, err := NewNoiseFilter([]string{`(`}, nil); err == nil {
		t.Error("invalid pattern should fail")
	}
}

func TestSegmentWithoutFilter(t *testing.T) {
	blocks, err := New(WithNoiseFilter(nil)).Segment(doc("Question 1\nwww.examtopics.com\n"))
	if err != nil {
		t.Fatalf("Segment: %v", err)
	}
	if !strings.Contains(blocks[0].RawText(), "examtopics") {
		t.Error("nil filter should keep every line")
	}
}
