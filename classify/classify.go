// Package classify assigns a question type to parsed fields with an ordered
// rule table. The first matching rule wins.
package classify

import (
	"regexp"
	"strings"

	"github.com/brunobiangulo/examparse/exam"
	"github.com/brunobiangulo/examparse/fields"
)

// Input is what the rules look at.
type Input struct {
	Fields    fields.Fields
	RawText   string
	HasImages bool
}

// Rule maps a predicate to a type.
type Rule struct {
	Name  string
	Type  exam.QuestionType
	Match func(Input) bool
}

// Options tunes the image selection rule.
type Options struct {
	MaxImageChoices  int // most choices an image selection question may have
	ShortChoiceWords int // most words per choice for image selection
}

// DefaultOptions returns the thresholds used by New.
func DefaultOptions() Options {
	return Options{MaxImageChoices: 4, ShortChoiceWords: 3}
}

var (
	dragRe       = regexp.MustCompile(`(?i)\b(?:drag|drop|arrange|match|order the following|correct order|correct sequence|in sequence)\b`)
	dropDownRe   = regexp.MustCompile(`(?i)\bdrop[\s-]?down\b`)
	dragBannerRe = regexp.MustCompile(`(?im)^\s*drag\s*(?:and\s*|&\s*)?drop\b`)
	yesNoCueRe   = regexp.MustCompile(`(?i)\byes\s*(?:/|or)\s*no\b|\bselect\s+"?yes"?\b|\banswer\s+"?yes"?\s+or\b`)
	multiCueRe   = regexp.MustCompile(`(?i)\b(?:select|choose|pick|identify)\s+(?:the\s+)?(?:two|three|four|five|2|3|4|5|all)\b|\(\s*choose\s+(?:\w+|\d+)\s*\)|\ball\s+that\s+apply\b|\beach\s+correct\s+(?:answer|selection)\s+presents\b`)
)

// DefaultRules returns the rule table in precedence order. Structural cues
// (drag and drop, missing choices) come before lexical ones.
func DefaultRules(opts Options) []Rule {
	return []Rule{
		{Name: "drag-keywords", Type: exam.DragAndDrop, Match: isDragAndDrop},
		{Name: "no-choices", Type: exam.TextInput, Match: func(in Input) bool {
			return in.Fields.Choices.Len() == 0 && !hasYesNoCue(in)
		}},
		{Name: "yes-no", Type: exam.YesNo, Match: isYesNo},
		{Name: "image-choices", Type: exam.ImageSelection, Match: func(in Input) bool {
			return isImageSelection(in, opts)
		}},
		{Name: "multi-select", Type: exam.MultipleChoiceMulti, Match: isMulti},
		{Name: "default", Type: exam.MultipleChoiceSingle, Match: func(Input) bool { return true }},
	}
}

// Classifier evaluates rules top to bottom.
type Classifier struct {
	rules []Rule
}

// New returns a Classifier over DefaultRules(opts).
func New(opts Options) *Classifier {
	return &Classifier{rules: DefaultRules(opts)}
}

// NewWithRules returns a Classifier over a custom table. The table should
// end with a rule that always matches.
func NewWithRules(rules []Rule) *Classifier {
	return &Classifier{rules: rules}
}

// Classify returns the type of the first matching rule, or
// multiple_choice_single when none matches.
func (c *Classifier) Classify(in Input) exam.QuestionType {
	t, _ := c.ClassifyExplain(in)
	return t
}

// ClassifyExplain also returns the name of the rule that decided.
func (c *Classifier) ClassifyExplain(in Input) (exam.QuestionType, string) {
	for _, r := range c.rules {
		if r.Match(in) {
			return r.Type, r.Name
		}
	}
	return exam.MultipleChoiceSingle, "fallback"
}

func choiceText(f fields.Fields) string {
	parts := make([]string, 0, f.Choices.Len()+1)
	parts = append(parts, f.Stem)
	for _, c := range f.Choices {
		parts = append(parts, c.Text)
	}
	return strings.Join(parts, "\n")
}

func isDragAndDrop(in Input) bool {
	text := dropDownRe.ReplaceAllString(choiceText(in.Fields), "")
	return dragRe.MatchString(text) || dragBannerRe.MatchString(in.RawText)
}

func hasYesNoCue(in Input) bool {
	for _, a := range in.Fields.Answers() {
		if exam.IsYesNo(a) {
			return true
		}
	}
	return yesNoCueRe.MatchString(in.Fields.Stem)
}

// IsYesNoPair reports whether choices are exactly a yes and a no.
func IsYesNoPair(c exam.Choices) bool {
	if c.Len() != 2 {
		return false
	}
	a := normalize(c[0].Text)
	b := normalize(c[1].Text)
	return (a == "yes" && b == "no") || (a == "no" && b == "yes")
}

func isYesNo(in Input) bool {
	if in.Fields.Choices.Len() == 0 {
		return hasYesNoCue(in)
	}
	return IsYesNoPair(in.Fields.Choices)
}

func isImageSelection(in Input, opts Options) bool {
	n := in.Fields.Choices.Len()
	if !in.HasImages || n == 0 || n > opts.MaxImageChoices {
		return false
	}
	for _, c := range in.Fields.Choices {
		if len(strings.Fields(c.Text)) > opts.ShortChoiceWords {
			return false
		}
	}
	return true
}

// isMulti looks for a multi-select cue in the stem, or an authoritative
// answer naming more than one letter. The AI answer is used only when
// neither the web nor the PDF answer is present.
func isMulti(in Input) bool {
	if multiCueRe.MatchString(in.Fields.Stem) {
		return true
	}
	f := in.Fields
	for _, a := range []*string{f.WebAnswer, f.PDFAnswer, f.AIAnswer} {
		if a != nil && *a != "" {
			return exam.IsMultiAnswer(*a)
		}
	}
	return false
}

func normalize(s string) string {
	return strings.ToLower(strings.Trim(strings.TrimSpace(s), ".!"))
}
