// Package fields extracts the stem, the lettered choices and the answer
// sections from one question block.
package fields

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/brunobiangulo/examparse/exam"
	"github.com/brunobiangulo/examparse/segment"
)

// Fields is the parsed content of a block. Answers are the raw tokens as
// printed; normalization happens at classification time.
type Fields struct {
	Stem           string
	Choices        exam.Choices
	PDFAnswer      *string
	WebAnswer      *string
	AIAnswer       *string
	WebExplanation *string
	AIExplanation  *string
}

// Answers returns the answer tokens that are set, in pdf, web, ai order.
func (f Fields) Answers() []string {
	var out []string
	for _, a := range []*string{f.PDFAnswer, f.WebAnswer, f.AIAnswer} {
		if a != nil && *a != "" {
			out = append(out, *a)
		}
	}
	return out
}

// Result is the outcome of parsing one block. Missing names the answer
// sources that were absent ("pdf", "web", "ai").
type Result struct {
	Fields   Fields
	Missing  []string
	Warnings []exam.Warning
}

// Parser parses blocks. ContinuationGap is the largest number of lines
// allowed between two labels with the same letter for the second to be
// taken as a rewrite of the first instead of an ambiguity.
type Parser struct {
	ContinuationGap int
}

// New returns a Parser with a continuation gap of one line.
func New() *Parser {
	return &Parser{ContinuationGap: 1}
}

type section int

const (
	secNone section = iota
	secPDF
	secWeb
	secAI
	secVotes
	secDiscussion
	secSkip // repeated section label, its text is dropped
)

var sectionLabels = []struct {
	sec section
	re  *regexp.Regexp
}{
	{secAI, regexp.MustCompile(`(?i)^\s*ai\s+recommended\s+answers?\s*[:\-]?\s*(.*)$`)},
	{secVotes, regexp.MustCompile(`(?i)^\s*community\s+vote\s+distribution\s*[:\-]?\s*(.*)$`)},
	{secWeb, regexp.MustCompile(`(?i)^\s*(?:web\s+recommended|community|most\s+voted)\s+answers?\s*[:\-]?\s*(.*)$`)},
	{secPDF, regexp.MustCompile(`(?i)^\s*(?:suggested|correct|original)\s+answers?\s*[:\-]?\s*(.*)$`)},
	{secPDF, regexp.MustCompile(`(?i)^\s*answers?\s*:\s*(.*)$`)},
	{secDiscussion, regexp.MustCompile(`(?i)^\s*discussion(?:\s+summary)?\s*(?::\s*(.*))?$`)},
}

var (
	choiceRe      = regexp.MustCompile(`^\s*\(?([A-Z])[.):]\s+(\S.*)$`)
	bareChoiceRe  = regexp.MustCompile(`^\s*\(?([A-Z])[.)]\s*$`)
	answerTokenRe = regexp.MustCompile(`^(?:(?i:yes|no)\b|[A-Z](?:\s*(?:,|&|/|\band\b)?\s*[A-Z])*\b)`)
	mostVotedRe   = regexp.MustCompile(`(?i)^most\s+voted\b`)
)

func matchSection(line string) (section, string, bool) {
	for _, l := range sectionLabels {
		if m := l.re.FindStringSubmatch(line); m != nil {
			return l.sec, strings.TrimSpace(m[1]), true
		}
	}
	return secNone, "", false
}

type state struct {
	p     *Parser
	block segment.Block

	stem      []string
	choices   exam.Choices
	inChoices bool
	current   string // letter receiving continuation lines
	lastLabel string
	labelLine map[string]int

	sec      section
	sections map[section][]string

	warnings []exam.Warning
}

// Parse walks the block once. The stem runs up to the first choice label
// or section label; choice text continues over unlabelled lines; section
// text runs up to the next section label.
func (p *Parser) Parse(b segment.Block) Result {
	st := &state{
		p:         p,
		block:     b,
		choices:   exam.Choices{},
		labelLine: make(map[string]int),
		sections:  make(map[section][]string),
	}
	for i, l := range b.Lines {
		st.line(i, strings.TrimRight(l.Text, " \t"))
	}
	return st.finish()
}

func (st *state) line(i int, text string) {
	if sec, rest, ok := matchSection(text); ok {
		if _, dup := st.sections[sec]; dup {
			st.sec = secSkip
			return
		}
		st.sec = sec
		st.sections[sec] = nil
		if rest != "" {
			st.sections[sec] = append(st.sections[sec], rest)
		}
		return
	}
	if st.sec != secNone {
		if st.sec != secSkip {
			st.sections[st.sec] = append(st.sections[st.sec], text)
		}
		return
	}

	if m := choiceRe.FindStringSubmatch(text); m != nil {
		st.choice(i, m[1], strings.TrimSpace(m[2]))
		return
	}
	if m := bareChoiceRe.FindStringSubmatch(text); m != nil {
		st.choice(i, m[1], "")
		return
	}

	if !st.inChoices {
		st.stem = append(st.stem, text)
		return
	}
	if st.current == "" || strings.TrimSpace(text) == "" {
		return
	}
	prev, _ := st.choices.Get(st.current)
	if prev == "" {
		st.choices.Replace(st.current, strings.TrimSpace(text))
	} else {
		st.choices.Replace(st.current, prev+" "+strings.TrimSpace(text))
	}
}

func (st *state) choice(i int, letter, text string) {
	st.inChoices = true

	if prev, seen := st.labelLine[letter]; seen {
		if letter == st.lastLabel && i-prev-1 <= st.p.ContinuationGap {
			st.choices.Replace(letter, text)
			st.labelLine[letter] = i
			st.current = letter
			return
		}
		st.warn(exam.AmbiguousChoiceLabel, fmt.Sprintf("choice %s repeated; first text kept", letter))
		st.current = ""
		return
	}

	want := "A"
	if st.lastLabel != "" {
		want = string(rune(st.lastLabel[0] + 1))
	}
	if letter != want {
		st.warn(exam.AmbiguousChoiceLabel, fmt.Sprintf("choice %s where %s was expected", letter, want))
	}

	st.choices.Set(letter, text)
	st.labelLine[letter] = i
	st.lastLabel = letter
	st.current = letter
}

func (st *state) warn(kind exam.Kind, msg string) {
	st.warnings = append(st.warnings, exam.Warning{
		Kind:     kind,
		Document: st.block.SourceDocument,
		Page:     st.block.PageNumber,
		Message:  msg,
	})
}

func (st *state) finish() Result {
	f := Fields{
		Stem:    strings.TrimSpace(collapseBlank(st.stem)),
		Choices: st.choices,
	}

	if lines, ok := st.sections[secPDF]; ok {
		a, _ := splitAnswer(lines)
		f.PDFAnswer = exam.Str(a)
	}
	if lines, ok := st.sections[secWeb]; ok {
		a, expl := splitAnswer(lines)
		f.WebAnswer, f.WebExplanation = exam.Str(a), exam.Str(expl)
	}
	if lines, ok := st.sections[secVotes]; ok && f.WebAnswer == nil {
		a, _ := splitAnswer(lines)
		f.WebAnswer = exam.Str(a)
	}
	if lines, ok := st.sections[secDiscussion]; ok && f.WebExplanation == nil {
		f.WebExplanation = exam.Str(strings.TrimSpace(collapseBlank(lines)))
	}
	if lines, ok := st.sections[secAI]; ok {
		a, expl := splitAnswer(lines)
		f.AIAnswer, f.AIExplanation = exam.Str(a), exam.Str(expl)
	}

	var missing []string
	for _, s := range []struct {
		name string
		v    *string
	}{{"pdf", f.PDFAnswer}, {"web", f.WebAnswer}, {"ai", f.AIAnswer}} {
		if s.v == nil {
			missing = append(missing, s.name)
		}
	}
	if len(missing) == 3 {
		st.warn(exam.NoAuthoritativeAnswer, "no suggested, community or AI answer found")
	}

	for _, w := range Validate(f) {
		w.Document, w.Page = st.block.SourceDocument, st.block.PageNumber
		st.warnings = append(st.warnings, w)
	}

	return Result{Fields: f, Missing: missing, Warnings: st.warnings}
}

// splitAnswer takes the answer token from the first non-empty line of a
// section. The rest of that line and the following lines are the
// explanation. A first line without a recognizable token is kept whole.
func splitAnswer(lines []string) (answer, explanation string) {
	idx := -1
	for i, l := range lines {
		if strings.TrimSpace(l) != "" {
			idx = i
			break
		}
	}
	if idx < 0 {
		return "", ""
	}
	first := strings.TrimSpace(lines[idx])
	rest := lines[idx+1:]
	if tok := answerTokenRe.FindString(first); tok != "" {
		answer = tok
		tail := strings.TrimSpace(first[len(tok):])
		tail = strings.TrimSpace(mostVotedRe.ReplaceAllString(tail, ""))
		if tail != "" {
			rest = append([]string{tail}, rest...)
		}
	} else {
		answer = first
	}
	return answer, strings.TrimSpace(collapseBlank(rest))
}

// collapseBlank joins lines, squeezing runs of blank lines into one.
func collapseBlank(lines []string) string {
	var b strings.Builder
	blank := false
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			blank = true
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
			if blank {
				b.WriteByte('\n')
			}
		}
		blank = false
		b.WriteString(l)
	}
	return b.String()
}
