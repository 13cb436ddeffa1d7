// Package exam holds the question record schema shared by the parsing
// pipeline, the merger and the stores.
package exam

import (
	"fmt"
	"sort"
	"strings"
)

// QuestionType is the interaction style of a question.
type QuestionType string

const (
	MultipleChoiceSingle QuestionType = "multiple_choice_single"
	MultipleChoiceMulti  QuestionType = "multiple_choice_multi"
	YesNo                QuestionType = "yes_no"
	ImageSelection       QuestionType = "image_selection"
	DragAndDrop          QuestionType = "drag_and_drop"
	TextInput            QuestionType = "text_input"
)

// QuestionTypes lists every variant in declaration order.
var QuestionTypes = []QuestionType{
	MultipleChoiceSingle,
	MultipleChoiceMulti,
	YesNo,
	ImageSelection,
	DragAndDrop,
	TextInput,
}

// legacyTypes maps tags written by older exam files onto current variants.
var legacyTypes = map[string]QuestionType{
	"multiple_choice_multiple": MultipleChoiceMulti,
	"input_text":               TextInput,
}

// Valid reports whether t is one of the known variants.
func (t QuestionType) Valid() bool {
	for _, v := range QuestionTypes {
		if t == v {
			return true
		}
	}
	return false
}

// AllowsEmptyChoices reports whether a record of this type may carry no choices.
func (t QuestionType) AllowsEmptyChoices() bool {
	return t == TextInput || t == DragAndDrop
}

// ParseQuestionType converts a stored tag into a QuestionType, accepting
// the legacy spellings.
func ParseQuestionType(s string) (QuestionType, error) {
	t := QuestionType(strings.TrimSpace(s))
	if t.Valid() {
		return t, nil
	}
	if lt, ok := legacyTypes[string(t)]; ok {
		return lt, nil
	}
	return "", fmt.Errorf("unknown question type %q", s)
}

// Record is one normalized question. UserAnswer is never set by the
// parser; it belongs to the exam-taking surface.
type Record struct {
	QuestionID           int          `json:"question_id"`
	PDFQuestionNumber    string       `json:"pdf_question_number"`
	SourcePDF            string       `json:"source_pdf"`
	PageNumber           int          `json:"page_number"`
	QuestionType         QuestionType `json:"question_type"`
	Question             string       `json:"question"`
	Choices              Choices      `json:"choices"`
	PDFAnswer            *string      `json:"pdf_answer"`
	WebRecommendedAnswer *string      `json:"web_recommended_answer"`
	AIRecommendedAnswer  *string      `json:"ai_recommended_answer"`
	WebExplanation       *string      `json:"web_explanation"`
	AIExplanation        *string      `json:"ai_explanation"`
	Images               []string     `json:"images"`
	UserAnswer           *string      `json:"user_answer"`
}

// AuthoritativeAnswer resolves the scoring answer: the web recommended
// answer when present, else the PDF answer.
func (r Record) AuthoritativeAnswer() (string, bool) {
	if r.WebRecommendedAnswer != nil && *r.WebRecommendedAnswer != "" {
		return *r.WebRecommendedAnswer, true
	}
	if r.PDFAnswer != nil && *r.PDFAnswer != "" {
		return *r.PDFAnswer, true
	}
	return "", false
}

// HasAnyAnswer reports whether at least one of the three answer sources is set.
func (r Record) HasAnyAnswer() bool {
	return isSet(r.PDFAnswer) || isSet(r.WebRecommendedAnswer) || isSet(r.AIRecommendedAnswer)
}

// Normalize rewrites values produced by older writers: empty optional
// strings become unset, nil slices become empty ones and legacy type tags
// are mapped to their current names.
func (r *Record) Normalize() error {
	for _, p := range []**string{
		&r.PDFAnswer, &r.WebRecommendedAnswer, &r.AIRecommendedAnswer,
		&r.WebExplanation, &r.AIExplanation, &r.UserAnswer,
	} {
		if *p != nil && **p == "" {
			*p = nil
		}
	}
	if r.Choices == nil {
		r.Choices = Choices{}
	}
	if r.Images == nil {
		r.Images = []string{}
	}
	t, err := ParseQuestionType(string(r.QuestionType))
	if err != nil {
		return fmt.Errorf("question %d: %w", r.QuestionID, err)
	}
	r.QuestionType = t
	return nil
}

// Str returns a pointer to s, or nil when s is empty.
func Str(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Deref returns the pointed-to string or "".
func Deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func isSet(p *string) bool { return p != nil && *p != "" }

// Exam is an ordered, append-only collection of records.
type Exam struct {
	Name      string   `json:"name"`
	Questions []Record `json:"questions"`
}

// MaxID returns the largest question id in the exam, 0 when empty.
func (e Exam) MaxID() int {
	max := 0
	for _, q := range e.Questions {
		if q.QuestionID > max {
			max = q.QuestionID
		}
	}
	return max
}

// Clone returns a copy whose question slice can be appended to without
// touching e.
func (e Exam) Clone() Exam {
	qs := make([]Record, len(e.Questions))
	copy(qs, e.Questions)
	return Exam{Name: e.Name, Questions: qs}
}

// Stats summarizes an exam.
type Stats struct {
	TotalQuestions int                  `json:"total_questions"`
	QuestionTypes  map[QuestionType]int `json:"question_types"`
	SourcePDFs     []string             `json:"source_pdfs"`
	Images         int                  `json:"images"`
	Unanswerable   int                  `json:"unanswerable"`
}

// Stats counts question types and lists the source documents.
func (e Exam) Stats() Stats {
	s := Stats{
		TotalQuestions: len(e.Questions),
		QuestionTypes:  make(map[QuestionType]int),
	}
	seen := make(map[string]bool)
	for _, q := range e.Questions {
		s.QuestionTypes[q.QuestionType]++
		s.Images += len(q.Images)
		if _, ok := q.AuthoritativeAnswer(); !ok {
			s.Unanswerable++
		}
		if !seen[q.SourcePDF] {
			seen[q.SourcePDF] = true
			s.SourcePDFs = append(s.SourcePDFs, q.SourcePDF)
		}
	}
	sort.Strings(s.SourcePDFs)
	return s
}
