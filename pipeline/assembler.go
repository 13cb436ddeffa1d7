package pipeline

import (
	"github.com/brunobiangulo/examparse/exam"
	"github.com/brunobiangulo/examparse/fields"
	"github.com/brunobiangulo/examparse/segment"
)

// Assembler builds records and hands out question ids from a running
// counter.
type Assembler struct {
	next int
}

// NewAssembler returns an Assembler whose first id is start. Values below
// 1 start at 1.
func NewAssembler(start int) *Assembler {
	if start < 1 {
		start = 1
	}
	return &Assembler{next: start}
}

// Next returns the id the next record will get.
func (a *Assembler) Next() int { return a.next }

// Assemble builds the record for one block. A yes/no question printed
// without choice labels gets the choices A. Yes and B. No.
func (a *Assembler) Assemble(document string, b segment.Block, f fields.Fields, t exam.QuestionType, images []string) exam.Record {
	choices := make(exam.Choices, len(f.Choices))
	copy(choices, f.Choices)
	if t == exam.YesNo && len(choices) == 0 {
		choices = exam.Choices{{Letter: "A", Text: "Yes"}, {Letter: "B", Text: "No"}}
	}
	imgs := make([]string, len(images))
	copy(imgs, images)

	r := exam.Record{
		QuestionID:           a.next,
		PDFQuestionNumber:    b.Number,
		SourcePDF:            document,
		PageNumber:           b.PageNumber,
		QuestionType:         t,
		Question:             f.Stem,
		Choices:              choices,
		PDFAnswer:            f.PDFAnswer,
		WebRecommendedAnswer: f.WebAnswer,
		AIRecommendedAnswer:  f.AIAnswer,
		WebExplanation:       f.WebExplanation,
		AIExplanation:        f.AIExplanation,
		Images:               imgs,
	}
	a.next++
	return r
}
