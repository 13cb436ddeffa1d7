package fields

import (
	"fmt"
	"strings"

	"github.com/brunobiangulo/examparse/exam"
)

// Validate checks that every letter named by an answer is a choice key.
// It says nothing when there are no choices or when an answer is not a
// letter list (yes/no, free text). Document and page are left for the
// caller to fill in.
func Validate(f Fields) []exam.Warning {
	if f.Choices.Len() == 0 {
		return nil
	}
	var out []exam.Warning
	for _, a := range []struct {
		source string
		v      *string
	}{{"pdf", f.PDFAnswer}, {"web", f.WebAnswer}, {"ai", f.AIAnswer}} {
		if a.v == nil {
			continue
		}
		var unknown []string
		for _, l := range exam.AnswerLetters(*a.v) {
			if !f.Choices.Has(l) {
				unknown = append(unknown, l)
			}
		}
		if len(unknown) > 0 {
			out = append(out, exam.Warning{
				Kind: exam.AnswerChoiceMismatch,
				Message: fmt.Sprintf("%s answer %q names %s, choices are %s",
					a.source, *a.v, strings.Join(unknown, ","), strings.Join(f.Choices.Letters(), ",")),
			})
		}
	}
	return out
}
