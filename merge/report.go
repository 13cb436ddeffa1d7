package merge

import "github.com/brunobiangulo/examparse/exam"

// DocumentReport summarizes one input document of a merge. FirstID and
// LastID bound the ids given to its questions and are 0 when it had none.
type DocumentReport struct {
	Document  string         `json:"document"`
	Questions int            `json:"questions"`
	FirstID   int            `json:"first_id,omitempty"`
	LastID    int            `json:"last_id,omitempty"`
	Images    int            `json:"images"`
	Warnings  []exam.Warning `json:"warnings"`
	Failed    bool           `json:"failed"`
	Error     string         `json:"error,omitempty"`
}

// Report is the parse report of one merge run.
type Report struct {
	RunID     string           `json:"run_id"`
	Exam      string           `json:"exam"`
	Documents []DocumentReport `json:"documents"`
}

// Empty reports whether the run had no input documents.
func (r Report) Empty() bool { return len(r.Documents) == 0 }

// Questions returns the number of questions added.
func (r Report) Questions() int {
	n := 0
	for _, d := range r.Documents {
		n += d.Questions
	}
	return n
}

// Warnings returns every warning in document order.
func (r Report) Warnings() []exam.Warning {
	var out []exam.Warning
	for _, d := range r.Documents {
		out = append(out, d.Warnings...)
	}
	return out
}

// Failed lists the documents that could not be decoded.
func (r Report) Failed() []string {
	var out []string
	for _, d := range r.Documents {
		if d.Failed {
			out = append(out, d.Document)
		}
	}
	return out
}

// AddWarning attaches w to the report of its document. Warnings for a
// document not in the report are dropped.
func (r *Report) AddWarning(w exam.Warning) bool {
	for i := range r.Documents {
		if r.Documents[i].Document == w.Document {
			r.Documents[i].Warnings = append(r.Documents[i].Warnings, w)
			return true
		}
	}
	return false
}
