// Package merge appends parsed documents to an exam.
package merge

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/brunobiangulo/examparse/exam"
	"github.com/brunobiangulo/examparse/pipeline"
)

// Merge returns existing with the records of docs appended, plus the run
// report. Existing records are copied unchanged. New records get ids
// continuing from the existing maximum, in document then record order;
// warning ids are rewritten to match. A new stem equal to an earlier one
// (case and spacing aside) is kept and flagged DuplicateStemOnAppend. A new
// record referencing an image name already used by an earlier record,
// stored or from this run, is flagged ImageNameCollision.
//
// Merge does no locking: callers serialize merges per exam.
func Merge(existing exam.Exam, docs []pipeline.Result) (exam.Exam, Report) {
	out := existing.Clone()
	rep := Report{
		RunID:     uuid.NewString(),
		Exam:      existing.Name,
		Documents: []DocumentReport{},
	}

	stems := make(map[string]exam.Record, len(existing.Questions))
	for _, q := range existing.Questions {
		if k := NormalizeStem(q.Question); k != "" {
			if _, ok := stems[k]; !ok {
				stems[k] = q
			}
		}
	}

	owners := make(map[string]exam.Record)
	for _, q := range existing.Questions {
		for _, name := range q.Images {
			if _, ok := owners[name]; !ok {
				owners[name] = q
			}
		}
	}

	next := existing.MaxID() + 1
	for _, d := range docs {
		dr := DocumentReport{
			Document:  d.Document,
			Questions: len(d.Records),
			Images:    d.Images,
			Failed:    d.Err != nil,
			Warnings:  []exam.Warning{},
		}
		if d.Err != nil {
			dr.Error = d.Err.Error()
		}

		ids := make(map[int]int, len(d.Records))
		var dups []exam.Warning
		for _, r := range d.Records {
			r = copyRecord(r)
			ids[r.QuestionID] = next
			r.QuestionID = next
			r.UserAnswer = nil
			next++

			if dr.FirstID == 0 {
				dr.FirstID = r.QuestionID
			}
			dr.LastID = r.QuestionID

			if k := NormalizeStem(r.Question); k != "" {
				if prev, ok := stems[k]; ok {
					dups = append(dups, exam.Warning{
						Kind:       exam.DuplicateStemOnAppend,
						Document:   d.Document,
						QuestionID: r.QuestionID,
						Page:       r.PageNumber,
						Message:    fmt.Sprintf("same stem as question %d (%s page %d)", prev.QuestionID, prev.SourcePDF, prev.PageNumber),
					})
				} else {
					stems[k] = r
				}
			}
			for _, name := range r.Images {
				if prev, ok := owners[name]; ok {
					dups = append(dups, exam.Warning{
						Kind:       exam.ImageNameCollision,
						Document:   d.Document,
						QuestionID: r.QuestionID,
						Page:       r.PageNumber,
						Message:    fmt.Sprintf("image %s is also referenced by question %d (%s)", name, prev.QuestionID, prev.SourcePDF),
					})
					continue
				}
				owners[name] = r
			}
			out.Questions = append(out.Questions, r)
		}

		for _, w := range d.Warnings {
			if w.QuestionID != 0 {
				w.QuestionID = ids[w.QuestionID]
			}
			dr.Warnings = append(dr.Warnings, w)
		}
		dr.Warnings = append(dr.Warnings, dups...)
		rep.Documents = append(rep.Documents, dr)
	}
	return out, rep
}

// NormalizeStem lowercases a stem and collapses its whitespace.
func NormalizeStem(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

func copyRecord(r exam.Record) exam.Record {
	c := make(exam.Choices, len(r.Choices))
	copy(c, r.Choices)
	r.Choices = c
	imgs := make([]string, len(r.Images))
	copy(imgs, r.Images)
	r.Images = imgs
	return r
}
