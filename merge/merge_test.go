package merge

import (
	"errors"
	"reflect"
	"testing"

	"github.com/brunobiangulo/examparse/exam"
	"github.com/brunobiangulo/examparse/pipeline"
)

func rec(id int, doc, stem string) exam.Record {
	return exam.Record{
		QuestionID:   id,
		SourcePDF:    doc,
		PageNumber:   1,
		QuestionType: exam.MultipleChoiceSingle,
		Question:     stem,
		Choices:      exam.Choices{{Letter: "A", Text: "a"}, {Letter: "B", Text: "b"}},
		PDFAnswer:    exam.Str("A"),
		Images:       []string{},
	}
}

func existingExam(n int) exam.Exam {
	e := exam.Exam{Name: "az-900"}
	for i := 1; i <= n; i++ {
		r := rec(i, "Part1.pdf", "existing question "+string(rune('a'+i%26))+string(rune('a'+i/26)))
		e.Questions = append(e.Questions, r)
	}
	e.Questions[0].UserAnswer = exam.Str("B")
	return e
}

func TestMergeContinuesIDs(t *testing.T) {
	existing := existingExam(150)
	doc := pipeline.Result{
		Document: "Part2.pdf",
		Records:  []exam.Record{rec(1, "Part2.pdf", "new one"), rec(2, "Part2.pdf", "new two")},
		Warnings: []exam.Warning{
			{Kind: exam.NoAuthoritativeAnswer, Document: "Part2.pdf", QuestionID: 2},
			{Kind: exam.ImageAssociationConflict, Document: "Part2.pdf"},
		},
		Images: 3,
	}
	doc.Records[0].PDFQuestionNumber = "1"

	out, rep := Merge(existing, []pipeline.Result{doc})
	if len(out.Questions) != 152 {
		t.Fatalf("questions = %d", len(out.Questions))
	}
	if out.Questions[150].QuestionID != 151 || out.Questions[151].QuestionID != 152 {
		t.Errorf("new ids = %d, %d; want 151, 152", out.Questions[150].QuestionID, out.Questions[151].QuestionID)
	}
	if out.Questions[150].PDFQuestionNumber != "1" {
		t.Error("printed question number must be kept")
	}

	dr := rep.Documents[0]
	if dr.FirstID != 151 || dr.LastID != 152 || dr.Questions != 2 || dr.Images != 3 {
		t.Errorf("document report = %+v", dr)
	}
	if dr.Warnings[0].QuestionID != 152 {
		t.Errorf("warning id not remapped: %+v", dr.Warnings[0])
	}
	if dr.Warnings[1].QuestionID != 0 {
		t.Errorf("page-level warning gained an id: %+v", dr.Warnings[1])
	}
	if rep.RunID == "" || rep.Exam != "az-900" {
		t.Errorf("report header = %q/%q", rep.RunID, rep.Exam)
	}
	if rep.Questions() != 2 {
		t.Errorf("Questions() = %d", rep.Questions())
	}
}

func TestMergePreservesExisting(t *testing.T) {
	existing := existingExam(3)
	before := existing.Clone()

	out, _ := Merge(existing, []pipeline.Result{{Document: "Part2.pdf", Records: []exam.Record{rec(1, "Part2.pdf", "x")}}})
	if !reflect.DeepEqual(out.Questions[:3], before.Questions) {
		t.Error("existing records changed")
	}
	if exam.Deref(out.Questions[0].UserAnswer) != "B" {
		t.Error("user answer lost")
	}
	if len(existing.Questions) != 3 || !reflect.DeepEqual(existing, before) {
		t.Error("input exam was mutated")
	}
}

func TestMergeEmptyIsIdempotent(t *testing.T) {
	existing := existingExam(5)
	out, rep := Merge(existing, nil)
	if !reflect.DeepEqual(out, existing) {
		t.Error("empty append changed the exam")
	}
	if !rep.Empty() || len(rep.Warnings()) != 0 {
		t.Errorf("report = %+v", rep)
	}
}

func TestMergeIDsUniqueAcrossDocuments(t *testing.T) {
	existing := existingExam(2)
	existing.Questions[1].QuestionID = 10 // gaps are allowed, reuse is not

	docs := []pipeline.Result{
		{Document: "a.pdf", Records: []exam.Record{rec(1, "a.pdf", "q1"), rec(2, "a.pdf", "q2")}},
		{Document: "b.pdf", Records: []exam.Record{rec(1, "b.pdf", "q3")}},
	}
	out, _ := Merge(existing, docs)

	seen := make(map[int]bool)
	prev := 0
	for _, q := range out.Questions {
		if seen[q.QuestionID] {
			t.Fatalf("id %d reused", q.QuestionID)
		}
		seen[q.QuestionID] = true
		if q.QuestionID <= prev {
			t.Errorf("ids not increasing: %d after %d", q.QuestionID, prev)
		}
		prev = q.QuestionID
	}
	if out.Questions[len(out.Questions)-1].QuestionID != 13 {
		t.Errorf("last id = %d, want 13", out.Questions[len(out.Questions)-1].QuestionID)
	}
}

func TestMergeNewExamStartsAtOne(t *testing.T) {
	out, _ := Merge(exam.Exam{Name: "new"}, []pipeline.Result{{Document: "a.pdf", Records: []exam.Record{rec(7, "a.pdf", "q")}}})
	if out.Questions[0].QuestionID != 1 {
		t.Errorf("id = %d", out.Questions[0].QuestionID)
	}
}

func TestMergeFlagsDuplicateStems(t *testing.T) {
	existing := exam.Exam{Name: "e", Questions: []exam.Record{rec(1, "Part1.pdf", "What is   Azure?")}}
	docs := []pipeline.Result{
		{Document: "Part2.pdf", Records: []exam.Record{
			rec(1, "Part2.pdf", "what is azure?"),
			rec(2, "Part2.pdf", "Something new"),
		}},
		{Document: "Part3.pdf", Records: []exam.Record{rec(1, "Part3.pdf", "SOMETHING NEW")}},
	}
	out, rep := Merge(existing, docs)
	if len(out.Questions) != 4 {
		t.Fatalf("duplicates must be kept, got %d questions", len(out.Questions))
	}

	var dups []exam.Warning
	for _, w := range rep.Warnings() {
		if w.Kind == exam.DuplicateStemOnAppend {
			dups = append(dups, w)
		}
	}
	if len(dups) != 2 {
		t.Fatalf("duplicate flags = %v", dups)
	}
	if dups[0].QuestionID != 2 || dups[1].QuestionID != 4 || dups[1].Document != "Part3.pdf" {
		t.Errorf("dups = %+v", dups)
	}
}

func TestMergeFlagsImageNameCollisions(t *testing.T) {
	stored := rec(1, "Part1.pdf", "stored")
	stored.Images = []string{"Part1_page1_img1.png"}
	existing := exam.Exam{Name: "e", Questions: []exam.Record{stored}}

	withImages := func(doc, stem string, names ...string) exam.Record {
		r := rec(1, doc, stem)
		r.Images = names
		return r
	}
	tests := []struct {
		name string
		docs []pipeline.Result
		want []int // question ids flagged
	}{
		{
			name: "re-append of a stored document",
			docs: []pipeline.Result{{Document: "Part1.pdf", Records: []exam.Record{
				withImages("Part1.pdf", "again", "Part1_page1_img1.png"),
			}}},
			want: []int{2},
		},
		{
			name: "same stem twice in one run",
			docs: []pipeline.Result{
				{Document: "Part2.pdf", Records: []exam.Record{withImages("Part2.pdf", "pdf", "Part2_page3_img1.png")}},
				{Document: "Part2.txt", Records: []exam.Record{withImages("Part2.txt", "txt", "Part2_page3_img1.png")}},
			},
			want: []int{3},
		},
		{
			name: "distinct names",
			docs: []pipeline.Result{{Document: "Part3.pdf", Records: []exam.Record{
				withImages("Part3.pdf", "new", "Part3_page1_img1.png", "Part3_page1_img2.png"),
			}}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, rep := Merge(existing, tt.docs)
			var got []int
			for _, w := range rep.Warnings() {
				if w.Kind == exam.ImageNameCollision {
					got = append(got, w.QuestionID)
				}
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("flagged = %v, want %v", got, tt.want)
			}
			if len(out.Questions[len(out.Questions)-1].Images) == 0 {
				t.Error("colliding names must stay referenced")
			}
		})
	}
}

func TestMergeFailedDocument(t *testing.T) {
	docs := []pipeline.Result{
		pipeline.Failed("broken.pdf", errors.New("bad xref")),
		{Document: "ok.pdf", Records: []exam.Record{rec(1, "ok.pdf", "q")}},
	}
	out, rep := Merge(exam.Exam{Name: "e"}, docs)
	if len(out.Questions) != 1 {
		t.Errorf("questions = %d", len(out.Questions))
	}
	if got := rep.Failed(); len(got) != 1 || got[0] != "broken.pdf" {
		t.Errorf("Failed() = %v", got)
	}
	if rep.Documents[0].Error != "bad xref" || rep.Documents[0].Warnings[0].Kind != exam.DecoderFailure {
		t.Errorf("failed report = %+v", rep.Documents[0])
	}
}

func TestReportAddWarning(t *testing.T) {
	rep := Report{Documents: []DocumentReport{{Document: "a.pdf"}}}
	if !rep.AddWarning(exam.Warning{Kind: exam.DuplicateStemOnAppend, Document: "a.pdf"}) {
		t.Error("AddWarning to a known document failed")
	}
	if rep.AddWarning(exam.Warning{Document: "zzz.pdf"}) {
		t.Error("AddWarning to an unknown document succeeded")
	}
	if len(rep.Warnings()) != 1 {
		t.Errorf("warnings = %v", rep.Warnings())
	}
}

func TestNormalizeStem(t *testing.T) {
	if got := NormalizeStem("  What  IS\n\tAzure? "); got != "what is azure?" {
		t.Errorf("got %q", got)
	}
}
