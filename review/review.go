// Package review exports an exam and its parse flags to an xlsx workbook
// for manual checking.
package review

import (
	"fmt"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/brunobiangulo/examparse/exam"
	"github.com/brunobiangulo/examparse/merge"
)

const (
	SheetQuestions = "Questions"
	SheetFlags     = "Flags"
	SheetSummary   = "Summary"
)

var questionHeader = []any{
	"ID", "PDF #", "Source", "Page", "Type", "Question", "Choices",
	"PDF Answer", "Web Answer", "AI Answer", "Authoritative", "Images", "Flags",
}

var flagHeader = []any{"Kind", "Document", "Question ID", "Page", "Message"}

// WriteWorkbook writes three sheets: one row per question, one row per
// flag of report, and the exam statistics. report may be nil.
func WriteWorkbook(path string, e exam.Exam, report *merge.Report) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetQuestions); err != nil {
		return fmt.Errorf("naming sheet: %w", err)
	}
	for _, s := range []string{SheetFlags, SheetSummary} {
		if _, err := f.NewSheet(s); err != nil {
			return fmt.Errorf("creating sheet %s: %w", s, err)
		}
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("creating style: %w", err)
	}

	var warnings []exam.Warning
	if report != nil {
		warnings = report.Warnings()
	}
	byQuestion := make(map[int][]string)
	for _, w := range warnings {
		if w.QuestionID > 0 {
			byQuestion[w.QuestionID] = append(byQuestion[w.QuestionID], string(w.Kind))
		}
	}

	if err := writeRow(f, SheetQuestions, 1, questionHeader); err != nil {
		return err
	}
	for i, q := range e.Questions {
		auth, _ := q.AuthoritativeAnswer()
		row := []any{
			q.QuestionID, q.PDFQuestionNumber, q.SourcePDF, q.PageNumber, string(q.QuestionType),
			q.Question, formatChoices(q.Choices),
			exam.Deref(q.PDFAnswer), exam.Deref(q.WebRecommendedAnswer), exam.Deref(q.AIRecommendedAnswer),
			auth, strings.Join(q.Images, "\n"), strings.Join(byQuestion[q.QuestionID], ", "),
		}
		if err := writeRow(f, SheetQuestions, i+2, row); err != nil {
			return err
		}
	}

	if err := writeRow(f, SheetFlags, 1, flagHeader); err != nil {
		return err
	}
	for i, w := range warnings {
		row := []any{string(w.Kind), w.Document, w.QuestionID, w.Page, w.Message}
		if err := writeRow(f, SheetFlags, i+2, row); err != nil {
			return err
		}
	}

	if err := writeSummary(f, e, report); err != nil {
		return err
	}

	for _, s := range []string{SheetQuestions, SheetFlags, SheetSummary} {
		if err := f.SetRowStyle(s, 1, 1, bold); err != nil {
			return fmt.Errorf("styling %s: %w", s, err)
		}
	}
	if err := f.SetColWidth(SheetQuestions, "F", "G", 60); err != nil {
		return fmt.Errorf("sizing columns: %w", err)
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("saving workbook: %w", err)
	}
	return nil
}

func writeSummary(f *excelize.File, e exam.Exam, report *merge.Report) error {
	st := e.Stats()
	rows := [][]any{
		{"Exam", e.Name},
		{"Questions", st.TotalQuestions},
		{"Images", st.Images},
		{"Without answer", st.Unanswerable},
		{"Sources", strings.Join(st.SourcePDFs, ", ")},
	}
	if report != nil {
		rows = append(rows, []any{"Run", report.RunID}, []any{"Added", report.Questions()})
	}
	types := make([]string, 0, len(st.QuestionTypes))
	for t := range st.QuestionTypes {
		types = append(types, string(t))
	}
	sort.Strings(types)
	for _, t := range types {
		rows = append(rows, []any{t, st.QuestionTypes[exam.QuestionType(t)]})
	}

	for i, r := range rows {
		if err := writeRow(f, SheetSummary, i+1, r); err != nil {
			return err
		}
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("writing %s row %d: %w", sheet, row, err)
	}
	return nil
}

func formatChoices(c exam.Choices) string {
	lines := make([]string, 0, len(c))
	for _, ch := range c {
		lines = append(lines, ch.Letter+". "+ch.Text)
	}
	return strings.Join(lines, "\n")
}
