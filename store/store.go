// Package store persists exams. JSONL keeps one exam per directory as a
// line-delimited record file; SQLite keeps every exam in one database and
// indexes question stems for similarity search.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/brunobiangulo/examparse/exam"
)

// ErrNotFound is returned when an exam does not exist.
var ErrNotFound = errors.New("store: exam not found")

// ExamStore is the persistence contract the engine relies on. Save
// replaces the stored exam atomically: readers see the old or the new
// record sequence, never a mix.
type ExamStore interface {
	Load(ctx context.Context, name string) (exam.Exam, error)
	Save(ctx context.Context, e exam.Exam) error
	List(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, name string) error
	Exists(ctx context.Context, name string) (bool, error)
	Close() error
}

// StemMatch is a stored question whose stem is close to a queried stem.
type StemMatch struct {
	QuestionID int     `json:"question_id"`
	SourcePDF  string  `json:"source_pdf"`
	Question   string  `json:"question"`
	Score      float64 `json:"score"` // cosine similarity, 1 is identical
}

// SimilarityIndex is implemented by stores that can look up near-duplicate
// stems.
type SimilarityIndex interface {
	SimilarStems(ctx context.Context, examName, stem string, k int) ([]StemMatch, error)
}

func checkName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("invalid exam name %q", name)
	}
	return nil
}
