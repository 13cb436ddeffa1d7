package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/brunobiangulo/examparse/exam"
)

const examFile = "exam.jsonl"

// JSONL stores each exam as <root>/<name>/exam.jsonl with its images in
// <root>/<name>/images.
type JSONL struct {
	root string
}

// NewJSONL creates root if needed.
func NewJSONL(root string) (*JSONL, error) {
	if root == "" {
		root = "./data"
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	return &JSONL{root: root}, nil
}

// Root returns the data directory.
func (s *JSONL) Root() string { return s.root }

// ExamDir returns the directory of one exam.
func (s *JSONL) ExamDir(name string) string { return filepath.Join(s.root, name) }

// ImagesDir returns the image directory of one exam.
func (s *JSONL) ImagesDir(name string) string { return filepath.Join(s.root, name, "images") }

func (s *JSONL) Load(ctx context.Context, name string) (exam.Exam, error) {
	if err := checkName(name); err != nil {
		return exam.Exam{}, err
	}
	f, err := os.Open(filepath.Join(s.ExamDir(name), examFile))
	if errors.Is(err, os.ErrNotExist) {
		return exam.Exam{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return exam.Exam{}, fmt.Errorf("opening exam %s: %w", name, err)
	}
	defer f.Close()

	recs, err := DecodeRecords(f)
	if err != nil {
		return exam.Exam{}, fmt.Errorf("loading exam %s: %w", name, err)
	}
	return exam.Exam{Name: name, Questions: recs}, nil
}

// Save rewrites the exam file through a temp file and a rename.
func (s *JSONL) Save(ctx context.Context, e exam.Exam) error {
	if err := checkName(e.Name); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	dir := s.ExamDir(e.Name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating exam directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+examFile+".*")
	if err != nil {
		return fmt.Errorf("creating temp exam file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := EncodeRecords(tmp, e.Questions); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing exam file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing exam file: %w", err)
	}
	if err := os.Rename(tmpName, filepath.Join(dir, examFile)); err != nil {
		return fmt.Errorf("committing exam file: %w", err)
	}
	return nil
}

// List returns the names of directories holding an exam file, sorted.
func (s *JSONL) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("listing exams: %w", err)
	}
	names := []string{}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := os.Stat(filepath.Join(s.root, e.Name(), examFile)); err == nil {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Delete removes the exam directory, images included.
func (s *JSONL) Delete(ctx context.Context, name string) error {
	ok, err := s.Exists(ctx, name)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err := os.RemoveAll(s.ExamDir(name)); err != nil {
		return fmt.Errorf("deleting exam %s: %w", name, err)
	}
	return nil
}

func (s *JSONL) Exists(ctx context.Context, name string) (bool, error) {
	if err := checkName(name); err != nil {
		return false, err
	}
	_, err := os.Stat(filepath.Join(s.ExamDir(name), examFile))
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking exam %s: %w", name, err)
	}
	return true, nil
}

func (s *JSONL) Close() error { return nil }
