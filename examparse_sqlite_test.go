//go:build cgo

package examparse

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/brunobiangulo/examparse/exam"
)

func TestSQLiteEngineFlagsNearDuplicates(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Store = StoreSQLite
	cfg.DBPath = filepath.Join(dir, "exams.db")
	cfg.DataDir = filepath.Join(dir, "data")
	e, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer e.Close()
	ctx := context.Background()

	if _, err := e.Create(ctx, "az", []string{writeFile(t, dir, "part1.txt", part1)}); err != nil {
		t.Fatal(err)
	}

	// Same words as question 1 with different punctuation, plus an
	// unrelated question.
	reworded := `Question #1
Which service runs code, without managing servers
A. Virtual Machines
B. Functions
Suggested Answer: B
Question #2
Configure a site-to-site VPN gateway for the branch office.
A. Basic SKU
B. VpnGw1 SKU
Suggested Answer: B
`
	report, err := e.Append(ctx, "az", []string{writeFile(t, dir, "part3.txt", reworded)})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}

	var dups []exam.Warning
	for _, w := range report.Warnings() {
		if w.Kind == exam.DuplicateStemOnAppend {
			dups = append(dups, w)
		}
	}
	if len(dups) != 1 {
		t.Fatalf("duplicate warnings = %+v, want one", dups)
	}
	if dups[0].QuestionID != 3 || !strings.Contains(dups[0].Message, "question 1") {
		t.Errorf("warning = %+v", dups[0])
	}

	ex, err := e.Exam(ctx, "az")
	if err != nil {
		t.Fatal(err)
	}
	if len(ex.Questions) != 4 {
		t.Errorf("near duplicates must be kept, got %d questions", len(ex.Questions))
	}
}
