package source

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// ---------------------------------------------------------------------------
// Registry tests
// ---------------------------------------------------------------------------

func TestRegistryBuiltInSources(t *testing.T) {
	reg := NewRegistry()

	for _, format := range []string{"pdf", "txt"} {
		t.Run(format, func(t *testing.T) {
			s, err := reg.Get(format)
			if err != nil {
				t.Fatalf("Get(%q) returned error: %v", format, err)
			}
			found := false
			for _, f := range s.SupportedFormats() {
				if f == format {
					found = true
				}
			}
			if !found {
				t.Errorf("source for %q does not list it in SupportedFormats(): %v", format, s.SupportedFormats())
			}
		})
	}
}

func TestRegistryUnknown(t *testing.T) {
	reg := NewRegistry()
	for _, f := range []string{"docx", "html", ""} {
		if s, err := reg.Get(f); err == nil || s != nil {
			t.Errorf("Get(%q) = %v, %v; want error", f, s, err)
		}
	}
	if _, err := reg.Open(context.Background(), "exam.docx"); err == nil {
		t.Error("Open on an unregistered format should fail")
	}
}

func TestRegistryCustomSource(t *testing.T) {
	reg := NewRegistry()
	reg.Register("md", &TextSource{})
	if _, err := reg.Get("md"); err != nil {
		t.Fatalf("Get(md) after Register: %v", err)
	}
}

func TestFormatOf(t *testing.T) {
	tests := map[string]string{
		"a/Part1.PDF": "pdf",
		"x.txt":       "txt",
		"noext":       "",
	}
	for in, want := range tests {
		if got := FormatOf(in); got != want {
			t.Errorf("FormatOf(%q) = %q, want %q", in, got, want)
		}
	}
}

// ---------------------------------------------------------------------------
// Text source
// ---------------------------------------------------------------------------

func TestSplitPagesWithMarkers(t *testing.T) {
	text := "preamble\n--- PAGE 1 ---\nQuestion 1\nA. x\n--- PAGE 2 ---\nB. y\n"
	pages := SplitPages(text)
	if len(pages) != 2 {
		t.Fatalf("expected 2 pages, got %d: %+v", len(pages), pages)
	}
	if pages[0].Number != 1 || !strings.Contains(pages[0].Text, "preamble") || !strings.Contains(pages[0].Text, "Question 1") {
		t.Errorf("page 1 = %+v", pages[0])
	}
	if pages[1].Number != 2 || strings.TrimSpace(pages[1].Text) != "B. y" {
		t.Errorf("page 2 = %+v", pages[1])
	}
}

func TestSplitPagesFormFeed(t *testing.T) {
	pages := SplitPages("one\fTwo\fthree")
	if len(pages) != 3 || pages[2].Number != 3 || pages[1].Text != "Two" {
		t.Fatalf("unexpected pages: %+v", pages)
	}
	if SplitPages("  \n ") != nil {
		t.Error("blank text should give no pages")
	}
}

func TestTextSourceSidecarImages(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Part1.txt")
	writeFile(t, path, "--- PAGE 1 ---\nQuestion 1\n--- PAGE 2 ---\nQuestion 2\n")
	writeFile(t, filepath.Join(dir, "Part1_page2_img2.png"), "second")
	writeFile(t, filepath.Join(dir, "Part1_page2_img1.PNG"), "first")
	writeFile(t, filepath.Join(dir, "Part1_page9_img1.png"), "orphan")
	writeFile(t, filepath.Join(dir, "Other_page1_img1.png"), "foreign")

	doc, err := NewRegistry().Open(context.Background(), path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if doc.Name != "Part1.txt" || doc.Stem() != "Part1" {
		t.Errorf("doc name/stem = %q/%q", doc.Name, doc.Stem())
	}
	if len(doc.Pages) != 2 {
		t.Fatalf("expected 2 pages, got %d", len(doc.Pages))
	}
	if len(doc.Pages[0].Images) != 0 {
		t.Errorf("page 1 should have no images, got %d", len(doc.Pages[0].Images))
	}
	imgs := doc.Pages[1].Images
	if len(imgs) != 2 {
		t.Fatalf("page 2 images = %d, want 2", len(imgs))
	}
	if string(imgs[0].Data) != "first" || imgs[0].Sequence != 1 || imgs[0].Format != "png" {
		t.Errorf("first image = %+v", imgs[0])
	}
	if imgs[0].Positioned() {
		t.Error("sidecar images carry no position")
	}
	if doc.ImageCount() != 2 {
		t.Errorf("ImageCount() = %d, want 2", doc.ImageCount())
	}
}

func TestPDFSourceMissingFile(t *testing.T) {
	s := &PDFSource{}
	if _, err := s.Pages(context.Background(), filepath.Join(t.TempDir(), "missing.pdf")); err == nil {
		t.Error("expected error for a missing PDF")
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
}
