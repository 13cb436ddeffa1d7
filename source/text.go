package source

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// TextSource handles plain text (.txt) exports. Pages are separated by
// "--- PAGE N ---" marker lines or form feeds; without either the whole
// file is page 1. Images named <stem>_page<N>_img<M>.<ext> next to the
// file are attached to page N.
type TextSource struct{}

var (
	pageMarkerRe   = regexp.MustCompile(`^\s*-{3}\s*PAGE\s+(\d+)\s*-{3}\s*$`)
	sidecarImageRe = regexp.MustCompile(`_page(\d+)_img(\d+)\.([A-Za-z0-9]+)$`)
)

func (s *TextSource) SupportedFormats() []string { return []string{"txt"} }

func (s *TextSource) Pages(ctx context.Context, path string) ([]Page, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading text file: %w", err)
	}

	pages := SplitPages(string(data))
	if len(pages) == 0 {
		return nil, nil
	}

	if err := attachSidecarImages(ctx, path, pages); err != nil {
		return nil, err
	}
	return pages, nil
}

// SplitPages splits exported text into pages.
func SplitPages(text string) []Page {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	if strings.TrimSpace(text) == "" {
		return nil
	}

	lines := strings.Split(text, "\n")
	hasMarkers := false
	for _, l := range lines {
		if pageMarkerRe.MatchString(l) {
			hasMarkers = true
			break
		}
	}

	if !hasMarkers {
		var pages []Page
		for i, chunk := range strings.Split(text, "\f") {
			pages = append(pages, Page{Number: i + 1, Text: chunk})
		}
		return pages
	}

	var pages []Page
	var cur *Page
	var b strings.Builder
	flush := func() {
		if cur != nil {
			cur.Text = b.String()
			pages = append(pages, *cur)
		}
		b.Reset()
	}
	for _, l := range lines {
		if m := pageMarkerRe.FindStringSubmatch(l); m != nil {
			// Text before the first marker stays in b and opens the first page.
			if cur != nil {
				flush()
			}
			n, _ := strconv.Atoi(m[1])
			cur = &Page{Number: n}
			continue
		}
		b.WriteString(l)
		b.WriteByte('\n')
	}
	flush()
	return pages
}

func attachSidecarImages(ctx context.Context, path string, pages []Page) error {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	matches, err := filepath.Glob(filepath.Join(filepath.Dir(path), globEscape(stem)+"_page*_img*.*"))
	if err != nil {
		return fmt.Errorf("listing sidecar images: %w", err)
	}
	sort.Strings(matches)

	byNumber := make(map[int]int, len(pages))
	for i, p := range pages {
		byNumber[p.Number] = i
	}

	for _, m := range matches {
		if err := ctx.Err(); err != nil {
			return err
		}
		sm := sidecarImageRe.FindStringSubmatch(filepath.Base(m))
		if sm == nil || filepath.Base(m) != stem+sm[0] {
			continue
		}
		pageNum, _ := strconv.Atoi(sm[1])
		seq, _ := strconv.Atoi(sm[2])
		idx, ok := byNumber[pageNum]
		if !ok {
			slog.Debug("text: sidecar image for unknown page", "file", m, "page", pageNum)
			continue
		}
		data, err := os.ReadFile(m)
		if err != nil {
			return fmt.Errorf("reading sidecar image: %w", err)
		}
		pages[idx].Images = append(pages[idx].Images, Image{
			Sequence: seq,
			Data:     data,
			Format:   strings.ToLower(sm[3]),
		})
	}

	for i := range pages {
		sort.SliceStable(pages[i].Images, func(a, b int) bool {
			return pages[i].Images[a].Sequence < pages[i].Images[b].Sequence
		})
	}
	return nil
}

func globEscape(s string) string {
	r := strings.NewReplacer(`*`, `\*`, `?`, `\?`, `[`, `\[`, `\`, `\\`)
	return r.Replace(s)
}
