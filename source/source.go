// Package source turns exam documents into ordered pages of raw text and
// embedded images.
package source

import (
	"context"
	"path/filepath"
	"strings"
)

// Image is an embedded image found on a page.
type Image struct {
	Sequence int    // 1-based order of the image on its page
	Data     []byte // encoded image bytes
	Format   string // file extension without dot, e.g. "png"

	// Offset is the byte offset into Page.Text where the image sits. It is
	// only meaningful when HasOffset is set; the zero Image is unpositioned.
	Offset    int
	HasOffset bool
}

// At returns a copy of the image positioned at byte offset off of the page text.
func (i Image) At(off int) Image {
	i.Offset, i.HasOffset = off, true
	return i
}

// Positioned reports whether the source supplied a position for the image.
func (i Image) Positioned() bool { return i.HasOffset }

// Page is the raw content of one document page.
type Page struct {
	Number int
	Text   string
	Images []Image
}

// Document is a decoded source document.
type Document struct {
	Name  string // file name, e.g. "Part1.pdf"
	Path  string
	Pages []Page
}

// Stem returns the file name without extension, used for image naming.
func (d Document) Stem() string {
	return strings.TrimSuffix(d.Name, filepath.Ext(d.Name))
}

// ImageCount returns the number of images across all pages.
func (d Document) ImageCount() int {
	n := 0
	for _, p := range d.Pages {
		n += len(p.Images)
	}
	return n
}

// Source decodes one document format into pages.
type Source interface {
	Pages(ctx context.Context, path string) ([]Page, error)
	SupportedFormats() []string
}
