package source

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
)

type PDFSource struct{}

func (s *PDFSource) SupportedFormats() []string { return []string{"pdf"} }

func (s *PDFSource) Pages(ctx context.Context, path string) ([]Page, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer f.Close()

	totalPages := reader.NumPage()
	pages := make([]Page, 0, totalPages)

	for i := 1; i <= totalPages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := pageText(page)
		if err != nil {
			// Keep the page so numbering and images stay aligned.
			slog.Debug("pdf: text extraction failed", "path", path, "page", i, "error", err)
		}

		pages = append(pages, Page{
			Number: i,
			Text:   text,
			Images: pageImages(page, path, i),
		})
	}

	return pages, nil
}

// pageText rebuilds the page line by line from positioned glyph runs so
// that anchors and choice labels start their own line.
func pageText(page pdf.Page) (string, error) {
	rows, err := page.GetTextByRow()
	if err != nil || len(rows) == 0 {
		return page.GetPlainText(nil)
	}

	var b strings.Builder
	for _, row := range rows {
		var prev *pdf.Text
		for i := range row.Content {
			t := row.Content[i]
			if prev != nil && needsSpace(*prev, t) {
				b.WriteByte(' ')
			}
			b.WriteString(t.S)
			prev = &row.Content[i]
		}
		b.WriteByte('\n')
	}
	return b.String(), nil
}

func needsSpace(prev, cur pdf.Text) bool {
	if strings.HasSuffix(prev.S, " ") || strings.HasPrefix(cur.S, " ") {
		return false
	}
	gap := cur.X - (prev.X + prev.W)
	return gap > 0.15*cur.FontSize
}

// pageImages returns the image XObjects of a page re-encoded as PNG.
// Streams the reader cannot decode are skipped.
func pageImages(page pdf.Page, path string, pageNum int) []Image {
	xobjects := page.Resources().Key("XObject")
	if xobjects.Kind() != pdf.Dict {
		return nil
	}

	names := xobjects.Keys()
	sort.Strings(names)

	var images []Image
	for _, name := range names {
		obj := xobjects.Key(name)
		if obj.Key("Subtype").Name() != "Image" {
			continue
		}
		data, err := encodeImage(obj)
		if err != nil {
			slog.Debug("pdf: skipping image", "path", path, "page", pageNum, "name", name, "error", err)
			continue
		}
		images = append(images, Image{
			Sequence: len(images) + 1,
			Data:     data,
			Format:   "png",
		})
	}
	return images
}

func encodeImage(obj pdf.Value) (data []byte, err error) {
	if f := filterName(obj.Key("Filter")); f != "" && f != "FlateDecode" {
		return nil, fmt.Errorf("unsupported filter %s", f)
	}
	if bpc := obj.Key("BitsPerComponent").Int64(); bpc != 8 {
		return nil, fmt.Errorf("unsupported bits per component %d", bpc)
	}
	width := int(obj.Key("Width").Int64())
	height := int(obj.Key("Height").Int64())
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid size %dx%d", width, height)
	}
	components := colorComponents(obj.Key("ColorSpace"))
	if components != 1 && components != 3 {
		return nil, fmt.Errorf("unsupported color space")
	}

	// The stream reader panics on filters and predictors it does not know.
	defer func() {
		if r := recover(); r != nil {
			data, err = nil, fmt.Errorf("decoding stream: %v", r)
		}
	}()
	rc := obj.Reader()
	defer rc.Close()
	raw, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("reading stream: %w", err)
	}
	if len(raw) < width*height*components {
		return nil, fmt.Errorf("short stream: %d bytes for %dx%d", len(raw), width, height)
	}

	var img image.Image
	if components == 1 {
		g := image.NewGray(image.Rect(0, 0, width, height))
		copy(g.Pix, raw)
		img = g
	} else {
		rgba := image.NewNRGBA(image.Rect(0, 0, width, height))
		for p := 0; p < width*height; p++ {
			rgba.SetNRGBA(p%width, p/width, color.NRGBA{
				R: raw[p*3], G: raw[p*3+1], B: raw[p*3+2], A: 0xff,
			})
		}
		img = rgba
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding png: %w", err)
	}
	return buf.Bytes(), nil
}

func filterName(v pdf.Value) string {
	switch v.Kind() {
	case pdf.Name:
		return v.Name()
	case pdf.Array:
		if v.Len() == 1 {
			return v.Index(0).Name()
		}
		if v.Len() > 1 {
			return "chained"
		}
	}
	return ""
}

func colorComponents(cs pdf.Value) int {
	switch cs.Kind() {
	case pdf.Name:
		switch cs.Name() {
		case "DeviceGray":
			return 1
		case "DeviceRGB":
			return 3
		}
	case pdf.Array:
		if cs.Len() == 2 && cs.Index(0).Name() == "ICCBased" {
			return int(cs.Index(1).Key("N").Int64())
		}
	}
	return 0
}
