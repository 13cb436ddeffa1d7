// Package images decides which question owns each page image and names
// the image files.
package images

import (
	"fmt"
	"strings"

	"github.com/brunobiangulo/examparse/exam"
	"github.com/brunobiangulo/examparse/segment"
	"github.com/brunobiangulo/examparse/source"
)

// FileName returns the deterministic file name of an image,
// {stem}_page{N}_img{seq}.{format}.
func FileName(docStem string, page, seq int, format string) string {
	format = strings.ToLower(strings.TrimPrefix(format, "."))
	if format == "" {
		format = "bin"
	}
	return fmt.Sprintf("%s_page%d_img%d.%s", docStem, page, seq, format)
}

// Assignment binds one image to the block at index Block.
type Assignment struct {
	Block int
	Page  int
	Name  string
	Image source.Image
}

// Associator assigns page images to blocks.
type Associator struct{}

// Associate returns one assignment per image on a page touched by at
// least one block, in page then sequence order. The rules, per page:
//
//   - a positioned image goes to the block whose start on the page is the
//     nearest one above it; a block continued from an earlier page starts
//     at offset 0
//   - otherwise, if exactly one block is anchored on the page, to that block
//   - otherwise, if several are anchored there, to the earliest of them,
//     with an ImageAssociationConflict flag for the page
//   - otherwise to the block continued onto the page
//
// Images on pages no block touches are not assigned.
func (a *Associator) Associate(doc source.Document, blocks []segment.Block) ([]Assignment, []exam.Warning) {
	var out []Assignment
	var warnings []exam.Warning

	stem := doc.Stem()
	for _, p := range doc.Pages {
		if len(p.Images) == 0 {
			continue
		}

		var starters, touching []int
		for i, b := range blocks {
			if _, ok := b.StartOn(p.Number); !ok {
				continue
			}
			touching = append(touching, i)
			if b.PageNumber == p.Number {
				starters = append(starters, i)
			}
		}
		if len(touching) == 0 {
			continue
		}

		conflict := false
		for _, img := range p.Images {
			var owner int
			switch {
			case img.Positioned():
				owner = nearestAbove(blocks, touching, p.Number, img.Offset)
			case len(starters) == 1:
				owner = starters[0]
			case len(starters) > 1:
				owner = starters[0]
				conflict = true
			default:
				owner = touching[0]
			}
			out = append(out, Assignment{
				Block: owner,
				Page:  p.Number,
				Name:  FileName(stem, p.Number, img.Sequence, img.Format),
				Image: img,
			})
		}

		if conflict {
			b := blocks[starters[0]]
			warnings = append(warnings, exam.Warning{
				Kind:       exam.ImageAssociationConflict,
				Document:   doc.Name,
				QuestionID: b.Index,
				Page:       p.Number,
				Message: fmt.Sprintf("%d questions start on page %d and its images carry no position; assigned to the first",
					len(starters), p.Number),
			})
		}
	}
	return out, warnings
}

// nearestAbove picks the touching block with the greatest start offset not
// past offset, falling back to the first touching block.
func nearestAbove(blocks []segment.Block, touching []int, page, offset int) int {
	best, bestStart := -1, -1
	for _, i := range touching {
		start, _ := blocks[i].StartOn(page)
		if start <= offset && start > bestStart {
			best, bestStart = i, start
		}
	}
	if best < 0 {
		return touching[0]
	}
	return best
}
