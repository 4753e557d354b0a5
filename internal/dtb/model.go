// Package dtb holds the document model shared by the conversion stages and
// the generators that turn it into a DAISY 3 fileset or an EPUB3 package.
package dtb

import (
	"github.com/audisee/docx2daisy/internal/markers"
)

// Block is one paragraph-level unit of the source document. Level is 0 for
// body text and 1..6 for headings.
type Block struct {
	Style   string
	Level   int
	Text    string
	Markers []markers.Marker
}

// Document is the in-memory model built from a source file and consumed by
// the format generators.
type Document struct {
	Title     string
	Author    string
	Publisher string
	Language  string
	Blocks    []Block
}

// Headings returns the blocks that carry a heading level, in order.
func (d *Document) Headings() []Block {
	var out []Block
	for _, b := range d.Blocks {
		if b.Level > 0 {
			out = append(out, b)
		}
	}
	return out
}
