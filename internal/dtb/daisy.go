package dtb

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/audisee/docx2daisy/internal/markers"
)

// ValidateDaisy checks that dir holds a readable DAISY fileset: the OPF must
// be present and the DTBook document must parse. Returns the parsed model so
// a transcoding stage can reuse it.
func ValidateDaisy(dir string) (*Document, error) {
	if _, err := os.Stat(filepath.Join(dir, "dtbook.opf")); err != nil {
		return nil, fmt.Errorf("missing dtbook.opf: not a DAISY package")
	}
	doc, err := ParseDTBook(filepath.Join(dir, "dtbook.xml"))
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// markerElements maps the DTBook accessibility elements back to the marker
// kinds that produced them.
var markerElements = map[string]markers.Type{
	"pagenum":    markers.TypePage,
	"note":       markers.TypeNote,
	"sidebar":    markers.TypeSidebar,
	"annotation": markers.TypeAnnotation,
	"prodnote":   markers.TypeProdNote,
	"noteref":    markers.TypeNoteRef,
	"linenum":    markers.TypeLineNum,
}

// ParseDTBook reads a DTBook XML document back into the shared model.
// Headings (h1..h6), paragraphs, doctitle/docauthor and the head metadata
// are recovered, and marker elements (pagenum, note, sidebar, annotation,
// prodnote, noteref, linenum) are reattached to the block they follow so a
// transcode re-emits them; synchronization attributes are not needed.
func ParseDTBook(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("missing dtbook.xml: not a DAISY package")
	}
	defer f.Close()

	dec := xml.NewDecoder(f)
	doc := &Document{}
	var (
		element    string
		level      int
		markerKind markers.Type
		text       strings.Builder
		sawRoot    bool
	)

	flush := func() {
		t := strings.TrimSpace(text.String())
		text.Reset()
		kind := markerKind
		markerKind = ""
		if t == "" {
			return
		}
		if kind != "" {
			// Marker elements are written as siblings after their block.
			if n := len(doc.Blocks); n > 0 {
				doc.Blocks[n-1].Markers = append(doc.Blocks[n-1].Markers, markers.Marker{Type: kind, Value: t})
			}
			return
		}
		switch element {
		case "doctitle":
			doc.Title = t
		case "docauthor":
			doc.Author = t
		case "h":
			doc.Blocks = append(doc.Blocks, Block{Level: level, Text: t, Style: fmt.Sprintf("Heading %d", level)})
		case "p":
			doc.Blocks = append(doc.Blocks, Block{Text: t})
		}
	}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("malformed dtbook.xml: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			name := t.Name.Local
			switch {
			case name == "dtbook":
				sawRoot = true
			case name == "doctitle" || name == "docauthor" || name == "p":
				element = name
			case markerElements[name] != "":
				element = name
				markerKind = markerElements[name]
			case len(name) == 2 && name[0] == 'h':
				if n, err := strconv.Atoi(name[1:]); err == nil && n >= 1 && n <= 6 {
					element = "h"
					level = n
				}
			case name == "meta":
				var metaName, metaContent string
				for _, a := range t.Attr {
					switch a.Name.Local {
					case "name":
						metaName = a.Value
					case "content":
						metaContent = a.Value
					}
				}
				switch metaName {
				case "dc:Publisher":
					doc.Publisher = metaContent
				case "dc:Language":
					doc.Language = metaContent
				}
			}
		case xml.EndElement:
			flush()
			element = ""
		case xml.CharData:
			if element != "" {
				text.Write(t)
			}
		}
	}

	if !sawRoot {
		return nil, fmt.Errorf("dtbook.xml has no dtbook root element")
	}
	if len(doc.Blocks) == 0 {
		return nil, fmt.Errorf("dtbook.xml has no readable content")
	}
	return doc, nil
}
