package dtb

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
)

// wordML paragraph as read from word/document.xml. Only the pieces the
// converter needs: the paragraph style and the run texts.
type docxParagraph struct {
	Style string
	Texts []string
}

var headingStyleRe = regexp.MustCompile(`(?i)^heading\s*(\d)$`)

// ParseDocx reads a .docx archive and extracts its paragraphs with style
// names plus the core document properties. Core-property title/author are
// preferred later over submitted metadata when present.
func ParseDocx(path string) (*Document, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open docx: %w", err)
	}
	defer zr.Close()

	var (
		paras     []docxParagraph
		coreTitle string
		coreAuthr string
		foundDoc  bool
	)

	for _, f := range zr.File {
		switch f.Name {
		case "word/document.xml":
			rc, err := f.Open()
			if err != nil {
				return nil, fmt.Errorf("open document.xml: %w", err)
			}
			paras, err = parseDocumentXML(rc)
			rc.Close()
			if err != nil {
				return nil, err
			}
			foundDoc = true
		case "docProps/core.xml":
			rc, err := f.Open()
			if err != nil {
				continue
			}
			coreTitle, coreAuthr = parseCoreProps(rc)
			rc.Close()
		}
	}
	if !foundDoc {
		return nil, fmt.Errorf("not a word-processor document: word/document.xml missing")
	}

	doc := &Document{Title: coreTitle, Author: coreAuthr}
	for _, p := range paras {
		text := strings.TrimSpace(strings.Join(p.Texts, ""))
		if text == "" {
			continue
		}
		doc.Blocks = append(doc.Blocks, Block{Style: p.Style, Text: text})
	}
	if len(doc.Blocks) == 0 {
		return nil, fmt.Errorf("document has no readable text content")
	}
	return doc, nil
}

func parseDocumentXML(r io.Reader) ([]docxParagraph, error) {
	dec := xml.NewDecoder(r)
	var (
		paras   []docxParagraph
		current *docxParagraph
		inText  bool
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("malformed document.xml: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "p":
				paras = append(paras, docxParagraph{})
				current = &paras[len(paras)-1]
			case "pStyle":
				if current != nil {
					for _, a := range t.Attr {
						if a.Name.Local == "val" {
							current.Style = a.Value
						}
					}
				}
			case "t":
				inText = current != nil
			case "br", "cr":
				if current != nil {
					current.Texts = append(current.Texts, " ")
				}
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "p":
				current = nil
			case "t":
				inText = false
			}
		case xml.CharData:
			if inText && current != nil {
				current.Texts = append(current.Texts, string(t))
			}
		}
	}
	return paras, nil
}

func parseCoreProps(r io.Reader) (title, author string) {
	dec := xml.NewDecoder(r)
	var field string
	for {
		tok, err := dec.Token()
		if err != nil {
			return
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "title", "creator":
				field = t.Name.Local
			}
		case xml.EndElement:
			field = ""
		case xml.CharData:
			v := strings.TrimSpace(string(t))
			if v == "" {
				continue
			}
			switch field {
			case "title":
				title = v
			case "creator":
				author = v
			}
		}
	}
}

// AssignLevels derives heading levels from paragraph style names
// ("Heading 1".."Heading 9", capped at 6). Everything else is body text.
func AssignLevels(doc *Document) {
	for i := range doc.Blocks {
		b := &doc.Blocks[i]
		m := headingStyleRe.FindStringSubmatch(strings.TrimSpace(b.Style))
		if m == nil {
			b.Level = 0
			continue
		}
		level, err := strconv.Atoi(m[1])
		if err != nil || level < 1 {
			b.Level = 0
			continue
		}
		if level > 6 {
			level = 6
		}
		b.Level = level
	}
}
