package dtb

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/audisee/docx2daisy/internal/markers"
)

// GenerateEPUB writes an unpackaged EPUB3 layout for doc into dir:
// mimetype, META-INF/container.xml, OEBPS/{package.opf,nav.xhtml,content.xhtml}.
func GenerateEPUB(doc *Document, dir string) error {
	oebps := filepath.Join(dir, "OEBPS")
	metaInf := filepath.Join(dir, "META-INF")
	for _, d := range []string{oebps, metaInf} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return err
		}
	}

	if err := os.WriteFile(filepath.Join(dir, "mimetype"), []byte("application/epub+zip"), 0o644); err != nil {
		return fmt.Errorf("write mimetype: %w", err)
	}

	container := xml.Header + `<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
<rootfiles>
<rootfile full-path="OEBPS/package.opf" media-type="application/oebps-package+xml"/>
</rootfiles>
</container>
`
	if err := os.WriteFile(filepath.Join(metaInf, "container.xml"), []byte(container), 0o644); err != nil {
		return fmt.Errorf("write container.xml: %w", err)
	}

	uid := "urn:uuid:" + uuid.NewString()
	if err := os.WriteFile(filepath.Join(oebps, "package.opf"), generateEpubOPF(doc, uid), 0o644); err != nil {
		return fmt.Errorf("write package.opf: %w", err)
	}
	if err := os.WriteFile(filepath.Join(oebps, "nav.xhtml"), generateEpubNav(doc), 0o644); err != nil {
		return fmt.Errorf("write nav.xhtml: %w", err)
	}
	if err := os.WriteFile(filepath.Join(oebps, "content.xhtml"), generateEpubContent(doc), 0o644); err != nil {
		return fmt.Errorf("write content.xhtml: %w", err)
	}
	return nil
}

func generateEpubOPF(doc *Document, uid string) []byte {
	var b strings.Builder
	b.WriteString(xml.Header)
	b.WriteString(`<package xmlns="http://www.idpf.org/2007/opf" version="3.0" unique-identifier="uid">` + "\n")
	b.WriteString(`<metadata xmlns:dc="` + dcNS + `">` + "\n")
	fmt.Fprintf(&b, "<dc:identifier id=\"uid\">%s</dc:identifier>\n", uid)
	fmt.Fprintf(&b, "<dc:title>%s</dc:title>\n", esc(doc.Title))
	fmt.Fprintf(&b, "<dc:creator>%s</dc:creator>\n", esc(doc.Author))
	fmt.Fprintf(&b, "<dc:publisher>%s</dc:publisher>\n", esc(doc.Publisher))
	fmt.Fprintf(&b, "<dc:language>%s</dc:language>\n", esc(doc.Language))
	b.WriteString("</metadata>\n<manifest>\n")
	b.WriteString(`<item id="nav" href="nav.xhtml" media-type="application/xhtml+xml" properties="nav"/>` + "\n")
	b.WriteString(`<item id="content" href="content.xhtml" media-type="application/xhtml+xml"/>` + "\n")
	b.WriteString("</manifest>\n<spine>\n<itemref idref=\"content\"/>\n</spine>\n</package>\n")
	return []byte(b.String())
}

func generateEpubNav(doc *Document) []byte {
	var b strings.Builder
	b.WriteString(xml.Header)
	b.WriteString(`<html xmlns="http://www.w3.org/1999/xhtml" xmlns:epub="http://www.idpf.org/2007/ops">` + "\n")
	fmt.Fprintf(&b, "<head><title>%s</title></head>\n<body>\n", esc(doc.Title))
	b.WriteString(`<nav epub:type="toc"><ol>` + "\n")
	wrote := false
	for i, blk := range doc.Blocks {
		if blk.Level == 0 {
			continue
		}
		fmt.Fprintf(&b, "<li><a href=\"content.xhtml#b_%d\">%s</a></li>\n", i+1, esc(blk.Text))
		wrote = true
	}
	if !wrote {
		fmt.Fprintf(&b, "<li><a href=\"content.xhtml\">%s</a></li>\n", esc(doc.Title))
	}
	b.WriteString("</ol></nav>\n</body>\n</html>\n")
	return []byte(b.String())
}

func generateEpubContent(doc *Document) []byte {
	var b strings.Builder
	b.WriteString(xml.Header)
	b.WriteString(`<html xmlns="http://www.w3.org/1999/xhtml" xmlns:epub="http://www.idpf.org/2007/ops">` + "\n")
	fmt.Fprintf(&b, "<head><title>%s</title></head>\n<body>\n", esc(doc.Title))
	for i, blk := range doc.Blocks {
		id := i + 1
		if blk.Level > 0 {
			fmt.Fprintf(&b, "<h%d id=\"b_%d\">%s</h%d>\n", blk.Level, id, esc(blk.Text), blk.Level)
		} else {
			fmt.Fprintf(&b, "<p id=\"b_%d\">%s</p>\n", id, esc(blk.Text))
		}
		for _, m := range blk.Markers {
			writeEpubMarker(&b, m)
		}
	}
	b.WriteString("</body>\n</html>\n")
	return []byte(b.String())
}

// writeEpubMarker renders interpreted markers with their EPUB3 accessibility
// vocabulary equivalents.
func writeEpubMarker(b *strings.Builder, m markers.Marker) {
	v := esc(m.Value)
	switch m.Type {
	case markers.TypePage:
		fmt.Fprintf(b, "<span epub:type=\"pagebreak\" id=\"page_%s\" title=%q></span>\n", v, v)
	case markers.TypeNote:
		fmt.Fprintf(b, "<aside epub:type=\"footnote\" id=\"note_%s\"><p>%s</p></aside>\n", noteID(m.Value), v)
	case markers.TypeSidebar:
		fmt.Fprintf(b, "<aside epub:type=\"sidebar\" id=\"sidebar_%s\"><p>%s</p></aside>\n", noteID(m.Value), v)
	case markers.TypeAnnotation:
		fmt.Fprintf(b, "<aside epub:type=\"annotation\" id=\"annot_%s\"><p>%s</p></aside>\n", noteID(m.Value), v)
	case markers.TypeProdNote:
		fmt.Fprintf(b, "<aside epub:type=\"production-note\" id=\"prodnote_%s\"><p>%s</p></aside>\n", noteID(m.Value), v)
	case markers.TypeNoteRef:
		fmt.Fprintf(b, "<a epub:type=\"noteref\" href=\"#note_%s\">%s</a>\n", v, v)
	}
}
