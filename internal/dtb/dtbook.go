package dtb

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/audisee/docx2daisy/internal/markers"
)

const (
	dtbookNS = "http://www.daisy.org/z3986/2005/dtbook/"
	ncxNS    = "http://www.daisy.org/z3986/2005/ncx/"
	smilNS   = "http://www.w3.org/2001/SMIL20/"
	opfNS    = "http://openebook.org/namespaces/oeb-package/1.0/"
	dcNS     = "http://purl.org/dc/elements/1.1/"
)

// DaisyFiles are the members of a generated DAISY fileset.
var DaisyFiles = []string{"dtbook.xml", "dtbook.ncx", "dtbook.smil", "dtbook.opf"}

func esc(s string) string {
	var buf bytes.Buffer
	_ = xml.EscapeText(&buf, []byte(s))
	return buf.String()
}

// GenerateDaisy writes the DAISY 3 fileset (DTBook, NCX, SMIL, OPF) for doc
// into dir.
func GenerateDaisy(doc *Document, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	uid := "AUTO-UID-" + uuid.NewString()
	if err := os.WriteFile(filepath.Join(dir, "dtbook.xml"), generateDTBook(doc, uid), 0o644); err != nil {
		return fmt.Errorf("write dtbook.xml: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "dtbook.ncx"), generateNCX(doc, uid), 0o644); err != nil {
		return fmt.Errorf("write dtbook.ncx: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "dtbook.smil"), generateSMIL(doc, uid), 0o644); err != nil {
		return fmt.Errorf("write dtbook.smil: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "dtbook.opf"), generateOPF(doc, uid), 0o644); err != nil {
		return fmt.Errorf("write dtbook.opf: %w", err)
	}
	return nil
}

func generateDTBook(doc *Document, uid string) []byte {
	var b strings.Builder
	b.WriteString(xml.Header)
	fmt.Fprintf(&b, "<dtbook xmlns=%q version=\"2005-3\">\n", dtbookNS)
	b.WriteString("<head>\n")
	meta := func(name, content string) {
		fmt.Fprintf(&b, "<meta name=%q content=%q/>\n", name, esc(content))
	}
	meta("dtb:uid", uid)
	meta("dc:Title", doc.Title)
	meta("dc:Creator", doc.Author)
	meta("dc:Publisher", doc.Publisher)
	meta("dc:Language", doc.Language)
	meta("dc:Date", time.Now().Format("2006-01-02"))
	b.WriteString("</head>\n")
	b.WriteString("<book showin=\"blp\">\n<frontmatter>\n")
	fmt.Fprintf(&b, "<doctitle id=\"forsmil-1\" smilref=\"dtbook.smil#sforsmil-1\">%s</doctitle>\n", esc(doc.Title))
	fmt.Fprintf(&b, "<docauthor id=\"forsmil-2\" smilref=\"dtbook.smil#sforsmil-2\">%s</docauthor>\n", esc(doc.Author))
	b.WriteString("</frontmatter>\n<bodymatter>\n")

	levelOpen := false
	closeLevel := func() {
		if levelOpen {
			b.WriteString("</level1>\n")
			levelOpen = false
		}
	}
	openLevel := func(id int) {
		closeLevel()
		fmt.Fprintf(&b, "<level1 id=\"level_%d\" smilref=\"dtbook.smil#smil_par_%d\">\n", id, id)
		levelOpen = true
	}

	for i, blk := range doc.Blocks {
		id := i + 1
		if blk.Level > 0 {
			openLevel(id)
			fmt.Fprintf(&b, "<h%d id=\"h_%d\" smilref=\"dtbook.smil#smil_par_%d\">%s</h%d>\n",
				blk.Level, id, id, esc(blk.Text), blk.Level)
		} else {
			if !levelOpen {
				openLevel(id)
			}
			fmt.Fprintf(&b, "<p id=\"p_%d\" smilref=\"dtbook.smil#smil_par_%d\">%s</p>\n", id, id, esc(blk.Text))
		}
		for _, m := range blk.Markers {
			writeMarkerElement(&b, m)
		}
	}
	closeLevel()
	b.WriteString("</bodymatter>\n</book>\n</dtbook>\n")
	return []byte(b.String())
}

// writeMarkerElement emits the DTBook element for one interpreted marker,
// following the original marker grammar: pagenum for page markers, dedicated
// elements for note/sidebar/annotation/prodnote, noteref inline references.
func writeMarkerElement(b *strings.Builder, m markers.Marker) {
	v := esc(m.Value)
	switch m.Type {
	case markers.TypePage:
		fmt.Fprintf(b, "<pagenum id=\"page_%s_%s\" page=\"normal\" smilref=\"dtbook.smil#smil_par_page_%s_%s\">%s</pagenum>\n", v, v, v, v, v)
	case markers.TypeNote:
		fmt.Fprintf(b, "<note id=\"note_%s\">%s</note>\n", noteID(m.Value), v)
	case markers.TypeSidebar:
		fmt.Fprintf(b, "<sidebar id=\"sidebar_%s\">%s</sidebar>\n", noteID(m.Value), v)
	case markers.TypeAnnotation:
		fmt.Fprintf(b, "<annotation id=\"annot_%s\">%s</annotation>\n", noteID(m.Value), v)
	case markers.TypeProdNote:
		fmt.Fprintf(b, "<prodnote id=\"prodnote_%s\">%s</prodnote>\n", noteID(m.Value), v)
	case markers.TypeNoteRef:
		fmt.Fprintf(b, "<noteref idref=\"#note_%s\">%s</noteref>\n", v, v)
	case markers.TypeLineNum:
		fmt.Fprintf(b, "<linenum>%s</linenum>\n", v)
	}
}

// noteID makes a stable id fragment from arbitrary marker content.
func noteID(value string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, value)
	if len(cleaned) > 24 {
		cleaned = cleaned[:24]
	}
	return cleaned
}

func generateNCX(doc *Document, uid string) []byte {
	var b strings.Builder
	b.WriteString(xml.Header)
	fmt.Fprintf(&b, "<ncx xmlns=%q version=\"2005-1\">\n", ncxNS)
	b.WriteString("<head>\n")
	fmt.Fprintf(&b, "<meta name=\"dtb:uid\" content=%q/>\n", uid)
	fmt.Fprintf(&b, "<meta name=\"dtb:depth\" content=\"%d\"/>\n", maxLevel(doc))
	b.WriteString("<meta name=\"dtb:totalPageCount\" content=\"0\"/>\n")
	b.WriteString("<meta name=\"dtb:maxPageNumber\" content=\"0\"/>\n")
	b.WriteString("</head>\n")
	fmt.Fprintf(&b, "<docTitle><text>%s</text></docTitle>\n", esc(doc.Title))
	fmt.Fprintf(&b, "<docAuthor><text>%s</text></docAuthor>\n", esc(doc.Author))
	b.WriteString("<navMap>\n")
	order := 1
	for i, blk := range doc.Blocks {
		if blk.Level == 0 {
			continue
		}
		id := i + 1
		fmt.Fprintf(&b, "<navPoint id=\"nav_%d\" playOrder=\"%d\">\n", id, order)
		fmt.Fprintf(&b, "<navLabel><text>%s</text></navLabel>\n", esc(blk.Text))
		fmt.Fprintf(&b, "<content src=\"dtbook.smil#smil_par_%d\"/>\n", id)
		b.WriteString("</navPoint>\n")
		order++
	}
	b.WriteString("</navMap>\n</ncx>\n")
	return []byte(b.String())
}

func generateSMIL(doc *Document, uid string) []byte {
	var b strings.Builder
	b.WriteString(xml.Header)
	fmt.Fprintf(&b, "<smil xmlns=%q>\n", smilNS)
	b.WriteString("<head>\n")
	fmt.Fprintf(&b, "<meta name=\"dtb:uid\" content=%q/>\n", uid)
	b.WriteString("</head>\n<body>\n<seq id=\"root-seq\">\n")
	b.WriteString("<par id=\"sforsmil-1\" class=\"doctitle\"><text src=\"dtbook.xml#forsmil-1\"/></par>\n")
	b.WriteString("<par id=\"sforsmil-2\" class=\"docauthor\"><text src=\"dtbook.xml#forsmil-2\"/></par>\n")
	for i, blk := range doc.Blocks {
		id := i + 1
		class := "text"
		if blk.Level > 0 {
			class = fmt.Sprintf("h%d", blk.Level)
		}
		fmt.Fprintf(&b, "<par id=\"smil_par_%d\" class=%q><text src=\"dtbook.xml#%s_%d\"/></par>\n",
			id, class, blockAnchor(blk), id)
		for _, m := range blk.Markers {
			if m.Type == markers.TypePage {
				v := esc(m.Value)
				fmt.Fprintf(&b, "<par id=\"smil_par_page_%s_%s\" class=\"pagenum\"><text src=\"dtbook.xml#page_%s_%s\"/></par>\n", v, v, v, v)
			}
		}
	}
	b.WriteString("</seq>\n</body>\n</smil>\n")
	return []byte(b.String())
}

func blockAnchor(blk Block) string {
	if blk.Level > 0 {
		return "h"
	}
	return "p"
}

func generateOPF(doc *Document, uid string) []byte {
	var b strings.Builder
	b.WriteString(xml.Header)
	fmt.Fprintf(&b, "<package xmlns=%q unique-identifier=\"uid\">\n", opfNS)
	b.WriteString("<metadata>\n<dc-metadata xmlns:dc=\"" + dcNS + "\">\n")
	fmt.Fprintf(&b, "<dc:Title>%s</dc:Title>\n", esc(doc.Title))
	fmt.Fprintf(&b, "<dc:Creator>%s</dc:Creator>\n", esc(doc.Author))
	fmt.Fprintf(&b, "<dc:Publisher>%s</dc:Publisher>\n", esc(doc.Publisher))
	fmt.Fprintf(&b, "<dc:Language>%s</dc:Language>\n", esc(doc.Language))
	fmt.Fprintf(&b, "<dc:Identifier id=\"uid\">%s</dc:Identifier>\n", uid)
	fmt.Fprintf(&b, "<dc:Format>ANSI/NISO Z39.86-2005</dc:Format>\n")
	b.WriteString("</dc-metadata>\n</metadata>\n<manifest>\n")
	b.WriteString("<item href=\"dtbook.opf\" id=\"opf\" media-type=\"text/xml\"/>\n")
	b.WriteString("<item href=\"dtbook.xml\" id=\"opf-1\" media-type=\"application/x-dtbook+xml\"/>\n")
	b.WriteString("<item href=\"dtbook.smil\" id=\"mo\" media-type=\"application/smil\"/>\n")
	b.WriteString("<item href=\"dtbook.ncx\" id=\"ncx\" media-type=\"application/x-dtbncx+xml\"/>\n")
	b.WriteString("</manifest>\n<spine>\n<itemref idref=\"mo\"/>\n</spine>\n</package>\n")
	return []byte(b.String())
}

func maxLevel(doc *Document) int {
	max := 1
	for _, b := range doc.Blocks {
		if b.Level > max {
			max = b.Level
		}
	}
	return max
}
