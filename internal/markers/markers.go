// Package markers interprets the $-prefixed accessibility markers authors
// embed in source documents: page breaks, notes, sidebars, annotations, line
// numbers, note references and production notes.
package markers

import (
	"regexp"
	"sort"
	"strings"
)

type Type string

const (
	TypePage       Type = "page"
	TypeNote       Type = "note"
	TypeSidebar    Type = "sidebar"
	TypeAnnotation Type = "annotation"
	TypeLineNum    Type = "linenum"
	TypeNoteRef    Type = "noteref"
	TypeProdNote   Type = "prodnote"
)

// Marker is one matched marker: its kind, the captured value (page number,
// note body, ...) and the original text including the $ syntax.
type Marker struct {
	Type     Type   `json:"type"`
	Value    string `json:"value"`
	Original string `json:"original"`
}

var patterns = map[Type]*regexp.Regexp{
	TypePage:       regexp.MustCompile(`\$#(\d+(?:[.-]\d+)?)`),
	TypeNote:       regexp.MustCompile(`\$note\{([^}]+)\}`),
	TypeSidebar:    regexp.MustCompile(`\$sidebar\{([^}]+)\}`),
	TypeAnnotation: regexp.MustCompile(`\$annotation\{([^}]+)\}`),
	TypeLineNum:    regexp.MustCompile(`\$line\{(\d+)\}`),
	TypeNoteRef:    regexp.MustCompile(`\$noteref\{([^}]+)\}`),
	TypeProdNote:   regexp.MustCompile(`\$prodnote\{([^}]+)\}`),
}

type located struct {
	Marker
	pos int
}

// Find returns every marker in text, ordered by position.
func Find(text string) []Marker {
	var found []located
	for typ, re := range patterns {
		for _, m := range re.FindAllStringSubmatchIndex(text, -1) {
			found = append(found, located{
				Marker: Marker{
					Type:     typ,
					Value:    text[m[2]:m[3]],
					Original: text[m[0]:m[1]],
				},
				pos: m[0],
			})
		}
	}
	sort.Slice(found, func(i, j int) bool { return found[i].pos < found[j].pos })
	out := make([]Marker, len(found))
	for i, f := range found {
		out[i] = f.Marker
	}
	return out
}

// Process strips markers from text and returns the cleaned text plus the
// extracted markers. Page and reference markers are removed outright;
// note, sidebar and prodnote markers keep their content in the flow.
func Process(text string) (string, []Marker) {
	found := Find(text)
	processed := text
	for i := len(found) - 1; i >= 0; i-- {
		m := found[i]
		switch m.Type {
		case TypeNote, TypeSidebar, TypeProdNote:
			processed = strings.Replace(processed, m.Original, m.Value, 1)
		default:
			processed = strings.Replace(processed, m.Original, "", 1)
		}
	}
	return processed, found
}
