package dtb

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateEPUBLayout(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, GenerateEPUB(sampleDocument(), dir))

	mt, err := os.ReadFile(filepath.Join(dir, "mimetype"))
	require.NoError(t, err)
	require.Equal(t, "application/epub+zip", string(mt))

	container, err := os.ReadFile(filepath.Join(dir, "META-INF", "container.xml"))
	require.NoError(t, err)
	require.Contains(t, string(container), `full-path="OEBPS/package.opf"`)

	for _, name := range []string{"package.opf", "nav.xhtml", "content.xhtml"} {
		_, err := os.Stat(filepath.Join(dir, "OEBPS", name))
		require.NoError(t, err, name)
	}
}

func TestGenerateEpubOPFMetadata(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, GenerateEPUB(sampleDocument(), dir))

	raw, err := os.ReadFile(filepath.Join(dir, "OEBPS", "package.opf"))
	require.NoError(t, err)
	body := string(raw)

	require.Contains(t, body, `version="3.0"`)
	require.Contains(t, body, "<dc:title>Sample Title</dc:title>")
	require.Contains(t, body, "<dc:creator>Sample Author</dc:creator>")
	require.Contains(t, body, "<dc:language>ko</dc:language>")
	require.Contains(t, body, `properties="nav"`)
}

func TestGenerateEpubContentMarkers(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, GenerateEPUB(sampleDocument(), dir))

	raw, err := os.ReadFile(filepath.Join(dir, "OEBPS", "content.xhtml"))
	require.NoError(t, err)
	body := string(raw)

	require.Contains(t, body, `<h1 id="b_1">Chapter One</h1>`)
	require.Contains(t, body, `<h2 id="b_4">Section</h2>`)
	require.Contains(t, body, `epub:type="pagebreak"`)
	require.Contains(t, body, `epub:type="footnote"`)
	require.Contains(t, body, "extra detail")
}

func TestTranscodedEpubKeepsMarkers(t *testing.T) {
	daisyDir := t.TempDir()
	require.NoError(t, GenerateDaisy(sampleDocument(), daisyDir))

	doc, err := ValidateDaisy(daisyDir)
	require.NoError(t, err)

	epubDir := t.TempDir()
	require.NoError(t, GenerateEPUB(doc, epubDir))

	raw, err := os.ReadFile(filepath.Join(epubDir, "OEBPS", "content.xhtml"))
	require.NoError(t, err)
	body := string(raw)

	require.Contains(t, body, `<span epub:type="pagebreak" id="page_3" title="3">`)
	require.Contains(t, body, `epub:type="footnote"`)
	require.Contains(t, body, "extra detail")
}

func TestGenerateEpubNavListsHeadings(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, GenerateEPUB(sampleDocument(), dir))

	raw, err := os.ReadFile(filepath.Join(dir, "OEBPS", "nav.xhtml"))
	require.NoError(t, err)
	body := string(raw)

	require.Contains(t, body, `epub:type="toc"`)
	require.Contains(t, body, `href="content.xhtml#b_1"`)
	require.Contains(t, body, "Chapter One")
	require.Contains(t, body, "Section")
}

func TestGenerateEpubNavFallbackWithoutHeadings(t *testing.T) {
	dir := t.TempDir()
	doc := &Document{Title: "Flat Doc", Language: "ko", Blocks: []Block{{Text: "only body text"}}}
	require.NoError(t, GenerateEPUB(doc, dir))

	raw, err := os.ReadFile(filepath.Join(dir, "OEBPS", "nav.xhtml"))
	require.NoError(t, err)
	require.Contains(t, string(raw), `<li><a href="content.xhtml">Flat Doc</a></li>`)
}
