package dtb

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPackageZipUnzipRoundTrip(t *testing.T) {
	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "b.txt"), []byte("bbb"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(src, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "sub", "a.txt"), []byte("aaa"), 0o644))

	archive := filepath.Join(t.TempDir(), "out.zip")
	require.NoError(t, PackageZip(src, archive))

	dest := t.TempDir()
	require.NoError(t, Unzip(archive, dest))

	got, err := os.ReadFile(filepath.Join(dest, "b.txt"))
	require.NoError(t, err)
	require.Equal(t, "bbb", string(got))
	got, err = os.ReadFile(filepath.Join(dest, "sub", "a.txt"))
	require.NoError(t, err)
	require.Equal(t, "aaa", string(got))
}

func TestPackageZipEmptyDir(t *testing.T) {
	err := PackageZip(t.TempDir(), filepath.Join(t.TempDir(), "out.zip"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "nothing to package")
}

func TestPackageEPUBMimetypeFirstAndStored(t *testing.T) {
	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "mimetype"), []byte("application/epub+zip"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(src, "META-INF"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "META-INF", "container.xml"), []byte("<container/>"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(src, "OEBPS"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "OEBPS", "content.xhtml"), []byte("<html/>"), 0o644))

	out := filepath.Join(t.TempDir(), "book.epub")
	require.NoError(t, PackageEPUB(src, out))

	zr, err := zip.OpenReader(out)
	require.NoError(t, err)
	defer zr.Close()

	require.NotEmpty(t, zr.File)
	first := zr.File[0]
	require.Equal(t, "mimetype", first.Name)
	require.Equal(t, zip.Store, first.Method, "mimetype entry must be uncompressed")

	names := make(map[string]bool)
	for _, f := range zr.File {
		names[f.Name] = true
	}
	require.True(t, names["META-INF/container.xml"])
	require.True(t, names["OEBPS/content.xhtml"])
}

func TestUnzipRejectsEscapingEntries(t *testing.T) {
	archive := filepath.Join(t.TempDir(), "evil.zip")
	f, err := os.Create(archive)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	w, err := zw.Create("../escape.txt")
	require.NoError(t, err)
	_, err = w.Write([]byte("nope"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	err = Unzip(archive, t.TempDir())
	require.Error(t, err)
	require.Contains(t, err.Error(), "escapes destination")
}
