package markers

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFindOrdersByPosition(t *testing.T) {
	text := `$#12 Chapter one $note{first note} body $sidebar{aside}`
	found := Find(text)

	require.Len(t, found, 3)
	require.Equal(t, TypePage, found[0].Type)
	require.Equal(t, "12", found[0].Value)
	require.Equal(t, TypeNote, found[1].Type)
	require.Equal(t, "first note", found[1].Value)
	require.Equal(t, TypeSidebar, found[2].Type)
	require.Equal(t, "aside", found[2].Value)
}

func TestFindPageVariants(t *testing.T) {
	cases := []struct {
		text string
		want string
	}{
		{"$#7", "7"},
		{"$#12.3", "12.3"},
		{"$#12-3", "12-3"},
	}
	for _, tc := range cases {
		found := Find(tc.text)
		require.Len(t, found, 1, "text %q", tc.text)
		require.Equal(t, TypePage, found[0].Type)
		require.Equal(t, tc.want, found[0].Value)
	}
}

func TestFindAllTypes(t *testing.T) {
	text := `$#1 $note{n} $sidebar{s} $annotation{a} $line{42} $noteref{r1} $prodnote{pn}`
	found := Find(text)
	require.Len(t, found, 7)

	byType := map[Type]string{}
	for _, m := range found {
		byType[m.Type] = m.Value
	}
	require.Equal(t, "1", byType[TypePage])
	require.Equal(t, "n", byType[TypeNote])
	require.Equal(t, "s", byType[TypeSidebar])
	require.Equal(t, "a", byType[TypeAnnotation])
	require.Equal(t, "42", byType[TypeLineNum])
	require.Equal(t, "r1", byType[TypeNoteRef])
	require.Equal(t, "pn", byType[TypeProdNote])
}

func TestProcessStripsSyntax(t *testing.T) {
	cleaned, found := Process(`$#3 The text $note{kept inline} continues $line{5}.`)

	require.Len(t, found, 3)
	// Page and line markers vanish, note content stays in the flow.
	require.Equal(t, ` The text kept inline continues .`, cleaned)
}

func TestProcessNoMarkers(t *testing.T) {
	cleaned, found := Process("plain paragraph with $ sign and {braces}")
	require.Empty(t, found)
	require.Equal(t, "plain paragraph with $ sign and {braces}", cleaned)
}

func TestProcessRepeatedMarkers(t *testing.T) {
	cleaned, found := Process(`a $note{x} b $note{x} c`)
	require.Len(t, found, 2)
	require.Equal(t, "a x b x c", cleaned)
}
