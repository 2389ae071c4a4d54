package document

import "testing"

func TestDocxHeadingLevel(t *testing.T) {
	cases := []struct {
		style string
		want  int
	}{
		{"Heading1", 1},
		{"heading 1", 1},
		{"HEADING3", 3},
		{"Heading6", 6},
		{"Normal", 0},
		{"ListParagraph", 0},
		{"", 0},
		{"Heading7", 0},
	}
	for _, tc := range cases {
		if got := docxHeadingLevel(tc.style); got != tc.want {
			t.Errorf("docxHeadingLevel(%q) = %d, want %d", tc.style, got, tc.want)
		}
	}
}
