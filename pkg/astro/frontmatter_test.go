package astro

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseFrontmatter(t *testing.T) {
	tests := []struct {
		name string
		text string
		want Frontmatter
	}{
		{
			name: "empty document",
			text: "",
			want: Frontmatter{State: FrontmatterAbsent},
		},
		{
			name: "markup only",
			text: "<div>---</div>",
			want: Frontmatter{State: FrontmatterAbsent},
		},
		{
			name: "closed",
			text: "---\nconst a = 1;\n---\n<div/>",
			want: Frontmatter{
				State:       FrontmatterClosed,
				OpenStart:   0,
				OpenEnd:     3,
				BodyStart:   4,
				BodyEnd:     17,
				CloseStart:  17,
				CloseEnd:    20,
				MarkupStart: 21,
			},
		},
		{
			name: "open",
			text: "---\nconst a = 1;\n",
			want: Frontmatter{
				State:       FrontmatterOpen,
				OpenStart:   0,
				OpenEnd:     3,
				BodyStart:   4,
				BodyEnd:     17,
				MarkupStart: 17,
			},
		},
		{
			name: "leading blank line and indented fence",
			text: "\n  ---\nx\n---",
			want: Frontmatter{
				State:       FrontmatterClosed,
				OpenStart:   3,
				OpenEnd:     6,
				BodyStart:   7,
				BodyEnd:     9,
				CloseStart:  9,
				CloseEnd:    12,
				MarkupStart: 12,
			},
		},
		{
			name: "crlf line endings",
			text: "---\r\na\r\n---\r\n<p/>",
			want: Frontmatter{
				State:       FrontmatterClosed,
				OpenStart:   0,
				OpenEnd:     3,
				BodyStart:   5,
				BodyEnd:     8,
				CloseStart:  8,
				CloseEnd:    11,
				MarkupStart: 13,
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseFrontmatter([]byte(tt.text))
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ParseFrontmatter() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFrontmatterContains(t *testing.T) {
	fm := ParseFrontmatter([]byte("---\nconst a = 1;\n---\n<div/>"))
	for offset, want := range map[int]bool{0: false, 3: false, 4: true, 10: true, 17: true, 19: false, 22: false} {
		if got := fm.Contains(offset); got != want {
			t.Errorf("Contains(%d) = %v, want %v", offset, got, want)
		}
	}
	for offset, want := range map[int]bool{0: true, 3: true, 4: false, 18: true, 21: false} {
		if got := fm.OnFence(offset); got != want {
			t.Errorf("OnFence(%d) = %v, want %v", offset, got, want)
		}
	}
}
