package astro

import "testing"

func TestDetectFence(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		offset    int
		wantKind  FenceKind
		wantStart int
	}{
		{"empty document", "", 0, FenceOpen, 0},
		{"one dash typed", "-", 1, FenceOpen, 0},
		{"two dashes typed", "--", 2, FenceOpen, 0},
		{"inside a lone fence", "---", 2, FenceOpen, 0},
		{"full fence typed", "---\n", 3, FenceOpen, 0},
		{"close on new line", "---\nconst a = 1;\n-", 18, FenceClose, 17},
		{"close indented", "---\nconst a = 1;\n  --", 21, FenceClose, 19},
		{"close with nothing typed", "---\nconst a = 1;\n", 17, FenceClose, 17},
		{"already closed", "---\nconst a = 1;\n---\n-", 22, FenceNone, 22},
		{"markup before cursor line", "<div></div>\n-", 13, FenceNone, 13},
		{"code before cursor", "---\nconst x = a -", 17, FenceNone, 17},
		{"too many dashes", "----", 4, FenceNone, 4},
		{"offset out of range", "-", 5, FenceNone, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, start := DetectFence([]byte(tt.text), tt.offset)
			if kind != tt.wantKind {
				t.Errorf("DetectFence() kind = %v, want %v", kind, tt.wantKind)
			}
			if start != tt.wantStart {
				t.Errorf("DetectFence() replaceStart = %v, want %v", start, tt.wantStart)
			}
			if start > tt.offset {
				t.Errorf("replaced range extends past the cursor: %d > %d", start, tt.offset)
			}
		})
	}
}
