package tsls

import (
	"encoding/json"
	"testing"

	"github.com/kralicky/tools-lite/gopls/pkg/protocol"
	"github.com/stretchr/testify/require"
)

func TestTypeFromDetail(t *testing.T) {
	tests := []struct {
		detail string
		name   string
		want   string
	}{
		{"(property) name?: string", "name", "string"},
		{"(property) count: number | undefined", "count", "number | undefined"},
		{"const title: string", "title", "string"},
		{"string", "name", "string"},
		{"", "name", ""},
	}
	for _, tt := range tests {
		t.Run(tt.detail, func(t *testing.T) {
			require.Equal(t, tt.want, typeFromDetail(tt.detail, tt.name))
		})
	}
}

func TestHoverText(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"markup content", `{"kind":"markdown","value":"**x**"}`, "**x**"},
		{"plain string", `"hello"`, "hello"},
		{"marked string", `{"language":"ts","value":"let a: number"}`, "```ts\nlet a: number\n```"},
		{"list", `["a", {"language":"ts","value":"b"}]`, "a\n\n```ts\nb\n```"},
		{"null", `null`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, hoverText(json.RawMessage(tt.raw)))
		})
	}
}

func TestDecodeLocations(t *testing.T) {
	rng := protocol.Range{Start: protocol.Position{Line: 1}, End: protocol.Position{Line: 1, Character: 4}}
	single, err := json.Marshal(protocol.Location{URI: "file:///a.ts", Range: rng})
	require.NoError(t, err)

	locs, err := decodeLocations(single)
	require.NoError(t, err)
	require.Equal(t, []protocol.Location{{URI: "file:///a.ts", Range: rng}}, locs)

	locs, err = decodeLocations(json.RawMessage(`[{"targetUri":"file:///b.ts","targetRange":{"start":{"line":0,"character":0},"end":{"line":9,"character":0}},"targetSelectionRange":{"start":{"line":1,"character":0},"end":{"line":1,"character":4}}}]`))
	require.NoError(t, err)
	require.Equal(t, []protocol.Location{{URI: "file:///b.ts", Range: rng}}, locs)

	locs, err = decodeLocations(json.RawMessage(`null`))
	require.NoError(t, err)
	require.Empty(t, locs)
}

func TestDecodeCompletionItems(t *testing.T) {
	items, err := decodeCompletionItems(json.RawMessage(`[{"label":"a","kind":6},{"label":"b?","kind":10,"textEdit":{"range":{"start":{"line":0,"character":0},"end":{"line":0,"character":0}},"newText":"b"}}]`))
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.Equal(t, "a", items[0].entry().Name)

	b := items[1].entry()
	require.Equal(t, "b", b.Name)
	require.True(t, b.Optional)
	require.Empty(t, b.InsertText)

	items, err = decodeCompletionItems(json.RawMessage(`{"isIncomplete":true,"items":[{"label":"c"}]}`))
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "var", string(items[0].entry().Kind))
}
