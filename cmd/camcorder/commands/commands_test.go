package commands

import (
	"testing"

	"github.com/bryanchriswhite/camcorder/internal/attr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePairs(t *testing.T) {
	pairs, err := parsePairs([]string{"camera-width=1280", "audio-volume=1.5", "target-filename=/tmp/a=b.mp4"})
	require.NoError(t, err)
	assert.Equal(t, []attr.Pair{
		attr.P("camera-width", 1280),
		attr.P("audio-volume", 1.5),
		attr.P("target-filename", "/tmp/a=b.mp4"),
	}, pairs)

	for _, bad := range []string{"camera-width", "=3"} {
		t.Run(bad, func(t *testing.T) {
			_, err := parsePairs([]string{bad})
			assert.Error(t, err)
		})
	}
}

func TestLookup(t *testing.T) {
	tree := map[string]any{
		"server_port": 8080,
		"preview":     map[string]any{"fps": 15},
	}
	tests := []struct {
		key  string
		want any
		ok   bool
	}{
		{"server_port", 8080, true},
		{"preview.fps", 15, true},
		{"preview.missing", nil, false},
		{"server_port.x", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, ok := lookup(tree, tt.key)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
