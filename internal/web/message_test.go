package web

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tablecast/internal/input"
)

func TestParseMessage(t *testing.T) {
	out := image.Pt(1280, 720)

	ev, err := ParseMessage([]byte(`{"type":"pointer-release","x":0.5,"y":0.25}`), out)
	require.NoError(t, err)
	assert.Equal(t, input.Pointer(640, 180), ev)

	ev, err = ParseMessage([]byte(`{"type":"key","key":"space"}`), out)
	require.NoError(t, err)
	assert.Equal(t, input.Key("space"), ev)
}

func TestParseMessageRejects(t *testing.T) {
	tests := map[string]string{
		"not json":      `{`,
		"unknown type":  `{"type":"scroll"}`,
		"outside frame": `{"type":"pointer-release","x":1.5,"y":0}`,
		"negative":      `{"type":"pointer-release","x":0.2,"y":-0.1}`,
		"empty key":     `{"type":"key"}`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseMessage([]byte(body), image.Pt(10, 10))
			assert.Error(t, err)
		})
	}
}
