package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tablecast.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultsAreValid(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 1280, cfg.Output.Width)
	assert.Equal(t, 720, cfg.Output.Height)
	assert.Equal(t, 200, cfg.Plane.MaxIterations)
	assert.InDelta(t, 1.0, cfg.Plane.InitialDistance, 1e-12)
	assert.InDelta(t, 0.2, cfg.Plane.DistanceStep, 1e-12)
	assert.True(t, cfg.Filter.Enabled)
	assert.Equal(t, []uint8{0x99, 0x99, 0x99}, cfg.Filter.Background)
	assert.Equal(t, "perspective.yaml", cfg.Calibration.File)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
output:
  width: 640
  height: 480
filter:
  enabled: false
sink:
  kind: web
  listen: ":9000"
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 640, cfg.Output.Width)
	assert.False(t, cfg.Filter.Enabled)
	assert.Equal(t, "web", cfg.Sink.Kind)
	assert.Equal(t, ":9000", cfg.Sink.Listen)
	assert.Equal(t, 200, cfg.Plane.MaxIterations)
}

func TestLoadEmptyFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, ""))
	require.NoError(t, err)
	assert.Equal(t, Defaults().Output, cfg.Output)
}

func TestLoadRejects(t *testing.T) {
	tests := map[string]string{
		"unknown key":      "outptu:\n  width: 1\n",
		"bad sink":         "sink:\n  kind: tv\n",
		"zero output":      "output:\n  width: 0\n",
		"short background": "filter:\n  background: [1, 2]\n",
		"inverted depth":   "depth:\n  min: 100\n  max: 50\n",
		"bad level":        "log:\n  level: loud\n",
		"not yaml":         "output: [",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
