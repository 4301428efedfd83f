package calibration

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tablecast/internal/geometry"
)

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "perspective.yaml")
	store := NewFileStore(path, "")

	want := geometry.Transform{
		{1.25, -0.01, 12.5},
		{0.02, 0.98, -4},
		{0.00001, -0.00002, 1},
	}
	require.NoError(t, store.Save(want))

	got, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, want, got)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "perspective:")
	assert.Contains(t, string(raw), "dt: d")
}

func TestFileStoreSaveOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "perspective.yaml")
	store := NewFileStore(path, "perspective")

	require.NoError(t, store.Save(geometry.Identity()))
	second := geometry.Transform{{2, 0, 0}, {0, 2, 0}, {0, 0, 1}}
	require.NoError(t, store.Save(second))

	got, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, second, got)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestFileStoreLoadMissing(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "absent.yaml"), "")
	_, err := store.Load()
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestFileStoreLoadMalformed(t *testing.T) {
	cases := map[string]string{
		"not yaml":    "perspective: [unterminated",
		"missing key": "other:\n  rows: 3\n  cols: 3\n  dt: d\n  data: [1, 0, 0, 0, 1, 0, 0, 0, 1]\n",
		"wrong shape": "perspective:\n  rows: 2\n  cols: 2\n  dt: d\n  data: [1, 0, 0, 1]\n",
		"short data":  "perspective:\n  rows: 3\n  cols: 3\n  dt: d\n  data: [1, 0, 0]\n",
		"non-finite":  "perspective:\n  rows: 3\n  cols: 3\n  dt: d\n  data: [.nan, 0, 0, 0, 1, 0, 0, 0, 1]\n",
		"singular":    "perspective:\n  rows: 3\n  cols: 3\n  dt: d\n  data: [1, 2, 0, 2, 4, 0, 0, 0, 1]\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "perspective.yaml")
			require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

			_, err := NewFileStore(path, "perspective").Load()
			assert.ErrorIs(t, err, ErrMalformedTransform)
		})
	}
}

func TestFileStoreSaveToMissingDirectory(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "no", "such", "dir", "p.yaml"), "")
	assert.Error(t, store.Save(geometry.Identity()))
}
