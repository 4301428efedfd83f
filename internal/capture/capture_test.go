package capture

import (
	"image"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func TestOpenStillReplaysImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "table.png")
	img := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(10, 20, 30, 0), 6, 8, gocv.MatTypeCV8UC3)
	defer img.Close()
	require.True(t, gocv.IMWrite(path, img))

	src, err := Open(path, 0, 0)
	require.NoError(t, err)
	defer src.Close()
	assert.Equal(t, image.Pt(8, 6), src.Size())

	dst := gocv.NewMat()
	defer dst.Close()
	for i := 0; i < 2; i++ {
		require.True(t, src.Read(&dst))
		assert.Equal(t, 6, dst.Rows())
		assert.Equal(t, 8, dst.Cols())
		v := dst.GetVecbAt(3, 4)
		assert.Equal(t, []uint8{10, 20, 30}, []uint8{v[0], v[1], v[2]})
	}
}

func TestOpenStillMissing(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.png"), 0, 0)
	assert.Error(t, err)
}
