package safe

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func TestNewMatRejectsBadSize(t *testing.T) {
	_, err := NewMat(0, 10, gocv.MatTypeCV8UC3)
	assert.Error(t, err)
	_, err = NewMat(10, -1, gocv.MatTypeCV8UC3)
	assert.Error(t, err)
}

func TestMatCloseIsIdempotent(t *testing.T) {
	m, err := NewMat(4, 6, gocv.MatTypeCV8UC3)
	require.NoError(t, err)
	assert.Equal(t, 4, m.Rows())
	assert.Equal(t, 6, m.Cols())
	assert.Equal(t, gocv.MatTypeCV8UC3, m.Type())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Close()
		}()
	}
	wg.Wait()

	assert.False(t, m.IsValid())
	assert.True(t, m.Empty())
	assert.Equal(t, 0, m.Rows())
	_, err = m.Bytes()
	assert.Error(t, err)
}

func TestMatBytes(t *testing.T) {
	m, err := NewMat(2, 3, gocv.MatTypeCV8UC1)
	require.NoError(t, err)
	defer m.Close()

	data, err := m.Bytes()
	require.NoError(t, err)
	assert.Len(t, data, 6)
}

func TestMatIDsAreUnique(t *testing.T) {
	a, err := NewMat(1, 1, gocv.MatTypeCV8UC1)
	require.NoError(t, err)
	defer a.Close()
	b, err := NewMat(1, 1, gocv.MatTypeCV8UC1)
	require.NoError(t, err)
	defer b.Close()
	assert.NotEqual(t, a.ID(), b.ID())
}
