package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"tablecast/internal/logger"
	"tablecast/internal/opencv/safe"
)

func TestManagerReusesReleasedMat(t *testing.T) {
	m := NewManager(2, 0, logger.Nop())
	defer m.Cleanup()

	a, err := m.Get(4, 4, gocv.MatTypeCV8UC3)
	require.NoError(t, err)
	id := a.ID()
	m.Put(a)

	b, err := m.Get(4, 4, gocv.MatTypeCV8UC3)
	require.NoError(t, err)
	assert.Equal(t, id, b.ID())

	st := m.Stats()
	assert.EqualValues(t, 1, st.PoolHits)
	assert.EqualValues(t, 1, st.PoolMisses)
	assert.EqualValues(t, 1, st.ActiveMats)
	m.Put(b)
}

func TestManagerKeysByShape(t *testing.T) {
	m := NewManager(2, 0, logger.Nop())
	defer m.Cleanup()

	a, err := m.Get(4, 4, gocv.MatTypeCV8UC3)
	require.NoError(t, err)
	m.Put(a)

	b, err := m.Get(4, 4, gocv.MatTypeCV8UC1)
	require.NoError(t, err)
	assert.NotEqual(t, a.ID(), b.ID())
	m.Put(b)
}

func TestManagerClosesOverflow(t *testing.T) {
	m := NewManager(1, 0, logger.Nop())
	defer m.Cleanup()

	a, err := m.Get(2, 2, gocv.MatTypeCV8UC1)
	require.NoError(t, err)
	b, err := m.Get(2, 2, gocv.MatTypeCV8UC1)
	require.NoError(t, err)

	m.Put(a)
	m.Put(b)
	assert.True(t, a.IsValid())
	assert.False(t, b.IsValid())
	assert.EqualValues(t, 0, m.Stats().ActiveMats)
}

func TestManagerLimit(t *testing.T) {
	m := NewManager(1, 100, logger.Nop())
	defer m.Cleanup()

	a, err := m.Get(5, 5, gocv.MatTypeCV8UC3)
	require.NoError(t, err)
	_, err = m.Get(5, 5, gocv.MatTypeCV8UC3)
	assert.Error(t, err)
	m.Put(a)
}

func TestPoolSkipsClosedMats(t *testing.T) {
	m := NewManager(2, 0, logger.Nop())
	defer m.Cleanup()

	a, err := m.Get(2, 2, gocv.MatTypeCV8UC1)
	require.NoError(t, err)
	m.Put(a)
	a.Close()

	b, err := m.Get(2, 2, gocv.MatTypeCV8UC1)
	require.NoError(t, err)
	assert.NotEqual(t, a.ID(), b.ID())
	m.Put(b)
}

func TestFreeListBounds(t *testing.T) {
	l := newFreeList(1)
	a, err := safe.NewMat(2, 2, gocv.MatTypeCV8UC1)
	require.NoError(t, err)
	b, err := safe.NewMat(2, 2, gocv.MatTypeCV8UC1)
	require.NoError(t, err)
	defer b.Close()

	assert.True(t, l.give(a))
	assert.False(t, l.give(b))
	assert.Same(t, a, l.take())
	assert.Nil(t, l.take())

	require.True(t, l.give(a))
	assert.Equal(t, 1, l.drain())
	assert.False(t, a.IsValid())
}

func TestManagerStatsFields(t *testing.T) {
	m := NewManager(2, 0, logger.Nop())
	defer m.Cleanup()

	a, err := m.Get(2, 2, gocv.MatTypeCV8UC3)
	require.NoError(t, err)

	fields := m.StatsFields()
	assert.EqualValues(t, 1, fields["mats_active"])
	assert.EqualValues(t, 12, fields["mats_bytes_held"])
	assert.EqualValues(t, 1, fields["mats_pool_misses"])
	m.Put(a)
	assert.EqualValues(t, 0, m.StatsFields()["mats_bytes_held"])
}
