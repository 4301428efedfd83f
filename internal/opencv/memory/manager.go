// Package memory recycles output mats between frames so the steady-state
// loop does not allocate.
package memory

import (
	"fmt"
	"sync"

	"gocv.io/x/gocv"

	"tablecast/internal/logger"
	"tablecast/internal/opencv/safe"
)

const (
	component = "MatPool"

	DefaultPoolSize = 4
	// DefaultLimit caps bytes held by mats that are handed out.
	DefaultLimit int64 = 512 << 20
)

type Stats struct {
	TotalAllocated int64
	TotalReleased  int64
	ActiveMats     int64
	PoolHits       int64
	PoolMisses     int64
	MaxAllowed     int64
}

type Manager struct {
	pools    map[shape]freeList
	active   map[uint64]int64
	poolSize int
	stats    Stats
	log      logger.Logger
	mu       sync.Mutex
}

func NewManager(poolSize int, limit int64, log logger.Logger) *Manager {
	if poolSize < 1 {
		poolSize = DefaultPoolSize
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Manager{
		pools:    make(map[shape]freeList),
		active:   make(map[uint64]int64),
		poolSize: poolSize,
		stats:    Stats{MaxAllowed: limit},
		log:      log,
	}
}

// Get returns a mat of the requested shape, reusing a pooled one if any.
// Contents of a reused mat are stale.
func (m *Manager) Get(rows, cols int, matType gocv.MatType) (*safe.Mat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	size := int64(rows * cols * safe.ElemSize(matType))
	inUse := m.stats.TotalAllocated - m.stats.TotalReleased
	if inUse+size > m.stats.MaxAllowed {
		return nil, fmt.Errorf("mat pool limit exceeded: %d bytes in use", inUse)
	}

	var mat *safe.Mat
	if free, ok := m.pools[shape{rows: rows, cols: cols, typ: matType}]; ok {
		mat = free.take()
	}
	if mat != nil {
		m.stats.PoolHits++
	} else {
		m.stats.PoolMisses++
		var err error
		mat, err = safe.NewMat(rows, cols, matType)
		if err != nil {
			return nil, err
		}
		m.log.Debug(component, "allocated mat", map[string]interface{}{
			"rows": rows, "cols": cols, "type": int(matType),
		})
	}

	m.active[mat.ID()] = size
	m.stats.TotalAllocated += size
	m.stats.ActiveMats++
	return mat, nil
}

// Put hands a mat back. Untracked mats are closed.
func (m *Manager) Put(mat *safe.Mat) {
	if mat == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	size, ok := m.active[mat.ID()]
	if !ok {
		m.log.Warning(component, "releasing untracked mat", map[string]interface{}{"id": mat.ID()})
		mat.Close()
		return
	}
	delete(m.active, mat.ID())
	m.stats.TotalReleased += size
	m.stats.ActiveMats--

	key := shapeOf(mat)
	free, ok := m.pools[key]
	if !ok {
		free = newFreeList(m.poolSize)
		m.pools[key] = free
	}
	if !free.give(mat) {
		mat.Close()
	}
}

func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

// Cleanup closes pooled mats and forgets outstanding ones; their owners
// still close them.
func (m *Manager) Cleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()

	closed := 0
	for key, free := range m.pools {
		closed += free.drain()
		delete(m.pools, key)
	}
	outstanding := len(m.active)
	m.active = make(map[uint64]int64)

	m.log.Info(component, "mat pool cleaned up", map[string]interface{}{
		"closed":      closed,
		"outstanding": outstanding,
	})
}

func (m *Manager) StatsFields() map[string]interface{} {
	st := m.Stats()
	return map[string]interface{}{
		"mats_active":      st.ActiveMats,
		"mats_pool_hits":   st.PoolHits,
		"mats_pool_misses": st.PoolMisses,
		"mats_bytes_held":  st.TotalAllocated - st.TotalReleased,
	}
}
