// Package safe wraps gocv.Mat so that native memory is freed exactly once,
// however many owners try to close it.
package safe

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"gocv.io/x/gocv"
)

type Mat struct {
	mat   gocv.Mat
	valid atomic.Bool
	mu    sync.RWMutex
	id    uint64
}

var nextMatID atomic.Uint64

func NewMat(rows, cols int, matType gocv.MatType) (*Mat, error) {
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("invalid dimensions: %dx%d", cols, rows)
	}
	m := gocv.NewMatWithSize(rows, cols, matType)
	if m.Empty() {
		m.Close()
		return nil, fmt.Errorf("allocate %dx%d mat of type %v", cols, rows, matType)
	}
	return wrap(m), nil
}

func wrap(m gocv.Mat) *Mat {
	sm := &Mat{mat: m, id: nextMatID.Add(1)}
	sm.valid.Store(true)
	runtime.SetFinalizer(sm, (*Mat).finalize)
	return sm
}

func (sm *Mat) IsValid() bool {
	return sm.valid.Load()
}

func (sm *Mat) ID() uint64 {
	return sm.id
}

func (sm *Mat) Empty() bool {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return !sm.IsValid() || sm.mat.Empty()
}

func (sm *Mat) Rows() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	if !sm.IsValid() {
		return 0
	}
	return sm.mat.Rows()
}

func (sm *Mat) Cols() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	if !sm.IsValid() {
		return 0
	}
	return sm.mat.Cols()
}

func (sm *Mat) Type() gocv.MatType {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	if !sm.IsValid() {
		return gocv.MatTypeCV8UC1
	}
	return sm.mat.Type()
}

// Mat returns the wrapped value. It is only usable until Close.
func (sm *Mat) Mat() gocv.Mat {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.mat
}

// Ptr exposes the wrapped value as a destination for gocv calls that write
// into it. It is only usable until Close.
func (sm *Mat) Ptr() *gocv.Mat {
	return &sm.mat
}

// Bytes returns the pixel data of a continuous 8-bit mat.
func (sm *Mat) Bytes() ([]byte, error) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	if !sm.IsValid() {
		return nil, fmt.Errorf("mat %d is closed", sm.id)
	}
	return sm.mat.DataPtrUint8()
}

// Close releases the native memory. Only the first call has any effect.
func (sm *Mat) Close() {
	if !sm.valid.CompareAndSwap(true, false) {
		return
	}
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.mat.Close()
	runtime.SetFinalizer(sm, nil)
}

func (sm *Mat) finalize() {
	sm.Close()
}

// ElemSize returns bytes per pixel for the mat types the pipeline uses.
func ElemSize(t gocv.MatType) int {
	switch t {
	case gocv.MatTypeCV8UC1:
		return 1
	case gocv.MatTypeCV8UC3:
		return 3
	case gocv.MatTypeCV8UC4:
		return 4
	case gocv.MatTypeCV16UC1:
		return 2
	case gocv.MatTypeCV32FC1:
		return 4
	case gocv.MatTypeCV64FC1:
		return 8
	default:
		return 1
	}
}
