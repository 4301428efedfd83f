package memory

import (
	"gocv.io/x/gocv"

	"tablecast/internal/opencv/safe"
)

// shape identifies mats that can stand in for one another.
type shape struct {
	rows, cols int
	typ        gocv.MatType
}

func shapeOf(m *safe.Mat) shape {
	return shape{rows: m.Rows(), cols: m.Cols(), typ: m.Type()}
}

// freeList holds idle mats of one shape. It never blocks: a full list
// refuses mats and an empty one yields nil.
type freeList chan *safe.Mat

func newFreeList(capacity int) freeList {
	return make(freeList, max(capacity, 1))
}

// take returns an idle mat, closing any that were emptied while idle.
func (l freeList) take() *safe.Mat {
	for {
		select {
		case m := <-l:
			if !m.Empty() {
				return m
			}
			m.Close()
		default:
			return nil
		}
	}
}

func (l freeList) give(m *safe.Mat) bool {
	if m == nil || m.Empty() {
		return false
	}
	select {
	case l <- m:
		return true
	default:
		return false
	}
}

// drain closes every idle mat and returns how many there were.
func (l freeList) drain() int {
	n := 0
	for {
		select {
		case m := <-l:
			m.Close()
			n++
		default:
			return n
		}
	}
}
