// Package session holds the mutable pipeline state shared by the calibration
// controller, the event router and the frame processor.
//
// Each field has a single writer: Transform belongs to the calibration
// controller, Plane to the engine's plane step and Flags to the input router
// (the engine only clears FindPlaneRequested once serviced). The driving loop
// is single threaded so no locking is done here; a parallel frame processor
// must read through Snapshot under its own guard.
package session

import (
	"tablecast/internal/geometry"
	"tablecast/internal/plane"
)

// Flags are the interactive mode switches.
type Flags struct {
	FindPlaneRequested bool
	FilterEnabled      bool
	QuitRequested      bool
	DistanceThreshold  float64
}

type State struct {
	Transform geometry.Transform
	Plane     *plane.Plane
	Flags     Flags
}

func New(transform geometry.Transform, filterEnabled bool, distance float64) *State {
	return &State{
		Transform: transform,
		Flags: Flags{
			FilterEnabled:     filterEnabled,
			DistanceThreshold: distance,
		},
	}
}

// Snapshot returns a copy that is safe to hand to another goroutine.
func (s *State) Snapshot() State {
	out := *s
	if s.Plane != nil {
		p := *s.Plane
		out.Plane = &p
	}
	return out
}
