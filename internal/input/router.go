package input

import (
	"tablecast/internal/calibration"
	"tablecast/internal/logger"
	"tablecast/internal/session"
)

const component = "InputRouter"

// DefaultDistanceStep is the threshold change per plus/minus key.
const DefaultDistanceStep = 0.2

// Router applies events to the session synchronously. It keeps no events
// between calls.
type Router struct {
	calib *calibration.Controller
	step  float64
	log   logger.Logger

	handlers map[Kind]func(*session.State, Event)
	actions  map[Action]func(*session.State)
}

func NewRouter(calib *calibration.Controller, step float64, log logger.Logger) *Router {
	if step <= 0 {
		step = DefaultDistanceStep
	}
	r := &Router{calib: calib, step: step, log: log}
	r.handlers = map[Kind]func(*session.State, Event){
		PointerRelease: r.pointerRelease,
		KeyPress:       r.keyPress,
	}
	r.actions = map[Action]func(*session.State){
		ResetCalibration: func(st *session.State) { r.calib.Reset(st) },
		FindPlane:        func(st *session.State) { st.Flags.FindPlaneRequested = true },
		ToggleFilter:     r.toggleFilter,
		Quit:             func(st *session.State) { st.Flags.QuitRequested = true },
		IncreaseDistance: func(st *session.State) { r.adjustDistance(st, r.step) },
		DecreaseDistance: func(st *session.State) { r.adjustDistance(st, -r.step) },
	}
	return r
}

// Dispatch routes ev. Unknown kinds and keys are ignored.
func (r *Router) Dispatch(st *session.State, ev Event) {
	handle, ok := r.handlers[ev.Kind]
	if !ok {
		r.log.Debug(component, "ignoring event", map[string]interface{}{"kind": ev.Kind.String()})
		return
	}
	handle(st, ev)
}

func (r *Router) pointerRelease(st *session.State, ev Event) {
	out, err := r.calib.AddPoint(st, ev.X, ev.Y)
	if err != nil {
		// Already logged by the controller; the loop carries on.
		return
	}
	r.log.Debug(component, "calibration click", map[string]interface{}{
		"pending":      out.Pending,
		"recalibrated": out.Recalibrated,
	})
}

func (r *Router) keyPress(st *session.State, ev Event) {
	action, ok := ActionForKey(ev.Key)
	if !ok {
		r.log.Debug(component, "ignoring key", map[string]interface{}{"key": ev.Key})
		return
	}
	r.actions[action](st)
}

func (r *Router) toggleFilter(st *session.State) {
	st.Flags.FilterEnabled = !st.Flags.FilterEnabled
	r.log.Info(component, "background filter toggled", map[string]interface{}{
		"enabled": st.Flags.FilterEnabled,
	})
}

func (r *Router) adjustDistance(st *session.State, delta float64) {
	st.Flags.DistanceThreshold += delta
	r.log.Info(component, "distance threshold changed", map[string]interface{}{
		"distance": st.Flags.DistanceThreshold,
	})
}
