// Package input maps pointer and key events coming back from the sink onto
// calibration and mode-flag actions.
package input

import "strings"

type Kind int

const (
	PointerRelease Kind = iota + 1
	KeyPress
)

func (k Kind) String() string {
	switch k {
	case PointerRelease:
		return "pointer-release"
	case KeyPress:
		return "key-press"
	default:
		return "unknown"
	}
}

// Event is a single interactive notification. X and Y are output pixel
// coordinates for PointerRelease; Key is the key name for KeyPress.
type Event struct {
	Kind Kind
	X, Y float64
	Key  string
}

func Pointer(x, y float64) Event {
	return Event{Kind: PointerRelease, X: x, Y: y}
}

func Key(name string) Event {
	return Event{Kind: KeyPress, Key: name}
}

// Action is a named interactive command.
type Action string

const (
	ResetCalibration Action = "reset-calibration"
	FindPlane        Action = "find-plane"
	ToggleFilter     Action = "toggle-filter"
	Quit             Action = "quit"
	IncreaseDistance Action = "increase-distance"
	DecreaseDistance Action = "decrease-distance"
)

var keyBindings = map[string]Action{
	"space": ResetCalibration,
	" ":     ResetCalibration,
	"p":     FindPlane,
	"f":     ToggleFilter,
	"q":     Quit,
	"plus":  IncreaseDistance,
	"+":     IncreaseDistance,
	"minus": DecreaseDistance,
	"-":     DecreaseDistance,
}

// ActionForKey resolves a key name as reported by a display or browser.
func ActionForKey(key string) (Action, bool) {
	if a, ok := keyBindings[key]; ok {
		return a, true
	}
	a, ok := keyBindings[strings.ToLower(key)]
	return a, ok
}
