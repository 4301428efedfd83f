package web

import (
	"encoding/json"
	"fmt"
	"image"

	"tablecast/internal/input"
)

const (
	msgPointerRelease = "pointer-release"
	msgKey            = "key"
)

// clientMessage is what the viewer sends. Pointer coordinates are
// normalised to [0, 1] over the displayed frame.
type clientMessage struct {
	Type string  `json:"type"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Key  string  `json:"key"`
}

// ParseMessage decodes a viewer message into a loop event in output pixel
// coordinates.
func ParseMessage(data []byte, output image.Point) (input.Event, error) {
	var msg clientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return input.Event{}, fmt.Errorf("decode client message: %w", err)
	}
	switch msg.Type {
	case msgPointerRelease:
		if msg.X < 0 || msg.X > 1 || msg.Y < 0 || msg.Y > 1 {
			return input.Event{}, fmt.Errorf("pointer outside frame: (%g, %g)", msg.X, msg.Y)
		}
		return input.Pointer(msg.X*float64(output.X), msg.Y*float64(output.Y)), nil
	case msgKey:
		if msg.Key == "" {
			return input.Event{}, fmt.Errorf("key message without key")
		}
		return input.Key(msg.Key), nil
	default:
		return input.Event{}, fmt.Errorf("unknown message type %q", msg.Type)
	}
}
