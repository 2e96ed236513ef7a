package carousel

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnknownInput is returned by Handle for an unrecognised input type.
var ErrUnknownInput = errors.New("unknown input type")

// Input is a raw input event forwarded from the page.
type Input struct {
	Type   string  `json:"type"`
	DeltaY float64 `json:"delta_y,omitempty"`
	Y      float64 `json:"y,omitempty"`
	Key    string  `json:"key,omitempty"`
	Index  int     `json:"index,omitempty"`
}

// Input types.
const (
	InputWheel      = "wheel"
	InputTouchStart = "touchstart"
	InputTouchEnd   = "touchend"
	InputKey        = "key"
	InputDot        = "dot"
	InputNext       = "next"
	InputPrevious   = "previous"
)

// Handle routes an input event through the transition guard. It reports
// whether the event changed the position or committed.
func (c *Carousel) Handle(ctx context.Context, in Input) (bool, error) {
	switch in.Type {
	case InputWheel:
		return c.Wheel(in.DeltaY)
	case InputTouchStart:
		c.TouchStart(in.Y)
		return false, nil
	case InputTouchEnd:
		return c.TouchEnd(in.Y)
	case InputKey:
		return c.Key(ctx, in.Key)
	case InputDot:
		return c.JumpTo(in.Index)
	case InputNext:
		return c.Next()
	case InputPrevious:
		return c.Previous()
	default:
		return false, fmt.Errorf("%w %q", ErrUnknownInput, in.Type)
	}
}
