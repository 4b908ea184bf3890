package panel

import (
	"math"
	"time"
)

// Descriptor is the set of endpoint values the rendering layer animates toward.
type Descriptor struct {
	MaxHeightPx float64 `json:"maxHeightPx"`
	Opacity     float64 `json:"opacity"`
	RotationDeg float64 `json:"rotationDeg"`
}

// Layout holds the fixed pixel reservations of a panel.
type Layout struct {
	// CollapsedHeightPx keeps the header row visible while collapsed.
	CollapsedHeightPx float64
	// HeaderHeightPx is added to the content height when header and body
	// are clipped by the same container.
	HeaderHeightPx float64
	// BorderPx is the container's vertical border total. With border-box
	// sizing it is taken out of max-height, so it is added back in both
	// states.
	BorderPx float64
}

// Describe maps an expansion flag and natural content height to a
// descriptor using a layout with no reserved header.
func Describe(expanded bool, naturalHeightPx float64) Descriptor {
	return Layout{}.Describe(expanded, naturalHeightPx)
}

func (l Layout) Describe(expanded bool, naturalHeightPx float64) Descriptor {
	if !expanded {
		return Descriptor{MaxHeightPx: nonNegative(l.CollapsedHeightPx) + nonNegative(l.BorderPx)}
	}
	return Descriptor{
		MaxHeightPx: nonNegative(naturalHeightPx) + nonNegative(l.HeaderHeightPx) + nonNegative(l.BorderPx),
		Opacity:     1,
		RotationDeg: 180,
	}
}

func nonNegative(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	return v
}

// Timing is the fixed duration and easing contract for panel transitions.
type Timing struct {
	Height time.Duration
	Fade   time.Duration
	Rotate time.Duration
	Easing string
}

var DefaultTiming = Timing{
	Height: 500 * time.Millisecond,
	Fade:   300 * time.Millisecond,
	Rotate: 300 * time.Millisecond,
	Easing: "cubic-bezier(0.4,0,0.2,1)",
}

func seconds(d time.Duration) string {
	return num(d.Seconds()) + "s"
}
