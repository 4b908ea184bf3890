package panel

import (
	"fmt"
	"html/template"
	"strconv"
)

// Styles is a descriptor rendered as inline CSS for the three animated
// elements of a panel.
type Styles struct {
	Container template.CSS
	Body      template.CSS
	Icon      template.CSS
}

// Styles renders d with the transition contract of t. Browsers retarget
// running CSS transitions from the current computed value, which gives
// mid-transition reversal for free.
func (t Timing) Styles(d Descriptor) Styles {
	return Styles{
		Container: template.CSS(fmt.Sprintf(
			"max-height: %spx; overflow: hidden; transition: max-height %s %s;",
			num(d.MaxHeightPx), seconds(t.Height), t.Easing)),
		Body: template.CSS(fmt.Sprintf(
			"opacity: %s; transition: opacity %s;",
			num(d.Opacity), seconds(t.Fade))),
		Icon: template.CSS(fmt.Sprintf(
			"transform: rotate(%sdeg); transition: transform %s;",
			num(d.RotationDeg), seconds(t.Rotate))),
	}
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
