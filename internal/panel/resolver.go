package panel

import (
	"context"
	"errors"
	"log/slog"
)

// ErrMeasurementUnavailable is returned by a Measurer whose content root is
// not attached to a layout yet.
var ErrMeasurementUnavailable = errors.New("panel: content root not attached")

// Handle identifies the always-rendered content root of one panel.
type Handle string

// Measurer reads the natural height of a content root in pixels.
type Measurer interface {
	Measure(ctx context.Context, h Handle) (float64, error)
}

type MeasurerFunc func(ctx context.Context, h Handle) (float64, error)

func (f MeasurerFunc) Measure(ctx context.Context, h Handle) (float64, error) {
	return f(ctx, h)
}

// Measurement is the outcome of one resolve pass.
type Measurement struct {
	NaturalHeightPx float64 `json:"naturalHeightPx"`
	// Available is false when the fallback height was used. The next
	// evaluation measures again.
	Available bool `json:"available"`
}

// Resolver turns a content root into the height its panel animates toward.
type Resolver struct {
	Measurer Measurer
	// FallbackPx is used while the content root cannot be measured.
	FallbackPx float64
	Logger     *slog.Logger
}

// Resolve measures h afresh. It never fails: an unattached root or a broken
// measurer yields the fallback height.
func (r *Resolver) Resolve(ctx context.Context, h Handle) Measurement {
	fallback := Measurement{NaturalHeightPx: nonNegative(r.FallbackPx)}
	if r.Measurer == nil {
		return fallback
	}

	px, err := r.Measurer.Measure(ctx, h)
	if err != nil {
		if !errors.Is(err, ErrMeasurementUnavailable) {
			r.logger().Warn("panel: measure failed", "panel", h, "error", err)
		}
		return fallback
	}
	return Measurement{NaturalHeightPx: nonNegative(px), Available: true}
}

func (r *Resolver) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.Default()
	}
	return r.Logger
}
