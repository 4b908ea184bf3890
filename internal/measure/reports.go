// Package measure provides the host-specific ways of reading a panel's
// natural content height.
package measure

import (
	"context"
	"math"
	"sync"

	"github.com/Zachkp/ixd-profile/internal/panel"
)

// Reports holds the heights browsers measured for their own content roots.
// The page reports scrollHeight after layout and again whenever the root
// resizes, so the latest report is the live DOM value.
type Reports struct {
	mu      sync.RWMutex
	heights map[panel.Handle]float64
}

func NewReports() *Reports {
	return &Reports{heights: make(map[panel.Handle]float64)}
}

// Report records the latest height for h. Negative and non-finite values
// are ignored.
func (r *Reports) Report(h panel.Handle, px float64) bool {
	if px < 0 || math.IsNaN(px) || math.IsInf(px, 0) {
		return false
	}
	r.mu.Lock()
	r.heights[h] = px
	r.mu.Unlock()
	return true
}

// ReportIfAbsent records px only when nothing was reported for h yet, so a
// server-side estimate never replaces the page's own measurement.
func (r *Reports) ReportIfAbsent(h panel.Handle, px float64) bool {
	if px < 0 || math.IsNaN(px) || math.IsInf(px, 0) {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.heights[h]; ok {
		return false
	}
	r.heights[h] = px
	return true
}

func (r *Reports) Forget(h panel.Handle) {
	r.mu.Lock()
	delete(r.heights, h)
	r.mu.Unlock()
}

func (r *Reports) Measure(_ context.Context, h panel.Handle) (float64, error) {
	r.mu.RLock()
	px, ok := r.heights[h]
	r.mu.RUnlock()
	if !ok {
		return 0, panel.ErrMeasurementUnavailable
	}
	return px, nil
}
