// Package panel implements the expand/collapse controller behind the
// Projects panel: a single expansion flag, a height resolver that measures
// the content root on every change, and a pure driver that maps both to the
// endpoint values a CSS transition animates between.
//
// The controller only ever holds endpoint values. Interpolation, and
// retargeting a transition that is still running, belong to the browser.
package panel

import (
	"context"
	"sync"
)

// Snapshot is the observable state of a panel after an evaluation pass.
// Revision grows with every evaluation and settle, so the rendering layer
// can drop responses that arrive out of order.
type Snapshot struct {
	ID          Handle      `json:"id"`
	Revision    uint64      `json:"revision"`
	Expanded    bool        `json:"expanded"`
	Phase       string      `json:"phase"`
	Measurement Measurement `json:"measurement"`
	Descriptor  Descriptor  `json:"descriptor"`
}

// Panel is one mounted instance of the controller.
type Panel struct {
	mu       sync.Mutex
	id       Handle
	state    State
	resolver *Resolver
	layout   Layout
	last     Snapshot
	subs     map[int]func(Snapshot)
	nextSub  int
}

// New mounts a collapsed panel and runs its first evaluation.
func New(ctx context.Context, id Handle, r *Resolver, l Layout) *Panel {
	if r == nil {
		r = &Resolver{}
	}
	p := &Panel{
		id:       id,
		resolver: r,
		layout:   l,
		subs:     make(map[int]func(Snapshot)),
	}
	p.mu.Lock()
	p.evaluateLocked(ctx)
	p.mu.Unlock()
	return p
}

func (p *Panel) ID() Handle { return p.id }

// Toggle flips the expansion flag and re-evaluates. Every call produces a
// new transition, including one that interrupts a running transition.
func (p *Panel) Toggle(ctx context.Context) Snapshot {
	p.mu.Lock()
	p.state.Toggle()
	snap := p.evaluateLocked(ctx)
	subs := p.subscribersLocked()
	p.mu.Unlock()

	notify(subs, snap)
	return snap
}

// Remeasure re-evaluates after the content may have changed size, for
// example when a deferred image finished loading. Subscribers are notified
// only when the measurement or descriptor moved.
func (p *Panel) Remeasure(ctx context.Context) Snapshot {
	p.mu.Lock()
	prev := p.last
	snap := p.evaluateLocked(ctx)
	var subs []func(Snapshot)
	if snap.Measurement != prev.Measurement || snap.Descriptor != prev.Descriptor {
		subs = p.subscribersLocked()
	}
	p.mu.Unlock()

	notify(subs, snap)
	return snap
}

// TransitionEnd records that the rendering layer finished animating toward
// expanded. Reports for a superseded target leave the phase alone.
func (p *Panel) TransitionEnd(expanded bool) (Snapshot, bool) {
	p.mu.Lock()
	settled := p.state.Settle(expanded)
	if settled {
		p.last.Revision++
		p.last.Phase = p.state.Phase().String()
	}
	snap := p.last
	var subs []func(Snapshot)
	if settled {
		subs = p.subscribersLocked()
	}
	p.mu.Unlock()

	notify(subs, snap)
	return snap, settled
}

// Snapshot returns the result of the most recent evaluation.
func (p *Panel) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

// Subscribe registers fn to receive every snapshot that changes what the
// rendering layer shows. The returned func removes the subscription.
func (p *Panel) Subscribe(fn func(Snapshot)) (cancel func()) {
	p.mu.Lock()
	id := p.nextSub
	p.nextSub++
	p.subs[id] = fn
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		delete(p.subs, id)
		p.mu.Unlock()
	}
}

func (p *Panel) evaluateLocked(ctx context.Context) Snapshot {
	m := p.resolver.Resolve(ctx, p.id)
	p.last = Snapshot{
		ID:          p.id,
		Revision:    p.last.Revision + 1,
		Expanded:    p.state.Expanded(),
		Phase:       p.state.Phase().String(),
		Measurement: m,
		Descriptor:  p.layout.Describe(p.state.Expanded(), m.NaturalHeightPx),
	}
	return p.last
}

func (p *Panel) subscribersLocked() []func(Snapshot) {
	out := make([]func(Snapshot), 0, len(p.subs))
	for _, fn := range p.subs {
		out = append(out, fn)
	}
	return out
}

func notify(subs []func(Snapshot), snap Snapshot) {
	for _, fn := range subs {
		fn(snap)
	}
}
