package panel

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Registry tracks the panels mounted by rendered pages. A panel lives from
// the page render that mounts it until the page unmounts it or it sits idle
// longer than the TTL. Nothing is persisted.
type Registry struct {
	Resolver  *Resolver
	Layout    Layout
	TTL       time.Duration
	// OnUnmount runs after a panel is removed, for releasing measurer state.
	OnUnmount func(Handle)
	Logger    *slog.Logger

	mu     sync.RWMutex
	panels map[Handle]*entry
	now    func() time.Time
}

type entry struct {
	panel   *Panel
	content string
	seen    time.Time
}

// Mounted describes a live panel for listings.
type Mounted struct {
	Snapshot
	Content  string    `json:"content"`
	LastSeen time.Time `json:"lastSeen"`
}

func NewRegistry(r *Resolver, l Layout, ttl time.Duration) *Registry {
	return &Registry{
		Resolver: r,
		Layout:   l,
		TTL:      ttl,
		panels:   make(map[Handle]*entry),
		now:      time.Now,
	}
}

// Mount creates a collapsed panel whose content root renders content.
func (r *Registry) Mount(ctx context.Context, content string) *Panel {
	id := Handle(uuid.NewString())

	// The entry goes in before the first evaluation so measurers can map
	// the handle back to its content.
	r.mu.Lock()
	e := &entry{content: content, seen: r.now()}
	r.panels[id] = e
	r.mu.Unlock()

	p := New(ctx, id, r.Resolver, r.Layout)

	r.mu.Lock()
	e.panel = p
	r.mu.Unlock()

	r.logger().Debug("panel mounted", "panel", id, "content", content)
	return p
}

// Get returns a mounted panel and marks it as seen.
func (r *Registry) Get(id Handle) (*Panel, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.panels[id]
	if !ok || e.panel == nil {
		return nil, false
	}
	e.seen = r.now()
	return e.panel, true
}

// Content returns the content key a handle was mounted with.
func (r *Registry) Content(id Handle) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.panels[id]
	if !ok {
		return "", false
	}
	return e.content, true
}

// Unmount removes a panel. It reports false for unknown handles.
func (r *Registry) Unmount(id Handle) bool {
	r.mu.Lock()
	_, ok := r.panels[id]
	delete(r.panels, id)
	r.mu.Unlock()

	if ok {
		r.unmounted(id)
	}
	return ok
}

// Sweep unmounts every panel idle for longer than the TTL.
func (r *Registry) Sweep() int {
	if r.TTL <= 0 {
		return 0
	}
	cutoff := r.now().Add(-r.TTL)

	var stale []Handle
	r.mu.Lock()
	for id, e := range r.panels {
		if e.seen.Before(cutoff) {
			stale = append(stale, id)
			delete(r.panels, id)
		}
	}
	r.mu.Unlock()

	for _, id := range stale {
		r.unmounted(id)
	}
	if len(stale) > 0 {
		r.logger().Info("swept idle panels", "count", len(stale))
	}
	return len(stale)
}

// Run sweeps on every tick until ctx is done.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.panels)
}

// List returns the mounted panels, most recently seen first.
func (r *Registry) List() []Mounted {
	r.mu.RLock()
	out := make([]Mounted, 0, len(r.panels))
	panels := make([]*Panel, 0, len(r.panels))
	for _, e := range r.panels {
		if e.panel == nil {
			continue
		}
		out = append(out, Mounted{Content: e.content, LastSeen: e.seen})
		panels = append(panels, e.panel)
	}
	r.mu.RUnlock()

	for i, p := range panels {
		out[i].Snapshot = p.Snapshot()
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastSeen.After(out[j].LastSeen)
	})
	return out
}

func (r *Registry) unmounted(id Handle) {
	if r.OnUnmount != nil {
		r.OnUnmount(id)
	}
	r.logger().Debug("panel unmounted", "panel", id)
}

func (r *Registry) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.Default()
	}
	return r.Logger
}
