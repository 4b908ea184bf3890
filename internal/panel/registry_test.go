package panel

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_MountGetUnmount(t *testing.T) {
	reg := NewRegistry(&Resolver{}, Layout{CollapsedHeightPx: 48}, time.Minute)

	var released []Handle
	reg.OnUnmount = func(h Handle) { released = append(released, h) }

	p := reg.Mount(context.Background(), "profile-0")
	require.NotEmpty(t, p.ID())
	assert.Equal(t, 48.0, p.Snapshot().Descriptor.MaxHeightPx)

	got, ok := reg.Get(p.ID())
	require.True(t, ok)
	assert.Same(t, p, got)

	content, ok := reg.Content(p.ID())
	require.True(t, ok)
	assert.Equal(t, "profile-0", content)

	assert.True(t, reg.Unmount(p.ID()))
	assert.False(t, reg.Unmount(p.ID()))
	assert.Equal(t, []Handle{p.ID()}, released)

	_, ok = reg.Get(p.ID())
	assert.False(t, ok)
}

func TestRegistry_ContentVisibleDuringFirstMeasure(t *testing.T) {
	var reg *Registry
	var seen string
	r := &Resolver{Measurer: MeasurerFunc(func(_ context.Context, h Handle) (float64, error) {
		seen, _ = reg.Content(h)
		return 10, nil
	})}
	reg = NewRegistry(r, Layout{}, time.Minute)

	reg.Mount(context.Background(), "profile-3")
	assert.Equal(t, "profile-3", seen)
}

func TestRegistry_MountsAreIndependent(t *testing.T) {
	reg := NewRegistry(&Resolver{}, Layout{}, time.Minute)

	a := reg.Mount(context.Background(), "a")
	b := reg.Mount(context.Background(), "b")
	require.NotEqual(t, a.ID(), b.ID())

	a.Toggle(context.Background())
	assert.True(t, a.Snapshot().Expanded)
	assert.False(t, b.Snapshot().Expanded)
	assert.Equal(t, 2, reg.Len())
}

func TestRegistry_Sweep(t *testing.T) {
	reg := NewRegistry(&Resolver{}, Layout{}, 10*time.Minute)
	now := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	reg.now = func() time.Time { return now }

	old := reg.Mount(context.Background(), "old")
	now = now.Add(8 * time.Minute)
	fresh := reg.Mount(context.Background(), "fresh")
	now = now.Add(5 * time.Minute)

	assert.Equal(t, 1, reg.Sweep())
	_, ok := reg.Get(old.ID())
	assert.False(t, ok)
	_, ok = reg.Get(fresh.ID())
	assert.True(t, ok)
}

func TestRegistry_SweepDisabledWithoutTTL(t *testing.T) {
	reg := NewRegistry(&Resolver{}, Layout{}, 0)
	reg.Mount(context.Background(), "a")
	assert.Equal(t, 0, reg.Sweep())
	assert.Equal(t, 1, reg.Len())
}

func TestRegistry_List(t *testing.T) {
	reg := NewRegistry(&Resolver{}, Layout{}, time.Minute)
	now := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	reg.now = func() time.Time { return now }

	first := reg.Mount(context.Background(), "first")
	now = now.Add(time.Second)
	second := reg.Mount(context.Background(), "second")
	second.Toggle(context.Background())

	list := reg.List()
	require.Len(t, list, 2)
	assert.Equal(t, second.ID(), list[0].ID)
	assert.True(t, list[0].Expanded)
	assert.Equal(t, "second", list[0].Content)
	assert.Equal(t, first.ID(), list[1].ID)
}

func TestRegistry_RunStopsWithContext(t *testing.T) {
	reg := NewRegistry(&Resolver{}, Layout{}, time.Nanosecond)
	reg.Mount(context.Background(), "a")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		reg.Run(ctx, time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool { return reg.Len() == 0 }, time.Second, time.Millisecond)
	cancel()
	<-done
}
