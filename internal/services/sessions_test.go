package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dataflow/internal/config"
	apperrors "dataflow/internal/errors"
	"dataflow/internal/shared/testutil"
	"dataflow/internal/workbench"
)

type clock struct {
	now time.Time
}

func (c *clock) Now() time.Time { return c.now }

func (c *clock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newRegistry(t *testing.T, cfg config.SessionConfig) (*SessionRegistry, *clock) {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)
	factory := func(id string) *workbench.Workbench {
		return workbench.New(id, nil, workbench.Options{Logger: logger})
	}
	r := NewSessionRegistry(cfg, factory, logger, nil)
	c := &clock{now: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
	r.now = c.Now
	return r, c
}

func TestSessionRegistryLifecycle(t *testing.T) {
	r, _ := newRegistry(t, config.SessionConfig{TTL: time.Hour, MaxSessions: 10})
	ctx := context.Background()

	wb := r.Create(ctx)
	require.NotNil(t, wb)
	assert.Len(t, wb.ID(), 36)
	assert.Equal(t, 1, r.Len())

	got, err := r.Get(ctx, wb.ID())
	require.NoError(t, err)
	assert.Same(t, wb, got)

	assert.True(t, r.Delete(ctx, wb.ID()))
	assert.False(t, r.Delete(ctx, wb.ID()))

	_, err = r.Get(ctx, wb.ID())
	require.Error(t, err)
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
}

func TestSessionRegistryCreatesIsolatedSessions(t *testing.T) {
	r, _ := newRegistry(t, config.SessionConfig{TTL: time.Hour, MaxSessions: 10})

	a := r.Create(context.Background())
	b := r.Create(context.Background())

	assert.NotEqual(t, a.ID(), b.ID())
	a.ToggleManualEntry(context.Background())
	assert.True(t, a.Snapshot().Layout.ManualVisible)
	assert.False(t, b.Snapshot().Layout.ManualVisible)
}

func TestSessionRegistryEvictsLeastRecentlyUsed(t *testing.T) {
	r, c := newRegistry(t, config.SessionConfig{TTL: time.Hour, MaxSessions: 2})
	ctx := context.Background()

	first := r.Create(ctx)
	c.Advance(time.Minute)
	second := r.Create(ctx)
	c.Advance(time.Minute)

	// Touching first makes second the eviction candidate
	_, err := r.Get(ctx, first.ID())
	require.NoError(t, err)
	c.Advance(time.Minute)

	third := r.Create(ctx)

	assert.Equal(t, 2, r.Len())
	_, err = r.Get(ctx, second.ID())
	assert.Error(t, err)
	_, err = r.Get(ctx, first.ID())
	assert.NoError(t, err)
	_, err = r.Get(ctx, third.ID())
	assert.NoError(t, err)
}

func TestSessionRegistrySweep(t *testing.T) {
	r, c := newRegistry(t, config.SessionConfig{TTL: 30 * time.Minute, MaxSessions: 10})
	ctx := context.Background()

	stale := r.Create(ctx)
	c.Advance(20 * time.Minute)
	fresh := r.Create(ctx)
	c.Advance(15 * time.Minute)

	assert.Equal(t, 1, r.Sweep(ctx))
	assert.Equal(t, 1, r.Len())

	_, err := r.Get(ctx, stale.ID())
	assert.Error(t, err)
	_, err = r.Get(ctx, fresh.ID())
	assert.NoError(t, err)

	assert.Equal(t, 0, r.Sweep(ctx))
}

func TestSessionRegistryList(t *testing.T) {
	r, c := newRegistry(t, config.SessionConfig{TTL: time.Hour, MaxSessions: 10})
	ctx := context.Background()

	older := r.Create(ctx)
	c.Advance(time.Second)
	newer := r.Create(ctx)

	list := r.List()
	require.Len(t, list, 2)
	assert.Equal(t, newer.ID(), list[0].ID)
	assert.Equal(t, older.ID(), list[1].ID)
}

func TestRunSweeperStopsOnCancel(t *testing.T) {
	r, _ := newRegistry(t, config.SessionConfig{TTL: time.Hour, SweepInterval: time.Millisecond, MaxSessions: 10})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.RunSweeper(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}
