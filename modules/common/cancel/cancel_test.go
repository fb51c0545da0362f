package cancel

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

type memFlags struct {
	mu  sync.Mutex
	set map[string]bool
}

func (f *memFlags) SetCancelled(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.set[id] = true
	return nil
}

func (f *memFlags) IsCancelled(_ context.Context, id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.set[id]
}

func (f *memFlags) Clear(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.set, id)
	return nil
}

func TestRegistry_CancelLocal(t *testing.T) {
	r := NewRegistry(nil)
	ctx, done := r.Start(context.Background(), "job")
	defer done()

	assert.Equal(t, 1, r.Running())
	assert.True(t, r.Cancel(context.Background(), "job"))
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
}

func TestRegistry_CancelUnknown(t *testing.T) {
	r := NewRegistry(nil)
	assert.False(t, r.Cancel(context.Background(), "missing"))
	assert.False(t, r.IsCancelled(context.Background(), "missing"))
}

func TestRegistry_DoneRemovesJob(t *testing.T) {
	r := NewRegistry(nil)
	_, done := r.Start(context.Background(), "job")
	done()
	done()
	assert.Equal(t, 0, r.Running())
}

func TestRegistry_RestartCancelsPrevious(t *testing.T) {
	r := NewRegistry(nil)
	first, _ := r.Start(context.Background(), "job")
	_, done := r.Start(context.Background(), "job")
	defer done()

	assert.ErrorIs(t, first.Err(), context.Canceled)
}

func TestRegistry_SharedFlags(t *testing.T) {
	flags := &memFlags{set: map[string]bool{"job": true}}
	r := NewRegistry(flags)

	// stale flag cleared on start
	_, done := r.Start(context.Background(), "job")
	assert.False(t, r.IsCancelled(context.Background(), "job"))

	// another instance cancels
	other := NewRegistry(flags)
	assert.True(t, other.Cancel(context.Background(), "job"))
	assert.True(t, r.IsCancelled(context.Background(), "job"))

	done()
	assert.False(t, flags.IsCancelled(context.Background(), "job"))
}

func TestRegistry_StaleDoneKeepsNewerJob(t *testing.T) {
	r := NewRegistry(nil)
	_, oldDone := r.Start(context.Background(), "job")
	ctx, done := r.Start(context.Background(), "job")
	defer done()

	oldDone()
	assert.Equal(t, 1, r.Running())
	assert.NoError(t, ctx.Err())
}
