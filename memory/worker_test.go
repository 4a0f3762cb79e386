package memory

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkerRunsTasks(t *testing.T) {
	w := NewWorker(2, 8)

	var ran atomic.Int32
	for i := 0; i < 5; i++ {
		ok := w.Submit("count", func(ctx context.Context) error {
			ran.Add(1)
			return nil
		})
		require.True(t, ok)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, w.Shutdown(ctx))
	assert.Equal(t, int32(5), ran.Load())
}

func TestWorkerDropsWhenFull(t *testing.T) {
	w := NewWorker(1, 1)

	release := make(chan struct{})
	started := make(chan struct{})

	// First task occupies the single worker until released.
	require.True(t, w.Submit("block", func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	}))
	<-started

	// Second fills the queue, third must be dropped.
	require.True(t, w.Submit("queued", func(ctx context.Context) error { return nil }))
	assert.False(t, w.Submit("dropped", func(ctx context.Context) error { return nil }))

	close(release)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, w.Shutdown(ctx))
}

func TestWorkerShutdownTimeout(t *testing.T) {
	w := NewWorker(1, 1)

	release := make(chan struct{})
	started := make(chan struct{})
	require.True(t, w.Submit("block", func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	}))
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.Error(t, w.Shutdown(ctx))

	close(release)
}

func TestWorkerSurvivesFailures(t *testing.T) {
	w := NewWorker(1, 8)

	var ran atomic.Int32
	require.True(t, w.Submit("fail", func(ctx context.Context) error {
		return assert.AnError
	}))
	require.True(t, w.Submit("after", func(ctx context.Context) error {
		ran.Add(1)
		return nil
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, w.Shutdown(ctx))
	assert.Equal(t, int32(1), ran.Load())
}
