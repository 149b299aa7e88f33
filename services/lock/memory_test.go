package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemoryLocker_ExclusiveAcquire(t *testing.T) {
	l := NewMemoryLocker()
	ctx := context.Background()

	ok, err := l.TryAcquire(ctx, "task:1")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = l.TryAcquire(ctx, "task:1")
	require.NoError(t, err)
	require.False(t, ok)

	// Different name is independent.
	ok, err = l.TryAcquire(ctx, "task:2")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, l.Release(ctx, "task:1"))

	ok, err = l.TryAcquire(ctx, "task:1")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestMemoryLocker_ConcurrentSingleWinner(t *testing.T) {
	l := NewMemoryLocker()
	ctx := context.Background()

	var winners atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})

	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			ok, err := l.TryAcquire(ctx, "task:1")
			require.NoError(t, err)
			if ok {
				winners.Add(1)
			}
		}()
	}

	close(start)
	wg.Wait()

	require.EqualValues(t, 1, winners.Load())
}

func TestMemoryLocker_ReleaseUnheldIsNoop(t *testing.T) {
	l := NewMemoryLocker()
	require.NoError(t, l.Release(context.Background(), "task:missing"))
}
