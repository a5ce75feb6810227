package lock

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLocalLockerSerializesSameKey(t *testing.T) {
	ctx := context.Background()
	locker := NewLocalLocker()

	// 同一 key 的并发临界区互斥：计数器无竞争丢失
	const n = 100
	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := locker.Acquire(ctx, "acct-1")
			require.NoError(t, err)
			counter++
			require.NoError(t, release(ctx))
		}()
	}
	wg.Wait()

	require.Equal(t, n, counter)
}

func TestLocalLockerIndependentKeys(t *testing.T) {
	ctx := context.Background()
	locker := NewLocalLocker()

	// 不同 key 互不阻塞：持有 a 时仍能立刻拿到 b
	releaseA, err := locker.Acquire(ctx, "acct-a")
	require.NoError(t, err)

	releaseB, err := locker.Acquire(ctx, "acct-b")
	require.NoError(t, err)

	require.NoError(t, releaseB(ctx))
	require.NoError(t, releaseA(ctx))

	// 释放后可重新获取
	release, err := locker.Acquire(ctx, "acct-a")
	require.NoError(t, err)
	require.NoError(t, release(ctx))
}
