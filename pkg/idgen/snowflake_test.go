package idgen

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNextIDUnique(t *testing.T) {
	require.NoError(t, Init(1))

	const n = 10000
	seen := make(map[int64]struct{}, n)
	var mu sync.Mutex
	var wg sync.WaitGroup

	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < n/4; i++ {
				id := NextID()
				mu.Lock()
				_, dup := seen[id]
				require.False(t, dup, "重复ID %d", id)
				seen[id] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Len(t, seen, n)
}

func TestNextIDMonotonic(t *testing.T) {
	require.NoError(t, Init(1))

	prev := NextID()
	for i := 0; i < 1000; i++ {
		id := NextID()
		require.Greater(t, id, prev)
		prev = id
	}
}

func TestInitRejectsInvalidWorkerID(t *testing.T) {
	require.Error(t, Init(-1))
	require.Error(t, Init(maxWorkerID+1))
}
