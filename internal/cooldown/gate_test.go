package cooldown

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical/autoslides/internal/config"
)

func TestMemoryGate_SpacesCallers(t *testing.T) {
	const interval = 40 * time.Millisecond
	gate := NewMemoryGate(interval)
	ctx := context.Background()

	start := time.Now()
	var (
		mu    sync.Mutex
		times []time.Duration
		wg    sync.WaitGroup
	)
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, gate.Wait(ctx))
			mu.Lock()
			times = append(times, time.Since(start))
			mu.Unlock()
		}()
	}
	wg.Wait()

	sort.Slice(times, func(i, j int) bool { return times[i] < times[j] })
	assert.Less(t, times[0], interval)
	assert.GreaterOrEqual(t, times[1], interval)
	assert.GreaterOrEqual(t, times[2], 2*interval)
}

func TestMemoryGate_ZeroInterval(t *testing.T) {
	gate := NewMemoryGate(0)
	start := time.Now()
	for i := 0; i < 5; i++ {
		require.NoError(t, gate.Wait(context.Background()))
	}
	assert.Less(t, time.Since(start), 20*time.Millisecond)
}

func TestMemoryGate_Cancel(t *testing.T) {
	gate := NewMemoryGate(time.Second)
	require.NoError(t, gate.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, gate.Wait(ctx), context.DeadlineExceeded)
}

func TestNew(t *testing.T) {
	g, err := New(config.CooldownConfig{Driver: "memory"}, time.Second, nil)
	require.NoError(t, err)
	assert.IsType(t, &MemoryGate{}, g)
	assert.NoError(t, g.Close())

	_, err = New(config.CooldownConfig{Driver: "etcd"}, time.Second, nil)
	assert.Error(t, err)
}
