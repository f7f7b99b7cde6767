package throttle

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecognized(t *testing.T) {
	assert.True(t, Recognized("OSM_NOMINATIM"))
	assert.True(t, Recognized("osm_nominatim"))
	assert.True(t, Recognized("MAPQUEST_NOMINATIM"))
	assert.False(t, Recognized("MY_CUSTOM_SERVICE"))
	assert.False(t, Recognized(""))
}

func TestAcquire_UnknownServiceNeverDelays(t *testing.T) {
	r := NewRegistry()

	start := time.Now()
	for range 5 {
		release, err := r.Acquire(context.Background(), "CUSTOM", time.Second)
		require.NoError(t, err)
		release()
	}
	assert.Less(t, time.Since(start), 100*time.Millisecond)

	_, ok := r.Last("CUSTOM")
	assert.False(t, ok, "unthrottled services should not be tracked")
}

func TestAcquire_EnforcesMinInterval(t *testing.T) {
	r := NewRegistry()
	const interval = 50 * time.Millisecond

	var dispatches []time.Time
	for range 3 {
		release, err := r.Acquire(context.Background(), ServiceOSMNominatim, interval)
		require.NoError(t, err)
		dispatches = append(dispatches, time.Now())
		release()
	}

	for i := 1; i < len(dispatches); i++ {
		gap := dispatches[i].Sub(dispatches[i-1])
		assert.GreaterOrEqual(t, gap, interval, "dispatch %d too close to %d", i, i-1)
	}
}

func TestAcquire_ConcurrentCallersAreSerialized(t *testing.T) {
	r := NewRegistry()
	const interval = 30 * time.Millisecond
	const callers = 4

	var mu sync.Mutex
	var dispatches []time.Time

	var wg sync.WaitGroup
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := r.Acquire(context.Background(), ServiceOSMNominatim, interval)
			require.NoError(t, err)
			now := time.Now()
			release()
			mu.Lock()
			dispatches = append(dispatches, now)
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.Len(t, dispatches, callers)
	sort.Slice(dispatches, func(i, j int) bool { return dispatches[i].Before(dispatches[j]) })
	for i := 1; i < len(dispatches); i++ {
		gap := dispatches[i].Sub(dispatches[i-1])
		assert.GreaterOrEqual(t, gap, interval, "concurrent dispatches %d and %d overlapped", i-1, i)
	}
}

func TestAcquire_IndependentSlots(t *testing.T) {
	r := NewRegistry()

	release, err := r.Acquire(context.Background(), ServiceOSMNominatim, time.Minute)
	require.NoError(t, err)
	release()

	// A different service is not delayed by the OSM slot.
	start := time.Now()
	release, err = r.Acquire(context.Background(), ServiceMapQuestNominatim, time.Minute)
	require.NoError(t, err)
	release()
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestAcquire_ContextCancelled(t *testing.T) {
	r := NewRegistry()

	release, err := r.Acquire(context.Background(), ServiceOSMNominatim, time.Hour)
	require.NoError(t, err)
	release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = r.Acquire(ctx, ServiceOSMNominatim, time.Hour)
	require.Error(t, err)

	// The slot must be usable again after a cancelled wait.
	done := make(chan struct{})
	go func() {
		_, ok := r.Last(ServiceOSMNominatim)
		assert.True(t, ok)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("registry lock not released after cancelled Acquire")
	}
}

func TestLast_RecordsPostDispatchTime(t *testing.T) {
	r := NewRegistry()

	before := time.Now()
	release, err := r.Acquire(context.Background(), ServiceOSMNominatim, time.Second)
	require.NoError(t, err)
	time.Sleep(10 * time.Millisecond) // simulate the network round trip
	release()

	last, ok := r.Last(ServiceOSMNominatim)
	require.True(t, ok)
	assert.GreaterOrEqual(t, last.Sub(before), 10*time.Millisecond)
}
