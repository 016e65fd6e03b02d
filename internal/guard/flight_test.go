package guard

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFlight_TryAcquire(t *testing.T) {
	var f Flight

	assert.True(t, f.TryAcquire())
	assert.True(t, f.Busy())
	assert.False(t, f.TryAcquire(), "second activation should be dropped")

	f.Release()
	assert.False(t, f.Busy())
	assert.True(t, f.TryAcquire(), "flight should be reusable after release")

	rejected, total := f.Stats()
	assert.Equal(t, int64(1), rejected)
	assert.Equal(t, int64(3), total)
}

func TestFlight_ReleaseIdleIsNoop(t *testing.T) {
	var f Flight
	f.Release()
	assert.False(t, f.Busy())
	assert.True(t, f.TryAcquire())
}

func TestFlight_DoDropsOverlapping(t *testing.T) {
	var f Flight
	var runs int32

	entered := make(chan struct{})
	release := make(chan struct{})

	go f.Do(context.Background(), func(context.Context) {
		atomic.AddInt32(&runs, 1)
		close(entered)
		<-release
	})
	<-entered

	ran := f.Do(context.Background(), func(context.Context) {
		atomic.AddInt32(&runs, 1)
	})
	assert.False(t, ran)

	close(release)
	assert.Eventually(t, func() bool { return !f.Busy() }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&runs))
}

func TestFlight_ConcurrentAcquireOnlyOneWins(t *testing.T) {
	var f Flight
	var wins int32
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if f.TryAcquire() {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins)
	rejected, total := f.Stats()
	assert.Equal(t, int64(49), rejected)
	assert.Equal(t, int64(50), total)
}
