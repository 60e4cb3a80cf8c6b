package circuit

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// step is one Record call and the outcome expected from it.
type step struct {
	fail     bool
	primary  bool // usePrimary for successes, !usedFallback for failures
	opened   bool
	closed   bool
	openNext bool
}

func run(t *testing.T, b *Breaker, steps []step) {
	t.Helper()
	for i, s := range steps {
		var change StateChange
		var primary bool
		if s.fail {
			var fallback bool
			fallback, change = b.RecordFailure()
			primary = !fallback
		} else {
			primary, change = b.RecordSuccess()
		}
		assert.Equal(t, s.primary, primary, "step %d primary", i)
		assert.Equal(t, s.opened, change.Opened, "step %d opened", i)
		assert.Equal(t, s.closed, change.Closed, "step %d closed", i)
		assert.Equal(t, s.openNext, b.IsOpen(), "step %d state", i)
	}
}

func TestBreaker(t *testing.T) {
	t.Run("starts closed with defaults", func(t *testing.T) {
		b := New("scoring")
		assert.Equal(t, "scoring", b.Name())
		assert.Equal(t, StateClosed, b.State())
		assert.Equal(t, "closed", b.State().String())

		steps := make([]step, 0, 5)
		for range 4 {
			steps = append(steps, step{fail: true, primary: true})
		}
		steps = append(steps, step{fail: true, opened: true, openNext: true})
		run(t, b, steps)
		assert.Equal(t, "open", b.State().String())
	})

	t.Run("a success between failures restarts the count", func(t *testing.T) {
		b := New("ratelimit", WithFailureThreshold(2))
		run(t, b, []step{
			{fail: true, primary: true},
			{primary: true},
			{fail: true, primary: true},
			{fail: true, opened: true, openNext: true},
		})
	})

	t.Run("closes only after consecutive successes while open", func(t *testing.T) {
		b := New("cache", WithFailureThreshold(1), WithSuccessThreshold(2))
		run(t, b, []step{
			{fail: true, opened: true, openNext: true},
			{primary: false, openNext: true},
			{fail: true, openNext: true},
			{primary: false, openNext: true},
			{primary: true, closed: true},
			{fail: true, opened: true, openNext: true},
		})
	})

	t.Run("ignores non-positive thresholds", func(t *testing.T) {
		b := New("x", WithFailureThreshold(0), WithSuccessThreshold(-1))
		assert.Equal(t, 5, b.failureThreshold)
		assert.Equal(t, 3, b.successThreshold)
	})

	t.Run("reset closes an open breaker", func(t *testing.T) {
		b := New("x", WithFailureThreshold(1))
		b.RecordFailure()
		require.True(t, b.IsOpen())
		b.Reset()
		assert.False(t, b.IsOpen())
		run(t, b, []step{{fail: true, opened: true, openNext: true}})
	})
}

func TestBreakerConcurrentFailuresOpenOnce(t *testing.T) {
	b := New("x", WithFailureThreshold(10))
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		opened int
	)
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, change := b.RecordFailure(); change.Opened {
				mu.Lock()
				opened++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, opened)
	assert.True(t, b.IsOpen())
}
