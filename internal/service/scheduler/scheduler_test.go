package scheduler

import (
	"sync"
	"sync/atomic"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/require"
)

// counter records how many times the fire callback ran.
type counter struct {
	since []time.Time
	fired atomic.Int32
	mu    sync.Mutex
}

func (c *counter) fire(_, since time.Time) {
	c.mu.Lock()
	c.since = append(c.since, since)
	c.mu.Unlock()

	c.fired.Add(1)
}

func (c *counter) periods() []time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]time.Time(nil), c.since...)
}

// TestScheduler_DisarmBeforeDeadline arms for 100ms and disarms at 50ms: nothing fires.
func TestScheduler_DisarmBeforeDeadline(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		c := new(counter)
		s := New(c.fire)

		require.NoError(t, s.Arm(100*time.Millisecond))
		require.True(t, s.IsPending())

		time.Sleep(50 * time.Millisecond)
		s.Disarm()
		require.False(t, s.IsPending())

		time.Sleep(100 * time.Millisecond)
		synctest.Wait()

		require.Zero(t, c.fired.Load())
		require.Nil(t, s.LastFired())
	})
}

// TestScheduler_FiresOnce arms for 100ms and waits 150ms: exactly one fire.
func TestScheduler_FiresOnce(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		c := new(counter)
		s := New(c.fire)

		armedAt := time.Now()
		require.NoError(t, s.Arm(100*time.Millisecond))

		time.Sleep(150 * time.Millisecond)
		synctest.Wait()

		require.Equal(t, int32(1), c.fired.Load())
		require.False(t, s.IsPending())

		firedAt := s.LastFired()
		require.NotNil(t, firedAt)
		require.True(t, armedAt.Add(100*time.Millisecond).Equal(*firedAt))

		// Nothing else fires later.
		time.Sleep(time.Second)
		synctest.Wait()
		require.Equal(t, int32(1), c.fired.Load())
	})
}

// TestScheduler_DoubleArmKeepsDeadline checks that a second Arm is rejected and does not extend the timer.
func TestScheduler_DoubleArmKeepsDeadline(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		c := new(counter)
		s := New(c.fire)

		require.NoError(t, s.Arm(100*time.Millisecond))

		time.Sleep(60 * time.Millisecond)
		require.ErrorIs(t, s.Arm(100*time.Millisecond), ErrAlreadyArmed)
		require.True(t, s.IsPending())

		// The original deadline passes at 100ms, not 160ms.
		time.Sleep(50 * time.Millisecond)
		synctest.Wait()
		require.Equal(t, int32(1), c.fired.Load())
	})
}

func TestScheduler_DisarmIsIdempotent(t *testing.T) {
	t.Parallel()

	s := New(nil)
	s.Disarm()
	s.Disarm()
	require.False(t, s.IsPending())
}

// TestScheduler_RearmAfterFire ensures each armed period fires once.
func TestScheduler_RearmAfterFire(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		c := new(counter)
		s := New(c.fire)

		for range 3 {
			require.NoError(t, s.Arm(10*time.Millisecond))
			time.Sleep(20 * time.Millisecond)
			synctest.Wait()
		}

		require.Equal(t, int32(3), c.fired.Load())
	})
}

// TestScheduler_StaleExpiryIsIgnored simulates an expiry that lost the race to Disarm.
func TestScheduler_StaleExpiryIsIgnored(t *testing.T) {
	t.Parallel()

	c := new(counter)
	s := New(c.fire)

	require.NoError(t, s.Arm(time.Hour))

	s.mu.Lock()
	generation := s.generation
	s.mu.Unlock()

	s.Disarm()
	s.expire(generation, time.Time{})

	require.Zero(t, c.fired.Load())
	require.False(t, s.IsPending())
}

// TestScheduler_ArmSinceIsPerPeriod checks that every expiry reports the
// period start of its own arm, even when an older expiry arrives late.
func TestScheduler_ArmSinceIsPerPeriod(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		c := new(counter)
		s := New(c.fire)

		first := time.Date(2024, time.May, 1, 10, 0, 0, 0, time.UTC)
		second := first.Add(time.Minute)

		require.NoError(t, s.ArmSince(first, 100*time.Millisecond))

		s.mu.Lock()
		stale := s.generation
		s.mu.Unlock()

		s.Disarm()
		require.NoError(t, s.ArmSince(second, 100*time.Millisecond))

		// The first period's expiry lost the race and must not fire.
		s.expire(stale, first)

		time.Sleep(150 * time.Millisecond)
		synctest.Wait()

		require.Equal(t, []time.Time{second}, c.periods())
	})
}
