package deliveryscheduler

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewScheduler(t *testing.T) {
	s := NewScheduler(0, nil, nil)
	require.NotNil(t, s)
	assert.Equal(t, DefaultInterval, s.Interval())
	assert.False(t, s.IsRunning())
}

func TestScheduler_NotifiesWhenPending(t *testing.T) {
	var ticks atomic.Int32
	s := NewScheduler(2*time.Millisecond,
		func() bool { return true },
		func() { ticks.Add(1) },
	)

	s.Start()
	defer s.Stop()

	require.Eventually(t, func() bool {
		return ticks.Load() >= 3
	}, time.Second, time.Millisecond)
}

func TestScheduler_SkipsWhenNothingPending(t *testing.T) {
	var ticks atomic.Int32
	s := NewScheduler(2*time.Millisecond,
		func() bool { return false },
		func() { ticks.Add(1) },
	)

	s.Start()
	defer s.Stop()

	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, ticks.Load())
}

func TestScheduler_StartStopIdempotent(t *testing.T) {
	var ticks atomic.Int32
	s := NewScheduler(2*time.Millisecond, nil, func() { ticks.Add(1) })

	s.Start()
	s.Start()
	assert.True(t, s.IsRunning())

	s.Stop()
	s.Stop()
	assert.False(t, s.IsRunning())

	t.Run("no ticks after stop", func(t *testing.T) {
		stopped := ticks.Load()
		time.Sleep(20 * time.Millisecond)
		assert.Equal(t, stopped, ticks.Load())
	})
}

func TestScheduler_Restart(t *testing.T) {
	var ticks atomic.Int32
	s := NewScheduler(2*time.Millisecond, nil, func() { ticks.Add(1) })

	s.Start()
	require.Eventually(t, func() bool { return ticks.Load() > 0 }, time.Second, time.Millisecond)
	s.Stop()

	before := ticks.Load()
	s.Start()
	defer s.Stop()

	require.Eventually(t, func() bool {
		return ticks.Load() > before
	}, time.Second, time.Millisecond)
}

func TestScheduler_ConcurrentStartStop(t *testing.T) {
	var ticks atomic.Int32
	s := NewScheduler(time.Millisecond, nil, func() { ticks.Add(1) })

	var wg sync.WaitGroup
	for n := 0; n < 4; n++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for m := 0; m < 50; m++ {
				s.Start()
				s.Stop()
			}
		}()
	}
	wg.Wait()

	s.Stop()
	assert.False(t, s.IsRunning())

	t.Run("no run survives the final stop", func(t *testing.T) {
		stopped := ticks.Load()
		time.Sleep(20 * time.Millisecond)
		assert.Equal(t, stopped, ticks.Load())
	})
}

func TestScheduler_SetInterval(t *testing.T) {
	s := NewScheduler(time.Second, nil, nil)

	s.SetInterval(5 * time.Millisecond)
	assert.Equal(t, 5*time.Millisecond, s.Interval())

	s.SetInterval(0)
	assert.Equal(t, DefaultInterval, s.Interval())
}
