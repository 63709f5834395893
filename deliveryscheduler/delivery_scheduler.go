// Package deliveryscheduler decouples bursty network arrival from steady
// consumption: at a fixed interval it notifies a consumer that buffered
// samples are waiting. The scheduler carries no data itself; the consumer
// pulls from the buffer when notified.
package deliveryscheduler

import (
	"sync"
	"time"
)

// DefaultInterval is the tick period used when none is specified (~60 Hz).
const DefaultInterval = 16 * time.Millisecond

// Scheduler invokes notify on every tick where pending reports true. Start
// and Stop are idempotent and the scheduler may be restarted after a Stop.
// The tick runs on an interval timer, never a busy-wait.
type Scheduler struct {
	interval time.Duration
	pending  func() bool
	notify   func()

	mu       sync.Mutex
	stopChan chan struct{}
	done     chan struct{}
}

// NewScheduler creates a stopped Scheduler.
//
// Parameters:
//   - interval: Tick period; zero or less falls back to DefaultInterval
//   - pending: Reports whether there is anything to deliver; nil means always
//   - notify: Called on each tick where pending reports true; runs on the
//     scheduler's goroutine and must not block for long
//
// Returns:
//   - A new Scheduler; call Start to begin ticking
func NewScheduler(interval time.Duration, pending func() bool, notify func()) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}

	return &Scheduler{
		interval: interval,
		pending:  pending,
		notify:   notify,
	}
}

// Start begins ticking in a goroutine. Calling Start on a running scheduler
// is a no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopChan != nil {
		return
	}

	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})
	go s.run(s.stopChan, s.done)
}

// Stop halts ticking and waits for the scheduler goroutine to exit. Calling
// Stop on a stopped scheduler is a no-op. The scheduler may be started again
// afterwards; a Start racing a Stop begins a fresh run that the Stop does
// not wait for.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	stop := s.stopChan
	done := s.done
	s.stopChan = nil
	s.done = nil
	s.mu.Unlock()

	if stop == nil {
		return
	}

	close(stop)
	<-done
}

// IsRunning reports whether the scheduler is currently ticking.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopChan != nil
}

// Interval returns the configured tick period.
func (s *Scheduler) Interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

// SetInterval changes the tick period. Takes effect the next time the
// scheduler is started. A value of zero or less falls back to
// DefaultInterval.
//
// Parameters:
//   - interval: The new tick period
func (s *Scheduler) SetInterval(interval time.Duration) {
	if interval <= 0 {
		interval = DefaultInterval
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.interval = interval
}

// run is the per-start goroutine. Each run owns its stop and done channels,
// so a Stop only ever waits for the run it actually stopped.
func (s *Scheduler) run(stop, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.Interval())
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if s.pending != nil && !s.pending() {
				continue
			}

			if s.notify != nil {
				s.notify()
			}
		}
	}
}
