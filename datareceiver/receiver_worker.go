package datareceiver

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cyberinferno/datastream/logger"
	"github.com/cyberinferno/datastream/sample"
)

// DefaultStopTimeout is the bounded wait applied when stopping a Worker.
const DefaultStopTimeout = 3 * time.Second

// eventQueueSize bounds the relay between the receiver's I/O goroutines and
// the worker's dispatch goroutine.
const eventQueueSize = 256

type workerEventKind int

const (
	eventSample workerEventKind = iota
	eventDataAvailable
	eventConnectionStatus
	eventError
)

type workerEvent struct {
	kind      workerEventKind
	sample    sample.Sample
	connected bool
	err       error
}

// Worker isolates a DataReceiver from its consumer: receiver events are
// relayed through a bounded queue and dispatched by a single goroutine, so
// handlers registered on the Worker never run concurrently with each other
// and never run on the receiver's I/O goroutines. Relaying never blocks the
// I/O side; if the consumer falls behind, events are dropped with a warning.
//
// Stopping is bounded: Stop waits up to the stop timeout for the worker's
// goroutines, then proceeds with teardown regardless.
type Worker struct {
	receiver    *DataReceiver
	log         logger.Logger
	stopTimeout time.Duration

	events chan workerEvent

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	done    chan struct{}

	handlerMu          sync.RWMutex
	onSample           SampleHandler
	onDataAvailable    DataAvailableHandler
	onConnectionStatus ConnectionStatusHandler
	onError            ErrorHandler
}

// NewWorker wraps receiver in a Worker. The worker takes over the receiver's
// four event handlers; register consumer-side handlers on the Worker
// instead. A nil log is replaced with a no-op logger.
//
// Parameters:
//   - receiver: The DataReceiver to isolate; must not be nil
//   - log: Structured logger; may be nil
//
// Returns:
//   - A new *Worker; call Start before expecting event delivery
func NewWorker(receiver *DataReceiver, log logger.Logger) *Worker {
	if log == nil {
		log = logger.NewNopLogger()
	}

	w := &Worker{
		receiver:    receiver,
		log:         log,
		stopTimeout: DefaultStopTimeout,
		events:      make(chan workerEvent, eventQueueSize),
	}

	receiver.OnSampleReceived(func(s sample.Sample) {
		w.relay(workerEvent{kind: eventSample, sample: s})
	})
	receiver.OnDataAvailable(func() {
		w.relay(workerEvent{kind: eventDataAvailable})
	})
	receiver.OnConnectionStatus(func(connected bool) {
		w.relay(workerEvent{kind: eventConnectionStatus, connected: connected})
	})
	receiver.OnError(func(err error) {
		w.relay(workerEvent{kind: eventError, err: err})
	})

	return w
}

// Receiver returns the wrapped DataReceiver, e.g. to call StartServer,
// ConnectToHost, or DrainAll.
func (w *Worker) Receiver() *DataReceiver {
	return w.receiver
}

// SetStopTimeout changes the bounded wait used by Stop. A value of zero or
// less falls back to DefaultStopTimeout.
func (w *Worker) SetStopTimeout(d time.Duration) {
	if d <= 0 {
		d = DefaultStopTimeout
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.stopTimeout = d
}

// OnSampleReceived registers the consumer-side handler for individual
// samples. Only one handler is active; repeated calls replace the previous
// handler. Pass nil to clear the handler.
func (w *Worker) OnSampleReceived(handler SampleHandler) {
	w.handlerMu.Lock()
	defer w.handlerMu.Unlock()
	w.onSample = handler
}

// OnDataAvailable registers the consumer-side handler for delivery ticks.
// Only one handler is active; repeated calls replace the previous handler.
// Pass nil to clear the handler.
func (w *Worker) OnDataAvailable(handler DataAvailableHandler) {
	w.handlerMu.Lock()
	defer w.handlerMu.Unlock()
	w.onDataAvailable = handler
}

// OnConnectionStatus registers the consumer-side handler for peer
// connect/disconnect transitions. Only one handler is active; repeated calls
// replace the previous handler. Pass nil to clear the handler.
func (w *Worker) OnConnectionStatus(handler ConnectionStatusHandler) {
	w.handlerMu.Lock()
	defer w.handlerMu.Unlock()
	w.onConnectionStatus = handler
}

// OnError registers the consumer-side handler for receiver errors. Only one
// handler is active; repeated calls replace the previous handler. Pass nil
// to clear the handler.
func (w *Worker) OnError(handler ErrorHandler) {
	w.handlerMu.Lock()
	defer w.handlerMu.Unlock()
	w.onError = handler
}

// Start launches the dispatch goroutine and a watchdog that tears the
// receiver down when ctx is cancelled. The receiver's endpoint is started
// separately (StartServer or ConnectToHost via Receiver).
//
// Parameters:
//   - ctx: Cancelling this context stops the worker and the receiver
//
// Returns:
//   - An error if the worker is already started
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.started {
		return fmt.Errorf("worker already started")
	}

	w.started = true

	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	done := make(chan struct{})
	w.done = done

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		w.dispatchLoop(gctx)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		w.receiver.Stop()
		return nil
	})

	go func() {
		defer close(done)
		_ = g.Wait()
	}()

	return nil
}

// Stop signals the worker to exit and waits up to the stop timeout for its
// goroutines to finish; if the timeout elapses, teardown proceeds anyway.
// The receiver is stopped either way. Idempotent.
func (w *Worker) Stop() {
	w.mu.Lock()
	cancel := w.cancel
	done := w.done
	timeout := w.stopTimeout
	w.cancel = nil
	w.done = nil
	w.started = false
	w.mu.Unlock()

	if cancel == nil {
		return
	}

	cancel()

	select {
	case <-done:
	case <-time.After(timeout):
		w.log.Warn("worker stop timed out, proceeding with teardown")
	}

	w.receiver.Stop()
}

// relay enqueues an event for the dispatch goroutine. The send never blocks
// the I/O goroutine: if the queue is full the event is dropped.
func (w *Worker) relay(ev workerEvent) {
	select {
	case w.events <- ev:
	default:
		w.log.Warn("event queue full, dropping event", logger.Field{Key: "kind", Value: int(ev.kind)})
	}
}

// dispatchLoop delivers relayed events one at a time. On shutdown it drains
// events already queued before exiting so late arrivals are not lost.
func (w *Worker) dispatchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case ev := <-w.events:
					w.dispatch(ev)
				default:
					return
				}
			}
		case ev := <-w.events:
			w.dispatch(ev)
		}
	}
}

func (w *Worker) dispatch(ev workerEvent) {
	w.handlerMu.RLock()
	onSample := w.onSample
	onDataAvailable := w.onDataAvailable
	onConnectionStatus := w.onConnectionStatus
	onError := w.onError
	w.handlerMu.RUnlock()

	switch ev.kind {
	case eventSample:
		if onSample != nil {
			onSample(ev.sample)
		}
	case eventDataAvailable:
		if onDataAvailable != nil {
			onDataAvailable()
		}
	case eventConnectionStatus:
		if onConnectionStatus != nil {
			onConnectionStatus(ev.connected)
		}
	case eventError:
		if onError != nil {
			onError(ev.err)
		}
	}
}
