// Package datareceiver implements the network side of the ingestion
// pipeline: a connection manager that owns a single TCP endpoint (listening
// server or outbound client), decodes the incoming byte stream into samples,
// buffers them, and notifies consumers on a fixed delivery cadence.
//
// At most one peer is active at a time. A new inbound or outbound connection
// supersedes any prior one, which is torn down first. All network and parse
// failures are recovered locally and surfaced only through the registered
// handlers; nothing here ever terminates the host process.
package datareceiver

import (
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/cyberinferno/datastream/deliveryscheduler"
	"github.com/cyberinferno/datastream/framedecoder"
	"github.com/cyberinferno/datastream/logger"
	"github.com/cyberinferno/datastream/safequeue"
	"github.com/cyberinferno/datastream/sample"
)

// ConnState represents the current state of the receiver's endpoint.
type ConnState int

const (
	Idle         ConnState = iota // No endpoint active
	Listening                     // Server-mode endpoint bound and accepting, no peer yet
	Connected                     // A peer connection is active
	Disconnected                  // The peer went away and no listener remains
)

// String returns a human-readable name for the connection state.
func (cs ConnState) String() string {
	switch cs {
	case Idle:
		return "Idle"
	case Listening:
		return "Listening"
	case Connected:
		return "Connected"
	case Disconnected:
		return "Disconnected"
	default:
		return "Unknown"
	}
}

// SampleHandler is called for each decoded sample as it arrives, before the
// next delivery tick. Handlers run on the receiver's I/O goroutine and must
// not block.
type SampleHandler func(s sample.Sample)

// DataAvailableHandler is called on each delivery tick where buffered
// samples are waiting. The handler should drain them via DrainAll.
type DataAvailableHandler func()

// ConnectionStatusHandler is called when a peer connects (true) or the
// active peer goes away (false).
type ConnectionStatusHandler func(connected bool)

// ErrorHandler is called once for each bind, dial, or transport failure.
// Decode failures are not errors; malformed messages are dropped silently.
type ErrorHandler func(err error)

// Config holds configuration for a DataReceiver.
type Config struct {
	// MaxDataPoints is the sample buffer capacity; oldest samples are
	// evicted when it is exceeded.
	MaxDataPoints int
	// UpdateInterval is the delivery scheduler period.
	UpdateInterval time.Duration
	// ReadBufferSize is the size of the socket read buffer.
	ReadBufferSize int
	// ConnectTimeout is the max duration for establishing an outbound
	// connection.
	ConnectTimeout time.Duration
}

// DefaultConfig returns a Config with default values: MaxDataPoints 10000,
// UpdateInterval 16ms (~60 Hz), ReadBufferSize 4096, ConnectTimeout 10s.
func DefaultConfig() Config {
	return Config{
		MaxDataPoints:  safequeue.DefaultMaxSize,
		UpdateInterval: deliveryscheduler.DefaultInterval,
		ReadBufferSize: 4096,
		ConnectTimeout: 10 * time.Second,
	}
}

// DataReceiver accepts streaming numeric samples over TCP, in server or
// client mode, and buffers them for a consumer running on another goroutine.
// Register handlers before starting, then call StartServer or ConnectToHost.
// It is safe for concurrent use.
type DataReceiver struct {
	config Config
	log    logger.Logger

	queue     *safequeue.SafeQueue[sample.Sample]
	scheduler *deliveryscheduler.Scheduler

	mu       sync.Mutex
	listener net.Listener
	peer     net.Conn
	state    ConnState

	wg sync.WaitGroup

	handlerMu          sync.RWMutex
	onSample           SampleHandler
	onDataAvailable    DataAvailableHandler
	onConnectionStatus ConnectionStatusHandler
	onError            ErrorHandler
}

// New creates a DataReceiver with the given config. A nil log is replaced
// with a no-op logger. Zero-valued config fields fall back to the defaults
// from DefaultConfig.
//
// Parameters:
//   - config: Buffer, scheduler, and socket settings (e.g. from DefaultConfig)
//   - log: Structured logger for lifecycle and error messages; may be nil
//
// Returns:
//   - A new *DataReceiver in Idle state
func New(config Config, log logger.Logger) *DataReceiver {
	if log == nil {
		log = logger.NewNopLogger()
	}

	defaults := DefaultConfig()
	if config.MaxDataPoints <= 0 {
		config.MaxDataPoints = defaults.MaxDataPoints
	}
	if config.UpdateInterval <= 0 {
		config.UpdateInterval = defaults.UpdateInterval
	}
	if config.ReadBufferSize <= 0 {
		config.ReadBufferSize = defaults.ReadBufferSize
	}
	if config.ConnectTimeout <= 0 {
		config.ConnectTimeout = defaults.ConnectTimeout
	}

	r := &DataReceiver{
		config: config,
		log:    log,
		queue:  safequeue.NewSafeQueue[sample.Sample](config.MaxDataPoints),
		state:  Idle,
	}

	r.scheduler = deliveryscheduler.NewScheduler(
		config.UpdateInterval,
		func() bool { return r.queue.Len() > 0 },
		r.emitDataAvailable,
	)

	return r
}

// OnSampleReceived registers the handler for individual decoded samples.
// Only one handler is active; repeated calls replace the previous handler.
// Pass nil to clear the handler.
func (r *DataReceiver) OnSampleReceived(handler SampleHandler) {
	r.handlerMu.Lock()
	defer r.handlerMu.Unlock()
	r.onSample = handler
}

// OnDataAvailable registers the handler invoked on delivery ticks where
// buffered samples are waiting. Only one handler is active; repeated calls
// replace the previous handler. Pass nil to clear the handler.
func (r *DataReceiver) OnDataAvailable(handler DataAvailableHandler) {
	r.handlerMu.Lock()
	defer r.handlerMu.Unlock()
	r.onDataAvailable = handler
}

// OnConnectionStatus registers the handler for peer connect/disconnect
// transitions. Only one handler is active; repeated calls replace the
// previous handler. Pass nil to clear the handler.
func (r *DataReceiver) OnConnectionStatus(handler ConnectionStatusHandler) {
	r.handlerMu.Lock()
	defer r.handlerMu.Unlock()
	r.onConnectionStatus = handler
}

// OnError registers the handler for bind, dial, and transport errors.
// Only one handler is active; repeated calls replace the previous handler.
// Pass nil to clear the handler.
func (r *DataReceiver) OnError(handler ErrorHandler) {
	r.handlerMu.Lock()
	defer r.handlerMu.Unlock()
	r.onError = handler
}

// StartServer binds a listening endpoint on addr (e.g. ":8080") and starts
// the accept loop in a goroutine. Any existing listener or peer is torn down
// first. Exactly one peer is retained; a newly accepted connection
// supersedes the current one.
//
// A bind failure is reported through the error handler and returned; the
// receiver stays Idle and the caller may retry with a different address.
//
// Parameters:
//   - addr: The "host:port" to listen on; an empty host binds all interfaces
//
// Returns:
//   - nil on success, or the bind error
func (r *DataReceiver) StartServer(addr string) error {
	r.stopEndpoint()

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		err = fmt.Errorf("failed to start server on %s: %w", addr, err)
		r.log.Error("server failed to start", logger.Field{Key: "error", Value: err})
		r.emitError(err)
		return err
	}

	r.mu.Lock()
	r.listener = ln
	r.state = Listening
	r.mu.Unlock()

	r.log.Info("server started", logger.Field{Key: "addr", Value: ln.Addr().String()})

	r.wg.Add(1)
	go r.acceptLoop(ln)

	return nil
}

// ConnectToHost initiates an outbound connection to host:port, superseding
// and tearing down any existing connection or listener first. A dial failure
// is reported through the error handler and returned; the receiver is left
// Idle.
//
// Parameters:
//   - host: The remote host name or address
//   - port: The remote TCP port
//
// Returns:
//   - nil on success, or the dial error
func (r *DataReceiver) ConnectToHost(host string, port uint16) error {
	r.stopEndpoint()

	addr := net.JoinHostPort(host, strconv.Itoa(int(port)))
	r.log.Info("connecting", logger.Field{Key: "addr", Value: addr})

	dialer := net.Dialer{Timeout: r.config.ConnectTimeout}
	conn, err := dialer.Dial("tcp", addr)
	if err != nil {
		err = fmt.Errorf("failed to connect to %s: %w", addr, err)
		r.log.Error("connect failed", logger.Field{Key: "error", Value: err})
		r.emitError(err)
		return err
	}

	r.adoptPeer(conn, nil)
	return nil
}

// Disconnect closes the active peer connection, if any. In server mode the
// listener keeps accepting, so a new peer may connect afterwards. Safe to
// call when no peer is active; repeated calls are no-ops and emit no
// duplicate events.
func (r *DataReceiver) Disconnect() {
	r.mu.Lock()
	conn := r.peer
	r.peer = nil
	if conn != nil {
		if r.listener != nil {
			r.state = Listening
		} else {
			r.state = Disconnected
		}
	}
	r.mu.Unlock()

	if conn == nil {
		return
	}

	_ = conn.Close()
	r.log.Info("disconnected", logger.Field{Key: "peer", Value: conn.RemoteAddr().String()})
	r.emitConnectionStatus(false)
}

// Stop tears down the listener, the peer connection, and the delivery
// scheduler, returning the receiver to Idle. It waits for the I/O goroutines
// to exit, so it must not be called from an event handler. Safe to call
// repeatedly; redundant calls emit no events.
//
// The endpoint goes down before the scheduler: an adoption that slipped in
// ahead of the teardown has already started the scheduler, so stopping the
// scheduler last leaves nothing running either way.
func (r *DataReceiver) Stop() {
	r.stopEndpoint()
	r.StopReceiving()
	r.wg.Wait()
}

// StartReceiving starts the delivery scheduler. Idempotent. Reception is
// started automatically when a peer connects, so most callers never need
// this directly.
func (r *DataReceiver) StartReceiving() {
	r.scheduler.Start()
}

// StopReceiving stops the delivery scheduler without touching the
// connection. Idempotent.
func (r *DataReceiver) StopReceiving() {
	r.scheduler.Stop()
}

// IsReceiving reports whether the delivery scheduler is running.
func (r *DataReceiver) IsReceiving() bool {
	return r.scheduler.IsRunning()
}

// SetMaxDataPoints changes the sample buffer capacity, evicting the oldest
// samples if the buffer currently holds more. A value of zero or less falls
// back to the default capacity.
func (r *DataReceiver) SetMaxDataPoints(n int) {
	r.queue.SetMaxSize(n)
}

// SetUpdateInterval changes the delivery scheduler period. Takes effect the
// next time receiving starts.
func (r *DataReceiver) SetUpdateInterval(d time.Duration) {
	r.scheduler.SetInterval(d)
}

// DrainAll atomically removes and returns every buffered sample in arrival
// order, leaving the buffer empty. Consumers call this on each
// data-available notification.
func (r *DataReceiver) DrainAll() []sample.Sample {
	return r.queue.DrainAll()
}

// ClearData empties the sample buffer without returning its contents.
func (r *DataReceiver) ClearData() {
	r.queue.Clear()
}

// Len returns the number of buffered samples.
func (r *DataReceiver) Len() int {
	return r.queue.Len()
}

// State returns the current connection state.
func (r *DataReceiver) State() ConnState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// IsConnected reports whether a peer connection is active.
func (r *DataReceiver) IsConnected() bool {
	return r.State() == Connected
}

// ListenAddr returns the bound listener address, or nil when not listening.
// Useful when the server was started on port 0.
func (r *DataReceiver) ListenAddr() net.Addr {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.listener == nil {
		return nil
	}

	return r.listener.Addr()
}

// PeerAddr returns the remote address of the active peer, or nil when no
// peer is connected.
func (r *DataReceiver) PeerAddr() net.Addr {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.peer == nil {
		return nil
	}

	return r.peer.RemoteAddr()
}

// stopEndpoint tears down the listener and any active peer, returning the
// receiver to Idle. Emits a single disconnected event if a peer was active.
// Safe to call repeatedly.
func (r *DataReceiver) stopEndpoint() {
	r.mu.Lock()
	ln := r.listener
	conn := r.peer
	r.listener = nil
	r.peer = nil
	r.state = Idle
	r.mu.Unlock()

	if ln != nil {
		_ = ln.Close()
		r.log.Info("server stopped", logger.Field{Key: "addr", Value: ln.Addr().String()})
	}

	if conn != nil {
		_ = conn.Close()
		r.emitConnectionStatus(false)
	}
}

// acceptLoop runs in a goroutine and accepts incoming connections on ln.
// Each accepted connection becomes the single active peer, superseding any
// previous one. It exits once ln is no longer the receiver's listener, so a
// loop left over from a superseded endpoint never competes with the new one.
func (r *DataReceiver) acceptLoop(ln net.Listener) {
	defer r.wg.Done()

	for {
		conn, err := ln.Accept()

		if !r.listenerCurrent(ln) {
			if conn != nil {
				_ = conn.Close()
			}

			return
		}

		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}

			r.log.Error("accept error", logger.Field{Key: "error", Value: err})
			continue
		}

		r.adoptPeer(conn, ln)
	}
}

func (r *DataReceiver) listenerCurrent(ln net.Listener) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.listener == ln
}

// adoptPeer installs conn as the single active peer, superseding any
// previous one. The superseded peer's teardown is reported before the new
// peer's connected event, so the two transitions never overlap.
//
// A non-nil ln ties the adoption to that listener: if ln is no longer the
// receiver's listener, a Stop or endpoint restart won the race between the
// accept and the adoption, so conn is closed and nothing is installed or
// emitted. The check, the peer install, the WaitGroup increment, and the
// scheduler start all happen under one lock so a concurrent Stop either sees
// the adoption in full or prevents it entirely.
func (r *DataReceiver) adoptPeer(conn net.Conn, ln net.Listener) {
	r.mu.Lock()
	if ln != nil && r.listener != ln {
		r.mu.Unlock()
		_ = conn.Close()
		return
	}

	old := r.peer
	r.peer = conn
	r.state = Connected
	r.wg.Add(1)
	r.scheduler.Start()
	r.mu.Unlock()

	if old != nil {
		_ = old.Close()
		r.log.Info("peer superseded", logger.Field{Key: "peer", Value: old.RemoteAddr().String()})
		r.emitConnectionStatus(false)
	}

	r.log.Info("peer connected", logger.Field{Key: "peer", Value: conn.RemoteAddr().String()})
	r.emitConnectionStatus(true)

	go r.readLoop(conn)
}

// readLoop reads all available bytes from conn, feeds them through the
// frame decoder, and pushes each decoded sample into the buffer. Each
// connection owns its own decoder so a partial message from a superseded
// peer never leaks into the next one.
func (r *DataReceiver) readLoop(conn net.Conn) {
	defer r.wg.Done()

	decoder := framedecoder.NewDecoder()
	buf := make([]byte, r.config.ReadBufferSize)

	for {
		n, err := conn.Read(buf)
		if n > 0 {
			for _, s := range decoder.Append(buf[:n]) {
				r.queue.Push(s)
				r.emitSample(s)
			}
		}

		if err != nil {
			r.handleReadEnd(conn, err)
			return
		}
	}
}

// handleReadEnd records the loss of conn. If conn is no longer the current
// peer it was superseded or torn down and the initiator has already reported
// the transition, so nothing is emitted here.
func (r *DataReceiver) handleReadEnd(conn net.Conn, err error) {
	r.mu.Lock()
	current := r.peer == conn
	if current {
		r.peer = nil
		if r.listener != nil {
			r.state = Listening
		} else {
			r.state = Disconnected
		}
	}
	r.mu.Unlock()

	if !current {
		return
	}

	_ = conn.Close()

	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
		r.log.Info("peer disconnected", logger.Field{Key: "peer", Value: conn.RemoteAddr().String()})
	} else {
		terr := fmt.Errorf("transport error: %w", err)
		r.log.Error("transport error", logger.Field{Key: "error", Value: err})
		r.emitError(terr)
	}

	r.emitConnectionStatus(false)
}

func (r *DataReceiver) emitSample(s sample.Sample) {
	r.handlerMu.RLock()
	handler := r.onSample
	r.handlerMu.RUnlock()

	if handler != nil {
		handler(s)
	}
}

func (r *DataReceiver) emitDataAvailable() {
	r.handlerMu.RLock()
	handler := r.onDataAvailable
	r.handlerMu.RUnlock()

	if handler != nil {
		handler()
	}
}

func (r *DataReceiver) emitConnectionStatus(connected bool) {
	r.handlerMu.RLock()
	handler := r.onConnectionStatus
	r.handlerMu.RUnlock()

	if handler != nil {
		handler(connected)
	}
}

func (r *DataReceiver) emitError(err error) {
	r.handlerMu.RLock()
	handler := r.onError
	r.handlerMu.RUnlock()

	if handler != nil {
		handler(err)
	}
}
