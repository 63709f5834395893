// Package redissink publishes decoded samples to a Redis stream so storage
// or analytics consumers can trail the live feed without sitting on the
// ingestion path.
package redissink

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cyberinferno/datastream/datareceiver"
	"github.com/cyberinferno/datastream/logger"
	"github.com/cyberinferno/datastream/sample"
)

// DefaultWriteTimeout bounds each batch write issued by an attached sink.
const DefaultWriteTimeout = 5 * time.Second

// Sink appends samples to a Redis stream, one entry per sample with fields
// "timestamp", "value", and "channel". It is safe for concurrent use.
type Sink struct {
	client       *redis.Client
	stream       string
	log          logger.Logger
	maxLen       int64
	writeTimeout time.Duration
}

// New creates a Sink writing to the given stream. A nil log is replaced
// with a no-op logger.
//
// Example:
//
//	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	sink := redissink.New(client, "samples", log)
//
// Parameters:
//   - client: The Redis client to write through
//   - stream: The stream key to append to
//   - log: Structured logger; may be nil
//
// Returns:
//   - A new Sink instance
func New(client *redis.Client, stream string, log logger.Logger) *Sink {
	if log == nil {
		log = logger.NewNopLogger()
	}

	return &Sink{
		client:       client,
		stream:       stream,
		log:          log,
		writeTimeout: DefaultWriteTimeout,
	}
}

// SetMaxLen enables approximate stream trimming: each write caps the stream
// near n entries, evicting the oldest, mirroring the bounded-memory policy
// of the in-process sample buffer. A value of zero or less disables
// trimming.
func (s *Sink) SetMaxLen(n int64) {
	if n < 0 {
		n = 0
	}

	s.maxLen = n
}

// Write appends the samples to the stream in order using a single pipeline
// round trip. An empty batch is a no-op.
//
// Parameters:
//   - ctx: Context for cancellation and timeout control
//   - samples: The batch to append
//
// Returns:
//   - An error if the pipeline execution fails
func (s *Sink) Write(ctx context.Context, samples []sample.Sample) error {
	if len(samples) == 0 {
		return nil
	}

	pipe := s.client.Pipeline()
	for _, p := range samples {
		args := &redis.XAddArgs{
			Stream: s.stream,
			Values: map[string]interface{}{
				"timestamp": p.Timestamp,
				"value":     float64(p.Value),
				"channel":   p.Channel,
			},
		}

		if s.maxLen > 0 {
			args.MaxLen = s.maxLen
			args.Approx = true
		}

		pipe.XAdd(ctx, args)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to write %d samples to stream %s: %w", len(samples), s.stream, err)
	}

	return nil
}

// Attach registers the sink as the receiver's data-available consumer: on
// each delivery tick the buffered samples are drained and written to the
// stream as one batch. Write failures are logged; the drained batch is
// dropped rather than retried.
//
// Parameters:
//   - r: The receiver to drain on each delivery tick
func (s *Sink) Attach(r *datareceiver.DataReceiver) {
	r.OnDataAvailable(func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.writeTimeout)
		defer cancel()

		if err := s.Write(ctx, r.DrainAll()); err != nil {
			s.log.Error("sink write failed", logger.Field{Key: "error", Value: err})
		}
	})
}
