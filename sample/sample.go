// Package sample defines the measurement value type shared by the ingestion
// pipeline and its consumers.
package sample

import "fmt"

// Sample is a single decoded measurement. Timestamp units and epoch are
// defined by the producer. Channel identifies a logical data stream; channel
// 0 is the default for single-stream producers. A Sample is immutable once
// constructed.
type Sample struct {
	Timestamp float64
	Value     float32
	Channel   int
}

// New constructs a Sample.
//
// Parameters:
//   - timestamp: Producer-defined time of the measurement
//   - value: The measured value
//   - channel: Logical stream identifier; use 0 when the producer is single-stream
//
// Returns:
//   - The constructed Sample
func New(timestamp float64, value float32, channel int) Sample {
	return Sample{Timestamp: timestamp, Value: value, Channel: channel}
}

// String returns a compact human-readable form, useful in logs.
func (s Sample) String() string {
	return fmt.Sprintf("sample(t=%g v=%g ch=%d)", s.Timestamp, s.Value, s.Channel)
}
