// Package framedecoder splits a raw byte stream into newline-delimited
// messages and parses each one into a sample. A message split across reads
// is retained and reassembled on a later call, so the decoder can be fed
// directly from socket reads of arbitrary size.
//
// Two wire forms are accepted per message, tried in order:
//
//	{"timestamp": 1234.5, "value": 0.73, "channel": 1}
//	1234.5,0.73,1
//
// The JSON form requires numeric "timestamp" and "value" fields; "channel"
// is optional and defaults to 0. The plain form is "timestamp,value" with an
// optional third channel field. Messages that match neither form are
// silently dropped; malformed input never halts the stream.
package framedecoder

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/cyberinferno/datastream/sample"
)

// Decoder accumulates raw bytes and extracts complete newline-terminated
// messages. It is not safe for concurrent use; it is owned by the single
// goroutine that feeds it.
type Decoder struct {
	buf []byte
}

// NewDecoder returns an empty Decoder ready for use.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Append adds raw bytes to the accumulator and decodes every complete
// message now available, returning the resulting samples in arrival order.
// Complete messages and their delimiters are consumed from the accumulator;
// a trailing message without a delimiter stays buffered until completed by a
// later Append. Messages that fail both parse forms are skipped.
//
// Parameters:
//   - p: The bytes to append; not retained after the call returns
//
// Returns:
//   - Zero or more decoded samples, in the order their messages appeared
func (d *Decoder) Append(p []byte) []sample.Sample {
	d.buf = append(d.buf, p...)

	var samples []sample.Sample
	for {
		idx := bytes.IndexByte(d.buf, '\n')
		if idx < 0 {
			break
		}

		line := d.buf[:idx]
		d.buf = d.buf[idx+1:]

		if s, ok := parseLine(line); ok {
			samples = append(samples, s)
		}
	}

	if len(d.buf) == 0 {
		d.buf = nil
	}

	return samples
}

// Pending returns the number of buffered bytes belonging to the current
// incomplete message, if any.
func (d *Decoder) Pending() int {
	return len(d.buf)
}

// Reset discards the accumulator, including any partial message.
func (d *Decoder) Reset() {
	d.buf = nil
}

// jsonMessage mirrors the structured wire form. Pointer fields distinguish a
// field that is absent from one that is present with a zero value.
type jsonMessage struct {
	Timestamp *float64 `json:"timestamp"`
	Value     *float64 `json:"value"`
	Channel   *int     `json:"channel"`
}

func parseLine(line []byte) (sample.Sample, bool) {
	text := strings.TrimSpace(string(line))
	if text == "" {
		return sample.Sample{}, false
	}

	if s, ok := parseJSON(text); ok {
		return s, true
	}

	return parsePlain(text)
}

func parseJSON(text string) (sample.Sample, bool) {
	var msg jsonMessage
	if err := json.Unmarshal([]byte(text), &msg); err != nil {
		return sample.Sample{}, false
	}

	if msg.Timestamp == nil || msg.Value == nil {
		return sample.Sample{}, false
	}

	channel := 0
	if msg.Channel != nil {
		channel = *msg.Channel
	}

	return sample.New(*msg.Timestamp, float32(*msg.Value), channel), true
}

func parsePlain(text string) (sample.Sample, bool) {
	parts := strings.Split(text, ",")
	if len(parts) < 2 {
		return sample.Sample{}, false
	}

	timestamp, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return sample.Sample{}, false
	}

	value, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 32)
	if err != nil {
		return sample.Sample{}, false
	}

	// An unparseable channel field falls back to 0 rather than discarding
	// the message; only timestamp and value are required.
	channel := 0
	if len(parts) > 2 {
		if ch, chErr := strconv.Atoi(strings.TrimSpace(parts[2])); chErr == nil {
			channel = ch
		}
	}

	return sample.New(timestamp, float32(value), channel), true
}
