// Package samplecache keeps the most recent sample seen on each channel,
// with entries expiring after a TTL so channels that go quiet age out.
// Consumers that want "the current value" rather than the stream feed this
// from the sample-received event and query it at their own pace.
package samplecache

import (
	"strconv"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/cyberinferno/datastream/sample"
)

// LatestCache stores the latest sample per channel. It is safe for
// concurrent use.
type LatestCache struct {
	cache *cache.Cache
}

// New creates a LatestCache whose entries expire ttl after their last
// update and are cleaned up every cleanupInterval.
//
// Parameters:
//   - ttl: How long a channel's latest sample stays queryable without updates
//     (use cache.NoExpiration to keep entries forever)
//   - cleanupInterval: Interval at which expired entries are removed
//
// Returns:
//   - A new LatestCache instance
func New(ttl, cleanupInterval time.Duration) *LatestCache {
	return &LatestCache{
		cache: cache.New(ttl, cleanupInterval),
	}
}

// Update records s as the latest sample for its channel, resetting the
// entry's TTL.
func (c *LatestCache) Update(s sample.Sample) {
	c.cache.SetDefault(strconv.Itoa(s.Channel), s)
}

// Latest returns the most recent unexpired sample for the channel.
//
// Parameters:
//   - channel: The channel to look up
//
// Returns:
//   - The latest sample and true, or a zero Sample and false if the channel
//     has no unexpired entry
func (c *LatestCache) Latest(channel int) (sample.Sample, bool) {
	v, found := c.cache.Get(strconv.Itoa(channel))
	if !found {
		return sample.Sample{}, false
	}

	s, ok := v.(sample.Sample)
	if !ok {
		return sample.Sample{}, false
	}

	return s, true
}

// Channels returns the channels that currently have an unexpired entry, in
// no particular order.
func (c *LatestCache) Channels() []int {
	items := c.cache.Items()
	channels := make([]int, 0, len(items))
	for k := range items {
		ch, err := strconv.Atoi(k)
		if err != nil {
			continue
		}

		channels = append(channels, ch)
	}

	return channels
}

// Flush removes every entry.
func (c *LatestCache) Flush() {
	c.cache.Flush()
}
