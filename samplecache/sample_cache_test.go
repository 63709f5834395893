package samplecache

import (
	"testing"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyberinferno/datastream/sample"
)

func TestNew(t *testing.T) {
	c := New(time.Minute, time.Minute)
	require.NotNil(t, c)

	_, found := c.Latest(0)
	assert.False(t, found)
	assert.Empty(t, c.Channels())
}

func TestLatestCache_UpdateAndLatest(t *testing.T) {
	c := New(cache.NoExpiration, time.Minute)

	c.Update(sample.New(1.0, 0.5, 0))
	c.Update(sample.New(1.5, 0.7, 3))

	t.Run("latest per channel", func(t *testing.T) {
		s, found := c.Latest(0)
		require.True(t, found)
		assert.Equal(t, sample.New(1.0, 0.5, 0), s)

		s, found = c.Latest(3)
		require.True(t, found)
		assert.Equal(t, sample.New(1.5, 0.7, 3), s)
	})

	t.Run("newer sample replaces older", func(t *testing.T) {
		c.Update(sample.New(2.0, 0.9, 0))
		s, found := c.Latest(0)
		require.True(t, found)
		assert.Equal(t, sample.New(2.0, 0.9, 0), s)
	})

	t.Run("unknown channel", func(t *testing.T) {
		_, found := c.Latest(42)
		assert.False(t, found)
	})
}

func TestLatestCache_Expiry(t *testing.T) {
	c := New(20*time.Millisecond, time.Minute)

	c.Update(sample.New(1.0, 0.5, 0))
	_, found := c.Latest(0)
	require.True(t, found)

	require.Eventually(t, func() bool {
		_, found := c.Latest(0)
		return !found
	}, time.Second, 5*time.Millisecond)
}

func TestLatestCache_Channels(t *testing.T) {
	c := New(cache.NoExpiration, time.Minute)

	c.Update(sample.New(1, 1, 0))
	c.Update(sample.New(1, 1, 2))
	c.Update(sample.New(1, 1, 7))

	assert.ElementsMatch(t, []int{0, 2, 7}, c.Channels())
}

func TestLatestCache_Flush(t *testing.T) {
	c := New(cache.NoExpiration, time.Minute)
	c.Update(sample.New(1, 1, 0))

	c.Flush()
	_, found := c.Latest(0)
	assert.False(t, found)
	assert.Empty(t, c.Channels())
}
