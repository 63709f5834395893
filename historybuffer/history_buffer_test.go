package historybuffer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyberinferno/datastream/sample"
)

func TestNew(t *testing.T) {
	h := New(0)
	require.NotNil(t, h)
	assert.Equal(t, 0, h.Len())
	assert.Nil(t, h.Snapshot())
}

func TestHistory_AppendAndTrim(t *testing.T) {
	h := New(3)

	h.Append([]sample.Sample{
		sample.New(1, 10, 0),
		sample.New(2, 20, 0),
	})
	assert.Equal(t, 2, h.Len())

	h.Append([]sample.Sample{
		sample.New(3, 30, 0),
		sample.New(4, 40, 0),
	})

	snap := h.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, sample.New(2, 20, 0), snap[0])
	assert.Equal(t, sample.New(3, 30, 0), snap[1])
	assert.Equal(t, sample.New(4, 40, 0), snap[2])
}

func TestHistory_SetMaxPoints(t *testing.T) {
	h := New(10)
	h.Append([]sample.Sample{
		sample.New(1, 1, 0),
		sample.New(2, 2, 0),
		sample.New(3, 3, 0),
		sample.New(4, 4, 0),
	})

	h.SetMaxPoints(2)
	snap := h.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, float64(3), snap[0].Timestamp)
	assert.Equal(t, float64(4), snap[1].Timestamp)
}

func TestHistory_Clear(t *testing.T) {
	h := New(10)
	h.Append([]sample.Sample{sample.New(1, 1, 0)})

	h.Clear()
	assert.Equal(t, 0, h.Len())
	assert.Nil(t, h.Snapshot())
}

func TestHistory_SnapshotIsACopy(t *testing.T) {
	h := New(10)
	h.Append([]sample.Sample{sample.New(1, 1, 0)})

	snap := h.Snapshot()
	snap[0] = sample.New(99, 99, 9)

	assert.Equal(t, sample.New(1, 1, 0), h.Snapshot()[0])
}

func TestHistory_AgeSeries(t *testing.T) {
	t.Run("empty window", func(t *testing.T) {
		age, value, channel := New(10).AgeSeries()
		assert.Nil(t, age)
		assert.Nil(t, value)
		assert.Nil(t, channel)
	})

	t.Run("newest sample at age zero", func(t *testing.T) {
		h := New(10)
		h.Append([]sample.Sample{
			sample.New(1.0, 0.1, 0),
			sample.New(2.0, 0.2, 1),
			sample.New(3.0, 0.3, 2),
		})

		age, value, channel := h.AgeSeries()
		assert.Equal(t, []float32{2, 1, 0}, age)
		assert.Equal(t, []float32{0.1, 0.2, 0.3}, value)
		assert.Equal(t, []float32{0, 1, 2}, channel)
	})
}
