package redissink

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyberinferno/datastream/datareceiver"
	"github.com/cyberinferno/datastream/logger"
	"github.com/cyberinferno/datastream/sample"
)

func newTestSink(t *testing.T) (*Sink, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return New(client, "samples", logger.NewNopLogger()), client
}

func TestSink_Write(t *testing.T) {
	sink, client := newTestSink(t)
	ctx := context.Background()

	err := sink.Write(ctx, []sample.Sample{
		sample.New(1.5, 0.25, 3),
		sample.New(2.5, 0.5, 0),
	})
	require.NoError(t, err)

	msgs, err := client.XRange(ctx, "samples", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	assert.Equal(t, "1.5", msgs[0].Values["timestamp"])
	assert.Equal(t, "0.25", msgs[0].Values["value"])
	assert.Equal(t, "3", msgs[0].Values["channel"])

	assert.Equal(t, "2.5", msgs[1].Values["timestamp"])
	assert.Equal(t, "0.5", msgs[1].Values["value"])
	assert.Equal(t, "0", msgs[1].Values["channel"])
}

func TestSink_Write_EmptyBatch(t *testing.T) {
	sink, client := newTestSink(t)
	ctx := context.Background()

	require.NoError(t, sink.Write(ctx, nil))

	n, err := client.XLen(ctx, "samples").Result()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSink_Write_MaxLen(t *testing.T) {
	sink, client := newTestSink(t)
	sink.SetMaxLen(2)
	ctx := context.Background()

	var batch []sample.Sample
	for i := 0; i < 5; i++ {
		batch = append(batch, sample.New(float64(i), float32(i), 0))
	}
	require.NoError(t, sink.Write(ctx, batch))

	n, err := client.XLen(ctx, "samples").Result()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, int64(2))
	assert.LessOrEqual(t, n, int64(5))
}

func TestSink_Write_ClientError(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	t.Cleanup(func() { _ = client.Close() })

	sink := New(client, "samples", logger.NewNopLogger())
	err := sink.Write(context.Background(), []sample.Sample{sample.New(1, 1, 0)})
	assert.Error(t, err)
}

func TestSink_Attach_EndToEnd(t *testing.T) {
	sink, client := newTestSink(t)
	ctx := context.Background()

	cfg := datareceiver.DefaultConfig()
	cfg.UpdateInterval = 2 * time.Millisecond
	r := datareceiver.New(cfg, logger.NewNopLogger())
	t.Cleanup(r.Stop)

	sink.Attach(r)

	require.NoError(t, r.StartServer("127.0.0.1:0"))
	conn, err := net.Dial("tcp", r.ListenAddr().String())
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	_, err = conn.Write([]byte("1.0,2.0,0\n1.0,3.0,1\n"))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		n, err := client.XLen(ctx, "samples").Result()
		return err == nil && n == 2
	}, time.Second, 2*time.Millisecond)

	// The delivery tick drained the receiver's buffer into the stream.
	assert.Equal(t, 0, r.Len())

	msgs, err := client.XRange(ctx, "samples", "-", "+").Result()
	require.NoError(t, err)
	assert.Equal(t, "2", msgs[0].Values["value"])
	assert.Equal(t, "3", msgs[1].Values["value"])
}
