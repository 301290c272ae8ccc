package delivery

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fakeyudi/replaycap/internal/config"
	"github.com/fakeyudi/replaycap/internal/replay"
	"github.com/fakeyudi/replaycap/internal/rrweb"
)

func testSegment() replay.Segment {
	start := rrweb.FromMillis(1_700_000_000_000)
	return replay.Segment{
		Metadata: replay.SegmentMetadata{
			ReplayID:             "0123456789abcdef0123456789abcdef",
			SegmentID:            2,
			Type:                 replay.TypeSession,
			Timestamp:            start.Add(5 * time.Second),
			ReplayStartTimestamp: start,
		},
		Payload: []rrweb.Event{&rrweb.MetaEvent{Timestamp: start, Width: 432, Height: 768}},
	}
}

func TestStreamValues(t *testing.T) {
	seg := testSegment()
	env, err := NewEnvelope(seg)
	require.NoError(t, err)

	values := streamValues(seg, env, nil)
	assert.Equal(t, "replay", values["category"])
	assert.Equal(t, "2", values["segment_id"])
	assert.Equal(t, seg.Metadata.ReplayID, values["replay_id"])
	assert.NotContains(t, values, "video")

	values = streamValues(seg, env, []byte{0xff, 0xd8})
	assert.Equal(t, []byte{0xff, 0xd8}, values["video"])
}

func TestNewRedisSinkValidates(t *testing.T) {
	_, err := NewRedisSink(context.Background(), config.Redis{Stream: "s"}, nil)
	assert.ErrorContains(t, err, "addr is required")

	_, err = NewRedisSink(context.Background(), config.Redis{Addr: "localhost:6379"}, nil)
	assert.ErrorContains(t, err, "stream is required")
}

func TestRedisSinkPingFailure(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	// Port 1 is never a Redis server.
	_, err := NewRedisSink(ctx, config.Redis{Addr: "127.0.0.1:1", Stream: "s"}, nil)
	assert.ErrorContains(t, err, "redis ping failed")
}

// Runs against a live server when REPLAYCAP_REDIS_ADDR is set.
func TestRedisSinkIntegration(t *testing.T) {
	addr := os.Getenv("REPLAYCAP_REDIS_ADDR")
	if addr == "" {
		t.Skip("REPLAYCAP_REDIS_ADDR not set")
	}

	ctx := context.Background()
	stream := "replaycap:test:" + replay.NewID()
	sink, err := NewRedisSink(ctx, config.Redis{Addr: addr, Stream: stream, MaxLen: 100}, nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = sink.client.Del(ctx, stream).Err()
		_ = sink.Close()
		_ = sink.Close() // idempotent
	})

	require.NoError(t, sink.Submit(ctx, testSegment()))

	entries, err := sink.client.XRange(ctx, stream, "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "2", entries[0].Values["segment_id"])

	_, events, err := ParseRecording([]byte(entries[0].Values["replay_recording"].(string)))
	require.NoError(t, err)
	assert.Len(t, events, 1)
}
