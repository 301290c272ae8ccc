package delivery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fakeyudi/replaycap/internal/config"
	"github.com/fakeyudi/replaycap/internal/replay"
)

const (
	defaultRedisPoolSize    = 4
	defaultRedisMaxRetries  = 3
	defaultRedisDialTimeout = 5 * time.Second
)

// RedisSink appends each segment to a Redis stream as a single entry.
type RedisSink struct {
	client redis.UniversalClient
	stream string
	maxLen int64
	log    *slog.Logger

	closeOnce sync.Once
	closeErr  error
}

// NewRedisSink connects to cfg.Addr and verifies the server answers.
func NewRedisSink(ctx context.Context, cfg config.Redis, log *slog.Logger) (*RedisSink, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis addr is required")
	}
	if cfg.Stream == "" {
		return nil, errors.New("redis stream is required")
	}
	if log == nil {
		log = slog.Default()
	}

	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		PoolSize:    defaultRedisPoolSize,
		MaxRetries:  defaultRedisMaxRetries,
		DialTimeout: defaultRedisDialTimeout,
	})
	s := newRedisSink(client, cfg, log)
	if err := s.pingWithRetry(ctx, defaultRedisMaxRetries); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	log.Debug("delivery: redis connected", "addr", cfg.Addr, "stream", cfg.Stream)
	return s, nil
}

func newRedisSink(client redis.UniversalClient, cfg config.Redis, log *slog.Logger) *RedisSink {
	return &RedisSink{client: client, stream: cfg.Stream, maxLen: cfg.MaxLen, log: log}
}

// Submit adds the segment to the stream. The stream is trimmed
// approximately to MaxLen entries when MaxLen is positive.
func (s *RedisSink) Submit(ctx context.Context, seg replay.Segment) error {
	env, err := NewEnvelope(seg)
	if err != nil {
		return err
	}
	var video []byte
	if env.VideoPath != "" {
		video, err = os.ReadFile(env.VideoPath)
		if err != nil {
			return &replay.IOError{Op: "read", Path: env.VideoPath, Err: err}
		}
	}

	args := &redis.XAddArgs{
		Stream: s.stream,
		Values: streamValues(seg, env, video),
	}
	if s.maxLen > 0 {
		args.MaxLen = s.maxLen
		args.Approx = true
	}
	id, err := s.client.XAdd(ctx, args).Result()
	if err != nil {
		return fmt.Errorf("redis xadd %s: %w", s.stream, err)
	}
	s.log.Debug("delivery: segment streamed", "stream", s.stream, "entry", id,
		"replay_id", seg.Metadata.ReplayID, "segment_id", seg.Metadata.SegmentID)
	return nil
}

// Close releases Redis resources. It is idempotent.
func (s *RedisSink) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.client.Close()
	})
	return s.closeErr
}

// streamValues lays out the fields of a stream entry.
func streamValues(seg replay.Segment, env Envelope, video []byte) map[string]any {
	values := map[string]any{
		"category":         env.Category.String(),
		"replay_id":        seg.Metadata.ReplayID,
		"segment_id":       strconv.Itoa(seg.Metadata.SegmentID),
		"replay_event":     string(env.Event),
		"replay_recording": string(env.Recording),
	}
	if video != nil {
		values["video"] = video
	}
	return values
}

func (s *RedisSink) pingWithRetry(ctx context.Context, maxRetries int) error {
	attempts := maxRetries + 1
	if attempts < 1 {
		attempts = 1
	}

	backoff := 100 * time.Millisecond
	var lastErr error
	for i := 0; i < attempts; i++ {
		if err := s.client.Ping(ctx).Err(); err == nil {
			return nil
		} else {
			lastErr = err
		}

		if i == attempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}

		backoff *= 2
	}

	if lastErr == nil {
		lastErr = errors.New("ping failed with unknown error")
	}
	return lastErr
}
