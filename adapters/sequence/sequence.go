// Package sequence allocates human-readable quote numbers: {prefix}{YYYYMMDD}{seq:04d}.
package sequence

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	qerrors "model-quote/internal/errors"
)

// dayKeyTTL keeps a day's counter alive past midnight in any timezone
const dayKeyTTL = 48 * time.Hour

// Sequencer hands out per-day sequence numbers starting at 1
type Sequencer interface {
	Next(ctx context.Context, day time.Time) (int64, error)
}

// Format renders a quote number
func Format(prefix string, day time.Time, seq int64) string {
	return fmt.Sprintf("%s%s%04d", prefix, day.Format("20060102"), seq)
}

// Numberer combines a prefix with a sequencer
type Numberer struct {
	prefix string
	seq    Sequencer
}

// NewNumberer creates a quote numberer
func NewNumberer(prefix string, seq Sequencer) *Numberer {
	return &Numberer{prefix: prefix, seq: seq}
}

// Next returns the next quote number for day
func (n *Numberer) Next(ctx context.Context, day time.Time) (string, error) {
	seq, err := n.seq.Next(ctx, day)
	if err != nil {
		return "", err
	}
	return Format(n.prefix, day, seq), nil
}

// RedisSequencer counts with INCR on quote_no:{YYYYMMDD}
type RedisSequencer struct {
	client *redis.Client
}

// NewRedisSequencer creates a redis-backed sequencer
func NewRedisSequencer(client *redis.Client) *RedisSequencer {
	return &RedisSequencer{client: client}
}

// Next implements Sequencer
func (s *RedisSequencer) Next(ctx context.Context, day time.Time) (int64, error) {
	key := "quote_no:" + day.Format("20060102")

	var incr *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, dayKeyTTL)
		return nil
	})
	if err != nil {
		return 0, qerrors.Internal("allocate quote sequence", err)
	}
	return incr.Val(), nil
}

// MemorySequencer counts in process
type MemorySequencer struct {
	mu     sync.Mutex
	counts map[string]int64
}

// NewMemorySequencer creates an in-process sequencer
func NewMemorySequencer() *MemorySequencer {
	return &MemorySequencer{counts: make(map[string]int64)}
}

// Next implements Sequencer
func (s *MemorySequencer) Next(_ context.Context, day time.Time) (int64, error) {
	key := day.Format("20060102")

	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts[key]++
	return s.counts[key], nil
}
