package sequence

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"model-quote/internal/db"
	qerrors "model-quote/internal/errors"
)

var day = time.Date(2026, 3, 1, 15, 4, 5, 0, time.UTC)

func TestFormat(t *testing.T) {
	assert.Equal(t, "QT202603010007", Format("QT", day, 7))
	assert.Equal(t, "QT2026030112345", Format("QT", day, 12345))
}

func TestMemorySequencerPerDay(t *testing.T) {
	ctx := context.Background()
	n := NewNumberer("QT", NewMemorySequencer())

	first, err := n.Next(ctx, day)
	require.NoError(t, err)
	second, err := n.Next(ctx, day)
	require.NoError(t, err)
	nextDay, err := n.Next(ctx, day.AddDate(0, 0, 1))
	require.NoError(t, err)

	assert.Equal(t, "QT202603010001", first)
	assert.Equal(t, "QT202603010002", second)
	assert.Equal(t, "QT202603020001", nextDay)
}

func TestMemorySequencerConcurrent(t *testing.T) {
	ctx := context.Background()
	seq := NewMemorySequencer()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[int64]bool)
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := seq.Next(ctx, day)
			assert.NoError(t, err)
			mu.Lock()
			seen[v] = true
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Len(t, seen, 50)
}

func TestRedisSequencer(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	n := NewNumberer("QT", NewRedisSequencer(client))
	a, err := n.Next(ctx, day)
	require.NoError(t, err)
	b, err := n.Next(ctx, day)
	require.NoError(t, err)
	other, err := n.Next(ctx, day.AddDate(0, 0, 1))
	require.NoError(t, err)

	assert.Equal(t, "QT202603010001", a)
	assert.Equal(t, "QT202603010002", b)
	assert.Equal(t, "QT202603020001", other)

	got, err := mr.Get("quote_no:20260301")
	require.NoError(t, err)
	assert.Equal(t, "2", got)
	assert.Equal(t, 48*time.Hour, mr.TTL("quote_no:20260301"))

	mr.FastForward(49 * time.Hour)
	assert.False(t, mr.Exists("quote_no:20260301"))
	again, err := n.Next(ctx, day)
	require.NoError(t, err)
	assert.Equal(t, "QT202603010001", again)
}

func TestRedisSequencerUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()

	_, err := NewRedisSequencer(client).Next(context.Background(), day)
	require.Error(t, err)
	assert.True(t, qerrors.IsType(err, qerrors.TypeInternal))
}

func TestGormSequencer(t *testing.T) {
	conn, err := db.Open(filepath.Join(t.TempDir(), "seq.db"))
	require.NoError(t, err)
	require.NoError(t, db.Migrate(conn))
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	ctx := context.Background()
	n := NewNumberer("QT", NewGormSequencer(conn))
	var got []string
	for i := 0; i < 3; i++ {
		no, err := n.Next(ctx, day)
		require.NoError(t, err)
		got = append(got, no)
	}
	other, err := n.Next(ctx, day.AddDate(0, 0, 1))
	require.NoError(t, err)

	assert.Equal(t, []string{"QT202603010001", "QT202603010002", "QT202603010003"}, got)
	assert.Equal(t, "QT202603020001", other)

	// a fresh sequencer on the same database continues the count
	again, err := NewNumberer("QT", NewGormSequencer(conn)).Next(ctx, day)
	require.NoError(t, err)
	assert.Equal(t, "QT202603010004", again)
}
