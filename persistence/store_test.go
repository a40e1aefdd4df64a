package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/agenthive/types"
)

func TestMemoryStore_SaveGetAndRecent(t *testing.T) {
	t.Parallel()

	s := NewMemoryMessageStore(0)
	ctx := context.Background()

	first := types.NewMessage("a", types.KindRequest)
	second := types.NewMessage("b", types.KindResponse)
	require.NoError(t, s.SaveMessage(ctx, &first))
	require.NoError(t, s.SaveMessage(ctx, &second))

	got, err := s.GetMessage(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)
	assert.Equal(t, first.Kind, got.Kind)

	recent, err := s.RecentMessages(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, second.ID, recent[0].ID, "newest comes first")

	_, err = s.GetMessage(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_CapEvictsOldest(t *testing.T) {
	t.Parallel()

	s := NewMemoryMessageStore(2)
	ctx := context.Background()

	msgs := make([]types.Message, 3)
	for i := range msgs {
		msgs[i] = types.NewMessage("a", types.KindRequest)
		require.NoError(t, s.SaveMessage(ctx, &msgs[i]))
	}

	_, err := s.GetMessage(ctx, msgs[0].ID)
	assert.ErrorIs(t, err, ErrNotFound)

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalMessages)
}

func TestMemoryStore_Cleanup(t *testing.T) {
	t.Parallel()

	s := NewMemoryMessageStore(0)
	ctx := context.Background()

	old := types.NewMessage("a", types.KindRequest)
	old.CreatedAt = time.Now().Add(-2 * time.Hour)
	fresh := types.NewMessage("a", types.KindRequest)
	require.NoError(t, s.SaveMessage(ctx, &old))
	require.NoError(t, s.SaveMessage(ctx, &fresh))

	removed, err := s.Cleanup(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = s.GetMessage(ctx, old.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetMessage(ctx, fresh.ID)
	assert.NoError(t, err)
}

func TestMemoryStore_ClosedRejectsOperations(t *testing.T) {
	t.Parallel()

	s := NewMemoryMessageStore(0)
	require.NoError(t, s.Close())

	msg := types.NewMessage("a", types.KindRequest)
	assert.ErrorIs(t, s.SaveMessage(context.Background(), &msg), ErrStoreClosed)
	assert.ErrorIs(t, s.Ping(context.Background()), ErrStoreClosed)
}

func TestMemoryStore_InvalidInput(t *testing.T) {
	t.Parallel()

	s := NewMemoryMessageStore(0)
	assert.ErrorIs(t, s.SaveMessage(context.Background(), nil), ErrInvalidInput)
	assert.ErrorIs(t, s.SaveMessage(context.Background(), &types.Message{}), ErrInvalidInput)
}

func newRedisStore(t *testing.T, cap int) *RedisMessageStore {
	t.Helper()
	mr := miniredis.RunT(t)
	s, err := NewRedisMessageStore(RedisConfig{Addr: mr.Addr(), Cap: cap})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRedisStore_SaveGetAndRecent(t *testing.T) {
	t.Parallel()

	s := newRedisStore(t, 0)
	ctx := context.Background()

	first := types.NewMessage("a", types.KindRequest).WithPayload(map[string]any{"text": "hi"})
	second := types.NewMessage("b", types.KindResponse)
	require.NoError(t, s.SaveMessage(ctx, &first))
	require.NoError(t, s.SaveMessage(ctx, &second))

	got, err := s.GetMessage(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)
	assert.Equal(t, "hi", got.Payload["text"])

	recent, err := s.RecentMessages(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, second.ID, recent[0].ID)

	_, err = s.GetMessage(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStore_CapTrimsIndex(t *testing.T) {
	t.Parallel()

	s := newRedisStore(t, 2)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		msg := types.NewMessage("a", types.KindRequest)
		require.NoError(t, s.SaveMessage(ctx, &msg))
	}

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalMessages)
}

func TestRedisStore_Cleanup(t *testing.T) {
	t.Parallel()

	s := newRedisStore(t, 0)
	ctx := context.Background()

	old := types.NewMessage("a", types.KindRequest)
	old.CreatedAt = time.Now().Add(-2 * time.Hour)
	fresh := types.NewMessage("a", types.KindRequest)
	require.NoError(t, s.SaveMessage(ctx, &old))
	require.NoError(t, s.SaveMessage(ctx, &fresh))

	removed, err := s.Cleanup(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	recent, err := s.RecentMessages(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, fresh.ID, recent[0].ID)
}

func TestRedisStore_ConnectFailure(t *testing.T) {
	t.Parallel()

	_, err := NewRedisMessageStore(RedisConfig{Addr: "127.0.0.1:1"})
	require.Error(t, err)
}
