package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTermIndex_StoreAndSearch(t *testing.T) {
	t.Parallel()

	idx := NewTermIndex()
	ctx := context.Background()

	_, err := idx.Store(ctx, "deploy the payment service on fridays", map[string]string{"kind": "note"})
	require.NoError(t, err)
	_, err = idx.Store(ctx, "the cafeteria menu changed", map[string]string{"kind": "note"})
	require.NoError(t, err)

	results, err := idx.Search(ctx, "payment service deploy", nil, 5)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Contains(t, results[0].Entry.Content, "payment")
	assert.Greater(t, results[0].Score, 0.0)
}

func TestTermIndex_RankingByOverlap(t *testing.T) {
	t.Parallel()

	idx := NewTermIndex()
	ctx := context.Background()

	_, _ = idx.Store(ctx, "redis cache eviction policy", nil)
	_, _ = idx.Store(ctx, "redis cluster failover and cache warming", nil)

	results, err := idx.Search(ctx, "redis cache", nil, 5)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.GreaterOrEqual(t, results[0].Score, results[1].Score)
}

func TestTermIndex_FiltersMustMatch(t *testing.T) {
	t.Parallel()

	idx := NewTermIndex()
	ctx := context.Background()

	_, _ = idx.Store(ctx, "shared fact about releases", map[string]string{"team": "core"})
	_, _ = idx.Store(ctx, "another fact about releases", map[string]string{"team": "infra"})

	results, err := idx.Search(ctx, "releases fact", map[string]string{"team": "core"}, 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "core", results[0].Entry.Metadata["team"])
}

func TestTermIndex_TopKAndNoMatch(t *testing.T) {
	t.Parallel()

	idx := NewTermIndex()
	ctx := context.Background()
	for i := 0; i < 10; i++ {
		_, _ = idx.Store(ctx, "common topic entry", nil)
	}

	results, err := idx.Search(ctx, "common topic", nil, 3)
	require.NoError(t, err)
	assert.Len(t, results, 3)

	results, err = idx.Search(ctx, "unrelated zebra query", nil, 3)
	require.NoError(t, err)
	assert.Empty(t, results)
}
