package cache_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/jrsteele09/go-dashboard-client/cache"
	"github.com/jrsteele09/go-dashboard-client/store/repofakes"
	"github.com/stretchr/testify/require"
)

func TestSnapshotRoundTrip(t *testing.T) {
	f := setupTestFixture(t)

	_, err := f.cache.Fetch(context.Background(), "/api/campaigns")
	require.NoError(t, err)
	f.fetcher.respond(`{"v":"reports"}`)
	_, err = f.cache.Fetch(context.Background(), "/api/reports")
	require.NoError(t, err)

	require.NoError(t, f.cache.SaveSnapshot())

	// The snapshot is a JSON array of [key, value] pairs under its own key.
	raw, err := f.repo.Get(cache.SnapshotKey)
	require.NoError(t, err)
	var pairs [][]json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(raw), &pairs))
	require.Len(t, pairs, 2)
	for _, pair := range pairs {
		require.Len(t, pair, 2)
		var key string
		require.NoError(t, json.Unmarshal(pair[0], &key))
		require.Contains(t, key, cache.KeyPrefix+"::5::")
	}

	// A new cache over the same store serves the last-known value on the
	// very first read while revalidating in the background.
	restoredFetcher := &fakeFetcher{response: json.RawMessage(`{"v":"fresh"}`)}
	restored, err := cache.New(restoredFetcher, f.scope, f.repo)
	require.NoError(t, err)

	result := restored.Read("/api/campaigns")
	require.True(t, result.IsLoading)
	require.JSONEq(t, `{"v":1}`, string(result.Value))

	eventually(t, func() bool { return !restored.Read("/api/campaigns").IsLoading })
	require.JSONEq(t, `{"v":"fresh"}`, string(restored.Read("/api/campaigns").Value))
}

func TestSnapshotSkipsErrorEntries(t *testing.T) {
	f := setupTestFixture(t)

	_, err := f.cache.Fetch(context.Background(), "/api/campaigns")
	require.NoError(t, err)

	f.fetcher.mu.Lock()
	f.fetcher.err = context.DeadlineExceeded
	f.fetcher.response = nil
	f.fetcher.mu.Unlock()
	_, err = f.cache.Fetch(context.Background(), "/api/broken")
	require.Error(t, err)

	require.NoError(t, f.cache.SaveSnapshot())

	raw, err := f.repo.Get(cache.SnapshotKey)
	require.NoError(t, err)
	var pairs [][]json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(raw), &pairs))
	require.Len(t, pairs, 1)
}

func TestSnapshotIsBounded(t *testing.T) {
	f := setupTestFixture(t, cache.WithMaxEntries(2))

	for _, endpoint := range []string{"/api/a", "/api/b", "/api/c"} {
		_, err := f.cache.Fetch(context.Background(), endpoint)
		require.NoError(t, err)
	}

	require.NoError(t, f.cache.SaveSnapshot())

	raw, err := f.repo.Get(cache.SnapshotKey)
	require.NoError(t, err)
	var pairs [][]json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(raw), &pairs))
	require.LessOrEqual(t, len(pairs), 2)
}

func TestCorruptSnapshotIsDiscarded(t *testing.T) {
	repo := repofakes.NewFakeStoreRepo()
	require.NoError(t, repo.Set(cache.SnapshotKey, "not-json"))

	scope := &fakeScope{}
	scope.set(5)
	fetcher := &fakeFetcher{response: json.RawMessage(`{"v":1}`)}

	rc, err := cache.New(fetcher, scope, repo)
	require.NoError(t, err)

	result := rc.Read("/api/campaigns")
	require.Nil(t, result.Value)
	require.True(t, result.IsLoading)
}
