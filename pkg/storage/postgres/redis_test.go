package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/pastebin/pkg/access"
	"github.com/platinummonkey/pastebin/pkg/auth"
	"github.com/platinummonkey/pastebin/pkg/storage"
)

func newTestRedis(t *testing.T) (*RedisClient, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)

	cfg := storage.DefaultConfig()
	cfg.RedisURL = "redis://" + mr.Addr()
	cfg.PasteCacheTTL = time.Minute

	client, err := NewRedisClient(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client, mr
}

func TestNewRedisClient_InvalidURL(t *testing.T) {
	cfg := storage.DefaultConfig()
	cfg.RedisURL = "not a url"
	_, err := NewRedisClient(cfg)
	assert.Error(t, err)
}

func TestRedisClient_PasteCache(t *testing.T) {
	client, mr := newTestRedis(t)
	ctx := context.Background()

	_, ok, err := client.GetPaste(ctx, "abc")
	require.NoError(t, err)
	assert.False(t, ok)

	creator := int64(7)
	p := storage.Paste{
		ID: "abc", Creator: &creator, Visibility: access.Private, Title: "t", Content: "c",
		CreatedAt: time.Unix(1700000000, 0).UTC(), ModifiedAt: time.Unix(1700000000, 0).UTC(),
	}
	require.NoError(t, client.SetPaste(ctx, p))
	assert.Equal(t, time.Minute, mr.TTL("paste:abc"))

	got, ok, err := client.GetPaste(ctx, "abc")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, p, got)

	require.NoError(t, client.InvalidatePaste(ctx, "abc"))
	_, ok, err = client.GetPaste(ctx, "abc")
	require.NoError(t, err)
	assert.False(t, ok)

	// corrupt entries are dropped
	require.NoError(t, mr.Set("paste:bad", "{not json"))
	_, ok, err = client.GetPaste(ctx, "bad")
	assert.Error(t, err)
	assert.False(t, ok)
	assert.False(t, mr.Exists("paste:bad"))

	assert.NoError(t, client.Ping(ctx))
}

func TestStore_PasteCacheReadThrough(t *testing.T) {
	cache, mr := newTestRedis(t)
	db := setupTestDB(t)
	s := NewWithDB(db, Options{Cache: cache})
	ctx := context.Background()

	now := time.Unix(1700000000, 0).UTC()
	require.NoError(t, s.CreatePaste(ctx, storage.Paste{
		ID: "p1", Visibility: access.Public, Title: "t", Content: "c", CreatedAt: now, ModifiedAt: now,
	}))
	assert.False(t, mr.Exists("paste:p1"))

	_, err := s.GetPaste(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, mr.Exists("paste:p1"), "read populates the cache")

	require.NoError(t, s.UpdatePaste(ctx, storage.Paste{
		ID: "p1", Visibility: access.Private, Title: "t2", Content: "c", ModifiedAt: now,
	}))
	assert.False(t, mr.Exists("paste:p1"), "update invalidates")

	p, err := s.GetPaste(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, access.Private, p.Visibility)

	ok, err := s.DeletePaste(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.False(t, mr.Exists("paste:p1"))

	// cache outage falls back to the database
	mr.Close()
	_, err = s.GetPaste(ctx, "p1")
	assert.ErrorIs(t, err, auth.ErrNotFound)
}
