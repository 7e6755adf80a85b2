package session

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeID(t *testing.T) {
	assert.Equal(t, "abc-123_XYZ", SanitizeID("abc-123_XYZ"))
	assert.Equal(t, "a_b_c", SanitizeID("a/b:c"))
	assert.Equal(t, "____", SanitizeID("../."))
}

func TestFileStore_SaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)

	snap := Snapshot{
		SessionID: "sess/with:unsafe chars",
		Turns: []Turn{
			{Index: 0, RequestID: "r1", Question: "q1", Answer: "a1"},
			{Index: 1, RequestID: "r2", Question: "q2", Answer: "a2"},
		},
	}
	require.NoError(t, store.Save(context.Background(), snap))

	// Both the log and the structured record exist under sanitized names
	logData, err := os.ReadFile(filepath.Join(dir, "sess_with_unsafe_chars.log"))
	require.NoError(t, err)
	assert.Equal(t, "Q: q1\nA: a1\n\nQ: q2\nA: a2\n\n", string(logData))

	loaded, err := store.Load(context.Background(), snap.SessionID)
	require.NoError(t, err)
	assert.Equal(t, snap.SessionID, loaded.SessionID)
	assert.Equal(t, snap.Turns, loaded.Turns)
}

func TestFileStore_LoadNotFound(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Load(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileStore_SaveReplacesEarlierRecord(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, Snapshot{
		SessionID: "s1",
		Turns:     []Turn{{Index: 0, Question: "q", Answer: "first"}},
	}))
	require.NoError(t, store.Save(ctx, Snapshot{
		SessionID: "s1",
		Turns:     []Turn{{Index: 0, Question: "q", Answer: "regenerated"}},
	}))

	loaded, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, loaded.Turns, 1)
	assert.Equal(t, "regenerated", loaded.Turns[0].Answer)
}

func setupRedisStore(t *testing.T, opts ...RedisOption) (*RedisStore, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewRedisStore(client, opts...), mr
}

func TestRedisStore_SaveAndLoad(t *testing.T) {
	store, _ := setupRedisStore(t)
	ctx := context.Background()

	snap := Snapshot{
		SessionID: "sess-1",
		Turns:     []Turn{{Index: 0, RequestID: "r1", Question: "q", Answer: "a"}},
	}
	require.NoError(t, store.Save(ctx, snap))

	loaded, err := store.Load(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, snap, loaded)
}

func TestRedisStore_LoadNotFound(t *testing.T) {
	store, _ := setupRedisStore(t)

	_, err := store.Load(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStore_TTLExpiry(t *testing.T) {
	store, mr := setupRedisStore(t, WithTTL(time.Minute), WithPrefix("testapp"))
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, Snapshot{
		SessionID: "sess-1",
		Turns:     []Turn{{Index: 0, Question: "q", Answer: "a"}},
	}))

	mr.FastForward(2 * time.Minute)

	_, err := store.Load(ctx, "sess-1")
	assert.ErrorIs(t, err, ErrNotFound)
}
