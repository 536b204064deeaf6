package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"epifeed/internal/archive"
)

func setupTestStore(t *testing.T, keep int) *Store {
	t.Helper()
	store, err := New(filepath.Join(t.TempDir(), "nested", "archive.db"), keep)
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, store.Close())
	})
	return store
}

func TestNew_RequiresPath(t *testing.T) {
	_, err := New("", 1)
	assert.Error(t, err)
}

func TestStore_PutAndLatest(t *testing.T) {
	store := setupTestStore(t, 3)
	ctx := context.Background()
	base := time.Date(2020, 5, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.Put(ctx, archive.Entry{Key: "owid", Location: "https://example.org/a.csv", FetchedAt: base, Payload: []byte("a")}))
	require.NoError(t, store.Put(ctx, archive.Entry{Key: "owid", Location: "https://example.org/b.csv", FetchedAt: base.Add(time.Hour), Payload: []byte("b")}))
	require.NoError(t, store.Put(ctx, archive.Entry{Key: "jhu", Location: "/snap/05-01-2020.csv", FetchedAt: base.Add(2 * time.Hour), Payload: []byte("j")}))

	latest, err := store.Latest(ctx, "owid")
	require.NoError(t, err)
	assert.Equal(t, []byte("b"), latest.Payload)
	assert.Equal(t, "https://example.org/b.csv", latest.Location)
	assert.True(t, base.Add(time.Hour).Equal(latest.FetchedAt))
	assert.NotEmpty(t, latest.ID)

	latest, err = store.Latest(ctx, "jhu")
	require.NoError(t, err)
	assert.Equal(t, []byte("j"), latest.Payload)
}

func TestStore_SubSecondOrdering(t *testing.T) {
	store := setupTestStore(t, 5)
	ctx := context.Background()
	base := time.Date(2020, 5, 1, 12, 0, 5, 0, time.UTC)

	require.NoError(t, store.Put(ctx, archive.Entry{Key: "k", Location: "x", FetchedAt: base.Add(100 * time.Millisecond), Payload: []byte("later")}))
	require.NoError(t, store.Put(ctx, archive.Entry{Key: "k", Location: "x", FetchedAt: base, Payload: []byte("earlier")}))

	latest, err := store.Latest(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("later"), latest.Payload)
}

func TestStore_PrunesBeyondKeep(t *testing.T) {
	store := setupTestStore(t, 2)
	ctx := context.Background()
	base := time.Date(2020, 5, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 4; i++ {
		require.NoError(t, store.Put(ctx, archive.Entry{Key: "owid", Location: "u", FetchedAt: base.Add(time.Duration(i) * time.Minute), Payload: []byte{byte('0' + i)}}))
	}

	var count int
	require.NoError(t, store.db.QueryRow("SELECT COUNT(*) FROM raw_payloads WHERE source_key = 'owid'").Scan(&count))
	assert.Equal(t, 2, count)

	latest, err := store.Latest(ctx, "owid")
	require.NoError(t, err)
	assert.Equal(t, []byte("3"), latest.Payload)
}

func TestStore_LatestMissing(t *testing.T) {
	store := setupTestStore(t, 1)

	_, err := store.Latest(context.Background(), "covidtracking")
	assert.ErrorIs(t, err, archive.ErrNoEntry)
}

func TestStore_PutRequiresKey(t *testing.T) {
	store := setupTestStore(t, 1)

	err := store.Put(context.Background(), archive.Entry{Payload: []byte("x")})
	assert.Error(t, err)
}

func TestNopArchive(t *testing.T) {
	var a archive.Archive = &archive.NopArchive{}
	require.NoError(t, a.Put(context.Background(), archive.Entry{Key: "owid"}))

	_, err := a.Latest(context.Background(), "owid")
	assert.ErrorIs(t, err, archive.ErrNoEntry)
	assert.NoError(t, a.Close())
}
