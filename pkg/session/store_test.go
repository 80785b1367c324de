package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(ttl, maxDuration time.Duration) (*Store, *time.Time) {
	store := NewStore(ttl, maxDuration)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	return store, &now
}

func TestStore_CreateAndGet(t *testing.T) {
	store, _ := newTestStore(30*time.Minute, 2*time.Hour)

	sess := store.Create("trader-1", "Ada Electronics", "+2348000000000")
	require.NotEmpty(t, sess.ID)
	assert.Equal(t, "trader-1", sess.TraderID)
	assert.Equal(t, "Ada Electronics", sess.TraderName)
	assert.Equal(t, StateBrowsing, sess.State)

	got, err := store.Get(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, got.ID)
}

func TestStore_GetUnknown(t *testing.T) {
	store, _ := newTestStore(30*time.Minute, 2*time.Hour)

	_, err := store.Get("no-such-session")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_TTLExpiry(t *testing.T) {
	store, now := newTestStore(30*time.Minute, 2*time.Hour)

	sess := store.Create("trader-1", "Shop", "")

	*now = now.Add(31 * time.Minute)

	_, err := store.Get(sess.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 0, store.Len())
}

func TestStore_ActivityResetsTTL(t *testing.T) {
	store, now := newTestStore(30*time.Minute, 2*time.Hour)

	sess := store.Create("trader-1", "Shop", "")

	// Touch every 20 minutes; inactivity never exceeds the TTL
	for i := 0; i < 3; i++ {
		*now = now.Add(20 * time.Minute)
		_, err := store.Get(sess.ID)
		require.NoError(t, err)
	}
}

func TestStore_MaxDurationExpiry(t *testing.T) {
	store, now := newTestStore(30*time.Minute, 2*time.Hour)

	sess := store.Create("trader-1", "Shop", "")

	// Keep the session active past the absolute lifetime
	for i := 0; i < 6; i++ {
		*now = now.Add(20 * time.Minute)
		if _, err := store.Get(sess.ID); err != nil {
			break
		}
	}

	*now = now.Add(20 * time.Minute)
	_, err := store.Get(sess.ID)
	assert.ErrorIs(t, err, ErrNotFound, "session should expire at max duration despite activity")
}

func TestStore_Sweep(t *testing.T) {
	store, now := newTestStore(30*time.Minute, 2*time.Hour)

	store.Create("trader-1", "Shop", "")
	store.Create("trader-1", "Shop", "")
	fresh := store.Create("trader-2", "Other", "")

	*now = now.Add(31 * time.Minute)
	_, err := store.Get(fresh.ID)
	require.ErrorIs(t, err, ErrNotFound)

	// fresh already evicted on read; the sweep takes the other two
	evicted := store.Sweep()
	assert.Equal(t, 2, evicted)
	assert.Equal(t, 0, store.Len())
}

func TestStore_SweepSkipsPinned(t *testing.T) {
	store, now := newTestStore(30*time.Minute, 2*time.Hour)

	sess := store.Create("trader-1", "Shop", "")
	_, err := store.Acquire(sess.ID)
	require.NoError(t, err)

	*now = now.Add(31 * time.Minute)

	evicted := store.Sweep()
	assert.Equal(t, 0, evicted, "pinned session must survive the sweep")

	store.Release(sess.ID)
	evicted = store.Sweep()
	assert.Equal(t, 1, evicted)
}

func TestStore_UpdateAfterClose(t *testing.T) {
	store, _ := newTestStore(30*time.Minute, 2*time.Hour)

	sess := store.Create("trader-1", "Shop", "")
	require.True(t, store.Close(sess.ID))

	err := store.Update(sess.ID, sess)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_Close(t *testing.T) {
	store, _ := newTestStore(30*time.Minute, 2*time.Hour)

	sess := store.Create("trader-1", "Shop", "")
	assert.True(t, store.Close(sess.ID))
	assert.False(t, store.Close(sess.ID))
}
