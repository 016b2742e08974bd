package quizengine

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := OpenSQLiteStore(filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func snapshotFor(t *testing.T, sess *Session) []byte {
	t.Helper()
	data, err := Serialize(sess)
	require.NoError(t, err)
	return data
}

func TestSQLiteStoreSaveLoad(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	sess := testSession(3)
	sess.UserID = "user-1"
	data := snapshotFor(t, sess)

	require.NoError(t, store.Save(ctx, sess.ID, data))

	loaded, err := store.Load(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, data, loaded)

	restored, err := Restore(loaded)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, restored.ID)
}

func TestSQLiteStoreUpsert(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	sess := testSession(2)
	require.NoError(t, store.Save(ctx, sess.ID, snapshotFor(t, sess)))

	sess.recordAnswer(sess.Questions[0], []int{0}, true)
	updated := snapshotFor(t, sess)
	require.NoError(t, store.Save(ctx, sess.ID, updated))

	loaded, err := store.Load(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, updated, loaded)

	summaries, err := store.List(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
}

func TestSQLiteStoreLoadMissing(t *testing.T) {
	store := openTestStore(t)
	_, err := store.Load(context.Background(), "missing")
	require.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSQLiteStoreDelete(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	sess := testSession(2)
	require.NoError(t, store.Save(ctx, sess.ID, snapshotFor(t, sess)))
	require.NoError(t, store.Delete(ctx, sess.ID))

	_, err := store.Load(ctx, sess.ID)
	require.ErrorIs(t, err, ErrSessionNotFound)

	// Deleting again is a no-op.
	require.NoError(t, store.Delete(ctx, sess.ID))
}

func TestSQLiteStoreListFiltersByUser(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	mine := testSession(2)
	mine.ID = "sess-mine"
	mine.UserID = "alice"
	theirs := testSession(2)
	theirs.ID = "sess-theirs"
	theirs.UserID = "bob"

	require.NoError(t, store.Save(ctx, mine.ID, snapshotFor(t, mine)))
	require.NoError(t, store.Save(ctx, theirs.ID, snapshotFor(t, theirs)))

	summaries, err := store.List(ctx, "alice", 0)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, "sess-mine", summaries[0].SessionID)
	assert.Equal(t, StatusActive, summaries[0].Status)

	all, err := store.List(ctx, "", 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestSQLiteStoreCleanupExpired(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	sess := testSession(2)
	require.NoError(t, store.Save(ctx, sess.ID, snapshotFor(t, sess)))

	// Nothing is old enough yet.
	n, err := store.CleanupExpired(ctx, time.Hour)
	require.NoError(t, err)
	assert.Zero(t, n)

	loadedBefore, err := store.Load(ctx, sess.ID)
	require.NoError(t, err)
	require.NotEmpty(t, loadedBefore)

	// With a zero max age everything saved before now is expired.
	n, err = store.CleanupExpired(ctx, -time.Second)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	_, err = store.Load(ctx, sess.ID)
	require.ErrorIs(t, err, ErrSessionNotFound)
}
