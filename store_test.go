package quizengine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_, err := store.Load(ctx, "missing")
	require.ErrorIs(t, err, ErrSessionNotFound)

	require.NoError(t, store.Save(ctx, "a", []byte(`{"x":1}`)))
	data, err := store.Load(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"x":1}`), data)

	// The store holds its own copy; mutating the returned slice must not
	// corrupt the snapshot.
	data[0] = '!'
	again, err := store.Load(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"x":1}`), again)

	require.NoError(t, store.Delete(ctx, "a"))
	_, err = store.Load(ctx, "a")
	require.ErrorIs(t, err, ErrSessionNotFound)
}
