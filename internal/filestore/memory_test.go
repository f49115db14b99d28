package filestore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	data := []byte("date,amount\n2024-01-01,12.50\n")
	require.NoError(t, s.Put(ctx, "k1", "text/csv", data))

	// Mutating the caller's slice must not change the stored copy.
	data[0] = 'X'

	got, err := s.Get(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, byte('d'), got[0])
	assert.Equal(t, 1, s.Len())

	require.NoError(t, s.Delete(ctx, "k1"))
	_, err = s.Get(ctx, "k1")
	assert.ErrorIs(t, err, ErrNotFound)

	// Deleting a missing key is not an error.
	assert.NoError(t, s.Delete(ctx, "k1"))
}

func TestKey(t *testing.T) {
	assert.Equal(t, "imports/u1/j1/stmt.pdf", Key("u1", "j1", "stmt.pdf"))
}
