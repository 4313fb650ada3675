package credential

import (
	"testing"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/require"
)

func TestStoreRoundTrip(t *testing.T) {
	store := New(keyring.NewArrayKeyring(nil))

	_, err := store.Get("ai.api_key")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Set("ai.api_key", "sk-123"))
	got, err := store.Get("ai.api_key")
	require.NoError(t, err)
	require.Equal(t, "sk-123", got)

	require.NoError(t, store.Set("ai.api_key", "sk-456"))
	got, err = store.Get("ai.api_key")
	require.NoError(t, err)
	require.Equal(t, "sk-456", got)

	require.NoError(t, store.Delete("ai.api_key"))
	require.NoError(t, store.Delete("ai.api_key"))

	_, err = store.Get("ai.api_key")
	require.ErrorIs(t, err, ErrNotFound)
}
