package sqlitestore_test

import (
	"path/filepath"
	"testing"

	"github.com/jrsteele09/go-dashboard-client/store"
	"github.com/jrsteele09/go-dashboard-client/store/sqlitestore"
	"github.com/stretchr/testify/require"
)

func TestOpenRequiresPath(t *testing.T) {
	_, err := sqlitestore.Open("  ")
	require.Error(t, err)
}

func TestSetGetDelete(t *testing.T) {
	s, err := sqlitestore.Open(filepath.Join(t.TempDir(), "client.db"))
	require.NoError(t, err)
	defer s.Close() //nolint:errcheck

	_, err = s.Get("session.token")
	require.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.Set("session.token", "token-1"))
	value, err := s.Get("session.token")
	require.NoError(t, err)
	require.Equal(t, "token-1", value)

	require.NoError(t, s.Set("session.token", "token-2"))
	value, err = s.Get("session.token")
	require.NoError(t, err)
	require.Equal(t, "token-2", value)

	require.NoError(t, s.Delete("session.token"))
	_, err = s.Get("session.token")
	require.ErrorIs(t, err, store.ErrNotFound)

	// Deleting an absent key is not an error
	require.NoError(t, s.Delete("session.token"))
}

func TestValuesSurviveReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.db")

	s, err := sqlitestore.Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Set("session.advertiser", "42"))
	require.NoError(t, s.Close())

	reopened, err := sqlitestore.Open(path)
	require.NoError(t, err)
	defer reopened.Close() //nolint:errcheck

	value, err := reopened.Get("session.advertiser")
	require.NoError(t, err)
	require.Equal(t, "42", value)
}
