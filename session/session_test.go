package session_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-dashboard-client/session"
	"github.com/jrsteele09/go-dashboard-client/store/repofakes"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestUserAdvertisers(t *testing.T) {
	user := &session.User{
		Advertisers: []session.Advertiser{{ID: 5, Name: "Acme"}, {ID: 6, Name: "Globex"}},
	}

	require.True(t, user.HasAdvertiser(5))
	require.True(t, user.HasAdvertiser(6))
	require.False(t, user.HasAdvertiser(7))

	first, ok := user.FirstAdvertiser()
	require.True(t, ok)
	require.Equal(t, int64(5), first)

	var nilUser *session.User
	require.False(t, nilUser.HasAdvertiser(5))
	_, ok = nilUser.FirstAdvertiser()
	require.False(t, ok)

	empty := &session.User{}
	_, ok = empty.FirstAdvertiser()
	require.False(t, ok)
}

func TestTokenStoreRoundTrip(t *testing.T) {
	repo := repofakes.NewFakeStoreRepo()
	tokens := session.NewTokenStore(repo)

	require.Empty(t, tokens.Get())

	tokens.Set("bearer-token")
	require.Equal(t, "bearer-token", tokens.Get())

	tokens.Clear()
	require.Empty(t, tokens.Get())
}

func TestTokenStoreDegradesOnStoreFailure(t *testing.T) {
	repo := repofakes.NewFakeStoreRepo()
	tokens := session.NewTokenStore(repo)
	tokens.Set("bearer-token")

	repo.FailWith(errors.New("quota exceeded"))

	// A failing store reads as "no session" and writes never panic.
	require.Empty(t, tokens.Get())
	tokens.Set("other")
	tokens.Clear()
}

func TestScopeStoreRoundTrip(t *testing.T) {
	repo := repofakes.NewFakeStoreRepo()
	scope := session.NewScopeStore(repo)

	_, ok := scope.Get()
	require.False(t, ok)

	scope.Set(42)
	id, ok := scope.Get()
	require.True(t, ok)
	require.Equal(t, int64(42), id)

	// Persisted as a decimal string under its own key
	raw, err := repo.Get(session.ScopeKey)
	require.NoError(t, err)
	require.Equal(t, "42", raw)

	scope.Clear()
	_, ok = scope.Get()
	require.False(t, ok)
}

func TestScopeStoreToleratesMalformedValue(t *testing.T) {
	repo := repofakes.NewFakeStoreRepo()
	require.NoError(t, repo.Set(session.ScopeKey, "not-a-number"))

	scope := session.NewScopeStore(repo)
	_, ok := scope.Get()
	require.False(t, ok)
}

func TestScopeStoreDegradesOnStoreFailure(t *testing.T) {
	repo := repofakes.NewFakeStoreRepo()
	scope := session.NewScopeStore(repo)
	scope.Set(42)

	repo.FailWith(errors.New("store unavailable"))
	_, ok := scope.Get()
	require.False(t, ok)
}

func TestExpired(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	signedToken := func(exp time.Time) string {
		t.Helper()
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"sub": "user-1",
			"exp": exp.Unix(),
		})
		signed, err := token.SignedString([]byte("test-secret"))
		require.NoError(t, err)
		return signed
	}

	require.True(t, session.Expired(signedToken(now.Add(-time.Minute)), now))
	require.False(t, session.Expired(signedToken(now.Add(time.Hour)), now))

	// Opaque tokens and JWTs without exp are never locally expired.
	require.False(t, session.Expired("opaque-bearer-token", now))
	withoutExp := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "user-1"})
	signed, err := withoutExp.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	require.False(t, session.Expired(signed, now))
}
