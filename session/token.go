package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-dashboard-client/store"
)

// TokenKey is the durable store key holding the bearer token.
const TokenKey = "session.token"

// TokenStore persists the bearer credential. Every call goes straight to the
// durable store; there is no in-memory copy. A failing store degrades to
// "no session" rather than surfacing an error, so the app stays usable
// (unauthenticated) when storage is restricted.
type TokenStore struct {
	repo store.Repo
}

func NewTokenStore(repo store.Repo) *TokenStore {
	return &TokenStore{repo: repo}
}

// Get returns the stored token, empty when absent or the store is unavailable.
func (ts *TokenStore) Get() string {
	value, err := ts.repo.Get(TokenKey)
	if err != nil {
		return ""
	}
	return value
}

// Set stores the token, best effort.
func (ts *TokenStore) Set(token string) {
	_ = ts.repo.Set(TokenKey, token)
}

// Clear removes the token, best effort.
func (ts *TokenStore) Clear() {
	_ = ts.repo.Delete(TokenKey)
}

// Expired reports whether token is a JWT with an exp claim in the past.
// Opaque tokens and tokens without exp are never considered locally expired;
// the server remains the authority via its 401 responses.
func Expired(token string, now time.Time) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return exp.Before(now)
}
