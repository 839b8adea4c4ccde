package session

import (
	"strconv"

	"github.com/jrsteele09/go-dashboard-client/store"
)

// ScopeKey is the durable store key holding the active advertiser id.
const ScopeKey = "session.advertiser"

// ScopeStore persists the active advertiser id as a decimal string. Like
// TokenStore it reads and writes the durable store on every call and degrades
// to "no scope" on store failure.
type ScopeStore struct {
	repo store.Repo
}

func NewScopeStore(repo store.Repo) *ScopeStore {
	return &ScopeStore{repo: repo}
}

// Get returns the active advertiser id, false when no scope is selected,
// the stored value is malformed, or the store is unavailable.
func (ss *ScopeStore) Get() (int64, bool) {
	value, err := ss.repo.Get(ScopeKey)
	if err != nil {
		return 0, false
	}
	id, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// Set stores the advertiser id, best effort.
func (ss *ScopeStore) Set(id int64) {
	_ = ss.repo.Set(ScopeKey, strconv.FormatInt(id, 10))
}

// Clear removes the scope, best effort.
func (ss *ScopeStore) Clear() {
	_ = ss.repo.Delete(ScopeKey)
}
