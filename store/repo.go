package store

import "github.com/pkg/errors"

// ErrNotFound is returned by Get when no value exists for the key.
var ErrNotFound = errors.New("key not found")

// Repo is the durable key/value contract behind session state and cache
// snapshots. Values are opaque strings; callers own serialization.
type Repo interface {
	// Get retrieves the value for a key, ErrNotFound when absent
	Get(key string) (string, error)

	// Set creates or replaces the value for a key
	Set(key, value string) error

	// Delete removes a key; deleting an absent key is not an error
	Delete(key string) error
}
