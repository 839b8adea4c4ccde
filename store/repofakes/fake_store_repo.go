package repofakes

import (
	"sync"

	"github.com/jrsteele09/go-dashboard-client/store"
)

var _ store.Repo = (*FakeStoreRepo)(nil)

// FakeStoreRepo is an in-memory store.Repo for tests. FailWith switches every
// subsequent call into the injected failure, for exercising degraded modes.
type FakeStoreRepo struct {
	values  map[string]string
	failErr error
	lock    sync.RWMutex
}

func NewFakeStoreRepo() *FakeStoreRepo {
	return &FakeStoreRepo{
		values: make(map[string]string),
	}
}

// FailWith makes all following calls return err. Pass nil to recover.
func (sr *FakeStoreRepo) FailWith(err error) {
	sr.lock.Lock()
	defer sr.lock.Unlock()
	sr.failErr = err
}

func (sr *FakeStoreRepo) Get(key string) (string, error) {
	sr.lock.RLock()
	defer sr.lock.RUnlock()
	if sr.failErr != nil {
		return "", sr.failErr
	}
	value, ok := sr.values[key]
	if !ok {
		return "", store.ErrNotFound
	}
	return value, nil
}

func (sr *FakeStoreRepo) Set(key, value string) error {
	sr.lock.Lock()
	defer sr.lock.Unlock()
	if sr.failErr != nil {
		return sr.failErr
	}
	sr.values[key] = value
	return nil
}

func (sr *FakeStoreRepo) Delete(key string) error {
	sr.lock.Lock()
	defer sr.lock.Unlock()
	if sr.failErr != nil {
		return sr.failErr
	}
	delete(sr.values, key)
	return nil
}

// Len reports the number of stored keys.
func (sr *FakeStoreRepo) Len() int {
	sr.lock.RLock()
	defer sr.lock.RUnlock()
	return len(sr.values)
}
