package cache

import (
	"encoding/json"
	"sort"

	"github.com/pkg/errors"
)

// SnapshotKey is the durable store key holding the serialized cache.
// Only request-cache entries live under it; session and scope keys are
// persisted directly by their own primitives.
const SnapshotKey = "reqcache.snapshot"

// snapshotPair serializes as a [key, value] JSON tuple.
type snapshotPair struct {
	Key   string
	Value json.RawMessage
}

func (p snapshotPair) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{p.Key, p.Value})
}

func (p *snapshotPair) UnmarshalJSON(data []byte) error {
	var parts []json.RawMessage
	if err := json.Unmarshal(data, &parts); err != nil {
		return err
	}
	if len(parts) != 2 {
		return errors.New("snapshot pair must hold exactly [key, value]")
	}
	if err := json.Unmarshal(parts[0], &p.Key); err != nil {
		return errors.Wrap(err, "snapshot pair key")
	}
	p.Value = parts[1]
	return nil
}

// SaveSnapshot serializes every successfully fetched entry to the durable
// store, replacing the previous snapshot. Newest entries win the bound cut.
// Intended for process teardown.
func (rc *RequestCache) SaveSnapshot() error {
	rc.lock.Lock()
	pairs := make([]snapshotPair, 0, len(rc.entries))
	fetched := make(map[string]int64, len(rc.entries))
	for _, e := range rc.entries {
		if !e.hasResult || e.err != nil || e.value == nil {
			continue
		}
		pairs = append(pairs, snapshotPair{Key: e.key, Value: e.value})
		fetched[e.key] = e.fetchedAt.UnixNano()
	}
	rc.lock.Unlock()

	sort.Slice(pairs, func(i, j int) bool {
		return fetched[pairs[i].Key] > fetched[pairs[j].Key]
	})
	if len(pairs) > rc.maxEntries {
		pairs = pairs[:rc.maxEntries]
	}

	encoded, err := json.Marshal(pairs)
	if err != nil {
		return errors.Wrap(err, "[RequestCache.SaveSnapshot] marshal")
	}
	if err := rc.repo.Set(SnapshotKey, string(encoded)); err != nil {
		return errors.Wrap(err, "[RequestCache.SaveSnapshot] store")
	}
	return nil
}

// loadSnapshot seeds the cache from the last snapshot. Restored entries are
// marked stale: they serve the first read immediately while a background
// refetch replaces them.
func (rc *RequestCache) loadSnapshot() {
	raw, err := rc.repo.Get(SnapshotKey)
	if err != nil {
		return
	}

	var pairs []snapshotPair
	if err := json.Unmarshal([]byte(raw), &pairs); err != nil {
		rc.log.Warn().Err(err).Msg("discarding corrupt cache snapshot")
		return
	}

	rc.lock.Lock()
	defer rc.lock.Unlock()
	for _, p := range pairs {
		endpoint, ok := endpointFromKey(p.Key)
		if !ok {
			continue
		}
		if len(rc.entries) >= rc.maxEntries {
			break
		}
		rc.entries[p.Key] = &entry{
			key:       p.Key,
			endpoint:  endpoint,
			value:     p.Value,
			hasResult: true,
			stale:     true,
		}
	}
}
