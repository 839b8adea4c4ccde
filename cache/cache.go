package cache

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jrsteele09/go-dashboard-client/store"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const (
	// KeyPrefix namespaces every request-cache key in the durable store.
	KeyPrefix = "reqcache"

	keySeparator = "::"

	DefaultDedupeInterval = 30 * time.Second
	DefaultMaxEntries     = 256
)

// Fetcher performs the network call behind a cache miss.
type Fetcher interface {
	Get(ctx context.Context, endpoint string) (json.RawMessage, error)
}

// Scope supplies the active advertiser id for key derivation. It is read
// fresh on every operation, never captured, so a scope switch immediately
// changes which keys subsequent reads resolve to.
type Scope interface {
	Get() (int64, bool)
}

// Result is a snapshot of a cache entry handed to a reader.
type Result struct {
	Value     json.RawMessage
	Err       error
	IsLoading bool
}

type entry struct {
	key       string
	endpoint  string
	value     json.RawMessage
	err       error
	hasResult bool
	fetchedAt time.Time
	stale     bool
	gen       uint64
	inflight  chan struct{} // closed when the current fetch settles; nil when idle
}

// RequestCache is a keyed cache of API responses scoped per advertiser.
// It deduplicates concurrent fetches per key, serves stale values while
// revalidating in the background, and snapshots itself to the durable store
// so the first read after a restart is served from last-known values.
type RequestCache struct {
	lock       sync.Mutex
	entries    map[string]*entry
	fetcher    Fetcher
	scope      Scope
	repo       store.Repo
	dedupe     time.Duration
	maxEntries int
	subs       []func()
	nowTime    func() time.Time
	log        zerolog.Logger
}

// Option modifies the RequestCache instance.
type Option func(*RequestCache)

// WithDedupeInterval sets how long a settled entry is considered fresh.
func WithDedupeInterval(d time.Duration) Option {
	return func(rc *RequestCache) {
		rc.dedupe = d
	}
}

// WithMaxEntries bounds the entry count; the oldest idle entry is evicted
// when the bound is hit, and snapshots are truncated to the same bound.
func WithMaxEntries(n int) Option {
	return func(rc *RequestCache) {
		rc.maxEntries = n
	}
}

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) Option {
	return func(rc *RequestCache) {
		rc.nowTime = nowFunc
	}
}

// WithLogger sets the cache logger (a no-op logger by default).
func WithLogger(log zerolog.Logger) Option {
	return func(rc *RequestCache) {
		rc.log = log
	}
}

// New initializes a RequestCache and loads the previous snapshot, if any,
// from the durable store. Snapshot load is best effort; a missing or
// corrupt snapshot simply yields an empty cache.
func New(fetcher Fetcher, scope Scope, repo store.Repo, options ...Option) (*RequestCache, error) {
	if fetcher == nil {
		return nil, errors.New("[cache.New] fetcher is required")
	}
	if scope == nil {
		return nil, errors.New("[cache.New] scope is required")
	}
	if repo == nil {
		return nil, errors.New("[cache.New] store repo is required")
	}

	rc := &RequestCache{
		entries:    make(map[string]*entry),
		fetcher:    fetcher,
		scope:      scope,
		repo:       repo,
		dedupe:     DefaultDedupeInterval,
		maxEntries: DefaultMaxEntries,
		nowTime:    time.Now,
		log:        zerolog.Nop(),
	}

	for _, opt := range options {
		opt(rc)
	}

	rc.loadSnapshot()
	return rc, nil
}

// Key derives the scoped cache key for endpoint under the current advertiser.
// The advertiser id is part of the key, so entries fetched under one
// advertiser are structurally invisible once another is selected.
func (rc *RequestCache) Key(endpoint string) string {
	segment := ""
	if id, ok := rc.scope.Get(); ok {
		segment = strconv.FormatInt(id, 10)
	}
	return KeyPrefix + keySeparator + segment + keySeparator + endpoint
}

// Subscribe registers fn to run after any entry settles or is invalidated,
// so consumers know to re-read.
func (rc *RequestCache) Subscribe(fn func()) {
	rc.lock.Lock()
	defer rc.lock.Unlock()
	rc.subs = append(rc.subs, fn)
}

// Read returns the current snapshot for endpoint under the active advertiser
// without blocking. A missing or stale entry triggers a single background
// fetch; concurrent readers of the same key share it. Stale values are
// returned immediately alongside IsLoading while revalidation proceeds.
func (rc *RequestCache) Read(endpoint string) Result {
	key := rc.Key(endpoint)

	rc.lock.Lock()
	defer rc.lock.Unlock()

	e := rc.ensureEntryLocked(key, endpoint)
	if rc.freshLocked(e) {
		return Result{Value: e.value, Err: e.err}
	}
	if e.inflight == nil {
		rc.startFetchLocked(e)
	}
	return Result{Value: e.value, Err: e.err, IsLoading: true}
}

// Fetch blocks until a settled value is available for endpoint under the
// active advertiser. Concurrent Fetch calls for the same key coalesce into
// at most one outstanding request.
func (rc *RequestCache) Fetch(ctx context.Context, endpoint string) (json.RawMessage, error) {
	key := rc.Key(endpoint)

	for {
		rc.lock.Lock()
		e := rc.ensureEntryLocked(key, endpoint)
		if rc.freshLocked(e) {
			value, err := e.value, e.err
			rc.lock.Unlock()
			return value, err
		}
		if e.inflight == nil {
			rc.startFetchLocked(e)
		}
		settled := e.inflight
		rc.lock.Unlock()

		select {
		case <-ctx.Done():
			return nil, errors.Wrap(ctx.Err(), "[RequestCache.Fetch] wait")
		case <-settled:
		}
	}
}

// Mutate forces endpoint (under the active advertiser) to refetch on the
// next read. Any in-flight fetch keeps running but its result is dropped;
// the next read starts a fresh request.
func (rc *RequestCache) Mutate(endpoint string) {
	key := rc.Key(endpoint)

	rc.lock.Lock()
	e, ok := rc.entries[key]
	if ok {
		e.stale = true
		e.gen++
		e.inflight = nil
	}
	subs := rc.subscribersLocked()
	rc.lock.Unlock()

	if ok {
		notify(subs)
	}
}

// InvalidateAll marks every entry, across all advertisers, as stale. Used on
// advertiser switch: values fetched for the previous advertiser must not be
// presented as current past the switch. In-flight fetches still land under
// the key they were requested for.
func (rc *RequestCache) InvalidateAll() {
	rc.lock.Lock()
	for _, e := range rc.entries {
		e.stale = true
	}
	subs := rc.subscribersLocked()
	rc.lock.Unlock()

	rc.log.Debug().Msg("request cache invalidated")
	notify(subs)
}

func (rc *RequestCache) freshLocked(e *entry) bool {
	return e.hasResult && !e.stale && rc.nowTime().Sub(e.fetchedAt) < rc.dedupe
}

func (rc *RequestCache) ensureEntryLocked(key, endpoint string) *entry {
	if e, ok := rc.entries[key]; ok {
		return e
	}
	rc.evictLocked()
	e := &entry{key: key, endpoint: endpoint}
	rc.entries[key] = e
	return e
}

// evictLocked drops the oldest idle entry once the bound is reached.
func (rc *RequestCache) evictLocked() {
	if len(rc.entries) < rc.maxEntries {
		return
	}
	var oldest *entry
	for _, e := range rc.entries {
		if e.inflight != nil {
			continue
		}
		if oldest == nil || e.fetchedAt.Before(oldest.fetchedAt) {
			oldest = e
		}
	}
	if oldest != nil {
		delete(rc.entries, oldest.key)
		rc.log.Debug().Str("key", oldest.key).Msg("evicted cache entry")
	}
}

// startFetchLocked launches the single outstanding fetch for the entry. The
// result is written back only if the entry generation is unchanged, so a
// response that loses a race with Mutate never regresses fresher data. The
// write always lands under the key the fetch was issued for, regardless of
// the advertiser selected by the time it resolves.
func (rc *RequestCache) startFetchLocked(e *entry) {
	settled := make(chan struct{})
	e.inflight = settled
	gen := e.gen
	key, endpoint := e.key, e.endpoint

	go func() {
		value, err := rc.fetcher.Get(context.Background(), endpoint)

		rc.lock.Lock()
		cur, ok := rc.entries[key]
		if ok && cur.gen == gen {
			if err != nil {
				cur.err = err
			} else {
				cur.value = value
				cur.err = nil
			}
			cur.hasResult = true
			cur.fetchedAt = rc.nowTime()
			cur.stale = false
			if cur.inflight == settled {
				cur.inflight = nil
			}
		} else {
			rc.log.Debug().Str("key", key).Msg("dropped response for superseded entry")
		}
		subs := rc.subscribersLocked()
		rc.lock.Unlock()

		close(settled)
		notify(subs)
	}()
}

func (rc *RequestCache) subscribersLocked() []func() {
	subs := make([]func(), len(rc.subs))
	copy(subs, rc.subs)
	return subs
}

func notify(subs []func()) {
	for _, fn := range subs {
		fn()
	}
}

// endpointFromKey recovers the endpoint segment of a scoped key.
func endpointFromKey(key string) (string, bool) {
	parts := strings.SplitN(key, keySeparator, 3)
	if len(parts) != 3 || parts[0] != KeyPrefix {
		return "", false
	}
	return parts[2], true
}
