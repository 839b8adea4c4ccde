package controller

import (
	"context"
	"sync"
	"time"

	apperrors "github.com/jrsteele09/go-dashboard-client/internal/errors"
	"github.com/jrsteele09/go-dashboard-client/session"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// State of the authenticated-user state machine.
type State string

const (
	StateUnauthenticated State = "unauthenticated"
	StateRestoring       State = "restoring"
	StateAuthenticated   State = "authenticated"
)

// API is the slice of the dashboard API the controller drives.
type API interface {
	Login(ctx context.Context, email, password string) (*session.LoginResult, error)
	Profile(ctx context.Context) (*session.User, error)
}

// Invalidator marks every cached entry stale; satisfied by cache.RequestCache.
type Invalidator interface {
	InvalidateAll()
}

// ExpirySource delivers the process-wide session-expired broadcast;
// satisfied by apiclient.ExpirySignal.
type ExpirySource interface {
	Subscribe(fn func())
}

// Deps holds all dependencies for the SessionController
type Deps struct {
	Tokens *session.TokenStore
	Scope  *session.ScopeStore
	API    API
	Cache  Invalidator
}

// SessionController owns the session state machine. It is the sole writer of
// the token, the advertiser scope and the in-memory user; everything else
// takes snapshot reads.
type SessionController struct {
	lock    sync.Mutex
	deps    Deps
	state   State
	user    *session.User
	epoch   uint64 // bumped on every teardown to invalidate in-flight restores
	nowTime func() time.Time
	log     zerolog.Logger
}

// Option defines a function type to modify the SessionController instance.
type Option func(*SessionController)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) Option {
	return func(sc *SessionController) {
		sc.nowTime = nowFunc
	}
}

// WithLogger sets the controller logger (a no-op logger by default).
func WithLogger(log zerolog.Logger) Option {
	return func(sc *SessionController) {
		sc.log = log
	}
}

// New initializes a SessionController with required dependencies and
// subscribes it to the expiry broadcast.
func New(deps Deps, expiry ExpirySource, options ...Option) (*SessionController, error) {
	if deps.Tokens == nil {
		return nil, errors.New("[controller.New] token store is required")
	}
	if deps.Scope == nil {
		return nil, errors.New("[controller.New] scope store is required")
	}
	if deps.API == nil {
		return nil, errors.New("[controller.New] API is required")
	}
	if deps.Cache == nil {
		return nil, errors.New("[controller.New] cache is required")
	}

	sc := &SessionController{
		deps:    deps,
		state:   StateUnauthenticated,
		nowTime: time.Now,
		log:     zerolog.Nop(),
	}

	for _, opt := range options {
		opt(sc)
	}

	if expiry != nil {
		expiry.Subscribe(sc.HandleExpiry)
	}

	return sc, nil
}

// State returns the current machine state.
func (sc *SessionController) State() State {
	sc.lock.Lock()
	defer sc.lock.Unlock()
	return sc.state
}

// User returns the authenticated profile, nil when unauthenticated.
func (sc *SessionController) User() *session.User {
	sc.lock.Lock()
	defer sc.lock.Unlock()
	return sc.user
}

// ActiveAdvertiserID returns the currently selected advertiser.
func (sc *SessionController) ActiveAdvertiserID() (int64, bool) {
	return sc.deps.Scope.Get()
}

// Restore attempts to rebuild the session from a stored token at boot.
// Failure is expected (stale or revoked token) and silently degrades to
// Unauthenticated; it is never surfaced to startup code.
func (sc *SessionController) Restore(ctx context.Context) error {
	sc.lock.Lock()
	token := sc.deps.Tokens.Get()
	if token == "" {
		sc.clearLocked()
		sc.lock.Unlock()
		return nil
	}
	if session.Expired(token, sc.nowTime()) {
		sc.log.Debug().Msg("stored token locally expired, skipping profile fetch")
		sc.clearLocked()
		sc.lock.Unlock()
		return nil
	}
	sc.state = StateRestoring
	epoch := sc.epoch
	sc.lock.Unlock()

	user, err := sc.deps.API.Profile(ctx)

	sc.lock.Lock()
	defer sc.lock.Unlock()
	if sc.epoch != epoch {
		// Torn down (expiry or logout) while the profile fetch was in flight.
		return nil
	}
	if err != nil {
		sc.log.Debug().Err(err).Msg("session restore failed, clearing session")
		sc.clearLocked()
		return nil
	}

	sc.user = user
	sc.state = StateAuthenticated
	sc.resolveScopeLocked(user, true)
	sc.log.Info().Str("user", user.Email).Msg("session restored")
	return nil
}

// Login authenticates with credentials and activates the returned session.
// The first advertiser of the profile becomes the active scope.
func (sc *SessionController) Login(ctx context.Context, email, password string) error {
	result, err := sc.deps.API.Login(ctx, email, password)
	if err != nil {
		return errors.Wrap(err, "[SessionController.Login] api login")
	}

	sc.lock.Lock()
	defer sc.lock.Unlock()
	sc.deps.Tokens.Set(result.Token)
	sc.user = result.User
	sc.state = StateAuthenticated
	sc.resolveScopeLocked(result.User, false)
	sc.log.Info().Str("user", result.User.Email).Msg("logged in")
	return nil
}

// LoginWithToken activates a session from an externally supplied token by
// storing it and fetching the profile. Unlike Restore, failure is surfaced.
func (sc *SessionController) LoginWithToken(ctx context.Context, token string) error {
	sc.lock.Lock()
	sc.deps.Tokens.Set(token)
	sc.state = StateRestoring
	epoch := sc.epoch
	sc.lock.Unlock()

	user, err := sc.deps.API.Profile(ctx)

	sc.lock.Lock()
	defer sc.lock.Unlock()
	if sc.epoch != epoch {
		return apperrors.ErrSessionExpired
	}
	if err != nil {
		sc.clearLocked()
		return errors.Wrap(err, "[SessionController.LoginWithToken] profile fetch")
	}

	sc.user = user
	sc.state = StateAuthenticated
	sc.resolveScopeLocked(user, false)
	return nil
}

// SwitchAdvertiser changes the active scope to an advertiser the user holds
// and invalidates the request cache. It does not refetch anything itself;
// subscribing views re-read.
func (sc *SessionController) SwitchAdvertiser(id int64) error {
	sc.lock.Lock()
	if sc.state != StateAuthenticated {
		sc.lock.Unlock()
		return apperrors.ErrNotAuthenticated
	}
	if !sc.user.HasAdvertiser(id) {
		sc.lock.Unlock()
		return errors.Wrapf(apperrors.ErrUnknownAdvertiser, "advertiser %d", id)
	}
	sc.deps.Scope.Set(id)
	sc.lock.Unlock()

	// Outside the lock: invalidation fans out to cache subscribers.
	sc.deps.Cache.InvalidateAll()
	sc.log.Info().Int64("advertiser", id).Msg("switched advertiser")
	return nil
}

// Logout tears the session down. The persisted cache snapshot is left alone;
// its keys embed the now-cleared advertiser id and are shadowed naturally.
func (sc *SessionController) Logout() {
	sc.lock.Lock()
	defer sc.lock.Unlock()
	sc.clearLocked()
}

// HandleExpiry reacts to the expiry broadcast with the same teardown as an
// explicit logout. Receiving it repeatedly (several concurrently failing
// requests) is harmless.
func (sc *SessionController) HandleExpiry() {
	sc.lock.Lock()
	wasAuthenticated := sc.state != StateUnauthenticated
	sc.clearLocked()
	sc.lock.Unlock()

	if wasAuthenticated {
		sc.log.Info().Msg("session expired, logged out")
	}
}

// resolveScopeLocked decides the active advertiser for a fresh profile.
// With preferStored, a stored id still present in the profile wins;
// otherwise (and as fallback) the first advertiser, or no scope at all.
func (sc *SessionController) resolveScopeLocked(user *session.User, preferStored bool) {
	if preferStored {
		if stored, ok := sc.deps.Scope.Get(); ok && user.HasAdvertiser(stored) {
			return
		}
	}
	if first, ok := user.FirstAdvertiser(); ok {
		sc.deps.Scope.Set(first)
		return
	}
	sc.deps.Scope.Clear()
}

func (sc *SessionController) clearLocked() {
	sc.deps.Tokens.Clear()
	sc.deps.Scope.Clear()
	sc.user = nil
	sc.state = StateUnauthenticated
	sc.epoch++
}
