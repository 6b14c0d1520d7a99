package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/stayware/identity-context-service/infra/log/slogx"
	"github.com/stayware/identity-context-service/internal/errors"
	"github.com/stayware/identity-context-service/internal/model"
	"github.com/stayware/identity-context-service/internal/store"
)

// Provider. Remote bearer-token lifecycle ; implemented by client/idp.
type Provider interface {
	Refresh(ctx context.Context, refreshToken string) (*model.Session, error)
	SignOut(ctx context.Context, accessToken string) error
	User(ctx context.Context, accessToken string) (*model.UserIdentity, error)
}

// Store owns the Session. A session handed to any caller is never
// returned past the point it is known expired without first
// attempting a refresh.
type Store struct {
	logger *slog.Logger
	idp    Provider
	state  store.StateStore
	clock  model.Clock

	mu      sync.Mutex
	session *model.Session
	flight  singleflight.Group
}

func NewStore(logger *slog.Logger, idp Provider, state store.StateStore) *Store {
	return &Store{
		logger: logger,
		idp:    idp,
		state:  state,
		clock:  model.LocalTime,
	}
}

// Get returns a non-expired session, or a typed error.
// A cached session within the expiry buffer is refreshed
// transparently rather than surfacing SESSION_EXPIRED.
func (c *Store) Get(ctx context.Context) (*model.Session, error) {

	grant := c.cached()

	if grant == nil {
		// cold start ; restore persisted grant, if any
		grant = c.restore()
	}

	if grant == nil {
		return nil, errors.ErrNoSession()
	}

	now := c.clock.Now()
	if grant.Verify(now) == nil && !grant.NearExpiry(now) {
		return grant, nil
	}

	// expired -or- near expiry: ONE transparent refresh attempt
	return c.Refresh(ctx)
}

// Refresh exchanges the refresh token for a new grant. Safe to call
// concurrently: N in-flight callers share one network exchange and
// receive the same session or the same error.
func (c *Store) Refresh(ctx context.Context) (*model.Session, error) {

	grant, err, _ := c.flight.Do("refresh", func() (any, error) {
		return c.refresh(ctx)
	})

	if err != nil {
		return nil, err
	}

	return grant.(*model.Session), nil
}

func (c *Store) refresh(ctx context.Context) (*model.Session, error) {

	prev := c.cached()
	if prev == nil {
		prev = c.restore()
	}
	if prev == nil || prev.RefreshToken == "" {
		return nil, errors.ErrNoSession()
	}

	next, err := c.idp.Refresh(ctx, prev.RefreshToken)

	if err != nil {
		code := errors.ClassOf(err)
		c.logger.Warn("session: refresh failed",
			"error", err, "code", string(code),
		)
		// irrecoverable: the refresh token is burned
		if code == errors.RefreshFailed || code == errors.InvalidToken {
			c.drop()
		}
		return nil, err
	}

	c.mu.Lock()
	c.session = next
	c.mu.Unlock()

	if err = c.state.SaveSession(next); err != nil {
		// local persistence must not fail the grant
		c.logger.Warn("session: persist failed", "error", err)
	}

	c.logger.Debug("session: refreshed",
		"user.id", next.UserID,
		"expires_at", next.ExpiresAt,
		"token", slogx.DeferValue(func() slog.Value {
			return slog.StringValue(slogx.SecureString(next.AccessToken))
		}),
	)

	return next, nil
}

// SignOut revokes the remote session and clears ALL local state.
// Local correctness never depends on network availability: the local
// clear happens even when the remote revoke fails. Idempotent.
func (c *Store) SignOut(ctx context.Context) error {

	grant := c.cached()

	var remoteErr error
	if grant != nil && grant.AccessToken != "" {
		remoteErr = c.idp.SignOut(ctx, grant.AccessToken)
		if remoteErr != nil {
			c.logger.Warn("session: remote sign-out failed", "error", remoteErr)
		}
	}

	c.drop()
	if err := c.state.Clear(); err != nil {
		return err
	}

	return remoteErr
}

// Identity resolves the bearer identity at the provider, ensuring a
// fresh grant first.
func (c *Store) Identity(ctx context.Context) (*model.UserIdentity, error) {
	grant, err := c.Get(ctx)
	if err != nil {
		return nil, err
	}
	return c.idp.User(ctx, grant.AccessToken)
}

// ExpiresIn reports the duration until the cached session's absolute
// expiry ; negative when absent or already expired.
func (c *Store) ExpiresIn() (d time.Duration, ok bool) {
	grant := c.cached()
	if grant == nil {
		return -1, false
	}
	return grant.ExpiresIn(c.clock.Now()), true
}

// Current returns the cached session without validation ; may be nil.
func (c *Store) Current() *model.Session {
	return c.cached()
}

func (c *Store) cached() *model.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

func (c *Store) drop() {
	c.mu.Lock()
	c.session = nil
	c.mu.Unlock()
	if err := c.state.SaveSession(nil); err != nil {
		c.logger.Warn("session: persist failed", "error", err)
	}
}

func (c *Store) restore() *model.Session {
	saved, err := c.state.Load()
	if err != nil || saved == nil || saved.Session == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		c.session = saved.Session
	}
	return c.session
}
