package resolver

import (
	"context"
	"log/slog"
	"sync"

	"github.com/stayware/identity-context-service/internal/errors"
	"github.com/stayware/identity-context-service/internal/model"
	"github.com/stayware/identity-context-service/internal/store"
)

// Remote context bookkeeping ; implemented by directory.Directory.
type Remote interface {
	FetchContexts(ctx context.Context, userId string) ([]*model.Context, error)
	SwitchContext(ctx context.Context, userId, fromId, toId string) error
	SetDefaultContext(ctx context.Context, userId, contextId string) error
}

// Resolver owns the *current* active context and the cached context
// list. Switches are strictly ordered: a new switch is rejected while
// the previous remote acknowledgement is still pending, never queued.
type Resolver struct {
	logger *slog.Logger
	remote Remote
	state  store.StateStore

	mu        sync.Mutex
	userId    string
	contexts  []*model.Context
	current   *model.Context
	switching bool
}

func New(logger *slog.Logger, remote Remote, state store.StateStore) *Resolver {
	return &Resolver{
		logger: logger,
		remote: remote,
		state:  state,
	}
}

// ResolveInitial picks the active context for a fresh context list:
// a previously persisted context id that still exists wins, else the
// context flagged default, else the first, else nil. A nil result is
// the unauthenticated-for-business-purposes state, distinct from
// session-unauthenticated.
func (c *Resolver) ResolveInitial(userId string, contexts []*model.Context) *model.Context {

	c.mu.Lock()
	defer c.mu.Unlock()

	c.userId = userId
	c.contexts = contexts

	var persisted string
	if saved, err := c.state.Load(); err == nil && saved != nil {
		persisted = saved.ContextId
	}

	current := model.FindContext(contexts, persisted)
	if current == nil {
		current = model.DefaultContext(contexts)
	}

	c.current = current
	return current
}

// Current active context ; may be nil.
func (c *Resolver) Current() *model.Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Contexts returns the cached context list.
func (c *Resolver) Contexts() []*model.Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.contexts
}

// Switch activates the target context. The target must be a member of
// the cached list ; the remote switch notification (audit/access-count
// bookkeeping) is acknowledged BEFORE the local commit — on remote
// failure the switch is rejected and state is unchanged.
func (c *Resolver) Switch(ctx context.Context, contextId string) (ok bool, err error) {

	c.mu.Lock()
	if c.switching {
		c.mu.Unlock()
		// strictly ordered ; reject, do not queue
		return false, errors.ErrUnknown(
			errors.Message("context: switch already in progress"),
		)
	}
	target := model.FindContext(c.contexts, contextId)
	if target == nil {
		c.mu.Unlock()
		return false, nil
	}
	var (
		userId = c.userId
		fromId string
	)
	if c.current != nil {
		fromId = c.current.Id
	}
	c.switching = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.switching = false
		c.mu.Unlock()
	}()

	// remote acknowledgement first ; NO optimistic commit
	if err = c.remote.SwitchContext(ctx, userId, fromId, contextId); err != nil {
		c.logger.Warn("context: switch rejected",
			"context.id", contextId, "error", err,
		)
		return false, err
	}

	c.mu.Lock()
	c.current = target
	c.mu.Unlock()

	if err := c.state.SaveContextId(contextId); err != nil {
		c.logger.Warn("context: persist failed", "error", err)
	}

	return true, nil
}

// SetDefault marks one context as the user's default, then re-fetches
// the full list so is_default flags stay consistent across the cache.
func (c *Resolver) SetDefault(ctx context.Context, contextId string) (ok bool, err error) {

	c.mu.Lock()
	target := model.FindContext(c.contexts, contextId)
	userId := c.userId
	c.mu.Unlock()

	if target == nil {
		return false, nil
	}

	if err = c.remote.SetDefaultContext(ctx, userId, contextId); err != nil {
		return false, err
	}

	if err = c.RefreshContexts(ctx); err != nil {
		// remote write landed ; stale flags only
		c.logger.Warn("context: refresh after set-default failed", "error", err)
	}

	return true, nil
}

// RefreshContexts re-fetches the context list. When the active context
// no longer appears (revoked access), resolution falls back to the
// default-or-first context instead of keeping a dangling reference.
func (c *Resolver) RefreshContexts(ctx context.Context) error {

	c.mu.Lock()
	userId := c.userId
	c.mu.Unlock()

	contexts, err := c.remote.FetchContexts(ctx, userId)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.contexts = contexts
	var fellBack bool
	if c.current != nil {
		if next := model.FindContext(contexts, c.current.Id); next != nil {
			c.current = next // refreshed row
		} else {
			c.current = model.DefaultContext(contexts)
			fellBack = true
		}
	}
	current := c.current
	c.mu.Unlock()

	if fellBack {
		contextId := ""
		if current != nil {
			contextId = current.Id
		}
		c.logger.Info("context: active context revoked ; falling back",
			"context.id", contextId,
		)
		if err := c.state.SaveContextId(contextId); err != nil {
			c.logger.Warn("context: persist failed", "error", err)
		}
	}

	return nil
}

// Reset drops all resolver state ; sign-out.
func (c *Resolver) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.userId = ""
	c.contexts = nil
	c.current = nil
	c.switching = false
}
