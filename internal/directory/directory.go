package directory

import (
	"context"
	"log/slog"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/stayware/identity-context-service/internal/model"
	"github.com/stayware/identity-context-service/internal/store"
)

// LoadTimeout bounds any single data-load step so a slow datastore
// resolves to a neutral fallback instead of hanging initialization.
const LoadTimeout = 15 * time.Second

// Directory resolves the set of contexts (workspace + role bindings)
// owned by a user and the active profile record. Context rows arrive
// enriched (workspace name/logo, role name/permissions) so permission
// evaluation downstream never performs I/O.
type Directory struct {
	logger *slog.Logger
	store  store.DirectoryStore
	// platform-admin checks are best-effort and cheap to re-derive ;
	// cache them briefly to keep periodic re-initialization light
	admins *expirable.LRU[string, bool]
}

func New(logger *slog.Logger, repo store.DirectoryStore) *Directory {
	return &Directory{
		logger: logger,
		store:  repo,
		admins: expirable.NewLRU[string, bool](0, nil, time.Minute),
	}
}

// FetchProfile returns the user's profile record, or nil when none.
func (c *Directory) FetchProfile(ctx context.Context, userId string) (*model.UserIdentity, error) {

	ctx, cancel := context.WithTimeout(ctx, LoadTimeout)
	defer cancel()

	return c.store.GetUserProfile(store.ProfileRequest{
		Context: ctx,
		UserId:  userId,
	})
}

// FetchContexts returns all active contexts of the user,
// enriched at fetch time (a join) ; never resolved lazily.
func (c *Directory) FetchContexts(ctx context.Context, userId string) ([]*model.Context, error) {

	ctx, cancel := context.WithTimeout(ctx, LoadTimeout)
	defer cancel()

	list, err := c.store.GetUserContexts(store.ContextListRequest{
		Context: ctx,
		UserId:  userId,
	})

	if err != nil {
		return nil, err
	}

	if list == nil {
		return nil, nil
	}

	return list.Data, nil
}

// CheckPlatformAdmin reports the user's platform-admin membership.
// Best-effort: an authorization error from the backing check means
// "false", never a blocking failure — absence of visibility implies
// non-admin.
func (c *Directory) CheckPlatformAdmin(ctx context.Context, userId string) bool {

	if admin, ok := c.admins.Get(userId); ok {
		return admin
	}

	ctx, cancel := context.WithTimeout(ctx, LoadTimeout)
	defer cancel()

	admin, err := c.store.CheckPlatformAdmin(store.AdminCheckRequest{
		Context: ctx,
		UserId:  userId,
	})

	if err != nil {
		c.logger.Debug("directory: admin check failed", "error", err)
		return false
	}

	_ = c.admins.Add(userId, admin)
	return admin
}

// SwitchContext records the switch remotely (audit/access-count
// bookkeeping) ; MUST succeed before any local commit.
func (c *Directory) SwitchContext(ctx context.Context, userId, fromId, toId string) error {

	ctx, cancel := context.WithTimeout(ctx, LoadTimeout)
	defer cancel()

	return c.store.SwitchContext(store.SwitchContextRequest{
		Context:       ctx,
		UserId:        userId,
		FromContextId: fromId,
		ToContextId:   toId,
	})
}

// SetDefaultContext marks one context as the user's default.
func (c *Directory) SetDefaultContext(ctx context.Context, userId, contextId string) error {

	ctx, cancel := context.WithTimeout(ctx, LoadTimeout)
	defer cancel()

	return c.store.SetDefaultContext(store.SetDefaultContextRequest{
		Context:   ctx,
		UserId:    userId,
		ContextId: contextId,
	})
}
