package store

import (
	"context"

	"github.com/stayware/identity-context-service/internal/model"
)

// DirectoryStore. Narrow remote operations over the platform datastore.
// Always invoked with the caller's bearer identity ; the datastore's own
// row-level rules stay the final authority, this layer is a fast-path.
type DirectoryStore interface {
	//
	GetUserProfile(ProfileRequest) (*model.UserIdentity, error)
	GetUserContexts(ContextListRequest) (*model.ContextList, error)
	CheckPlatformAdmin(AdminCheckRequest) (bool, error)

	// Side-effecting bookkeeping ; MUST be called before local commit
	SwitchContext(SwitchContextRequest) error
	SetDefaultContext(SetDefaultContextRequest) error
}

type ProfileRequest struct {
	// Context
	context.Context
	// Authenticated subject
	UserId string
}

type ContextListRequest struct {
	// Context
	context.Context
	// Filter(s)
	UserId string
	// Pagination
	Page, Size int
}

type AdminCheckRequest struct {
	// Context
	context.Context
	// Authenticated subject ; a user can only ever
	// see their own admin-membership row
	UserId string
}

type SwitchContextRequest struct {
	// Context
	context.Context
	// Authenticated subject
	UserId string
	// Previously active context, if any
	FromContextId string
	// Switch target
	ToContextId string
}

type SetDefaultContextRequest struct {
	// Context
	context.Context
	// Authenticated subject
	UserId string
	// New default context
	ContextId string
}
