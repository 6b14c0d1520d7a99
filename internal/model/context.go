package model

import (
	"slices"
	"strings"
	"time"
)

// ContextType. Role binding kind of one identity at one workspace.
type ContextType string

const (
	ContextOwner  ContextType = "owner"
	ContextStaff  ContextType = "staff"
	ContextTenant ContextType = "tenant"
)

func (e ContextType) Valid() bool {
	switch e {
	case ContextOwner, ContextStaff, ContextTenant:
		return true
	}
	return false
}

// Context. A single role-binding of one identity to one workspace.
// At most one *active* context exists per (user, workspace, type).
// Soft-deactivated rather than hard-deleted on removal.
type Context struct {
	// Context identifier
	Id string
	// Bound end-user identifier
	UserId string
	// Bound workspace identifier
	WorkspaceId string
	// Role binding kind
	Type ContextType
	// Role reference ; staff-type contexts only
	RoleId string
	// Business entity reference, e.g. tenant record id
	EntityId string
	// Whether this binding is active
	Active bool
	// Whether this is the user's preferred context
	Default bool
	// Bookkeeping
	LastAccessedAt *time.Time
	AccessCount    int64

	// Enrichment, resolved at fetch time (a join),
	// so permission evaluation never performs I/O.

	// Workspace display name
	WorkspaceName string
	// Workspace logo URL, if any
	WorkspaceLogo string
	// Resolved role name ; staff-type contexts only
	RoleName string
	// Resolved role permission set ; staff-type contexts only
	Permissions []string
}

type ContextList = Dataset[Context]

// Role. Named permission-string set, referenced by staff contexts.
// Owner contexts implicitly have full permission ; tenant contexts
// have a fixed set independent of any Role row.
type Role struct {
	Id          string
	Name        string
	Description string
	Permissions []string
}

// FindContext returns the member of [list] with the given id, or nil.
func FindContext(list []*Context, contextId string) *Context {
	if contextId == "" {
		return nil
	}
	for _, e := range list {
		if e != nil && e.Id == contextId {
			return e
		}
	}
	return nil
}

// DefaultContext returns the context flagged default, else the first
// available, else nil.
func DefaultContext(list []*Context) *Context {
	for _, e := range list {
		if e != nil && e.Default {
			return e
		}
	}
	for _, e := range list {
		if e != nil {
			return e
		}
	}
	return nil
}

// ContextAnomaly. An allowed-but-flagged membership state.
type ContextAnomaly struct {
	// Affected workspace
	WorkspaceId string
	// Context types held simultaneously
	Types []ContextType
	// Human note
	Note string
}

// DetectAnomalies flags identities holding staff and tenant bindings
// at the same workspace. Permissive: detected, never prevented.
func DetectAnomalies(list []*Context) (found []ContextAnomaly) {
	byWorkspace := make(map[string]map[ContextType]bool)
	for _, e := range list {
		if e == nil || !e.Active {
			continue
		}
		types := byWorkspace[e.WorkspaceId]
		if types == nil {
			types = make(map[ContextType]bool, 3)
			byWorkspace[e.WorkspaceId] = types
		}
		types[e.Type] = true
	}
	for workspaceId, types := range byWorkspace {
		if types[ContextStaff] && types[ContextTenant] {
			found = append(found, ContextAnomaly{
				WorkspaceId: workspaceId,
				Types:       []ContextType{ContextStaff, ContextTenant},
				Note:        "identity is simultaneously staff and tenant",
			})
		}
	}
	slices.SortFunc(found, func(a, b ContextAnomaly) int {
		return strings.Compare(a.WorkspaceId, b.WorkspaceId)
	})
	return // found?
}
