package access

import (
	"slices"

	"github.com/stayware/identity-context-service/internal/model"
)

// TenantPermissions is the closed permission set of tenant-type
// contexts. Hard-coded, NOT role-driven: a Role row elsewhere never
// widens a tenant's authority.
var TenantPermissions = []string{
	"profile.view",
	"profile.edit",
	"payments.view",
	"complaints.view",
	"complaints.create",
	"notices.view",
}

// Evaluator is a pure decision table over
// (current context, platform-admin flag, requested permission).
// No I/O: context rows arrive pre-enriched with role permissions.
//
// Client-side fast-path only ; the datastore's own row-level rules
// remain the final authority.
type Evaluator struct {
	// Current active context ; nil denies everything
	Current *model.Context
	// PlatformAdmin overrides all context-scoped checks
	PlatformAdmin bool
}

// Has evaluates the decision table top-to-bottom, short-circuiting.
func (e Evaluator) Has(permission string) bool {
	// 1. platform admin: granted unconditionally
	if e.PlatformAdmin {
		return true
	}
	// 2. no active context: denied
	current := e.Current
	if current == nil {
		return false
	}
	switch current.Type {
	// 3. owner: full workspace authority
	case model.ContextOwner:
		return true
	// 4. tenant: fixed closed set
	case model.ContextTenant:
		return slices.Contains(TenantPermissions, permission)
	// 5. staff: resolved role permission set
	case model.ContextStaff:
		return slices.Contains(current.Permissions, permission)
	}
	// 6. otherwise denied
	return false
}

func (e Evaluator) HasAny(permissions ...string) bool {
	for _, p := range permissions {
		if e.Has(p) {
			return true
		}
	}
	return false
}

func (e Evaluator) HasAll(permissions ...string) bool {
	for _, p := range permissions {
		if !e.Has(p) {
			return false
		}
	}
	return true
}
