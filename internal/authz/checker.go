// Package authz provides the pluggable authorization checker consulted
// before every ledger mutation. Production deployments use the role
// checker backed by a registry of known actors; tests use the exported
// permissive double. Permissiveness is never the default.
package authz

import (
	"context"
	"sync"

	dErrors "idledger/pkg/errors"
)

// Action is a ledger operation class subject to authorization.
type Action string

const (
	ActionMint   Action = "mint"
	ActionRevoke Action = "revoke"
	ActionRenew  Action = "renew"
	ActionAdmin  Action = "admin"
)

// Role names granted to actors. Roles map to allowed actions.
type Role string

const (
	RoleIssuer  Role = "issuer"
	RoleRevoker Role = "revoker"
	RoleAdmin   Role = "admin"
)

var roleActions = map[Role]map[Action]bool{
	RoleIssuer:  {ActionMint: true, ActionRenew: true, ActionRevoke: true},
	RoleRevoker: {ActionRevoke: true},
	RoleAdmin:   {ActionMint: true, ActionRenew: true, ActionRevoke: true, ActionAdmin: true},
}

// Checker decides whether an actor may perform an action. Implementations
// return a CodeUnauthorized error on denial and nil on success.
type Checker interface {
	Authorize(ctx context.Context, actorID string, action Action) error
}

// RoleChecker authorizes against an in-process registry of actor→roles
// bindings, seeded from configuration at startup. Unknown actors are
// denied.
type RoleChecker struct {
	mu    sync.RWMutex
	roles map[string][]Role
}

// NewRoleChecker builds a checker from actor→roles bindings.
func NewRoleChecker(bindings map[string][]Role) *RoleChecker {
	roles := make(map[string][]Role, len(bindings))
	for actor, rs := range bindings {
		roles[actor] = append([]Role(nil), rs...)
	}
	return &RoleChecker{roles: roles}
}

// Grant adds a role binding at runtime (used by admin tooling and tests).
func (c *RoleChecker) Grant(actorID string, role Role) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.roles[actorID] = append(c.roles[actorID], role)
}

func (c *RoleChecker) Authorize(_ context.Context, actorID string, action Action) error {
	if actorID == "" {
		return dErrors.New(dErrors.CodeUnauthorized, "actor id is required")
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, role := range c.roles[actorID] {
		if roleActions[role][action] {
			return nil
		}
	}
	return dErrors.Newf(dErrors.CodeUnauthorized, "actor %q is not authorized for %s", actorID, action)
}

// AllowAll is the permissive test double. It lives here, clearly named, so
// production wiring never reaches for it by accident.
type AllowAll struct{}

func (AllowAll) Authorize(context.Context, string, Action) error { return nil }
