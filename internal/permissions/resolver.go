package permissions

import (
	"context"
	"fmt"

	"github.com/arunika-edu/arunika-edu/internal/shared"
)

// PrincipalSource answers whether a user is the school's designated
// full-access staff member.
type PrincipalSource interface {
	IsPrincipal(ctx context.Context, schoolID, userID int64) (bool, error)
}

// GrantSource reads a staff member's stored grant set.
type GrantSource interface {
	ListGrants(ctx context.Context, schoolID, staffID int64) ([]GrantPair, error)
}

// Resolver decides staff permissions. Decision order: the principal
// predicate, the super-admin override, then the exact grant match. The
// principal check runs before the grant store is ever consulted; a principal
// has no stored grants to find.
type Resolver struct {
	principals PrincipalSource
	grants     GrantSource
	cache      *GrantCache
}

// NewResolver builds a Resolver. The cache may be nil.
func NewResolver(principals PrincipalSource, grants GrantSource, cache *GrantCache) *Resolver {
	return &Resolver{principals: principals, grants: grants, cache: cache}
}

// HasPermission reports whether the actor may perform (resource, required)
// within the school. Store errors propagate; callers must treat them as
// denials.
func (r *Resolver) HasPermission(ctx context.Context, actor shared.Actor, schoolID int64, resource Resource, required AccessType) (bool, error) {
	isPrincipal, err := r.principals.IsPrincipal(ctx, schoolID, actor.UserID)
	if err != nil {
		return false, fmt.Errorf("permissions: principal check: %w", err)
	}
	if isPrincipal {
		return true, nil
	}
	if actor.IsSuperAdmin() {
		return true, nil
	}

	pairs, err := r.grantSet(ctx, schoolID, actor.UserID)
	if err != nil {
		return false, err
	}
	for _, pair := range pairs {
		// Exact match only: WRITE does not imply READ.
		if pair.Resource == resource && pair.Type == required {
			return true, nil
		}
	}
	return false, nil
}

func (r *Resolver) grantSet(ctx context.Context, schoolID, staffID int64) ([]GrantPair, error) {
	if pairs, ok := r.cache.Get(ctx, schoolID, staffID); ok {
		return pairs, nil
	}
	pairs, err := r.grants.ListGrants(ctx, schoolID, staffID)
	if err != nil {
		return nil, fmt.Errorf("permissions: load grants: %w", err)
	}
	r.cache.Set(ctx, schoolID, staffID, pairs)
	return pairs, nil
}
