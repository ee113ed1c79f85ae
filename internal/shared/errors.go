package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrNoTenantAssociation occurs when an actor has no resolvable school
	// membership at all.
	ErrNoTenantAssociation = errors.New("tenancy: no school association")
	// ErrCrossTenantAccess occurs when a request names a school other than
	// the one bound to the actor's session.
	ErrCrossTenantAccess = errors.New("tenancy: cross-school access denied")
	// ErrInvalidTenantContext occurs when a token's school claim no longer
	// corresponds to a valid membership row.
	ErrInvalidTenantContext = errors.New("tenancy: school context no longer valid")

	// ErrPermissionDenied occurs when a staff member lacks the required grant.
	ErrPermissionDenied = errors.New("permissions: denied")
	// ErrPrincipalImmutable occurs on attempts to edit the principal's grants.
	ErrPrincipalImmutable = errors.New("permissions: principal grants are not editable")
)

// ReasonCode returns the stable machine-readable code for an engine decision
// error, or "" when the error carries no modeled reason. Callers surface the
// code alongside the HTTP status so clients can differentiate denial
// messaging instead of receiving a generic forbidden.
func ReasonCode(err error) string {
	switch {
	case errors.Is(err, ErrNoTenantAssociation):
		return "no_tenant_association"
	case errors.Is(err, ErrCrossTenantAccess):
		return "cross_tenant_access_denied"
	case errors.Is(err, ErrInvalidTenantContext):
		return "invalid_tenant_context"
	case errors.Is(err, ErrPermissionDenied):
		return "permission_denied"
	case errors.Is(err, ErrPrincipalImmutable):
		return "principal_immutable"
	}
	return ""
}
