// Package identity normalizes caller identities into canonical subjects
package identity

// Tenant ID claim aliases, checked in order; first match wins.
var tenantClaimAliases = []string{"tenant_id", "tenantId", "tid", "org_id"}

// Subject ID claim aliases, checked in order.
var subjectClaimAliases = []string{"sub", "user_id", "userId", "uid"}

// Gateway header names. Headers originate from an upstream trust boundary that
// has already verified a signature; they are authoritative over any
// identity-shaped field arriving in the request body or context.
const (
	HeaderUserID      = "X-User-Id"
	HeaderTenantID    = "X-Tenant-Id"
	HeaderUserType    = "X-User-Type"
	HeaderRoles       = "X-User-Roles"
	HeaderPermissions = "X-User-Permissions"
)
