package types

// ReasonCode is the closed set of machine-readable decision reasons
type ReasonCode string

const (
	// Permit reasons
	ReasonAuthorizationBypass  ReasonCode = "AUTHORIZATION_BYPASS"
	ReasonSuperUserBypass      ReasonCode = "SUPER_USER_BYPASS"
	ReasonScopedAdminOwnTenant ReasonCode = "SCOPED_ADMIN_OWN_TENANT"
	ReasonPolicySatisfied      ReasonCode = "POLICY_SATISFIED"

	// Identity
	ReasonInvalidToken         ReasonCode = "INVALID_TOKEN"
	ReasonInvalidHeaders       ReasonCode = "INVALID_HEADERS"
	ReasonInvalidUserData      ReasonCode = "INVALID_USER_DATA"
	ReasonMissingTenantID      ReasonCode = "MISSING_TENANT_ID"
	ReasonMissingTenantContext ReasonCode = "MISSING_TENANT_CONTEXT"

	// Tenant isolation
	ReasonTenantMismatch       ReasonCode = "TENANT_MISMATCH"
	ReasonTenantScopeViolation ReasonCode = "TENANT_SCOPE_VIOLATION"

	// Resource policy
	ReasonUnknownResource                ReasonCode = "UNKNOWN_RESOURCE"
	ReasonInsufficientResourcePermission ReasonCode = "INSUFFICIENT_RESOURCE_PERMISSION"
	ReasonInvalidUserType                ReasonCode = "INVALID_USER_TYPE"
	ReasonResourceConditionFailed        ReasonCode = "RESOURCE_CONDITION_FAILED"

	// Action policy
	ReasonUnknownAction         ReasonCode = "UNKNOWN_ACTION"
	ReasonInsufficientRoleLevel ReasonCode = "INSUFFICIENT_ROLE_LEVEL"

	// Permission policy
	ReasonPermissionNotDefined ReasonCode = "PERMISSION_NOT_DEFINED"
	ReasonMissingPermission    ReasonCode = "MISSING_PERMISSION"

	// System
	ReasonEvaluationError   ReasonCode = "EVALUATION_ERROR"
	ReasonEvaluationTimeout ReasonCode = "EVALUATION_TIMEOUT"
)
