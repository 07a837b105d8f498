package types

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentityHash_RoleOrderIndependent(t *testing.T) {
	a := &Subject{
		ID:          "user-1",
		TenantID:    "tenant-1",
		UserType:    "member",
		Roles:       []string{"MEMBER", "AUDITOR"},
		Permissions: []string{"PORTAL_ACCESS", "REPORT_VIEW"},
	}
	b := &Subject{
		ID:          "user-1",
		TenantID:    "tenant-1",
		UserType:    "member",
		Roles:       []string{"AUDITOR", "MEMBER"},
		Permissions: []string{"REPORT_VIEW", "PORTAL_ACCESS"},
	}

	assert.Equal(t, a.IdentityHash(), b.IdentityHash())
}

func TestIdentityHash_DistinctSubjects(t *testing.T) {
	a := &Subject{ID: "user-1", TenantID: "tenant-1", Roles: []string{"MEMBER"}}
	b := &Subject{ID: "user-2", TenantID: "tenant-1", Roles: []string{"MEMBER"}}
	c := &Subject{ID: "user-1", TenantID: "tenant-2", Roles: []string{"MEMBER"}}

	assert.NotEqual(t, a.IdentityHash(), b.IdentityHash())
	assert.NotEqual(t, a.IdentityHash(), c.IdentityHash())
}

func TestFingerprint_Determinism(t *testing.T) {
	req := &EvaluationRequest{
		Resource: "portal",
		Action:   "read",
		Context:  map[string]interface{}{ContextTargetTenantID: "tenant-1"},
	}

	fp1 := req.Fingerprint("abcd1234", "tenant-1", "v1")
	fp2 := req.Fingerprint("abcd1234", "tenant-1", "v1")
	assert.Equal(t, fp1, fp2)

	// A catalog version bump produces a different key
	assert.NotEqual(t, fp1, req.Fingerprint("abcd1234", "tenant-1", "v2"))
	// A different identity produces a different key
	assert.NotEqual(t, fp1, req.Fingerprint("ffff0000", "tenant-1", "v1"))
}

func TestFingerprint_TenantSegmentVisible(t *testing.T) {
	req := &EvaluationRequest{Resource: "portal", Action: "read"}
	assert.True(t, strings.HasPrefix(req.Fingerprint("id", "tenant-1", "v1"), "tenant-1:"))
	assert.True(t, strings.HasPrefix(req.Fingerprint("id", "", "v1"), "global:"))
}

func TestFingerprint_TripleSeparation(t *testing.T) {
	base := &EvaluationRequest{Resource: "portal", Action: "read"}
	otherResource := &EvaluationRequest{Resource: "admin", Action: "read"}
	otherAction := &EvaluationRequest{Resource: "portal", Action: "delete"}

	fp := base.Fingerprint("id", "tenant-1", "v1")
	assert.NotEqual(t, fp, otherResource.Fingerprint("id", "tenant-1", "v1"))
	assert.NotEqual(t, fp, otherAction.Fingerprint("id", "tenant-1", "v1"))
}

func TestIdentitySourceHash_NeverExposesToken(t *testing.T) {
	src := &IdentitySource{Token: "secret-token-value"}
	h := src.Hash()

	require.NotEmpty(t, h)
	assert.NotContains(t, h, "secret")
	assert.Len(t, h, 16)
}

func TestIdentitySourceHash_HeaderOrderIndependent(t *testing.T) {
	a := &IdentitySource{Headers: map[string]string{"X-User-Id": "u1", "X-Tenant-Id": "t1"}}
	b := &IdentitySource{Headers: map[string]string{"X-Tenant-Id": "t1", "X-User-Id": "u1"}}

	assert.Equal(t, a.Hash(), b.Hash())
}

func TestSubjectSnapshot_CopiesSlices(t *testing.T) {
	s := &Subject{
		ID:          "user-1",
		TenantID:    "tenant-1",
		Roles:       []string{"MEMBER"},
		Permissions: []string{"PORTAL_ACCESS"},
	}

	snap := s.Snapshot()
	snap.Roles[0] = "mutated"

	assert.Equal(t, "MEMBER", s.Roles[0])
}

func TestSubject_HasPermission_Wildcard(t *testing.T) {
	s := &Subject{Permissions: []string{WildcardPermission}}
	assert.True(t, s.HasPermission("ANYTHING_AT_ALL"))

	s = &Subject{Permissions: []string{"PORTAL_ACCESS"}}
	assert.True(t, s.HasPermission("PORTAL_ACCESS"))
	assert.False(t, s.HasPermission("ADMIN_ACCESS"))
}

func TestEvaluationRequest_ContextAccessors(t *testing.T) {
	req := &EvaluationRequest{
		Context: map[string]interface{}{
			ContextTargetTenantID: "tenant-9",
			ContextCorrelationID:  "corr-1",
			"extra":               42,
		},
	}

	assert.Equal(t, "tenant-9", req.TargetTenantID())
	assert.Equal(t, "corr-1", req.CorrelationID())

	empty := &EvaluationRequest{}
	assert.Empty(t, empty.TargetTenantID())
	assert.Empty(t, empty.CorrelationID())
}

func TestDecision_Permitted(t *testing.T) {
	exp := time.Now().Add(5 * time.Minute)
	d := &Decision{Outcome: OutcomePermit, Reason: ReasonPolicySatisfied, ExpiresAt: &exp}
	assert.True(t, d.Permitted())

	d.Outcome = OutcomeDeny
	assert.False(t, d.Permitted())
}

func TestReasonCodes_UpperSnakeCase(t *testing.T) {
	codes := []ReasonCode{
		ReasonAuthorizationBypass, ReasonSuperUserBypass, ReasonScopedAdminOwnTenant,
		ReasonPolicySatisfied, ReasonInvalidToken, ReasonInvalidHeaders,
		ReasonInvalidUserData, ReasonMissingTenantID, ReasonMissingTenantContext,
		ReasonTenantMismatch, ReasonTenantScopeViolation, ReasonUnknownResource,
		ReasonInsufficientResourcePermission, ReasonInvalidUserType,
		ReasonResourceConditionFailed, ReasonUnknownAction,
		ReasonInsufficientRoleLevel, ReasonPermissionNotDefined,
		ReasonMissingPermission, ReasonEvaluationError, ReasonEvaluationTimeout,
	}

	for _, c := range codes {
		assert.Equal(t, strings.ToUpper(string(c)), string(c))
	}
}
