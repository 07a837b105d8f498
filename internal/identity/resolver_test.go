package identity

import (
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdp-engine/go-core/internal/hierarchy"
	"github.com/pdp-engine/go-core/pkg/types"
)

func testResolver(t *testing.T) *Resolver {
	t.Helper()
	h := hierarchy.NewResolver(map[string]int{
		"MEMBER":      10,
		"EDITOR":      30,
		"SUPER_ADMIN": 100,
	}, "SUPER_ADMIN")
	return NewResolver(h, nil)
}

// signToken builds a structurally valid token; the resolver only parses claims,
// signature verification belongs to the upstream boundary.
func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-key"))
	require.NoError(t, err)
	return token
}

func TestResolve_TokenPath(t *testing.T) {
	r := testResolver(t)

	token := signToken(t, jwt.MapClaims{
		"sub":         "user-1",
		"tenant_id":   "tenant-1",
		"user_type":   "member",
		"roles":       []interface{}{"MEMBER", "EDITOR"},
		"permissions": []interface{}{"PORTAL_ACCESS"},
	})

	subject, resErr := r.Resolve(types.IdentitySource{Token: token})
	require.Nil(t, resErr)

	assert.Equal(t, "user-1", subject.ID)
	assert.Equal(t, "tenant-1", subject.TenantID)
	assert.Equal(t, "member", subject.UserType)
	assert.Equal(t, []string{"MEMBER", "EDITOR"}, subject.Roles)
	assert.Equal(t, []string{"PORTAL_ACCESS"}, subject.Permissions)
	assert.Equal(t, 30, subject.MaxRoleLevel)
}

func TestResolve_TenantAliases_FirstMatchWins(t *testing.T) {
	r := testResolver(t)

	tests := []struct {
		name   string
		claims jwt.MapClaims
		want   string
	}{
		{"tenant_id", jwt.MapClaims{"sub": "u", "tenant_id": "t-a"}, "t-a"},
		{"tenantId", jwt.MapClaims{"sub": "u", "tenantId": "t-b"}, "t-b"},
		{"tid", jwt.MapClaims{"sub": "u", "tid": "t-c"}, "t-c"},
		{"org_id", jwt.MapClaims{"sub": "u", "org_id": "t-d"}, "t-d"},
		{"first alias wins", jwt.MapClaims{"sub": "u", "tenant_id": "t-a", "tid": "t-c"}, "t-a"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			subject, resErr := r.Resolve(types.IdentitySource{Token: signToken(t, tt.claims)})
			require.Nil(t, resErr)
			assert.Equal(t, tt.want, subject.TenantID)
		})
	}
}

func TestResolve_MissingTenant_DistinctFromMalformed(t *testing.T) {
	r := testResolver(t)

	// Structurally valid token without any tenant claim
	token := signToken(t, jwt.MapClaims{"sub": "user-1"})
	_, resErr := r.Resolve(types.IdentitySource{Token: token})
	require.NotNil(t, resErr)
	assert.Equal(t, types.ReasonMissingTenantID, resErr.Reason)

	// Garbage token
	_, resErr = r.Resolve(types.IdentitySource{Token: "not.a.token"})
	require.NotNil(t, resErr)
	assert.Equal(t, types.ReasonInvalidToken, resErr.Reason)
}

func TestResolve_MissingSubjectID(t *testing.T) {
	r := testResolver(t)

	token := signToken(t, jwt.MapClaims{"tenant_id": "tenant-1"})
	_, resErr := r.Resolve(types.IdentitySource{Token: token})
	require.NotNil(t, resErr)
	assert.Equal(t, types.ReasonInvalidUserData, resErr.Reason)
}

func TestResolve_StructuredRoleObjects(t *testing.T) {
	r := testResolver(t)

	token := signToken(t, jwt.MapClaims{
		"sub":       "user-1",
		"tenant_id": "tenant-1",
		"roles": []interface{}{
			map[string]interface{}{"code": "MEMBER", "name": "Member"},
			"EDITOR",
			map[string]interface{}{"role_code": "AUDITOR"},
		},
	})

	subject, resErr := r.Resolve(types.IdentitySource{Token: token})
	require.Nil(t, resErr)
	assert.Equal(t, []string{"MEMBER", "EDITOR", "AUDITOR"}, subject.Roles)
}

func TestResolve_DuplicateRolesCollapsed(t *testing.T) {
	r := testResolver(t)

	token := signToken(t, jwt.MapClaims{
		"sub":       "user-1",
		"tenant_id": "tenant-1",
		"roles": []interface{}{
			"MEMBER",
			map[string]interface{}{"code": "MEMBER"},
		},
	})

	subject, resErr := r.Resolve(types.IdentitySource{Token: token})
	require.Nil(t, resErr)
	assert.Equal(t, []string{"MEMBER"}, subject.Roles)
}

func TestResolve_MalformedRoleEntry(t *testing.T) {
	r := testResolver(t)

	token := signToken(t, jwt.MapClaims{
		"sub":       "user-1",
		"tenant_id": "tenant-1",
		"roles":     []interface{}{map[string]interface{}{"name": "no code here"}},
	})

	_, resErr := r.Resolve(types.IdentitySource{Token: token})
	require.NotNil(t, resErr)
	assert.Equal(t, types.ReasonInvalidUserData, resErr.Reason)
}

func TestResolve_HeaderPath(t *testing.T) {
	r := testResolver(t)

	subject, resErr := r.Resolve(types.IdentitySource{Headers: map[string]string{
		HeaderUserID:      "user-2",
		HeaderTenantID:    "tenant-2",
		HeaderUserType:    "service",
		HeaderRoles:       "MEMBER, EDITOR",
		HeaderPermissions: "PORTAL_ACCESS",
	}})
	require.Nil(t, resErr)

	assert.Equal(t, "user-2", subject.ID)
	assert.Equal(t, "tenant-2", subject.TenantID)
	assert.Equal(t, "service", subject.UserType)
	assert.Equal(t, []string{"MEMBER", "EDITOR"}, subject.Roles)
	assert.Equal(t, 30, subject.MaxRoleLevel)
}

func TestResolve_HeadersAuthoritativeOverToken(t *testing.T) {
	r := testResolver(t)

	// A token claiming a different identity rides along; the header bundle wins.
	token := signToken(t, jwt.MapClaims{
		"sub":       "attacker",
		"tenant_id": "tenant-evil",
		"roles":     []interface{}{"SUPER_ADMIN"},
	})

	subject, resErr := r.Resolve(types.IdentitySource{
		Token: token,
		Headers: map[string]string{
			HeaderUserID:   "user-3",
			HeaderTenantID: "tenant-3",
			HeaderRoles:    "MEMBER",
		},
	})
	require.Nil(t, resErr)

	assert.Equal(t, "user-3", subject.ID)
	assert.Equal(t, "tenant-3", subject.TenantID)
	assert.Equal(t, []string{"MEMBER"}, subject.Roles)
}

func TestResolve_HeaderFailures(t *testing.T) {
	r := testResolver(t)

	tests := []struct {
		name    string
		headers map[string]string
		want    types.ReasonCode
	}{
		{
			name:    "missing user id",
			headers: map[string]string{HeaderTenantID: "tenant-1"},
			want:    types.ReasonInvalidHeaders,
		},
		{
			name:    "missing tenant id",
			headers: map[string]string{HeaderUserID: "user-1"},
			want:    types.ReasonMissingTenantID,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, resErr := r.Resolve(types.IdentitySource{Headers: tt.headers})
			require.NotNil(t, resErr)
			assert.Equal(t, tt.want, resErr.Reason)
		})
	}
}

func TestResolve_EmptySource(t *testing.T) {
	r := testResolver(t)

	_, resErr := r.Resolve(types.IdentitySource{})
	require.NotNil(t, resErr)
	assert.Equal(t, types.ReasonInvalidUserData, resErr.Reason)
}
