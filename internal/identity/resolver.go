package identity

import (
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/pdp-engine/go-core/internal/hierarchy"
	"github.com/pdp-engine/go-core/pkg/types"
)

// Error is an identity resolution failure carrying a decision reason code.
// It never escapes the pipeline as a fault: the engine converts it to a DENY.
type Error struct {
	Reason types.ReasonCode
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("identity error [%s]: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("identity error [%s]", e.Reason)
}

func (e *Error) Unwrap() error { return e.Err }

// Resolver normalizes an identity source into a canonical Subject.
//
// Token path: claims are parsed, not verified; cryptographic verification is
// assumed already performed upstream. Header path: the gateway bundle is
// trusted as-is and is the only input considered, so nothing elsewhere in the
// request can override header-derived identity.
type Resolver struct {
	hierarchy *hierarchy.Resolver
	parser    *jwt.Parser
	logger    *zap.Logger
}

// NewResolver creates an identity resolver
func NewResolver(h *hierarchy.Resolver, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		hierarchy: h,
		parser:    jwt.NewParser(),
		logger:    logger,
	}
}

// Resolve normalizes the identity source into a Subject. The header bundle is
// authoritative when present.
func (r *Resolver) Resolve(src types.IdentitySource) (*types.Subject, *Error) {
	var (
		subject *types.Subject
		resErr  *Error
	)

	if src.IsHeaderSourced() {
		subject, resErr = r.resolveHeaders(src.Headers)
	} else if src.Token != "" {
		subject, resErr = r.resolveToken(src.Token)
	} else {
		return nil, &Error{Reason: types.ReasonInvalidUserData, Err: fmt.Errorf("no identity source provided")}
	}

	if resErr != nil {
		return nil, resErr
	}

	subject.MaxRoleLevel = r.hierarchy.HighestLevel(subject.Roles)
	return subject, nil
}

// resolveToken parses trusted token bytes into a Subject
func (r *Resolver) resolveToken(token string) (*types.Subject, *Error) {
	claims := jwt.MapClaims{}
	if _, _, err := r.parser.ParseUnverified(token, claims); err != nil {
		return nil, &Error{Reason: types.ReasonInvalidToken, Err: err}
	}

	id := firstStringClaim(claims, subjectClaimAliases)
	if id == "" {
		return nil, &Error{Reason: types.ReasonInvalidUserData, Err: fmt.Errorf("missing subject id claim")}
	}

	// Tenant absence is a distinct failure from a structurally invalid token
	tenantID := firstStringClaim(claims, tenantClaimAliases)
	if tenantID == "" {
		return nil, &Error{Reason: types.ReasonMissingTenantID, Err: fmt.Errorf("no tenant id claim among %v", tenantClaimAliases)}
	}

	roles, err := normalizeRoles(claims["roles"])
	if err != nil {
		return nil, &Error{Reason: types.ReasonInvalidUserData, Err: err}
	}

	perms, err := normalizeStrings(claims["permissions"])
	if err != nil {
		return nil, &Error{Reason: types.ReasonInvalidUserData, Err: err}
	}

	userType, _ := claims["user_type"].(string)

	return &types.Subject{
		ID:          id,
		TenantID:    tenantID,
		UserType:    userType,
		Roles:       roles,
		Permissions: perms,
	}, nil
}

// resolveHeaders builds a Subject solely from the gateway header bundle
func (r *Resolver) resolveHeaders(headers map[string]string) (*types.Subject, *Error) {
	id := headers[HeaderUserID]
	if id == "" {
		return nil, &Error{Reason: types.ReasonInvalidHeaders, Err: fmt.Errorf("missing %s header", HeaderUserID)}
	}

	tenantID := headers[HeaderTenantID]
	if tenantID == "" {
		return nil, &Error{Reason: types.ReasonMissingTenantID, Err: fmt.Errorf("missing %s header", HeaderTenantID)}
	}

	return &types.Subject{
		ID:          id,
		TenantID:    tenantID,
		UserType:    headers[HeaderUserType],
		Roles:       splitHeaderList(headers[HeaderRoles]),
		Permissions: splitHeaderList(headers[HeaderPermissions]),
	}, nil
}

// firstStringClaim returns the first non-empty string among the alias claims
func firstStringClaim(claims jwt.MapClaims, aliases []string) string {
	for _, name := range aliases {
		if v, ok := claims[name].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

// normalizeRoles flattens shape-polymorphic role claims into a set of codes.
// Roles may arrive as bare strings or as structured {code, ...} objects.
func normalizeRoles(raw interface{}) ([]string, error) {
	if raw == nil {
		return nil, nil
	}

	items, ok := raw.([]interface{})
	if !ok {
		return nil, fmt.Errorf("roles claim is not a list (got %T)", raw)
	}

	seen := make(map[string]bool, len(items))
	codes := make([]string, 0, len(items))
	for i, item := range items {
		var code string
		switch v := item.(type) {
		case string:
			code = v
		case map[string]interface{}:
			if c, ok := v["code"].(string); ok {
				code = c
			} else if c, ok := v["role_code"].(string); ok {
				code = c
			}
		}
		if code == "" {
			return nil, fmt.Errorf("role entry %d has no usable code (got %T)", i, item)
		}
		if !seen[code] {
			seen[code] = true
			codes = append(codes, code)
		}
	}
	return codes, nil
}

// normalizeStrings converts a claim into a flat string slice
func normalizeStrings(raw interface{}) ([]string, error) {
	if raw == nil {
		return nil, nil
	}

	items, ok := raw.([]interface{})
	if !ok {
		return nil, fmt.Errorf("claim is not a list (got %T)", raw)
	}

	out := make([]string, 0, len(items))
	for i, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("entry %d is not a string (got %T)", i, item)
		}
		out = append(out, s)
	}
	return out, nil
}

// splitHeaderList splits a comma-separated header value into trimmed entries
func splitHeaderList(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
