// Package types provides shared types for the policy decision point
package types

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Outcome represents the authorization decision
type Outcome string

const (
	OutcomePermit Outcome = "PERMIT"
	OutcomeDeny   Outcome = "DENY"
)

// WildcardPermission satisfies any permission check
const WildcardPermission = "*"

// Subject is the canonical identity a decision is evaluated for.
// It is produced per-request by the identity resolver and never persisted.
type Subject struct {
	ID           string   `json:"id"`
	TenantID     string   `json:"tenantId"`
	UserType     string   `json:"userType"`
	Roles        []string `json:"roles"`
	Permissions  []string `json:"permissions"`
	MaxRoleLevel int      `json:"maxRoleLevel"`
}

// HasRole checks if the subject holds a specific role code
func (s *Subject) HasRole(role string) bool {
	for _, r := range s.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// HasPermission checks if the subject holds a permission code or the wildcard
func (s *Subject) HasPermission(code string) bool {
	for _, p := range s.Permissions {
		if p == WildcardPermission || p == code {
			return true
		}
	}
	return false
}

// IdentityHash returns a short, non-reversible hash of the subject identity.
// Roles and permissions are sorted so the hash is independent of claim order.
func (s *Subject) IdentityHash() string {
	roles := make([]string, len(s.Roles))
	copy(roles, s.Roles)
	sort.Strings(roles)

	perms := make([]string, len(s.Permissions))
	copy(perms, s.Permissions)
	sort.Strings(perms)

	key := fmt.Sprintf("%s:%s:%s:%s:%s",
		s.ID,
		s.TenantID,
		s.UserType,
		strings.Join(roles, ","),
		strings.Join(perms, ","),
	)
	hash := sha256.Sum256([]byte(key))
	return hex.EncodeToString(hash[:8])
}

// Snapshot returns the denormalized subject view embedded in decisions.
// The raw token never appears here.
func (s *Subject) Snapshot() *SubjectSnapshot {
	roles := make([]string, len(s.Roles))
	copy(roles, s.Roles)
	perms := make([]string, len(s.Permissions))
	copy(perms, s.Permissions)

	return &SubjectSnapshot{
		ID:          s.ID,
		TenantID:    s.TenantID,
		UserType:    s.UserType,
		Roles:       roles,
		Permissions: perms,
	}
}

// SubjectSnapshot is the audit view of a subject carried on decisions
type SubjectSnapshot struct {
	ID          string   `json:"id"`
	TenantID    string   `json:"tenantId"`
	UserType    string   `json:"userType,omitempty"`
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
}

// IdentitySource carries either an opaque bearer token or a bundle of
// pre-verified gateway headers. Exactly one of the two should be set;
// when both are present the header bundle is authoritative.
type IdentitySource struct {
	Token   string            `json:"token,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
}

// IsHeaderSourced reports whether the gateway header bundle is present
func (s *IdentitySource) IsHeaderSourced() bool {
	return len(s.Headers) > 0
}

// Hash returns a short non-reversible hash of the raw identity material.
// Used for cache fingerprints when identity resolution itself fails, so
// the failure can be memoized without ever storing the secret.
func (s *IdentitySource) Hash() string {
	if s.IsHeaderSourced() {
		keys := make([]string, 0, len(s.Headers))
		for k := range s.Headers {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var b strings.Builder
		for _, k := range keys {
			b.WriteString(k)
			b.WriteByte('=')
			b.WriteString(s.Headers[k])
			b.WriteByte(';')
		}
		hash := sha256.Sum256([]byte(b.String()))
		return hex.EncodeToString(hash[:8])
	}
	hash := sha256.Sum256([]byte(s.Token))
	return hex.EncodeToString(hash[:8])
}

// Context keys with meaning to the evaluation pipeline
const (
	ContextTargetTenantID = "targetTenantId"
	ContextCorrelationID  = "correlationId"
)

// EvaluationRequest is a single authorization question. Immutable once constructed.
type EvaluationRequest struct {
	Identity IdentitySource         `json:"identity"`
	Resource string                 `json:"resource"`
	Action   string                 `json:"action"`
	Context  map[string]interface{} `json:"context,omitempty"`
}

// TargetTenantID extracts the target tenant from the request context, if any
func (r *EvaluationRequest) TargetTenantID() string {
	if r.Context == nil {
		return ""
	}
	if v, ok := r.Context[ContextTargetTenantID].(string); ok {
		return v
	}
	return ""
}

// CorrelationID extracts the caller-supplied correlation ID, if any
func (r *EvaluationRequest) CorrelationID() string {
	if r.Context == nil {
		return ""
	}
	if v, ok := r.Context[ContextCorrelationID].(string); ok {
		return v
	}
	return ""
}

// Fingerprint derives the cache key for this request evaluated as identityHash
// within tenantID. Two different (subject, resource, action) triples never
// collide, and the same triple always maps to the same fingerprint for the
// given catalog version.
func (r *EvaluationRequest) Fingerprint(identityHash, tenantID, catalogVersion string) string {
	key := fmt.Sprintf("%s:%s:%s:%s:%s",
		identityHash,
		r.Resource,
		r.Action,
		r.TargetTenantID(),
		catalogVersion,
	)
	hash := sha256.Sum256([]byte(key))

	// The tenant stays visible as a key segment so tenant-wide invalidation
	// can match without decoding entries
	if tenantID == "" {
		tenantID = "global"
	}
	return tenantID + ":" + hex.EncodeToString(hash[:16])
}

// Decision is the authoritative answer for one evaluation request.
// Decisions are values: produced, optionally cached, and returned.
type Decision struct {
	Outcome       Outcome                `json:"decision"`
	Reason        ReasonCode             `json:"reason"`
	Subject       *SubjectSnapshot       `json:"user,omitempty"`
	Resource      string                 `json:"resource"`
	Action        string                 `json:"action"`
	EvaluatedAt   time.Time              `json:"timestamp"`
	ExpiresAt     *time.Time             `json:"expiresAt,omitempty"`
	PolicyVersion string                 `json:"policyVersion"`
	CorrelationID string                 `json:"correlationId,omitempty"`
	CacheHit      bool                   `json:"cacheHit,omitempty"`
	Detail        map[string]interface{} `json:"detail,omitempty"`
}

// Permitted returns true if the outcome is PERMIT
func (d *Decision) Permitted() bool {
	return d.Outcome == OutcomePermit
}

// MaxBatchSize bounds the number of requests in one batch evaluation
const MaxBatchSize = 50
