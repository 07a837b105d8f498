// Package rest provides the REST API for the policy decision service
package rest

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/pdp-engine/go-core/pkg/types"
)

// ErrorResponse is the API error envelope
type ErrorResponse struct {
	Error   string                 `json:"error"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// DecisionRequest is the wire shape of one evaluation question. Identity may
// be omitted when the gateway header bundle is forwarded on the HTTP request.
type DecisionRequest struct {
	Identity *types.IdentitySource  `json:"identity,omitempty"`
	Resource string                 `json:"resource"`
	Action   string                 `json:"action"`
	Context  map[string]interface{} `json:"context,omitempty"`
}

// BatchDecisionRequest carries up to MaxBatchSize evaluation questions
type BatchDecisionRequest struct {
	Requests []DecisionRequest `json:"requests"`
}

// BatchDecisionResponse returns decisions in input order
type BatchDecisionResponse struct {
	Decisions []*types.Decision `json:"decisions"`
	Count     int               `json:"count"`
}

// EffectivePermissionsRequest queries the subject's permissions for a resource
type EffectivePermissionsRequest struct {
	Identity *types.IdentitySource `json:"identity,omitempty"`
	Resource string                `json:"resource"`
}

// EffectivePermissionsResponse lists the applicable permission codes
type EffectivePermissionsResponse struct {
	Resource    string   `json:"resource"`
	Permissions []string `json:"permissions"`
}

// InvalidateRequest scopes a cache invalidation. An empty tenant clears all.
type InvalidateRequest struct {
	TenantID string `json:"tenantId,omitempty"`
}

// InvalidateResponse reports what was invalidated
type InvalidateResponse struct {
	Scope   string `json:"scope"`
	Removed int    `json:"removed,omitempty"`
}

// HealthResponse is the health check payload
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
}

// StatusResponse is the service status payload
type StatusResponse struct {
	Version       string                 `json:"version"`
	PolicyVersion string                 `json:"policyVersion"`
	Uptime        string                 `json:"uptime"`
	CacheStats    map[string]interface{} `json:"cacheStats,omitempty"`
	Timestamp     time.Time              `json:"timestamp"`
}

// WriteJSON writes a JSON response
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// WriteError writes a JSON error response
func WriteError(w http.ResponseWriter, statusCode int, message string, details map[string]interface{}) {
	WriteJSON(w, statusCode, ErrorResponse{Error: message, Details: details})
}
