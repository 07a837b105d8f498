package rest

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/pdp-engine/go-core/internal/engine"
	"github.com/pdp-engine/go-core/internal/identity"
	"github.com/pdp-engine/go-core/pkg/types"
)

// decisionHandler answers one authorization question. Denials are normal
// results, not transport errors: the response is 200 with the decision, and
// mapping DENY to 403 is the caller's concern.
func (s *Server) decisionHandler(w http.ResponseWriter, r *http.Request) {
	var body DecisionRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body", map[string]interface{}{"reason": err.Error()})
		return
	}
	if body.Resource == "" || body.Action == "" {
		WriteError(w, http.StatusBadRequest, "resource and action are required", nil)
		return
	}

	req := s.toEvaluationRequest(r, &body)
	decision := s.engine.Evaluate(r.Context(), req)
	WriteJSON(w, http.StatusOK, decision)
}

// batchDecisionHandler answers up to MaxBatchSize questions, preserving order
func (s *Server) batchDecisionHandler(w http.ResponseWriter, r *http.Request) {
	var body BatchDecisionRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body", map[string]interface{}{"reason": err.Error()})
		return
	}
	if len(body.Requests) == 0 {
		WriteError(w, http.StatusBadRequest, "requests must not be empty", nil)
		return
	}

	requests := make([]*types.EvaluationRequest, len(body.Requests))
	for i := range body.Requests {
		requests[i] = s.toEvaluationRequest(r, &body.Requests[i])
	}

	decisions, err := s.engine.EvaluateBatch(r.Context(), requests)
	if err != nil {
		var tooLarge *engine.ErrBatchTooLarge
		if errors.As(err, &tooLarge) {
			WriteError(w, http.StatusBadRequest, err.Error(), map[string]interface{}{
				"maxBatchSize": types.MaxBatchSize,
			})
			return
		}
		WriteError(w, http.StatusInternalServerError, "batch evaluation failed", nil)
		return
	}

	WriteJSON(w, http.StatusOK, BatchDecisionResponse{
		Decisions: decisions,
		Count:     len(decisions),
	})
}

// effectivePermissionsHandler returns the subject's permissions for a resource
func (s *Server) effectivePermissionsHandler(w http.ResponseWriter, r *http.Request) {
	var body EffectivePermissionsRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body", map[string]interface{}{"reason": err.Error()})
		return
	}
	if body.Resource == "" {
		WriteError(w, http.StatusBadRequest, "resource is required", nil)
		return
	}

	src := s.identitySource(r, body.Identity)
	perms, err := s.engine.EffectivePermissions(r.Context(), src, body.Resource)
	if err != nil {
		var idErr *identity.Error
		if errors.As(err, &idErr) {
			WriteError(w, http.StatusUnauthorized, "identity resolution failed", map[string]interface{}{
				"reason": string(idErr.Reason),
			})
			return
		}
		WriteError(w, http.StatusInternalServerError, "permission lookup failed", nil)
		return
	}

	WriteJSON(w, http.StatusOK, EffectivePermissionsResponse{
		Resource:    body.Resource,
		Permissions: perms,
	})
}

// cacheStatsHandler reports decision cache statistics
func (s *Server) cacheStatsHandler(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, s.engine.CacheStats())
}

// cacheClearHandler drops every cached decision
func (s *Server) cacheClearHandler(w http.ResponseWriter, r *http.Request) {
	s.engine.InvalidateAll(r.Context())
	WriteJSON(w, http.StatusOK, InvalidateResponse{Scope: "all"})
}

// cacheDeleteHandler drops one cached decision by fingerprint
func (s *Server) cacheDeleteHandler(w http.ResponseWriter, r *http.Request) {
	fingerprint := mux.Vars(r)["fingerprint"]
	s.engine.DeleteCached(r.Context(), fingerprint)
	w.WriteHeader(http.StatusNoContent)
}

// invalidateHandler is the hook the role/permission CRUD layer calls after
// any write, scoped to one tenant or to everything
func (s *Server) invalidateHandler(w http.ResponseWriter, r *http.Request) {
	var body InvalidateRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body", map[string]interface{}{"reason": err.Error()})
		return
	}

	if body.TenantID == "" {
		s.engine.InvalidateAll(r.Context())
		WriteJSON(w, http.StatusOK, InvalidateResponse{Scope: "all"})
		return
	}

	removed := s.engine.InvalidateTenant(r.Context(), body.TenantID)
	WriteJSON(w, http.StatusOK, InvalidateResponse{Scope: body.TenantID, Removed: removed})
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{"engine": "ok"}
	if s.engine.CacheStats().Connected {
		checks["cache"] = "ok"
	} else {
		checks["cache"] = "degraded"
	}

	WriteJSON(w, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Checks:    checks,
	})
}

func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	stats := s.engine.CacheStats()

	WriteJSON(w, http.StatusOK, StatusResponse{
		Version:       s.config.Version,
		PolicyVersion: s.engine.PolicyVersion(),
		Uptime:        time.Since(s.startTime).String(),
		CacheStats: map[string]interface{}{
			"size":      stats.Size,
			"hits":      stats.Hits,
			"misses":    stats.Misses,
			"hitRate":   stats.HitRate,
			"connected": stats.Connected,
			"fallbacks": stats.Fallbacks,
		},
		Timestamp: time.Now().UTC(),
	})
}

// toEvaluationRequest converts a wire request, threading the correlation ID
// through the evaluation context
func (s *Server) toEvaluationRequest(r *http.Request, body *DecisionRequest) *types.EvaluationRequest {
	reqCtx := body.Context
	if reqCtx == nil {
		reqCtx = map[string]interface{}{}
	}
	if _, ok := reqCtx[types.ContextCorrelationID]; !ok {
		if id := correlationID(r.Context()); id != "" {
			reqCtx[types.ContextCorrelationID] = id
		}
	}

	return &types.EvaluationRequest{
		Identity: s.identitySource(r, body.Identity),
		Resource: body.Resource,
		Action:   body.Action,
		Context:  reqCtx,
	}
}

// identitySource prefers the body identity, falling back to the gateway
// header bundle forwarded on the HTTP request itself. When the gateway
// headers are present on the request they are authoritative.
func (s *Server) identitySource(r *http.Request, body *types.IdentitySource) types.IdentitySource {
	if headers := gatewayHeaders(r); headers != nil {
		return types.IdentitySource{Headers: headers}
	}
	if body != nil {
		return *body
	}
	return types.IdentitySource{}
}

// gatewayHeaders extracts the trusted identity bundle, keyed by the user ID
// header which the gateway always sets
func gatewayHeaders(r *http.Request) map[string]string {
	if r.Header.Get(identity.HeaderUserID) == "" {
		return nil
	}

	headers := map[string]string{
		identity.HeaderUserID: r.Header.Get(identity.HeaderUserID),
	}
	for _, name := range []string{
		identity.HeaderTenantID,
		identity.HeaderUserType,
		identity.HeaderRoles,
		identity.HeaderPermissions,
	} {
		if v := r.Header.Get(name); v != "" {
			headers[name] = v
		}
	}
	return headers
}
