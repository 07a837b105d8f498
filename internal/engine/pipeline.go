package engine

import (
	"time"

	"github.com/pdp-engine/go-core/internal/catalog"
	"github.com/pdp-engine/go-core/internal/condition"
	"github.com/pdp-engine/go-core/internal/hierarchy"
	"github.com/pdp-engine/go-core/pkg/types"
)

// PipelineConfig holds the rule parameters for one pipeline instance
type PipelineConfig struct {
	// Bypass short-circuits every evaluation to PERMIT. A structurally valid
	// subject is still required.
	Bypass bool

	// ScopedAdminRole may act across its own tenant explicitly but never
	// across others
	ScopedAdminRole string

	// ActionLevels maps action names to the minimum role level required
	ActionLevels map[string]int
}

// Pipeline runs the ordered rule sequence for one resolved subject. Stages
// are strictly sequential: a stage never runs once an earlier stage decided.
type Pipeline struct {
	hierarchy  *hierarchy.Resolver
	catalog    *catalog.Resolver
	conditions *condition.Engine
	config     PipelineConfig
}

// NewPipeline creates an evaluation pipeline
func NewPipeline(h *hierarchy.Resolver, cat *catalog.Resolver, cond *condition.Engine, config PipelineConfig) *Pipeline {
	return &Pipeline{
		hierarchy:  h,
		catalog:    cat,
		conditions: cond,
		config:     config,
	}
}

// Evaluate runs the subject through every rule stage in order. The result is
// always a Decision; rule failures are denials, never errors.
func (p *Pipeline) Evaluate(subject *types.Subject, req *types.EvaluationRequest) *types.Decision {
	if d := p.bypassStage(subject, req); d != nil {
		return d
	}
	if d := p.superUserStage(subject, req); d != nil {
		return d
	}
	if d := p.tenantContextStage(subject, req); d != nil {
		return d
	}
	if d := p.tenantIsolationStage(subject, req); d != nil {
		return d
	}
	if d := p.resourceStage(subject, req); d != nil {
		return d
	}
	if d := p.actionStage(subject, req); d != nil {
		return d
	}
	if d := p.permissionStage(subject, req); d != nil {
		return d
	}
	return p.decide(types.OutcomePermit, types.ReasonPolicySatisfied, subject, req, nil)
}

// bypassStage is the operator-configured escape hatch
func (p *Pipeline) bypassStage(subject *types.Subject, req *types.EvaluationRequest) *types.Decision {
	if !p.config.Bypass {
		return nil
	}
	return p.decide(types.OutcomePermit, types.ReasonAuthorizationBypass, subject, req, nil)
}

// superUserStage grants the designated top-level role everything
func (p *Pipeline) superUserStage(subject *types.Subject, req *types.EvaluationRequest) *types.Decision {
	if !p.hierarchy.IsSuperUser(subject.Roles) {
		return nil
	}
	return p.decide(types.OutcomePermit, types.ReasonSuperUserBypass, subject, req, nil)
}

// tenantContextStage requires the subject to carry a tenant
func (p *Pipeline) tenantContextStage(subject *types.Subject, req *types.EvaluationRequest) *types.Decision {
	if subject.TenantID != "" {
		return nil
	}
	return p.decide(types.OutcomeDeny, types.ReasonMissingTenantContext, subject, req, nil)
}

// tenantIsolationStage blocks cross-tenant targeting. The scoped admin role
// is granted its own tenant explicitly and denied any other with a distinct
// reason so audit trails can tell escalation attempts from plain mismatches.
func (p *Pipeline) tenantIsolationStage(subject *types.Subject, req *types.EvaluationRequest) *types.Decision {
	target := req.TargetTenantID()
	if target == "" {
		return nil
	}

	scopedAdmin := p.config.ScopedAdminRole != "" && subject.HasRole(p.config.ScopedAdminRole)

	if target == subject.TenantID {
		if scopedAdmin {
			return p.decide(types.OutcomePermit, types.ReasonScopedAdminOwnTenant, subject, req, nil)
		}
		return nil
	}

	if scopedAdmin {
		return p.decide(types.OutcomeDeny, types.ReasonTenantScopeViolation, subject, req, map[string]interface{}{
			"subjectTenant": subject.TenantID,
		})
	}
	return p.decide(types.OutcomeDeny, types.ReasonTenantMismatch, subject, req, map[string]interface{}{
		"subjectTenant": subject.TenantID,
	})
}

// resourceStage requires a catalog-known resource, a held resource
// permission, an allowed subject category, and a passing guard condition
func (p *Pipeline) resourceStage(subject *types.Subject, req *types.EvaluationRequest) *types.Decision {
	def, ok := p.catalog.PermissionsForResource(req.Resource)
	if !ok {
		return p.decide(types.OutcomeDeny, types.ReasonUnknownResource, subject, req, nil)
	}

	if !p.catalog.HasAny(subject.Permissions, def.Permissions) {
		return p.decide(types.OutcomeDeny, types.ReasonInsufficientResourcePermission, subject, req, map[string]interface{}{
			"resourcePermissions": def.Permissions,
		})
	}

	if !p.catalog.CategoryAllowed(def, subject.UserType) {
		return p.decide(types.OutcomeDeny, types.ReasonInvalidUserType, subject, req, map[string]interface{}{
			"allowedCategories": def.AllowedCategories,
		})
	}

	if def.Condition != "" {
		passed, err := p.conditions.Evaluate(def.Condition, subject, req.Resource, req.Action, req.Context)
		if err != nil {
			return p.decide(types.OutcomeDeny, types.ReasonEvaluationError, subject, req, map[string]interface{}{
				"error": err.Error(),
			})
		}
		if !passed {
			return p.decide(types.OutcomeDeny, types.ReasonResourceConditionFailed, subject, req, nil)
		}
	}
	return nil
}

// actionStage enforces the minimum role level for the action
func (p *Pipeline) actionStage(subject *types.Subject, req *types.EvaluationRequest) *types.Decision {
	required, ok := p.config.ActionLevels[req.Action]
	if !ok {
		return p.decide(types.OutcomeDeny, types.ReasonUnknownAction, subject, req, nil)
	}

	if subject.MaxRoleLevel < required {
		return p.decide(types.OutcomeDeny, types.ReasonInsufficientRoleLevel, subject, req, map[string]interface{}{
			"requiredLevel": required,
			"actualLevel":   subject.MaxRoleLevel,
		})
	}
	return nil
}

// permissionStage requires the exact permission code for (resource, action)
func (p *Pipeline) permissionStage(subject *types.Subject, req *types.EvaluationRequest) *types.Decision {
	code, ok := p.catalog.PermissionFor(req.Resource, req.Action)
	if !ok {
		return p.decide(types.OutcomeDeny, types.ReasonPermissionNotDefined, subject, req, nil)
	}

	if !subject.HasPermission(code) {
		return p.decide(types.OutcomeDeny, types.ReasonMissingPermission, subject, req, map[string]interface{}{
			"requiredPermission": code,
		})
	}
	return nil
}

// decide builds a decision carrying enough context for the caller to render
// a useful error without leaking another tenant's data
func (p *Pipeline) decide(outcome types.Outcome, reason types.ReasonCode, subject *types.Subject, req *types.EvaluationRequest, detail map[string]interface{}) *types.Decision {
	return &types.Decision{
		Outcome:       outcome,
		Reason:        reason,
		Subject:       subject.Snapshot(),
		Resource:      req.Resource,
		Action:        req.Action,
		EvaluatedAt:   time.Now().UTC(),
		PolicyVersion: p.catalog.Version(),
		CorrelationID: req.CorrelationID(),
		Detail:        detail,
	}
}
