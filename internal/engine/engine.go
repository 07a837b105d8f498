// Package engine provides the policy decision core: identity resolution,
// the ordered rule pipeline, decision caching, and the timeout guard.
package engine

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/pdp-engine/go-core/internal/audit"
	"github.com/pdp-engine/go-core/internal/cache"
	"github.com/pdp-engine/go-core/internal/catalog"
	"github.com/pdp-engine/go-core/internal/condition"
	"github.com/pdp-engine/go-core/internal/hierarchy"
	"github.com/pdp-engine/go-core/internal/identity"
	"github.com/pdp-engine/go-core/internal/metrics"
	"github.com/pdp-engine/go-core/pkg/types"
)

// Config configures the decision engine
type Config struct {
	// Pipeline rule parameters
	Pipeline PipelineConfig

	// CacheEnabled turns decision memoization on
	CacheEnabled bool

	// PositiveTTL bounds how long a PERMIT may be served stale.
	// NegativeTTL does the same for denials and must not exceed PositiveTTL.
	PositiveTTL time.Duration
	NegativeTTL time.Duration

	// Timeout is the hard deadline for one evaluation
	Timeout time.Duration

	// BatchWorkers bounds batch evaluation concurrency
	BatchWorkers int
}

// DefaultConfig returns a default engine configuration
func DefaultConfig() Config {
	return Config{
		Pipeline: PipelineConfig{
			ScopedAdminRole: "TENANT_ADMIN",
			ActionLevels: map[string]int{
				"read":        1,
				"list":        1,
				"write":       30,
				"create":      30,
				"update":      30,
				"delete":      60,
				"admin":       80,
				"super_admin": 100,
			},
		},
		CacheEnabled: true,
		PositiveTTL:  300 * time.Second,
		NegativeTTL:  60 * time.Second,
		Timeout:      3 * time.Second,
		BatchWorkers: 16,
	}
}

// Engine is the policy decision core. It owns no policy data itself: the
// catalog store is the source of truth and the cache is an optimization.
type Engine struct {
	identity  *identity.Resolver
	hierarchy *hierarchy.Resolver
	catalog   *catalog.Resolver
	pipeline  *Pipeline
	cache     cache.DecisionCache
	pool      *WorkerPool
	config    Config
	metrics   metrics.Metrics
	audit     audit.Logger
	logger    *zap.Logger
}

// Deps bundles the engine's collaborators
type Deps struct {
	Identity   *identity.Resolver
	Hierarchy  *hierarchy.Resolver
	Catalog    *catalog.Resolver
	Conditions *condition.Engine
	Cache      cache.DecisionCache
	Metrics    metrics.Metrics
	Audit      audit.Logger
	Logger     *zap.Logger
}

// New creates a decision engine
func New(cfg Config, deps Deps) (*Engine, error) {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.NewNoOpMetrics()
	}
	if deps.Audit == nil {
		deps.Audit = audit.NopLogger{}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Second
	}

	return &Engine{
		identity:  deps.Identity,
		hierarchy: deps.Hierarchy,
		catalog:   deps.Catalog,
		pipeline:  NewPipeline(deps.Hierarchy, deps.Catalog, deps.Conditions, cfg.Pipeline),
		cache:     deps.Cache,
		pool:      NewWorkerPool(cfg.BatchWorkers),
		config:    cfg,
		metrics:   deps.Metrics,
		audit:     deps.Audit,
		logger:    deps.Logger,
	}, nil
}

// Evaluate answers one authorization question. The answer is always a
// Decision: identity failures, rule denials, internal faults, and the
// deadline all surface as DENY with a reason code, never as an error.
func (e *Engine) Evaluate(ctx context.Context, req *types.EvaluationRequest) *types.Decision {
	start := time.Now()
	e.metrics.IncActiveEvaluations()
	defer e.metrics.DecActiveEvaluations()

	decision := e.evaluateWithDeadline(ctx, req)

	elapsed := time.Since(start)
	e.metrics.RecordDecision(string(decision.Outcome), string(decision.Reason), elapsed)
	e.recordAudit(decision, elapsed)
	return decision
}

// recordAudit appends the decision to the audit trail. Best-effort and
// non-blocking.
func (e *Engine) recordAudit(decision *types.Decision, elapsed time.Duration) {
	event := &audit.Event{
		Resource:      decision.Resource,
		Action:        decision.Action,
		Outcome:       string(decision.Outcome),
		Reason:        string(decision.Reason),
		PolicyVersion: decision.PolicyVersion,
		CorrelationID: decision.CorrelationID,
		CacheHit:      decision.CacheHit,
		DurationUS:    elapsed.Microseconds(),
	}
	if decision.Subject != nil {
		event.TenantID = decision.Subject.TenantID
		event.SubjectID = decision.Subject.ID
	}
	e.audit.Record(event)
}

// evaluateWithDeadline races the evaluation against the configured deadline.
// On expiry the caller gets a deterministic DENY immediately; the in-flight
// computation is read-only and finishes on its own.
func (e *Engine) evaluateWithDeadline(ctx context.Context, req *types.EvaluationRequest) *types.Decision {
	done := make(chan *types.Decision, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				e.logger.Error("Evaluation panicked",
					zap.Any("panic", r),
					zap.String("resource", req.Resource),
					zap.String("action", req.Action),
				)
				done <- e.systemDeny(req, types.ReasonEvaluationError)
			}
		}()
		done <- e.evaluate(ctx, req)
	}()

	timer := time.NewTimer(e.config.Timeout)
	defer timer.Stop()

	select {
	case decision := <-done:
		return decision
	case <-ctx.Done():
		// A caller hang-up is not a deadline expiry and must not inflate
		// the timeout metric
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			e.metrics.RecordTimeout()
			return e.systemDeny(req, types.ReasonEvaluationTimeout)
		}
		return e.systemDeny(req, types.ReasonEvaluationError)
	case <-timer.C:
		e.metrics.RecordTimeout()
		e.logger.Warn("Evaluation exceeded deadline",
			zap.Duration("timeout", e.config.Timeout),
			zap.String("resource", req.Resource),
			zap.String("action", req.Action),
		)
		return e.systemDeny(req, types.ReasonEvaluationTimeout)
	}
}

// evaluate resolves identity, consults the cache, and runs the pipeline
func (e *Engine) evaluate(ctx context.Context, req *types.EvaluationRequest) *types.Decision {
	subject, idErr := e.identity.Resolve(req.Identity)

	var fingerprint string
	if subject != nil {
		fingerprint = req.Fingerprint(subject.IdentityHash(), subject.TenantID, e.catalog.Version())
	} else {
		// Identity failures are memoized too, keyed by a non-reversible
		// hash of the raw source
		fingerprint = req.Fingerprint(req.Identity.Hash(), "", e.catalog.Version())
	}

	if e.cacheReadable() {
		if cached, found := e.cache.Get(ctx, fingerprint); found {
			e.metrics.RecordCacheHit()
			served := *cached
			served.CacheHit = true
			return &served
		}
		e.metrics.RecordCacheMiss()
	}

	var decision *types.Decision
	if idErr != nil {
		decision = e.identityDeny(req, idErr)
	} else {
		decision = e.pipeline.Evaluate(subject, req)
	}

	e.storeDecision(fingerprint, decision)
	return decision
}

// identityDeny converts an identity resolution failure into a denial
func (e *Engine) identityDeny(req *types.EvaluationRequest, idErr *identity.Error) *types.Decision {
	return &types.Decision{
		Outcome:       types.OutcomeDeny,
		Reason:        idErr.Reason,
		Resource:      req.Resource,
		Action:        req.Action,
		EvaluatedAt:   time.Now().UTC(),
		PolicyVersion: e.catalog.Version(),
		CorrelationID: req.CorrelationID(),
	}
}

// systemDeny is the deterministic denial for internal faults and deadlines
func (e *Engine) systemDeny(req *types.EvaluationRequest, reason types.ReasonCode) *types.Decision {
	return &types.Decision{
		Outcome:       types.OutcomeDeny,
		Reason:        reason,
		Resource:      req.Resource,
		Action:        req.Action,
		EvaluatedAt:   time.Now().UTC(),
		PolicyVersion: e.catalog.Version(),
		CorrelationID: req.CorrelationID(),
	}
}

// storeDecision writes the decision to the cache in the background. The
// caller already has their answer; a write failure only costs hit rate.
func (e *Engine) storeDecision(fingerprint string, decision *types.Decision) {
	if !e.cacheReadable() {
		return
	}

	// Transient faults are never memoized: the next call should retry
	if decision.Reason == types.ReasonEvaluationError || decision.Reason == types.ReasonEvaluationTimeout {
		return
	}

	ttl := e.config.PositiveTTL
	if decision.Outcome == types.OutcomeDeny {
		ttl = e.config.NegativeTTL
	}

	expiresAt := decision.EvaluatedAt.Add(ttl)
	decision.ExpiresAt = &expiresAt

	stored := *decision
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		e.cache.Set(ctx, fingerprint, &stored, ttl)
	}()
}

func (e *Engine) cacheReadable() bool {
	return e.config.CacheEnabled && e.cache != nil
}

// EffectivePermissions returns the subset of the subject's permissions
// applicable to the resource, or the wildcard alone for a super-user.
func (e *Engine) EffectivePermissions(ctx context.Context, src types.IdentitySource, resource string) ([]string, error) {
	subject, idErr := e.identity.Resolve(src)
	if idErr != nil {
		return nil, idErr
	}

	if e.hierarchy.IsSuperUser(subject.Roles) {
		return []string{types.WildcardPermission}, nil
	}

	def, ok := e.catalog.PermissionsForResource(resource)
	if !ok {
		return []string{}, nil
	}

	registered := make(map[string]bool, len(def.Permissions))
	for _, code := range def.Permissions {
		registered[code] = true
	}

	effective := make([]string, 0, len(subject.Permissions))
	for _, code := range subject.Permissions {
		if code == types.WildcardPermission || registered[code] {
			effective = append(effective, code)
		}
	}
	return effective, nil
}

// InvalidateTenant drops every cached decision scoped to the tenant. Called
// by the role/permission CRUD layer after any write affecting the tenant.
func (e *Engine) InvalidateTenant(ctx context.Context, tenantID string) int {
	if e.cache == nil {
		return 0
	}
	removed := e.cache.DeletePattern(ctx, tenantID)
	e.logger.Info("Invalidated tenant decisions",
		zap.String("tenant", tenantID),
		zap.Int("removed", removed),
	)
	return removed
}

// InvalidateAll drops every cached decision
func (e *Engine) InvalidateAll(ctx context.Context) {
	if e.cache == nil {
		return
	}
	e.cache.Clear(ctx)
	e.logger.Info("Cleared all cached decisions")
}

// DeleteCached drops one cached decision by fingerprint
func (e *Engine) DeleteCached(ctx context.Context, fingerprint string) {
	if e.cache == nil {
		return
	}
	e.cache.Delete(ctx, fingerprint)
}

// CacheStats reports decision cache statistics
func (e *Engine) CacheStats() cache.Stats {
	if e.cache == nil {
		return cache.Stats{}
	}
	return e.cache.Stats()
}

// PolicyVersion returns the active catalog snapshot version
func (e *Engine) PolicyVersion() string {
	return e.catalog.Version()
}

// Close releases engine resources
func (e *Engine) Close() {
	e.pool.Stop()
}
