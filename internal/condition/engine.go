// Package condition provides CEL guard expression compilation and evaluation
package condition

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/pdp-engine/go-core/pkg/types"
)

// Engine compiles and evaluates catalog guard expressions. Compiled programs
// are cached by expression text; the hot path never re-parses.
type Engine struct {
	env      *cel.Env
	programs sync.Map // map[string]cel.Program
}

// NewEngine creates a CEL engine exposing subject, resource, and context maps
func NewEngine() (*Engine, error) {
	env, err := cel.NewEnv(
		cel.Variable("subject", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("resource", cel.StringType),
		cel.Variable("action", cel.StringType),
		cel.Variable("context", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("create CEL environment: %w", err)
	}
	return &Engine{env: env}, nil
}

// Compile validates and caches an expression. Used at catalog load time so
// malformed guards are rejected before they can reach the hot path.
func (e *Engine) Compile(expr string) error {
	if _, ok := e.programs.Load(expr); ok {
		return nil
	}

	ast, issues := e.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return fmt.Errorf("compile condition: %w", issues.Err())
	}
	if ast.OutputType() != cel.BoolType {
		return fmt.Errorf("condition must return bool, got %v", ast.OutputType())
	}

	prog, err := e.env.Program(ast)
	if err != nil {
		return fmt.Errorf("build condition program: %w", err)
	}

	e.programs.Store(expr, prog)
	return nil
}

// Evaluate runs a previously compiled expression against an evaluation
func (e *Engine) Evaluate(expr string, subject *types.Subject, resource, action string, reqCtx map[string]interface{}) (bool, error) {
	cached, ok := e.programs.Load(expr)
	if !ok {
		if err := e.Compile(expr); err != nil {
			return false, err
		}
		cached, _ = e.programs.Load(expr)
	}
	prog := cached.(cel.Program)

	if reqCtx == nil {
		reqCtx = map[string]interface{}{}
	}

	vars := map[string]interface{}{
		"subject": map[string]interface{}{
			"id":           subject.ID,
			"tenantId":     subject.TenantID,
			"userType":     subject.UserType,
			"roles":        subject.Roles,
			"permissions":  subject.Permissions,
			"maxRoleLevel": subject.MaxRoleLevel,
		},
		"resource": resource,
		"action":   action,
		"context":  reqCtx,
	}

	result, _, err := prog.Eval(vars)
	if err != nil {
		return false, fmt.Errorf("evaluate condition: %w", err)
	}

	boolVal, ok := result.Value().(bool)
	if !ok {
		return false, fmt.Errorf("condition did not return bool (got %T)", result.Value())
	}
	return boolVal, nil
}

// ClearCache drops all compiled programs
func (e *Engine) ClearCache() {
	e.programs = sync.Map{}
}
