package statemachine

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/landrecords/portal/common/models"
)

// GuardInput builds the `entity` variable a guard is evaluated against
func GuardInput(e *models.Entity) map[string]any {
	history := make([]string, 0, len(e.StateEnteredAt))
	for _, s := range e.History() {
		history = append(history, string(s))
	}
	attrs := e.Attributes
	if attrs == nil {
		attrs = map[string]any{}
	}
	return map[string]any{
		"type":       e.Type,
		"status":     string(e.Status),
		"history":    history,
		"attributes": attrs,
	}
}

// guardEvaluator compiles CEL guards once and caches the programs
type guardEvaluator struct {
	env   *cel.Env
	cache map[string]cel.Program
	mu    sync.RWMutex
}

func newGuardEvaluator() (*guardEvaluator, error) {
	env, err := cel.NewEnv(
		cel.Variable("entity", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL env: %w", err)
	}
	return &guardEvaluator{env: env, cache: make(map[string]cel.Program)}, nil
}

func (g *guardEvaluator) program(expr string) (cel.Program, error) {
	g.mu.RLock()
	prg, ok := g.cache[expr]
	g.mu.RUnlock()
	if ok {
		return prg, nil
	}

	ast, issues := g.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("CEL compilation error: %w", issues.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("guard %q must return bool, got %s", expr, ast.OutputType())
	}
	prg, err := g.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL program: %w", err)
	}

	g.mu.Lock()
	g.cache[expr] = prg
	g.mu.Unlock()
	return prg, nil
}

// eval returns the guard result for e. An empty guard always passes.
func (g *guardEvaluator) eval(expr string, e *models.Entity) (bool, error) {
	if expr == "" {
		return true, nil
	}
	prg, err := g.program(expr)
	if err != nil {
		return false, err
	}
	out, _, err := prg.Eval(map[string]any{"entity": GuardInput(e)})
	if err != nil {
		return false, fmt.Errorf("CEL evaluation error: %w", err)
	}
	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("CEL expression did not return boolean, got %T", out.Value())
	}
	return result, nil
}

func (g *guardEvaluator) size() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.cache)
}
