package statemachine

import (
	"fmt"

	"github.com/landrecords/portal/common/apperr"
	"github.com/landrecords/portal/common/models"
)

// Registry holds the definition of every entity kind
type Registry struct {
	defs   map[models.Kind]*Definition
	guards *guardEvaluator
}

// NewRegistry validates and indexes defs. Every guard is compiled up front so
// a malformed expression fails at startup instead of on a live transition.
func NewRegistry(defs ...*Definition) (*Registry, error) {
	guards, err := newGuardEvaluator()
	if err != nil {
		return nil, err
	}
	r := &Registry{defs: make(map[models.Kind]*Definition, len(defs)), guards: guards}
	for _, d := range defs {
		if _, dup := r.defs[d.Kind]; dup {
			return nil, fmt.Errorf("kind %s registered twice", d.Kind)
		}
		if err := d.seal(); err != nil {
			return nil, err
		}
		for _, e := range d.Edges {
			if e.Guard == "" {
				continue
			}
			if _, err := guards.program(e.Guard); err != nil {
				return nil, fmt.Errorf("kind %s edge %s->%s: %w", d.Kind, e.From, e.To, err)
			}
		}
		r.defs[d.Kind] = d
	}
	return r, nil
}

// Default returns the registry of all portal workflows
func Default() *Registry {
	r, err := NewRegistry(SIA(), LandNotification(), Award(), Possession(), Objection())
	if err != nil {
		panic(fmt.Sprintf("statemachine: invalid built-in definitions: %v", err))
	}
	return r
}

// Definition returns the definition of kind
func (r *Registry) Definition(kind models.Kind) (*Definition, error) {
	d, ok := r.defs[kind]
	if !ok {
		return nil, apperr.Newf(apperr.CodeNotFound, "unknown entity kind %q", kind)
	}
	return d, nil
}

// Kinds returns the registered kinds in declaration order of models.Kinds
func (r *Registry) Kinds() []models.Kind {
	out := make([]models.Kind, 0, len(r.defs))
	for _, k := range models.Kinds {
		if _, ok := r.defs[k]; ok {
			out = append(out, k)
		}
	}
	return out
}

// Initial returns the initial state of kind
func (r *Registry) Initial(kind models.Kind) (models.State, error) {
	d, err := r.Definition(kind)
	if err != nil {
		return "", err
	}
	return d.Initial(), nil
}

// HasState reports whether s is a declared state of kind
func (r *Registry) HasState(kind models.Kind, s models.State) bool {
	d, ok := r.defs[kind]
	return ok && d.HasState(s)
}

// IsTerminal reports whether s is a final state of kind
func (r *Registry) IsTerminal(kind models.Kind, s models.State) bool {
	d, ok := r.defs[kind]
	return ok && d.IsTerminal(s)
}

// ValidNextStates returns every declared target from current, ordered by
// the kind's state order. Guards are not evaluated; use ValidNextStatesFor
// when the entity is at hand. Unknown kinds or states yield an empty slice.
func (r *Registry) ValidNextStates(kind models.Kind, current models.State) []models.State {
	d, ok := r.defs[kind]
	if !ok {
		return []models.State{}
	}
	edges := d.next[current]
	out := make([]models.State, 0, len(edges))
	for _, e := range edges {
		out = append(out, e.To)
	}
	return out
}

// ValidNextStatesFor returns the targets reachable from the entity's current
// status whose guards pass for that entity.
func (r *Registry) ValidNextStatesFor(e *models.Entity) ([]models.State, error) {
	d, err := r.Definition(e.Kind)
	if err != nil {
		return nil, err
	}
	out := make([]models.State, 0, len(d.next[e.Status]))
	for _, edge := range d.next[e.Status] {
		ok, err := r.guards.eval(edge.Guard, e)
		if err != nil {
			return nil, fmt.Errorf("failed to evaluate guard %s->%s: %w", edge.From, edge.To, err)
		}
		if ok {
			out = append(out, edge.To)
		}
	}
	return out, nil
}

// CanTransition reports whether from -> to is a declared edge of kind,
// ignoring guards.
func (r *Registry) CanTransition(kind models.Kind, from, to models.State) bool {
	d, ok := r.defs[kind]
	if !ok {
		return false
	}
	_, ok = d.edge(from, to)
	return ok
}

// Allowed checks that the entity may move to target: the edge must be
// declared and its guard must pass. Failures are InvalidTransition.
func (r *Registry) Allowed(e *models.Entity, target models.State) error {
	d, err := r.Definition(e.Kind)
	if err != nil {
		return err
	}
	edge, ok := d.edge(e.Status, target)
	if !ok {
		return invalidTransition(e, target)
	}
	pass, err := r.guards.eval(edge.Guard, e)
	if err != nil {
		return fmt.Errorf("failed to evaluate guard %s->%s: %w", edge.From, edge.To, err)
	}
	if !pass {
		return invalidTransition(e, target).WithDetail("guard", edge.Guard)
	}
	return nil
}

// Gate returns the roles allowed to enter target, nil when ungated
func (r *Registry) Gate(kind models.Kind, target models.State) []models.Role {
	d, ok := r.defs[kind]
	if !ok {
		return nil
	}
	return d.Gate(target)
}

// RoleAllowed reports whether role may enter target. Admin always passes.
func (r *Registry) RoleAllowed(kind models.Kind, target models.State, role models.Role) bool {
	gate := r.Gate(kind, target)
	if len(gate) == 0 || role == models.RoleAdmin {
		return true
	}
	for _, g := range gate {
		if g == role {
			return true
		}
	}
	return false
}

func invalidTransition(e *models.Entity, target models.State) *apperr.Error {
	return apperr.Newf(apperr.CodeInvalidTransition, "%s cannot move from %s to %s", e.Kind, e.Status, target).
		WithDetail("from", string(e.Status)).
		WithDetail("to", string(target))
}
