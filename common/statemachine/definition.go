// Package statemachine declares the workflow graph of every entity kind and
// answers which transitions are legal.
//
// A Definition is immutable once registered. Edges may carry a CEL guard that
// is evaluated against the entity; an edge whose guard is false is treated
// exactly like a missing edge.
package statemachine

import (
	"fmt"

	"github.com/landrecords/portal/common/models"
)

// Edge is a directed transition. Guard is an optional CEL expression over the
// variable `entity` (see GuardInput).
type Edge struct {
	From  models.State
	To    models.State
	Guard string
}

// Definition is the transition graph of one entity kind
type Definition struct {
	Kind models.Kind

	// Ordered states; the first is the initial state
	States []models.State

	Edges []Edge

	// Roles allowed to enter a state, in addition to admin
	GatedBy map[models.State][]models.Role

	order map[models.State]int
	next  map[models.State][]Edge
}

// Initial returns the state new entities start in
func (d *Definition) Initial() models.State {
	return d.States[0]
}

// HasState reports whether s is declared for this kind
func (d *Definition) HasState(s models.State) bool {
	_, ok := d.order[s]
	return ok
}

// IsTerminal reports whether s has no outgoing edges
func (d *Definition) IsTerminal(s models.State) bool {
	return d.HasState(s) && len(d.next[s]) == 0
}

// edge returns the declared edge from -> to
func (d *Definition) edge(from, to models.State) (Edge, bool) {
	for _, e := range d.next[from] {
		if e.To == to {
			return e, true
		}
	}
	return Edge{}, false
}

// Gate returns the roles allowed to enter target, nil when ungated
func (d *Definition) Gate(target models.State) []models.Role {
	return d.GatedBy[target]
}

// seal indexes the definition and checks that it is well formed
func (d *Definition) seal() error {
	if len(d.States) == 0 {
		return fmt.Errorf("kind %s declares no states", d.Kind)
	}
	d.order = make(map[models.State]int, len(d.States))
	for i, s := range d.States {
		if _, dup := d.order[s]; dup {
			return fmt.Errorf("kind %s declares state %s twice", d.Kind, s)
		}
		d.order[s] = i
	}

	d.next = make(map[models.State][]Edge)
	for _, e := range d.Edges {
		if !d.HasState(e.From) || !d.HasState(e.To) {
			return fmt.Errorf("kind %s edge %s->%s references an undeclared state", d.Kind, e.From, e.To)
		}
		if _, dup := d.edge(e.From, e.To); dup {
			return fmt.Errorf("kind %s declares edge %s->%s twice", d.Kind, e.From, e.To)
		}
		d.next[e.From] = append(d.next[e.From], e)
	}
	for from, edges := range d.next {
		sortEdges(edges, d.order)
		d.next[from] = edges
	}

	for s := range d.GatedBy {
		if !d.HasState(s) {
			return fmt.Errorf("kind %s gates undeclared state %s", d.Kind, s)
		}
	}
	return nil
}

func sortEdges(edges []Edge, order map[models.State]int) {
	for i := 1; i < len(edges); i++ {
		for j := i; j > 0 && order[edges[j].To] < order[edges[j-1].To]; j-- {
			edges[j], edges[j-1] = edges[j-1], edges[j]
		}
	}
}
