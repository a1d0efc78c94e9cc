// Package statemachine provides the generic status transition engine shared
// by all pipeline entities. Each entity declares its status set, an initial
// status, and a transition table; the engine rejects every pair the table
// does not list, including self-transitions.
package statemachine

import "fmt"

// InvalidTransitionError reports an attempted status change that is not in
// the entity's transition table. It is always recoverable: the caller can
// pick a different target or ignore the attempt.
type InvalidTransitionError struct {
	Entity string
	From   string
	To     string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("%s: invalid transition from %q to %q", e.Entity, e.From, e.To)
}

// Machine is a declarative finite-state machine over a string-based status
// type. It is immutable after construction and safe for concurrent use.
type Machine[S ~string] struct {
	entity  string
	initial S
	table   map[S]map[S]struct{}
}

// New builds a machine for the named entity from its transition table.
// Statuses absent from the table are terminal.
func New[S ~string](entity string, initial S, transitions map[S][]S) *Machine[S] {
	table := make(map[S]map[S]struct{}, len(transitions))
	for from, targets := range transitions {
		set := make(map[S]struct{}, len(targets))
		for _, to := range targets {
			set[to] = struct{}{}
		}
		table[from] = set
	}
	return &Machine[S]{entity: entity, initial: initial, table: table}
}

// Entity returns the entity name used in error messages.
func (m *Machine[S]) Entity() string { return m.entity }

// Initial returns the designated initial status.
func (m *Machine[S]) Initial() S { return m.initial }

// CanTransition reports whether from -> to is declared in the table.
// Pairs not explicitly listed are illegal, identity pairs included.
func (m *Machine[S]) CanTransition(from, to S) bool {
	targets, ok := m.table[from]
	if !ok {
		return false
	}
	_, ok = targets[to]
	return ok
}

// Transition validates from -> to and returns an *InvalidTransitionError
// naming the entity and both statuses when the pair is not declared.
func (m *Machine[S]) Transition(from, to S) error {
	if !m.CanTransition(from, to) {
		return &InvalidTransitionError{Entity: m.entity, From: string(from), To: string(to)}
	}
	return nil
}

// IsTerminal reports whether the status has no outgoing transitions.
func (m *Machine[S]) IsTerminal(s S) bool {
	return len(m.table[s]) == 0
}

// Advance walks the chain from current, taking each step only when the
// table permits it, and returns the furthest status reached. Steps that are
// not legal from the position reached so far are skipped silently.
func (m *Machine[S]) Advance(current S, chain ...S) S {
	for _, next := range chain {
		if m.CanTransition(current, next) {
			current = next
		}
	}
	return current
}

// SourcesOf returns every status that may transition into target. Used by
// repositories to express guarded status updates as compare-and-set writes.
func (m *Machine[S]) SourcesOf(target S) []S {
	var sources []S
	for from, targets := range m.table {
		if _, ok := targets[target]; ok {
			sources = append(sources, from)
		}
	}
	return sources
}
