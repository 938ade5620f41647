// Package registry tracks every person ID seen during a run.
//
// An ID is either mentioned (referenced by some record but not yet declared) or
// exists (declared by its own record). The only transitions are
//
//	<absent> -> mentioned -> exists
//	<absent> -> exists
//
// and exists is terminal: declaring an existing ID a second time fails with
// errors.ErrDuplicateID.
//
// A Registry is not safe for concurrent use. Callers that read input in
// parallel must funnel all registry mutations through a single goroutine.
package registry

import (
	"github.com/bcowgill/d3-family-tree/core/errors"
)

// State is the resolution state of an ID.
type State int

// ID states. The zero value means the ID is absent.
const (
	StateAbsent State = iota
	StateMentioned
	StateExists
)

func (s State) String() string {
	switch s {
	case StateMentioned:
		return "mentioned"
	case StateExists:
		return "exists"
	default:
		return "absent"
	}
}

// ParseState converts the textual form of a State back into its value.
func ParseState(s string) State {
	switch s {
	case "mentioned":
		return StateMentioned
	case "exists":
		return StateExists
	default:
		return StateAbsent
	}
}

// Registrar is the write side of a registry, as seen by person records.
type Registrar interface {
	RegisterExisting(id string) error
	RegisterMentioned(id string)
}

// Registry maps person IDs to their State. It never forgets an entry.
type Registry struct {
	states map[string]State
	order  []string
}

// New creates an empty registry for one run.
func New() *Registry {
	return &Registry{states: make(map[string]State)}
}

// RegisterExisting marks id as declared. It fails with ErrDuplicateID if id already exists.
func (r *Registry) RegisterExisting(id string) error {
	switch r.states[id] {
	case StateExists:
		return &errors.RecordError{Kind: errors.ErrDuplicateID, PersonID: id}
	case StateAbsent:
		r.order = append(r.order, id)
	}
	r.states[id] = StateExists
	return nil
}

// RegisterMentioned records a reference to id. It is a no-op if id is already known.
func (r *Registry) RegisterMentioned(id string) {
	if _, ok := r.states[id]; ok {
		return
	}
	r.states[id] = StateMentioned
	r.order = append(r.order, id)
}

// AllResolved reports whether every known ID has been declared.
func (r *Registry) AllResolved() bool {
	for _, s := range r.states {
		if s != StateExists {
			return false
		}
	}
	return true
}

// State returns the state of id, StateAbsent if it has never been seen.
func (r *Registry) State(id string) State {
	return r.states[id]
}

// Mentioned returns the IDs still in the mentioned state, in first-seen order.
func (r *Registry) Mentioned() []string {
	var ids []string
	for _, id := range r.order {
		if r.states[id] == StateMentioned {
			ids = append(ids, id)
		}
	}
	return ids
}

// IDs returns every known ID in first-seen order.
func (r *Registry) IDs() []string {
	return append([]string(nil), r.order...)
}

// Len returns the number of known IDs.
func (r *Registry) Len() int {
	return len(r.order)
}

// Begin starts a transaction whose changes are only visible to the
// registry once committed.
func (r *Registry) Begin() *Txn {
	return &Txn{base: r, staged: make(map[string]State)}
}

// Txn stages registrations against a Registry. A Txn applies the same rules as
// the Registry itself, reading through to the committed states.
type Txn struct {
	base   *Registry
	staged map[string]State
	order  []string
	done   bool
}

func (t *Txn) state(id string) State {
	if s, ok := t.staged[id]; ok {
		return s
	}
	return t.base.states[id]
}

// RegisterExisting stages id as declared.
func (t *Txn) RegisterExisting(id string) error {
	if t.state(id) == StateExists {
		return &errors.RecordError{Kind: errors.ErrDuplicateID, PersonID: id}
	}
	if _, ok := t.staged[id]; !ok {
		t.order = append(t.order, id)
	}
	t.staged[id] = StateExists
	return nil
}

// RegisterMentioned stages a reference to id.
func (t *Txn) RegisterMentioned(id string) {
	if t.state(id) != StateAbsent {
		return
	}
	t.staged[id] = StateMentioned
	t.order = append(t.order, id)
}

// Commit applies the staged changes to the registry. Committing or
// discarding twice is a no-op.
func (t *Txn) Commit() error {
	if t.done {
		return nil
	}
	t.done = true
	for _, id := range t.order {
		var err error
		switch t.staged[id] {
		case StateExists:
			err = t.base.RegisterExisting(id)
		case StateMentioned:
			t.base.RegisterMentioned(id)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Discard drops the staged changes.
func (t *Txn) Discard() {
	t.done = true
	t.staged = nil
	t.order = nil
}
