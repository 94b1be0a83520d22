// Package vars implements the named variable store shared by the IR builder
// and executor, partitioned into global and scenario scope.
package vars

import (
	"github.com/bissakov/qazcode-rpa-sub000/pkg/types"
)

// Scope distinguishes project-wide globals from per-scenario locals.
type Scope int

const (
	ScopeScenario Scope = iota
	ScopeGlobal
)

// String returns the scope name used in logs and snapshots.
func (s Scope) String() string {
	if s == ScopeGlobal {
		return "global"
	}
	return "scenario"
}

// Variable is a stored value together with its scope tag.
type Variable struct {
	Value types.Value
	Scope Scope
}

// Store maps variable names to values. It is not internally synchronized;
// the execution context owns the lock.
type Store struct {
	vars map[string]Variable
}

// New creates an empty store.
func New() *Store {
	return &Store{vars: make(map[string]Variable)}
}

// Get returns the value for name.
func (s *Store) Get(name string) (types.Value, bool) {
	v, ok := s.vars[name]
	if !ok {
		return types.Undefined, false
	}
	return v.Value, true
}

// Set stores value under name with the given scope tag.
func (s *Store) Set(name string, value types.Value, scope Scope) {
	s.vars[name] = Variable{Value: value, Scope: scope}
}

// Len returns the number of stored variables.
func (s *Store) Len() int {
	return len(s.vars)
}

// Merge overlays other onto s: entries in other win on name collision.
func (s *Store) Merge(other *Store) {
	if other == nil {
		return
	}
	for name, v := range other.vars {
		s.vars[name] = v
	}
}

// Clone returns an independent copy of the store.
func (s *Store) Clone() *Store {
	c := New()
	for name, v := range s.vars {
		c.vars[name] = v
	}
	return c
}

// Snapshot returns a plain name-to-value map for observers.
func (s *Store) Snapshot() map[string]types.Value {
	m := make(map[string]types.Value, len(s.vars))
	for name, v := range s.vars {
		m[name] = v.Value
	}
	return m
}

// Combined is a read-only overlay of a local store on top of a global one;
// locals shadow globals by name. It implements script.Resolver lookup
// through Resolve.
type Combined struct {
	Global *Store
	Local  *Store
}

// Resolve looks up name locally first, then globally. Missing names fail
// with an UndefinedVariable error.
func (c Combined) Resolve(name string) (types.Value, error) {
	if c.Local != nil {
		if v, ok := c.Local.Get(name); ok {
			return v, nil
		}
	}
	if c.Global != nil {
		if v, ok := c.Global.Get(name); ok {
			return v, nil
		}
	}
	return types.Undefined, types.NewUndefinedVariableError(name)
}
