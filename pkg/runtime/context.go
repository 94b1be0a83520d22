package runtime

import (
	"sync"
	"time"

	"github.com/bissakov/qazcode-rpa-sub000/pkg/graph"
	"github.com/bissakov/qazcode-rpa-sub000/pkg/runlog"
	"github.com/bissakov/qazcode-rpa-sub000/pkg/types"
	"github.com/bissakov/qazcode-rpa-sub000/pkg/vars"
)

// ScopeFrame is one level of local variables, owned by a scenario
// activation.
type ScopeFrame struct {
	ScenarioID string
	Locals     *vars.Store
}

// CallFrame records where to resume after a called scenario ends and which
// parameter bindings to copy back.
type CallFrame struct {
	CallerScenarioID string
	ReturnAddress    int
	Bindings         []graph.ParamBinding
}

// ExecutionContext is the state shared between the executor goroutine and
// observers. All access goes through its lock; the executor holds it only
// for short mutations, never across expression evaluation or log emission.
type ExecutionContext struct {
	mu      sync.RWMutex
	start   time.Time
	globals *vars.Store
	scopes  []ScopeFrame

	Stop *StopControl
}

// NewExecutionContext wraps an initial global store. A nil store gets an
// empty one.
func NewExecutionContext(globals *vars.Store) *ExecutionContext {
	if globals == nil {
		globals = vars.New()
	}
	return &ExecutionContext{
		start:   time.Now(),
		globals: globals,
		Stop:    NewStopControl(),
	}
}

// Stamp formats the elapsed run time for a log entry.
func (c *ExecutionContext) Stamp() string {
	c.mu.RLock()
	start := c.start
	c.mu.RUnlock()
	return runlog.Stamp(start)
}

// PushScope enters a new scenario activation.
func (c *ExecutionContext) PushScope(frame ScopeFrame) {
	c.mu.Lock()
	c.scopes = append(c.scopes, frame)
	c.mu.Unlock()
}

// PopScope leaves the current activation.
func (c *ExecutionContext) PopScope() {
	c.mu.Lock()
	if len(c.scopes) > 0 {
		c.scopes = c.scopes[:len(c.scopes)-1]
	}
	c.mu.Unlock()
}

// ScopeDepth returns the number of active scope frames.
func (c *ExecutionContext) ScopeDepth() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.scopes)
}

// CurrentScenarioID returns the scenario owning the top scope frame.
func (c *ExecutionContext) CurrentScenarioID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.scopes) == 0 {
		return ""
	}
	return c.scopes[len(c.scopes)-1].ScenarioID
}

func (c *ExecutionContext) topLocals() *vars.Store {
	if len(c.scopes) == 0 {
		return nil
	}
	return c.scopes[len(c.scopes)-1].Locals
}

// Resolve implements the expression resolver over the combined view:
// the current scope's locals shadow globals by name.
func (c *ExecutionContext) Resolve(name string) (types.Value, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return vars.Combined{Global: c.globals, Local: c.topLocals()}.Resolve(name)
}

// SetLocal writes into the current scope, falling back to the global store
// when no scope is active.
func (c *ExecutionContext) SetLocal(name string, v types.Value) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if locals := c.topLocals(); locals != nil {
		locals.Set(name, v, vars.ScopeScenario)
		return
	}
	c.globals.Set(name, v, vars.ScopeGlobal)
}

// SetGlobal writes into the global store.
func (c *ExecutionContext) SetGlobal(name string, v types.Value) {
	c.mu.Lock()
	c.globals.Set(name, v, vars.ScopeGlobal)
	c.mu.Unlock()
}

// Assign writes a variable following shadowing rules: an existing local
// wins, then an existing global, otherwise a new local is created. The
// global flag forces the global store.
func (c *ExecutionContext) Assign(name string, v types.Value, global bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if global {
		c.globals.Set(name, v, vars.ScopeGlobal)
		return
	}
	locals := c.topLocals()
	if locals != nil {
		if _, ok := locals.Get(name); ok {
			locals.Set(name, v, vars.ScopeScenario)
			return
		}
	}
	if _, ok := c.globals.Get(name); ok {
		c.globals.Set(name, v, vars.ScopeGlobal)
		return
	}
	if locals != nil {
		locals.Set(name, v, vars.ScopeScenario)
		return
	}
	c.globals.Set(name, v, vars.ScopeGlobal)
}

// GlobalValue reads a name from the global store only.
func (c *ExecutionContext) GlobalValue(name string) (types.Value, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.globals.Get(name)
}

// LocalValue reads a name from the top scope only.
func (c *ExecutionContext) LocalValue(name string) (types.Value, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if locals := c.topLocals(); locals != nil {
		return locals.Get(name)
	}
	return types.Undefined, false
}

// Snapshot returns the visible variables at this instant: globals overlaid
// with the current scope's locals.
func (c *ExecutionContext) Snapshot() map[string]types.Value {
	c.mu.RLock()
	defer c.mu.RUnlock()
	view := c.globals.Clone()
	view.Merge(c.topLocals())
	return view.Snapshot()
}
