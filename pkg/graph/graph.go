// Package graph defines the scenario node-graph model: projects, scenarios,
// nodes, connections, and the activity union. Nodes and connections refer to
// each other only by stable ids, never by pointer.
package graph

// BranchType labels which output pin a connection originates from.
type BranchType string

const (
	BranchDefault BranchType = "default"
	BranchTrue    BranchType = "true"
	BranchFalse   BranchType = "false"
	BranchLoop    BranchType = "loop_body"
	BranchError   BranchType = "error"
	BranchTry     BranchType = "try"
	BranchCatch   BranchType = "catch"
)

// Connection is a directed edge between two nodes tagged with the source pin.
type Connection struct {
	ID     string     `json:"id" yaml:"id"`
	From   string     `json:"from" yaml:"from"`
	To     string     `json:"to" yaml:"to"`
	Branch BranchType `json:"branch" yaml:"branch"`
}

// Node is a single graph node: an activity plus editor geometry. The
// geometry is carried through persistence but ignored by the engine.
type Node struct {
	ID       string   `json:"id" yaml:"id"`
	Activity Activity `json:"activity" yaml:"activity"`
	X        float64  `json:"x,omitempty" yaml:"x,omitempty"`
	Y        float64  `json:"y,omitempty" yaml:"y,omitempty"`
	Width    float64  `json:"width,omitempty" yaml:"width,omitempty"`
	Height   float64  `json:"height,omitempty" yaml:"height,omitempty"`
}

// VarType is the declared type of a project or scenario variable.
type VarType string

const (
	VarString  VarType = "string"
	VarNumber  VarType = "number"
	VarBoolean VarType = "boolean"
)

// VariableDecl is a declared variable with a default value, kept as text
// and parsed per its declared type when a run seeds its stores.
type VariableDecl struct {
	Name   string  `json:"name" yaml:"name"`
	Type   VarType `json:"type" yaml:"type"`
	Value  string  `json:"value" yaml:"value"`
	Global bool    `json:"global,omitempty" yaml:"global,omitempty"`
}

// Direction describes how a call-parameter binding moves data.
type Direction string

const (
	DirIn    Direction = "in"
	DirOut   Direction = "out"
	DirInOut Direction = "inout"
)

// ParamBinding maps a caller variable onto a callee variable for a
// CallScenario activity.
type ParamBinding struct {
	Source       string    `json:"source" yaml:"source"`
	Target       string    `json:"target" yaml:"target"`
	Direction    Direction `json:"direction" yaml:"direction"`
	SourceGlobal bool      `json:"source_global,omitempty" yaml:"source_global,omitempty"`
}

// Scenario owns a set of nodes and the connections between them. The engine
// treats a scenario as immutable input; only the editor mutates it between
// runs.
type Scenario struct {
	ID          string         `json:"id" yaml:"id"`
	Name        string         `json:"name" yaml:"name"`
	Nodes       []Node         `json:"nodes" yaml:"nodes"`
	Connections []Connection   `json:"connections" yaml:"connections"`
	Variables   []VariableDecl `json:"variables,omitempty" yaml:"variables,omitempty"`
}

// Project is the root persistence unit: one main scenario, any number of
// auxiliary scenarios, and the initial global variables.
type Project struct {
	ID        string         `json:"id" yaml:"id"`
	Name      string         `json:"name" yaml:"name"`
	Main      Scenario       `json:"main" yaml:"main"`
	Scenarios []Scenario     `json:"scenarios,omitempty" yaml:"scenarios,omitempty"`
	Variables []VariableDecl `json:"variables,omitempty" yaml:"variables,omitempty"`
}

// NodeByID returns the node with the given id, or nil.
func (s *Scenario) NodeByID(id string) *Node {
	for i := range s.Nodes {
		if s.Nodes[i].ID == id {
			return &s.Nodes[i]
		}
	}
	return nil
}

// StartNode returns the scenario's Start node, or nil if absent.
func (s *Scenario) StartNode() *Node {
	for i := range s.Nodes {
		if s.Nodes[i].Activity.Kind == KindStart {
			return &s.Nodes[i]
		}
	}
	return nil
}

// Next returns the ids of nodes connected from nodeID on the given branch,
// in connection order.
func (s *Scenario) Next(nodeID string, branch BranchType) []string {
	var out []string
	for _, c := range s.Connections {
		if c.From == nodeID && c.Branch == branch {
			out = append(out, c.To)
		}
	}
	return out
}

// FirstNext returns the first node connected from nodeID on branch, or "".
func (s *Scenario) FirstNext(nodeID string, branch BranchType) string {
	for _, c := range s.Connections {
		if c.From == nodeID && c.Branch == branch {
			return c.To
		}
	}
	return ""
}

// Outgoing returns all connections leaving nodeID.
func (s *Scenario) Outgoing(nodeID string) []Connection {
	var out []Connection
	for _, c := range s.Connections {
		if c.From == nodeID {
			out = append(out, c)
		}
	}
	return out
}

// Incoming returns all connections entering nodeID.
func (s *Scenario) Incoming(nodeID string) []Connection {
	var out []Connection
	for _, c := range s.Connections {
		if c.To == nodeID {
			out = append(out, c)
		}
	}
	return out
}

// ScenarioByID finds a scenario by id among main and auxiliaries.
func (p *Project) ScenarioByID(id string) *Scenario {
	if p.Main.ID == id {
		return &p.Main
	}
	for i := range p.Scenarios {
		if p.Scenarios[i].ID == id {
			return &p.Scenarios[i]
		}
	}
	return nil
}

// AllScenarios returns main followed by the auxiliary scenarios.
func (p *Project) AllScenarios() []*Scenario {
	out := make([]*Scenario, 0, len(p.Scenarios)+1)
	out = append(out, &p.Main)
	for i := range p.Scenarios {
		out = append(out, &p.Scenarios[i])
	}
	return out
}
