package validation

import (
	"regexp"
	"strings"

	"github.com/bissakov/qazcode-rpa-sub000/pkg/graph"
	"github.com/bissakov/qazcode-rpa-sub000/pkg/script"
)

// MaxCallDepth bounds the recursion scan over the scenario call graph.
const MaxCallDepth = 100

// Validator checks scenarios against the project they belong to. It is
// stateless between calls and safe for concurrent use.
type Validator struct {
	project *graph.Project
}

// New returns a validator for the given project.
func New(project *graph.Project) *Validator {
	return &Validator{project: project}
}

// ValidateProject validates every scenario and appends project-level
// findings (recursive call chains, duplicate variable names) to the main
// scenario's result. The returned map is keyed by scenario id.
func (v *Validator) ValidateProject() map[string]*Result {
	out := make(map[string]*Result)
	for _, s := range v.project.AllScenarios() {
		out[s.ID] = v.ValidateScenario(s)
	}
	v.CheckProject(out[v.project.Main.ID])
	return out
}

// CheckProject appends the project-level findings, recursive call chains
// and duplicate variable names, to res. Callers that validate scenarios
// individually must run this once per project on the main result.
func (v *Validator) CheckProject(res *Result) {
	v.checkRecursion(res)
	v.checkDuplicateVariables(res)
}

// ValidateScenario runs the full pipeline for one scenario. A structural
// failure short-circuits the later phases.
func (v *Validator) ValidateScenario(s *graph.Scenario) *Result {
	res := NewResult()

	v.checkStructure(s, res)
	if !res.Valid() {
		return res
	}

	v.checkReachability(s, res)
	v.checkControlFlow(s, res)
	v.checkDataFlow(s, res)
	return res
}

func (v *Validator) checkStructure(s *graph.Scenario, res *Result) {
	starts, ends := 0, 0
	for _, n := range s.Nodes {
		switch n.Activity.Kind {
		case graph.KindStart:
			starts++
		case graph.KindEnd:
			ends++
		}
	}
	if starts == 0 {
		res.AddError(CodeMissingStart, "", "scenario %q has no Start node", s.Name)
	}
	if starts > 1 {
		res.AddError(CodeMissingStart, "", "scenario %q has %d Start nodes, expected exactly one", s.Name, starts)
	}
	if ends == 0 {
		res.AddError(CodeMissingEnd, "", "scenario %q has no End node", s.Name)
	}
	for _, c := range s.Connections {
		if s.NodeByID(c.From) == nil {
			res.AddError(CodeDanglingConn, c.From, "connection %s references missing source node", c.ID)
		}
		if s.NodeByID(c.To) == nil {
			res.AddError(CodeDanglingConn, c.To, "connection %s references missing target node", c.ID)
		}
	}
}

func (v *Validator) checkReachability(s *graph.Scenario, res *Result) {
	start := s.StartNode()
	if start == nil {
		return
	}

	// Forward reach from Start over every branch kind.
	forward(s, start.ID, res.Reachable)

	// Backward reach to any End.
	canReachEnd := make(map[string]bool)
	for _, n := range s.Nodes {
		if n.Activity.Kind == graph.KindEnd {
			backward(s, n.ID, canReachEnd)
		}
	}

	// Loop interiors are exempt from the dead-end rule.
	inLoopBody := make(map[string]bool)
	for _, n := range s.Nodes {
		if n.Activity.Kind != graph.KindLoop && n.Activity.Kind != graph.KindWhile {
			continue
		}
		for id := range loopBody(s, n.ID) {
			inLoopBody[id] = true
		}
	}

	for _, n := range s.Nodes {
		if !res.Reachable[n.ID] {
			continue
		}
		if n.Activity.Kind == graph.KindNote {
			continue
		}
		if !canReachEnd[n.ID] && !inLoopBody[n.ID] && !graph.Terminal(n.Activity.Kind) {
			res.AddError(CodeDeadEnd, n.ID, "node %s doesn't lead to End", n.ID)
		}
	}

	// Pin coverage, warnings only.
	for _, n := range s.Nodes {
		if !res.Reachable[n.ID] {
			continue
		}
		switch n.Activity.Kind {
		case graph.KindIf:
			if s.FirstNext(n.ID, graph.BranchTrue) == "" {
				res.AddWarning(CodeMissingTrue, n.ID, "If node has no True branch")
			}
			if s.FirstNext(n.ID, graph.BranchFalse) == "" {
				res.AddWarning(CodeMissingFalse, n.ID, "If node has no False branch")
			}
		case graph.KindTryCatch:
			if s.FirstNext(n.ID, graph.BranchTry) == "" {
				res.AddWarning(CodeMissingTry, n.ID, "TryCatch node has no Try branch")
			}
			if s.FirstNext(n.ID, graph.BranchCatch) == "" {
				res.AddWarning(CodeMissingCatch, n.ID, "TryCatch node has no Catch branch")
			}
		case graph.KindLoop, graph.KindWhile:
			if s.FirstNext(n.ID, graph.BranchLoop) == "" {
				res.AddWarning(CodeLoopNoBody, n.ID, "loop has no body connected")
			}
		}
	}
}

func (v *Validator) checkControlFlow(s *graph.Scenario, res *Result) {
	for _, n := range s.Nodes {
		if !res.Reachable[n.ID] {
			continue
		}
		a := n.Activity
		switch a.Kind {
		case graph.KindLoop:
			if a.IndexVar == "" {
				res.AddError(CodeEmptyVarName, n.ID, "loop index variable name is empty")
			}
			if a.LoopStep == 0 {
				res.AddError(CodeLoopStepZero, n.ID, "loop step is 0")
			} else if a.LoopStep > 0 && a.LoopStart > a.LoopEnd {
				res.AddError(CodeLoopStepSign, n.ID, "positive step with start %d > end %d never runs", a.LoopStart, a.LoopEnd)
			} else if a.LoopStep < 0 && a.LoopStart < a.LoopEnd {
				res.AddError(CodeLoopStepSign, n.ID, "negative step with start %d < end %d never runs", a.LoopStart, a.LoopEnd)
			}
		case graph.KindIf, graph.KindWhile:
			v.checkCondition(n.ID, a.Condition, res)
		case graph.KindEvaluate:
			v.checkCondition(n.ID, a.Expression, res)
		case graph.KindSetVariable:
			if strings.TrimSpace(a.Name) == "" {
				res.AddError(CodeEmptyVarName, n.ID, "variable name is empty")
			}
		case graph.KindCallScenario:
			if v.project.ScenarioByID(a.ScenarioID) == nil {
				res.AddError(CodeScenarioMissing, n.ID, "called scenario %q does not exist", a.ScenarioID)
			}
		}
	}
}

func (v *Validator) checkCondition(nodeID, cond string, res *Result) {
	if strings.TrimSpace(cond) == "" {
		res.AddError(CodeBadCondition, nodeID, "condition is empty")
		return
	}
	if _, err := script.ParseExpression(cond); err != nil {
		res.AddError(CodeBadCondition, nodeID, "invalid condition %q: %v", cond, err)
	}
}

var varRefPattern = regexp.MustCompile(`[@{]([A-Za-z_][A-Za-z0-9_]*)\}?`)

// checkDataFlow is a heuristic forward walk: names referenced in messages
// and conditions before any SetVariable or Loop on the walk defines them,
// and not pre-declared on the project or scenario, are flagged. It is not a
// path-sensitive proof.
func (v *Validator) checkDataFlow(s *graph.Scenario, res *Result) {
	defined := map[string]bool{"last_error": true}
	for _, d := range v.project.Variables {
		defined[d.Name] = true
	}
	for _, d := range s.Variables {
		defined[d.Name] = true
	}

	start := s.StartNode()
	if start == nil {
		return
	}
	warned := make(map[string]bool)
	visited := make(map[string]bool)
	queue := []string{start.ID}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if visited[id] {
			continue
		}
		visited[id] = true
		n := s.NodeByID(id)
		if n == nil {
			continue
		}
		a := n.Activity
		for _, text := range []string{a.Message, a.Condition, a.Expression, a.Value} {
			for _, m := range varRefPattern.FindAllStringSubmatch(text, -1) {
				name := m[1]
				if name == "true" || name == "false" {
					continue
				}
				if !defined[name] && !warned[name] {
					res.AddWarning(CodeMaybeUndefinedVar, id, "variable %q may be used before it is defined", name)
					warned[name] = true
				}
			}
		}
		switch a.Kind {
		case graph.KindSetVariable:
			defined[a.Name] = true
		case graph.KindLoop:
			defined[a.IndexVar] = true
		}
		for _, c := range s.Outgoing(id) {
			queue = append(queue, c.To)
		}
	}
}

func (v *Validator) checkDuplicateVariables(res *Result) {
	owner := make(map[string]string)
	for _, s := range v.project.AllScenarios() {
		for _, d := range s.Variables {
			if prev, ok := owner[d.Name]; ok && prev != s.Name {
				res.AddWarning(CodeDuplicateVarName, "",
					"variable %q declared in both %q and %q", d.Name, prev, s.Name)
				continue
			}
			owner[d.Name] = s.Name
		}
	}
}

func forward(s *graph.Scenario, from string, seen map[string]bool) {
	if seen[from] {
		return
	}
	seen[from] = true
	for _, c := range s.Outgoing(from) {
		forward(s, c.To, seen)
	}
}

func backward(s *graph.Scenario, to string, seen map[string]bool) {
	if seen[to] {
		return
	}
	seen[to] = true
	for _, c := range s.Incoming(to) {
		backward(s, c.From, seen)
	}
}

// loopBody collects the nodes reachable from a loop's LoopBody edge before
// control returns to the loop node itself.
func loopBody(s *graph.Scenario, loopID string) map[string]bool {
	body := make(map[string]bool)
	first := s.FirstNext(loopID, graph.BranchLoop)
	if first == "" {
		return body
	}
	queue := []string{first}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if id == loopID || body[id] {
			continue
		}
		body[id] = true
		for _, c := range s.Outgoing(id) {
			queue = append(queue, c.To)
		}
	}
	return body
}
