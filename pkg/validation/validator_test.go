package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bissakov/qazcode-rpa-sub000/pkg/graph"
)

func node(id string, a graph.Activity) graph.Node {
	return graph.Node{ID: id, Activity: a}
}

func conn(from, to string, branch graph.BranchType) graph.Connection {
	return graph.Connection{ID: from + "->" + to, From: from, To: to, Branch: branch}
}

func projectWith(main graph.Scenario, aux ...graph.Scenario) *graph.Project {
	return &graph.Project{ID: "p1", Name: "test", Main: main, Scenarios: aux}
}

func codes(issues []Issue) []string {
	out := make([]string, len(issues))
	for i, is := range issues {
		out[i] = is.Code
	}
	return out
}

func TestValidScenario(t *testing.T) {
	s := graph.Scenario{
		ID: "main", Name: "main",
		Nodes: []graph.Node{
			node("n1", graph.Activity{Kind: graph.KindStart}),
			node("n2", graph.Activity{Kind: graph.KindLog, Message: "hello"}),
			node("n3", graph.Activity{Kind: graph.KindEnd}),
		},
		Connections: []graph.Connection{
			conn("n1", "n2", graph.BranchDefault),
			conn("n2", "n3", graph.BranchDefault),
		},
	}
	res := New(projectWith(s)).ValidateScenario(&s)
	require.True(t, res.Valid(), "unexpected errors: %v", res.Errors)
	assert.Empty(t, res.Warnings)
	assert.True(t, res.Reachable["n1"])
	assert.True(t, res.Reachable["n3"])
}

func TestStructuralShortCircuit(t *testing.T) {
	s := graph.Scenario{
		ID: "main", Name: "main",
		Nodes: []graph.Node{
			node("n1", graph.Activity{Kind: graph.KindLog, Condition: "@@@"}),
		},
		Connections: []graph.Connection{
			conn("n1", "ghost", graph.BranchDefault),
		},
	}
	res := New(projectWith(s)).ValidateScenario(&s)
	require.False(t, res.Valid())
	assert.ElementsMatch(t, []string{CodeMissingStart, CodeMissingEnd, CodeDanglingConn}, codes(res.Errors))
	// Later phases never ran.
	assert.Empty(t, res.Reachable)
}

func TestMissingEndOnly(t *testing.T) {
	s := graph.Scenario{
		ID: "main", Name: "main",
		Nodes: []graph.Node{node("n1", graph.Activity{Kind: graph.KindStart})},
	}
	res := New(projectWith(s)).ValidateScenario(&s)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, CodeMissingEnd, res.Errors[0].Code)
}

func TestDeadEndNode(t *testing.T) {
	s := graph.Scenario{
		ID: "main", Name: "main",
		Nodes: []graph.Node{
			node("n1", graph.Activity{Kind: graph.KindStart}),
			node("n2", graph.Activity{Kind: graph.KindLog, Message: "stuck"}),
			node("n3", graph.Activity{Kind: graph.KindEnd}),
		},
		Connections: []graph.Connection{
			conn("n1", "n2", graph.BranchDefault),
			// n2 never reaches n3.
		},
	}
	res := New(projectWith(s)).ValidateScenario(&s)
	require.False(t, res.Valid())
	assert.Contains(t, codes(res.Errors), CodeDeadEnd)
}

func TestLoopBodyExemptFromDeadEnd(t *testing.T) {
	s := graph.Scenario{
		ID: "main", Name: "main",
		Nodes: []graph.Node{
			node("n1", graph.Activity{Kind: graph.KindStart}),
			node("loop", graph.Activity{Kind: graph.KindLoop, IndexVar: "i", LoopStart: 0, LoopEnd: 3, LoopStep: 1}),
			node("body", graph.Activity{Kind: graph.KindLog, Message: "tick {i}"}),
			node("n3", graph.Activity{Kind: graph.KindEnd}),
		},
		Connections: []graph.Connection{
			conn("n1", "loop", graph.BranchDefault),
			conn("loop", "body", graph.BranchLoop),
			conn("loop", "n3", graph.BranchDefault),
		},
	}
	res := New(projectWith(s)).ValidateScenario(&s)
	assert.True(t, res.Valid(), "body node must not be a dead end: %v", res.Errors)
}

func TestConditionalPinWarnings(t *testing.T) {
	s := graph.Scenario{
		ID: "main", Name: "main",
		Nodes: []graph.Node{
			node("n1", graph.Activity{Kind: graph.KindStart}),
			node("if", graph.Activity{Kind: graph.KindIf, Condition: "1 < 2"}),
			node("n3", graph.Activity{Kind: graph.KindEnd}),
		},
		Connections: []graph.Connection{
			conn("n1", "if", graph.BranchDefault),
			conn("if", "n3", graph.BranchTrue),
		},
	}
	res := New(projectWith(s)).ValidateScenario(&s)
	require.True(t, res.Valid(), "errors: %v", res.Errors)
	assert.Contains(t, codes(res.Warnings), CodeMissingFalse)
	assert.NotContains(t, codes(res.Warnings), CodeMissingTrue)
}

func TestLoopParameterErrors(t *testing.T) {
	tests := []struct {
		name     string
		activity graph.Activity
		want     string
	}{
		{
			"step zero",
			graph.Activity{Kind: graph.KindLoop, IndexVar: "i", LoopStart: 0, LoopEnd: 5, LoopStep: 0},
			CodeLoopStepZero,
		},
		{
			"positive step counting down",
			graph.Activity{Kind: graph.KindLoop, IndexVar: "i", LoopStart: 5, LoopEnd: 0, LoopStep: 1},
			CodeLoopStepSign,
		},
		{
			"negative step counting up",
			graph.Activity{Kind: graph.KindLoop, IndexVar: "i", LoopStart: 0, LoopEnd: 5, LoopStep: -1},
			CodeLoopStepSign,
		},
		{
			"empty index variable",
			graph.Activity{Kind: graph.KindLoop, IndexVar: "", LoopStart: 0, LoopEnd: 5, LoopStep: 1},
			CodeEmptyVarName,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := graph.Scenario{
				ID: "main", Name: "main",
				Nodes: []graph.Node{
					node("n1", graph.Activity{Kind: graph.KindStart}),
					node("loop", tt.activity),
					node("n3", graph.Activity{Kind: graph.KindEnd}),
				},
				Connections: []graph.Connection{
					conn("n1", "loop", graph.BranchDefault),
					conn("loop", "n3", graph.BranchDefault),
				},
			}
			res := New(projectWith(s)).ValidateScenario(&s)
			assert.Contains(t, codes(res.Errors), tt.want)
		})
	}
}

func TestConditionSyntax(t *testing.T) {
	tests := []struct {
		name      string
		condition string
		wantError bool
	}{
		{"valid comparison", "@x > 5", false},
		{"empty", "   ", true},
		{"dangling operator", "@x >", true},
		{"single equals", "@x = 5", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := graph.Scenario{
				ID: "main", Name: "main",
				Nodes: []graph.Node{
					node("n1", graph.Activity{Kind: graph.KindStart}),
					node("if", graph.Activity{Kind: graph.KindIf, Condition: tt.condition}),
					node("n3", graph.Activity{Kind: graph.KindEnd}),
				},
				Connections: []graph.Connection{
					conn("n1", "if", graph.BranchDefault),
					conn("if", "n3", graph.BranchTrue),
					conn("if", "n3", graph.BranchFalse),
				},
				Variables: []graph.VariableDecl{{Name: "x", Type: graph.VarNumber, Value: "0"}},
			}
			res := New(projectWith(s)).ValidateScenario(&s)
			if tt.wantError {
				assert.Contains(t, codes(res.Errors), CodeBadCondition)
			} else {
				assert.True(t, res.Valid(), "errors: %v", res.Errors)
			}
		})
	}
}

func TestCallScenarioTargetMustExist(t *testing.T) {
	s := graph.Scenario{
		ID: "main", Name: "main",
		Nodes: []graph.Node{
			node("n1", graph.Activity{Kind: graph.KindStart}),
			node("call", graph.Activity{Kind: graph.KindCallScenario, ScenarioID: "nowhere"}),
			node("n3", graph.Activity{Kind: graph.KindEnd}),
		},
		Connections: []graph.Connection{
			conn("n1", "call", graph.BranchDefault),
			conn("call", "n3", graph.BranchDefault),
		},
	}
	res := New(projectWith(s)).ValidateScenario(&s)
	assert.Contains(t, codes(res.Errors), CodeScenarioMissing)
}

func TestUndefinedVariableHeuristic(t *testing.T) {
	s := graph.Scenario{
		ID: "main", Name: "main",
		Nodes: []graph.Node{
			node("n1", graph.Activity{Kind: graph.KindStart}),
			node("log1", graph.Activity{Kind: graph.KindLog, Message: "value is {counter}"}),
			node("set", graph.Activity{Kind: graph.KindSetVariable, Name: "counter", Value: "1", VarType: graph.VarNumber}),
			node("log2", graph.Activity{Kind: graph.KindLog, Message: "now {counter}"}),
			node("n3", graph.Activity{Kind: graph.KindEnd}),
		},
		Connections: []graph.Connection{
			conn("n1", "log1", graph.BranchDefault),
			conn("log1", "set", graph.BranchDefault),
			conn("set", "log2", graph.BranchDefault),
			conn("log2", "n3", graph.BranchDefault),
		},
	}
	res := New(projectWith(s)).ValidateScenario(&s)
	require.True(t, res.Valid())

	var hits []Issue
	for _, w := range res.Warnings {
		if w.Code == CodeMaybeUndefinedVar {
			hits = append(hits, w)
		}
	}
	require.Len(t, hits, 1, "only the use before SetVariable should be flagged")
	assert.Equal(t, "log1", hits[0].NodeID)
}

func callNode(target string) graph.Scenario {
	id := "sc_" + target
	return graph.Scenario{
		ID: id, Name: id,
		Nodes: []graph.Node{
			node(id+"_start", graph.Activity{Kind: graph.KindStart}),
			node(id+"_call", graph.Activity{Kind: graph.KindCallScenario, ScenarioID: target}),
			node(id+"_end", graph.Activity{Kind: graph.KindEnd}),
		},
		Connections: []graph.Connection{
			conn(id+"_start", id+"_call", graph.BranchDefault),
			conn(id+"_call", id+"_end", graph.BranchDefault),
		},
	}
}

func TestRecursionDetection(t *testing.T) {
	a := callNode("sc_b")
	a.ID, a.Name = "sc_a", "alpha"
	b := callNode("sc_a")
	b.ID, b.Name = "sc_b", "beta"

	main := graph.Scenario{
		ID: "main", Name: "main",
		Nodes: []graph.Node{
			node("m1", graph.Activity{Kind: graph.KindStart}),
			node("m2", graph.Activity{Kind: graph.KindCallScenario, ScenarioID: "sc_a"}),
			node("m3", graph.Activity{Kind: graph.KindEnd}),
		},
		Connections: []graph.Connection{
			conn("m1", "m2", graph.BranchDefault),
			conn("m2", "m3", graph.BranchDefault),
		},
	}
	p := projectWith(main, a, b)
	results := New(p).ValidateProject()

	var found bool
	for _, w := range results["main"].Warnings {
		if w.Code == CodeRecursiveCall {
			found = true
			assert.Contains(t, w.Message, "alpha -> beta -> alpha")
		}
	}
	assert.True(t, found, "recursive chain not reported")

	cg := BuildCallGraph(p)
	rec := cg.RecursiveScenarios()
	assert.True(t, rec["sc_a"])
	assert.True(t, rec["sc_b"])
	assert.False(t, rec["main"])
}

func TestCacheInvalidation(t *testing.T) {
	s := graph.Scenario{
		ID: "main", Name: "main",
		Nodes: []graph.Node{
			node("n1", graph.Activity{Kind: graph.KindStart}),
			node("n3", graph.Activity{Kind: graph.KindEnd}),
		},
		Connections: []graph.Connection{conn("n1", "n3", graph.BranchDefault)},
	}
	v := New(projectWith(s))
	cache := NewCache()

	first := cache.Validate(v, &s)
	second := cache.Validate(v, &s)
	assert.Same(t, first, second, "unchanged scenario should hit the cache")

	s.Nodes = s.Nodes[:1]
	third := cache.Validate(v, &s)
	assert.NotSame(t, first, third)
	assert.False(t, third.Valid())
}

func TestResultMerge(t *testing.T) {
	a := NewResult()
	a.AddError(CodeMissingEnd, "", "no end")
	a.Reachable["x"] = true

	b := NewResult()
	b.AddWarning(CodeLoopNoBody, "n1", "empty loop")
	b.Reachable["y"] = true

	a.Merge(b)
	assert.Len(t, a.Errors, 1)
	assert.Len(t, a.Warnings, 1)
	assert.True(t, a.Reachable["x"])
	assert.True(t, a.Reachable["y"])
	assert.False(t, a.Valid())
}
