package validation

import (
	"sort"
	"strings"

	"github.com/bissakov/qazcode-rpa-sub000/pkg/graph"
)

// CallGraph maps a scenario id to the ids of the scenarios it calls,
// deduplicated and sorted.
type CallGraph map[string][]string

// BuildCallGraph scans every scenario's CallScenario activities.
func BuildCallGraph(p *graph.Project) CallGraph {
	cg := make(CallGraph)
	for _, s := range p.AllScenarios() {
		seen := make(map[string]bool)
		for _, n := range s.Nodes {
			if n.Activity.Kind != graph.KindCallScenario {
				continue
			}
			target := n.Activity.ScenarioID
			if target != "" && !seen[target] {
				seen[target] = true
				cg[s.ID] = append(cg[s.ID], target)
			}
		}
		sort.Strings(cg[s.ID])
	}
	return cg
}

// RecursiveScenarios returns the set of scenario ids that appear on at least
// one cycle in the call graph.
func (cg CallGraph) RecursiveScenarios() map[string]bool {
	recursive := make(map[string]bool)
	for root := range cg {
		var stack []string
		cg.walk(root, stack, recursive, nil)
	}
	return recursive
}

// checkRecursion reports each distinct recursive chain starting from the
// main scenario, naming the full chain.
func (v *Validator) checkRecursion(res *Result) {
	cg := BuildCallGraph(v.project)
	reported := make(map[string]bool)
	cg.walk(v.project.Main.ID, nil, nil, func(chain []string) {
		names := make([]string, len(chain))
		for i, id := range chain {
			if s := v.project.ScenarioByID(id); s != nil {
				names[i] = s.Name
			} else {
				names[i] = id
			}
		}
		msg := strings.Join(names, " -> ")
		if !reported[msg] {
			reported[msg] = true
			res.AddWarning(CodeRecursiveCall, "", "recursive call chain: %s", msg)
		}
	})
}

// walk runs a depth-first traversal with an explicit stack. When a scenario
// already on the stack is reached again, or the stack exceeds MaxCallDepth,
// the offending chain is reported via onCycle and the ids on it are marked
// recursive.
func (cg CallGraph) walk(id string, stack []string, recursive map[string]bool, onCycle func(chain []string)) {
	for i, onStack := range stack {
		if onStack == id {
			chain := append(append([]string{}, stack[i:]...), id)
			if recursive != nil {
				for _, c := range chain {
					recursive[c] = true
				}
			}
			if onCycle != nil {
				onCycle(chain)
			}
			return
		}
	}
	if len(stack) >= MaxCallDepth {
		if onCycle != nil {
			onCycle(append(append([]string{}, stack...), id))
		}
		return
	}
	stack = append(stack, id)
	for _, callee := range cg[id] {
		cg.walk(callee, stack, recursive, onCycle)
	}
}
