package ir

import "github.com/bissakov/qazcode-rpa-sub000/pkg/validation"

// Program is a compiled project: the main scenario followed by every
// transitively called scenario, in one flat instruction array.
type Program struct {
	Instructions []Instruction

	// EntryPoint is the index of the main scenario's first instruction.
	EntryPoint int

	// NodeIndex maps "scenarioID/nodeID" to the node's first instruction,
	// for steppers and breakpoints.
	NodeIndex map[string]int

	// ScenarioStart maps scenario id to its compiled entry index.
	ScenarioStart map[string]int

	CallGraph validation.CallGraph
	Recursive map[string]bool
}

// At returns the instruction at pc; ok is false when pc is past the end.
func (p *Program) At(pc int) (Instruction, bool) {
	if pc < 0 || pc >= len(p.Instructions) {
		return Instruction{}, false
	}
	return p.Instructions[pc], true
}
