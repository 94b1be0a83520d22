// Package ir compiles a validated scenario graph into a flat instruction
// sequence with absolute jump targets, and defines the instruction set that
// the executor and any external inspector consume.
package ir

import (
	"fmt"

	"github.com/bissakov/qazcode-rpa-sub000/pkg/graph"
	"github.com/bissakov/qazcode-rpa-sub000/pkg/script"
	"github.com/bissakov/qazcode-rpa-sub000/pkg/types"
)

// Op identifies an instruction. The names are part of the wire contract
// with debuggers and inspectors; do not renumber.
type Op int

const (
	OpStart Op = iota
	OpEnd
	OpLog
	OpDelay
	OpSetVar
	OpGetVar
	OpEvaluate
	OpJump
	OpJumpIf
	OpJumpIfNot
	OpLoopInit
	OpLoopCheck
	OpLoopIncrement
	OpLoopBreak
	OpLoopContinue
	OpWhileCheck
	OpPushErrorHandler
	OpPopErrorHandler
	OpCallScenario
	OpRunPowershell
	OpDebugMarker
)

func (o Op) String() string {
	switch o {
	case OpStart:
		return "Start"
	case OpEnd:
		return "End"
	case OpLog:
		return "Log"
	case OpDelay:
		return "Delay"
	case OpSetVar:
		return "SetVar"
	case OpGetVar:
		return "GetVar"
	case OpEvaluate:
		return "Evaluate"
	case OpJump:
		return "Jump"
	case OpJumpIf:
		return "JumpIf"
	case OpJumpIfNot:
		return "JumpIfNot"
	case OpLoopInit:
		return "LoopInit"
	case OpLoopCheck:
		return "LoopCheck"
	case OpLoopIncrement:
		return "LoopIncrement"
	case OpLoopBreak:
		return "LoopBreak"
	case OpLoopContinue:
		return "LoopContinue"
	case OpWhileCheck:
		return "WhileCheck"
	case OpPushErrorHandler:
		return "PushErrorHandler"
	case OpPopErrorHandler:
		return "PopErrorHandler"
	case OpCallScenario:
		return "CallScenario"
	case OpRunPowershell:
		return "RunPowershell"
	case OpDebugMarker:
		return "DebugMarker"
	default:
		return fmt.Sprintf("Op(%d)", int(o))
	}
}

// Instruction is a flat union; Op selects which fields are meaningful.
// Expressions are parsed once at build time, never at execution time.
type Instruction struct {
	Op     Op
	NodeID string

	// Jump targets, absolute indices into the instruction array.
	Target      int
	BodyTarget  int
	EndTarget   int
	CheckTarget int
	CatchTarget int

	// Parsed condition/expression plus its source text for messages.
	Cond     script.Node
	CondText string

	// Log/SetVar template (message text or string-typed value).
	Template script.Node

	// SetVar, LoopInit, LoopCheck, LoopIncrement.
	Name   string
	Value  types.Value
	IsExpr bool
	Global bool

	// Loop parameters.
	Start int64
	End   int64
	Step  int64

	Level   graph.LogLevel
	DelayMs int64

	ScenarioID string
	Bindings   []graph.ParamBinding

	Script string

	// DebugMarker only.
	Description string
}

func (in Instruction) String() string {
	switch in.Op {
	case OpJump:
		return fmt.Sprintf("Jump -> %d", in.Target)
	case OpJumpIf, OpJumpIfNot:
		return fmt.Sprintf("%s(%s) -> %d", in.Op, in.CondText, in.Target)
	case OpLoopCheck:
		return fmt.Sprintf("LoopCheck(%s) body=%d end=%d", in.Name, in.BodyTarget, in.EndTarget)
	case OpWhileCheck:
		return fmt.Sprintf("WhileCheck(%s) body=%d end=%d", in.CondText, in.BodyTarget, in.EndTarget)
	case OpDebugMarker:
		return fmt.Sprintf("DebugMarker[%s] %s", in.NodeID, in.Description)
	default:
		return in.Op.String()
	}
}
