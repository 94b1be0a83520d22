package ir

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bissakov/qazcode-rpa-sub000/pkg/graph"
	"github.com/bissakov/qazcode-rpa-sub000/pkg/script"
	"github.com/bissakov/qazcode-rpa-sub000/pkg/types"
	"github.com/bissakov/qazcode-rpa-sub000/pkg/validation"
	"github.com/bissakov/qazcode-rpa-sub000/pkg/vars"
)

// Build compiles the given scenario plus every scenario it transitively
// calls into one Program. The reachable set comes from a prior validation
// run; the globals store is seeded with the project's declared variables so
// the executor and the builder agree on initial state.
func Build(p *graph.Project, s *graph.Scenario, reachable map[string]bool, globals *vars.Store) (*Program, error) {
	if globals != nil {
		for _, d := range p.Variables {
			v, err := DeclaredValue(d)
			if err != nil {
				return nil, fmt.Errorf("project variable %q: %w", d.Name, err)
			}
			globals.Set(d.Name, v, vars.ScopeGlobal)
		}
	}

	cg := validation.BuildCallGraph(p)
	b := &builder{
		project: p,
		prog: &Program{
			NodeIndex:     make(map[string]int),
			ScenarioStart: make(map[string]int),
			CallGraph:     cg,
			Recursive:     cg.RecursiveScenarios(),
		},
	}

	entry, err := b.compileScenario(s, reachable)
	if err != nil {
		return nil, err
	}
	b.prog.EntryPoint = entry

	// Compile callees breadth-first so CallScenario can resolve entry
	// indices at run time. Recursive chains terminate because each
	// scenario compiles at most once.
	queue := append([]string{}, cg[s.ID]...)
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if _, done := b.prog.ScenarioStart[id]; done {
			continue
		}
		callee := p.ScenarioByID(id)
		if callee == nil {
			return nil, fmt.Errorf("called scenario %q does not exist", id)
		}
		if _, err := b.compileScenario(callee, nil); err != nil {
			return nil, err
		}
		queue = append(queue, cg[id]...)
	}

	return b.prog, nil
}

// DeclaredValue parses a variable declaration's textual default per its
// declared type.
func DeclaredValue(d graph.VariableDecl) (types.Value, error) {
	switch d.Type {
	case graph.VarNumber:
		f, err := strconv.ParseFloat(strings.TrimSpace(d.Value), 64)
		if err != nil {
			return types.Undefined, fmt.Errorf("invalid number default %q", d.Value)
		}
		return types.NewNumber(f), nil
	case graph.VarBoolean:
		switch strings.TrimSpace(d.Value) {
		case "true":
			return types.NewBool(true), nil
		case "false":
			return types.NewBool(false), nil
		}
		return types.Undefined, fmt.Errorf("invalid boolean default %q", d.Value)
	default:
		return types.NewString(d.Value), nil
	}
}

type loopCtx struct {
	headerID string
	checkPC  int
	breaks   []int
}

type builder struct {
	project   *graph.Project
	prog      *Program
	scenario  *graph.Scenario
	reachable map[string]bool
	compiled  map[string]int
	loopStack []loopCtx
}

func (b *builder) compileScenario(s *graph.Scenario, reachable map[string]bool) (int, error) {
	start := s.StartNode()
	if start == nil {
		return 0, fmt.Errorf("scenario %q has no Start node", s.Name)
	}
	b.scenario = s
	b.reachable = reachable
	b.compiled = make(map[string]int)
	b.loopStack = nil

	entry := len(b.prog.Instructions)
	b.prog.ScenarioStart[s.ID] = entry
	if err := b.compileNode(start.ID); err != nil {
		return 0, err
	}
	return entry, nil
}

func (b *builder) emit(in Instruction) int {
	b.prog.Instructions = append(b.prog.Instructions, in)
	return len(b.prog.Instructions) - 1
}

func (b *builder) pc() int {
	return len(b.prog.Instructions)
}

// compileNode emits the node and recurses into its successors, depth first.
// Converging paths compile a node once; later arrivals emit a Jump to the
// recorded index, except when the target is the header of a loop currently
// being compiled, where falling through reaches the increment or back-jump
// that physically follows the body.
func (b *builder) compileNode(id string) error {
	if id == "" {
		return nil
	}
	if idx, ok := b.compiled[id]; ok {
		for i := len(b.loopStack) - 1; i >= 0; i-- {
			if b.loopStack[i].headerID == id {
				return nil
			}
		}
		b.emit(Instruction{Op: OpJump, NodeID: id, Target: idx})
		return nil
	}
	n := b.scenario.NodeByID(id)
	if n == nil {
		return fmt.Errorf("node %q referenced but not present in scenario %q", id, b.scenario.Name)
	}
	if b.reachable != nil && !b.reachable[id] {
		return nil
	}
	a := n.Activity
	if a.Kind == graph.KindNote {
		return nil
	}

	b.compiled[id] = b.pc()
	b.emit(Instruction{Op: OpDebugMarker, NodeID: id, Description: describe(a)})
	b.prog.NodeIndex[b.scenario.ID+"/"+id] = b.compiled[id]

	switch a.Kind {
	case graph.KindStart:
		b.emit(Instruction{Op: OpStart, NodeID: id, ScenarioID: b.scenario.ID})
		return b.compileNode(b.next(id, graph.BranchDefault))

	case graph.KindEnd:
		b.emit(Instruction{Op: OpEnd, NodeID: id, ScenarioID: b.scenario.ID})
		return nil

	case graph.KindLog:
		tmpl, err := script.ParseTemplate(a.Message)
		if err != nil {
			// Malformed templates degrade to their raw text.
			tmpl = script.ConstText(a.Message)
		}
		level := a.Level
		if level == "" {
			level = graph.LevelInfo
		}
		b.emit(Instruction{Op: OpLog, NodeID: id, Template: tmpl, CondText: a.Message, Level: level})
		return b.compileNode(b.next(id, graph.BranchDefault))

	case graph.KindDelay:
		b.emit(Instruction{Op: OpDelay, NodeID: id, DelayMs: a.DelayMs})
		return b.compileNode(b.next(id, graph.BranchDefault))

	case graph.KindSetVariable:
		in := b.compileSetVar(id, a)
		b.emit(in)
		return b.compileNode(b.next(id, graph.BranchDefault))

	case graph.KindEvaluate:
		cond, err := script.ParseExpression(a.Expression)
		if err != nil {
			return fmt.Errorf("node %s: expression %q: %w", id, a.Expression, err)
		}
		b.emit(Instruction{Op: OpEvaluate, NodeID: id, Cond: cond, CondText: a.Expression})
		return b.compileNode(b.next(id, graph.BranchDefault))

	case graph.KindIf:
		return b.compileIf(id, a)

	case graph.KindLoop:
		return b.compileLoop(id, a)

	case graph.KindWhile:
		return b.compileWhile(id, a)

	case graph.KindTryCatch:
		return b.compileTryCatch(id)

	case graph.KindCallScenario:
		b.emit(Instruction{Op: OpCallScenario, NodeID: id, ScenarioID: a.ScenarioID, Bindings: a.Bindings})
		return b.compileNode(b.next(id, graph.BranchDefault))

	case graph.KindRunPowershell:
		b.emit(Instruction{Op: OpRunPowershell, NodeID: id, Script: a.Script})
		return b.compileNode(b.next(id, graph.BranchDefault))

	case graph.KindContinue:
		if len(b.loopStack) == 0 {
			return fmt.Errorf("node %s: Continue outside of a loop", id)
		}
		b.emit(Instruction{Op: OpLoopContinue, NodeID: id, CheckTarget: b.loopStack[len(b.loopStack)-1].checkPC})
		return nil

	case graph.KindBreak:
		if len(b.loopStack) == 0 {
			return fmt.Errorf("node %s: Break outside of a loop", id)
		}
		idx := b.emit(Instruction{Op: OpLoopBreak, NodeID: id})
		top := &b.loopStack[len(b.loopStack)-1]
		top.breaks = append(top.breaks, idx)
		return nil

	default:
		return fmt.Errorf("node %s: unknown activity kind %q", id, a.Kind)
	}
}

// compileSetVar resolves the value text into a typed literal when it parses
// cleanly per the declared type, otherwise into an expression evaluated at
// run time. String values always go through the template parser so
// interpolation works.
func (b *builder) compileSetVar(id string, a graph.Activity) Instruction {
	in := Instruction{Op: OpSetVar, NodeID: id, Name: a.Name, Global: a.Global, CondText: a.Value}

	switch a.VarType {
	case graph.VarNumber:
		if f, err := strconv.ParseFloat(strings.TrimSpace(a.Value), 64); err == nil {
			in.Value = types.NewNumber(f)
			return in
		}
	case graph.VarBoolean:
		switch strings.TrimSpace(a.Value) {
		case "true":
			in.Value = types.NewBool(true)
			return in
		case "false":
			in.Value = types.NewBool(false)
			return in
		}
	case graph.VarString:
		if tmpl, err := script.ParseTemplate(a.Value); err == nil {
			in.IsExpr = true
			in.Cond = tmpl
			return in
		}
		in.Value = types.NewString(a.Value)
		return in
	}

	if expr, err := script.ParseExpression(a.Value); err == nil {
		in.IsExpr = true
		in.Cond = expr
		return in
	}
	in.Value = types.NewString(a.Value)
	return in
}

func (b *builder) compileIf(id string, a graph.Activity) error {
	cond, err := script.ParseExpression(a.Condition)
	if err != nil {
		return fmt.Errorf("node %s: condition %q: %w", id, a.Condition, err)
	}

	jumpIf := b.emit(Instruction{Op: OpJumpIf, NodeID: id, Cond: cond, CondText: a.Condition})
	if err := b.compileNode(b.next(id, graph.BranchFalse)); err != nil {
		return err
	}
	skip := b.emit(Instruction{Op: OpJump, NodeID: id})
	trueEntry := b.pc()
	if err := b.compileNode(b.next(id, graph.BranchTrue)); err != nil {
		return err
	}
	b.prog.Instructions[jumpIf].Target = trueEntry
	b.prog.Instructions[skip].Target = b.pc()
	return nil
}

func (b *builder) compileLoop(id string, a graph.Activity) error {
	body := b.next(id, graph.BranchLoop)
	if body == "" {
		// No body, the whole construct vanishes.
		return b.compileNode(b.next(id, graph.BranchDefault))
	}

	b.emit(Instruction{Op: OpLoopInit, NodeID: id, Name: a.IndexVar, Start: a.LoopStart})
	check := b.emit(Instruction{
		Op: OpLoopCheck, NodeID: id,
		Name: a.IndexVar, End: a.LoopEnd, Step: a.LoopStep,
	})
	b.prog.Instructions[check].BodyTarget = b.pc()

	b.loopStack = append(b.loopStack, loopCtx{headerID: id, checkPC: check})
	err := b.compileNode(body)
	b.emit(Instruction{Op: OpLoopIncrement, NodeID: id, Name: a.IndexVar, Step: a.LoopStep, CheckTarget: check})
	ctx := b.loopStack[len(b.loopStack)-1]
	b.loopStack = b.loopStack[:len(b.loopStack)-1]
	if err != nil {
		return err
	}

	end := b.pc()
	b.prog.Instructions[check].EndTarget = end
	for _, brk := range ctx.breaks {
		b.prog.Instructions[brk].EndTarget = end
	}
	return b.compileNode(b.next(id, graph.BranchDefault))
}

func (b *builder) compileWhile(id string, a graph.Activity) error {
	cond, err := script.ParseExpression(a.Condition)
	if err != nil {
		return fmt.Errorf("node %s: condition %q: %w", id, a.Condition, err)
	}
	body := b.next(id, graph.BranchLoop)
	if body == "" {
		return b.compileNode(b.next(id, graph.BranchDefault))
	}

	check := b.emit(Instruction{Op: OpWhileCheck, NodeID: id, Cond: cond, CondText: a.Condition})
	b.prog.Instructions[check].BodyTarget = b.pc()

	b.loopStack = append(b.loopStack, loopCtx{headerID: id, checkPC: check})
	err = b.compileNode(body)
	b.emit(Instruction{Op: OpJump, NodeID: id, Target: check})
	ctx := b.loopStack[len(b.loopStack)-1]
	b.loopStack = b.loopStack[:len(b.loopStack)-1]
	if err != nil {
		return err
	}

	end := b.pc()
	b.prog.Instructions[check].EndTarget = end
	for _, brk := range ctx.breaks {
		b.prog.Instructions[brk].EndTarget = end
	}
	return b.compileNode(b.next(id, graph.BranchDefault))
}

func (b *builder) compileTryCatch(id string) error {
	push := b.emit(Instruction{Op: OpPushErrorHandler, NodeID: id})
	if err := b.compileNode(b.next(id, graph.BranchTry)); err != nil {
		return err
	}
	b.emit(Instruction{Op: OpPopErrorHandler, NodeID: id})
	skip := b.emit(Instruction{Op: OpJump, NodeID: id})
	catchEntry := b.pc()
	if err := b.compileNode(b.next(id, graph.BranchCatch)); err != nil {
		return err
	}
	b.prog.Instructions[push].CatchTarget = catchEntry
	b.prog.Instructions[skip].Target = b.pc()
	return b.compileNode(b.next(id, graph.BranchDefault))
}

func (b *builder) next(id string, branch graph.BranchType) string {
	return b.scenario.FirstNext(id, branch)
}

func describe(a graph.Activity) string {
	switch a.Kind {
	case graph.KindLog:
		return "Log: " + a.Message
	case graph.KindDelay:
		return fmt.Sprintf("Delay %dms", a.DelayMs)
	case graph.KindSetVariable:
		return fmt.Sprintf("Set %s = %s", a.Name, a.Value)
	case graph.KindEvaluate:
		return "Evaluate: " + a.Expression
	case graph.KindIf:
		return "If: " + a.Condition
	case graph.KindWhile:
		return "While: " + a.Condition
	case graph.KindLoop:
		return fmt.Sprintf("Loop %s from %d to %d step %d", a.IndexVar, a.LoopStart, a.LoopEnd, a.LoopStep)
	case graph.KindCallScenario:
		return "Call scenario " + a.ScenarioID
	case graph.KindRunPowershell:
		return "Run PowerShell"
	default:
		return string(a.Kind)
	}
}
