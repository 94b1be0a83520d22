package runtime

import (
	"fmt"
	"time"

	"github.com/bissakov/qazcode-rpa-sub000/pkg/graph"
	"github.com/bissakov/qazcode-rpa-sub000/pkg/ir"
	"github.com/bissakov/qazcode-rpa-sub000/pkg/runlog"
	"github.com/bissakov/qazcode-rpa-sub000/pkg/script"
	"github.com/bissakov/qazcode-rpa-sub000/pkg/types"
	"github.com/bissakov/qazcode-rpa-sub000/pkg/vars"
)

// MaxCallStackDepth bounds nested scenario calls at run time.
const MaxCallStackDepth = 100

// ShellRunner executes an opaque side-effecting script and returns its
// output text. The engine treats it as a black box.
type ShellRunner interface {
	Run(script string) (string, error)
}

// Executor interprets one compiled Program on a single goroutine. It is
// not reusable; build a new one per run.
type Executor struct {
	prog    *ir.Program
	project *graph.Project
	main    *graph.Scenario
	ctx     *ExecutionContext
	sink    runlog.Sink

	onSnapshot SnapshotFunc
	shell      ShellRunner

	callStack  []CallFrame
	handlers   []int
	whileIters map[int]int
	loopSample map[int]float64
	lastSnap   time.Time
}

// NewExecutor wires a compiled program to its project, context, and log
// sink. A nil sink discards entries.
func NewExecutor(prog *ir.Program, project *graph.Project, main *graph.Scenario, ctx *ExecutionContext, sink runlog.Sink) *Executor {
	if sink == nil {
		sink = runlog.Discard
	}
	return &Executor{
		prog:       prog,
		project:    project,
		main:       main,
		ctx:        ctx,
		sink:       sink,
		whileIters: make(map[int]int),
		loopSample: make(map[int]float64),
	}
}

// SetSnapshotFunc installs a throttled state observer.
func (e *Executor) SetSnapshotFunc(fn SnapshotFunc) { e.onSnapshot = fn }

// SetShell installs the PowerShell collaborator. Without one, script nodes
// log a warning and are skipped.
func (e *Executor) SetShell(r ShellRunner) { e.shell = r }

// Run drives the program counter until completion, terminal error, or
// cancellation. The returned error is nil only on a clean completion.
func (e *Executor) Run() (err error) {
	defer func() {
		// The sentinel is the last record of every run, whatever the outcome.
		e.emit(runlog.LevelInfo, runlog.CatSystem, "", runlog.SentinelComplete)
	}()
	defer func() {
		if r := recover(); r != nil {
			msg := fmt.Sprintf("Execution interrupted: %v", r)
			e.emit(runlog.LevelError, runlog.CatSystem, "", "%s", msg)
			err = types.NewRuntimeError(msg)
			e.finalSnapshot(StatusFailed)
		}
	}()

	if err := e.seedMainScope(); err != nil {
		e.emit(runlog.LevelError, runlog.CatSystem, "", "%v", err)
		e.finalSnapshot(StatusFailed)
		return err
	}
	e.ctx.SetGlobal("last_error", types.Undefined)

	pc := e.prog.EntryPoint
	for {
		if e.ctx.Stop.Stopped() {
			e.emit(runlog.LevelInfo, runlog.CatExecution, "", "%s", types.ErrStoppedByUser.Message)
			e.finalSnapshot(StatusCancelled)
			return types.ErrStoppedByUser
		}

		in, ok := e.prog.At(pc)
		if !ok {
			if len(e.callStack) == 0 {
				e.emit(runlog.LevelInfo, runlog.CatExecution, "", "Execution completed.")
				e.finalSnapshot(StatusSucceeded)
				return nil
			}
			pc = e.returnFromCall()
			continue
		}

		next, stepErr := e.step(pc, in)
		if stepErr != nil {
			if types.IsStopped(stepErr) {
				e.emit(runlog.LevelInfo, runlog.CatExecution, in.NodeID, "%s", stepErr.Error())
				e.finalSnapshot(StatusCancelled)
				return stepErr
			}
			target, handled := e.handleError(in.NodeID, stepErr)
			if !handled {
				e.emit(runlog.LevelError, runlog.CatExecution, in.NodeID,
					"Unhandled error: %s. No error handler connected.", stepErr.Error())
				e.finalSnapshot(StatusFailed)
				return stepErr
			}
			next = target
		}

		e.maybeSnapshot(next, in.NodeID)
		pc = next
	}
}

func (e *Executor) seedMainScope() error {
	locals := vars.New()
	for _, d := range e.main.Variables {
		v, err := ir.DeclaredValue(d)
		if err != nil {
			return types.NewRuntimeError(fmt.Sprintf("variable %q: %v", d.Name, err))
		}
		if d.Global {
			e.ctx.SetGlobal(d.Name, v)
			continue
		}
		locals.Set(d.Name, v, vars.ScopeScenario)
	}
	e.ctx.PushScope(ScopeFrame{ScenarioID: e.main.ID, Locals: locals})
	return nil
}

// handleError records the error into `last_error`, then transfers control
// to the innermost catch target if one is armed.
func (e *Executor) handleError(nodeID string, execErr error) (int, bool) {
	e.ctx.SetGlobal("last_error", types.NewString(execErr.Error()))
	if n := len(e.handlers); n > 0 {
		target := e.handlers[n-1]
		e.handlers = e.handlers[:n-1]
		e.emit(runlog.LevelError, runlog.CatTryCatch, nodeID,
			"Error: %s, jumping to error handler", execErr.Error())
		return target, true
	}
	return 0, false
}

func (e *Executor) step(pc int, in ir.Instruction) (int, error) {
	switch in.Op {
	case ir.OpDebugMarker, ir.OpGetVar:
		return pc + 1, nil

	case ir.OpStart:
		e.emit(runlog.LevelInfo, runlog.CatStart, in.NodeID, "Scenario %q started", e.scenarioName(in.ScenarioID))
		return pc + 1, nil

	case ir.OpEnd:
		e.emit(runlog.LevelInfo, runlog.CatEnd, in.NodeID, "Scenario %q finished", e.scenarioName(in.ScenarioID))
		if len(e.callStack) == 0 {
			return len(e.prog.Instructions), nil
		}
		return e.returnFromCall(), nil

	case ir.OpLog:
		msg, err := script.Evaluate(in.Template, e.ctx)
		if err != nil {
			e.emit(runlog.LevelError, runlog.CatLog, in.NodeID, "%v", err)
			return pc + 1, nil
		}
		e.emit(levelFor(in.Level), runlog.CatLog, in.NodeID, "%s", msg.String())
		return pc + 1, nil

	case ir.OpDelay:
		e.emit(runlog.LevelInfo, runlog.CatDelay, in.NodeID, "Waiting %d ms", in.DelayMs)
		if !e.ctx.Stop.Sleep(time.Duration(in.DelayMs) * time.Millisecond) {
			return 0, types.ErrStoppedByUser
		}
		return pc + 1, nil

	case ir.OpSetVar:
		v := in.Value
		if in.IsExpr {
			var err error
			v, err = script.Evaluate(in.Cond, e.ctx)
			if err != nil {
				return 0, err
			}
		}
		e.ctx.Assign(in.Name, v, in.Global)
		e.emit(runlog.LevelInfo, runlog.CatSetVar, in.NodeID, "%s = %s", in.Name, v.String())
		return pc + 1, nil

	case ir.OpEvaluate:
		v, err := script.Evaluate(in.Cond, e.ctx)
		if err != nil {
			return 0, err
		}
		e.emit(runlog.LevelInfo, runlog.CatEvaluate, in.NodeID, "%s = %s", in.CondText, v.String())
		return pc + 1, nil

	case ir.OpJump:
		return in.Target, nil

	case ir.OpJumpIf, ir.OpJumpIfNot:
		cond, err := e.evalBool(in)
		if err != nil {
			// Conditionals degrade to fall-through on bad input.
			e.emit(runlog.LevelError, runlog.CatIf, in.NodeID, "%v", err)
			return pc + 1, nil
		}
		e.emit(runlog.LevelInfo, runlog.CatIf, in.NodeID, "Condition %q is %t", in.CondText, cond)
		if in.Op == ir.OpJumpIfNot {
			cond = !cond
		}
		if cond {
			return in.Target, nil
		}
		return pc + 1, nil

	case ir.OpLoopInit:
		e.ctx.Assign(in.Name, types.NewNumber(float64(in.Start)), false)
		e.emit(runlog.LevelInfo, runlog.CatLoop, in.NodeID, "Loop started: %s = %d", in.Name, in.Start)
		return pc + 1, nil

	case ir.OpLoopCheck:
		if in.Step == 0 {
			e.emit(runlog.LevelWarn, runlog.CatLoop, in.NodeID, "Step is 0, loop skipped")
			return in.EndTarget, nil
		}
		v, err := e.ctx.Resolve(in.Name)
		if err != nil {
			return 0, err
		}
		cur, err := v.ToNumber()
		if err != nil {
			return 0, err
		}
		e.loopSample[pc] = cur
		var cont bool
		if in.Step > 0 {
			cont = cur < float64(in.End)
		} else {
			cont = cur > float64(in.End)
		}
		if cont {
			return in.BodyTarget, nil
		}
		delete(e.loopSample, pc)
		e.emit(runlog.LevelInfo, runlog.CatLoop, in.NodeID, "Loop finished")
		return in.EndTarget, nil

	case ir.OpLoopIncrement:
		base, ok := e.loopSample[in.CheckTarget]
		if !ok {
			v, err := e.ctx.Resolve(in.Name)
			if err != nil {
				return 0, err
			}
			if base, err = v.ToNumber(); err != nil {
				return 0, err
			}
		}
		e.ctx.Assign(in.Name, types.NewNumber(base+float64(in.Step)), false)
		return in.CheckTarget, nil

	case ir.OpLoopBreak:
		e.emit(runlog.LevelInfo, runlog.CatLoop, in.NodeID, "Loop break")
		return in.EndTarget, nil

	case ir.OpLoopContinue:
		return in.CheckTarget, nil

	case ir.OpWhileCheck:
		v, err := script.Evaluate(in.Cond, e.ctx)
		if err != nil {
			return 0, err
		}
		if v.Kind() != types.KindBoolean {
			return 0, types.NewRuntimeError("Non-logical result of an expression")
		}
		if v.Bool() {
			e.whileIters[pc]++
			e.emit(runlog.LevelInfo, runlog.CatWhile, in.NodeID, "Iteration %d: condition is true", e.whileIters[pc])
			return in.BodyTarget, nil
		}
		e.emit(runlog.LevelInfo, runlog.CatWhile, in.NodeID, "Completed %d iterations", e.whileIters[pc])
		delete(e.whileIters, pc)
		return in.EndTarget, nil

	case ir.OpPushErrorHandler:
		e.handlers = append(e.handlers, in.CatchTarget)
		return pc + 1, nil

	case ir.OpPopErrorHandler:
		if n := len(e.handlers); n > 0 {
			e.handlers = e.handlers[:n-1]
		}
		return pc + 1, nil

	case ir.OpCallScenario:
		return e.callScenario(pc, in)

	case ir.OpRunPowershell:
		if e.shell == nil {
			e.emit(runlog.LevelWarn, runlog.CatPowershell, in.NodeID, "No PowerShell runner configured, script skipped")
			return pc + 1, nil
		}
		out, err := e.shell.Run(in.Script)
		if err != nil {
			return 0, types.NewRuntimeError(err.Error())
		}
		if out != "" {
			e.emit(runlog.LevelInfo, runlog.CatPowershell, in.NodeID, "%s", out)
		}
		return pc + 1, nil

	default:
		return 0, types.NewRuntimeError(fmt.Sprintf("unknown instruction %s at %d", in.Op, pc))
	}
}

func (e *Executor) callScenario(pc int, in ir.Instruction) (int, error) {
	if len(e.callStack) >= MaxCallStackDepth {
		return 0, types.NewMaxCallDepthError(
			fmt.Sprintf("Maximum scenario call depth exceeded (%d)", MaxCallStackDepth))
	}
	callee := e.project.ScenarioByID(in.ScenarioID)
	if callee == nil {
		return 0, types.NewRuntimeError(fmt.Sprintf("Scenario %q not found", in.ScenarioID))
	}
	entry, ok := e.prog.ScenarioStart[in.ScenarioID]
	if !ok {
		return 0, types.NewRuntimeError(fmt.Sprintf("Scenario %q was not compiled", callee.Name))
	}

	locals := vars.New()
	for _, d := range callee.Variables {
		v, err := ir.DeclaredValue(d)
		if err != nil {
			return 0, types.NewRuntimeError(fmt.Sprintf("variable %q: %v", d.Name, err))
		}
		locals.Set(d.Name, v, vars.ScopeScenario)
	}
	for _, b := range in.Bindings {
		if b.Direction == graph.DirOut {
			continue
		}
		var v types.Value
		if b.SourceGlobal {
			g, ok := e.ctx.GlobalValue(b.Source)
			if !ok {
				return 0, types.NewUndefinedVariableError(b.Source)
			}
			v = g
		} else {
			r, err := e.ctx.Resolve(b.Source)
			if err != nil {
				return 0, err
			}
			v = r
		}
		locals.Set(b.Target, v, vars.ScopeScenario)
	}

	e.callStack = append(e.callStack, CallFrame{
		CallerScenarioID: e.ctx.CurrentScenarioID(),
		ReturnAddress:    pc + 1,
		Bindings:         in.Bindings,
	})
	e.ctx.PushScope(ScopeFrame{ScenarioID: callee.ID, Locals: locals})
	e.emit(runlog.LevelInfo, runlog.CatCall, in.NodeID, "Calling scenario %q", callee.Name)
	return entry, nil
}

// returnFromCall pops the top call frame, copies Out/InOut bindings back
// into the caller's view, and resumes at the recorded return address.
func (e *Executor) returnFromCall() int {
	frame := e.callStack[len(e.callStack)-1]
	e.callStack = e.callStack[:len(e.callStack)-1]

	type writeBack struct {
		binding graph.ParamBinding
		value   types.Value
	}
	var pending []writeBack
	for _, b := range frame.Bindings {
		if b.Direction == graph.DirIn {
			continue
		}
		if v, ok := e.ctx.LocalValue(b.Target); ok {
			pending = append(pending, writeBack{binding: b, value: v})
		}
	}

	e.ctx.PopScope()
	for _, wb := range pending {
		e.ctx.Assign(wb.binding.Source, wb.value, wb.binding.SourceGlobal)
	}
	return frame.ReturnAddress
}

func (e *Executor) evalBool(in ir.Instruction) (bool, error) {
	v, err := script.Evaluate(in.Cond, e.ctx)
	if err != nil {
		return false, err
	}
	if v.Kind() != types.KindBoolean {
		return false, types.NewTypeError("Non-logical result of an expression")
	}
	return v.Bool(), nil
}

func (e *Executor) emit(level runlog.Level, cat runlog.Category, nodeID, format string, args ...any) {
	e.sink.Emit(runlog.Entry{
		Timestamp: e.ctx.Stamp(),
		NodeID:    nodeID,
		Level:     level,
		Activity:  cat,
		Message:   fmt.Sprintf(format, args...),
	})
}

func (e *Executor) scenarioName(id string) string {
	if s := e.project.ScenarioByID(id); s != nil {
		return s.Name
	}
	return id
}

func (e *Executor) maybeSnapshot(pc int, nodeID string) {
	if e.onSnapshot == nil {
		return
	}
	now := time.Now()
	if now.Sub(e.lastSnap) < SnapshotInterval {
		return
	}
	e.lastSnap = now
	e.onSnapshot(Snapshot{
		PC:        pc,
		NodeID:    nodeID,
		Status:    StatusRunning,
		Variables: e.ctx.Snapshot(),
		At:        now,
	})
}

func (e *Executor) finalSnapshot(status Status) {
	if e.onSnapshot == nil {
		return
	}
	e.onSnapshot(Snapshot{
		Status:    status,
		Variables: e.ctx.Snapshot(),
		At:        time.Now(),
	})
}

func levelFor(l graph.LogLevel) runlog.Level {
	switch l {
	case graph.LevelWarn:
		return runlog.LevelWarn
	case graph.LevelError:
		return runlog.LevelError
	case graph.LevelDebug:
		return runlog.LevelDebug
	default:
		return runlog.LevelInfo
	}
}
