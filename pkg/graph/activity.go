package graph

// ActivityKind discriminates the activity union. It doubles as the "type"
// field in serialized form.
type ActivityKind string

const (
	KindStart         ActivityKind = "start"
	KindEnd           ActivityKind = "end"
	KindLog           ActivityKind = "log"
	KindDelay         ActivityKind = "delay"
	KindSetVariable   ActivityKind = "set_variable"
	KindEvaluate      ActivityKind = "evaluate"
	KindIf            ActivityKind = "if"
	KindLoop          ActivityKind = "loop"
	KindWhile         ActivityKind = "while"
	KindTryCatch      ActivityKind = "try_catch"
	KindCallScenario  ActivityKind = "call_scenario"
	KindRunPowershell ActivityKind = "run_powershell"
	KindContinue      ActivityKind = "continue"
	KindBreak         ActivityKind = "break"
	KindNote          ActivityKind = "note"
)

// LogLevel is the severity a Log activity writes at.
type LogLevel string

const (
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
	LevelDebug LogLevel = "debug"
)

// Activity is a flat union: Kind selects which of the remaining fields are
// meaningful. A flat struct keeps (de)serialization trivial and matches how
// the editor emits nodes.
type Activity struct {
	Kind ActivityKind `json:"type" yaml:"type"`

	// Log
	Message string   `json:"message,omitempty" yaml:"message,omitempty"`
	Level   LogLevel `json:"level,omitempty" yaml:"level,omitempty"`

	// Delay
	DelayMs int64 `json:"delay_ms,omitempty" yaml:"delay_ms,omitempty"`

	// SetVariable
	Name    string  `json:"name,omitempty" yaml:"name,omitempty"`
	Value   string  `json:"value,omitempty" yaml:"value,omitempty"`
	VarType VarType `json:"var_type,omitempty" yaml:"var_type,omitempty"`
	Global  bool    `json:"global,omitempty" yaml:"global,omitempty"`

	// Evaluate
	Expression string `json:"expression,omitempty" yaml:"expression,omitempty"`

	// If, While
	Condition string `json:"condition,omitempty" yaml:"condition,omitempty"`

	// Loop
	LoopStart int64  `json:"loop_start,omitempty" yaml:"loop_start,omitempty"`
	LoopEnd   int64  `json:"loop_end,omitempty" yaml:"loop_end,omitempty"`
	LoopStep  int64  `json:"loop_step,omitempty" yaml:"loop_step,omitempty"`
	IndexVar  string `json:"index_var,omitempty" yaml:"index_var,omitempty"`

	// CallScenario
	ScenarioID string         `json:"scenario_id,omitempty" yaml:"scenario_id,omitempty"`
	Bindings   []ParamBinding `json:"bindings,omitempty" yaml:"bindings,omitempty"`

	// RunPowershell
	Script string `json:"script,omitempty" yaml:"script,omitempty"`

	// Note
	Text string `json:"text,omitempty" yaml:"text,omitempty"`
}

// OutputPins lists the branch pins a node of the given kind exposes, in the
// order the editor renders them. Terminal kinds return nil.
func OutputPins(kind ActivityKind) []BranchType {
	switch kind {
	case KindIf:
		return []BranchType{BranchTrue, BranchFalse}
	case KindLoop:
		return []BranchType{BranchLoop, BranchDefault}
	case KindWhile:
		return []BranchType{BranchLoop, BranchDefault}
	case KindTryCatch:
		return []BranchType{BranchTry, BranchCatch, BranchDefault}
	case KindEnd, KindNote, KindContinue, KindBreak:
		return nil
	default:
		return []BranchType{BranchDefault}
	}
}

// HasErrorPin reports whether the kind may carry an optional error branch in
// addition to its regular pins.
func HasErrorPin(kind ActivityKind) bool {
	switch kind {
	case KindEvaluate, KindSetVariable, KindCallScenario, KindRunPowershell:
		return true
	}
	return false
}

// Terminal reports whether nodes of this kind end a control-flow path.
func Terminal(kind ActivityKind) bool {
	switch kind {
	case KindEnd, KindContinue, KindBreak:
		return true
	}
	return false
}
