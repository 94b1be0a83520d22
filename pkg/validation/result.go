// Package validation performs static analysis of scenario graphs before
// compilation: structure, reachability, dead ends, pin coverage, loop
// parameters, condition syntax, scenario references, recursion, and a
// best-effort undefined-variable pass.
package validation

import "fmt"

// Severity partitions issues into blocking errors and informational warnings.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Stable issue codes. Errors block execution, warnings do not.
const (
	CodeMissingStart      = "E001"
	CodeMissingEnd        = "E002"
	CodeDeadEnd           = "E003"
	CodeDanglingConn      = "E004"
	CodeLoopStepZero      = "E101"
	CodeLoopStepSign      = "E102"
	CodeScenarioMissing   = "E103"
	CodeBadCondition      = "E104"
	CodeEmptyVarName      = "E201"
	CodeMissingTrue       = "W001"
	CodeMissingFalse      = "W002"
	CodeMissingTry        = "W003"
	CodeMissingCatch      = "W004"
	CodeMaybeUndefinedVar = "W005"
	CodeRecursiveCall     = "W006"
	CodeLoopNoBody        = "W007"
	CodeDuplicateVarName  = "W008"
)

// Issue is a single validation finding tied to a node (NodeID may be empty
// for scenario-level findings).
type Issue struct {
	Code     string   `json:"code"`
	NodeID   string   `json:"node_id,omitempty"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

func (i Issue) String() string {
	if i.NodeID == "" {
		return fmt.Sprintf("[%s] %s", i.Code, i.Message)
	}
	return fmt.Sprintf("[%s] node %s: %s", i.Code, i.NodeID, i.Message)
}

// Result collects the findings for one scenario plus the reachable-node set
// the compiler reuses to skip dead code.
type Result struct {
	Errors    []Issue         `json:"errors"`
	Warnings  []Issue         `json:"warnings"`
	Reachable map[string]bool `json:"-"`
}

// NewResult returns an empty result with an allocated reachable set.
func NewResult() *Result {
	return &Result{Reachable: make(map[string]bool)}
}

// AddError records a blocking finding.
func (r *Result) AddError(code, nodeID, format string, args ...any) {
	r.Errors = append(r.Errors, Issue{
		Code:     code,
		NodeID:   nodeID,
		Message:  fmt.Sprintf(format, args...),
		Severity: SeverityError,
	})
}

// AddWarning records an informational finding.
func (r *Result) AddWarning(code, nodeID, format string, args ...any) {
	r.Warnings = append(r.Warnings, Issue{
		Code:     code,
		NodeID:   nodeID,
		Message:  fmt.Sprintf(format, args...),
		Severity: SeverityWarning,
	})
}

// Merge folds another result's findings into r. Reachable sets are unioned.
func (r *Result) Merge(other *Result) {
	if other == nil {
		return
	}
	r.Errors = append(r.Errors, other.Errors...)
	r.Warnings = append(r.Warnings, other.Warnings...)
	for id := range other.Reachable {
		r.Reachable[id] = true
	}
}

// Valid reports whether execution may start.
func (r *Result) Valid() bool {
	return len(r.Errors) == 0
}
