// Package stage defines the fixed, ordered set of software testing lifecycle
// stages a session moves through.
//
// Stages are persisted as their string values, so a snapshot written by one
// process can be read back by another. [Stage.IsValid] reports whether a value
// read from storage names one of the known stages.
//
// The order is total and never changes at runtime:
//
//	project-init → requirement-analysis → test-planning → test-case-development
//	→ test-environment-setup → test-execution → test-closure → done
package stage

// Stage is one named step of the testing lifecycle.
type Stage string

const (
	// ProjectInit is the initial stage before a project name and requirements
	// have been supplied.
	ProjectInit Stage = "project-init"

	// RequirementAnalysis is entered once the project has been initialized.
	// The requirement list is reviewed and approved here.
	RequirementAnalysis Stage = "requirement-analysis"

	// TestPlanning produces the test plan.
	TestPlanning Stage = "test-planning"

	// TestCaseDevelopment produces the test cases.
	TestCaseDevelopment Stage = "test-case-development"

	// TestEnvironmentSetup produces the recommended test environment.
	TestEnvironmentSetup Stage = "test-environment-setup"

	// TestExecution produces the execution strategy or checklist.
	TestExecution Stage = "test-execution"

	// TestClosure produces the closure summary.
	TestClosure Stage = "test-closure"

	// Done is the terminal stage.
	Done Stage = "done"
)

var order = []Stage{
	ProjectInit,
	RequirementAnalysis,
	TestPlanning,
	TestCaseDevelopment,
	TestEnvironmentSetup,
	TestExecution,
	TestClosure,
	Done,
}

var labels = map[Stage]string{
	ProjectInit:          "Project Initialization",
	RequirementAnalysis:  "Requirement Analysis",
	TestPlanning:         "Test Planning",
	TestCaseDevelopment:  "Test Case Development",
	TestEnvironmentSetup: "Test Environment Setup",
	TestExecution:        "Test Execution",
	TestClosure:          "Test Closure",
	Done:                 "Done",
}

var index = func() map[Stage]int {
	m := make(map[Stage]int, len(order))
	for i, s := range order {
		m[s] = i
	}
	return m
}()

// All returns every stage in lifecycle order. The returned slice is a copy.
func All() []Stage {
	out := make([]Stage, len(order))
	copy(out, order)
	return out
}

// Parse converts a string to a [Stage], reporting false for unknown values.
func Parse(s string) (Stage, bool) {
	st := Stage(s)
	return st, st.IsValid()
}

// IsValid reports whether s is one of the known stages.
func (s Stage) IsValid() bool {
	_, ok := index[s]
	return ok
}

// Index returns the position of s in the lifecycle order, or -1 if s is not
// a known stage.
func (s Stage) Index() int {
	if i, ok := index[s]; ok {
		return i
	}
	return -1
}

// Before reports whether s comes strictly before other in lifecycle order.
// Unknown stages are never before anything.
func (s Stage) Before(other Stage) bool {
	i, j := s.Index(), other.Index()
	return i >= 0 && j >= 0 && i < j
}

// Label returns the human-readable name of the stage.
func (s Stage) Label() string {
	if l, ok := labels[s]; ok {
		return l
	}
	return string(s)
}

// IsTerminal reports whether s is [Done].
func (s Stage) IsTerminal() bool {
	return s == Done
}

func (s Stage) String() string {
	return string(s)
}
