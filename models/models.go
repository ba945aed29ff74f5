package models

//=======================================
// Run level models
//=======================================

// GroupKind ...
type GroupKind string

// Group kinds reported for the root of the test tree.
const (
	GroupKindRoot     GroupKind = "root"
	GroupKindDescribe GroupKind = "group"
)

// Group describes the root test group the runner hands over when a run begins.
type Group struct {
	Kind  GroupKind `json:"kind"`
	Title string    `json:"title"`
}

// ReporterOptions is the reporter-options block of the run configuration.
// Only OutputFile is recognized, everything else is opaque.
type ReporterOptions struct {
	OutputFile string `json:"outputFile"`
}

// RunConfig ...
type RunConfig struct {
	ProtocolVersion string          `json:"protocolVersion"`
	ReporterOptions ReporterOptions `json:"reporterOptions"`
}

// RunResult ...
type RunResult struct {
	TotalDurationMs float64 `json:"totalDurationMs"`
}

//=======================================
// Test level models
//=======================================

// Status is the terminal status of one test execution as reported by the runner.
type Status string

// Runner statuses.
const (
	StatusPassed      Status = "passed"
	StatusFailed      Status = "failed"
	StatusSkipped     Status = "skipped"
	StatusTimedOut    Status = "timedOut"
	StatusInterrupted Status = "interrupted"
)

// IsFailing reports whether the status counts against the run.
func (s Status) IsFailing() bool {
	switch s {
	case StatusPassed, StatusSkipped:
		return false
	default:
		return true
	}
}

// TestIdentity identifies a test. Every field may be empty.
type TestIdentity struct {
	UniqueID   string `json:"uniqueId"`
	Title      string `json:"title"`
	SourceFile string `json:"sourceFile"`
	GroupTitle string `json:"groupTitle"`
}

// TestError ...
type TestError struct {
	Message string `json:"message"`
	Stack   string `json:"stack"`
}

// TestOutcome ...
type TestOutcome struct {
	Status     Status     `json:"status"`
	DurationMs float64    `json:"durationMs"`
	Error      *TestError `json:"error,omitempty"`
}
