package aggregator

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/bitrise-steplib/steps-junit-reporter/junit"
	"github.com/bitrise-steplib/steps-junit-reporter/models"
)

// Placeholders substituted for missing event data.
const (
	UnknownTest  = "Unknown Test"
	UnknownFile  = "unknown-file"
	UnknownSuite = "Unknown Suite"

	DefaultRootSuiteName = "playwright tests"
)

// Strategy selects the grouping key of report suites.
type Strategy string

// Grouping strategies ...
const (
	ByFile  Strategy = "file"
	ByGroup Strategy = "group"
	Flat    Strategy = "flat"
)

// ParseStrategy ...
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case ByFile, ByGroup, Flat:
		return Strategy(s), nil
	case "":
		return ByFile, nil
	default:
		return "", fmt.Errorf("unknown grouping strategy: %s", s)
	}
}

// Recorder is notified about every testcase appended to the report.
type Recorder interface {
	Record(testcase junit.Testcase)
}

// Option ...
type Option func(*Aggregator)

// WithStrategy ...
func WithStrategy(strategy Strategy) Option {
	return func(a *Aggregator) {
		a.strategy = strategy
	}
}

// WithClock ...
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) {
		a.now = now
	}
}

// WithMessageSanitizer is applied to failure messages and stack traces before they are recorded.
func WithMessageSanitizer(sanitize func(string) string) Option {
	return func(a *Aggregator) {
		a.sanitize = sanitize
	}
}

// WithRecorder ...
func WithRecorder(recorder Recorder) Option {
	return func(a *Aggregator) {
		a.recorder = recorder
	}
}

type pendingTest struct {
	identity models.TestIdentity
}

// Aggregator builds the JUnit report from the runner's lifecycle events.
// It is safe for use from multiple goroutines, events are applied one at a time.
type Aggregator struct {
	logger   log.Logger
	strategy Strategy
	now      func() time.Time
	sanitize func(string) string
	recorder Recorder

	mu           sync.Mutex
	started      bool
	begun        bool
	sealed       bool
	runStartedAt time.Time
	rootName     string
	outputFile   string
	totalTime    junit.Seconds

	suites     []*junit.Testsuite
	suiteIndex map[string]int
	pending    map[string]pendingTest
	recorded   map[string]struct{}
	failed     bool
}

// New ...
func New(logger log.Logger, opts ...Option) *Aggregator {
	a := &Aggregator{
		logger:     logger,
		strategy:   ByFile,
		now:        time.Now,
		sanitize:   func(s string) string { return s },
		rootName:   DefaultRootSuiteName,
		suiteIndex: map[string]int{},
		pending:    map[string]pendingTest{},
		recorded:   map[string]struct{}{},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// OnRunBegin starts the report document.
func (a *Aggregator) OnRunBegin(config models.RunConfig, root models.Group) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.sealed {
		a.logger.Warnf("Run begin received after the run ended, ignoring")
		return
	}
	if a.begun {
		a.logger.Warnf("Run begin received twice, keeping the first one")
		return
	}

	a.started = true
	a.begun = true
	a.runStartedAt = a.now()
	a.outputFile = config.ReporterOptions.OutputFile

	if root.Kind == models.GroupKindDescribe && root.Title != "" {
		a.rootName = root.Title
	}
	if a.strategy == Flat {
		a.suiteFor(models.TestIdentity{}).Name = a.rootName
	}

	a.logger.Debugf("Run started at %s, grouping tests by %s", a.runStartedAt.UTC().Format(junit.TimestampLayout), a.strategy)
}

// OnTestBegin registers the test as pending.
func (a *Aggregator) OnTestBegin(test models.TestIdentity) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.sealed {
		a.logger.Warnf("Test (%s) began after the run ended, ignoring", test.UniqueID)
		return
	}
	a.ensureStarted()

	if test.UniqueID == "" {
		a.logger.Debugf("Test (%s) has no unique id, it will not be tracked", valueOr(test.Title, UnknownTest))
		return
	}
	if _, done := a.recorded[test.UniqueID]; done {
		a.logger.Debugf("Test (%s) already recorded, ignoring begin", test.UniqueID)
		return
	}

	a.pending[test.UniqueID] = pendingTest{identity: test}
}

// OnTestEnd records the outcome of a test. Repeated ends for the same id are ignored.
func (a *Aggregator) OnTestEnd(test models.TestIdentity, outcome models.TestOutcome) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.sealed {
		a.logger.Warnf("Test (%s) ended after the run ended, ignoring", test.UniqueID)
		return
	}
	a.ensureStarted()

	if id := test.UniqueID; id != "" {
		if _, done := a.recorded[id]; done {
			a.logger.Debugf("Test (%s) already recorded, ignoring duplicate end", id)
			return
		}
		if p, ok := a.pending[id]; ok {
			test = mergeIdentity(test, p.identity)
			delete(a.pending, id)
		}
		a.recorded[id] = struct{}{}
	}

	classification := Classify(outcome.Status, outcome.Error)
	if classification.Failure != nil {
		classification.Failure.Message = a.sanitize(classification.Failure.Message)
		classification.Failure.Stacktrace = a.sanitize(classification.Failure.Stacktrace)
	}

	testcase := junit.Testcase{
		Name:      valueOr(test.Title, UnknownTest),
		ClassName: className(test),
		File:      valueOr(test.SourceFile, UnknownFile),
		Time:      junit.MillisecondsToSeconds(outcome.DurationMs),
		Failure:   classification.Failure,
		Skipped:   classification.Skipped,
		Status:    classification.Status,
	}

	a.suiteFor(test).AddTestcase(testcase)

	if classification.Failing() {
		a.failed = true
	}
	if a.recorder != nil {
		a.recorder.Record(testcase)
	}
}

// OnRunEnd finalizes the document. Later events are ignored.
func (a *Aggregator) OnRunEnd(result models.RunResult) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.sealed {
		a.logger.Debugf("Run end received twice, ignoring")
		return
	}
	a.ensureStarted()

	a.totalTime = junit.MillisecondsToSeconds(result.TotalDurationMs)
	a.sealed = true

	if len(a.pending) > 0 {
		a.logger.Warnf("%d test(s) began but never ended, they are not part of the report", len(a.pending))
		a.pending = map[string]pendingTest{}
	}
}

// Report returns a snapshot of the report document.
func (a *Aggregator) Report() junit.Report {
	a.mu.Lock()
	defer a.mu.Unlock()

	report := junit.Report{Time: a.totalTime}
	for _, suite := range a.suites {
		report.AddTestsuite(*suite)
	}
	return report
}

// Failed reports whether any failing outcome was recorded.
func (a *Aggregator) Failed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.failed
}

// Pending returns the number of tests that began but did not end yet.
func (a *Aggregator) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	return len(a.pending)
}

// Sealed reports whether the run end was received.
func (a *Aggregator) Sealed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.sealed
}

// OutputFileOption returns the output path requested through the run configuration, if any.
func (a *Aggregator) OutputFileOption() string {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.outputFile
}

// ensureStarted opens the document for test events that arrive without a run begin.
func (a *Aggregator) ensureStarted() {
	if a.started {
		return
	}
	a.logger.Debugf("Test event received before run begin")
	a.started = true
}

func (a *Aggregator) suiteFor(test models.TestIdentity) *junit.Testsuite {
	key := a.groupingKey(test)
	if idx, ok := a.suiteIndex[key]; ok {
		return a.suites[idx]
	}

	name := key
	if a.strategy == Flat {
		name = a.rootName
	}

	suite := junit.NewTestsuite(name, a.now())
	a.suites = append(a.suites, suite)
	a.suiteIndex[key] = len(a.suites) - 1
	return suite
}

func (a *Aggregator) groupingKey(test models.TestIdentity) string {
	switch a.strategy {
	case Flat:
		return ""
	case ByGroup:
		return firstNonEmpty(test.GroupTitle, test.SourceFile, UnknownSuite)
	default:
		return firstNonEmpty(test.SourceFile, test.GroupTitle, UnknownFile)
	}
}

func className(test models.TestIdentity) string {
	if test.GroupTitle != "" {
		return test.GroupTitle
	}
	if test.SourceFile != "" {
		return filepath.Base(test.SourceFile)
	}
	return UnknownSuite
}

// mergeIdentity fills the fields missing from the end event with the ones seen at begin.
func mergeIdentity(end, begin models.TestIdentity) models.TestIdentity {
	end.Title = firstNonEmpty(end.Title, begin.Title)
	end.SourceFile = firstNonEmpty(end.SourceFile, begin.SourceFile)
	end.GroupTitle = firstNonEmpty(end.GroupTitle, begin.GroupTitle)
	return end
}

func valueOr(value, placeholder string) string {
	return firstNonEmpty(value, placeholder)
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}
