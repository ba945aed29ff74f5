package aggregator

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/bitrise-steplib/steps-junit-reporter/junit"
	"github.com/bitrise-steplib/steps-junit-reporter/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const h2NotVisible = "locator('h2')\nExpected: visible\nReceived: <element(s) not found>"

var fixedTime = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

func Test_GivenTwoPassedAndOneFailed_WhenRunEnds_ThenCountsAndFlagMatch(t *testing.T) {
	// Given
	a := newAggregator()
	a.OnRunBegin(models.RunConfig{}, models.Group{Kind: models.GroupKindRoot})

	// When
	runTest(a, demoTest("t1", "home page has expected h1"), passed())
	runTest(a, demoTest("t2", "home page has expected p"), passed())
	runTest(a, demoTest("t3", "home page has expected h2"), models.TestOutcome{
		Status:     models.StatusFailed,
		DurationMs: 5000,
		Error:      &models.TestError{Message: h2NotVisible, Stack: "at e2e/demo.test.ts:17:43"},
	})
	a.OnRunEnd(models.RunResult{TotalDurationMs: 6200})

	// Then
	report := a.Report()
	assert.Equal(t, 3, report.Tests)
	assert.Equal(t, 1, report.Failures)
	assert.Equal(t, 0, report.Errors)
	assert.Equal(t, 0, report.Skipped)
	assert.Equal(t, junit.Seconds(6.2), report.Time)
	assert.True(t, a.Failed())
	assert.Equal(t, 0, a.Pending())

	require.Len(t, report.Testsuites, 1)
	suite := report.Testsuites[0]
	assert.Equal(t, "e2e/demo.test.ts", suite.Name)
	assert.Equal(t, "2024-05-01T10:00:00Z", suite.Timestamp)
	require.Len(t, suite.Testcases, 3)

	failing := suite.Testcases[2]
	require.NotNil(t, failing.Failure)
	assert.Equal(t, h2NotVisible, failing.Failure.Message)
	assert.Equal(t, KindFailure, failing.Failure.Type)
	assert.Equal(t, "at e2e/demo.test.ts:17:43", failing.Failure.Stacktrace)
	assert.Equal(t, "Demo test suite", failing.ClassName)
	assert.Equal(t, junit.Seconds(5), failing.Time)
}

func Test_GivenEveryStatus_WhenTestsEnd_ThenFailuresCountFailingStatuses(t *testing.T) {
	// Given
	a := newAggregator()
	statuses := []models.Status{
		models.StatusPassed,
		models.StatusFailed,
		models.StatusSkipped,
		models.StatusTimedOut,
		models.StatusInterrupted,
	}

	// When
	for _, status := range statuses {
		runTest(a, demoTest("test-"+string(status), string(status)), models.TestOutcome{Status: status, DurationMs: 100})
	}

	// Then
	report := a.Report()
	assert.Equal(t, 5, report.Tests)
	assert.Equal(t, 3, report.Failures)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 0, report.Errors)
	assert.True(t, a.Failed())

	cases := report.Testsuites[0].Testcases
	assert.Nil(t, cases[0].Failure)
	assert.Nil(t, cases[0].Skipped)
	assert.Equal(t, KindFailure, cases[1].Failure.Type)
	assert.NotNil(t, cases[2].Skipped)
	assert.Nil(t, cases[2].Failure)
	assert.Equal(t, KindTimeout, cases[3].Failure.Type)
	assert.Equal(t, models.StatusTimedOut, cases[3].Status)
	assert.Equal(t, KindInterrupted, cases[4].Failure.Type)
	assert.Equal(t, models.StatusInterrupted, cases[4].Status)
}

func Test_GivenFailingStatusWithoutError_WhenTestEnds_ThenDefaultMessageIsUsed(t *testing.T) {
	tests := []struct {
		status  models.Status
		message string
	}{
		{status: models.StatusFailed, message: DefaultFailedMessage},
		{status: models.StatusTimedOut, message: DefaultTimedOutMessage},
		{status: models.StatusInterrupted, message: DefaultInterruptedMessage},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			// Given
			a := newAggregator()

			// When
			runTest(a, demoTest("t1", "title"), models.TestOutcome{Status: tt.status, Error: &models.TestError{}})

			// Then
			failure := a.Report().Testsuites[0].Testcases[0].Failure
			require.NotNil(t, failure)
			assert.Equal(t, tt.message, failure.Message)
		})
	}
}

func Test_GivenDuplicateEnd_WhenTestEndsTwice_ThenRecordedOnce(t *testing.T) {
	// Given
	a := newAggregator()
	test := demoTest("duplicate-test", "title")
	a.OnTestBegin(test)
	require.Equal(t, 1, a.Pending())

	// When
	a.OnTestEnd(test, passed())
	a.OnTestEnd(test, models.TestOutcome{Status: models.StatusFailed})

	// Then
	assert.Equal(t, 0, a.Pending())
	assert.Equal(t, 1, a.Report().Tests)
	assert.False(t, a.Failed(), "the ignored second end must not flip the failure flag")
}

func Test_GivenNoBegin_WhenTestEnds_ThenOneCaseIsRecorded(t *testing.T) {
	// Given
	a := newAggregator()

	// When
	assert.NotPanics(t, func() {
		a.OnTestEnd(demoTest("orphan-test", "orphan"), models.TestOutcome{Status: models.StatusSkipped})
	})

	// Then
	report := a.Report()
	assert.Equal(t, 1, report.Tests)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 0, a.Pending())
	assert.False(t, a.Failed())
}

func Test_GivenManyBegunTests_WhenAllEnd_ThenPendingRegistryIsEmpty(t *testing.T) {
	// Given
	a := newAggregator()
	var tests []models.TestIdentity
	for i := 0; i < 100; i++ {
		test := demoTest(fmt.Sprintf("test-%d", i), fmt.Sprintf("test %d", i))
		tests = append(tests, test)
		a.OnTestBegin(test)
	}
	require.Equal(t, 100, a.Pending())

	// When
	for i, test := range tests {
		a.OnTestEnd(test, passed())
		assert.Equal(t, 100-i-1, a.Pending())
	}

	// Then
	assert.Equal(t, 0, a.Pending())
	assert.Equal(t, 100, a.Report().Tests)
}

func Test_GivenMissingFileAndGroup_WhenTestEnds_ThenPlaceholdersAreUsed(t *testing.T) {
	// Given
	a := newAggregator()

	// When
	runTest(a, models.TestIdentity{UniqueID: "t1"}, passed())

	// Then
	report := a.Report()
	require.Len(t, report.Testsuites, 1)
	assert.Equal(t, UnknownFile, report.Testsuites[0].Name)

	testcase := report.Testsuites[0].Testcases[0]
	assert.Equal(t, UnknownFile, testcase.File)
	assert.Equal(t, UnknownSuite, testcase.ClassName)
	assert.Equal(t, UnknownTest, testcase.Name)
}

func Test_GivenMissingGroup_WhenTestEnds_ThenClassnameFallsBackToFileName(t *testing.T) {
	// Given
	a := newAggregator()

	// When
	runTest(a, models.TestIdentity{UniqueID: "t1", Title: "t", SourceFile: "/work/e2e/demo.test.ts"}, passed())

	// Then
	testcase := a.Report().Testsuites[0].Testcases[0]
	assert.Equal(t, "demo.test.ts", testcase.ClassName)
	assert.Equal(t, "/work/e2e/demo.test.ts", testcase.File)
}

func Test_GivenEmptyIdentity_WhenEndedTwice_ThenEachEndIsRecorded(t *testing.T) {
	// Given
	a := newAggregator()

	// When
	a.OnTestBegin(models.TestIdentity{})
	a.OnTestEnd(models.TestIdentity{}, passed())
	a.OnTestEnd(models.TestIdentity{}, passed())

	// Then
	assert.Equal(t, 0, a.Pending())
	assert.Equal(t, 2, a.Report().Tests)
}

func Test_GivenEndWithoutDetails_WhenBeginHadThem_ThenBeginDetailsAreUsed(t *testing.T) {
	// Given
	a := newAggregator()
	a.OnTestBegin(demoTest("t1", "from begin"))

	// When
	a.OnTestEnd(models.TestIdentity{UniqueID: "t1"}, passed())

	// Then
	testcase := a.Report().Testsuites[0].Testcases[0]
	assert.Equal(t, "from begin", testcase.Name)
	assert.Equal(t, "e2e/demo.test.ts", testcase.File)
	assert.Equal(t, "Demo test suite", testcase.ClassName)
}

func Test_GivenTestsFromTwoFiles_WhenGroupingByFile_ThenSuitesAreReusedInFirstSeenOrder(t *testing.T) {
	// Given
	a := newAggregator()

	// When
	runTest(a, models.TestIdentity{UniqueID: "1", SourceFile: "b.test.ts", GroupTitle: "B"}, passed())
	runTest(a, models.TestIdentity{UniqueID: "2", SourceFile: "a.test.ts", GroupTitle: "A"}, passed())
	runTest(a, models.TestIdentity{UniqueID: "3", SourceFile: "b.test.ts", GroupTitle: "B2"}, passed())

	// Then
	report := a.Report()
	require.Len(t, report.Testsuites, 2)
	assert.Equal(t, "b.test.ts", report.Testsuites[0].Name)
	assert.Equal(t, 2, report.Testsuites[0].Tests)
	assert.Equal(t, "a.test.ts", report.Testsuites[1].Name)
	assert.Equal(t, 1, report.Testsuites[1].Tests)
}

func Test_GivenGroupStrategy_WhenTestsEnd_ThenSuitesAreKeyedByGroupTitle(t *testing.T) {
	// Given
	a := newAggregator(WithStrategy(ByGroup))

	// When
	runTest(a, models.TestIdentity{UniqueID: "1", SourceFile: "a.test.ts", GroupTitle: "Login"}, passed())
	runTest(a, models.TestIdentity{UniqueID: "2", SourceFile: "b.test.ts", GroupTitle: "Login"}, passed())
	runTest(a, models.TestIdentity{UniqueID: "3"}, passed())

	// Then
	report := a.Report()
	require.Len(t, report.Testsuites, 2)
	assert.Equal(t, "Login", report.Testsuites[0].Name)
	assert.Equal(t, 2, report.Testsuites[0].Tests)
	assert.Equal(t, UnknownSuite, report.Testsuites[1].Name)
}

func Test_GivenFlatStrategy_WhenRunBegins_ThenRootSuiteIsCreatedUpFront(t *testing.T) {
	tests := []struct {
		name     string
		root     models.Group
		expected string
	}{
		{name: "root group", root: models.Group{Kind: models.GroupKindRoot, Title: ""}, expected: DefaultRootSuiteName},
		{name: "describe group", root: models.Group{Kind: models.GroupKindDescribe, Title: "Checkout"}, expected: "Checkout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Given
			a := newAggregator(WithStrategy(Flat))

			// When
			a.OnRunBegin(models.RunConfig{}, tt.root)
			runTest(a, models.TestIdentity{UniqueID: "1", SourceFile: "a.test.ts"}, passed())
			runTest(a, models.TestIdentity{UniqueID: "2", SourceFile: "b.test.ts"}, passed())

			// Then
			report := a.Report()
			require.Len(t, report.Testsuites, 1)
			assert.Equal(t, tt.expected, report.Testsuites[0].Name)
			assert.Equal(t, "2024-05-01T10:00:00Z", report.Testsuites[0].Timestamp)
			assert.Equal(t, 2, report.Testsuites[0].Tests)
		})
	}
}

func Test_GivenEmptyRootGroup_WhenRunBeginsAndEnds_ThenReportIsEmpty(t *testing.T) {
	// Given
	a := newAggregator()

	// When
	assert.NotPanics(t, func() {
		a.OnRunBegin(models.RunConfig{}, models.Group{})
		a.OnRunEnd(models.RunResult{})
	})

	// Then
	report := a.Report()
	assert.Equal(t, 0, report.Tests)
	assert.Empty(t, report.Testsuites)
	assert.False(t, a.Failed())
}

func Test_GivenReporterOption_WhenRunBegins_ThenOutputFileIsRemembered(t *testing.T) {
	// Given
	a := newAggregator()

	// When
	a.OnRunBegin(models.RunConfig{ReporterOptions: models.ReporterOptions{OutputFile: "out/results.xml"}}, models.Group{})
	a.OnRunBegin(models.RunConfig{ReporterOptions: models.ReporterOptions{OutputFile: "ignored.xml"}}, models.Group{})

	// Then
	assert.Equal(t, "out/results.xml", a.OutputFileOption())
}

func Test_GivenEndedRun_WhenMoreEventsArrive_ThenReportIsUnchanged(t *testing.T) {
	// Given
	a := newAggregator()
	runTest(a, demoTest("t1", "before end"), passed())
	a.OnTestBegin(demoTest("t2", "never ends"))
	a.OnRunEnd(models.RunResult{TotalDurationMs: 10})

	// When
	runTest(a, demoTest("t3", "after end"), models.TestOutcome{Status: models.StatusFailed})
	a.OnRunEnd(models.RunResult{TotalDurationMs: 99999})

	// Then
	report := a.Report()
	assert.True(t, a.Sealed())
	assert.Equal(t, 1, report.Tests)
	assert.Equal(t, junit.Seconds(0.01), report.Time)
	assert.False(t, a.Failed())
	assert.Equal(t, 0, a.Pending())
}

func Test_GivenSanitizer_WhenTestFails_ThenMessageAndStackAreSanitized(t *testing.T) {
	// Given
	a := newAggregator(WithMessageSanitizer(strings.ToUpper))

	// When
	runTest(a, demoTest("t1", "title"), models.TestOutcome{
		Status: models.StatusFailed,
		Error:  &models.TestError{Message: "boom", Stack: "at x"},
	})

	// Then
	failure := a.Report().Testsuites[0].Testcases[0].Failure
	assert.Equal(t, "BOOM", failure.Message)
	assert.Equal(t, "AT X", failure.Stacktrace)
}

func Test_GivenRecorder_WhenTestsEnd_ThenEveryRecordedCaseIsReported(t *testing.T) {
	// Given
	recorder := &recordingRecorder{}
	a := newAggregator(WithRecorder(recorder))
	test := demoTest("t1", "title")

	// When
	runTest(a, test, passed())
	a.OnTestEnd(test, passed())

	// Then
	require.Len(t, recorder.testcases, 1)
	assert.Equal(t, "title", recorder.testcases[0].Name)
}

func Test_GivenOddInput_WhenTestEnds_ThenNothingPanics(t *testing.T) {
	tests := []struct {
		name    string
		test    models.TestIdentity
		outcome models.TestOutcome
	}{
		{name: "very long title", test: demoTest("t1", strings.Repeat("A", 10000)), outcome: passed()},
		{name: "special characters", test: demoTest("t2", "Test with special chars: !@#$%^&*()_+-=[]{}|;:,.<>?"), outcome: passed()},
		{name: "unicode", test: demoTest("t3", "Test with unicode: 🚀🌟🎉中文日本語한국어"), outcome: passed()},
		{name: "zero duration", test: demoTest("t4", "zero"), outcome: models.TestOutcome{Status: models.StatusPassed}},
		{name: "very long duration", test: demoTest("t5", "long"), outcome: models.TestOutcome{Status: models.StatusPassed, DurationMs: 9007199254740991}},
		{name: "negative duration", test: demoTest("t6", "negative"), outcome: models.TestOutcome{Status: models.StatusPassed, DurationMs: -1}},
		{name: "failed without error", test: demoTest("t7", "no error"), outcome: models.TestOutcome{Status: models.StatusFailed}},
		{name: "unknown status", test: demoTest("t8", "unknown"), outcome: models.TestOutcome{Status: "flaky"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newAggregator()
			assert.NotPanics(t, func() {
				a.OnTestBegin(tt.test)
				a.OnTestEnd(tt.test, tt.outcome)
			})
			assert.Equal(t, 1, a.Report().Tests)
			assert.GreaterOrEqual(t, float64(a.Report().Testsuites[0].Testcases[0].Time), 0.0)
		})
	}
}

func Test_GivenConcurrentWorkers_WhenEventsInterleave_ThenEveryTestIsRecordedOnce(t *testing.T) {
	// Given
	a := newAggregator()
	const workers, perWorker = 8, 50

	// When
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				test := demoTest(fmt.Sprintf("w%d-t%d", w, i), "title")
				a.OnTestBegin(test)
				a.OnTestEnd(test, passed())
				a.OnTestEnd(test, passed())
			}
		}(w)
	}
	wg.Wait()

	// Then
	assert.Equal(t, workers*perWorker, a.Report().Tests)
	assert.Equal(t, 0, a.Pending())
}

// Helpers

type recordingRecorder struct {
	testcases []junit.Testcase
}

func (r *recordingRecorder) Record(testcase junit.Testcase) {
	r.testcases = append(r.testcases, testcase)
}

func newAggregator(opts ...Option) *Aggregator {
	opts = append([]Option{WithClock(func() time.Time { return fixedTime })}, opts...)
	return New(log.NewLogger(), opts...)
}

func demoTest(id, title string) models.TestIdentity {
	return models.TestIdentity{
		UniqueID:   id,
		Title:      title,
		SourceFile: "e2e/demo.test.ts",
		GroupTitle: "Demo test suite",
	}
}

func passed() models.TestOutcome {
	return models.TestOutcome{Status: models.StatusPassed, DurationMs: 100}
}

func runTest(a *Aggregator, test models.TestIdentity, outcome models.TestOutcome) {
	a.OnTestBegin(test)
	a.OnTestEnd(test, outcome)
}
