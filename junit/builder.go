package junit

import (
	"math"
	"time"
)

// TimestampLayout is the ISO-8601 layout used for testsuite timestamps.
const TimestampLayout = time.RFC3339

// NewTestsuite instantiate a Testsuite
func NewTestsuite(name string, createdAt time.Time) *Testsuite {
	return &Testsuite{
		Name:      name,
		Timestamp: createdAt.UTC().Format(TimestampLayout),
	}
}

// NewFailure instantiate a Failure
func NewFailure(message, kind, stacktrace string) *Failure {
	return &Failure{
		Message:    message,
		Type:       kind,
		Stacktrace: stacktrace,
	}
}

// MillisecondsToSeconds converts a runner duration to the report unit.
// Negative and non-finite values clamp to zero.
func MillisecondsToSeconds(ms float64) Seconds {
	if math.IsNaN(ms) || math.IsInf(ms, 0) || ms <= 0 {
		return 0
	}
	return Seconds(ms / 1000)
}

// AddTestcase appends the testcase and updates the suite counters.
func (s *Testsuite) AddTestcase(testcase Testcase) {
	s.Testcases = append(s.Testcases, testcase)
	s.Tests++
	s.Time += testcase.Time

	switch {
	case testcase.Failure != nil:
		s.Failures++
	case testcase.Skipped != nil:
		s.Skipped++
	}
}

// AddTestsuite appends a copy of the suite and rolls its counters up into the report.
func (r *Report) AddTestsuite(suite Testsuite) {
	suite.Testcases = append([]Testcase(nil), suite.Testcases...)
	r.Testsuites = append(r.Testsuites, suite)
	r.Tests += suite.Tests
	r.Failures += suite.Failures
	r.Errors += suite.Errors
	r.Skipped += suite.Skipped
}
