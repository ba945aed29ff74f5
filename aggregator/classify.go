package aggregator

import (
	"github.com/bitrise-steplib/steps-junit-reporter/junit"
	"github.com/bitrise-steplib/steps-junit-reporter/models"
)

// Failure kind tags written to the failure type attribute.
const (
	KindFailure     = "FAILURE"
	KindTimeout     = "TIMEOUT"
	KindInterrupted = "INTERRUPTED"
)

// Default failure messages used when the runner did not report one.
const (
	DefaultFailedMessage      = "Test failed due to unknown error"
	DefaultTimedOutMessage    = "Test timed out"
	DefaultInterruptedMessage = "Test interrupted"
)

// Classification is the report side of a runner outcome.
type Classification struct {
	Status  models.Status
	Failure *junit.Failure
	Skipped *junit.Skipped
}

// Failing ...
func (c Classification) Failing() bool {
	return c.Status.IsFailing()
}

// Classify maps a runner status and its optional error to the report outcome.
// Unknown statuses are reported as failures.
func Classify(status models.Status, testErr *models.TestError) Classification {
	switch status {
	case models.StatusPassed:
		return Classification{Status: status}
	case models.StatusSkipped:
		return Classification{Status: status, Skipped: &junit.Skipped{}}
	case models.StatusTimedOut:
		return failed(status, KindTimeout, DefaultTimedOutMessage, testErr)
	case models.StatusInterrupted:
		return failed(status, KindInterrupted, DefaultInterruptedMessage, testErr)
	default:
		return failed(models.StatusFailed, KindFailure, DefaultFailedMessage, testErr)
	}
}

func failed(status models.Status, kind, defaultMessage string, testErr *models.TestError) Classification {
	message := defaultMessage
	var stack string
	if testErr != nil {
		if testErr.Message != "" {
			message = testErr.Message
		}
		stack = testErr.Stack
	}

	return Classification{
		Status:  status,
		Failure: junit.NewFailure(message, kind, stack),
	}
}
