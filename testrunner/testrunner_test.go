package testrunner

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/bitrise-io/go-utils/v2/command"
	"github.com/bitrise-io/go-utils/v2/env"
	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/bitrise-steplib/steps-junit-reporter/aggregator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const eventScript = `echo 'Running 1 test using 1 worker'
echo '{"type":"begin","rootGroup":{"kind":"root","title":""}}'
echo '{"type":"testBegin","test":{"uniqueId":"a1","title":"works","sourceFile":"e2e/a.test.ts"}}'
echo '{"type":"testEnd","test":{"uniqueId":"a1","title":"works","sourceFile":"e2e/a.test.ts"},"result":{"status":"failed","durationMs":5}}'
echo '{"type":"end","result":{"totalDurationMs":10}}'
`

func Test_GivenRunnerPrintingEvents_WhenRuns_ThenEventsReachTheHandler(t *testing.T) {
	// Given
	runner := createRunner()
	agg := aggregator.New(log.NewLogger())

	// When
	result, err := runner.Run(Opts{
		Command: []string{"sh", "-c", eventScript + "exit 1"},
		Handler: agg,
	})

	// Then
	require.NoError(t, err)
	assert.Equal(t, 1, result.ExitCode)
	assert.Equal(t, 4, result.Stats.Events)
	assert.Equal(t, 1, result.Stats.Skipped)
	assert.True(t, result.Stats.RunEnded)

	assert.Equal(t, 1, agg.Report().Tests)
	assert.True(t, agg.Failed())
	assert.True(t, agg.Sealed())
}

func Test_GivenWorkDir_WhenRuns_ThenRunnerStartsThere(t *testing.T) {
	// Given
	workDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(workDir, "events.jsonl"), []byte(`{"type":"end"}`+"\n"), 0600))

	runner := createRunner()
	agg := aggregator.New(log.NewLogger())

	// When
	result, err := runner.Run(Opts{
		Command: []string{"cat", "events.jsonl"},
		WorkDir: workDir,
		Handler: agg,
	})

	// Then
	require.NoError(t, err)
	assert.Equal(t, 0, result.ExitCode)
	assert.True(t, result.Stats.RunEnded)
}

func Test_GivenSilentRunner_WhenRuns_ThenNoEventsAreDecoded(t *testing.T) {
	// Given
	runner := createRunner()
	agg := aggregator.New(log.NewLogger())

	// When
	result, err := runner.Run(Opts{
		Command: []string{"true"},
		Handler: agg,
	})

	// Then
	require.NoError(t, err)
	assert.Equal(t, 0, result.ExitCode)
	assert.Equal(t, 0, result.Stats.Events)
	assert.False(t, result.Stats.RunEnded)
}

func Test_GivenMissingExecutable_WhenRuns_ThenFails(t *testing.T) {
	// Given
	runner := createRunner()

	// When
	result, err := runner.Run(Opts{
		Command: []string{"this-test-runner-does-not-exist"},
		Handler: aggregator.New(log.NewLogger()),
	})

	// Then
	require.Error(t, err)
	assert.Equal(t, 1, result.ExitCode)
}

func Test_GivenEmptyCommand_WhenRuns_ThenFails(t *testing.T) {
	// Given
	runner := createRunner()

	// When
	_, err := runner.Run(Opts{Handler: aggregator.New(log.NewLogger())})

	// Then
	require.Error(t, err)
}

// Helpers

func createRunner() Runner {
	return NewRunner(log.NewLogger(), command.NewFactory(env.NewRepository()))
}
