package testrunner

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/bitrise-io/go-utils/v2/command"
	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/bitrise-steplib/steps-junit-reporter/events"
)

// Opts ...
type Opts struct {
	Command []string
	WorkDir string
	Env     []string
	Handler events.Handler
}

// Result ...
type Result struct {
	ExitCode int
	Stats    events.Stats
}

// Runner runs the host test runner and feeds its standard output to the event decoder.
type Runner interface {
	Run(opts Opts) (Result, error)
}

type runner struct {
	logger         log.Logger
	commandFactory command.Factory
}

// NewRunner ...
func NewRunner(logger log.Logger, commandFactory command.Factory) Runner {
	return &runner{
		logger:         logger,
		commandFactory: commandFactory,
	}
}

// Run returns once the runner exited and every event it printed was dispatched.
// A non-zero exit of the runner is not an error, it is reported through Result.ExitCode.
func (r *runner) Run(opts Opts) (Result, error) {
	if len(opts.Command) == 0 {
		return Result{ExitCode: 1}, errors.New("no test runner command provided")
	}

	pipeReader, pipeWriter := io.Pipe()

	cmd := r.commandFactory.Create(opts.Command[0], opts.Command[1:], &command.Opts{
		Stdout: pipeWriter,
		Stderr: os.Stderr,
		Env:    opts.Env,
		Dir:    opts.WorkDir,
	})

	r.logger.Println()
	r.logger.Infof("Running tests")
	r.logger.Donef("$ %s", cmd.PrintableCommandArgs())

	type decodeResult struct {
		stats events.Stats
		err   error
	}
	decoded := make(chan decodeResult, 1)

	go func() {
		stats, err := events.NewDecoder(r.logger, opts.Handler).Decode(pipeReader)
		if err != nil {
			// keep the runner from blocking on a full pipe
			_, _ = io.Copy(io.Discard, pipeReader)
		}
		decoded <- decodeResult{stats: stats, err: err}
	}()

	exitCode, runErr := cmd.RunAndReturnExitCode()
	if err := pipeWriter.Close(); err != nil {
		r.logger.Warnf("Failed to close test runner output pipe: %s", err)
	}

	result := <-decoded
	if exitCode < 0 {
		if runErr == nil {
			runErr = errors.New("unknown error")
		}
		return Result{ExitCode: 1, Stats: result.stats}, fmt.Errorf("test runner did not exit normally: %w", runErr)
	}
	if result.err != nil {
		return Result{ExitCode: exitCode, Stats: result.stats}, result.err
	}
	if exitCode != 0 {
		r.logger.Warnf("Test runner exited with status %d", exitCode)
	}

	return Result{ExitCode: exitCode, Stats: result.stats}, nil
}
