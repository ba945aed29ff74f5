package step

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/acarl005/stripansi"
	"github.com/bitrise-io/go-steputils/v2/stepconf"
	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/bitrise-steplib/steps-junit-reporter/aggregator"
	"github.com/bitrise-steplib/steps-junit-reporter/events"
	"github.com/bitrise-steplib/steps-junit-reporter/fileremover"
	"github.com/bitrise-steplib/steps-junit-reporter/junit"
	"github.com/bitrise-steplib/steps-junit-reporter/metrics"
	"github.com/bitrise-steplib/steps-junit-reporter/models"
	"github.com/bitrise-steplib/steps-junit-reporter/output"
	"github.com/bitrise-steplib/steps-junit-reporter/summary"
	"github.com/bitrise-steplib/steps-junit-reporter/testrunner"
	"github.com/kballard/go-shellquote"
)

// DefaultOutputPath is used when neither the run configuration nor the step input names a report path.
const DefaultOutputPath = "junit.xml"

// Input ...
type Input struct {
	// Event source
	RunnerCommand string `env:"runner_command"`
	EventsPath    string `env:"events_path"`
	WorkDir       string `env:"working_dir"`

	// Report
	OutputPath        string `env:"output_path"`
	Grouping          string `env:"grouping,opt[file,group,flat]"`
	StripANSI         bool   `env:"strip_ansi,opt[yes,no]"`
	FailOnTestFailure bool   `env:"fail_on_test_failure,opt[yes,no]"`
	TestName          string `env:"test_name"`
	MetricsPath       string `env:"metrics_path"`

	// Debug
	ShowTestcases bool `env:"show_testcases,opt[yes,no]"`
	Verbose       bool `env:"verbose,opt[yes,no]"`

	// Output export
	DeployDir string `env:"BITRISE_DEPLOY_DIR"`
}

// Config ...
type Config struct {
	RunnerCommand []string
	EventsPath    string
	WorkDir       string

	OutputPath        string
	Strategy          aggregator.Strategy
	StripANSI         bool
	FailOnTestFailure bool
	TestName          string
	MetricsPath       string

	ShowTestcases bool

	DeployDir string
}

// PathModifier ...
type PathModifier interface {
	AbsPath(pth string) (string, error)
}

// ReportRunner ...
type ReportRunner struct {
	inputParser    stepconf.InputParser
	logger         log.Logger
	testRunner     testrunner.Runner
	fileRemover    fileremover.FileRemover
	pathModifier   PathModifier
	outputExporter output.Exporter
	runID          string
}

// NewReportRunner ...
func NewReportRunner(inputParser stepconf.InputParser, logger log.Logger, testRunner testrunner.Runner, fileRemover fileremover.FileRemover, pathModifier PathModifier, outputExporter output.Exporter, runID string) ReportRunner {
	return ReportRunner{
		inputParser:    inputParser,
		logger:         logger,
		testRunner:     testRunner,
		fileRemover:    fileRemover,
		pathModifier:   pathModifier,
		outputExporter: outputExporter,
		runID:          runID,
	}
}

// ProcessConfig ...
func (s ReportRunner) ProcessConfig() (Config, error) {
	var input Input
	if err := s.inputParser.Parse(&input); err != nil {
		return Config{}, err
	}

	stepconf.Print(input)
	s.logger.Println()

	s.logger.EnableDebugLog(input.Verbose)

	hasCommand := strings.TrimSpace(input.RunnerCommand) != ""
	hasEvents := input.EventsPath != ""
	if hasCommand == hasEvents {
		return Config{}, errors.New("exactly one of the inputs runner_command and events_path has to be provided")
	}

	var runnerCommand []string
	if hasCommand {
		args, err := shellquote.Split(input.RunnerCommand)
		if err != nil {
			return Config{}, fmt.Errorf("provided runner_command (%s) is not a valid CLI command: %w", input.RunnerCommand, err)
		}
		runnerCommand = args
	}

	var eventsPath string
	if hasEvents {
		pth, err := s.pathModifier.AbsPath(input.EventsPath)
		if err != nil {
			return Config{}, fmt.Errorf("failed to expand events path (%s): %w", input.EventsPath, err)
		}
		eventsPath = pth
	}

	strategy, err := aggregator.ParseStrategy(input.Grouping)
	if err != nil {
		return Config{}, err
	}

	return Config{
		RunnerCommand: runnerCommand,
		EventsPath:    eventsPath,
		WorkDir:       input.WorkDir,

		OutputPath:        input.OutputPath,
		Strategy:          strategy,
		StripANSI:         input.StripANSI,
		FailOnTestFailure: input.FailOnTestFailure,
		TestName:          input.TestName,
		MetricsPath:       input.MetricsPath,

		ShowTestcases: input.ShowTestcases,

		DeployDir: input.DeployDir,
	}, nil
}

// Result ...
type Result struct {
	ReportPath     string
	Report         junit.Report
	TestFailed     bool
	RunnerExitCode int
}

// Run consumes the event stream, writes the report and returns once it is on disk.
func (s ReportRunner) Run(cfg Config) (Result, error) {
	s.logger.Debugf("Run id: %s", s.runID)

	recorder := metrics.NewRecorder(s.runID)
	opts := []aggregator.Option{
		aggregator.WithStrategy(cfg.Strategy),
		aggregator.WithRecorder(recorder),
	}
	if cfg.StripANSI {
		opts = append(opts, aggregator.WithMessageSanitizer(stripansi.Strip))
	}
	agg := aggregator.New(s.logger, opts...)

	runnerExitCode, stats, err := s.consumeEvents(cfg, agg)

	// The report path is only known once the run configuration arrived.
	reportPath, pathErr := s.resolveOutputPath(agg.OutputFileOption(), cfg)
	if pathErr == nil {
		s.removePreviousReport(reportPath)
	}

	if err != nil {
		return Result{RunnerExitCode: runnerExitCode}, err
	}
	s.logger.Debugf("Decoded %d event(s), repaired %d, skipped %d line(s)", stats.Events, stats.Repaired, stats.Skipped)

	if !stats.RunEnded {
		if runnerExitCode != 0 {
			return Result{RunnerExitCode: runnerExitCode}, fmt.Errorf("test runner exited with status %d before the run ended", runnerExitCode)
		}
		s.logger.Warnf("The event stream ended without a run end event, finalizing the report")
		agg.OnRunEnd(models.RunResult{})
	}

	if pathErr != nil {
		return Result{RunnerExitCode: runnerExitCode}, pathErr
	}

	report := agg.Report()
	if err := junit.WriteFile(reportPath, report); err != nil {
		return Result{RunnerExitCode: runnerExitCode}, fmt.Errorf("failed to write report: %w", err)
	}
	s.logger.Donef("Report written to %s", reportPath)

	failed := agg.Failed()
	recorder.RecordRun(report, failed)
	if cfg.MetricsPath != "" {
		if err := s.writeMetrics(recorder, cfg.MetricsPath); err != nil {
			s.logger.Warnf("%s", err)
		}
	}

	s.logger.Println()
	s.logger.Printf("%s", summary.NewFormatter("Test results", cfg.ShowTestcases).Format(report))

	return Result{
		ReportPath:     reportPath,
		Report:         report,
		TestFailed:     failed,
		RunnerExitCode: runnerExitCode,
	}, nil
}

func (s ReportRunner) consumeEvents(cfg Config, handler events.Handler) (int, events.Stats, error) {
	if cfg.EventsPath != "" {
		s.logger.Println()
		s.logger.Infof("Reading events from %s", cfg.EventsPath)

		f, err := os.Open(cfg.EventsPath)
		if err != nil {
			return 1, events.Stats{}, fmt.Errorf("failed to open events file: %w", err)
		}
		defer func() {
			if err := f.Close(); err != nil {
				s.logger.Warnf("Failed to close events file: %s", err)
			}
		}()

		stats, err := events.NewDecoder(s.logger, handler).Decode(f)
		if err != nil {
			return 1, stats, err
		}
		return 0, stats, nil
	}

	result, err := s.testRunner.Run(testrunner.Opts{
		Command: cfg.RunnerCommand,
		WorkDir: cfg.WorkDir,
		Handler: handler,
	})
	if err != nil {
		return result.ExitCode, result.Stats, fmt.Errorf("failed to run tests: %w", err)
	}
	return result.ExitCode, result.Stats, nil
}

// resolveOutputPath picks the report path: the run configuration option, then the input, then the default.
// Relative paths are resolved against the working directory of the runner.
func (s ReportRunner) resolveOutputPath(optionPath string, cfg Config) (string, error) {
	pth := optionPath
	if pth == "" {
		pth = cfg.OutputPath
	}
	if pth == "" {
		pth = DefaultOutputPath
	}

	if !filepath.IsAbs(pth) && cfg.WorkDir != "" {
		pth = filepath.Join(cfg.WorkDir, pth)
	}

	absPth, err := s.pathModifier.AbsPath(pth)
	if err != nil {
		return "", fmt.Errorf("failed to expand report path (%s): %w", pth, err)
	}
	return absPth, nil
}

// removePreviousReport deletes a report left at reportPath by an earlier run.
func (s ReportRunner) removePreviousReport(reportPath string) {
	removed, err := s.fileRemover.RemoveIfExists(reportPath)
	if err != nil {
		s.logger.Warnf("Failed to remove previous report: %s", err)
		return
	}
	if removed {
		s.logger.Warnf("Removed previous report: %s", reportPath)
	}
}

func (s ReportRunner) writeMetrics(recorder *metrics.Recorder, pth string) error {
	if err := os.MkdirAll(filepath.Dir(pth), 0755); err != nil {
		return fmt.Errorf("failed to create metrics directory: %w", err)
	}
	if err := recorder.WriteToTextfile(pth); err != nil {
		return err
	}
	s.logger.Debugf("Metrics written to %s", pth)
	return nil
}

// ExportOpts ...
type ExportOpts struct {
	TestFailed bool

	DeployDir  string
	ReportPath string
	TestName   string
	Report     junit.Report
}

// Export ...
func (s ReportRunner) Export(opts ExportOpts) {
	// export test run status
	s.outputExporter.ExportTestRunResult(opts.TestFailed)

	if opts.ReportPath == "" {
		return
	}

	if opts.DeployDir != "" {
		if err := s.outputExporter.ExportReport(opts.DeployDir, opts.ReportPath); err != nil {
			s.logger.Warnf("%s", err)
		}
	}

	if err := s.outputExporter.ExportFailedTestCases(opts.Report); err != nil {
		s.logger.Warnf("Failed to export failed test cases: %s", err)
	}

	testName := opts.TestName
	if testName == "" {
		testName = strings.TrimSuffix(filepath.Base(opts.ReportPath), filepath.Ext(opts.ReportPath))
	}
	s.outputExporter.ExportTestAddonResult(opts.ReportPath, testName)
}

// ExitCode is 1 if a test failed and failing the step was asked for, 0 otherwise.
func ExitCode(testFailed, failOnTestFailure bool) int {
	if testFailed && failOnTestFailure {
		return 1
	}
	return 0
}
