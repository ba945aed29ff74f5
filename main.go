package main

import (
	"os"

	"github.com/bitrise-io/go-steputils/v2/export"
	"github.com/bitrise-io/go-steputils/v2/stepconf"
	"github.com/bitrise-io/go-steputils/v2/stepenv"
	"github.com/bitrise-io/go-utils/v2/command"
	"github.com/bitrise-io/go-utils/v2/env"
	"github.com/bitrise-io/go-utils/v2/fileutil"
	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/bitrise-io/go-utils/v2/pathutil"
	"github.com/bitrise-steplib/steps-junit-reporter/fileremover"
	"github.com/bitrise-steplib/steps-junit-reporter/output"
	"github.com/bitrise-steplib/steps-junit-reporter/step"
	"github.com/bitrise-steplib/steps-junit-reporter/testaddon"
	"github.com/bitrise-steplib/steps-junit-reporter/testrunner"
	"github.com/google/uuid"
)

func main() {
	os.Exit(run())
}

func run() int {
	logger := log.NewLogger()
	reportRunner := createStep(logger, uuid.NewString())

	config, err := reportRunner.ProcessConfig()
	if err != nil {
		logger.Errorf("Process config: %s", err)
		return 1
	}

	result, runErr := reportRunner.Run(config)

	exportOpts := step.ExportOpts{
		TestFailed: result.TestFailed || runErr != nil,
		DeployDir:  config.DeployDir,
		ReportPath: result.ReportPath,
		TestName:   config.TestName,
		Report:     result.Report,
	}
	reportRunner.Export(exportOpts)

	if runErr != nil {
		logger.Errorf("Run: %s", runErr)
		return 1
	}

	if result.TestFailed {
		if config.FailOnTestFailure {
			logger.Errorf("Some tests failed")
		} else {
			logger.Warnf("Some tests failed, the step does not fail as fail_on_test_failure is disabled")
		}
	} else {
		logger.Println()
		logger.Donef("All tests passed")
	}

	return step.ExitCode(result.TestFailed, config.FailOnTestFailure)
}

func createStep(logger log.Logger, runID string) step.ReportRunner {
	osEnvs := env.NewRepository()
	envRepository := stepenv.NewRepository(osEnvs)
	inputParser := stepconf.NewInputParser(osEnvs)
	commandFactory := command.NewFactory(osEnvs)

	testRunner := testrunner.NewRunner(logger, commandFactory)
	fileRemover := fileremover.NewFileRemover(pathutil.NewPathChecker())
	pathModifier := pathutil.NewPathModifier()

	outputExporter := export.NewExporter(commandFactory, fileutil.NewFileManager())
	testAddonExporter := testaddon.NewExporter(testaddon.NewTestAddon(logger, commandFactory, fileutil.NewFileManager()))
	exporter := output.NewExporter(envRepository, logger, &outputExporter, testAddonExporter)

	return step.NewReportRunner(inputParser, logger, testRunner, fileRemover, pathModifier, exporter, runID)
}
