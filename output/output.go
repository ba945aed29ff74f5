package output

import (
	"fmt"
	"path/filepath"

	"github.com/bitrise-io/bitrise/configs"
	"github.com/bitrise-io/go-utils/v2/env"
	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/bitrise-steplib/steps-junit-reporter/junit"
	"github.com/bitrise-steplib/steps-junit-reporter/testaddon"
)

// Exported step outputs.
const (
	TestResultEnvKey      = "BITRISE_JUNIT_TEST_RESULT"
	ReportPathEnvKey      = "BITRISE_JUNIT_REPORT_PATH"
	FailedTestCasesEnvKey = "BITRISE_FAILED_TEST_CASES"

	failedTestCasesEnvVarSizeLimitInBytes = 1024
)

// OutputExporter is implemented by *export.Exporter of go-steputils.
type OutputExporter interface {
	ExportOutputFile(key, sourcePath, destinationPath string) error
}

// Exporter ...
type Exporter interface {
	ExportTestRunResult(failed bool)
	ExportReport(deployDir, reportPath string) error
	ExportTestAddonResult(reportPath, bundleName string)
	ExportFailedTestCases(report junit.Report) error
}

type exporter struct {
	envRepository     env.Repository
	logger            log.Logger
	outputExporter    OutputExporter
	testAddonExporter testaddon.Exporter
}

// NewExporter ...
func NewExporter(envRepository env.Repository, logger log.Logger, outputExporter OutputExporter, testAddonExporter testaddon.Exporter) Exporter {
	return &exporter{
		envRepository:     envRepository,
		logger:            logger,
		outputExporter:    outputExporter,
		testAddonExporter: testAddonExporter,
	}
}

func (e exporter) ExportTestRunResult(failed bool) {
	status := "succeeded"
	if failed {
		status = "failed"
	}
	if err := e.envRepository.Set(TestResultEnvKey, status); err != nil {
		e.logger.Warnf("Failed to export: %s: %s", TestResultEnvKey, err)
	}
}

func (e exporter) ExportReport(deployDir, reportPath string) error {
	deployPth := filepath.Join(deployDir, filepath.Base(reportPath))
	if err := e.outputExporter.ExportOutputFile(ReportPathEnvKey, reportPath, deployPth); err != nil {
		return fmt.Errorf("failed to export report from (%s) to (%s): %w", reportPath, deployPth, err)
	}

	return nil
}

func (e exporter) ExportTestAddonResult(reportPath, bundleName string) {
	addonResultPath := e.envRepository.Get(configs.BitrisePerStepTestResultDirEnvKey)
	if len(addonResultPath) == 0 {
		e.logger.Debugf("%s is not set, skipping test add-on export", configs.BitrisePerStepTestResultDirEnvKey)
		return
	}

	e.logger.Println()
	e.logger.Infof("Exporting test results")

	if err := e.testAddonExporter.CopyAndSaveMetadata(testaddon.AddonCopy{
		SourceTestResultPath:  reportPath,
		TargetAddonPath:       addonResultPath,
		TargetAddonBundleName: bundleName,
	}); err != nil {
		e.logger.Warnf("Failed to export test results: %s", err)
	}
}

// ExportFailedTestCases lists the failing testcases as "- <suite>.<classname>.<name>" lines.
func (e exporter) ExportFailedTestCases(report junit.Report) error {
	var failedTestCases []string
	stored := map[string]bool{}

	for _, suite := range report.Testsuites {
		for _, testCase := range suite.Testcases {
			if testCase.Failure == nil {
				continue
			}

			testCaseName := testCase.Name
			if len(testCase.ClassName) > 0 {
				testCaseName = fmt.Sprintf("%s.%s", testCase.ClassName, testCase.Name)
			}
			testCaseName = suite.Name + "." + testCaseName

			if !stored[testCaseName] {
				stored[testCaseName] = true
				failedTestCases = append(failedTestCases, testCaseName)
			}
		}
	}

	if len(failedTestCases) == 0 {
		return nil
	}

	var message string
	for i, testCase := range failedTestCases {
		line := fmt.Sprintf("- %s\n", testCase)

		if len(message)+len(line) > failedTestCasesEnvVarSizeLimitInBytes {
			e.logger.Warnf("%s env var size limit (%d characters) exceeded. Skipping %d test cases.", FailedTestCasesEnvKey, failedTestCasesEnvVarSizeLimitInBytes, len(failedTestCases)-i)
			break
		}

		message += line
	}

	if message == "" {
		return nil
	}

	if err := e.envRepository.Set(FailedTestCasesEnvKey, message); err != nil {
		return fmt.Errorf("failed to export %s: %w", FailedTestCasesEnvKey, err)
	}

	return nil
}
