package summary

import (
	"bytes"
	"fmt"

	"github.com/bitrise-steplib/steps-junit-reporter/junit"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// Formatter renders a report as a table for the step log.
type Formatter struct {
	title         string
	showTestcases bool
}

// NewFormatter ...
func NewFormatter(title string, showTestcases bool) *Formatter {
	return &Formatter{
		title:         title,
		showTestcases: showTestcases,
	}
}

// Format ...
func (f *Formatter) Format(report junit.Report) string {
	var buf bytes.Buffer

	t := table.NewWriter()
	t.SetOutputMirror(&buf)
	t.SetTitle(f.title)

	t.AppendHeader(table.Row{
		"Type", "Name", "Duration", "Tests", "Passed", "Failed", "Skipped", "Status",
	})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Type", AutoMerge: true},
		{Name: "Name", WidthMax: 120, WidthMaxEnforcer: text.WrapSoft},
		{Name: "Duration", Align: text.AlignRight},
		{Name: "Tests", Align: text.AlignRight},
		{Name: "Passed", Align: text.AlignRight},
		{Name: "Failed", Align: text.AlignRight},
		{Name: "Skipped", Align: text.AlignRight},
	})

	for _, suite := range report.Testsuites {
		t.AppendRow(table.Row{
			"Suite",
			suite.Name,
			formatSeconds(suite.Time),
			suite.Tests,
			passed(suite.Tests, suite.Failures, suite.Skipped),
			suite.Failures,
			suite.Skipped,
			status(suite.Failures, suite.Skipped),
		})

		if f.showTestcases {
			for _, testcase := range suite.Testcases {
				t.AppendRow(table.Row{
					"Test",
					fmt.Sprintf("├── %s", testcase.Name),
					formatSeconds(testcase.Time),
					"-",
					"-",
					"-",
					"-",
					testcaseStatus(testcase),
				})
			}
			t.AppendSeparator()
		}
	}

	switch {
	case report.Failures > 0:
		t.SetStyle(table.StyleColoredBlackOnRedWhite)
	case report.Skipped > 0:
		t.SetStyle(table.StyleColoredBlackOnYellowWhite)
	default:
		t.SetStyle(table.StyleColoredBlackOnGreenWhite)
	}

	t.AppendFooter(table.Row{
		"TOTAL",
		"",
		formatSeconds(report.Time),
		report.Tests,
		passed(report.Tests, report.Failures, report.Skipped),
		report.Failures,
		report.Skipped,
		status(report.Failures, report.Skipped),
	})

	t.Render()
	return buf.String()
}

func passed(tests, failures, skipped int) int {
	return tests - failures - skipped
}

func status(failures, skipped int) string {
	switch {
	case failures > 0:
		return "FAIL"
	case skipped > 0:
		return "SKIP"
	default:
		return "PASS"
	}
}

func testcaseStatus(testcase junit.Testcase) string {
	switch {
	case testcase.Failure != nil:
		return testcase.Failure.Type
	case testcase.Skipped != nil:
		return "SKIP"
	default:
		return "PASS"
	}
}

func formatSeconds(s junit.Seconds) string {
	return fmt.Sprintf("%.3fs", float64(s))
}
