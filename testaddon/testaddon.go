package testaddon

import (
	"fmt"
	"path/filepath"
)

// Exporter ...
type Exporter interface {
	CopyAndSaveMetadata(info AddonCopy) error
}

type exporter struct {
	testAddon TestAddon
}

// NewExporter ...
func NewExporter(testAddon TestAddon) Exporter {
	return &exporter{
		testAddon: testAddon,
	}
}

// AddonCopy ...
type AddonCopy struct {
	SourceTestResultPath  string
	TargetAddonPath       string
	TargetAddonBundleName string
}

// CopyAndSaveMetadata copies the test result into the per-step directory of the test add-on,
// next to a test-info.json naming the bundle.
func (e exporter) CopyAndSaveMetadata(info AddonCopy) error {
	if info.SourceTestResultPath == "" {
		return fmt.Errorf("no test result to export")
	}

	info.TargetAddonBundleName = e.testAddon.ReplaceUnsupportedFilenameCharacters(info.TargetAddonBundleName)
	addonPerStepOutputDir := filepath.Join(info.TargetAddonPath, info.TargetAddonBundleName)

	if err := e.testAddon.CopyTestResult(info.SourceTestResultPath, addonPerStepOutputDir); err != nil {
		return err
	}
	if err := e.testAddon.SaveBundleMetadata(addonPerStepOutputDir, info.TargetAddonBundleName); err != nil {
		return err
	}
	return nil
}
