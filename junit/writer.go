package junit

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// WriteReport write a report in JUnit format to the output writer
func WriteReport(w io.Writer, report Report) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}

	encoder := xml.NewEncoder(w)
	encoder.Indent("", "\t")
	if err := encoder.Encode(report); err != nil {
		return err
	}
	if err := encoder.Close(); err != nil {
		return err
	}

	_, err := io.WriteString(w, "\n")
	return err
}

// WriteFile writes the report to pth and returns only once the content is on disk.
// The report is written next to its destination and renamed into place, so readers never
// observe a truncated file.
func WriteFile(pth string, report Report) (err error) {
	dir := filepath.Dir(pth)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create report directory (%s): %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(pth)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create report file in (%s): %w", dir, err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if err = WriteReport(tmp, report); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("failed to flush report: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to close report: %w", err)
	}
	if err = os.Chmod(tmp.Name(), 0644); err != nil {
		return fmt.Errorf("failed to set report permissions: %w", err)
	}
	if err = os.Rename(tmp.Name(), pth); err != nil {
		return fmt.Errorf("failed to move report to (%s): %w", pth, err)
	}

	return nil
}
