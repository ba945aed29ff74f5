package fileremover

import (
	"fmt"
	"os"

	"github.com/bitrise-io/go-utils/v2/pathutil"
)

// FileRemover ...
type FileRemover interface {
	Remove(name string) error
	RemoveIfExists(name string) (bool, error)
}

type fileRemover struct {
	pathChecker pathutil.PathChecker
}

// NewFileRemover ...
func NewFileRemover(pathChecker pathutil.PathChecker) FileRemover {
	return fileRemover{
		pathChecker: pathChecker,
	}
}

func (r fileRemover) Remove(name string) error {
	return os.Remove(name)
}

// RemoveIfExists removes a report left behind by a previous run.
func (r fileRemover) RemoveIfExists(name string) (bool, error) {
	exists, err := r.pathChecker.IsPathExists(name)
	if err != nil {
		return false, fmt.Errorf("failed to check if (%s) exists: %w", name, err)
	}
	if !exists {
		return false, nil
	}

	if err := r.Remove(name); err != nil {
		return false, fmt.Errorf("failed to remove (%s): %w", name, err)
	}
	return true, nil
}
