// Package fileutil provides the file mutation helpers the pipeline relies on.
package fileutil

import (
	"fmt"
	"os"
)

// DefaultTempSuffix is appended to a file path to form the temporary sibling
// used during an atomic replace.
const DefaultTempSuffix = ".converted.tmp"

// renameFile is swapped in tests to force a failure between the temp write
// and the rename.
var renameFile = os.Rename

// ReplaceAtomic writes data to a temporary sibling of path and renames it over
// the original. The original file is never observable in a half-written state:
// a crash between write and rename leaves the original untouched and the
// sibling behind.
func ReplaceAtomic(path string, data []byte, tempSuffix string) error {
	if tempSuffix == "" {
		tempSuffix = DefaultTempSuffix
	}
	tmp := path + tempSuffix

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat target: %w", err)
	}

	if err := os.WriteFile(tmp, data, info.Mode().Perm()); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := renameFile(tmp, path); err != nil {
		return fmt.Errorf("replace target: %w", err)
	}
	return nil
}
