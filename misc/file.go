package misc

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/renameio/v2"
)

// WriteFileAtomic streams contents produced by write into a pending file next to
// fileName and renames it into place once everything was written. On failure nothing is
// left at fileName.
func WriteFileAtomic(fileName string, write func(w io.Writer) error) error {
	if fileName == "" {
		return errors.New("no filename supplied")
	}
	pending, err := renameio.NewPendingFile(fileName, renameio.WithStaticPermissions(0o644))
	if err != nil {
		return fmt.Errorf("unable to create file %s - %w", fileName, err)
	}
	defer pending.Cleanup()

	if err := write(pending); err != nil {
		return fmt.Errorf("unable to write file %s - %w", fileName, err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("unable to move file into place %s - %w", fileName, err)
	}
	return nil
}

// FileExists reports whether fileName names an existing regular file.
func FileExists(fileName string) bool {
	info, err := os.Stat(fileName)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular()
}
