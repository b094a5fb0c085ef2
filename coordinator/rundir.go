package coordinator

import (
	_ "embed"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/pelletier/go-toml/v2"
	"golang.org/x/sys/unix"

	"mandelmovie/misc"
)

//go:embed sample_settings.toml
var sampleSettings string

// RunDirectory is the folder holding the frames, settings copy, log and ledger of one
// run. Only one process may render into it at a time.
type RunDirectory struct {
	LogFile *os.File
	Path    string
	RunID   string

	extension string
	lock      *flock.Flock
}

// OpenRunDirectory creates <SavePath>/<RunName>, takes its lock, stores a copy of the
// settings so the run can be repeated and opens coordinator.log for appending.
func OpenRunDirectory(s Settings) (*RunDirectory, error) {
	if err := checkSavePath(s.SavePath); err != nil {
		return nil, err
	}
	path := filepath.Join(s.SavePath, s.RunName)
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("unable to create folder %s: %w", path, err)
	}

	lock := flock.New(filepath.Join(path, ".lock"))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("another mandelmovie run is already rendering into %s", path)
	}

	rd := &RunDirectory{
		Path:      path,
		RunID:     uuid.NewString(),
		extension: s.Farm.FrameExtension,
		lock:      lock,
	}

	err = misc.WriteFileAtomic(filepath.Join(path, "settings.toml"), func(w io.Writer) error {
		return toml.NewEncoder(w).Encode(s)
	})
	if err != nil {
		_ = rd.Close()
		return nil, fmt.Errorf("unable to make a backup copy of the settings: %w", err)
	}

	rd.LogFile, err = os.OpenFile(filepath.Join(path, "coordinator.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		_ = rd.Close()
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return rd, nil
}

// checkSavePath fails early when an existing save path cannot hold run directories.
func checkSavePath(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("%w: stat save path %s: %v", misc.ErrConfiguration, path, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: save path %s is not a directory", misc.ErrConfiguration, path)
	}
	if err := unix.Access(path, unix.W_OK|unix.X_OK); err != nil {
		return fmt.Errorf("%w: save path %s: insufficient permissions: %v", misc.ErrConfiguration, path, err)
	}
	return nil
}

// FramePath is frame<index>.<ext> inside the run directory.
func (rd *RunDirectory) FramePath(index int) string {
	return filepath.Join(rd.Path, fmt.Sprintf("frame%d.%s", index, rd.extension))
}

// FramePattern is the printf style name of every frame, as understood by ffmpeg.
func (rd *RunDirectory) FramePattern() string {
	return filepath.Join(rd.Path, "frame%d."+rd.extension)
}

// Release gives up the directory lock. The log file stays open so the outcome can
// still be logged.
func (rd *RunDirectory) Release() error {
	if rd.lock == nil {
		return nil
	}
	err := rd.lock.Unlock()
	rd.lock = nil
	return err
}

// Close releases the lock and then closes the log file.
func (rd *RunDirectory) Close() error {
	firstErr := rd.Release()
	if rd.LogFile != nil {
		if err := rd.LogFile.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		rd.LogFile = nil
	}
	return firstErr
}

// CreateSample writes the commented sample settings file to path.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create settings directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleSettings), 0o644); err != nil {
		return fmt.Errorf("write sample settings: %w", err)
	}
	return nil
}
