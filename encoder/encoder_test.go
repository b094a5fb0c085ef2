package encoder

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/BrugadaSyndrome/bslogger"

	"mandelmovie/misc"
)

func writeStub(t *testing.T, dir string, name string, script string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	return path
}

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell stubs need a POSIX shell")
	}
}

func testLogger() bslogger.Logger {
	return misc.NewLogger("EncoderTest", "minimal", nil)
}

func TestEncodeMissingBinary(t *testing.T) {
	e := NewEncoder("clearly-not-present-encoder", 25, nil, testLogger())
	err := e.Encode(context.Background(), "frame%d.bmp", "out.mpg")
	if !errors.Is(err, misc.ErrEncoding) {
		t.Fatalf("expected encoding failure, got %v", err)
	}
}

func TestEncodePassesPatternAndOutput(t *testing.T) {
	skipOnWindows(t)
	dir := t.TempDir()
	argsFile := filepath.Join(dir, "args")
	stub := writeStub(t, dir, "ffmpeg", "#!/bin/sh\necho \"$@\" > "+argsFile+"\nexit 0\n")

	e := NewEncoder(stub, 30, []string{"-pix_fmt", "yuv420p"}, testLogger())
	if err := e.Encode(context.Background(), "frames/frame%d.bmp", "movie.mp4"); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	data, err := os.ReadFile(argsFile)
	if err != nil {
		t.Fatalf("read args: %v", err)
	}
	got := strings.TrimSpace(string(data))
	want := "-y -loglevel error -framerate 30 -i frames/frame%d.bmp -pix_fmt yuv420p movie.mp4"
	if got != want {
		t.Fatalf("unexpected args\n got: %s\nwant: %s", got, want)
	}
}

func TestEncodeFailureCarriesStderr(t *testing.T) {
	skipOnWindows(t)
	dir := t.TempDir()
	stub := writeStub(t, dir, "ffmpeg", "#!/bin/sh\necho 'no frames found' >&2\nexit 1\n")

	e := NewEncoder(stub, 25, nil, testLogger())
	err := e.Encode(context.Background(), "frame%d.bmp", "movie.mpg")
	if !errors.Is(err, misc.ErrEncoding) {
		t.Fatalf("expected encoding failure, got %v", err)
	}
	if !strings.Contains(err.Error(), "no frames found") {
		t.Fatalf("expected stderr in error, got %v", err)
	}
}
