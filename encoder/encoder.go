// Package encoder hands a numbered frame sequence to an external video encoder (ffmpeg
// by default). The encoder is a black box: it either produces the output file or its
// failure is reported back as misc.ErrEncoding.
package encoder

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/BrugadaSyndrome/bslogger"

	"mandelmovie/misc"
)

const stderrTail = 2048

type Encoder struct {
	Binary    string
	ExtraArgs []string
	FrameRate int

	logger bslogger.Logger
}

func NewEncoder(binary string, frameRate int, extraArgs []string, logger bslogger.Logger) *Encoder {
	if strings.TrimSpace(binary) == "" {
		binary = "ffmpeg"
	}
	if frameRate < 1 {
		frameRate = 25
	}
	return &Encoder{
		Binary:    binary,
		ExtraArgs: extraArgs,
		FrameRate: frameRate,
		logger:    logger,
	}
}

// Check resolves the encoder binary without running it.
func (e *Encoder) Check() (string, error) {
	path, err := exec.LookPath(e.Binary)
	if err != nil {
		return "", fmt.Errorf("%w: binary %q not found", misc.ErrEncoding, e.Binary)
	}
	return path, nil
}

// Args returns the command line used to turn inputPattern (a printf style pattern such
// as frame%d.bmp) into output.
func (e *Encoder) Args(inputPattern string, output string) []string {
	args := []string{"-y", "-loglevel", "error", "-framerate", strconv.Itoa(e.FrameRate), "-i", inputPattern}
	args = append(args, e.ExtraArgs...)
	return append(args, output)
}

func (e *Encoder) Encode(ctx context.Context, inputPattern string, output string) error {
	path, err := e.Check()
	if err != nil {
		e.logger.Error(err.Error())
		return err
	}

	args := e.Args(inputPattern, output)
	e.logger.Infof("Encoding %s into %s", inputPattern, output)
	e.logger.Debugf("Running %s %s", path, strings.Join(args, " "))

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Stderr = &stderr

	startTime := time.Now()
	if err := cmd.Run(); err != nil {
		detail := tail(stderr.String())
		e.logger.Errorf("Encoder failed: %s", err)
		if detail != "" {
			return fmt.Errorf("%w: %s: %v: %s", misc.ErrEncoding, e.Binary, err, detail)
		}
		return fmt.Errorf("%w: %s: %v", misc.ErrEncoding, e.Binary, err)
	}
	e.logger.Infof("Encoded %s in %s", output, time.Since(startTime))
	return nil
}

func tail(output string) string {
	output = strings.TrimSpace(output)
	if len(output) > stderrTail {
		output = output[len(output)-stderrTail:]
	}
	return output
}
