package misc

import (
	"errors"
	"fmt"
	"os"

	"github.com/BrugadaSyndrome/bslogger"
)

const (
	Fatal Severity = iota
	Error
	Warning
	Info
	Debug
)

type Severity int

func (s Severity) String() string {
	names := []string{
		"Fatal", "Error", "Warning", "Info", "Debug",
	}
	if s < 0 || int(s) >= len(names) {
		return fmt.Sprintf("Severity(%d)", int(s))
	}
	return names[s]
}

// Error kinds shared by every stage of a run. Wrap them with fmt.Errorf("%w: ...") and
// test with errors.Is.
var (
	ErrConfiguration      = errors.New("configuration error")
	ErrWorkerFailure      = errors.New("worker failure")
	ErrResourceExhaustion = errors.New("resource exhaustion")
	ErrEncoding           = errors.New("encoding failure")
)

func CheckError(err error, logger bslogger.Logger, severity Severity) {
	if err != nil {
		switch severity {
		case Fatal:
			logger.Fatal(err.Error())
		case Error:
			logger.Error(err.Error())
		case Warning:
			logger.Warning(err.Error())
		case Info:
			logger.Info(err.Error())
		case Debug:
			logger.Debug(err.Error())
		default:
			logger.Fatal(err.Error())
		}
	}
}

// NewLogger maps a textual verbosity onto a bslogger instance. Unknown values fall back
// to normal verbosity.
func NewLogger(name string, verbosity string, logFile *os.File) bslogger.Logger {
	switch verbosity {
	case "minimal":
		return bslogger.NewLogger(name, bslogger.Minimal, logFile)
	case "all", "debug":
		return bslogger.NewLogger(name, bslogger.All, logFile)
	default:
		return bslogger.NewLogger(name, bslogger.Normal, logFile)
	}
}
