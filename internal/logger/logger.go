package logger

import (
	"io"
	"os"
	"strings"

	"github.com/op/go-logging"
)

const format = `%{time:2006-01-02 15:04:05} %{level:.5s}     %{module:-10s} %{message}`

// Init installs the process-wide go-logging backend on stderr. Stdout is
// left to the console report sink.
func Init(level string) error {
	return InitWriter(os.Stderr, level)
}

// InitWriter parses level (DEBUG, INFO, WARNING, ERROR, CRITICAL; empty
// means INFO) and points every module logger at w.
func InitWriter(w io.Writer, level string) error {
	if strings.TrimSpace(level) == "" {
		level = "INFO"
	}
	code, err := logging.LogLevel(strings.ToUpper(level))
	if err != nil {
		return err
	}

	backend := logging.NewBackendFormatter(
		logging.NewLogBackend(w, "", 0),
		logging.MustStringFormatter(format),
	)
	leveled := logging.AddModuleLevel(backend)
	leveled.SetLevel(code, "")
	logging.SetBackend(leveled)
	return nil
}
