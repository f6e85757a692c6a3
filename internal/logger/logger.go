// Package logger provides leveled logging for the Sanctum CLI and services.
// When verbose mode is enabled via the --verbose flag, debug and info
// messages are printed to stderr to help users follow the indexing and
// retrieval pipelines. Warnings and errors are always printed.
package logger

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	log "github.com/sirupsen/logrus"
)

const sectionField = "section"

var base = newLogger(os.Stderr)

func newLogger(w io.Writer) *log.Logger {
	l := log.New()
	l.SetOutput(w)
	l.SetFormatter(lineFormatter{})
	l.SetLevel(log.WarnLevel)
	return l
}

// lineFormatter renders "[LEVEL] message key=value" lines and section headers.
type lineFormatter struct{}

var levelNames = map[log.Level]string{
	log.TraceLevel: "TRACE",
	log.DebugLevel: "DEBUG",
	log.InfoLevel:  "INFO",
	log.WarnLevel:  "WARN",
	log.ErrorLevel: "ERROR",
	log.FatalLevel: "FATAL",
	log.PanicLevel: "PANIC",
}

// Format implements logrus.Formatter.
func (lineFormatter) Format(e *log.Entry) ([]byte, error) {
	if name, ok := e.Data[sectionField]; ok {
		return []byte(fmt.Sprintf("\n=== %v ===\n", name)), nil
	}

	var b strings.Builder
	b.WriteString("[")
	b.WriteString(levelNames[e.Level])
	b.WriteString("] ")
	b.WriteString(e.Message)

	keys := make([]string, 0, len(e.Data))
	for k := range e.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, e.Data[k])
	}
	b.WriteByte('\n')
	return []byte(b.String()), nil
}

// SetVerbose enables or disables verbose logging.
func SetVerbose(v bool) {
	if v {
		base.SetLevel(log.DebugLevel)
		return
	}
	base.SetLevel(log.WarnLevel)
}

// IsVerbose returns true if verbose mode is enabled.
func IsVerbose() bool {
	return base.IsLevelEnabled(log.DebugLevel)
}

// SetOutput sets the output writer for logs.
// Defaults to os.Stderr. Useful for testing.
func SetOutput(w io.Writer) {
	base.SetOutput(w)
}

// Debug prints a message if verbose mode is enabled.
func Debug(format string, args ...any) {
	base.Debugf(format, args...)
}

// Section prints a section header if verbose mode is enabled.
func Section(name string) {
	base.WithField(sectionField, name).Info("")
}

// Info prints an informational message if verbose mode is enabled.
func Info(format string, args ...any) {
	base.Infof(format, args...)
}

// Warn prints a warning message.
func Warn(format string, args ...any) {
	base.Warnf(format, args...)
}

// Error prints an error message.
func Error(format string, args ...any) {
	base.Errorf(format, args...)
}

// With returns an entry carrying structured fields, rendered as key=value
// after the message.
func With(fields map[string]any) *log.Entry {
	return base.WithFields(log.Fields(fields))
}
