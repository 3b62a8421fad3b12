package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// ANSI color codes
const (
	Reset   = "\033[0m"
	Red     = "\033[31m"
	Green   = "\033[32m"
	Yellow  = "\033[33m"
	Blue    = "\033[34m"
	Magenta = "\033[35m"
	Cyan    = "\033[36m"
	Dim     = "\033[2m"
)

// Log tags
const (
	UploadTag  = "▲ [UP]"
	ConvertTag = "▶ [CV]"
	DoneTag    = "■ [CV]"
	DeleteTag  = "✖ [RM]"
	SchemaTag  = "◆ [OA]"
	Separator  = "===================================="
)

// Logger wraps a logrus logger with the tagged, colored helpers used across the SDK
type Logger struct {
	*logrus.Logger
}

// NewLogger creates a new Logger writing to stderr at info level
func NewLogger() *Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(logrus.InfoLevel)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	return &Logger{Logger: l}
}

// NewDiscardLogger creates a Logger that drops everything, for library callers that want silence
func NewDiscardLogger() *Logger {
	l := NewLogger()
	l.SetOutput(io.Discard)
	return l
}

// SetDebug switches between debug and info level
func (l *Logger) SetDebug(debug bool) {
	if debug {
		l.SetLevel(logrus.DebugLevel)
		return
	}
	l.SetLevel(logrus.InfoLevel)
}

func tagged(color, tag, format string, v ...interface{}) string {
	return fmt.Sprintf("%s%s%s %s", color, tag, Reset, fmt.Sprintf(format, v...))
}

// UploadLog logs file uploads with magenta color
func (l *Logger) UploadLog(format string, v ...interface{}) {
	l.Info(tagged(Magenta, UploadTag, format, v...))
}

// ConvertLog logs outgoing conversions with blue color
func (l *Logger) ConvertLog(format string, v ...interface{}) {
	l.Info(tagged(Blue, ConvertTag, format, v...))
}

// DoneLog logs finished conversions with green color
func (l *Logger) DoneLog(format string, v ...interface{}) {
	l.Info(tagged(Green, DoneTag, format, v...))
}

// DeleteLog logs server-side file deletions with cyan color
func (l *Logger) DeleteLog(format string, v ...interface{}) {
	l.Info(tagged(Cyan, DeleteTag, format, v...))
}

// SchemaLog logs schema discovery steps. Debug level only.
func (l *Logger) SchemaLog(format string, v ...interface{}) {
	l.Debug(tagged(Dim, SchemaTag, format, v...))
}

// DebugLog logs at debug level without a tag
func (l *Logger) DebugLog(format string, v ...interface{}) {
	l.Debugf(format, v...)
}

// SeparatorLog prints a dimmed separator line
func (l *Logger) SeparatorLog() {
	l.Infof("%s%s%s", Dim, Separator, Reset)
}

// ErrorLog logs errors with red color
func (l *Logger) ErrorLog(format string, v ...interface{}) {
	l.Errorf("%s⚠️  [ERROR] %s%s", Red, Reset, fmt.Sprintf(format, v...))
}

// WarningLog logs warnings with yellow color
func (l *Logger) WarningLog(format string, v ...interface{}) {
	l.Warnf("%s⚠️  [WARN] %s%s", Yellow, Reset, fmt.Sprintf(format, v...))
}
