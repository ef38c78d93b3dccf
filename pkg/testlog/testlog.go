// Package testlog is the timestamped, verbosity-gated logger shared by the
// harness and every leaf test.
package testlog

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

const (
	DefaultVerbosity = 5
	timeLayout       = "2006-01-02 15:04:05"
)

type Logger struct {
	base      *log.Logger
	fields    log.Fields
	verbosity int
	file      io.Closer
}

type Options struct {
	Verbosity int
	// Dir, when set, tees every line into a dated log file under it.
	Dir string
	// Append keeps an existing log file for continuation runs.
	Append bool
	Now    func() time.Time
}

func New(out io.Writer, verbosity int) *Logger {
	base := log.New()
	base.SetOutput(out)
	base.SetFormatter(lineFormatter{})
	base.SetLevel(log.InfoLevel)
	return &Logger{base: base, verbosity: verbosity}
}

func Open(fs afero.Fs, out io.Writer, opts Options) (*Logger, error) {
	l := New(out, opts.Verbosity)
	if opts.Dir == "" {
		return l, nil
	}
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	if err := fs.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, err //nolint:wrapcheck // surfaced as config error
	}
	flag := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if opts.Append {
		flag = os.O_CREATE | os.O_WRONLY | os.O_APPEND
	}
	f, err := fs.OpenFile(FileName(opts.Dir, now()), flag, 0o644)
	if err != nil {
		return nil, err //nolint:wrapcheck // surfaced as config error
	}
	l.base.SetOutput(io.MultiWriter(out, f))
	l.file = f
	return l, nil
}

// FileName is the per-day log file for dir.
func FileName(dir string, t time.Time) string {
	return filepath.Join(dir, "hfi-regress."+t.Format("20060102")+".log")
}

func (l *Logger) Verbosity() int {
	return l.verbosity
}

// WithField returns a logger that tags every line with key=value.
func (l *Logger) WithField(key string, value interface{}) *Logger {
	fields := log.Fields{}
	for k, v := range l.fields {
		fields[k] = v
	}
	fields[key] = value
	return &Logger{base: l.base, fields: fields, verbosity: l.verbosity, file: l.file}
}

// Log prints msg when level is at or below the configured verbosity.
func (l *Logger) Log(level int, msg string) {
	if level > l.verbosity {
		return
	}
	l.base.WithFields(l.fields).Info(msg)
}

func (l *Logger) Logf(level int, format string, a ...interface{}) {
	l.Log(level, fmt.Sprintf(format, a...))
}

func (l *Logger) Warnf(format string, a ...interface{}) {
	l.base.WithFields(l.fields).Warn(fmt.Sprintf(format, a...))
}

func (l *Logger) Errorf(format string, a ...interface{}) {
	l.base.WithFields(l.fields).Error(fmt.Sprintf(format, a...))
}

func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close() //nolint:wrapcheck // close error is informational
}

type lineFormatter struct{}

func (lineFormatter) Format(e *log.Entry) ([]byte, error) {
	var b bytes.Buffer
	fmt.Fprintf(&b, "[%s] ", e.Time.Format(timeLayout))
	switch e.Level {
	case log.WarnLevel:
		b.WriteString("WARN: ")
	case log.ErrorLevel, log.FatalLevel, log.PanicLevel:
		b.WriteString("ERROR: ")
	}
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
	return b.Bytes(), nil
}
