// Package logging builds the slog handlers used by cadence: a styled console
// handler and an append-only file sink with ANSI styling stripped.
package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	slogmulti "github.com/samber/slog-multi"
	"gopkg.in/natefinch/lumberjack.v2"
)

// FileTimeLayout is the timestamp layout of log file lines.
const FileTimeLayout = "2006-01-02T15:04:05.000Z"

// Options configures Setup.
type Options struct {
	Level      slog.Level
	Console    io.Writer // defaults to os.Stderr; nil-able via DisableConsole
	FilePath   string    // empty disables the file sink
	MaxSizeMB  int
	MaxBackups int

	DisableConsole bool
}

var (
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	infoStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	debugStyle = lipgloss.NewStyle().Faint(true)
)

// NewFileHandler returns a handler writing "[<UTC timestamp>] <LEVEL>: <message>"
// lines to w with ANSI escape sequences removed.
func NewFileHandler(w io.Writer, level slog.Leveler) slog.Handler {
	return &lineHandler{
		mu:    &sync.Mutex{},
		w:     w,
		level: level,
		format: func(t time.Time, l slog.Level, msg string) string {
			return "[" + t.UTC().Format(FileTimeLayout) + "] " + levelName(l) + ": " + msg
		},
		post: ansi.Strip,
	}
}

// NewConsoleHandler returns a handler writing human-oriented lines with styled levels.
func NewConsoleHandler(w io.Writer, level slog.Leveler) slog.Handler {
	return &lineHandler{
		mu:    &sync.Mutex{},
		w:     w,
		level: level,
		format: func(t time.Time, l slog.Level, msg string) string {
			return t.Format(time.TimeOnly) + " " + styleLevel(l) + " " + msg
		},
	}
}

func styleLevel(l slog.Level) string {
	name := levelName(l)
	switch name {
	case "ERROR":
		return errorStyle.Render(name)
	case "WARN":
		return warnStyle.Render(name)
	case "INFO":
		return infoStyle.Render(name)
	default:
		return debugStyle.Render(name)
	}
}

// Setup builds the fan-out logger described by opts. The returned closer
// flushes and closes the file sink; it is safe to call more than once.
func Setup(opts Options) (*slog.Logger, io.Closer, error) {
	var handlers []slog.Handler
	if !opts.DisableConsole {
		console := opts.Console
		if console == nil {
			console = os.Stderr
		}
		handlers = append(handlers, NewConsoleHandler(console, opts.Level))
	}

	var closer io.Closer = nopCloser{}
	if opts.FilePath != "" {
		if err := os.MkdirAll(filepath.Dir(opts.FilePath), 0o755); err != nil {
			return nil, nil, err
		}
		sink := &lumberjack.Logger{
			Filename:   opts.FilePath,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
		}
		handlers = append(handlers, NewFileHandler(sink, opts.Level))
		closer = &onceCloser{c: sink}
	}

	return slog.New(slogmulti.Fanout(handlers...)), closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

type onceCloser struct {
	once sync.Once
	c    io.Closer
	err  error
}

func (o *onceCloser) Close() error {
	o.once.Do(func() { o.err = o.c.Close() })
	return o.err
}
