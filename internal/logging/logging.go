// Package logging builds the console and file log sinks, following the
// same severity/category shape as the reference sink design, adapted onto
// logrus. The console sink additionally coordinates with the operator
// console: asynchronous log lines are re-drawn above an in-progress
// prompt rather than splitting it.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"mazegame/server/internal/config"
)

// Category loosely tags which subsystem emitted a log line, mirroring the
// reference logger's SYSTEM/NETWORK/GAME/PLAYER/COMMAND/DATABASE/WEB split.
type Category string

const (
	CategorySystem   Category = "SYSTEM"
	CategoryNetwork  Category = "NETWORK"
	CategoryGame     Category = "GAME"
	CategoryPlayer   Category = "PLAYER"
	CategoryCommand  Category = "COMMAND"
	CategoryDatabase Category = "DATABASE"
	CategoryWeb      Category = "WEB"
)

// PromptSink is stdout wrapped so that a log write occurring while the
// operator console has an unfinished prompt on screen clears the prompt
// line first and redraws it after, keeping the prompt intact per §5.
type PromptSink struct {
	mu     sync.Mutex
	out    io.Writer
	prompt string
}

// NewPromptSink wraps out (typically os.Stdout).
func NewPromptSink(out io.Writer) *PromptSink {
	return &PromptSink{out: out}
}

// Write implements io.Writer for use as a logrus output.
func (p *PromptSink) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.prompt != "" {
		fmt.Fprint(p.out, "\r"+strings.Repeat(" ", len(p.prompt))+"\r")
	}
	n, err := p.out.Write(b)
	if p.prompt != "" {
		fmt.Fprint(p.out, p.prompt)
	}
	return n, err
}

// SetPrompt records the prompt text currently displayed, so the next log
// write knows how much to clear before redrawing it.
func (p *PromptSink) SetPrompt(prompt string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prompt = prompt
	fmt.Fprint(p.out, prompt)
}

// WriteLine prints one line through the same clear/redraw discipline,
// used for console command output that isn't a structured log line.
func (p *PromptSink) WriteLine(s string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.prompt != "" {
		fmt.Fprint(p.out, "\r"+strings.Repeat(" ", len(p.prompt))+"\r")
	}
	fmt.Fprintln(p.out, s)
	if p.prompt != "" {
		fmt.Fprint(p.out, p.prompt)
	}
}

// maxLogFileBytes is the size threshold at which the file sink rotates
// server.log out to a timestamped sibling and starts a fresh one.
const maxLogFileBytes = 10 * 1024 * 1024

// rotatingFile is an io.Writer over a single growing log file that rotates
// itself to server.log.<timestamp> once it crosses maxLogFileBytes,
// reopening a fresh file at the original path. No pack example wires a
// rotation library (grep turned up neither lumberjack nor rotatelogs
// anywhere in the retrieval pack), so this rolls its own on top of
// os.File rather than fabricating a dependency.
type rotatingFile struct {
	mu   sync.Mutex
	path string
	f    *os.File
	size int64
}

func newRotatingFile(path string) (*rotatingFile, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	return &rotatingFile{path: path, f: f, size: info.Size()}, nil
}

func (r *rotatingFile) Write(b []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.size >= maxLogFileBytes {
		if err := r.rotateLocked(); err != nil {
			return 0, err
		}
	}
	n, err := r.f.Write(b)
	r.size += int64(n)
	return n, err
}

func (r *rotatingFile) rotateLocked() error {
	r.f.Close()
	stamp := time.Now().Format("20060102-150405")
	if err := os.Rename(r.path, fmt.Sprintf("%s.%s", r.path, stamp)); err != nil {
		return err
	}
	f, err := os.OpenFile(r.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	r.f = f
	r.size = 0
	return nil
}

func (r *rotatingFile) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.f.Close()
}

// Loggers bundles the console and file loggers the supervisor wires into
// every component, plus the PromptSink the console reads/writes through.
type Loggers struct {
	Console *PromptSink
	Entry   *logrus.Entry
	file    *rotatingFile
}

// New builds the console/file sinks per cfg: a PromptSink plus a logrus
// logger fanned out to whichever of stdout/file cfg enables, at cfg's
// level.
func New(cfg config.Config) (*Loggers, error) {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	logger.SetLevel(parseLevel(cfg.LogLevel))

	prompt := NewPromptSink(os.Stdout)
	var writers []io.Writer
	if !cfg.NoConsoleLog {
		writers = append(writers, prompt)
	}

	var file *rotatingFile
	if !cfg.NoFileLog {
		if err := os.MkdirAll(cfg.DataPath, 0755); err != nil {
			return nil, fmt.Errorf("logging: create data dir: %w", err)
		}
		f, err := newRotatingFile(filepath.Join(cfg.DataPath, "server.log"))
		if err != nil {
			return nil, fmt.Errorf("logging: open log file: %w", err)
		}
		file = f
		writers = append(writers, f)
	}

	if len(writers) == 0 {
		logger.SetOutput(io.Discard)
	} else {
		logger.SetOutput(io.MultiWriter(writers...))
	}

	return &Loggers{
		Console: prompt,
		Entry:   logger.WithField("category", CategorySystem),
		file:    file,
	}, nil
}

// With returns an entry tagged with category, for a component to log
// through consistently.
func (l *Loggers) With(category Category) *logrus.Entry {
	return l.Entry.WithField("category", category)
}

// Close releases the file handle, if one was opened.
func (l *Loggers) Close() error {
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

func parseLevel(lvl config.LogLevel) logrus.Level {
	switch lvl {
	case config.LogLevelDebug:
		return logrus.DebugLevel
	case config.LogLevelWarning:
		return logrus.WarnLevel
	case config.LogLevelError:
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}
