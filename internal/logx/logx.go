package logx

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
)

const (
	reset   = "\x1b[0m"
	gray    = "\x1b[90m"
	cyan    = "\x1b[36m"
	blue    = "\x1b[34m"
	yellow  = "\x1b[33m"
	green   = "\x1b[32m"
	magenta = "\x1b[35m"
	red     = "\x1b[31m"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level: %s", s)
	}
}

// Channels tag log lines by the phase that produced them. Names are padded
// to four characters.
const (
	ChanInit = "INIT"
	ChanGen  = "GEN "
	ChanEval = "EVAL"
	ChanSave = "SAVE"
	ChanDone = "DONE"
	ChanCLI  = "CLI "
)

var channelColors = map[string]string{
	ChanInit: cyan,
	ChanGen:  blue,
	ChanEval: yellow,
	ChanSave: magenta,
	ChanDone: green,
	ChanCLI:  gray,
}

// Logger writes leveled, channel-tagged lines. Colour is used only when the
// destination is a terminal and NO_COLOR is unset.
type Logger struct {
	mu    sync.Mutex
	w     io.Writer
	level Level
	color bool
	now   func() time.Time
}

func New(w io.Writer, level Level) *Logger {
	return &Logger{w: w, level: level, color: colorEnabled(w), now: time.Now}
}

// Nop discards everything.
func Nop() *Logger {
	return &Logger{w: io.Discard, level: LevelError + 1, now: time.Now}
}

func colorEnabled(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// C wraps s in color when the logger writes colour.
func (l *Logger) C(color, s string) string {
	if !l.color {
		return s
	}
	return color + s + reset
}

func (l *Logger) channel(ch string) string {
	return l.C(channelColors[ch], fmt.Sprintf("[%-4s]", ch))
}

func (l *Logger) Enabled(level Level) bool {
	return l != nil && level >= l.level
}

func (l *Logger) logf(level Level, ch, format string, args ...any) {
	if !l.Enabled(level) {
		return
	}
	msg := fmt.Sprintf(format, args...)
	switch level {
	case LevelWarn:
		msg = l.C(yellow, msg)
	case LevelError:
		msg = l.C(red, msg)
	}
	ts := l.C(gray, l.now().UTC().Format("15:04:05.000"))
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.w, "%s %s %s\n", ts, l.channel(ch), msg)
}

func (l *Logger) Debugf(ch, format string, args ...any) {
	l.logf(LevelDebug, ch, format, args...)
}

func (l *Logger) Infof(ch, format string, args ...any) {
	l.logf(LevelInfo, ch, format, args...)
}

func (l *Logger) Warnf(ch, format string, args ...any) {
	l.logf(LevelWarn, ch, format, args...)
}

func (l *Logger) Errorf(ch, format string, args ...any) {
	l.logf(LevelError, ch, format, args...)
}

// FormatDuration renders d as e.g. "1h23m", "45m" or "23s".
func FormatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	if minutes > 0 {
		return fmt.Sprintf("%dh%dm", hours, minutes)
	}
	return fmt.Sprintf("%dh", hours)
}
