package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

// Level represents the console verbosity level
type Level int

const (
	// LevelQuiet shows only critical information (errors, warnings, the winner)
	LevelQuiet Level = iota
	// LevelNormal shows standard run progress (default)
	LevelNormal
	// LevelVerbose shows per-partition and per-row progress
	LevelVerbose
	// LevelDebug shows all internal details for debugging
	LevelDebug
)

// ParseLevel converts a verbosity name into a Level.
func ParseLevel(name string) (Level, error) {
	switch strings.ToLower(name) {
	case "quiet":
		return LevelQuiet, nil
	case "", "normal":
		return LevelNormal, nil
	case "verbose":
		return LevelVerbose, nil
	case "debug":
		return LevelDebug, nil
	default:
		return LevelNormal, fmt.Errorf("invalid verbosity: %s (must be 'quiet', 'normal', 'verbose', or 'debug')", name)
	}
}

// Console prints user-facing run progress with ANSI colors. It is safe for
// concurrent use by partition workers.
type Console struct {
	mu     sync.Mutex
	level  Level
	writer io.Writer
	color  bool
}

const (
	colorReset     = "\033[0m"
	colorCyan      = "\033[36m"
	colorSalmon    = "\033[38;5;217m"
	colorYellow    = "\033[33m"
	colorGray      = "\033[90m"
	colorBoldGreen = "\033[1;32m"
	colorBoldRed   = "\033[1;31m"
	colorBoldWhite = "\033[1;37m"
)

// NewConsole creates a console printing to stdout.
func NewConsole(level Level) *Console {
	return &Console{level: level, writer: os.Stdout, color: true}
}

// NewPlainConsole creates a console printing to w without colors.
func NewPlainConsole(level Level, w io.Writer) *Console {
	return &Console{level: level, writer: w}
}

// Level returns the configured verbosity.
func (c *Console) Level() Level {
	return c.level
}

func (c *Console) print(min Level, color, format string, args ...interface{}) {
	if c.level < min {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	msg := fmt.Sprintf(format, args...)
	if c.color && color != "" {
		fmt.Fprintf(c.writer, "%s%s%s\n", color, msg, colorReset)
		return
	}
	fmt.Fprintln(c.writer, msg)
}

// Header prints a prominent header message
func (c *Console) Header(message string) {
	rule := strings.Repeat("=", 70)
	c.print(LevelNormal, colorBoldWhite, "\n%s\n  %s\n%s", rule, message, rule)
}

// Section prints a section divider
func (c *Console) Section(title string) {
	c.print(LevelNormal, colorCyan, "\n▶ %s\n%s", title, strings.Repeat("─", 50))
}

// Successf prints a success message with checkmark
func (c *Console) Successf(format string, args ...interface{}) {
	c.print(LevelNormal, colorBoldGreen, "✓ "+format, args...)
}

// Infof prints an informational message
func (c *Console) Infof(format string, args ...interface{}) {
	c.print(LevelNormal, colorSalmon, format, args...)
}

// Resultf prints run results; shown at every level
func (c *Console) Resultf(format string, args ...interface{}) {
	c.print(LevelQuiet, colorBoldWhite, format, args...)
}

// Warningf prints a warning message
func (c *Console) Warningf(format string, args ...interface{}) {
	c.print(LevelQuiet, colorYellow, "⚠ Warning: "+format, args...)
}

// Errorf prints an error message
func (c *Console) Errorf(format string, args ...interface{}) {
	c.print(LevelQuiet, colorBoldRed, "✗ Error: "+format, args...)
}

// Verbosef prints detailed information (only in verbose mode)
func (c *Console) Verbosef(format string, args ...interface{}) {
	c.print(LevelVerbose, colorGray, "→ "+format, args...)
}

// Debugf prints debug information (only in debug mode)
func (c *Console) Debugf(format string, args ...interface{}) {
	c.print(LevelDebug, colorGray, "[DEBUG] "+format, args...)
}
