package ui

import (
	"bytes"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// LogLevel represents the severity of a log entry
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarning
	LevelError
)

// LogEntry represents a single log message
type LogEntry struct {
	timestamp time.Time
	level     LogLevel
	message   string
}

// LogLineMsg carries one log line into the dashboard
type LogLineMsg struct {
	Level   LogLevel
	Message string
}

// ErrorConsole shows log output, filtered by level
type ErrorConsole struct {
	viewport  viewport.Model
	entries   []LogEntry
	width     int
	height    int
	style     lipgloss.Style
	showLevel LogLevel
	limit     int
}

// Styles for different log levels
var (
	errorLogStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	warningLogStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	infoLogStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("110"))

	debugLogStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("242"))

	timestampStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("242")).
			Italic(true)
)

// NewErrorConsole creates a new console
func NewErrorConsole() *ErrorConsole {
	e := &ErrorConsole{
		style:     borderStyle.BorderForeground(lipgloss.Color("196")),
		showLevel: LevelInfo,
		limit:     500,
	}
	e.viewport = viewport.New(0, 0)
	return e
}

// SetSize updates the console dimensions
func (e *ErrorConsole) SetSize(width, height int) {
	e.width = width
	e.height = height
	e.viewport.Width = width - 4
	e.viewport.Height = max(height-6, 1)
	e.updateContent()
}

// AddEntry adds a new log entry, dropping the oldest past the limit
func (e *ErrorConsole) AddEntry(level LogLevel, msg string) {
	e.entries = append(e.entries, LogEntry{
		timestamp: time.Now(),
		level:     level,
		message:   msg,
	})
	if len(e.entries) > e.limit {
		e.entries = e.entries[len(e.entries)-e.limit:]
	}
	e.updateContent()
}

// Update handles UI updates
func (e *ErrorConsole) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case LogLineMsg:
		e.AddEntry(msg.Level, msg.Message)
		return nil
	case tea.KeyMsg:
		switch msg.String() {
		case "up", "k":
			e.viewport.LineUp(1)
		case "down", "j":
			e.viewport.LineDown(1)
		case "0":
			e.SetFilter(LevelDebug)
		case "1":
			e.SetFilter(LevelInfo)
		case "2":
			e.SetFilter(LevelWarning)
		case "3":
			e.SetFilter(LevelError)
		}
	}

	var cmd tea.Cmd
	e.viewport, cmd = e.viewport.Update(msg)
	return cmd
}

// SetFilter hides entries below level
func (e *ErrorConsole) SetFilter(level LogLevel) {
	e.showLevel = level
	e.updateContent()
}

// View renders the console
func (e *ErrorConsole) View() string {
	filterInfo := fmt.Sprintf(
		"\nFilter: %s (0:Debug 1:Info 2:Warn 3:Error)",
		levelString(e.showLevel),
	)

	stats := fmt.Sprintf(
		"Total: %d | Errors: %d | Warnings: %d",
		len(e.entries),
		e.CountByLevel(LevelError),
		e.CountByLevel(LevelWarning),
	)

	return e.style.Width(e.width).Render(
		e.viewport.View() +
			infoStyle.Render(filterInfo) + "\n" +
			infoStyle.Render(stats),
	)
}

// Visible returns the messages passing the current filter
func (e *ErrorConsole) Visible() []string {
	var out []string
	for _, entry := range e.entries {
		if entry.level >= e.showLevel {
			out = append(out, entry.message)
		}
	}
	return out
}

func (e *ErrorConsole) updateContent() {
	var sb strings.Builder

	for _, entry := range e.entries {
		if entry.level < e.showLevel {
			continue
		}
		var logStyle lipgloss.Style
		switch entry.level {
		case LevelError:
			logStyle = errorLogStyle
		case LevelWarning:
			logStyle = warningLogStyle
		case LevelDebug:
			logStyle = debugLogStyle
		default:
			logStyle = infoLogStyle
		}

		sb.WriteString(fmt.Sprintf(
			"%s [%s] %s\n",
			timestampStyle.Render(entry.timestamp.Format("15:04:05")),
			logStyle.Render(levelString(entry.level)),
			entry.message,
		))
	}

	atBottom := e.viewport.AtBottom()
	e.viewport.SetContent(sb.String())
	if atBottom {
		e.viewport.GotoBottom()
	}
}

func levelString(level LogLevel) string {
	switch level {
	case LevelError:
		return "ERROR"
	case LevelWarning:
		return "WARN"
	case LevelDebug:
		return "DEBUG"
	default:
		return "INFO"
	}
}

// CountByLevel counts entries at exactly level
func (e *ErrorConsole) CountByLevel(level LogLevel) int {
	count := 0
	for _, entry := range e.entries {
		if entry.level == level {
			count++
		}
	}
	return count
}

// LogWriter turns text-formatted log output into LogLineMsg values. Point
// a logger at it to show log lines in the console.
type LogWriter struct {
	Send func(tea.Msg)

	mu  sync.Mutex
	buf bytes.Buffer
}

// Write implements io.Writer. Partial lines are held until completed.
func (w *LogWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf.Write(p)
	for {
		line, err := w.buf.ReadString('\n')
		if err != nil {
			// keep the incomplete tail for the next write
			w.buf.Reset()
			w.buf.WriteString(line)
			break
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			continue
		}
		level, msg := parseLogLine(line)
		w.Send(LogLineMsg{Level: level, Message: msg})
	}
	return len(p), nil
}

// parseLogLine strips the level prefix charmbracelet/log's text formatter
// writes (INFO, WARN, ERRO, DEBU, FATA).
func parseLogLine(line string) (LogLevel, string) {
	prefixes := []struct {
		prefix string
		level  LogLevel
	}{
		{"DEBU", LevelDebug},
		{"INFO", LevelInfo},
		{"WARN", LevelWarning},
		{"ERRO", LevelError},
		{"FATA", LevelError},
	}
	for _, p := range prefixes {
		if rest, ok := strings.CutPrefix(line, p.prefix); ok {
			return p.level, strings.TrimSpace(rest)
		}
	}
	return LevelInfo, line
}
