package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// PageRow is one fetched page
type PageRow struct {
	Site      string
	Page      int
	Label     string
	Cards     int
	Added     int
	Attempts  int
	Blocked   bool
	Signature string
	Exhausted bool
}

// Outcome summarizes the row for the status column
func (r PageRow) Outcome() string {
	switch {
	case r.Blocked:
		return "blocked"
	case r.Cards > 0:
		return "ok"
	case r.Exhausted:
		return "empty*"
	default:
		return "empty"
	}
}

// ResultsTable lists pages as they are fetched
type ResultsTable struct {
	viewport    viewport.Model
	rows        []PageRow
	width       int
	height      int
	headerStyle lipgloss.Style
	cellStyle   lipgloss.Style
	style       lipgloss.Style
}

// NewResultsTable creates a new results table
func NewResultsTable() *ResultsTable {
	t := &ResultsTable{
		headerStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")),
		cellStyle: lipgloss.NewStyle().
			PaddingLeft(1).
			PaddingRight(1),
		style: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("35")),
	}
	t.viewport = viewport.New(0, 0)
	return t
}

// SetSize updates the table dimensions
func (t *ResultsTable) SetSize(width, height int) {
	t.width = width
	t.height = height
	t.viewport.Width = width - 4
	t.viewport.Height = height - 4
}

// Update handles UI updates
func (t *ResultsTable) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "pgup":
			t.viewport.HalfViewUp()
		case "pgdown":
			t.viewport.HalfViewDown()
		}
	}

	var cmd tea.Cmd
	t.viewport, cmd = t.viewport.Update(msg)
	return cmd
}

func (t *ResultsTable) render() string {
	siteWidth := min(14, max(t.width/5, 8))
	labelWidth := min(20, max(t.width/4, 8))

	header := t.headerStyle.Render(fmt.Sprintf(
		"%-*s %5s %-*s %6s %5s %4s %-8s",
		siteWidth, "Site",
		"Page",
		labelWidth, "Label",
		"Cards",
		"New",
		"Try",
		"Status",
	))

	rows := make([]string, 0, len(t.rows))
	for _, r := range t.rows {
		row := t.cellStyle.Render(fmt.Sprintf(
			"%-*s %5d %-*s %6d %5d %4d %-8s",
			siteWidth, truncate(r.Site, siteWidth),
			r.Page,
			labelWidth, truncate(r.Label, labelWidth),
			r.Cards,
			r.Added,
			r.Attempts,
			r.Outcome(),
		))

		switch {
		case r.Blocked:
			row = errorStyle.Render(row)
		case r.Cards == 0:
			row = warningStyle.Render(row)
		}
		rows = append(rows, row)
	}
	return header + "\n" + strings.Join(rows, "\n")
}

// View renders the table
func (t *ResultsTable) View() string {
	if len(t.rows) == 0 {
		return t.style.Render(infoStyle.Render("No pages yet"))
	}

	stats := fmt.Sprintf(
		"\nPages: %d | With records: %d | Empty: %d | Blocked: %d",
		len(t.rows),
		t.count(func(r PageRow) bool { return r.Cards > 0 }),
		t.count(func(r PageRow) bool { return !r.Blocked && r.Cards == 0 }),
		t.count(func(r PageRow) bool { return r.Blocked }),
	)

	return t.style.Width(t.width).Render(
		t.viewport.View() + "\n" + infoStyle.Render(stats),
	)
}

// AddRow appends a fetched page
func (t *ResultsTable) AddRow(row PageRow) {
	atBottom := t.viewport.AtBottom()
	t.rows = append(t.rows, row)
	t.viewport.SetContent(t.render())
	if atBottom {
		t.viewport.GotoBottom()
	}
}

// Rows returns the rows added so far
func (t *ResultsTable) Rows() []PageRow { return t.rows }

func truncate(s string, w int) string {
	if w <= 3 || len(s) <= w {
		return s
	}
	return s[:w-3] + "..."
}

func (t *ResultsTable) count(match func(PageRow) bool) int {
	n := 0
	for _, r := range t.rows {
		if match(r) {
			n++
		}
	}
	return n
}
