package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// workerSlot is one worker and the site it is harvesting
type workerSlot struct {
	active  bool
	site    string
	page    int
	records int
}

// WorkerGrid shows what each runner worker is doing. Busy workers share
// one spinner.
type WorkerGrid struct {
	spinner spinner.Model
	workers []workerSlot
	columns int
	style   lipgloss.Style
	width   int
	height  int
}

// NewWorkerGrid creates a grid with one slot per worker
func NewWorkerGrid(workers int) *WorkerGrid {
	grid := &WorkerGrid{
		columns: 2,
		style:   lipgloss.NewStyle().Border(lipgloss.RoundedBorder()),
		workers: make([]workerSlot, max(workers, 1)),
	}
	grid.spinner = spinner.New()
	grid.spinner.Spinner = spinner.Dot
	grid.spinner.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	return grid
}

// slot maps a 1-based worker number to its index
func (g *WorkerGrid) slot(worker int) (int, bool) {
	i := worker - 1
	return i, i >= 0 && i < len(g.workers)
}

// Activate marks worker as harvesting site
func (g *WorkerGrid) Activate(worker int, site string) {
	i, ok := g.slot(worker)
	if !ok {
		return
	}
	g.workers[i].active = true
	g.workers[i].site = site
	g.workers[i].page = 0
	g.workers[i].records = 0
}

// Progress records the latest page of worker's site
func (g *WorkerGrid) Progress(worker, page, records int) {
	if i, ok := g.slot(worker); ok {
		g.workers[i].page = page
		g.workers[i].records = records
	}
}

// Deactivate frees a worker slot
func (g *WorkerGrid) Deactivate(worker int) {
	i, ok := g.slot(worker)
	if !ok {
		return
	}
	g.workers[i].active = false
	g.workers[i].site = ""
}

// Update advances the spinner
func (g *WorkerGrid) Update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	if tick, ok := msg.(spinner.TickMsg); ok {
		g.spinner, cmd = g.spinner.Update(tick)
	}
	return cmd
}

// Tick starts the spinner animation
func (g *WorkerGrid) Tick() tea.Cmd {
	return g.spinner.Tick
}

// View renders the worker grid
func (g *WorkerGrid) View() string {
	cellWidth := 28
	if g.columns > 0 && g.width > 0 {
		cellWidth = max(g.width/g.columns-2, 12)
	}
	rows := (len(g.workers) + g.columns - 1) / g.columns

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Workers (%d/%d busy)\n\n", g.ActiveCount(), len(g.workers)))

	for row := 0; row < rows; row++ {
		var cells []string
		for col := 0; col < g.columns; col++ {
			idx := row*g.columns + col
			if idx >= len(g.workers) {
				break
			}

			w := g.workers[idx]
			var cell string
			if w.active {
				cell = fmt.Sprintf("%d:%s %s p%d %d", idx+1, g.spinner.View(), w.site, w.page, w.records)
			} else {
				cell = fmt.Sprintf("%d:○ idle", idx+1)
			}
			cells = append(cells, lipgloss.NewStyle().Width(cellWidth).Render(truncate(cell, cellWidth)))
		}
		sb.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, cells...))
		sb.WriteString("\n")
	}

	return g.style.Width(g.width).Render(sb.String())
}

// ActiveCount returns the number of busy workers
func (g *WorkerGrid) ActiveCount() int {
	count := 0
	for _, w := range g.workers {
		if w.active {
			count++
		}
	}
	return count
}

// Site returns the site worker is harvesting, if any
func (g *WorkerGrid) Site(worker int) string {
	if i, ok := g.slot(worker); ok {
		return g.workers[i].site
	}
	return ""
}

// SetSize updates the grid dimensions
func (g *WorkerGrid) SetSize(width, height int) {
	g.width = width
	g.height = height
	if cols := (width - 4) / 30; cols >= 1 {
		g.columns = cols
	}
}
