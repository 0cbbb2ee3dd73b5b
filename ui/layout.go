package ui

import (
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Component is a dashboard panel
type Component interface {
	Init() tea.Cmd
	Update(tea.Msg) (Component, tea.Cmd)
	View() string
	SetSize(width, height int)
}

var (
	borderStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63"))

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true).
			PaddingLeft(1)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("110"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))
)

// WorkerPanel frames the worker grid
type WorkerPanel struct {
	viewport viewport.Model
	style    lipgloss.Style
	title    string
	width    int
	height   int
	grid     *WorkerGrid
}

func NewWorkerPanel(workers int) *WorkerPanel {
	return &WorkerPanel{
		title:    "Sessions",
		style:    borderStyle.BorderForeground(lipgloss.Color("63")),
		grid:     NewWorkerGrid(workers),
		viewport: viewport.New(0, 0),
	}
}

func (w *WorkerPanel) Init() tea.Cmd {
	return w.grid.Tick()
}

func (w *WorkerPanel) Update(msg tea.Msg) (Component, tea.Cmd) {
	return w, w.grid.Update(msg)
}

func (w *WorkerPanel) View() string {
	w.viewport.SetContent(titleStyle.Render(w.title) + "\n\n" + w.grid.View())
	return w.style.Width(w.width).Height(w.height).Render(w.viewport.View())
}

func (w *WorkerPanel) SetSize(width, height int) {
	w.width = width
	w.height = height
	w.viewport.Width = width - 4
	w.viewport.Height = height - 4
	w.grid.SetSize(width-4, height-6)
}

type QueuePanel struct {
	style  lipgloss.Style
	width  int
	height int
	queue  *QueueList
}

func NewQueuePanel() *QueuePanel {
	return &QueuePanel{
		style: borderStyle.BorderForeground(lipgloss.Color("99")),
		queue: NewQueueList(),
	}
}

func (q *QueuePanel) Init() tea.Cmd {
	return nil
}

func (q *QueuePanel) Update(msg tea.Msg) (Component, tea.Cmd) {
	return q, q.queue.Update(msg)
}

func (q *QueuePanel) View() string {
	return q.style.Width(q.width).Height(q.height).Render(q.queue.View())
}

func (q *QueuePanel) SetSize(width, height int) {
	q.width = width
	q.height = height
	q.queue.SetSize(width-4, height-4)
}

type ResultsPanel struct {
	style  lipgloss.Style
	width  int
	height int
	table  *ResultsTable
}

func NewResultsPanel() *ResultsPanel {
	return &ResultsPanel{
		style: borderStyle.BorderForeground(lipgloss.Color("35")),
		table: NewResultsTable(),
	}
}

func (r *ResultsPanel) Init() tea.Cmd {
	return nil
}

func (r *ResultsPanel) Update(msg tea.Msg) (Component, tea.Cmd) {
	return r, r.table.Update(msg)
}

func (r *ResultsPanel) View() string {
	return r.style.Width(r.width).Height(r.height).Render(r.table.View())
}

func (r *ResultsPanel) SetSize(width, height int) {
	r.width = width
	r.height = height
	r.table.SetSize(width-4, height-4)
}

type ErrorPanel struct {
	width   int
	height  int
	console *ErrorConsole
}

func NewErrorPanel() *ErrorPanel {
	return &ErrorPanel{console: NewErrorConsole()}
}

func (e *ErrorPanel) Init() tea.Cmd {
	return nil
}

func (e *ErrorPanel) Update(msg tea.Msg) (Component, tea.Cmd) {
	return e, e.console.Update(msg)
}

func (e *ErrorPanel) View() string {
	return e.console.View()
}

func (e *ErrorPanel) SetSize(width, height int) {
	e.width = width
	e.height = height
	e.console.SetSize(width, height)
}

// Layout arranges the dashboard panels
type Layout struct {
	workers *WorkerPanel
	queue   *QueuePanel
	results *ResultsPanel
	errors  *ErrorPanel
	stats   *StatsPanel
	width   int
	height  int
}

// NewLayout creates a layout sized for the given number of workers
func NewLayout(workers int) *Layout {
	return &Layout{
		workers: NewWorkerPanel(workers),
		queue:   NewQueuePanel(),
		results: NewResultsPanel(),
		errors:  NewErrorPanel(),
		stats:   NewStatsPanel(),
	}
}

// SetSize adjusts the layout and all components to the given dimensions
func (l *Layout) SetSize(width, height int) {
	l.width = width
	l.height = height

	halfWidth := width / 2
	halfHeight := height / 2

	workerHeight := int(float64(halfHeight) * 0.4)
	statsHeight := halfHeight - workerHeight
	resultsHeight := (height - halfHeight) * 3 / 5

	l.workers.SetSize(halfWidth, workerHeight)
	l.stats.SetSize(halfWidth, statsHeight)
	l.queue.SetSize(width-halfWidth, halfHeight)
	l.results.SetSize(width, resultsHeight)
	l.errors.SetSize(width, height-halfHeight-resultsHeight)
}

// Init initializes all panels
func (l *Layout) Init() tea.Cmd {
	return tea.Batch(
		l.workers.Init(),
		l.queue.Init(),
		l.results.Init(),
		l.errors.Init(),
	)
}

// Update processes messages and updates components
func (l *Layout) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	if size, ok := msg.(tea.WindowSizeMsg); ok {
		l.SetSize(size.Width, size.Height)
	}

	for _, c := range []Component{l.workers, l.queue, l.results, l.errors} {
		_, cmd := c.Update(msg)
		cmds = append(cmds, cmd)
	}
	cmds = append(cmds, l.stats.Update(msg))

	return l, tea.Batch(cmds...)
}

// View renders the complete layout
func (l *Layout) View() string {
	leftSide := lipgloss.JoinVertical(
		lipgloss.Left,
		l.workers.View(),
		l.stats.View(),
	)

	topRow := lipgloss.JoinHorizontal(
		lipgloss.Top,
		leftSide,
		l.queue.View(),
	)

	return lipgloss.JoinVertical(
		lipgloss.Left,
		topRow,
		l.results.View(),
		l.errors.View(),
	)
}

// QueueSite lists a site waiting for a worker
func (l *Layout) QueueSite(site string, bound int) {
	l.queue.queue.AddSite(site, bound)
}

// StartSite shows worker harvesting site
func (l *Layout) StartSite(worker int, site string) {
	l.workers.grid.Activate(worker, site)
	l.queue.queue.MarkRunning(site)
}

// AddPage records one fetched page of the site worker is running
func (l *Layout) AddPage(worker int, row PageRow, pages, records int) {
	l.workers.grid.Progress(worker, row.Page, records)
	l.queue.queue.SetProgress(row.Site, pages, records)
	l.results.table.AddRow(row)
}

// FinishSite frees worker and marks site done or failed
func (l *Layout) FinishSite(worker int, site string, records int, failed bool) {
	l.workers.grid.Deactivate(worker)
	l.queue.queue.MarkFinished(site, records, failed)
	l.stats.AddFinishedSite(site)
}

// AddError adds an error message to the console
func (l *Layout) AddError(msg string) {
	l.errors.console.AddEntry(LevelError, msg)
}

// AddWarning adds a warning message to the console
func (l *Layout) AddWarning(msg string) {
	l.errors.console.AddEntry(LevelWarning, msg)
}

// AddInfo adds an info message to the console
func (l *Layout) AddInfo(msg string) {
	l.errors.console.AddEntry(LevelInfo, msg)
}

// UpdateStats refreshes the statistics panel
func (l *Layout) UpdateStats(stats HarvestStats) {
	l.stats.UpdateStats(stats)
}

// Busy returns the number of busy workers
func (l *Layout) Busy() int {
	return l.workers.grid.ActiveCount()
}

// SiteStatus returns the queue status of site
func (l *Layout) SiteStatus(site string) string {
	return l.queue.queue.Status(site)
}

// Pages returns the page rows shown so far
func (l *Layout) Pages() []PageRow {
	return l.results.table.Rows()
}

// Console returns the console entries visible under the current filter
func (l *Layout) Console() []string {
	return l.errors.console.Visible()
}
