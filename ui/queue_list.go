package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Site statuses shown in the queue
const (
	StatusQueued  = "queued"
	StatusRunning = "running"
	StatusDone    = "done"
	StatusFailed  = "failed"
)

// SiteItem is one site in the run queue
type SiteItem struct {
	site    string
	status  string
	bound   int
	pages   int
	records int
}

// FilterValue implements list.Item interface
func (i SiteItem) FilterValue() string { return i.site }

// Title returns the item's title
func (i SiteItem) Title() string { return i.site }

// Description returns the item's description
func (i SiteItem) Description() string {
	return fmt.Sprintf("%s | pages %d/%d | records %d", i.status, i.pages, i.bound, i.records)
}

// QueueList shows every site of the run and where it stands
type QueueList struct {
	list     list.Model
	width    int
	height   int
	finished int
}

// NewQueueList creates a new queue list
func NewQueueList() *QueueList {
	delegate := list.NewDefaultDelegate()
	delegate.Styles.SelectedTitle = delegate.Styles.SelectedTitle.Foreground(lipgloss.Color("170"))
	delegate.Styles.SelectedDesc = delegate.Styles.SelectedDesc.Foreground(lipgloss.Color("244"))

	l := list.New([]list.Item{}, delegate, 0, 0)
	l.Title = "Sites"
	l.Styles.Title = l.Styles.Title.Foreground(lipgloss.Color("240"))
	l.SetFilteringEnabled(false)

	return &QueueList{list: l}
}

// SetSize updates the list dimensions
func (q *QueueList) SetSize(width, height int) {
	q.width = width
	q.height = height
	q.list.SetSize(width, height)
}

// Update handles UI updates
func (q *QueueList) Update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	q.list, cmd = q.list.Update(msg)
	return cmd
}

// View renders the component
func (q *QueueList) View() string {
	return q.list.View()
}

// AddSite appends a queued site
func (q *QueueList) AddSite(site string, bound int) {
	q.list.InsertItem(len(q.list.Items()), SiteItem{site: site, status: StatusQueued, bound: bound})
	q.updateTitle()
}

// Update a site's row in place
func (q *QueueList) modify(site string, fn func(*SiteItem)) {
	for i, item := range q.list.Items() {
		if s, ok := item.(SiteItem); ok && s.site == site {
			fn(&s)
			q.list.SetItem(i, s)
			return
		}
	}
}

// MarkRunning flags a site as picked up by a worker
func (q *QueueList) MarkRunning(site string) {
	q.modify(site, func(s *SiteItem) { s.status = StatusRunning })
	q.updateTitle()
}

// SetProgress records pages visited and records kept
func (q *QueueList) SetProgress(site string, pages, records int) {
	q.modify(site, func(s *SiteItem) {
		s.pages = pages
		s.records = records
	})
}

// MarkFinished flags a site as done or failed
func (q *QueueList) MarkFinished(site string, records int, failed bool) {
	q.modify(site, func(s *SiteItem) {
		s.status = StatusDone
		if failed {
			s.status = StatusFailed
		}
		s.records = records
	})
	q.finished++
	q.updateTitle()
}

// Status returns the status of site, or "" when it is not listed
func (q *QueueList) Status(site string) string {
	for _, item := range q.list.Items() {
		if s, ok := item.(SiteItem); ok && s.site == site {
			return s.status
		}
	}
	return ""
}

// updateTitle updates the component title with stats
func (q *QueueList) updateTitle() {
	q.list.Title = fmt.Sprintf("Sites (%d/%d finished)", q.finished, len(q.list.Items()))
}
