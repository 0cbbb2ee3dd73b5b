package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// HarvestStats holds run-wide counters
type HarvestStats struct {
	Sites       int
	Finished    int
	Failed      int
	Pages       int
	Blocked     int
	Empty       int
	Records     int
	Duplicates  int
	Busy        int
	StartTime   time.Time
	Fraction    float64
	RecentSites []string
}

// StatsPanel displays run statistics
type StatsPanel struct {
	stats      HarvestStats
	bar        progress.Model
	width      int
	height     int
	style      lipgloss.Style
	labelStyle lipgloss.Style
	valueStyle lipgloss.Style
	now        func() time.Time
}

func NewStatsPanel() *StatsPanel {
	return &StatsPanel{
		bar: progress.New(progress.WithDefaultGradient()),
		style: borderStyle.
			BorderForeground(lipgloss.Color("99")),
		labelStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Bold(true),
		valueStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")),
		now: time.Now,
	}
}

func (s *StatsPanel) SetSize(width, height int) {
	s.width = width
	s.height = height
	s.bar.Width = max(width-8, 10)
}

func (s *StatsPanel) Update(msg tea.Msg) tea.Cmd {
	return nil
}

// Lines returns the label/value pairs shown in the panel
func (s *StatsPanel) Lines() [][2]string {
	pagesPerMinute := 0.0
	if !s.stats.StartTime.IsZero() {
		if elapsed := s.now().Sub(s.stats.StartTime).Minutes(); elapsed > 0 {
			pagesPerMinute = float64(s.stats.Pages) / elapsed
		}
	}

	return [][2]string{
		{"Sites", fmt.Sprintf("%d/%d finished, %d failed", s.stats.Finished, s.stats.Sites, s.stats.Failed)},
		{"Pages", fmt.Sprintf("%d (%d empty, %d blocked)", s.stats.Pages, s.stats.Empty, s.stats.Blocked)},
		{"Records", fmt.Sprintf("%d unique, %d duplicates", s.stats.Records, s.stats.Duplicates)},
		{"Busy Workers", fmt.Sprintf("%d", s.stats.Busy)},
		{"Pages/Minute", fmt.Sprintf("%.1f", pagesPerMinute)},
		{"Elapsed Time", s.formatElapsedTime()},
	}
}

func (s *StatsPanel) View() string {
	var content strings.Builder
	content.WriteString(titleStyle.Render("Harvest Statistics") + "\n\n")
	content.WriteString(s.bar.ViewAs(s.stats.Fraction) + "\n\n")

	columnWidth := max((s.width-8)/2, 14)
	for _, stat := range s.Lines() {
		content.WriteString(fmt.Sprintf("%-*s %s\n",
			columnWidth,
			s.labelStyle.Render(stat[0]+":"),
			s.valueStyle.Render(stat[1]),
		))
	}

	if len(s.stats.RecentSites) > 0 {
		content.WriteString("\nRecently finished:\n")
		for _, site := range s.stats.RecentSites {
			content.WriteString(infoStyle.Render("• "+site) + "\n")
		}
	}

	return s.style.Width(s.width).Height(s.height).Render(content.String())
}

// UpdateStats replaces the statistics, keeping the recent-site list
func (s *StatsPanel) UpdateStats(stats HarvestStats) {
	if stats.RecentSites == nil {
		stats.RecentSites = s.stats.RecentSites
	}
	s.stats = stats
}

// Stats returns the current statistics
func (s *StatsPanel) Stats() HarvestStats { return s.stats }

func (s *StatsPanel) formatElapsedTime() string {
	if s.stats.StartTime.IsZero() {
		return "00:00:00"
	}
	elapsed := s.now().Sub(s.stats.StartTime)
	return fmt.Sprintf("%02d:%02d:%02d",
		int(elapsed.Hours()),
		int(elapsed.Minutes())%60,
		int(elapsed.Seconds())%60,
	)
}

// AddFinishedSite remembers the last five finished sites
func (s *StatsPanel) AddFinishedSite(site string) {
	s.stats.RecentSites = append(s.stats.RecentSites, site)
	if len(s.stats.RecentSites) > 5 {
		s.stats.RecentSites = s.stats.RecentSites[1:]
	}
}
