package main

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/go-scripts/harvest/internal/harvest"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205")).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	failedStyle = cellStyle.Foreground(lipgloss.Color("196"))
)

// renderReports prints one row per site
func renderReports(reports []harvest.Report) string {
	rows := make([][]string, 0, len(reports))
	for _, r := range reports {
		status := "ok"
		if r.Err != nil {
			status = r.Err.Error()
		}
		rows = append(rows, []string{
			r.Site,
			fmt.Sprint(r.Pages),
			fmt.Sprint(r.WithRecords),
			fmt.Sprint(r.Empty),
			fmt.Sprint(r.Blocked),
			fmt.Sprint(r.Records),
			fmt.Sprint(r.Dropped),
			r.Duration.Round(time.Second).String(),
			status,
		})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("63"))).
		Headers("Site", "Pages", "With records", "Empty", "Blocked", "Records", "Duplicates", "Time", "Status").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case col == 8 && row >= 0 && row < len(reports) && reports[row].Err != nil:
				return failedStyle
			}
			return cellStyle
		})
	return t.String()
}
