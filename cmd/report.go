package cmd

import (
	"fmt"
	"strconv"

	"github.com/drgolem/uacsim/internal/scenario"
	"github.com/drgolem/uacsim/pkg/usbaudio"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

var (
	accentColor = lipgloss.Color("#00ff9f")
	dimColor    = lipgloss.Color("#6e7681")
	failColor   = lipgloss.Color("#ff5f5f")

	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(accentColor).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(accentColor)
	dimStyle    = lipgloss.NewStyle().Foreground(dimColor)
	passStyle   = lipgloss.NewStyle().Bold(true).Foreground(accentColor)
	failStyle   = lipgloss.NewStyle().Bold(true).Foreground(failColor)
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(accentColor)).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers(headers...)
}

// renderStats renders one row per stream
func renderStats(stats []usbaudio.Stats) string {
	t := newTable("stream", "produced", "consumed", "overruns", "underruns", "underrun %", "overrun %", "timing error")

	for _, s := range stats {
		id := s.StreamID
		if len(id) > 8 {
			id = id[:8]
		}
		t.Row(
			id,
			strconv.FormatUint(s.FramesProduced, 10),
			strconv.FormatUint(s.FramesConsumed, 10),
			strconv.FormatUint(s.OverrunCount, 10),
			strconv.FormatUint(s.UnderrunCount, 10),
			fmt.Sprintf("%.2f", s.UnderrunRate),
			fmt.Sprintf("%.2f", s.OverrunRate),
			s.TimingError.String(),
		)
	}
	return t.Render()
}

// renderScenario renders the checks of one scenario result
func renderScenario(r scenario.Result) string {
	t := newTable("check", "result", "detail")
	for _, c := range r.Checks {
		result := passStyle.Render("PASS")
		if !c.Passed {
			result = failStyle.Render("FAIL")
		}
		t.Row(c.Name, result, c.Detail)
	}

	title := titleStyle.Render("Scenario "+r.Name) + " " + dimStyle.Render(r.Description)
	return lipgloss.JoinVertical(lipgloss.Left, title, t.Render())
}
