package ui

import (
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
)

// TableColumn defines a table column with name and width.
type TableColumn struct {
	Title string
	Width int
}

// TableStyles returns the shared table styling. Focused tables highlight the
// selected row; unfocused ones render it like any other row.
func TableStyles(focused bool) table.Styles {
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(ColorMuted).
		BorderBottom(true).
		Bold(true).
		Foreground(ColorPrimary)
	s.Cell = s.Cell.
		Foreground(ColorPrimary)
	if focused {
		s.Selected = s.Selected.
			Foreground(ColorPrimary).
			Background(ColorSecondary).
			Bold(false)
	} else {
		s.Selected = s.Cell
	}
	return s
}

func columns(cols []TableColumn) []table.Column {
	out := make([]table.Column, len(cols))
	for i, c := range cols {
		out[i] = table.Column{Title: c.Title, Width: c.Width}
	}
	return out
}

// NewTable creates an interactive Bubbles table of the given height.
func NewTable(cols []TableColumn, rows []table.Row, height int) table.Model {
	if height < 2 {
		height = 2
	}
	t := table.New(
		table.WithColumns(columns(cols)),
		table.WithRows(rows),
		table.WithFocused(false),
		table.WithHeight(height),
	)
	t.SetStyles(TableStyles(false))
	return t
}

// RenderTable renders a non-interactive table for CLI output. Columns with
// a zero width are sized to their widest cell.
func RenderTable(cols []TableColumn, rows [][]string) string {
	sized := make([]TableColumn, len(cols))
	copy(sized, cols)
	for i := range sized {
		if sized[i].Width > 0 {
			continue
		}
		w := lipgloss.Width(sized[i].Title)
		for _, row := range rows {
			if i < len(row) && lipgloss.Width(row[i]) > w {
				w = lipgloss.Width(row[i])
			}
		}
		sized[i].Width = w
	}

	tableRows := make([]table.Row, len(rows))
	for i, row := range rows {
		tableRows[i] = table.Row(row)
	}

	t := table.New(
		table.WithColumns(columns(sized)),
		table.WithRows(tableRows),
		table.WithFocused(false),
		table.WithHeight(len(rows)+1),
	)
	t.SetStyles(TableStyles(false))
	return t.View()
}
