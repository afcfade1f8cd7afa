package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// Theme defines the color scheme for table output.
type Theme struct {
	Primary lipgloss.Color // Titles, headers and borders
	Dim     lipgloss.Color // Cell text
}

// DefaultTheme is the default bright green theme.
var DefaultTheme = Theme{
	Primary: lipgloss.Color("#00ff9f"),
	Dim:     lipgloss.Color("#c9d1d9"),
}

// Table is one titled block of tabular output.
type Table struct {
	Title   string
	Headers []string
	Rows    [][]string
}

// Tabular is implemented by results that can render as tables.
type Tabular interface {
	Tables() []Table
}

// RenderTables writes each table in order, separated by a blank line. With
// plain set no colors are emitted.
func RenderTables(w io.Writer, tables []Table, theme Theme, plain bool) error {
	title := lipgloss.NewStyle().Bold(true).Foreground(theme.Primary)
	header := lipgloss.NewStyle().Bold(true).Foreground(theme.Primary).Padding(0, 1)
	cell := lipgloss.NewStyle().Foreground(theme.Dim).Padding(0, 1)
	border := lipgloss.NewStyle().Foreground(theme.Primary)
	if plain {
		title = lipgloss.NewStyle()
		header = lipgloss.NewStyle().Padding(0, 1)
		cell = lipgloss.NewStyle().Padding(0, 1)
		border = lipgloss.NewStyle()
	}

	for i, t := range tables {
		if i > 0 {
			if _, err := io.WriteString(w, "\n"); err != nil {
				return err
			}
		}
		if t.Title != "" {
			if _, err := fmt.Fprintln(w, title.Render(t.Title)); err != nil {
				return err
			}
		}
		lt := table.New().
			Border(lipgloss.NormalBorder()).
			BorderStyle(border).
			StyleFunc(func(row, _ int) lipgloss.Style {
				if row == table.HeaderRow {
					return header
				}
				return cell
			}).
			Headers(t.Headers...).
			Rows(t.Rows...)
		if _, err := fmt.Fprintln(w, lt.String()); err != nil {
			return err
		}
	}
	return nil
}

// Float formats a metric with four decimals.
func Float(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}
