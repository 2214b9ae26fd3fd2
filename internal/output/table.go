package output

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// TableStyle defines the style for table output.
type TableStyle struct {
	// Border is the border style.
	Border lipgloss.Border

	// BorderColor is the color for borders.
	BorderColor lipgloss.Color

	// HeaderStyle is the style for header cells.
	HeaderStyle lipgloss.Style

	// CellStyle is the style for regular cells.
	CellStyle lipgloss.Style
}

// DefaultTableStyle returns the default table style.
func DefaultTableStyle() TableStyle {
	return TableStyle{
		Border:      lipgloss.NormalBorder(),
		BorderColor: ColorDimGray,
		HeaderStyle: lipgloss.NewStyle().Bold(true).Foreground(colorBlue),
		CellStyle:   lipgloss.NewStyle(),
	}
}

// Table represents a styled table.
type Table struct {
	headers []string
	rows    [][]string
	style   TableStyle
}

// NewTable creates a new table with the given headers.
func NewTable(headers ...string) *Table {
	return &Table{
		headers: headers,
		rows:    make([][]string, 0),
		style:   DefaultTableStyle(),
	}
}

// Row adds a row to the table.
func (t *Table) Row(cells ...string) *Table {
	t.rows = append(t.rows, cells)
	return t
}

// SetStyle sets the table style.
func (t *Table) SetStyle(style TableStyle) *Table {
	t.style = style
	return t
}

// String renders the table as a string.
func (t *Table) String() string {
	tbl := table.New().
		Border(t.style.Border).
		BorderStyle(lipgloss.NewStyle().Foreground(t.style.BorderColor)).
		Headers(t.headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return t.style.HeaderStyle
			}
			return t.style.CellStyle
		})

	for _, row := range t.rows {
		tbl.Row(row...)
	}

	return tbl.String()
}

// ProductRow is one line of the product listing.
type ProductRow struct {
	Name      string
	Installed string
	Latest    string
	Available []string
	Changed   string
}

// RenderProductTable renders installed and available products.
func RenderProductTable(rows []ProductRow) string {
	t := NewTable("NAME", "INSTALLED", "LATEST", "AVAILABLE", "CHANGED")

	for _, r := range rows {
		installed := r.Installed
		if installed == "" {
			installed = "-"
		}
		available := "-"
		if len(r.Available) > 0 {
			available = joinLimited(r.Available, 5)
		}
		t.Row(r.Name, installed, r.Latest, available, r.Changed)
	}

	return t.String()
}

// joinLimited joins at most n values, newest last, eliding the rest.
func joinLimited(values []string, n int) string {
	if len(values) <= n {
		return strings.Join(values, ", ")
	}
	return "… " + strings.Join(values[len(values)-n:], ", ")
}
