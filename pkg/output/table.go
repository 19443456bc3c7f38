package output

import (
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

// Table is a plain column-aligned table with a styled header row.
// Widths are measured in terminal cells so wide runes line up.
type Table struct {
	Headers []string
	Rows    [][]string

	// RightAlign lists the columns aligned to the right, typically numbers.
	RightAlign map[int]bool
}

// Render writes the table to w. The header is bold when w is a terminal
// that supports it and plain otherwise.
func (t *Table) Render(w io.Writer) error {
	lines := t.lines(lipgloss.NewRenderer(w).NewStyle().Bold(true))
	if len(lines) == 0 {
		return nil
	}
	_, err := io.WriteString(w, strings.Join(lines, "\n")+"\n")
	return err
}

func (t *Table) lines(header lipgloss.Style) []string {
	colCount := len(t.Headers)
	for _, row := range t.Rows {
		colCount = max(colCount, len(row))
	}
	if colCount == 0 {
		return nil
	}

	widths := make([]int, colCount)
	for i, h := range t.Headers {
		widths[i] = runewidth.StringWidth(h)
	}
	for _, row := range t.Rows {
		for i, cell := range row {
			widths[i] = max(widths[i], runewidth.StringWidth(cell))
		}
	}

	lines := make([]string, 0, len(t.Rows)+1)
	if len(t.Headers) > 0 {
		lines = append(lines, header.Render(t.row(t.Headers, widths)))
	}
	for _, row := range t.Rows {
		lines = append(lines, t.row(row, widths))
	}
	return lines
}

func (t *Table) row(cells []string, widths []int) string {
	var b strings.Builder
	for i, width := range widths {
		cell := ""
		if i < len(cells) {
			cell = cells[i]
		}
		if i > 0 {
			b.WriteString("  ")
		}
		pad := strings.Repeat(" ", width-runewidth.StringWidth(cell))
		if t.RightAlign[i] {
			b.WriteString(pad + cell)
		} else if i == len(widths)-1 {
			b.WriteString(cell)
		} else {
			b.WriteString(cell + pad)
		}
	}
	return b.String()
}
