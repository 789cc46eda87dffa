// Package formatter provides markdown formatting utilities.
package formatter

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

// Alignment of a table column as declared by its separator cell.
type Alignment int

const (
	AlignNone Alignment = iota
	AlignLeft
	AlignCenter
	AlignRight
)

// AlignTables pads every pipe table in content so that its columns line up
// by display width. Column alignment markers (":--", ":-:", "--:") are kept
// and cells are padded on the matching side. Other lines are left untouched.
func AlignTables(content string) string {
	lines := strings.Split(content, "\n")

	var formattedLines []string

	var tableBuffer []string

	for _, line := range lines {
		trimmedLine := strings.TrimSpace(line)

		if strings.HasPrefix(trimmedLine, "|") && strings.HasSuffix(trimmedLine, "|") && len(trimmedLine) > 1 {
			tableBuffer = append(tableBuffer, line)

			continue
		}

		if len(tableBuffer) > 0 {
			formattedLines = append(formattedLines, processTable(tableBuffer)...)
			tableBuffer = nil
		}

		formattedLines = append(formattedLines, line)
	}

	if len(tableBuffer) > 0 {
		formattedLines = append(formattedLines, processTable(tableBuffer)...)
	}

	return strings.Join(formattedLines, "\n")
}

// Table renders header and rows as an aligned pipe table.
// align may be shorter than header; missing columns are AlignNone.
func Table(header []string, align []Alignment, rows [][]string) string {
	var sb strings.Builder

	writeRow := func(cells []string) {
		sb.WriteString("|")

		for _, c := range cells {
			sb.WriteString(escapeCell(c))
			sb.WriteString("|")
		}

		sb.WriteString("\n")
	}

	writeRow(header)

	seps := make([]string, len(header))
	for i := range seps {
		a := AlignNone
		if i < len(align) {
			a = align[i]
		}

		seps[i] = separator(a, 3)
	}

	writeRow(seps)

	for _, row := range rows {
		writeRow(row)
	}

	return AlignTables(strings.TrimRight(sb.String(), "\n")) + "\n"
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

func splitRow(row string) []string {
	trimmed := strings.TrimSpace(row)
	trimmed = strings.TrimPrefix(trimmed, "|")
	trimmed = strings.TrimSuffix(trimmed, "|")

	var (
		cells []string
		cur   strings.Builder
	)

	// escaped pipes stay inside the cell
	for i := 0; i < len(trimmed); i++ {
		if trimmed[i] == '\\' && i+1 < len(trimmed) && trimmed[i+1] == '|' {
			cur.WriteString(`\|`)
			i++

			continue
		}

		if trimmed[i] == '|' {
			cells = append(cells, strings.TrimSpace(cur.String()))
			cur.Reset()

			continue
		}

		cur.WriteByte(trimmed[i])
	}

	return append(cells, strings.TrimSpace(cur.String()))
}

func parseSeparator(cells []string) ([]Alignment, bool) {
	aligns := make([]Alignment, len(cells))

	for i, cell := range cells {
		trim := strings.TrimSpace(cell)
		if trim == "" || strings.Trim(trim, "-:") != "" || !strings.Contains(trim, "-") {
			return nil, false
		}

		left := strings.HasPrefix(trim, ":")
		right := strings.HasSuffix(trim, ":")

		switch {
		case left && right:
			aligns[i] = AlignCenter
		case right:
			aligns[i] = AlignRight
		case left:
			aligns[i] = AlignLeft
		}
	}

	return aligns, true
}

func separator(a Alignment, width int) string {
	switch a {
	case AlignLeft:
		return ":" + strings.Repeat("-", width-1)
	case AlignCenter:
		return ":" + strings.Repeat("-", width-2) + ":"
	case AlignRight:
		return strings.Repeat("-", width-1) + ":"
	default:
		return strings.Repeat("-", width)
	}
}

func pad(content string, width int, a Alignment) string {
	gap := width - runewidth.StringWidth(content)
	if gap <= 0 {
		return content
	}

	switch a {
	case AlignRight:
		return strings.Repeat(" ", gap) + content
	case AlignCenter:
		left := gap / 2
		return strings.Repeat(" ", left) + content + strings.Repeat(" ", gap-left)
	default:
		return content + strings.Repeat(" ", gap)
	}
}

func processTable(rows []string) []string {
	// A table needs at least a header and a separator row.
	if len(rows) < 2 {
		return rows
	}

	table := make([][]string, 0, len(rows))
	colCount := 0

	for _, row := range rows {
		cells := splitRow(row)
		table = append(table, cells)
		colCount = max(colCount, len(cells))
	}

	aligns, ok := parseSeparator(table[1])
	if !ok {
		return rows
	}

	for len(aligns) < colCount {
		aligns = append(aligns, AlignNone)
	}

	colWidths := make([]int, colCount)

	for rIdx, row := range table {
		if rIdx == 1 {
			continue
		}

		for i, cell := range row {
			colWidths[i] = max(colWidths[i], runewidth.StringWidth(cell))
		}
	}

	for i := range colWidths {
		colWidths[i] = max(colWidths[i], 3)
	}

	result := make([]string, 0, len(table))

	for i, row := range table {
		var sb strings.Builder

		sb.WriteString("|")

		for j := 0; j < colCount; j++ {
			sb.WriteString(" ")

			if i == 1 {
				sb.WriteString(separator(aligns[j], colWidths[j]))
			} else {
				content := ""
				if j < len(row) {
					content = row[j]
				}

				sb.WriteString(pad(content, colWidths[j], aligns[j]))
			}

			sb.WriteString(" |")
		}

		result = append(result, sb.String())
	}

	return result
}
