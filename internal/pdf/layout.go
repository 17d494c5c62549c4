package pdf

import (
	"math"
	"sort"
	"strings"
)

// Layout constants, in points or multiples of the font size
const (
	lineTolerance      = 3.0
	defaultFontSize    = 10.0
	wordGapFactor      = 0.15
	cellGapFactor      = 1.5
	paragraphGapFactor = 2.0
	columnSlackFactor  = 0.5
	minTableColumns    = 2
	minTableRows       = 2
)

type cell struct {
	X    float64
	Text string
}

type line struct {
	Y        float64
	FontSize float64
	Cells    []cell
}

// LayoutPage rebuilds reading-order text and table grids from positioned glyphs
func LayoutPage(index int, glyphs []Glyph) Page {
	lines := groupLines(glyphs)
	return Page{
		Index:  index,
		Text:   pageText(lines),
		Tables: detectTables(lines),
	}
}

// groupLines clusters glyphs into lines top to bottom, each sorted left to right
func groupLines(glyphs []Glyph) []line {
	if len(glyphs) == 0 {
		return nil
	}

	sorted := make([]Glyph, len(glyphs))
	copy(sorted, glyphs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Y > sorted[j].Y
	})

	var rows [][]Glyph
	currentRow := []Glyph{sorted[0]}
	currentY := sorted[0].Y

	for i := 1; i < len(sorted); i++ {
		if math.Abs(sorted[i].Y-currentY) <= lineTolerance {
			currentRow = append(currentRow, sorted[i])
			continue
		}
		rows = append(rows, currentRow)
		currentRow = []Glyph{sorted[i]}
		currentY = sorted[i].Y
	}
	rows = append(rows, currentRow)

	lines := make([]line, 0, len(rows))
	for _, row := range rows {
		sort.SliceStable(row, func(i, j int) bool {
			return row[i].X < row[j].X
		})
		cells := buildCells(row)
		if len(cells) == 0 {
			continue
		}
		lines = append(lines, line{
			Y:        row[0].Y,
			FontSize: maxFontSize(row),
			Cells:    cells,
		})
	}
	return lines
}

// buildCells merges a line's glyphs into words and splits cells on wide gaps.
// Whitespace glyphs only mark a word break; they never widen a cell.
func buildCells(row []Glyph) []cell {
	var cells []cell
	var b strings.Builder
	var start, end float64
	pendingSpace := false

	flush := func() {
		if text := strings.Join(strings.Fields(b.String()), " "); text != "" {
			cells = append(cells, cell{X: start, Text: text})
		}
		b.Reset()
	}

	for _, g := range row {
		if strings.TrimSpace(g.S) == "" {
			pendingSpace = b.Len() > 0
			continue
		}

		fs := fontSize(g)
		if b.Len() == 0 {
			start = g.X
		} else {
			gap := g.X - end
			switch {
			case gap > cellGapFactor*fs:
				flush()
				start = g.X
			case pendingSpace || gap > wordGapFactor*fs:
				b.WriteByte(' ')
			}
		}

		pendingSpace = false
		b.WriteString(strings.ReplaceAll(g.S, "\t", " "))
		end = math.Max(end, g.X+glyphWidth(g))
	}
	flush()

	return cells
}

// pageText renders lines with "\t" between cells and a blank line at paragraph gaps
func pageText(lines []line) string {
	var b strings.Builder
	for i, l := range lines {
		if i > 0 {
			b.WriteByte('\n')
			if paragraphBreak(lines[i-1], l) {
				b.WriteByte('\n')
			}
		}
		for j, c := range l.Cells {
			if j > 0 {
				b.WriteByte('\t')
			}
			b.WriteString(c.Text)
		}
	}
	return b.String()
}

// detectTables returns runs of consecutive multi-cell lines as aligned grids
func detectTables(lines []line) []Table {
	var tables []Table
	var run []line

	closeRun := func() {
		if len(run) >= minTableRows {
			tables = append(tables, Table{Rows: alignRows(run)})
		}
		run = nil
	}

	for i, l := range lines {
		if len(l.Cells) < minTableColumns {
			closeRun()
			continue
		}
		if len(run) > 0 && paragraphBreak(lines[i-1], l) {
			closeRun()
		}
		run = append(run, l)
	}
	closeRun()

	return tables
}

// alignRows snaps every cell to a column anchored on the widest row of the run
func alignRows(run []line) [][]string {
	widest := run[0]
	for _, l := range run[1:] {
		if len(l.Cells) > len(widest.Cells) {
			widest = l
		}
	}

	anchors := make([]float64, len(widest.Cells))
	for i, c := range widest.Cells {
		anchors[i] = c.X
	}
	slack := columnSlackFactor * fontSizeOf(widest.FontSize)

	rows := make([][]string, 0, len(run))
	for _, l := range run {
		row := make([]string, len(anchors))
		for _, c := range l.Cells {
			col := columnFor(anchors, c.X, slack)
			if row[col] != "" {
				row[col] += " "
			}
			row[col] += c.Text
		}
		rows = append(rows, row)
	}
	return rows
}

func columnFor(anchors []float64, x, slack float64) int {
	col := 0
	for i, a := range anchors {
		if x+slack >= a {
			col = i
		}
	}
	return col
}

func paragraphBreak(prev, next line) bool {
	size := math.Max(fontSizeOf(prev.FontSize), fontSizeOf(next.FontSize))
	return prev.Y-next.Y > paragraphGapFactor*size
}

func maxFontSize(row []Glyph) float64 {
	var size float64
	for _, g := range row {
		size = math.Max(size, g.FontSize)
	}
	return size
}

func fontSize(g Glyph) float64 {
	return fontSizeOf(g.FontSize)
}

func fontSizeOf(size float64) float64 {
	if size <= 0 {
		return defaultFontSize
	}
	return size
}

// glyphWidth falls back to half an em per rune when the font reports no width
func glyphWidth(g Glyph) float64 {
	if g.W > 0 {
		return g.W
	}
	return 0.5 * fontSize(g) * float64(len([]rune(g.S)))
}
