// Package tables decides which raw tables hold sample measurements and maps
// their rows to Samples.
package tables

import (
	"fmt"
	"sort"
	"strings"

	"github.com/a3tai/pdf-slurper/internal/normalize"
	"github.com/a3tai/pdf-slurper/internal/pdf"
	pdferrors "github.com/a3tai/pdf-slurper/internal/pdf/errors"
	"github.com/a3tai/pdf-slurper/internal/submission"
)

// DefaultMinHeaderMatches is how many canonical columns a header must bind
const DefaultMinHeaderMatches = 2

// Header is a classified header row
type Header struct {
	RowIndex int
	// Columns maps each bound canonical column to its cell index
	Columns map[Column]int
	// Extras maps the cell index of every other non-empty header to its label
	Extras map[int]string

	normalized []string
}

// Mapper classifies raw tables and maps sample rows
type Mapper struct {
	minHeaderMatches int
}

// NewMapper creates a mapper; minHeaderMatches below 1 uses the default
func NewMapper(minHeaderMatches int) *Mapper {
	if minHeaderMatches < 1 {
		minHeaderMatches = DefaultMinHeaderMatches
	}
	return &Mapper{minHeaderMatches: minHeaderMatches}
}

// Classify returns the header of a sample table, or false for any other table.
// The header is the first row binding enough columns; rows above it, such as
// a label block laid out in the same columns, are not mapped.
func (m *Mapper) Classify(table pdf.Table) (*Header, bool) {
	for r := range table.Rows {
		h := bindHeader(table.Rows[r])
		if len(h.Columns) >= m.minHeaderMatches {
			h.RowIndex = r
			return h, true
		}
	}
	return nil, false
}

func bindHeader(row []string) *Header {
	h := &Header{
		Columns:    make(map[Column]int),
		Extras:     make(map[int]string),
		normalized: make([]string, len(row)),
	}

	for i, cell := range row {
		norm := NormalizeHeader(cell)
		h.normalized[i] = norm
		if norm == "" {
			continue
		}
		if col, ok := MatchHeader(norm); ok {
			if _, bound := h.Columns[col]; !bound {
				h.Columns[col] = i
				continue
			}
		}
		h.Extras[i] = strings.TrimSpace(cell)
	}
	return h
}

// Samples maps every sample table of doc, in page then table then row order.
// Cells that should be numeric but are not degrade to nil and are reported.
func (m *Mapper) Samples(doc *pdf.Document) ([]submission.Sample, *pdferrors.ErrorCollection) {
	errs := pdferrors.NewErrorCollection("")
	var samples []submission.Sample

	for _, page := range doc.Pages {
		for t, table := range page.Tables {
			header, ok := m.Classify(table)
			if !ok {
				continue
			}
			rows, rowErrs := MapRows(page.Index, t, table, header)
			samples = append(samples, rows...)
			errs.Merge(rowErrs)
		}
	}
	return samples, errs
}

// MapRows maps the body rows below header. Rows with no text in any bound
// column and repeated header rows are skipped; a row whose only text fails
// to parse is kept and reported. RowIndex is the row's position in the raw
// table.
func MapRows(pageIndex, tableIndex int, table pdf.Table, header *Header) ([]submission.Sample, *pdferrors.ErrorCollection) {
	errs := pdferrors.NewErrorCollection("")
	var samples []submission.Sample

	for r := header.RowIndex + 1; r < len(table.Rows); r++ {
		row := table.Rows[r]
		if header.repeatedBy(row) || header.blankRow(row) {
			continue
		}

		s := submission.Sample{
			PageIndex:  pageIndex,
			TableIndex: tableIndex,
			RowIndex:   r,
			Status:     submission.StatusReceived,
		}

		if i, ok := header.Columns[ColumnName]; ok {
			if name := strings.TrimSpace(cellAt(row, i)); name != "" {
				s.Name = &name
			}
		}

		numeric := []struct {
			col Column
			dst **float64
		}{
			{ColumnVolume, &s.VolumeUL},
			{ColumnQubitConcentration, &s.QubitConcentration},
			{ColumnNanodropConcentration, &s.NanodropConcentration},
			{ColumnConcentration, &s.Concentration},
			{ColumnA260A280, &s.A260A280},
			{ColumnA260A230, &s.A260A230},
		}
		var degraded []*pdferrors.PDFError
		for _, n := range numeric {
			i, ok := header.Columns[n.col]
			if !ok {
				continue
			}
			raw := strings.TrimSpace(cellAt(row, i))
			if raw == "" {
				continue
			}
			v := normalize.Float(raw)
			if v == nil {
				degraded = append(degraded, pdferrors.Degraded(
					fmt.Sprintf("samples[%d/%d/%d].%s", pageIndex, tableIndex, r, n.col), raw).
					WithPage(pageIndex+1))
			}
			*n.dst = v
		}

		for _, e := range degraded {
			errs.Add(e)
		}

		for _, i := range header.extraIndexes() {
			label := header.Extras[i]
			value := strings.TrimSpace(cellAt(row, i))
			if value == "" {
				continue
			}
			if s.Extra == nil {
				s.Extra = make(map[string]string)
			}
			key := label
			if _, dup := s.Extra[key]; dup {
				key = fmt.Sprintf("%s (%d)", label, i+1)
			}
			s.Extra[key] = value
		}

		samples = append(samples, s)
	}
	return samples, errs
}

// repeatedBy reports whether row restates the header, as when a table
// continues across pages
func (h *Header) repeatedBy(row []string) bool {
	for _, i := range h.Columns {
		if NormalizeHeader(cellAt(row, i)) != h.normalized[i] {
			return false
		}
	}
	return true
}

// blankRow reports whether every bound column of row is empty. Unbound
// columns do not keep a row.
func (h *Header) blankRow(row []string) bool {
	for _, i := range h.Columns {
		if strings.TrimSpace(cellAt(row, i)) != "" {
			return false
		}
	}
	return true
}

func (h *Header) extraIndexes() []int {
	indexes := make([]int, 0, len(h.Extras))
	for i := range h.Extras {
		indexes = append(indexes, i)
	}
	sort.Ints(indexes)
	return indexes
}

func cellAt(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}
