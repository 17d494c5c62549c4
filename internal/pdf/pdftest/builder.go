// Package pdftest builds small text-only PDFs for tests.
package pdftest

import (
	"bytes"
	"fmt"
	"strings"
)

// FontSize is the size every Text is set in
const FontSize = 10

// Text places S with its left edge at (X, Y) in points, origin bottom-left
type Text struct {
	X float64
	Y float64
	S string
}

// Page is the text content of one page
type Page []Text

// Info is written to the trailer Info dictionary
type Info struct {
	Title  string
	Author string
}

// Row lays out cells on one baseline at the given column positions
func Row(y float64, columns []float64, cells ...string) []Text {
	texts := make([]Text, 0, len(cells))
	for i, c := range cells {
		if c == "" || i >= len(columns) {
			continue
		}
		texts = append(texts, Text{X: columns[i], Y: y, S: c})
	}
	return texts
}

// Build renders pages into a PDF using a monospaced standard font
func Build(pages ...Page) []byte {
	return BuildWithInfo(Info{}, pages...)
}

// BuildWithInfo is Build with document info
func BuildWithInfo(info Info, pages ...Page) []byte {
	if len(pages) == 0 {
		pages = []Page{{}}
	}

	// 1 catalog, 2 page tree, 3 font, 4 info, then a page and its content per page
	var objects []string
	kids := make([]string, len(pages))
	for i := range pages {
		kids[i] = fmt.Sprintf("%d 0 R", 5+2*i)
	}

	objects = append(objects,
		"<< /Type /Catalog /Pages 2 0 R >>",
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pages)),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Courier /Encoding /WinAnsiEncoding"+
			" /FirstChar 32 /LastChar 126 /Widths ["+strings.TrimSpace(strings.Repeat("600 ", 95))+"] >>",
		fmt.Sprintf("<< /Title (%s) /Author (%s) /Producer (pdftest) >>", escape(info.Title), escape(info.Author)),
	)

	for i, page := range pages {
		stream := contentStream(page)
		objects = append(objects,
			fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792]"+
				" /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>", 6+2*i),
			fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream),
		)
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")

	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R /Info 4 0 R >>\nstartxref\n%d\n%%%%EOF\n",
		len(objects)+1, xref)

	return buf.Bytes()
}

func contentStream(page Page) string {
	var b strings.Builder
	for _, t := range page {
		fmt.Fprintf(&b, "BT /F1 %d Tf %.2f %.2f Td (%s) Tj ET\n", FontSize, t.X, t.Y, escape(t.S))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func escape(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`)
	return r.Replace(s)
}
