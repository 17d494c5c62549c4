package pdf

import (
	"bytes"
	"fmt"
	"strings"

	pdferrors "github.com/a3tai/pdf-slurper/internal/pdf/errors"
	"github.com/ledongthuc/pdf"
)

// Reader turns raw PDF bytes into per-page text and table grids
type Reader struct {
	validator *Validator
}

// NewReader creates a new PDF reader with the specified constraints
func NewReader(maxFileSize int64) *Reader {
	return &Reader{
		validator: NewValidator(maxFileSize),
	}
}

// Extract reads every page of data. Only an unusable container is an error;
// a page the content parser chokes on comes back with empty text.
func (r *Reader) Extract(data []byte) (doc *Document, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			doc = nil
			err = pdferrors.Unreadable("PDF parser failed", fmt.Errorf("%v", rec))
		}
	}()

	container, err := r.validator.Validate(data)
	if err != nil {
		return nil, err
	}

	pdfReader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, pdferrors.Unreadable("failed to open PDF", err)
	}

	numPages := pdfReader.NumPage()
	if numPages == 0 {
		return nil, pdferrors.Unreadable("PDF has no pages", nil)
	}

	doc = &Document{
		Info:  readInfo(pdfReader),
		Pages: make([]Page, 0, numPages),
	}
	doc.Info.PageCount = numPages
	doc.Info.Version = container.Version

	for pageNum := 1; pageNum <= numPages; pageNum++ {
		doc.Pages = append(doc.Pages, extractPage(pdfReader, pageNum))
	}

	return doc, nil
}

// extractPage lays out one page, falling back to plain text when the
// content stream yields no positioned glyphs
func extractPage(pdfReader *pdf.Reader, pageNum int) (page Page) {
	page = Page{Index: pageNum - 1}
	defer func() {
		if recover() != nil {
			page = Page{Index: pageNum - 1}
		}
	}()

	p := pdfReader.Page(pageNum)
	if p.V.IsNull() {
		return page
	}

	content := p.Content()
	glyphs := make([]Glyph, 0, len(content.Text))
	for _, t := range content.Text {
		glyphs = append(glyphs, Glyph{
			X:        t.X,
			Y:        t.Y,
			W:        t.W,
			FontSize: t.FontSize,
			S:        t.S,
		})
	}

	if len(glyphs) > 0 {
		return LayoutPage(pageNum-1, glyphs)
	}

	if text, err := p.GetPlainText(nil); err == nil {
		page.Text = strings.TrimSpace(text)
	}
	return page
}

func readInfo(pdfReader *pdf.Reader) Info {
	info := pdfReader.Trailer().Key("Info")
	if info.IsNull() {
		return Info{}
	}
	return Info{
		Title:        strings.TrimSpace(info.Key("Title").Text()),
		Author:       strings.TrimSpace(info.Key("Author").Text()),
		Subject:      strings.TrimSpace(info.Key("Subject").Text()),
		Creator:      strings.TrimSpace(info.Key("Creator").Text()),
		Producer:     strings.TrimSpace(info.Key("Producer").Text()),
		CreationDate: strings.TrimSpace(info.Key("CreationDate").Text()),
	}
}
