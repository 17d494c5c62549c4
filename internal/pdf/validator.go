package pdf

import (
	"bytes"
	"fmt"
	"os"

	pdferrors "github.com/a3tai/pdf-slurper/internal/pdf/errors"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// headerWindow is how far into the file the %PDF- marker may appear
const headerWindow = 1024

var (
	pdfHeader     = []byte("%PDF-")
	encryptMarker = []byte("/Encrypt")
)

func init() {
	api.DisableConfigDir()
}

// Validator handles PDF container checks
type Validator struct {
	maxFileSize int64
}

// NewValidator creates a new PDF validator with the specified constraints
func NewValidator(maxFileSize int64) *Validator {
	return &Validator{
		maxFileSize: maxFileSize,
	}
}

// CheckFile performs basic validation on a path without reading the PDF
func (v *Validator) CheckFile(filePath string) (os.FileInfo, error) {
	if filePath == "" {
		return nil, fmt.Errorf("path cannot be empty")
	}

	fileInfo, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("file does not exist: %s", filePath)
	}
	if err != nil {
		return nil, fmt.Errorf("cannot access file: %w", err)
	}

	if fileInfo.IsDir() {
		return nil, fmt.Errorf("path is a directory, not a file: %s", filePath)
	}

	if fileInfo.Size() == 0 {
		return nil, pdferrors.Unreadable("file is empty", nil).WithFile(filePath)
	}

	if v.maxFileSize > 0 && fileInfo.Size() > v.maxFileSize {
		return nil, fmt.Errorf("file too large: %d bytes (max: %d bytes)",
			fileInfo.Size(), v.maxFileSize)
	}

	return fileInfo, nil
}

// Validate checks the raw bytes form a PDF container that can be read without
// a password and has at least one page. When pdfcpu cannot build a structural
// model the result is returned unchecked and the text reader decides.
func (v *Validator) Validate(data []byte) (*ContainerInfo, error) {
	if len(data) == 0 {
		return nil, pdferrors.Unreadable("file is empty", nil)
	}

	if v.maxFileSize > 0 && int64(len(data)) > v.maxFileSize {
		return nil, pdferrors.Unreadable(
			fmt.Sprintf("file too large: %d bytes (max: %d bytes)", len(data), v.maxFileSize), nil)
	}

	window := data
	if len(window) > headerWindow {
		window = window[:headerWindow]
	}
	if !bytes.Contains(window, pdfHeader) {
		return nil, pdferrors.Unreadable("missing %PDF- header", nil)
	}

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	ctx, err := readContext(data, conf)
	if err != nil {
		if bytes.Contains(data, encryptMarker) {
			return nil, pdferrors.Unreadable("PDF is encrypted", err)
		}
		return &ContainerInfo{}, nil //nolint:nilerr // the text reader makes the final call
	}

	if ctx.Encrypt != nil {
		return nil, pdferrors.Unreadable("PDF is encrypted", nil)
	}

	if err := ctx.EnsurePageCount(); err != nil {
		return nil, pdferrors.Unreadable("failed to count pages", err)
	}
	if ctx.PageCount == 0 {
		return nil, pdferrors.Unreadable("PDF has no pages", nil)
	}

	return &ContainerInfo{
		Checked:   true,
		Version:   ctx.VersionString(),
		PageCount: ctx.PageCount,
	}, nil
}

// readContext guards against panics inside pdfcpu on hostile input
func readContext(data []byte, conf *model.Configuration) (ctx *model.Context, err error) {
	defer func() {
		if r := recover(); r != nil {
			ctx = nil
			err = fmt.Errorf("pdfcpu panic: %v", r)
		}
	}()
	return api.ReadContext(bytes.NewReader(data), conf)
}
