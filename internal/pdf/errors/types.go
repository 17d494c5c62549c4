package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// PDFError represents a failure or degradation raised while importing a request PDF
type PDFError struct {
	Type       ErrorType `json:"type"`
	Message    string    `json:"message"`
	Context    string    `json:"context,omitempty"`
	Field      string    `json:"field,omitempty"`
	FilePath   string    `json:"file_path,omitempty"`
	PageNumber int       `json:"page_number,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	Cause      error     `json:"-"`
}

// ErrorType represents the categories of import errors
type ErrorType int

const (
	ErrorTypeUnknown ErrorType = iota
	// ErrorTypeUnreadable means the PDF container could not be parsed at all.
	ErrorTypeUnreadable
	// ErrorTypeFieldDegraded means one extracted value could not be typed and was dropped.
	ErrorTypeFieldDegraded
	// ErrorTypeAlreadyExists marks a re-import of known content. Informational only.
	ErrorTypeAlreadyExists
	// ErrorTypeConcurrentImport means another writer created the same content hash first.
	ErrorTypeConcurrentImport
)

// ErrorSeverity indicates how critical an error is
type ErrorSeverity int

const (
	SeverityInfo ErrorSeverity = iota
	SeverityWarning
	SeverityError
	SeverityFatal
)

// Error implements the error interface
func (e *PDFError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Type.String(), e.Message)
	if e.Field != "" {
		msg = fmt.Sprintf("[%s] %s: %s", e.Type.String(), e.Field, e.Message)
	}
	if e.Context != "" {
		msg += ": " + e.Context
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause
func (e *PDFError) Unwrap() error {
	return e.Cause
}

// Is matches another *PDFError of the same type, so sentinels such as
// ErrUnreadable work with errors.Is.
func (e *PDFError) Is(target error) bool {
	t, ok := target.(*PDFError)
	if !ok {
		return false
	}
	return t.Type == e.Type && t.Message == ""
}

// String returns a string representation of the ErrorType
func (et ErrorType) String() string {
	switch et {
	case ErrorTypeUnreadable:
		return "UNREADABLE_PDF"
	case ErrorTypeFieldDegraded:
		return "FIELD_PARSE_DEGRADED"
	case ErrorTypeAlreadyExists:
		return "ALREADY_EXISTS"
	case ErrorTypeConcurrentImport:
		return "CONCURRENT_IMPORT_CONFLICT"
	default:
		return "UNKNOWN"
	}
}

// GetSeverity returns the severity level for a given error type
func (et ErrorType) GetSeverity() ErrorSeverity {
	switch et {
	case ErrorTypeUnreadable:
		return SeverityFatal
	case ErrorTypeFieldDegraded:
		return SeverityWarning
	case ErrorTypeAlreadyExists:
		return SeverityInfo
	case ErrorTypeConcurrentImport:
		return SeverityError
	default:
		return SeverityError
	}
}

// Sentinels for errors.Is checks. They match any PDFError of the same type.
var (
	ErrUnreadable       = &PDFError{Type: ErrorTypeUnreadable}
	ErrConcurrentImport = &PDFError{Type: ErrorTypeConcurrentImport}
)

// NewPDFError creates a new PDFError
func NewPDFError(errorType ErrorType, message string) *PDFError {
	return &PDFError{
		Type:      errorType,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// WrapError wraps a standard error as a PDFError
func WrapError(errorType ErrorType, message string, err error) *PDFError {
	e := NewPDFError(errorType, message)
	e.Cause = err
	return e
}

// Unreadable builds the fatal error for a container that cannot be parsed
func Unreadable(message string, cause error) *PDFError {
	return WrapError(ErrorTypeUnreadable, message, cause)
}

// Degraded builds the per-field warning for a value that could not be typed
func Degraded(field, raw string) *PDFError {
	e := NewPDFError(ErrorTypeFieldDegraded, "value could not be parsed")
	e.Field = field
	e.Context = fmt.Sprintf("%q", raw)
	return e
}

// WithFile adds file path information to an existing PDFError
func (e *PDFError) WithFile(filePath string) *PDFError {
	e.FilePath = filePath
	return e
}

// WithPage adds page number information to an existing PDFError
func (e *PDFError) WithPage(pageNumber int) *PDFError {
	e.PageNumber = pageNumber
	return e
}

// GetSeverity returns the severity of this specific error
func (e *PDFError) GetSeverity() ErrorSeverity {
	return e.Type.GetSeverity()
}

// IsCritical returns true if this error aborts an import
func (e *PDFError) IsCritical() bool {
	return e.GetSeverity() == SeverityFatal
}

// IsType reports whether err, or anything it wraps, is a PDFError of the given type
func IsType(err error, errorType ErrorType) bool {
	var pdfErr *PDFError
	if !stderrors.As(err, &pdfErr) {
		return false
	}
	return pdfErr.Type == errorType
}

// ErrorCollection manages multiple PDF errors
type ErrorCollection struct {
	Errors   []*PDFError `json:"errors"`
	Warnings []*PDFError `json:"warnings"`
	FilePath string      `json:"file_path,omitempty"`
}

// NewErrorCollection creates a new error collection
func NewErrorCollection(filePath string) *ErrorCollection {
	return &ErrorCollection{
		Errors:   make([]*PDFError, 0),
		Warnings: make([]*PDFError, 0),
		FilePath: filePath,
	}
}

// Add adds an error to the appropriate collection based on severity
func (ec *ErrorCollection) Add(err *PDFError) {
	if err == nil {
		return
	}
	if err.FilePath == "" && ec.FilePath != "" {
		err.FilePath = ec.FilePath
	}

	severity := err.GetSeverity()
	if severity == SeverityWarning || severity == SeverityInfo {
		ec.Warnings = append(ec.Warnings, err)
	} else {
		ec.Errors = append(ec.Errors, err)
	}
}

// Merge appends every entry of other
func (ec *ErrorCollection) Merge(other *ErrorCollection) {
	if other == nil {
		return
	}
	for _, err := range other.Errors {
		ec.Add(err)
	}
	for _, err := range other.Warnings {
		ec.Add(err)
	}
}

// HasCriticalErrors returns true if any critical errors exist
func (ec *ErrorCollection) HasCriticalErrors() bool {
	for _, err := range ec.Errors {
		if err.IsCritical() {
			return true
		}
	}
	return false
}

// DegradedFields returns the names of fields that degraded to absent, in report order
func (ec *ErrorCollection) DegradedFields() []string {
	fields := make([]string, 0, len(ec.Warnings))
	for _, err := range ec.Warnings {
		if err.Type == ErrorTypeFieldDegraded {
			fields = append(fields, err.Field)
		}
	}
	return fields
}

// Count returns the total number of errors and warnings
func (ec *ErrorCollection) Count() (errors, warnings int) {
	return len(ec.Errors), len(ec.Warnings)
}

// Summary returns a text summary of all errors and warnings
func (ec *ErrorCollection) Summary() string {
	errorCount, warningCount := ec.Count()
	if errorCount == 0 && warningCount == 0 {
		return "No errors or warnings"
	}

	summary := fmt.Sprintf("Found %d error(s) and %d warning(s)", errorCount, warningCount)

	if ec.HasCriticalErrors() {
		summary += " (including critical errors)"
	}

	return summary
}
