// Package intake turns request PDFs into stored Submissions and Samples,
// importing each distinct file content at most once.
package intake

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/a3tai/pdf-slurper/internal/logger"
	"github.com/a3tai/pdf-slurper/internal/metadata"
	"github.com/a3tai/pdf-slurper/internal/pdf"
	pdferrors "github.com/a3tai/pdf-slurper/internal/pdf/errors"
	"github.com/a3tai/pdf-slurper/internal/submission"
	"github.com/a3tai/pdf-slurper/internal/tables"
)

// ErrDuplicateHash is returned by Store.Save when another submission already
// holds the content hash
var ErrDuplicateHash = submission.ErrDuplicateHash

// Store persists submissions. Save must be atomic: it upserts the submission
// by ID and replaces all of its samples.
type Store interface {
	FindByContentHash(ctx context.Context, hash string) (*submission.Submission, error)
	ListSamples(ctx context.Context, submissionID string) ([]submission.Sample, error)
	Save(ctx context.Context, sub *submission.Submission, samples []submission.Sample) error
}

// Status reports what an import did
type Status string

const (
	StatusCreated       Status = "created"
	StatusAlreadyExists Status = "already_exists"
	StatusReprocessed   Status = "reprocessed"
)

// Options controls one import
type Options struct {
	// Reprocess re-parses known content and replaces its samples
	Reprocess bool
	FileName  string
	ModTime   time.Time
}

// Degraded lists values that were present in the PDF but could not be typed
type Degraded struct {
	Count  int      `json:"count"`
	Fields []string `json:"fields,omitempty"`
}

// Result is the outcome of one import
type Result struct {
	Submission *submission.Submission `json:"submission"`
	Samples    []submission.Sample    `json:"samples"`
	Status     Status                 `json:"status"`
	Degraded   Degraded               `json:"degraded"`
}

// BatchItem is the outcome for one path of a batch import
type BatchItem struct {
	Path   string
	Result *Result
	Err    error
}

// Processor runs imports. It is safe for concurrent use.
type Processor struct {
	store     Store
	extractor pdf.Extractor
	mapper    *tables.Mapper
	files     *pdf.Validator
	locks     *keyedLock
	logger    *logger.Logger
	now       func() time.Time
	workers   int
}

// Option customizes a Processor
type Option func(*Processor)

// WithMinHeaderMatches sets how many canonical columns make a sample table
func WithMinHeaderMatches(n int) Option {
	return func(p *Processor) { p.mapper = tables.NewMapper(n) }
}

// WithLogger sets the logger
func WithLogger(l *logger.Logger) Option {
	return func(p *Processor) { p.logger = l }
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(p *Processor) { p.now = now }
}

// WithWorkers bounds ProcessBatch concurrency
func WithWorkers(n int) Option {
	return func(p *Processor) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithMaxFileSize rejects larger files in ProcessFile
func WithMaxFileSize(n int64) Option {
	return func(p *Processor) { p.files = pdf.NewValidator(n) }
}

// NewProcessor creates a processor over store and extractor
func NewProcessor(store Store, extractor pdf.Extractor, opts ...Option) *Processor {
	p := &Processor{
		store:     store,
		extractor: extractor,
		mapper:    tables.NewMapper(tables.DefaultMinHeaderMatches),
		files:     pdf.NewValidator(0),
		locks:     newKeyedLock(),
		logger:    logger.Nop(),
		now:       func() time.Time { return time.Now().UTC() },
		workers:   4,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process imports data. Known content returns the stored result without
// writing unless opts.Reprocess is set. A save that loses a race to another
// writer is retried once and then reported as a concurrent import conflict.
func (p *Processor) Process(ctx context.Context, data []byte, opts Options) (*Result, error) {
	res, err := p.process(ctx, data, opts)
	if !errors.Is(err, ErrDuplicateHash) {
		return res, err
	}

	p.logger.Warn("content hash stored by another writer, retrying", "file", opts.FileName)
	res, err = p.process(ctx, data, opts)
	if errors.Is(err, ErrDuplicateHash) {
		return nil, pdferrors.WrapError(pdferrors.ErrorTypeConcurrentImport,
			"another import stored this content first", err).WithFile(opts.FileName)
	}
	return res, err
}

func (p *Processor) process(ctx context.Context, data []byte, opts Options) (*Result, error) {
	hash := Fingerprint(data)
	log := p.logger.With("hash", hash[:12], "file", opts.FileName)

	unlock := p.locks.Lock(hash)
	defer unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	existing, err := p.store.FindByContentHash(ctx, hash)
	switch {
	case errors.Is(err, submission.ErrNotFound):
		existing = nil
	case err != nil:
		return nil, fmt.Errorf("looking up content hash: %w", err)
	}

	if existing != nil && !opts.Reprocess {
		samples, err := p.store.ListSamples(ctx, existing.ID)
		if err != nil {
			return nil, fmt.Errorf("loading stored samples: %w", err)
		}
		log.Info("content already imported", "submission_id", existing.ID)
		return &Result{Submission: existing, Samples: samples, Status: StatusAlreadyExists}, nil
	}

	doc, err := p.extractor.Extract(data)
	if err != nil {
		if !pdferrors.IsType(err, pdferrors.ErrorTypeUnreadable) {
			err = pdferrors.Unreadable("extraction failed", err)
		}
		var pdfErr *pdferrors.PDFError
		if errors.As(err, &pdfErr) && pdfErr.FilePath == "" {
			pdfErr.FilePath = opts.FileName
		}
		log.Warn("unreadable PDF", "error", err)
		return nil, err
	}

	fields, fieldErrs := metadata.Parse(pageTexts(doc))
	samples, sampleErrs := p.mapper.Samples(doc)

	now := p.now()
	sub := &submission.Submission{
		ID:             uuid.NewString(),
		ContentHash:    hash,
		SourceFileName: opts.FileName,
		SourceSize:     int64(len(data)),
		SourceModTime:  opts.ModTime,
		Document:       documentInfo(doc.Info),
		Fields:         fields,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	status := StatusCreated
	if existing != nil {
		status = StatusReprocessed
		sub.ID = existing.ID
		sub.CreatedAt = existing.CreatedAt
		if sub.SourceFileName == "" {
			sub.SourceFileName = existing.SourceFileName
		}
		if sub.SourceModTime.IsZero() {
			sub.SourceModTime = existing.SourceModTime
		}
		p.warnEditedSamples(ctx, log, existing.ID)
	}

	assignSampleIDs(sub.ID, samples)

	if err := p.store.Save(ctx, sub, samples); err != nil {
		return nil, fmt.Errorf("saving submission: %w", err)
	}

	degradedErrs := pdferrors.NewErrorCollection(opts.FileName)
	degradedErrs.Merge(fieldErrs)
	degradedErrs.Merge(sampleErrs)
	degradedFields := degradedErrs.DegradedFields()

	log.Info("imported submission",
		"submission_id", sub.ID,
		"status", status,
		"pages", doc.Info.PageCount,
		"samples", len(samples),
		"degraded", len(degradedFields),
		"issues", degradedErrs.Summary())

	return &Result{
		Submission: sub,
		Samples:    samples,
		Status:     status,
		Degraded:   Degraded{Count: len(degradedFields), Fields: degradedFields},
	}, nil
}

// warnEditedSamples notes manual edits a forced reprocess is about to replace
func (p *Processor) warnEditedSamples(ctx context.Context, log *logger.Logger, submissionID string) {
	previous, err := p.store.ListSamples(ctx, submissionID)
	if err != nil {
		log.Warn("could not list samples before reprocess", "error", err)
		return
	}
	edited := 0
	for _, s := range previous {
		if s.EditedAt != nil {
			edited++
		}
	}
	if edited > 0 {
		log.Warn("reprocess replaces manually edited samples", "edited", edited)
	}
}

// ProcessFile imports the file at path
func (p *Processor) ProcessFile(ctx context.Context, path string, reprocess bool) (*Result, error) {
	info, err := p.files.CheckFile(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	return p.Process(ctx, data, Options{
		Reprocess: reprocess,
		FileName:  filepath.Base(path),
		ModTime:   info.ModTime().UTC(),
	})
}

// ProcessBatch imports paths concurrently. Items come back in input order;
// a failed file does not stop the others.
func (p *Processor) ProcessBatch(ctx context.Context, paths []string, reprocess bool) []BatchItem {
	items := make([]BatchItem, len(paths))

	var g errgroup.Group
	g.SetLimit(p.workers)
	for i, path := range paths {
		g.Go(func() error {
			res, err := p.ProcessFile(ctx, path, reprocess)
			items[i] = BatchItem{Path: path, Result: res, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	return items
}

func pageTexts(doc *pdf.Document) []string {
	texts := make([]string, len(doc.Pages))
	for i, page := range doc.Pages {
		texts[i] = page.Text
	}
	return texts
}

func documentInfo(info pdf.Info) submission.DocumentInfo {
	return submission.DocumentInfo{
		Title:        info.Title,
		Author:       info.Author,
		Subject:      info.Subject,
		Creator:      info.Creator,
		Producer:     info.Producer,
		CreationDate: info.CreationDate,
		PageCount:    info.PageCount,
	}
}

// assignSampleIDs derives each sample id from the submission id and the row's
// provenance, so re-parsing the same bytes yields the same ids
func assignSampleIDs(submissionID string, samples []submission.Sample) {
	namespace, err := uuid.Parse(submissionID)
	if err != nil {
		namespace = uuid.NewSHA1(uuid.NameSpaceOID, []byte(submissionID))
	}
	for i := range samples {
		s := &samples[i]
		s.SubmissionID = submissionID
		key := fmt.Sprintf("%d/%d/%d", s.PageIndex, s.TableIndex, s.RowIndex)
		s.ID = uuid.NewSHA1(namespace, []byte(key)).String()
	}
}
