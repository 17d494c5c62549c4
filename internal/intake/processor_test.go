package intake

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/a3tai/pdf-slurper/internal/logger"
	"github.com/a3tai/pdf-slurper/internal/pdf"
	pdferrors "github.com/a3tai/pdf-slurper/internal/pdf/errors"
	"github.com/a3tai/pdf-slurper/internal/pdf/pdftest"
	"github.com/a3tai/pdf-slurper/internal/storage/memory"
	"github.com/a3tai/pdf-slurper/internal/storage/sqlite"
	"github.com/a3tai/pdf-slurper/internal/submission"
)

// fakeExtractor returns a fixed document for any input and counts calls
type fakeExtractor struct {
	doc   *pdf.Document
	err   error
	calls atomic.Int32
}

func (f *fakeExtractor) Extract(data []byte) (*pdf.Document, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return f.doc, nil
}

func requestDocument() *pdf.Document {
	return &pdf.Document{
		Info: pdf.Info{Title: "Nanopore request", PageCount: 2},
		Pages: []pdf.Page{
			{
				Index: 0,
				Text: "Requester:\tJane Doe\n" +
					"Lab:\tSmith Lab\n" +
					"\n" +
					"Sample Name\tVolume (uL)\tNanodrop\n" +
					"S1\t2.0\t298.9",
				Tables: []pdf.Table{{Rows: [][]string{
					{"Sample Name", "Volume (uL)", "Nanodrop"},
					{"S1", "2.0", "298.9"},
				}}},
			},
			{
				Index: 1,
				Text:  "Sample Name\tVolume (uL)\tNanodrop\nS2\tplenty\t12",
				Tables: []pdf.Table{{Rows: [][]string{
					{"Sample Name", "Volume (uL)", "Nanodrop"},
					{"S2", "plenty", "12"},
				}}},
			},
		},
	}
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestProcessor_Process_NewSubmission(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	now := time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC)
	p := NewProcessor(store, &fakeExtractor{doc: requestDocument()}, WithClock(fixedClock(now)))

	data := []byte("%PDF-1.4 request one")
	res, err := p.Process(ctx, data, Options{FileName: "request.pdf"})
	require.NoError(t, err)

	assert.Equal(t, StatusCreated, res.Status)
	sub := res.Submission
	assert.NotEmpty(t, sub.ID)
	assert.Equal(t, Fingerprint(data), sub.ContentHash)
	assert.Equal(t, "request.pdf", sub.SourceFileName)
	assert.Equal(t, int64(len(data)), sub.SourceSize)
	assert.Equal(t, now, sub.CreatedAt)
	assert.Equal(t, 2, sub.Document.PageCount)
	assert.Equal(t, "Nanopore request", sub.Document.Title)
	require.NotNil(t, sub.Fields.Requester)
	assert.Equal(t, "Jane Doe", *sub.Fields.Requester)
	require.NotNil(t, sub.Fields.Lab)
	assert.Equal(t, "Smith Lab", *sub.Fields.Lab)

	require.Len(t, res.Samples, 2)
	s1 := res.Samples[0]
	assert.Equal(t, sub.ID, s1.SubmissionID)
	assert.Equal(t, "S1", *s1.Name)
	assert.Equal(t, 2.0, *s1.VolumeUL)
	assert.Equal(t, 298.9, *s1.NanodropConcentration)
	assert.Equal(t, 0, s1.PageIndex)

	s2 := res.Samples[1]
	assert.Equal(t, 1, s2.PageIndex)
	assert.Nil(t, s2.VolumeUL, "unparseable volume is dropped")
	assert.Equal(t, 12.0, *s2.NanodropConcentration)

	assert.Equal(t, 1, res.Degraded.Count)
	assert.Equal(t, []string{"samples[1/0/1].volume_ul"}, res.Degraded.Fields)

	stored, err := store.ListSamples(ctx, sub.ID)
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func TestProcessor_Process_Idempotent(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	extractor := &fakeExtractor{doc: requestDocument()}
	p := NewProcessor(store, extractor)
	data := []byte("%PDF-1.4 same bytes")

	first, err := p.Process(ctx, data, Options{FileName: "a.pdf"})
	require.NoError(t, err)

	// a different file name with the same bytes is still the same submission
	second, err := p.Process(ctx, data, Options{FileName: "renamed.pdf"})
	require.NoError(t, err)

	assert.Equal(t, StatusAlreadyExists, second.Status)
	assert.Equal(t, first.Submission.ID, second.Submission.ID)
	assert.Equal(t, "a.pdf", second.Submission.SourceFileName)
	assert.Len(t, second.Samples, len(first.Samples))
	assert.Equal(t, int32(1), extractor.calls.Load(), "known content is not parsed again")

	list, err := store.List(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestProcessor_Process_Reprocess(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := created
	extractor := &fakeExtractor{doc: requestDocument()}
	p := NewProcessor(store, extractor, WithClock(func() time.Time { return clock }))
	data := []byte("%PDF-1.4 reprocess me")

	first, err := p.Process(ctx, data, Options{FileName: "a.pdf"})
	require.NoError(t, err)

	// hand edit a sample, then reprocess with a single-row document
	_, err = store.UpdateSample(ctx, submission.Sample{ID: first.Samples[0].ID, Name: ptr("edited")})
	require.NoError(t, err)

	extractor.doc = &pdf.Document{
		Info: pdf.Info{PageCount: 1},
		Pages: []pdf.Page{{Index: 0, Tables: []pdf.Table{{Rows: [][]string{
			{"Sample Name", "Volume (uL)"},
			{"S1", "5"},
		}}}}},
	}
	clock = created.Add(24 * time.Hour)

	res, err := p.Process(ctx, data, Options{Reprocess: true})
	require.NoError(t, err)

	assert.Equal(t, StatusReprocessed, res.Status)
	assert.Equal(t, first.Submission.ID, res.Submission.ID)
	assert.Equal(t, created, res.Submission.CreatedAt)
	assert.Equal(t, clock, res.Submission.UpdatedAt)
	assert.Equal(t, "a.pdf", res.Submission.SourceFileName, "missing file name keeps the stored one")

	stored, err := store.ListSamples(ctx, res.Submission.ID)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "S1", *stored[0].Name)
	assert.Nil(t, stored[0].EditedAt)
	assert.Equal(t, first.Samples[0].ID, stored[0].ID, "same provenance yields the same sample id")
}

func TestProcessor_Process_Unreadable(t *testing.T) {
	ctx := context.Background()
	store := memory.New()

	p := NewProcessor(store, &fakeExtractor{err: errors.New("boom")})
	_, err := p.Process(ctx, []byte("junk"), Options{FileName: "junk.pdf"})
	require.Error(t, err)
	assert.ErrorIs(t, err, pdferrors.ErrUnreadable)

	var pdfErr *pdferrors.PDFError
	require.True(t, errors.As(err, &pdfErr))
	assert.Equal(t, "junk.pdf", pdfErr.FilePath)

	list, err := store.List(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, list, "nothing is written for unreadable input")
}

func TestProcessor_Process_RealReaderRejectsGarbage(t *testing.T) {
	p := NewProcessor(memory.New(), pdf.NewReader(0))
	_, err := p.Process(context.Background(), []byte("not a pdf"), Options{})
	assert.ErrorIs(t, err, pdferrors.ErrUnreadable)
}

func TestProcessor_Process_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := NewProcessor(memory.New(), &fakeExtractor{doc: requestDocument()})
	_, err := p.Process(ctx, []byte("data"), Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestProcessor_Process_ConcurrentSameContent(t *testing.T) {
	stores := map[string]func(t *testing.T) Store{
		"memory": func(t *testing.T) Store { return memory.New() },
		"sqlite": func(t *testing.T) Store {
			s, err := sqlite.NewStore(filepath.Join(t.TempDir(), "slurper.db"))
			require.NoError(t, err)
			t.Cleanup(func() { s.Close() })
			return s
		},
	}

	for name, newStore := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := newStore(t)
			extractor := &fakeExtractor{doc: requestDocument()}
			p := NewProcessor(store, extractor)
			data := []byte("%PDF-1.4 raced")

			const imports = 10
			results := make([]*Result, imports)
			errs := make([]error, imports)
			var wg sync.WaitGroup
			for i := 0; i < imports; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					results[i], errs[i] = p.Process(ctx, data, Options{})
				}(i)
			}
			wg.Wait()

			created := 0
			for i := range results {
				require.NoError(t, errs[i])
				if results[i].Status == StatusCreated {
					created++
				}
				assert.Equal(t, results[0].Submission.ID, results[i].Submission.ID)
			}
			assert.Equal(t, 1, created)
			assert.Equal(t, int32(1), extractor.calls.Load())
			assert.Zero(t, p.locks.size(), "locks are released")
		})
	}
}

// racingStore lets another writer store the same content just before the
// first Save
type racingStore struct {
	*memory.Store
	raced bool
}

func (r *racingStore) Save(ctx context.Context, sub *submission.Submission, samples []submission.Sample) error {
	if !r.raced {
		r.raced = true
		winner := &submission.Submission{ID: "winner", ContentHash: sub.ContentHash, CreatedAt: sub.CreatedAt}
		if err := r.Store.Save(ctx, winner, nil); err != nil {
			return err
		}
	}
	return r.Store.Save(ctx, sub, samples)
}

func TestProcessor_Process_LostRaceRetries(t *testing.T) {
	store := &racingStore{Store: memory.New()}
	p := NewProcessor(store, &fakeExtractor{doc: requestDocument()})

	res, err := p.Process(context.Background(), []byte("%PDF-1.4 contested"), Options{})
	require.NoError(t, err)
	assert.Equal(t, StatusAlreadyExists, res.Status)
	assert.Equal(t, "winner", res.Submission.ID)
}

// conflictStore never finds the hash but always reports it taken
type conflictStore struct {
	*memory.Store
	saves atomic.Int32
}

func (c *conflictStore) Save(context.Context, *submission.Submission, []submission.Sample) error {
	c.saves.Add(1)
	return ErrDuplicateHash
}

func TestProcessor_Process_PersistentConflict(t *testing.T) {
	store := &conflictStore{Store: memory.New()}
	p := NewProcessor(store, &fakeExtractor{doc: requestDocument()})

	_, err := p.Process(context.Background(), []byte("%PDF-1.4 contested"), Options{FileName: "c.pdf"})
	require.Error(t, err)
	assert.ErrorIs(t, err, pdferrors.ErrConcurrentImport)
	assert.Equal(t, int32(2), store.saves.Load(), "one retry")
}

func TestProcessor_TwoProcessorsShareStore(t *testing.T) {
	ctx := context.Background()
	store, err := sqlite.NewStore(filepath.Join(t.TempDir(), "shared.db"))
	require.NoError(t, err)
	defer store.Close()

	a := NewProcessor(store, &fakeExtractor{doc: requestDocument()})
	b := NewProcessor(store, &fakeExtractor{doc: requestDocument()})
	data := []byte("%PDF-1.4 shared")

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, p := range []*Processor{a, b} {
		wg.Add(1)
		go func(i int, p *Processor) {
			defer wg.Done()
			_, errs[i] = p.Process(ctx, data, Options{})
		}(i, p)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	list, err := store.List(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func writeRequestPDF(t *testing.T, dir, name, requester string) string {
	t.Helper()
	cols := []float64{72, 220, 320}
	var page pdftest.Page
	page = append(page, pdftest.Row(740, cols, "Requester:", requester)...)
	page = append(page, pdftest.Row(728, cols, "Lab:", "Smith Lab")...)
	page = append(page, pdftest.Row(680, cols, "Sample Name", "Volume (uL)", "Qubit")...)
	page = append(page, pdftest.Row(668, cols, "S1", "2.0", "298.9")...)

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, pdftest.Build(page), 0o600))
	return path
}

func TestProcessor_ProcessFile(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := writeRequestPDF(t, dir, "request.pdf", "Jane Doe")

	p := NewProcessor(memory.New(), pdf.NewReader(0))
	res, err := p.ProcessFile(ctx, path, false)
	require.NoError(t, err)

	assert.Equal(t, StatusCreated, res.Status)
	assert.Equal(t, "request.pdf", res.Submission.SourceFileName)
	assert.False(t, res.Submission.SourceModTime.IsZero())
	require.NotNil(t, res.Submission.Fields.Requester)
	assert.Equal(t, "Jane Doe", *res.Submission.Fields.Requester)
	require.Len(t, res.Samples, 1)
	assert.Equal(t, "S1", *res.Samples[0].Name)
	assert.Equal(t, 298.9, *res.Samples[0].QubitConcentration)

	_, err = p.ProcessFile(ctx, filepath.Join(dir, "missing.pdf"), false)
	assert.Error(t, err)
}

func TestProcessor_ProcessFile_TooLarge(t *testing.T) {
	path := writeRequestPDF(t, t.TempDir(), "request.pdf", "Jane Doe")

	p := NewProcessor(memory.New(), pdf.NewReader(0), WithMaxFileSize(16))
	_, err := p.ProcessFile(context.Background(), path, false)
	assert.Error(t, err)
}

func TestProcessor_ProcessBatch(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	a := writeRequestPDF(t, dir, "a.pdf", "Jane Doe")
	b := writeRequestPDF(t, dir, "b.pdf", "John Roe")
	bad := filepath.Join(dir, "bad.pdf")
	require.NoError(t, os.WriteFile(bad, []byte("not a pdf"), 0o600))

	store := memory.New()
	p := NewProcessor(store, pdf.NewReader(0), WithWorkers(2))
	items := p.ProcessBatch(ctx, []string{a, bad, b, a}, false)

	require.Len(t, items, 4)
	assert.Equal(t, a, items[0].Path)
	require.NoError(t, items[0].Err)
	assert.ErrorIs(t, items[1].Err, pdferrors.ErrUnreadable)
	require.NoError(t, items[2].Err)
	require.NoError(t, items[3].Err)
	assert.Equal(t, items[0].Result.Submission.ID, items[3].Result.Submission.ID)

	list, err := store.List(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func ptr[T any](v T) *T { return &v }

func TestProcessor_Process_LabelBlockAboveTable(t *testing.T) {
	cols := []float64{72, 220, 320}
	var page pdftest.Page
	page = append(page, pdftest.Row(740, cols, "Requester:", "Jane Doe")...)
	page = append(page, pdftest.Row(728, cols, "Lab:", "Smith Lab")...)
	page = append(page, pdftest.Row(716, cols, "E-mail:", "jane@example.edu")...)
	page = append(page, pdftest.Row(704, cols, "Phone:", "555-0100")...)
	page = append(page, pdftest.Row(692, cols, "Sample Name", "Volume (uL)", "Qubit")...)
	page = append(page, pdftest.Row(680, cols, "S1", "2.0", "298.9")...)

	p := NewProcessor(memory.New(), pdf.NewReader(0))
	res, err := p.Process(context.Background(), pdftest.Build(page), Options{FileName: "request.pdf"})
	require.NoError(t, err)

	fields := res.Submission.Fields
	require.NotNil(t, fields.Requester)
	assert.Equal(t, "Jane Doe", *fields.Requester)
	require.NotNil(t, fields.Phone)
	assert.Equal(t, "555-0100", *fields.Phone, "phone value stops before the table header")

	require.Len(t, res.Samples, 1, "label rows sharing the table's columns do not hide the header")
	s1 := res.Samples[0]
	assert.Equal(t, "S1", *s1.Name)
	assert.Equal(t, 2.0, *s1.VolumeUL)
	assert.Equal(t, 298.9, *s1.QubitConcentration)
	assert.Equal(t, 0, res.Degraded.Count)
}

func TestProcessor_Process_TwoPageRequest(t *testing.T) {
	cols := []float64{72, 220, 340}
	var front, samples pdftest.Page
	front = append(front, pdftest.Row(740, cols, "Requester:", "Jane Doe")...)
	front = append(front, pdftest.Row(728, cols, "Lab:", "Smith Lab")...)
	samples = append(samples, pdftest.Row(740, cols, "Name", "Volume (uL)", "Nanodrop (ng/uL)")...)
	samples = append(samples, pdftest.Row(728, cols, "S1", "2.0", "298.9")...)

	p := NewProcessor(memory.New(), pdf.NewReader(0))
	res, err := p.Process(context.Background(), pdftest.Build(front, samples), Options{})
	require.NoError(t, err)

	assert.Equal(t, StatusCreated, res.Status)
	assert.Equal(t, 2, res.Submission.Document.PageCount)
	require.NotNil(t, res.Submission.Fields.Requester)
	assert.Equal(t, "Jane Doe", *res.Submission.Fields.Requester)
	require.NotNil(t, res.Submission.Fields.Lab)
	assert.Equal(t, "Smith Lab", *res.Submission.Fields.Lab)

	require.Len(t, res.Samples, 1)
	s1 := res.Samples[0]
	assert.Equal(t, "S1", *s1.Name)
	assert.Equal(t, 1, s1.PageIndex)
	require.NotNil(t, s1.VolumeUL)
	assert.Equal(t, 2.0, *s1.VolumeUL)
	require.NotNil(t, s1.NanodropConcentration)
	assert.Equal(t, 298.9, *s1.NanodropConcentration)
	assert.Equal(t, 0, res.Degraded.Count)
}

func TestProcessor_Process_ReprocessTwice(t *testing.T) {
	data := pdftest.Build(twoSamplePage())

	stores := map[string]func(t *testing.T) Store{
		"memory": func(t *testing.T) Store { return memory.New() },
		"sqlite": func(t *testing.T) Store {
			s, err := sqlite.NewStore(filepath.Join(t.TempDir(), "slurper.db"))
			require.NoError(t, err)
			t.Cleanup(func() { s.Close() })
			return s
		},
	}

	for name, newStore := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := newStore(t)
			p := NewProcessor(store, pdf.NewReader(0))

			first, err := p.Process(ctx, data, Options{Reprocess: true})
			require.NoError(t, err)
			assert.Equal(t, StatusCreated, first.Status, "reprocess of unknown content creates it")

			second, err := p.Process(ctx, data, Options{Reprocess: true})
			require.NoError(t, err)
			assert.Equal(t, StatusReprocessed, second.Status)
			assert.Equal(t, first.Submission.ID, second.Submission.ID)

			stored, err := store.ListSamples(ctx, first.Submission.ID)
			require.NoError(t, err)
			require.Len(t, stored, 2, "samples are replaced, not doubled")
			for i := range stored {
				assert.Equal(t, first.Samples[i].ID, stored[i].ID)
			}

			found, err := store.FindByContentHash(ctx, Fingerprint(data))
			require.NoError(t, err)
			assert.Equal(t, first.Submission.ID, found.ID)
		})
	}
}

func twoSamplePage() pdftest.Page {
	cols := []float64{72, 220, 320}
	var page pdftest.Page
	page = append(page, pdftest.Row(740, cols, "Requester:", "Jane Doe")...)
	page = append(page, pdftest.Row(680, cols, "Sample Name", "Volume (uL)", "Qubit")...)
	page = append(page, pdftest.Row(668, cols, "S1", "2.0", "298.9")...)
	page = append(page, pdftest.Row(656, cols, "S2", "3.5", "41")...)
	return page
}

func TestProcessor_Process_LogsIssueSummary(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	log := &logger.Logger{SugaredLogger: zap.New(core).Sugar()}

	p := NewProcessor(memory.New(), &fakeExtractor{doc: requestDocument()}, WithLogger(log))
	_, err := p.Process(context.Background(), []byte("%PDF-1.4 logged"), Options{FileName: "request.pdf"})
	require.NoError(t, err)

	entries := logs.FilterMessage("imported submission").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "Found 0 error(s) and 1 warning(s)", fields["issues"])
	assert.Equal(t, int64(1), fields["degraded"])
	assert.Equal(t, "created", fmt.Sprint(fields["status"]))
}
