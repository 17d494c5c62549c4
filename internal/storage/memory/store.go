// Package memory is an in-process Store used by tests and one-shot imports.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/a3tai/pdf-slurper/internal/submission"
)

// Store keeps submissions in maps guarded by a mutex. It enforces the same
// content hash uniqueness as the sqlite store.
type Store struct {
	mu          sync.RWMutex
	submissions map[string]submission.Submission
	byHash      map[string]string
	samples     map[string][]submission.Sample
	now         func() time.Time
}

// New creates an empty store
func New() *Store {
	return &Store{
		submissions: make(map[string]submission.Submission),
		byHash:      make(map[string]string),
		samples:     make(map[string][]submission.Sample),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) FindByContentHash(ctx context.Context, hash string) (*submission.Submission, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byHash[hash]
	if !ok {
		return nil, submission.ErrNotFound
	}
	sub := s.submissions[id]
	return &sub, nil
}

func (s *Store) Get(ctx context.Context, id string) (*submission.Submission, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	sub, ok := s.submissions[id]
	if !ok {
		return nil, submission.ErrNotFound
	}
	return &sub, nil
}

// List returns submissions newest first; limit <= 0 means all
func (s *Store) List(ctx context.Context, limit int) ([]submission.Submission, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]submission.Submission, 0, len(s.submissions))
	for _, sub := range s.submissions {
		out = append(out, sub)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) ListSamples(ctx context.Context, submissionID string) ([]submission.Sample, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.submissions[submissionID]; !ok {
		return nil, submission.ErrNotFound
	}
	return cloneSamples(s.samples[submissionID]), nil
}

// Save upserts sub and replaces its samples
func (s *Store) Save(ctx context.Context, sub *submission.Submission, samples []submission.Sample) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if owner, ok := s.byHash[sub.ContentHash]; ok && owner != sub.ID {
		return submission.ErrDuplicateHash
	}
	if prev, ok := s.submissions[sub.ID]; ok && prev.ContentHash != sub.ContentHash {
		delete(s.byHash, prev.ContentHash)
	}

	s.submissions[sub.ID] = *sub
	s.byHash[sub.ContentHash] = sub.ID
	s.samples[sub.ID] = cloneSamples(samples)
	return nil
}

// Delete removes a submission and its samples
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.submissions[id]
	if !ok {
		return submission.ErrNotFound
	}
	delete(s.byHash, sub.ContentHash)
	delete(s.submissions, id)
	delete(s.samples, id)
	return nil
}

// UpdateSample replaces the editable fields of a sample and stamps EditedAt
func (s *Store) UpdateSample(ctx context.Context, sample submission.Sample) (*submission.Sample, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	target, err := s.findSample(sample.ID)
	if err != nil {
		return nil, err
	}

	edited := s.now()
	target.Name = sample.Name
	target.VolumeUL = sample.VolumeUL
	target.QubitConcentration = sample.QubitConcentration
	target.NanodropConcentration = sample.NanodropConcentration
	target.Concentration = sample.Concentration
	target.A260A280 = sample.A260A280
	target.A260A230 = sample.A260A230
	target.Extra = cloneExtra(sample.Extra)
	if sample.Status != "" {
		target.Status = sample.Status
	}
	target.EditedAt = &edited

	out := cloneSamples([]submission.Sample{*target})[0]
	return &out, nil
}

// SaveQC records a quality evaluation on a sample
func (s *Store) SaveQC(ctx context.Context, sampleID string, qc submission.QCResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	target, err := s.findSample(sampleID)
	if err != nil {
		return err
	}
	qc.Issues = append([]string(nil), qc.Issues...)
	target.QC = &qc
	return nil
}

func (s *Store) findSample(id string) (*submission.Sample, error) {
	for subID, samples := range s.samples {
		for i := range samples {
			if samples[i].ID == id {
				return &s.samples[subID][i], nil
			}
		}
	}
	return nil, submission.ErrNotFound
}

func cloneSamples(in []submission.Sample) []submission.Sample {
	out := make([]submission.Sample, len(in))
	for i, s := range in {
		s.Extra = cloneExtra(s.Extra)
		if s.QC != nil {
			qc := *s.QC
			qc.Issues = append([]string(nil), qc.Issues...)
			s.QC = &qc
		}
		out[i] = s
	}
	return out
}

func cloneExtra(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
