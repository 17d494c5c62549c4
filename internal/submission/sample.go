package submission

import (
	"fmt"
	"math"
	"time"
)

// Sample is one row of a measurement table, owned by exactly one Submission.
// PageIndex, TableIndex and RowIndex are 0-based positions in document order and
// together identify the row within one parse.
type Sample struct {
	ID           string `json:"id"`
	SubmissionID string `json:"submission_id"`
	PageIndex    int    `json:"page_index"`
	TableIndex   int    `json:"table_index"`
	RowIndex     int    `json:"row_index"`

	Name *string `json:"name,omitempty"`

	// Measurements. nil means not present in the source, distinct from 0.
	VolumeUL              *float64 `json:"volume_ul,omitempty"`
	QubitConcentration    *float64 `json:"qubit_ng_per_ul,omitempty"`
	NanodropConcentration *float64 `json:"nanodrop_ng_per_ul,omitempty"`
	Concentration         *float64 `json:"concentration_ng_per_ul,omitempty"`
	A260A280              *float64 `json:"a260_a280,omitempty"`
	A260A230              *float64 `json:"a260_a230,omitempty"`

	// Extra keeps cells of headers outside the sample vocabulary.
	Extra map[string]string `json:"extra,omitempty"`

	Status   WorkflowStatus `json:"status"`
	QC       *QCResult      `json:"qc,omitempty"`
	EditedAt *time.Time     `json:"edited_at,omitempty"`
}

// BestConcentration prefers the fluorometric reading, then spectrophotometric,
// then an untagged one.
func (s Sample) BestConcentration() *float64 {
	switch {
	case s.QubitConcentration != nil:
		return s.QubitConcentration
	case s.NanodropConcentration != nil:
		return s.NanodropConcentration
	default:
		return s.Concentration
	}
}

// WorkflowStatus tracks a sample through the lab.
type WorkflowStatus string

const (
	StatusReceived   WorkflowStatus = "received"
	StatusProcessing WorkflowStatus = "processing"
	StatusSequenced  WorkflowStatus = "sequenced"
	StatusCompleted  WorkflowStatus = "completed"
	StatusFailed     WorkflowStatus = "failed"
	StatusOnHold     WorkflowStatus = "on_hold"
)

var workflowStatuses = []WorkflowStatus{
	StatusReceived, StatusProcessing, StatusSequenced, StatusCompleted, StatusFailed, StatusOnHold,
}

// ParseWorkflowStatus accepts a status name such as "on_hold"
func ParseWorkflowStatus(s string) (WorkflowStatus, error) {
	for _, status := range workflowStatuses {
		if string(status) == s {
			return status, nil
		}
	}
	return "", fmt.Errorf("unknown workflow status %q", s)
}

// QCStatus is the outcome of a quality check.
type QCStatus string

const (
	QCPending QCStatus = "pending"
	QCPassed  QCStatus = "passed"
	QCWarning QCStatus = "warning"
	QCFailed  QCStatus = "failed"
)

// QCThresholds are the minimums a sample must meet.
type QCThresholds struct {
	MinConcentration float64 `json:"min_concentration"`
	MinVolume        float64 `json:"min_volume"`
	MinQualityRatio  float64 `json:"min_quality_ratio"`
}

// DefaultQCThresholds returns the facility defaults: 10 ng/uL, 20 uL, A260/A280 1.8.
func DefaultQCThresholds() QCThresholds {
	return QCThresholds{
		MinConcentration: 10.0,
		MinVolume:        20.0,
		MinQualityRatio:  1.8,
	}
}

// QCResult records one quality evaluation.
type QCResult struct {
	Status              QCStatus  `json:"status"`
	Score               *float64  `json:"score,omitempty"`
	Issues              []string  `json:"issues,omitempty"`
	PassedConcentration bool      `json:"passed_concentration"`
	PassedVolume        bool      `json:"passed_volume"`
	PassedQualityRatio  bool      `json:"passed_quality_ratio"`
	EvaluatedAt         time.Time `json:"evaluated_at"`
	EvaluatedBy         string    `json:"evaluated_by,omitempty"`
}

// EvaluateQC checks concentration, volume and purity against th. A missing
// measurement counts as an issue. No issues passes, one issue warns and two or
// more fail.
func (s Sample) EvaluateQC(th QCThresholds, evaluator string, now time.Time) QCResult {
	res := QCResult{EvaluatedAt: now, EvaluatedBy: evaluator}
	var components []float64

	if c := s.BestConcentration(); c != nil {
		res.PassedConcentration = *c >= th.MinConcentration
		if !res.PassedConcentration {
			res.Issues = append(res.Issues, fmt.Sprintf("low concentration: %g ng/uL", *c))
		}
		components = append(components, passScore(res.PassedConcentration))
	} else {
		res.Issues = append(res.Issues, "no concentration measurement")
	}

	if s.VolumeUL != nil {
		res.PassedVolume = *s.VolumeUL >= th.MinVolume
		if !res.PassedVolume {
			res.Issues = append(res.Issues, fmt.Sprintf("low volume: %g uL", *s.VolumeUL))
		}
		components = append(components, passScore(res.PassedVolume))
	} else {
		res.Issues = append(res.Issues, "no volume measurement")
	}

	if s.A260A280 != nil {
		res.PassedQualityRatio = *s.A260A280 >= th.MinQualityRatio
		if !res.PassedQualityRatio {
			res.Issues = append(res.Issues, fmt.Sprintf("poor A260/A280 ratio: %g", *s.A260A280))
		}
		// 1.5 scores 0, 2.0 and above score 100
		components = append(components, math.Min(100, math.Max(0, (*s.A260A280-1.5)/0.5*100)))
	} else {
		res.Issues = append(res.Issues, "no quality ratio measurement")
	}

	if len(components) > 0 {
		var sum float64
		for _, c := range components {
			sum += c
		}
		score := sum / float64(len(components))
		res.Score = &score
	}

	switch len(res.Issues) {
	case 0:
		res.Status = QCPassed
	case 1:
		res.Status = QCWarning
	default:
		res.Status = QCFailed
	}
	return res
}

func passScore(passed bool) float64 {
	if passed {
		return 100
	}
	return 0
}
