// Package submission holds the domain model produced by the import pipeline:
// a Submission parsed from one request PDF and the Samples read from its
// measurement tables.
package submission

import (
	"errors"
	"time"
)

var (
	// ErrNotFound indicates a requested submission or sample does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateHash indicates a different submission already holds the content hash.
	ErrDuplicateHash = errors.New("content hash already stored")
)

// Submission is one parsed request PDF.
type Submission struct {
	ID string `json:"id"`

	// ContentHash is the hex sha256 of the raw file bytes and the only dedup key.
	ContentHash    string    `json:"content_hash"`
	SourceFileName string    `json:"source_file_name,omitempty"`
	SourceSize     int64     `json:"source_size"`
	SourceModTime  time.Time `json:"source_mod_time,omitempty"`

	Document DocumentInfo `json:"document"`
	Fields   Fields       `json:"fields"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DocumentInfo is the format-level metadata of the PDF container.
type DocumentInfo struct {
	Title        string `json:"title,omitempty"`
	Author       string `json:"author,omitempty"`
	Subject      string `json:"subject,omitempty"`
	Creator      string `json:"creator,omitempty"`
	Producer     string `json:"producer,omitempty"`
	CreationDate string `json:"creation_date,omitempty"`
	PageCount    int    `json:"page_count"`
}

// Fields is the form-level metadata. A nil pointer or nil slice means the
// label was not found; an empty string means the label was found with an
// explicitly blank value. Checkbox fields list only selected options, so an
// empty non-nil slice is a prompt with nothing selected. Slices are encoded
// without omitempty to keep that distinction through storage.
type Fields struct {
	Identifier         *string  `json:"identifier,omitempty"`
	AsOf               *string  `json:"as_of,omitempty"`
	ExpiresOn          *string  `json:"expires_on,omitempty"`
	ServiceRequested   *string  `json:"service_requested,omitempty"`
	Requester          *string  `json:"requester,omitempty"`
	RequesterEmail     *string  `json:"requester_email,omitempty"`
	Phone              *string  `json:"phone,omitempty"`
	Lab                *string  `json:"lab,omitempty"`
	BillingAddress     *string  `json:"billing_address,omitempty"`
	PIs                []string `json:"pis"`
	FinancialContacts  []string `json:"financial_contacts"`
	RequestSummary     *string  `json:"request_summary,omitempty"`
	FormsText          *string  `json:"forms_text,omitempty"`
	SourceOrganism     *string  `json:"source_organism,omitempty"`
	ContainsHumanDNA   *bool    `json:"contains_human_dna,omitempty"`
	GenomeSize         *string  `json:"genome_size,omitempty"`
	CoverageNeeded     *string  `json:"coverage_needed,omitempty"`
	FlowCellCount      *int     `json:"flow_cell_count,omitempty"`
	AdditionalComments *string  `json:"additional_comments,omitempty"`

	WillSubmitDNAFor []string `json:"will_submit_dna_for"`
	TypeOfSample     []string `json:"type_of_sample"`
	SampleBuffer     []string `json:"sample_buffer"`
	FlowCellType     []string `json:"flow_cell_type"`
	Basecalling      []string `json:"basecalling"`
	FileFormat       []string `json:"file_format"`
	DataDelivery     []string `json:"data_delivery"`
}

// Statistics summarizes the samples of one submission.
type Statistics struct {
	TotalSamples         int              `json:"total_samples"`
	QCStatus             map[QCStatus]int `json:"qc_status"`
	AverageConcentration *float64         `json:"average_concentration,omitempty"`
	AverageVolume        *float64         `json:"average_volume,omitempty"`
	AverageQualityScore  *float64         `json:"average_quality_score,omitempty"`
}

// ComputeStatistics summarizes samples. Samples without a QC result count as pending.
func ComputeStatistics(samples []Sample) Statistics {
	stats := Statistics{
		TotalSamples: len(samples),
		QCStatus:     make(map[QCStatus]int),
	}

	var concentrations, volumes, scores []float64
	for _, s := range samples {
		if s.QC != nil {
			stats.QCStatus[s.QC.Status]++
			if s.QC.Score != nil {
				scores = append(scores, *s.QC.Score)
			}
		} else {
			stats.QCStatus[QCPending]++
		}
		if c := s.BestConcentration(); c != nil {
			concentrations = append(concentrations, *c)
		}
		if s.VolumeUL != nil {
			volumes = append(volumes, *s.VolumeUL)
		}
	}

	stats.AverageConcentration = mean(concentrations)
	stats.AverageVolume = mean(volumes)
	stats.AverageQualityScore = mean(scores)
	return stats
}

func mean(values []float64) *float64 {
	if len(values) == 0 {
		return nil
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	avg := sum / float64(len(values))
	return &avg
}
