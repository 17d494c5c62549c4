// Package export renders stored submissions for people and other tools.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/a3tai/pdf-slurper/internal/submission"
)

// Format names an export encoding
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// ParseFormat accepts "json" or "csv" in any case
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, FormatCSV:
		return f, nil
	case "":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unsupported export format %q (must be json or csv)", s)
	}
}

// Document is the JSON export of one submission
type Document struct {
	Submission submission.Submission `json:"submission"`
	Samples    []submission.Sample   `json:"samples"`
	Statistics submission.Statistics `json:"statistics"`
}

// Write encodes sub and samples to w in format
func Write(w io.Writer, format Format, sub *submission.Submission, samples []submission.Sample) error {
	switch format {
	case FormatJSON:
		return JSON(w, sub, samples)
	case FormatCSV:
		return CSV(w, samples)
	default:
		return fmt.Errorf("unsupported export format %q", format)
	}
}

// JSON writes the submission, its samples and their statistics as indented JSON
func JSON(w io.Writer, sub *submission.Submission, samples []submission.Sample) error {
	if samples == nil {
		samples = []submission.Sample{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(Document{
		Submission: *sub,
		Samples:    samples,
		Statistics: submission.ComputeStatistics(samples),
	})
}

var csvHeader = []string{
	"id", "submission_id", "page_index", "table_index", "row_index", "name",
	"volume_ul", "qubit_ng_per_ul", "nanodrop_ng_per_ul", "concentration_ng_per_ul",
	"a260_a280", "a260_a230", "status", "qc_status",
}

// CSV writes one row per sample. Absent measurements are empty cells. Extra
// cells become trailing columns named after their source header, in sorted
// order across all samples.
func CSV(w io.Writer, samples []submission.Sample) error {
	extras := extraColumns(samples)

	writer := csv.NewWriter(w)
	if err := writer.Write(append(append([]string(nil), csvHeader...), extras...)); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for _, s := range samples {
		qc := ""
		if s.QC != nil {
			qc = string(s.QC.Status)
		}
		record := []string{
			s.ID,
			s.SubmissionID,
			strconv.Itoa(s.PageIndex),
			strconv.Itoa(s.TableIndex),
			strconv.Itoa(s.RowIndex),
			stringCell(s.Name),
			floatCell(s.VolumeUL),
			floatCell(s.QubitConcentration),
			floatCell(s.NanodropConcentration),
			floatCell(s.Concentration),
			floatCell(s.A260A280),
			floatCell(s.A260A230),
			string(s.Status),
			qc,
		}
		for _, key := range extras {
			record = append(record, s.Extra[key])
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("write sample %s: %w", s.ID, err)
		}
	}

	writer.Flush()
	return writer.Error()
}

func extraColumns(samples []submission.Sample) []string {
	seen := make(map[string]bool)
	var keys []string
	for _, s := range samples {
		for k := range s.Extra {
			if !seen[k] {
				seen[k] = true
				keys = append(keys, k)
			}
		}
	}
	sort.Strings(keys)
	return keys
}

func stringCell(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func floatCell(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}
