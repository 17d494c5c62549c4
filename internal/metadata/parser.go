// Package metadata reads the form-level fields of a request PDF from its
// page text.
package metadata

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/a3tai/pdf-slurper/internal/normalize"
	pdferrors "github.com/a3tai/pdf-slurper/internal/pdf/errors"
	"github.com/a3tai/pdf-slurper/internal/submission"
)

// checkboxSectionLimit caps how many segments a checkbox prompt may claim
// when no later label closes its section
const checkboxSectionLimit = 40

// token is one tab-separated segment of a text line, or a boundary marker
// for a blank line or page break
type token struct {
	text     string
	line     int
	boundary bool
}

// hit is a segment recognized as a label
type hit struct {
	index  int
	rule   *rule
	inline string
}

// Parse extracts Fields from the text of each page, in page order. Values
// that were present but could not be typed are left nil and reported in the
// returned collection.
func Parse(pages []string) (submission.Fields, *pdferrors.ErrorCollection) {
	var fields submission.Fields
	errs := pdferrors.NewErrorCollection("")

	tokens := tokenize(pages)
	hits := findLabels(tokens)

	isLabel := make(map[int]bool, len(hits))
	for _, h := range hits {
		isLabel[h.index] = true
	}

	seen := make(map[Field]bool)
	for _, h := range hits {
		if seen[h.rule.Field] {
			continue
		}
		seen[h.rule.Field] = true

		switch h.rule.Kind {
		case kindCheckbox:
			section, marked := sectionText(tokens, h, isLabel)
			setList(&fields, h.rule.Field, checkboxValues(h.rule, section, marked))
		case kindBool:
			section, marked := sectionText(tokens, h, isLabel)
			value := captureValue(tokens, h, isLabel)
			fields.ContainsHumanDNA = boolValue(h.rule, section, marked, value, errs)
		case kindInt:
			value := captureValue(tokens, h, isLabel)
			if value == "" {
				continue
			}
			n := normalize.Int(value)
			if n == nil {
				errs.Add(pdferrors.Degraded(h.rule.Field.String(), value))
			}
			fields.FlowCellCount = n
		case kindList:
			setList(&fields, h.rule.Field, splitList(captureValue(tokens, h, isLabel)))
		default:
			setText(&fields, h.rule.Field, captureValue(tokens, h, isLabel))
		}
	}

	return fields, errs
}

// tokenize splits page text into segments. Consecutive blank lines and page
// ends collapse into a single boundary.
func tokenize(pages []string) []token {
	var tokens []token
	lineNo := 0

	addBoundary := func() {
		if len(tokens) > 0 && !tokens[len(tokens)-1].boundary {
			tokens = append(tokens, token{boundary: true, line: lineNo})
		}
	}

	for _, page := range pages {
		for _, line := range strings.Split(page, "\n") {
			lineNo++
			if strings.TrimSpace(line) == "" {
				addBoundary()
				continue
			}
			for _, seg := range strings.Split(line, "\t") {
				if seg = collapse(seg); seg != "" {
					tokens = append(tokens, token{text: seg, line: lineNo})
				}
			}
		}
		addBoundary()
	}
	return tokens
}

func findLabels(tokens []token) []hit {
	var hits []hit
	for i, tok := range tokens {
		if tok.boundary {
			continue
		}
		if r, inline, ok := matchLabel(tok.text); ok {
			hits = append(hits, hit{index: i, rule: r, inline: inline})
		}
	}
	return hits
}

// matchLabel reports whether segment is a known label, either alone or
// followed by a colon (or question mark) and an inline value. Spaces may
// separate the label from its colon.
func matchLabel(segment string) (*rule, string, bool) {
	for i := range rules {
		for _, label := range rules[i].Labels {
			if len(segment) < len(label) || !strings.EqualFold(segment[:len(label)], label) {
				continue
			}
			rest := strings.TrimLeft(segment[len(label):], " ")
			if rest == "" {
				return &rules[i], "", true
			}
			if rest[0] != ':' && rest[0] != '?' {
				continue
			}
			rest = strings.TrimLeft(rest, ":? ")
			return &rules[i], strings.TrimSpace(rest), true
		}
	}
	return nil, "", false
}

// captureValue returns the inline value followed by the segments after the
// label, up to the next label or boundary. A later line of several segments
// is a table row and also ends the value. Segments on one line join with a
// space and lines join with a newline.
func captureValue(tokens []token, h hit, isLabel map[int]bool) string {
	var b strings.Builder
	b.WriteString(h.inline)

	prevLine := tokens[h.index].line
	for j := h.index + 1; j < len(tokens); j++ {
		tok := tokens[j]
		if tok.boundary || isLabel[j] {
			break
		}
		if tok.line != prevLine && segmentsOnLine(tokens, j) > 1 {
			break
		}
		if b.Len() > 0 {
			if tok.line == prevLine {
				b.WriteByte(' ')
			} else {
				b.WriteByte('\n')
			}
		}
		b.WriteString(tok.text)
		prevLine = tok.line
	}
	return b.String()
}

// segmentsOnLine counts the segments of the line that starts at tokens[start]
func segmentsOnLine(tokens []token, start int) int {
	n := 0
	for j := start; j < len(tokens) && !tokens[j].boundary && tokens[j].line == tokens[start].line; j++ {
		n++
	}
	return n
}

// sectionText joins everything from the prompt to the next label, crossing
// blank lines. marked reports whether any box or mark appears in it.
func sectionText(tokens []token, h hit, isLabel map[int]bool) (string, bool) {
	parts := []string{h.inline}
	for j, n := h.index+1, 0; j < len(tokens) && n < checkboxSectionLimit; j++ {
		if isLabel[j] {
			break
		}
		if tokens[j].boundary {
			continue
		}
		parts = append(parts, tokens[j].text)
		n++
	}
	section := strings.TrimSpace(strings.Join(parts, " "))
	return section, indexAny(section, checkedMarks) >= 0 || indexAny(section, emptyBoxes) >= 0
}

// checkboxValues lists the selected options in vocabulary order. A section
// without any boxes is read as a plain list of option names.
func checkboxValues(r *rule, section string, marked bool) []string {
	selected := make([]string, 0, len(r.Options))
	if !marked {
		vocab := optionVocabulary(r)
		for _, part := range splitList(section) {
			if v := normalize.Enum(part, vocab); v != nil && !contains(selected, *v) {
				selected = append(selected, *v)
			}
		}
		return selected
	}

	before := marksPrecedeOptions(r, section)
	for _, opt := range r.Options {
		if optionSelected(section, opt, before) {
			selected = append(selected, opt.Value)
		}
	}
	return selected
}

func boolValue(r *rule, section string, marked bool, value string, errs *pdferrors.ErrorCollection) *bool {
	if marked {
		selected := checkboxValues(r, section, true)
		if len(selected) == 1 {
			return normalize.Bool(selected[0])
		}
		if len(selected) > 1 {
			errs.Add(pdferrors.Degraded(r.Field.String(), section))
		}
		return nil
	}

	if value == "" {
		return nil
	}
	v := normalize.Bool(value)
	if v == nil {
		errs.Add(pdferrors.Degraded(r.Field.String(), value))
	}
	return v
}

// marksPrecedeOptions decides the form's layout from whichever comes first
// in the section, a box or an option name
func marksPrecedeOptions(r *rule, section string) bool {
	firstBox := indexAny(section, append(append([]string{}, checkedMarks...), emptyBoxes...))
	firstOption := -1
	for _, opt := range r.Options {
		for _, alias := range opt.Aliases {
			if i, _ := findWord(section, alias, 0); i >= 0 && (firstOption < 0 || i < firstOption) {
				firstOption = i
			}
		}
	}
	if firstOption < 0 {
		return true
	}
	return firstBox >= 0 && firstBox < firstOption
}

func optionSelected(section string, opt option, marksBefore bool) bool {
	for _, alias := range opt.Aliases {
		from := 0
		for {
			start, end := findWord(section, alias, from)
			if start < 0 {
				break
			}
			if marksBefore {
				if hasSuffixAny(strings.TrimRightFunc(section[:start], unicode.IsSpace), checkedMarks) {
					return true
				}
			} else if hasPrefixAny(strings.TrimLeftFunc(section[end:], unicode.IsSpace), checkedMarks) {
				return true
			}
			from = end
		}
	}
	return false
}

// findWord finds alias case-insensitively at or after from, not embedded in
// a longer word
func findWord(s, alias string, from int) (int, int) {
	lower := strings.ToLower(s)
	needle := strings.ToLower(alias)
	if len(lower) != len(s) {
		lower = asciiLower(s)
	}
	for from <= len(s) {
		i := strings.Index(lower[from:], needle)
		if i < 0 {
			return -1, -1
		}
		start, end := from+i, from+i+len(needle)
		if wordEdge(s, start, true) && wordEdge(s, end, false) {
			return start, end
		}
		from = start + 1
	}
	return -1, -1
}

func wordEdge(s string, at int, before bool) bool {
	var r rune
	if before {
		if at == 0 {
			return true
		}
		r, _ = utf8.DecodeLastRuneInString(s[:at])
	} else {
		if at >= len(s) {
			return true
		}
		r, _ = utf8.DecodeRuneInString(s[at:])
	}
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

func asciiLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

func optionVocabulary(r *rule) map[string]string {
	vocab := make(map[string]string)
	for _, opt := range r.Options {
		vocab[strings.ToLower(opt.Value)] = opt.Value
		for _, alias := range opt.Aliases {
			vocab[strings.ToLower(alias)] = opt.Value
		}
	}
	return vocab
}

func splitList(value string) []string {
	parts := strings.FieldsFunc(value, func(r rune) bool {
		return r == ',' || r == ';' || r == '\n'
	})
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func setText(fields *submission.Fields, f Field, value string) {
	v := &value
	switch f {
	case FieldIdentifier:
		fields.Identifier = v
	case FieldAsOf:
		fields.AsOf = v
	case FieldExpiresOn:
		fields.ExpiresOn = v
	case FieldServiceRequested:
		fields.ServiceRequested = v
	case FieldRequester:
		fields.Requester = v
	case FieldRequesterEmail:
		fields.RequesterEmail = v
	case FieldPhone:
		fields.Phone = v
	case FieldLab:
		fields.Lab = v
	case FieldBillingAddress:
		fields.BillingAddress = v
	case FieldRequestSummary:
		fields.RequestSummary = v
	case FieldForms:
		fields.FormsText = v
	case FieldSourceOrganism:
		fields.SourceOrganism = v
	case FieldGenomeSize:
		fields.GenomeSize = v
	case FieldCoverageNeeded:
		fields.CoverageNeeded = v
	case FieldAdditionalComments:
		fields.AdditionalComments = v
	}
}

func setList(fields *submission.Fields, f Field, values []string) {
	switch f {
	case FieldPIs:
		fields.PIs = values
	case FieldFinancialContacts:
		fields.FinancialContacts = values
	case FieldWillSubmitDNAFor:
		fields.WillSubmitDNAFor = values
	case FieldTypeOfSample:
		fields.TypeOfSample = values
	case FieldSampleBuffer:
		fields.SampleBuffer = values
	case FieldFlowCellType:
		fields.FlowCellType = values
	case FieldBasecalling:
		fields.Basecalling = values
	case FieldFileFormat:
		fields.FileFormat = values
	case FieldDataDelivery:
		fields.DataDelivery = values
	}
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func indexAny(s string, needles []string) int {
	first := -1
	for _, n := range needles {
		if i := strings.Index(s, n); i >= 0 && (first < 0 || i < first) {
			first = i
		}
	}
	return first
}

func hasSuffixAny(s string, suffixes []string) bool {
	for _, suffix := range suffixes {
		if strings.HasSuffix(s, suffix) {
			return true
		}
	}
	return false
}

func hasPrefixAny(s string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if strings.HasPrefix(s, prefix) {
			return true
		}
	}
	return false
}

func contains(values []string, v string) bool {
	for _, existing := range values {
		if existing == v {
			return true
		}
	}
	return false
}
