package tables

import (
	"strings"
	"unicode"
)

// Column is a canonical sample-table column
type Column int

const (
	ColumnName Column = iota
	ColumnVolume
	ColumnQubitConcentration
	ColumnNanodropConcentration
	ColumnConcentration
	ColumnA260A280
	ColumnA260A230
)

var columnNames = map[Column]string{
	ColumnName:                  "name",
	ColumnVolume:                "volume_ul",
	ColumnQubitConcentration:    "qubit_ng_per_ul",
	ColumnNanodropConcentration: "nanodrop_ng_per_ul",
	ColumnConcentration:         "concentration_ng_per_ul",
	ColumnA260A280:              "a260_a280",
	ColumnA260A230:              "a260_a230",
}

// String returns the column's field name
func (c Column) String() string {
	if name, ok := columnNames[c]; ok {
		return name
	}
	return "unknown"
}

// headerRule maps a normalized header to a column. Rules are tried in order
// so specific instruments win over the generic concentration header and
// measurement headers win over the name column.
type headerRule struct {
	Column   Column
	Exact    []string
	Contains []string
	Words    []string
}

var headerRules = []headerRule{
	{Column: ColumnA260A280, Contains: []string{"260/280", "260 280", "a260/a280", "a260 a280"}},
	{Column: ColumnA260A230, Contains: []string{"260/230", "260 230", "a260/a230", "a260 a230"}},
	{Column: ColumnQubitConcentration, Contains: []string{"qubit"}},
	{Column: ColumnNanodropConcentration, Contains: []string{"nanodrop", "nano drop"}},
	{Column: ColumnVolume, Exact: []string{"ul"}, Words: []string{"volume", "vol"}},
	{Column: ColumnConcentration, Exact: []string{"ng/ul"}, Words: []string{"concentration", "conc"}},
	{
		Column: ColumnName,
		Exact:  []string{"name", "sample", "sample name", "sample id", "sample identifier", "id", "tube label"},
		Words:  []string{"name"},
	},
}

// NormalizeHeader lowercases, maps the micro sign and Greek mu to u, turns
// punctuation other than / into spaces and collapses whitespace
func NormalizeHeader(raw string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(raw) {
		switch {
		case r == 'µ' || r == 'μ':
			b.WriteRune('u')
		case r == '/':
			b.WriteRune(r)
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r > 127 && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// MatchHeader returns the column a normalized header maps to
func MatchHeader(normalized string) (Column, bool) {
	if normalized == "" {
		return 0, false
	}
	words := strings.FieldsFunc(normalized, func(r rune) bool { return r == ' ' || r == '/' })

	for _, rule := range headerRules {
		for _, exact := range rule.Exact {
			if normalized == exact {
				return rule.Column, true
			}
		}
		for _, sub := range rule.Contains {
			if strings.Contains(normalized, sub) {
				return rule.Column, true
			}
		}
		for _, w := range rule.Words {
			for _, word := range words {
				if word == w {
					return rule.Column, true
				}
			}
		}
	}
	return 0, false
}
