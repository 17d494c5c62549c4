// Package normalize converts raw cell and field strings extracted from PDFs into
// typed values. Every numeric-looking string in the system is interpreted here.
// A value that cannot be interpreted becomes nil; nothing in this package returns
// an error or has side effects.
package normalize

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// numberPattern accepts plain digits or comma-grouped thousands, an optional
// fraction and an optional exponent.
var numberPattern = regexp.MustCompile(`^[+-]?(?:\d{1,3}(?:,\d{3})+|\d+)?(?:\.\d+)?(?:[eE][+-]?\d+)?$`)

// unitSuffixes are the unit tokens tolerated around a number, longest first so
// that "ng/ul" is stripped before "ul".
var unitSuffixes = []string{
	"ng/ul", "ng/µl", "ng/μl",
	"µl", "μl", "ul", "ml",
	"ng", "ug", "µg", "μg",
	"bp", "kb", "mb", "gb",
	"x", "%",
}

// unitPrefixes are the units a form may write ahead of the number ("ng/uL 35")
var unitPrefixes = []string{
	"ng/ul", "ng/µl", "ng/μl",
	"µl", "μl", "ul", "ml",
	"ng", "ug", "µg", "μg",
}

// Float parses raw as a decimal number. Surrounding whitespace, one known unit
// before or after the number and thousands separators are removed first; any
// other residue yields nil.
func Float(raw string) *float64 {
	s := cleanNumeric(raw)
	if s == "" {
		return nil
	}

	s = stripUnit(s)
	if s == "" || s == "+" || s == "-" || s == "." {
		return nil
	}
	if !numberPattern.MatchString(s) {
		return nil
	}

	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// Int parses raw as a whole number using the Float rules.
func Int(raw string) *int {
	f := Float(raw)
	if f == nil || *f != math.Trunc(*f) || math.Abs(*f) > math.MaxInt32 {
		return nil
	}
	v := int(*f)
	return &v
}

var (
	affirmative = map[string]bool{
		"yes": true, "y": true, "true": true, "t": true, "1": true,
		"x": true, "checked": true, "positive": true,
	}
	negative = map[string]bool{
		"no": true, "n": true, "false": true, "f": true, "0": true,
		"none": true, "negative": true, "unchecked": true,
	}
)

// Bool maps a small affirmative/negative vocabulary to a tri-state value.
// Anything outside the vocabulary is unknown (nil), never false.
func Bool(raw string) *bool {
	key := strings.ToLower(strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(raw), ".")))
	switch {
	case affirmative[key]:
		v := true
		return &v
	case negative[key]:
		v := false
		return &v
	default:
		return nil
	}
}

// Enum returns the canonical value for raw from vocab, which maps lower-case
// synonyms to canonical values. Unknown strings yield nil.
func Enum(raw string, vocab map[string]string) *string {
	key := strings.Join(strings.Fields(strings.ToLower(raw)), " ")
	if key == "" {
		return nil
	}
	if v, ok := vocab[key]; ok {
		return &v
	}
	return nil
}

func cleanNumeric(raw string) string {
	s := strings.Map(func(r rune) rune {
		switch r {
		case '\u00a0', '\u2009', '\u202f':
			return ' '
		case '\u2212':
			return '-'
		}
		return r
	}, raw)
	s = strings.TrimSpace(s)
	// a space between number and unit is common ("2.0 uL")
	return strings.Join(strings.Fields(s), "")
}

func stripUnit(s string) string {
	lower := strings.ToLower(s)
	for _, unit := range unitSuffixes {
		if strings.HasSuffix(lower, unit) {
			return lower[:len(lower)-len(unit)]
		}
	}
	for _, unit := range unitPrefixes {
		if strings.HasPrefix(lower, unit) {
			return lower[len(unit):]
		}
	}
	return lower
}
