package market

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var numberRegex = regexp.MustCompile(`\d[\d\s.,']*`)

// ParsePrice extracts the amount from a price label such as "€576.78",
// "1 234,56 €" or "$1,299.99". When both separators appear the last one is
// the decimal separator; a lone separator followed by exactly three digits is
// a thousands separator.
func ParsePrice(raw string) (float64, bool) {
	raw = strings.NewReplacer("\u00a0", " ", "\u202f", " ").Replace(raw)

	match := strings.TrimSpace(numberRegex.FindString(raw))
	if match == "" {
		return 0, false
	}
	match = strings.NewReplacer(" ", "", "'", "").Replace(match)
	match = strings.TrimRight(match, ".,")

	lastDot := strings.LastIndex(match, ".")
	lastComma := strings.LastIndex(match, ",")

	var decimalSep byte
	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastDot > lastComma {
			decimalSep = '.'
		} else {
			decimalSep = ','
		}
	case lastDot >= 0:
		decimalSep = lonelySeparator(match, '.')
	case lastComma >= 0:
		decimalSep = lonelySeparator(match, ',')
	}

	var b strings.Builder
	for i := 0; i < len(match); i++ {
		ch := match[i]
		switch {
		case ch >= '0' && ch <= '9':
			b.WriteByte(ch)
		case ch == decimalSep && i == strings.LastIndexByte(match, decimalSep):
			b.WriteByte('.')
		}
	}

	value, err := strconv.ParseFloat(b.String(), 64)
	if err != nil {
		return 0, false
	}
	return value, true
}

// lonelySeparator decides whether the only kind of separator in s marks
// decimals. Repeated separators, or one followed by exactly three digits, are
// thousands separators.
func lonelySeparator(s string, sep byte) byte {
	if strings.Count(s, string(sep)) > 1 {
		return 0
	}
	if len(s)-strings.IndexByte(s, sep)-1 == 3 {
		return 0
	}
	return sep
}

// OutputFilename names the file a standalone filter run writes its results
// to, e.g. mix_graphic_card_rtx_3070_20251016_142501.json.
func OutputFilename(components, keywords []string, now time.Time) string {
	parts := []string{"mix"}
	parts = append(parts, slugs(normalizeComponents(components))...)
	parts = append(parts, slugs(normalizeKeywords(keywords))...)
	return fmt.Sprintf("%s_%s.json", strings.Join(parts, "_"), now.Format("20060102_150405"))
}

var slugRegex = regexp.MustCompile(`[^a-z0-9_]+`)

func slugs(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.Trim(slugRegex.ReplaceAllString(strings.ToLower(s), "-"), "-")
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
