package extractor

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/aleister1102/tariffwatch/internal/config"
	"github.com/aleister1102/tariffwatch/internal/models"
)

// Drop reasons recorded by the tokenizer.
const (
	DropCompoundNumber = "compound_number"
	DropPercentage     = "percentage"
	DropParseError     = "parse_error"
)

// decimalPattern matches an integer part, a separator and a fractional part,
// optionally followed by a currency or unit marker.
var decimalPattern = regexp.MustCompile(
	`(?i)(\d+)[.,](\d{1,6})(\s*(?:c€|cts?\s*€?|€|eur(?:os?)?)?\s*(?:ht|ttc)?\s*(?:/\s*(?:kwh|mois|month|an)\b|kwh\b)?)?`,
)

// DroppedToken explains why a numeric-looking match did not become a token.
type DroppedToken struct {
	Raw    string `json:"raw"`
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

// Tokenizer scans text lines for decimal numbers and keeps a bounded window
// of neighbouring lines as context.
type Tokenizer struct {
	before int
	after  int
}

// NewTokenizer creates a tokenizer; negative windows fall back to the defaults.
func NewTokenizer(before, after int) *Tokenizer {
	if before < 0 {
		before = config.DefaultContextBefore
	}
	if after < 0 {
		after = config.DefaultContextAfter
	}
	return &Tokenizer{before: before, after: after}
}

// Tokenize returns the tokens in reading order and the matches it rejected.
func (t *Tokenizer) Tokenize(lines []string) ([]models.RawToken, []DroppedToken) {
	var tokens []models.RawToken
	var dropped []DroppedToken

	for i, line := range lines {
		for _, m := range decimalPattern.FindAllStringSubmatchIndex(line, -1) {
			start, end := m[0], m[1]
			numEnd := m[5]
			raw := strings.TrimSpace(line[start:end])

			if reason := t.rejectContext(line, start, numEnd); reason != "" {
				dropped = append(dropped, DroppedToken{Raw: raw, Line: i + 1, Reason: reason})
				continue
			}

			value, err := strconv.ParseFloat(line[m[2]:m[3]]+"."+line[m[4]:m[5]], 64)
			if err != nil {
				dropped = append(dropped, DroppedToken{Raw: raw, Line: i + 1, Reason: DropParseError})
				continue
			}

			unit := models.UnitNone
			if m[6] >= 0 {
				unit = normalizeUnit(line[m[6]:m[7]])
			}

			context, anchor := t.window(lines, i)
			tokens = append(tokens, models.RawToken{
				Value:    value,
				Raw:      raw,
				Unit:     unit,
				Context:  context,
				Anchor:   anchor,
				Line:     i + 1,
				Position: start,
			})
		}
	}
	return tokens, dropped
}

// rejectContext filters dates, version numbers and percentages that the
// decimal pattern alone cannot tell apart from prices.
func (t *Tokenizer) rejectContext(line string, start, numEnd int) string {
	if start > 0 {
		prev := line[start-1]
		if prev == '.' || prev == ',' || prev == '/' {
			return DropCompoundNumber
		}
	}
	if numEnd < len(line) {
		next := line[numEnd]
		if (next == '.' || next == ',' || next == '/') && numEnd+1 < len(line) && isDigit(line[numEnd+1]) {
			return DropCompoundNumber
		}
		if isDigit(next) {
			return DropCompoundNumber
		}
	}
	rest := strings.TrimLeft(line[numEnd:], " \u00a0")
	if strings.HasPrefix(rest, "%") {
		return DropPercentage
	}
	return ""
}

func (t *Tokenizer) window(lines []string, i int) ([]string, int) {
	from := max(0, i-t.before)
	to := min(len(lines), i+t.after+1)
	return append([]string(nil), lines[from:to]...), i - from
}

// normalizeUnit maps the printed marker onto one of the model unit constants.
func normalizeUnit(marker string) string {
	m := strings.ToLower(strings.Join(strings.Fields(marker), ""))
	if m == "" {
		return models.UnitNone
	}
	cents := strings.HasPrefix(m, "c€") || strings.HasPrefix(m, "ct")
	switch {
	case strings.HasSuffix(m, "/kwh") && cents:
		return models.UnitCentPerKWh
	case strings.HasSuffix(m, "/kwh"):
		return models.UnitEuroPerKWh
	case strings.HasSuffix(m, "/mois"), strings.HasSuffix(m, "/month"):
		return models.UnitEuroPerMon
	case strings.HasSuffix(m, "/an"):
		return models.UnitEuroPerYear
	case strings.HasSuffix(m, "kwh"):
		return models.UnitKWh
	case strings.Contains(m, "€"), strings.HasPrefix(m, "eur"):
		return models.UnitEuro
	default:
		return models.UnitNone
	}
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}
