package classifier

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/aleister1102/tariffwatch/internal/config"
	"github.com/rs/zerolog"
)

type offerRule struct {
	re         *regexp.Regexp
	canonical  string
	confidence float64
}

// OfferMatch is the result of matching a label against the alias table.
type OfferMatch struct {
	Label      string
	Canonical  string
	Confidence float64
}

// OfferMatcher canonicalizes free-text offer labels.
type OfferMatcher struct {
	rules []offerRule
}

// NewOfferMatcher compiles rules case-insensitively. Invalid patterns are
// skipped and logged; configuration validation rejects them earlier.
func NewOfferMatcher(rules []config.OfferRule, logger zerolog.Logger) *OfferMatcher {
	m := &OfferMatcher{}
	for _, r := range rules {
		re, err := regexp.Compile("(?i)" + r.Pattern)
		if err != nil {
			logger.Warn().Err(err).Str("pattern", r.Pattern).Msg("Skipping invalid offer rule")
			continue
		}
		m.rules = append(m.rules, offerRule{re: re, canonical: r.Canonical, confidence: r.Confidence})
	}
	return m
}

// Match returns the highest-confidence rule matching label. Without a match
// the canonical name is empty and the confidence 0.
func (m *OfferMatcher) Match(label string) OfferMatch {
	folded := config.FoldLabel(label)
	best := OfferMatch{Label: strings.TrimSpace(label)}
	for _, r := range m.rules {
		if r.re.MatchString(folded) && (best.Canonical == "" || r.confidence > best.Confidence) {
			best.Canonical = r.canonical
			best.Confidence = r.confidence
		}
	}
	return best
}

// FindIn looks for an offer name in lines, starting at the anchor line and
// walking up towards headings, then down. Rules match the folded line; the
// label of a hit is the matching span of the original line.
func (m *OfferMatcher) FindIn(lines []string, anchor int) (OfferMatch, bool) {
	for _, i := range searchOrder(len(lines), anchor) {
		fl := foldLine(lines[i])
		var best OfferMatch
		found := false
		for _, r := range m.rules {
			loc := r.re.FindStringIndex(fl.text)
			if loc == nil || loc[0] == loc[1] {
				continue
			}
			if !found || r.confidence > best.Confidence {
				label := strings.TrimSpace(lines[i][fl.starts[loc[0]]:fl.ends[loc[1]-1]])
				best = OfferMatch{Label: label, Canonical: r.canonical, Confidence: r.confidence}
				found = true
			}
		}
		if found {
			return best, true
		}
	}
	return OfferMatch{}, false
}

// searchOrder returns anchor, the lines above it nearest first, then the
// lines below it nearest first.
func searchOrder(n, anchor int) []int {
	if anchor < 0 || anchor >= n {
		anchor = 0
	}
	order := make([]int, 0, n)
	for i := anchor; i >= 0; i-- {
		order = append(order, i)
	}
	for i := anchor + 1; i < n; i++ {
		order = append(order, i)
	}
	return order
}

// foldedLine is a folded line with, for every byte of text, the byte range
// of the original rune it came from.
type foldedLine struct {
	text   string
	starts []int
	ends   []int
}

// foldLine folds s like config.FoldLabel, one rune at a time.
func foldLine(s string) foldedLine {
	var (
		b       strings.Builder
		fl      foldedLine
		pending = -1
	)
	emit := func(part string, start, end int) {
		b.WriteString(part)
		for range len(part) {
			fl.starts = append(fl.starts, start)
			fl.ends = append(fl.ends, end)
		}
	}
	for i, r := range s {
		_, width := utf8.DecodeRuneInString(s[i:])
		end := i + width
		if unicode.IsSpace(r) {
			if b.Len() > 0 && pending < 0 {
				pending = i
			}
			continue
		}
		part := config.FoldLabel(string(r))
		if part == "" {
			// a combining mark belongs to the rune before it
			for j := len(fl.ends) - 1; j >= 0 && fl.ends[j] == i; j-- {
				fl.ends[j] = end
			}
			continue
		}
		if pending >= 0 {
			emit(" ", pending, pending+1)
			pending = -1
		}
		emit(part, i, end)
	}
	fl.text = b.String()
	return fl
}
