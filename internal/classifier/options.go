package classifier

import (
	"regexp"

	"github.com/aleister1102/tariffwatch/internal/config"
)

// Tariff options.
const (
	OptionBase          = "Base"
	OptionHeuresCreuses = "Heures Creuses"
	OptionHeuresPleines = "Heures Pleines"
	OptionSoirWeekEnd   = "Soir & Week-end"
	OptionTempo         = "Tempo"
)

// optionKeywords is checked in order; the first hit on a line wins.
var optionKeywords = []struct {
	re     *regexp.Regexp
	option string
}{
	{regexp.MustCompile(`\btempo\b`), OptionTempo},
	{regexp.MustCompile(`soir\s*(&|et)?\s*week\s*-?\s*end|\bweek\s*-?\s*end\b`), OptionSoirWeekEnd},
	{regexp.MustCompile(`heures?\s+creuses?|\bhc\b`), OptionHeuresCreuses},
	{regexp.MustCompile(`heures?\s+pleines?|\bhp\b`), OptionHeuresPleines},
	{regexp.MustCompile(`\bbase\b`), OptionBase},
}

// detectOption looks for an option keyword on the anchor line, then on the
// line right above it.
func detectOption(lines []string, anchor int) string {
	for _, i := range []int{anchor, anchor - 1} {
		if i < 0 || i >= len(lines) {
			continue
		}
		folded := config.FoldLabel(lines[i])
		for _, kw := range optionKeywords {
			if kw.re.MatchString(folded) {
				return kw.option
			}
		}
	}
	return ""
}

// optionFromRange applies the configured value ranges to an energy price.
func optionFromRange(value float64, ranges []config.OptionRangeConfig) string {
	for _, r := range ranges {
		if r.Band.Contains(value) {
			return r.Option
		}
	}
	return ""
}
