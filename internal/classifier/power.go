package classifier

import (
	"math"
	"regexp"
	"sort"
	"strconv"
)

var kvaMarker = regexp.MustCompile(`(?i)\b(\d{1,2})\s*kva\b`)

// PowerTiers maps subscription prices onto power tiers, assuming providers
// price monotonically by power.
type PowerTiers struct {
	clusters []float64
	catalog  []int
}

// InferPowerTiers rounds prices to cents, merges values within tolerance,
// sorts them ascending and pairs the n-th distinct price with the n-th
// catalog entry. Surplus prices get no tier.
func InferPowerTiers(prices []float64, catalog []int, tolerance float64) *PowerTiers {
	rounded := make([]float64, 0, len(prices))
	for _, p := range prices {
		rounded = append(rounded, math.Round(p*100)/100)
	}
	sort.Float64s(rounded)

	var clusters []float64
	for _, p := range rounded {
		if len(clusters) > 0 && p-clusters[len(clusters)-1] <= tolerance+1e-9 {
			continue
		}
		clusters = append(clusters, p)
	}
	return &PowerTiers{clusters: clusters, catalog: catalog}
}

// TierOf returns the tier of the cluster nearest to price, or nil when that
// cluster lies beyond the catalog.
func (pt *PowerTiers) TierOf(price float64) *int {
	if len(pt.clusters) == 0 {
		return nil
	}
	best := 0
	for i, c := range pt.clusters {
		if math.Abs(c-price) < math.Abs(pt.clusters[best]-price) {
			best = i
		}
	}
	if best >= len(pt.catalog) {
		return nil
	}
	tier := pt.catalog[best]
	return &tier
}

// explicitPower returns the kVA value written on the anchor line, or on the
// line right above it.
func explicitPower(lines []string, anchor int) *int {
	for _, i := range []int{anchor, anchor - 1} {
		if i < 0 || i >= len(lines) {
			continue
		}
		matches := kvaMarker.FindAllStringSubmatch(lines[i], -1)
		if len(matches) != 1 {
			// several tiers on one line cannot be attributed
			continue
		}
		if v, err := strconv.Atoi(matches[0][1]); err == nil && v > 0 {
			return &v
		}
	}
	return nil
}
