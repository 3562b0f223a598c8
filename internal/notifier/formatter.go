package notifier

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aleister1102/tariffwatch/internal/models"
)

// Text formatting limits
const (
	MaxReasonLength = 300
	MaxRecordLines  = 50
	hashPrefixLen   = 12
)

// RenderText produces the plain text body of a payload.
func RenderText(payload models.NotificationPayload) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s\n", payload.Subject)
	if payload.RunID != "" {
		fmt.Fprintf(&b, "Run: %s\n", payload.RunID)
	}
	fmt.Fprintf(&b, "Generated: %s\n", payload.GeneratedAt.Format(time.RFC3339))

	if len(payload.Providers) > 0 {
		b.WriteString("\nProviders:\n")
		for _, p := range payload.Providers {
			b.WriteString(formatProviderLine(p))
		}
	}

	if len(payload.Events) > 0 {
		b.WriteString("\nChanges:\n")
		for _, ev := range payload.Events {
			fmt.Fprintf(&b, "  - %s: %s -> %s", ev.Identity, shortHash(ev.OldHash), shortHash(ev.NewHash))
			if ev.DiffRef != "" {
				fmt.Fprintf(&b, " (diff %s)", ev.DiffRef)
			}
			b.WriteString("\n")
		}
	}

	if len(payload.NewRecords) > 0 {
		b.WriteString("\nNew records:\n")
		for i, r := range payload.NewRecords {
			if i == MaxRecordLines {
				fmt.Fprintf(&b, "  ... and %d more\n", len(payload.NewRecords)-MaxRecordLines)
				break
			}
			b.WriteString(formatRecordLine(r))
		}
	}

	if len(payload.Failures) > 0 {
		b.WriteString("\nFailures:\n")
		for _, f := range payload.Failures {
			fmt.Fprintf(&b, "  - %s: %s", f.Identity, f.Status)
			if f.Reason != "" {
				fmt.Fprintf(&b, ": %s", f.Reason)
			}
			b.WriteString("\n")
		}
	}

	return b.String()
}

func formatProviderLine(p models.ProviderSummary) string {
	status := string(p.Status)
	if p.Status == models.OutcomeUpdated {
		status = fmt.Sprintf("updated(%d)", p.Records)
	}
	return fmt.Sprintf("  - %s: %s [new %d, changed %d, unchanged %d, failed %d, empty %d, missing %d]\n",
		p.Provider, status, p.New, p.Changed, p.Unchanged, p.Failed, p.Empty, p.Missing)
}

func formatRecordLine(r models.TariffRecord) string {
	parts := []string{r.Provider, r.Offer(), string(r.PriceType)}
	if r.TariffOption != "" {
		parts = append(parts, r.TariffOption)
	}
	if r.PowerKVA != nil {
		parts = append(parts, strconv.Itoa(*r.PowerKVA)+" kVA")
	}
	price := fmt.Sprintf("%s TTC %s (HT %s)",
		formatPrice(r.PriceTTC, r.PriceType), r.Unit, formatPrice(r.PriceHT, r.PriceType))
	return fmt.Sprintf("  - %s: %s, confidence %.2f\n", strings.Join(parts, " / "), price, r.Confidence)
}

func formatPrice(v float64, pt models.PriceType) string {
	if pt == models.PriceEnergy {
		return strconv.FormatFloat(v, 'f', 4, 64)
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func shortHash(h string) string {
	if h == "" {
		return "-"
	}
	if len(h) > hashPrefixLen {
		return h[:hashPrefixLen]
	}
	return h
}

func truncateString(s string, maxLength int) string {
	if len(s) <= maxLength {
		return s
	}
	return s[:maxLength-3] + "..."
}
