package notifier

import (
	"sort"
	"time"

	"github.com/aleister1102/tariffwatch/internal/models"
)

// Subject lines of the change summary.
const (
	SubjectChanges  = "changes detected"
	SubjectNoChange = "no change"
)

// Summarize folds one run's change events, new records and per-resource
// outcomes into a notification payload. Providers are listed by name.
func Summarize(events []models.ChangeEvent, records []models.TariffRecord, outcomes []models.Outcome) models.NotificationPayload {
	byProvider := make(map[string][]models.Outcome)
	var order []string
	for _, o := range outcomes {
		p := o.Identity.Provider
		if _, ok := byProvider[p]; !ok {
			order = append(order, p)
		}
		byProvider[p] = append(byProvider[p], o)
	}

	recordCounts := make(map[string]int)
	for _, r := range records {
		recordCounts[r.Provider]++
		if _, ok := byProvider[r.Provider]; !ok {
			byProvider[r.Provider] = nil
			order = append(order, r.Provider)
		}
	}
	sort.Strings(order)

	payload := models.NotificationPayload{
		GeneratedAt: time.Now().UTC(),
		HasChanges:  len(events) > 0 || len(records) > 0,
		Events:      sortedEvents(events),
		NewRecords:  records,
	}
	payload.Subject = SubjectNoChange
	if payload.HasChanges {
		payload.Subject = SubjectChanges
	}

	for _, provider := range order {
		summary := summarizeProvider(provider, byProvider[provider])
		summary.Records = recordCounts[provider]
		payload.Providers = append(payload.Providers, summary)
	}
	payload.Failures = failures(outcomes)
	return payload
}

func summarizeProvider(provider string, outcomes []models.Outcome) models.ProviderSummary {
	summary := models.ProviderSummary{
		Provider: provider,
		Status:   models.ProviderStatus(outcomes),
	}
	for _, o := range outcomes {
		switch o.Status {
		case models.OutcomeFirstObservation:
			summary.New++
		case models.OutcomeUpdated:
			summary.Changed++
		case models.OutcomeUnchanged:
			summary.Unchanged++
		case models.OutcomeFetchFailed:
			summary.Failed++
		case models.OutcomeExtractionEmpty, models.OutcomeClassificationEmpty:
			summary.Empty++
		case models.OutcomeMissing:
			summary.Missing++
		}
	}
	return summary
}

func failures(outcomes []models.Outcome) []models.FailureSummary {
	var out []models.FailureSummary
	for _, o := range outcomes {
		switch o.Status {
		case models.OutcomeFetchFailed, models.OutcomeExtractionEmpty,
			models.OutcomeClassificationEmpty, models.OutcomeMissing:
			out = append(out, models.FailureSummary{
				Identity: o.Identity,
				Status:   o.Status,
				Reason:   truncateString(o.Error, MaxReasonLength),
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Identity.Key() < out[j].Identity.Key()
	})
	return out
}

func sortedEvents(events []models.ChangeEvent) []models.ChangeEvent {
	if len(events) == 0 {
		return nil
	}
	sorted := append([]models.ChangeEvent(nil), events...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Identity.Key() < sorted[j].Identity.Key()
	})
	return sorted
}
