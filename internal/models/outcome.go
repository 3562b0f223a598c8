package models

// OutcomeStatus is the externally observable result of checking one resource.
type OutcomeStatus string

const (
	OutcomeUnchanged           OutcomeStatus = "unchanged"
	OutcomeFirstObservation    OutcomeStatus = "first_observation"
	OutcomeUpdated             OutcomeStatus = "updated"
	OutcomeFetchFailed         OutcomeStatus = "fetch_failed"
	OutcomeExtractionEmpty     OutcomeStatus = "extraction_empty"
	OutcomeClassificationEmpty OutcomeStatus = "classification_empty"
	OutcomeMissing             OutcomeStatus = "missing"
)

// Outcome is the per-resource result of one run.
type Outcome struct {
	Identity    ResourceIdentity `json:"identity"`
	Status      OutcomeStatus    `json:"status"`
	RecordCount int              `json:"record_count"`
	Strategy    string           `json:"strategy,omitempty"`
	Error       string           `json:"error,omitempty"`
}

// ProviderStatus folds the outcomes of one provider's resources into the
// single status reported for the provider. Producing records wins over a
// failure, a failure wins over an empty extraction. A vanished local file
// counts as a failure.
func ProviderStatus(outcomes []Outcome) OutcomeStatus {
	var updated, failed, empty bool
	for _, o := range outcomes {
		switch o.Status {
		case OutcomeUpdated, OutcomeFirstObservation:
			if o.RecordCount > 0 {
				updated = true
			} else {
				empty = true
			}
		case OutcomeFetchFailed, OutcomeMissing:
			failed = true
		case OutcomeExtractionEmpty, OutcomeClassificationEmpty:
			empty = true
		}
	}
	switch {
	case updated:
		return OutcomeUpdated
	case failed:
		return OutcomeFetchFailed
	case empty:
		return OutcomeExtractionEmpty
	default:
		return OutcomeUnchanged
	}
}
