package models

import "time"

// ProviderSummary aggregates one provider's resources for a run.
type ProviderSummary struct {
	Provider  string        `json:"provider"`
	Status    OutcomeStatus `json:"status"`
	New       int           `json:"new_resources"`
	Changed   int           `json:"changed_resources"`
	Unchanged int           `json:"unchanged_resources"`
	Failed    int           `json:"failed_resources"`
	Empty     int           `json:"empty_resources"`
	Missing   int           `json:"missing_resources"`
	Records   int           `json:"record_count"`
}

// FailureSummary names a resource that could not be checked this run.
type FailureSummary struct {
	Identity ResourceIdentity `json:"identity"`
	Status   OutcomeStatus    `json:"status"`
	Reason   string           `json:"reason"`
}

// NotificationPayload is the change summary handed to an external transport.
type NotificationPayload struct {
	RunID       string            `json:"run_id,omitempty"`
	GeneratedAt time.Time         `json:"generated_at"`
	Subject     string            `json:"subject"`
	HasChanges  bool              `json:"has_changes"`
	Providers   []ProviderSummary `json:"providers"`
	Events      []ChangeEvent     `json:"events,omitempty"`
	NewRecords  []TariffRecord    `json:"new_records,omitempty"`
	Failures    []FailureSummary  `json:"failures,omitempty"`
}
