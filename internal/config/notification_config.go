package config

// NotificationConfig defines configuration for the run notification payload
type NotificationConfig struct {
	// Emit a payload even when nothing changed
	NotifyAlways    bool   `json:"notify_always" yaml:"notify_always"`
	NotifyOnFailure bool   `json:"notify_on_failure" yaml:"notify_on_failure"`
	OutputDir       string `json:"output_dir,omitempty" yaml:"output_dir,omitempty"`
	SubjectPrefix   string `json:"subject_prefix,omitempty" yaml:"subject_prefix,omitempty"`
}

// NewDefaultNotificationConfig creates default notification configuration
func NewDefaultNotificationConfig() NotificationConfig {
	return NotificationConfig{
		NotifyAlways:    false,
		NotifyOnFailure: true,
		OutputDir:       DefaultReportDir,
		SubjectPrefix:   "[tariffwatch]",
	}
}
