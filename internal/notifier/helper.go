package notifier

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aleister1102/tariffwatch/internal/config"
	"github.com/aleister1102/tariffwatch/internal/models"
	"github.com/rs/zerolog"
)

// Output file names inside the run directory.
const (
	PayloadFileName = "notification.json"
	TextFileName    = "notification.txt"
)

// NotificationHelper decides whether a run payload is published and hands it
// to the external transport by writing it next to the run report.
type NotificationHelper struct {
	cfg    config.NotificationConfig
	logger zerolog.Logger
}

// NewNotificationHelper creates a new NotificationHelper.
func NewNotificationHelper(cfg config.NotificationConfig, logger zerolog.Logger) *NotificationHelper {
	return &NotificationHelper{
		cfg:    cfg,
		logger: logger.With().Str("component", "NotificationHelper").Logger(),
	}
}

// ShouldNotify reports whether payload must be published: on changes, on
// failures when notify_on_failure is set, or always with notify_always.
func (nh *NotificationHelper) ShouldNotify(payload models.NotificationPayload) bool {
	switch {
	case nh.cfg.NotifyAlways, payload.HasChanges:
		return true
	case nh.cfg.NotifyOnFailure && len(payload.Failures) > 0:
		return true
	default:
		return false
	}
}

// Prepare stamps the run ID and the configured subject prefix on payload.
func (nh *NotificationHelper) Prepare(runID string, payload models.NotificationPayload) models.NotificationPayload {
	payload.RunID = runID
	if prefix := strings.TrimSpace(nh.cfg.SubjectPrefix); prefix != "" && !strings.HasPrefix(payload.Subject, prefix) {
		payload.Subject = prefix + " " + payload.Subject
	}
	return payload
}

// Publish writes the JSON payload and its text rendering under
// <output_dir>/<run_id>/. It returns the JSON path, or "" when the payload was
// not due.
func (nh *NotificationHelper) Publish(payload models.NotificationPayload) (string, error) {
	if !nh.ShouldNotify(payload) {
		nh.logger.Info().Str("run_id", payload.RunID).Msg("Nothing to notify, payload skipped")
		return "", nil
	}

	dir := nh.cfg.OutputDir
	if dir == "" {
		dir = config.DefaultReportDir
	}
	if payload.RunID != "" {
		dir = filepath.Join(dir, payload.RunID)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create notification directory %s: %w", dir, err)
	}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode notification payload: %w", err)
	}
	jsonPath := filepath.Join(dir, PayloadFileName)
	if err := os.WriteFile(jsonPath, data, 0o644); err != nil {
		return "", fmt.Errorf("write notification payload: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, TextFileName), []byte(RenderText(payload)), 0o644); err != nil {
		return "", fmt.Errorf("write notification text: %w", err)
	}

	nh.logger.Info().
		Str("run_id", payload.RunID).
		Str("subject", payload.Subject).
		Int("events", len(payload.Events)).
		Int("records", len(payload.NewRecords)).
		Int("failures", len(payload.Failures)).
		Str("path", jsonPath).
		Msg("Notification payload written")
	return jsonPath, nil
}
