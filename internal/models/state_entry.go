package models

import "time"

// StateEntry is what the change store remembers about one identity.
type StateEntry struct {
	Identity      ResourceIdentity `json:"identity"`
	ContentHash   string           `json:"content_hash,omitempty"`
	ModTime       *time.Time       `json:"mtime,omitempty"`
	LastCheckedAt time.Time        `json:"last_checked_at"`
	FirstSeenAt   time.Time        `json:"first_seen_at"`
	SnapshotRef   string           `json:"snapshot_reference,omitempty"`
	// Missing is set when a local file disappeared; the entry is kept so
	// history is not lost.
	Missing bool `json:"missing,omitempty"`
}

// ChangeEvent is emitted when a known identity's fingerprint differs from the
// stored one. First observations never produce an event.
type ChangeEvent struct {
	Identity   ResourceIdentity `json:"identity"`
	OldHash    string           `json:"old_hash"`
	NewHash    string           `json:"new_hash"`
	DiffRef    string           `json:"diff_reference,omitempty"`
	DetectedAt time.Time        `json:"detected_at"`
}
