package models

import "time"

// ArchiveStampLayout is the UTC timestamp used in snapshot and diff names.
const ArchiveStampLayout = "20060102T150405Z"

// ArchiveStamp formats t for archive file names.
func ArchiveStamp(t time.Time) string {
	return t.UTC().Format(ArchiveStampLayout)
}
