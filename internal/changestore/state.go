package changestore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aleister1102/tariffwatch/internal/models"
)

const stateVersion = 1

// stateDocument is the on-disk layout of the state file. Unknown fields are
// ignored when reading so older binaries can open newer files.
type stateDocument struct {
	Version int                          `json:"version"`
	Entries map[string]models.StateEntry `json:"entries"`
}

// readState loads the entries of path. A missing file is an empty state; a
// file that cannot be decoded returns models.ErrStateCorrupt.
func readState(path string) (map[string]models.StateEntry, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]models.StateEntry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read state file %s: %w", path, err)
	}

	var doc stateDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return map[string]models.StateEntry{}, fmt.Errorf("%w: %v", models.ErrStateCorrupt, err)
	}
	if doc.Entries == nil {
		doc.Entries = map[string]models.StateEntry{}
	}

	// Keys are recomputed so that a hand-edited file cannot hold two entries
	// for the same identity.
	entries := make(map[string]models.StateEntry, len(doc.Entries))
	for _, e := range doc.Entries {
		entries[e.Identity.Key()] = e
	}
	return entries, nil
}

// writeState writes entries to a temporary file next to path and renames it
// into place.
func writeState(path string, entries map[string]models.StateEntry) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}

	data, err := json.MarshalIndent(stateDocument{Version: stateVersion, Entries: entries}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".state-*.tmp")
	if err != nil {
		return fmt.Errorf("create temporary state file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temporary state file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temporary state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temporary state file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}
