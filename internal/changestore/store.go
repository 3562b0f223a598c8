package changestore

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/aleister1102/tariffwatch/internal/config"
	"github.com/aleister1102/tariffwatch/internal/models"
	"github.com/rs/zerolog"
)

// Status is the outcome of comparing fetched content with the stored state.
type Status string

const (
	StatusFirstObservation Status = "first_observation"
	StatusUnchanged        Status = "unchanged"
	StatusChanged          Status = "changed"
)

// Evaluation is the decision for one fetched resource. Nothing is written
// until it is handed to Persist.
type Evaluation struct {
	Identity  models.ResourceIdentity
	Status    Status
	Previous  *models.StateEntry
	Entry     models.StateEntry
	Event     *models.ChangeEvent
	Cleaned   []byte
	CheckedAt time.Time
}

// Store keeps one StateEntry per identity and decides whether fetched
// content is new, unchanged or changed.
type Store struct {
	cfg       config.ChangeStoreConfig
	cleaner   *Cleaner
	archiver  *Archiver
	locks     *KeyedMutex
	logger    zerolog.Logger
	tolerance time.Duration
	now       func() time.Time

	mu      sync.RWMutex
	entries map[string]models.StateEntry
	dirty   bool
}

// Open loads the state file. A corrupt file is moved aside and the store
// starts empty; only unreadable files are an error.
func Open(cfg config.ChangeStoreConfig, logger zerolog.Logger) (*Store, error) {
	storeLogger := logger.With().Str("component", "ChangeStore").Logger()

	entries, err := readState(cfg.StateFile)
	if err != nil {
		if !errors.Is(err, models.ErrStateCorrupt) {
			return nil, err
		}
		aside := cfg.StateFile + ".corrupt-" + models.ArchiveStamp(time.Now())
		if renameErr := os.Rename(cfg.StateFile, aside); renameErr != nil {
			storeLogger.Warn().Err(renameErr).Msg("Could not move corrupt state file aside")
			aside = ""
		}
		storeLogger.Error().Err(err).Str("state_file", cfg.StateFile).Str("moved_to", aside).
			Msg("State file corrupt, starting from an empty state")
	}

	tolerance := time.Duration(cfg.MTimeToleranceMillis) * time.Millisecond
	if cfg.MTimeToleranceMillis == 0 {
		tolerance = config.DefaultMTimeToleranceMillis * time.Millisecond
	}

	storeLogger.Info().Int("entries", len(entries)).Str("state_file", cfg.StateFile).Msg("Change store loaded")

	return &Store{
		cfg:       cfg,
		cleaner:   NewCleaner(cfg.VolatileMarkers),
		archiver:  NewArchiver(cfg.ArchiveDir),
		locks:     NewKeyedMutex(logger),
		logger:    storeLogger,
		tolerance: tolerance,
		now:       time.Now,
		entries:   entries,
	}, nil
}

// Entry returns a copy of the stored entry of identity.
func (s *Store) Entry(identity models.ResourceIdentity) (models.StateEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[identity.Key()]
	return e, ok
}

// Entries returns every stored entry sorted by key.
func (s *Store) Entries() []models.StateEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]models.StateEntry, 0, len(keys))
	for _, k := range keys {
		out = append(out, s.entries[k])
	}
	return out
}

// Evaluate compares content with the stored state of identity. modTime is
// only meaningful for local files.
func (s *Store) Evaluate(identity models.ResourceIdentity, content []byte, modTime *time.Time) (*Evaluation, error) {
	if err := identity.Validate(); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(identity.Key())
	defer unlock()

	now := s.now().UTC()
	cleaned := s.cleaner.Clean(content, identity.Kind)
	hash := Fingerprint(cleaned)

	ev := &Evaluation{
		Identity:  identity,
		Cleaned:   cleaned,
		CheckedAt: now,
		Entry: models.StateEntry{
			Identity:      identity,
			ContentHash:   hash,
			ModTime:       modTime,
			LastCheckedAt: now,
			FirstSeenAt:   now,
		},
	}

	prev, ok := s.Entry(identity)
	if !ok {
		ev.Status = StatusFirstObservation
		return ev, nil
	}

	ev.Previous = &prev
	ev.Entry.FirstSeenAt = prev.FirstSeenAt
	ev.Entry.SnapshotRef = prev.SnapshotRef

	if s.changed(identity, prev, hash, modTime) {
		ev.Status = StatusChanged
		ev.Event = &models.ChangeEvent{
			Identity:   identity,
			OldHash:    prev.ContentHash,
			NewHash:    hash,
			DetectedAt: now,
		}
		return ev, nil
	}

	// the observed fingerprint becomes the new baseline
	ev.Status = StatusUnchanged
	return ev, nil
}

// changed reports a local file as changed when its mtime moved by more than
// the tolerance, in either direction, and its content hash differs.
func (s *Store) changed(identity models.ResourceIdentity, prev models.StateEntry, hash string, modTime *time.Time) bool {
	if identity.Kind == models.KindLocalFile && modTime != nil && prev.ModTime != nil {
		delta := modTime.Sub(*prev.ModTime)
		if delta < 0 {
			delta = -delta
		}
		if delta <= s.tolerance {
			return false
		}
		return prev.ContentHash == "" || prev.ContentHash != hash
	}
	return prev.ContentHash != hash
}

// Persist applies an evaluation to the in-memory state. For first
// observations and changes the raw content is archived and, for changes of
// text content, the diff against the previous snapshot. Archive failures are
// logged and never block the update. It returns the change event with its
// diff reference filled in, or nil.
func (s *Store) Persist(ev *Evaluation, content []byte) *models.ChangeEvent {
	unlock := s.locks.Lock(ev.Identity.Key())
	defer unlock()

	entry := ev.Entry
	if ev.Status != StatusUnchanged && !s.cfg.DisableArchive {
		if ref, err := s.archiver.WriteSnapshot(ev.Identity, ev.CheckedAt, content); err != nil {
			s.logger.Error().Err(err).Str("identity", ev.Identity.Key()).Msg("Snapshot not archived")
		} else {
			entry.SnapshotRef = ref
		}
	}

	var event *models.ChangeEvent
	if ev.Event != nil {
		e := *ev.Event
		event = &e
		if !s.cfg.DisableArchive && ev.Previous != nil && ev.Previous.SnapshotRef != "" && !isBinary(content) {
			if ref, err := s.writeDiff(ev); err != nil {
				s.logger.Error().Err(err).Str("identity", ev.Identity.Key()).Msg("Diff not archived")
			} else {
				event.DiffRef = ref
			}
		}
	}

	s.mu.Lock()
	s.entries[ev.Identity.Key()] = entry
	s.dirty = true
	s.mu.Unlock()

	if event != nil {
		s.logger.Info().Str("identity", ev.Identity.Key()).Str("old_hash", event.OldHash).
			Str("new_hash", event.NewHash).Str("diff", event.DiffRef).Msg("Change detected")
	}
	return event
}

func (s *Store) writeDiff(ev *Evaluation) (string, error) {
	previous, err := os.ReadFile(ev.Previous.SnapshotRef)
	if err != nil {
		return "", &models.ArchiveWriteError{Path: ev.Previous.SnapshotRef, Err: fmt.Errorf("read previous snapshot: %w", err)}
	}
	prevCleaned := s.cleaner.Clean(previous, ev.Identity.Kind)
	return s.archiver.WriteDiff(ev.Identity, ev.CheckedAt, prevCleaned, ev.Cleaned, ev.Previous.SnapshotRef)
}

// MarkMissing flags the local file entries of provider whose identity is not
// in seen. Flagged entries are kept. It returns the newly flagged identities.
func (s *Store) MarkMissing(provider string, seen []models.ResourceIdentity) []models.ResourceIdentity {
	seenKeys := make(map[string]struct{}, len(seen))
	for _, id := range seen {
		seenKeys[id.Key()] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var flagged []models.ResourceIdentity
	for key, e := range s.entries {
		if e.Identity.Provider != provider || e.Identity.Kind != models.KindLocalFile || e.Missing {
			continue
		}
		if _, ok := seenKeys[key]; ok {
			continue
		}
		e.Missing = true
		s.entries[key] = e
		s.dirty = true
		flagged = append(flagged, e.Identity)
	}
	sort.Slice(flagged, func(i, j int) bool { return flagged[i].Key() < flagged[j].Key() })

	for _, id := range flagged {
		s.logger.Warn().Str("identity", id.Key()).Msg("Local file vanished, entry flagged as missing")
	}
	return flagged
}

// Save writes the state file atomically. It is a no-op when nothing changed
// since the last save.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.dirty {
		return nil
	}
	if err := writeState(s.cfg.StateFile, s.entries); err != nil {
		return err
	}
	s.dirty = false
	s.logger.Debug().Int("entries", len(s.entries)).Msg("State saved")
	return nil
}
