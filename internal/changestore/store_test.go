package changestore

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aleister1102/tariffwatch/internal/config"
	"github.com/aleister1102/tariffwatch/internal/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store, config.ChangeStoreConfig) {
	t.Helper()
	dir := t.TempDir()
	cfg := config.NewDefaultChangeStoreConfig()
	cfg.StateFile = filepath.Join(dir, "state.json")
	cfg.ArchiveDir = filepath.Join(dir, "archive")

	s, err := Open(cfg, zerolog.Nop())
	require.NoError(t, err)
	return s, cfg
}

func pageIdentity() models.ResourceIdentity {
	return models.NewResourceIdentity("Ohm Energie", "https://ohm.example/offres", models.KindPage)
}

const pageV1 = `<html><head><script>var nonce = "a1";</script></head><body>
<h1>Offre Classique</h1>
<p>Prix du kWh : 0,2516 €</p>
</body></html>`

func TestEvaluate_FirstObservationThenUnchanged(t *testing.T) {
	s, _ := newTestStore(t)
	id := pageIdentity()

	ev, err := s.Evaluate(id, []byte(pageV1), nil)
	require.NoError(t, err)
	assert.Equal(t, StatusFirstObservation, ev.Status)
	assert.Nil(t, ev.Event)
	assert.Nil(t, s.Persist(ev, []byte(pageV1)))

	entry, ok := s.Entry(id)
	require.True(t, ok)
	assert.NotEmpty(t, entry.SnapshotRef)
	assert.FileExists(t, entry.SnapshotRef)
	assert.True(t, strings.HasSuffix(entry.SnapshotRef, ".html"))

	ev, err = s.Evaluate(id, []byte(pageV1), nil)
	require.NoError(t, err)
	assert.Equal(t, StatusUnchanged, ev.Status)
	assert.Nil(t, ev.Event)
	assert.Equal(t, entry.FirstSeenAt, ev.Entry.FirstSeenAt)
}

func TestEvaluate_ScriptOnlyChangeKeepsHash(t *testing.T) {
	s, _ := newTestStore(t)
	id := pageIdentity()

	ev, err := s.Evaluate(id, []byte(pageV1), nil)
	require.NoError(t, err)
	s.Persist(ev, []byte(pageV1))

	v2 := strings.Replace(pageV1, `nonce = "a1"`, `nonce = "zz93"`, 1)
	v2 = strings.Replace(v2, "<body>", `<body><noscript>tracking pixel 42</noscript><div>cookie consent id 7f3a</div>`, 1)

	ev, err = s.Evaluate(id, []byte(v2), nil)
	require.NoError(t, err)
	assert.Equal(t, StatusUnchanged, ev.Status)
}

func TestEvaluate_PriceChangeEmitsOneEventWithDiff(t *testing.T) {
	s, _ := newTestStore(t)
	id := pageIdentity()
	base := time.Date(2024, 2, 1, 8, 0, 0, 0, time.UTC)

	s.now = func() time.Time { return base }
	ev, err := s.Evaluate(id, []byte(pageV1), nil)
	require.NoError(t, err)
	s.Persist(ev, []byte(pageV1))
	first, _ := s.Entry(id)

	v2 := strings.Replace(pageV1, "0,2516", "0,2276", 1)
	s.now = func() time.Time { return base.Add(24 * time.Hour) }
	ev, err = s.Evaluate(id, []byte(v2), nil)
	require.NoError(t, err)
	require.Equal(t, StatusChanged, ev.Status)
	require.NotNil(t, ev.Event)
	assert.Equal(t, first.ContentHash, ev.Event.OldHash)

	event := s.Persist(ev, []byte(v2))
	require.NotNil(t, event)
	require.NotEmpty(t, event.DiffRef)

	diff, err := os.ReadFile(event.DiffRef)
	require.NoError(t, err)
	assert.Contains(t, string(diff), "-<p>Prix du kWh : 0,2516 €</p>")
	assert.Contains(t, string(diff), "+<p>Prix du kWh : 0,2276 €</p>")

	entry, _ := s.Entry(id)
	assert.Equal(t, ev.Event.NewHash, entry.ContentHash)
	assert.Equal(t, first.FirstSeenAt, entry.FirstSeenAt)
	assert.Contains(t, entry.SnapshotRef, filepath.Join("ohm-energie", "page", "2024-02-02"))

	ev, err = s.Evaluate(id, []byte(v2), nil)
	require.NoError(t, err)
	assert.Equal(t, StatusUnchanged, ev.Status, "a change is reported once")
}

func TestEvaluate_LocalFileModTime(t *testing.T) {
	s, _ := newTestStore(t)
	id := models.NewResourceIdentity("Local", "/data/grille.pdf", models.KindLocalFile)
	t0 := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	ev, err := s.Evaluate(id, []byte("version one"), &t0)
	require.NoError(t, err)
	s.Persist(ev, []byte("version one"))

	tests := []struct {
		name    string
		content string
		mtime   time.Time
		want    Status
	}{
		{"mtime within tolerance", "version two", t0.Add(500 * time.Millisecond), StatusUnchanged},
		{"newer mtime same content", "version one", t0.Add(time.Hour), StatusUnchanged},
		{"newer mtime new content", "version two", t0.Add(time.Hour), StatusChanged},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mtime := tt.mtime
			ev, err := s.Evaluate(id, []byte(tt.content), &mtime)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ev.Status)
		})
	}
}

func TestEvaluate_LocalFileModTimeMovesBackwards(t *testing.T) {
	s, _ := newTestStore(t)
	id := models.NewResourceIdentity("Local", "/data/grille.pdf", models.KindLocalFile)
	t0 := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	steps := []struct {
		content string
		mtime   time.Time
		want    Status
	}{
		{"version one", t0, StatusFirstObservation},
		{"restored copy", t0.Add(-time.Hour), StatusChanged},
		{"edited copy", t0.Add(-30 * time.Minute), StatusChanged},
		{"edited copy", t0.Add(-30 * time.Minute), StatusUnchanged},
		{"edited again", t0.Add(-30*time.Minute + 200*time.Millisecond), StatusUnchanged},
	}
	for i, step := range steps {
		mtime := step.mtime
		ev, err := s.Evaluate(id, []byte(step.content), &mtime)
		require.NoError(t, err)
		assert.Equal(t, step.want, ev.Status, "step %d", i)
		s.Persist(ev, []byte(step.content))

		entry, ok := s.Entry(id)
		require.True(t, ok)
		require.NotNil(t, entry.ModTime)
		assert.True(t, step.mtime.Equal(*entry.ModTime), "step %d keeps the observed mtime", i)
		assert.Equal(t, Fingerprint(s.cleaner.Clean([]byte(step.content), id.Kind)), entry.ContentHash, "step %d", i)
	}
}

func TestMarkMissing(t *testing.T) {
	s, _ := newTestStore(t)
	mtime := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	kept := models.NewResourceIdentity("Local", "/data/a.pdf", models.KindLocalFile)
	gone := models.NewResourceIdentity("Local", "/data/b.pdf", models.KindLocalFile)
	other := models.NewResourceIdentity("Other", "/data/c.pdf", models.KindLocalFile)

	for _, id := range []models.ResourceIdentity{kept, gone, other} {
		ev, err := s.Evaluate(id, []byte(id.Location), &mtime)
		require.NoError(t, err)
		s.Persist(ev, []byte(id.Location))
	}

	flagged := s.MarkMissing("Local", []models.ResourceIdentity{kept})
	assert.Equal(t, []models.ResourceIdentity{gone}, flagged)

	entry, ok := s.Entry(gone)
	require.True(t, ok, "missing entries are not purged")
	assert.True(t, entry.Missing)

	entry, _ = s.Entry(other)
	assert.False(t, entry.Missing)

	assert.Empty(t, s.MarkMissing("Local", []models.ResourceIdentity{kept}), "already flagged")
}

func TestSaveAndReopen(t *testing.T) {
	s, cfg := newTestStore(t)
	id := pageIdentity()

	ev, err := s.Evaluate(id, []byte(pageV1), nil)
	require.NoError(t, err)
	s.Persist(ev, []byte(pageV1))
	require.NoError(t, s.Save())

	matches, err := filepath.Glob(filepath.Join(filepath.Dir(cfg.StateFile), ".state-*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, matches, "temporary file is renamed into place")

	reopened, err := Open(cfg, zerolog.Nop())
	require.NoError(t, err)
	entry, ok := reopened.Entry(id)
	require.True(t, ok)
	assert.Equal(t, ev.Entry.ContentHash, entry.ContentHash)

	ev, err = reopened.Evaluate(id, []byte(pageV1), nil)
	require.NoError(t, err)
	assert.Equal(t, StatusUnchanged, ev.Status)
}

func TestOpen_CorruptStateStartsEmpty(t *testing.T) {
	dir := t.TempDir()
	cfg := config.NewDefaultChangeStoreConfig()
	cfg.StateFile = filepath.Join(dir, "state.json")
	cfg.ArchiveDir = filepath.Join(dir, "archive")
	require.NoError(t, os.WriteFile(cfg.StateFile, []byte("{not json"), 0o644))

	s, err := Open(cfg, zerolog.Nop())
	require.NoError(t, err)
	assert.Empty(t, s.Entries())

	aside, err := filepath.Glob(cfg.StateFile + ".corrupt-*")
	require.NoError(t, err)
	assert.Len(t, aside, 1)

	ev, err := s.Evaluate(pageIdentity(), []byte(pageV1), nil)
	require.NoError(t, err)
	assert.Equal(t, StatusFirstObservation, ev.Status)
}

func TestOpen_IgnoresUnknownFields(t *testing.T) {
	dir := t.TempDir()
	cfg := config.NewDefaultChangeStoreConfig()
	cfg.StateFile = filepath.Join(dir, "state.json")
	state := `{"version": 7, "future": true, "entries": {"whatever": {
		"identity": {"provider": "P", "location": "https://p.example", "kind": "page"},
		"content_hash": "abc", "extra": 1}}}`
	require.NoError(t, os.WriteFile(cfg.StateFile, []byte(state), 0o644))

	s, err := Open(cfg, zerolog.Nop())
	require.NoError(t, err)
	entry, ok := s.Entry(models.NewResourceIdentity("P", "https://p.example", models.KindPage))
	require.True(t, ok)
	assert.Equal(t, "abc", entry.ContentHash)
}

func TestEvaluate_InvalidIdentity(t *testing.T) {
	s, _ := newTestStore(t)
	_, err := s.Evaluate(models.ResourceIdentity{Provider: "P"}, []byte("x"), nil)
	assert.Error(t, err)
}

func TestPersist_DisabledArchive(t *testing.T) {
	dir := t.TempDir()
	cfg := config.NewDefaultChangeStoreConfig()
	cfg.StateFile = filepath.Join(dir, "state.json")
	cfg.ArchiveDir = filepath.Join(dir, "archive")
	cfg.DisableArchive = true
	s, err := Open(cfg, zerolog.Nop())
	require.NoError(t, err)

	ev, err := s.Evaluate(pageIdentity(), []byte(pageV1), nil)
	require.NoError(t, err)
	s.Persist(ev, []byte(pageV1))

	entry, _ := s.Entry(pageIdentity())
	assert.Empty(t, entry.SnapshotRef)
	assert.NoDirExists(t, cfg.ArchiveDir)
}
