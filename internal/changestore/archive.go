package changestore

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/aleister1102/tariffwatch/internal/config"
	"github.com/aleister1102/tariffwatch/internal/models"
	"github.com/sergi/go-diff/diffmatchpatch"
)

const maxSlugLength = 80

var slugInvalid = regexp.MustCompile(`[^a-z0-9]+`)

// Archiver writes dated snapshots and diffs. The archive is append-only.
type Archiver struct {
	dir string
	dmp *diffmatchpatch.DiffMatchPatch
}

// NewArchiver creates an archiver rooted at dir.
func NewArchiver(dir string) *Archiver {
	return &Archiver{dir: dir, dmp: diffmatchpatch.New()}
}

// SnapshotPath returns <dir>/<provider>/<kind>/<YYYY-MM-DD>/<HHMMSS>_<location>.<ext>.
func (a *Archiver) SnapshotPath(identity models.ResourceIdentity, at time.Time, ext string) string {
	at = at.UTC()
	name := fmt.Sprintf("%s_%s%s", at.Format("150405"), locationSlug(identity.Location), ext)
	return filepath.Join(a.dir, slug(identity.Provider), string(identity.Kind), at.Format("2006-01-02"), name)
}

// WriteSnapshot stores content and returns its path.
func (a *Archiver) WriteSnapshot(identity models.ResourceIdentity, at time.Time, content []byte) (string, error) {
	path := a.SnapshotPath(identity, at, snapshotExtension(identity, content))
	if err := writeNew(path, content); err != nil {
		return "", &models.ArchiveWriteError{Path: path, Err: err}
	}
	return path, nil
}

// WriteDiff stores the line diff between two cleaned versions next to the
// new snapshot and returns its path.
func (a *Archiver) WriteDiff(identity models.ResourceIdentity, at time.Time, previous, current []byte, previousRef string) (string, error) {
	path := a.SnapshotPath(identity, at, ".diff")

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "--- %s\n+++ %s\n", previousRef, identity.Location)
	buf.WriteString(a.LineDiff(string(previous), string(current)))

	if err := writeNew(path, buf.Bytes()); err != nil {
		return "", &models.ArchiveWriteError{Path: path, Err: err}
	}
	return path, nil
}

// LineDiff renders only the inserted and deleted lines, prefixed with + and -.
func (a *Archiver) LineDiff(previous, current string) string {
	prevChars, curChars, lines := a.dmp.DiffLinesToChars(previous, current)
	diffs := a.dmp.DiffMain(prevChars, curChars, false)
	diffs = a.dmp.DiffCharsToLines(diffs, lines)
	diffs = a.dmp.DiffCleanupSemantic(diffs)

	var out strings.Builder
	for _, d := range diffs {
		prefix := ""
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			prefix = "+"
		case diffmatchpatch.DiffDelete:
			prefix = "-"
		default:
			continue
		}
		for _, line := range strings.Split(strings.TrimSuffix(d.Text, "\n"), "\n") {
			out.WriteString(prefix + line + "\n")
		}
	}
	return out.String()
}

func writeNew(path string, content []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(content); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func snapshotExtension(identity models.ResourceIdentity, content []byte) string {
	switch {
	case bytes.HasPrefix(bytes.TrimLeft(content[:min(len(content), 1024)], "\x00\r\n\t "), []byte("%PDF-")):
		return ".pdf"
	case identity.Kind == models.KindPage:
		return ".html"
	case identity.Kind == models.KindLocalFile && filepath.Ext(identity.Location) != "":
		return strings.ToLower(filepath.Ext(identity.Location))
	default:
		return ".bin"
	}
}

func slug(s string) string {
	s = strings.Trim(slugInvalid.ReplaceAllString(config.FoldLabel(s), "-"), "-")
	if len(s) > maxSlugLength {
		s = strings.TrimRight(s[:maxSlugLength], "-")
	}
	if s == "" {
		return "unnamed"
	}
	return s
}

// locationSlug keeps the readable tail of a location plus a short hash so
// that two long URLs sharing a prefix do not collide.
func locationSlug(location string) string {
	trimmed := strings.TrimPrefix(strings.TrimPrefix(location, "https://"), "http://")
	s := slug(strings.TrimSuffix(trimmed, filepath.Ext(trimmed)))
	if len(s) > maxSlugLength-9 {
		s = strings.TrimLeft(s[len(s)-(maxSlugLength-9):], "-")
	}
	return s + "-" + Fingerprint([]byte(location))[:8]
}
