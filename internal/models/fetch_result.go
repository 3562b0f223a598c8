package models

import (
	"strings"
	"time"
)

// FetchResult is the raw content produced by one successful fetch. It is
// consumed by the change store and the extractor, then discarded.
type FetchResult struct {
	Identity    ResourceIdentity
	Content     []byte
	ContentType string
	Strategy    string
	FetchedAt   time.Time
	// FinalURL is the location the content was actually read from, e.g. the
	// discovered PDF link when the identity points at a landing page.
	FinalURL string
	// ModTime is only set for local files.
	ModTime time.Time
}

// IsPDF reports whether the content looks like a PDF document, either by
// declared content type or by magic bytes.
func (fr *FetchResult) IsPDF() bool {
	if strings.Contains(strings.ToLower(fr.ContentType), "application/pdf") {
		return true
	}
	return len(fr.Content) >= 5 && string(fr.Content[:5]) == "%PDF-"
}

// ContentKind returns the kind the extractor should use for this content.
// A page resource may resolve to a PDF and a PDF resource may resolve to HTML
// when a provider serves an interstitial page.
func (fr *FetchResult) ContentKind() ResourceKind {
	if fr.IsPDF() {
		return KindPDF
	}
	if fr.Identity.Kind == KindLocalFile {
		return KindLocalFile
	}
	return KindPage
}
