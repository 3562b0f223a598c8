package changestore

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/aleister1102/tariffwatch/internal/models"
)

// trackingAttributes are stripped from every element before hashing.
var trackingAttributes = []string{"nonce", "integrity", "data-csrf", "data-token", "data-gtm", "data-analytics", "data-tracking"}

// Cleaner removes the parts of a page that change on every request so that
// the fingerprint only moves when the visible content does.
type Cleaner struct {
	markers []string
}

// NewCleaner creates a cleaner that drops every line containing one of markers.
func NewCleaner(markers []string) *Cleaner {
	lowered := make([]string, 0, len(markers))
	for _, m := range markers {
		if m = strings.ToLower(strings.TrimSpace(m)); m != "" {
			lowered = append(lowered, m)
		}
	}
	return &Cleaner{markers: lowered}
}

// Clean returns the content used for fingerprinting. PDF and other binary
// content is returned unchanged.
func (c *Cleaner) Clean(content []byte, kind models.ResourceKind) []byte {
	if isBinary(content) {
		return content
	}

	text := string(content)
	if kind == models.KindPage || looksLikeMarkup(content) {
		if stripped, err := stripMarkup(content); err == nil {
			text = stripped
		}
	}
	return []byte(c.dropVolatileLines(text))
}

func (c *Cleaner) dropVolatileLines(text string) string {
	var kept []string
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || c.isVolatile(line) {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

func (c *Cleaner) isVolatile(line string) bool {
	lower := strings.ToLower(line)
	for _, m := range c.markers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

func stripMarkup(content []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return "", err
	}
	doc.Find("script, style, noscript, template, iframe").Remove()
	doc.Find("*").Each(func(_ int, s *goquery.Selection) {
		for _, attr := range trackingAttributes {
			s.RemoveAttr(attr)
		}
	})
	html, err := doc.Html()
	if err != nil {
		return "", err
	}
	// one tag per line so that minified pages still diff line by line
	return strings.ReplaceAll(html, "><", ">\n<"), nil
}

// Fingerprint returns the hex SHA-256 of content.
func Fingerprint(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

func isBinary(content []byte) bool {
	head := content[:min(len(content), 1024)]
	return bytes.HasPrefix(bytes.TrimLeft(head, "\x00\r\n\t "), []byte("%PDF-")) || bytes.IndexByte(head, 0) >= 0
}

func looksLikeMarkup(content []byte) bool {
	head := bytes.ToLower(content[:min(len(content), 512)])
	return bytes.Contains(head, []byte("<html")) || bytes.Contains(head, []byte("<!doctype html"))
}
