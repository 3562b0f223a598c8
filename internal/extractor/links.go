package extractor

import (
	"bytes"
	"net/url"
	"regexp"
	"strings"

	"github.com/BishopFox/jsluice"
	"github.com/PuerkitoBio/goquery"
	"github.com/aleister1102/tariffwatch/internal/config"
)

// DocumentLink is a candidate document URL found on a page.
type DocumentLink struct {
	URL  string
	Text string
	// Source is "anchor" or "script"
	Source string
}

// LinkFinder pulls document links out of an HTML page, from anchors and from
// URLs embedded in inline scripts.
type LinkFinder struct {
	pattern *regexp.Regexp
}

// NewLinkFinder compiles pattern, falling back to the default PDF pattern when empty.
func NewLinkFinder(pattern string) (*LinkFinder, error) {
	if pattern == "" {
		pattern = config.DefaultDocumentLinkPattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	return &LinkFinder{pattern: re}, nil
}

// DocumentLinks returns the absolute URLs matching the document pattern, in
// document order, without duplicates.
func (lf *LinkFinder) DocumentLinks(html []byte, baseURL string) ([]DocumentLink, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var links []DocumentLink
	add := func(raw, text, source string) {
		abs, ok := resolveLink(raw, base)
		if !ok || !lf.pattern.MatchString(abs) {
			return
		}
		if _, dup := seen[abs]; dup {
			return
		}
		seen[abs] = struct{}{}
		links = append(links, DocumentLink{URL: abs, Text: text, Source: source})
	}

	doc.Find("a[href], link[href], iframe[src], embed[src], object[data]").Each(func(_ int, s *goquery.Selection) {
		for _, attr := range []string{"href", "src", "data"} {
			if v, ok := s.Attr(attr); ok {
				add(v, strings.Join(strings.Fields(s.Text()), " "), "anchor")
			}
		}
	})

	doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		if _, external := s.Attr("src"); external {
			return
		}
		script := s.Text()
		if strings.TrimSpace(script) == "" {
			return
		}
		for _, res := range jsluice.NewAnalyzer([]byte(script)).GetURLs() {
			add(res.URL, "", "script")
		}
	})

	return links, nil
}

// FilterLinks drops links whose URL or text contains an excluded keyword and,
// when include is non-empty, links that contain none of the included ones.
func FilterLinks(links []DocumentLink, include, exclude []string) []DocumentLink {
	var kept []DocumentLink
	for _, l := range links {
		haystack := config.FoldLabel(l.URL + " " + l.Text)
		if containsAny(haystack, exclude) {
			continue
		}
		if len(include) > 0 && !containsAny(haystack, include) {
			continue
		}
		kept = append(kept, l)
	}
	return kept
}

func containsAny(haystack string, keywords []string) bool {
	for _, kw := range keywords {
		if kw = config.FoldLabel(kw); kw != "" && strings.Contains(haystack, kw) {
			return true
		}
	}
	return false
}

func resolveLink(raw string, base *url.URL) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.HasPrefix(raw, "#") || strings.HasPrefix(strings.ToLower(raw), "javascript:") || strings.HasPrefix(strings.ToLower(raw), "mailto:") {
		return "", false
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	abs := base.ResolveReference(ref)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return "", false
	}
	abs.Fragment = ""
	return abs.String(), true
}
