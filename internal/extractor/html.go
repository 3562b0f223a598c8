package extractor

import (
	"bytes"
	"html"
	"regexp"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/PuerkitoBio/goquery"
)

var (
	markdownEscape = regexp.MustCompile(`\\([\\` + "`" + `*_{}\[\]()#+\-.!|>~])`)
	markdownLead   = regexp.MustCompile(`^(?:#{1,6}\s+|>\s*|[-*+]\s+|\d+\.\s+)+`)
	markdownLink   = regexp.MustCompile(`!?\[([^\]]*)\]\([^)]*\)`)
	markdownRule   = regexp.MustCompile(`^[-*_|:\s]+$`)
)

// HTMLLines converts a page into text lines. Table rows are flattened to one
// line each with cells separated by " | " so that a price stays next to the
// labels of its row.
func HTMLLines(content []byte) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return nil, err
	}

	doc.Find("script, style, noscript, template, svg").Remove()
	doc.Find("table").Each(func(_ int, table *goquery.Selection) {
		var rows strings.Builder
		table.Find("tr").Each(func(_ int, row *goquery.Selection) {
			cells := row.Find("th, td").Map(func(_ int, c *goquery.Selection) string {
				return strings.Join(strings.Fields(c.Text()), " ")
			})
			if cells = nonEmpty(cells); len(cells) > 0 {
				rows.WriteString("<p>" + html.EscapeString(strings.Join(cells, " | ")) + "</p>")
			}
		})
		table.ReplaceWithHtml("<div>" + rows.String() + "</div>")
	})

	prepared, err := doc.Html()
	if err != nil {
		return nil, err
	}

	markdown, err := htmltomarkdown.ConvertString(prepared)
	if err != nil || strings.TrimSpace(markdown) == "" {
		return splitLines(doc.Text()), nil
	}
	return markdownLines(markdown), nil
}

// markdownLines strips the markdown syntax that would get in the way of the
// tokenizer and returns the non-empty lines.
func markdownLines(markdown string) []string {
	var lines []string
	for _, line := range strings.Split(markdown, "\n") {
		line = markdownLink.ReplaceAllString(line, "$1")
		line = markdownEscape.ReplaceAllString(line, "$1")
		line = strings.NewReplacer("**", "", "__", "", "`", "").Replace(line)
		line = markdownLead.ReplaceAllString(strings.TrimSpace(line), "")
		line = strings.Join(strings.Fields(line), " ")
		if line == "" || markdownRule.MatchString(line) {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

// splitLines returns the trimmed, non-empty lines of text.
func splitLines(text string) []string {
	var lines []string
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func nonEmpty(values []string) []string {
	out := values[:0]
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
