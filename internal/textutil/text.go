package textutil

import (
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// droppedElements never contribute readable text.
var droppedElements = "script, style, noscript, template, svg"

// HTMLToText parses r as HTML and returns its readable text with
// whitespace collapsed to single spaces.
func HTMLToText(r io.Reader) (string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", err
	}
	doc.Find(droppedElements).Remove()
	// Block elements run together in Text(); pad them so words stay apart.
	doc.Find("p, div, br, li, h1, h2, h3, h4, h5, h6, tr, td, section, article").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml(" ")
	})
	return CollapseWhitespace(doc.Text()), nil
}

// CollapseWhitespace joins every whitespace run into one space and trims.
func CollapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Truncate returns at most limit runes of s.
func Truncate(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == limit {
			return s[:i]
		}
		count++
	}
	return s
}

// Chunks splits s into pieces of at most limit runes, preferring line breaks.
func Chunks(s string, limit int) []string {
	if limit <= 0 || s == "" {
		return nil
	}
	var out []string
	for s != "" {
		head := Truncate(s, limit)
		if len(head) == len(s) {
			out = append(out, s)
			break
		}
		if cut := strings.LastIndex(head, "\n"); cut > 0 {
			head = head[:cut+1]
		}
		out = append(out, head)
		s = s[len(head):]
	}
	return out
}
