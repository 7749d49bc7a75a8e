package generate

import (
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"leadflow/internal/textutil"
)

const (
	// SummaryInputLimit bounds the characters of source text sent for summarization.
	SummaryInputLimit = 4000
	// BlurbCount is the number of blurbs every artifact carries.
	BlurbCount = 5

	EmptySummary        = "No content available for summarization."
	FallbackCompanyName = "Professional Organization"
	FallbackDescription = "innovative solutions in the digital space."
	FallbackBlurb       = "Service offering tailored to your organization's needs."
)

var (
	boldPattern     = regexp.MustCompile(`\*\*(.*?)\*\*`)
	numberedPattern = regexp.MustCompile(`^\s*(\d+)[.)]\s*(.+?)\s*$`)
	hostLabelSplit  = regexp.MustCompile(`[-_.]+`)
)

// secondLevelSuffixes are registry labels skipped when deriving a name from a host.
var secondLevelSuffixes = map[string]struct{}{
	"co": {}, "com": {}, "org": {}, "net": {}, "ac": {}, "gov": {}, "ltd": {}, "plc": {},
}

// FlattenSummary removes markdown bold and line breaks, leaving one paragraph.
func FlattenSummary(raw string) string {
	return textutil.CollapseWhitespace(boldPattern.ReplaceAllString(raw, "$1"))
}

// PrepareSummaryInput truncates content for the summary prompt.
func PrepareSummaryInput(content string) string {
	content = strings.TrimSpace(content)
	truncated := textutil.Truncate(content, SummaryInputLimit)
	if len(truncated) < len(content) {
		return truncated + "\n\n[Content truncated for summarization...]"
	}
	return truncated
}

// CleanCompanyName returns the model's answer or "" when it is unusable.
func CleanCompanyName(raw string) string {
	name := strings.TrimSpace(raw)
	if idx := strings.IndexAny(name, "\r\n"); idx >= 0 {
		name = name[:idx]
	}
	name = strings.Trim(strings.TrimSpace(name), "\"'`*. ")
	switch strings.ToLower(name) {
	case "", "unknown", "n/a", "na", "none", "not available":
		return ""
	}
	return name
}

// CompanyNameFromWebsite derives a display name from the website host,
// e.g. "www.acme-tools.co.uk" → "Acme Tools".
func CompanyNameFromWebsite(website string) string {
	host := strings.TrimSpace(website)
	if host == "" {
		return ""
	}
	if strings.Contains(host, "://") {
		if parsed, err := url.Parse(host); err == nil {
			host = parsed.Hostname()
		}
	}
	host = strings.ToLower(strings.TrimPrefix(strings.ToLower(host), "www."))
	labels := strings.Split(host, ".")
	if len(labels) < 2 {
		return ""
	}
	labels = labels[:len(labels)-1]
	for len(labels) > 1 {
		if _, ok := secondLevelSuffixes[labels[len(labels)-1]]; !ok {
			break
		}
		labels = labels[:len(labels)-1]
	}
	name := labels[len(labels)-1]
	words := strings.Fields(hostLabelSplit.ReplaceAllString(name, " "))
	if len(words) == 0 {
		return ""
	}
	return cases.Title(language.English).String(strings.Join(words, " "))
}

// NormalizeDescription forces the "providing ..." phrasing the template expects.
func NormalizeDescription(raw string) string {
	desc := textutil.CollapseWhitespace(strings.Trim(strings.TrimSpace(raw), "\"'`"))
	if desc == "" {
		return ""
	}
	if strings.HasPrefix(strings.ToLower(desc), "providing ") {
		return "providing " + desc[len("providing "):]
	}
	return "providing " + desc
}

// ParseBlurbs extracts numbered lines, padding or truncating to BlurbCount.
// The second result reports whether any blurb came from the response.
func ParseBlurbs(raw string) ([]string, bool) {
	blurbs := make([]string, 0, BlurbCount)
	for _, line := range strings.Split(raw, "\n") {
		m := numberedPattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		text := textutil.CollapseWhitespace(boldPattern.ReplaceAllString(m[2], "$1"))
		if text == "" {
			continue
		}
		blurbs = append(blurbs, text)
		if len(blurbs) == BlurbCount {
			break
		}
	}
	parsed := len(blurbs) > 0
	for len(blurbs) < BlurbCount {
		blurbs = append(blurbs, FallbackBlurb)
	}
	return blurbs, parsed
}
