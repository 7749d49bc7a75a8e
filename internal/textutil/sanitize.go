package textutil

import "strings"

// fileNameReplacer replaces filesystem-unsafe characters with safe alternatives.
var fileNameReplacer = strings.NewReplacer(
	"/", "_",
	"\\", "_",
	":", "_",
	"*", "_",
	"?", "_",
	"\"", "_",
	"<", "_",
	">", "_",
	"|", "_",
)

// SanitizeFileName replaces filesystem-unsafe characters in a filename with
// underscores. The result is trimmed of leading/trailing whitespace.
func SanitizeFileName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	return strings.TrimSpace(fileNameReplacer.Replace(name))
}

// FileStem turns a display name into a single path segment: unsafe
// characters and whitespace become underscores, runs collapse, and the
// result never starts with a dot. Empty input yields fallback.
func FileStem(value, fallback string) string {
	cleaned := SanitizeFileName(value)
	var b strings.Builder
	lastUnderscore := false
	for _, r := range cleaned {
		switch {
		case r == ' ' || r == '\t' || r == '_' || r < 0x20:
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		default:
			b.WriteRune(r)
			lastUnderscore = false
		}
	}
	out := strings.Trim(b.String(), "_.")
	if out == "" {
		return fallback
	}
	return out
}
