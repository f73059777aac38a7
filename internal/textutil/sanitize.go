package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MaxTitleLength bounds sanitized titles.
const MaxTitleLength = 100

// fileNameReplacer replaces filesystem-unsafe characters with safe alternatives.
var fileNameReplacer = strings.NewReplacer(
	"/", "-",
	"\\", "-",
	":", "-",
	"*", "-",
	"?", "",
	"\"", "",
	"<", "",
	">", "",
	"|", "",
)

// SanitizeFileName replaces filesystem-unsafe characters in a filename.
// Slashes, backslashes, colons, and asterisks become dashes; other unsafe
// characters are removed. The result is trimmed of leading/trailing whitespace.
func SanitizeFileName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	return strings.TrimSpace(fileNameReplacer.Replace(name))
}

// SanitizeTitle folds a human title down to a bounded, filesystem-safe string.
// Accented letters lose their marks, then everything outside letters, digits,
// whitespace and `_-.()[]` is dropped. The result may be empty.
func SanitizeTitle(title string) string {
	folded := foldDiacritics(title)
	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		if !titleRuneAllowed(r) {
			continue
		}
		b.WriteRune(r)
		if b.Len() >= MaxTitleLength {
			break
		}
	}
	return strings.TrimSpace(b.String())
}

// TitleOrFallback returns the sanitized title, or video_<jobID> when nothing
// survives sanitization.
func TitleOrFallback(title, jobID string) string {
	if clean := SanitizeTitle(title); clean != "" {
		return clean
	}
	return FallbackTitle(jobID)
}

// FallbackTitle is the synthetic title for a job whose real title is unknown.
func FallbackTitle(jobID string) string {
	return "video_" + jobID
}

func foldDiacritics(value string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, value)
	if err != nil {
		return value
	}
	return out
}

func titleRuneAllowed(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == ' ', r == '\t':
		return true
	}
	return strings.ContainsRune("_-.()[]", r)
}
