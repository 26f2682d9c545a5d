package blogsync

import (
	"net/url"
	"path"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Slugify converts text to a URL-safe slug made of [a-z0-9] runs joined by
// single hyphens. Accented letters lose their marks ("Café" -> "cafe").
func Slugify(s string) string {
	s = foldMarks(s)
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	prev := false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			prev = false
		default:
			if !prev && b.Len() > 0 {
				b.WriteByte('-')
				prev = true
			}
		}
	}
	return strings.TrimRight(b.String(), "-")
}

func foldMarks(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// GenerateSlug derives an entry's slug from its title, falling back to the
// file's base name without the .md extension when the title is missing or
// has no sluggable characters.
func GenerateSlug(title *string, filePath string) string {
	if title != nil {
		if s := Slugify(*title); s != "" {
			return s
		}
	}
	trimmed := strings.TrimSuffix(filePath, ".md")
	if s := Slugify(path.Base(trimmed)); s != "" {
		return s
	}
	// File names made only of punctuation still need a stable key.
	if s := Slugify(trimmed); s != "" {
		return s
	}
	return "untitled"
}

// BuildURL joins a base URL with path segments, ensuring a trailing slash.
func BuildURL(base string, pathSegments ...string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	u.Path = path.Join(u.Path, path.Join(pathSegments...))
	if len(pathSegments) > 0 && !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return u.String()
}

// deref returns the pointed-to string or "".
func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
