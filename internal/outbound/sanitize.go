package outbound

import (
	"regexp"
	"strings"
)

var dangerous = []*regexp.Regexp{
	regexp.MustCompile(`(?is)<script\b.*?</script>`),
	regexp.MustCompile(`(?i)javascript:`),
	regexp.MustCompile(`(?i)on\w+\s*=`),
	regexp.MustCompile(`(?is)<iframe\b.*?</iframe>`),
	regexp.MustCompile(`(?is)<object\b.*?</object>`),
	regexp.MustCompile(`(?is)<embed\b.*?</embed>`),
}

// SanitizeString strips script-like fragments and trims the result. It is a
// coarse filter for outgoing form data, not an HTML sanitiser.
func SanitizeString(s string) string {
	for _, re := range dangerous {
		s = re.ReplaceAllString(s, "")
	}
	return strings.TrimSpace(s)
}

// Sanitize walks decoded JSON and cleans every string, including nested ones.
// Object keys and non-string scalars are untouched.
func Sanitize(v any) any {
	switch t := v.(type) {
	case string:
		return SanitizeString(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = Sanitize(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = Sanitize(item)
		}
		return out
	default:
		return v
	}
}
