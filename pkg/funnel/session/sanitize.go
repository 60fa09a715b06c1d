package session

import "strings"

// Sanitize trims v and maps the null-like tokens a browser form can leak
// ("null", "undefined") to "". Sanitize(Sanitize(v)) == Sanitize(v).
func Sanitize(v string) string {
	t := strings.TrimSpace(v)
	if t == "null" || t == "undefined" {
		return ""
	}
	return t
}

// NormalizeHandle turns "@DraAna " into "draana".
func NormalizeHandle(v string) string {
	h := Sanitize(v)
	for strings.HasPrefix(h, "@") {
		h = strings.TrimSpace(strings.TrimPrefix(h, "@"))
	}
	return Sanitize(strings.ToLower(h))
}

func sanitizeAll(values []string, max int) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if s := Sanitize(v); s != "" {
			out = append(out, s)
		}
		if len(out) == max {
			break
		}
	}
	return out
}
