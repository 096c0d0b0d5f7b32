package source

import (
	"strings"
	"time"
)

// CanonicalLayout is the format of domain.Article.PublishedAt.
const CanonicalLayout = "2006-01-02 15:04:05"

var upstreamLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05-0700",
	"2006-01-02T15:04:05",
	CanonicalLayout,
	"2006-01-02",
}

// ParseTimestamp parses any timestamp form the upstream APIs emit. Values
// without a zone are read as UTC.
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range upstreamLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// NormalizeTimestamp converts an upstream timestamp to the canonical UTC
// form, or returns "" when s cannot be parsed.
func NormalizeTimestamp(s string) string {
	t, ok := ParseTimestamp(s)
	if !ok {
		return ""
	}
	return t.UTC().Format(CanonicalLayout)
}

// IsValidISO8601 reports whether s is a complete ISO-8601 date-time with an
// explicit offset that round-trips unchanged, e.g. 2024-11-20T00:00:00Z or
// 2024-11-20T00:00:00+05:30.
func IsValidISO8601(s string) bool {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return false
	}
	formatted := t.Format(time.RFC3339)
	if formatted == s {
		return true
	}
	// A zero offset formats as Z; accept the numeric spelling too.
	return strings.HasSuffix(formatted, "Z") && strings.TrimSuffix(formatted, "Z")+"+00:00" == s
}
