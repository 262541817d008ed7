package extractor

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/araddon/dateparse"
)

var (
	compactExpr = regexp.MustCompile(`[^0-9.KM]`)
	spaceExpr   = regexp.MustCompile(`\s+`)

	hoursAgoExpr  = regexp.MustCompile(`(\d+)\s*h(?:ours?)?\s*ago`)
	daysAgoExpr   = regexp.MustCompile(`(\d+)\s*d(?:ays?)?\s*ago`)
	weeksAgoExpr  = regexp.MustCompile(`(\d+)\s*w(?:eeks?)?\s*ago`)
	monthsAgoExpr = regexp.MustCompile(`(\d+)\s*months?\s*ago`)
)

// NormalizeLink canonicalizes an article link into the record identity:
// relative links are resolved against base, scheme and host are lowercased,
// tracking query parameters and fragments are dropped, and the trailing
// slash is trimmed. Applied exactly once, at extraction time.
func NormalizeLink(link, base string) (string, error) {
	link = strings.TrimSpace(link)
	if link == "" {
		return "", fmt.Errorf("empty link")
	}

	if strings.HasPrefix(link, "//") {
		link = "https:" + link
	}
	if !strings.HasPrefix(link, "http://") && !strings.HasPrefix(link, "https://") {
		baseURL, err := url.Parse(base)
		if err != nil {
			return "", fmt.Errorf("invalid base url %s: %w", base, err)
		}
		rel, err := url.Parse(link)
		if err != nil {
			return "", fmt.Errorf("invalid link %s: %w", link, err)
		}
		link = baseURL.ResolveReference(rel).String()
	}

	parsed, err := url.Parse(link)
	if err != nil {
		return "", fmt.Errorf("invalid link %s: %w", link, err)
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("link %s has no host", link)
	}

	parsed.Scheme = strings.ToLower(parsed.Scheme)
	parsed.Host = strings.ToLower(parsed.Host)
	parsed.RawQuery = ""
	parsed.Fragment = ""
	parsed.Path = strings.TrimSuffix(parsed.Path, "/")

	return parsed.String(), nil
}

// ParseCompactCount parses engagement counts in compact notation: "1.2K"
// gives 1200, "3M" gives 3000000, "45" gives 45. The second return is false
// for malformed input; it never panics.
func ParseCompactCount(text string) (int, bool) {
	clean := compactExpr.ReplaceAllString(strings.ToUpper(strings.TrimSpace(text)), "")
	if clean == "" {
		return 0, false
	}

	multiplier := 1.0
	switch {
	case strings.Contains(clean, "K"):
		multiplier = 1_000
		clean = strings.ReplaceAll(clean, "K", "")
	case strings.Contains(clean, "M"):
		multiplier = 1_000_000
		clean = strings.ReplaceAll(clean, "M", "")
	}

	value, err := strconv.ParseFloat(clean, 64)
	if err != nil {
		return 0, false
	}
	return int(value * multiplier), true
}

// ParsePublishedAt resolves the raw published-at text into a timestamp.
// Relative forms ("3d ago", "2 weeks ago", "yesterday") resolve against the
// extraction time; month-day forms without a year assume the most recent
// occurrence; anything unresolvable stays nil, never guessed.
func ParsePublishedAt(raw string, extractedAt time.Time) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	lower := strings.ToLower(raw)

	switch {
	case strings.Contains(lower, "just now"), lower == "now", lower == "today":
		t := extractedAt
		return &t
	case lower == "yesterday":
		t := extractedAt.AddDate(0, 0, -1)
		return &t
	}

	relatives := []struct {
		expr *regexp.Regexp
		unit time.Duration
	}{
		{hoursAgoExpr, time.Hour},
		{daysAgoExpr, 24 * time.Hour},
		{weeksAgoExpr, 7 * 24 * time.Hour},
		{monthsAgoExpr, 30 * 24 * time.Hour},
	}
	for _, rel := range relatives {
		if m := rel.expr.FindStringSubmatch(lower); m != nil {
			n, err := strconv.Atoi(m[1])
			if err != nil {
				return nil
			}
			t := extractedAt.Add(-time.Duration(n) * rel.unit)
			return &t
		}
	}

	// Month-day without a year, e.g. "Jan 5".
	if parsed, err := time.Parse("Jan 2", raw); err == nil {
		t := time.Date(extractedAt.Year(), parsed.Month(), parsed.Day(), 0, 0, 0, 0, time.UTC)
		if t.After(extractedAt) {
			t = t.AddDate(-1, 0, 0)
		}
		return &t
	}

	if parsed, err := dateparse.ParseAny(raw); err == nil {
		return &parsed
	}
	return nil
}

// cleanText collapses whitespace and truncates on a word boundary. The
// cut never lands inside a multi-byte rune.
func cleanText(text string, maxLen int) string {
	cleaned := strings.TrimSpace(spaceExpr.ReplaceAllString(text, " "))
	if maxLen > 0 && len(cleaned) > maxLen {
		end := maxLen
		for end > 0 && !utf8.RuneStart(cleaned[end]) {
			end--
		}
		cut := cleaned[:end]
		if idx := strings.LastIndex(cut, " "); idx > 0 {
			cut = cut[:idx]
		}
		cleaned = cut + "..."
	}
	return cleaned
}
