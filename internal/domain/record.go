package domain

import "time"

// Record is a single harvested feed item. Identity is the normalized
// canonical link and the sole deduplication key; every other field may be
// absent.
type Record struct {
	Identity    string     `json:"identity"`
	Title       string     `json:"title"`
	Snippet     string     `json:"snippet,omitempty"`
	Author      string     `json:"author,omitempty"`
	Publication string     `json:"publication,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	Claps       int        `json:"claps"`
	Responses   int        `json:"responses"`
	ExtractedAt time.Time  `json:"extracted_at"`
}

// RawCandidate carries the unnormalized fields of one item as the extractor
// saw them in the rendered fragment.
type RawCandidate struct {
	Link        string
	Title       string
	Snippet     string
	Author      string
	Publication string
	PublishedAt string
	Claps       string
	Responses   string
}

// Identity is one request persona: a user agent plus the header set sent
// with every fetch made under it.
type Identity struct {
	UserAgent string
	Headers   map[string]string
}
