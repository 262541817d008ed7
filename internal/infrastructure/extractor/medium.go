package extractor

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"FeedHarvester/internal/domain"
	"FeedHarvester/internal/ports"
)

const (
	maxTitleLength   = 500
	maxSnippetLength = 1000
)

// MediumList extracts article candidates from Medium-style list markup:
// one <article> container per item, title in h2, snippet in h3, author link
// containing "@", timestamps in <time>, engagement counts behind testid
// attributes, and the canonical link in a data-href container.
type MediumList struct {
	baseURL string
	logger  *slog.Logger
}

var (
	_ ports.RecordExtractor = (*MediumList)(nil)
	_ ports.RecordBuilder   = (*MediumList)(nil)
)

// NewMediumList wires the extractor; baseURL resolves relative links.
func NewMediumList(baseURL string, logger *slog.Logger) *MediumList {
	return &MediumList{baseURL: baseURL, logger: logger}
}

// Extract parses one raw rendered fragment into candidates. Items that fail
// individually are skipped and logged, never fatal.
func (m *MediumList) Extract(fragment string) ([]domain.RawCandidate, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return nil, fmt.Errorf("parse fragment: %w", err)
	}

	var candidates []domain.RawCandidate
	doc.Find("article").Each(func(i int, sel *goquery.Selection) {
		candidate, ok := m.extractOne(sel)
		if !ok {
			m.debug("skipped article element", "index", i)
			return
		}
		candidates = append(candidates, candidate)
	})

	return candidates, nil
}

func (m *MediumList) extractOne(sel *goquery.Selection) (domain.RawCandidate, bool) {
	link := m.articleLink(sel)
	if link == "" {
		return domain.RawCandidate{}, false
	}

	candidate := domain.RawCandidate{
		Link:    link,
		Title:   strings.TrimSpace(sel.Find("h2").First().Text()),
		Snippet: strings.TrimSpace(sel.Find("h3").First().Text()),
	}

	author := sel.Find(`a[href*="@"]`).First()
	if author.Length() > 0 {
		text := strings.TrimSpace(author.Text())
		if idx := strings.IndexByte(text, '\n'); idx > 0 {
			text = text[:idx]
		}
		candidate.Author = text
	}

	pub := sel.Find(`a[href*="medium.com/"]:not([href*="@"])`).First()
	if pub.Length() > 0 {
		candidate.Publication = strings.TrimSpace(pub.Text())
	}

	if date := sel.Find("time").First(); date.Length() > 0 {
		if attr, exists := date.Attr("datetime"); exists && attr != "" {
			candidate.PublishedAt = attr
		} else {
			candidate.PublishedAt = strings.TrimSpace(date.Text())
		}
	}

	candidate.Claps = strings.TrimSpace(sel.Find(`[data-testid="clapCount"]`).First().Text())
	candidate.Responses = strings.TrimSpace(sel.Find(`[data-testid="responsesCount"]`).First().Text())

	return candidate, true
}

func (m *MediumList) articleLink(sel *goquery.Selection) string {
	if href, exists := sel.Find("[data-href]").First().Attr("data-href"); exists && href != "" {
		return href
	}
	if container, exists := sel.Attr("data-href"); exists && container != "" {
		return container
	}
	if href, exists := sel.Find("h2").Closest("a").Attr("href"); exists && href != "" {
		return href
	}
	if href, exists := sel.Find(`a[data-testid="post-preview-title"]`).Attr("href"); exists && href != "" {
		return href
	}
	return ""
}

// Build finalizes a candidate into a record. The identity is normalized
// here, exactly once; a candidate whose link cannot resolve is rejected.
func (m *MediumList) Build(c domain.RawCandidate, extractedAt time.Time) (domain.Record, error) {
	identity, err := NormalizeLink(c.Link, m.baseURL)
	if err != nil {
		return domain.Record{}, fmt.Errorf("resolve identity: %w", err)
	}

	rec := domain.Record{
		Identity:    identity,
		Title:       cleanText(c.Title, maxTitleLength),
		Snippet:     cleanText(c.Snippet, maxSnippetLength),
		Author:      cleanText(c.Author, 0),
		Publication: cleanText(c.Publication, 0),
		PublishedAt: ParsePublishedAt(c.PublishedAt, extractedAt),
		ExtractedAt: extractedAt,
	}
	if claps, ok := ParseCompactCount(c.Claps); ok {
		rec.Claps = claps
	}
	if responses, ok := ParseCompactCount(c.Responses); ok {
		rec.Responses = responses
	}
	return rec, nil
}

func (m *MediumList) debug(msg string, args ...any) {
	if m.logger != nil {
		m.logger.Debug(msg, args...)
	}
}
