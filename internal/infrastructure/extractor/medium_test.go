package extractor

import (
	"testing"
	"time"

	"FeedHarvester/internal/domain"
)

const sampleFragment = `
<div>
  <article>
    <div data-href="/p/writing-better-go-abc123?source=list_home---------0">
      <a href="/@janedoe"><span>Jane Doe</span></a>
      <a href="https://medium.com/better-coding">Better Coding</a>
      <h2>Writing Better Go</h2>
      <h3>Lessons from five years of production services.</h3>
      <time datetime="2026-01-05T00:00:00Z">Jan 5</time>
      <span data-testid="clapCount">1.2K</span>
      <span data-testid="responsesCount">14</span>
    </div>
  </article>
  <article>
    <div data-href="https://medium.com/p/no-counts-def456">
      <h2>No Counts Here</h2>
      <time>3d ago</time>
    </div>
  </article>
  <article>
    <div>
      <h2>Orphaned item without a link</h2>
    </div>
  </article>
</div>`

func TestExtractFragment(t *testing.T) {
	t.Parallel()

	m := NewMediumList("https://medium.com", nil)
	candidates, err := m.Extract(sampleFragment)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}

	// The linkless third article is skipped.
	if len(candidates) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(candidates))
	}

	first := candidates[0]
	if first.Title != "Writing Better Go" {
		t.Fatalf("unexpected title: %q", first.Title)
	}
	if first.Snippet != "Lessons from five years of production services." {
		t.Fatalf("unexpected snippet: %q", first.Snippet)
	}
	if first.Author != "Jane Doe" {
		t.Fatalf("unexpected author: %q", first.Author)
	}
	if first.Publication != "Better Coding" {
		t.Fatalf("unexpected publication: %q", first.Publication)
	}
	if first.PublishedAt != "2026-01-05T00:00:00Z" {
		t.Fatalf("unexpected published-at: %q", first.PublishedAt)
	}
	if first.Claps != "1.2K" || first.Responses != "14" {
		t.Fatalf("unexpected counts: claps=%q responses=%q", first.Claps, first.Responses)
	}

	second := candidates[1]
	if second.Link != "https://medium.com/p/no-counts-def456" {
		t.Fatalf("unexpected link: %q", second.Link)
	}
	if second.PublishedAt != "3d ago" {
		t.Fatalf("unexpected relative date: %q", second.PublishedAt)
	}
}

func TestBuildFinalizesCandidate(t *testing.T) {
	t.Parallel()

	m := NewMediumList("https://medium.com", nil)
	extractedAt := time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)

	rec, err := m.Build(domain.RawCandidate{
		Link:        "/p/writing-better-go-abc123?source=list_home---------0",
		Title:       "  Writing   Better Go ",
		Snippet:     "Lessons\nfrom production.",
		Author:      "Jane Doe",
		PublishedAt: "3d ago",
		Claps:       "1.2K",
		Responses:   "14",
	}, extractedAt)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	if rec.Identity != "https://medium.com/p/writing-better-go-abc123" {
		t.Fatalf("unexpected identity: %s", rec.Identity)
	}
	if rec.Title != "Writing Better Go" {
		t.Fatalf("whitespace not collapsed: %q", rec.Title)
	}
	if rec.Claps != 1200 || rec.Responses != 14 {
		t.Fatalf("unexpected counts: %d/%d", rec.Claps, rec.Responses)
	}
	if rec.PublishedAt == nil || !rec.PublishedAt.Equal(extractedAt.Add(-3*24*time.Hour)) {
		t.Fatalf("unexpected published-at: %v", rec.PublishedAt)
	}
	if !rec.ExtractedAt.Equal(extractedAt) {
		t.Fatalf("unexpected extracted-at: %v", rec.ExtractedAt)
	}
}

func TestBuildRejectsMissingIdentity(t *testing.T) {
	t.Parallel()

	m := NewMediumList("https://medium.com", nil)
	if _, err := m.Build(domain.RawCandidate{Title: "No link"}, time.Now()); err == nil {
		t.Fatal("candidate without a resolvable link must be rejected")
	}
}

func TestBuildIdentityStableAcrossTrackingVariants(t *testing.T) {
	t.Parallel()

	m := NewMediumList("https://medium.com", nil)
	now := time.Now()

	a, err := m.Build(domain.RawCandidate{Link: "https://medium.com/p/abc?source=home"}, now)
	if err != nil {
		t.Fatalf("build a: %v", err)
	}
	b, err := m.Build(domain.RawCandidate{Link: "/p/abc?utm_source=feed"}, now)
	if err != nil {
		t.Fatalf("build b: %v", err)
	}
	if a.Identity != b.Identity {
		t.Fatalf("identities diverged: %q vs %q", a.Identity, b.Identity)
	}
}

func TestBuildMalformedCountsStayZero(t *testing.T) {
	t.Parallel()

	m := NewMediumList("https://medium.com", nil)
	rec, err := m.Build(domain.RawCandidate{
		Link:      "/p/abc",
		Claps:     "a few",
		Responses: "",
	}, time.Now())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if rec.Claps != 0 || rec.Responses != 0 {
		t.Fatalf("malformed counts must stay zero, got %d/%d", rec.Claps, rec.Responses)
	}
}
