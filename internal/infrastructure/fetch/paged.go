package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"

	"FeedHarvester/internal/ports"
	"FeedHarvester/pkg/logger"
)

// PagedClient satisfies the fetch port for feeds whose scroll increments
// are reachable as plain HTTP pages: each advance requests the next page
// window and returns its raw HTML as the fragment. The position marker is
// the item offset, opaque to the engine.
type PagedClient struct {
	http       *resty.Client
	identities ports.IdentitySource
	feedURL    string
	pageSize   int
	logger     *slog.Logger
}

var _ ports.FetchPort = (*PagedClient)(nil)

// Options configures the adapter.
type Options struct {
	FeedURL  string
	PageSize int
	Timeout  time.Duration
}

// NewPagedClient builds the resty client with a cloudflare-bypass transport.
func NewPagedClient(opts Options, identities ports.IdentitySource, log *slog.Logger) *PagedClient {
	client := resty.New()
	client.SetTimeout(opts.Timeout)
	client.SetLogger(logger.NewPrintf(log))
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)

	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = 25
	}

	return &PagedClient{
		http:       client,
		identities: identities,
		feedURL:    opts.FeedURL,
		pageSize:   pageSize,
		logger:     log,
	}
}

// Advance requests the page window at position and returns the raw HTML
// plus the next position. Timeouts and non-200 statuses surface as errors
// the engine treats as retryable content-capture failures.
func (c *PagedClient) Advance(ctx context.Context, position string) (ports.AdvanceResult, error) {
	offset := 0
	if position != "" {
		parsed, err := strconv.Atoi(position)
		if err != nil {
			return ports.AdvanceResult{}, fmt.Errorf("bad position marker %q: %w", position, err)
		}
		offset = parsed
	}

	pageURL, err := buildPageURL(c.feedURL, offset, c.pageSize)
	if err != nil {
		return ports.AdvanceResult{}, err
	}

	req := c.http.R().SetContext(ctx)
	c.applyIdentity(req)

	resp, err := req.Get(pageURL)
	if err != nil {
		return ports.AdvanceResult{}, fmt.Errorf("advance at offset %d: %w", offset, err)
	}
	if resp.StatusCode() != 200 {
		return ports.AdvanceResult{}, fmt.Errorf("advance at offset %d: feed returned %s", offset, resp.Status())
	}

	return ports.AdvanceResult{
		Position:  strconv.Itoa(offset + c.pageSize),
		Fragment:  resp.String(),
		EndOfFeed: len(resp.Body()) == 0,
	}, nil
}

// RenderReady probes whether the feed responds at all.
func (c *PagedClient) RenderReady(ctx context.Context) bool {
	req := c.http.R().SetContext(ctx)
	c.applyIdentity(req)
	resp, err := req.Head(c.feedURL)
	return err == nil && resp.StatusCode() < 500
}

func (c *PagedClient) applyIdentity(req *resty.Request) {
	if c.identities == nil {
		return
	}
	id := c.identities.Current()
	req.SetHeader("User-Agent", id.UserAgent)
	for k, v := range id.Headers {
		req.SetHeader(k, v)
	}
}

func buildPageURL(base string, skip, pageSize int) (string, error) {
	parsed, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid feed url %s: %w", base, err)
	}

	query := parsed.Query()
	query.Set("skip", strconv.Itoa(skip))
	query.Set("limit", strconv.Itoa(pageSize))
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}
