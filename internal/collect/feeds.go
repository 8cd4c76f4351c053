package collect

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/mmcdole/gofeed"
)

// Per-feed scan and brief-wide keep limits.
const (
	feedScanLimit    = 10 // entries checked per feed
	newsCollectLimit = 8  // stop scanning once this many entries qualify
	newsKeepLimit    = 5  // top-scored entries kept in the brief
	summaryLimit     = 300
	maxFeedBody      = 10 << 20
)

// NewsItem is one news entry that made the brief.
type NewsItem struct {
	Title     string `json:"title"`
	Link      string `json:"link"`
	Published string `json:"published"`
	Summary   string `json:"summary"`
	Relevance int    `json:"relevance_score"`
}

// collectNews scans the configured feeds and keeps the top-scored
// entries. Feed failures are logged and skipped so one dead feed never
// empties the brief.
func (c *Collector) collectNews(ctx context.Context) []NewsItem {
	include := newKeywordMatcher(c.cfg.Keywords)
	exclude := newKeywordMatcher(c.cfg.ExcludeKeywords)

	var items []NewsItem
	for _, feedURL := range c.cfg.Feeds {
		if len(items) >= newsCollectLimit {
			break
		}
		feed, err := c.fetchFeed(ctx, feedURL)
		if err != nil {
			c.logger.Warn("feed fetch failed", "feed", feedURL, "error", err)
			continue
		}
		items = c.scanFeed(feed, items, include, exclude)
	}

	slices.SortStableFunc(items, func(a, b NewsItem) int { return b.Relevance - a.Relevance })
	if len(items) > newsKeepLimit {
		items = items[:newsKeepLimit]
	}
	return items
}

// scanFeed scores the first feedScanLimit entries of one feed and appends
// the qualifying ones.
func (c *Collector) scanFeed(feed *gofeed.Feed, items []NewsItem, include, exclude *keywordMatcher) []NewsItem {
	entries := feed.Items
	if len(entries) > feedScanLimit {
		entries = entries[:feedScanLimit]
	}

	for _, entry := range entries {
		combined := strings.ToLower(entry.Title + " " + entry.Description)
		if exclude.matches(combined) {
			continue
		}
		score := include.count(combined)
		if score < minRelevance {
			continue
		}

		items = append(items, NewsItem{
			Title:     flatten(entry.Title),
			Link:      entry.Link,
			Published: c.formatEntryTime(entry),
			Summary:   truncate(flatten(entry.Description), summaryLimit),
			Relevance: score,
		})
		if len(items) >= newsCollectLimit {
			break
		}
	}
	return items
}

// formatEntryTime renders an entry's publication time in JST, falling
// back to the feed's raw string when it cannot be parsed.
func (c *Collector) formatEntryTime(entry *gofeed.Item) string {
	if entry.PublishedParsed != nil {
		return entry.PublishedParsed.In(c.jst).Format("2006-01-02 15:04 JST")
	}
	if entry.Published != "" {
		return entry.Published
	}
	return "unknown"
}

// fetchFeed retrieves one feed with a conditional GET. A 304 reuses the
// cached body from a previous run, which the pipeline's cache step carries
// across runs.
func (c *Collector) fetchFeed(ctx context.Context, feedURL string) (*gofeed.Feed, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("collect: build feed request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	state := c.feeds.state(feedURL)
	if state.ETag != "" {
		req.Header.Set("If-None-Match", state.ETag)
	}
	if state.LastModified != "" {
		req.Header.Set("If-Modified-Since", state.LastModified)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("collect: fetch feed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK:
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBody))
		if err != nil {
			return nil, fmt.Errorf("collect: read feed body: %w", err)
		}
		c.feeds.store(feedURL, feedState{
			ETag:         resp.Header.Get("Etag"),
			LastModified: resp.Header.Get("Last-Modified"),
		}, body)
		return parseFeed(body)

	case http.StatusNotModified:
		body, err := c.feeds.body(feedURL)
		if err != nil {
			return nil, fmt.Errorf("collect: feed not modified but cache unreadable: %w", err)
		}
		return parseFeed(body)

	default:
		return nil, fmt.Errorf("collect: feed returned HTTP %d", resp.StatusCode)
	}
}

func parseFeed(body []byte) (*gofeed.Feed, error) {
	feed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("collect: parse feed: %w", err)
	}
	return feed, nil
}

// feedState holds the validators for one feed's conditional GETs.
type feedState struct {
	ETag         string `json:"etag,omitempty"`
	LastModified string `json:"last_modified,omitempty"`
}

// feedCache persists feed bodies and validators under the collector's
// cache directory. A nil cache disables conditional GETs.
type feedCache struct {
	dir    string
	states map[string]feedState
}

// openFeedCache loads the validator index from dir. An empty dir returns
// nil; a missing or corrupt index starts fresh.
func openFeedCache(dir string) *feedCache {
	if dir == "" {
		return nil
	}
	fc := &feedCache{dir: dir, states: make(map[string]feedState)}
	data, err := os.ReadFile(filepath.Join(dir, "feed_state.json"))
	if err != nil {
		return fc
	}
	if err := json.Unmarshal(data, &fc.states); err != nil {
		fc.states = make(map[string]feedState)
	}
	return fc
}

func (fc *feedCache) state(feedURL string) feedState {
	if fc == nil {
		return feedState{}
	}
	return fc.states[feedURL]
}

// store writes the feed body and its validators. Failures leave the cache
// without validators for this feed, which only costs a full refetch.
func (fc *feedCache) store(feedURL string, st feedState, body []byte) {
	if fc == nil || (st.ETag == "" && st.LastModified == "") {
		return
	}
	if err := os.MkdirAll(filepath.Join(fc.dir, "feeds"), 0o700); err != nil {
		return
	}
	if err := os.WriteFile(fc.bodyPath(feedURL), body, 0o600); err != nil {
		return
	}
	fc.states[feedURL] = st

	data, err := json.MarshalIndent(fc.states, "", "  ")
	if err != nil {
		return
	}
	_ = os.WriteFile(filepath.Join(fc.dir, "feed_state.json"), data, 0o600)
}

func (fc *feedCache) body(feedURL string) ([]byte, error) {
	if fc == nil {
		return nil, fmt.Errorf("collect: feed cache disabled")
	}
	return os.ReadFile(fc.bodyPath(feedURL))
}

func (fc *feedCache) bodyPath(feedURL string) string {
	sum := sha256.Sum256([]byte(feedURL))
	return filepath.Join(fc.dir, "feeds", hex.EncodeToString(sum[:8])+".xml")
}
