package collect

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/mmcdole/gofeed"
)

// defaultArxivBaseURL is the arXiv API query endpoint.
const defaultArxivBaseURL = "https://export.arxiv.org/api/query"

// arxivQuery targets mathematical optimization: the math.OC category plus
// optimization-flavored discrete math, ML theory, and title phrases.
const arxivQuery = `cat:math.OC OR ` +
	`(cat:cs.DM AND (ti:optimization OR ti:programming OR ti:algorithm)) OR ` +
	`(cat:stat.ML AND ti:optimization) OR ` +
	`ti:"linear programming" OR ti:"integer programming" OR ` +
	`ti:"convex optimization" OR ti:"nonlinear programming" OR ` +
	`ti:"combinatorial optimization" OR ti:"stochastic optimization"`

// abstractLimit caps abstract length in the rendered brief, in runes.
const abstractLimit = 500

// maxAuthors caps the author list shown per paper.
const maxAuthors = 3

// Paper is one arXiv submission that made the brief.
type Paper struct {
	Title      string   `json:"title"`
	Authors    []string `json:"authors"`
	Abstract   string   `json:"abstract"`
	URL        string   `json:"url"`
	Published  string   `json:"published"`
	Categories []string `json:"categories"`
}

// collectPapers queries the arXiv API, sorted by submission date
// descending, and keeps submissions dated within the lookback window in
// JST.
func (c *Collector) collectPapers(ctx context.Context, now time.Time) ([]Paper, error) {
	q := url.Values{}
	q.Set("search_query", arxivQuery)
	q.Set("start", "0")
	q.Set("max_results", strconv.Itoa(c.cfg.ArxivMaxResults))
	q.Set("sortBy", "submittedDate")
	q.Set("sortOrder", "descending")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.arxivBase+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("collect: build arxiv request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("collect: query arxiv: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("collect: arxiv returned HTTP %d", resp.StatusCode)
	}

	feed, err := gofeed.NewParser().Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("collect: parse arxiv response: %w", err)
	}

	cutoff := dateIn(now, c.jst).AddDate(0, 0, -c.cfg.LookbackDays)

	var papers []Paper
	for _, item := range feed.Items {
		if item.PublishedParsed == nil {
			continue
		}
		published := dateIn(*item.PublishedParsed, c.jst)
		if published.Before(cutoff) {
			continue
		}

		var authors []string
		for _, a := range item.Authors {
			if a == nil || a.Name == "" {
				continue
			}
			authors = append(authors, a.Name)
			if len(authors) == maxAuthors {
				break
			}
		}

		link := item.GUID
		if link == "" {
			link = item.Link
		}

		papers = append(papers, Paper{
			Title:      flatten(item.Title),
			Authors:    authors,
			Abstract:   truncate(flatten(item.Description), abstractLimit),
			URL:        link,
			Published:  published.Format("2006-01-02"),
			Categories: item.Categories,
		})
	}
	return papers, nil
}

// dateIn truncates t to midnight of its day in loc.
func dateIn(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}
