package collect

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"
	"time"
)

const arxivFeedTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>ArXiv Query Results</title>
  <entry>
    <id>http://arxiv.org/abs/2603.01234v1</id>
    <title>Accelerated Methods for
Convex Optimization</title>
    <summary>%s</summary>
    <published>2026-03-15T01:30:00Z</published>
    <author><name>A. Researcher</name></author>
    <author><name>B. Analyst</name></author>
    <author><name>C. Theorist</name></author>
    <author><name>D. Fourth</name></author>
    <category term="math.OC"/>
    <category term="cs.DM"/>
    <category term="stat.ML"/>
    <link href="http://arxiv.org/abs/2603.01234v1"/>
  </entry>
  <entry>
    <id>http://arxiv.org/abs/2602.09999v2</id>
    <title>An Older Result on Integer Programming</title>
    <summary>Outside the lookback window.</summary>
    <published>2026-03-13T14:00:00Z</published>
    <author><name>E. Ancient</name></author>
    <category term="math.OC"/>
    <link href="http://arxiv.org/abs/2602.09999v2"/>
  </entry>
</feed>`

func newArxivTestCollector(t *testing.T, handler http.Handler) *Collector {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := New(Config{LookbackDays: 1}, slog.Default())
	c.arxivBase = srv.URL
	return c
}

func TestCollector_CollectPapers(t *testing.T) {
	t.Parallel()

	abstract := strings.Repeat("convex ", 100) // 700 runes, forces truncation
	var gotQuery string

	c := newArxivTestCollector(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("search_query")
		if got := r.URL.Query().Get("max_results"); got != "20" {
			t.Errorf("max_results = %q, want 20", got)
		}
		if got := r.URL.Query().Get("sortBy"); got != "submittedDate" {
			t.Errorf("sortBy = %q", got)
		}
		fmt.Fprintf(w, arxivFeedTemplate, abstract)
	}))

	// 23:50 JST on March 15th; lookback of one day keeps the 14th and 15th.
	now := time.Date(2026, 3, 15, 23, 50, 0, 0, c.jst)
	papers, err := c.collectPapers(context.Background(), now)
	if err != nil {
		t.Fatalf("collectPapers: %v", err)
	}

	if !strings.Contains(gotQuery, "cat:math.OC") {
		t.Errorf("search_query = %q, want the optimization category query", gotQuery)
	}

	if len(papers) != 1 {
		t.Fatalf("papers = %d, want 1 (older entry filtered out)", len(papers))
	}
	p := papers[0]
	if p.Title != "Accelerated Methods for Convex Optimization" {
		t.Errorf("Title = %q, want newline flattened", p.Title)
	}
	if !slices.Equal(p.Authors, []string{"A. Researcher", "B. Analyst", "C. Theorist"}) {
		t.Errorf("Authors = %v, want first three", p.Authors)
	}
	if n := len([]rune(p.Abstract)); n != abstractLimit+3 {
		t.Errorf("abstract length = %d runes, want %d plus ellipsis", n, abstractLimit)
	}
	if !strings.HasSuffix(p.Abstract, "...") {
		t.Errorf("Abstract = %q, want ellipsis suffix", p.Abstract[len(p.Abstract)-10:])
	}
	if p.URL != "http://arxiv.org/abs/2603.01234v1" {
		t.Errorf("URL = %q", p.URL)
	}
	if p.Published != "2026-03-15" {
		t.Errorf("Published = %q, want JST date", p.Published)
	}
	if len(p.Categories) != 3 {
		t.Errorf("Categories = %v", p.Categories)
	}
}

func TestCollector_CollectPapers_ServerError(t *testing.T) {
	t.Parallel()

	c := newArxivTestCollector(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))

	if _, err := c.collectPapers(context.Background(), time.Now()); err == nil {
		t.Fatal("expected error for HTTP 503")
	}
}

func TestCollector_CollectPapers_MalformedFeed(t *testing.T) {
	t.Parallel()

	c := newArxivTestCollector(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "this is not atom")
	}))

	if _, err := c.collectPapers(context.Background(), time.Now()); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestDateIn(t *testing.T) {
	t.Parallel()

	jst := jstLocation()
	// 16:30 UTC on the 14th is 01:30 JST on the 15th.
	utc := time.Date(2026, 3, 14, 16, 30, 0, 0, time.UTC)
	got := dateIn(utc, jst)
	want := time.Date(2026, 3, 15, 0, 0, 0, 0, jst)
	if !got.Equal(want) {
		t.Errorf("dateIn = %v, want %v", got, want)
	}
}
