package collect

import (
	"regexp"
	"strings"
)

// defaultKeywords score how strongly a news entry relates to mathematical
// optimization. Each keyword found in the entry text counts once.
var defaultKeywords = []string{
	"optimization", "optimisation", "algorithm", "programming",
	"linear programming", "integer programming", "convex",
	"machine learning", "data science", "operations research",
	"mathematical programming", "solver", "constraint",
	"heuristic", "metaheuristic", "genetic algorithm",
	"simulated annealing", "particle swarm", "gradient descent",
	"neural network", "deep learning", "reinforcement learning",
}

// defaultExcludeKeywords drop entries from unrelated beats before scoring.
var defaultExcludeKeywords = []string{
	"celebrity", "entertainment", "sports", "weather",
	"politics", "election", "crime", "accident", "war",
	"fashion", "food", "travel", "gossip",
}

// minRelevance is the score an entry needs to make the brief.
const minRelevance = 2

// keywordMatcher matches whole words, so "war" does not hit "software"
// and "food" does not hit "foodstuffs".
type keywordMatcher struct {
	patterns []*regexp.Regexp
}

func newKeywordMatcher(keywords []string) *keywordMatcher {
	m := &keywordMatcher{patterns: make([]*regexp.Regexp, 0, len(keywords))}
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		m.patterns = append(m.patterns, regexp.MustCompile(`\b`+regexp.QuoteMeta(kw)+`\b`))
	}
	return m
}

// count returns how many distinct keywords appear in text. The text must
// already be lowercased.
func (m *keywordMatcher) count(text string) int {
	n := 0
	for _, p := range m.patterns {
		if p.MatchString(text) {
			n++
		}
	}
	return n
}

// matches reports whether any keyword appears in text. The text must
// already be lowercased.
func (m *keywordMatcher) matches(text string) bool {
	for _, p := range m.patterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}
