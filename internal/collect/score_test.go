package collect

import "testing"

func TestKeywordMatcher_Count(t *testing.T) {
	t.Parallel()

	m := newKeywordMatcher(defaultKeywords)

	tests := []struct {
		name string
		text string
		want int
	}{
		{
			name: "multiple distinct keywords",
			text: "new optimization algorithm speeds up machine learning with gradient descent",
			want: 4,
		},
		{
			name: "keyword counted once per text",
			text: "optimization optimization optimization",
			want: 1,
		},
		{
			name: "phrase implies its words",
			text: "advances in linear programming",
			want: 2, // "linear programming" and "programming"
		},
		{
			name: "no keywords",
			text: "quarterly earnings call transcript",
			want: 0,
		},
		{
			name: "substring of a word does not count",
			text: "metaheuristics conference announced",
			want: 0, // "metaheuristic" and "heuristic" need word boundaries
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := m.count(tc.text); got != tc.want {
				t.Errorf("count(%q) = %d, want %d", tc.text, got, tc.want)
			}
		})
	}
}

func TestKeywordMatcher_Matches(t *testing.T) {
	t.Parallel()

	m := newKeywordMatcher(defaultExcludeKeywords)

	tests := []struct {
		name string
		text string
		want bool
	}{
		{name: "exclude hit", text: "celebrity spotted downtown", want: true},
		{name: "word boundary protects software", text: "software update improves solvers", want: false},
		{name: "word boundary protects hardware", text: "new hardware accelerators", want: false},
		{name: "war as a word", text: "war coverage continues", want: true},
		{name: "clean tech text", text: "compiler optimizations explained", want: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := m.matches(tc.text); got != tc.want {
				t.Errorf("matches(%q) = %v, want %v", tc.text, got, tc.want)
			}
		})
	}
}

func TestKeywordMatcher_SkipsBlankKeywords(t *testing.T) {
	t.Parallel()

	m := newKeywordMatcher([]string{"", "  ", "solver"})
	if got := m.count("a solver benchmark"); got != 1 {
		t.Errorf("count = %d, want 1", got)
	}
}
