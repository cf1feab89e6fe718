// Package search implements C7: fuzzy lookup over a server's advertised
// tools, resources, and prompts, so a large capability set can be
// searched by name or description rather than scrolled through.
package search

import (
	"sort"
	"strings"
)

// Category names which capability list an entry came from.
type Category string

const (
	CategoryTool     Category = "tool"
	CategoryResource Category = "resource"
	CategoryPrompt   Category = "prompt"
)

// Entry is one searchable capability.
type Entry struct {
	Category    Category
	Name        string
	Description string
	SourceIndex int // index into the originating ListXResult slice
}

// Result is a single scored match.
type Result struct {
	Index       int // index into the Index's Entries, not SourceIndex
	Score       int
	MatchReason string
}

const scoreFloor = 20

const (
	scoreExact      = 100
	scorePrefix     = 90
	scoreSubstring  = 70
	scoreDescription = 50
	scoreTokenMax   = 30
	scoreFuzzyMax   = 40
)

// Index is a synchronous, in-memory fuzzy index over a capability set.
// It is immutable once built; callers rebuild a new Index when the
// server's tool/resource/prompt set changes.
type Index struct {
	entries []Entry
}

// Build constructs an Index over entries, preserving their order
// (ties in Query results break toward lower index).
func Build(entries []Entry) *Index {
	cp := make([]Entry, len(entries))
	copy(cp, entries)
	return &Index{entries: cp}
}

// Entries returns the indexed entries in build order.
func (ix *Index) Entries() []Entry {
	return ix.entries
}

// Query scores every entry against q and returns up to limit results
// above the score floor, sorted by descending score and then by
// ascending index.
func (ix *Index) Query(q string, limit int) []Result {
	q = strings.TrimSpace(strings.ToLower(q))
	if q == "" {
		return nil
	}

	var results []Result
	for i, e := range ix.entries {
		score, reason := scoreEntry(q, e)
		if score < scoreFloor {
			continue
		}
		results = append(results, Result{Index: i, Score: score, MatchReason: reason})
	}

	sort.SliceStable(results, func(a, b int) bool {
		if results[a].Score != results[b].Score {
			return results[a].Score > results[b].Score
		}
		return results[a].Index < results[b].Index
	})

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results
}

// scoreEntry applies every rule and returns the maximum-scoring one.
func scoreEntry(q string, e Entry) (int, string) {
	name := strings.ToLower(e.Name)
	desc := strings.ToLower(e.Description)

	best, reason := 0, ""
	consider := func(score int, r string) {
		if score > best {
			best, reason = score, r
		}
	}

	if name == q {
		consider(scoreExact, "exact")
	}
	if strings.HasPrefix(name, q) {
		consider(scorePrefix, "prefix")
	}
	if strings.Contains(name, q) {
		consider(scoreSubstring, "substring")
	}
	if desc != "" && strings.Contains(desc, q) {
		consider(scoreDescription, "description")
	}
	if ratio := tokenMatchRatio(q, name, desc); ratio > 0 {
		consider(int(float64(scoreTokenMax)*ratio), "token")
	}

	threshold := fuzzyThreshold(len(name))
	if dist := boundedLevenshtein(q, name, threshold); dist >= 0 {
		ratio := 1.0 - float64(dist)/float64(threshold)
		consider(int(float64(scoreFuzzyMax)*ratio), "fuzzy")
	}

	return best, reason
}

// tokenMatchRatio splits name and desc on non-alphanumeric boundaries and
// reports the fraction of q's tokens that appear as whole tokens in
// name ∪ desc.
func tokenMatchRatio(q, name, desc string) float64 {
	qTokens := tokenize(q)
	if len(qTokens) == 0 {
		return 0
	}
	nameTokens := make(map[string]struct{})
	for _, t := range tokenize(name) {
		nameTokens[t] = struct{}{}
	}
	for _, t := range tokenize(desc) {
		nameTokens[t] = struct{}{}
	}
	matched := 0
	for _, t := range qTokens {
		if _, ok := nameTokens[t]; ok {
			matched++
		}
	}
	return float64(matched) / float64(len(qTokens))
}

func tokenize(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r >= 'A' && r <= 'Z')
	})
}

// fuzzyThreshold bounds the edit distance allowed for a fuzzy match, so
// short names aren't swamped by noise and long names get proportionally
// more slack.
func fuzzyThreshold(nameLen int) int {
	t := nameLen / 4
	if t < 2 {
		t = 2
	}
	return t
}
