package main

import (
	"strings"
	"unicode"
)

// normalizeToken converts raw user or catalog text into the canonical token
// form used everywhere: lowercase, trimmed, stripped of everything that is not
// a word character, whitespace, or hyphen, with whitespace runs collapsed to a
// single space. Returns "" for input that reduces to nothing; callers treat an
// empty result as an invalid token.
//
// Queries and stored tokens go through the same function so comparisons are
// symmetric.
func normalizeToken(s string) string {
	s = strings.ToLower(s)
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '-':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// generateTokens builds the write-time token set for a catalog name: the full
// normalized form plus every normalized word of at least two characters.
// Prefix rows are deliberately not generated; the token table is unique per
// normalized text, so prefixes like "ma" would collide across substances.
// Prefix matching happens at query time instead.
func generateTokens(name string) []string {
	seen := make(map[string]bool)
	var tokens []string

	full := normalizeToken(name)
	if full != "" {
		seen[full] = true
		tokens = append(tokens, full)
	}

	for _, word := range strings.FieldsFunc(strings.ToLower(name), func(r rune) bool {
		return unicode.IsSpace(r) || r == '-'
	}) {
		norm := normalizeToken(word)
		if len(norm) >= 2 && !seen[norm] {
			seen[norm] = true
			tokens = append(tokens, norm)
		}
	}

	return tokens
}

// levenshtein computes the edit distance between two strings.
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(ra)+1)
	curr := make([]int, len(ra)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(rb); i++ {
		curr[0] = i
		for j := 1; j <= len(ra); j++ {
			cost := 1
			if rb[i-1] == ra[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j-1]+cost, curr[j-1]+1, prev[j]+1)
		}
		prev, curr = curr, prev
	}

	return prev[len(ra)]
}

// matchScore rates how closely a normalized query matches a normalized token,
// 0-100, higher is better: exact 100, prefix 90, substring 80, anything else a
// Levenshtein similarity capped at 70. Deterministic for identical inputs and
// monotone in closeness, which is all the ranking contract requires.
func matchScore(query, token string) int {
	if query == token {
		return 100
	}
	if strings.HasPrefix(token, query) {
		return 90
	}
	if strings.Contains(token, query) {
		return 80
	}

	maxLen := len([]rune(query))
	if l := len([]rune(token)); l > maxLen {
		maxLen = l
	}
	if maxLen == 0 {
		return 0
	}
	similarity := 1 - float64(levenshtein(query, token))/float64(maxLen)
	return int(similarity * 70)
}
