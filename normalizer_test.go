package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeToken(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lowercases", "Magnesium", "magnesium"},
		{"trims", "  omega-3  ", "omega-3"},
		{"strips punctuation", "St. John's Wort!", "st johns wort"},
		{"keeps hyphens", "co-enzyme q10", "co-enzyme q10"},
		{"collapses whitespace", "vitamin   d\t3", "vitamin d 3"},
		{"keeps digits", "Vitamin B12", "vitamin b12"},
		{"garbage to empty", "!!! ???", ""},
		{"empty stays empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizeToken(tt.in))
		})
	}
}

func TestNormalizeTokenIdempotent(t *testing.T) {
	inputs := []string{
		"Magnesium Glycinate", "  Vitamin D3 (cholecalciferol)  ", "ω-3 fatty acids",
		"st. john's wort", "", "!!!", "CoQ10 — Ubiquinol", "tylenol®",
	}
	for _, in := range inputs {
		once := normalizeToken(in)
		assert.Equal(t, once, normalizeToken(once), "normalize(normalize(%q))", in)
	}
}

func TestGenerateTokens(t *testing.T) {
	tokens := generateTokens("Magnesium Glycinate")
	assert.Contains(t, tokens, "magnesium glycinate")
	assert.Contains(t, tokens, "magnesium")
	assert.Contains(t, tokens, "glycinate")

	// Single-character words are dropped, duplicates collapse.
	tokens = generateTokens("Vitamin D")
	assert.Contains(t, tokens, "vitamin d")
	assert.Contains(t, tokens, "vitamin")
	assert.NotContains(t, tokens, "d")

	assert.Empty(t, generateTokens("!!!"))
}

func TestGenerateTokensNoPrefixRows(t *testing.T) {
	// Prefix rows would collide across substances in the unique token table.
	for _, tok := range generateTokens("magnesium") {
		require.GreaterOrEqual(t, len(tok), 2)
	}
	assert.NotContains(t, generateTokens("magnesium"), "ma")
	assert.NotContains(t, generateTokens("magnesium"), "mag")
}

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"abc", "", 3},
		{"", "abc", 3},
		{"kitten", "sitting", 3},
		{"magnesium", "magnesium", 0},
		{"melatonin", "melatonine", 1},
		{"tumeric", "turmeric", 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, levenshtein(tt.a, tt.b), "levenshtein(%q, %q)", tt.a, tt.b)
	}
}

func TestMatchScore(t *testing.T) {
	assert.Equal(t, 100, matchScore("magnesium", "magnesium"))
	assert.Equal(t, 90, matchScore("mag", "magnesium"))
	assert.Equal(t, 80, matchScore("nesi", "magnesium"))

	// Fuzzy scores stay below the structural tiers.
	fuzzy := matchScore("melatonine", "melatonin")
	assert.Greater(t, fuzzy, 0)
	assert.Less(t, fuzzy, 80)
}

func TestMatchScoreMonotoneInCloseness(t *testing.T) {
	// A closer edit should never score lower.
	near := matchScore("melatonin", "melatonine")
	far := matchScore("melatonin", "meltnxyz")
	assert.Greater(t, near, far)

	// Deterministic for identical inputs.
	assert.Equal(t, matchScore("ginko", "ginkgo"), matchScore("ginko", "ginkgo"))
}
