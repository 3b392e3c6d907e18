package main

import "time"

// Substance kinds. "any" is only valid as a search filter, never as a stored type.
const (
	KindAny        = "any"
	KindDrug       = "drug"
	KindSupplement = "supplement"
)

// Substance is one row of the checker catalog. Substances are soft-disabled via
// Active rather than deleted, so token and alias rows never dangle.
type Substance struct {
	SubstanceID   string `json:"substance_id"`
	Type          string `json:"type"`
	DisplayName   string `json:"display_name"`
	CanonicalName string `json:"canonical_name"`
	Active        bool   `json:"is_active"`
}

// Token maps one normalized text to its owning substance. The token text is
// unique across the whole table; that uniqueness is the conflict-avoidance rule
// every write path has to respect.
type Token struct {
	TokenID     int64     `json:"token_id"`
	SubstanceID string    `json:"substance_id"`
	Token       string    `json:"token"`
	CreatedAt   time.Time `json:"created_at"`
}

// BrandAlias is a brand-name mapping onto a substance, e.g. "Tylenol" onto
// acetaminophen. Rows are deactivated, never deleted, so a brand can be
// repointed only by an explicit deactivate-then-insert.
type BrandAlias struct {
	AliasID     string    `json:"alias_id"`
	BrandName   string    `json:"brand_name"`
	SubstanceID string    `json:"substance_id"`
	Notes       string    `json:"notes,omitempty"`
	Active      bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}

// MatchResult is one scored search hit. Ephemeral, never persisted.
type MatchResult struct {
	SubstanceID   string   `json:"substance_id"`
	DisplayName   string   `json:"display_name"`
	CanonicalName string   `json:"canonical_name"`
	Type          string   `json:"type"`
	Aliases       []string `json:"aliases"`
	MatchScore    int      `json:"match_score"`
}

// CoverageStats summarizes catalog size for the admin coverage view.
type CoverageStats struct {
	Substances    int `json:"substances"`
	Drugs         int `json:"drugs"`
	Supplements   int `json:"supplements"`
	Tokens        int `json:"tokens"`
	ActiveAliases int `json:"active_aliases"`
}
