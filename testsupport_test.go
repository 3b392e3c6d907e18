package main

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strings"
	"time"
)

// errStoreDown simulates an unreachable backing store.
var errStoreDown = errors.New("connection refused")

// memStore is an in-memory Store used by the tests. It enforces the same
// token uniqueness the real schema does.
type memStore struct {
	substances map[string]Substance
	tokens     map[string]Token // keyed by normalized token text
	aliases    []BrandAlias
	nextToken  int64
	down       bool
}

func newMemStore() *memStore {
	return &memStore{
		substances: make(map[string]Substance),
		tokens:     make(map[string]Token),
	}
}

func (m *memStore) addSubstance(s Substance) {
	m.substances[s.SubstanceID] = s
}

func (m *memStore) addToken(token, substanceID string) {
	m.nextToken++
	m.tokens[token] = Token{
		TokenID:     m.nextToken,
		SubstanceID: substanceID,
		Token:       token,
		CreatedAt:   time.Now(),
	}
}

func (m *memStore) addAlias(brand, substanceID string) {
	m.aliases = append(m.aliases, BrandAlias{
		AliasID:     brand + "/" + substanceID,
		BrandName:   brand,
		SubstanceID: substanceID,
		Active:      true,
		CreatedAt:   time.Now(),
	})
}

func (m *memStore) TokensByPrefix(_ context.Context, prefix string, limit int) ([]Token, error) {
	if m.down {
		return nil, errStoreDown
	}
	var out []Token
	for text, t := range m.tokens {
		if strings.HasPrefix(text, prefix) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Token < out[j].Token })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) AliasesByPrefix(_ context.Context, prefix string, limit int) ([]BrandAlias, error) {
	if m.down {
		return nil, errStoreDown
	}
	var out []BrandAlias
	for _, a := range m.aliases {
		if a.Active && strings.HasPrefix(strings.ToLower(a.BrandName), prefix) {
			out = append(out, a)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) SubstancesByIDs(_ context.Context, ids []string) ([]Substance, error) {
	if m.down {
		return nil, errStoreDown
	}
	var out []Substance
	for _, id := range ids {
		if s, ok := m.substances[id]; ok {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memStore) ActiveSubstances(_ context.Context) ([]Substance, error) {
	if m.down {
		return nil, errStoreDown
	}
	var out []Substance
	for _, s := range m.substances {
		if s.Active {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DisplayName < out[j].DisplayName })
	return out, nil
}

func (m *memStore) TokensForSubstances(_ context.Context, ids []string) (map[string][]string, error) {
	if m.down {
		return nil, errStoreDown
	}
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	out := make(map[string][]string)
	for text, t := range m.tokens {
		if want[t.SubstanceID] {
			out[t.SubstanceID] = append(out[t.SubstanceID], text)
		}
	}
	for id := range out {
		sort.Strings(out[id])
	}
	return out, nil
}

func (m *memStore) TokensForSubstance(_ context.Context, substanceID string) ([]Token, error) {
	if m.down {
		return nil, errStoreDown
	}
	var out []Token
	for _, t := range m.tokens {
		if t.SubstanceID == substanceID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Token < out[j].Token })
	return out, nil
}

func (m *memStore) TokenOwner(_ context.Context, token string) (string, bool, error) {
	if m.down {
		return "", false, errStoreDown
	}
	t, ok := m.tokens[token]
	if !ok {
		return "", false, nil
	}
	return t.SubstanceID, true, nil
}

func (m *memStore) InsertToken(_ context.Context, token, substanceID string) (Token, error) {
	if m.down {
		return Token{}, errStoreDown
	}
	if _, exists := m.tokens[token]; exists {
		return Token{}, errTokenTaken
	}
	m.addToken(token, substanceID)
	return m.tokens[token], nil
}

func (m *memStore) UpsertSubstance(_ context.Context, s Substance) error {
	if m.down {
		return errStoreDown
	}
	m.substances[s.SubstanceID] = s
	return nil
}

func (m *memStore) InsertAlias(_ context.Context, a BrandAlias) error {
	if m.down {
		return errStoreDown
	}
	for _, existing := range m.aliases {
		if existing.Active && existing.SubstanceID == a.SubstanceID &&
			strings.EqualFold(existing.BrandName, a.BrandName) {
			return errTokenTaken
		}
	}
	m.aliases = append(m.aliases, a)
	return nil
}

func (m *memStore) DeactivateAlias(_ context.Context, aliasID string) error {
	if m.down {
		return errStoreDown
	}
	for i, a := range m.aliases {
		if a.AliasID == aliasID {
			m.aliases[i].Active = false
			return nil
		}
	}
	return sql.ErrNoRows
}

func (m *memStore) AliasesForSubstance(_ context.Context, substanceID string) ([]BrandAlias, error) {
	if m.down {
		return nil, errStoreDown
	}
	var out []BrandAlias
	for _, a := range m.aliases {
		if a.Active && a.SubstanceID == substanceID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memStore) Stats(_ context.Context) (CoverageStats, error) {
	if m.down {
		return CoverageStats{}, errStoreDown
	}
	var stats CoverageStats
	for _, s := range m.substances {
		if !s.Active {
			continue
		}
		stats.Substances++
		switch s.Type {
		case KindDrug:
			stats.Drugs++
		case KindSupplement:
			stats.Supplements++
		}
	}
	stats.Tokens = len(m.tokens)
	for _, a := range m.aliases {
		if a.Active {
			stats.ActiveAliases++
		}
	}
	return stats, nil
}

// seedCheckerFixture loads the small catalog most tests run against.
func seedCheckerFixture(m *memStore) {
	m.addSubstance(Substance{
		SubstanceID: "mag-1", Type: KindSupplement,
		DisplayName: "Magnesium", CanonicalName: "magnesium", Active: true,
	})
	m.addToken("magnesium", "mag-1")
	m.addToken("mag glycinate", "mag-1")
	m.addToken("mag citrate", "mag-1")

	m.addSubstance(Substance{
		SubstanceID: "acetaminophen-1", Type: KindDrug,
		DisplayName: "Acetaminophen", CanonicalName: "acetaminophen", Active: true,
	})
	m.addToken("acetaminophen", "acetaminophen-1")
	m.addToken("tylenol", "acetaminophen-1")

	m.addSubstance(Substance{
		SubstanceID: "ibuprofen-1", Type: KindDrug,
		DisplayName: "Ibuprofen", CanonicalName: "ibuprofen", Active: true,
	})
	m.addToken("ibuprofen", "ibuprofen-1")
}
