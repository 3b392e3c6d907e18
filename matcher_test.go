package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func substanceIDs(results []MatchResult) []string {
	ids := make([]string, 0, len(results))
	for _, r := range results {
		ids = append(ids, r.SubstanceID)
	}
	return ids
}

func TestSearchEmptyQueryIsNoOp(t *testing.T) {
	s := NewSearcher(newMemStore())
	for _, q := range []string{"", "   ", "!!!"} {
		results, err := s.Search(context.Background(), q, KindAny, 10)
		require.NoError(t, err, "query %q", q)
		assert.Empty(t, results)
	}
}

func TestSearchLimitValidation(t *testing.T) {
	store := newMemStore()
	seedCheckerFixture(store)
	s := NewSearcher(store)
	ctx := context.Background()

	for _, limit := range []int{0, -1, 51, 1000} {
		_, err := s.Search(ctx, "mag", KindAny, limit)
		require.Error(t, err, "limit %d", limit)
		assert.True(t, IsValidation(err), "limit %d should be a validation error", limit)
	}
	for _, limit := range []int{1, 50} {
		_, err := s.Search(ctx, "mag", KindAny, limit)
		assert.NoError(t, err, "limit %d", limit)
	}
}

func TestSearchKindValidation(t *testing.T) {
	store := newMemStore()
	seedCheckerFixture(store)
	s := NewSearcher(store)

	_, err := s.Search(context.Background(), "mag", "vitamins", 10)
	require.Error(t, err)
	assert.True(t, IsValidation(err))
}

func TestSearchKindAliases(t *testing.T) {
	store := newMemStore()
	seedCheckerFixture(store)
	s := NewSearcher(store)
	ctx := context.Background()

	// The site historically accepted these spellings for "drug".
	for _, kind := range []string{"medicine", "medication", "rx", "drug", "DRUG"} {
		results, err := s.Search(ctx, "ibu", kind, 10)
		require.NoError(t, err, "kind %q", kind)
		assert.Contains(t, substanceIDs(results), "ibuprofen-1", "kind %q", kind)
	}
}

func TestSearchPrefixMatchesThroughAnyToken(t *testing.T) {
	store := newMemStore()
	seedCheckerFixture(store)
	s := NewSearcher(store)

	results, err := s.Search(context.Background(), "ma", KindAny, 10)
	require.NoError(t, err)
	require.Contains(t, substanceIDs(results), "mag-1")
	for _, r := range results {
		if r.SubstanceID == "mag-1" {
			assert.NotZero(t, r.MatchScore)
			assert.ElementsMatch(t, []string{"magnesium", "mag glycinate", "mag citrate"}, r.Aliases)
		}
	}
}

func TestSearchDeduplicatesKeepingBestScore(t *testing.T) {
	store := newMemStore()
	seedCheckerFixture(store)
	s := NewSearcher(store)

	// All three tokens of mag-1 are candidates for "mag"; the substance
	// appears once, carrying the best of its token scores.
	results, err := s.Search(context.Background(), "mag", KindAny, 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "mag-1", results[0].SubstanceID)
	assert.Equal(t, 90, results[0].MatchScore)

	// An exact token hit outranks the prefix tier.
	results, err = s.Search(context.Background(), "magnesium", KindAny, 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 100, results[0].MatchScore)
}

func TestSearchKindFilter(t *testing.T) {
	store := newMemStore()
	seedCheckerFixture(store)
	store.addSubstance(Substance{
		SubstanceID: "mag-drug", Type: KindDrug,
		DisplayName: "Magnesium Sulfate IV", CanonicalName: "magnesium sulfate", Active: true,
	})
	store.addToken("magnesium sulfate", "mag-drug")
	s := NewSearcher(store)
	ctx := context.Background()

	results, err := s.Search(ctx, "mag", KindSupplement, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"mag-1"}, substanceIDs(results))

	results, err = s.Search(ctx, "mag", KindDrug, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"mag-drug"}, substanceIDs(results))
}

func TestSearchExcludesInactiveSubstances(t *testing.T) {
	store := newMemStore()
	seedCheckerFixture(store)
	store.addSubstance(Substance{
		SubstanceID: "mag-old", Type: KindSupplement,
		DisplayName: "Magnesium (retired)", CanonicalName: "magnesium", Active: false,
	})
	store.addToken("magnesium oxide", "mag-old")
	s := NewSearcher(store)

	results, err := s.Search(context.Background(), "magnesium", KindAny, 10)
	require.NoError(t, err)
	assert.NotContains(t, substanceIDs(results), "mag-old")
}

func TestSearchMatchesBrandAliases(t *testing.T) {
	store := newMemStore()
	seedCheckerFixture(store)
	store.addAlias("Panadol", "acetaminophen-1")
	s := NewSearcher(store)

	results, err := s.Search(context.Background(), "pana", KindAny, 10)
	require.NoError(t, err)
	assert.Contains(t, substanceIDs(results), "acetaminophen-1")
}

func TestSearchNoMatchesIsEmptyNotError(t *testing.T) {
	store := newMemStore()
	seedCheckerFixture(store)
	s := NewSearcher(store)

	results, err := s.Search(context.Background(), "xyzxyz-not-a-real-token", KindAny, 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearchStoreFailureIsUnavailable(t *testing.T) {
	store := newMemStore()
	seedCheckerFixture(store)
	store.down = true
	s := NewSearcher(store)

	_, err := s.Search(context.Background(), "mag", KindAny, 10)
	require.Error(t, err)
	assert.True(t, IsUnavailable(err), "store failure must be distinguishable from no matches")
	assert.False(t, IsValidation(err))
}

func TestSearchOrderingIsDeterministic(t *testing.T) {
	store := newMemStore()
	store.addSubstance(Substance{SubstanceID: "z-1", Type: KindSupplement, DisplayName: "Zinc", CanonicalName: "zinc", Active: true})
	store.addSubstance(Substance{SubstanceID: "za-1", Type: KindSupplement, DisplayName: "Zarzaparilla", CanonicalName: "smilax", Active: true})
	store.addToken("zinc", "z-1")
	store.addToken("zarzaparilla", "za-1")
	s := NewSearcher(store)
	ctx := context.Background()

	// Both are plain prefix matches for "z", so the display-name tie break
	// decides, every time.
	first, err := s.Search(ctx, "z", KindAny, 10)
	require.NoError(t, err)
	second, err := s.Search(ctx, "z", KindAny, 10)
	require.NoError(t, err)
	require.Equal(t, first, second)
	assert.Equal(t, []string{"za-1", "z-1"}, substanceIDs(first))
}

func TestSearchTruncatesToLimit(t *testing.T) {
	store := newMemStore()
	seedCheckerFixture(store)
	s := NewSearcher(store)

	results, err := s.Search(context.Background(), "ma", KindAny, 1)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}
