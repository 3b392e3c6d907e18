package main

import (
	"context"
	"sort"
	"strings"
)

// Candidate fan-out caps. The matcher fetches a wide candidate set and then
// dedupes and ranks, so these only need to exceed any sane result limit.
const (
	tokenCandidateLimit = 100
	aliasCandidateLimit = 50
)

// Result limit bounds, inclusive.
const (
	minSearchLimit = 1
	maxSearchLimit = 50
)

// Searcher resolves raw user queries to ranked substances.
type Searcher struct {
	store Store
}

// NewSearcher returns a Searcher over the given store.
func NewSearcher(store Store) *Searcher {
	return &Searcher{store: store}
}

// parseKind folds the kind aliases the site historically accepted onto the
// canonical filter values. An empty kind means "any".
func parseKind(raw string) (string, error) {
	kind := strings.ToLower(strings.TrimSpace(raw))
	switch kind {
	case "":
		return KindAny, nil
	case "medicine", "medication", "rx":
		return KindDrug, nil
	case KindAny, KindDrug, KindSupplement:
		return kind, nil
	default:
		return "", validationErrorf("kind must be: any, supplement, or drug")
	}
}

// Search finds substances matching the raw query, filtered by kind and
// truncated to limit. An empty query is a valid no-op returning no results;
// an out-of-range limit or unknown kind is a ValidationError rejected before
// any store access; a store failure is an UnavailableError, never an empty
// list.
func (s *Searcher) Search(ctx context.Context, query, kind string, limit int) ([]MatchResult, error) {
	kind, err := parseKind(kind)
	if err != nil {
		return nil, err
	}
	if limit < minSearchLimit || limit > maxSearchLimit {
		return nil, validationErrorf("limit must be between %d and %d", minSearchLimit, maxSearchLimit)
	}

	norm := normalizeToken(query)
	if norm == "" {
		return []MatchResult{}, nil
	}

	tokens, err := s.store.TokensByPrefix(ctx, norm, tokenCandidateLimit)
	if err != nil {
		return nil, unavailable("search", err)
	}
	aliases, err := s.store.AliasesByPrefix(ctx, norm, aliasCandidateLimit)
	if err != nil {
		return nil, unavailable("search", err)
	}

	// Dedupe by substance, keeping the best-scoring matched text. A substance
	// may have matched through several tokens and brand aliases.
	best := make(map[string]int)
	for _, t := range tokens {
		score := matchScore(norm, t.Token)
		if score > best[t.SubstanceID] {
			best[t.SubstanceID] = score
		}
	}
	for _, a := range aliases {
		score := matchScore(norm, normalizeToken(a.BrandName))
		if score > best[a.SubstanceID] {
			best[a.SubstanceID] = score
		}
	}
	if len(best) == 0 {
		return []MatchResult{}, nil
	}

	ids := make([]string, 0, len(best))
	for id := range best {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	substances, err := s.store.SubstancesByIDs(ctx, ids)
	if err != nil {
		return nil, unavailable("search", err)
	}

	// Keep active substances surviving the kind filter.
	surviving := substances[:0]
	survivingIDs := make([]string, 0, len(substances))
	for _, sub := range substances {
		if !sub.Active {
			continue
		}
		if kind != KindAny && sub.Type != kind {
			continue
		}
		surviving = append(surviving, sub)
		survivingIDs = append(survivingIDs, sub.SubstanceID)
	}

	knownTokens, err := s.store.TokensForSubstances(ctx, survivingIDs)
	if err != nil {
		return nil, unavailable("search", err)
	}

	results := make([]MatchResult, 0, len(surviving))
	for _, sub := range surviving {
		aliasList := knownTokens[sub.SubstanceID]
		if aliasList == nil {
			aliasList = []string{}
		}
		results = append(results, MatchResult{
			SubstanceID:   sub.SubstanceID,
			DisplayName:   sub.DisplayName,
			CanonicalName: sub.CanonicalName,
			Type:          sub.Type,
			Aliases:       aliasList,
			MatchScore:    best[sub.SubstanceID],
		})
	}

	// Score-descending, display name as the tie break so ordering is stable
	// across identical requests.
	sort.Slice(results, func(i, j int) bool {
		if results[i].MatchScore != results[j].MatchScore {
			return results[i].MatchScore > results[j].MatchScore
		}
		return results[i].DisplayName < results[j].DisplayName
	})

	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}
