package main

import (
	"encoding/json"
	"fmt"

	meilisearch "github.com/meilisearch/meilisearch-go"
)

const suggestIndexName = "substances"

// Suggestion is one instant-search hit served from the suggestion index.
type Suggestion struct {
	SubstanceID   string `json:"substance_id"`
	DisplayName   string `json:"display_name"`
	CanonicalName string `json:"canonical_name"`
	Type          string `json:"type"`
}

// suggestIndex wraps the Meilisearch index backing the public instant-search
// box. Postgres stays the source of truth; this index is rebuilt from it and
// its unavailability only degrades /suggest, never /search.
type suggestIndex struct {
	client meilisearch.ServiceManager
}

func newSuggestIndex(cfg Config) *suggestIndex {
	return &suggestIndex{
		client: meilisearch.New(cfg.MeiliURL, meilisearch.WithAPIKey(cfg.MeiliAPIKey)),
	}
}

// Rebuild drops and recreates the index from the given catalog snapshot.
func (s *suggestIndex) Rebuild(substances []Substance, tokensByID map[string][]string) (int, error) {
	_, _ = s.client.DeleteIndex(suggestIndexName)
	if _, err := s.client.CreateIndex(&meilisearch.IndexConfig{Uid: suggestIndexName, PrimaryKey: "id"}); err != nil {
		return 0, fmt.Errorf("create suggest index: %w", err)
	}

	index := s.client.Index(suggestIndexName)

	settings := meilisearch.Settings{
		SearchableAttributes: []string{"displayName", "canonicalName", "aliases"},
		FilterableAttributes: []string{"type"},
		SortableAttributes:   []string{"displayName"},
	}
	_, _ = index.UpdateSettings(&settings)

	docs := make([]map[string]interface{}, 0, len(substances))
	for _, sub := range substances {
		aliases := tokensByID[sub.SubstanceID]
		if aliases == nil {
			aliases = []string{}
		}
		docs = append(docs, map[string]interface{}{
			"id":            sub.SubstanceID,
			"displayName":   sub.DisplayName,
			"canonicalName": sub.CanonicalName,
			"type":          sub.Type,
			"aliases":       aliases,
		})
	}

	if len(docs) > 0 {
		if _, err := index.AddDocuments(docs, nil); err != nil {
			return 0, fmt.Errorf("index substances: %w", err)
		}
	}
	return len(docs), nil
}

// Suggest queries the index. A kind other than "any" becomes an index filter.
func (s *suggestIndex) Suggest(query, kind string, limit int) ([]Suggestion, error) {
	req := &meilisearch.SearchRequest{Limit: int64(limit)}
	if kind == KindDrug || kind == KindSupplement {
		req.Filter = `type = "` + kind + `"`
	}

	res, err := s.client.Index(suggestIndexName).Search(query, req)
	if err != nil {
		return nil, unavailable("suggest", err)
	}

	// Hits come back untyped; round-trip through JSON like everywhere else.
	var hits []map[string]interface{}
	b, _ := json.Marshal(res.Hits)
	_ = json.Unmarshal(b, &hits)

	suggestions := make([]Suggestion, 0, len(hits))
	for _, h := range hits {
		if getString(h, "displayName") == "" {
			continue
		}
		suggestions = append(suggestions, Suggestion{
			SubstanceID:   getString(h, "id"),
			DisplayName:   getString(h, "displayName"),
			CanonicalName: getString(h, "canonicalName"),
			Type:          getString(h, "type"),
		})
	}
	return suggestions, nil
}

func getString(m map[string]interface{}, key string) string {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
