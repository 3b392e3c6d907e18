package main

import (
	"context"
)

// Pack entry classifications produced by a dry run.
const (
	PlanStatusNew      = "new"
	PlanStatusConflict = "conflict"
)

// TokenPack is a curated list of alias tokens to import in bulk. Each entry
// carries a suggested search term that resolves the target substance through
// the regular matcher, so packs stay valid as the catalog changes.
type TokenPack struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Entries     []PackEntry `json:"entries"`
}

// PackEntry is one raw alias plus the canonical search term it should land on.
type PackEntry struct {
	Raw             string `json:"raw"`
	SuggestedSearch string `json:"suggested_search"`
}

// PlannedToken is the dry-run classification for one pack entry.
type PlannedToken struct {
	Raw                 string `json:"raw"`
	Normalized          string `json:"normalized"`
	TargetSubstanceID   string `json:"target_substance_id"`
	TargetDisplayName   string `json:"target_display_name"`
	Status              string `json:"status"`
	ConflictSubstanceID string `json:"conflict_substance_id,omitempty"`
	ConflictDisplayName string `json:"conflict_display_name,omitempty"`
}

// PackReport summarizes an apply run.
type PackReport struct {
	Inserted  int `json:"inserted"`
	Skipped   int `json:"skipped"`
	Conflicts int `json:"conflicts"`
}

// PackPlanner runs the two-phase pack import: Plan classifies every entry
// without writing anything, Apply writes only the entries the plan called new.
// An operator reviews the plan between the two phases.
type PackPlanner struct {
	store    Store
	searcher *Searcher
	admin    *TokenAdmin
}

// NewPackPlanner wires a planner over the shared store.
func NewPackPlanner(store Store, searcher *Searcher, admin *TokenAdmin) *PackPlanner {
	return &PackPlanner{store: store, searcher: searcher, admin: admin}
}

// Plan resolves and classifies every entry of the pack. Entries whose raw text
// normalizes to nothing or whose suggested search resolves no substance are
// skipped outright; they appear in neither the returned plan nor a conflict
// count.
func (p *PackPlanner) Plan(ctx context.Context, pack TokenPack) ([]PlannedToken, error) {
	planned := make([]PlannedToken, 0, len(pack.Entries))

	for _, entry := range pack.Entries {
		norm := normalizeToken(entry.Raw)
		if norm == "" {
			continue
		}

		matches, err := p.searcher.Search(ctx, entry.SuggestedSearch, KindAny, 1)
		if err != nil {
			return nil, err
		}
		if len(matches) == 0 {
			continue
		}
		target := matches[0]

		owner, exists, err := p.store.TokenOwner(ctx, norm)
		if err != nil {
			return nil, unavailable("pack dry run", err)
		}

		pt := PlannedToken{
			Raw:               entry.Raw,
			Normalized:        norm,
			TargetSubstanceID: target.SubstanceID,
			TargetDisplayName: target.DisplayName,
			Status:            PlanStatusNew,
		}
		if exists {
			pt.Status = PlanStatusConflict
			pt.ConflictSubstanceID = owner
			pt.ConflictDisplayName = owner
			if subs, err := p.store.SubstancesByIDs(ctx, []string{owner}); err == nil && len(subs) > 0 {
				pt.ConflictDisplayName = subs[0].DisplayName
			}
		}
		planned = append(planned, pt)
	}

	return planned, nil
}

// Apply writes the entries the plan classified new through the regular
// conflict-checked insert. Entries a concurrent writer claimed between plan
// and apply come back as conflicts rather than failures.
func (p *PackPlanner) Apply(ctx context.Context, plan []PlannedToken) (PackReport, error) {
	var report PackReport

	for _, pt := range plan {
		if pt.Status != PlanStatusNew {
			report.Conflicts++
			continue
		}

		res, err := p.admin.AddToken(ctx, pt.Raw, pt.TargetSubstanceID)
		if err != nil {
			if IsValidation(err) {
				report.Skipped++
				continue
			}
			return report, err
		}
		switch res.Status {
		case StatusOK:
			report.Inserted++
		case StatusConflict:
			report.Conflicts++
		}
	}

	return report, nil
}

// FindPresetPack looks a pack up by id.
func FindPresetPack(id string) (TokenPack, bool) {
	for _, pack := range BuildPresetPacks() {
		if pack.ID == id {
			return pack, true
		}
	}
	return TokenPack{}, false
}

// BuildPresetPacks returns the curated token packs shipped with the checker:
// common OTC brand names, popular supplement aliases, and frequent
// misspellings seen in search logs.
func BuildPresetPacks() []TokenPack {
	return []TokenPack{
		{
			ID:          "otc-brands",
			Name:        "OTC Drug Brands",
			Description: "Common over-the-counter medication brand names",
			Entries: []PackEntry{
				{Raw: "Tylenol", SuggestedSearch: "acetaminophen"},
				{Raw: "Advil", SuggestedSearch: "ibuprofen"},
				{Raw: "Motrin", SuggestedSearch: "ibuprofen"},
				{Raw: "Aleve", SuggestedSearch: "naproxen"},
				{Raw: "Benadryl", SuggestedSearch: "diphenhydramine"},
				{Raw: "Claritin", SuggestedSearch: "loratadine"},
				{Raw: "Zyrtec", SuggestedSearch: "cetirizine"},
				{Raw: "Pepcid", SuggestedSearch: "famotidine"},
				{Raw: "Zantac", SuggestedSearch: "ranitidine"},
				{Raw: "Prilosec", SuggestedSearch: "omeprazole"},
				{Raw: "Nexium", SuggestedSearch: "esomeprazole"},
				{Raw: "Mucinex", SuggestedSearch: "guaifenesin"},
			},
		},
		{
			ID:          "supplement-aliases",
			Name:        "Common Supplement Aliases",
			Description: "Popular alternative names for supplements",
			Entries: []PackEntry{
				{Raw: "fish oil", SuggestedSearch: "omega-3"},
				{Raw: "omega 3", SuggestedSearch: "omega-3"},
				{Raw: "mag glycinate", SuggestedSearch: "magnesium"},
				{Raw: "magnesium glycinate", SuggestedSearch: "magnesium"},
				{Raw: "mag citrate", SuggestedSearch: "magnesium"},
				{Raw: "magnesium citrate", SuggestedSearch: "magnesium"},
				{Raw: "vit d", SuggestedSearch: "vitamin d"},
				{Raw: "vit d3", SuggestedSearch: "vitamin d"},
				{Raw: "vitamin d3", SuggestedSearch: "vitamin d"},
				{Raw: "cholecalciferol", SuggestedSearch: "vitamin d"},
				{Raw: "vit c", SuggestedSearch: "vitamin c"},
				{Raw: "ascorbic acid", SuggestedSearch: "vitamin c"},
				{Raw: "vit b12", SuggestedSearch: "vitamin b12"},
				{Raw: "cobalamin", SuggestedSearch: "vitamin b12"},
				{Raw: "methylcobalamin", SuggestedSearch: "vitamin b12"},
				{Raw: "coq10", SuggestedSearch: "coenzyme q10"},
				{Raw: "ubiquinone", SuggestedSearch: "coenzyme q10"},
			},
		},
		{
			ID:          "common-misspellings",
			Name:        "Common Misspellings",
			Description: "Typical spelling errors and variations",
			Entries: []PackEntry{
				{Raw: "tumeric", SuggestedSearch: "turmeric"},
				{Raw: "curcuma", SuggestedSearch: "turmeric"},
				{Raw: "ginko", SuggestedSearch: "ginkgo"},
				{Raw: "ginko biloba", SuggestedSearch: "ginkgo"},
				{Raw: "st johns wort", SuggestedSearch: "st john's wort"},
				{Raw: "st john wort", SuggestedSearch: "st john's wort"},
				{Raw: "ashwaganda", SuggestedSearch: "ashwagandha"},
				{Raw: "melatonine", SuggestedSearch: "melatonin"},
			},
		},
	}
}
