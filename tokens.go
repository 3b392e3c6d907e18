package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Outcomes of the admin write operations. Conflict is an expected result
// variant, not an error: callers render it, they don't retry it.
const (
	StatusOK       = "ok"
	StatusConflict = "conflict"
)

// AddTokenResult reports the outcome of a conflict-checked token insert.
type AddTokenResult struct {
	Status              string `json:"status"`
	Message             string `json:"message"`
	NormalizedToken     string `json:"normalized_token,omitempty"`
	Token               *Token `json:"token,omitempty"`
	ExistingSubstanceID string `json:"existing_substance_id,omitempty"`
	ExistingDisplayName string `json:"existing_display_name,omitempty"`
}

// AddAliasResult reports the outcome of a brand alias insert.
type AddAliasResult struct {
	Status  string      `json:"status"`
	Message string      `json:"message"`
	Alias   *BrandAlias `json:"alias,omitempty"`
}

// TokenAdmin owns the write paths into the token store and the brand alias
// table. Every token write goes through AddToken so the one-token-one-substance
// invariant is checked before the row exists, not discovered at query time.
type TokenAdmin struct {
	store Store
}

// NewTokenAdmin returns a TokenAdmin over the given store.
func NewTokenAdmin(store Store) *TokenAdmin {
	return &TokenAdmin{store: store}
}

// AddToken binds a normalized form of raw to targetSubstanceID.
//
// Re-adding an existing correct mapping is idempotent ok. A token owned by a
// different substance is a conflict carrying the current owner; the mapping is
// never silently reassigned. Reassignment takes an explicit deactivate-then-
// insert by an operator.
func (a *TokenAdmin) AddToken(ctx context.Context, raw, targetSubstanceID string) (AddTokenResult, error) {
	norm := normalizeToken(raw)
	if norm == "" {
		return AddTokenResult{}, validationErrorf("token %q reduces to nothing after normalization", raw)
	}
	if targetSubstanceID == "" {
		return AddTokenResult{}, validationErrorf("target substance id is required")
	}

	owner, exists, err := a.store.TokenOwner(ctx, norm)
	if err != nil {
		return AddTokenResult{}, unavailable("token lookup", err)
	}
	if exists {
		return a.resolveExisting(ctx, norm, owner, targetSubstanceID)
	}

	token, err := a.store.InsertToken(ctx, norm, targetSubstanceID)
	if err == errTokenTaken {
		// Lost the race to a concurrent insert. The store picked exactly one
		// winner; report against whoever that was.
		owner, _, lookupErr := a.store.TokenOwner(ctx, norm)
		if lookupErr != nil {
			return AddTokenResult{}, unavailable("token lookup", lookupErr)
		}
		return a.resolveExisting(ctx, norm, owner, targetSubstanceID)
	}
	if err != nil {
		return AddTokenResult{}, unavailable("token insert", err)
	}

	return AddTokenResult{
		Status:          StatusOK,
		Message:         fmt.Sprintf("token %q added", norm),
		NormalizedToken: norm,
		Token:           &token,
	}, nil
}

func (a *TokenAdmin) resolveExisting(ctx context.Context, norm, owner, target string) (AddTokenResult, error) {
	if owner == target {
		return AddTokenResult{
			Status:          StatusOK,
			Message:         fmt.Sprintf("token %q already maps to this substance", norm),
			NormalizedToken: norm,
		}, nil
	}

	displayName := owner
	subs, err := a.store.SubstancesByIDs(ctx, []string{owner})
	if err != nil {
		return AddTokenResult{}, unavailable("substance lookup", err)
	}
	if len(subs) > 0 {
		displayName = subs[0].DisplayName
	}

	return AddTokenResult{
		Status:              StatusConflict,
		Message:             fmt.Sprintf("token %q already maps to %s", norm, displayName),
		NormalizedToken:     norm,
		ExistingSubstanceID: owner,
		ExistingDisplayName: displayName,
	}, nil
}

// AddAlias records a brand name mapping onto a substance. The pair is unique
// among active rows; a duplicate comes back as a conflict result.
func (a *TokenAdmin) AddAlias(ctx context.Context, brandName, substanceID, notes string) (AddAliasResult, error) {
	if normalizeToken(brandName) == "" {
		return AddAliasResult{}, validationErrorf("brand name %q reduces to nothing after normalization", brandName)
	}
	if substanceID == "" {
		return AddAliasResult{}, validationErrorf("substance id is required")
	}

	subs, err := a.store.SubstancesByIDs(ctx, []string{substanceID})
	if err != nil {
		return AddAliasResult{}, unavailable("substance lookup", err)
	}
	if len(subs) == 0 {
		return AddAliasResult{}, validationErrorf("unknown substance %q", substanceID)
	}

	alias := BrandAlias{
		AliasID:     uuid.NewString(),
		BrandName:   brandName,
		SubstanceID: substanceID,
		Notes:       notes,
		Active:      true,
	}
	if err := a.store.InsertAlias(ctx, alias); err != nil {
		if err == errTokenTaken {
			return AddAliasResult{
				Status:  StatusConflict,
				Message: fmt.Sprintf("brand %q is already mapped to %s", brandName, subs[0].DisplayName),
			}, nil
		}
		return AddAliasResult{}, unavailable("alias insert", err)
	}

	return AddAliasResult{
		Status:  StatusOK,
		Message: fmt.Sprintf("brand %q mapped to %s", brandName, subs[0].DisplayName),
		Alias:   &alias,
	}, nil
}

// DeactivateAlias soft-removes a brand alias so the brand can be repointed.
func (a *TokenAdmin) DeactivateAlias(ctx context.Context, aliasID string) error {
	if aliasID == "" {
		return validationErrorf("alias id is required")
	}
	if err := a.store.DeactivateAlias(ctx, aliasID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return validationErrorf("unknown alias %q", aliasID)
		}
		return unavailable("alias deactivate", err)
	}
	return nil
}
