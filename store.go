package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// errTokenTaken is returned by InsertToken when the unique constraint on the
// token column rejects the row. The storage layer guarantees exactly one
// winner between racing inserts; the loser sees this and re-reads the owner.
var errTokenTaken = errors.New("token already exists")

// Store is the data access surface over the substance catalog, the token
// table, and the brand alias table. The application only ever reads the
// catalog and writes tokens through the conflict-checked insert path.
type Store interface {
	// TokensByPrefix returns tokens whose normalized text starts with prefix.
	TokensByPrefix(ctx context.Context, prefix string, limit int) ([]Token, error)
	// AliasesByPrefix returns active brand aliases whose normalized brand
	// name starts with prefix.
	AliasesByPrefix(ctx context.Context, prefix string, limit int) ([]BrandAlias, error)
	// SubstancesByIDs returns the catalog rows for the given ids, active or not.
	SubstancesByIDs(ctx context.Context, ids []string) ([]Substance, error)
	// ActiveSubstances returns every active catalog row ordered by display name.
	ActiveSubstances(ctx context.Context) ([]Substance, error)
	// TokensForSubstances returns all token texts per substance id.
	TokensForSubstances(ctx context.Context, ids []string) (map[string][]string, error)
	// TokensForSubstance returns the full token rows for one substance.
	TokensForSubstance(ctx context.Context, substanceID string) ([]Token, error)
	// TokenOwner reports which substance owns the given normalized token.
	TokenOwner(ctx context.Context, token string) (string, bool, error)
	// InsertToken inserts a new token row, returning errTokenTaken if the
	// normalized text is already owned.
	InsertToken(ctx context.Context, token, substanceID string) (Token, error)
	// UpsertSubstance creates or refreshes a catalog row during seeding.
	UpsertSubstance(ctx context.Context, s Substance) error
	// InsertAlias adds a brand alias row.
	InsertAlias(ctx context.Context, a BrandAlias) error
	// DeactivateAlias soft-removes a brand alias.
	DeactivateAlias(ctx context.Context, aliasID string) error
	// AliasesForSubstance returns the active brand aliases for one substance.
	AliasesForSubstance(ctx context.Context, substanceID string) ([]BrandAlias, error)
	// Stats returns catalog coverage counters.
	Stats(ctx context.Context) (CoverageStats, error)
}

// pgStore implements Store on PostgreSQL.
type pgStore struct {
	db *sql.DB
}

// NewPGStore wraps an open database handle.
func NewPGStore(db *sql.DB) Store {
	return &pgStore{db: db}
}

func connectDB(databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return db, nil
}

func (s *pgStore) TokensByPrefix(ctx context.Context, prefix string, limit int) ([]Token, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT token_id, substance_id, token, created_at
		FROM checker_substance_tokens
		WHERE token LIKE $1 || '%'
		ORDER BY token
		LIMIT $2`, prefix, limit)
	if err != nil {
		return nil, fmt.Errorf("query tokens by prefix: %w", err)
	}
	defer rows.Close()

	var tokens []Token
	for rows.Next() {
		var t Token
		if err := rows.Scan(&t.TokenID, &t.SubstanceID, &t.Token, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan token: %w", err)
		}
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}

func (s *pgStore) AliasesByPrefix(ctx context.Context, prefix string, limit int) ([]BrandAlias, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT alias_id, brand_name, substance_id, COALESCE(notes, ''), is_active, created_at
		FROM alias_packs
		WHERE is_active AND lower(brand_name) LIKE $1 || '%'
		ORDER BY brand_name
		LIMIT $2`, prefix, limit)
	if err != nil {
		return nil, fmt.Errorf("query aliases by prefix: %w", err)
	}
	defer rows.Close()

	var aliases []BrandAlias
	for rows.Next() {
		var a BrandAlias
		if err := rows.Scan(&a.AliasID, &a.BrandName, &a.SubstanceID, &a.Notes, &a.Active, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan alias: %w", err)
		}
		aliases = append(aliases, a)
	}
	return aliases, rows.Err()
}

func (s *pgStore) SubstancesByIDs(ctx context.Context, ids []string) ([]Substance, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT substance_id, type, display_name, canonical_name, is_active
		FROM checker_substances
		WHERE substance_id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("query substances: %w", err)
	}
	defer rows.Close()

	return scanSubstances(rows)
}

func (s *pgStore) ActiveSubstances(ctx context.Context) ([]Substance, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT substance_id, type, display_name, canonical_name, is_active
		FROM checker_substances
		WHERE is_active
		ORDER BY display_name`)
	if err != nil {
		return nil, fmt.Errorf("query active substances: %w", err)
	}
	defer rows.Close()

	return scanSubstances(rows)
}

func scanSubstances(rows *sql.Rows) ([]Substance, error) {
	var subs []Substance
	for rows.Next() {
		var sub Substance
		if err := rows.Scan(&sub.SubstanceID, &sub.Type, &sub.DisplayName, &sub.CanonicalName, &sub.Active); err != nil {
			return nil, fmt.Errorf("scan substance: %w", err)
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

func (s *pgStore) TokensForSubstances(ctx context.Context, ids []string) (map[string][]string, error) {
	out := make(map[string][]string)
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT substance_id, token
		FROM checker_substance_tokens
		WHERE substance_id = ANY($1)
		ORDER BY token`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("query substance tokens: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, token string
		if err := rows.Scan(&id, &token); err != nil {
			return nil, fmt.Errorf("scan substance token: %w", err)
		}
		out[id] = append(out[id], token)
	}
	return out, rows.Err()
}

func (s *pgStore) TokensForSubstance(ctx context.Context, substanceID string) ([]Token, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT token_id, substance_id, token, created_at
		FROM checker_substance_tokens
		WHERE substance_id = $1
		ORDER BY token`, substanceID)
	if err != nil {
		return nil, fmt.Errorf("query tokens for substance: %w", err)
	}
	defer rows.Close()

	var tokens []Token
	for rows.Next() {
		var t Token
		if err := rows.Scan(&t.TokenID, &t.SubstanceID, &t.Token, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan token: %w", err)
		}
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}

func (s *pgStore) TokenOwner(ctx context.Context, token string) (string, bool, error) {
	var owner string
	err := s.db.QueryRowContext(ctx, `
		SELECT substance_id FROM checker_substance_tokens WHERE token = $1`, token).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("query token owner: %w", err)
	}
	return owner, true, nil
}

func (s *pgStore) InsertToken(ctx context.Context, token, substanceID string) (Token, error) {
	var t Token
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO checker_substance_tokens (substance_id, token)
		VALUES ($1, $2)
		RETURNING token_id, substance_id, token, created_at`, substanceID, token).
		Scan(&t.TokenID, &t.SubstanceID, &t.Token, &t.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return Token{}, errTokenTaken
		}
		return Token{}, fmt.Errorf("insert token: %w", err)
	}
	return t, nil
}

func (s *pgStore) UpsertSubstance(ctx context.Context, sub Substance) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO checker_substances (substance_id, type, display_name, canonical_name, is_active)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (substance_id) DO UPDATE SET
			type = EXCLUDED.type,
			display_name = EXCLUDED.display_name,
			canonical_name = EXCLUDED.canonical_name,
			is_active = EXCLUDED.is_active`,
		sub.SubstanceID, sub.Type, sub.DisplayName, sub.CanonicalName, sub.Active)
	if err != nil {
		return fmt.Errorf("upsert substance: %w", err)
	}
	return nil
}

func (s *pgStore) InsertAlias(ctx context.Context, a BrandAlias) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO alias_packs (alias_id, brand_name, substance_id, notes, is_active)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5)`,
		a.AliasID, a.BrandName, a.SubstanceID, a.Notes, a.Active)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return errTokenTaken
		}
		return fmt.Errorf("insert alias: %w", err)
	}
	return nil
}

func (s *pgStore) DeactivateAlias(ctx context.Context, aliasID string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE alias_packs SET is_active = FALSE WHERE alias_id = $1`, aliasID)
	if err != nil {
		return fmt.Errorf("deactivate alias: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *pgStore) AliasesForSubstance(ctx context.Context, substanceID string) ([]BrandAlias, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT alias_id, brand_name, substance_id, COALESCE(notes, ''), is_active, created_at
		FROM alias_packs
		WHERE substance_id = $1 AND is_active
		ORDER BY brand_name`, substanceID)
	if err != nil {
		return nil, fmt.Errorf("query aliases for substance: %w", err)
	}
	defer rows.Close()

	var aliases []BrandAlias
	for rows.Next() {
		var a BrandAlias
		if err := rows.Scan(&a.AliasID, &a.BrandName, &a.SubstanceID, &a.Notes, &a.Active, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan alias: %w", err)
		}
		aliases = append(aliases, a)
	}
	return aliases, rows.Err()
}

func (s *pgStore) Stats(ctx context.Context) (CoverageStats, error) {
	var stats CoverageStats
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM checker_substances WHERE is_active),
			(SELECT COUNT(*) FROM checker_substances WHERE is_active AND type = 'drug'),
			(SELECT COUNT(*) FROM checker_substances WHERE is_active AND type = 'supplement'),
			(SELECT COUNT(*) FROM checker_substance_tokens),
			(SELECT COUNT(*) FROM alias_packs WHERE is_active)`).
		Scan(&stats.Substances, &stats.Drugs, &stats.Supplements, &stats.Tokens, &stats.ActiveAliases)
	if err != nil {
		return CoverageStats{}, fmt.Errorf("query coverage stats: %w", err)
	}
	return stats, nil
}
