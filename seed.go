package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
)

// SeedReport counts what a catalog import did.
type SeedReport struct {
	Substances     int
	TokensInserted int
	TokensSkipped  int
}

// generateSubstanceID derives a stable id from the canonical name, e.g.
// "sup_magnesium" or "med_warfarin".
func generateSubstanceID(canonicalName, kind string) string {
	prefix := "sup"
	if kind == KindDrug {
		prefix = "med"
	}
	squashed := strings.ReplaceAll(normalizeToken(canonicalName), " ", "")
	return prefix + "_" + squashed
}

// seedCatalog imports substances from a CSV with the columns
// display_name,canonical_name,type,aliases where aliases is a
// semicolon-separated list. Display name, canonical name, and every alias are
// auto-tokenized; a token already owned by another substance is skipped, first
// writer wins.
func seedCatalog(ctx context.Context, store Store, r io.Reader, log *zap.SugaredLogger) (SeedReport, error) {
	var report SeedReport

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	line := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return report, fmt.Errorf("read csv line %d: %w", line+1, err)
		}
		line++

		if len(record) < 3 {
			return report, fmt.Errorf("csv line %d: want at least display_name,canonical_name,type", line)
		}
		// Header row.
		if line == 1 && strings.EqualFold(strings.TrimSpace(record[0]), "display_name") {
			continue
		}

		displayName := strings.TrimSpace(record[0])
		canonicalName := strings.TrimSpace(record[1])
		kind := strings.ToLower(strings.TrimSpace(record[2]))
		if kind != KindDrug && kind != KindSupplement {
			return report, fmt.Errorf("csv line %d: type must be drug or supplement, got %q", line, record[2])
		}
		if canonicalName == "" {
			canonicalName = displayName
		}

		var aliases []string
		if len(record) >= 4 {
			for _, a := range strings.Split(record[3], ";") {
				if a = strings.TrimSpace(a); a != "" {
					aliases = append(aliases, a)
				}
			}
		}

		sub := Substance{
			SubstanceID:   generateSubstanceID(canonicalName, kind),
			Type:          kind,
			DisplayName:   displayName,
			CanonicalName: canonicalName,
			Active:        true,
		}
		if err := store.UpsertSubstance(ctx, sub); err != nil {
			return report, err
		}
		report.Substances++

		inserted, skipped, err := seedTokens(ctx, store, sub.SubstanceID, displayName, canonicalName, aliases)
		if err != nil {
			return report, err
		}
		report.TokensInserted += inserted
		report.TokensSkipped += skipped

		if report.Substances%100 == 0 {
			log.Infow("seeding progress", "substances", report.Substances, "tokens", report.TokensInserted)
		}
	}

	return report, nil
}

func seedTokens(ctx context.Context, store Store, substanceID, displayName, canonicalName string, aliases []string) (inserted, skipped int, err error) {
	seen := make(map[string]bool)
	names := append([]string{displayName, canonicalName}, aliases...)

	for _, name := range names {
		for _, token := range generateTokens(name) {
			if seen[token] {
				continue
			}
			seen[token] = true

			_, err := store.InsertToken(ctx, token, substanceID)
			if err == errTokenTaken {
				skipped++
				continue
			}
			if err != nil {
				return inserted, skipped, err
			}
			inserted++
		}
	}
	return inserted, skipped, nil
}

func openSeedFile(path string) (*os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open seed file: %w", err)
	}
	return f, nil
}
