package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/rs/cors"
	"go.uber.org/zap"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

func main() {
	cfg := loadConfig()
	log, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "migrate":
			runMigrate(cfg, log)
			return
		case "seed":
			runSeed(cfg, log, os.Args[2:])
			return
		case "rebuild-suggest":
			runRebuildSuggest(cfg, log)
			return
		case "test-search":
			runTestSearch(cfg, log, os.Args[2:])
			return
		case "apply-pack":
			runApplyPack(cfg, log, os.Args[2:])
			return
		case "help":
			printHelp()
			return
		}
	}
	runServer(cfg, log)
}

func printHelp() {
	fmt.Println("Usage: checker-search [command]")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  (no args)        Start the HTTP server")
	fmt.Println("  migrate          Apply the database schema")
	fmt.Println("  seed <csv>       Import substances and tokens from a CSV file")
	fmt.Println("  rebuild-suggest  Rebuild the Meilisearch suggestion index")
	fmt.Println("  test-search <q>  Run a search from the command line")
	fmt.Println("  apply-pack <id>  Plan a token pack; add -yes to apply it")
	fmt.Println("  help             Show this help message")
}

func mustStore(cfg Config, log *zap.SugaredLogger) Store {
	db, err := connectDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	return NewPGStore(db)
}

func runServer(cfg Config, log *zap.SugaredLogger) {
	store := mustStore(cfg, log)
	srv := newServer(store, newSuggestIndex(cfg), log)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	})

	// h2c so reverse proxies can speak HTTP/2 without TLS to us.
	handler := h2c.NewHandler(corsHandler.Handler(srv.routes()), &http2.Server{})

	log.Infow("checker-search listening", "addr", cfg.Addr)
	if err := http.ListenAndServe(cfg.Addr, handler); err != nil {
		log.Fatalw("server exited", "error", err)
	}
}

func runMigrate(cfg Config, log *zap.SugaredLogger) {
	db, err := connectDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer db.Close()

	if err := applySchema(context.Background(), db); err != nil {
		log.Fatalw("migration failed", "error", err)
	}
	log.Info("schema applied")
}

func runSeed(cfg Config, log *zap.SugaredLogger, args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: checker-search seed <csv>")
		os.Exit(2)
	}

	f, err := openSeedFile(args[0])
	if err != nil {
		log.Fatalw("seed failed", "error", err)
	}
	defer f.Close()

	store := mustStore(cfg, log)
	report, err := seedCatalog(context.Background(), store, f, log)
	if err != nil {
		log.Fatalw("seed failed", "error", err)
	}

	fmt.Printf("Seeded %d substances: %d tokens inserted, %d skipped (already owned)\n",
		report.Substances, report.TokensInserted, report.TokensSkipped)
}

func runRebuildSuggest(cfg Config, log *zap.SugaredLogger) {
	store := mustStore(cfg, log)
	ctx := context.Background()

	substances, err := store.ActiveSubstances(ctx)
	if err != nil {
		log.Fatalw("failed to load substances", "error", err)
	}
	ids := make([]string, 0, len(substances))
	for _, sub := range substances {
		ids = append(ids, sub.SubstanceID)
	}
	tokens, err := store.TokensForSubstances(ctx, ids)
	if err != nil {
		log.Fatalw("failed to load tokens", "error", err)
	}

	indexed, err := newSuggestIndex(cfg).Rebuild(substances, tokens)
	if err != nil {
		log.Fatalw("rebuild failed", "error", err)
	}
	fmt.Printf("Indexed %d substances into %q\n", indexed, suggestIndexName)
}

func runTestSearch(cfg Config, log *zap.SugaredLogger, args []string) {
	query := "magnesium"
	if len(args) > 0 {
		query = args[0]
	}

	store := mustStore(cfg, log)
	results, err := NewSearcher(store).Search(context.Background(), query, KindAny, defaultSearchLimit)
	if err != nil {
		log.Fatalw("search failed", "error", err)
	}

	fmt.Printf("Search results for %q: %d hits\n\n", query, len(results))
	fmt.Println("Score | Type       | Name")
	fmt.Println("------|------------|-----------------------------")
	for _, r := range results {
		fmt.Printf("%5d | %-10s | %s (%s)\n", r.MatchScore, r.Type, r.DisplayName, r.CanonicalName)
	}
}

func runApplyPack(cfg Config, log *zap.SugaredLogger, args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: checker-search apply-pack <pack-id> [-yes]")
		fmt.Println("\nAvailable packs:")
		for _, pack := range BuildPresetPacks() {
			fmt.Printf("  %-22s %s\n", pack.ID, pack.Name)
		}
		os.Exit(2)
	}

	pack, ok := FindPresetPack(args[0])
	if !ok {
		fmt.Printf("Unknown pack %q, run without arguments to list packs\n", args[0])
		os.Exit(2)
	}

	confirm := false
	for _, a := range args[1:] {
		if a == "-yes" || a == "--yes" {
			confirm = true
		}
	}

	store := mustStore(cfg, log)
	searcher := NewSearcher(store)
	planner := NewPackPlanner(store, searcher, NewTokenAdmin(store))
	ctx := context.Background()

	plan, err := planner.Plan(ctx, pack)
	if err != nil {
		log.Fatalw("pack dry run failed", "error", err)
	}

	fmt.Printf("Pack %q: %d entries planned\n\n", pack.Name, len(plan))
	fmt.Println("Status   | Token                  | Target")
	fmt.Println("---------|------------------------|-------------------------")
	for _, pt := range plan {
		target := pt.TargetDisplayName
		if pt.Status == PlanStatusConflict {
			target = "owned by " + pt.ConflictDisplayName
		}
		fmt.Printf("%-8s | %-22s | %s\n", pt.Status, pt.Normalized, target)
	}

	if !confirm {
		fmt.Println("\nDry run only. Re-run with -yes to apply the entries marked new.")
		return
	}

	report, err := planner.Apply(ctx, plan)
	if err != nil {
		log.Fatalw("pack apply failed", "error", err)
	}
	fmt.Printf("\nApplied: %d inserted, %d conflicts, %d skipped\n",
		report.Inserted, report.Conflicts, report.Skipped)
}
