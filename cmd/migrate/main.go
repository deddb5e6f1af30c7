// Command migrate runs schema operations and the legacy data backfill.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strconv"
	"strings"

	"storefront/internal/config"
	"storefront/internal/database"
	"storefront/internal/repository"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func usage() error {
	return fmt.Errorf("usage: migrate [-dry-run] <up|auto|down|normalize> [version]")
}

func run() error {
	dryRun := flag.Bool("dry-run", false, "Report legacy rows without rewriting them (normalize only)")
	flag.Parse()
	if flag.NArg() < 1 {
		return usage()
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Connect applies the schema for the environment; "down" and "up" run
	// against the versioned scripts regardless.
	db, err := database.Connect(cfg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer func() { _ = database.Close(db) }()

	ctx := context.Background()
	cmd := strings.ToLower(strings.TrimSpace(flag.Arg(0)))
	switch cmd {
	case "up":
		if err := database.RunMigrations(ctx, db); err != nil {
			return fmt.Errorf("sql migrations failed: %w", err)
		}
		log.Println("sql migrations applied")
	case "auto":
		if err := database.AutoMigrate(db.WithContext(ctx)); err != nil {
			return fmt.Errorf("auto schema apply failed: %w", err)
		}
		log.Println("automigrations applied")
	case "down":
		if flag.NArg() < 2 {
			return fmt.Errorf("usage: migrate down <version>")
		}
		version, err := strconv.Atoi(flag.Arg(1))
		if err != nil {
			return fmt.Errorf("invalid version %q: %w", flag.Arg(1), err)
		}
		if err := database.RollbackMigration(ctx, db, version); err != nil {
			return fmt.Errorf("rollback failed: %w", err)
		}
		log.Printf("rolled back migration %d", version)
	case "normalize":
		report, err := repository.NewLegacyRepository(db).Backfill(ctx, *dryRun)
		if err != nil {
			return fmt.Errorf("normalize failed: %w", err)
		}
		for entity, n := range report.Rewritten {
			log.Printf("rewritten %s: %d", entity, n)
		}
		for entity, n := range report.Unresolved {
			log.Printf("unresolved %s: %d", entity, n)
		}
		if *dryRun {
			log.Println("dry run: no rows were changed")
		}
	default:
		return usage()
	}

	return nil
}
