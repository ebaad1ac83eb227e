package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/jengzang/watchdog-backend-go/internal/api"
	"github.com/jengzang/watchdog-backend-go/internal/config"
	"github.com/jengzang/watchdog-backend-go/internal/database"
	"github.com/jengzang/watchdog-backend-go/internal/ingest"
	"github.com/jengzang/watchdog-backend-go/internal/logging"
	"github.com/jengzang/watchdog-backend-go/internal/models"
)

func main() {
	towersPath := flag.String("towers", "", "path to a known-tower YAML file")
	sightingsPath := flag.String("sightings", "", "path to an NDJSON sightings file, - for stdin")
	dbPath := flag.String("db", "", "database path (overrides DB_PATH)")
	recompute := flag.Bool("recompute", false, "re-evaluate every cluster after loading")
	flag.Parse()

	if *towersPath == "" && *sightingsPath == "" && !*recompute {
		flag.Usage()
		os.Exit(2)
	}

	if err := run(*towersPath, *sightingsPath, *dbPath, *recompute); err != nil {
		fmt.Fprintf(os.Stderr, "ingest: %v\n", err)
		os.Exit(1)
	}
}

func run(towersPath, sightingsPath, dbPath string, recompute bool) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}
	logging.Init(cfg.Log)

	db, err := database.Open(database.Config{Path: cfg.DBPath})
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc := api.NewWatchdogService(db, cfg)

	if towersPath != "" {
		f, err := os.Open(towersPath)
		if err != nil {
			return err
		}
		towers, err := ingest.LoadTowers(f)
		f.Close()
		if err != nil {
			return err
		}
		for _, req := range towers {
			if _, err := svc.AddKnownTower(ctx, req); err != nil {
				return fmt.Errorf("tower %q: %w", req.Name, err)
			}
		}
		logging.Info().Int("count", len(towers)).Str("file", towersPath).Msg("Known towers loaded")
	}

	if sightingsPath != "" {
		var r io.Reader = os.Stdin
		if sightingsPath != "-" {
			f, err := os.Open(sightingsPath)
			if err != nil {
				return err
			}
			defer f.Close()
			r = f
		}

		n, err := ingest.ReadSightings(r, func(s models.Sighting) error {
			return svc.IngestSighting(ctx, &s)
		})
		logging.Info().Int("count", n).Str("file", sightingsPath).Msg("Sightings loaded")
		if err != nil {
			return err
		}
	}

	if recompute {
		result, err := svc.RecomputeAll(ctx, "cli")
		if err != nil {
			return err
		}
		fmt.Printf("recompute run %d: %d clusters from %d sightings in %dms\n",
			result.ID, result.Clusters, result.Sightings, result.DurationMS)
	}
	return nil
}
