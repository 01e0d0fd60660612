package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"foodwatch/internal/config"
	"foodwatch/internal/dimension"
	"foodwatch/internal/fact"
	"foodwatch/internal/migrate"
	"foodwatch/internal/storage/postgres"
)

// main is the entry point for the legacy migration binary. It loads the run
// config, builds the dimension cache, and drives the chunked migration of
// the old denormalized table into the fact store.
func main() {
	var (
		cfgPath    string
		chunkSize  int64
		pauseEvery int
		validate   bool
		dryRun     bool
	)

	flag.StringVar(&cfgPath, "config", "configs/migrate.json", "run config JSON path")
	flag.Int64Var(&chunkSize, "chunk-size", 0, "rows per legacy read window (overrides config)")
	flag.IntVar(&pauseEvery, "pause-every", 0, "pause after this many chunks (overrides config)")
	flag.BoolVar(&validate, "validate", false, "validate the configuration and exit")
	flag.BoolVar(&dryRun, "dry-run", false, "read and resolve but write nothing")
	verbose := flag.Bool("v", false, "enable verbose logs")

	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fatalf("%v", err)
	}

	issues := config.Validate(cfg)
	for _, iss := range issues {
		fmt.Fprintf(os.Stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if config.HasErrors(issues) {
		log.Printf("Configuration is invalid: %v", cfgPath)
		os.Exit(1)
	}
	if validate {
		log.Printf("Configuration is valid: %v", cfgPath)
		os.Exit(0)
	}

	if chunkSize > 0 {
		cfg.Migration.ChunkSize = chunkSize
	}
	if pauseEvery > 0 {
		cfg.Migration.PauseEvery = pauseEvery
	}

	ctx := context.Background()
	start := time.Now()

	sess, err := postgres.Connect(ctx, cfg.DB.DSN)
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer sess.Close()

	if cfg.DB.AutoCreateTable {
		if err := postgres.EnsureFactTable(ctx, sess, cfg.DB.FactTable); err != nil {
			log.Fatalf("%v", err)
		}
	}

	dims := postgres.NewDimensionReader(sess)
	cache, err := dimension.Load(ctx, dims)
	if err != nil {
		log.Fatalf("load dimension cache: %v", err)
	}
	sess.OnReconnect(func(ctx context.Context) error {
		return cache.Reload(ctx, dims)
	})
	if *verbose {
		p, c, s, m := cache.Sizes()
		log.Printf("dimension cache: provinces=%d commodities=%d subcategories=%d market_types=%d", p, c, s, m)
	}

	// Migration always runs in ignore mode so re-runs and overlapping
	// chunks collide harmlessly on the natural key.
	repo := postgres.NewFactRepository(sess, cfg.DB.FactTable, cfg.DB.Constraint)
	upsert := func(ctx context.Context, batch []fact.Price) (int64, error) {
		return repo.Upsert(ctx, batch, postgres.ConflictIgnore)
	}

	driver := migrate.New(
		postgres.NewLegacyReader(sess, cfg.DB.LegacyTable),
		cache,
		upsert,
		repo,
		migrate.Config{
			ChunkSize:  cfg.Migration.ChunkSize,
			BatchSize:  cfg.Migration.BatchSize,
			PauseEvery: cfg.Migration.PauseEvery,
			Pause:      cfg.Migration.Pause(),
			DryRun:     dryRun,
		},
	)

	res, err := driver.Run(ctx)
	if err != nil {
		log.Fatalf("%v", err)
	}
	if *verbose {
		log.Printf("completed in %s", time.Since(start).Truncate(time.Millisecond))
	}
	// A count shortfall is a warning, not a failure: the run completed and
	// committed chunks stay committed. The driver has already logged it.
	if res.Shortfall {
		log.Printf("migrate: completed with a destination count shortfall; review before dropping the legacy table")
	}
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
