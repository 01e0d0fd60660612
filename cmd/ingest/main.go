package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"foodwatch/internal/catalog"
	"foodwatch/internal/config"
	"foodwatch/internal/dimension"
	"foodwatch/internal/fact"
	"foodwatch/internal/metrics"
	"foodwatch/internal/metrics/datadog"
	"foodwatch/internal/metrics/prompush"
	"foodwatch/internal/pipeline"
	"foodwatch/internal/source"
	"foodwatch/internal/storage/postgres"
)

// main is the entry point for the ingestion binary. It loads the run config,
// optionally initializes a metrics backend, builds the dimension cache, and
// executes one catalog sweep from the replay directory.
func main() {
	var (
		cfgPath           string
		metricsBackendFlg string
		pushGatewayURLFlg string
		seriesFlg         string
		validate          bool
		dryRun            bool
	)

	flag.StringVar(&cfgPath, "config", "configs/ingest.json", "run config JSON path")
	flag.StringVar(&metricsBackendFlg, "metrics-backend", "", "metrics backend to use (prometheus, datadog, none); overrides config")
	flag.StringVar(&pushGatewayURLFlg, "pushgateway-url", "", "Pushgateway base URL (overrides config and env PUSHGATEWAY_URL)")
	flag.StringVar(&seriesFlg, "series", "", "restrict the sweep to one catalog series code, e.g. cat_1 or com_16")
	flag.BoolVar(&validate, "validate", false, "validate the configuration and exit")
	flag.BoolVar(&dryRun, "dry-run", false, "parse and resolve but write nothing")
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
	if cfg.Ingest.ReplayDir == "" {
		fatalf("ingest.replay_dir is required")
	}

	setupMetrics(cfg, metricsBackendFlg, pushGatewayURLFlg, *verbose)
	defer func() {
		if err := metrics.Flush(); err != nil {
			log.Printf("metrics: flush error: %v", err)
		}
	}()

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

	var writer pipeline.Writer
	if dryRun {
		log.Printf("dry run: no rows will be written")
		writer = discardWriter{}
	} else {
		repo := postgres.NewFactRepository(sess, cfg.DB.FactTable, cfg.DB.Constraint)
		writer = policyWriter{repo: repo, policy: postgres.ConflictPolicy(cfg.Ingest.ConflictPolicy)}
	}

	replay := source.NewReplay(cfg.Ingest.ReplayDir)
	avail, err := replay.Available(cfg.Ingest.MarketTypes)
	if err != nil {
		fatalf("scan replay dir: %v", err)
	}
	log.Printf("replay dir %s: %d capture files for the selected market types", cfg.Ingest.ReplayDir, len(avail))

	pcfg := pipeline.Config{
		Job:                   cfg.Job,
		BatchSize:             cfg.Ingest.BatchSize,
		MarketTypes:           cfg.Ingest.MarketTypes,
		IncludeCategories:     !cfg.Ingest.SkipCategories,
		IncludeSubcommodities: !cfg.Ingest.SkipSubcommodities,
		RequestPause:          cfg.Ingest.RequestPause(),
		Source:                cfg.Ingest.Source,
	}
	if seriesFlg != "" {
		item, ok := catalog.Lookup(seriesFlg)
		if !ok {
			fatalf("unknown series code %q", seriesFlg)
		}
		pcfg.Only = []catalog.Item{item}
	}

	runner := pipeline.New(replay, cache, writer, sess, pcfg)

	sum, err := runner.Run(ctx)
	if err != nil {
		log.Fatalf("%v", err)
	}
	if *verbose {
		log.Printf("completed in %s", time.Since(start).Truncate(time.Millisecond))
	}
	if sum.SeriesFailed > 0 {
		os.Exit(1)
	}
}

// policyWriter binds the configured conflict policy to the repository so the
// pipeline only sees the narrow Writer contract.
type policyWriter struct {
	repo   *postgres.FactRepository
	policy postgres.ConflictPolicy
}

func (w policyWriter) Upsert(ctx context.Context, batch []fact.Price) (int64, error) {
	return w.repo.Upsert(ctx, batch, w.policy)
}

// discardWriter accepts every batch without touching storage.
type discardWriter struct{}

func (discardWriter) Upsert(ctx context.Context, batch []fact.Price) (int64, error) {
	return int64(len(batch)), nil
}

// setupMetrics decides the backend: flag, then config. The nop backend stays
// installed when nothing matches.
func setupMetrics(cfg config.Config, backendFlg, gwURLFlg string, verbose bool) {
	backendName := backendFlg
	if backendName == "" {
		backendName = cfg.Metrics.Backend
	}
	switch backendName {
	case "prometheus", "pushgateway":
		gwURL := gwURLFlg
		if gwURL == "" {
			gwURL = cfg.Metrics.PushgatewayURL
		}
		if gwURL == "" {
			gwURL = os.Getenv("PUSHGATEWAY_URL")
		}
		b, err := prompush.NewBackend(cfg.Job, gwURL)
		if err != nil {
			log.Printf("metrics: failed to init prom push backend: %v; using nop", err)
			return
		}
		log.Printf("metrics: url=%v, backend=%v, job_name=%v", gwURL, backendName, cfg.Job)
		metrics.SetBackend(b)

	case "datadog":
		b, err := datadog.NewBackend(datadog.Config{
			Addr:      cfg.Metrics.StatsdAddr,
			Namespace: cfg.Metrics.Namespace,
		})
		if err != nil {
			log.Printf("metrics: failed to init datadog backend: %v; using nop", err)
			return
		}
		log.Printf("metrics: addr=%v, backend=%v, job_name=%v", cfg.Metrics.StatsdAddr, backendName, cfg.Job)
		metrics.SetBackend(b)

	case "", "none":
		if verbose {
			log.Printf("metrics: disabled (backend=%q)", backendName)
		}

	default:
		log.Printf("metrics: unknown backend %q; metrics disabled", backendName)
	}
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
