package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/japaniel/wifireview/pkg/analysis"
	"github.com/japaniel/wifireview/pkg/config"
	"github.com/japaniel/wifireview/pkg/db"
	"github.com/japaniel/wifireview/pkg/export"
	"github.com/japaniel/wifireview/pkg/ingest"
	"github.com/japaniel/wifireview/pkg/lexicon"
	"github.com/japaniel/wifireview/pkg/logging"
	"github.com/japaniel/wifireview/pkg/segment"
)

// newBackend builds the word segmenter; tests swap it for a stub.
var newBackend = func(userDicts []string) (segment.Backend, error) {
	return segment.NewGSE(userDicts...)
}

func main() {
	// Setup context for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "wifireview: %v\n", err)
		if errors.Is(err, context.Canceled) {
			os.Exit(130)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("wifireview", flag.ContinueOnError)
	cfgFlag := fs.String("config", "", "Path to YAML config file")
	envFlag := fs.String("env", ".env", "Path to .env file (ignored when missing)")
	dirFlag := fs.String("dir", "", "Directory of per-product review JSON files")
	dbFlag := fs.String("db", "", "Database DSN (sqlite path or postgres URL)")
	driverFlag := fs.String("db-driver", "", "Database driver: sqlite3 or pgx")
	outFlag := fs.String("out", "", "Directory for CSV tables and JSON reports")
	workersFlag := fs.Int("workers", 0, "Number of products analysed concurrently")
	seedFlag := fs.Uint64("seed", 0, "Sampling seed (0 picks one per run)")
	forceFlag := fs.Bool("force", false, "Re-analyse products that already have results and rewrite the CSV tables")
	productsFlag := fs.String("import-products", "", "Import a product catalog CSV and exit")
	levelFlag := fs.String("log-level", "", "Log level: debug, info, warn, error")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*cfgFlag, *envFlag)
	if err != nil {
		return err
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "dir":
			cfg.Input.ReviewDir = *dirFlag
		case "db":
			cfg.Database.DSN = *dbFlag
		case "db-driver":
			cfg.Database.Driver = *driverFlag
		case "out":
			cfg.Output.Dir = *outFlag
		case "workers":
			cfg.Analysis.Workers = *workersFlag
		case "seed":
			cfg.Analysis.Seed = *seedFlag
		case "import-products":
			cfg.Input.ProductsCSV = *productsFlag
		case "log-level":
			cfg.Log.Level = *levelFlag
		}
	})

	logger, err := logging.Init(cfg.Log.Level)
	if err != nil {
		return err
	}

	conn, err := db.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := db.InitDB(ctx, conn.Executor()); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	logger.Info("database ready", "driver", conn.Dialect, "dsn", cfg.Database.DSN)

	// Catalog import is its own mode, like a dictionary import.
	if *productsFlag != "" {
		n, err := importProducts(ctx, conn, cfg.Input.ProductsCSV)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Imported %d products from %s.\n", n, cfg.Input.ProductsCSV)
		return nil
	}
	if cfg.Input.ProductsCSV != "" {
		if n, err := importProducts(ctx, conn, cfg.Input.ProductsCSV); err != nil {
			logger.Warn("product catalog not imported", "path", cfg.Input.ProductsCSV, "error", err)
		} else {
			logger.Info("product catalog imported", "path", cfg.Input.ProductsCSV, "products", n)
		}
	}

	res, stopwords, err := loadResources(ctx, cfg.Lexicon, logger)
	if err != nil {
		return err
	}

	start := time.Now()
	backend, err := newBackend(cfg.Lexicon.UserDicts)
	if err != nil {
		return fmt.Errorf("failed to create segmenter: %w", err)
	}
	logger.Debug("segmenter ready", "elapsed", time.Since(start).Round(time.Millisecond))

	store := ingest.NewStoreSink(conn, cfg.Database.BatchSize, cfg.Database.FlushInterval)
	sinks := []ingest.Sink{store}
	if cfg.Output.CSVEnabled() {
		csvSink, err := export.NewCSVSink(cfg.Output.Dir, res.Categories, *forceFlag)
		if err != nil {
			store.Close()
			return err
		}
		sinks = append(sinks, csvSink)
	}
	if cfg.Output.ReportsEnabled() {
		reports, err := export.NewReportSink(cfg.Output.Dir)
		if err != nil {
			for _, s := range sinks {
				s.Close()
			}
			return err
		}
		sinks = append(sinks, reports)
	}

	driver := ingest.NewDriver(segment.New(backend, stopwords), res, sinks...)
	driver.Progress = store
	driver.Force = *forceFlag
	driver.Workers = cfg.Analysis.Workers
	driver.Seed = cfg.Analysis.Seed
	driver.KeywordExclusions = cfg.Analysis.KeywordExclusions
	driver.Logger = logger

	sum, err := driver.Run(ctx, cfg.Input.ReviewDir)
	if sum.Total > 0 || err == nil {
		verb := "Processing complete"
		if sum.Interrupted {
			verb = "Processing interrupted"
		}
		fmt.Fprintf(stdout, "%s. %d processed, %d skipped, %d failed of %d files (run %s).\n",
			verb, sum.Processed, sum.Skipped, sum.Failed, sum.Total, sum.RunID)
	}
	return err
}

func importProducts(ctx context.Context, conn *db.DB, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open product catalog: %w", err)
	}
	defer f.Close()
	return db.ImportProductsCSV(ctx, conn.Executor(), f)
}

// loadResources reads the lexicons once. Missing word lists degrade to empty
// sets with a warning; a category file that exists but is invalid is fatal.
func loadResources(ctx context.Context, cfg config.LexiconConfig, logger *slog.Logger) (*analysis.Resources, lexicon.WordSet, error) {
	fetcher := &lexicon.Fetcher{BaseURL: cfg.BaseURL, Suffix: cfg.URLSuffix}
	load := func(kind, path string) lexicon.WordSet {
		if cfg.BaseURL != "" && path != "" {
			if fetched, err := fetcher.Ensure(ctx, path); err != nil {
				logger.Warn("word list download failed", "kind", kind, "path", path, "error", err)
			} else if fetched {
				logger.Info("word list downloaded", "kind", kind, "path", path)
			}
		}
		set, origin := lexicon.LoadWordSet(path)
		if origin.Defaulted {
			logger.Warn("word list not loaded; using an empty set", "kind", kind, "path", path, "error", origin.Err)
		} else {
			logger.Debug("word list loaded", "kind", kind, "path", path, "words", set.Len())
		}
		return set
	}
	stopwords := load("stopwords", cfg.Stopwords)
	res := &analysis.Resources{
		Positive: load("positive", cfg.Positive),
		Negative: load("negative", cfg.Negative),
	}

	table, origin, err := lexicon.LoadCategories(cfg.Categories)
	if err != nil {
		return nil, lexicon.WordSet{}, err
	}
	if origin.Defaulted && cfg.Categories != "" {
		logger.Warn("category file not found; using built-in table", "path", cfg.Categories, "error", origin.Err)
	}
	res.Categories = table
	return res, stopwords, nil
}
