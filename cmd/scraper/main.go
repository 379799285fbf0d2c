package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aluiziolira/go-scrape-catalog/config"
	"github.com/aluiziolira/go-scrape-catalog/models"
	"github.com/aluiziolira/go-scrape-catalog/pipeline"
	"github.com/aluiziolira/go-scrape-catalog/scraper"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg, err := loadConfig(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	logger, level := newLogger(cfg.Verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	if err := run(cfg); err != nil {
		slog.Error("scrape failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	s, err := scraper.NewScraper(cfg)
	if err != nil {
		return fmt.Errorf("initialising scraper: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metricsServer := startMetricsServer(cfg.MetricsAddr, s.Metrics)
	defer stopMetricsServer(metricsServer)

	startTime := time.Now()
	csvPath, jsonPath := cfg.OutputPaths(startTime)
	writer, outputs, err := createWriter(cfg.OutputFormat, csvPath, jsonPath)
	if err != nil {
		return fmt.Errorf("creating writer: %w", err)
	}

	slog.Info("starting scrape",
		slog.String("api_url", cfg.APIURL),
		slog.Int("pages", cfg.Pages),
		slog.Int("concurrency", cfg.Concurrency),
		slog.Any("outputs", outputs),
	)

	result := s.Run(ctx)
	if ctx.Err() != nil {
		slog.Warn("shutdown signal received, unstarted pages were skipped")
	}

	p := pipeline.NewPipeline(writer, cfg)
	p.Start()
	if cfg.Verbose {
		p.StartMetricsReporting(10 * time.Second)
	}

	processErr := p.Process(result.Items...)
	closeErr := p.Close()
	if err := errors.Join(processErr, closeErr); err != nil {
		writer.Close()
		return fmt.Errorf("pipeline: %w", err)
	}

	if err := writer.Validate(); err != nil {
		writer.Close()
		return fmt.Errorf("output validation: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close writer: %w", err)
	}

	printSummary(result, time.Since(startTime), outputs, p.GetMetrics())
	return nil
}

func loadConfig(args []string) (*config.Config, error) {
	cfg := config.DefaultConfig()

	if value, ok, err := config.EnvInt("SCRAPER_PAGES"); err != nil {
		return nil, fmt.Errorf("invalid SCRAPER_PAGES: %w", err)
	} else if ok {
		cfg.Pages = value
	}
	if value, ok, err := config.EnvInt("SCRAPER_CONCURRENCY"); err != nil {
		return nil, fmt.Errorf("invalid SCRAPER_CONCURRENCY: %w", err)
	} else if ok {
		cfg.Concurrency = value
	}
	if value, ok, err := config.EnvBool("SCRAPER_DEDUPE"); err != nil {
		return nil, fmt.Errorf("invalid SCRAPER_DEDUPE: %w", err)
	} else if ok {
		cfg.Dedupe = value
	}
	if value, ok := config.EnvString("SCRAPER_API_URL"); ok {
		cfg.APIURL = value
	}
	if value, ok := config.EnvString("SCRAPER_OUTPUT_DIR"); ok {
		cfg.OutputDir = value
	}
	if value, ok := config.EnvString("SCRAPER_METRICS_ADDR"); ok {
		cfg.MetricsAddr = value
	}

	fs := flag.NewFlagSet("scraper", flag.ContinueOnError)
	fs.StringVar(&cfg.APIURL, "api-url", cfg.APIURL, "Catalog API endpoint")
	fs.StringVar(&cfg.Origin, "origin", cfg.Origin, "Origin header sent with every request")
	fs.StringVar(&cfg.Language, "lang", cfg.Language, "Catalog language tag")
	fs.StringVar(&cfg.Sort, "sort", cfg.Sort, "Sort key (empty for API default)")
	fs.IntVar(&cfg.Limit, "limit", cfg.Limit, "Items per page")
	fs.IntVar(&cfg.CategoryID, "category", cfg.CategoryID, "Category filter id")
	fs.IntVar(&cfg.Pages, "pages", cfg.Pages, "Number of catalog pages to fetch")
	fs.IntVar(&cfg.Concurrency, "concurrency", cfg.Concurrency, "Maximum concurrent page requests")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "Per-request timeout")
	fs.StringVar(&cfg.OutputDir, "output-dir", cfg.OutputDir, "Directory for the run artifacts")
	fs.StringVar(&cfg.OutputPrefix, "output-prefix", cfg.OutputPrefix, "File name prefix for the run artifacts")
	fs.StringVar(&cfg.OutputFormat, "format", cfg.OutputFormat, "Output format: csv, json, or dual")
	fs.BoolVar(&cfg.Dedupe, "dedupe", cfg.Dedupe, "Omit CSV rows whose product id was already exported")
	fs.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "Prometheus metrics listen address (e.g. :9090)")
	fs.BoolVar(&cfg.Verbose, "v", cfg.Verbose, "Enable verbose logging")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	cfg.OutputFormat = strings.ToLower(cfg.OutputFormat)
	return cfg, nil
}

func createWriter(format, csvPath, jsonPath string) (pipeline.OutputWriter, []string, error) {
	switch format {
	case "csv":
		w, err := pipeline.NewCSVWriter(csvPath)
		return w, []string{csvPath}, err
	case "json":
		w, err := pipeline.NewJSONWriter(jsonPath)
		return w, []string{jsonPath}, err
	case "dual":
		w, err := pipeline.NewDualWriter(csvPath, jsonPath)
		return w, []string{csvPath, jsonPath}, err
	default:
		return nil, nil, fmt.Errorf("unsupported format: %s", format)
	}
}

func startMetricsServer(addr string, metrics *scraper.Metrics) *http.Server {
	if addr == "" || metrics == nil {
		return nil
	}
	server := &http.Server{
		Addr:              addr,
		Handler:           promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", slog.Any("error", err))
		}
	}()
	slog.Info("metrics server enabled", slog.String("addr", addr))
	return server
}

func stopMetricsServer(server *http.Server) {
	if server == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("metrics server shutdown failed", slog.Any("error", err))
	}
}

func printSummary(result *models.ScrapeResult, duration time.Duration, outputs []string, metrics map[string]interface{}) {
	separator := "--------------------------------------------------"
	fmt.Println("\n" + separator)
	fmt.Println("Scrape complete")

	records := int64(0)
	if processed, ok := metrics["processed_records"].(int64); ok {
		records = processed
	}

	fmt.Printf("  Pages:         %d ok / %d requested\n", result.SucceededPages, result.PageCount)
	fmt.Printf("  Items:         %d\n", len(result.Items))
	fmt.Printf("  Records:       %d\n", records)
	if len(result.FailedPages) > 0 {
		fmt.Printf("  Failed pages:  %v\n", result.FailedPages)
		fmt.Printf("  Error types:   %v\n", result.ErrorsByType)
		fmt.Println("  Note:          output is partial, failed pages are not retried")
	}
	if valErrors, ok := metrics["validation_errors"].(map[string]int); ok && len(valErrors) > 0 {
		fmt.Printf("  Validation:    %v\n", valErrors)
	}
	fmt.Printf("  Duration:      %v\n", duration)
	for _, output := range outputs {
		fmt.Printf("  Output file:   %s\n", output)
	}
	fmt.Println(separator)
}

func newLogger(verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stdout) {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
