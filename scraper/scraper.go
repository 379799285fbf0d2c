package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aluiziolira/go-scrape-catalog/config"
	"github.com/aluiziolira/go-scrape-catalog/models"
)

// Scraper fetches every configured catalog page and folds the outcomes into one item list.
type Scraper struct {
	cfg     *config.Config
	client  *Client
	fetcher *Fetcher
	Metrics *Metrics
}

// NewScraper builds a scraper instance configured from cfg.
func NewScraper(cfg *config.Config) (*Scraper, error) {
	client, err := NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("create page client: %w", err)
	}

	metrics := NewMetrics()
	return &Scraper{
		cfg:     cfg,
		client:  client,
		fetcher: NewFetcher(client, cfg.Concurrency, metrics),
		Metrics: metrics,
	}, nil
}

// Run fetches pages 1..cfg.Pages and aggregates them. Page failures are
// absorbed into the result; Run itself has no failure path.
func (s *Scraper) Run(ctx context.Context) *models.ScrapeResult {
	if ctx == nil {
		ctx = context.Background()
	}

	start := time.Now()
	slog.Info("fetching catalog",
		slog.Int("pages", s.cfg.Pages),
		slog.Int("concurrency", s.fetcher.concurrency),
	)

	outcomes := s.fetcher.FetchAll(ctx, s.cfg.Pages)
	result := Aggregate(outcomes, s.Metrics)
	result.StartTime = start
	result.EndTime = time.Now()

	slog.Info("catalog fetched",
		slog.Int("items", len(result.Items)),
		slog.Int("pages_ok", result.SucceededPages),
		slog.Int("pages_failed", len(result.FailedPages)),
		slog.Duration("duration", result.EndTime.Sub(result.StartTime)),
	)
	return result
}
