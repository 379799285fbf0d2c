package scraper

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/aluiziolira/go-scrape-catalog/models"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency keeps the fan-out below what the catalog API tolerates.
const DefaultConcurrency = 10

// Fetcher runs one PageClient call per page with a fixed concurrency ceiling.
type Fetcher struct {
	client      PageClient
	concurrency int
	metrics     *Metrics
}

// NewFetcher returns a fetcher. A non-positive concurrency falls back to DefaultConcurrency.
func NewFetcher(client PageClient, concurrency int, metrics *Metrics) *Fetcher {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Fetcher{
		client:      client,
		concurrency: concurrency,
		metrics:     metrics,
	}
}

// FetchAll attempts pages 1..pages exactly once each and returns their outcomes
// indexed by page-1. It returns only after every page has settled.
//
// Cancelling ctx does not abort the run: pages that have not started yet settle
// as transport failures carrying the context error.
func (f *Fetcher) FetchAll(ctx context.Context, pages int) []models.PageOutcome {
	if pages <= 0 {
		return []models.PageOutcome{}
	}
	if ctx == nil {
		ctx = context.Background()
	}

	outcomes := make([]models.PageOutcome, pages)
	var settled atomic.Int64

	var g errgroup.Group
	g.SetLimit(f.concurrency)
	for page := 1; page <= pages; page++ {
		g.Go(func() error {
			outcome := f.fetchOne(ctx, page)
			outcomes[page-1] = outcome

			done := settled.Add(1)
			slog.Debug("page settled",
				slog.Int("page", page),
				slog.String("outcome", outcomeLabel(outcome)),
				slog.Int("items", len(outcome.Items)),
				slog.Duration("duration", outcome.Duration),
			)
			if done%50 == 0 {
				slog.Info("fetch progress",
					slog.Int64("settled", done),
					slog.Int("total", pages),
				)
			}
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

func (f *Fetcher) fetchOne(ctx context.Context, page int) models.PageOutcome {
	if err := ctx.Err(); err != nil {
		outcome := models.TransportFailure(page, err)
		f.metrics.IncRequest(outcome.Kind.String())
		return outcome
	}

	f.metrics.TrackInFlight(1)
	outcome := f.client.FetchPage(ctx, page)
	f.metrics.TrackInFlight(-1)

	if outcome.Kind == models.OutcomeUnknown {
		outcome = models.TransportFailure(page, errors.New("page client returned no outcome"))
	}
	outcome.Page = page

	f.metrics.IncRequest(outcome.Kind.String())
	f.metrics.ObserveDuration(outcome.Duration)
	return outcome
}
