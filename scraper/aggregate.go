package scraper

import (
	"log/slog"

	"github.com/aluiziolira/go-scrape-catalog/models"
)

// Aggregate concatenates the items of successful pages in the order given and
// drops failed pages. Each dropped page is logged and counted; the run goes on,
// so the result may under-represent the catalog.
func Aggregate(outcomes []models.PageOutcome, metrics *Metrics) *models.ScrapeResult {
	result := &models.ScrapeResult{
		Items:        []models.RawItem{},
		PageCount:    len(outcomes),
		FailedPages:  []int{},
		ErrorsByType: make(map[string]int),
	}

	for _, outcome := range outcomes {
		if outcome.OK() {
			result.Items = append(result.Items, outcome.Items...)
			result.SucceededPages++
			metrics.AddItems(len(outcome.Items))
			continue
		}

		kind := outcomeLabel(outcome)
		result.FailedPages = append(result.FailedPages, outcome.Page)
		result.ErrorsByType[kind]++
		metrics.IncPageFailure(kind)

		slog.Warn("page skipped",
			slog.Int("page", outcome.Page),
			slog.String("kind", kind),
			slog.String("detail", outcome.Describe()),
		)
	}

	return result
}
