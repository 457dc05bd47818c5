package feed

import (
	"context"
	"fmt"
	"log"

	"ArticlesClassifier/internal/ports"
)

// Ingester walks the configured feeds and stores new articles. Articles are
// organization-agnostic: they are stored once and shared across all tenants;
// classification happens later in the orchestrator.
type Ingester struct {
	source ports.FeedSource
	store  ports.ArticleStore
	feeds  []string
	logger *log.Logger
}

// NewIngester wires a feed source with the article store.
func NewIngester(source ports.FeedSource, store ports.ArticleStore, feeds []string, logger *log.Logger) *Ingester {
	return &Ingester{source: source, store: store, feeds: feeds, logger: logger}
}

// Run fetches every configured feed and returns the total number of newly
// stored articles. A failing feed is logged and skipped; the others continue.
func (i *Ingester) Run(ctx context.Context) (int, error) {
	if len(i.feeds) == 0 {
		return 0, fmt.Errorf("no feeds configured")
	}

	total := 0
	failures := 0
	for _, feedURL := range i.feeds {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		articles, err := i.source.Fetch(ctx, feedURL)
		if err != nil {
			failures++
			i.printf("fetch %s failed: %v", feedURL, err)
			continue
		}

		stored, err := i.store.SaveNew(ctx, articles)
		if err != nil {
			failures++
			i.printf("store articles from %s failed: %v", feedURL, err)
			continue
		}

		i.printf("stored %d new articles out of %d from %s", stored, len(articles), feedURL)
		total += stored
	}

	if failures == len(i.feeds) {
		return total, fmt.Errorf("all %d feeds failed", failures)
	}
	return total, nil
}

func (i *Ingester) printf(format string, args ...any) {
	if i.logger != nil {
		i.logger.Printf(format, args...)
	}
}
