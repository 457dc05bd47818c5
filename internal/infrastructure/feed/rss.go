package feed

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"ArticlesClassifier/internal/domain"
	"ArticlesClassifier/internal/ports"
)

// RSSSource fetches one RSS/Atom feed and maps its items to articles.
type RSSSource struct {
	parser *gofeed.Parser
}

var _ ports.FeedSource = (*RSSSource)(nil)

// NewRSSSource builds a feed source with gofeed defaults.
func NewRSSSource() *RSSSource {
	return &RSSSource{parser: gofeed.NewParser()}
}

// Fetch parses one feed URL. Publication dates missing from the feed are
// preserved as nil so the stored article carries a NULL date (which keeps it
// out of date-gated pending sets).
func (s *RSSSource) Fetch(ctx context.Context, feedURL string) ([]domain.Article, error) {
	parsed, err := s.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", feedURL, err)
	}

	source := strings.TrimSpace(parsed.Title)
	if source == "" {
		source = feedURL
	}

	articles := make([]domain.Article, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		if item.Link == "" {
			continue
		}

		var published *time.Time
		if item.PublishedParsed != nil {
			published = item.PublishedParsed
		} else if item.UpdatedParsed != nil {
			published = item.UpdatedParsed
		}

		summary := item.Description
		if summary == "" {
			summary = item.Content
		}

		articles = append(articles, domain.Article{
			Title:         strings.TrimSpace(item.Title),
			Link:          item.Link,
			Summary:       stripHTML(summary),
			Source:        source,
			DatePublished: published,
		})
	}

	return articles, nil
}

// stripHTML flattens feed summaries to plain text; classification prompts
// should not carry markup.
func stripHTML(s string) string {
	if !strings.Contains(s, "<") {
		return strings.TrimSpace(s)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(doc.Text())
}
