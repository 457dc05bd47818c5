package ports

import (
	"context"
	"time"

	"ArticlesClassifier/internal/domain"
)

// PendingQuery identifies one organization's classification backlog.
type PendingQuery struct {
	OrganizationID int64
	CreatedAt      time.Time
	// Limit caps the number of returned articles; zero means no cap.
	Limit int
}

// ArticleStore reads the shared article table. The classification core never
// mutates articles; SaveNew exists for the feed ingest collaborator.
type ArticleStore interface {
	// PendingForOrganization returns the articles that still need
	// classification for the organization: no ledger row yet, or a row in a
	// retryable state, and published on or after the organization's join
	// date (inclusive; articles without a publication date are excluded).
	// Results are ordered oldest-published-first.
	PendingForOrganization(ctx context.Context, q PendingQuery) ([]domain.Article, error)

	// SaveNew inserts articles, silently skipping links that already exist,
	// and returns how many were actually new.
	SaveNew(ctx context.Context, articles []domain.Article) (int, error)
}

// OrganizationRegistry lists tenants.
type OrganizationRegistry interface {
	// ListActive returns active organizations, optionally restricted to the
	// given names. An empty filter means all.
	ListActive(ctx context.Context, names []string) ([]domain.Organization, error)
}

// ClassificationLedger persists per-(article, organization) outcomes.
type ClassificationLedger interface {
	// Upsert atomically creates or replaces the record for its
	// (ArticleID, OrganizationID) pair in a single conditional write,
	// incrementing the stored attempt counter. It never produces a second
	// row for the same pair.
	Upsert(ctx context.Context, rec domain.ClassificationRecord) error

	// Get returns the record for a pair, or nil if none exists.
	Get(ctx context.Context, articleID, organizationID int64) (*domain.ClassificationRecord, error)

	// SetStarred toggles the user annotation flag without touching the
	// classification fields.
	SetStarred(ctx context.Context, articleID, organizationID int64, starred bool) error
}

// Classifier is the external language-model call. It must be treated as
// unreliable: timeouts, rate limits and malformed output are normal failure
// modes, surfaced as errors.
type Classifier interface {
	Classify(ctx context.Context, article domain.Article, org domain.Organization) (domain.Result, error)
}

// FeedSource pulls articles from one upstream feed.
type FeedSource interface {
	Fetch(ctx context.Context, feedURL string) ([]domain.Article, error)
}

// Scheduler controls when recurring classification passes execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
