package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"ArticlesClassifier/internal/domain"
)

// Upsert atomically creates or replaces the ledger row for the record's
// (article_id, organization_id) pair. See upsertClassificationQuery for the
// attempt-counting semantics.
func (s *Store) Upsert(ctx context.Context, rec domain.ClassificationRecord) error {
	query, args, err := upsertClassificationQuery(rec)
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert classification article=%d organization=%d: %w",
			rec.ArticleID, rec.OrganizationID, err)
	}

	return nil
}

// Get returns the ledger row for a pair, or nil if the pair has never been
// attempted.
func (s *Store) Get(ctx context.Context, articleID, organizationID int64) (*domain.ClassificationRecord, error) {
	const query = `
SELECT id, article_id, organization_id, classification, explanation, advice,
       reasoning, status, attempts, classification_date, starred, created_at, updated_at
FROM article_classifications
WHERE article_id = $1 AND organization_id = $2`

	var rec domain.ClassificationRecord
	err := s.db.GetContext(ctx, &rec, query, articleID, organizationID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get classification article=%d organization=%d: %w",
			articleID, organizationID, err)
	}

	return &rec, nil
}

// SetStarred toggles the user annotation flag for an existing pair.
func (s *Store) SetStarred(ctx context.Context, articleID, organizationID int64, starred bool) error {
	const query = `
UPDATE article_classifications
SET starred = $1, updated_at = NOW()
WHERE article_id = $2 AND organization_id = $3`

	res, err := s.db.ExecContext(ctx, query, starred, articleID, organizationID)
	if err != nil {
		return fmt.Errorf("set starred article=%d organization=%d: %w", articleID, organizationID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("no classification for article=%d organization=%d", articleID, organizationID)
	}

	return nil
}
