package storage

import (
	"context"
	"fmt"

	"ArticlesClassifier/internal/domain"
	"ArticlesClassifier/internal/ports"
)

// PendingForOrganization computes the organization's classification backlog.
func (s *Store) PendingForOrganization(ctx context.Context, q ports.PendingQuery) ([]domain.Article, error) {
	query, args, err := pendingArticlesQuery(q.OrganizationID, q.CreatedAt, s.maxAttempts, q.Limit)
	if err != nil {
		return nil, fmt.Errorf("build pending query: %w", err)
	}

	var articles []domain.Article
	if err := s.db.SelectContext(ctx, &articles, query, args...); err != nil {
		return nil, fmt.Errorf("select pending articles: %w", err)
	}

	return articles, nil
}

// SaveNew inserts articles, skipping links that already exist, and returns
// how many were actually new.
func (s *Store) SaveNew(ctx context.Context, articles []domain.Article) (int, error) {
	if len(articles) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}

	inserted := 0
	for _, article := range articles {
		query, args, err := insertArticleQuery(article)
		if err != nil {
			_ = tx.Rollback()
			return 0, fmt.Errorf("build insert for %s: %w", article.Link, err)
		}

		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			_ = tx.Rollback()
			return 0, fmt.Errorf("insert article %s: %w", article.Link, err)
		}

		affected, err := res.RowsAffected()
		if err != nil {
			_ = tx.Rollback()
			return 0, fmt.Errorf("rows affected for %s: %w", article.Link, err)
		}
		inserted += int(affected)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit articles: %w", err)
	}

	return inserted, nil
}
