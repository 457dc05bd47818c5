package storage

import (
	"context"
	"fmt"

	"ArticlesClassifier/internal/domain"
)

// ListActive returns active organizations ordered by id, optionally
// restricted to the given names.
func (s *Store) ListActive(ctx context.Context, names []string) ([]domain.Organization, error) {
	query, args, err := listActiveOrganizationsQuery(names)
	if err != nil {
		return nil, fmt.Errorf("build organizations query: %w", err)
	}

	var organizations []domain.Organization
	if err := s.db.SelectContext(ctx, &organizations, query, args...); err != nil {
		return nil, fmt.Errorf("select organizations: %w", err)
	}

	return organizations, nil
}
