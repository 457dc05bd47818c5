package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"ArticlesClassifier/internal/ports"
)

// Store persists articles, organizations and the classification ledger in
// Postgres. It implements the three storage ports behind one connection.
type Store struct {
	db *sqlx.DB
	// maxAttempts bounds retries of FAILED ledger rows: once a pair has been
	// attempted this many times it stops appearing in pending sets.
	maxAttempts int
}

var (
	_ ports.ArticleStore         = (*Store)(nil)
	_ ports.OrganizationRegistry = (*Store)(nil)
	_ ports.ClassificationLedger = (*Store)(nil)
)

// NewStore wires a sql.DB connection.
func NewStore(db *sql.DB, maxAttempts int) *Store {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &Store{db: sqlx.NewDb(db, "postgres"), maxAttempts: maxAttempts}
}

// RunMigrations creates the three tables. The UNIQUE constraint on
// (article_id, organization_id) is the load-bearing schema element: it is
// what makes the ledger upsert safe under concurrent writers.
func RunMigrations(db *sql.DB) error {
	initSQL := `
CREATE TABLE IF NOT EXISTS articles (
  id BIGSERIAL PRIMARY KEY,
  title TEXT NOT NULL DEFAULT '',
  link TEXT NOT NULL UNIQUE,
  summary TEXT NOT NULL DEFAULT '',
  date_published TIMESTAMPTZ,
  source TEXT NOT NULL DEFAULT '',
  date_added TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_articles_date_published ON articles(date_published);

CREATE TABLE IF NOT EXISTS organizations (
  id BIGSERIAL PRIMARY KEY,
  name TEXT NOT NULL UNIQUE,
  company_context TEXT NOT NULL DEFAULT '',
  is_active BOOLEAN NOT NULL DEFAULT TRUE,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  system_prompt TEXT,
  user_prompt_template TEXT,
  max_tokens INTEGER,
  temperature DOUBLE PRECISION
);

CREATE TABLE IF NOT EXISTS article_classifications (
  id BIGSERIAL PRIMARY KEY,
  article_id BIGINT NOT NULL REFERENCES articles(id),
  organization_id BIGINT NOT NULL REFERENCES organizations(id),
  classification TEXT NOT NULL DEFAULT '',
  explanation TEXT NOT NULL DEFAULT '',
  advice TEXT NOT NULL DEFAULT '',
  reasoning TEXT NOT NULL DEFAULT '',
  status TEXT NOT NULL DEFAULT 'PENDING',
  attempts INTEGER NOT NULL DEFAULT 0,
  classification_date TIMESTAMPTZ,
  starred BOOLEAN NOT NULL DEFAULT FALSE,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  UNIQUE (article_id, organization_id)
);

CREATE INDEX IF NOT EXISTS idx_classifications_org_status
  ON article_classifications(organization_id, status);
`
	if _, err := db.Exec(initSQL); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// Ping verifies connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
