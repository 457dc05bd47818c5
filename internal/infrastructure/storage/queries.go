package storage

import (
	"time"

	sq "github.com/Masterminds/squirrel"

	"ArticlesClassifier/internal/domain"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// pendingArticlesQuery builds the pending-work selector for one organization:
// articles with no ledger row for the organization, or a row that is still
// retryable (PENDING, or FAILED below the attempt bound), published on or
// after the join date. The >= comparison is NULL-safe, so articles without a
// publication date never qualify. Ordering is oldest-published-first so
// partial runs make forward progress chronologically.
func pendingArticlesQuery(orgID int64, createdAt time.Time, maxAttempts, limit int) (string, []interface{}, error) {
	builder := psql.
		Select("a.id", "a.title", "a.link", "a.summary", "a.date_published", "a.source", "a.date_added").
		From("articles a").
		LeftJoin("article_classifications ac ON ac.article_id = a.id AND ac.organization_id = ?", orgID).
		Where(sq.Or{
			sq.Expr("ac.id IS NULL"),
			sq.Eq{"ac.status": string(domain.StatusPending)},
			sq.And{
				sq.Eq{"ac.status": string(domain.StatusFailed)},
				sq.Lt{"ac.attempts": maxAttempts},
			},
		}).
		Where(sq.GtOrEq{"a.date_published": createdAt}).
		OrderBy("a.date_published ASC")

	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}

	return builder.ToSql()
}

// insertArticleQuery deduplicates on link: an existing article is left
// untouched, so stored articles stay immutable.
func insertArticleQuery(a domain.Article) (string, []interface{}, error) {
	return psql.
		Insert("articles").
		Columns("title", "link", "summary", "date_published", "source").
		Values(a.Title, a.Link, a.Summary, a.DatePublished, a.Source).
		Suffix("ON CONFLICT (link) DO NOTHING").
		ToSql()
}

// listActiveOrganizationsQuery returns active tenants, optionally filtered by
// name.
func listActiveOrganizationsQuery(names []string) (string, []interface{}, error) {
	builder := psql.
		Select(
			"id", "name", "company_context", "is_active", "created_at",
			"COALESCE(system_prompt, '') AS system_prompt",
			"COALESCE(user_prompt_template, '') AS user_prompt_template",
			"COALESCE(max_tokens, 0) AS max_tokens",
			"temperature",
		).
		From("organizations").
		Where(sq.Eq{"is_active": true}).
		OrderBy("id ASC")

	if len(names) > 0 {
		builder = builder.Where(sq.Eq{"name": names})
	}

	return builder.ToSql()
}

// upsertClassificationQuery is the single conditional write that guarantees
// at most one ledger row per (article_id, organization_id). Every execution
// counts as one attempt; the increment happens inside the statement, so
// concurrent upserts cannot lose updates. The starred flag is a user
// annotation and is never written here.
func upsertClassificationQuery(rec domain.ClassificationRecord) (string, []interface{}, error) {
	return psql.
		Insert("article_classifications").
		Columns(
			"article_id", "organization_id", "classification", "explanation",
			"advice", "reasoning", "status", "attempts", "classification_date",
		).
		Values(
			rec.ArticleID, rec.OrganizationID, string(rec.Category), rec.Explanation,
			rec.Advice, rec.Reasoning, string(rec.Status), 1, rec.ClassifiedAt,
		).
		Suffix(`ON CONFLICT (article_id, organization_id) DO UPDATE SET
  classification = EXCLUDED.classification,
  explanation = EXCLUDED.explanation,
  advice = EXCLUDED.advice,
  reasoning = EXCLUDED.reasoning,
  status = EXCLUDED.status,
  attempts = article_classifications.attempts + 1,
  classification_date = EXCLUDED.classification_date,
  updated_at = NOW()`).
		ToSql()
}
