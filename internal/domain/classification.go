package domain

import (
	"strings"
	"time"
)

// Category is the closed set of classification outcomes. Anything the model
// returns outside the three business categories is mapped to CategoryUnknown
// at the parse boundary and never stored as free text.
type Category string

const (
	CategoryThreat      Category = "Threat"
	CategoryOpportunity Category = "Opportunity"
	CategoryNeutral     Category = "Neutral"
	CategoryUnknown     Category = "Error: Unknown"
)

// ParseCategory validates a raw label against the closed set.
func ParseCategory(raw string) Category {
	switch Category(strings.TrimSpace(raw)) {
	case CategoryThreat:
		return CategoryThreat
	case CategoryOpportunity:
		return CategoryOpportunity
	case CategoryNeutral:
		return CategoryNeutral
	default:
		return CategoryUnknown
	}
}

// Status tracks the lifecycle of a classification record.
//
// StatusClassified is terminal success: an unparseable model reply still ends
// here (with CategoryUnknown), so it is auditable and never retried forever.
// StatusFailed covers transport-level failures and stays retryable until the
// attempt bound is reached.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusClassified Status = "CLASSIFIED"
	StatusFailed     Status = "FAILED"
)

// ClassificationRecord is one (article, organization) outcome. Exactly one
// record may exist per pair; the storage layer enforces this with a unique
// constraint and a conflict-resolving upsert.
type ClassificationRecord struct {
	ID             int64      `db:"id"`
	ArticleID      int64      `db:"article_id"`
	OrganizationID int64      `db:"organization_id"`
	Category       Category   `db:"classification"`
	Explanation    string     `db:"explanation"`
	Advice         string     `db:"advice"`
	Reasoning      string     `db:"reasoning"`
	Status         Status     `db:"status"`
	Attempts       int        `db:"attempts"`
	ClassifiedAt   *time.Time `db:"classification_date"`
	Starred        bool       `db:"starred"`
	CreatedAt      time.Time  `db:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at"`
}

// Result is what the external classifier produces for one pair before it is
// persisted.
type Result struct {
	Category    Category
	Explanation string
	Advice      string
	Reasoning   string
	Truncated   bool
}
