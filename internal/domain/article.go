package domain

import "time"

// Article is an ingested news item, stored once and shared across all
// organizations. Rows are immutable after insert and deduplicated by Link.
type Article struct {
	ID            int64      `db:"id"`
	Title         string     `db:"title"`
	Link          string     `db:"link"`
	Summary       string     `db:"summary"`
	Source        string     `db:"source"`
	DatePublished *time.Time `db:"date_published"`
	DateAdded     time.Time  `db:"date_added"`
}

// PublishedOnOrAfter reports whether the article falls inside an
// organization's eligibility window. Articles without a publication date are
// never eligible; the boundary itself is inclusive.
func (a Article) PublishedOnOrAfter(t time.Time) bool {
	if a.DatePublished == nil {
		return false
	}
	return !a.DatePublished.Before(t)
}
