package usecase

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ArticlesClassifier/internal/domain"
	"ArticlesClassifier/internal/ports"
)

type pairKey struct {
	articleID      int64
	organizationID int64
}

// memStore is an in-memory stand-in for the Postgres store. Its pending
// selection mirrors the storage contract: no ledger row, or PENDING, or
// FAILED below the attempt bound, published on/after the join date,
// oldest-published-first.
type memStore struct {
	mu          sync.Mutex
	articles    []domain.Article
	ledger      map[pairKey]*domain.ClassificationRecord
	maxAttempts int
	upsertErr   map[pairKey]error
}

func newMemStore(maxAttempts int) *memStore {
	return &memStore{
		ledger:      map[pairKey]*domain.ClassificationRecord{},
		maxAttempts: maxAttempts,
	}
}

func (m *memStore) PendingForOrganization(_ context.Context, q ports.PendingQuery) ([]domain.Article, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var pending []domain.Article
	for _, article := range m.articles {
		if !article.PublishedOnOrAfter(q.CreatedAt) {
			continue
		}
		rec, ok := m.ledger[pairKey{article.ID, q.OrganizationID}]
		if ok {
			retryable := rec.Status == domain.StatusPending ||
				(rec.Status == domain.StatusFailed && rec.Attempts < m.maxAttempts)
			if !retryable {
				continue
			}
		}
		pending = append(pending, article)
	}

	sort.Slice(pending, func(i, j int) bool {
		return pending[i].DatePublished.Before(*pending[j].DatePublished)
	})
	if q.Limit > 0 && len(pending) > q.Limit {
		pending = pending[:q.Limit]
	}
	return pending, nil
}

func (m *memStore) SaveNew(_ context.Context, articles []domain.Article) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.articles = append(m.articles, articles...)
	return len(articles), nil
}

func (m *memStore) Upsert(_ context.Context, rec domain.ClassificationRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := pairKey{rec.ArticleID, rec.OrganizationID}
	if err := m.upsertErr[key]; err != nil {
		return err
	}

	if existing, ok := m.ledger[key]; ok {
		rec.ID = existing.ID
		rec.Attempts = existing.Attempts + 1
		rec.Starred = existing.Starred
	} else {
		rec.ID = int64(len(m.ledger) + 1)
		rec.Attempts = 1
	}
	m.ledger[key] = &rec
	return nil
}

func (m *memStore) Get(_ context.Context, articleID, organizationID int64) (*domain.ClassificationRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.ledger[pairKey{articleID, organizationID}]
	if !ok {
		return nil, nil
	}
	copied := *rec
	return &copied, nil
}

func (m *memStore) SetStarred(_ context.Context, articleID, organizationID int64, starred bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.ledger[pairKey{articleID, organizationID}]
	if !ok {
		return fmt.Errorf("no record")
	}
	rec.Starred = starred
	return nil
}

func (m *memStore) rows() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.ledger)
}

func (m *memStore) record(articleID, organizationID int64) *domain.ClassificationRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ledger[pairKey{articleID, organizationID}]
}

type memRegistry struct {
	organizations []domain.Organization
}

func (r *memRegistry) ListActive(_ context.Context, names []string) ([]domain.Organization, error) {
	if len(names) == 0 {
		return r.organizations, nil
	}
	wanted := map[string]bool{}
	for _, name := range names {
		wanted[name] = true
	}
	var filtered []domain.Organization
	for _, org := range r.organizations {
		if wanted[org.Name] {
			filtered = append(filtered, org)
		}
	}
	return filtered, nil
}

type fakeClassifier struct {
	mu    sync.Mutex
	calls int
	seen  []pairKey
	fn    func(article domain.Article, org domain.Organization) (domain.Result, error)
}

func (c *fakeClassifier) Classify(_ context.Context, article domain.Article, org domain.Organization) (domain.Result, error) {
	c.mu.Lock()
	c.calls++
	c.seen = append(c.seen, pairKey{article.ID, org.ID})
	c.mu.Unlock()

	if c.fn != nil {
		return c.fn(article, org)
	}
	return domain.Result{
		Category:    domain.CategoryNeutral,
		Explanation: "no impact",
		Advice:      "none",
	}, nil
}

func (c *fakeClassifier) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func articleAt(id int64, published time.Time) domain.Article {
	return domain.Article{
		ID:            id,
		Title:         fmt.Sprintf("article %d", id),
		Link:          fmt.Sprintf("https://news.example.org/%d", id),
		Summary:       "summary",
		Source:        "test",
		DatePublished: &published,
	}
}

func testOrg(id int64, name string, createdAt time.Time) domain.Organization {
	return domain.Organization{
		ID:             id,
		Name:           name,
		CompanyContext: "A bicycle manufacturer with Asian suppliers.",
		IsActive:       true,
		CreatedAt:      createdAt,
	}
}

func newTestOrchestrator(store *memStore, registry *memRegistry, classifier *fakeClassifier, workers int) *Orchestrator {
	return NewOrchestrator(OrchestratorDeps{
		Articles:    store,
		Registry:    registry,
		Ledger:      store,
		Classifier:  classifier,
		Workers:     workers,
		CallTimeout: time.Second,
	})
}

func TestRunDateGatingBoundary(t *testing.T) {
	t.Parallel()

	joined := time.Date(2025, 11, 16, 0, 0, 0, 0, time.UTC)
	store := newMemStore(5)
	store.articles = []domain.Article{
		articleAt(1, joined.Add(-time.Second)), // 2025-11-15T23:59:59Z, excluded
		articleAt(2, joined),                   // exactly the join date, included
	}
	registry := &memRegistry{organizations: []domain.Organization{testOrg(10, "acme", joined)}}
	classifier := &fakeClassifier{}

	summary, err := newTestOrchestrator(store, registry, classifier, 1).Run(context.Background(), RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.TotalPending)
	assert.Equal(t, 1, summary.TotalSucceeded)
	assert.Equal(t, 1, store.rows())
	assert.Nil(t, store.record(1, 10))
	require.NotNil(t, store.record(2, 10))
	assert.Equal(t, domain.StatusClassified, store.record(2, 10).Status)
}

func TestRunTwoOrganizationsSharedArticles(t *testing.T) {
	t.Parallel()

	base := time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)
	store := newMemStore(5)
	for i := 0; i < 100; i++ {
		store.articles = append(store.articles, articleAt(int64(i+1), base.Add(time.Duration(i)*time.Hour)))
	}
	registry := &memRegistry{organizations: []domain.Organization{
		testOrg(1, "early-bird", base.Add(-24*time.Hour)),
		testOrg(2, "latecomer", base.Add(60*time.Hour)),
	}}
	classifier := &fakeClassifier{}

	summary, err := newTestOrchestrator(store, registry, classifier, 4).Run(context.Background(), RunOptions{})
	require.NoError(t, err)

	require.Len(t, summary.Organizations, 2)
	assert.Equal(t, 100, summary.Organizations[0].Succeeded)
	assert.Equal(t, 40, summary.Organizations[1].Succeeded)
	assert.Equal(t, 140, store.rows())
	assert.Equal(t, 140, summary.TotalSucceeded)
}

func TestRunIdempotence(t *testing.T) {
	t.Parallel()

	base := time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)
	store := newMemStore(5)
	for i := 0; i < 5; i++ {
		store.articles = append(store.articles, articleAt(int64(i+1), base.Add(time.Duration(i)*time.Minute)))
	}
	registry := &memRegistry{organizations: []domain.Organization{testOrg(1, "acme", base)}}
	classifier := &fakeClassifier{}
	orchestrator := newTestOrchestrator(store, registry, classifier, 1)

	first, err := orchestrator.Run(context.Background(), RunOptions{})
	require.NoError(t, err)
	require.Equal(t, 5, first.TotalSucceeded)
	callsAfterFirst := classifier.callCount()

	second, err := orchestrator.Run(context.Background(), RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, 0, second.TotalPending)
	assert.Equal(t, 0, second.TotalSucceeded)
	assert.Equal(t, callsAfterFirst, classifier.callCount())
	assert.Equal(t, 5, store.rows())
}

func TestRunResumability(t *testing.T) {
	t.Parallel()

	base := time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)
	store := newMemStore(5)
	for i := 0; i < 5; i++ {
		store.articles = append(store.articles, articleAt(int64(i+1), base.Add(time.Duration(i)*time.Minute)))
	}
	registry := &memRegistry{organizations: []domain.Organization{testOrg(1, "acme", base)}}
	classifier := &fakeClassifier{}
	orchestrator := newTestOrchestrator(store, registry, classifier, 1)

	// First run capped at 3 articles: the oldest three get classified.
	partial, err := orchestrator.Run(context.Background(), RunOptions{Limit: 3})
	require.NoError(t, err)
	require.Equal(t, 3, partial.TotalSucceeded)

	rest, err := orchestrator.Run(context.Background(), RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, 2, rest.TotalSucceeded)
	assert.Equal(t, 5, classifier.callCount())
	for id := int64(1); id <= 5; id++ {
		rec := store.record(id, 1)
		require.NotNil(t, rec, "article %d", id)
		assert.Equal(t, 1, rec.Attempts, "article %d was re-classified", id)
	}
}

func TestRunUnknownLabelIsTerminal(t *testing.T) {
	t.Parallel()

	base := time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)
	store := newMemStore(5)
	store.articles = []domain.Article{articleAt(1, base)}
	registry := &memRegistry{organizations: []domain.Organization{testOrg(1, "acme", base)}}
	classifier := &fakeClassifier{
		fn: func(domain.Article, domain.Organization) (domain.Result, error) {
			// What an unrecognized "Maybe" label parses to.
			return domain.Result{Category: domain.CategoryUnknown, Explanation: "Maybe"}, nil
		},
	}
	orchestrator := newTestOrchestrator(store, registry, classifier, 1)

	_, err := orchestrator.Run(context.Background(), RunOptions{})
	require.NoError(t, err)

	rec := store.record(1, 1)
	require.NotNil(t, rec)
	assert.Equal(t, domain.CategoryUnknown, rec.Category)
	assert.Equal(t, domain.StatusClassified, rec.Status)

	// The sentinel outcome is terminal: the next run finds nothing pending.
	second, err := orchestrator.Run(context.Background(), RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, second.TotalPending)
}

func TestRunFailedRetriesUntilBound(t *testing.T) {
	t.Parallel()

	base := time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)
	store := newMemStore(2)
	store.articles = []domain.Article{articleAt(1, base)}
	registry := &memRegistry{organizations: []domain.Organization{testOrg(1, "acme", base)}}
	classifier := &fakeClassifier{
		fn: func(domain.Article, domain.Organization) (domain.Result, error) {
			return domain.Result{}, fmt.Errorf("connection reset")
		},
	}
	orchestrator := newTestOrchestrator(store, registry, classifier, 1)

	for run := 1; run <= 2; run++ {
		summary, err := orchestrator.Run(context.Background(), RunOptions{})
		require.NoError(t, err)
		assert.Equal(t, 1, summary.TotalFailed, "run %d", run)
		rec := store.record(1, 1)
		require.NotNil(t, rec)
		assert.Equal(t, domain.StatusFailed, rec.Status)
		assert.Equal(t, run, rec.Attempts)
	}

	// The attempt bound is reached: the pair leaves the pending set.
	final, err := orchestrator.Run(context.Background(), RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, final.TotalPending)
	assert.Equal(t, 2, classifier.callCount())
}

func TestRunOrganizationFailureIsolation(t *testing.T) {
	t.Parallel()

	base := time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)
	store := newMemStore(5)
	store.articles = []domain.Article{articleAt(1, base)}

	broken := testOrg(1, "broken", base)
	broken.CompanyContext = ""
	registry := &memRegistry{organizations: []domain.Organization{broken, testOrg(2, "healthy", base)}}
	classifier := &fakeClassifier{}

	summary, err := newTestOrchestrator(store, registry, classifier, 1).Run(context.Background(), RunOptions{})
	require.NoError(t, err)

	require.Len(t, summary.Organizations, 2)
	assert.ErrorIs(t, summary.Organizations[0].Err, domain.ErrMissingContext)
	assert.Equal(t, 1, summary.Organizations[1].Succeeded)
	assert.Equal(t, 1, summary.FailedOrganizations)
	assert.Equal(t, 1, store.rows())
}

func TestRunPersistenceFailureIsolation(t *testing.T) {
	t.Parallel()

	base := time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)
	store := newMemStore(5)
	store.articles = []domain.Article{
		articleAt(1, base),
		articleAt(2, base.Add(time.Minute)),
	}
	store.upsertErr = map[pairKey]error{{1, 1}: fmt.Errorf("connection lost")}
	registry := &memRegistry{organizations: []domain.Organization{testOrg(1, "acme", base)}}
	classifier := &fakeClassifier{}

	summary, err := newTestOrchestrator(store, registry, classifier, 1).Run(context.Background(), RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.TotalSucceeded)
	assert.Equal(t, 1, summary.TotalFailed)
	require.NotNil(t, store.record(2, 1))
}

func TestRunDryRun(t *testing.T) {
	t.Parallel()

	base := time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)
	store := newMemStore(5)
	for i := 0; i < 3; i++ {
		store.articles = append(store.articles, articleAt(int64(i+1), base.Add(time.Duration(i)*time.Minute)))
	}
	registry := &memRegistry{organizations: []domain.Organization{testOrg(1, "acme", base)}}
	classifier := &fakeClassifier{}

	summary, err := newTestOrchestrator(store, registry, classifier, 1).Run(context.Background(), RunOptions{DryRun: true})
	require.NoError(t, err)

	assert.Equal(t, 3, summary.TotalPending)
	assert.Equal(t, 0, summary.TotalSucceeded)
	assert.Equal(t, 0, classifier.callCount())
	assert.Equal(t, 0, store.rows())
}

func TestRunOrgFilter(t *testing.T) {
	t.Parallel()

	base := time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)
	store := newMemStore(5)
	store.articles = []domain.Article{articleAt(1, base)}
	registry := &memRegistry{organizations: []domain.Organization{
		testOrg(1, "acme", base),
		testOrg(2, "globex", base),
	}}
	classifier := &fakeClassifier{}

	summary, err := newTestOrchestrator(store, registry, classifier, 1).
		Run(context.Background(), RunOptions{OrgNames: []string{"globex"}})
	require.NoError(t, err)

	require.Len(t, summary.Organizations, 1)
	assert.Equal(t, "globex", summary.Organizations[0].Name)
	assert.Nil(t, store.record(1, 1))
	require.NotNil(t, store.record(1, 2))
}

func TestRunFutureJoinDateYieldsEmptySet(t *testing.T) {
	t.Parallel()

	base := time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)
	store := newMemStore(5)
	store.articles = []domain.Article{articleAt(1, base)}
	registry := &memRegistry{organizations: []domain.Organization{
		testOrg(1, "not-yet", base.Add(365*24*time.Hour)),
	}}
	classifier := &fakeClassifier{}

	summary, err := newTestOrchestrator(store, registry, classifier, 1).Run(context.Background(), RunOptions{})
	require.NoError(t, err)

	require.Len(t, summary.Organizations, 1)
	assert.NoError(t, summary.Organizations[0].Err)
	assert.Equal(t, 0, summary.TotalPending)
	assert.Equal(t, 0, store.rows())
}

func TestRunBoundedConcurrencyClassifiesEverything(t *testing.T) {
	t.Parallel()

	base := time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)
	store := newMemStore(5)
	for i := 0; i < 20; i++ {
		store.articles = append(store.articles, articleAt(int64(i+1), base.Add(time.Duration(i)*time.Minute)))
	}
	registry := &memRegistry{organizations: []domain.Organization{testOrg(1, "acme", base)}}
	classifier := &fakeClassifier{}

	summary, err := newTestOrchestrator(store, registry, classifier, 4).Run(context.Background(), RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, 20, summary.TotalSucceeded)
	assert.Equal(t, 20, store.rows())
	assert.Equal(t, 20, classifier.callCount())
}
