package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"ArticlesClassifier/internal/domain"
	"ArticlesClassifier/internal/ports"
)

// OrchestratorDeps wires all driven adapters into the classification run.
type OrchestratorDeps struct {
	Articles   ports.ArticleStore
	Registry   ports.OrganizationRegistry
	Ledger     ports.ClassificationLedger
	Classifier ports.Classifier
	Logger     *slog.Logger

	// Workers caps concurrent classifier calls within one organization;
	// values below 1 mean sequential processing.
	Workers int
	// PerOrgLimit caps articles per organization per run; zero means all.
	PerOrgLimit int
	// CallTimeout bounds each individual classifier call.
	CallTimeout time.Duration
}

// RunOptions parameterizes a single classification pass.
type RunOptions struct {
	// OrgNames restricts the run to the named organizations; empty means all
	// active organizations.
	OrgNames []string
	// Limit overrides the per-organization article cap for this run.
	Limit int
	// DryRun reports pending counts without calling the classifier or
	// writing to the ledger.
	DryRun bool
}

// Orchestrator drives one end-to-end multi-tenant classification run:
// for every active organization it computes the pending backlog, classifies
// each article with the organization's own context, and upserts the outcome
// into the ledger. Failures are isolated per article and per organization.
type Orchestrator struct {
	articles   ports.ArticleStore
	registry   ports.OrganizationRegistry
	ledger     ports.ClassificationLedger
	classifier ports.Classifier
	logger     *slog.Logger

	workers     int
	perOrgLimit int
	callTimeout time.Duration
}

// NewOrchestrator constructs the run driver.
func NewOrchestrator(deps OrchestratorDeps) *Orchestrator {
	workers := deps.Workers
	if workers < 1 {
		workers = 1
	}
	timeout := deps.CallTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Orchestrator{
		articles:    deps.Articles,
		registry:    deps.Registry,
		ledger:      deps.Ledger,
		classifier:  deps.Classifier,
		logger:      deps.Logger,
		workers:     workers,
		perOrgLimit: deps.PerOrgLimit,
		callTimeout: timeout,
	}
}

// Run executes one classification pass and returns its summary. The returned
// error covers only run-level failures (listing organizations, cancellation);
// per-article and per-organization failures land in the summary instead.
func (o *Orchestrator) Run(ctx context.Context, opts RunOptions) (*RunSummary, error) {
	summary := newRunSummary(opts.DryRun)
	defer summary.finish()

	organizations, err := o.registry.ListActive(ctx, opts.OrgNames)
	if err != nil {
		return summary, fmt.Errorf("list organizations: %w", err)
	}

	o.debug("run started", "run_id", summary.RunID, "organizations", len(organizations), "dry_run", opts.DryRun)

	for _, org := range organizations {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		summary.add(o.processOrganization(ctx, org, opts))
	}

	return summary, nil
}

func (o *Orchestrator) processOrganization(ctx context.Context, org domain.Organization, opts RunOptions) OrganizationReport {
	report := OrganizationReport{OrganizationID: org.ID, Name: org.Name}

	if err := org.Validate(); err != nil {
		report.Err = fmt.Errorf("organization %s: %w", org.Name, err)
		return report
	}

	limit := o.perOrgLimit
	if opts.Limit > 0 {
		limit = opts.Limit
	}

	pending, err := o.articles.PendingForOrganization(ctx, ports.PendingQuery{
		OrganizationID: org.ID,
		CreatedAt:      org.CreatedAt,
		Limit:          limit,
	})
	if err != nil {
		report.Err = fmt.Errorf("select pending for %s: %w", org.Name, err)
		return report
	}

	report.Pending = len(pending)
	if opts.DryRun || len(pending) == 0 {
		return report
	}

	var (
		mu        sync.Mutex
		succeeded int
		failed    int
	)

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(o.workers)

	for _, article := range pending {
		article := article
		group.Go(func() error {
			ok := o.classifyOne(groupCtx, article, org)
			mu.Lock()
			if ok {
				succeeded++
			} else {
				failed++
			}
			mu.Unlock()
			return nil
		})
	}

	// Workers never return errors; the only way out early is cancellation.
	_ = group.Wait()

	report.Succeeded = succeeded
	report.Failed = failed
	return report
}

// classifyOne runs the per-article loop: classify with a bounded timeout,
// then upsert the outcome. A classifier failure is recorded as a retryable
// FAILED row; a persistence failure only counts against this article.
func (o *Orchestrator) classifyOne(ctx context.Context, article domain.Article, org domain.Organization) bool {
	callCtx, cancel := context.WithTimeout(ctx, o.callTimeout)
	defer cancel()

	result, err := o.classifier.Classify(callCtx, article, org)
	if err != nil {
		o.debug("classification failed",
			"article", article.ID, "organization", org.Name, "error", err)
		if upsertErr := o.ledger.Upsert(ctx, failedRecord(article.ID, org.ID)); upsertErr != nil {
			o.warn("record failure", "article", article.ID, "organization", org.Name, "error", upsertErr)
		}
		return false
	}

	if result.Truncated {
		o.warn("classifier response truncated", "article", article.ID, "organization", org.Name)
	}

	now := time.Now().UTC()
	rec := domain.ClassificationRecord{
		ArticleID:      article.ID,
		OrganizationID: org.ID,
		Category:       result.Category,
		Explanation:    result.Explanation,
		Advice:         result.Advice,
		Reasoning:      result.Reasoning,
		Status:         domain.StatusClassified,
		ClassifiedAt:   &now,
	}
	if err := o.ledger.Upsert(ctx, rec); err != nil {
		o.warn("persist classification", "article", article.ID, "organization", org.Name, "error", err)
		return false
	}

	o.debug("article classified",
		"article", article.ID, "organization", org.Name, "category", result.Category)
	return true
}

func failedRecord(articleID, organizationID int64) domain.ClassificationRecord {
	return domain.ClassificationRecord{
		ArticleID:      articleID,
		OrganizationID: organizationID,
		Status:         domain.StatusFailed,
	}
}

func (o *Orchestrator) debug(msg string, args ...any) {
	if o.logger != nil {
		o.logger.Debug(msg, args...)
	}
}

func (o *Orchestrator) warn(msg string, args ...any) {
	if o.logger != nil {
		o.logger.Warn(msg, args...)
	}
}
