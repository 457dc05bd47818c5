package usecase

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// OrganizationReport collects one organization's counts for a single run.
type OrganizationReport struct {
	OrganizationID int64
	Name           string
	Pending        int
	Succeeded      int
	Failed         int
	// Err is set when the organization could not be processed at all
	// (configuration error, selector failure). Counts stay zero in that case.
	Err error
}

// RunSummary is the sole user-visible surface of a classification run.
type RunSummary struct {
	RunID         uuid.UUID
	DryRun        bool
	StartedAt     time.Time
	FinishedAt    time.Time
	Organizations []OrganizationReport

	TotalPending        int
	TotalSucceeded      int
	TotalFailed         int
	FailedOrganizations int
}

func newRunSummary(dryRun bool) *RunSummary {
	return &RunSummary{
		RunID:     uuid.New(),
		DryRun:    dryRun,
		StartedAt: time.Now().UTC(),
	}
}

func (s *RunSummary) add(report OrganizationReport) {
	s.Organizations = append(s.Organizations, report)
	s.TotalPending += report.Pending
	s.TotalSucceeded += report.Succeeded
	s.TotalFailed += report.Failed
	if report.Err != nil {
		s.FailedOrganizations++
	}
}

func (s *RunSummary) finish() {
	s.FinishedAt = time.Now().UTC()
}

// Log emits the per-organization lines and the grand total.
func (s *RunSummary) Log(logger *slog.Logger) {
	if logger == nil {
		return
	}

	for _, report := range s.Organizations {
		if report.Err != nil {
			logger.Warn("organization skipped",
				"run_id", s.RunID,
				"organization", report.Name,
				"error", report.Err)
			continue
		}
		logger.Info("organization processed",
			"run_id", s.RunID,
			"organization", report.Name,
			"pending", report.Pending,
			"succeeded", report.Succeeded,
			"failed", report.Failed)
	}

	logger.Info("classification run complete",
		"run_id", s.RunID,
		"dry_run", s.DryRun,
		"organizations", len(s.Organizations),
		"organizations_failed", s.FailedOrganizations,
		"pending", s.TotalPending,
		"succeeded", s.TotalSucceeded,
		"failed", s.TotalFailed,
		"duration", s.FinishedAt.Sub(s.StartedAt))
}
