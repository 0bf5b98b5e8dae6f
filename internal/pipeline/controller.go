package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/seekworks/autoapply/internal/common"
	"github.com/seekworks/autoapply/internal/interfaces"
	"github.com/seekworks/autoapply/internal/models"
)

// Exit codes carried on the execution report
const (
	ExitOK           = 0
	ExitStageFailure = 1
	ExitFatal        = 2
)

// Deps bundles everything the controller orchestrates
type Deps struct {
	Storage   interfaces.StorageManager
	Extractor interfaces.ExtractorService
	Processor interfaces.ProcessorService
	Matcher   interfaces.MatcherService
	Engine    interfaces.DecisionEngine
	Submitter interfaces.SubmitterService
	Config    *common.Config
	Logger    arbor.ILogger
}

// Controller sequences the five pipeline stages. Stages communicate only
// through storage, so any stage can fail and the next run picks up where
// the data left off.
type Controller struct {
	deps   Deps
	logger arbor.ILogger
}

// NewController creates the pipeline controller
func NewController(deps Deps) *Controller {
	return &Controller{deps: deps, logger: deps.Logger}
}

// RunFullPipeline executes extract, process, match, decide and submit in
// order. An extraction failure aborts the run; later stages degrade to a
// nonzero exit code but the pipeline runs to completion and always returns
// a report.
func (c *Controller) RunFullPipeline(ctx context.Context, site string, keywords []string, resume *models.ResumeProfile) *models.ExecutionReport {
	report := &models.ExecutionReport{StartedAt: time.Now(), ExitCode: ExitOK}
	defer func() {
		report.FinishedAt = time.Now()
		report.TotalDuration = report.FinishedAt.Sub(report.StartedAt)
	}()

	if repaired, err := c.RepairIntegrity(ctx); err != nil {
		c.logger.Warn().Err(err).Msg("Startup integrity repair failed")
	} else if repaired > 0 {
		c.logger.Warn().Int("repaired", repaired).Msg("Repaired matches left open by a previous crash")
	}

	// Extract
	if fatal := c.runExtract(ctx, site, keywords, report); fatal {
		report.ExitCode = ExitFatal
		return report
	}

	// Process
	c.runStageFunc(ctx, report, func(stageCtx context.Context) (*models.StageReport, error) {
		return c.deps.Processor.Run(stageCtx)
	})

	// Match
	c.runStageFunc(ctx, report, func(stageCtx context.Context) (*models.StageReport, error) {
		return c.deps.Matcher.Run(stageCtx, resume)
	})

	// Decide
	matches, decideOK := c.runDecide(ctx, report)

	// Submit
	if decideOK && len(matches) > 0 {
		c.runSubmit(ctx, matches, report)
	} else if decideOK {
		c.logger.Info().Msg("No submit-ready matches, submission stage skipped")
	}

	if report.FirstError != "" && report.ExitCode == ExitOK {
		report.ExitCode = ExitStageFailure
	}
	return report
}

// RunStage executes a single named stage against the current storage
// state. Decide selects but does not submit; submit picks up whatever
// decide left ready.
func (c *Controller) RunStage(ctx context.Context, stage models.StageName, site string, keywords []string, resume *models.ResumeProfile) *models.ExecutionReport {
	report := &models.ExecutionReport{StartedAt: time.Now(), ExitCode: ExitOK}
	defer func() {
		report.FinishedAt = time.Now()
		report.TotalDuration = report.FinishedAt.Sub(report.StartedAt)
	}()

	switch stage {
	case models.StageExtract:
		if fatal := c.runExtract(ctx, site, keywords, report); fatal {
			report.ExitCode = ExitFatal
		}
	case models.StageProcess:
		c.runStageFunc(ctx, report, func(stageCtx context.Context) (*models.StageReport, error) {
			return c.deps.Processor.Run(stageCtx)
		})
	case models.StageMatch:
		c.runStageFunc(ctx, report, func(stageCtx context.Context) (*models.StageReport, error) {
			return c.deps.Matcher.Run(stageCtx, resume)
		})
	case models.StageDecide:
		c.runDecide(ctx, report)
	case models.StageSubmit:
		matches, ok := c.runDecide(ctx, report)
		if ok && len(matches) > 0 {
			c.runSubmit(ctx, matches, report)
		}
	default:
		c.noteError(report, fmt.Errorf("unknown stage: %s", stage))
		report.ExitCode = ExitFatal
	}

	if report.FirstError != "" && report.ExitCode == ExitOK {
		report.ExitCode = ExitStageFailure
	}
	return report
}

func (c *Controller) runExtract(ctx context.Context, site string, keywords []string, report *models.ExecutionReport) (fatal bool) {
	stageCtx, cancel := c.stageContext(ctx)
	defer cancel()

	stage, err := c.deps.Extractor.Run(stageCtx, site, keywords)
	c.appendStage(report, stage, models.StageExtract, err)
	if err != nil {
		// Nothing downstream can produce new work without extraction
		c.noteError(report, fmt.Errorf("extract stage failed: %w", err))
		return true
	}
	return false
}

func (c *Controller) runStageFunc(ctx context.Context, report *models.ExecutionReport, run func(context.Context) (*models.StageReport, error)) {
	if ctx.Err() != nil {
		c.noteError(report, ctx.Err())
		report.ExitCode = ExitFatal
		return
	}

	stageCtx, cancel := c.stageContext(ctx)
	defer cancel()

	stage, err := run(stageCtx)
	c.appendStage(report, stage, "", err)
	if err != nil {
		c.noteError(report, err)
		report.ExitCode = ExitStageFailure
	}
}

func (c *Controller) runDecide(ctx context.Context, report *models.ExecutionReport) ([]*models.ResumeMatch, bool) {
	if ctx.Err() != nil {
		c.noteError(report, ctx.Err())
		report.ExitCode = ExitFatal
		return nil, false
	}

	stageCtx, cancel := c.stageContext(ctx)
	defer cancel()

	started := time.Now()
	matches, err := c.deps.Engine.SelectSubmitReady(stageCtx, 0)
	stats := c.deps.Engine.GateStats()

	stage := models.StageReport{
		Stage:     models.StageDecide,
		Attempted: stats.Evaluated,
		Succeeded: len(matches),
		Skipped:   stats.Rejected,
		Duration:  time.Since(started),
	}
	if err != nil {
		stage.Error = err.Error()
		report.Stages = append(report.Stages, stage)
		c.noteError(report, fmt.Errorf("decide stage failed: %w", err))
		report.ExitCode = ExitStageFailure
		return nil, false
	}
	report.Stages = append(report.Stages, stage)

	c.logger.Info().
		Int("selected", len(matches)).
		Float64("rejection_rate", stats.RejectionRate).
		Msg("Decision stage complete")
	return matches, true
}

func (c *Controller) runSubmit(ctx context.Context, matches []*models.ResumeMatch, report *models.ExecutionReport) {
	if ctx.Err() != nil {
		c.noteError(report, ctx.Err())
		report.ExitCode = ExitFatal
		return
	}

	stageCtx, cancel := c.stageContext(ctx)
	defer cancel()

	stage, submission, err := c.deps.Submitter.Run(stageCtx, matches)
	c.appendStage(report, stage, models.StageSubmit, err)
	if submission != nil {
		report.Submission = *submission
	}
	if err != nil {
		// An aborted batch still reports the submissions it completed
		c.noteError(report, fmt.Errorf("submit stage failed: %w", err))
		report.ExitCode = ExitStageFailure
	}
}

func (c *Controller) appendStage(report *models.ExecutionReport, stage *models.StageReport, name models.StageName, err error) {
	if stage == nil {
		stage = &models.StageReport{Stage: name}
		if err != nil {
			stage.Error = err.Error()
		}
	} else if err != nil && stage.Error == "" {
		stage.Error = err.Error()
	}
	report.Stages = append(report.Stages, *stage)

	c.logger.Info().
		Str("stage", string(stage.Stage)).
		Int("attempted", stage.Attempted).
		Int("succeeded", stage.Succeeded).
		Int("failed", stage.Failed).
		Int("skipped", stage.Skipped).
		Dur("duration", stage.Duration).
		Msg("Stage finished")
}

func (c *Controller) noteError(report *models.ExecutionReport, err error) {
	if report.FirstError == "" && err != nil {
		report.FirstError = err.Error()
	}
}

func (c *Controller) stageContext(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := c.deps.Config.Pipeline.StageTimeout
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

// HealthCheck verifies storage connectivity and reports row counts
func (c *Controller) HealthCheck(ctx context.Context) error {
	jobs, err := c.deps.Storage.JobStorage().CountJobs(ctx)
	if err != nil {
		return fmt.Errorf("job storage unavailable: %w", err)
	}
	matches, err := c.deps.Storage.MatchStorage().CountMatches(ctx)
	if err != nil {
		return fmt.Errorf("match storage unavailable: %w", err)
	}
	docs, err := c.deps.Storage.DocumentStorage().CountDocuments(ctx)
	if err != nil {
		return fmt.Errorf("document storage unavailable: %w", err)
	}

	c.logger.Info().
		Int("jobs", jobs).
		Int("matches", matches).
		Int("documents", docs).
		Msg("Health check passed")
	return nil
}
