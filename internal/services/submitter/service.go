package submitter

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"

	"github.com/seekworks/autoapply/internal/common"
	"github.com/seekworks/autoapply/internal/interfaces"
	"github.com/seekworks/autoapply/internal/models"
	"github.com/seekworks/autoapply/internal/services/browser"
)

// Service performs submissions one match at a time over the shared browser
// session. Pacing, batch rest and keep-alive probes keep the session
// looking human; every outcome lands in the append-only submission log
// with at-most-once semantics enforced by the storage layer.
type Service struct {
	driver  interfaces.BrowserDriver
	storage interfaces.StorageManager
	site    *common.SiteConfig
	config  *common.SubmitterConfig
	logger  arbor.ILogger

	rng *rand.Rand
	// sleep is replaceable in tests
	sleep func(ctx context.Context, d time.Duration) error
	// recovered tracks the single session-recovery attempt per run
	recovered bool
	// checkpointEvery controls periodic progress snapshots in the log
	checkpointEvery int
}

// NewSubmitterService creates the submission stage service
func NewSubmitterService(driver interfaces.BrowserDriver, storage interfaces.StorageManager, site *common.SiteConfig, cfg *common.Config, logger arbor.ILogger) interfaces.SubmitterService {
	return &Service{
		driver:  driver,
		storage: storage,
		site:    site,
		config:  &cfg.Submitter,
		logger:  logger,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
		sleep:   sleepCtx,

		checkpointEvery: cfg.Pipeline.CheckpointInterval,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Run submits the batch in the given order. The batch aborts only on
// cancellation or an unrecoverable login wall; every other failure closes
// out its match and moves on.
func (s *Service) Run(ctx context.Context, matches []*models.ResumeMatch) (*models.StageReport, *models.SubmissionReport, error) {
	started := time.Now()
	report := &models.StageReport{Stage: models.StageSubmit}
	submission := &models.SubmissionReport{}
	s.recovered = false

	if s.config.DryRun {
		s.logger.Warn().Int("matches", len(matches)).Msg("Submitter running in dry-run mode")
	}

	for i, match := range matches {
		if err := ctx.Err(); err != nil {
			report.Duration = time.Since(started)
			return report, submission, err
		}

		report.Attempted++
		if err := s.submitOne(ctx, match, report, submission); err != nil {
			report.Duration = time.Since(started)
			report.Error = err.Error()
			s.finishReport(report, submission)
			return report, submission, err
		}

		if s.checkpointEvery > 0 && report.Attempted%s.checkpointEvery == 0 {
			s.logger.Info().
				Int("attempted", report.Attempted).
				Int("remaining", len(matches)-i-1).
				Int("successful", submission.Successful).
				Int("failed", submission.Failed).
				Msg("Submission checkpoint")
		}

		if i == len(matches)-1 {
			break
		}
		if s.config.BatchRestEvery > 0 && (i+1)%s.config.BatchRestEvery == 0 {
			if err := s.batchRest(ctx); err != nil {
				// Remaining matches stay unprocessed and retry next run
				report.Duration = time.Since(started)
				report.Error = err.Error()
				s.finishReport(report, submission)
				return report, submission, err
			}
		} else if err := s.pace(ctx); err != nil {
			report.Duration = time.Since(started)
			s.finishReport(report, submission)
			return report, submission, err
		}
	}

	report.Duration = time.Since(started)
	s.finishReport(report, submission)

	s.logger.Info().
		Int("attempted", report.Attempted).
		Int("successful", submission.Successful).
		Int("failed", submission.Failed).
		Int("already_applied", submission.AlreadyApplied).
		Float64("success_rate", submission.SuccessRate).
		Msg("Submission batch complete")
	return report, submission, nil
}

func (s *Service) finishReport(report *models.StageReport, submission *models.SubmissionReport) {
	terminal := submission.Successful + submission.Failed + submission.AlreadyApplied +
		submission.Suspended + submission.Expired + submission.ButtonNotFound + submission.DryRun
	if terminal > 0 {
		submission.SuccessRate = float64(submission.Successful) / float64(terminal)
	}
	report.Succeeded = submission.Successful + submission.DryRun
	report.Failed = report.Attempted - report.Succeeded - report.Skipped
	if report.Failed < 0 {
		report.Failed = 0
	}
}

// submitOne handles a single match. A returned error aborts the batch;
// per-match failures are absorbed into the reports.
func (s *Service) submitOne(ctx context.Context, match *models.ResumeMatch, report *models.StageReport, submission *models.SubmissionReport) error {
	if match.Processed {
		report.Skipped++
		return nil
	}

	job, err := s.storage.JobStorage().GetJob(ctx, match.JobID)
	if err != nil || job.URL == "" {
		reason := "job row missing"
		if err == nil {
			reason = "job has no detail URL"
		}
		s.completeWith(ctx, match, &Detection{Status: models.StatusPageError, Reason: reason}, report, submission)
		return nil
	}

	detection := s.loadAndDetect(ctx, job)

	if detection.Status == models.StatusLoginRequired {
		recoveredDetection, err := s.recoverSession(ctx, job)
		if err != nil {
			// Login wall with recovery spent: nothing in this batch can
			// proceed without a human login
			s.appendNonTerminal(ctx, match, job, detection)
			return fmt.Errorf("login required and session recovery failed: %w", err)
		}
		detection = recoveredDetection
		if detection.Status == models.StatusLoginRequired {
			s.appendNonTerminal(ctx, match, job, detection)
			return errors.New("login required after session recovery, batch aborted")
		}
	}

	if s.config.DryRun {
		s.logger.Info().
			Str("job_id", job.ID).
			Str("title", job.Title).
			Str("detected", string(detection.Status)).
			Msg("Dry run: submission skipped")
		dry := &Detection{
			Status:      models.StatusDryRun,
			Reason:      "dry run, detected " + string(detection.Status),
			PageTitle:   detection.PageTitle,
			PageSnippet: detection.PageSnippet,
			ButtonText:  detection.ButtonText,
			ButtonClass: detection.ButtonClass,
			DetectionMs: detection.DetectionMs,
		}
		s.completeWith(ctx, match, dry, report, submission)
		return nil
	}

	switch detection.Status {
	case models.StatusJobSuspended:
		s.completeWith(ctx, match, detection, report, submission)
		if err := s.storage.JobStorage().SoftDeleteJob(ctx, job.ID, "suspended: "+detection.Reason); err != nil {
			s.logger.Warn().Str("job_id", job.ID).Err(err).Msg("Failed to soft-delete suspended job")
		}

	case models.StatusJobExpired, models.StatusAlreadyApplied,
		models.StatusButtonNotFound, models.StatusPageError:
		s.completeWith(ctx, match, detection, report, submission)

	case models.StatusPending:
		s.clickAndComplete(ctx, match, job, detection, report, submission)

	default:
		detection.Status = models.StatusPageError
		detection.Reason = "unexpected detection state"
		s.completeWith(ctx, match, detection, report, submission)
	}
	return nil
}

// loadAndDetect navigates to the job page and classifies it in one pass
func (s *Service) loadAndDetect(ctx context.Context, job *models.Job) *Detection {
	if err := s.driver.Navigate(ctx, job.URL); err != nil {
		return &Detection{Status: models.StatusPageError, Reason: fmt.Sprintf("navigation failed: %v", err)}
	}

	html, err := s.driver.PageSource(ctx)
	if err != nil {
		return &Detection{Status: models.StatusPageError, Reason: fmt.Sprintf("page read failed: %v", err)}
	}
	title, _ := s.driver.Title(ctx)

	return DetectPage(html, title, s.site)
}

// clickAndComplete clicks the detected apply button and records the result
func (s *Service) clickAndComplete(ctx context.Context, match *models.ResumeMatch, job *models.Job, detection *Detection, report *models.StageReport, submission *models.SubmissionReport) {
	elements, err := s.driver.FindAll(ctx, detection.ButtonSelector)
	if err != nil || len(elements) == 0 {
		detection.Status = models.StatusClickFailed
		detection.Reason = "apply button vanished before click"
		s.completeWith(ctx, match, detection, report, submission)
		return
	}

	if err := browser.ClickWithRetry(ctx, elements[0], s.logger); err != nil {
		detection.Status = models.StatusClickFailed
		detection.Reason = fmt.Sprintf("click failed: %v", err)
		s.completeWith(ctx, match, detection, report, submission)
		return
	}

	if !s.clickVerified(ctx, detection) {
		detection.Status = models.StatusClickFailed
		detection.Reason = "no button state change or page transition after click"
		s.completeWith(ctx, match, detection, report, submission)
		return
	}

	detection.Status = models.StatusSuccess
	s.completeWith(ctx, match, detection, report, submission)
	s.logger.Info().
		Str("job_id", job.ID).
		Str("title", job.Title).
		Str("company", job.Company).
		Msg("Submission successful")
}

// clickVerified re-reads the page and reports whether the click took
// effect: the button vanished (page transition), its text changed, or it
// now carries a disabled class.
func (s *Service) clickVerified(ctx context.Context, before *Detection) bool {
	html, err := s.driver.PageSource(ctx)
	if err != nil {
		return false
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return false
	}

	button := doc.Find(before.ButtonSelector)
	if button.Length() == 0 {
		return true
	}
	if text := strings.TrimSpace(button.First().Text()); text != before.ButtonText {
		return true
	}
	class, _ := button.First().Attr("class")
	return class != before.ButtonClass && containsAny(class, s.site.DisabledIndicators) != ""
}

// completeWith writes the terminal log and flips the match's processed
// flag in one transaction. A second completion of the same match is
// counted as skipped, never duplicated.
func (s *Service) completeWith(ctx context.Context, match *models.ResumeMatch, detection *Detection, report *models.StageReport, submission *models.SubmissionReport) {
	log := s.buildLog(match, detection)

	if err := s.storage.CompleteSubmission(ctx, log); err != nil {
		if errors.Is(err, interfaces.ErrAlreadyProcessed) {
			report.Skipped++
			s.logger.Debug().Str("match_id", match.ID).Msg("Match already processed, skipping")
			return
		}
		s.logger.Error().Str("match_id", match.ID).Err(err).Msg("Failed to record submission outcome")
		submission.Failed++
		return
	}

	switch detection.Status {
	case models.StatusSuccess:
		submission.Successful++
	case models.StatusAlreadyApplied:
		submission.AlreadyApplied++
	case models.StatusJobSuspended:
		submission.Suspended++
	case models.StatusJobExpired:
		submission.Expired++
	case models.StatusButtonNotFound:
		submission.ButtonNotFound++
	case models.StatusDryRun:
		submission.DryRun++
	default:
		submission.Failed++
	}
}

// appendNonTerminal records a login wall without closing the match, so the
// next run retries it
func (s *Service) appendNonTerminal(ctx context.Context, match *models.ResumeMatch, job *models.Job, detection *Detection) {
	log := s.buildLog(match, detection)
	if err := s.storage.SubmissionStorage().AppendSubmissionLog(ctx, log); err != nil {
		s.logger.Warn().Str("match_id", match.ID).Err(err).Msg("Failed to append login-required log")
	}
}

func (s *Service) buildLog(match *models.ResumeMatch, detection *Detection) *models.SubmissionLog {
	return &models.SubmissionLog{
		ID:          common.NewSubmissionLogID(),
		MatchID:     match.ID,
		JobID:       match.JobID,
		Status:      detection.Status,
		Reason:      detection.Reason,
		PageTitle:   detection.PageTitle,
		PageSnippet: detection.PageSnippet,
		ButtonText:  detection.ButtonText,
		ButtonClass: detection.ButtonClass,
		DetectionMs: detection.DetectionMs,
		CreatedAt:   time.Now(),
	}
}

// recoverSession restarts the browser once per run and re-detects the page
func (s *Service) recoverSession(ctx context.Context, job *models.Job) (*Detection, error) {
	if s.recovered {
		return nil, errors.New("session recovery already attempted this run")
	}
	s.recovered = true

	s.logger.Warn().Msg("Login wall detected, attempting session recovery")

	recoverCtx := ctx
	if s.config.ReloginTimeout > 0 {
		var cancel context.CancelFunc
		recoverCtx, cancel = context.WithTimeout(ctx, s.config.ReloginTimeout)
		defer cancel()
	}

	if err := s.driver.Restart(recoverCtx); err != nil {
		return nil, fmt.Errorf("browser restart failed: %w", err)
	}
	return s.loadAndDetect(recoverCtx, job), nil
}

// pace applies the randomized inter-submission delay
func (s *Service) pace(ctx context.Context) error {
	return s.sleep(ctx, s.randomDelay(s.config.MinDelay, s.config.MaxDelay))
}

// batchRest pauses between sub-batches while keep-alive probes hold the
// session open. A failed probe restarts the browser immediately rather
// than discovering a dead session on the next submission.
func (s *Service) batchRest(ctx context.Context) error {
	rest := s.randomDelay(s.config.BatchRestMin, s.config.BatchRestMax)
	s.logger.Info().Dur("rest", rest).Msg("Batch rest started")

	interval := s.config.KeepAliveInterval
	if interval <= 0 || interval >= rest {
		return s.sleep(ctx, rest)
	}

	deadline := time.Now().Add(rest)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil
		}
		step := interval
		if remaining < step {
			step = remaining
		}
		if err := s.sleep(ctx, step); err != nil {
			return err
		}
		if err := s.keepAliveProbe(ctx); err != nil {
			return err
		}
	}
}

// keepAliveProbe checks the session is alive. A failed probe triggers a
// browser restart; when the restart also fails the error surfaces so the
// batch terminates instead of closing matches against a dead session.
func (s *Service) keepAliveProbe(ctx context.Context) error {
	var state string
	if err := s.driver.ExecuteScript(ctx, "document.readyState", &state); err != nil {
		s.logger.Warn().Err(err).Msg("Keep-alive probe failed, restarting browser")
		if restartErr := s.driver.Restart(ctx); restartErr != nil {
			return fmt.Errorf("session recovery after failed keep-alive probe: %w", restartErr)
		}
		return nil
	}
	s.logger.Debug().Str("ready_state", state).Msg("Keep-alive probe ok")
	return nil
}

func (s *Service) randomDelay(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(s.rng.Int63n(int64(max-min)))
}
