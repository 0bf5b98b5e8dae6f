package extractor

import (
	"context"
	"fmt"
	"math/rand"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/seekworks/autoapply/internal/common"
	"github.com/seekworks/autoapply/internal/interfaces"
	"github.com/seekworks/autoapply/internal/models"
	"github.com/seekworks/autoapply/internal/services/browser"
)

// Service walks search result pages keyword by keyword, reads listing
// cards, skips known fingerprints without opening their detail pages, and
// inserts new job rows. Keywords run sequentially: the browser session is
// single-tenant and pacing applies across the whole run.
type Service struct {
	driver interfaces.BrowserDriver
	jobs   interfaces.JobStorage
	sites  *common.Config
	config *common.ExtractorConfig
	logger arbor.ILogger

	limiter *rate.Limiter
	rng     *rand.Rand
	failed  []models.FailedJob
	// checkpointEvery controls periodic progress snapshots in the log
	checkpointEvery int

	// sleep is replaceable in tests
	sleep func(ctx context.Context, d time.Duration) error
}

// NewExtractorService creates the extraction stage service
func NewExtractorService(driver interfaces.BrowserDriver, jobs interfaces.JobStorage, cfg *common.Config, logger arbor.ILogger) interfaces.ExtractorService {
	rps := cfg.Extractor.RequestsPerSecond
	if rps <= 0 {
		rps = 0.5
	}
	return &Service{
		driver:  driver,
		jobs:    jobs,
		sites:   cfg,
		config:  &cfg.Extractor,
		logger:  logger,
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
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

// FailedJobs returns the diagnostic records from the last Run
func (s *Service) FailedJobs() []models.FailedJob {
	return s.failed
}

// Run executes extraction for every keyword against the named site.
// A keyword that fails to load its first page is recorded and skipped; the
// run fails only when no keyword produced a usable search page.
func (s *Service) Run(ctx context.Context, siteName string, keywords []string) (*models.StageReport, error) {
	site, err := s.sites.Site(siteName)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	report := &models.StageReport{Stage: models.StageExtract}
	s.failed = nil

	navigated := 0
	for _, keyword := range keywords {
		if err := ctx.Err(); err != nil {
			report.Duration = time.Since(started)
			return report, err
		}

		s.logger.Info().
			Str("site", site.Name).
			Str("keyword", keyword).
			Msg("Extracting keyword")

		if err := s.runKeyword(ctx, site, keyword, report); err != nil {
			if ctx.Err() != nil {
				report.Duration = time.Since(started)
				return report, err
			}
			s.logger.Warn().
				Str("keyword", keyword).
				Err(err).
				Msg("Keyword extraction failed, continuing with next keyword")
			continue
		}
		navigated++
	}

	report.Duration = time.Since(started)

	if navigated == 0 && len(keywords) > 0 {
		report.Error = "no keyword produced a usable search page"
		return report, fmt.Errorf("extraction failed: %s", report.Error)
	}

	s.logger.Info().
		Int("attempted", report.Attempted).
		Int("succeeded", report.Succeeded).
		Int("skipped", report.Skipped).
		Int("failed", report.Failed).
		Msg("Extraction complete")
	return report, nil
}

func (s *Service) runKeyword(ctx context.Context, site *common.SiteConfig, keyword string, report *models.StageReport) error {
	searchURL := fmt.Sprintf(site.SearchURLTemplate, url.QueryEscape(keyword))
	if err := s.driver.Navigate(ctx, searchURL); err != nil {
		return fmt.Errorf("failed to open search page: %w", err)
	}

	s.applySalaryFilter(ctx, site)

	for page := 1; page <= s.config.MaxPages; page++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		pageURL := s.pageURL(site, keyword, page)
		found, err := s.runPage(ctx, site, keyword, page, pageURL, report)
		if err != nil {
			return err
		}
		if !found {
			s.logger.Debug().
				Str("keyword", keyword).
				Int("page", page).
				Msg("No listing cards found, keyword exhausted")
			return nil
		}

		if page < s.config.MaxPages {
			if !s.advancePage(ctx, site, keyword, page+1) {
				return nil
			}
		}
	}
	return nil
}

// runPage processes all cards currently on the page. Returns found=false
// when no card selector matches, which ends the keyword.
func (s *Service) runPage(ctx context.Context, site *common.SiteConfig, keyword string, page int, pageURL string, report *models.StageReport) (bool, error) {
	html, err := s.driver.PageSource(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to read search page: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return false, fmt.Errorf("failed to parse search page: %w", err)
	}

	cards, winner := selectCards(doc, site.CardSelectors)
	if cards == nil {
		return false, nil
	}

	s.logger.Debug().
		Int("page", page).
		Int("cards", cards.Length()).
		Str("selector", winner).
		Msg("Listing cards discovered")

	failures := 0
	var cardErr error
	cards.EachWithBreak(func(i int, card *goquery.Selection) bool {
		if err := ctx.Err(); err != nil {
			cardErr = err
			return false
		}

		if done := s.runCard(ctx, site, keyword, page, pageURL, winner, i, card, report); !done {
			failures++
			if failures >= s.config.MaxCardFailures {
				s.logger.Warn().
					Int("page", page).
					Int("failures", failures).
					Msg("Card failure bound reached, abandoning page")
				return false
			}
		}
		return true
	})

	return true, cardErr
}

// runCard handles one listing card end to end. Returns false on failure;
// dedup skips count as handled.
func (s *Service) runCard(ctx context.Context, site *common.SiteConfig, keyword string, page int, pageURL, cardSelector string, index int, card *goquery.Selection, report *models.StageReport) bool {
	raw := cardFields(card, site)
	if raw.Title == "" && raw.Company == "" {
		s.recordFailure(site.Name, keyword, page, fmt.Sprintf("card %d has no readable title or company", index))
		report.Failed++
		return false
	}

	report.Attempted++
	if s.checkpointEvery > 0 && report.Attempted%s.checkpointEvery == 0 {
		s.logger.Info().
			Str("keyword", keyword).
			Int("page", page).
			Int("attempted", report.Attempted).
			Int("succeeded", report.Succeeded).
			Int("skipped", report.Skipped).
			Msg("Extraction checkpoint")
	}

	fingerprint := common.Fingerprint(raw.Title, raw.Company, raw.SalaryRaw, raw.Location)
	if existing, err := s.jobs.GetJobByFingerprint(ctx, fingerprint); err == nil && existing != nil {
		report.Skipped++
		s.logger.Debug().
			Str("title", raw.Title).
			Str("company", raw.Company).
			Msg("Known fingerprint, detail page skipped")
		return true
	}

	description, jobURL, err := s.openDetail(ctx, site, pageURL, cardSelector, index, card)
	if err != nil {
		s.recordFailure(site.Name, keyword, page, fmt.Sprintf("card %d detail extraction: %v", index, err))
		report.Failed++
		return false
	}
	raw.Description = description
	raw.URL = jobURL

	_, wasNew, err := s.jobs.InsertJobIfNew(ctx, &raw)
	if err != nil {
		s.recordFailure(site.Name, keyword, page, fmt.Sprintf("card %d insert: %v", index, err))
		report.Failed++
		return false
	}
	if wasNew {
		report.Succeeded++
		s.logger.Info().
			Str("title", raw.Title).
			Str("company", raw.Company).
			Str("salary", raw.SalaryRaw).
			Msg("New job extracted")
	} else {
		report.Skipped++
	}

	if err := s.pace(ctx); err != nil {
		return true // Cancellation surfaces at the next boundary check
	}
	return true
}

// openDetail fetches the detail page description. Cards with a resolvable
// href are navigated directly; otherwise the card element is clicked and
// the session returns via history.
func (s *Service) openDetail(ctx context.Context, site *common.SiteConfig, pageURL, cardSelector string, index int, card *goquery.Selection) (description, jobURL string, err error) {
	if target := detailURL(card, pageURL); target != "" {
		if err := s.driver.Navigate(ctx, target); err != nil {
			return "", "", fmt.Errorf("failed to open detail page: %w", err)
		}
		description, err = s.readDescription(ctx, site)
		if navErr := s.driver.Navigate(ctx, pageURL); navErr != nil && err == nil {
			err = fmt.Errorf("failed to return to search page: %w", navErr)
		}
		return description, target, err
	}

	elements, err := s.driver.FindAll(ctx, cardSelector)
	if err != nil {
		return "", "", err
	}
	if index >= len(elements) {
		return "", "", fmt.Errorf("card %d no longer present on page", index)
	}
	if err := browser.ClickWithRetry(ctx, elements[index], s.logger); err != nil {
		return "", "", fmt.Errorf("card click failed: %w", err)
	}

	var currentURL string
	if scriptErr := s.driver.ExecuteScript(ctx, "window.location.href", &currentURL); scriptErr != nil {
		currentURL = pageURL
	}

	description, err = s.readDescription(ctx, site)
	if navErr := s.driver.Navigate(ctx, pageURL); navErr != nil && err == nil {
		err = fmt.Errorf("failed to return to search page: %w", navErr)
	}
	return description, currentURL, err
}

func (s *Service) readDescription(ctx context.Context, site *common.SiteConfig) (string, error) {
	html, err := s.driver.PageSource(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to read detail page: %w", err)
	}
	return descriptionFrom(html, site.DescriptionSelector)
}

// applySalaryFilter tries to activate the site's salary filter. Best
// effort: the matcher's salary dimension still gates unfiltered results.
func (s *Service) applySalaryFilter(ctx context.Context, site *common.SiteConfig) {
	if site.SalaryFilter == "" || s.config.SalaryFilterClicks <= 0 {
		return
	}

	for attempt := 1; attempt <= s.config.SalaryFilterClicks; attempt++ {
		elements, err := s.driver.FindAll(ctx, site.SalaryFilter)
		if err != nil || len(elements) == 0 {
			continue
		}
		if err := browser.ClickWithRetry(ctx, elements[0], s.logger); err == nil {
			s.logger.Debug().Int("attempt", attempt).Msg("Salary filter applied")
			return
		}
	}
	s.logger.Warn().Msg("Salary filter could not be applied, continuing unfiltered")
}

// advancePage moves to the next result page. Click first; on failure run
// recovery: refresh, retry, then direct page-URL navigation. Returns false
// when no further page is reachable.
func (s *Service) advancePage(ctx context.Context, site *common.SiteConfig, keyword string, nextPage int) bool {
	if s.clickNextPage(ctx, site) {
		_ = s.pace(ctx)
		return true
	}

	if err := s.driver.Refresh(ctx); err == nil && s.clickNextPage(ctx, site) {
		if !s.landedOnPage(ctx, site, nextPage) {
			return false
		}
		_ = s.pace(ctx)
		return true
	}

	if site.PageURLTemplate == "" {
		return false
	}
	target := fmt.Sprintf(site.PageURLTemplate, url.QueryEscape(keyword), nextPage)
	if err := s.driver.Navigate(ctx, target); err != nil {
		s.logger.Warn().
			Int("page", nextPage).
			Err(err).
			Msg("Page recovery navigation failed, keyword ends early")
		return false
	}
	if !s.landedOnPage(ctx, site, nextPage) {
		return false
	}
	_ = s.pace(ctx)
	return true
}

// landedOnPage validates a recovery step against the result page's
// active-page indicator. Pages without a readable numeric indicator pass;
// an indicator naming a different page fails the recovery and ends the
// keyword.
func (s *Service) landedOnPage(ctx context.Context, site *common.SiteConfig, want int) bool {
	if site.ActivePageSelector == "" {
		return true
	}

	html, err := s.driver.PageSource(ctx)
	if err != nil {
		return false
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return false
	}

	indicator := strings.TrimSpace(doc.Find(site.ActivePageSelector).First().Text())
	got, err := strconv.Atoi(indicator)
	if err != nil {
		s.logger.Debug().
			Int("page", want).
			Str("indicator", indicator).
			Msg("No numeric active-page indicator on result page")
		return true
	}
	if got != want {
		s.logger.Warn().
			Int("expected", want).
			Int("actual", got).
			Msg("Pagination recovery landed on the wrong page, keyword ends early")
		return false
	}
	return true
}

func (s *Service) clickNextPage(ctx context.Context, site *common.SiteConfig) bool {
	if site.NextPageSelector == "" {
		return false
	}
	elements, err := s.driver.FindAll(ctx, site.NextPageSelector)
	if err != nil || len(elements) == 0 {
		return false
	}
	return browser.ClickWithRetry(ctx, elements[0], s.logger) == nil
}

// pageURL returns the canonical URL of a result page, used as the return
// target after a detail visit
func (s *Service) pageURL(site *common.SiteConfig, keyword string, page int) string {
	if page <= 1 || site.PageURLTemplate == "" {
		return fmt.Sprintf(site.SearchURLTemplate, url.QueryEscape(keyword))
	}
	return fmt.Sprintf(site.PageURLTemplate, url.QueryEscape(keyword), page)
}

// pace enforces the rate-limiter floor plus the randomized human-like delay
func (s *Service) pace(ctx context.Context) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}

	min, max := s.config.MinDelay, s.config.MaxDelay
	if max <= min {
		return s.sleep(ctx, min)
	}
	jitter := time.Duration(s.rng.Int63n(int64(max - min)))
	return s.sleep(ctx, min+jitter)
}

func (s *Service) recordFailure(site, keyword string, page int, reason string) {
	s.failed = append(s.failed, models.FailedJob{
		ID:        "failed_" + uuid.New().String(),
		Site:      site,
		Keyword:   keyword,
		Page:      page,
		Reason:    reason,
		CreatedAt: time.Now(),
	})
	s.logger.Warn().
		Str("keyword", keyword).
		Int("page", page).
		Str("reason", reason).
		Msg("Card extraction failed")
}
