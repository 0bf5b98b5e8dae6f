package submitter

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/seekworks/autoapply/internal/common"
	"github.com/seekworks/autoapply/internal/interfaces"
	"github.com/seekworks/autoapply/internal/models"
)

// fakeElement records clicks and swaps the page set on success
type fakeElement struct {
	driver *fakeDriver
	fail   bool
}

func (e *fakeElement) Click(ctx context.Context) error {
	if e.fail {
		return fmt.Errorf("click rejected")
	}
	e.driver.clicks++
	if e.driver.pagesAfterClick != nil {
		e.driver.pages = e.driver.pagesAfterClick
	}
	return nil
}
func (e *fakeElement) ClickJS(ctx context.Context) error                     { return e.Click(ctx) }
func (e *fakeElement) ClickKeyboard(ctx context.Context) error               { return e.Click(ctx) }
func (e *fakeElement) ScrollIntoView(ctx context.Context) error              { return nil }
func (e *fakeElement) Text(ctx context.Context) (string, error)              { return "", nil }
func (e *fakeElement) Attr(ctx context.Context, name string) (string, error) { return "", nil }
func (e *fakeElement) Clickable(ctx context.Context) (bool, error)           { return !e.fail, nil }

// fakeDriver serves one HTML page per URL and counts restarts
type fakeDriver struct {
	pages       map[string]string
	current     string
	clicks      int
	restarts    int
	clickFails  bool
	failProbe   bool
	failRestart bool
	// pagesAfterRestart swaps the page set when the browser restarts,
	// simulating a recovered session
	pagesAfterRestart map[string]string
	// pagesAfterClick swaps the page set after a successful click,
	// simulating the post-submission page state
	pagesAfterClick map[string]string
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{pages: make(map[string]string)}
}

func (d *fakeDriver) Navigate(ctx context.Context, url string) error {
	if _, ok := d.pages[url]; !ok {
		return fmt.Errorf("no page at %s", url)
	}
	d.current = url
	return nil
}
func (d *fakeDriver) PageSource(ctx context.Context) (string, error) { return d.pages[d.current], nil }
func (d *fakeDriver) Title(ctx context.Context) (string, error)      { return "职位页", nil }
func (d *fakeDriver) FindAll(ctx context.Context, selector string) ([]interfaces.BrowserElement, error) {
	if selector == "a.btn-startchat" {
		return []interfaces.BrowserElement{&fakeElement{driver: d, fail: d.clickFails}}, nil
	}
	return nil, nil
}
func (d *fakeDriver) ExecuteScript(ctx context.Context, js string, result interface{}) error {
	if d.failProbe {
		return fmt.Errorf("session gone")
	}
	if p, ok := result.(*string); ok {
		*p = "complete"
	}
	return nil
}
func (d *fakeDriver) Refresh(ctx context.Context) error { return nil }
func (d *fakeDriver) Quit() error                       { return nil }
func (d *fakeDriver) Restart(ctx context.Context) error {
	d.restarts++
	if d.failRestart {
		return fmt.Errorf("browser would not come back")
	}
	if d.pagesAfterRestart != nil {
		d.pages = d.pagesAfterRestart
	}
	return nil
}

// memStorage implements StorageManager with at-most-once completion
type memStorage struct {
	jobs    map[string]*models.Job
	matches map[string]*models.ResumeMatch
	logs    []*models.SubmissionLog
	deleted map[string]string // job ID -> delete reason
}

func newMemStorage() *memStorage {
	return &memStorage{
		jobs:    make(map[string]*models.Job),
		matches: make(map[string]*models.ResumeMatch),
		deleted: make(map[string]string),
	}
}

func (m *memStorage) JobStorage() interfaces.JobStorage               { return m }
func (m *memStorage) MatchStorage() interfaces.MatchStorage           { return m }
func (m *memStorage) SubmissionStorage() interfaces.SubmissionStorage { return m }
func (m *memStorage) DocumentStorage() interfaces.DocumentStorage     { return nil }
func (m *memStorage) Close() error                                    { return nil }

func (m *memStorage) CompleteSubmission(ctx context.Context, log *models.SubmissionLog) error {
	match, ok := m.matches[log.MatchID]
	if !ok {
		return interfaces.ErrNotFound
	}
	if match.Processed {
		return interfaces.ErrAlreadyProcessed
	}
	match.Processed = true
	match.Outcome = string(log.Status)
	m.logs = append(m.logs, log)
	return nil
}

func (m *memStorage) InsertJobIfNew(ctx context.Context, raw *models.RawJob) (string, bool, error) {
	return "", false, nil
}
func (m *memStorage) GetJob(ctx context.Context, jobID string) (*models.Job, error) {
	if job, ok := m.jobs[jobID]; ok {
		return job, nil
	}
	return nil, interfaces.ErrNotFound
}
func (m *memStorage) GetJobByFingerprint(ctx context.Context, fp string) (*models.Job, error) {
	return nil, interfaces.ErrNotFound
}
func (m *memStorage) ListUnprocessedJobs(ctx context.Context, limit int) ([]*models.Job, error) {
	return nil, nil
}
func (m *memStorage) ListProcessedJobs(ctx context.Context, limit int) ([]*models.Job, error) {
	return nil, nil
}
func (m *memStorage) MarkJobProcessed(ctx context.Context, jobID string, fields *models.StructuredFields, docRefs []string) error {
	return nil
}
func (m *memStorage) SoftDeleteJob(ctx context.Context, jobID, reason string) error {
	m.deleted[jobID] = reason
	return nil
}
func (m *memStorage) CountJobs(ctx context.Context) (int, error) { return len(m.jobs), nil }

func (m *memStorage) SaveMatch(ctx context.Context, match *models.ResumeMatch) error { return nil }
func (m *memStorage) GetMatch(ctx context.Context, matchID string) (*models.ResumeMatch, error) {
	return nil, interfaces.ErrNotFound
}
func (m *memStorage) GetMatchByJobID(ctx context.Context, jobID string) (*models.ResumeMatch, error) {
	return nil, interfaces.ErrNotFound
}
func (m *memStorage) ListUnprocessedMatches(ctx context.Context, limit int, minSalaryScore float64) ([]*models.ResumeMatch, error) {
	return nil, nil
}
func (m *memStorage) MarkMatchProcessed(ctx context.Context, matchID string, outcome models.SubmissionStatus) error {
	return nil
}
func (m *memStorage) DeleteMatchesForJob(ctx context.Context, jobID string) error { return nil }
func (m *memStorage) CountMatches(ctx context.Context) (int, error)               { return len(m.matches), nil }

func (m *memStorage) AppendSubmissionLog(ctx context.Context, log *models.SubmissionLog) error {
	m.logs = append(m.logs, log)
	return nil
}
func (m *memStorage) GetLogsForMatch(ctx context.Context, matchID string) ([]*models.SubmissionLog, error) {
	return nil, nil
}
func (m *memStorage) CountSubmissionsToday(ctx context.Context) (int, error) { return 0, nil }
func (m *memStorage) ListTerminalLogs(ctx context.Context) ([]*models.SubmissionLog, error) {
	return nil, nil
}

func (m *memStorage) addMatch(id, jobID, url string) *models.ResumeMatch {
	m.jobs[jobID] = &models.Job{ID: jobID, Title: "Go工程师", URL: url, CreatedAt: time.Now()}
	match := &models.ResumeMatch{ID: id, JobID: jobID, ShouldSubmit: true, Decision: models.DecisionSubmit}
	m.matches[id] = match
	return match
}

func newTestSubmitter(driver *fakeDriver, storage *memStorage, dryRun bool) *Service {
	cfg := common.NewDefaultConfig()
	cfg.Submitter.MinDelay = 0
	cfg.Submitter.MaxDelay = 0
	cfg.Submitter.BatchRestEvery = 0
	cfg.Submitter.DryRun = dryRun
	site := common.DefaultZhipinSite()

	svc := NewSubmitterService(driver, storage, &site, cfg, arbor.NewLogger()).(*Service)
	svc.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	return svc
}

const (
	pendingPage = `<html><body><div>职位详情</div><a class="btn-startchat">立即沟通</a></body></html>`
	appliedPage = `<html><body><div>职位详情</div><a class="btn-startchat">已申请</a></body></html>`
)

func TestRunSubmitsPendingMatch(t *testing.T) {
	driver := newFakeDriver()
	storage := newMemStorage()
	match := storage.addMatch("m1", "job_1", "https://test.local/job/1")
	driver.pages["https://test.local/job/1"] = pendingPage
	driver.pagesAfterClick = map[string]string{"https://test.local/job/1": appliedPage}

	report, submission, err := newTestSubmitter(driver, storage, false).Run(context.Background(), []*models.ResumeMatch{match})
	require.NoError(t, err)

	assert.Equal(t, 1, driver.clicks)
	assert.Equal(t, 1, submission.Successful)
	assert.Equal(t, 1, report.Succeeded)
	assert.True(t, match.Processed)
	assert.Equal(t, string(models.StatusSuccess), match.Outcome)
	require.Len(t, storage.logs, 1)
	assert.Equal(t, models.StatusSuccess, storage.logs[0].Status)
	assert.InDelta(t, 1.0, submission.SuccessRate, 1e-9)
}

func TestRunSuspendedJobSoftDeletes(t *testing.T) {
	driver := newFakeDriver()
	storage := newMemStorage()
	match := storage.addMatch("m1", "job_1", "https://test.local/job/1")
	driver.pages["https://test.local/job/1"] = `<html><body>很抱歉，你选择的职位目前已经暂停招聘</body></html>`

	_, submission, err := newTestSubmitter(driver, storage, false).Run(context.Background(), []*models.ResumeMatch{match})
	require.NoError(t, err)

	assert.Equal(t, 1, submission.Suspended)
	assert.True(t, match.Processed)
	assert.Contains(t, storage.deleted, "job_1")
	assert.Equal(t, 0, driver.clicks)
}

func TestRunAlreadyAppliedCompletesWithoutClick(t *testing.T) {
	driver := newFakeDriver()
	storage := newMemStorage()
	match := storage.addMatch("m1", "job_1", "https://test.local/job/1")
	driver.pages["https://test.local/job/1"] = `<html><body><a class="btn-startchat">已申请</a></body></html>`

	_, submission, err := newTestSubmitter(driver, storage, false).Run(context.Background(), []*models.ResumeMatch{match})
	require.NoError(t, err)

	assert.Equal(t, 1, submission.AlreadyApplied)
	assert.Equal(t, 0, driver.clicks)
	assert.True(t, match.Processed)
	assert.Equal(t, string(models.StatusAlreadyApplied), match.Outcome)
}

func TestRunClickFailureIsTerminal(t *testing.T) {
	driver := newFakeDriver()
	driver.clickFails = true
	storage := newMemStorage()
	match := storage.addMatch("m1", "job_1", "https://test.local/job/1")
	driver.pages["https://test.local/job/1"] = pendingPage

	_, submission, err := newTestSubmitter(driver, storage, false).Run(context.Background(), []*models.ResumeMatch{match})
	require.NoError(t, err)

	assert.Equal(t, 1, submission.Failed)
	assert.True(t, match.Processed)
	assert.Equal(t, string(models.StatusClickFailed), match.Outcome)
}

func TestRunClickWithoutPageChangeIsClickFailed(t *testing.T) {
	driver := newFakeDriver()
	storage := newMemStorage()
	match := storage.addMatch("m1", "job_1", "https://test.local/job/1")
	driver.pages["https://test.local/job/1"] = pendingPage
	// No pagesAfterClick: the button still reads the same after the click

	_, submission, err := newTestSubmitter(driver, storage, false).Run(context.Background(), []*models.ResumeMatch{match})
	require.NoError(t, err)

	assert.Equal(t, 1, driver.clicks)
	assert.Equal(t, 0, submission.Successful)
	assert.Equal(t, 1, submission.Failed)
	assert.True(t, match.Processed)
	assert.Equal(t, string(models.StatusClickFailed), match.Outcome)
}

func TestRunKeepAliveRecoveryFailureAbortsBatch(t *testing.T) {
	driver := newFakeDriver()
	driver.failProbe = true
	driver.failRestart = true
	storage := newMemStorage()
	m1 := storage.addMatch("m1", "job_1", "https://test.local/job/1")
	m2 := storage.addMatch("m2", "job_2", "https://test.local/job/2")
	driver.pages["https://test.local/job/1"] = pendingPage
	driver.pages["https://test.local/job/2"] = pendingPage
	driver.pagesAfterClick = map[string]string{
		"https://test.local/job/1": appliedPage,
		"https://test.local/job/2": appliedPage,
	}

	cfg := common.NewDefaultConfig()
	cfg.Submitter.MinDelay = 0
	cfg.Submitter.MaxDelay = 0
	cfg.Submitter.BatchRestEvery = 1
	cfg.Submitter.BatchRestMin = 2 * time.Second
	cfg.Submitter.BatchRestMax = 2 * time.Second
	cfg.Submitter.KeepAliveInterval = time.Second
	site := common.DefaultZhipinSite()
	svc := NewSubmitterService(driver, storage, &site, cfg, arbor.NewLogger()).(*Service)
	svc.sleep = func(ctx context.Context, d time.Duration) error { return nil }

	report, submission, err := svc.Run(context.Background(), []*models.ResumeMatch{m1, m2})
	require.Error(t, err)

	// The first match completed before the rest; the dead session aborts
	// the batch without touching the next match
	assert.Equal(t, 1, driver.restarts)
	assert.Equal(t, 1, submission.Successful)
	assert.True(t, m1.Processed)
	assert.False(t, m2.Processed, "in-flight match stays open after failed recovery")
	assert.Empty(t, m2.Outcome)
	assert.NotEmpty(t, report.Error)
	require.Len(t, storage.logs, 1)
	assert.Equal(t, models.StatusSuccess, storage.logs[0].Status)
}

func TestRunDryRunNeverClicksOrDeletes(t *testing.T) {
	driver := newFakeDriver()
	storage := newMemStorage()
	m1 := storage.addMatch("m1", "job_1", "https://test.local/job/1")
	m2 := storage.addMatch("m2", "job_2", "https://test.local/job/2")
	driver.pages["https://test.local/job/1"] = pendingPage
	driver.pages["https://test.local/job/2"] = `<html><body>职位已关闭</body></html>`

	_, submission, err := newTestSubmitter(driver, storage, true).Run(context.Background(), []*models.ResumeMatch{m1, m2})
	require.NoError(t, err)

	assert.Equal(t, 2, submission.DryRun)
	assert.Equal(t, 0, driver.clicks)
	assert.Empty(t, storage.deleted)
	assert.True(t, m1.Processed)
	assert.Equal(t, string(models.StatusDryRun), m1.Outcome)
}

func TestRunLoginWallAbortsAfterFailedRecovery(t *testing.T) {
	driver := newFakeDriver()
	storage := newMemStorage()
	match := storage.addMatch("m1", "job_1", "https://test.local/job/1")
	storage.addMatch("m2", "job_2", "https://test.local/job/2")
	loginPage := `<html><body>请先登录</body></html>`
	driver.pages["https://test.local/job/1"] = loginPage
	driver.pages["https://test.local/job/2"] = pendingPage

	matches := []*models.ResumeMatch{match, storage.matches["m2"]}
	_, _, err := newTestSubmitter(driver, storage, false).Run(context.Background(), matches)
	require.Error(t, err)

	assert.Equal(t, 1, driver.restarts)
	assert.False(t, match.Processed, "login wall must not close the match")
	assert.False(t, storage.matches["m2"].Processed, "batch must abort before the next match")

	// A non-terminal log documents the wall
	require.NotEmpty(t, storage.logs)
	assert.Equal(t, models.StatusLoginRequired, storage.logs[len(storage.logs)-1].Status)
}

func TestRunLoginWallRecoversAndContinues(t *testing.T) {
	driver := newFakeDriver()
	storage := newMemStorage()
	match := storage.addMatch("m1", "job_1", "https://test.local/job/1")
	driver.pages["https://test.local/job/1"] = `<html><body>请先登录</body></html>`
	driver.pagesAfterRestart = map[string]string{"https://test.local/job/1": pendingPage}
	driver.pagesAfterClick = map[string]string{"https://test.local/job/1": appliedPage}

	_, submission, err := newTestSubmitter(driver, storage, false).Run(context.Background(), []*models.ResumeMatch{match})
	require.NoError(t, err)

	assert.Equal(t, 1, driver.restarts)
	assert.Equal(t, 1, submission.Successful)
	assert.True(t, match.Processed)
}

func TestRunAlreadyProcessedMatchIsSkipped(t *testing.T) {
	driver := newFakeDriver()
	storage := newMemStorage()
	match := storage.addMatch("m1", "job_1", "https://test.local/job/1")
	match.Processed = true
	driver.pages["https://test.local/job/1"] = pendingPage

	report, submission, err := newTestSubmitter(driver, storage, false).Run(context.Background(), []*models.ResumeMatch{match})
	require.NoError(t, err)

	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 0, submission.Successful)
	assert.Empty(t, storage.logs, "no duplicate log for a processed match")
}

func TestRunMissingJobRowIsPageError(t *testing.T) {
	driver := newFakeDriver()
	storage := newMemStorage()
	match := &models.ResumeMatch{ID: "m1", JobID: "job_missing", ShouldSubmit: true}
	storage.matches["m1"] = match

	_, submission, err := newTestSubmitter(driver, storage, false).Run(context.Background(), []*models.ResumeMatch{match})
	require.NoError(t, err)

	assert.Equal(t, 1, submission.Failed)
	assert.True(t, match.Processed)
	assert.Equal(t, string(models.StatusPageError), match.Outcome)
}
