package extractor

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

// fakeElement navigates the fake driver to a target URL when clicked
type fakeElement struct {
	driver *fakeDriver
	target string
}

func (e *fakeElement) Click(ctx context.Context) error {
	if e.target == "" {
		return fmt.Errorf("element click failed")
	}
	e.driver.current = e.target
	return nil
}
func (e *fakeElement) ClickJS(ctx context.Context) error       { return e.Click(ctx) }
func (e *fakeElement) ClickKeyboard(ctx context.Context) error { return e.Click(ctx) }
func (e *fakeElement) ScrollIntoView(ctx context.Context) error {
	return nil
}
func (e *fakeElement) Text(ctx context.Context) (string, error)              { return "", nil }
func (e *fakeElement) Attr(ctx context.Context, name string) (string, error) { return "", nil }
func (e *fakeElement) Clickable(ctx context.Context) (bool, error)           { return true, nil }

// fakeDriver serves canned HTML keyed by URL
type fakeDriver struct {
	pages    map[string]string
	elements map[string][]interfaces.BrowserElement
	current  string

	navigations []string
	refreshed   int
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{
		pages:    make(map[string]string),
		elements: make(map[string][]interfaces.BrowserElement),
	}
}

func (d *fakeDriver) Navigate(ctx context.Context, url string) error {
	if _, ok := d.pages[url]; !ok {
		return fmt.Errorf("no page served at %s", url)
	}
	d.current = url
	d.navigations = append(d.navigations, url)
	return nil
}

func (d *fakeDriver) PageSource(ctx context.Context) (string, error) {
	return d.pages[d.current], nil
}

func (d *fakeDriver) Title(ctx context.Context) (string, error) { return "test", nil }

func (d *fakeDriver) FindAll(ctx context.Context, selector string) ([]interfaces.BrowserElement, error) {
	return d.elements[selector], nil
}

func (d *fakeDriver) ExecuteScript(ctx context.Context, js string, result interface{}) error {
	if p, ok := result.(*string); ok && js == "window.location.href" {
		*p = d.current
	}
	return nil
}

func (d *fakeDriver) Refresh(ctx context.Context) error {
	d.refreshed++
	return nil
}
func (d *fakeDriver) Quit() error                       { return nil }
func (d *fakeDriver) Restart(ctx context.Context) error { return nil }

// memJobStore is an in-memory JobStorage for extractor tests
type memJobStore struct {
	jobs   map[string]*models.Job
	nextID int
}

func newMemJobStore() *memJobStore {
	return &memJobStore{jobs: make(map[string]*models.Job)}
}

func (m *memJobStore) InsertJobIfNew(ctx context.Context, raw *models.RawJob) (string, bool, error) {
	fp := common.Fingerprint(raw.Title, raw.Company, raw.SalaryRaw, raw.Location)
	for id, job := range m.jobs {
		if job.Fingerprint == fp {
			return id, false, nil
		}
	}
	m.nextID++
	id := fmt.Sprintf("job_%d", m.nextID)
	m.jobs[id] = &models.Job{
		ID:          id,
		Fingerprint: fp,
		Title:       raw.Title,
		Company:     raw.Company,
		SalaryRaw:   raw.SalaryRaw,
		Location:    raw.Location,
		URL:         raw.URL,
		Site:        raw.Site,
		Description: raw.Description,
		CreatedAt:   time.Now(),
	}
	return id, true, nil
}

func (m *memJobStore) GetJob(ctx context.Context, jobID string) (*models.Job, error) {
	if job, ok := m.jobs[jobID]; ok {
		return job, nil
	}
	return nil, interfaces.ErrNotFound
}

func (m *memJobStore) GetJobByFingerprint(ctx context.Context, fp string) (*models.Job, error) {
	for _, job := range m.jobs {
		if job.Fingerprint == fp {
			return job, nil
		}
	}
	return nil, interfaces.ErrNotFound
}

func (m *memJobStore) ListUnprocessedJobs(ctx context.Context, limit int) ([]*models.Job, error) {
	return nil, nil
}
func (m *memJobStore) ListProcessedJobs(ctx context.Context, limit int) ([]*models.Job, error) {
	return nil, nil
}
func (m *memJobStore) MarkJobProcessed(ctx context.Context, jobID string, fields *models.StructuredFields, docRefs []string) error {
	return nil
}
func (m *memJobStore) SoftDeleteJob(ctx context.Context, jobID string, reason string) error {
	return nil
}
func (m *memJobStore) CountJobs(ctx context.Context) (int, error) { return len(m.jobs), nil }

const searchURL = "https://test.local/search?q=golang"
const searchURLPage2 = "https://test.local/search?q=golang&page=2"

func cardHTML(title, company, salary, location, href string) string {
	return fmt.Sprintf(`<li class="job-card-wrapper">
		<a class="job-card-left" href=%q>
			<span class="job-name">%s</span>
			<span class="salary">%s</span>
			<span class="job-area">%s</span>
		</a>
		<h3 class="company-name">%s</h3>
	</li>`, href, title, salary, location, company)
}

func listPage(cards ...string) string {
	body := ""
	for _, c := range cards {
		body += c
	}
	return "<html><body><ul class=\"job-list-box\">" + body + "</ul></body></html>"
}

func detailPage(description string) string {
	return "<html><body><div class=\"job-sec-text\">" + description + "</div></body></html>"
}

func newTestService(t *testing.T, driver *fakeDriver, store *memJobStore) *Service {
	t.Helper()

	cfg := common.NewDefaultConfig()
	cfg.Extractor.MinDelay = 0
	cfg.Extractor.MaxDelay = 0
	cfg.Extractor.MaxPages = 1
	cfg.Extractor.SalaryFilterClicks = 1
	cfg.Extractor.RequestsPerSecond = 10000
	cfg.Sites[0].SearchURLTemplate = "https://test.local/search?q=%s"
	cfg.Sites[0].PageURLTemplate = "https://test.local/search?q=%s&page=%d"

	svc := NewExtractorService(driver, store, cfg, arbor.NewLogger()).(*Service)
	svc.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	return svc
}

func TestRunExtractsNewJobs(t *testing.T) {
	driver := newFakeDriver()
	store := newMemJobStore()

	driver.pages[searchURL] = listPage(
		cardHTML("Go后端工程师", "Acme", "25-40K", "北京", "https://test.local/job/1"),
		cardHTML("Golang开发", "Globex", "20-35K·14薪", "上海", "https://test.local/job/2"),
	)
	driver.pages["https://test.local/job/1"] = detailPage("岗位职责：开发后端服务")
	driver.pages["https://test.local/job/2"] = detailPage("任职要求：3年以上经验")

	svc := newTestService(t, driver, store)
	report, err := svc.Run(context.Background(), "zhipin", []string{"golang"})
	require.NoError(t, err)

	assert.Equal(t, 2, report.Attempted)
	assert.Equal(t, 2, report.Succeeded)
	assert.Equal(t, 0, report.Failed)
	require.Len(t, store.jobs, 2)
	for _, job := range store.jobs {
		assert.NotEmpty(t, job.Description)
		assert.NotEmpty(t, job.URL)
		assert.Equal(t, "zhipin", job.Site)
	}
}

func TestRunSkipsKnownFingerprintsWithoutDetailVisit(t *testing.T) {
	driver := newFakeDriver()
	store := newMemJobStore()

	_, wasNew, err := store.InsertJobIfNew(context.Background(), &models.RawJob{
		Title: "Go后端工程师", Company: "Acme", SalaryRaw: "25-40K", Location: "北京",
	})
	require.NoError(t, err)
	require.True(t, wasNew)

	driver.pages[searchURL] = listPage(
		cardHTML("Go后端工程师", "Acme", "25-40K", "北京", "https://test.local/job/1"),
	)
	driver.pages["https://test.local/job/1"] = detailPage("should never be fetched")

	svc := newTestService(t, driver, store)
	report, err := svc.Run(context.Background(), "zhipin", []string{"golang"})
	require.NoError(t, err)

	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 0, report.Succeeded)
	assert.NotContains(t, driver.navigations, "https://test.local/job/1")
	assert.Len(t, store.jobs, 1)
}

func TestRunRecordsFailedCards(t *testing.T) {
	driver := newFakeDriver()
	store := newMemJobStore()

	// One unreadable card, one good card
	driver.pages[searchURL] = listPage(
		`<li class="job-card-wrapper"><span class="other">junk</span></li>`,
		cardHTML("Go工程师", "Acme", "20-30K", "深圳", "https://test.local/job/1"),
	)
	driver.pages["https://test.local/job/1"] = detailPage("职责")

	svc := newTestService(t, driver, store)
	report, err := svc.Run(context.Background(), "zhipin", []string{"golang"})
	require.NoError(t, err)

	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 1, report.Succeeded)

	failed := svc.FailedJobs()
	require.Len(t, failed, 1)
	assert.Equal(t, "zhipin", failed[0].Site)
	assert.Equal(t, "golang", failed[0].Keyword)
	assert.Equal(t, 1, failed[0].Page)
	assert.NotEmpty(t, failed[0].Reason)
}

func TestRunEndsKeywordWhenNoCards(t *testing.T) {
	driver := newFakeDriver()
	store := newMemJobStore()
	driver.pages[searchURL] = "<html><body><div class=\"empty\">没有找到相关职位</div></body></html>"

	svc := newTestService(t, driver, store)
	report, err := svc.Run(context.Background(), "zhipin", []string{"golang"})
	require.NoError(t, err)
	assert.Equal(t, 0, report.Attempted)
	assert.Empty(t, store.jobs)
}

func TestRunFailsWhenNoKeywordNavigates(t *testing.T) {
	driver := newFakeDriver() // No pages served at all
	store := newMemJobStore()

	svc := newTestService(t, driver, store)
	report, err := svc.Run(context.Background(), "zhipin", []string{"golang", "backend"})
	require.Error(t, err)
	assert.NotEmpty(t, report.Error)
}

func TestRunPaginationRecoversViaDirectURL(t *testing.T) {
	driver := newFakeDriver()
	store := newMemJobStore()

	driver.pages[searchURL] = listPage(
		cardHTML("Go工程师", "Acme", "20-30K", "北京", "https://test.local/job/1"),
	)
	driver.pages[searchURLPage2] = listPage(
		cardHTML("后端架构师", "Globex", "40-60K", "杭州", "https://test.local/job/2"),
	)
	driver.pages["https://test.local/job/1"] = detailPage("a")
	driver.pages["https://test.local/job/2"] = detailPage("b")

	svc := newTestService(t, driver, store)
	svc.config.MaxPages = 2

	// No next-page element is served: the click fails, refresh+retry fails,
	// and recovery falls through to the direct page URL
	report, err := svc.Run(context.Background(), "zhipin", []string{"golang"})
	require.NoError(t, err)

	assert.Equal(t, 2, report.Succeeded)
	assert.GreaterOrEqual(t, driver.refreshed, 1)
	assert.Contains(t, driver.navigations, searchURLPage2)
}

func pagedListPage(activePage string, cards ...string) string {
	body := ""
	for _, c := range cards {
		body += c
	}
	return "<html><body><ul class=\"job-list-box\">" + body + "</ul>" +
		"<div class=\"options-pages\"><a class=\"selected\">" + activePage + "</a></div></body></html>"
}

func TestRunPaginationRecoveryWrongPageEndsKeyword(t *testing.T) {
	driver := newFakeDriver()
	store := newMemJobStore()

	driver.pages[searchURL] = listPage(
		cardHTML("Go工程师", "Acme", "20-30K", "北京", "https://test.local/job/1"),
	)
	// The site bounces the direct page-2 URL back to page 1
	driver.pages[searchURLPage2] = pagedListPage("1",
		cardHTML("后端架构师", "Globex", "40-60K", "杭州", "https://test.local/job/2"),
	)
	driver.pages["https://test.local/job/1"] = detailPage("a")
	driver.pages["https://test.local/job/2"] = detailPage("b")

	svc := newTestService(t, driver, store)
	svc.config.MaxPages = 2

	report, err := svc.Run(context.Background(), "zhipin", []string{"golang"})
	require.NoError(t, err)

	assert.Equal(t, 1, report.Succeeded)
	assert.Contains(t, driver.navigations, searchURLPage2)
	assert.NotContains(t, driver.navigations, "https://test.local/job/2")
}

func TestRunPaginationRecoveryAcceptsMatchingIndicator(t *testing.T) {
	driver := newFakeDriver()
	store := newMemJobStore()

	driver.pages[searchURL] = listPage(
		cardHTML("Go工程师", "Acme", "20-30K", "北京", "https://test.local/job/1"),
	)
	driver.pages[searchURLPage2] = pagedListPage("2",
		cardHTML("后端架构师", "Globex", "40-60K", "杭州", "https://test.local/job/2"),
	)
	driver.pages["https://test.local/job/1"] = detailPage("a")
	driver.pages["https://test.local/job/2"] = detailPage("b")

	svc := newTestService(t, driver, store)
	svc.config.MaxPages = 2

	report, err := svc.Run(context.Background(), "zhipin", []string{"golang"})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Succeeded)
}

func TestRunPaginationClicksNextPage(t *testing.T) {
	driver := newFakeDriver()
	store := newMemJobStore()

	driver.pages[searchURL] = listPage(
		cardHTML("Go工程师", "Acme", "20-30K", "北京", "https://test.local/job/1"),
	)
	driver.pages[searchURLPage2] = listPage(
		cardHTML("后端架构师", "Globex", "40-60K", "杭州", "https://test.local/job/2"),
	)
	driver.pages["https://test.local/job/1"] = detailPage("a")
	driver.pages["https://test.local/job/2"] = detailPage("b")

	driver.elements["a.ui-icon-arrow-right"] = []interfaces.BrowserElement{
		&fakeElement{driver: driver, target: searchURLPage2},
	}

	svc := newTestService(t, driver, store)
	svc.config.MaxPages = 2

	report, err := svc.Run(context.Background(), "zhipin", []string{"golang"})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Succeeded)
	assert.Equal(t, 0, driver.refreshed)
}

func TestRunHonorsCancellation(t *testing.T) {
	driver := newFakeDriver()
	store := newMemJobStore()
	driver.pages[searchURL] = listPage(
		cardHTML("Go工程师", "Acme", "20-30K", "北京", "https://test.local/job/1"),
	)
	driver.pages["https://test.local/job/1"] = detailPage("a")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	svc := newTestService(t, driver, store)
	_, err := svc.Run(ctx, "zhipin", []string{"golang"})
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, store.jobs)
}
