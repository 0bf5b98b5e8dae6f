package submitter

import (
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/seekworks/autoapply/internal/common"
	"github.com/seekworks/autoapply/internal/models"
)

const snippetRunes = 200

// Detection is the one-shot classification of a job detail page. Page
// state is read exactly once per attempt; every field the submission log
// needs is captured here so no second read can disagree with the first.
type Detection struct {
	Status models.SubmissionStatus
	Reason string

	PageTitle   string
	PageSnippet string

	// Button fields are set when an apply button was located
	ButtonSelector string
	ButtonText     string
	ButtonClass    string

	DetectionMs int64
}

// DetectPage classifies the page snapshot in strict priority order:
// suspension beats expiry beats login beats already-applied beats
// button-not-found. A live enabled apply button yields StatusPending.
func DetectPage(html, title string, site *common.SiteConfig) *Detection {
	started := time.Now()
	detection := &Detection{PageTitle: title}
	defer func() {
		detection.DetectionMs = time.Since(started).Milliseconds()
	}()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		detection.Status = models.StatusPageError
		detection.Reason = "page source could not be parsed"
		return detection
	}

	bodyText := doc.Find("body").Text()
	detection.PageSnippet = snippet(bodyText)

	if phrase := containsAny(bodyText, site.SuspendedPhrases); phrase != "" {
		detection.Status = models.StatusJobSuspended
		detection.Reason = phrase
		return detection
	}
	if phrase := containsAny(bodyText, site.ExpiredPhrases); phrase != "" {
		detection.Status = models.StatusJobExpired
		detection.Reason = phrase
		return detection
	}
	if phrase := containsAny(bodyText, site.LoginPhrases); phrase != "" {
		detection.Status = models.StatusLoginRequired
		detection.Reason = phrase
		return detection
	}

	button, selector := findApplyButton(doc, site.ApplySelectors)
	if button == nil {
		detection.Status = models.StatusButtonNotFound
		detection.Reason = "no apply button matched any selector"
		return detection
	}

	detection.ButtonSelector = selector
	detection.ButtonText = strings.TrimSpace(button.Text())
	detection.ButtonClass, _ = button.Attr("class")

	if phrase := containsAny(detection.ButtonText, site.AppliedIndicators); phrase != "" {
		detection.Status = models.StatusAlreadyApplied
		detection.Reason = "button reads: " + detection.ButtonText
		return detection
	}
	// A disabled button class means the submission already happened; the
	// site greys the button out instead of relabelling it
	if phrase := containsAny(detection.ButtonClass, site.DisabledIndicators); phrase != "" {
		detection.Status = models.StatusAlreadyApplied
		detection.Reason = "apply button is disabled: " + detection.ButtonClass
		return detection
	}
	if len(site.ApplyVerbs) > 0 && containsAny(strings.ToLower(detection.ButtonText), site.ApplyVerbs) == "" {
		detection.Status = models.StatusButtonNotFound
		detection.Reason = "button text lacks an apply verb: " + detection.ButtonText
		return detection
	}

	detection.Status = models.StatusPending
	return detection
}

func findApplyButton(doc *goquery.Document, selectors []string) (*goquery.Selection, string) {
	for _, selector := range selectors {
		if sel := doc.Find(selector); sel.Length() > 0 {
			return sel.First(), selector
		}
	}
	return nil, ""
}

func containsAny(text string, phrases []string) string {
	for _, phrase := range phrases {
		if phrase != "" && strings.Contains(text, phrase) {
			return phrase
		}
	}
	return ""
}

func snippet(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) > snippetRunes {
		runes = runes[:snippetRunes]
	}
	return string(runes)
}
