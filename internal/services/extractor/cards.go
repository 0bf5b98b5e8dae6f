package extractor

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/seekworks/autoapply/internal/common"
	"github.com/seekworks/autoapply/internal/models"
)

// selectCards tries the configured card selectors in order and returns the
// matches of the first selector that yields at least one element, together
// with the selector that won. The winning selector is reused for the
// element query against the live page.
func selectCards(doc *goquery.Document, selectors []string) (*goquery.Selection, string) {
	for _, selector := range selectors {
		sel := doc.Find(selector)
		if sel.Length() > 0 {
			return sel, selector
		}
	}
	return nil, ""
}

// cardFields reads the listing-card fields visible without opening the
// detail page. Missing sub-elements produce empty fields, not errors; the
// caller decides whether the card is usable.
func cardFields(card *goquery.Selection, site *common.SiteConfig) models.RawJob {
	raw := models.RawJob{
		Site:      site.Name,
		Title:     firstText(card, site.TitleSelector),
		Company:   firstText(card, site.CompanySelector),
		SalaryRaw: firstText(card, site.SalarySelector),
		Location:  firstText(card, site.LocationSelector),
	}

	if site.JobIDAttr != "" {
		if v, ok := card.Attr(site.JobIDAttr); ok && v != "" {
			raw.JobID = v
		} else if v, ok := card.Find("[" + site.JobIDAttr + "]").First().Attr(site.JobIDAttr); ok {
			raw.JobID = v
		}
	}

	return raw
}

// firstText returns the trimmed text of the first sub-element matching the
// selector, or the card's own text when the selector is empty
func firstText(card *goquery.Selection, selector string) string {
	if selector == "" {
		return ""
	}
	return strings.TrimSpace(card.Find(selector).First().Text())
}

// detailURL resolves the card's anchor href against the search page URL.
// Returns "" when the card carries no usable link; the caller falls back to
// clicking the card element.
func detailURL(card *goquery.Selection, pageURL string) string {
	href, ok := card.Attr("href")
	if !ok || href == "" {
		href, ok = card.Find("a[href]").First().Attr("href")
		if !ok || href == "" {
			return ""
		}
	}
	if strings.HasPrefix(href, "javascript:") || href == "#" {
		return ""
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}

// descriptionFrom extracts the detail-page description text using the
// site's description selector
func descriptionFrom(html string, selector string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("failed to parse detail page: %w", err)
	}

	var parts []string
	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		if text := strings.TrimSpace(s.Text()); text != "" {
			parts = append(parts, text)
		}
	})
	return strings.Join(parts, "\n"), nil
}
