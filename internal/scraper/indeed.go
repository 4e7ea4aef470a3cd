package scraper

import (
	"slices"

	"github.com/PuerkitoBio/goquery"

	"skillscope/ingest-service/internal/model"
)

// indeed parses Indeed search result pages. It is the only keyword-search
// source: its pages come from Source.SearchURL with the run's query.
type indeed struct{}

func (indeed) Kind() string { return KindIndeed }

func (indeed) Parse(page *Page) ([]model.RawListing, error) {
	doc, err := document(page)
	if err != nil {
		return nil, err
	}

	var out []model.RawListing
	doc.Find("div.job_seen_beacon").Each(func(_ int, s *goquery.Selection) {
		l := model.RawListing{
			Company:     firstText(s, `[data-testid="company-name"]`, "span.companyName"),
			Location:    firstText(s, `[data-testid="text-location"]`, "div.companyLocation"),
			Description: firstText(s, "div.job-snippet", `[data-testid="jobsnippet_footer"]`),
			URL:         firstHref(s, page.URL, "h2.jobTitle a", "a.jcs-JobTitle"),
		}
		if t, ok := s.Find("h2.jobTitle span[title]").First().Attr("title"); ok {
			l.Title = clean(t)
		}
		if l.Title == "" {
			l.Title = firstText(s, "h2.jobTitle")
		}
		if l.Company == "" {
			l.Company = unknownCompany
		}
		if l.Location == "" {
			l.Location = defaultLocation
		}

		l.Tags = texts(s, `[data-testid="attribute_snippet_testid"]`)
		if len(l.Tags) == 0 {
			l.Tags = texts(s, "div.metadata")
		}
		salary := texts(s, "div.salary-snippet-container")
		l.Salary = ScanSalary(slices.Concat(l.Tags, salary))
		out = append(out, l)
	})
	return out, nil
}
