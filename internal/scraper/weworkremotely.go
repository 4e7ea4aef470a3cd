package scraper

import (
	"github.com/PuerkitoBio/goquery"

	"skillscope/ingest-service/internal/model"
)

const (
	unknownCompany  = "Unknown Company"
	defaultLocation = "Remote"
)

// weWorkRemotely parses weworkremotely.com category pages.
type weWorkRemotely struct{}

func (weWorkRemotely) Kind() string { return KindWeWorkRemotely }

func (weWorkRemotely) Parse(page *Page) ([]model.RawListing, error) {
	doc, err := document(page)
	if err != nil {
		return nil, err
	}

	var out []model.RawListing
	doc.Find("li.new-listing-container").Each(func(_ int, s *goquery.Selection) {
		l := model.RawListing{
			Title:    firstText(s, "h3.new-listing__header__title"),
			Company:  unknownCompany,
			Location: defaultLocation,
			URL:      firstHref(s, page.URL, "a.listing-link--unlocked", "a.view-job"),
		}
		if c := s.Find("p.new-listing__company-name").First(); c.Length() > 0 {
			if name := ownText(c); name != "" {
				l.Company = name
			}
		}
		if loc := firstText(s, "p.new-listing__company-headquarters"); loc != "" {
			l.Location = loc
		}
		for _, c := range texts(s, "p.new-listing__categories__category") {
			if c != "Featured" {
				l.Tags = append(l.Tags, c)
			}
		}
		l.Salary = ScanSalary(l.Tags)
		out = append(out, l)
	})
	return out, nil
}
