package scraper

import (
	"slices"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"skillscope/ingest-service/internal/model"
)

// remoteOK parses the remoteok.com listing table. Each posting is a
// tr.job row; location and salary share the div.location badges.
type remoteOK struct{}

func (remoteOK) Kind() string { return KindRemoteOK }

func (remoteOK) Parse(page *Page) ([]model.RawListing, error) {
	doc, err := document(page)
	if err != nil {
		return nil, err
	}

	var out []model.RawListing
	doc.Find("tr.job").Each(func(_ int, s *goquery.Selection) {
		l := model.RawListing{
			Title:    firstText(s, `h2[itemprop="title"]`, "td.company h2"),
			Company:  firstText(s, `h3[itemprop="name"]`, "td.company h3"),
			Location: defaultLocation,
			URL:      firstHref(s, page.URL, `a[itemprop="url"]`, "a.preventLink"),
		}
		if l.URL == "" {
			for _, attr := range []string{"data-href", "data-url"} {
				if v, ok := s.Attr(attr); ok && strings.TrimSpace(v) != "" {
					l.URL = resolve(page.URL, v)
					break
				}
			}
		}
		if l.Company == "" {
			l.Company = unknownCompany
		}

		var hints []string
		for _, badge := range texts(s, "div.location") {
			if ParseSalary(badge) != nil {
				hints = append(hints, badge)
				continue
			}
			if l.Location == defaultLocation {
				l.Location = badge
			}
		}

		l.Tags = texts(s, "td.tags h3")
		if len(l.Tags) == 0 {
			l.Tags = texts(s, "td.tags .tag")
		}
		l.Salary = ScanSalary(slices.Concat(l.Tags, hints))
		out = append(out, l)
	})
	return out, nil
}
