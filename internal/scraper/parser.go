package scraper

import (
	"bytes"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"skillscope/ingest-service/internal/model"
)

// Parser turns one fetched listing page into raw listings. Parsers emit a
// listing for every posting container they find, even when required fields
// are missing, so the normalizer can drop and count it.
type Parser interface {
	Kind() string
	Parse(page *Page) ([]model.RawListing, error)
}

// Parser kinds.
const (
	KindWeWorkRemotely = "weworkremotely"
	KindRemoteOK       = "remoteok"
	KindIndeed         = "indeed"
)

var parsers = map[string]func() Parser{
	KindWeWorkRemotely: func() Parser { return weWorkRemotely{} },
	KindRemoteOK:       func() Parser { return remoteOK{} },
	KindIndeed:         func() Parser { return indeed{} },
}

// NewParser returns the parser for the given source kind.
func NewParser(kind string) (Parser, error) {
	mk, ok := parsers[kind]
	if !ok {
		return nil, fmt.Errorf("unsupported source kind: %s", kind)
	}
	return mk(), nil
}

// SupportedKinds lists every parser kind, sorted.
func SupportedKinds() []string {
	kinds := make([]string, 0, len(parsers))
	for k := range parsers {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// PageURLs returns the pages to fetch for src: its category pages and, for
// keyword-search sources, the search page for query.
func PageURLs(src model.Source, query string) []string {
	pages := append([]string(nil), src.CategoryURLs...)
	if src.SearchURL != "" && strings.TrimSpace(query) != "" {
		pages = append(pages, strings.ReplaceAll(src.SearchURL, "{query}", url.QueryEscape(strings.TrimSpace(query))))
	}
	return pages
}

// ─── goquery helpers ─────────────────────────────────────────────────────────

func document(page *Page) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		return nil, fmt.Errorf("parse html %s: %w", page.URL, err)
	}
	return doc, nil
}

// clean collapses all whitespace runs to single spaces.
func clean(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// firstText returns the cleaned text of the first selector that matches.
func firstText(s *goquery.Selection, selectors ...string) string {
	for _, sel := range selectors {
		if t := clean(s.Find(sel).First().Text()); t != "" {
			return t
		}
	}
	return ""
}

// ownText returns the first non-empty text node directly under s, ignoring
// nested elements such as badges.
func ownText(s *goquery.Selection) string {
	var out string
	s.Contents().EachWithBreak(func(_ int, c *goquery.Selection) bool {
		if goquery.NodeName(c) == "#text" {
			if t := clean(c.Text()); t != "" {
				out = t
				return false
			}
		}
		return true
	})
	if out == "" {
		out = clean(s.Text())
	}
	return out
}

// firstHref returns the href of the first selector that matches, resolved
// against base.
func firstHref(s *goquery.Selection, base string, selectors ...string) string {
	for _, sel := range selectors {
		if href, ok := s.Find(sel).First().Attr("href"); ok && strings.TrimSpace(href) != "" {
			return resolve(base, href)
		}
	}
	return ""
}

func resolve(base, href string) string {
	href = strings.TrimSpace(href)
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	b, err := url.Parse(base)
	if err != nil {
		return href
	}
	return b.ResolveReference(ref).String()
}

func texts(s *goquery.Selection, selector string) []string {
	var out []string
	s.Find(selector).Each(func(_ int, t *goquery.Selection) {
		if v := clean(t.Text()); v != "" {
			out = append(out, v)
		}
	})
	return out
}
