// Package normalize maps raw listings onto canonical job records. Every
// function here is pure: no network or storage access.
package normalize

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/go-playground/validator/v10"

	"skillscope/ingest-service/internal/model"
)

// MaxTagsLen caps the joined tag string stored on a Job.
const MaxTagsLen = 1500

// DefaultExperience is assigned to every job; sources here do not
// disambiguate seniority.
const DefaultExperience = model.ExperienceMid

var remoteWord = regexp.MustCompile(`(?i)remote`)

// ErrRejected marks a listing dropped before dedup.
var ErrRejected = errors.New("listing rejected")

// RejectedError describes why a listing was dropped.
type RejectedError struct {
	Title  string
	URL    string
	Reason string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("rejected listing %q (%s): %s", e.Title, e.URL, e.Reason)
}

// Is reports ErrRejected.
func (e *RejectedError) Is(target error) bool { return target == ErrRejected }

type required struct {
	Title string `validate:"required"`
	URL   string `validate:"required,url"`
}

// Normalizer holds the injected vocabulary and clock.
type Normalizer struct {
	vocab    []model.SkillTerm
	now      func() time.Time
	validate *validator.Validate
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithClock overrides the clock used for posted dates.
func WithClock(now func() time.Time) Option {
	return func(n *Normalizer) { n.now = now }
}

// New returns a Normalizer matching skills against vocab.
func New(vocab []model.SkillTerm, opts ...Option) *Normalizer {
	n := &Normalizer{
		vocab:    append([]model.SkillTerm(nil), vocab...),
		now:      time.Now,
		validate: validator.New(),
	}
	for _, o := range opts {
		o(n)
	}
	return n
}

// Normalize turns raw into a NormalizedJob, or returns a *RejectedError when
// the listing lacks a title or a usable URL.
func (n *Normalizer) Normalize(raw model.RawListing, src model.Source) (model.NormalizedJob, error) {
	title := collapse(raw.Title)
	link := strings.TrimSpace(raw.URL)
	if err := n.validate.Struct(required{Title: title, URL: link}); err != nil {
		var verrs validator.ValidationErrors
		reason := err.Error()
		if errors.As(err, &verrs) && len(verrs) > 0 {
			reason = fmt.Sprintf("%s failed %s", strings.ToLower(verrs[0].Field()), verrs[0].Tag())
		}
		return model.NormalizedJob{}, &RejectedError{Title: title, URL: link, Reason: reason}
	}

	company := collapse(raw.Company)
	if company == "" {
		company = "Unknown Company"
	}
	locText := collapse(raw.Location)
	if locText == "" {
		locText = "Remote"
	}

	jt := JobType(raw.Tags)
	nj := model.NormalizedJob{
		Title:       title,
		Company:     company,
		Location:    ParseLocation(locText, src.RemoteOnly),
		Description: strings.TrimSpace(raw.Description),
		JobType:     jt,
		Experience:  DefaultExperience,
		Skills:      MatchSkills(n.vocab, title, raw.Tags),
		Tags:        JoinTags(raw.Tags),
		ExternalURL: link,
		PostedDate:  postedDate(n.now()),
	}
	if nj.Description == "" {
		nj.Description = fmt.Sprintf("%s at %s\nLocation: %s\nType: %s", title, company, locText, jt)
	}
	if s := raw.Salary; s != nil {
		cp := *s
		if cp.Currency == "" {
			cp.Currency = src.DefaultCurrency
		}
		nj.Salary = &cp
	}
	return nj, nil
}

// JobType scans tags for job type keywords. Contract wins over part-time.
func JobType(tags []string) model.JobType {
	text := strings.ToLower(strings.Join(tags, " "))
	switch {
	case strings.Contains(text, "contract"):
		return model.JobTypeContract
	case strings.Contains(text, "part"):
		return model.JobTypePartTime
	default:
		return model.JobTypeFullTime
	}
}

// MatchSkills returns every vocabulary term found, case-insensitively, as a
// substring of title plus tags. Terms keep their canonical spelling and
// vocabulary order.
func MatchSkills(vocab []model.SkillTerm, title string, tags []string) []model.SkillTerm {
	text := strings.ToLower(title + " " + strings.Join(tags, " "))
	var out []model.SkillTerm
	seen := make(map[string]bool, len(vocab))
	for _, term := range vocab {
		key := strings.ToLower(term.Name)
		if key == "" || seen[key] {
			continue
		}
		if strings.Contains(text, key) {
			seen[key] = true
			out = append(out, term)
		}
	}
	return out
}

// ParseLocation reads a location key from free text. A "remote" keyword
// anywhere forces city "Remote"; the rest of the text, if any, is the
// country. Sources flagged remoteOnly mark every location remote.
func ParseLocation(text string, remoteOnly bool) model.LocationKey {
	text = strings.TrimLeftFunc(collapse(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if text == "" {
		return model.LocationKey{City: "Remote", Country: "Worldwide", IsRemote: true}
	}

	if loc := remoteWord.FindStringIndex(text); loc != nil {
		rest := text[:loc[0]] + " " + text[loc[1]:]
		country := strings.Trim(collapse(rest), " -,/|()·:")
		if country == "" {
			country = "Worldwide"
		}
		return model.LocationKey{City: "Remote", Country: country, IsRemote: true}
	}

	if remoteOnly {
		return model.LocationKey{City: text, Country: "Worldwide", IsRemote: true}
	}

	if i := strings.LastIndex(text, ","); i >= 0 {
		city := strings.TrimSpace(text[:i])
		country := strings.TrimSpace(text[i+1:])
		if city != "" && country != "" {
			return model.LocationKey{City: city, Country: country}
		}
	}
	return model.LocationKey{City: text, Country: "Unknown"}
}

// JoinTags joins tags with ", ", capped at MaxTagsLen runes.
func JoinTags(tags []string) string {
	joined := strings.Join(tags, ", ")
	if r := []rune(joined); len(r) > MaxTagsLen {
		return string(r[:MaxTagsLen])
	}
	return joined
}

// NameKey returns the lookup key for a Company or Skill name under policy:
// "exact" keeps the name as is, "fold" lower-cases it and collapses
// whitespace.
func NameKey(policy, name string) string {
	if policy == "fold" {
		return strings.ToLower(collapse(name))
	}
	return name
}

// postedDate truncates t to its UTC calendar day.
func postedDate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
