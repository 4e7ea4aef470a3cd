package scraper

import (
	"regexp"
	"strconv"
	"strings"

	"skillscope/ingest-service/internal/model"
)

var (
	currencySymbols = map[rune]string{'$': "USD", '€': "EUR", '£': "GBP"}
	salaryNumber    = regexp.MustCompile(`(\d{1,3}(?:,\d{3})+|\d+)(?:\.\d+)?(\s*[kK]\b)?`)
)

// ParseSalary reads a salary hint from text: a currency symbol followed by
// one or two numbers. Two numbers give a range, one gives a minimum only.
// Returns nil when text carries no currency symbol or no number after it.
func ParseSalary(text string) *model.Salary {
	start, currency := -1, ""
	for i, r := range text {
		if c, ok := currencySymbols[r]; ok {
			start, currency = i, c
			break
		}
	}
	if start < 0 {
		return nil
	}

	matches := salaryNumber.FindAllStringSubmatch(text[start:], 2)
	if len(matches) == 0 {
		return nil
	}

	values := make([]float64, 0, len(matches))
	for _, m := range matches {
		v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
		if err != nil {
			return nil
		}
		if strings.TrimSpace(m[2]) != "" {
			v *= 1000
		}
		values = append(values, v)
	}

	if len(values) == 2 && values[1] < values[0] {
		values[0], values[1] = values[1], values[0]
	}
	s := &model.Salary{Min: values[0], Currency: currency}
	if len(values) == 2 {
		hi := values[1]
		s.Max = &hi
	}
	return s
}

// ScanSalary returns the last salary hint found in texts, so later texts
// override earlier ones.
func ScanSalary(texts []string) *model.Salary {
	var found *model.Salary
	for _, t := range texts {
		if s := ParseSalary(t); s != nil {
			found = s
		}
	}
	return found
}
