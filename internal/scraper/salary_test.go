package scraper_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skillscope/ingest-service/internal/scraper"
)

func TestParseSalary_Range(t *testing.T) {
	s := scraper.ParseSalary("$80,000-$120,000")
	require.NotNil(t, s)
	assert.Equal(t, 80000.0, s.Min)
	require.NotNil(t, s.Max)
	assert.Equal(t, 120000.0, *s.Max)
	assert.Equal(t, "USD", s.Currency)
}

func TestParseSalary_MinOnly(t *testing.T) {
	s := scraper.ParseSalary("$90,000")
	require.NotNil(t, s)
	assert.Equal(t, 90000.0, s.Min)
	assert.Nil(t, s.Max)
}

func TestParseSalary_Variants(t *testing.T) {
	cases := []struct {
		in       string
		min, max float64 // max 0 means unset
		currency string
	}{
		{"💰 $80k - $120k", 80000, 120000, "USD"},
		{"€45,000", 45000, 0, "EUR"},
		{"£50,000 - 60,000 per year", 50000, 60000, "GBP"},
		{"$50 - $60 an hour", 50, 60, "USD"},
		{"Up to $150000", 150000, 0, "USD"},
		{"Salary: $100,000 to $140,000 to $999,999", 100000, 140000, "USD"},
	}
	for _, c := range cases {
		t.Run(c.in, func(t *testing.T) {
			s := scraper.ParseSalary(c.in)
			require.NotNil(t, s)
			assert.Equal(t, c.min, s.Min)
			assert.Equal(t, c.currency, s.Currency)
			if c.max == 0 {
				assert.Nil(t, s.Max)
			} else {
				require.NotNil(t, s.Max)
				assert.Equal(t, c.max, *s.Max)
			}
		})
	}
}

func TestParseSalary_NoHint(t *testing.T) {
	for _, in := range []string{"", "Full-Time", "Top 100 company", "$", "$ competitive"} {
		assert.Nil(t, scraper.ParseSalary(in), in)
	}
}

func TestParseSalary_ReversedRange(t *testing.T) {
	s := scraper.ParseSalary("$120k - $80k")
	require.NotNil(t, s)
	assert.Equal(t, 80000.0, s.Min)
	require.NotNil(t, s.Max)
	assert.Equal(t, 120000.0, *s.Max)
}

func TestScanSalary_LastHintWins(t *testing.T) {
	s := scraper.ScanSalary([]string{"$50,000", "Full-Time", "$70,000 - $90,000", "Anywhere"})
	require.NotNil(t, s)
	assert.Equal(t, 70000.0, s.Min)
	require.NotNil(t, s.Max)
	assert.Equal(t, 90000.0, *s.Max)

	assert.Nil(t, scraper.ScanSalary([]string{"Contract", "Anywhere"}))
}
