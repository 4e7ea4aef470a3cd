package config

import (
	"time"

	"skillscope/ingest-service/internal/model"
)

// DefaultSources returns the built-in source set used when no SOURCES_FILE
// is configured. A fresh slice is returned on every call.
func DefaultSources() []model.Source {
	return []model.Source{
		{
			Name:    "WeWorkRemotely",
			Kind:    "weworkremotely",
			BaseURL: "https://weworkremotely.com",
			CategoryURLs: []string{
				"https://weworkremotely.com/categories/remote-full-stack-programming-jobs#job-listings",
				"https://weworkremotely.com/categories/remote-back-end-programming-jobs#job-listings",
				"https://weworkremotely.com/categories/remote-front-end-programming-jobs#job-listings",
			},
			RemoteOnly:      true,
			Active:          true,
			ScrapeFrequency: 24 * time.Hour,
			DefaultCurrency: "USD",
		},
		{
			Name:    "RemoteOK",
			Kind:    "remoteok",
			BaseURL: "https://remoteok.com",
			CategoryURLs: []string{
				"https://remoteok.com/remote-dev-jobs",
			},
			RemoteOnly:      true,
			Active:          true,
			ScrapeFrequency: 24 * time.Hour,
			DefaultCurrency: "USD",
		},
		{
			Name:            "Indeed",
			Kind:            "indeed",
			BaseURL:         "https://www.indeed.com",
			SearchURL:       "https://www.indeed.com/jobs?q={query}",
			Active:          true,
			ScrapeFrequency: 24 * time.Hour,
			DefaultCurrency: "USD",
		},
	}
}

// DefaultSkills returns the built-in skill vocabulary.
func DefaultSkills() []model.SkillTerm {
	return []model.SkillTerm{
		{Name: "Python", Category: "Programming"},
		{Name: "JavaScript", Category: "Programming"},
		{Name: "React", Category: "Frontend"},
		{Name: "Node", Category: "Backend"},
		{Name: "Django", Category: "Backend"},
		{Name: "C#", Category: "Programming"},
		{Name: "Java", Category: "Programming"},
		{Name: "PHP", Category: "Programming"},
		{Name: "Go", Category: "Programming"},
		{Name: "Rust", Category: "Programming"},
		{Name: "Vue", Category: "Frontend"},
		{Name: "AWS", Category: "Cloud"},
		{Name: "Docker", Category: "DevOps"},
		{Name: "Kubernetes", Category: "DevOps"},
		{Name: "Full Stack", Category: "Role"},
		{Name: "Frontend", Category: "Role"},
		{Name: "Backend", Category: "Role"},
	}
}
