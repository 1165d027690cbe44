// Package demo serves canned analysis and discovery payloads for a small
// set of well-known companies. It lets the HTTP API and CLI demonstrate
// the full response shape without API keys, a database, or network access.
package demo

import (
	_ "embed"
	"sync"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/verdantline/greenwash-cli/internal/model"
)

//go:embed companies.yaml
var companiesYAML []byte

// Source is a canned discovery source.
type Source struct {
	Title       string `yaml:"title" json:"title"`
	URL         string `yaml:"url" json:"url"`
	Publisher   string `yaml:"publisher" json:"publisher"`
	PublishedAt string `yaml:"published_at" json:"published_at,omitempty"`
}

// Profile is one company's canned assessment.
type Profile struct {
	RiskScore   float64          `yaml:"risk_score"`
	Sector      string           `yaml:"sector"`
	Explanation string           `yaml:"explanation"`
	Citations   []model.Citation `yaml:"citations"`
	Sources     []Source         `yaml:"sources"`
}

var (
	loadOnce sync.Once
	profiles map[string]Profile
	loadErr  error
)

func load() (map[string]Profile, error) {
	loadOnce.Do(func() {
		raw := make(map[string]Profile)
		if err := yaml.Unmarshal(companiesYAML, &raw); err != nil {
			loadErr = eris.Wrap(err, "demo: parse embedded profiles")
			return
		}
		profiles = make(map[string]Profile, len(raw))
		for name, p := range raw {
			profiles[model.IdentityKey(name)] = p
		}
	})
	return profiles, loadErr
}

// Lookup returns the canned profile for a company, matching
// case-insensitively.
func Lookup(company string) (*Profile, bool) {
	table, err := load()
	if err != nil {
		return nil, false
	}
	p, ok := table[model.IdentityKey(company)]
	if !ok {
		return nil, false
	}
	return &p, true
}

// Analysis returns a canned analysis result, or false when the company is
// not in the demo set.
func Analysis(company string) (*model.AnalysisResult, bool) {
	p, ok := Lookup(company)
	if !ok {
		return nil, false
	}
	return &model.AnalysisResult{
		Company:          company,
		Sector:           p.Sector,
		RiskScore:        p.RiskScore,
		GreenwashMatches: p.Citations,
		Narrative:        p.Explanation,
	}, true
}

// Discovery returns a canned discovery report limited to maxResults
// sources, or false when the company is not in the demo set.
func Discovery(company string, maxResults int) (*model.DiscoveryReport, bool) {
	p, ok := Lookup(company)
	if !ok {
		return nil, false
	}

	n := len(p.Sources)
	if maxResults > 0 && maxResults < n {
		n = maxResults
	}

	sources := make([]model.SourceReport, 0, n)
	for _, s := range p.Sources[:n] {
		sources = append(sources, model.SourceReport{
			Title:       s.Title,
			URL:         s.URL,
			Publisher:   s.Publisher,
			PublishedAt: s.PublishedAt,
			DocType:     model.DocTypeOther,
			SourceType:  string(model.SourceTypeThirdParty),
			Inserted:    true,
		})
	}
	return &model.DiscoveryReport{
		Status:     model.DiscoveryStatusOK,
		Company:    company,
		Discovered: len(sources),
		Ingested:   len(sources),
		Errors:     []string{},
		Sources:    sources,
	}, true
}
