// Package discovery finds and ingests public sources about a company's
// environmental claims: its own reports plus third-party coverage. A run
// operates under a wall-clock budget and degrades to a smaller result set
// rather than failing outright.
package discovery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/verdantline/greenwash-cli/internal/config"
	"github.com/verdantline/greenwash-cli/internal/ingest"
	"github.com/verdantline/greenwash-cli/internal/model"
	"github.com/verdantline/greenwash-cli/internal/resilience"
	"github.com/verdantline/greenwash-cli/pkg/openai"
)

const (
	// minSourceChars rejects fetched pages too thin to analyze, which
	// filters out cookie walls, paywall stubs and bot challenges.
	minSourceChars = 240
	// maxSourceChars caps stored content per source.
	maxSourceChars = 15000
	// budgetFloor is the least remaining budget worth starting a live
	// search with.
	budgetFloor = 2 * time.Second
)

// Pipeline runs discovery end to end: search, dedupe, fetch, extract,
// ingest.
type Pipeline struct {
	cfg     config.DiscoveryConfig
	search  openai.Client
	fetcher *Fetcher
	gateway *ingest.Gateway
}

// NewPipeline assembles a discovery pipeline.
func NewPipeline(cfg config.DiscoveryConfig, search openai.Client, fetcher *Fetcher, gateway *ingest.Gateway) *Pipeline {
	return &Pipeline{cfg: cfg, search: search, fetcher: fetcher, gateway: gateway}
}

// Run discovers sources for a company and ingests the ones that yield
// enough text. A maxResults of zero or less falls back to the configured
// default. It always returns a report; failures along the way shrink the
// result set and land in the report's Errors.
func (p *Pipeline) Run(ctx context.Context, company, sector string, maxResults int) *model.DiscoveryReport {
	started := time.Now()
	budget := secs(p.cfg.TimeBudgetSecs, 35*time.Second)

	if !p.cfg.Enabled {
		return &model.DiscoveryReport{
			Status:   model.DiscoveryStatusDisabled,
			Company:  company,
			Errors:   []string{"live discovery is disabled"},
			Sources:  []model.SourceReport{},
			Duration: time.Since(started),
		}
	}

	if sector == "" {
		sector = "Unknown"
	}
	if maxResults <= 0 {
		maxResults = p.cfg.MaxResults
	}
	if maxResults <= 0 {
		maxResults = 8
	}

	queries := BuildQueries(company)
	var errs []string
	var raw []model.SourceCandidate

	remaining := budget - time.Since(started)
	if remaining <= budgetFloor {
		errs = append(errs, "discovery time budget too low to run live search")
	} else {
		candidates, err := p.searchSources(ctx, company, queries, maxResults*2, remaining)
		if err != nil {
			errs = append(errs, fmt.Sprintf("web search unavailable: %s", strings.TrimSpace(err.Error())))
		} else {
			raw = candidates
		}
	}

	candidates := Dedupe(raw)
	if len(candidates) > maxResults {
		candidates = candidates[:maxResults]
	}

	sourceTimeout := secs(p.cfg.SourceTimeoutSecs, 8*time.Second)
	sources := make([]model.SourceReport, 0, len(candidates))
	ingested := 0

	for _, candidate := range candidates {
		if time.Since(started) > budget {
			errs = append(errs, fmt.Sprintf("discovery time budget reached (%.0fs)", budget.Seconds()))
			break
		}

		text, err := p.fetcher.FetchText(ctx, candidate.URL, sourceTimeout)
		if err != nil {
			zap.L().Debug("source fetch failed",
				zap.String("url", candidate.URL),
				zap.Error(err))
			continue
		}
		if len([]rune(text)) < minSourceChars {
			continue
		}

		doc := composeDocument(company, sector, candidate, text)
		inserted, err := p.gateway.Ingest(ctx, doc)
		if err != nil {
			errs = append(errs, fmt.Sprintf("ingest failed for %s: %s", candidate.URL, strings.TrimSpace(err.Error())))
			continue
		}
		if inserted {
			ingested++
		}
		sources = append(sources, model.SourceReport{
			Title:       candidate.Title,
			URL:         candidate.URL,
			Publisher:   candidate.Publisher,
			PublishedAt: candidate.PublishedAt,
			DocType:     model.NormalizeDocType(candidate.DocType),
			SourceType:  string(model.NormalizeSourceType(candidate.SourceType)),
			Relevance:   round3(candidate.Relevance),
			Inserted:    inserted,
		})
	}

	return &model.DiscoveryReport{
		Status:     model.DiscoveryStatusOK,
		Company:    company,
		Discovered: len(candidates),
		Ingested:   ingested,
		Errors:     errs,
		Sources:    sources,
		Queries:    queries,
		Duration:   time.Since(started),
	}
}

// searchSources runs the web search with a timeout derived from the
// remaining budget, leaving headroom for the fetch loop. Only rate limits,
// timeouts and connection failures are retried.
func (p *Pipeline) searchSources(ctx context.Context, company string, queries []string, maxResults int, remaining time.Duration) ([]model.SourceCandidate, error) {
	configured := secs(p.cfg.SearchTimeoutSecs, 12*time.Second)
	timeout := minDuration(maxDuration(3*time.Second, remaining-budgetFloor), maxDuration(3*time.Second, configured))

	retryCfg := resilience.SearchRetryConfig(p.cfg.SearchMaxAttempts)
	retryCfg.ShouldRetry = isRetryableSearchError
	retryCfg.OnRetry = resilience.RetryLogger("openai", "web_search")

	prompt := SearchPrompt(company, queries, maxResults)
	resp, err := resilience.DoVal(ctx, retryCfg, func(ctx context.Context) (*openai.WebSearchResponse, error) {
		callCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return p.search.WebSearch(callCtx, prompt)
	})
	if err != nil {
		return nil, err
	}

	if candidates := ParseCandidates(resp.OutputText); len(candidates) > 0 {
		return candidates, nil
	}

	// The model answered in prose or bare citations. Salvage URLs from the
	// text and the raw response payload.
	urls := ExtractURLs(resp.OutputText)
	var decoded any
	if err := json.Unmarshal(resp.Raw, &decoded); err == nil {
		urls = append(urls, CollectURLs(decoded)...)
	}

	seen := make(map[string]struct{}, len(urls))
	var deduped []string
	for _, u := range urls {
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		deduped = append(deduped, u)
	}
	if len(deduped) > maxResults {
		deduped = deduped[:maxResults]
	}
	return SynthesizeCandidates(deduped, company), nil
}

func composeDocument(company, sector string, c model.SourceCandidate, text string) *model.StoredDocument {
	trimmed := truncateRunes(text, maxSourceChars)
	body := strings.TrimSpace(c.Title + "\n\n" + c.Snippet + "\n\n" + trimmed)
	return &model.StoredDocument{
		Company:         company,
		Sector:          sector,
		DocType:         model.NormalizeDocType(c.DocType),
		Content:         body,
		SourceURL:       c.URL,
		SourceTitle:     c.Title,
		SourcePublisher: c.Publisher,
		PublishedAt:     c.PublishedAt,
		RetrievedAt:     time.Now().UTC(),
		SourceType:      model.NormalizeSourceType(c.SourceType),
		RetrievalMethod: model.RetrievalLiveDiscovery,
	}
}

func isRetryableSearchError(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return resilience.IsTransientHTTPStatus(apiErr.StatusCode)
	}
	return resilience.IsTransient(err)
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}

func secs(n int, fallback time.Duration) time.Duration {
	if n <= 0 {
		return fallback
	}
	return time.Duration(n) * time.Second
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}

func maxDuration(a, b time.Duration) time.Duration {
	if a > b {
		return a
	}
	return b
}
