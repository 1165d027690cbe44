package discovery

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/verdantline/greenwash-cli/internal/model"
)

var urlRe = regexp.MustCompile(`https?://[^\s<>()"']+`)

// candidateRow mirrors the JSON objects the search model is asked to
// produce. Relevance arrives as whatever the model felt like, so it is
// decoded loosely.
type candidateRow struct {
	Title       string          `json:"title"`
	URL         string          `json:"url"`
	Snippet     string          `json:"snippet"`
	Publisher   string          `json:"publisher"`
	PublishedAt string          `json:"published_at"`
	DocType     string          `json:"doc_type"`
	SourceType  string          `json:"source_type"`
	Relevance   json.RawMessage `json:"relevance"`
}

// ParseCandidates extracts structured source candidates from the model's
// output text. It tolerates prose around the JSON by slicing from the
// first '[' to the last ']'. Rows without an absolute http(s) URL are
// dropped. A nil result means the output held no usable JSON array.
func ParseCandidates(output string) []model.SourceCandidate {
	start := strings.Index(output, "[")
	end := strings.LastIndex(output, "]")
	if start == -1 || end == -1 || end <= start {
		return nil
	}

	var rows []candidateRow
	if err := json.Unmarshal([]byte(output[start:end+1]), &rows); err != nil {
		return nil
	}

	var out []model.SourceCandidate
	for _, row := range rows {
		u := strings.TrimSpace(row.URL)
		if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
			continue
		}
		c := model.SourceCandidate{
			Title:       strings.TrimSpace(row.Title),
			URL:         u,
			Snippet:     strings.TrimSpace(row.Snippet),
			Publisher:   strings.TrimSpace(row.Publisher),
			PublishedAt: strings.TrimSpace(row.PublishedAt),
			DocType:     strings.TrimSpace(row.DocType),
			SourceType:  strings.TrimSpace(row.SourceType),
			Relevance:   parseRelevance(row.Relevance),
		}
		if c.Title == "" {
			c.Title = "Untitled"
		}
		if c.Publisher == "" {
			c.Publisher = "Unknown"
		}
		if c.DocType == "" {
			c.DocType = string(model.DocTypeOther)
		}
		if c.SourceType == "" {
			c.SourceType = string(model.SourceTypeThirdParty)
		}
		out = append(out, c)
	}
	return out
}

func parseRelevance(raw json.RawMessage) float64 {
	if len(raw) == 0 {
		return 0
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		var sf float64
		if err := json.Unmarshal([]byte(strings.TrimSpace(s)), &sf); err == nil {
			return sf
		}
	}
	return 0
}

// ExtractURLs pulls absolute http(s) URLs out of free text, stripping the
// trailing punctuation that prose tends to glue onto them. Order is
// preserved and duplicates are dropped.
func ExtractURLs(text string) []string {
	matches := urlRe.FindAllString(text, -1)
	seen := make(map[string]struct{}, len(matches))
	var out []string
	for _, m := range matches {
		u := strings.TrimRight(m, ".,);:!?")
		if u == "" {
			continue
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}

// CollectURLs walks an arbitrary decoded JSON value and gathers URLs from
// link-shaped keys and from any string leaves. Used on the raw search
// response when the output text held no parseable candidates.
func CollectURLs(value any) []string {
	var out []string
	collectURLs(value, &out)

	seen := make(map[string]struct{}, len(out))
	var deduped []string
	for _, u := range out {
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		deduped = append(deduped, u)
	}
	return deduped
}

func collectURLs(value any, out *[]string) {
	switch v := value.(type) {
	case map[string]any:
		for k, item := range v {
			if k == "url" || k == "href" || k == "source_url" {
				if s, ok := item.(string); ok && (strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")) {
					*out = append(*out, s)
				}
			}
			collectURLs(item, out)
		}
	case []any:
		for _, item := range v {
			collectURLs(item, out)
		}
	case string:
		*out = append(*out, ExtractURLs(v)...)
	}
}

// SynthesizeCandidates turns bare URLs into ranked candidates. Relevance
// decays with position so earlier citations win the dedup pass.
func SynthesizeCandidates(urls []string, company string) []model.SourceCandidate {
	out := make([]model.SourceCandidate, 0, len(urls))
	for i, u := range urls {
		relevance := 0.8 - float64(i)*0.02
		if relevance < 0 {
			relevance = 0
		}
		c := model.SourceCandidate{
			Title:      fmt.Sprintf("%s source %d", company, i+1),
			URL:        u,
			Snippet:    "Discovered via live web search.",
			DocType:    string(model.DocTypeOther),
			SourceType: string(model.SourceTypeThirdParty),
			Relevance:  relevance,
		}
		c.Publisher = c.Host()
		out = append(out, c)
	}
	return out
}
