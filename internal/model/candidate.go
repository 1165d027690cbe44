package model

import (
	"net/url"
	"strings"
)

// SourceCandidate is an unverified reference to a document produced by
// discovery. Candidates are consumed during the fetch/ingest loop and are
// never persisted themselves.
type SourceCandidate struct {
	Title       string  `json:"title"`
	URL         string  `json:"url"`
	Snippet     string  `json:"snippet"`
	Publisher   string  `json:"publisher"`
	PublishedAt string  `json:"published_at,omitempty"`
	DocType     string  `json:"doc_type"`
	SourceType  string  `json:"source_type"`
	Relevance   float64 `json:"relevance"`
}

// NormalizedURL strips the fragment and any trailing slash so that
// trivially distinct spellings of the same address dedupe together.
func (c SourceCandidate) NormalizedURL() string {
	u, err := url.Parse(c.URL)
	if err != nil {
		return strings.TrimRight(c.URL, "/")
	}
	u.Fragment = ""
	return strings.TrimRight(u.String(), "/")
}

// Host returns the candidate URL's hostname, or "Unknown" when the URL
// cannot be parsed.
func (c SourceCandidate) Host() string {
	u, err := url.Parse(c.URL)
	if err != nil || u.Host == "" {
		return "Unknown"
	}
	return strings.ToLower(u.Host)
}
