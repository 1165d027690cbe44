package model

import "time"

// DiscoveryStatus is the terminal state of a discovery run.
type DiscoveryStatus string

const (
	DiscoveryStatusOK       DiscoveryStatus = "ok"
	DiscoveryStatusDisabled DiscoveryStatus = "disabled"
)

// SourceReport summarizes one candidate's trip through the fetch/ingest
// loop, whether or not its insertion was a dedup no-op.
type SourceReport struct {
	Title       string  `json:"title"`
	URL         string  `json:"url"`
	Publisher   string  `json:"publisher"`
	PublishedAt string  `json:"published_at,omitempty"`
	DocType     DocType `json:"doc_type"`
	SourceType  string  `json:"source_type"`
	Relevance   float64 `json:"relevance"`
	Inserted    bool    `json:"inserted"`
}

// DiscoveryReport is the aggregate outcome of a discovery run. Discovery
// never fails past its top level; every failure mode degrades into a
// smaller result set plus an entry in Errors.
type DiscoveryReport struct {
	Status     DiscoveryStatus `json:"status"`
	Company    string          `json:"company"`
	Discovered int             `json:"discovered"`
	Ingested   int             `json:"ingested"`
	Errors     []string        `json:"errors"`
	Sources    []SourceReport  `json:"sources"`
	Queries    []string        `json:"queries,omitempty"`
	Duration   time.Duration   `json:"duration"`
}

// Citation pairs a greenwash example excerpt with its similarity to the
// company's combined claims.
type Citation struct {
	Content    string  `json:"content"`
	Similarity float64 `json:"similarity"`
}

// PeerCitation is a sector peer's disclosure ranked against the same
// claims.
type PeerCitation struct {
	Content    string  `json:"content"`
	Company    string  `json:"company"`
	Similarity float64 `json:"similarity"`
}

// AnalysisResult is the per-request outcome of an analysis. It is computed
// on demand and never persisted.
type AnalysisResult struct {
	Company          string         `json:"company"`
	Sector           string         `json:"sector"`
	RiskScore        float64        `json:"risk_score"`
	GreenwashMatches []Citation     `json:"citations"`
	PeerComparisons  []PeerCitation `json:"peer_comparisons"`
	Narrative        string         `json:"explanation"`
}
