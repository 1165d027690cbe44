package model

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
)

// DocType classifies a disclosure document.
type DocType string

const (
	DocTypeESGReport            DocType = "ESGReport"
	DocTypeAnnualReport         DocType = "AnnualReport"
	DocTypeSustainabilityReport DocType = "SustainabilityReport"
	DocTypeClimateReport        DocType = "ClimateReport"
	DocTypeNewsArticle          DocType = "NewsArticle"
	DocTypeOther                DocType = "Other"
)

// NormalizeDocType maps free-form doc type strings onto the fixed enum.
// Unknown values become DocTypeOther.
func NormalizeDocType(value string) DocType {
	switch DocType(strings.TrimSpace(value)) {
	case DocTypeESGReport, DocTypeAnnualReport, DocTypeSustainabilityReport,
		DocTypeClimateReport, DocTypeNewsArticle, DocTypeOther:
		return DocType(strings.TrimSpace(value))
	default:
		return DocTypeOther
	}
}

// SourceType describes where a document came from.
type SourceType string

const (
	SourceTypeCompanySite SourceType = "company_site"
	SourceTypeNews        SourceType = "news"
	SourceTypeRegulatory  SourceType = "regulatory"
	SourceTypeThirdParty  SourceType = "third_party"
)

// NormalizeSourceType maps free-form source type strings onto the fixed
// enum, defaulting to SourceTypeThirdParty.
func NormalizeSourceType(value string) SourceType {
	switch SourceType(strings.TrimSpace(value)) {
	case SourceTypeCompanySite, SourceTypeNews, SourceTypeRegulatory, SourceTypeThirdParty:
		return SourceType(strings.TrimSpace(value))
	default:
		return SourceTypeThirdParty
	}
}

// RetrievalMethod records how a document entered the store.
type RetrievalMethod string

const (
	RetrievalManualUpload  RetrievalMethod = "manual_upload"
	RetrievalLiveDiscovery RetrievalMethod = "live_discovery"
)

// EmbeddingDim is the fixed dimensionality of stored embeddings
// (text-embedding-3-large).
const EmbeddingDim = 3072

// StoredDocument is a persisted, embedded unit of disclosure text.
// Rows are never updated in place.
type StoredDocument struct {
	ID        string    `json:"id"`
	Company   string    `json:"company"`
	Sector    string    `json:"sector"`
	DocType   DocType   `json:"doc_type"`
	Content   string    `json:"content"`
	Embedding []float64 `json:"-"`

	// Provenance.
	SourceURL       string          `json:"source_url,omitempty"`
	SourceTitle     string          `json:"source_title,omitempty"`
	SourcePublisher string          `json:"source_publisher,omitempty"`
	PublishedAt     string          `json:"published_at,omitempty"`
	RetrievedAt     time.Time       `json:"retrieved_at"`
	SourceType      SourceType      `json:"source_type"`
	RetrievalMethod RetrievalMethod `json:"retrieval_method"`
	ContentHash     string          `json:"content_hash"`
}

// GreenwashExample is one entry of the reference corpus of known
// greenwashing language. Seeded outside the discovery pipeline.
type GreenwashExample struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Embedding []float64 `json:"-"`
}

// IdentityKey folds a company or sector name for case-insensitive
// comparison. The store uses LOWER() for the same purpose in SQL.
func IdentityKey(name string) string {
	return cases.Fold().String(strings.TrimSpace(name))
}

// SameIdentity reports whether two company/sector names refer to the same
// entity under case-insensitive identity.
func SameIdentity(a, b string) bool {
	return IdentityKey(a) == IdentityKey(b)
}
