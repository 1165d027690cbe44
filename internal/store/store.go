// Package store persists disclosure documents and the greenwash reference
// corpus, and answers nearest-neighbor queries over their embeddings.
package store

import (
	"context"

	"github.com/verdantline/greenwash-cli/internal/model"
)

// Store defines the persistence interface shared by the discovery and
// analysis pipelines. Company and sector matching is case-insensitive
// everywhere.
type Store interface {
	// Documents
	InsertDocument(ctx context.Context, doc *model.StoredDocument) error
	HasContentHash(ctx context.Context, hash string) (bool, error)
	// OwnDocuments returns a company's documents, newest first by
	// insertion order.
	OwnDocuments(ctx context.Context, company string, limit int) ([]model.StoredDocument, error)
	// PeerDocuments returns sector peers' documents ranked by vector
	// distance to the query embedding, excluding the company itself.
	PeerDocuments(ctx context.Context, company, sector string, embedding []float64, k int) ([]model.PeerCitation, error)

	// Greenwash example corpus
	InsertExamples(ctx context.Context, examples []model.GreenwashExample) (int64, error)
	// NearestExamples returns the k examples closest to the query
	// embedding, each with similarity = 1 - cosine distance.
	NearestExamples(ctx context.Context, embedding []float64, k int) ([]model.Citation, error)
	CountExamples(ctx context.Context) (int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
