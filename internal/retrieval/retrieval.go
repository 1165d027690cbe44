// Package retrieval answers the three evidence queries an analysis needs:
// a company's own disclosures, the greenwash examples nearest to them, and
// how sector peers read against the same claims.
package retrieval

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/verdantline/greenwash-cli/internal/embed"
	"github.com/verdantline/greenwash-cli/internal/model"
	"github.com/verdantline/greenwash-cli/internal/store"
)

// Engine embeds query text once per call and delegates the vector search
// to the store.
type Engine struct {
	store    store.Store
	embedder embed.Embedder
}

// NewEngine creates a retrieval engine.
func NewEngine(st store.Store, em embed.Embedder) *Engine {
	return &Engine{store: st, embedder: em}
}

// OwnDocuments returns a company's stored disclosures, newest first.
func (e *Engine) OwnDocuments(ctx context.Context, company string, limit int) ([]model.StoredDocument, error) {
	docs, err := e.store.OwnDocuments(ctx, company, limit)
	if err != nil {
		return nil, eris.Wrapf(err, "retrieval: own documents for %s", company)
	}
	return docs, nil
}

// GreenwashMatches returns the k reference examples most similar to the
// query text.
func (e *Engine) GreenwashMatches(ctx context.Context, text string, k int) ([]model.Citation, error) {
	emb, err := e.embedder.Embed(ctx, text)
	if err != nil {
		return nil, eris.Wrap(err, "retrieval: embed query")
	}
	matches, err := e.store.NearestExamples(ctx, emb, k)
	if err != nil {
		return nil, eris.Wrap(err, "retrieval: nearest examples")
	}
	return matches, nil
}

// PeerDisclosures returns same-sector peers' disclosures ranked by
// similarity to the query text, excluding the company itself.
func (e *Engine) PeerDisclosures(ctx context.Context, company, sector, text string, k int) ([]model.PeerCitation, error) {
	emb, err := e.embedder.Embed(ctx, text)
	if err != nil {
		return nil, eris.Wrap(err, "retrieval: embed query")
	}
	peers, err := e.store.PeerDocuments(ctx, company, sector, emb, k)
	if err != nil {
		return nil, eris.Wrapf(err, "retrieval: peer disclosures for %s", company)
	}
	return peers, nil
}
