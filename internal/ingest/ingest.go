// Package ingest writes documents into the store exactly once per unique
// content, embedding them on the way in.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/verdantline/greenwash-cli/internal/embed"
	"github.com/verdantline/greenwash-cli/internal/model"
	"github.com/verdantline/greenwash-cli/internal/store"
)

// Gateway is the single write path for documents. Every insert is keyed by
// the SHA-256 of the document content, so re-discovering or re-uploading the
// same text is a no-op.
type Gateway struct {
	store    store.Store
	embedder embed.Embedder
}

// NewGateway creates a Gateway over the given store and embedder.
func NewGateway(st store.Store, em embed.Embedder) *Gateway {
	return &Gateway{store: st, embedder: em}
}

// ContentHash returns the hex SHA-256 digest of the document content.
func ContentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// Ingest stores the document unless its content hash is already present.
// It reports whether a new row was written. The document's ID, Embedding
// and ContentHash fields are populated on successful insert.
func (g *Gateway) Ingest(ctx context.Context, doc *model.StoredDocument) (bool, error) {
	if doc.Content == "" {
		return false, eris.New("ingest: empty document content")
	}

	hash := ContentHash(doc.Content)
	exists, err := g.store.HasContentHash(ctx, hash)
	if err != nil {
		return false, eris.Wrap(err, "ingest: content hash check")
	}
	if exists {
		zap.L().Debug("skipping duplicate content",
			zap.String("company", doc.Company),
			zap.String("source_url", doc.SourceURL))
		return false, nil
	}

	embedding, err := g.embedder.Embed(ctx, doc.Content)
	if err != nil {
		return false, eris.Wrap(err, "ingest: embed content")
	}

	doc.ContentHash = hash
	doc.Embedding = embedding
	doc.DocType = model.NormalizeDocType(string(doc.DocType))
	doc.SourceType = model.NormalizeSourceType(string(doc.SourceType))
	if doc.RetrievalMethod == "" {
		doc.RetrievalMethod = model.RetrievalManualUpload
	}
	if doc.RetrievedAt.IsZero() {
		doc.RetrievedAt = time.Now().UTC()
	}

	if err := g.store.InsertDocument(ctx, doc); err != nil {
		return false, eris.Wrap(err, "ingest: insert document")
	}
	return true, nil
}
