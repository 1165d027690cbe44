package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"math"
	"sort"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/verdantline/greenwash-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. Embeddings are
// stored as JSON arrays and nearest-neighbor queries scan candidate rows
// in process, which is fine at the corpus sizes a local database holds.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS esg_documents (
	id               TEXT PRIMARY KEY,
	company          TEXT NOT NULL,
	sector           TEXT NOT NULL,
	doc_type         TEXT NOT NULL,
	content          TEXT NOT NULL,
	embedding        TEXT NOT NULL,
	source_url       TEXT NOT NULL DEFAULT '',
	source_title     TEXT NOT NULL DEFAULT '',
	source_publisher TEXT NOT NULL DEFAULT '',
	published_at     TEXT NOT NULL DEFAULT '',
	retrieved_at     DATETIME NOT NULL DEFAULT (datetime('now')),
	source_type      TEXT NOT NULL DEFAULT 'third_party',
	retrieval_method TEXT NOT NULL DEFAULT 'manual_upload',
	content_hash     TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_esg_documents_content_hash ON esg_documents(content_hash);
CREATE INDEX IF NOT EXISTS idx_esg_documents_company ON esg_documents(LOWER(company));
CREATE INDEX IF NOT EXISTS idx_esg_documents_sector ON esg_documents(LOWER(sector));

CREATE TABLE IF NOT EXISTS greenwash_examples (
	id        TEXT PRIMARY KEY,
	content   TEXT NOT NULL,
	embedding TEXT NOT NULL
);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) InsertDocument(ctx context.Context, doc *model.StoredDocument) error {
	id := doc.ID
	if id == "" {
		id = uuid.New().String()
	}

	embJSON, err := json.Marshal(doc.Embedding)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal embedding")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO esg_documents
			(id, company, sector, doc_type, content, embedding, source_url, source_title, source_publisher, published_at, retrieved_at, source_type, retrieval_method, content_hash)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, doc.Company, doc.Sector, string(doc.DocType), doc.Content, string(embJSON),
		doc.SourceURL, doc.SourceTitle, doc.SourcePublisher, doc.PublishedAt,
		doc.RetrievedAt.UTC(), string(doc.SourceType), string(doc.RetrievalMethod), doc.ContentHash,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: insert document for %s", doc.Company)
	}
	doc.ID = id
	return nil
}

func (s *SQLiteStore) HasContentHash(ctx context.Context, hash string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM esg_documents WHERE content_hash = ?)`,
		hash,
	).Scan(&exists)
	if err != nil {
		return false, eris.Wrap(err, "sqlite: content hash lookup")
	}
	return exists, nil
}

func (s *SQLiteStore) OwnDocuments(ctx context.Context, company string, limit int) ([]model.StoredDocument, error) {
	if limit <= 0 {
		limit = 8
	}

	// SQLite's LOWER() folds ASCII only, so identity matching happens in
	// Go, the same way the similarity queries already scan in process.
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, company, sector, doc_type, content, source_url, source_title, source_publisher, published_at, retrieved_at, source_type, retrieval_method, content_hash
		FROM esg_documents
		ORDER BY rowid DESC`,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: own documents %s", company)
	}
	defer rows.Close()

	var docs []model.StoredDocument
	for rows.Next() {
		var d model.StoredDocument
		var docType, sourceType, retrievalMethod string
		if err := rows.Scan(&d.ID, &d.Company, &d.Sector, &docType, &d.Content,
			&d.SourceURL, &d.SourceTitle, &d.SourcePublisher, &d.PublishedAt,
			&d.RetrievedAt, &sourceType, &retrievalMethod, &d.ContentHash); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan document")
		}
		if !model.SameIdentity(d.Company, company) {
			continue
		}
		d.DocType = model.DocType(docType)
		d.SourceType = model.SourceType(sourceType)
		d.RetrievalMethod = model.RetrievalMethod(retrievalMethod)
		docs = append(docs, d)
		if len(docs) == limit {
			break
		}
	}
	return docs, eris.Wrap(rows.Err(), "sqlite: own documents rows")
}

func (s *SQLiteStore) PeerDocuments(ctx context.Context, company, sector string, embedding []float64, k int) ([]model.PeerCitation, error) {
	if k <= 0 {
		k = 5
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT content, company, sector, embedding FROM esg_documents`,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: peer documents %s/%s", company, sector)
	}
	defer rows.Close()

	var peers []model.PeerCitation
	for rows.Next() {
		var p model.PeerCitation
		var rowSector, embJSON string
		if err := rows.Scan(&p.Content, &p.Company, &rowSector, &embJSON); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan peer")
		}
		if !model.SameIdentity(rowSector, sector) || model.SameIdentity(p.Company, company) {
			continue
		}
		var emb []float64
		if err := json.Unmarshal([]byte(embJSON), &emb); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal peer embedding")
		}
		p.Similarity = cosineSimilarity(embedding, emb)
		peers = append(peers, p)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: peer documents rows")
	}

	sort.SliceStable(peers, func(i, j int) bool { return peers[i].Similarity > peers[j].Similarity })
	if len(peers) > k {
		peers = peers[:k]
	}
	return peers, nil
}

func (s *SQLiteStore) InsertExamples(ctx context.Context, examples []model.GreenwashExample) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin insert examples")
	}
	defer tx.Rollback()

	var inserted int64
	for _, ex := range examples {
		id := ex.ID
		if id == "" {
			id = uuid.New().String()
		}
		embJSON, err := json.Marshal(ex.Embedding)
		if err != nil {
			return 0, eris.Wrap(err, "sqlite: marshal example embedding")
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO greenwash_examples (id, content, embedding) VALUES (?, ?, ?)`,
			id, ex.Content, string(embJSON),
		); err != nil {
			return 0, eris.Wrap(err, "sqlite: insert example")
		}
		inserted++
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit insert examples")
	}
	return inserted, nil
}

func (s *SQLiteStore) NearestExamples(ctx context.Context, embedding []float64, k int) ([]model.Citation, error) {
	if k <= 0 {
		k = 5
	}

	rows, err := s.db.QueryContext(ctx, `SELECT content, embedding FROM greenwash_examples`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: nearest examples")
	}
	defer rows.Close()

	var matches []model.Citation
	for rows.Next() {
		var c model.Citation
		var embJSON string
		if err := rows.Scan(&c.Content, &embJSON); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan example")
		}
		var emb []float64
		if err := json.Unmarshal([]byte(embJSON), &emb); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal example embedding")
		}
		c.Similarity = cosineSimilarity(embedding, emb)
		matches = append(matches, c)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: nearest examples rows")
	}

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Similarity > matches[j].Similarity })
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

func (s *SQLiteStore) CountExamples(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM greenwash_examples`).Scan(&n)
	return n, eris.Wrap(err, "sqlite: count examples")
}

// cosineSimilarity matches the similarity pgvector reports as
// 1 - (a <=> b). Mismatched lengths and zero vectors score 0.
func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
