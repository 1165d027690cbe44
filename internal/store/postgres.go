package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	pgxvector "github.com/pgvector/pgvector-go/pgx"
	"github.com/rotisserie/eris"

	"github.com/verdantline/greenwash-cli/internal/db"
	"github.com/verdantline/greenwash-cli/internal/model"
)

// PostgresStore implements Store using pgxpool against a pgvector-enabled
// database.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// Hot-path queries: the per-candidate existence check and the similarity
// searches. Prepared on each new connection; the query sites pass the same
// SQL text so pgx routes them through the prepared statements.
const (
	sqlHasContentHash  = `SELECT EXISTS (SELECT 1 FROM esg_documents WHERE content_hash = $1)`
	sqlOwnDocuments    = `SELECT id, company, sector, doc_type, content, source_url, source_title, source_publisher, COALESCE(published_at, ''), retrieved_at, source_type, retrieval_method, content_hash FROM esg_documents WHERE LOWER(company) = LOWER($1) ORDER BY seq DESC LIMIT $2`
	sqlNearestExamples = `SELECT content, 1 - (embedding <=> $1) AS similarity FROM greenwash_examples ORDER BY embedding <=> $1 LIMIT $2`
)

var preparedStatements = map[string]string{
	"has_content_hash": sqlHasContentHash,
	"own_documents":    sqlOwnDocuments,
	"nearest_examples": sqlNearestExamples,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		if err := pgxvector.RegisterTypes(ctx, conn); err != nil {
			return eris.Wrap(err, "postgres: register vector types")
		}
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS esg_documents (
	id               TEXT PRIMARY KEY,
	seq              BIGINT GENERATED ALWAYS AS IDENTITY,
	company          TEXT NOT NULL,
	sector           TEXT NOT NULL,
	doc_type         TEXT NOT NULL,
	content          TEXT NOT NULL,
	embedding        VECTOR(3072) NOT NULL,
	source_url       TEXT NOT NULL DEFAULT '',
	source_title     TEXT NOT NULL DEFAULT '',
	source_publisher TEXT NOT NULL DEFAULT '',
	published_at     TEXT,
	retrieved_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
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
	embedding VECTOR(3072) NOT NULL
);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) InsertDocument(ctx context.Context, doc *model.StoredDocument) error {
	id := doc.ID
	if id == "" {
		id = uuid.New().String()
	}

	var publishedAt any
	if doc.PublishedAt != "" {
		publishedAt = doc.PublishedAt
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO esg_documents
			(id, company, sector, doc_type, content, embedding, source_url, source_title, source_publisher, published_at, retrieved_at, source_type, retrieval_method, content_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		id, doc.Company, doc.Sector, string(doc.DocType), doc.Content, pgvec(doc.Embedding),
		doc.SourceURL, doc.SourceTitle, doc.SourcePublisher, publishedAt,
		doc.RetrievedAt.UTC(), string(doc.SourceType), string(doc.RetrievalMethod), doc.ContentHash,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: insert document for %s", doc.Company)
	}
	doc.ID = id
	return nil
}

func (s *PostgresStore) HasContentHash(ctx context.Context, hash string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, sqlHasContentHash, hash).Scan(&exists)
	if err != nil {
		return false, eris.Wrap(err, "postgres: content hash lookup")
	}
	return exists, nil
}

func (s *PostgresStore) OwnDocuments(ctx context.Context, company string, limit int) ([]model.StoredDocument, error) {
	if limit <= 0 {
		limit = 8
	}

	rows, err := s.pool.Query(ctx, sqlOwnDocuments, company, limit)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: own documents %s", company)
	}
	defer rows.Close()

	var docs []model.StoredDocument
	for rows.Next() {
		var d model.StoredDocument
		var docType, sourceType, retrievalMethod string
		if err := rows.Scan(&d.ID, &d.Company, &d.Sector, &docType, &d.Content,
			&d.SourceURL, &d.SourceTitle, &d.SourcePublisher, &d.PublishedAt,
			&d.RetrievedAt, &sourceType, &retrievalMethod, &d.ContentHash); err != nil {
			return nil, eris.Wrap(err, "postgres: scan document")
		}
		d.DocType = model.DocType(docType)
		d.SourceType = model.SourceType(sourceType)
		d.RetrievalMethod = model.RetrievalMethod(retrievalMethod)
		docs = append(docs, d)
	}
	return docs, eris.Wrap(rows.Err(), "postgres: own documents rows")
}

func (s *PostgresStore) PeerDocuments(ctx context.Context, company, sector string, embedding []float64, k int) ([]model.PeerCitation, error) {
	if k <= 0 {
		k = 5
	}

	rows, err := s.pool.Query(ctx,
		`SELECT content, company, 1 - (embedding <=> $1) AS similarity
		FROM esg_documents
		WHERE LOWER(sector) = LOWER($2)
		  AND LOWER(company) != LOWER($3)
		ORDER BY embedding <=> $1
		LIMIT $4`,
		pgvec(embedding), sector, company, k,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: peer documents %s/%s", company, sector)
	}
	defer rows.Close()

	var peers []model.PeerCitation
	for rows.Next() {
		var p model.PeerCitation
		if err := rows.Scan(&p.Content, &p.Company, &p.Similarity); err != nil {
			return nil, eris.Wrap(err, "postgres: scan peer")
		}
		peers = append(peers, p)
	}
	return peers, eris.Wrap(rows.Err(), "postgres: peer documents rows")
}

func (s *PostgresStore) InsertExamples(ctx context.Context, examples []model.GreenwashExample) (int64, error) {
	rows := make([][]any, 0, len(examples))
	for _, ex := range examples {
		id := ex.ID
		if id == "" {
			id = uuid.New().String()
		}
		rows = append(rows, []any{id, ex.Content, pgvec(ex.Embedding)})
	}

	n, err := db.CopyFrom(ctx, s.pool, "greenwash_examples", []string{"id", "content", "embedding"}, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: insert examples")
	}
	return n, nil
}

func (s *PostgresStore) NearestExamples(ctx context.Context, embedding []float64, k int) ([]model.Citation, error) {
	if k <= 0 {
		k = 5
	}

	rows, err := s.pool.Query(ctx, sqlNearestExamples, pgvec(embedding), k)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: nearest examples")
	}
	defer rows.Close()

	var matches []model.Citation
	for rows.Next() {
		var c model.Citation
		if err := rows.Scan(&c.Content, &c.Similarity); err != nil {
			return nil, eris.Wrap(err, "postgres: scan example")
		}
		matches = append(matches, c)
	}
	return matches, eris.Wrap(rows.Err(), "postgres: nearest examples rows")
}

func (s *PostgresStore) CountExamples(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM greenwash_examples`).Scan(&n)
	return n, eris.Wrap(err, "postgres: count examples")
}

// pgvec converts an embedding to the wire type pgx encodes for pgvector
// columns.
func pgvec(vec []float64) pgvector.Vector {
	f := make([]float32, len(vec))
	for i, v := range vec {
		f[i] = float32(v)
	}
	return pgvector.NewVector(f)
}
