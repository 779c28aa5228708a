//-------------------------------------------------------------------------
//
// pgEdge RAG Server
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package database

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"github.com/pgEdge/quill-rag-server/internal/config"
	"github.com/pgEdge/quill-rag-server/internal/documents"
	"github.com/pgEdge/quill-rag-server/internal/llm"
)

// parseTableIdentifier splits a table name into schema and table parts.
// Supports formats: "table", "schema.table"
func parseTableIdentifier(table string) pgx.Identifier {
	parts := strings.Split(table, ".")
	return pgx.Identifier(parts)
}

// tableQueries holds the SQL for one configured table layout.
type tableQueries struct {
	table   string
	insert  string
	exists  string
	count   string
	nearest string
}

func newTableQueries(cfg config.StoreConfig) tableQueries {
	table := parseTableIdentifier(cfg.Table).Sanitize()
	id := pgx.Identifier{cfg.IDColumn}.Sanitize()
	doc := pgx.Identifier{cfg.TextColumn}.Sanitize()
	vec := pgx.Identifier{cfg.VectorColumn}.Sanitize()

	return tableQueries{
		table: table,
		insert: fmt.Sprintf(
			"INSERT INTO %s (%s, %s) VALUES ($1, $2) RETURNING %s",
			table, doc, vec, id),
		exists: fmt.Sprintf(
			"SELECT EXISTS (SELECT 1 FROM %s WHERE %s = $1)",
			table, doc),
		count: fmt.Sprintf("SELECT COUNT(*) FROM %s", table),
		// The <=> operator returns cosine distance
		nearest: fmt.Sprintf(`
		SELECT
			%s AS id,
			%s AS doc,
			%s <=> $1 AS distance
		FROM %s
		WHERE %s <=> $1 < $2
		ORDER BY %s <=> $1
		LIMIT $3`,
			id, doc, vec, table, vec, vec),
	}
}

// DocumentTable stores documents in a PostgreSQL table with a pgvector
// column. The table must already exist.
type DocumentTable struct {
	pool    *Pool
	cfg     config.StoreConfig
	queries tableQueries
}

// NewDocumentTable creates a backend over the configured table.
func NewDocumentTable(pool *Pool, cfg config.StoreConfig) *DocumentTable {
	return &DocumentTable{
		pool:    pool,
		cfg:     cfg,
		queries: newTableQueries(cfg),
	}
}

// Insert stores a document and returns its generated identifier.
func (t *DocumentTable) Insert(ctx context.Context, text string, embedding []float32) (int64, error) {
	var id int64
	err := t.pool.pool.QueryRow(ctx, t.queries.insert, text, pgvector.NewVector(embedding)).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert into %s failed: %w", t.queries.table, err)
	}
	return id, nil
}

// Exists reports whether a row with exactly this text is present.
func (t *DocumentTable) Exists(ctx context.Context, text string) (bool, error) {
	var ok bool
	if err := t.pool.pool.QueryRow(ctx, t.queries.exists, text).Scan(&ok); err != nil {
		return false, fmt.Errorf("exists query failed: %w", err)
	}
	return ok, nil
}

// Count returns the number of rows.
func (t *DocumentTable) Count(ctx context.Context) (int, error) {
	var n int64
	if err := t.pool.pool.QueryRow(ctx, t.queries.count).Scan(&n); err != nil {
		return 0, fmt.Errorf("count query failed: %w", err)
	}
	return int(n), nil
}

// Nearest returns up to limit rows closer than threshold, closest first.
func (t *DocumentTable) Nearest(
	ctx context.Context,
	embedding []float32,
	threshold float64,
	limit int,
) ([]documents.Match, error) {
	rows, err := t.pool.pool.Query(ctx, t.queries.nearest,
		pgvector.NewVector(embedding), threshold, limit)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}
	defer rows.Close()

	var matches []documents.Match
	for rows.Next() {
		var m documents.Match
		if err := rows.Scan(&m.ID, &m.Text, &m.Distance); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		matches = append(matches, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return matches, nil
}

// VectorDimensions returns the declared size of the vector column, or 0
// when the column has no fixed dimension.
func (t *DocumentTable) VectorDimensions(ctx context.Context) (int, error) {
	var typmod int32
	err := t.pool.pool.QueryRow(ctx, `
		SELECT atttypmod
		FROM pg_attribute
		WHERE attrelid = $1::text::regclass
		  AND attname = $2
		  AND NOT attisdropped`,
		t.queries.table, t.cfg.VectorColumn,
	).Scan(&typmod)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("column %s not found in %s", t.cfg.VectorColumn, t.queries.table)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read vector column type: %w", err)
	}
	if typmod < 0 {
		return 0, nil
	}
	return int(typmod), nil
}

// CheckDimensions fails with a DimensionMismatchError when the vector
// column was declared with a size other than the one model produces.
func (t *DocumentTable) CheckDimensions(ctx context.Context, model string, dims int) error {
	declared, err := t.VectorDimensions(ctx)
	if err != nil {
		return err
	}
	if declared != 0 && declared != dims {
		return &llm.DimensionMismatchError{Model: model, Expected: declared, Actual: dims}
	}
	return nil
}
