package storage

import (
	"context"
	"fmt"
	"time"
)

// Document is one corpus chunk.
type Document struct {
	ID         int64
	Source     string
	ChunkIndex int
	Content    string
}

// ReplaceDocuments stores chunks as the full content of source, dropping
// any chunks previously ingested from it.
func (db *DB) ReplaceDocuments(ctx context.Context, source string, chunks []string) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE source = ?`, source); err != nil {
		return fmt.Errorf("failed to clear documents for %s: %w", source, err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO documents (source, chunk_index, content, ingested_at) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	now := time.Now().Unix()
	for i, c := range chunks {
		if _, err := stmt.ExecContext(ctx, source, i, c, now); err != nil {
			return fmt.Errorf("failed to insert chunk %d of %s: %w", i, source, err)
		}
	}
	return tx.Commit()
}

// AllDocuments returns every chunk ordered by source and position.
func (db *DB) AllDocuments(ctx context.Context) ([]Document, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT id, source, chunk_index, content FROM documents ORDER BY source, chunk_index`)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var docs []Document
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.ID, &d.Source, &d.ChunkIndex, &d.Content); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// CountDocuments returns the number of stored chunks.
func (db *DB) CountDocuments(ctx context.Context) (int, error) {
	var n int
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return n, nil
}

// SearchDocuments returns up to limit chunks containing term literally.
// SQLite LIKE folds ASCII case only.
func (db *DB) SearchDocuments(ctx context.Context, term string, limit int) ([]Document, error) {
	if term == "" || limit <= 0 {
		return nil, nil
	}
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, source, chunk_index, content FROM documents WHERE content LIKE ? ESCAPE '\' ORDER BY id LIMIT ?`,
		"%"+escapeLike(term)+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search documents: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var docs []Document
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.ID, &d.Source, &d.ChunkIndex, &d.Content); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// DeleteAllDocuments removes every stored chunk and reports how many went.
func (db *DB) DeleteAllDocuments(ctx context.Context) (int64, error) {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM documents`)
	if err != nil {
		return 0, fmt.Errorf("failed to delete documents: %w", err)
	}
	return res.RowsAffected()
}
