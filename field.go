package canter

import (
	"context"
	"database/sql"
	"errors"

	"github.com/canterdb/canter/query"
)

// Field is the engine's view of a declared field: its storage id, bound
// tokenizer name, and corpus statistics as of the last time it was
// resolved in the current session.
type Field struct {
	ID                int64
	Name              string
	Tokenizer         string
	Documents         int64
	AvgDocumentsCount float64
}

func (f Field) toQueryField() query.Field {
	return query.Field{
		ID:                f.ID,
		Name:              f.Name,
		Documents:         f.Documents,
		AvgDocumentsCount: f.AvgDocumentsCount,
	}
}

// querier is satisfied by both *sql.DB and *sql.Tx, letting
// resolveField run against whichever the caller holds.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

const fieldLookupSQL = `SELECT
	canter_fields.id, canter_fields.tokenizer,
	COUNT(canter_documents.document_id), AVG(canter_documents.count)
FROM canter_fields LEFT JOIN canter_documents
ON canter_fields.id = canter_documents.field_id
WHERE canter_fields.name = ? GROUP BY canter_fields.id`

// resolveField looks up name, consulting (and populating) the Index's
// session-spanning cache first.
func (idx *Index) resolveField(ctx context.Context, q querier, name string) (Field, error) {
	idx.mu.Lock()
	if f, ok := idx.fields[name]; ok {
		cp := *f
		idx.mu.Unlock()
		return cp, nil
	}
	idx.mu.Unlock()

	var f Field
	f.Name = name

	var documents sql.NullInt64
	var avg sql.NullFloat64

	err := q.QueryRowContext(ctx, fieldLookupSQL, name).Scan(&f.ID, &f.Tokenizer, &documents, &avg)
	if errors.Is(err, sql.ErrNoRows) {
		return Field{}, errNoSuchField(name)
	}
	if err != nil {
		return Field{}, errSqlite(err)
	}
	if documents.Valid {
		f.Documents = documents.Int64
	}
	if avg.Valid {
		f.AvgDocumentsCount = avg.Float64
	}

	idx.mu.Lock()
	idx.fields[name] = &f
	idx.mu.Unlock()

	return f, nil
}

// AddField declares name bound to tokenizerName. Re-declaring an
// existing field with the same tokenizer succeeds idempotently; with a
// different tokenizer it fails with a FieldConflict error.
func (idx *Index) AddField(ctx context.Context, name, tokenizerName string) error {
	tx, err := idx.db.BeginTx(ctx, nil)
	if err != nil {
		return errSqlite(err)
	}
	defer tx.Rollback()

	var existing string
	err = tx.QueryRowContext(ctx, "SELECT tokenizer FROM canter_fields WHERE name = ?", name).Scan(&existing)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := tx.ExecContext(ctx, "INSERT INTO canter_fields (name, tokenizer) VALUES (?, ?)", name, tokenizerName); err != nil {
			return errSqlite(err)
		}
	case err != nil:
		return errSqlite(err)
	case existing != tokenizerName:
		return errFieldConflict(name, tokenizerName, existing)
	}

	if err := tx.Commit(); err != nil {
		return errSqlite(err)
	}
	return nil
}
