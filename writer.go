package canter

import (
	"context"
	"database/sql"
	"errors"
)

// Writer holds an exclusive transaction over the store plus mutable
// access to the owning Index's field registry and tokenizer set. A
// Writer obtained from Rewrite is destructive: all postings, terms and
// documents are cleared before the first AddText call is accepted.
type Writer struct {
	idx *Index
	tx  *sql.Tx

	stmts map[string]*sql.Stmt
}

// Rewrite opens a rewrite session: a single transaction that truncates
// terms, postings and documents, resets their autoincrement sequence
// state, and accepts AddText calls to repopulate them. Dropping a
// Writer without calling Commit (via Rollback, or simply letting it be
// discarded) abandons the rewrite.
func (idx *Index) Rewrite(ctx context.Context) (*Writer, error) {
	tx, err := idx.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errSqlite(err)
	}

	for _, stmt := range []string{
		"DELETE FROM canter_terms",
		"DELETE FROM canter_postings",
		"DELETE FROM canter_documents",
	} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			_ = tx.Rollback()
			return nil, errSqlite(err)
		}
	}

	var sequenceTableCount int
	err = tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM sqlite_schema WHERE name = 'sqlite_sequence'").Scan(&sequenceTableCount)
	if err != nil {
		_ = tx.Rollback()
		return nil, errSqlite(err)
	}

	if sequenceTableCount != 0 {
		const resetSeq = "DELETE FROM sqlite_sequence WHERE name IN ('canter_terms', 'canter_postings', 'canter_documents')"
		if _, err := tx.ExecContext(ctx, resetSeq); err != nil {
			_ = tx.Rollback()
			return nil, errSqlite(err)
		}
	}

	return &Writer{idx: idx, tx: tx, stmts: make(map[string]*sql.Stmt)}, nil
}

// Rollback discards the writer's transaction without applying any of
// its writes. Safe to call after Commit (a no-op in that case).
func (w *Writer) Rollback() error {
	if err := w.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return errSqlite(err)
	}
	return nil
}

// Tx exposes the writer's transaction for callers that need to run
// statements canter does not expose directly — the escape hatch the
// original canter gives callers via its Writer's Deref to the
// underlying transaction.
func (w *Writer) Tx() *sql.Tx {
	return w.tx
}

// prepare returns a transaction-scoped prepared statement for sqlText,
// caching it for the lifetime of the writer the way
// original_source/src/writer.rs's prepare_cached calls do.
func (w *Writer) prepare(ctx context.Context, sqlText string) (*sql.Stmt, error) {
	if stmt, ok := w.stmts[sqlText]; ok {
		return stmt, nil
	}

	stmt, err := w.tx.PrepareContext(ctx, sqlText)
	if err != nil {
		return nil, errSqlite(err)
	}

	w.stmts[sqlText] = stmt
	return stmt, nil
}

// AddText tokenizes text through fieldName's bound tokenizer and
// ingests the resulting tokens for documentID, resuming position
// numbering from the field/document pair's current count.
func (w *Writer) AddText(ctx context.Context, documentID int64, fieldName, text string) error {
	field, err := w.idx.resolveField(ctx, w.tx, fieldName)
	if err != nil {
		return err
	}

	tok, err := w.idx.resolveTokenizer(field.Tokenizer)
	if err != nil {
		return err
	}

	position, err := w.resetPosition(ctx, field.ID, documentID)
	if err != nil {
		return err
	}

	err = tok.Tokenize(text, func(token string) error {
		position++

		termID, err := w.addTerm(ctx, field.ID, token)
		if err != nil {
			return err
		}

		return w.addPosting(ctx, termID, documentID, position)
	})
	if err != nil {
		return err
	}

	return w.addDocument(ctx, field.ID, documentID, position)
}

func (w *Writer) resetPosition(ctx context.Context, fieldID, documentID int64) (int64, error) {
	stmt, err := w.prepare(ctx, "SELECT count FROM canter_documents WHERE field_id = ? AND document_id = ?")
	if err != nil {
		return 0, err
	}

	var count int64
	err = stmt.QueryRowContext(ctx, fieldID, documentID).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, errSqlite(err)
	}
	return count, nil
}

func (w *Writer) addTerm(ctx context.Context, fieldID int64, value string) (int64, error) {
	selectStmt, err := w.prepare(ctx, "SELECT id FROM canter_terms WHERE field_id = ? AND value = ?")
	if err != nil {
		return 0, err
	}

	var termID int64
	err = selectStmt.QueryRowContext(ctx, fieldID, value).Scan(&termID)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		insertStmt, err := w.prepare(ctx, "INSERT INTO canter_terms (field_id, value, count) VALUES (?, ?, 1)")
		if err != nil {
			return 0, err
		}

		res, err := insertStmt.ExecContext(ctx, fieldID, value)
		if err != nil {
			return 0, errSqlite(err)
		}

		id, err := res.LastInsertId()
		if err != nil {
			return 0, errSqlite(err)
		}
		return id, nil

	case err != nil:
		return 0, errSqlite(err)

	default:
		updateStmt, err := w.prepare(ctx, "UPDATE canter_terms SET count = count + 1 WHERE id = ?")
		if err != nil {
			return 0, err
		}

		if _, err := updateStmt.ExecContext(ctx, termID); err != nil {
			return 0, errSqlite(err)
		}
		return termID, nil
	}
}

func (w *Writer) addPosting(ctx context.Context, termID, documentID, position int64) error {
	stmt, err := w.prepare(ctx, "INSERT INTO canter_postings (term_id, document_id, position) VALUES (?, ?, ?)")
	if err != nil {
		return err
	}

	if _, err := stmt.ExecContext(ctx, termID, documentID, position); err != nil {
		return errSqlite(err)
	}
	return nil
}

func (w *Writer) addDocument(ctx context.Context, fieldID, documentID, count int64) error {
	const upsert = `INSERT INTO canter_documents (field_id, document_id, count) VALUES (?, ?, ?)
ON CONFLICT (field_id, document_id) DO UPDATE SET count = excluded.count`

	stmt, err := w.prepare(ctx, upsert)
	if err != nil {
		return err
	}

	if _, err := stmt.ExecContext(ctx, fieldID, documentID, count); err != nil {
		return errSqlite(err)
	}
	return nil
}

// Commit runs ANALYZE over the four tables, commits the transaction,
// and invalidates the Index's field-statistics cache.
func (w *Writer) Commit(ctx context.Context) error {
	for _, stmt := range []string{
		"ANALYZE canter_fields",
		"ANALYZE canter_terms",
		"ANALYZE canter_postings",
		"ANALYZE canter_documents",
	} {
		if _, err := w.tx.ExecContext(ctx, stmt); err != nil {
			return errSqlite(err)
		}
	}

	if err := w.tx.Commit(); err != nil {
		return errSqlite(err)
	}

	w.idx.invalidateFields()
	return nil
}
