package canter

import (
	"context"
	"database/sql"
	"math"
)

// schemaDDL bootstraps the four tables the engine uses. Executed once
// per Open via a driver-level multi-statement Exec (mattn/go-sqlite3
// runs a parameterless Exec through sqlite3_exec, which accepts a batch
// of statements, mirroring rusqlite's execute_batch in
// original_source/src/lib.rs).
const schemaDDL = `
CREATE TABLE IF NOT EXISTS canter_fields (
	id INTEGER PRIMARY KEY,
	name TEXT NOT NULL UNIQUE,
	tokenizer TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS canter_terms (
	id INTEGER PRIMARY KEY,
	field_id INTEGER NOT NULL,
	value TEXT NOT NULL,
	count INTEGER NOT NULL,
	UNIQUE (field_id, value)
);

CREATE TABLE IF NOT EXISTS canter_postings (
	term_id INTEGER NOT NULL,
	document_id INTEGER NOT NULL,
	position INTEGER NOT NULL,
	PRIMARY KEY (term_id, document_id, position)
) WITHOUT ROWID;

CREATE TABLE IF NOT EXISTS canter_documents (
	field_id INTEGER NOT NULL,
	document_id INTEGER NOT NULL,
	count INTEGER NOT NULL,
	PRIMARY KEY (field_id, document_id)
) WITHOUT ROWID;
`

func bootstrapSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schemaDDL); err != nil {
		return errSqlite(err)
	}
	return nil
}

// bm25Func builds the canter_bm25(N, avgdl, df, tf, dl) scalar function
// for the given tuning constants, per spec.md §4.4:
//
//	idf  = ln( (N - df + 0.5) / (df + 0.5) + 1 )
//	bm25 = idf * (tf*(k1+1)) / ( tf + k1*(1 - b + b*dl/avgdl) )
//
// df is passed the term's total occurrence count rather than its
// distinct-document frequency; this mismatch is intentional, preserved
// from original_source/src/lib.rs for scoring compatibility (see
// SPEC_FULL.md "Decided Open Questions").
func bm25Func(k1, b float64) func(documents int64, avgDocumentsCount float64, termsCount int64, postingsCount int64, documentsCount int64) float64 {
	return func(documents int64, avgDocumentsCount float64, termsCount int64, postingsCount int64, documentsCount int64) float64 {
		n := float64(documents)
		df := float64(termsCount)
		tf := float64(postingsCount)
		dl := float64(documentsCount)

		idf := math.Log((n-df+0.5)/(df+0.5) + 1.0)

		return idf * (tf * (k1 + 1.0)) / (tf + k1*(1.0-b+b*dl/avgDocumentsCount))
	}
}
