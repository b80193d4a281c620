package canter

import (
	"context"
	"database/sql"
	"strconv"
	"strings"

	"github.com/canterdb/canter/query"
	"github.com/canterdb/canter/queryparser"
	"github.com/canterdb/canter/tokenizer"
)

// Reader is a read-only handle sharing the Index's connection pool. Its
// methods add entries to the field-statistics cache as fields are looked
// up but never invalidate it, so multiple Readers and Writers may coexist
// as long as SQLite's own transaction semantics permit it.
type Reader struct {
	idx *Index
}

// Read opens a Reader over idx.
func (idx *Index) Read() *Reader {
	return &Reader{idx: idx}
}

// DB exposes the underlying connection pool for callers that need to run
// queries canter does not expose directly — the escape hatch the
// original canter gives callers via its Reader's Deref to the
// connection it was opened from.
func (r *Reader) DB() *sql.DB {
	return r.idx.db
}

// resolverAdapter bridges Index field/tokenizer/boost lookups to the
// queryparser.FieldResolver interface without the queryparser package
// importing canter.
type resolverAdapter struct {
	ctx context.Context
	r   *Reader
}

func (a *resolverAdapter) ResolveField(name string) (query.Field, tokenizer.Tokenizer, float64, error) {
	field, err := a.r.idx.resolveField(a.ctx, a.r.idx.db, name)
	if err != nil {
		return query.Field{}, nil, 0, err
	}

	tok, err := a.r.idx.resolveTokenizer(field.Tokenizer)
	if err != nil {
		return query.Field{}, nil, 0, err
	}

	return field.toQueryField(), tok, a.r.idx.boostFor(name), nil
}

// Parse compiles text into a query.Query, resolving field references
// against r's Index. Grammar failures surface as *Error with
// KindMissingFieldName, KindUnclosedQuote or KindInvalidValue; an
// unknown field or tokenizer surfaces as KindNoSuchField or
// KindNoSuchTokenizer.
func (r *Reader) Parse(ctx context.Context, text string) (query.Query, error) {
	resolver := &resolverAdapter{ctx: ctx, r: r}

	q, err := queryparser.Parse(text, resolver)
	if err == nil {
		return q, nil
	}

	var pe *queryparser.ParseError
	if asParseError(err, &pe) {
		switch pe.Kind {
		case queryparser.MissingFieldName:
			return nil, errMissingFieldName(pe.Text)
		case queryparser.UnclosedQuote:
			return nil, errUnclosedQuote(pe.Text)
		case queryparser.InvalidValue:
			return nil, errInvalidValue(pe.Text)
		}
	}

	// Not a grammar error: a FieldResolver failure, already a *Error.
	return nil, err
}

func asParseError(err error, target **queryparser.ParseError) bool {
	pe, ok := err.(*queryparser.ParseError)
	if ok {
		*target = pe
	}
	return ok
}

// Result is one row of a Search response.
type Result struct {
	DocumentID int64
	Score      float64
}

// SearchOptions bounds and optionally redirects a Search call, per
// spec.md §4.6's `search(query, limit?, offset?, temp?)`.
type SearchOptions struct {
	// Limit caps the number of results returned. Zero means unbounded.
	Limit int
	// Offset skips this many leading rows, applied after ordering and
	// before Limit. Zero means no skip.
	Offset int
	// Temp, when non-empty, redirects the result set into a new
	// temporary table of this name (`CREATE TEMPORARY TABLE <temp> AS
	// ...`) instead of returning rows. Search then returns (nil, nil).
	Temp string
}

// Search wraps q's compiled, scored SQL exactly as spec.md §4.6
// describes: `SELECT document_id, score FROM (<compiled>) ORDER BY
// score DESC [LIMIT] [OFFSET]`, optionally materialized into a
// temporary table instead of read back as rows.
func (r *Reader) Search(ctx context.Context, q query.Query, opts SearchOptions) ([]Result, error) {
	var sqlBody strings.Builder
	var params []any

	if opts.Temp != "" {
		sqlBody.WriteString("CREATE TEMPORARY TABLE ")
		sqlBody.WriteString(quoteIdent(opts.Temp))
		sqlBody.WriteString(" AS ")
	}

	sqlBody.WriteString("SELECT document_id, score FROM (\n")
	q.ToSQL(true, &sqlBody, &params)
	sqlBody.WriteString("\n) ORDER BY score DESC")

	if opts.Limit > 0 {
		sqlBody.WriteString(" LIMIT ")
		sqlBody.WriteString(strconv.Itoa(opts.Limit))
	} else if opts.Offset > 0 {
		// SQLite only accepts OFFSET after a LIMIT; -1 means unbounded.
		sqlBody.WriteString(" LIMIT -1")
	}
	if opts.Offset > 0 {
		sqlBody.WriteString(" OFFSET ")
		sqlBody.WriteString(strconv.Itoa(opts.Offset))
	}

	if opts.Temp != "" {
		if _, err := r.idx.db.ExecContext(ctx, sqlBody.String(), params...); err != nil {
			return nil, errSqlite(err)
		}
		return nil, nil
	}

	rows, err := r.idx.db.QueryContext(ctx, sqlBody.String(), params...)
	if err != nil {
		return nil, errSqlite(err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var res Result
		if err := rows.Scan(&res.DocumentID, &res.Score); err != nil {
			return nil, errSqlite(err)
		}
		results = append(results, res)
	}
	if err := rows.Err(); err != nil {
		return nil, errSqlite(err)
	}

	return results, nil
}

// SearchText parses text and runs it against Search, the convenience
// path most callers (including cmd/cantercli) use in place of
// Parse+Search.
func (r *Reader) SearchText(ctx context.Context, text string, opts SearchOptions) ([]Result, error) {
	q, err := r.Parse(ctx, text)
	if err != nil {
		return nil, err
	}
	return r.Search(ctx, q, opts)
}

// SearchAll materializes q's unscored document set into a new temporary
// table named temp, per spec.md §4.6's `search_all(query, temp)`.
func (r *Reader) SearchAll(ctx context.Context, q query.Query, temp string) error {
	var sqlBody strings.Builder
	var params []any

	sqlBody.WriteString("CREATE TEMPORARY TABLE ")
	sqlBody.WriteString(quoteIdent(temp))
	sqlBody.WriteString(" AS SELECT document_id FROM (\n")
	q.ToSQL(false, &sqlBody, &params)
	sqlBody.WriteString("\n)")

	if _, err := r.idx.db.ExecContext(ctx, sqlBody.String(), params...); err != nil {
		return errSqlite(err)
	}
	return nil
}

// quoteIdent double-quotes name as a SQL identifier, doubling any
// embedded double quotes, so a caller-supplied temporary table name
// cannot break out of the generated DDL.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
