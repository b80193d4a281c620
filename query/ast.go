// Package query implements the boolean query AST and its compilation to
// SQL fragments executed against the canter_* tables.
package query

import (
	"strconv"
	"strings"
)

// Field is the subset of field state the compiler needs to project a
// BM25 score: its storage id, its corpus-wide statistics, and its
// display name (carried only for String(), the query's own textual
// round-trip form).
type Field struct {
	ID                int64
	Name              string
	Documents         int64
	AvgDocumentsCount float64
}

// Query compiles to a SQL fragment yielding rows (document_id, score,
// terms) when score is true, or (document_id) when score is false.
type Query interface {
	ToSQL(score bool, sql *strings.Builder, params *[]any)
	String() string
}

// AllQuery matches every document ever posted.
type AllQuery struct{}

func (AllQuery) ToSQL(score bool, sql *strings.Builder, params *[]any) {
	if score {
		sql.WriteString("SELECT DISTINCT document_id, 1 AS score, 1 AS terms FROM canter_postings")
	} else {
		sql.WriteString("SELECT DISTINCT document_id FROM canter_postings")
	}
}

func (AllQuery) String() string { return "" }

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// TermQuery matches documents containing a single token in a field,
// scored with BM25.
type TermQuery struct {
	Field Field
	Boost float64
	Value string
}

// NewTermQuery builds a TermQuery for value in field, weighted by boost.
func NewTermQuery(field Field, boost float64, value string) *TermQuery {
	return &TermQuery{Field: field, Boost: boost, Value: value}
}

func (q *TermQuery) ToSQL(score bool, sql *strings.Builder, params *[]any) {
	if score {
		sql.WriteString("SELECT canter_postings.document_id AS document_id, ")
		sql.WriteString(formatFloat(q.Boost))
		sql.WriteString(" * canter_bm25(")
		sql.WriteString(strconv.FormatInt(q.Field.Documents, 10))
		sql.WriteString(", ")
		sql.WriteString(formatFloat(q.Field.AvgDocumentsCount))
		sql.WriteString(", canter_terms.count, COUNT(*), canter_documents.count) AS score, 1 AS terms")
	} else {
		sql.WriteString("SELECT canter_postings.document_id AS document_id")
	}

	writeTermJoin(sql, q.Field.ID)
	*params = append(*params, q.Value)

	if score {
		sql.WriteString("\nGROUP BY canter_postings.document_id, canter_terms.id, canter_documents.count")
	}
}

func (q *TermQuery) String() string {
	return q.Field.Name + ":" + escapeValue(q.Value)
}

// writeTermJoin appends the FROM/JOIN/WHERE boilerplate shared by
// TermQuery and PhraseQuery's per-token subqueries.
func writeTermJoin(sql *strings.Builder, fieldID int64) {
	sql.WriteString(" FROM canter_terms" +
		"\nJOIN canter_postings ON canter_terms.id = canter_postings.term_id" +
		"\nJOIN canter_documents ON canter_terms.field_id = canter_documents.field_id AND canter_postings.document_id = canter_documents.document_id" +
		"\nWHERE canter_terms.field_id = ")
	sql.WriteString(strconv.FormatInt(fieldID, 10))
	sql.WriteString(" AND canter_terms.value = ?")
}

// PhraseQuery matches documents where all of Values occur at
// consecutive positions in the field.
type PhraseQuery struct {
	Field  Field
	Boost  float64
	Values []string
}

// NewPhraseQuery builds a PhraseQuery, or an AllQuery-equivalent query
// when values is empty, per spec.
func NewPhraseQuery(field Field, boost float64, values []string) Query {
	if len(values) == 0 {
		return AllQuery{}
	}
	return &PhraseQuery{Field: field, Boost: boost, Values: values}
}

func (q *PhraseQuery) ToSQL(score bool, sql *strings.Builder, params *[]any) {
	n := len(q.Values)

	sql.WriteString("SELECT\nclause_0.document_id AS document_id")

	if score {
		sql.WriteString(",\n")
		sql.WriteString(formatFloat(q.Boost))
		sql.WriteString(" * (clause_0.score")
		for i := 1; i < n; i++ {
			sql.WriteString(" + clause_")
			sql.WriteString(strconv.Itoa(i))
			sql.WriteString(".score")
		}
		sql.WriteString(") AS score,\n")
		sql.WriteString(strconv.Itoa(n))
		sql.WriteString(" AS terms")
	}

	sql.WriteString("\nFROM (\n")
	q.writeTermSubquery(0, score, sql, params)
	sql.WriteString("\n) AS clause_0")

	for i := 1; i < n; i++ {
		sql.WriteString("\nJOIN (\n")
		q.writeTermSubquery(i, score, sql, params)
		sql.WriteString("\n) AS clause_")
		sql.WriteString(strconv.Itoa(i))
		sql.WriteString(" ON clause_")
		sql.WriteString(strconv.Itoa(i))
		sql.WriteString(".document_id = clause_0.document_id AND clause_")
		sql.WriteString(strconv.Itoa(i))
		sql.WriteString(".position - clause_0.position = ")
		sql.WriteString(strconv.Itoa(i))
	}
}

// writeTermSubquery emits the per-token subquery for phrase index idx,
// always projecting position (needed for the consecutive-position join
// predicate regardless of whether the overall query is scored).
func (q *PhraseQuery) writeTermSubquery(idx int, score bool, sql *strings.Builder, params *[]any) {
	sql.WriteString("SELECT canter_postings.document_id AS document_id, canter_postings.position AS position")

	if score {
		sql.WriteString(", canter_bm25(")
		sql.WriteString(strconv.FormatInt(q.Field.Documents, 10))
		sql.WriteString(", ")
		sql.WriteString(formatFloat(q.Field.AvgDocumentsCount))
		sql.WriteString(", canter_terms.count, COUNT(*) OVER (PARTITION BY canter_postings.document_id), canter_documents.count) AS score")
	}

	writeTermJoin(sql, q.Field.ID)
	*params = append(*params, q.Values[idx])
}

func (q *PhraseQuery) String() string {
	var b strings.Builder
	b.WriteString(q.Field.Name)
	b.WriteString(`:"`)
	b.WriteString(strings.Join(q.Values, " "))
	b.WriteString(`"`)
	return b.String()
}

// Occur is the boolean role a clause plays in a CombinedQuery.
type Occur int

const (
	Should Occur = iota
	Must
	MustNot
)

// Clause pairs an Occur role with the Query it governs.
type Clause struct {
	Occur Occur
	Query Query
}

// CombinedQuery is a boolean composition of should/must/must_not clauses.
type CombinedQuery struct {
	Should  []Query
	Must    []Query
	MustNot []Query
}

// NewCombinedQuery groups clauses by their Occur role.
func NewCombinedQuery(clauses []Clause) *CombinedQuery {
	q := &CombinedQuery{}
	for _, c := range clauses {
		switch c.Occur {
		case Must:
			q.Must = append(q.Must, c.Query)
		case MustNot:
			q.MustNot = append(q.MustNot, c.Query)
		default:
			q.Should = append(q.Should, c.Query)
		}
	}
	return q
}

func (q *CombinedQuery) ToSQL(score bool, sql *strings.Builder, params *[]any) {
	var body strings.Builder
	q.writePositive(score, &body, params)

	if len(q.MustNot) == 0 {
		sql.WriteString(body.String())
		return
	}

	sql.WriteString("SELECT\nbase.document_id AS document_id")
	if score {
		sql.WriteString(",\nbase.score AS score,\nbase.terms AS terms")
	}
	sql.WriteString("\nFROM (\n")
	sql.WriteString(body.String())
	sql.WriteString("\n) AS base")

	for i, mn := range q.MustNot {
		sql.WriteString("\nLEFT JOIN (\n")
		mn.ToSQL(false, sql, params)
		sql.WriteString("\n) AS exclude_")
		sql.WriteString(strconv.Itoa(i))
		sql.WriteString(" USING (document_id)")
	}

	sql.WriteString("\nWHERE TRUE")
	for i := range q.MustNot {
		sql.WriteString(" AND exclude_")
		sql.WriteString(strconv.Itoa(i))
		sql.WriteString(".document_id IS NULL")
	}
}

func (q *CombinedQuery) writePositive(score bool, sql *strings.Builder, params *[]any) {
	clauses := len(q.Must) + len(q.Should)

	if clauses == 0 {
		AllQuery{}.ToSQL(score, sql, params)
		return
	}

	if len(q.Must) >= 1 {
		sql.WriteString("SELECT\nclause_0.document_id AS document_id")
	} else {
		sql.WriteString("SELECT\nCOALESCE(NULL, clause_0.document_id")
		for i := 1; i < clauses; i++ {
			sql.WriteString(", clause_")
			sql.WriteString(strconv.Itoa(i))
			sql.WriteString(".document_id")
		}
		sql.WriteString(") AS document_id")
	}

	if score {
		sql.WriteString(",\n(IFNULL(clause_0.terms, 0)")
		for i := 1; i < clauses; i++ {
			sql.WriteString(" + IFNULL(clause_")
			sql.WriteString(strconv.Itoa(i))
			sql.WriteString(".terms, 0)")
		}
		sql.WriteString(") * (IFNULL(clause_0.score, 0)")
		for i := 1; i < clauses; i++ {
			sql.WriteString(" + IFNULL(clause_")
			sql.WriteString(strconv.Itoa(i))
			sql.WriteString(".score, 0)")
		}
		sql.WriteString(") AS score,\n1 AS terms")
	}

	sql.WriteString("\nFROM")

	if len(q.Must) >= 1 {
		sql.WriteString("\n(")
		q.Must[0].ToSQL(score, sql, params)
		sql.WriteString(") AS clause_0")

		for i := 1; i < len(q.Must); i++ {
			sql.WriteString("\nJOIN (")
			q.Must[i].ToSQL(score, sql, params)
			sql.WriteString(") AS clause_")
			sql.WriteString(strconv.Itoa(i))
			sql.WriteString(" USING (document_id)")
		}

		for j, s := range q.Should {
			idx := len(q.Must) + j
			sql.WriteString("\nLEFT JOIN (")
			s.ToSQL(score, sql, params)
			sql.WriteString(") AS clause_")
			sql.WriteString(strconv.Itoa(idx))
			sql.WriteString(" USING (document_id)")
		}
	} else {
		sql.WriteString("\n(")
		q.Should[0].ToSQL(score, sql, params)
		sql.WriteString(") AS clause_0")

		for i := 1; i < len(q.Should); i++ {
			sql.WriteString("\nFULL JOIN (")
			q.Should[i].ToSQL(score, sql, params)
			sql.WriteString(") AS clause_")
			sql.WriteString(strconv.Itoa(i))
			sql.WriteString(" USING (document_id)")
		}
	}
}

func (q *CombinedQuery) String() string {
	var parts []string
	for _, s := range q.Must {
		parts = append(parts, "+"+s.String())
	}
	for _, s := range q.Should {
		parts = append(parts, s.String())
	}
	for _, s := range q.MustNot {
		parts = append(parts, "-"+s.String())
	}
	return strings.Join(parts, " ")
}

// escapeValue quotes a value for textual round-trip if it contains
// whitespace.
func escapeValue(v string) string {
	if strings.IndexFunc(v, func(r rune) bool { return r == ' ' || r == '\t' || r == '\n' }) >= 0 {
		return `"` + v + `"`
	}
	return v
}
