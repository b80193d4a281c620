package query

import (
	"strings"
	"testing"
)

func testField() Field {
	return Field{ID: 1, Name: "field", Documents: 4, AvgDocumentsCount: 2.5}
}

func TestTermQueryString(t *testing.T) {
	q := NewTermQuery(testField(), 1.0, "foo")
	if got, want := q.String(), "field:foo"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestPhraseQueryString(t *testing.T) {
	q := NewPhraseQuery(testField(), 1.0, []string{"bar", "baz"})
	if got, want := q.String(), `field:"bar baz"`; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestNewPhraseQueryEmptyIsAllQuery(t *testing.T) {
	q := NewPhraseQuery(testField(), 1.0, nil)
	if _, ok := q.(AllQuery); !ok {
		t.Fatalf("NewPhraseQuery(nil) = %T, want AllQuery", q)
	}
}

func TestCombinedQueryString(t *testing.T) {
	c := NewCombinedQuery([]Clause{
		{Occur: Must, Query: NewTermQuery(testField(), 1.0, "foo")},
		{Occur: Should, Query: NewTermQuery(testField(), 1.0, "bar")},
		{Occur: MustNot, Query: NewTermQuery(testField(), 1.0, "baz")},
	})

	want := "+field:foo field:bar -field:baz"
	if got := c.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestAllQuerySQL(t *testing.T) {
	var sql strings.Builder
	var params []any

	AllQuery{}.ToSQL(true, &sql, &params)
	if !strings.Contains(sql.String(), "DISTINCT document_id") {
		t.Errorf("scored AllQuery SQL missing DISTINCT document_id: %s", sql.String())
	}
	if len(params) != 0 {
		t.Errorf("AllQuery should bind no params, got %v", params)
	}
}

func TestTermQuerySQLBindsValue(t *testing.T) {
	var sql strings.Builder
	var params []any

	q := NewTermQuery(testField(), 2.0, "foo")
	q.ToSQL(true, &sql, &params)

	if len(params) != 1 || params[0] != "foo" {
		t.Fatalf("params = %v, want [\"foo\"]", params)
	}
	if !strings.Contains(sql.String(), "canter_bm25(") {
		t.Errorf("scored TermQuery SQL missing canter_bm25 call: %s", sql.String())
	}
	if !strings.Contains(sql.String(), "2 * canter_bm25(") {
		t.Errorf("boost not applied in SQL: %s", sql.String())
	}
}

func TestPhraseQuerySQLJoinsConsecutivePositions(t *testing.T) {
	var sql strings.Builder
	var params []any

	q := NewPhraseQuery(testField(), 1.0, []string{"bar", "baz"}).(*PhraseQuery)
	q.ToSQL(true, &sql, &params)

	if len(params) != 2 || params[0] != "bar" || params[1] != "baz" {
		t.Fatalf("params = %v, want [bar baz]", params)
	}
	if !strings.Contains(sql.String(), "clause_1.position - clause_0.position = 1") {
		t.Errorf("phrase join missing consecutive-position predicate: %s", sql.String())
	}
}

func TestCombinedQueryMustNotUsesAntiJoin(t *testing.T) {
	var sql strings.Builder
	var params []any

	c := NewCombinedQuery([]Clause{
		{Occur: Must, Query: NewTermQuery(testField(), 1.0, "bar")},
		{Occur: MustNot, Query: NewTermQuery(testField(), 1.0, "foo")},
	})
	c.ToSQL(true, &sql, &params)

	s := sql.String()
	if !strings.Contains(s, "LEFT JOIN (") || !strings.Contains(s, "exclude_0.document_id IS NULL") {
		t.Errorf("must_not SQL missing anti-join shape: %s", s)
	}
	if len(params) != 2 {
		t.Fatalf("params = %v, want 2 bound values", params)
	}
}

func TestCombinedQueryShouldOnlyUsesFullJoin(t *testing.T) {
	var sql strings.Builder
	var params []any

	c := NewCombinedQuery([]Clause{
		{Occur: Should, Query: NewTermQuery(testField(), 1.0, "foo")},
		{Occur: Should, Query: NewTermQuery(testField(), 1.0, "bar")},
	})
	c.ToSQL(true, &sql, &params)

	if !strings.Contains(sql.String(), "FULL JOIN") {
		t.Errorf("should-only composition missing FULL JOIN: %s", sql.String())
	}
}

func TestCombinedQueryEmptyIsAllQuery(t *testing.T) {
	var withEmpty, withAll strings.Builder
	var p1, p2 []any

	NewCombinedQuery(nil).ToSQL(true, &withEmpty, &p1)
	AllQuery{}.ToSQL(true, &withAll, &p2)

	if withEmpty.String() != withAll.String() {
		t.Errorf("empty CombinedQuery SQL = %q, want %q", withEmpty.String(), withAll.String())
	}
}
