package queryparser

import (
	"errors"
	"testing"

	"github.com/canterdb/canter/query"
	"github.com/canterdb/canter/tokenizer"
)

type stubResolver struct {
	field query.Field
	tok   tokenizer.Tokenizer
	boost float64
	err   error
}

func (r stubResolver) ResolveField(name string) (query.Field, tokenizer.Tokenizer, float64, error) {
	if r.err != nil {
		return query.Field{}, nil, 0, r.err
	}
	f := r.field
	f.Name = name
	return f, r.tok, r.boost, nil
}

func defaultResolver() stubResolver {
	return stubResolver{
		field: query.Field{ID: 1, Documents: 4, AvgDocumentsCount: 2.5},
		tok:   tokenizer.Default(),
		boost: 1.0,
	}
}

func TestParseEmptyIsAllQueryEquivalent(t *testing.T) {
	q, err := Parse("   ", defaultResolver())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got, want := q.String(), ""; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestParseSingleTermBecomesTermQuery(t *testing.T) {
	q, err := Parse("field:foo", defaultResolver())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if _, ok := q.(*query.CombinedQuery).Should[0].(*query.TermQuery); !ok {
		t.Fatalf("got %T, want *query.TermQuery in Should", q.(*query.CombinedQuery).Should[0])
	}
}

func TestParseMultiTokenValueBecomesPhraseQuery(t *testing.T) {
	q, err := Parse(`field:"foo bar"`, defaultResolver())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	c := q.(*query.CombinedQuery)
	if _, ok := c.Should[0].(*query.PhraseQuery); !ok {
		t.Fatalf("got %T, want *query.PhraseQuery", c.Should[0])
	}
}

func TestParseOccurPrefixes(t *testing.T) {
	q, err := Parse("+field:foo field:bar -field:baz", defaultResolver())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	c := q.(*query.CombinedQuery)
	if len(c.Must) != 1 || len(c.Should) != 1 || len(c.MustNot) != 1 {
		t.Fatalf("Must=%d Should=%d MustNot=%d, want 1/1/1", len(c.Must), len(c.Should), len(c.MustNot))
	}
}

func TestParseMissingFieldName(t *testing.T) {
	_, err := Parse("foo", defaultResolver())
	var pe *ParseError
	if !errors.As(err, &pe) || pe.Kind != MissingFieldName {
		t.Fatalf("err = %v, want MissingFieldName", err)
	}
}

func TestParseUnclosedQuote(t *testing.T) {
	_, err := Parse(`field:"foo`, defaultResolver())
	var pe *ParseError
	if !errors.As(err, &pe) || pe.Kind != UnclosedQuote {
		t.Fatalf("err = %v, want UnclosedQuote", err)
	}
}

func TestParseInvalidValueTokenizesToNothing(t *testing.T) {
	_, err := Parse("field:---", defaultResolver())
	var pe *ParseError
	if !errors.As(err, &pe) || pe.Kind != InvalidValue {
		t.Fatalf("err = %v, want InvalidValue", err)
	}
}

func TestParsePropagatesResolverError(t *testing.T) {
	boom := errors.New("no such field")
	_, err := Parse("field:foo", stubResolver{err: boom})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
}

func TestParseRoundTrip(t *testing.T) {
	q, err := Parse(`+field:foo field:bar -field:"baz qux"`, defaultResolver())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	reparsed, err := Parse(q.String(), defaultResolver())
	if err != nil {
		t.Fatalf("Parse(reserialized): %v", err)
	}

	if reparsed.String() != q.String() {
		t.Errorf("round trip mismatch: %q != %q", reparsed.String(), q.String())
	}
}
