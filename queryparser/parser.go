// Package queryparser implements the textual query grammar described in
// spec.md §4.5: whitespace-separated, optionally occur-prefixed,
// field-qualified clauses with quoted-phrase or bare-token values.
package queryparser

import (
	"fmt"

	"github.com/canterdb/canter/query"
	"github.com/canterdb/canter/tokenizer"
)

// ErrorKind discriminates the parse failures this package raises.
type ErrorKind int

const (
	MissingFieldName ErrorKind = iota
	UnclosedQuote
	InvalidValue
)

// ParseError is returned for grammar-level failures; FieldResolver
// failures (no such field/tokenizer) are returned unwrapped, as produced
// by the resolver itself.
type ParseError struct {
	Kind ErrorKind
	Text string
}

func (e *ParseError) Error() string {
	switch e.Kind {
	case MissingFieldName:
		return fmt.Sprintf("missing field name: %s", e.Text)
	case UnclosedQuote:
		return fmt.Sprintf("unclosed quote: %s", e.Text)
	case InvalidValue:
		return fmt.Sprintf("invalid value: %s", e.Text)
	default:
		return "query parse error"
	}
}

// FieldResolver resolves a field name to its compiler-facing stats, its
// bound tokenizer, and its configured boost.
type FieldResolver interface {
	ResolveField(name string) (query.Field, tokenizer.Tokenizer, float64, error)
}

// Parse compiles query text into an AST per the grammar in spec.md §4.5.
// An empty (or all-whitespace) text parses to an empty CombinedQuery,
// which compiles identically to AllQuery.
func Parse(text string, resolver FieldResolver) (query.Query, error) {
	text = trimLeftSpace(text)

	var clauses []query.Clause

	for text != "" {
		occur, rest := parseOccur(text)

		fieldName, rest, err := parseFieldName(rest)
		if err != nil {
			return nil, err
		}

		value, rest, err := parseValue(rest)
		if err != nil {
			return nil, err
		}

		field, tok, boost, err := resolver.ResolveField(fieldName)
		if err != nil {
			return nil, err
		}

		var tokens []string
		if err := tok.Tokenize(value, func(t string) error {
			tokens = append(tokens, t)
			return nil
		}); err != nil {
			return nil, err
		}

		var q query.Query
		switch len(tokens) {
		case 0:
			return nil, &ParseError{Kind: InvalidValue, Text: value}
		case 1:
			q = query.NewTermQuery(field, boost, tokens[0])
		default:
			q = query.NewPhraseQuery(field, boost, tokens)
		}

		clauses = append(clauses, query.Clause{Occur: occur, Query: q})
		text = trimLeftSpace(rest)
	}

	return query.NewCombinedQuery(clauses), nil
}

func isASCIISpace(b byte) bool {
	switch b {
	case ' ', '\t', '\n', '\r', '\f', '\v':
		return true
	default:
		return false
	}
}

func trimLeftSpace(text string) string {
	i := 0
	for i < len(text) && isASCIISpace(text[i]) {
		i++
	}
	return text[i:]
}

// parseOccur reads an optional leading '+' (Must) or '-' (MustNot); its
// absence means Should.
func parseOccur(text string) (query.Occur, string) {
	if len(text) == 0 {
		return query.Should, text
	}
	switch text[0] {
	case '+':
		return query.Must, text[1:]
	case '-':
		return query.MustNot, text[1:]
	default:
		return query.Should, text
	}
}

// parseFieldName splits text at its first ':', failing if none exists.
func parseFieldName(text string) (string, string, error) {
	for i := 0; i < len(text); i++ {
		if text[i] == ':' {
			return text[:i], text[i+1:], nil
		}
	}
	return "", "", &ParseError{Kind: MissingFieldName, Text: text}
}

// parseValue reads a quoted phrase (running to the next '"') or, absent
// an opening quote, a single run of non-whitespace bytes.
func parseValue(text string) (string, string, error) {
	if len(text) > 0 && text[0] == '"' {
		for i := 1; i < len(text); i++ {
			if text[i] == '"' {
				return text[1:i], text[i+1:], nil
			}
		}
		return "", "", &ParseError{Kind: UnclosedQuote, Text: text}
	}

	for i := 0; i < len(text); i++ {
		if isASCIISpace(text[i]) {
			return text[:i], text[i:], nil
		}
	}
	return text, "", nil
}
