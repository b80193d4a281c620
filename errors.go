package canter

import "fmt"

// Kind discriminates the error conditions the engine can raise.
type Kind int

const (
	// KindSqlite wraps an underlying storage failure.
	KindSqlite Kind = iota
	// KindFieldConflict is returned by AddField when a field already
	// exists bound to a different tokenizer.
	KindFieldConflict
	// KindNoSuchField is returned when a query or write names an
	// undeclared field.
	KindNoSuchField
	// KindNoSuchTokenizer is returned when a field references a
	// tokenizer name that was never registered.
	KindNoSuchTokenizer
	// KindMissingFieldName is returned by the query parser when a
	// clause has no ':'.
	KindMissingFieldName
	// KindUnclosedQuote is returned by the query parser when a phrase
	// value has no matching closing quote.
	KindUnclosedQuote
	// KindInvalidValue is returned when tokenizing a clause value
	// yields zero tokens.
	KindInvalidValue
	// KindDisconnectedWriter is returned to a worker when the writer
	// side of the parallel ingestion channel has gone away.
	KindDisconnectedWriter
	// KindDisconnectedSource is returned to the writer when a worker
	// has gone away before the channel was drained.
	KindDisconnectedSource
)

func (k Kind) String() string {
	switch k {
	case KindSqlite:
		return "sqlite"
	case KindFieldConflict:
		return "field conflict"
	case KindNoSuchField:
		return "no such field"
	case KindNoSuchTokenizer:
		return "no such tokenizer"
	case KindMissingFieldName:
		return "missing field name"
	case KindUnclosedQuote:
		return "unclosed quote"
	case KindInvalidValue:
		return "invalid value"
	case KindDisconnectedWriter:
		return "disconnected writer"
	case KindDisconnectedSource:
		return "disconnected source"
	default:
		return "unknown"
	}
}

// Error is the single error type the engine raises. Its fields are only
// populated for the Kind that produced it; see the Kind constants.
type Error struct {
	Kind Kind

	Name      string // NoSuchField, NoSuchTokenizer, FieldConflict
	Tokenizer string // FieldConflict: the tokenizer the caller requested
	Existing  string // FieldConflict: the tokenizer already bound
	Text      string // MissingFieldName, UnclosedQuote, InvalidValue

	Err error // KindSqlite: the wrapped storage error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindSqlite:
		return fmt.Sprintf("sqlite error: %v", e.Err)
	case KindFieldConflict:
		return fmt.Sprintf("field %q already defined, but using tokenizer %q instead of %q", e.Name, e.Existing, e.Tokenizer)
	case KindNoSuchField:
		return fmt.Sprintf("no such field: %s", e.Name)
	case KindNoSuchTokenizer:
		return fmt.Sprintf("no such tokenizer: %s", e.Name)
	case KindMissingFieldName:
		return fmt.Sprintf("missing field name: %s", e.Text)
	case KindUnclosedQuote:
		return fmt.Sprintf("unclosed quote: %s", e.Text)
	case KindInvalidValue:
		return fmt.Sprintf("invalid value: %s", e.Text)
	case KindDisconnectedWriter:
		return "writer disconnected"
	case KindDisconnectedSource:
		return "source disconnected"
	default:
		return "canter: unknown error"
	}
}

func (e *Error) Unwrap() error { return e.Err }

func errSqlite(err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: KindSqlite, Err: err}
}

func errFieldConflict(name, tokenizer, existing string) error {
	return &Error{Kind: KindFieldConflict, Name: name, Tokenizer: tokenizer, Existing: existing}
}

func errNoSuchField(name string) error {
	return &Error{Kind: KindNoSuchField, Name: name}
}

func errNoSuchTokenizer(name string) error {
	return &Error{Kind: KindNoSuchTokenizer, Name: name}
}

func errMissingFieldName(text string) error {
	return &Error{Kind: KindMissingFieldName, Text: text}
}

func errUnclosedQuote(text string) error {
	return &Error{Kind: KindUnclosedQuote, Text: text}
}

func errInvalidValue(text string) error {
	return &Error{Kind: KindInvalidValue, Text: text}
}

func errDisconnectedWriter() error {
	return &Error{Kind: KindDisconnectedWriter}
}

func errDisconnectedSource() error {
	return &Error{Kind: KindDisconnectedSource}
}
