// Package tokenizer implements the composable text-to-token pipeline
// built-ins are chained to produce, and consumed from, that drive field
// ingestion and query-value parsing.
package tokenizer

import (
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// EmitFunc receives one token produced during tokenization. It may be
// called any number of times and may fail, which aborts tokenization.
type EmitFunc func(token string) error

// Tokenizer consumes a text slice and emits zero or more token strings
// via EmitFunc. Implementations that carry per-instance mutable state
// (buffers, caches) must return an independent copy from Clone so that
// parallel ingestion workers can hold private instances.
type Tokenizer interface {
	Tokenize(text string, emit EmitFunc) error
	Clone() Tokenizer
}

// chained feeds the inner tokenizer's output stream into the outer
// tokenizer's input, and is itself a Tokenizer.
type chained struct {
	inner Tokenizer
	outer Tokenizer
}

// Chain composes two tokenizers such that inner's output feeds outer's
// input.
func Chain(inner, outer Tokenizer) Tokenizer {
	return &chained{inner: inner, outer: outer}
}

func (c *chained) Tokenize(text string, emit EmitFunc) error {
	return c.inner.Tokenize(text, func(t string) error {
		return c.outer.Tokenize(t, emit)
	})
}

func (c *chained) Clone() Tokenizer {
	return &chained{inner: c.inner.Clone(), outer: c.outer.Clone()}
}

// Stub emits the input unchanged.
type Stub struct{}

func (Stub) Tokenize(text string, emit EmitFunc) error { return emit(text) }
func (Stub) Clone() Tokenizer                          { return Stub{} }

// SplitNonAlphanumeric splits on runs of non-alphanumeric characters;
// empty fragments are dropped.
type SplitNonAlphanumeric struct{}

func (SplitNonAlphanumeric) Tokenize(text string, emit EmitFunc) error {
	start := -1
	for i, r := range text {
		if isAlphanumeric(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			if err := emit(text[start:i]); err != nil {
				return err
			}
			start = -1
		}
	}
	if start >= 0 {
		if err := emit(text[start:]); err != nil {
			return err
		}
	}
	return nil
}

func (SplitNonAlphanumeric) Clone() Tokenizer { return SplitNonAlphanumeric{} }

func isAlphanumeric(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsNumber(r)
}

// LimitLength emits the input only when its byte length is <= Limit;
// otherwise it drops it silently. This is a filter, not a truncator.
type LimitLength struct {
	Limit int
}

// DefaultLimitLength is the limit used by the default pipeline.
const DefaultLimitLength = 40

// NewLimitLength returns a LimitLength tokenizer stage with the given
// byte-length limit.
func NewLimitLength(limit int) LimitLength {
	return LimitLength{Limit: limit}
}

func (l LimitLength) Tokenize(text string, emit EmitFunc) error {
	if len(text) > l.Limit {
		return nil
	}
	return emit(text)
}

func (l LimitLength) Clone() Tokenizer { return l }

// ToLowerCase emits a lowercase copy of its input using Unicode case
// folding. Each instance owns its own caser so that cloned instances
// used by parallel workers never share mutable state.
type ToLowerCase struct {
	caser cases.Caser
}

// NewToLowerCase returns a ready-to-use ToLowerCase stage.
func NewToLowerCase() *ToLowerCase {
	return &ToLowerCase{caser: cases.Lower(language.Und)}
}

func (t *ToLowerCase) Tokenize(text string, emit EmitFunc) error {
	return emit(t.caser.String(text))
}

func (t *ToLowerCase) Clone() Tokenizer { return NewToLowerCase() }

// Default builds the engine's default pipeline:
// SplitNonAlphanumeric -> LimitLength(40) -> ToLowerCase.
func Default() Tokenizer {
	return Chain(Chain(SplitNonAlphanumeric{}, NewLimitLength(DefaultLimitLength)), NewToLowerCase())
}
