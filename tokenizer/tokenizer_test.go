package tokenizer

import (
	"errors"
	"reflect"
	"testing"
)

func collect(t *testing.T, tok Tokenizer, text string) []string {
	t.Helper()
	var got []string
	if err := tok.Tokenize(text, func(s string) error {
		got = append(got, s)
		return nil
	}); err != nil {
		t.Fatalf("Tokenize(%q): %v", text, err)
	}
	return got
}

func TestStub(t *testing.T) {
	got := collect(t, Stub{}, "FOO bar")
	want := []string{"FOO bar"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestSplitNonAlphanumeric(t *testing.T) {
	cases := []struct {
		text string
		want []string
	}{
		{"foo bar", []string{"foo", "bar"}},
		{"  foo-bar_baz  ", []string{"foo", "bar", "baz"}},
		{"", nil},
		{"---", nil},
		{"foo", []string{"foo"}},
	}

	for _, c := range cases {
		got := collect(t, SplitNonAlphanumeric{}, c.text)
		if !reflect.DeepEqual(got, c.want) {
			t.Errorf("SplitNonAlphanumeric(%q) = %v, want %v", c.text, got, c.want)
		}
	}
}

func TestLimitLength(t *testing.T) {
	l := NewLimitLength(3)

	got := collect(t, l, "ab")
	if !reflect.DeepEqual(got, []string{"ab"}) {
		t.Errorf("short input dropped unexpectedly: %v", got)
	}

	got = collect(t, l, "abcd")
	if got != nil {
		t.Errorf("over-limit input emitted, got %v", got)
	}
}

func TestToLowerCase(t *testing.T) {
	got := collect(t, NewToLowerCase(), "FOO Bar BAZ")
	want := []string{"foo bar baz"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestChain(t *testing.T) {
	c := Chain(SplitNonAlphanumeric{}, NewLimitLength(3))
	got := collect(t, c, "foo ab cd-efgh")
	want := []string{"foo", "ab", "cd"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestDefaultPipeline(t *testing.T) {
	got := collect(t, Default(), `FOO bar" then "BAZ`)
	want := []string{"foo", "bar", "then", "baz"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestEmitErrorAborts(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	err := Default().Tokenize("one two three", func(string) error {
		calls++
		if calls == 2 {
			return boom
		}
		return nil
	})
	if !errors.Is(err, boom) {
		t.Fatalf("got err %v, want %v", err, boom)
	}
	if calls != 2 {
		t.Fatalf("got %d calls, want 2", calls)
	}
}

func TestCloneIndependence(t *testing.T) {
	var original Tokenizer = NewToLowerCase()
	clone := original.Clone()

	if original == clone {
		t.Fatalf("Clone returned the same instance")
	}

	got := collect(t, clone, "MiXeD")
	want := []string{"mixed"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("clone produced %v, want %v", got, want)
	}
}
