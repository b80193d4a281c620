package canter

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"
)

func openTestIndex(t *testing.T) *Index {
	t.Helper()

	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "canter.db")

	idx, err := Open(ctx, dbPath, DefaultConfig())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = idx.Close() })

	return idx
}

// buildScenarioIndex ingests the §8 corpus: doc 1 gets two add_text calls
// ("FOO bar" then "BAZ"), docs 2-4 get one call each.
func buildScenarioIndex(t *testing.T) *Index {
	t.Helper()
	ctx := context.Background()

	idx := openTestIndex(t)

	if err := idx.AddField(ctx, "field", "default"); err != nil {
		t.Fatalf("AddField: %v", err)
	}

	w, err := idx.Rewrite(ctx)
	if err != nil {
		t.Fatalf("Rewrite: %v", err)
	}

	for _, call := range []struct {
		doc  int64
		text string
	}{
		{1, "FOO bar"},
		{1, "BAZ"},
		{2, "foo"},
		{3, "BAR"},
		{4, "baz"},
	} {
		if err := w.AddText(ctx, call.doc, "field", call.text); err != nil {
			t.Fatalf("AddText(%d, %q): %v", call.doc, call.text, err)
		}
	}

	if err := w.Commit(ctx); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	return idx
}

func assertResults(t *testing.T, got []Result, want []Result) {
	t.Helper()

	if len(got) != len(want) {
		t.Fatalf("got %d results %v, want %d %v", len(got), got, len(want), want)
	}
	for i := range want {
		if got[i].DocumentID != want[i].DocumentID {
			t.Errorf("result[%d].DocumentID = %d, want %d", i, got[i].DocumentID, want[i].DocumentID)
		}
		if math.Abs(got[i].Score-want[i].Score) > 1e-9 {
			t.Errorf("result[%d].Score = %v, want %v", i, got[i].Score, want[i].Score)
		}
	}
}

func TestScenarioQueries(t *testing.T) {
	idx := buildScenarioIndex(t)
	ctx := context.Background()

	cases := []struct {
		query string
		want  []Result
	}{
		{
			"field:foo field:bar",
			[]Result{{1, 1.8483924814931874}, {2, 0.8317766166719343}, {3, 0.8317766166719343}},
		},
		{
			"+field:foo +field:bar +field:baz",
			[]Result{{1, 4.1588830833596715}},
		},
		{
			"+field:foo field:bar",
			[]Result{{1, 1.8483924814931874}, {2, 0.8317766166719343}},
		},
		{
			"+field:bar -field:foo -field:baz",
			[]Result{{3, 0.8317766166719343}},
		},
		{
			"-field:foo",
			[]Result{{3, 1.0}, {4, 1.0}},
		},
		{
			`field:"bar baz"`,
			[]Result{{1, 1.8483924814931874}},
		},
		{
			`field:"foo baz"`,
			nil,
		},
		{
			`field:foo -field:"bar baz"`,
			[]Result{{2, 0.8317766166719343}},
		},
	}

	for _, c := range cases {
		got, err := idx.Read().SearchText(ctx, c.query, SearchOptions{})
		if err != nil {
			t.Fatalf("SearchText(%q): %v", c.query, err)
		}
		assertResults(t, got, c.want)
	}
}

func TestEmptyIndexReturnsNoResults(t *testing.T) {
	idx := openTestIndex(t)
	ctx := context.Background()

	if err := idx.AddField(ctx, "field", "default"); err != nil {
		t.Fatalf("AddField: %v", err)
	}

	got, err := idx.Read().SearchText(ctx, "field:foo", SearchOptions{})
	if err != nil {
		t.Fatalf("SearchText: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("got %v, want empty", got)
	}
}

func TestSearchAllQueryMatchesEveryDocument(t *testing.T) {
	idx := buildScenarioIndex(t)
	ctx := context.Background()

	got, err := idx.Read().SearchText(ctx, "", SearchOptions{})
	if err != nil {
		t.Fatalf("SearchText: %v", err)
	}

	if len(got) != 4 {
		t.Fatalf("got %d results, want 4", len(got))
	}
	for _, r := range got {
		if r.Score != 1 {
			t.Errorf("doc %d score = %v, want 1", r.DocumentID, r.Score)
		}
	}
}

func TestAddFieldIsIdempotentOnMatch(t *testing.T) {
	idx := openTestIndex(t)
	ctx := context.Background()

	if err := idx.AddField(ctx, "field", "default"); err != nil {
		t.Fatalf("AddField: %v", err)
	}
	if err := idx.AddField(ctx, "field", "default"); err != nil {
		t.Fatalf("re-AddField with same tokenizer should be a no-op, got: %v", err)
	}
}

func TestAddFieldConflictOnMismatch(t *testing.T) {
	idx := openTestIndex(t)
	ctx := context.Background()

	if err := idx.AddField(ctx, "field", "default"); err != nil {
		t.Fatalf("AddField: %v", err)
	}

	err := idx.AddField(ctx, "field", "stub")
	var canterErr *Error
	if err == nil {
		t.Fatal("expected a FieldConflict error, got nil")
	}
	if !errors.As(err, &canterErr) || canterErr.Kind != KindFieldConflict {
		t.Fatalf("err = %v, want KindFieldConflict", err)
	}
}

func TestAddManyMatchesSequentialIngestion(t *testing.T) {
	ctx := context.Background()

	sequential := buildScenarioIndex(t)
	seqResults, err := sequential.Read().SearchText(ctx, "field:foo field:bar", SearchOptions{})
	if err != nil {
		t.Fatalf("SearchText: %v", err)
	}

	idx := openTestIndex(t)
	if err := idx.AddField(ctx, "field", "default"); err != nil {
		t.Fatalf("AddField: %v", err)
	}

	docs := []Document{
		{ID: 1, Fields: map[string]string{"field": "FOO bar BAZ"}},
		{ID: 2, Fields: map[string]string{"field": "foo"}},
		{ID: 3, Fields: map[string]string{"field": "BAR"}},
		{ID: 4, Fields: map[string]string{"field": "baz"}},
	}

	if err := idx.AddMany(ctx, docs, 4); err != nil {
		t.Fatalf("AddMany: %v", err)
	}

	parResults, err := idx.Read().SearchText(ctx, "field:foo field:bar", SearchOptions{})
	if err != nil {
		t.Fatalf("SearchText: %v", err)
	}

	assertResults(t, parResults, seqResults)
}
