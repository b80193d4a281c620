package canter

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/canterdb/canter/tokenizer"
	"github.com/canterdb/canter/util"
)

// Document is one unit of parallel ingestion: an identifier plus the
// raw text for each field it carries.
type Document struct {
	ID     int64
	Fields map[string]string
}

type workItem struct {
	documentID int64
	fieldName  string
	text       string
}

// fieldRequest asks the writer to resolve a field by name, replying on
// its own single-use, buffered channel so the writer's reply never
// blocks on a worker that has already given up waiting for it.
type fieldRequest struct {
	name  string
	reply chan fieldResponse
}

type fieldResponse struct {
	field Field
	err   error
}

// tokenizerRequest asks the writer for a private clone of the
// tokenizer bound to name.
type tokenizerRequest struct {
	name  string
	reply chan tokenizerResponse
}

type tokenizerResponse struct {
	tok tokenizer.Tokenizer
	err error
}

// textMessage carries one field/document's pre-tokenized contribution
// from a worker to the writer.
type textMessage struct {
	fieldID    int64
	documentID int64
	tokens     []string
}

// workerMessage is the sum type carried over the single bounded
// channel workers use to reach the writer: exactly one of its fields
// is non-nil.
type workerMessage struct {
	field *fieldRequest
	tok   *tokenizerRequest
	text  *textMessage
}

// AddMany rewrites the index from docs using parallelism concurrent
// tokenizing workers feeding a single writer goroutine, which alone
// touches the storage transaction. Workers never resolve a field or
// tokenizer, or mutate a posting, against the storage connection
// directly: every lookup and every token contribution crosses the same
// bounded channel to the writer. If parallelism < 1, it is treated
// as 1.
func (idx *Index) AddMany(ctx context.Context, docs []Document, parallelism int) error {
	if parallelism < 1 {
		parallelism = 1
	}

	w, err := idx.Rewrite(ctx)
	if err != nil {
		return err
	}

	jobs := make(chan workItem, parallelism)
	msgs := make(chan workerMessage, parallelism)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(jobs)
		for _, d := range docs {
			for fieldName, text := range util.CanonicalMapIter(d.Fields) {
				select {
				case jobs <- workItem{documentID: d.ID, fieldName: fieldName, text: text}:
				case <-gctx.Done():
					return gctx.Err()
				}
			}
		}
		return nil
	})

	var workerWG sync.WaitGroup
	workerWG.Add(parallelism)

	for i := 0; i < parallelism; i++ {
		g.Go(func() error {
			defer workerWG.Done()
			return ingestWorker(gctx, jobs, msgs)
		})
	}

	g.Go(func() error {
		workerWG.Wait()
		close(msgs)
		return nil
	})

	g.Go(func() error {
		if err := runWriter(gctx, w, msgs); err != nil {
			return err
		}
		return w.Commit(ctx)
	})

	if err := g.Wait(); err != nil {
		_ = w.Rollback()
		return err
	}

	return nil
}

// ingestWorker tokenizes jobs and reports results to the writer purely
// through msgs: it never dereferences the Index or its storage
// connection. Every field and tokenizer it needs is fetched from the
// writer via a request/reply message, then cached locally for the
// worker's remaining jobs, since the same field recurs across many
// documents.
func ingestWorker(ctx context.Context, jobs <-chan workItem, msgs chan<- workerMessage) error {
	fields := make(map[string]Field)
	clones := make(map[string]tokenizer.Tokenizer)

	for {
		select {
		case job, ok := <-jobs:
			if !ok {
				return nil
			}

			field, ok := fields[job.fieldName]
			if !ok {
				f, err := requestField(ctx, msgs, job.fieldName)
				if err != nil {
					return err
				}
				field = f
				fields[job.fieldName] = field
			}

			tok, ok := clones[job.fieldName]
			if !ok {
				t, err := requestTokenizer(ctx, msgs, field.Tokenizer)
				if err != nil {
					return err
				}
				tok = t
				clones[job.fieldName] = tok
			}

			var tokens []string
			if err := tok.Tokenize(job.text, func(t string) error {
				tokens = append(tokens, t)
				return nil
			}); err != nil {
				return err
			}

			msg := workerMessage{text: &textMessage{fieldID: field.ID, documentID: job.documentID, tokens: tokens}}
			select {
			case msgs <- msg:
			case <-ctx.Done():
				return errDisconnectedWriter()
			}

		case <-ctx.Done():
			return errDisconnectedWriter()
		}
	}
}

func requestField(ctx context.Context, msgs chan<- workerMessage, name string) (Field, error) {
	reply := make(chan fieldResponse, 1)
	select {
	case msgs <- (workerMessage{field: &fieldRequest{name: name, reply: reply}}):
	case <-ctx.Done():
		return Field{}, errDisconnectedWriter()
	}

	select {
	case resp := <-reply:
		return resp.field, resp.err
	case <-ctx.Done():
		return Field{}, errDisconnectedWriter()
	}
}

func requestTokenizer(ctx context.Context, msgs chan<- workerMessage, name string) (tokenizer.Tokenizer, error) {
	reply := make(chan tokenizerResponse, 1)
	select {
	case msgs <- (workerMessage{tok: &tokenizerRequest{name: name, reply: reply}}):
	case <-ctx.Done():
		return nil, errDisconnectedWriter()
	}

	select {
	case resp := <-reply:
		return resp.tok, resp.err
	case <-ctx.Done():
		return nil, errDisconnectedWriter()
	}
}

// runWriter is the sole consumer of msgs and the sole goroutine that
// ever touches w.tx: it resolves Field and Tokenizer requests against
// the writer's own transaction and the Index's tokenizer registry, and
// applies Text messages with the same position-resumption logic
// Writer.AddText uses, all without any other goroutine ever observing
// w.tx concurrently.
func runWriter(ctx context.Context, w *Writer, msgs <-chan workerMessage) error {
	type key struct{ fieldID, documentID int64 }
	positions := make(map[key]int64)

	for {
		select {
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}

			switch {
			case msg.field != nil:
				field, err := w.idx.resolveField(ctx, w.tx, msg.field.name)
				msg.field.reply <- fieldResponse{field: field, err: err}

			case msg.tok != nil:
				tok, err := w.idx.cloneTokenizer(msg.tok.name)
				msg.tok.reply <- tokenizerResponse{tok: tok, err: err}

			case msg.text != nil:
				t := msg.text
				k := key{t.fieldID, t.documentID}

				position, seen := positions[k]
				if !seen {
					p, err := w.resetPosition(ctx, t.fieldID, t.documentID)
					if err != nil {
						return err
					}
					position = p
				}

				for _, token := range t.tokens {
					position++

					termID, err := w.addTerm(ctx, t.fieldID, token)
					if err != nil {
						return err
					}
					if err := w.addPosting(ctx, termID, t.documentID, position); err != nil {
						return err
					}
				}

				if err := w.addDocument(ctx, t.fieldID, t.documentID, position); err != nil {
					return err
				}
				positions[k] = position
			}

		case <-ctx.Done():
			return errDisconnectedSource()
		}
	}
}
