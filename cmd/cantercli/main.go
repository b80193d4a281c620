// Command cantercli is a small operator CLI over a canter index: declare
// fields, ingest documents from newline-delimited JSON, and run ad-hoc
// searches against the compiled query language.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/jessevdk/go-flags"

	"github.com/canterdb/canter"
	"github.com/canterdb/canter/util"
)

var version string

type globalOptions struct {
	Database string `short:"d" long:"database" description:"Path to the SQLite database file" required:"true"`
	Config   string `short:"c" long:"config" description:"YAML file with bm25_k1, bm25_b and per-field boosts"`
	Help     bool   `long:"help" description:"Show this help"`
	Version  bool   `long:"version" description:"Show this version"`
}

type addFieldCommand struct {
	Name      string `long:"name" description:"Field name" required:"true"`
	Tokenizer string `long:"tokenizer" description:"Tokenizer name (stub, default, or one registered separately)" default:"default"`
}

type ingestCommand struct {
	File     string `short:"f" long:"file" description:"Newline-delimited JSON document file, or - for stdin" default:"-"`
	Parallel int    `long:"parallel" description:"Number of concurrent tokenizing workers; 1 runs sequentially" default:"1"`
}

type searchCommand struct {
	Query string `short:"q" long:"query" description:"Query text, per the field:value grammar" required:"true"`
	Limit int    `long:"limit" description:"Maximum number of results; 0 means unbounded"`
}

// ndjsonDocument is the wire shape ingest reads: one per line, mapping
// directly onto canter.Document.
type ndjsonDocument struct {
	ID     int64             `json:"id"`
	Fields map[string]string `json:"fields"`
}

func main() {
	util.InitSlog()

	var global globalOptions
	parser := flags.NewParser(&global, flags.PassDoubleDash|flags.PassAfterNonOption)
	parser.Usage = "[options] <add-field|ingest|search> ..."

	var addField addFieldCommand
	var ingest ingestCommand
	var search searchCommand

	if _, err := parser.AddCommand("add-field", "Declare a field and its tokenizer", "", &addField); err != nil {
		log.Fatal(err)
	}
	if _, err := parser.AddCommand("ingest", "Rewrite the index from an ndjson document stream", "", &ingest); err != nil {
		log.Fatal(err)
	}
	if _, err := parser.AddCommand("search", "Run a query and print matches", "", &search); err != nil {
		log.Fatal(err)
	}

	_, err := parser.Parse()
	if err != nil {
		if global.Help {
			parser.WriteHelp(os.Stdout)
			os.Exit(0)
		}
		log.Fatal(err)
	}

	if global.Version {
		fmt.Println(version)
		os.Exit(0)
	}

	cfg, err := canter.LoadConfig(global.Config)
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	idx, err := canter.Open(ctx, global.Database, cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer idx.Close()

	if parser.Active == nil {
		fmt.Print("No subcommand given!\n\n")
		parser.WriteHelp(os.Stdout)
		os.Exit(1)
	}

	switch parser.Active.Name {
	case "add-field":
		err = runAddField(ctx, idx, addField)
	case "search":
		err = runSearch(ctx, idx, search)
	case "ingest":
		err = runIngest(ctx, idx, ingest)
	}

	if err != nil {
		log.Fatal(err)
	}
}

func runAddField(ctx context.Context, idx *canter.Index, cmd addFieldCommand) error {
	if err := idx.AddField(ctx, cmd.Name, cmd.Tokenizer); err != nil {
		return err
	}
	slog.Info("field declared", "name", cmd.Name, "tokenizer", cmd.Tokenizer)
	return nil
}

func runIngest(ctx context.Context, idx *canter.Index, cmd ingestCommand) error {
	in := os.Stdin
	if cmd.File != "-" {
		f, err := os.Open(cmd.File)
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	var parsed []ndjsonDocument
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var d ndjsonDocument
		if err := json.Unmarshal(line, &d); err != nil {
			return fmt.Errorf("cantercli: parsing document: %w", err)
		}
		parsed = append(parsed, d)
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	docs := util.TransformSlice(parsed, func(d ndjsonDocument) canter.Document {
		return canter.Document{ID: d.ID, Fields: d.Fields}
	})

	parallelism := cmd.Parallel
	if parallelism < 1 {
		parallelism = 1
	}

	if err := idx.AddMany(ctx, docs, parallelism); err != nil {
		return err
	}

	slog.Info("ingest complete", "documents", len(docs), "parallel", parallelism)
	return nil
}

func runSearch(ctx context.Context, idx *canter.Index, cmd searchCommand) error {
	results, err := idx.Read().SearchText(ctx, cmd.Query, canter.SearchOptions{Limit: cmd.Limit})
	if err != nil {
		return err
	}

	for _, r := range results {
		fmt.Printf("%d\t%f\n", r.DocumentID, r.Score)
	}

	return nil
}
