// Package canter implements a compact full-text search engine embedded
// in SQLite: named fields bound to tokenizer pipelines, transactional
// ingestion (sequential or parallel), a small boolean query language,
// and BM25 scoring compiled to SQL and evaluated by the storage engine
// itself.
package canter

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/mattn/go-sqlite3"
	"gopkg.in/yaml.v3"

	"github.com/canterdb/canter/tokenizer"
)

// FieldConfig carries per-field tuning read from Config.
type FieldConfig struct {
	Boost float64 `yaml:"boost"`
}

// Config configures BM25 constants and per-field boosts for an Index.
// Zero-valued settings are replaced by the defaults (k1=2.0, b=0.75,
// boost=1.0) when the Config is passed to Open or read by LoadConfig.
type Config struct {
	BM25K1 float64                `yaml:"bm25_k1"`
	BM25B  float64                `yaml:"bm25_b"`
	Fields map[string]FieldConfig `yaml:"fields"`
}

// DefaultConfig returns the engine's default tuning: k1=2.0, b=0.75.
func DefaultConfig() Config {
	return Config{BM25K1: 2.0, BM25B: 0.75, Fields: map[string]FieldConfig{}}
}

// LoadConfig reads a YAML configuration document from path, falling back
// to DefaultConfig's values for any field the document omits.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	buf, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("canter: reading config: %w", err)
	}

	if err := yaml.Unmarshal(buf, &cfg); err != nil {
		return Config{}, fmt.Errorf("canter: parsing config: %w", err)
	}

	normalizeConfig(&cfg)
	return cfg, nil
}

func normalizeConfig(cfg *Config) {
	if cfg.BM25K1 == 0 {
		cfg.BM25K1 = 2.0
	}
	if cfg.BM25B == 0 {
		cfg.BM25B = 0.75
	}
	if cfg.Fields == nil {
		cfg.Fields = map[string]FieldConfig{}
	}
	for name, fc := range cfg.Fields {
		if fc.Boost == 0 {
			fc.Boost = 1.0
			cfg.Fields[name] = fc
		}
	}
}

// Index is the top-level handle over a SQLite-backed inverted index. It
// owns the tokenizer registry and a lazily populated, session-spanning
// field-statistics cache that is invalidated on every Writer.Commit.
type Index struct {
	db  *sql.DB
	cfg Config

	mu         sync.Mutex
	tokenizers map[string]tokenizer.Tokenizer
	fields     map[string]*Field
}

// Open bootstraps the four canter_* tables (if absent) on dataSourceName
// and registers the canter_bm25 scalar function using cfg's constants.
func Open(ctx context.Context, dataSourceName string, cfg Config) (*Index, error) {
	normalizeConfig(&cfg)

	driverName := registerDriver(cfg.BM25K1, cfg.BM25B)

	db, err := sql.Open(driverName, dataSourceName)
	if err != nil {
		return nil, errSqlite(err)
	}

	if err := bootstrapSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	idx := &Index{
		db:  db,
		cfg: cfg,
		tokenizers: map[string]tokenizer.Tokenizer{
			"stub":    tokenizer.Stub{},
			"default": tokenizer.Default(),
		},
		fields: make(map[string]*Field),
	}

	slog.Debug("canter index opened", "dsn", dataSourceName, "bm25_k1", cfg.BM25K1, "bm25_b", cfg.BM25B)

	return idx, nil
}

// Close releases the underlying database handle.
func (idx *Index) Close() error {
	return idx.db.Close()
}

// AddTokenizer registers t under name, making it selectable by fields.
func (idx *Index) AddTokenizer(name string, t tokenizer.Tokenizer) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.tokenizers[name] = t
}

func (idx *Index) resolveTokenizer(name string) (tokenizer.Tokenizer, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	t, ok := idx.tokenizers[name]
	if !ok {
		return nil, errNoSuchTokenizer(name)
	}
	return t, nil
}

// cloneTokenizer returns a private clone of the named tokenizer, for use
// by a single parallel-ingestion worker.
func (idx *Index) cloneTokenizer(name string) (tokenizer.Tokenizer, error) {
	t, err := idx.resolveTokenizer(name)
	if err != nil {
		return nil, err
	}
	return t.Clone(), nil
}

func (idx *Index) boostFor(name string) float64 {
	if fc, ok := idx.cfg.Fields[name]; ok {
		return fc.Boost
	}
	return 1.0
}

func (idx *Index) invalidateFields() {
	idx.mu.Lock()
	idx.fields = make(map[string]*Field)
	idx.mu.Unlock()
}

var driverSeq struct {
	mu sync.Mutex
	n  int
}

// registerDriver registers a fresh database/sql driver name whose
// connections carry a canter_bm25 scalar function closing over k1/b. A
// new name is minted per Open call since sql.Register panics on reuse
// and different Index instances may be tuned differently.
func registerDriver(k1, b float64) string {
	driverSeq.mu.Lock()
	driverSeq.n++
	name := fmt.Sprintf("sqlite3_canter_%d", driverSeq.n)
	driverSeq.mu.Unlock()

	sql.Register(name, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			return conn.RegisterFunc("canter_bm25", bm25Func(k1, b), true)
		},
	})

	return name
}
