// Package bunql implements an embedded document database over a
// pluggable ordered-KV storage engine: a stack-based filter/
// aggregation VM (internal/vm), a composite-key secondary index layer
// (storage), JSON Schema validation and CEL row-level authorization.
//
// Architecture, ported from the donor bundoc's own top-level doc
// comment:
//  1. Database: the entry point coordinating collections and the
//     system catalog.
//  2. Collection: documents plus their indexes, schema and rules.
//  3. internal/vm: compiles filter/pipeline documents to bytecode and
//     runs it against a storage.Engine-backed or in-memory cursor.
//  4. storage: the Engine contract, canonical key codec, and index
//     maintenance.
package bunql

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/axaubet/bunql/rules"
	"github.com/axaubet/bunql/storage"
)

// Options configures Open.
type Options struct {
	// Engine is the storage backend. Required.
	Engine storage.Engine
	// Logger receives structured diagnostics; if nil, logs are
	// discarded (Database.log substitutes a logger over a handler that
	// drops every record).
	Logger *slog.Logger
}

// Database is the coordinating entry point: a registry of Collections
// backed by one storage.Engine and one system catalog.
type Database struct {
	engine      storage.Engine
	logger      *slog.Logger
	rulesEngine *rules.Engine
	meta        *metadataManager

	mu          sync.RWMutex
	collections map[string]*Collection
}

// Open opens a database over opts.Engine, loading the system catalog
// (collection registry, indexes, schema, rules) already persisted
// there, if any.
func Open(opts Options) (*Database, error) {
	if opts.Engine == nil {
		return nil, fmt.Errorf("bunql: Options.Engine is required")
	}

	meta, err := loadMetadata(opts.Engine)
	if err != nil {
		return nil, err
	}
	re, err := rules.New()
	if err != nil {
		return nil, fmt.Errorf("bunql: init rules engine: %w", err)
	}

	return &Database{
		engine:      opts.Engine,
		logger:      opts.Logger,
		rulesEngine: re,
		meta:        meta,
		collections: make(map[string]*Collection),
	}, nil
}

// Collection returns the named collection, creating and persisting a
// fresh entry in the system catalog on first use.
func (db *Database) Collection(name string) (*Collection, error) {
	db.mu.RLock()
	if c, ok := db.collections[name]; ok {
		db.mu.RUnlock()
		return c, nil
	}
	db.mu.RUnlock()

	meta, err := db.meta.collectionMetaFor(name)
	if err != nil {
		return nil, err
	}

	db.mu.Lock()
	defer db.mu.Unlock()
	if c, ok := db.collections[name]; ok {
		return c, nil
	}
	c, err := newCollection(db, name, meta)
	if err != nil {
		return nil, err
	}
	db.collections[name] = c
	return c, nil
}

// Close releases the underlying storage engine.
func (db *Database) Close() error {
	return db.engine.Close()
}

func (db *Database) log() *slog.Logger {
	if db.logger != nil {
		return db.logger
	}
	return slog.New(discardHandler{})
}

// discardHandler implements slog.Handler by dropping every record,
// used when Options.Logger is left nil.
type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (discardHandler) WithAttrs(attrs []slog.Attr) slog.Handler  { return discardHandler{} }
func (discardHandler) WithGroup(name string) slog.Handler        { return discardHandler{} }
