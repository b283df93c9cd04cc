// Package badgerkv implements storage.Engine over BadgerDB, the
// production-grade backend (§2.J). Grounded on
// wbrown-janus-datalog/datalog/storage/badger_store.go: a thin wrapper
// opening one *badger.DB, translating badger.ErrKeyNotFound to
// storage.ErrKeyNotFound, and running storage.Engine.Update as a
// single badger.Txn.
package badgerkv

import (
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/axaubet/bunql/storage"
)

// Engine wraps a BadgerDB instance.
type Engine struct {
	db *badger.DB
}

// Open opens (creating if absent) a BadgerDB database rooted at path.
func Open(path string) (*Engine, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil // bunql logs through its own *slog.Logger, not badger's

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badgerkv: open %q: %w", path, err)
	}
	return &Engine{db: db}, nil
}

func (e *Engine) Get(key []byte) ([]byte, error) {
	var out []byte
	err := e.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			out = append([]byte(nil), val...)
			return nil
		})
	})
	if err == badger.ErrKeyNotFound {
		return nil, storage.ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("badgerkv: get: %w", err)
	}
	return out, nil
}

func (e *Engine) Put(key, value []byte) error {
	err := e.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
	if err != nil {
		return fmt.Errorf("badgerkv: put: %w", err)
	}
	return nil
}

func (e *Engine) Delete(key []byte) error {
	err := e.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
	if err != nil {
		return fmt.Errorf("badgerkv: delete: %w", err)
	}
	return nil
}

func (e *Engine) NewIterator(prefix []byte) storage.Iterator {
	txn := e.db.NewTransaction(false)
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	it.Seek(prefix)
	return &badgerIterator{txn: txn, it: it, prefix: prefix, started: false}
}

func (e *Engine) Update(fn func(txn storage.Txn) error) error {
	err := e.db.Update(func(bt *badger.Txn) error {
		return fn(&badgerTxn{txn: bt})
	})
	if err != nil {
		return fmt.Errorf("badgerkv: update: %w", err)
	}
	return nil
}

func (e *Engine) Close() error { return e.db.Close() }

// badgerIterator adapts badger's Seek-then-Valid/Next/Item API to
// storage.Iterator's Next-then-Key/Value shape: the first Next() call
// must not re-seek past the already-sought first entry.
type badgerIterator struct {
	txn     *badger.Txn
	it      *badger.Iterator
	prefix  []byte
	started bool
}

func (it *badgerIterator) Next() bool {
	if it.started {
		it.it.Next()
	}
	it.started = true
	return it.it.ValidForPrefix(it.prefix)
}

func (it *badgerIterator) Key() []byte {
	return append([]byte(nil), it.it.Item().Key()...)
}

func (it *badgerIterator) Value() []byte {
	var out []byte
	_ = it.it.Item().Value(func(val []byte) error {
		out = append([]byte(nil), val...)
		return nil
	})
	return out
}

func (it *badgerIterator) Close() {
	it.it.Close()
	it.txn.Discard()
}

type badgerTxn struct {
	txn *badger.Txn
}

func (t *badgerTxn) Get(key []byte) ([]byte, error) {
	item, err := t.txn.Get(key)
	if err == badger.ErrKeyNotFound {
		return nil, storage.ErrKeyNotFound
	}
	if err != nil {
		return nil, err
	}
	var out []byte
	err = item.Value(func(val []byte) error {
		out = append([]byte(nil), val...)
		return nil
	})
	return out, err
}

func (t *badgerTxn) Put(key, value []byte) error { return t.txn.Set(key, value) }
func (t *badgerTxn) Delete(key []byte) error     { return t.txn.Delete(key) }

func (t *badgerTxn) NewIterator(prefix []byte) storage.Iterator {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	it := t.txn.NewIterator(opts)
	it.Seek(prefix)
	return &badgerTxnIterator{it: it, prefix: prefix, started: false}
}

// badgerTxnIterator is the Txn-scoped counterpart of badgerIterator:
// it must not Discard the shared transaction on Close.
type badgerTxnIterator struct {
	it      *badger.Iterator
	prefix  []byte
	started bool
}

func (it *badgerTxnIterator) Next() bool {
	if it.started {
		it.it.Next()
	}
	it.started = true
	return it.it.ValidForPrefix(it.prefix)
}

func (it *badgerTxnIterator) Key() []byte {
	return append([]byte(nil), it.it.Item().Key()...)
}

func (it *badgerTxnIterator) Value() []byte {
	var out []byte
	_ = it.it.Item().Value(func(val []byte) error {
		out = append([]byte(nil), val...)
		return nil
	})
	return out
}

func (it *badgerTxnIterator) Close() { it.it.Close() }
